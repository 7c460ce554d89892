package policy

import (
	"context"

	"github.com/justapithecus/canlog/types"
)

// NoopPolicy accepts rows without persisting them. Used when no storage is
// configured. Rows are counted as persisted so run summaries stay
// comparable with the other policies.
type NoopPolicy struct {
	stats statsRecorder
}

// NewNoopPolicy creates a new no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{}
}

// IngestRow accepts the row but does not persist it.
func (p *NoopPolicy) IngestRow(_ context.Context, _ *types.RowRecord) error {
	p.stats.update(func(s *Stats) {
		s.TotalRows++
		s.RowsPersisted++
	})
	return nil
}

// Flush is a no-op.
func (p *NoopPolicy) Flush(_ context.Context) error {
	p.stats.update(func(s *Stats) { s.FlushCount++ })
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error {
	return nil
}

// Stats returns the policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*NoopPolicy)(nil)
