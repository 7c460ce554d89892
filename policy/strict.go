package policy

import (
	"context"

	"github.com/justapithecus/canlog/types"
)

// StrictPolicy implements synchronous, unbuffered persistence.
//
//   - No buffering: each row is written immediately
//   - No drops: a sink error is returned and fails the run
//   - Backpressure: the caller blocks on sink latency
type StrictPolicy struct {
	sink  Sink
	stats statsRecorder
}

// NewStrictPolicy creates a new strict policy writing to the given sink.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{sink: sink}
}

// IngestRow writes the row to the sink as a batch of one.
func (p *StrictPolicy) IngestRow(ctx context.Context, row *types.RowRecord) error {
	p.stats.update(func(s *Stats) { s.TotalRows++ })

	if err := p.sink.WriteRows(ctx, []*types.RowRecord{row}); err != nil {
		p.stats.update(func(s *Stats) { s.Errors++ })
		return err
	}

	p.stats.update(func(s *Stats) { s.RowsPersisted++ })
	return nil
}

// Flush is a no-op for strict policy (nothing is buffered).
func (p *StrictPolicy) Flush(_ context.Context) error {
	p.stats.update(func(s *Stats) { s.FlushCount++ })
	return nil
}

// Close closes the underlying sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns the policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*StrictPolicy)(nil)
