// Package policy controls how decoded rows are batched into persistent storage.
package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/justapithecus/canlog/types"
)

// Policy names accepted by New.
const (
	NameStrict   = "strict"
	NameBuffered = "buffered"
	NameNoop     = "noop"
)

// Policy defines the row persistence interface.
//
// Policies never reorder rows. A policy failure is returned to the caller,
// which decides whether the run fails.
type Policy interface {
	// IngestRow accepts one row. Rows are persisted in ingestion order.
	IngestRow(ctx context.Context, row *types.RowRecord) error

	// Flush persists any buffered rows.
	// Called once all files are converted, and on termination.
	Flush(ctx context.Context) error

	// Close releases policy resources and closes the sink.
	Close() error

	// Stats returns a consistent snapshot of policy counters.
	Stats() Stats
}

// Stats represents policy observability counters.
type Stats struct {
	// TotalRows is the number of rows ingested.
	TotalRows int64
	// RowsPersisted is the number of rows the sink accepted.
	RowsPersisted int64
	// RowsDropped is the number of rows discarded after a failed write.
	RowsDropped int64
	// BufferedRows is the number of rows waiting for a flush.
	BufferedRows int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the number of failed sink writes.
	Errors int64
}

// New creates the named policy. cfg is used by the buffered policy only.
func New(name string, sink Sink, cfg BufferedConfig) (Policy, error) {
	switch name {
	case NameStrict, "":
		return NewStrictPolicy(sink), nil
	case NameBuffered:
		return NewBufferedPolicy(sink, cfg)
	case NameNoop:
		return NewNoopPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown policy %q (want strict, buffered or noop)", name)
	}
}

// statsRecorder guards Stats for policies without their own buffer lock.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func (r *statsRecorder) update(fn func(*Stats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
