package policy

import (
	"context"
	"sync"

	"github.com/justapithecus/canlog/types"
)

// Sink abstracts row persistence for policies.
type Sink interface {
	// WriteRows persists a batch of rows in order.
	WriteRows(ctx context.Context, rows []*types.RowRecord) error

	// Close releases any resources held by the sink.
	Close() error
}

// StubSink is a test sink that records writes without persisting.
type StubSink struct {
	mu sync.Mutex

	// Batches holds every accepted WriteRows call.
	Batches [][]*types.RowRecord
	// Closed indicates whether Close was called.
	Closed bool
	// ErrorOnWrite, if non-nil, is returned by WriteRows.
	ErrorOnWrite error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// WriteRows records the batch.
func (s *StubSink) WriteRows(_ context.Context, rows []*types.RowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}
	s.Batches = append(s.Batches, rows)
	return nil
}

// SetError sets the error returned by later writes.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	s.ErrorOnWrite = err
	s.mu.Unlock()
}

// Rows returns every written row in write order.
func (s *StubSink) Rows() []*types.RowRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.RowRecord
	for _, b := range s.Batches {
		out = append(out, b...)
	}
	return out
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

var _ Sink = (*StubSink)(nil)
