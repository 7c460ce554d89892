package lode

import (
	"context"

	"github.com/justapithecus/canlog/metrics"
	"github.com/justapithecus/canlog/policy"
	"github.com/justapithecus/canlog/types"
)

// InstrumentedSink wraps a policy.Sink and counts each WriteRows call as a
// lode write success or failure on the collector.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteRows delegates to the inner sink and records the outcome.
func (s *InstrumentedSink) WriteRows(ctx context.Context, rows []*types.RowRecord) error {
	err := s.inner.WriteRows(ctx, rows)
	if err != nil {
		s.collector.IncLodeWriteFailure()
	} else {
		s.collector.IncLodeWriteSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

var _ policy.Sink = (*InstrumentedSink)(nil)
