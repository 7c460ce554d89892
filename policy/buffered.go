package policy

import (
	"context"
	"errors"
	"sync"

	"github.com/justapithecus/canlog/log"
	"github.com/justapithecus/canlog/types"
)

// DefaultMaxBufferRows is the buffered policy batch size when none is set.
const DefaultMaxBufferRows = 10_000

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxBufferRows triggers a flush once this many rows are buffered.
	MaxBufferRows int

	// BestEffort drops a batch whose write failed instead of returning the
	// error. Dropped rows are counted in Stats.RowsDropped.
	BestEffort bool

	// Logger is an optional logger for flush observability.
	Logger *log.Logger
}

// DefaultBufferedConfig returns the default buffered configuration.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{MaxBufferRows: DefaultMaxBufferRows}
}

// ErrInvalidConfig is returned when BufferedConfig is invalid.
var ErrInvalidConfig = errors.New("invalid buffered config: max_buffer_rows must be positive")

// BufferedPolicy batches rows and writes them when the buffer fills, and on
// Flush.
//
// On a failed write the batch is put back in front of the buffer and the
// error is returned (at-least-once), unless BestEffort is set.
//
// Thread safety:
//   - mu guards the buffer and stats
//   - flushMu serializes writes so batches reach the sink in order
type BufferedPolicy struct {
	sink   Sink
	config BufferedConfig
	logger *log.Logger

	mu     sync.Mutex
	buffer []*types.RowRecord
	stats  Stats

	flushMu sync.Mutex
}

// NewBufferedPolicy creates a new buffered policy.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxBufferRows <= 0 {
		return nil, ErrInvalidConfig
	}
	return &BufferedPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]*types.RowRecord, 0, min(config.MaxBufferRows, 4096)),
	}, nil
}

// IngestRow buffers the row, flushing when the buffer is full.
func (p *BufferedPolicy) IngestRow(ctx context.Context, row *types.RowRecord) error {
	p.mu.Lock()
	p.stats.TotalRows++
	p.buffer = append(p.buffer, row)
	p.stats.BufferedRows = int64(len(p.buffer))
	full := len(p.buffer) >= p.config.MaxBufferRows
	p.mu.Unlock()

	if full {
		return p.flush(ctx, "buffer_full")
	}
	return nil
}

// Flush writes all buffered rows.
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	return p.flush(ctx, "flush")
}

// flush swaps the buffer under mu, writes outside mu, and restores the batch
// on failure.
func (p *BufferedPolicy) flush(ctx context.Context, trigger string) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	p.stats.FlushCount++
	batch := p.buffer
	if len(batch) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.buffer = make([]*types.RowRecord, 0, cap(batch))
	p.stats.BufferedRows = 0
	p.mu.Unlock()

	err := p.sink.WriteRows(ctx, batch)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		p.stats.RowsPersisted += int64(len(batch))
		p.logFlush(trigger, len(batch))
		return nil
	}

	p.stats.Errors++
	if p.config.BestEffort {
		p.stats.RowsDropped += int64(len(batch))
		p.logFlushFailure(trigger, len(batch), true, err)
		return nil
	}
	p.buffer = append(batch, p.buffer...)
	p.stats.BufferedRows = int64(len(p.buffer))
	p.logFlushFailure(trigger, len(batch), false, err)
	return err
}

// Close flushes remaining rows best-effort and closes the sink.
func (p *BufferedPolicy) Close() error {
	_ = p.Flush(context.Background())
	return p.sink.Close()
}

// Stats returns the policy statistics.
func (p *BufferedPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *BufferedPolicy) logFlush(trigger string, rows int) {
	if p.logger == nil {
		return
	}
	p.logger.Debug("buffered flush", map[string]any{
		"trigger": trigger,
		"rows":    rows,
		"policy":  NameBuffered,
	})
}

func (p *BufferedPolicy) logFlushFailure(trigger string, rows int, dropped bool, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("buffered flush failed", map[string]any{
		"trigger": trigger,
		"rows":    rows,
		"dropped": dropped,
		"error":   err.Error(),
		"policy":  NameBuffered,
	})
}

var _ Policy = (*BufferedPolicy)(nil)
