// Package adapter publishes conversion completion notifications to
// downstream systems. The runtime owns adapter lifecycle; users provide
// configuration only.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventTypeConversionCompleted is the event_type of every published event.
const EventTypeConversionCompleted = "conversion_completed"

// ContractVersion is the version of the event payload shape.
const ContractVersion = "1.0.0"

// ConversionCompletedEvent is the payload published when a conversion run
// finishes.
type ConversionCompletedEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"`
	RunID           string `json:"run_id"`
	Source          string `json:"source"`
	Day             string `json:"day"`
	// Outcome is success, partial, no_output or publish_failure.
	Outcome     string `json:"outcome"`
	StoragePath string `json:"storage_path,omitempty"`
	// Timestamp is the completion time, RFC 3339.
	Timestamp   string   `json:"timestamp"`
	Files       int      `json:"files"`
	FilesFailed int      `json:"files_failed"`
	Rows        int64    `json:"rows"`
	Outputs     []string `json:"outputs,omitempty"`
	DurationMs  int64    `json:"duration_ms"`
}

// Adapter publishes conversion completion events.
type Adapter interface {
	// Publish sends the event. Must respect context cancellation.
	Publish(ctx context.Context, event *ConversionCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// DefaultBackoff is the delay before the first retry. Later retries double it.
const DefaultBackoff = 500 * time.Millisecond

// Retry runs fn up to 1+retries times with exponential backoff between
// attempts. A permanent error (per isPermanent, which may be nil) stops
// immediately. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, backoff time.Duration, isPermanent func(error) bool, fn func(context.Context) error) error {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	attempts := 1 + retries

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff << uint(i-1)):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if isPermanent != nil && isPermanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}

// ErrNegativeRetries is returned by adapter constructors for retries < 0.
var ErrNegativeRetries = errors.New("retries must be >= 0")
