// Package webhook publishes conversion completion events as JSON HTTP POSTs.
//
// Every request carries the run id as an Idempotency-Key, so a receiver can
// drop the duplicates that retries produce. Network errors, 5xx, 408 and 429
// are retried; any other 4xx fails at once.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/justapithecus/canlog/adapter"
	"github.com/justapithecus/canlog/iox"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second

	// HeaderEvent carries the event type.
	HeaderEvent = "X-Canlog-Event"
	// HeaderRunID carries the run id.
	HeaderRunID = "X-Canlog-Run-Id"
	// HeaderIdempotencyKey is set to the run id.
	HeaderIdempotencyKey = "Idempotency-Key"

	// maxErrorBody bounds the response text kept in a StatusError.
	maxErrorBody = 256
)

// Config configures the webhook adapter.
type Config struct {
	// URL is the HTTP endpoint to POST to (required).
	URL string
	// Headers are added to each request after the event headers.
	Headers map[string]string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
	// Retries is the number of retries after the first attempt.
	Retries int
	// Backoff is the delay before the first retry (default 500ms).
	Backoff time.Duration
}

// Adapter publishes events via HTTP POST.
type Adapter struct {
	config Config
	client *http.Client
}

// New creates a webhook adapter.
func New(cfg Config) (*Adapter, error) {
	switch {
	case cfg.URL == "":
		return nil, errors.New("webhook adapter requires a URL")
	case !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://"):
		return nil, fmt.Errorf("webhook adapter URL %q must be http or https", cfg.URL)
	case cfg.Retries < 0:
		return nil, fmt.Errorf("webhook: %w, got %d", adapter.ErrNegativeRetries, cfg.Retries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Adapter{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Publish posts the event, retrying transient failures.
func (a *Adapter) Publish(ctx context.Context, event *adapter.ConversionCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}
	return adapter.Retry(ctx, "webhook", a.config.Retries, a.config.Backoff, isPermanent,
		func(ctx context.Context) error {
			return a.post(ctx, event, body)
		})
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code int
	// Body is the start of the response body, for diagnostics.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// isPermanent reports whether retrying err cannot help.
func isPermanent(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	switch statusErr.Code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return statusErr.Code >= 400 && statusErr.Code < 500
}

func (a *Adapter) post(ctx context.Context, event *adapter.ConversionCompletedEvent, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, event.EventType)
	req.Header.Set(HeaderRunID, event.RunID)
	req.Header.Set(HeaderIdempotencyKey, event.RunID)
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_, _ = io.Copy(io.Discard, resp.Body)
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}

// Close releases idle connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
