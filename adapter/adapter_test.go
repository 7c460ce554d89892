package adapter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	transient := errors.New("transient")
	permanent := errors.New("permanent")

	tests := []struct {
		name      string
		retries   int
		failures  int
		err       error
		wantCalls int
		wantErr   string
	}{
		{"first attempt succeeds", 3, 0, nil, 1, ""},
		{"succeeds after retries", 3, 2, transient, 3, ""},
		{"exhausts retries", 2, 10, transient, 3, "failed after 3 attempts"},
		{"permanent stops", 3, 10, permanent, 1, "non-retriable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(t.Context(), "test", tt.retries, time.Millisecond,
				func(err error) bool { return errors.Is(err, permanent) },
				func(context.Context) error {
					calls++
					if calls <= tt.failures {
						return tt.err
					}
					return nil
				})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("error chain lost cause: %v", err)
			}
		})
	}
}

func TestRetry_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	err := Retry(ctx, "test", 5, time.Hour, nil, func(context.Context) error {
		return errors.New("down")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}
