package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/canlog/log"
	"github.com/justapithecus/canlog/policy"
	"github.com/justapithecus/canlog/types"
)

// IngestionError classifies row ingestion failures for outcome determination.
type IngestionError struct {
	Kind IngestionErrorKind
	Err  error
}

// IngestionErrorKind classifies ingestion errors.
type IngestionErrorKind int

const (
	// IngestionErrorPolicy is a sink failure surfaced by the policy.
	IngestionErrorPolicy IngestionErrorKind = iota
	// IngestionErrorCanceled is context cancellation.
	IngestionErrorCanceled
)

func (e *IngestionError) Error() string {
	return e.Err.Error()
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// IsPolicyError reports whether err is a policy failure.
func IsPolicyError(err error) bool {
	var ingErr *IngestionError
	return errors.As(err, &ingErr) && ingErr.Kind == IngestionErrorPolicy
}

// IsCanceledError reports whether err is due to context cancellation.
func IsCanceledError(err error) bool {
	var ingErr *IngestionError
	return errors.As(err, &ingErr) && ingErr.Kind == IngestionErrorCanceled
}

// ingester feeds rows to the policy table by table. Seq numbers rows across
// the whole run, starting at 1.
type ingester struct {
	pol    policy.Policy
	logger *log.Logger
	seq    int64
	// err is the first policy failure. No rows are ingested after it.
	err error
}

// table ingests every row of t. Policy failures are kept in in.err and do
// not stop the run; only cancellation is returned.
func (in *ingester) table(ctx context.Context, t *types.Table) error {
	if in.err != nil {
		return nil
	}
	signals := t.Signals()
	for _, row := range t.Rows {
		if err := ctx.Err(); err != nil {
			return &IngestionError{Kind: IngestionErrorCanceled, Err: err}
		}
		in.seq++
		if err := in.pol.IngestRow(ctx, types.NewRowRecord(t.Source, in.seq, row, signals)); err != nil {
			in.logger.Error("row ingestion failed", map[string]any{
				"file":  t.Source,
				"seq":   in.seq,
				"error": err.Error(),
			})
			in.err = &IngestionError{Kind: IngestionErrorPolicy, Err: fmt.Errorf("ingest row %d: %w", in.seq, err)}
			return nil
		}
	}
	return nil
}

// flush flushes the policy unless ingestion already failed, and returns the
// first policy failure.
func (in *ingester) flush(ctx context.Context) error {
	if in.err != nil {
		return in.err
	}
	if err := in.pol.Flush(ctx); err != nil {
		in.err = &IngestionError{Kind: IngestionErrorPolicy, Err: fmt.Errorf("policy flush: %w", err)}
	}
	return in.err
}
