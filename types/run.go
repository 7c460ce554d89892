// Package types defines core domain types for the canlog pipeline.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"strings"
)

// RunMeta contains the identity of one conversion run.
type RunMeta struct {
	// RunID is the canonical run identifier. Must be globally unique.
	RunID string
	// Source names the vehicle, rig or provider the logs came from.
	// Used as a partition key, so it must not contain path separators.
	Source string
}

// Validate validates run identity:
//   - run_id must be non-empty
//   - source must be non-empty and a single path segment
func (r *RunMeta) Validate() error {
	if r.RunID == "" {
		return errors.New("run_id must be non-empty")
	}
	if r.Source == "" {
		return errors.New("source must be non-empty")
	}
	if strings.ContainsAny(r.Source, `/\`) || r.Source == "." || r.Source == ".." {
		return fmt.Errorf("source %q must be a single path segment", r.Source)
	}
	return nil
}

// OutcomeStatus represents the final status of a conversion run.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates every input file produced output.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomePartial indicates some files failed but output was written.
	OutcomePartial OutcomeStatus = "partial"
	// OutcomeNoOutput indicates no input file produced any rows.
	OutcomeNoOutput OutcomeStatus = "no_output"
	// OutcomePublishFailure indicates output was written but publishing failed.
	OutcomePublishFailure OutcomeStatus = "publish_failure"
)

// RunOutcome represents the final outcome of a run.
type RunOutcome struct {
	// Status is the outcome classification.
	Status OutcomeStatus
	// Message is a human-readable description.
	Message string
}
