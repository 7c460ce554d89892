package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrParse indicates a malformed time token or line. The record is skipped.
	ErrParse = errors.New("parse error")

	// ErrDecode indicates the catalog could not decode a frame. The frame is skipped.
	ErrDecode = errors.New("decode error")

	// ErrStructural indicates a file without a session start or without records.
	// The file yields an empty table and is left out of the merge.
	ErrStructural = errors.New("structural error")

	// ErrMerge indicates there was nothing to merge. Fatal for the operation.
	ErrMerge = errors.New("merge error")

	// ErrIO indicates a file could not be read or written. Fatal for that file.
	ErrIO = errors.New("io error")
)

// PipelineError wraps an underlying error with pipeline classification and
// enough context (file, token or id) to diagnose it.
type PipelineError struct {
	// Kind is the sentinel error for classification (e.g., ErrParse).
	Kind error
	// Op is the operation that failed (e.g., "parse_token", "decode").
	Op string
	// File is the input file involved, if any.
	File string
	// Detail is the offending token, line number or id.
	Detail string
	// Err is the underlying error. May be nil.
	Err error
}

func (e *PipelineError) Error() string {
	msg := e.Op
	if e.File != "" {
		msg += " " + e.File
	}
	msg = fmt.Sprintf("%s: %v", msg, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// InFile returns a copy of e annotated with a file name.
func (e *PipelineError) InFile(file string) *PipelineError {
	c := *e
	c.File = file
	return &c
}

// NewError creates a classified pipeline error.
func NewError(kind error, op, detail string, err error) *PipelineError {
	return &PipelineError{
		Kind:   kind,
		Op:     op,
		Detail: detail,
		Err:    err,
	}
}

// IsRecoverable reports whether err only skips a single record.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrParse) || errors.Is(err, ErrDecode)
}
