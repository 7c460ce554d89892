package types //nolint:revive // types is a valid package name

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestPipelineError_Is(t *testing.T) {
	underlying := errors.New("bad digits")
	err := NewError(ErrParse, "parse_token", "12:3:00:0000", underlying)

	if !errors.Is(err, ErrParse) {
		t.Error("expected errors.Is(err, ErrParse)")
	}
	if errors.Is(err, ErrDecode) {
		t.Error("did not expect errors.Is(err, ErrDecode)")
	}
	if !errors.Is(err, underlying) {
		t.Error("expected underlying error in chain")
	}

	wrapped := fmt.Errorf("line 12: %w", err)
	if !errors.Is(wrapped, ErrParse) {
		t.Error("expected classification to survive wrapping")
	}

	var pe *PipelineError
	if !errors.As(wrapped, &pe) {
		t.Fatal("expected errors.As to find *PipelineError")
	}
	if pe.Detail != "12:3:00:0000" {
		t.Errorf("Detail = %q", pe.Detail)
	}
}

func TestPipelineError_Message(t *testing.T) {
	err := NewError(ErrStructural, "reconstruct", "no session start marker", nil).InFile("a.log")
	msg := err.Error()
	for _, want := range []string{"reconstruct", "a.log", "structural error", "no session start marker"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestPipelineError_InFileCopies(t *testing.T) {
	base := NewError(ErrIO, "open", "", errors.New("denied"))
	annotated := base.InFile("b.trc")
	if base.File != "" {
		t.Errorf("InFile mutated receiver: File = %q", base.File)
	}
	if annotated.File != "b.trc" {
		t.Errorf("annotated File = %q", annotated.File)
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		kind error
		want bool
	}{
		{ErrParse, true},
		{ErrDecode, true},
		{ErrStructural, false},
		{ErrMerge, false},
		{ErrIO, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.Error(), func(t *testing.T) {
			err := NewError(tt.kind, "op", "", nil)
			if got := IsRecoverable(err); got != tt.want {
				t.Errorf("IsRecoverable(%v) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}
