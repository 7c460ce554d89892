package runtime

import (
	"errors"
	"testing"

	"github.com/justapithecus/canlog/session"
	"github.com/justapithecus/canlog/types"
)

func resultWith(rows ...int) *session.Result {
	res := &session.Result{}
	for _, n := range rows {
		t := &types.Table{Columns: []string{types.TimeColumnClock, "A"}}
		for range n {
			t.Rows = append(t.Rows, types.Row{})
		}
		res.Tables = append(res.Tables, t)
		res.Reports = append(res.Reports, session.FileReport{Rows: n})
	}
	return res
}

func TestDetermineOutcome(t *testing.T) {
	tests := []struct {
		name       string
		res        *session.Result
		persistErr error
		want       types.OutcomeStatus
		wantCode   int
	}{
		{"all files", resultWith(2, 3), nil, types.OutcomeSuccess, ExitSuccess},
		{"one empty file", resultWith(2, 0), nil, types.OutcomePartial, ExitPartial},
		{"nothing", resultWith(0, 0), nil, types.OutcomeNoOutput, ExitNoOutput},
		{"no inputs", resultWith(), nil, types.OutcomeNoOutput, ExitNoOutput},
		{"persist failed", resultWith(2), errors.New("down"), types.OutcomePublishFailure, ExitPublishFailure},
		{"persist failed with partial", resultWith(2, 0), errors.New("down"), types.OutcomePublishFailure, ExitPublishFailure},
		{"no output over persist failure", resultWith(0), errors.New("down"), types.OutcomeNoOutput, ExitNoOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineOutcome(tt.res, tt.persistErr)
			if got.Status != tt.want {
				t.Errorf("status = %s, want %s (%s)", got.Status, tt.want, got.Message)
			}
			if got.Message == "" {
				t.Error("empty message")
			}
			if code := ExitCode(got.Status); code != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", code, tt.wantCode)
			}
		})
	}
}

func TestExitCode_Unknown(t *testing.T) {
	if got := ExitCode("bogus"); got != ExitNoOutput {
		t.Errorf("ExitCode(bogus) = %d", got)
	}
}
