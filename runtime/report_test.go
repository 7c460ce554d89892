package runtime

import (
	"errors"
	"testing"
	"time"

	"github.com/justapithecus/canlog/csvio"
	"github.com/justapithecus/canlog/metrics"
	"github.com/justapithecus/canlog/policy"
	"github.com/justapithecus/canlog/session"
	"github.com/justapithecus/canlog/types"
)

func TestBuildReport(t *testing.T) {
	start := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	result := &ConversionResult{
		RunMeta:   &types.RunMeta{RunID: "run-001", Source: "bench-a"},
		Outcome:   &types.RunOutcome{Status: types.OutcomePartial, Message: "1 of 2 input files produced rows"},
		StartedAt: start,
		Duration:  1500 * time.Millisecond,
		Session: &session.Result{
			Reference: start,
			Reports: []session.FileReport{
				{Path: "a.log", Format: types.FormatBusmaster, HasStart: true, Start: start, Lines: 10, Frames: 8, ParseErrors: 2, Rows: 8},
				{Path: "b.log", Format: types.FormatBusmaster, Err: errors.New("no session start")},
			},
		},
		Outputs:     []csvio.Written{{Path: "out/a_decoded.csv", Rows: 8, Bytes: 120}},
		PolicyStats: policy.Stats{TotalRows: 8, RowsPersisted: 8, FlushCount: 1},
	}
	snap := metrics.Snapshot{FilesStarted: 2, RowsEmitted: 8}

	r := BuildReport(result, snap, policy.NameBuffered)

	if r.RunID != "run-001" || r.Source != "bench-a" || r.Version != types.Version {
		t.Errorf("identity = %s/%s/%s", r.RunID, r.Source, r.Version)
	}
	if r.Outcome != types.OutcomePartial || r.ExitCode != ExitPartial || r.DurationMs != 1500 {
		t.Errorf("outcome = %s code %d duration %d", r.Outcome, r.ExitCode, r.DurationMs)
	}
	if len(r.Files) != 2 || r.Files[0].Skipped != 2 || r.Files[1].Error == "" {
		t.Errorf("files = %+v", r.Files)
	}
	if len(r.Outputs) != 1 || r.Outputs[0].Bytes != 120 {
		t.Errorf("outputs = %+v", r.Outputs)
	}
	if r.Policy == nil || r.Policy.Name != "buffered" || r.Policy.Persisted != 8 || r.Policy.Flushes != 1 {
		t.Errorf("policy = %+v", r.Policy)
	}
	if r.Metrics == nil || r.Metrics.RowsEmitted != 8 {
		t.Errorf("metrics = %+v", r.Metrics)
	}

	if BuildReport(result, snap, "").Policy != nil {
		t.Error("policy section should be omitted without a policy name")
	}
}
