package runtime

import (
	"github.com/justapithecus/canlog/metrics"
	"github.com/justapithecus/canlog/report"
	"github.com/justapithecus/canlog/types"
)

// Exit codes of a conversion run.
const (
	ExitSuccess        = 0
	ExitPartial        = 1
	ExitNoOutput       = 2
	ExitPublishFailure = 3
)

// ExitCode maps an outcome status to the process exit code.
func ExitCode(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomeSuccess:
		return ExitSuccess
	case types.OutcomePartial:
		return ExitPartial
	case types.OutcomePublishFailure:
		return ExitPublishFailure
	default:
		return ExitNoOutput
	}
}

// BuildReport composes the run report from a result and a metrics snapshot.
// policyName is empty when rows were not persisted.
func BuildReport(result *ConversionResult, snap metrics.Snapshot, policyName string) *report.Report {
	r := &report.Report{
		RunID:      result.RunMeta.RunID,
		Source:     result.RunMeta.Source,
		Version:    types.Version,
		Outcome:    result.Outcome.Status,
		Message:    result.Outcome.Message,
		ExitCode:   ExitCode(result.Outcome.Status),
		StartedAt:  result.StartedAt,
		DurationMs: result.Duration.Milliseconds(),
		Reference:  result.Session.Reference,
		Files:      make([]report.File, 0, len(result.Session.Reports)),
		Outputs:    make([]report.Output, 0, len(result.Outputs)),
		Metrics:    &snap,
	}
	for _, rep := range result.Session.Reports {
		r.Files = append(r.Files, report.FileFrom(rep))
	}
	for _, w := range result.Outputs {
		r.Outputs = append(r.Outputs, report.Output{Path: w.Path, Rows: w.Rows, Bytes: w.Bytes})
	}
	if policyName != "" {
		r.Policy = report.PolicyFrom(policyName, result.PolicyStats)
	}
	return r
}
