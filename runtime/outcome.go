package runtime

import (
	"fmt"

	"github.com/justapithecus/canlog/session"
	"github.com/justapithecus/canlog/types"
)

// DetermineOutcome classifies a finished conversion. persistErr is the first
// row persistence or dataset write failure, if any.
//
//   - no table with rows: no_output
//   - persistence failed: publish_failure (CSV output was still written)
//   - some files without output: partial
//   - otherwise: success
func DetermineOutcome(res *session.Result, persistErr error) *types.RunOutcome {
	total := len(res.Reports)
	produced := len(res.Mergeable())

	switch {
	case produced == 0:
		return &types.RunOutcome{
			Status:  types.OutcomeNoOutput,
			Message: fmt.Sprintf("none of %d input files produced rows", total),
		}
	case persistErr != nil:
		return &types.RunOutcome{
			Status:  types.OutcomePublishFailure,
			Message: fmt.Sprintf("output written but persistence failed: %v", persistErr),
		}
	case produced < total:
		return &types.RunOutcome{
			Status:  types.OutcomePartial,
			Message: fmt.Sprintf("%d of %d input files produced rows", produced, total),
		}
	default:
		return &types.RunOutcome{
			Status:  types.OutcomeSuccess,
			Message: fmt.Sprintf("converted %d input files", total),
		}
	}
}
