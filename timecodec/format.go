package timecodec

import (
	"time"

	"github.com/justapithecus/canlog/types"
)

// Format renders an instant in the given display convention.
// ref is the session start for ConventionElapsed and the batch reference
// for ConventionSeconds; it is ignored for ConventionTimeOfDay.
func Format(instant time.Time, conv types.TimeConvention, ref time.Time) string {
	switch conv {
	case types.ConventionElapsed:
		return FormatElapsed(instant.Sub(ref))
	case types.ConventionSeconds:
		return FormatSeconds(instant.Sub(ref))
	default:
		return FormatClock(instant)
	}
}

// IsTimeCell reports whether a CSV cell holds a time value in any supported
// convention: plain seconds or a BUSMASTER token.
func IsTimeCell(text string) bool {
	if _, ok := ParsePlainSeconds(text); ok {
		return true
	}
	return IsBusmasterToken(text)
}
