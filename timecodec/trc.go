package timecodec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/justapithecus/canlog/types"
)

// oleEpoch is day zero of the OLE automation date used by TRC $STARTTIME.
var oleEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseTRCOffset parses a TRC message offset in milliseconds.
// TRC offsets are always elapsed from $STARTTIME.
func ParseTRCOffset(text string) (Parts, error) {
	ms, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return Parts{}, types.NewError(types.ErrParse, "parse_token", text, err)
	}
	if ms < 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return Parts{}, types.NewError(types.ErrParse, "parse_token", text,
			fmt.Errorf("offset out of range"))
	}
	return FromDuration(time.Duration(math.Round(ms*1000)) * time.Microsecond), nil
}

// ParseSeconds converts a float seconds timestamp into elapsed-mode Parts.
func ParseSeconds(sec float64) (Parts, error) {
	if sec < 0 || math.IsNaN(sec) || math.IsInf(sec, 0) {
		return Parts{}, types.NewError(types.ErrParse, "parse_token",
			strconv.FormatFloat(sec, 'f', -1, 64), fmt.Errorf("timestamp out of range"))
	}
	return FromDuration(time.Duration(math.Round(sec*1e6)) * time.Microsecond), nil
}

// FromOLEDate converts fractional days since 1899-12-30 into an instant.
func FromOLEDate(days float64) (time.Time, error) {
	if math.IsNaN(days) || math.IsInf(days, 0) || days < 0 {
		return time.Time{}, fmt.Errorf("invalid OLE date %v", days)
	}
	micros := math.Round(days * 24 * 3600 * 1e6)
	return oleEpoch.Add(time.Duration(micros) * time.Microsecond), nil
}

// ToOLEDate converts an instant into fractional days since 1899-12-30.
func ToOLEDate(t time.Time) float64 {
	return float64(t.Sub(oleEpoch)) / float64(24*time.Hour)
}

// FormatSeconds renders d as decimal seconds rounded to microseconds.
func FormatSeconds(d time.Duration) string {
	sec := math.Round(d.Seconds()*1e6) / 1e6
	return strconv.FormatFloat(sec, 'f', -1, 64)
}

// ParsePlainSeconds parses a decimal seconds cell as written by FormatSeconds.
func ParsePlainSeconds(text string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
