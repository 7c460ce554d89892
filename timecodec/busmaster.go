package timecodec

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/justapithecus/canlog/types"
)

// Hour width is unbounded: elapsed-mode logs run past 24h (e.g. 31:07:17:2586).
var busmasterToken = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2}):(\d{4,5})$`)

var busmasterStart = regexp.MustCompile(
	`\*{3}START DATE AND TIME\s+(\d{1,2}):(\d{1,2}):(\d{4})\s+(\d{1,2}):(\d{1,2}):(\d{1,2}):(\d{1,4})\*{3}`,
)

// maxMicro keeps the sub-second field below one full second.
const maxMicro = 999_999

// ParseBusmasterToken parses an HH:MM:SS:ssss token.
// The last field counts tenths of a millisecond.
func ParseBusmasterToken(text string) (Parts, error) {
	m := busmasterToken.FindStringSubmatch(text)
	if m == nil {
		return Parts{}, types.NewError(types.ErrParse, "parse_token", text, nil)
	}

	h, err := strconv.Atoi(m[1])
	if err != nil {
		return Parts{}, types.NewError(types.ErrParse, "parse_token", text, err)
	}
	minute, _ := strconv.Atoi(m[2])
	second, _ := strconv.Atoi(m[3])
	sub, _ := strconv.Atoi(m[4])

	if minute > 59 || second > 59 {
		return Parts{}, types.NewError(types.ErrParse, "parse_token", text,
			fmt.Errorf("minute/second out of range"))
	}

	return Parts{
		Hour:   h,
		Minute: minute,
		Second: second,
		Micro:  min(sub*100, maxMicro),
	}, nil
}

// IsBusmasterToken reports whether text is a well-formed BUSMASTER time token.
func IsBusmasterToken(text string) bool {
	_, err := ParseBusmasterToken(text)
	return err == nil
}

// ParseBusmasterStart extracts the session start from a
// ***START DATE AND TIME d:m:yyyy h:m:s:ms*** marker line.
// Returns false if the line carries no valid marker.
func ParseBusmasterStart(line string) (time.Time, bool) {
	m := busmasterStart.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}

	var f [7]int
	for i := range f {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return time.Time{}, false
		}
		f[i] = n
	}
	day, month, year, hour, minute, second, ms := f[0], f[1], f[2], f[3], f[4], f[5], f[6]

	// Four-digit millisecond fields keep their leading three digits.
	if ms > 999 {
		ms, _ = strconv.Atoi(m[7][:3])
	}

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, ms*int(time.Millisecond), time.UTC)
	if t.Day() != day {
		// Normalized past the end of the month.
		return time.Time{}, false
	}
	return t, true
}

// FormatClock renders t as HH:MM:SS:ssss.
func FormatClock(t time.Time) string {
	return fmt.Sprintf("%02d:%02d:%02d:%04d", t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/int(100*time.Microsecond))
}

// FormatElapsed renders d as h:MM:SS:ssss with an unpadded hour.
func FormatElapsed(d time.Duration) string {
	p := FromDuration(d)
	return fmt.Sprintf("%d:%02d:%02d:%04d", p.Hour, p.Minute, p.Second, p.Micro/100)
}
