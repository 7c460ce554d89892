// Package timecodec parses source-specific timestamp tokens and reconstructs
// absolute instants from them.
//
// Two reconstruction modes exist:
//   - time of day: the token is a wall-clock time on the context's day base.
//     A token earlier than the previous instant rolls the day base forward.
//   - elapsed: the token is a duration added to the session start.
//
// BUSMASTER tokens select the mode by hour (hour > 23 means elapsed).
// TRC and measurement tokens are always elapsed.
package timecodec

import (
	"time"
)

// Parts is a structured timestamp token.
type Parts struct {
	Hour   int
	Minute int
	Second int
	// Micro is the sub-second field at microsecond resolution, below 1e6.
	Micro int
	// Elapsed forces elapsed mode regardless of Hour.
	Elapsed bool
}

// Duration returns the parts as a duration.
func (p Parts) Duration() time.Duration {
	return time.Duration(p.Hour)*time.Hour +
		time.Duration(p.Minute)*time.Minute +
		time.Duration(p.Second)*time.Second +
		time.Duration(p.Micro)*time.Microsecond
}

// IsElapsed reports whether the parts reconstruct in elapsed mode.
func (p Parts) IsElapsed() bool {
	return p.Elapsed || p.Hour > 23
}

// FromDuration splits a non-negative duration into elapsed-mode Parts.
func FromDuration(d time.Duration) Parts {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Microsecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return Parts{
		Hour:    int(h),
		Minute:  int(m),
		Second:  int(s),
		Micro:   int(d / time.Microsecond),
		Elapsed: true,
	}
}

// Context is the running time state of one file's reconstruction.
// A Context is owned by a single reconstruction and is not safe for
// concurrent use.
type Context struct {
	// SessionStart is the instant parsed from the file's header marker.
	SessionStart time.Time
	// DayBase is the date time-of-day tokens are placed on.
	DayBase time.Time
	// Last is the previously reconstructed instant, valid when HasLast.
	Last    time.Time
	HasLast bool
	// Rollovers counts day-base advances.
	Rollovers int
}

// NewContext returns a context initialized from a session start.
func NewContext(start time.Time) *Context {
	c := &Context{}
	c.Reset(start)
	return c
}

// Reset reinitializes the context for a new session start marker.
func (c *Context) Reset(start time.Time) {
	c.SessionStart = start
	c.DayBase = dateOf(start)
	c.Last = time.Time{}
	c.HasLast = false
	c.Rollovers = 0
}

// ToInstant reconstructs the absolute instant for p and advances the context.
func (c *Context) ToInstant(p Parts) time.Time {
	var t time.Time
	if p.IsElapsed() {
		t = c.SessionStart.Add(p.Duration())
	} else {
		t = c.DayBase.Add(p.Duration())
		if c.HasLast && t.Before(c.Last) {
			c.DayBase = c.DayBase.AddDate(0, 0, 1)
			c.Rollovers++
			t = c.DayBase.Add(p.Duration())
		}
	}
	c.Last = t
	c.HasLast = true
	return t
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
