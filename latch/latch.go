// Package latch folds sparse decoded frames into dense rows.
//
// A Latch keeps the last known value of every signal and emits the whole
// mapping on every applied frame. With a stale timeout, a signal whose
// source message has not been seen within the timeout renders as
// unavailable until the source reappears.
package latch

import (
	"maps"
	"sort"
	"time"

	"github.com/justapithecus/canlog/types"
)

// State is the latched signal state. It is handed from one file to the next
// by Clone and is never shared between two latches.
type State struct {
	// Values maps signal name to its last decoded value.
	Values map[string]types.Value
	// LastSeen maps message id to the instant it was last applied.
	LastSeen map[uint32]time.Time
	// Source maps signal name to the first message id that produced it.
	// Staleness of the signal is judged against that id.
	Source map[string]uint32
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Values:   make(map[string]types.Value),
		LastSeen: make(map[uint32]time.Time),
		Source:   make(map[string]uint32),
	}
}

// Clone returns a deep copy. Mutating the copy never affects s.
func (s *State) Clone() *State {
	if s == nil {
		return NewState()
	}
	return &State{
		Values:   maps.Clone(s.Values),
		LastSeen: maps.Clone(s.LastSeen),
		Source:   maps.Clone(s.Source),
	}
}

// Len returns the number of latched signals.
func (s *State) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Values)
}

// Latch applies decoded frames to a State.
type Latch struct {
	state   *State
	timeout time.Duration
	// columns is the sorted set of every signal in state, maintained on insert.
	columns []string
}

// Option configures a Latch.
type Option func(*Latch)

// WithStaleTimeout enables staleness expiry. Zero disables it.
func WithStaleTimeout(d time.Duration) Option {
	return func(l *Latch) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// New creates a Latch that owns state. A nil state starts empty.
// Callers handing state from a previous file pass a Clone.
func New(state *State, opts ...Option) *Latch {
	if state == nil {
		state = NewState()
	}
	if state.Values == nil {
		state.Values = make(map[string]types.Value)
	}
	if state.LastSeen == nil {
		state.LastSeen = make(map[uint32]time.Time)
	}
	if state.Source == nil {
		state.Source = make(map[string]uint32)
	}

	l := &Latch{state: state}
	for _, opt := range opts {
		opt(l)
	}
	l.columns = make([]string, 0, len(state.Values))
	for name := range state.Values {
		l.columns = append(l.columns, name)
	}
	sort.Strings(l.columns)
	return l
}

// Apply latches one decoded frame and returns the dense row at instant.
// The row's Display is left for the caller to render.
func (l *Latch) Apply(instant time.Time, id uint32, decoded map[string]types.Value) types.Row {
	for name, v := range decoded {
		if _, known := l.state.Values[name]; !known {
			l.insertColumn(name)
		}
		if _, ok := l.state.Source[name]; !ok {
			l.state.Source[name] = id
		}
		l.state.Values[name] = v
	}
	// Out-of-order instants never move LastSeen backwards.
	if prev, ok := l.state.LastSeen[id]; !ok || instant.After(prev) {
		l.state.LastSeen[id] = instant
	}

	return types.Row{Time: instant, Values: l.Snapshot(instant)}
}

// Snapshot returns the visible values at instant with staleness applied.
// The latched values themselves are left untouched.
func (l *Latch) Snapshot(instant time.Time) map[string]types.Value {
	out := make(map[string]types.Value, len(l.state.Values))
	for name, v := range l.state.Values {
		if l.stale(name, instant) {
			out[name] = types.Unavailable
			continue
		}
		out[name] = v
	}
	return out
}

func (l *Latch) stale(name string, instant time.Time) bool {
	if l.timeout <= 0 {
		return false
	}
	src, ok := l.state.Source[name]
	if !ok {
		return false
	}
	seen, ok := l.state.LastSeen[src]
	if !ok {
		return true
	}
	return instant.Sub(seen) > l.timeout
}

func (l *Latch) insertColumn(name string) {
	i := sort.SearchStrings(l.columns, name)
	l.columns = append(l.columns, "")
	copy(l.columns[i+1:], l.columns[i:])
	l.columns[i] = name
}

// Columns returns the sorted names of every latched signal.
func (l *Latch) Columns() []string {
	out := make([]string, len(l.columns))
	copy(out, l.columns)
	return out
}

// Handoff returns a copy of the state for the next file.
func (l *Latch) Handoff() *State {
	return l.state.Clone()
}

// Timeout returns the stale timeout, zero when disabled.
func (l *Latch) Timeout() time.Duration {
	return l.timeout
}
