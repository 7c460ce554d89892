package types

import "strconv"

// ValueKind discriminates the contents of a Value.
type ValueKind uint8

const (
	// ValueAbsent is the zero Value: the signal was never observed.
	ValueAbsent ValueKind = iota
	// ValueNumber is a scaled physical value.
	ValueNumber
	// ValueLabel is an enumerated value-table label.
	ValueLabel
	// ValueUnavailable marks a latched value whose source went stale.
	ValueUnavailable
)

// Value is one decoded signal value.
type Value struct {
	Kind  ValueKind
	Num   float64
	Label string
}

// Unavailable is the sentinel emitted for stale signals.
var Unavailable = Value{Kind: ValueUnavailable}

// Number returns a numeric Value.
func Number(f float64) Value { return Value{Kind: ValueNumber, Num: f} }

// Label returns an enumerated Value.
func Label(s string) Value { return Value{Kind: ValueLabel, Label: s} }

// Present reports whether v carries an observed value.
func (v Value) Present() bool {
	return v.Kind == ValueNumber || v.Kind == ValueLabel
}

// String renders v as a CSV cell. Absent and unavailable values render empty.
func (v Value) String() string {
	switch v.Kind {
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueLabel:
		return v.Label
	default:
		return ""
	}
}
