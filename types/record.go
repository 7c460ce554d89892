package types

import "time"

// RowRecord is one decoded row prepared for persistence.
type RowRecord struct {
	// File is the input file the row was decoded from. Empty for merged rows.
	File string
	// Seq is the 1-based position of the row within the run.
	Seq int64
	// Time is the reconstructed instant.
	Time time.Time
	// Display is the time as rendered in the CSV output.
	Display string
	// Values maps each signal to a float64, a string label, or nil when the
	// signal is absent or unavailable.
	Values map[string]any
}

// NewRowRecord converts a table row into a RowRecord.
func NewRowRecord(file string, seq int64, r Row, signals []string) *RowRecord {
	values := make(map[string]any, len(signals))
	for _, name := range signals {
		v := r.Values[name]
		switch v.Kind {
		case ValueNumber:
			values[name] = v.Num
		case ValueLabel:
			values[name] = v.Label
		default:
			values[name] = nil
		}
	}
	return &RowRecord{
		File:    file,
		Seq:     seq,
		Time:    r.Time,
		Display: r.Display,
		Values:  values,
	}
}
