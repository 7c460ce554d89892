package types

import (
	"strconv"
	"time"
)

// Time column names used by the supported source formats.
const (
	TimeColumnClock   = "Time"
	TimeColumnSeconds = "Time (s)"
)

// TimeUnit is the unit-row entry for the time column.
const TimeUnit = "s"

// IDColumn is the optional measurement column holding the message id that
// produced each row.
const IDColumn = "CAN_ID"

// FormatID renders a message id as lower-case hex with a 0x prefix.
func FormatID(id uint32) string {
	return "0x" + strconv.FormatUint(uint64(id), 16)
}

// TimeConvention selects how a row's display time is rendered.
type TimeConvention string

const (
	// ConventionTimeOfDay renders wall-clock time as HH:MM:SS:ssss.
	ConventionTimeOfDay TimeConvention = "time_of_day"
	// ConventionElapsed renders time since session start as h:MM:SS:ssss.
	ConventionElapsed TimeConvention = "elapsed"
	// ConventionSeconds renders decimal seconds since a reference instant.
	ConventionSeconds TimeConvention = "seconds"
)

// Row is one dense snapshot of every latched signal at an instant.
type Row struct {
	// Time is the reconstructed absolute instant. Strictly increasing within a Table.
	Time time.Time
	// Display is the time rendered in the table's convention.
	Display string
	// Values holds every signal known at Time.
	Values map[string]Value
}

// Table is the decoded output of one input file.
type Table struct {
	// Source is the input path the table was decoded from.
	Source string
	// Columns lists column names with the time column first.
	Columns []string
	// Units maps signal names to physical units. Nil when no unit row is emitted.
	Units map[string]string
	// Rows are ordered by strictly increasing Time.
	Rows []Row
	// Convention is the display convention for the time column.
	Convention TimeConvention
	// SessionStart is the file's embedded session start.
	SessionStart time.Time
	// Reference is the instant ConventionSeconds offsets are measured from.
	Reference time.Time
}

// TimeColumn returns the name of the time column.
func (t *Table) TimeColumn() string {
	if len(t.Columns) == 0 {
		return ""
	}
	return t.Columns[0]
}

// Signals returns the non-time columns.
func (t *Table) Signals() []string {
	if len(t.Columns) < 2 {
		return nil
	}
	return t.Columns[1:]
}

// HasUnits reports whether the table carries a unit row.
func (t *Table) HasUnits() bool {
	return t.Units != nil
}

// UnitCells renders the unit row aligned with Columns.
func (t *Table) UnitCells() []string {
	cells := make([]string, len(t.Columns))
	if len(cells) == 0 {
		return cells
	}
	cells[0] = TimeUnit
	for i, name := range t.Columns[1:] {
		cells[i+1] = t.Units[name]
	}
	return cells
}

// Cells renders a row aligned with Columns.
func (t *Table) Cells(r Row) []string {
	return t.AppendCells(make([]string, 0, len(t.Columns)), r)
}

// AppendCells renders a row aligned with Columns into dst[:0], so callers
// streaming many rows can reuse one slice.
func (t *Table) AppendCells(dst []string, r Row) []string {
	dst = dst[:0]
	if len(t.Columns) == 0 {
		return dst
	}
	dst = append(dst, r.Display)
	for _, name := range t.Columns[1:] {
		dst = append(dst, r.Values[name].String())
	}
	return dst
}

// Empty reports whether the table holds no data rows.
func (t *Table) Empty() bool {
	return len(t.Rows) == 0
}
