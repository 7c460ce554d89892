// Package merge combines decoded tables into one column-union table.
//
// The union is planned up front from each table's header and first record,
// then rows are streamed through a Layout into a RowSink one at a time, so
// tables decoded in this run and CSV files written by earlier runs merge the
// same way without being held in memory.
package merge

import (
	"errors"
	"strings"

	"github.com/justapithecus/canlog/timecodec"
	"github.com/justapithecus/canlog/types"
)

// DefaultRowLimit is the default maximum number of data rows per chunk.
const DefaultRowLimit = 1_000_000

// ErrNoTables is returned when there is nothing to merge.
var ErrNoTables = errors.New("no tables to merge")

// RowSink receives merged rows. The record is only valid for the duration
// of the call.
type RowSink interface {
	WriteRow(record []string) error
}

// Source describes one table to merge.
type Source struct {
	// Name says where the table came from, for diagnostics.
	Name   string
	Header []string
	// Units is the unit row aligned with Header. Nil means unknown: Plan
	// then checks whether First is a unit row.
	Units []string
	// First is the table's first record, or nil when it has none.
	First []string
}

// Option configures Plan.
type Option func(*options)

type options struct {
	timeColumn string
}

// WithTimeColumn names the time column explicitly. By default a column named
// "Time" or "Time (s)" is the time column, else the first column.
func WithTimeColumn(name string) Option {
	return func(o *options) { o.timeColumn = name }
}

// Layout maps the columns of each source onto the column union.
type Layout struct {
	// Columns has the time column first, then signals in first-seen order.
	Columns []string
	// Units is aligned with Columns, or nil when no source carried units.
	Units []string

	index     [][]int
	skipFirst []bool
	row       []string
}

// Plan computes the column union of sources in order.
//
// Units from all sources are combined with the last value winning per
// column.
func Plan(sources []Source, opts ...Option) (*Layout, error) {
	if len(sources) == 0 {
		return nil, types.NewError(types.ErrMerge, "merge", "", ErrNoTables)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var (
		timeName string
		position = make(map[string]int)
		units    = make(map[string]string)
		hasUnits bool
	)
	l := &Layout{
		index:     make([][]int, len(sources)),
		skipFirst: make([]bool, len(sources)),
	}
	addColumn := func(name string) int {
		if i, ok := position[name]; ok {
			return i
		}
		position[name] = len(l.Columns)
		l.Columns = append(l.Columns, name)
		return position[name]
	}

	timeIdx := make([]int, len(sources))
	for si, src := range sources {
		timeIdx[si] = o.findTime(src.Header)
		if timeName == "" && timeIdx[si] >= 0 {
			timeName = src.Header[timeIdx[si]]
		}
	}
	if timeName == "" {
		timeName = types.TimeColumnClock
	}
	// The time column is always index 0.
	addColumn(timeName)

	for si, src := range sources {
		ti := timeIdx[si]
		unitRow := src.Units
		if unitRow == nil && src.First != nil && looksLikeUnitRow(src.First, ti) {
			unitRow = src.First
			l.skipFirst[si] = true
		}

		index := make([]int, len(src.Header))
		for ci, name := range src.Header {
			if ci == ti {
				index[ci] = 0
				continue
			}
			index[ci] = addColumn(name)
		}
		l.index[si] = index

		if unitRow != nil {
			hasUnits = true
			for ci, name := range src.Header {
				if ci == ti || ci >= len(unitRow) {
					continue
				}
				units[name] = unitRow[ci]
			}
		}
	}

	if hasUnits {
		l.Units = make([]string, len(l.Columns))
		l.Units[0] = types.TimeUnit
		for i, name := range l.Columns[1:] {
			l.Units[i+1] = units[name]
		}
	}
	l.row = make([]string, len(l.Columns))
	return l, nil
}

// SkipFirst reports whether the first record of source src is its unit row
// and must not be written as data.
func (l *Layout) SkipFirst(src int) bool {
	return l.skipFirst[src]
}

// Write reindexes rec of source src onto the column union and hands it to
// sink. Rows that are empty in every column are dropped; the first result
// reports whether the row was written. Write is not safe for concurrent use.
func (l *Layout) Write(sink RowSink, src int, rec []string) (bool, error) {
	index := l.index[src]
	clear(l.row)
	empty := true
	for ci, cell := range rec {
		if ci >= len(index) {
			break
		}
		l.row[index[ci]] = cell
		if empty && strings.TrimSpace(cell) != "" {
			empty = false
		}
	}
	if empty {
		return false, nil
	}
	return true, sink.WriteRow(l.row)
}

func (o *options) findTime(header []string) int {
	for i, name := range header {
		if o.timeColumn != "" {
			if name == o.timeColumn {
				return i
			}
			continue
		}
		if name == types.TimeColumnClock || name == types.TimeColumnSeconds {
			return i
		}
	}
	if len(header) == 0 {
		return -1
	}
	return 0
}

// looksLikeUnitRow reports whether a leading record is a unit row: its time
// cell is not a time value.
func looksLikeUnitRow(rec []string, timeIdx int) bool {
	if timeIdx < 0 || timeIdx >= len(rec) {
		return false
	}
	return !timecodec.IsTimeCell(rec[timeIdx])
}
