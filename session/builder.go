package session

import (
	"sort"
	"time"

	"github.com/justapithecus/canlog/latch"
	"github.com/justapithecus/canlog/timecodec"
	"github.com/justapithecus/canlog/types"
)

// builder accumulates one file's rows keyed by instant.
type builder struct {
	latch *latch.Latch
	rows  []types.Row
	// index maps an instant (UnixNano) to its row.
	index map[int64]int
	// unordered is set once an instant arrives earlier than the last row.
	unordered bool
	// elapsed is set when any BUSMASTER token was in elapsed mode.
	elapsed bool
	// idColumn tags every row with the id of its latest frame.
	idColumn bool
}

func newBuilder(l *latch.Latch) *builder {
	return &builder{latch: l, index: make(map[int64]int)}
}

// add latches one decoded frame. Frames at an instant already present fold
// into that row; the later update wins per signal.
func (b *builder) add(instant time.Time, token string, id uint32, decoded map[string]types.Value) {
	row := b.latch.Apply(instant, id, decoded)
	key := instant.UnixNano()

	if i, ok := b.index[key]; ok {
		if i == len(b.rows)-1 {
			b.rows[i].Values = row.Values
		} else {
			for name, v := range decoded {
				b.rows[i].Values[name] = v
			}
		}
		b.tag(i, id)
		return
	}

	if n := len(b.rows); n > 0 && instant.Before(b.rows[n-1].Time) {
		b.unordered = true
	}
	row.Display = token
	b.index[key] = len(b.rows)
	b.rows = append(b.rows, row)
	b.tag(len(b.rows)-1, id)
}

func (b *builder) tag(i int, id uint32) {
	if b.idColumn {
		b.rows[i].Values[types.IDColumn] = types.Label(types.FormatID(id))
	}
}

// table finalizes the rows into a Table. ref is the batch reference used by
// the seconds convention.
func (b *builder) table(info FileInfo, ref time.Time) *types.Table {
	if b.unordered {
		sort.SliceStable(b.rows, func(i, j int) bool { return b.rows[i].Time.Before(b.rows[j].Time) })
	}

	columns := []string{info.Format.TimeColumn()}
	if b.idColumn {
		columns = append(columns, types.IDColumn)
	}
	t := &types.Table{
		Source:       info.Path,
		Columns:      append(columns, b.latch.Columns()...),
		Rows:         b.rows,
		SessionStart: info.Start,
	}

	switch {
	case info.Format != types.FormatBusmaster:
		t.Convention = types.ConventionSeconds
		t.Reference = ref
		for i := range t.Rows {
			t.Rows[i].Display = timecodec.Format(t.Rows[i].Time, t.Convention, ref)
		}
	case b.elapsed:
		t.Convention = types.ConventionElapsed
		t.Reference = info.Start
	default:
		t.Convention = types.ConventionTimeOfDay
		t.Reference = info.Start
	}
	return t
}
