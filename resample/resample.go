// Package resample regrids decoded tables onto a fixed interval.
package resample

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/justapithecus/canlog/timecodec"
	"github.com/justapithecus/canlog/types"
)

// MaxGridRows bounds the number of rows a single regrid may produce.
const MaxGridRows = 50_000_000

// ErrInterval is returned for a non-positive interval.
var ErrInterval = errors.New("resample interval must be positive")

// Table returns t regridded onto instants spaced interval apart, from the
// first to the last observed instant inclusive.
//
// Rows sharing an instant keep the first occurrence. Each grid row carries
// the values of the latest source row at or before its instant; no values
// are interpolated. Units, columns and the display convention are kept.
// t is not modified.
func Table(t *types.Table, interval time.Duration) (*types.Table, error) {
	if interval <= 0 {
		return nil, ErrInterval
	}

	out := &types.Table{
		Source:       t.Source,
		Columns:      append([]string(nil), t.Columns...),
		Units:        maps.Clone(t.Units),
		Convention:   t.Convention,
		SessionStart: t.SessionStart,
		Reference:    t.Reference,
	}
	src := dedupe(t.Rows)
	if len(src) == 0 {
		return out, nil
	}

	first, last := src[0].Time, src[len(src)-1].Time
	n := int64(last.Sub(first)/interval) + 1
	if n > MaxGridRows {
		return nil, types.NewError(types.ErrStructural, "resample", t.Source,
			fmt.Errorf("%d grid rows at %s exceeds limit %d", n, interval, MaxGridRows))
	}

	out.Rows = make([]types.Row, 0, n)
	j := 0
	for i := int64(0); i < n; i++ {
		at := first.Add(time.Duration(i) * interval)
		for j+1 < len(src) && !src[j+1].Time.After(at) {
			j++
		}
		out.Rows = append(out.Rows, types.Row{
			Time:    at,
			Display: timecodec.Format(at, out.Convention, displayRef(out)),
			Values:  maps.Clone(src[j].Values),
		})
	}
	return out, nil
}

// dedupe returns rows ordered by time with later duplicates of an instant dropped.
func dedupe(rows []types.Row) []types.Row {
	sorted := append([]types.Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	out := sorted[:0]
	for _, r := range sorted {
		if n := len(out); n > 0 && out[n-1].Time.Equal(r.Time) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func displayRef(t *types.Table) time.Time {
	if t.Convention == types.ConventionElapsed {
		return t.SessionStart
	}
	return t.Reference
}
