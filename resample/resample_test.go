package resample

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/canlog/types"
)

var start = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

func row(ms int, values map[string]types.Value) types.Row {
	return types.Row{
		Time:    start.Add(time.Duration(ms) * time.Millisecond),
		Display: "orig",
		Values:  values,
	}
}

func num(f float64) types.Value { return types.Number(f) }

func secondsTable(rows ...types.Row) *types.Table {
	return &types.Table{
		Source:       "a.trc",
		Columns:      []string{types.TimeColumnSeconds, "A", "B"},
		Units:        map[string]string{"A": "V", "B": ""},
		Rows:         rows,
		Convention:   types.ConventionSeconds,
		SessionStart: start,
		Reference:    start,
	}
}

func TestTable_ForwardFill(t *testing.T) {
	in := secondsTable(
		row(0, map[string]types.Value{"A": num(1)}),
		row(250, map[string]types.Value{"A": num(2)}),
		row(700, map[string]types.Value{"A": num(2), "B": num(5)}),
		row(1000, map[string]types.Value{"A": num(3), "B": num(5)}),
	)

	out, err := Table(in, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}

	var got []string
	for _, r := range out.Rows {
		got = append(got, strings.Join(out.Cells(r), ","))
	}
	want := []string{"0,1,", "0.5,2,", "1,3,5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(out.Units, in.Units) {
		t.Errorf("Units = %v, want %v", out.Units, in.Units)
	}
}

func TestTable_KeepsFirstDuplicate(t *testing.T) {
	in := secondsTable(
		row(0, map[string]types.Value{"A": num(1)}),
		row(0, map[string]types.Value{"A": num(9)}),
		row(100, map[string]types.Value{"A": num(2)}),
	)

	out, err := Table(in, 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(out.Rows))
	}
	if v := out.Rows[0].Values["A"]; v.Num != 1 {
		t.Errorf("first row A = %v, want 1 (first occurrence)", v)
	}
}

func TestTable_LastInstantInclusive(t *testing.T) {
	in := secondsTable(
		row(0, map[string]types.Value{"A": num(1)}),
		row(1000, map[string]types.Value{"A": num(2)}),
	)

	out, err := Table(in, 250*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(out.Rows))
	}
	if out.Rows[4].Values["A"].Num != 2 {
		t.Errorf("last row A = %v, want 2", out.Rows[4].Values["A"])
	}
}

func TestTable_Idempotent(t *testing.T) {
	in := secondsTable(
		row(0, map[string]types.Value{"A": num(1)}),
		row(130, map[string]types.Value{"A": num(2), "B": num(4)}),
		row(270, map[string]types.Value{"A": num(2), "B": types.Unavailable}),
		row(910, map[string]types.Value{"A": num(7), "B": num(4)}),
	)

	once, err := Table(in, 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Table(once, 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("resampling a regridded table changed it:\nonce  %+v\ntwice %+v", once.Rows, twice.Rows)
	}
}

func TestTable_RerendersConvention(t *testing.T) {
	tests := []struct {
		name       string
		convention types.TimeConvention
		want       string
	}{
		{"time of day", types.ConventionTimeOfDay, "09:00:00:5000"},
		{"elapsed", types.ConventionElapsed, "0:00:00:5000"},
		{"seconds", types.ConventionSeconds, "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := secondsTable(
				row(0, map[string]types.Value{"A": num(1)}),
				row(500, map[string]types.Value{"A": num(2)}),
			)
			in.Convention = tt.convention

			out, err := Table(in, 500*time.Millisecond)
			if err != nil {
				t.Fatal(err)
			}
			if got := out.Rows[1].Display; got != tt.want {
				t.Errorf("Display = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTable_DoesNotModifyInput(t *testing.T) {
	in := secondsTable(
		row(100, map[string]types.Value{"A": num(2)}),
		row(0, map[string]types.Value{"A": num(1)}),
	)

	out, err := Table(in, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	out.Rows[0].Values["A"] = num(99)

	if in.Rows[0].Values["A"].Num != 2 || in.Rows[1].Values["A"].Num != 1 {
		t.Errorf("input rows changed: %+v", in.Rows)
	}
	if in.Rows[0].Display != "orig" {
		t.Errorf("input display changed: %q", in.Rows[0].Display)
	}
}

func TestTable_Errors(t *testing.T) {
	in := secondsTable(row(0, nil), row(int(time.Hour/time.Millisecond)*24*365, nil))

	if _, err := Table(in, 0); !errors.Is(err, ErrInterval) {
		t.Errorf("zero interval error = %v, want ErrInterval", err)
	}
	if _, err := Table(in, time.Microsecond); !errors.Is(err, types.ErrStructural) {
		t.Errorf("oversized grid error = %v, want ErrStructural", err)
	}
}

func TestTable_Empty(t *testing.T) {
	out, err := Table(secondsTable(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Empty() || len(out.Columns) != 3 {
		t.Errorf("out = %+v", out)
	}
}
