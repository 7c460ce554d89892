package types //nolint:revive // types is a valid package name

import (
	"reflect"
	"testing"
	"time"
)

func TestTable_Cells(t *testing.T) {
	tbl := &Table{
		Columns: []string{TimeColumnClock, "EngineSpeed", "Gear"},
		Units:   map[string]string{"EngineSpeed": "rpm"},
	}
	row := Row{
		Time:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Display: "12:00:00:0000",
		Values: map[string]Value{
			"EngineSpeed": Number(812.5),
			"Gear":        Label("Drive"),
		},
	}

	if got, want := tbl.Cells(row), []string{"12:00:00:0000", "812.5", "Drive"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Cells() = %v, want %v", got, want)
	}
	if got, want := tbl.UnitCells(), []string{"s", "rpm", ""}; !reflect.DeepEqual(got, want) {
		t.Errorf("UnitCells() = %v, want %v", got, want)
	}
	if !tbl.HasUnits() {
		t.Error("HasUnits() = false")
	}
	if tbl.TimeColumn() != TimeColumnClock {
		t.Errorf("TimeColumn() = %q", tbl.TimeColumn())
	}
}

func TestTable_AppendCellsReusesBuffer(t *testing.T) {
	tbl := &Table{Columns: []string{TimeColumnSeconds, "A"}}
	buf := make([]string, 0, 2)

	buf = tbl.AppendCells(buf, Row{Display: "0", Values: map[string]Value{"A": Number(1)}})
	first := &buf[0]
	buf = tbl.AppendCells(buf, Row{Display: "0.5", Values: map[string]Value{}})

	if &buf[0] != first {
		t.Error("AppendCells reallocated a buffer of sufficient capacity")
	}
	if !reflect.DeepEqual(buf, []string{"0.5", ""}) {
		t.Errorf("AppendCells() = %v", buf)
	}
}

func TestFormatID(t *testing.T) {
	tests := []struct {
		id   uint32
		want string
	}{
		{0x100, "0x100"},
		{0x18FEF100, "0x18fef100"},
		{0, "0x0"},
	}
	for _, tt := range tests {
		if got := FormatID(tt.id); got != tt.want {
			t.Errorf("FormatID(%#x) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"integer", Number(1), "1"},
		{"fraction", Number(0.25), "0.25"},
		{"negative", Number(-40), "-40"},
		{"label", Label("Park"), "Park"},
		{"absent", Value{}, ""},
		{"unavailable", Unavailable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDirection(t *testing.T) {
	tests := map[string]Direction{
		"Rx":  DirectionRx,
		"tx":  DirectionTx,
		"ER":  DirectionError,
		"DT":  DirectionUnknown,
		"":    DirectionUnknown,
		"RxX": DirectionUnknown,
	}
	for in, want := range tests {
		if got := ParseDirection(in); got != want {
			t.Errorf("ParseDirection(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewRowRecord(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	row := Row{
		Time:    at,
		Display: "12:00:00:0000",
		Values: map[string]Value{
			"EngineSpeed": Number(812.5),
			"Gear":        Label("Drive"),
			"Brake":       Unavailable,
		},
	}

	rec := NewRowRecord("a.log", 3, row, []string{"Brake", "EngineSpeed", "Gear", "Missing"})
	want := map[string]any{"Brake": nil, "EngineSpeed": 812.5, "Gear": "Drive", "Missing": nil}
	if !reflect.DeepEqual(rec.Values, want) {
		t.Errorf("Values = %v, want %v", rec.Values, want)
	}
	if rec.File != "a.log" || rec.Seq != 3 || !rec.Time.Equal(at) || rec.Display != "12:00:00:0000" {
		t.Errorf("record = %+v", rec)
	}
}
