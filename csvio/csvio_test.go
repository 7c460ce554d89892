package csvio

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/canlog/merge"
	"github.com/justapithecus/canlog/types"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func writeCSV(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func names(written []Written) []string {
	out := make([]string, len(written))
	for i, w := range written {
		out[i] = filepath.Base(w.Path)
	}
	return out
}

func TestChunkWriter_QuotingAndBytes(t *testing.T) {
	dir := t.TempDir()
	w, err := NewChunkWriter(dir, "a_decoded", []string{"Time", "A", "Label"}, []string{"s", "V", ""}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteRow([]string{"09:00:00:0000", "1", "Park, engaged"}); err != nil {
		t.Fatal(err)
	}
	written, err := w.Close()
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	want := "Time,A,Label\ns,V,\n09:00:00:0000,1,\"Park, engaged\"\n"
	got, err := os.ReadFile(written[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if written[0].Bytes != int64(len(want)) || written[0].Rows != 1 {
		t.Errorf("written = %+v, want %d bytes and 1 row", written[0], len(want))
	}
}

func TestChunkWriter_Split(t *testing.T) {
	tests := []struct {
		name  string
		rows  int
		limit int
		want  []int
		short bool
	}{
		{"row limit split", 25, 10, []int{10, 10, 5}, true},
		{"exact multiple", 20, 10, []int{10, 10}, true},
		{"under limit", 3, 10, []int{3}, true},
		{"no limit", 30, 0, []int{30}, true},
		{"empty", 0, 10, []int{0}, true},
		{"million row chunks", 2_500_000, 1_000_000, []int{1_000_000, 1_000_000, 500_000}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.short && testing.Short() {
				t.Skip("large output")
			}
			dir := t.TempDir()
			w, err := NewChunkWriter(dir, "merged_decoded", []string{"Time (s)", "A"}, []string{"s", "V"}, tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			rec := make([]string, 2)
			for i := range tt.rows {
				rec[0], rec[1] = strconv.Itoa(i), "1"
				if err := w.WriteRow(rec); err != nil {
					t.Fatal(err)
				}
			}
			written, err := w.Close()
			if err != nil {
				t.Fatal(err)
			}

			var sizes []int
			for _, wr := range written {
				sizes = append(sizes, wr.Rows)
			}
			if !reflect.DeepEqual(sizes, tt.want) {
				t.Errorf("sizes = %v, want %v", sizes, tt.want)
			}
			for i, wr := range written {
				if got := filepath.Base(wr.Path); got != merge.ChunkName("merged_decoded", i)+Extension {
					t.Errorf("chunk %d = %s", i, got)
				}
			}
			if !tt.short {
				return
			}
			for i, wr := range written {
				records := readAll(t, wr.Path)
				headerRows := 1
				if i == 0 {
					headerRows = 2
					if !reflect.DeepEqual(records[1], []string{"s", "V"}) {
						t.Errorf("first chunk unit row = %v", records[1])
					}
				}
				if len(records)-headerRows != wr.Rows {
					t.Errorf("chunk %d holds %d data rows, reported %d", i, len(records)-headerRows, wr.Rows)
				}
			}
			if len(written) > 1 {
				if first := readAll(t, written[1].Path)[1][0]; first != strconv.Itoa(tt.limit) {
					t.Errorf("second chunk starts at %q, want %d", first, tt.limit)
				}
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != len(written) {
				t.Errorf("directory holds %d entries, want %d (no temp files)", len(entries), len(written))
			}
		})
	}
}

func TestChunkWriter_WriteRowDoesNotAllocate(t *testing.T) {
	w, err := NewChunkWriter(t.TempDir(), "merged_decoded", []string{"Time (s)", "A", "B"}, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Abort)

	rec := []string{"0.25", "12.5", "Park"}
	if err := w.WriteRow(rec); err != nil {
		t.Fatal(err)
	}
	for _, rows := range []int{1, 1_000, 100_000} {
		t.Run(strconv.Itoa(rows), func(t *testing.T) {
			allocs := testing.AllocsPerRun(3, func() {
				for range rows {
					if err := w.WriteRow(rec); err != nil {
						t.Fatal(err)
					}
				}
			})
			if allocs != 0 {
				t.Errorf("%d rows allocated %v times per pass, want 0", rows, allocs)
			}
		})
	}
}

func TestWriteTable(t *testing.T) {
	start := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	tbl := &types.Table{
		Source:  "a.log",
		Columns: []string{"Time", "A", "B"},
		Units:   map[string]string{"A": "V"},
	}
	for i := range 3 {
		tbl.Rows = append(tbl.Rows, types.Row{
			Time:    start.Add(time.Duration(i) * time.Second),
			Display: "09:00:0" + strconv.Itoa(i) + ":0000",
			Values:  map[string]types.Value{"A": types.Number(1.5), "B": types.Unavailable},
		})
	}

	written, err := WriteTable(filepath.Join(t.TempDir(), "out"), "a_decoded", tbl, 2)
	if err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}
	if got := strings.Join(names(written), ","); got != "a_decoded.csv,a_decoded_part2.csv" {
		t.Errorf("chunks = %s", got)
	}
	want := [][]string{
		{"Time", "A", "B"},
		{"s", "V", ""},
		{"09:00:00:0000", "1.5", ""},
		{"09:00:01:0000", "1.5", ""},
	}
	if got := readAll(t, written[0].Path); !reflect.DeepEqual(got, want) {
		t.Errorf("first chunk = %v, want %v", got, want)
	}
	if got := readAll(t, written[1].Path); !reflect.DeepEqual(got, [][]string{{"Time", "A", "B"}, {"09:00:02:0000", "1.5", ""}}) {
		t.Errorf("second chunk = %v", got)
	}

	tbl.Units = nil
	written, err = WriteTable(t.TempDir(), "a_decoded", tbl, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := readAll(t, written[0].Path); len(got) != 4 || got[1][0] != "09:00:00:0000" {
		t.Errorf("without units = %v", got)
	}
}

func TestMergeFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeCSV(t, dir, "a.csv", "\ufeffTime,X,Z\ns,V,rpm\n09:00:00:0000,1,3\n09:00:00:5000,2,\n")
	b := writeCSV(t, dir, "b.csv", "Time,Y,Z\n09:00:01:0000,7,4\n,,\n")

	out := filepath.Join(dir, "out")
	written, err := MergeFiles(out, "merged_decoded", []string{a, b}, 2)
	if err != nil {
		t.Fatalf("MergeFiles failed: %v", err)
	}
	if got := strings.Join(names(written), ","); got != "merged_decoded.csv,merged_decoded_part2.csv" {
		t.Errorf("chunks = %s", got)
	}

	first := readAll(t, written[0].Path)
	want := [][]string{
		{"Time", "X", "Z", "Y"},
		{"s", "V", "rpm", ""},
		{"09:00:00:0000", "1", "3", ""},
		{"09:00:00:5000", "2", "", ""},
	}
	if !reflect.DeepEqual(first, want) {
		t.Errorf("first chunk = %v, want %v", first, want)
	}
	second := readAll(t, written[1].Path)
	if !reflect.DeepEqual(second, [][]string{{"Time", "X", "Z", "Y"}, {"09:00:01:0000", "", "4", "7"}}) {
		t.Errorf("second chunk = %v", second)
	}
}

func TestMergeFiles_ExplicitTimeColumn(t *testing.T) {
	dir := t.TempDir()
	a := writeCSV(t, dir, "a.csv", "A,Timestamp\n1,0.5\n")

	written, err := MergeFiles(dir, "all", []string{a}, 0, merge.WithTimeColumn("Timestamp"))
	if err != nil {
		t.Fatal(err)
	}
	if got := readAll(t, written[0].Path); !reflect.DeepEqual(got, [][]string{{"Timestamp", "A"}, {"0.5", "1"}}) {
		t.Errorf("merged = %v", got)
	}
}

func TestMergeFiles_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := writeCSV(t, dir, "empty.csv", "")

	tests := []struct {
		name  string
		paths []string
		want  error
	}{
		{"missing file", []string{filepath.Join(dir, "missing.csv")}, types.ErrIO},
		{"empty file", []string{empty}, types.ErrStructural},
		{"no files", nil, merge.ErrNoTables},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MergeFiles(filepath.Join(dir, "out"), "all", tt.paths, 0)
			if !errors.Is(err, tt.want) {
				t.Errorf("MergeFiles() error = %v, want %v", err, tt.want)
			}
		})
	}
}
