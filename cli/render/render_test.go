package render

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"table", FormatTable, false},
		{"yaml", FormatYAML, false},
		{"", "", false},
		{"xml", "", true},
		{"csv", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}

	if _, err := ParseFormat("xml"); !strings.Contains(err.Error(), "json, table, or yaml") {
		t.Errorf("error message should mention valid formats, got: %v", err)
	}
}

type message struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Signals []string `json:"signals"`
	hidden  int
}

func render(t *testing.T, format Format, data any) string {
	t.Helper()
	var buf bytes.Buffer
	if err := NewRendererWithWriter(format, &buf).Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return buf.String()
}

func TestRenderer_JSON(t *testing.T) {
	got := render(t, FormatJSON, map[string]string{"key": "value"})
	if got != "{\n  \"key\": \"value\"\n}\n" {
		t.Errorf("JSON output = %q", got)
	}
}

func TestRenderer_YAML(t *testing.T) {
	got := render(t, FormatYAML, map[string]any{"key": "value", "n": 3})
	if got != "key: value\nn: 3\n" {
		t.Errorf("YAML output = %q", got)
	}
}

func TestRenderer_TableStruct(t *testing.T) {
	got := render(t, FormatTable, &message{ID: "0x100", Name: "First", Signals: []string{"A", "B"}, hidden: 1})

	for _, want := range []string{"id:", "0x100", "name:", "First", "signals:", "A,B"} {
		if !strings.Contains(got, want) {
			t.Errorf("table output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "hidden") {
		t.Errorf("unexported field rendered:\n%s", got)
	}
}

func TestRenderer_TableSlice(t *testing.T) {
	got := render(t, FormatTable, []message{
		{ID: "0x100", Name: "First"},
		{ID: "0x200", Name: "Second"},
	})

	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2:\n%s", len(lines), got)
	}
	if fields := strings.Fields(lines[0]); strings.Join(fields, " ") != "id name signals" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "0x200") || !strings.Contains(lines[2], "[]") {
		t.Errorf("row = %q", lines[2])
	}
}

func TestRenderer_TableMapSorted(t *testing.T) {
	got := render(t, FormatTable, map[string]any{"zeta": 1, "alpha": time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)})

	if strings.Index(got, "alpha") > strings.Index(got, "zeta") {
		t.Errorf("map keys not sorted:\n%s", got)
	}
	if !strings.Contains(got, "2024-03-05T09:00:00Z") {
		t.Errorf("time not RFC 3339:\n%s", got)
	}
}

func TestRenderer_TableEmptySlice(t *testing.T) {
	if got := render(t, FormatTable, []string{}); !strings.Contains(got, "(no results)") {
		t.Errorf("empty slice should show '(no results)', got: %s", got)
	}
}

func TestRenderer_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRendererWithWriter("xml", &buf).Render(1); err == nil {
		t.Error("expected error for unknown format")
	}
}
