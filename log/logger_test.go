package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/justapithecus/canlog/types"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_RunContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&types.RunMeta{RunID: "run-1", Source: "bench"}).WithOutput(&buf)

	l.Info("file converted", map[string]any{"rows": 12})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e["message"] != "file converted" || e["level"] != "info" {
		t.Errorf("entry = %v", e)
	}
	if e["run_id"] != "run-1" || e["source"] != "bench" {
		t.Errorf("run context missing: %v", e)
	}
	fields, ok := e["fields"].(map[string]any)
	if !ok || fields["rows"] != float64(12) {
		t.Errorf("fields = %v", e["fields"])
	}
	if _, ok := e["timestamp"]; !ok {
		t.Error("timestamp key missing")
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&types.RunMeta{RunID: "run-2"}).WithOutput(&buf).With(map[string]any{"file": "a.log"})

	l.Warn("no session start", nil)
	l.Sugar().Infof("parsed %d of %d lines", 3, 4)

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e["file"] != "a.log" {
			t.Errorf("file context missing: %v", e)
		}
	}
	if entries[1]["message"] != "parsed 3 of 4 lines" {
		t.Errorf("sugared message = %v", entries[1]["message"])
	}
}

func TestNewRotatingLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, closer, err := NewRotatingLogger(&types.RunMeta{RunID: "run-3"}, RotationConfig{Directory: dir})
	if err != nil {
		t.Fatalf("NewRotatingLogger failed: %v", err)
	}
	l.Info("hello", nil)
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "canlog.log"))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"run_id":"run-3"`) {
		t.Errorf("log file = %s", data)
	}
}

func TestNewRotatingLogger_Disabled(t *testing.T) {
	l, closer, err := NewRotatingLogger(&types.RunMeta{RunID: "run-4"}, RotationConfig{})
	if err != nil || l == nil || closer == nil {
		t.Fatalf("NewRotatingLogger() = %v, %v, %v", l, closer, err)
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
