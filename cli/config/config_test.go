package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `source: bench-a
format: busmaster
catalog: ./vehicle.dbc
id_mask: "0x1FFFFFFF"
decode_choices: false
resample: 10ms
stale_timeout: 6s
row_limit: 500000
merge: true
unit_row: false
id_column: true
output_dir: ./out
workers: 4

storage:
  dataset: canlog
  backend: s3
  path: my-bucket/prefix
  region: us-east-1
  endpoint: https://example.com
  s3_path_style: true

policy:
  name: buffered
  max_buffer_rows: 5000
  best_effort: true

adapter:
  type: mqtt
  url: tcp://broker:1883
  topic: fleet/conversions
  qos: 1
  client_id: canlog-bench
  timeout: 10s
  retries: 3

report:
  json: ./out/report.json
  pdf: ./out/report.pdf

log:
  dir: ./logs
  max_size_mb: 50
  max_age_days: 7
  max_backups: 3
  compress: true
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "source", cfg.Source, "bench-a")
	assertEqual(t, "format", cfg.Format, "busmaster")
	assertEqual(t, "catalog", cfg.Catalog, "./vehicle.dbc")
	assertEqual(t, "output_dir", cfg.OutputDir, "./out")
	if cfg.DecodeChoices == nil || *cfg.DecodeChoices {
		t.Errorf("decode_choices = %v, want false", cfg.DecodeChoices)
	}
	if cfg.Merge == nil || !*cfg.Merge || cfg.UnitRow == nil || *cfg.UnitRow {
		t.Errorf("merge/unit_row = %v/%v", cfg.Merge, cfg.UnitRow)
	}
	if cfg.IDColumn == nil || !*cfg.IDColumn {
		t.Errorf("id_column = %v, want true", cfg.IDColumn)
	}
	if cfg.Resample.Duration != 10*time.Millisecond || cfg.StaleTimeout.Duration != 6*time.Second {
		t.Errorf("durations = %v/%v", cfg.Resample.Duration, cfg.StaleTimeout.Duration)
	}
	if cfg.RowLimit != 500000 || cfg.Workers != 4 {
		t.Errorf("row_limit/workers = %d/%d", cfg.RowLimit, cfg.Workers)
	}
	mask, err := ParseIDMask(cfg.IDMask)
	if err != nil || mask != 0x1FFFFFFF {
		t.Errorf("id_mask = %#x, %v", mask, err)
	}

	assertEqual(t, "storage.dataset", cfg.Storage.Dataset, "canlog")
	assertEqual(t, "storage.backend", cfg.Storage.Backend, "s3")
	assertEqual(t, "storage.path", cfg.Storage.Path, "my-bucket/prefix")
	assertEqual(t, "storage.region", cfg.Storage.Region, "us-east-1")
	assertEqual(t, "storage.endpoint", cfg.Storage.Endpoint, "https://example.com")
	if !cfg.Storage.S3PathStyle {
		t.Error("storage.s3_path_style: got false, want true")
	}

	assertEqual(t, "policy.name", cfg.Policy.Name, "buffered")
	if cfg.Policy.MaxBufferRows != 5000 || !cfg.Policy.BestEffort {
		t.Errorf("policy = %+v", cfg.Policy)
	}

	assertEqual(t, "adapter.type", cfg.Adapter.Type, "mqtt")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "tcp://broker:1883")
	assertEqual(t, "adapter.topic", cfg.Adapter.Topic, "fleet/conversions")
	assertEqual(t, "adapter.client_id", cfg.Adapter.ClientID, "canlog-bench")
	if cfg.Adapter.QoS != 1 || cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("adapter qos/timeout = %d/%v", cfg.Adapter.QoS, cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Errorf("adapter.retries = %v", cfg.Adapter.Retries)
	}

	assertEqual(t, "report.json", cfg.Report.JSON, "./out/report.json")
	assertEqual(t, "report.pdf", cfg.Report.PDF, "./out/report.pdf")

	assertEqual(t, "log.dir", cfg.Log.Dir, "./logs")
	if cfg.Log.MaxSizeMB != 50 || cfg.Log.MaxAgeDays != 7 || cfg.Log.MaxBackups != 3 || !cfg.Log.Compress {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoad_EmptyInputs(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"whitespace", "   \n  \n  \n"},
		{"comments", "# This is a comment\n# Another comment\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeTemp(t, tt.content))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Source != "" || cfg.Merge != nil || cfg.Adapter.Retries != nil {
				t.Errorf("expected zero config, got %+v", cfg)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		content string
		mention string
	}{
		{"invalid yaml", "source: [unclosed\n", "invalid YAML"},
		{"unknown key", "source: s\nbogus_key: should_fail\n", "bogus_key"},
		{"unknown nested key", "storage:\n  backend: fs\n  unknown_field: bad\n", "unknown_field"},
		{"bad duration", "stale_timeout: soon\n", "invalid duration"},
		{"bad backend", "storage:\n  backend: gcs\n", "storage.backend"},
		{"bad adapter", "adapter:\n  type: kafka\n", "adapter.type"},
		{"bad qos", "adapter:\n  type: mqtt\n  qos: 2\n", "adapter.qos"},
		{"negative row limit", "row_limit: -1\n", "row_limit"},
		{"bad id mask", "id_mask: ffff\n", "id_mask"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.mention) {
				t.Errorf("error should mention %q, got: %v", tt.mention, err)
			}
		})
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("CANLOG_SOURCE", "expanded-source")
	cfg, err := Load(writeTemp(t, "source: ${CANLOG_SOURCE}\noutput_dir: ${CANLOG_OUT_UNSET:-./out}\n"))
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(t, "source", cfg.Source, "expanded-source")
	assertEqual(t, "output_dir", cfg.OutputDir, "./out")
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	cfg, err := Load(writeTemp(t, "adapter:\n  type: webhook\n  url: https://example.com\n  retries: 0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 0 {
		t.Errorf("retries = %v, want pointer to 0", cfg.Adapter.Retries)
	}
}

func TestParseIDMask(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"", 0, false},
		{"0x7FF", 0x7FF, false},
		{"536870911", 0x1FFFFFFF, false},
		{"0", 0, true},
		{"0x1FFFFFFFF", 0, true},
		{"mask", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseIDMask(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseIDMask(%q) = %#x, %v", tt.in, got, err)
		}
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "canlog.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
