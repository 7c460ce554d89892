package lode

import (
	"errors"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/canlog/metrics"
)

func TestQueryLatestSummary_WriteAndRead(t *testing.T) {
	store := lode.NewMemory()
	factory := sharedFactory(store)

	client, err := NewLodeClientWithFactory(testConfig(), factory)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.WriteRows(t.Context(), testRows()); err != nil {
		t.Fatal(err)
	}

	snap := metrics.Snapshot{
		FilesStarted:   3,
		FilesCompleted: 2,
		FilesFailed:    1,
		ParseErrors:    4,
		RowsEmitted:    120,
		ChunksWritten:  2,
		RowsPersisted:  120,
		Policy:         "buffered",
		StorageBackend: "memory",
	}
	completedAt := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	if err := client.WriteSummary(t.Context(), snap, completedAt); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}
	// A later row snapshot must not hide the summary.
	if err := client.WriteRows(t.Context(), testRows()); err != nil {
		t.Fatal(err)
	}

	ds, err := NewReadDataset("canlog", factory)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := QueryLatestSummary(t.Context(), ds, "", "")
	if err != nil {
		t.Fatalf("QueryLatestSummary failed: %v", err)
	}

	if rec.RecordKind != RecordKindSummary || rec.RunID != "run-001" || rec.Source != "bench-a" {
		t.Errorf("identity = %+v", rec)
	}
	if rec.FilesStarted != 3 || rec.FilesFailed != 1 || rec.RowsEmitted != 120 || rec.ChunksWritten != 2 {
		t.Errorf("counters = %+v", rec)
	}
	if rec.Policy != "buffered" || rec.Backend != "memory" {
		t.Errorf("dimensions = %q/%q", rec.Policy, rec.Backend)
	}
	if rec.CompletedAt != "2024-03-05T10:00:00Z" {
		t.Errorf("CompletedAt = %q", rec.CompletedAt)
	}
}

func TestQueryLatestSummary_Filters(t *testing.T) {
	store := lode.NewMemory()
	factory := sharedFactory(store)

	for i, runID := range []string{"run-1", "run-10"} {
		cfg := testConfig()
		cfg.RunID = runID
		client, err := NewLodeClientWithFactory(cfg, factory)
		if err != nil {
			t.Fatal(err)
		}
		snap := metrics.Snapshot{RowsEmitted: int64(i + 1)}
		if err := client.WriteSummary(t.Context(), snap, time.Now()); err != nil {
			t.Fatal(err)
		}
	}

	ds, _ := NewReadDataset("canlog", factory)

	tests := []struct {
		runID, source string
		wantRows      int64
		wantErr       error
	}{
		{"", "", 2, nil},
		{"run-1", "", 1, nil},
		{"run-10", "bench-a", 2, nil},
		{"run-2", "", 0, ErrNoSummaryFound},
		{"", "bench-b", 0, ErrNoSummaryFound},
	}
	for _, tt := range tests {
		rec, err := QueryLatestSummary(t.Context(), ds, tt.runID, tt.source)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("query(%q,%q) error = %v, want %v", tt.runID, tt.source, err, tt.wantErr)
			continue
		}
		if err == nil && rec.RowsEmitted != tt.wantRows {
			t.Errorf("query(%q,%q) rows = %d, want %d", tt.runID, tt.source, rec.RowsEmitted, tt.wantRows)
		}
	}
}

func TestQueryLatestSummary_RowsOnly(t *testing.T) {
	store := lode.NewMemory()
	client, err := NewLodeClientWithFactory(testConfig(), sharedFactory(store))
	if err != nil {
		t.Fatal(err)
	}
	if err := client.WriteRows(t.Context(), testRows()); err != nil {
		t.Fatal(err)
	}

	ds, _ := NewReadDataset("canlog", sharedFactory(store))
	if _, err := QueryLatestSummary(t.Context(), ds, "", ""); !errors.Is(err, ErrNoSummaryFound) {
		t.Errorf("error = %v, want ErrNoSummaryFound", err)
	}
}

func TestMatchesPartitionValue(t *testing.T) {
	path := "datasets/canlog/partitions/source=a/day=2024-03-05/run_id=run-10/record_kind=row/part.jsonl"
	tests := []struct {
		key, value string
		want       bool
	}{
		{"run_id", "run-10", true},
		{"run_id", "run-1", false},
		{"record_kind", "row", true},
		{"record_kind", "summary", false},
		{"source", "a", true},
	}
	for _, tt := range tests {
		if got := matchesPartitionValue(path, tt.key, tt.value); got != tt.want {
			t.Errorf("matchesPartitionValue(%s=%s) = %v, want %v", tt.key, tt.value, got, tt.want)
		}
	}
}

func TestNewReadDatasetFS(t *testing.T) {
	ds, err := NewReadDatasetFS("canlog", t.TempDir())
	if err != nil {
		t.Fatalf("NewReadDatasetFS failed: %v", err)
	}
	if ds.ID() != "canlog" {
		t.Errorf("Dataset ID = %q, want canlog", ds.ID())
	}
}
