package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("strict", "fs", "run-001", "bench")

	c.IncFileStarted()
	c.IncFileStarted()
	c.IncFileStarted()
	c.IncFileCompleted()
	c.IncFileFailed()
	c.IncFileStructural()
	c.AddLines(120)
	c.AddFrames(100)
	c.AddParseErrors(3)
	c.AddDecodeErrors(2)
	c.AddUnknownIDs(7)
	c.AddErrorFrames(1)
	c.AddRows(95)
	c.IncChunkWritten()
	c.IncChunkWritten()
	c.IncLodeWriteSuccess()
	c.IncLodeWriteSuccess()
	c.IncLodeWriteFailure()
	c.IncPublishSuccess()
	c.IncPublishFailure()

	s := c.Snapshot()

	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"FilesStarted", s.FilesStarted, 3},
		{"FilesCompleted", s.FilesCompleted, 1},
		{"FilesFailed", s.FilesFailed, 1},
		{"FilesStructural", s.FilesStructural, 1},
		{"LinesRead", s.LinesRead, 120},
		{"FramesParsed", s.FramesParsed, 100},
		{"ParseErrors", s.ParseErrors, 3},
		{"DecodeErrors", s.DecodeErrors, 2},
		{"UnknownIDs", s.UnknownIDs, 7},
		{"ErrorFrames", s.ErrorFrames, 1},
		{"RowsEmitted", s.RowsEmitted, 95},
		{"ChunksWritten", s.ChunksWritten, 2},
		{"LodeWriteSuccess", s.LodeWriteSuccess, 2},
		{"LodeWriteFailure", s.LodeWriteFailure, 1},
		{"PublishSuccess", s.PublishSuccess, 1},
		{"PublishFailure", s.PublishFailure, 1},
		{"Skipped", s.Skipped(), 5},
	}
	for _, tc := range checks {
		if tc.got != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, tc.got, tc.want)
		}
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("buffered", "s3", "run-42", "dyno")
	s := c.Snapshot()

	if s.Policy != "buffered" {
		t.Errorf("Policy = %q, want %q", s.Policy, "buffered")
	}
	if s.StorageBackend != "s3" {
		t.Errorf("StorageBackend = %q, want %q", s.StorageBackend, "s3")
	}
	if s.RunID != "run-42" {
		t.Errorf("RunID = %q, want %q", s.RunID, "run-42")
	}
	if s.Source != "dyno" {
		t.Errorf("Source = %q, want %q", s.Source, "dyno")
	}
}

func TestCollector_AbsorbPolicyStats(t *testing.T) {
	c := NewCollector("buffered", "fs", "run-1", "")
	c.AbsorbPolicyStats(100, 90, 10)

	s := c.Snapshot()
	if s.RowsReceived != 100 || s.RowsPersisted != 90 || s.RowsDropped != 10 {
		t.Errorf("absorbed = %d/%d/%d, want 100/90/10", s.RowsReceived, s.RowsPersisted, s.RowsDropped)
	}

	// A second absorb replaces rather than accumulates.
	c.AbsorbPolicyStats(5, 5, 0)
	s = c.Snapshot()
	if s.RowsReceived != 5 || s.RowsDropped != 0 {
		t.Errorf("after second absorb = %d/%d, want 5/0", s.RowsReceived, s.RowsDropped)
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("strict", "fs", "run-1", "")
	c.AddRows(10)
	before := c.Snapshot()

	c.AddRows(5)
	if before.RowsEmitted != 10 {
		t.Errorf("snapshot mutated: RowsEmitted = %d, want 10", before.RowsEmitted)
	}
	if after := c.Snapshot(); after.RowsEmitted != 15 {
		t.Errorf("RowsEmitted = %d, want 15", after.RowsEmitted)
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	c.IncFileStarted()
	c.IncFileCompleted()
	c.IncFileFailed()
	c.IncFileStructural()
	c.AddLines(1)
	c.AddFrames(1)
	c.AddParseErrors(1)
	c.AddDecodeErrors(1)
	c.AddUnknownIDs(1)
	c.AddErrorFrames(1)
	c.AddRows(1)
	c.IncChunkWritten()
	c.IncLodeWriteSuccess()
	c.IncLodeWriteFailure()
	c.IncPublishSuccess()
	c.IncPublishFailure()
	c.AbsorbPolicyStats(1, 1, 0)

	if s := c.Snapshot(); s != (Snapshot{}) {
		t.Errorf("nil collector snapshot = %+v, want zero", s)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("strict", "fs", "run-1", "")

	const goroutines = 16
	const perGoroutine = 500

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				c.AddFrames(1)
				c.AddRows(2)
				_ = c.Snapshot()
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.FramesParsed != goroutines*perGoroutine {
		t.Errorf("FramesParsed = %d, want %d", s.FramesParsed, goroutines*perGoroutine)
	}
	if s.RowsEmitted != 2*goroutines*perGoroutine {
		t.Errorf("RowsEmitted = %d, want %d", s.RowsEmitted, 2*goroutines*perGoroutine)
	}
}

func TestCollector_ZeroValueSnapshot(t *testing.T) {
	var c Collector
	s := c.Snapshot()
	if s.FilesStarted != 0 || s.Policy != "" {
		t.Errorf("zero collector snapshot = %+v", s)
	}
}
