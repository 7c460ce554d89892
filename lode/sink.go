// Package lode publishes conversion output to a Lode dataset.
//
// Records are Hive-partitioned by source/day/run_id/record_kind and encoded
// as JSONL. Decoded rows, per-file reports and the run summary are dataset
// records; CSV chunks are uploaded as sidecar files next to them.
package lode

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/justapithecus/canlog/metrics"
	"github.com/justapithecus/canlog/policy"
	"github.com/justapithecus/canlog/session"
	"github.com/justapithecus/canlog/types"
)

// DefaultDataset is the dataset id used when none is configured.
const DefaultDataset = "canlog"

// partitionKeys is the Hive layout shared by the read and write paths.
var partitionKeys = []string{"source", "day", "run_id", "record_kind"}

// DeriveDay computes the partition day (YYYY-MM-DD, UTC) from the run start.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds dataset configuration. Source, Day and RunID are partition
// keys and are required.
type Config struct {
	Dataset string
	Source  string
	Day     string
	RunID   string
	// Policy is recorded on row records for provenance.
	Policy string
}

// Validate checks that every partition key is set.
func (c Config) Validate() error {
	switch {
	case c.Dataset == "":
		return errors.New("lode: dataset is required")
	case c.Source == "":
		return errors.New("lode: source is required")
	case c.Day == "":
		return errors.New("lode: day is required")
	case c.RunID == "":
		return errors.New("lode: run_id is required")
	}
	return nil
}

// Client abstracts dataset writes.
type Client interface {
	// WriteRows writes decoded rows in order.
	WriteRows(ctx context.Context, rows []*types.RowRecord) error

	// WriteFileReports writes one record per input file.
	WriteFileReports(ctx context.Context, reports []session.FileReport) error

	// WriteSummary writes the run summary record.
	WriteSummary(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error

	// Close releases client resources.
	Close() error
}

// Sink adapts a Client to policy.Sink.
type Sink struct {
	client Client
}

// NewSink creates a new Lode sink.
func NewSink(client Client) *Sink {
	return &Sink{client: client}
}

// WriteRows implements policy.Sink.
func (s *Sink) WriteRows(ctx context.Context, rows []*types.RowRecord) error {
	return s.client.WriteRows(ctx, rows)
}

// Close implements policy.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

var _ policy.Sink = (*Sink)(nil)

// StubClient records writes without persisting.
type StubClient struct {
	mu sync.Mutex

	Rows      []*types.RowRecord
	Reports   []session.FileReport
	Summaries []metrics.Snapshot
	Closed    bool
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteRows implements Client.
func (c *StubClient) WriteRows(_ context.Context, rows []*types.RowRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Rows = append(c.Rows, rows...)
	return nil
}

// WriteFileReports implements Client.
func (c *StubClient) WriteFileReports(_ context.Context, reports []session.FileReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Reports = append(c.Reports, reports...)
	return nil
}

// WriteSummary implements Client.
func (c *StubClient) WriteSummary(_ context.Context, snap metrics.Snapshot, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Summaries = append(c.Summaries, snap)
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

var _ Client = (*StubClient)(nil)
