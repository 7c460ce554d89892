// Package report renders the conversion run report as JSON or PDF.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/justapithecus/canlog/metrics"
	"github.com/justapithecus/canlog/policy"
	"github.com/justapithecus/canlog/session"
	"github.com/justapithecus/canlog/types"
)

// Report is the structured run report.
type Report struct {
	RunID      string              `json:"run_id"`
	Source     string              `json:"source"`
	Version    string              `json:"version"`
	Outcome    types.OutcomeStatus `json:"outcome"`
	Message    string              `json:"message"`
	ExitCode   int                 `json:"exit_code"`
	StartedAt  time.Time           `json:"started_at"`
	DurationMs int64               `json:"duration_ms"`
	// Reference is the earliest session start in the batch.
	Reference time.Time `json:"reference,omitzero"`

	Files   []File            `json:"files"`
	Outputs []Output          `json:"outputs"`
	Policy  *Policy           `json:"policy,omitempty"`
	Metrics *metrics.Snapshot `json:"metrics"`
}

// File is one input file's line in the report.
type File struct {
	Path       string `json:"path"`
	Format     string `json:"format"`
	Start      string `json:"start,omitempty"`
	Lines      int    `json:"lines"`
	Parsed     int    `json:"parsed"`
	Skipped    int    `json:"skipped"`
	UnknownIDs int    `json:"unknown_ids"`
	Rows       int    `json:"rows"`
	Rollovers  int    `json:"rollovers,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Output is one written CSV chunk.
type Output struct {
	Path  string `json:"path"`
	Rows  int    `json:"rows"`
	Bytes int64  `json:"bytes"`
}

// Policy holds persistence stats.
type Policy struct {
	Name      string `json:"name"`
	Received  int64  `json:"rows_received"`
	Persisted int64  `json:"rows_persisted"`
	Dropped   int64  `json:"rows_dropped"`
	Flushes   int64  `json:"flushes"`
}

// FileFrom converts a reconstruction report.
func FileFrom(rep session.FileReport) File {
	f := File{
		Path:       rep.Path,
		Format:     string(rep.Format),
		Lines:      rep.Lines,
		Parsed:     rep.Frames,
		Skipped:    rep.Skipped(),
		UnknownIDs: rep.UnknownIDs,
		Rows:       rep.Rows,
		Rollovers:  rep.Rollovers,
	}
	if rep.HasStart {
		f.Start = rep.Start.Format(time.RFC3339Nano)
	}
	if rep.Err != nil {
		f.Error = rep.Err.Error()
	}
	return f
}

// PolicyFrom converts policy statistics.
func PolicyFrom(name string, s policy.Stats) *Policy {
	return &Policy{
		Name:      name,
		Received:  s.TotalRows,
		Persisted: s.RowsPersisted,
		Dropped:   s.RowsDropped,
		Flushes:   s.FlushCount,
	}
}

// WriteJSON writes the report as indented JSON to path. "-" writes to stderr.
func WriteJSON(r *Report, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}
	if path == "-" {
		return writeJSONTo(r, os.Stderr)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeJSONTo(r, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return f.Close()
}

func writeJSONTo(r *Report, w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
