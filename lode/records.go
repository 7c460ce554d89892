package lode

import (
	"time"

	"github.com/justapithecus/canlog/metrics"
	"github.com/justapithecus/canlog/session"
	"github.com/justapithecus/canlog/types"
)

// Record kinds. record_kind is the last partition key, so each kind lands in
// its own partition.
const (
	RecordKindRow     = "row"
	RecordKindFile    = "file"
	RecordKindSummary = "summary"
)

// SummaryRecord is the storage form of a run summary.
type SummaryRecord struct {
	RecordKind  string `json:"record_kind"`
	RunID       string `json:"run_id"`
	Source      string `json:"source"`
	Day         string `json:"day"`
	Policy      string `json:"policy"`
	Backend     string `json:"storage_backend"`
	CompletedAt string `json:"completed_at"`

	FilesStarted    int64 `json:"files_started"`
	FilesCompleted  int64 `json:"files_completed"`
	FilesFailed     int64 `json:"files_failed"`
	FilesStructural int64 `json:"files_structural"`
	LinesRead       int64 `json:"lines_read"`
	FramesParsed    int64 `json:"frames_parsed"`
	ParseErrors     int64 `json:"parse_errors"`
	DecodeErrors    int64 `json:"decode_errors"`
	UnknownIDs      int64 `json:"unknown_ids"`
	ErrorFrames     int64 `json:"error_frames"`
	RowsEmitted     int64 `json:"rows_emitted"`
	ChunksWritten   int64 `json:"chunks_written"`
	RowsReceived    int64 `json:"rows_received"`
	RowsPersisted   int64 `json:"rows_persisted"`
	RowsDropped     int64 `json:"rows_dropped"`
	LodeWrites      int64 `json:"lode_write_success"`
	LodeFailures    int64 `json:"lode_write_failure"`
}

// toRowRecordMap converts a decoded row to a dataset record.
// Lode's HiveLayout reads partition keys from map records.
func toRowRecordMap(r *types.RowRecord, cfg Config) map[string]any {
	values := make(map[string]any, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	return map[string]any{
		"record_kind": RecordKindRow,
		"source":      cfg.Source,
		"day":         cfg.Day,
		"run_id":      cfg.RunID,
		"policy":      cfg.Policy,
		"file":        r.File,
		"seq":         r.Seq,
		"time":        r.Time.UTC().Format(time.RFC3339Nano),
		"display":     r.Display,
		"values":      values,
	}
}

// toFileRecordMap converts a per-file reconstruction report.
func toFileRecordMap(rep session.FileReport, cfg Config) map[string]any {
	m := map[string]any{
		"record_kind":   RecordKindFile,
		"source":        cfg.Source,
		"day":           cfg.Day,
		"run_id":        cfg.RunID,
		"file":          rep.Path,
		"format":        string(rep.Format),
		"has_start":     rep.HasStart,
		"lines":         rep.Lines,
		"frames":        rep.Frames,
		"decoded":       rep.Decoded,
		"rows":          rep.Rows,
		"parse_errors":  rep.ParseErrors,
		"decode_errors": rep.DecodeErrors,
		"unknown_ids":   rep.UnknownIDs,
		"error_frames":  rep.ErrorFrames,
		"unanchored":    rep.Unanchored,
		"rollovers":     rep.Rollovers,
		"elapsed":       rep.Elapsed,
	}
	if rep.HasStart {
		m["start"] = rep.Start.UTC().Format(time.RFC3339Nano)
	}
	if rep.Version != "" {
		m["version"] = rep.Version
	}
	if rep.Err != nil {
		m["error"] = rep.Err.Error()
	}
	return m
}

// toSummaryRecord converts a metrics snapshot to its storage form.
func toSummaryRecord(s metrics.Snapshot, cfg Config, completedAt time.Time) SummaryRecord {
	return SummaryRecord{
		RecordKind:      RecordKindSummary,
		RunID:           cfg.RunID,
		Source:          cfg.Source,
		Day:             cfg.Day,
		Policy:          s.Policy,
		Backend:         s.StorageBackend,
		CompletedAt:     completedAt.UTC().Format(time.RFC3339),
		FilesStarted:    s.FilesStarted,
		FilesCompleted:  s.FilesCompleted,
		FilesFailed:     s.FilesFailed,
		FilesStructural: s.FilesStructural,
		LinesRead:       s.LinesRead,
		FramesParsed:    s.FramesParsed,
		ParseErrors:     s.ParseErrors,
		DecodeErrors:    s.DecodeErrors,
		UnknownIDs:      s.UnknownIDs,
		ErrorFrames:     s.ErrorFrames,
		RowsEmitted:     s.RowsEmitted,
		ChunksWritten:   s.ChunksWritten,
		RowsReceived:    s.RowsReceived,
		RowsPersisted:   s.RowsPersisted,
		RowsDropped:     s.RowsDropped,
		LodeWrites:      s.LodeWriteSuccess,
		LodeFailures:    s.LodeWriteFailure,
	}
}

// Map returns the record as a dataset record.
func (r SummaryRecord) Map() map[string]any {
	return map[string]any{
		"record_kind":        r.RecordKind,
		"run_id":             r.RunID,
		"source":             r.Source,
		"day":                r.Day,
		"policy":             r.Policy,
		"storage_backend":    r.Backend,
		"completed_at":       r.CompletedAt,
		"files_started":      r.FilesStarted,
		"files_completed":    r.FilesCompleted,
		"files_failed":       r.FilesFailed,
		"files_structural":   r.FilesStructural,
		"lines_read":         r.LinesRead,
		"frames_parsed":      r.FramesParsed,
		"parse_errors":       r.ParseErrors,
		"decode_errors":      r.DecodeErrors,
		"unknown_ids":        r.UnknownIDs,
		"error_frames":       r.ErrorFrames,
		"rows_emitted":       r.RowsEmitted,
		"chunks_written":     r.ChunksWritten,
		"rows_received":      r.RowsReceived,
		"rows_persisted":     r.RowsPersisted,
		"rows_dropped":       r.RowsDropped,
		"lode_write_success": r.LodeWrites,
		"lode_write_failure": r.LodeFailures,
	}
}

// SummaryFromMap reads a summary record back from its dataset form.
// Numbers decoded from JSONL arrive as float64.
func SummaryFromMap(m map[string]any) SummaryRecord {
	return SummaryRecord{
		RecordKind:      toString(m["record_kind"]),
		RunID:           toString(m["run_id"]),
		Source:          toString(m["source"]),
		Day:             toString(m["day"]),
		Policy:          toString(m["policy"]),
		Backend:         toString(m["storage_backend"]),
		CompletedAt:     toString(m["completed_at"]),
		FilesStarted:    toInt64(m["files_started"]),
		FilesCompleted:  toInt64(m["files_completed"]),
		FilesFailed:     toInt64(m["files_failed"]),
		FilesStructural: toInt64(m["files_structural"]),
		LinesRead:       toInt64(m["lines_read"]),
		FramesParsed:    toInt64(m["frames_parsed"]),
		ParseErrors:     toInt64(m["parse_errors"]),
		DecodeErrors:    toInt64(m["decode_errors"]),
		UnknownIDs:      toInt64(m["unknown_ids"]),
		ErrorFrames:     toInt64(m["error_frames"]),
		RowsEmitted:     toInt64(m["rows_emitted"]),
		ChunksWritten:   toInt64(m["chunks_written"]),
		RowsReceived:    toInt64(m["rows_received"]),
		RowsPersisted:   toInt64(m["rows_persisted"]),
		RowsDropped:     toInt64(m["rows_dropped"]),
		LodeWrites:      toInt64(m["lode_write_success"]),
		LodeFailures:    toInt64(m["lode_write_failure"]),
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
