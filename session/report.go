package session

import (
	"time"

	"github.com/justapithecus/canlog/types"
)

// FileReport summarizes the reconstruction of one file.
type FileReport struct {
	Path     string       `json:"path"`
	Format   types.Format `json:"format"`
	Start    time.Time    `json:"start,omitzero"`
	HasStart bool         `json:"has_start"`
	Version  string       `json:"version,omitempty"`

	// Lines counts text lines, or frames for measurement files.
	Lines int `json:"lines"`
	// Frames counts data records after the session start.
	Frames int `json:"frames"`
	// Decoded counts frames the catalog decoded into a row update.
	Decoded      int `json:"decoded"`
	Rows         int `json:"rows"`
	ParseErrors  int `json:"parse_errors"`
	DecodeErrors int `json:"decode_errors"`
	// UnknownIDs counts frames whose id the catalog does not define.
	UnknownIDs  int `json:"unknown_ids"`
	ErrorFrames int `json:"error_frames"`
	// Unanchored counts data records before any session start marker.
	Unanchored int  `json:"unanchored"`
	Rollovers  int  `json:"rollovers"`
	Elapsed    bool `json:"elapsed"`

	// Err is the structural or I/O failure that left the file without a table.
	Err error `json:"-"`
}

// Skipped returns the number of records skipped by recoverable errors.
func (r *FileReport) Skipped() int {
	return r.ParseErrors + r.DecodeErrors
}

func (r *FileReport) fields() map[string]any {
	return map[string]any{
		"file":          r.Path,
		"format":        string(r.Format),
		"lines":         r.Lines,
		"frames":        r.Frames,
		"decoded":       r.Decoded,
		"rows":          r.Rows,
		"parse_errors":  r.ParseErrors,
		"decode_errors": r.DecodeErrors,
		"unknown_ids":   r.UnknownIDs,
		"error_frames":  r.ErrorFrames,
		"rollovers":     r.Rollovers,
	}
}
