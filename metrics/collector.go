// Package metrics provides per-run conversion metrics.
//
// The Collector accumulates counters during a single conversion run. It is a
// leaf package with no internal dependencies. Persistence policy metrics are
// absorbed from policy.Stats at run completion rather than recorded live, so
// row writes are never double-counted.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all run metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Files
	FilesStarted    int64 `json:"files_started"`
	FilesCompleted  int64 `json:"files_completed"`
	FilesFailed     int64 `json:"files_failed"`
	FilesStructural int64 `json:"files_structural"`

	// Decoding
	LinesRead    int64 `json:"lines_read"`
	FramesParsed int64 `json:"frames_parsed"`
	ParseErrors  int64 `json:"parse_errors"`
	DecodeErrors int64 `json:"decode_errors"`
	UnknownIDs   int64 `json:"unknown_ids"`
	ErrorFrames  int64 `json:"error_frames"`
	RowsEmitted  int64 `json:"rows_emitted"`

	// Output
	ChunksWritten int64 `json:"chunks_written"`

	// Persistence (absorbed from policy.Stats at run completion)
	RowsReceived  int64 `json:"rows_received"`
	RowsPersisted int64 `json:"rows_persisted"`
	RowsDropped   int64 `json:"rows_dropped"`

	// Lode / Storage
	LodeWriteSuccess int64 `json:"lode_write_success"`
	LodeWriteFailure int64 `json:"lode_write_failure"`

	// Adapter
	PublishSuccess int64 `json:"publish_success"`
	PublishFailure int64 `json:"publish_failure"`

	// Dimensions (informational, set at construction)
	Policy         string `json:"policy"`
	StorageBackend string `json:"storage_backend"`
	RunID          string `json:"run_id"`
	Source         string `json:"source"`
}

// Skipped returns the number of recoverable per-record failures.
func (s Snapshot) Skipped() int64 {
	return s.ParseErrors + s.DecodeErrors
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	filesStarted    int64
	filesCompleted  int64
	filesFailed     int64
	filesStructural int64

	linesRead    int64
	framesParsed int64
	parseErrors  int64
	decodeErrors int64
	unknownIDs   int64
	errorFrames  int64
	rowsEmitted  int64

	chunksWritten int64

	// Set once via AbsorbPolicyStats
	rowsReceived  int64
	rowsPersisted int64
	rowsDropped   int64

	lodeWriteSuccess int64
	lodeWriteFailure int64

	publishSuccess int64
	publishFailure int64

	// Dimensions
	policy         string
	storageBackend string
	runID          string
	source         string
}

// NewCollector creates a Collector with dimension labels.
// Empty dimensions are allowed for runs without persistence.
func NewCollector(policy, storageBackend, runID, source string) *Collector {
	return &Collector{
		policy:         policy,
		storageBackend: storageBackend,
		runID:          runID,
		source:         source,
	}
}

func (c *Collector) add(p *int64, n int64) {
	if c == nil || n == 0 {
		return
	}
	c.mu.Lock()
	*p += n
	c.mu.Unlock()
}

// --- Files ---

// IncFileStarted records a file entering reconstruction.
func (c *Collector) IncFileStarted() {
	if c == nil {
		return
	}
	c.add(&c.filesStarted, 1)
}

// IncFileCompleted records a file that produced a table.
func (c *Collector) IncFileCompleted() {
	if c == nil {
		return
	}
	c.add(&c.filesCompleted, 1)
}

// IncFileFailed records a file that could not be read.
func (c *Collector) IncFileFailed() {
	if c == nil {
		return
	}
	c.add(&c.filesFailed, 1)
}

// IncFileStructural records a file without a session start or records.
func (c *Collector) IncFileStructural() {
	if c == nil {
		return
	}
	c.add(&c.filesStructural, 1)
}

// --- Decoding ---
// Decoding counters are added per file, once the file is finished, so the
// collector lock is not taken per line.

// AddLines records lines (or binary frames) read.
func (c *Collector) AddLines(n int64) {
	if c == nil {
		return
	}
	c.add(&c.linesRead, n)
}

// AddFrames records frames extracted.
func (c *Collector) AddFrames(n int64) {
	if c == nil {
		return
	}
	c.add(&c.framesParsed, n)
}

// AddParseErrors records malformed tokens or lines.
func (c *Collector) AddParseErrors(n int64) {
	if c == nil {
		return
	}
	c.add(&c.parseErrors, n)
}

// AddDecodeErrors records frames the catalog failed to decode.
func (c *Collector) AddDecodeErrors(n int64) {
	if c == nil {
		return
	}
	c.add(&c.decodeErrors, n)
}

// AddUnknownIDs records frames whose id is not in the catalog.
func (c *Collector) AddUnknownIDs(n int64) {
	if c == nil {
		return
	}
	c.add(&c.unknownIDs, n)
}

// AddErrorFrames records bus error frames.
func (c *Collector) AddErrorFrames(n int64) {
	if c == nil {
		return
	}
	c.add(&c.errorFrames, n)
}

// AddRows records rows emitted by the latch.
func (c *Collector) AddRows(n int64) {
	if c == nil {
		return
	}
	c.add(&c.rowsEmitted, n)
}

// --- Output ---

// IncChunkWritten records one CSV chunk written.
func (c *Collector) IncChunkWritten() {
	if c == nil {
		return
	}
	c.add(&c.chunksWritten, 1)
}

// --- Lode / Storage ---
// Lode counters are per-call, not per-record. A single WriteRows call with
// N rows counts as 1 success.

// IncLodeWriteSuccess records a successful Lode write operation (per-call).
func (c *Collector) IncLodeWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.lodeWriteSuccess, 1)
}

// IncLodeWriteFailure records a failed Lode write operation (per-call).
func (c *Collector) IncLodeWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.lodeWriteFailure, 1)
}

// --- Adapter ---

// IncPublishSuccess records a delivered completion event.
func (c *Collector) IncPublishSuccess() {
	if c == nil {
		return
	}
	c.add(&c.publishSuccess, 1)
}

// IncPublishFailure records a completion event that could not be delivered.
func (c *Collector) IncPublishFailure() {
	if c == nil {
		return
	}
	c.add(&c.publishFailure, 1)
}

// --- Persistence (absorbed from policy.Stats) ---

// AbsorbPolicyStats copies persistence counters from policy.Stats into the
// collector. Called once after run completion with the final stats snapshot.
func (c *Collector) AbsorbPolicyStats(total, persisted, dropped int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.rowsReceived = total
	c.rowsPersisted = persisted
	c.rowsDropped = dropped
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		FilesStarted:    c.filesStarted,
		FilesCompleted:  c.filesCompleted,
		FilesFailed:     c.filesFailed,
		FilesStructural: c.filesStructural,

		LinesRead:    c.linesRead,
		FramesParsed: c.framesParsed,
		ParseErrors:  c.parseErrors,
		DecodeErrors: c.decodeErrors,
		UnknownIDs:   c.unknownIDs,
		ErrorFrames:  c.errorFrames,
		RowsEmitted:  c.rowsEmitted,

		ChunksWritten: c.chunksWritten,

		RowsReceived:  c.rowsReceived,
		RowsPersisted: c.rowsPersisted,
		RowsDropped:   c.rowsDropped,

		LodeWriteSuccess: c.lodeWriteSuccess,
		LodeWriteFailure: c.lodeWriteFailure,

		PublishSuccess: c.publishSuccess,
		PublishFailure: c.publishFailure,

		Policy:         c.policy,
		StorageBackend: c.storageBackend,
		RunID:          c.runID,
		Source:         c.source,
	}
}
