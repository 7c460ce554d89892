// Package session reconstructs decoded tables from a batch of log files.
//
// The Reconstructor orders files by their embedded session start, then
// decodes them one at a time. A single latch state is handed from each file
// to the next, so signals that are not retransmitted in a later file keep
// their last value. Time reconstruction state is reset for every file.
//
// Recoverable failures (malformed lines, undecodable frames) are counted in
// the file's FileReport and never abort a file. A text log without a session
// start or a file without any decoded record yields an empty table. A
// measurement container without a start time is anchored at the Unix epoch.
// An unreadable file fails alone; the rest of the batch continues.
//
// Stream hands each table to a TableFunc as soon as its file is done and
// then drops the rows, so only one file's rows and the latch state stay
// resident.
package session

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/justapithecus/canlog/catalog"
	"github.com/justapithecus/canlog/latch"
	"github.com/justapithecus/canlog/log"
	"github.com/justapithecus/canlog/metrics"
	"github.com/justapithecus/canlog/types"
)

// maxLineSize bounds a single text log line.
const maxLineSize = 1 << 20

// cancelCheckInterval is how many lines are processed between context checks.
const cancelCheckInterval = 4096

// ErrNoInputs is returned by Run when no paths are given.
var ErrNoInputs = errors.New("no input files")

// measureEpoch anchors measurement containers that carry no start time, so
// their timestamps read as seconds since the Unix epoch.
var measureEpoch = time.Unix(0, 0).UTC()

// Reconstructor drives frame extraction, time reconstruction, decoding and
// latching over a batch of files.
type Reconstructor struct {
	catalog      catalog.Catalog
	format       types.Format
	idMask       uint32
	staleTimeout time.Duration
	workers      int
	unitRow      bool
	idColumn     bool
	logger       *log.Logger
	collector    *metrics.Collector
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithFormat forces the input format. Empty detects it per file by extension.
func WithFormat(f types.Format) Option {
	return func(r *Reconstructor) { r.format = f }
}

// WithIDMask sets the identifier mask applied to extracted frames.
func WithIDMask(mask uint32) Option {
	return func(r *Reconstructor) {
		if mask != 0 {
			r.idMask = mask
		}
	}
}

// WithStaleTimeout enables latch staleness expiry.
func WithStaleTimeout(d time.Duration) Option {
	return func(r *Reconstructor) { r.staleTimeout = d }
}

// WithWorkers bounds parallel probing.
func WithWorkers(n int) Option {
	return func(r *Reconstructor) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithUnitRow selects whether tables carry a unit row. Enabled by default.
func WithUnitRow(enabled bool) Option {
	return func(r *Reconstructor) { r.unitRow = enabled }
}

// WithIDColumn adds a CAN_ID column to measurement tables holding the id of
// the message that produced each row.
func WithIDColumn(enabled bool) Option {
	return func(r *Reconstructor) { r.idColumn = enabled }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Reconstructor) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithCollector sets the metrics collector. A nil collector is allowed.
func WithCollector(c *metrics.Collector) Option {
	return func(r *Reconstructor) { r.collector = c }
}

// New creates a Reconstructor decoding with cat.
func New(cat catalog.Catalog, opts ...Option) *Reconstructor {
	r := &Reconstructor{
		catalog: cat,
		idMask:  types.IDMask,
		workers: runtime.GOMAXPROCS(0),
		unitRow: true,
		logger:  log.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is the outcome of reconstructing a batch.
type Result struct {
	// Tables holds one table per file in processing order. Files that
	// failed or had no records contribute an empty table. After Stream the
	// tables keep their columns but not their rows.
	Tables []*types.Table
	// Reports holds one report per file, aligned with Tables.
	Reports []FileReport
	// Reference is the earliest session start in the batch.
	Reference time.Time
	// State is the latch state after the last file.
	State *latch.State
}

// Mergeable returns the tables of files that produced rows, in processing
// order.
func (res *Result) Mergeable() []*types.Table {
	var out []*types.Table
	for i, t := range res.Tables {
		if i < len(res.Reports) && res.Reports[i].Rows > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Rows returns the number of rows reconstructed across the batch.
func (res *Result) Rows() int64 {
	var n int64
	for _, rep := range res.Reports {
		n += int64(rep.Rows)
	}
	return n
}

// Failed returns reports of files that produced no table.
func (res *Result) Failed() []FileReport {
	var out []FileReport
	for _, rep := range res.Reports {
		if rep.Err != nil {
			out = append(out, rep)
		}
	}
	return out
}

// Run reconstructs every file in paths. Per-file failures are reported in
// the Result; the returned error is only set when the batch itself cannot
// proceed (no inputs, cancellation).
func (r *Reconstructor) Run(ctx context.Context, paths []string) (*Result, error) {
	if len(paths) == 0 {
		return nil, ErrNoInputs
	}

	infos, err := r.Scan(ctx, paths)
	if err != nil {
		return nil, err
	}
	return r.RunScanned(ctx, infos, nil)
}

// TableFunc consumes the table of one file that produced rows. rep is the
// file's report; the function may not retain t after it returns.
type TableFunc func(t *types.Table, rep *FileReport) error

// Stream reconstructs every file in paths like Run, handing each non-empty
// table to fn in processing order. Rows are released once fn returns. An
// error from fn stops the batch and is returned as is.
func (r *Reconstructor) Stream(ctx context.Context, paths []string, fn TableFunc) (*Result, error) {
	if len(paths) == 0 {
		return nil, ErrNoInputs
	}

	infos, err := r.Scan(ctx, paths)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, infos, nil, fn)
}

// RunScanned reconstructs already-scanned files in the given order, starting
// from state (nil starts empty). state is not modified.
func (r *Reconstructor) RunScanned(ctx context.Context, infos []FileInfo, state *latch.State) (*Result, error) {
	return r.run(ctx, infos, state, nil)
}

func (r *Reconstructor) run(ctx context.Context, infos []FileInfo, state *latch.State, fn TableFunc) (*Result, error) {
	res := &Result{State: state.Clone(), Reference: reference(infos)}

	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.collector.IncFileStarted()

		table, rep, next, err := r.processFile(ctx, info, res.State, res.Reference)
		if err != nil {
			return nil, err
		}
		res.State = next
		r.record(rep)
		if fn != nil && !table.Empty() {
			if err := fn(table, &rep); err != nil {
				return nil, err
			}
			table.Rows = nil
		}
		res.Tables = append(res.Tables, table)
		res.Reports = append(res.Reports, rep)
	}
	return res, nil
}

// reference returns the earliest session start. Without any, a batch holding
// a measurement container with no start time is referenced to the epoch its
// timestamps are anchored at.
func reference(infos []FileInfo) time.Time {
	var ref time.Time
	anchored := false
	for _, info := range infos {
		switch {
		case info.HasStart:
			if ref.IsZero() || info.Start.Before(ref) {
				ref = info.Start
			}
		case info.Err == nil && info.Format == types.FormatMeasure:
			anchored = true
		}
	}
	if ref.IsZero() && anchored {
		return measureEpoch
	}
	return ref
}

func (r *Reconstructor) record(rep FileReport) {
	r.collector.AddLines(int64(rep.Lines))
	r.collector.AddFrames(int64(rep.Frames))
	r.collector.AddParseErrors(int64(rep.ParseErrors))
	r.collector.AddDecodeErrors(int64(rep.DecodeErrors))
	r.collector.AddUnknownIDs(int64(rep.UnknownIDs))
	r.collector.AddErrorFrames(int64(rep.ErrorFrames))
	r.collector.AddRows(int64(rep.Rows))

	fields := rep.fields()
	switch {
	case rep.Err == nil:
		r.collector.IncFileCompleted()
		r.logger.Info("file reconstructed", fields)
	case errors.Is(rep.Err, types.ErrIO):
		r.collector.IncFileFailed()
		fields["error"] = rep.Err.Error()
		r.logger.Error("file unreadable", fields)
	default:
		r.collector.IncFileStructural()
		fields["error"] = rep.Err.Error()
		r.logger.Warn("file produced no table", fields)
	}
}

// processFile reconstructs one file from the carried state. On failure the
// carried state is returned unchanged. The error return is reserved for
// cancellation.
func (r *Reconstructor) processFile(ctx context.Context, info FileInfo, state *latch.State, ref time.Time) (*types.Table, FileReport, *latch.State, error) {
	rep := FileReport{
		Path:     info.Path,
		Format:   info.Format,
		Start:    info.Start,
		HasStart: info.HasStart,
		Version:  info.Version,
	}
	empty := &types.Table{Source: info.Path, Columns: []string{info.Format.TimeColumn()}}

	if info.Err != nil {
		rep.Err = info.Err
		return empty, rep, state, nil
	}
	if !info.HasStart {
		if info.Format != types.FormatMeasure {
			rep.Err = types.NewError(types.ErrStructural, "reconstruct", "no session start marker", nil).InFile(info.Path)
			return empty, rep, state, nil
		}
		info.Start = measureEpoch
		r.logger.Warn("container has no start time, anchoring at the Unix epoch", rep.fields())
	}

	// The latch owns a copy; the carried state is only replaced on success.
	l := latch.New(state.Clone(), latch.WithStaleTimeout(r.staleTimeout))
	b := newBuilder(l)
	b.idColumn = r.idColumn && info.Format == types.FormatMeasure

	var err error
	if info.Format == types.FormatMeasure {
		err = r.decodeMeasure(ctx, info, b, &rep)
	} else {
		err = r.decodeText(ctx, info, b, &rep)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, rep, state, ctxErr
		}
		rep.Err = err
		return empty, rep, state, nil
	}

	table := b.table(info, ref)
	rep.Rows = len(table.Rows)
	rep.Elapsed = table.Convention == types.ConventionElapsed
	if table.Empty() {
		rep.Err = types.NewError(types.ErrStructural, "reconstruct", "no decodable records", nil).InFile(info.Path)
		return empty, rep, state, nil
	}

	if r.unitRow {
		table.Units = make(map[string]string, len(table.Columns)-1)
		for _, name := range table.Signals() {
			table.Units[name] = r.catalog.UnitOf(name)
		}
	}
	return table, rep, l.Handoff(), nil
}
