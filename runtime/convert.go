// Package runtime orchestrates one conversion run: reconstruction, CSV
// output, row persistence, dataset summary and completion publishing.
package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/justapithecus/canlog/adapter"
	"github.com/justapithecus/canlog/catalog"
	"github.com/justapithecus/canlog/csvio"
	"github.com/justapithecus/canlog/lode"
	"github.com/justapithecus/canlog/log"
	"github.com/justapithecus/canlog/merge"
	"github.com/justapithecus/canlog/metrics"
	"github.com/justapithecus/canlog/policy"
	"github.com/justapithecus/canlog/resample"
	"github.com/justapithecus/canlog/session"
	"github.com/justapithecus/canlog/types"
)

// MergedBase is the output base name of the merged table.
const MergedBase = "merged_decoded"

// shutdownTimeout bounds persistence and publishing once the run context is
// canceled.
const shutdownTimeout = 30 * time.Second

// ConversionConfig configures a single conversion run.
type ConversionConfig struct {
	// RunMeta is the run identity.
	RunMeta *types.RunMeta
	// Inputs are the log files to convert, in any order.
	Inputs []string
	// Catalog decodes frame payloads into signals.
	Catalog catalog.Catalog

	// Format forces the log format. Empty infers it per file.
	Format types.Format
	// IDMask overrides the identifier mask. Zero keeps the default.
	IDMask uint32
	// StaleTimeout clears signals not refreshed within the window. Zero disables it.
	StaleTimeout time.Duration
	// Resample regrids every table at this interval. Zero disables it.
	Resample time.Duration
	// RowLimit bounds data rows per CSV chunk. Zero uses merge.DefaultRowLimit.
	RowLimit int
	// Merge additionally writes the merged table when several files produce rows.
	Merge bool
	// OmitUnitRow drops the unit row from outputs.
	OmitUnitRow bool
	// IDColumn adds the CAN_ID column to measurement container tables.
	IDColumn bool
	// Workers bounds parallel file probing.
	Workers int
	// OutputDir receives the CSV files.
	OutputDir string

	// Policy persists decoded rows. If nil, rows are not persisted.
	Policy policy.Policy
	// PolicyName is reported in the summary and report.
	PolicyName string
	// Client writes file reports and the run summary. If nil, both are skipped.
	Client lode.Client
	// FileWriter uploads CSV chunks next to the dataset. If nil, uploads are skipped.
	FileWriter lode.FileWriter
	// Adapter publishes the completion event. If nil, nothing is published.
	Adapter adapter.Adapter
	// StoragePath is advertised in the completion event.
	StoragePath string
	// Day is the partition day advertised in the completion event.
	Day string

	// Collector records run metrics. All Collector methods are nil-safe.
	Collector *metrics.Collector
	// Logger overrides the run logger.
	Logger *log.Logger
}

// ConversionResult is the result of a conversion run.
type ConversionResult struct {
	RunMeta   *types.RunMeta
	Outcome   *types.RunOutcome
	StartedAt time.Time
	Duration  time.Duration
	// Session holds the per-file reports. Its tables keep their columns but
	// not their rows, which are released once written.
	Session *session.Result
	// Outputs lists every CSV chunk written, per-file outputs first.
	Outputs []csvio.Written
	// Rows is the number of data rows in the per-file outputs.
	Rows int64
	// RowsIngested is the number of rows handed to the policy.
	RowsIngested int64
	PolicyStats  policy.Stats
	// PersistErr is the first persistence failure, if any.
	PersistErr error
	// PublishErr is the completion publishing failure, if any. It does not
	// change the outcome.
	PublishErr error
}

// ConversionOrchestrator runs one conversion.
type ConversionOrchestrator struct {
	config    *ConversionConfig
	logger    *log.Logger
	startTime time.Time
}

// NewConversionOrchestrator creates an orchestrator.
// Returns error if run metadata or inputs are invalid.
func NewConversionOrchestrator(config *ConversionConfig) (*ConversionOrchestrator, error) {
	if config.RunMeta == nil {
		return nil, fmt.Errorf("invalid run metadata: missing")
	}
	if err := config.RunMeta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run metadata: %w", err)
	}
	if config.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if config.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(config.RunMeta)
	}

	return &ConversionOrchestrator{
		config: config,
		logger: logger,
	}, nil
}

// Execute runs the conversion end-to-end.
//
// Execution flow:
//  1. Reconstruct the input files one at a time
//  2. Per file: resample (optional), write CSV chunks, ingest rows
//  3. Flush the policy
//  4. Merge the per-file outputs from disk (optional)
//  5. Write file reports, upload chunks, write the summary
//  6. Determine outcome
//  7. Publish the completion event
//
// Rows of a file are released once they are written and ingested, so memory
// is bounded by the largest single file.
//
// Returns an error only when the batch cannot run at all (no inputs,
// cancellation, unwritable output directory).
func (o *ConversionOrchestrator) Execute(ctx context.Context) (*ConversionResult, error) {
	o.startTime = time.Now()
	cfg := o.config

	o.logger.Info("starting conversion", map[string]any{
		"inputs":     len(cfg.Inputs),
		"output_dir": cfg.OutputDir,
		"merge":      cfg.Merge,
		"policy":     cfg.PolicyName,
	})

	// Persistence outlives cancellation of the conversion itself, bounded by
	// shutdownTimeout.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	w := &tableWriter{o: o, limit: o.rowLimit(), stems: make(map[string]int)}
	if cfg.Policy != nil {
		w.ingest = &ingester{pol: cfg.Policy, logger: o.logger}
	}

	rec := session.New(cfg.Catalog, o.sessionOptions()...)
	res, err := rec.Stream(ctx, cfg.Inputs, func(t *types.Table, rep *session.FileReport) error {
		return w.consume(ctx, t, rep)
	})
	if err != nil {
		if IsCanceledError(err) {
			o.flushBestEffort(persistCtx)
			return nil, err
		}
		if w.failed {
			o.logger.Error("failed to write output", map[string]any{"error": err.Error()})
			return nil, err
		}
		o.logger.Error("reconstruction failed", map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("reconstruct: %w", err)
	}
	for _, rep := range res.Failed() {
		o.logger.Warn("file produced no output", map[string]any{
			"file":  rep.Path,
			"error": rep.Err.Error(),
		})
	}

	result := &ConversionResult{
		RunMeta:   cfg.RunMeta,
		StartedAt: o.startTime,
		Session:   res,
		Outputs:   w.outputs,
		Rows:      w.rows,
	}

	if w.ingest != nil {
		result.RowsIngested = w.ingest.seq
		result.PersistErr = w.ingest.flush(ctx)
		result.PolicyStats = cfg.Policy.Stats()
		ps := result.PolicyStats
		cfg.Collector.AbsorbPolicyStats(ps.TotalRows, ps.RowsPersisted, ps.RowsDropped)
	}

	if cfg.Merge && len(w.perFile) > 1 {
		var paths []string
		for _, written := range w.perFile {
			for _, wr := range written {
				paths = append(paths, wr.Path)
			}
		}
		written, err := csvio.MergeFiles(cfg.OutputDir, MergedBase, paths, w.limit)
		o.recordChunks(written)
		result.Outputs = append(result.Outputs, written...)
		if err != nil {
			o.logger.Error("failed to write output", map[string]any{"error": err.Error()})
			return nil, err
		}
	}

	o.persist(persistCtx, result)

	result.Outcome = DetermineOutcome(res, result.PersistErr)
	result.Duration = time.Since(o.startTime)

	o.logger.Info("conversion completed", map[string]any{
		"outcome":     result.Outcome.Status,
		"message":     result.Outcome.Message,
		"outputs":     len(result.Outputs),
		"rows":        result.Rows,
		"duration_ms": result.Duration.Milliseconds(),
	})

	if cfg.Adapter != nil {
		result.PublishErr = o.publish(persistCtx, result)
	}
	return result, nil
}

func (o *ConversionOrchestrator) sessionOptions() []session.Option {
	cfg := o.config
	opts := []session.Option{
		session.WithFormat(cfg.Format),
		session.WithStaleTimeout(cfg.StaleTimeout),
		session.WithWorkers(cfg.Workers),
		session.WithUnitRow(!cfg.OmitUnitRow),
		session.WithIDColumn(cfg.IDColumn),
		session.WithLogger(o.logger),
		session.WithCollector(cfg.Collector),
	}
	if cfg.IDMask != 0 {
		opts = append(opts, session.WithIDMask(cfg.IDMask))
	}
	return opts
}

func (o *ConversionOrchestrator) rowLimit() int {
	if o.config.RowLimit > 0 {
		return o.config.RowLimit
	}
	return merge.DefaultRowLimit
}

func (o *ConversionOrchestrator) flushBestEffort(ctx context.Context) {
	if o.config.Policy == nil {
		return
	}
	if err := o.config.Policy.Flush(ctx); err != nil {
		o.logger.Warn("policy flush failed (best effort)", map[string]any{
			"error": err.Error(),
		})
	}
}

func (o *ConversionOrchestrator) recordChunks(written []csvio.Written) {
	for _, w := range written {
		o.config.Collector.IncChunkWritten()
		o.logger.Debug("chunk written", map[string]any{
			"path":  w.Path,
			"rows":  w.Rows,
			"bytes": w.Bytes,
		})
	}
}

// tableWriter consumes reconstructed tables as the session hands them over.
type tableWriter struct {
	o      *ConversionOrchestrator
	limit  int
	stems  map[string]int
	ingest *ingester

	outputs []csvio.Written
	// perFile holds the chunks of each file that produced rows, in order.
	perFile [][]csvio.Written
	rows    int64
	// failed is set when an output could not be written.
	failed bool
}

func (w *tableWriter) consume(ctx context.Context, t *types.Table, rep *session.FileReport) error {
	cfg := w.o.config
	if cfg.Resample > 0 {
		rt, err := resample.Table(t, cfg.Resample)
		if err != nil {
			w.failed = true
			return fmt.Errorf("resample %s: %w", t.Source, err)
		}
		t = rt
	}

	base := uniqueStem(w.stems, t.Source) + rep.Format.OutputSuffix()
	written, err := csvio.WriteTable(cfg.OutputDir, base, t, w.limit)
	w.o.recordChunks(written)
	w.outputs = append(w.outputs, written...)
	if err != nil {
		w.failed = true
		return err
	}
	w.perFile = append(w.perFile, written)
	w.rows += int64(len(t.Rows))

	if w.ingest != nil {
		return w.ingest.table(ctx, t)
	}
	return nil
}

// uniqueStem returns the input's file stem, suffixed with _2, _3 and so on
// when an earlier input had the same stem.
func uniqueStem(seen map[string]int, path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	seen[stem]++
	if n := seen[stem]; n > 1 {
		return stem + "_" + strconv.Itoa(n)
	}
	return stem
}

// persist writes file reports, uploads chunks and writes the summary.
// The first failure is kept in result.PersistErr; later steps still run.
func (o *ConversionOrchestrator) persist(ctx context.Context, result *ConversionResult) {
	cfg := o.config
	record := func(step string, err error) {
		if err == nil {
			cfg.Collector.IncLodeWriteSuccess()
			return
		}
		cfg.Collector.IncLodeWriteFailure()
		o.logger.Error("persistence failed", map[string]any{
			"step":  step,
			"error": err.Error(),
		})
		if result.PersistErr == nil {
			result.PersistErr = fmt.Errorf("%s: %w", step, err)
		}
	}

	if cfg.Client != nil {
		record("file reports", cfg.Client.WriteFileReports(ctx, result.Session.Reports))
	}

	if cfg.FileWriter != nil {
		for _, w := range result.Outputs {
			data, err := os.ReadFile(w.Path)
			if err == nil {
				err = cfg.FileWriter.PutFile(ctx, filepath.Base(w.Path), lode.ContentTypeCSV, data)
			}
			record("upload "+filepath.Base(w.Path), err)
		}
	}

	if cfg.Client != nil {
		record("summary", cfg.Client.WriteSummary(ctx, cfg.Collector.Snapshot(), time.Now()))
	}
}

// publish sends the completion event. Failures are logged and counted.
func (o *ConversionOrchestrator) publish(ctx context.Context, result *ConversionResult) error {
	cfg := o.config
	event := NewCompletedEvent(cfg, result)

	if err := cfg.Adapter.Publish(ctx, event); err != nil {
		cfg.Collector.IncPublishFailure()
		o.logger.Error("failed to publish completion event", map[string]any{
			"error": err.Error(),
		})
		return err
	}
	cfg.Collector.IncPublishSuccess()
	o.logger.Info("completion event published", map[string]any{
		"outcome": event.Outcome,
	})
	return nil
}

// NewCompletedEvent builds the completion event of a finished run.
func NewCompletedEvent(cfg *ConversionConfig, result *ConversionResult) *adapter.ConversionCompletedEvent {
	outputs := make([]string, len(result.Outputs))
	for i, w := range result.Outputs {
		outputs[i] = filepath.Base(w.Path)
	}

	return &adapter.ConversionCompletedEvent{
		ContractVersion: adapter.ContractVersion,
		EventType:       adapter.EventTypeConversionCompleted,
		RunID:           result.RunMeta.RunID,
		Source:          result.RunMeta.Source,
		Day:             cfg.Day,
		Outcome:         string(result.Outcome.Status),
		StoragePath:     cfg.StoragePath,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Files:           len(result.Session.Reports),
		FilesFailed:     len(result.Session.Reports) - len(result.Session.Mergeable()),
		Rows:            result.Rows,
		Outputs:         outputs,
		DurationMs:      result.Duration.Milliseconds(),
	}
}
