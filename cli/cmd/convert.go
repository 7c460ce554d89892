package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/canlog/adapter"
	"github.com/justapithecus/canlog/adapter/mqtt"
	"github.com/justapithecus/canlog/adapter/redis"
	"github.com/justapithecus/canlog/adapter/webhook"
	"github.com/justapithecus/canlog/catalog"
	"github.com/justapithecus/canlog/cli/config"
	"github.com/justapithecus/canlog/lode"
	"github.com/justapithecus/canlog/log"
	"github.com/justapithecus/canlog/metrics"
	"github.com/justapithecus/canlog/policy"
	"github.com/justapithecus/canlog/report"
	"github.com/justapithecus/canlog/runtime"
	"github.com/justapithecus/canlog/types"
)

// defaultAdapterRetries applies when neither flag nor config sets retries.
const defaultAdapterRetries = 3

// ConvertCommand returns the convert command, the only command that writes
// output.
func ConvertCommand() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Decode CAN log files into CSV tables",
		ArgsUsage: "<log file>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to canlog.yaml"},
			// Run identity
			&cli.StringFlag{Name: "run-id", Usage: "Run ID (default: random UUID)"},
			&cli.StringFlag{Name: "source", Usage: "Source identifier for partitioning (vehicle, rig)"},
			// Decoding
			&cli.StringFlag{Name: "catalog", Usage: "Signal catalog: .dbc or .xlsx"},
			&cli.StringFlag{Name: "format", Usage: "Log format: busmaster, trc, measure or auto", Value: "auto"},
			&cli.StringFlag{Name: "id-mask", Usage: "Identifier mask, e.g. 0x1FFFFFFF"},
			&cli.BoolFlag{Name: "decode-choices", Usage: "Decode value tables to labels", Value: true},
			&cli.DurationFlag{Name: "stale-timeout", Usage: "Clear signals not refreshed within this window (0 disables)"},
			&cli.DurationFlag{Name: "resample", Usage: "Regrid tables at this interval (0 disables)"},
			&cli.IntFlag{Name: "workers", Usage: "Parallel file header scans (default: GOMAXPROCS)"},
			// Output
			&cli.StringFlag{Name: "output-dir", Aliases: []string{"o"}, Usage: "Directory for CSV output", Value: "."},
			&cli.BoolFlag{Name: "merge", Usage: "Also write the merged table when several files produce rows"},
			&cli.BoolFlag{Name: "unit-row", Usage: "Write the unit row below the header", Value: true},
			&cli.BoolFlag{Name: "id-column", Usage: "Add a CAN_ID column to measurement container tables"},
			&cli.IntFlag{Name: "row-limit", Usage: "Max data rows per CSV chunk (default 1000000)"},
			&cli.StringFlag{Name: "report", Usage: "Write the JSON run report to this path (- for stderr)"},
			&cli.StringFlag{Name: "report-pdf", Usage: "Write the PDF run report to this path"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Suppress the result summary"},
			// Storage
			&cli.StringFlag{Name: "storage-dataset", Usage: "Lode dataset ID", Value: lode.DefaultDataset},
			&cli.StringFlag{Name: "storage-backend", Usage: "Storage backend: fs or s3", Value: "fs"},
			&cli.StringFlag{Name: "storage-path", Usage: "Storage path (fs: directory, s3: bucket/prefix); empty disables persistence"},
			&cli.StringFlag{Name: "storage-region", Usage: "AWS region for S3 backend"},
			&cli.StringFlag{Name: "storage-endpoint", Usage: "Custom S3 endpoint (MinIO, R2)"},
			&cli.BoolFlag{Name: "storage-s3-path-style", Usage: "Use path-style S3 addressing"},
			// Policy
			&cli.StringFlag{Name: "policy", Usage: "Row persistence policy: strict, buffered or noop", Value: policy.NameStrict},
			&cli.IntFlag{Name: "max-buffer-rows", Usage: "Rows per batch (buffered policy)", Value: policy.DefaultMaxBufferRows},
			&cli.BoolFlag{Name: "best-effort", Usage: "Drop batches that fail to persist (buffered policy)"},
			// Adapter
			&cli.StringFlag{Name: "adapter", Usage: "Completion adapter: webhook, redis or mqtt"},
			&cli.StringFlag{Name: "adapter-url", Usage: "Adapter endpoint URL"},
			&cli.StringFlag{Name: "adapter-channel", Usage: "Redis channel"},
			&cli.StringFlag{Name: "adapter-topic", Usage: "MQTT topic"},
			&cli.DurationFlag{Name: "adapter-timeout", Usage: "Per-attempt adapter timeout"},
			&cli.IntFlag{Name: "adapter-retries", Usage: "Adapter retries after the first attempt", Value: defaultAdapterRetries},
			// Logging
			&cli.StringFlag{Name: "log-dir", Usage: "Also write rotated JSON logs to this directory"},
		},
		Action: convertAction,
	}
}

// convertOptions is the resolved convert configuration: flags over config
// file over defaults.
type convertOptions struct {
	inputs        []string
	runID         string
	source        string
	catalog       string
	format        string
	idMask        string
	decodeChoices bool
	staleTimeout  time.Duration
	resample      time.Duration
	workers       int
	outputDir     string
	merge         bool
	unitRow       bool
	idColumn      bool
	rowLimit      int
	reportJSON    string
	reportPDF     string
	quiet         bool

	storage config.StorageConfig
	policy  config.PolicyConfig
	adapter config.AdapterConfig
	log     config.LogConfig
}

func optionsFromFlags(c *cli.Context) *convertOptions {
	retries := c.Int("adapter-retries")
	return &convertOptions{
		inputs:        c.Args().Slice(),
		runID:         c.String("run-id"),
		source:        c.String("source"),
		catalog:       c.String("catalog"),
		format:        c.String("format"),
		idMask:        c.String("id-mask"),
		decodeChoices: c.Bool("decode-choices"),
		staleTimeout:  c.Duration("stale-timeout"),
		resample:      c.Duration("resample"),
		workers:       c.Int("workers"),
		outputDir:     c.String("output-dir"),
		merge:         c.Bool("merge"),
		unitRow:       c.Bool("unit-row"),
		idColumn:      c.Bool("id-column"),
		rowLimit:      c.Int("row-limit"),
		reportJSON:    c.String("report"),
		reportPDF:     c.String("report-pdf"),
		quiet:         c.Bool("quiet"),
		storage: config.StorageConfig{
			Dataset:     c.String("storage-dataset"),
			Backend:     c.String("storage-backend"),
			Path:        c.String("storage-path"),
			Region:      c.String("storage-region"),
			Endpoint:    c.String("storage-endpoint"),
			S3PathStyle: c.Bool("storage-s3-path-style"),
		},
		policy: config.PolicyConfig{
			Name:          c.String("policy"),
			MaxBufferRows: c.Int("max-buffer-rows"),
			BestEffort:    c.Bool("best-effort"),
		},
		adapter: config.AdapterConfig{
			Type:    c.String("adapter"),
			URL:     c.String("adapter-url"),
			Channel: c.String("adapter-channel"),
			Topic:   c.String("adapter-topic"),
			Timeout: config.Duration{Duration: c.Duration("adapter-timeout")},
			Retries: &retries,
		},
		log: config.LogConfig{Dir: c.String("log-dir")},
	}
}

// applyConfig fills every option whose flag was not set explicitly from cfg.
// Zero config values leave the flag default in place.
func applyConfig(o *convertOptions, cfg *config.Config, isSet func(string) bool) {
	str := func(flag string, dst *string, v string) {
		if !isSet(flag) && v != "" {
			*dst = v
		}
	}
	boolean := func(flag string, dst *bool, v *bool) {
		if !isSet(flag) && v != nil {
			*dst = *v
		}
	}
	dur := func(flag string, dst *time.Duration, v config.Duration) {
		if !isSet(flag) && v.Duration != 0 {
			*dst = v.Duration
		}
	}
	num := func(flag string, dst *int, v int) {
		if !isSet(flag) && v != 0 {
			*dst = v
		}
	}

	str("source", &o.source, cfg.Source)
	str("catalog", &o.catalog, cfg.Catalog)
	str("format", &o.format, cfg.Format)
	str("id-mask", &o.idMask, cfg.IDMask)
	boolean("decode-choices", &o.decodeChoices, cfg.DecodeChoices)
	dur("stale-timeout", &o.staleTimeout, cfg.StaleTimeout)
	dur("resample", &o.resample, cfg.Resample)
	num("workers", &o.workers, cfg.Workers)
	str("output-dir", &o.outputDir, cfg.OutputDir)
	boolean("merge", &o.merge, cfg.Merge)
	boolean("unit-row", &o.unitRow, cfg.UnitRow)
	boolean("id-column", &o.idColumn, cfg.IDColumn)
	num("row-limit", &o.rowLimit, cfg.RowLimit)
	str("report", &o.reportJSON, cfg.Report.JSON)
	str("report-pdf", &o.reportPDF, cfg.Report.PDF)

	str("storage-dataset", &o.storage.Dataset, cfg.Storage.Dataset)
	str("storage-backend", &o.storage.Backend, cfg.Storage.Backend)
	str("storage-path", &o.storage.Path, cfg.Storage.Path)
	str("storage-region", &o.storage.Region, cfg.Storage.Region)
	str("storage-endpoint", &o.storage.Endpoint, cfg.Storage.Endpoint)
	if !isSet("storage-s3-path-style") && cfg.Storage.S3PathStyle {
		o.storage.S3PathStyle = true
	}

	str("policy", &o.policy.Name, cfg.Policy.Name)
	num("max-buffer-rows", &o.policy.MaxBufferRows, cfg.Policy.MaxBufferRows)
	if !isSet("best-effort") && cfg.Policy.BestEffort {
		o.policy.BestEffort = true
	}

	str("adapter", &o.adapter.Type, cfg.Adapter.Type)
	str("adapter-url", &o.adapter.URL, cfg.Adapter.URL)
	str("adapter-channel", &o.adapter.Channel, cfg.Adapter.Channel)
	str("adapter-topic", &o.adapter.Topic, cfg.Adapter.Topic)
	dur("adapter-timeout", &o.adapter.Timeout.Duration, cfg.Adapter.Timeout)
	if !isSet("adapter-retries") && cfg.Adapter.Retries != nil {
		o.adapter.Retries = cfg.Adapter.Retries
	}
	// Config-only adapter settings.
	o.adapter.LatestTTL = cfg.Adapter.LatestTTL
	o.adapter.QoS = cfg.Adapter.QoS
	o.adapter.ClientID = cfg.Adapter.ClientID
	o.adapter.Username = cfg.Adapter.Username
	o.adapter.Password = cfg.Adapter.Password
	o.adapter.Headers = cfg.Adapter.Headers

	str("log-dir", &o.log.Dir, cfg.Log.Dir)
	o.log.MaxSizeMB = cfg.Log.MaxSizeMB
	o.log.MaxAgeDays = cfg.Log.MaxAgeDays
	o.log.MaxBackups = cfg.Log.MaxBackups
	o.log.Compress = cfg.Log.Compress
}

// validate checks the resolved options and fills the run id.
func (o *convertOptions) validate() error {
	if len(o.inputs) == 0 {
		return errors.New("at least one log file is required")
	}
	if o.catalog == "" {
		return errors.New("--catalog is required")
	}
	if o.source == "" {
		return errors.New("--source is required")
	}
	if _, err := types.ParseFormat(o.format); err != nil {
		return err
	}
	if _, err := config.ParseIDMask(o.idMask); err != nil {
		return err
	}
	if o.rowLimit < 0 {
		return fmt.Errorf("--row-limit %d must not be negative", o.rowLimit)
	}
	switch o.policy.Name {
	case policy.NameStrict, policy.NameNoop:
	case policy.NameBuffered:
		if o.policy.MaxBufferRows <= 0 {
			return errors.New("buffered policy requires --max-buffer-rows > 0")
		}
	default:
		return fmt.Errorf("invalid policy: %s (must be strict, buffered or noop)", o.policy.Name)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	return nil
}

func resolveOptions(c *cli.Context) (*convertOptions, error) {
	opts := optionsFromFlags(c)
	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		applyConfig(opts, cfg, c.IsSet)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func convertAction(c *cli.Context) error {
	opts, err := resolveOptions(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid convert config: %v", err), runtime.ExitNoOutput)
	}

	runMeta := &types.RunMeta{RunID: opts.runID, Source: opts.source}
	if err := runMeta.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid run metadata: %v", err), runtime.ExitNoOutput)
	}

	logger, logCloser, err := log.NewRotatingLogger(runMeta, log.RotationConfig{
		Directory:  opts.log.Dir,
		MaxSizeMB:  opts.log.MaxSizeMB,
		MaxAgeDays: opts.log.MaxAgeDays,
		MaxBackups: opts.log.MaxBackups,
		Compress:   opts.log.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to open log directory: %w", err)
	}
	defer func() {
		_ = logger.Sync()
		_ = logCloser.Close()
	}()

	cat, err := loadCatalog(opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load catalog: %v", err), runtime.ExitNoOutput)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	day := lode.DeriveDay(startTime)

	persistence, err := buildPersistence(ctx, opts, runMeta, day, logger)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to initialize storage: %v", err), runtime.ExitNoOutput)
	}
	defer func() { _ = persistence.close() }()

	adp, err := buildAdapter(opts.adapter)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid adapter config: %v", err), runtime.ExitNoOutput)
	}
	if adp != nil {
		defer func() { _ = adp.Close() }()
	}

	format, _ := types.ParseFormat(opts.format)
	idMask, _ := config.ParseIDMask(opts.idMask)
	conversion := &runtime.ConversionConfig{
		RunMeta:      runMeta,
		Inputs:       opts.inputs,
		Catalog:      cat,
		Format:       format,
		IDMask:       idMask,
		StaleTimeout: opts.staleTimeout,
		Resample:     opts.resample,
		RowLimit:     opts.rowLimit,
		Merge:        opts.merge,
		OmitUnitRow:  !opts.unitRow,
		IDColumn:     opts.idColumn,
		Workers:      opts.workers,
		OutputDir:    opts.outputDir,
		Policy:       persistence.policy,
		PolicyName:   persistence.policyName,
		Client:       persistence.client,
		FileWriter:   persistence.files,
		Adapter:      adp,
		StoragePath:  opts.storage.Path,
		Day:          day,
		Collector:    persistence.collector,
		Logger:       logger,
	}

	orchestrator, err := runtime.NewConversionOrchestrator(conversion)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create orchestrator: %v", err), runtime.ExitNoOutput)
	}

	result, err := orchestrator.Execute(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("conversion failed: %v", err), runtime.ExitNoOutput)
	}

	rep := runtime.BuildReport(result, persistence.collector.Snapshot(), persistence.policyName)
	if err := writeReports(ctx, rep, opts, persistence.files); err != nil {
		logger.Warn("failed to write run report", map[string]any{"error": err.Error()})
	}

	if !opts.quiet {
		printConversionResult(c.App.Writer, result)
	}

	return cli.Exit("", runtime.ExitCode(result.Outcome.Status))
}

func loadCatalog(opts *convertOptions) (catalog.Catalog, error) {
	catOpts := []catalog.Option{catalog.WithDecodeChoices(opts.decodeChoices)}
	if mask, _ := config.ParseIDMask(opts.idMask); mask != 0 {
		catOpts = append(catOpts, catalog.WithIDMask(mask))
	}
	return catalog.Load(opts.catalog, catOpts...)
}

// persistence bundles the storage collaborators of one run. Every field is
// nil when no storage path is configured, except collector.
type persistence struct {
	policy     policy.Policy
	policyName string
	client     lode.Client
	files      lode.FileWriter
	collector  *metrics.Collector
}

func (p *persistence) close() error {
	if p.policy == nil {
		return nil
	}
	// Closing the policy closes the sink and the lode client behind it.
	return p.policy.Close()
}

// buildPersistence creates the lode client, file writer and policy.
func buildPersistence(ctx context.Context, opts *convertOptions, runMeta *types.RunMeta, day string, logger *log.Logger) (*persistence, error) {
	if opts.storage.Path == "" {
		return &persistence{
			collector: metrics.NewCollector("", "", runMeta.RunID, runMeta.Source),
		}, nil
	}

	backend := opts.storage.Backend
	if backend == "" {
		backend = "fs"
	}
	collector := metrics.NewCollector(opts.policy.Name, backend, runMeta.RunID, runMeta.Source)

	cfg := lode.Config{
		Dataset: opts.storage.Dataset,
		Source:  runMeta.Source,
		Day:     day,
		RunID:   runMeta.RunID,
		Policy:  opts.policy.Name,
	}
	if cfg.Dataset == "" {
		cfg.Dataset = lode.DefaultDataset
	}

	var (
		client *lode.LodeClient
		err    error
	)
	switch backend {
	case "fs":
		client, err = lode.NewLodeClient(cfg, opts.storage.Path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(opts.storage.Path)
		client, err = lode.NewLodeS3Client(ctx, cfg, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       opts.storage.Region,
			Endpoint:     opts.storage.Endpoint,
			UsePathStyle: opts.storage.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage-backend: %s (must be fs or s3)", backend)
	}
	if err != nil {
		return nil, err
	}

	sink := lode.NewInstrumentedSink(lode.NewSink(client), collector)
	pol, err := policy.New(opts.policy.Name, sink, policy.BufferedConfig{
		MaxBufferRows: opts.policy.MaxBufferRows,
		BestEffort:    opts.policy.BestEffort,
		Logger:        logger,
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &persistence{
		policy:     pol,
		policyName: opts.policy.Name,
		client:     client,
		files:      client,
		collector:  collector,
	}, nil
}

// buildAdapter creates the configured completion adapter, or nil when none
// is configured.
func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := defaultAdapterRetries
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}

	switch cfg.Type {
	case "":
		if cfg.URL != "" {
			return nil, errors.New("--adapter-url requires --adapter")
		}
		return nil, nil
	case "webhook":
		a, err := webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	case "redis":
		a, err := redis.New(redis.Config{
			URL:       cfg.URL,
			Channel:   cfg.Channel,
			LatestTTL: cfg.LatestTTL.Duration,
			Timeout:   cfg.Timeout.Duration,
			Retries:   retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	case "mqtt":
		a, err := mqtt.New(mqtt.Config{
			URL:      cfg.URL,
			Topic:    cfg.Topic,
			QoS:      cfg.QoS,
			ClientID: cfg.ClientID,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  cfg.Timeout.Duration,
			Retries:  retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown adapter: %s (must be webhook, redis or mqtt)", cfg.Type)
	}
}

// writeReports writes the JSON and PDF reports. The PDF is also uploaded
// next to the dataset when storage is configured.
func writeReports(ctx context.Context, rep *report.Report, opts *convertOptions, files lode.FileWriter) error {
	var errs []error
	if opts.reportJSON != "" {
		errs = append(errs, report.WriteJSON(rep, opts.reportJSON))
	}
	if opts.reportPDF != "" {
		if err := report.WritePDF(rep, opts.reportPDF); err != nil {
			errs = append(errs, err)
		} else if files != nil {
			data, err := os.ReadFile(opts.reportPDF)
			if err == nil {
				err = files.PutFile(ctx, filepath.Base(opts.reportPDF), lode.ContentTypePDF, data)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func printConversionResult(w io.Writer, result *runtime.ConversionResult) {
	fmt.Fprintf(w, "\nrun_id=%s, source=%s, outcome=%s, duration=%s\n",
		result.RunMeta.RunID,
		result.RunMeta.Source,
		result.Outcome.Status,
		result.Duration.Round(time.Millisecond),
	)
	fmt.Fprintf(w, "%s\n", result.Outcome.Message)

	fmt.Fprintf(w, "\n=== Files ===\n")
	for _, rep := range result.Session.Reports {
		if rep.Err != nil {
			fmt.Fprintf(w, "%s: failed: %v\n", rep.Path, rep.Err)
			continue
		}
		fmt.Fprintf(w, "%s: parsed %d of %d lines, skipped %d, unknown ids %d, rows %d\n",
			rep.Path, rep.Frames, rep.Lines, rep.Skipped(), rep.UnknownIDs, rep.Rows)
	}

	fmt.Fprintf(w, "\n=== Outputs ===\n")
	printWritten(w, result.Outputs)

	if result.PolicyStats.TotalRows > 0 {
		fmt.Fprintf(w, "\n=== Persistence ===\n")
		fmt.Fprintf(w, "Rows Received:  %d\n", result.PolicyStats.TotalRows)
		fmt.Fprintf(w, "Rows Persisted: %d\n", result.PolicyStats.RowsPersisted)
		fmt.Fprintf(w, "Rows Dropped:   %d\n", result.PolicyStats.RowsDropped)
		fmt.Fprintf(w, "Flushes:        %d\n", result.PolicyStats.FlushCount)
	}
	if result.PersistErr != nil {
		fmt.Fprintf(w, "Persistence error: %v\n", result.PersistErr)
	}
	if result.PublishErr != nil {
		fmt.Fprintf(w, "Publish error: %v\n", result.PublishErr)
	}
}
