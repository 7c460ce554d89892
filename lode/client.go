package lode

import (
	"context"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/canlog/metrics"
	"github.com/justapithecus/canlog/session"
	"github.com/justapithecus/canlog/types"
)

// LodeClient is the Lode-backed Client. Dataset writes are serialized so
// snapshots follow call order.
type LodeClient struct {
	dataset      lode.Dataset
	config       Config
	storeFactory lode.StoreFactory

	mu sync.Mutex

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// NewLodeClient creates a client with filesystem storage under root.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ds, err := NewReadDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return newClient(ds, cfg, factory), nil
}

func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{
		dataset:      ds,
		config:       cfg,
		storeFactory: factory,
	}
}

// Config returns the client's partition configuration.
func (c *LodeClient) Config() Config {
	return c.config
}

// WriteRows writes a batch of rows as one snapshot.
func (c *LodeClient) WriteRows(ctx context.Context, rows []*types.RowRecord) error {
	if len(rows) == 0 {
		return nil
	}
	records := make([]any, 0, len(rows))
	for _, r := range rows {
		records = append(records, toRowRecordMap(r, c.config))
	}
	return c.write(ctx, RecordKindRow, records)
}

// WriteFileReports writes one record per input file as one snapshot.
func (c *LodeClient) WriteFileReports(ctx context.Context, reports []session.FileReport) error {
	if len(reports) == 0 {
		return nil
	}
	records := make([]any, 0, len(reports))
	for _, rep := range reports {
		records = append(records, toFileRecordMap(rep, c.config))
	}
	return c.write(ctx, RecordKindFile, records)
}

// WriteSummary writes the run summary record.
func (c *LodeClient) WriteSummary(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	record := toSummaryRecord(snap, c.config, completedAt)
	return c.write(ctx, RecordKindSummary, []any{record.Map()})
}

func (c *LodeClient) write(ctx context.Context, kind string, records []any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.config.Dataset+"/"+kind)
	}
	return nil
}

// Close releases client resources. Datasets hold no open handles.
func (c *LodeClient) Close() error {
	return nil
}

var _ Client = (*LodeClient)(nil)
