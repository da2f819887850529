package invoicelib

import (
	"context"

	"go.uber.org/zap"

	"github.com/rezonia/factura-importer/internal/processor"
	"github.com/rezonia/factura-importer/internal/storage"
	"github.com/rezonia/factura-importer/internal/store"
)

// Store persists records; see OpenStore
type Store = store.Store

// StoreConfig selects and tunes the database
type StoreConfig = store.Config

// Database drivers
const (
	DriverSQLite   = store.DriverSQLite
	DriverPostgres = store.DriverPostgres
)

// OpenStore connects to the configured database and migrates the schema
func OpenStore(cfg StoreConfig, logger *zap.Logger) (Store, error) {
	s, err := store.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ImporterOptions configures an Importer
type ImporterOptions struct {
	Logger *zap.Logger
	// ArchiveDir, when set, receives the XML and PDF of every committed
	// record
	ArchiveDir string
}

// Importer runs documents through normalization and the duplicate gate
type Importer struct {
	batch *processor.Batch
}

// NewImporter creates an importer writing to st
func NewImporter(st Store, opts ImporterOptions) *Importer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	batchOpts := []processor.BatchOption{processor.WithBatchLogger(logger)}
	if opts.ArchiveDir != "" {
		batchOpts = append(batchOpts, processor.WithArchiver(storage.NewFiles(opts.ArchiveDir, logger)))
	}
	return &Importer{
		batch: processor.NewBatch(
			processor.NewPipeline(processor.WithLogger(logger)),
			processor.NewGate(st, logger),
			batchOpts...,
		),
	}
}

// ImportDirectory imports the .xml and .zip files directly inside dir
func (i *Importer) ImportDirectory(ctx context.Context, dir string, filters Filters, mode Mode) ([]Outcome, Stats, error) {
	items, err := processor.DirectoryItems(dir)
	if err != nil {
		return nil, Stats{}, err
	}
	outcomes, stats := i.batch.Run(ctx, items, filters, mode)
	return outcomes, stats, nil
}

// ImportBytes imports one in-memory payload labelled name
func (i *Importer) ImportBytes(ctx context.Context, name string, data []byte, mode Mode) Outcome {
	outcomes, stats := i.batch.Run(ctx, []processor.Item{processor.BytesItem(name, data)}, Filters{}, mode)
	if len(outcomes) == 0 {
		return Outcome{Label: name, Status: StatusFiltered, Message: "run " + stats.RunID + " produced no outcome"}
	}
	return outcomes[0]
}
