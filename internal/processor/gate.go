package processor

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rezonia/factura-importer/internal/model"
	"github.com/rezonia/factura-importer/internal/store"
)

// Gate decides insert, duplicate or error for a normalized record. The
// store's uniqueness constraint on (tax id, invoice number) is the only
// duplicate detector.
type Gate struct {
	store  store.Store
	logger *zap.Logger
}

// NewGate creates a persistence gate over s
func NewGate(s store.Store, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{store: s, logger: logger}
}

// Submit persists rec in commit mode or only checks for it in preview mode.
// The returned error is set only with StatusError and wraps the storage fault.
func (g *Gate) Submit(ctx context.Context, rec *model.Record, mode model.Mode) (model.Status, error) {
	if mode == model.ModePreview {
		exists, err := g.store.Exists(ctx, rec.Key())
		if err != nil {
			return model.StatusError, storageFault("exists", err)
		}
		if exists {
			return model.StatusDuplicate, nil
		}
		return model.StatusSuccess, nil
	}

	inserted, err := g.store.InsertIfAbsent(ctx, rec)
	if err != nil {
		return model.StatusError, storageFault("insert", err)
	}
	if !inserted {
		g.logger.Info("Duplicate invoice skipped",
			zap.String("nit", rec.TaxID),
			zap.String("factura", rec.InvoiceNumber),
		)
		return model.StatusDuplicate, nil
	}
	g.logger.Info("Invoice stored",
		zap.String("nit", rec.TaxID),
		zap.String("factura", rec.InvoiceNumber),
		zap.String("proveedor", rec.SupplierName),
	)
	return model.StatusSuccess, nil
}

func storageFault(op string, err error) error {
	var se *model.StorageError
	if errors.As(err, &se) {
		return err
	}
	return model.NewStorageError(op, err)
}
