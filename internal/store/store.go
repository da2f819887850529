package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rezonia/factura-importer/internal/model"
)

// Store persists canonical records. The natural key (tax id, invoice
// number) is enforced as a uniqueness constraint by the implementation.
type Store interface {
	// InsertIfAbsent writes rec unless its natural key already exists. The
	// check and the write are one atomic statement; inserted is false when
	// the row was suppressed by the conflict.
	InsertIfAbsent(ctx context.Context, rec *model.Record) (inserted bool, err error)

	// Exists reports whether a record with key is stored
	Exists(ctx context.Context, key model.NaturalKey) (bool, error)

	// List returns the records matching f, newest first then by supplier
	List(ctx context.Context, f model.Filters) ([]model.Record, error)

	// Providers returns the distinct supplier names within the date range of f
	Providers(ctx context.Context, f model.Filters) ([]string, error)

	// Summarize aggregates the records matching f
	Summarize(ctx context.Context, f model.Filters) (*Summary, error)

	Close() error
}

// Summary aggregates stored records
type Summary struct {
	Invoices    int64           `json:"total_invoices"`
	Providers   int64           `json:"total_providers"`
	CreditNotes int64           `json:"credit_notes"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}
