package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rezonia/factura-importer/internal/model"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and tunes the database connection
type Config struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Debug           bool          `mapstructure:"debug"`
}

// facturaRow is the persisted form of a record
type facturaRow struct {
	ID        uint            `gorm:"primaryKey"`
	Fecha     time.Time       `gorm:"type:date;not null;index"`
	Proveedor string          `gorm:"size:255;not null;index"`
	NIT       string          `gorm:"column:nit;size:50;not null;default:'';uniqueIndex:idx_facturas_nit_factura"`
	Factura   string          `gorm:"size:100;not null;uniqueIndex:idx_facturas_nit_factura"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Descuento decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	IVA       decimal.Decimal `gorm:"column:iva;type:decimal(18,2);not null;default:0"`
	Total     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	NombreXML string          `gorm:"column:nombre_xml;size:255"`
	CreatedAt time.Time
}

func (facturaRow) TableName() string {
	return "facturas"
}

func toRow(rec *model.Record) facturaRow {
	return facturaRow{
		Fecha:     rec.IssueDate,
		Proveedor: rec.SupplierName,
		NIT:       rec.TaxID,
		Factura:   rec.InvoiceNumber,
		Subtotal:  rec.Subtotal,
		Descuento: rec.DiscountTotal,
		IVA:       rec.TaxTotal,
		Total:     rec.GrandTotal,
		NombreXML: rec.SourceFilename,
	}
}

func (r facturaRow) record() model.Record {
	d := r.Fecha
	return model.Record{
		IssueDate:      time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
		SupplierName:   r.Proveedor,
		TaxID:          r.NIT,
		InvoiceNumber:  r.Factura,
		Subtotal:       r.Subtotal,
		DiscountTotal:  r.Descuento,
		TaxTotal:       r.IVA,
		GrandTotal:     r.Total,
		SourceFilename: r.NombreXML,
	}
}

// GormStore implements Store on top of GORM
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects with the configured driver and migrates the schema
func Open(cfg Config, logger *zap.Logger) (*GormStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite, "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "facturas.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	logLevel := gormlogger.Silent
	if cfg.Debug {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(logLevel)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return New(db, logger)
}

// New wraps an open connection and migrates the schema
func New(db *gorm.DB, logger *zap.Logger) (*GormStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&facturaRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate facturas: %w", err)
	}
	logger.Info("Database ready", zap.String("dialect", db.Dialector.Name()))
	return &GormStore{db: db, logger: logger}, nil
}

// InsertIfAbsent inserts with ON CONFLICT (nit, factura) DO NOTHING
func (s *GormStore) InsertIfAbsent(ctx context.Context, rec *model.Record) (bool, error) {
	row := toRow(rec)
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "nit"}, {Name: "factura"}},
			DoNothing: true,
		}).
		Create(&row)
	if res.Error != nil {
		s.logger.Error("Failed to insert factura",
			zap.String("nit", rec.TaxID),
			zap.String("factura", rec.InvoiceNumber),
			zap.Error(res.Error),
		)
		return false, model.NewStorageError("insert", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Exists checks the natural key
func (s *GormStore) Exists(ctx context.Context, key model.NaturalKey) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&facturaRow{}).
		Where("nit = ? AND factura = ?", key.TaxID, key.InvoiceNumber).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, model.NewStorageError("exists", err)
	}
	return count > 0, nil
}

func (s *GormStore) filtered(ctx context.Context, f model.Filters) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&facturaRow{})
	if !f.From.IsZero() {
		q = q.Where("fecha >= ?", dayOf(f.From))
	}
	if !f.To.IsZero() {
		q = q.Where("fecha <= ?", dayOf(f.To))
	}
	if f.Provider != "" {
		q = q.Where("proveedor = ?", f.Provider)
	}
	return q
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// List returns matching records ordered by date descending, supplier ascending
func (s *GormStore) List(ctx context.Context, f model.Filters) ([]model.Record, error) {
	var rows []facturaRow
	if err := s.filtered(ctx, f).Order("fecha DESC").Order("proveedor ASC").Find(&rows).Error; err != nil {
		return nil, model.NewStorageError("list", err)
	}
	out := make([]model.Record, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

// Providers returns distinct supplier names; the provider filter is ignored
func (s *GormStore) Providers(ctx context.Context, f model.Filters) ([]string, error) {
	f.Provider = ""
	var names []string
	err := s.filtered(ctx, f).
		Distinct("proveedor").
		Order("proveedor ASC").
		Pluck("proveedor", &names).Error
	if err != nil {
		return nil, model.NewStorageError("providers", err)
	}
	return names, nil
}

// Summarize aggregates counts and amounts
func (s *GormStore) Summarize(ctx context.Context, f model.Filters) (*Summary, error) {
	var agg struct {
		Invoices    int64
		Providers   int64
		CreditNotes int64
		Subtotal    decimal.NullDecimal
		Tax         decimal.NullDecimal
		Total       decimal.NullDecimal
	}
	err := s.filtered(ctx, f).Select(
		"COUNT(*) AS invoices, " +
			"COUNT(DISTINCT proveedor) AS providers, " +
			"COALESCE(SUM(CASE WHEN total < 0 THEN 1 ELSE 0 END), 0) AS credit_notes, " +
			"SUM(subtotal) AS subtotal, SUM(iva) AS tax, SUM(total) AS total",
	).Scan(&agg).Error
	if err != nil {
		return nil, model.NewStorageError("summarize", err)
	}

	return &Summary{
		Invoices:    agg.Invoices,
		Providers:   agg.Providers,
		CreditNotes: agg.CreditNotes,
		Subtotal:    agg.Subtotal.Decimal,
		Tax:         agg.Tax.Decimal,
		Total:       agg.Total.Decimal,
	}, nil
}

// Close releases the underlying connection pool
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Verify interface compliance
var _ Store = (*GormStore)(nil)
