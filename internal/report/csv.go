package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	dec "github.com/rezonia/factura-importer/internal/decimal"
	"github.com/rezonia/factura-importer/internal/model"
)

var csvHeader = []string{"fecha", "descripcion", "referencia", "valor", "moneda_id", "cuenta_id", "terceroid", "grupoid", "conceptoid"}

// CSV renders the accounting import layout. Every purchase is a negative
// movement whatever the sign of the stored total.
type CSV struct{}

func (CSV) Ext() string { return ".csv" }

func (CSV) Render(path string, records []model.Record, _ time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write(csvRow(r)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return f.Close()
}

func csvRow(r model.Record) []string {
	return []string{
		r.IssueDateISO(),
		fmt.Sprintf("Compra %s Fact %s", r.SupplierName, r.InvoiceNumber),
		r.InvoiceNumber,
		dec.NonPositive(r.GrandTotal).StringFixed(2),
		"1",
		"", "", "", "",
	}
}
