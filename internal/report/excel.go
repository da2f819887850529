package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rezonia/factura-importer/internal/model"
)

// SheetName is the worksheet holding the export
const SheetName = "Facturas"

var excelHeader = []string{"Fecha", "Proveedor", "NIT", "Factura", "Subtotal", "Descuento", "IVA", "Total", "Archivo XML"}

// Excel renders an .xlsx workbook with numeric amount cells
type Excel struct{}

func (Excel) Ext() string { return ".xlsx" }

func (Excel) Render(path string, records []model.Record, _ time.Time) error {
	f, err := workbook(records)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func workbook(records []model.Record) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := f.SetSheetRow(SheetName, "A1", &excelHeader); err != nil {
		f.Close()
		return nil, err
	}
	_ = f.SetCellStyle(SheetName, "A1", "I1", bold)

	for i, r := range records {
		row := []interface{}{
			r.IssueDateISO(),
			r.SupplierName,
			r.TaxID,
			r.InvoiceNumber,
			r.Subtotal.InexactFloat64(),
			r.DiscountTotal.InexactFloat64(),
			r.TaxTotal.InexactFloat64(),
			r.GrandTotal.InexactFloat64(),
			r.SourceFilename,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}
	if len(records) > 0 {
		_ = f.SetCellStyle(SheetName, "E2", fmt.Sprintf("H%d", len(records)+1), money)
	}

	_ = f.SetColWidth(SheetName, "A", "A", 12)
	_ = f.SetColWidth(SheetName, "B", "B", 40)
	_ = f.SetColWidth(SheetName, "C", "D", 16)
	_ = f.SetColWidth(SheetName, "E", "H", 15)
	_ = f.SetColWidth(SheetName, "I", "I", 30)
	return f, nil
}
