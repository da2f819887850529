package report_test

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rezonia/factura-importer/internal/model"
	"github.com/rezonia/factura-importer/internal/report"
)

var exportDay = time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)

func sampleRecords() []model.Record {
	return []model.Record{
		{
			IssueDate:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			SupplierName:   "Acme SAS",
			TaxID:          "900123456",
			InvoiceNumber:  "FE-1",
			Subtotal:       decimal.RequireFromString("100000"),
			DiscountTotal:  decimal.RequireFromString("-500"),
			TaxTotal:       decimal.RequireFromString("19000"),
			GrandTotal:     decimal.RequireFromString("118500"),
			SourceFilename: "fe-1.xml",
		},
		{
			IssueDate:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			SupplierName:  "Acme SAS",
			TaxID:         "900123456",
			InvoiceNumber: "NC-1",
			Subtotal:      decimal.RequireFromString("-1000"),
			TaxTotal:      decimal.RequireFromString("-190"),
			GrandTotal:    decimal.RequireFromString("-1190"),
			Kind:          model.KindCreditNote,
		},
	}
}

type failing struct{}

func (failing) Ext() string { return ".pdf" }
func (failing) Render(string, []model.Record, time.Time) error {
	return errors.New("renderer exploded")
}

func TestParseFormats(t *testing.T) {
	got, err := report.ParseFormats([]string{"CSV", " excel", "csv"})
	require.NoError(t, err)
	assert.Equal(t, []report.Format{report.FormatCSV, report.FormatExcel}, got)

	got, err = report.ParseFormats(nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = report.ParseFormats([]string{"docx"})
	var ve *model.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestExport_FailureIsolated(t *testing.T) {
	dir := t.TempDir()
	e := report.NewExporter(report.WithRenderer(report.FormatPDF, failing{}))

	files, errs := e.Export(sampleRecords(), []report.Format{report.FormatPDF, report.FormatExcel, report.FormatCSV}, dir, exportDay)
	require.Len(t, files, 2)
	assert.Equal(t, report.FormatExcel, files[0].Format)
	assert.Equal(t, filepath.Join(dir, "2026-04-02 facturas_export.xlsx"), files[0].Path)
	assert.Equal(t, filepath.Join(dir, "2026-04-02 facturas_export.csv"), files[1].Path)

	require.Len(t, errs, 1)
	assert.EqualError(t, errs[report.FormatPDF], "renderer exploded")
	assert.Equal(t, []string{"pdf: renderer exploded"}, report.ErrorMessages(errs))
}

func TestExport_NoErrors(t *testing.T) {
	files, errs := report.NewExporter().Export(sampleRecords(), []report.Format{report.FormatCSV}, t.TempDir(), exportDay)
	assert.Nil(t, errs)
	assert.Len(t, files, 1)
}

func TestCSV_AccountingLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, report.CSV{}.Render(path, sampleRecords(), exportDay))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"fecha", "descripcion", "referencia", "valor", "moneda_id", "cuenta_id", "terceroid", "grupoid", "conceptoid"}, rows[0])
	assert.Equal(t, []string{"2026-03-01", "Compra Acme SAS Fact FE-1", "FE-1", "-118500.00", "1", "", "", "", ""}, rows[1])
	assert.Equal(t, "-1190.00", rows[2][3], "credit notes stay negative")
}

func TestExcel_NumericCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, report.Excel{}.Render(path, sampleRecords(), exportDay))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(report.SheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Archivo XML", rows[0][8])
	assert.Equal(t, "FE-1", rows[1][3])
	assert.Equal(t, "118500", rows[1][7])
	assert.Equal(t, "fe-1.xml", rows[1][8])
	assert.Equal(t, "-1190", rows[2][7])
}

func TestPDF_RendersReadableFile(t *testing.T) {
	var records []model.Record
	for i := 0; i < 40; i++ {
		records = append(records, model.Record{
			IssueDate:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			SupplierName:  "Compañía de Suministros Técnicos del Caribe SAS",
			TaxID:         "900123456",
			InvoiceNumber: fmt.Sprintf("FE-%d", i),
			Subtotal:      decimal.RequireFromString("100000"),
			TaxTotal:      decimal.RequireFromString("19000"),
			GrandTotal:    decimal.RequireFromString("119000"),
		})
	}

	path := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, report.PDF{}.Render(path, records, exportDay))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	pages, err := api.PageCountFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
}

func TestPDF_EmptyReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pdf")
	require.NoError(t, report.PDF{}.Render(path, nil, exportDay))

	pages, err := api.PageCountFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestExport_AllFormats(t *testing.T) {
	formats, err := report.ParseFormats(nil)
	require.NoError(t, err)

	files, errs := report.NewExporter().Export(sampleRecords(), formats, t.TempDir(), exportDay)
	assert.Nil(t, errs)
	require.Len(t, files, 3)
	for _, f := range files {
		assert.FileExists(t, f.Path)
	}
}
