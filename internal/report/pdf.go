package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	dec "github.com/rezonia/factura-importer/internal/decimal"
	"github.com/rezonia/factura-importer/internal/model"
)

const (
	pdfTitle       = "Reporte de Facturas Recibidas"
	rowsPerPage    = 18
	supplierMaxLen = 35
)

var pdfHeader = []string{"Fecha", "Proveedor", "NIT", "Factura", "Subtotal", "IVA", "Total"}

// column widths in percent of the table width
var pdfColWidths = []int{10, 31, 13, 15, 11, 9, 11}

var disableConfigDir sync.Once

// PDF renders a landscape A4 table with pdfcpu
type PDF struct{}

func (PDF) Ext() string { return ".pdf" }

func (PDF) Render(path string, records []model.Record, now time.Time) error {
	layout, err := json.Marshal(pdfLayout(records, now))
	if err != nil {
		return err
	}

	disableConfigDir.Do(api.DisableConfigDir)

	var out bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(layout), &out, nil); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return os.WriteFile(path, out.Bytes(), 0o644)
}

type pdfFont struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// pdfText is a text box. pdfcpu takes either pos or anchor, never both; an x
// of -1 centers the box horizontally.
type pdfText struct {
	Value string  `json:"value"`
	Pos   [2]int  `json:"pos"`
	Align string  `json:"align,omitempty"`
	Font  pdfFont `json:"font"`
}

type pdfHeaderRow struct {
	Values     []string `json:"values"`
	ColAnchors []string `json:"colAnchors"`
	BgCol      string   `json:"bgCol"`
	Font       pdfFont  `json:"font"`
}

// pdfTable is a table box. Rows counts data rows only and pos is the lower
// left corner of the table, header included.
type pdfTable struct {
	Pos        [2]int       `json:"pos"`
	Width      int          `json:"width"`
	Rows       int          `json:"rows"`
	Cols       int          `json:"cols"`
	LineHeight int          `json:"lheight"`
	Grid       bool         `json:"grid"`
	Font       pdfFont      `json:"font"`
	ColWidths  []int        `json:"colWidths"`
	ColAnchors []string     `json:"colAnchors"`
	Header     pdfHeaderRow `json:"header"`
	Values     [][]string   `json:"values"`
}

type pdfContent struct {
	Text  []pdfText  `json:"text"`
	Table []pdfTable `json:"table,omitempty"`
}

type pdfPage struct {
	Content pdfContent `json:"content"`
}

type pdfDoc struct {
	Paper  string             `json:"paper"`
	Origin string             `json:"origin"`
	Pages  map[string]pdfPage `json:"pages"`
}

const (
	tableTop        = 90
	tableLineHeight = 22
)

// pdfLayout builds the pdfcpu create description, one table per page
func pdfLayout(records []model.Record, now time.Time) pdfDoc {
	doc := pdfDoc{Paper: "A4L", Origin: "UpperLeft", Pages: map[string]pdfPage{}}
	anchors := []string{"Left", "Left", "Left", "Left", "Right", "Right", "Right"}

	chunks := chunk(pdfRows(records), rowsPerPage)
	for i, rows := range chunks {
		page := pdfPage{Content: pdfContent{Text: []pdfText{
			{Value: pdfTitle, Pos: [2]int{-1, 40}, Align: "center", Font: pdfFont{Name: "Helvetica-Bold", Size: 16}},
			{Value: "Fecha de generación: " + now.Format(model.DateLayout), Pos: [2]int{30, 65}, Font: pdfFont{Name: "Helvetica", Size: 10}},
		}}}
		if len(rows) > 0 {
			height := (len(rows) + 1) * tableLineHeight
			page.Content.Table = []pdfTable{{
				Pos:        [2]int{30, tableTop + height},
				Width:      782,
				Rows:       len(rows),
				Cols:       len(pdfHeader),
				LineHeight: tableLineHeight,
				Grid:       true,
				Font:       pdfFont{Name: "Helvetica", Size: 9},
				ColWidths:  pdfColWidths,
				ColAnchors: anchors,
				Header: pdfHeaderRow{
					Values:     pdfHeader,
					ColAnchors: []string{"Center", "Center", "Center", "Center", "Center", "Center", "Center"},
					BgCol:      "#F0F0F0",
					Font:       pdfFont{Name: "Helvetica-Bold", Size: 10},
				},
				Values: rows,
			}}
		}
		doc.Pages[strconv.Itoa(i+1)] = page
	}
	return doc
}

func pdfRows(records []model.Record) [][]string {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			r.IssueDateISO(),
			truncate(r.SupplierName, supplierMaxLen),
			r.TaxID,
			r.InvoiceNumber,
			dec.FormatGrouped(r.Subtotal),
			dec.FormatGrouped(r.TaxTotal),
			dec.FormatGrouped(r.GrandTotal),
		}
	}
	return rows
}

// chunk splits rows into pages; an empty set still yields one page
func chunk(rows [][]string, size int) [][][]string {
	if len(rows) == 0 {
		return [][][]string{nil}
	}
	var out [][][]string
	for len(rows) > size {
		out = append(out, rows[:size])
		rows = rows[size:]
	}
	return append(out, rows)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
