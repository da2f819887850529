package model_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/factura-importer/internal/model"
)

func day(s string) time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRecord_Creation(t *testing.T) {
	rec := model.Record{
		IssueDate:     day("2026-01-10"),
		SupplierName:  "Acme SAS",
		TaxID:         "900123456-1",
		InvoiceNumber: "FE-100",
		GrandTotal:    decimal.RequireFromString("119000.00"),
		Kind:          model.KindInvoice,
	}

	assert.Equal(t, "2026-01-10", rec.IssueDateISO())
	assert.Equal(t, model.NaturalKey{TaxID: "900123456-1", InvoiceNumber: "FE-100"}, rec.Key())
	assert.False(t, rec.IsCreditNote())

	var empty model.Record
	assert.Empty(t, empty.IssueDateISO())
}

func TestOutcome_Fill(t *testing.T) {
	rec := &model.Record{
		IssueDate:     day("2026-01-10"),
		SupplierName:  "Acme SAS",
		TaxID:         "900123456-1",
		InvoiceNumber: "FE-100",
		GrandTotal:    decimal.NewFromInt(119000),
	}

	out := model.Outcome{Label: "fe-100.xml"}
	out.Fill(rec)

	assert.Equal(t, "FE-100", out.InvoiceNumber)
	assert.Equal(t, "Acme SAS", out.SupplierName)
	assert.Equal(t, "2026-01-10", out.IssueDate)
	assert.Equal(t, "119000.00", out.GrandTotal)
	assert.Same(t, rec, out.Record)
}

func TestStats_Add(t *testing.T) {
	var s model.Stats
	for _, st := range []model.Status{
		model.StatusSuccess, model.StatusSuccess, model.StatusDuplicate,
		model.StatusError, model.StatusFiltered,
	} {
		s.Add(st)
	}

	assert.Equal(t, 5, s.Scanned)
	assert.Equal(t, 2, s.Successful)
	assert.Equal(t, 1, s.Duplicate)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 1, s.Filtered)
	assert.True(t, s.Consistent())
}

func TestFilters_Match(t *testing.T) {
	rec := &model.Record{IssueDate: day("2026-01-10"), SupplierName: "Acme SAS"}

	tests := []struct {
		name    string
		filters model.Filters
		want    bool
	}{
		{"no filters", model.Filters{}, true},
		{"inclusive start", model.Filters{From: day("2026-01-10")}, true},
		{"inclusive end", model.Filters{To: day("2026-01-10")}, true},
		{"before range", model.Filters{From: day("2026-01-11")}, false},
		{"after range", model.Filters{To: day("2026-01-09")}, false},
		{"provider exact", model.Filters{Provider: "Acme SAS"}, true},
		{"provider differs", model.Filters{Provider: "acme sas"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filters.Match(rec))
		})
	}
}

func TestFilters_Validate(t *testing.T) {
	require.NoError(t, model.Filters{From: day("2026-01-01"), To: day("2026-01-31")}.Validate())

	err := model.Filters{From: day("2026-02-01"), To: day("2026-01-31")}.Validate()
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "start_date", verr.Field)
}

func TestExtractionError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w",
		model.NewExtractionError(model.ReasonMissingSupplierName, "supplier_name", "no supplier", nil))

	assert.True(t, errors.Is(err, model.ErrMissingSupplierName))
	assert.False(t, errors.Is(err, model.ErrMissingInvoiceNumber))
	assert.Equal(t, model.ReasonMissingSupplierName, model.ReasonOf(err))
}

func TestReasonOf(t *testing.T) {
	assert.Equal(t, model.ReasonNone, model.ReasonOf(nil))
	assert.Equal(t, model.ReasonStorageFault, model.ReasonOf(model.NewStorageError("insert", errors.New("disk full"))))
	assert.Equal(t, model.ReasonUnexpected, model.ReasonOf(errors.New("boom")))

	cause := errors.New("XML syntax error on line 1")
	err := model.NewExtractionError(model.ReasonMalformedXML, "xml", "failed to parse XML", cause)
	assert.Equal(t, model.ReasonMalformedXML, model.ReasonOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "XML syntax error")
}
