package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO calendar date form used for issue dates
const DateLayout = "2006-01-02"

// DocumentKind identifies the UBL document that produced a record
type DocumentKind string

const (
	KindInvoice    DocumentKind = "Invoice"
	KindCreditNote DocumentKind = "CreditNote"
	KindAttached   DocumentKind = "AttachedDocument"
)

// Record is the canonical invoice produced by the normalizer. It is built
// once per document and never mutated afterwards.
type Record struct {
	IssueDate      time.Time       `json:"issue_date"`
	SupplierName   string          `json:"supplier_name"`
	TaxID          string          `json:"tax_id"`
	InvoiceNumber  string          `json:"invoice_number"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountTotal  decimal.Decimal `json:"discount_total"`
	TaxTotal       decimal.Decimal `json:"tax_total"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	SourceFilename string          `json:"source_filename,omitempty"`

	// Kind is provenance only and is not persisted
	Kind DocumentKind `json:"kind,omitempty"`
}

// IssueDateISO returns the issue date as YYYY-MM-DD
func (r *Record) IssueDateISO() string {
	if r.IssueDate.IsZero() {
		return ""
	}
	return r.IssueDate.Format(DateLayout)
}

// Key returns the natural key (tax id, invoice number)
func (r *Record) Key() NaturalKey {
	return NaturalKey{TaxID: r.TaxID, InvoiceNumber: r.InvoiceNumber}
}

// IsCreditNote reports whether the record came from a credit note
func (r *Record) IsCreditNote() bool {
	return r.Kind == KindCreditNote
}

// NaturalKey uniquely identifies an invoice for deduplication
type NaturalKey struct {
	TaxID         string
	InvoiceNumber string
}

// Mode selects whether the persistence gate writes
type Mode string

const (
	ModeCommit  Mode = "commit"
	ModePreview Mode = "preview"
)

// Status is the per-item result of an import
type Status string

const (
	StatusSuccess   Status = "success"
	StatusDuplicate Status = "duplicate"
	StatusError     Status = "error"
	StatusFiltered  Status = "filtered"
)

// Outcome is the result of processing one file or one message
type Outcome struct {
	Label         string   `json:"label"`
	InvoiceNumber string   `json:"invoice_number,omitempty"`
	SupplierName  string   `json:"supplier_name,omitempty"`
	TaxID         string   `json:"tax_id,omitempty"`
	IssueDate     string   `json:"issue_date,omitempty"`
	GrandTotal    string   `json:"grand_total,omitempty"`
	Status        Status   `json:"status"`
	Reason        Reason   `json:"reason,omitempty"`
	Message       string   `json:"message,omitempty"`
	Files         []string `json:"files,omitempty"`

	// Mail items also report the message they came from
	Sender   string `json:"sender,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Received string `json:"received,omitempty"`

	// Record is set whenever normalization succeeded
	Record *Record `json:"-"`
}

// Fill copies the display fields of rec into the outcome
func (o *Outcome) Fill(rec *Record) {
	if rec == nil {
		return
	}
	o.Record = rec
	o.InvoiceNumber = rec.InvoiceNumber
	o.SupplierName = rec.SupplierName
	o.TaxID = rec.TaxID
	o.IssueDate = rec.IssueDateISO()
	o.GrandTotal = rec.GrandTotal.StringFixed(2)
}

// Stats aggregates a batch run. Scanned always equals
// Successful + Duplicate + Errors + Filtered.
type Stats struct {
	RunID      string `json:"run_id"`
	Scanned    int    `json:"total_scanned"`
	Successful int    `json:"successful"`
	Duplicate  int    `json:"duplicates"`
	Errors     int    `json:"errors"`
	Filtered   int    `json:"filtered"`
	FilesSaved int    `json:"files_saved"`
}

// Add counts one outcome
func (s *Stats) Add(status Status) {
	s.Scanned++
	switch status {
	case StatusSuccess:
		s.Successful++
	case StatusDuplicate:
		s.Duplicate++
	case StatusFiltered:
		s.Filtered++
	default:
		s.Errors++
	}
}

// Consistent reports whether the counters sum to Scanned
func (s Stats) Consistent() bool {
	return s.Scanned == s.Successful+s.Duplicate+s.Errors+s.Filtered
}

// Filters restrict which normalized records are imported or exported.
// Zero values disable the corresponding filter.
type Filters struct {
	From     time.Time `json:"start_date,omitempty"`
	To       time.Time `json:"end_date,omitempty"`
	Provider string    `json:"provider,omitempty"`
}

// Match reports whether rec passes the filters. Both date ends are inclusive.
func (f Filters) Match(rec *Record) bool {
	day := rec.IssueDate.Truncate(24 * time.Hour)
	if !f.From.IsZero() && day.Before(f.From.Truncate(24*time.Hour)) {
		return false
	}
	if !f.To.IsZero() && day.After(f.To.Truncate(24*time.Hour)) {
		return false
	}
	if f.Provider != "" && rec.SupplierName != f.Provider {
		return false
	}
	return true
}

// Validate checks the date range
func (f Filters) Validate() error {
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return NewValidationError("start_date", f.From.Format(DateLayout), "start<=end", "start date is after end date")
	}
	return nil
}
