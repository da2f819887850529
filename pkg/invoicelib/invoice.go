// Package invoicelib provides a public API for importing Colombian UBL
// e-invoices.
//
// It exposes the canonical record, the typed failure reasons and an
// importer that deduplicates on (tax id, invoice number).
//
// Example usage:
//
//	rec, err := invoicelib.Parse(raw)
//	if err != nil {
//	    log.Fatal(invoicelib.ReasonOf(err))
//	}
//	fmt.Println(rec.InvoiceNumber, rec.GrandTotal)
package invoicelib

import "github.com/rezonia/factura-importer/internal/model"

// Re-export core types for public API
type (
	Record       = model.Record
	NaturalKey   = model.NaturalKey
	DocumentKind = model.DocumentKind
	Reason       = model.Reason
	Status       = model.Status
	Mode         = model.Mode
	Outcome      = model.Outcome
	Stats        = model.Stats
	Filters      = model.Filters
)

// Re-export document kinds
const (
	KindInvoice    = model.KindInvoice
	KindCreditNote = model.KindCreditNote
)

// Re-export failure reasons
const (
	ReasonMalformedXML         = model.ReasonMalformedXML
	ReasonNotAnInvoiceDocument = model.ReasonNotAnInvoiceDocument
	ReasonMissingInvoiceNumber = model.ReasonMissingInvoiceNumber
	ReasonMissingSupplierName  = model.ReasonMissingSupplierName
	ReasonStorageFault         = model.ReasonStorageFault
	ReasonUnexpected           = model.ReasonUnexpected
)

// Re-export outcome statuses
const (
	StatusSuccess   = model.StatusSuccess
	StatusDuplicate = model.StatusDuplicate
	StatusError     = model.StatusError
	StatusFiltered  = model.StatusFiltered
)

// Re-export run modes
const (
	ModeCommit  = model.ModeCommit
	ModePreview = model.ModePreview
)

// Re-export error types
type (
	ExtractionError = model.ExtractionError
	StorageError    = model.StorageError
	ValidationError = model.ValidationError
)

// ReasonOf returns the failure reason carried by err
func ReasonOf(err error) Reason {
	return model.ReasonOf(err)
}
