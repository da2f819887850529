package xml

import (
	"strings"
	"time"

	"go.uber.org/zap"

	dec "github.com/rezonia/factura-importer/internal/decimal"
	"github.com/rezonia/factura-importer/internal/model"
)

// Issue date layouts accepted, tried in order
var dateLayouts = []string{
	model.DateLayout,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006/01/02",
	"02/01/2006",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// Normalizer turns raw bytes into canonical records
type Normalizer struct {
	registry *Registry
	logger   *zap.Logger
	now      func() time.Time
}

// NormalizerOption configures a Normalizer
type NormalizerOption func(*Normalizer)

// WithRegistry sets the shape registry
func WithRegistry(r *Registry) NormalizerOption {
	return func(n *Normalizer) {
		n.registry = r
	}
}

// WithClock sets the clock used when a document has no usable issue date
func WithClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) {
		n.now = now
	}
}

// NewNormalizer creates a normalizer. A nil logger disables diagnostics.
func NewNormalizer(logger *zap.Logger, opts ...NormalizerOption) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Normalizer{
		registry: NewRegistry(),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Locate resolves raw bytes into a Document without normalizing it
func (n *Normalizer) Locate(raw []byte) (*Document, error) {
	return n.registry.Locate(raw)
}

// Parse locates and normalizes raw XML. Exactly one of the results is
// non-nil; the error is always an *model.ExtractionError.
func (n *Normalizer) Parse(raw []byte) (*model.Record, error) {
	doc, err := n.registry.Locate(raw)
	if err != nil {
		return nil, err
	}
	return n.Normalize(doc)
}

// Normalize merges wrapper and embedded values and applies the sign policy
func (n *Normalizer) Normalize(doc *Document) (*model.Record, error) {
	if doc == nil || doc.Root == nil {
		return nil, model.NewExtractionError(model.ReasonNotAnInvoiceDocument, "root", "no invoice document located", nil)
	}

	inner := Extract(doc.Root)
	merged := inner
	if doc.Outer != nil {
		merged = merge(outerFields(Extract(doc.Outer)), inner)
	}

	if merged.ID == "" {
		return nil, model.NewExtractionError(model.ReasonMissingInvoiceNumber, "ID", "no invoice number found", nil)
	}
	if merged.SupplierName == "" {
		return nil, model.NewExtractionError(model.ReasonMissingSupplierName, "RegistrationName",
			"no supplier name found for invoice "+merged.ID, nil)
	}

	issued, ok := parseDate(merged.IssueDate)
	if !ok {
		issued = n.today()
		n.logger.Warn("issue date missing or unparsable, using processing date",
			zap.String("invoice", merged.ID),
			zap.String("raw", merged.IssueDate),
			zap.String("fallback", issued.Format(model.DateLayout)),
		)
	}

	rec := &model.Record{
		IssueDate:     issued,
		SupplierName:  merged.SupplierName,
		TaxID:         merged.TaxID,
		InvoiceNumber: merged.ID,
		Subtotal:      merged.LineExtension.Value,
		DiscountTotal: dec.NonPositive(merged.Allowance.Value),
		TaxTotal:      merged.Tax.Value,
		GrandTotal:    merged.Payable.Value,
		Kind:          doc.Kind,
	}

	if doc.Kind == model.KindCreditNote {
		rec.Subtotal = dec.NonPositive(rec.Subtotal)
		rec.TaxTotal = dec.NonPositive(rec.TaxTotal)
		rec.GrandTotal = dec.NonPositive(rec.GrandTotal)
		rec.DiscountTotal = dec.NonNegative(rec.DiscountTotal)
	}

	n.logger.Debug("invoice normalized",
		zap.String("invoice", rec.InvoiceNumber),
		zap.String("supplier", rec.SupplierName),
		zap.String("kind", string(rec.Kind)),
		zap.Bool("embedded", doc.Embedded),
	)
	return rec, nil
}

func (n *Normalizer) today() time.Time {
	t := n.now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// outerFields maps wrapper values onto invoice fields. The wrapper's own ID
// names the envelope, so ParentDocumentID wins when present, and the date of
// the referenced parent document beats the envelope date.
func outerFields(f Fields) Fields {
	if f.ParentDocumentID != "" {
		f.ID = f.ParentDocumentID
	}
	if f.ParentIssueDate != "" {
		f.IssueDate = f.ParentIssueDate
	}
	return f
}

// merge overlays inner on outer field by field. Empty inner strings and
// absent inner amounts keep the outer value.
func merge(outer, inner Fields) Fields {
	out := outer
	overrideString(&out.ID, inner.ID)
	overrideString(&out.IssueDate, inner.IssueDate)
	overrideString(&out.SupplierName, inner.SupplierName)
	overrideString(&out.TaxID, inner.TaxID)
	overrideAmount(&out.Payable, inner.Payable)
	overrideAmount(&out.LineExtension, inner.LineExtension)
	overrideAmount(&out.Allowance, inner.Allowance)
	overrideAmount(&out.Tax, inner.Tax)
	return out
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func overrideAmount(dst *Amount, v Amount) {
	if v.Present {
		*dst = v
	}
}
