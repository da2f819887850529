package processor

import (
	"fmt"

	"github.com/rezonia/factura-importer/internal/archive"
	"github.com/rezonia/factura-importer/internal/model"
	xmlparser "github.com/rezonia/factura-importer/internal/parser/xml"
	"github.com/rezonia/factura-importer/internal/signature"
)

// Info describes a payload without normalizing or importing it
type Info struct {
	Format   string             `json:"format"`
	Size     int                `json:"size"`
	Member   string             `json:"member,omitempty"`
	PDF      string             `json:"pdf,omitempty"`
	Root     string             `json:"root,omitempty"`
	Kind     model.DocumentKind `json:"kind,omitempty"`
	Embedded bool               `json:"embedded"`
	Reason   model.Reason       `json:"reason,omitempty"`
	Message  string             `json:"message,omitempty"`
	Signer   *signature.Signer  `json:"signer,omitempty"`
}

// Inspect reports the payload format and the document the locator finds
func (p *Pipeline) Inspect(data []byte) *Info {
	format := DetectFormat(data)
	info := &Info{Format: format.String(), Size: len(data)}

	var doc *xmlparser.Document
	var err error
	signed := data
	switch format {
	case FormatZIP:
		var bundle *archive.Bundle
		bundle, err = archive.Open(data, func(_ string, member []byte) error {
			d, lerr := p.normalizer.Locate(member)
			if lerr == nil {
				doc = d
				signed = member
			}
			return lerr
		})
		if bundle != nil {
			info.Member = bundle.XMLName
			info.PDF = bundle.PDFName
		}
	case FormatPDF:
		err = model.NewExtractionError(model.ReasonNotAnInvoiceDocument, "payload", "PDF payloads carry no structured invoice", nil)
	default:
		doc, err = p.normalizer.Locate(data)
	}

	if err != nil {
		info.Reason = model.ReasonOf(err)
		info.Message = err.Error()
		return info
	}
	info.Root = doc.Root.LocalName()
	info.Kind = doc.Kind
	info.Embedded = doc.Embedded
	if signer, serr := signature.Read(signed); serr == nil {
		info.Signer = signer
	}
	return info
}

// Check returns non-fatal consistency warnings for a normalized record
func Check(rec *model.Record) []string {
	if rec == nil {
		return nil
	}
	var warnings []string
	if rec.TaxID == "" {
		warnings = append(warnings, "missing supplier tax id")
	}
	if rec.GrandTotal.IsZero() {
		warnings = append(warnings, "grand total is zero or missing")
	}
	if !rec.Subtotal.IsZero() && !rec.GrandTotal.IsZero() {
		expected := rec.Subtotal.Add(rec.DiscountTotal).Add(rec.TaxTotal)
		if !expected.Equal(rec.GrandTotal) {
			warnings = append(warnings, fmt.Sprintf("amount calculation mismatch: subtotal-discount+tax=%s, total=%s",
				expected.StringFixed(2), rec.GrandTotal.StringFixed(2)))
		}
	}
	return warnings
}
