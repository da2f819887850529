package processor_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rezonia/factura-importer/internal/model"
	"github.com/rezonia/factura-importer/internal/processor"
)

func invoiceXML(number, supplier, nit, date, total string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns:cac="urn:cac" xmlns:cbc="urn:cbc">
	<cbc:ID>%s</cbc:ID>
	<cbc:IssueDate>%s</cbc:IssueDate>
	<cac:AccountingSupplierParty><cac:Party><cac:PartyTaxScheme>
		<cbc:RegistrationName>%s</cbc:RegistrationName>
		<cbc:CompanyID>%s</cbc:CompanyID>
	</cac:PartyTaxScheme></cac:Party></cac:AccountingSupplierParty>
	<cac:LegalMonetaryTotal><cbc:PayableAmount>%s</cbc:PayableAmount></cac:LegalMonetaryTotal>
</Invoice>`, number, date, supplier, nit, total)
}

func zipOf(t testing.TB, members map[string]string, order ...string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(members[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestNewPipeline(t *testing.T) {
	p := processor.NewPipeline()
	require.NotNil(t, p)

	p = processor.NewPipeline(processor.WithLogger(zap.NewNop()), processor.WithLogger(nil))
	require.NotNil(t, p)
}

func TestProcessXML(t *testing.T) {
	p := processor.NewPipeline()

	result := p.ProcessXML(context.Background(), strings.NewReader(invoiceXML("FE-1", "Acme SAS", "900", "2026-01-10", "119000.00")))
	require.Nil(t, result.Error)
	require.NotNil(t, result.Record)

	assert.Equal(t, processor.FormatXML, result.Format)
	assert.Equal(t, "FE-1", result.Record.InvoiceNumber)
	assert.Equal(t, "Acme SAS", result.Record.SupplierName)
	assert.Equal(t, "119000.00", result.Record.GrandTotal.StringFixed(2))
}

func TestProcessXML_Invalid(t *testing.T) {
	p := processor.NewPipeline()

	result := p.ProcessXML(context.Background(), strings.NewReader("<Invoice><ID>1</ID>"))
	require.NotNil(t, result.Error)
	assert.Nil(t, result.Record)
	assert.Equal(t, model.ReasonMalformedXML, model.ReasonOf(result.Error))
}

func TestProcessBytes_SourceFilename(t *testing.T) {
	p := processor.NewPipeline()

	result := p.ProcessBytes(context.Background(), []byte(invoiceXML("FE-2", "Acme", "9", "2026-01-10", "1")), "fe-2.xml")
	require.NoError(t, result.Error)
	assert.Equal(t, "fe-2.xml", result.Record.SourceFilename)
	require.NotNil(t, result.Bundle)
	assert.Equal(t, "fe-2.xml", result.Bundle.XMLName)
}

func TestProcessBytes_ZIP(t *testing.T) {
	p := processor.NewPipeline()
	raw := zipOf(t, map[string]string{
		"nested/ad.xml": `<ApplicationResponse><ID>R-1</ID></ApplicationResponse>`,
		"nested/fv.xml": invoiceXML("FE-3", "Acme", "9", "2026-01-10", "10"),
		"nested/fv.pdf": "%PDF-1.4",
	}, "nested/ad.xml", "nested/fv.xml", "nested/fv.pdf")

	result := p.ProcessBytes(context.Background(), raw, "mail.zip")
	require.NoError(t, result.Error)
	assert.Equal(t, processor.FormatZIP, result.Format)
	assert.Equal(t, "FE-3", result.Record.InvoiceNumber)
	assert.Equal(t, "fv.xml", result.Record.SourceFilename)
	assert.Equal(t, "nested/fv.pdf", result.Bundle.PDFName)
}

func TestProcessBytes_ZIPOnlyPDF(t *testing.T) {
	p := processor.NewPipeline()
	raw := zipOf(t, map[string]string{"a.pdf": "%PDF"}, "a.pdf")

	result := p.ProcessBytes(context.Background(), raw, "a.zip")
	require.Error(t, result.Error)
	assert.Equal(t, model.ReasonNotAnInvoiceDocument, model.ReasonOf(result.Error))
}

func TestProcessBytes_PDF(t *testing.T) {
	result := processor.NewPipeline().ProcessBytes(context.Background(), []byte("%PDF-1.7"), "x.pdf")
	assert.Equal(t, processor.FormatPDF, result.Format)
	assert.ErrorIs(t, result.Error, model.ErrNotAnInvoiceDocument)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected processor.Format
	}{
		{"XML with declaration", []byte(`<?xml version="1.0"?><Invoice/>`), processor.FormatXML},
		{"XML with BOM and whitespace", append([]byte{0xEF, 0xBB, 0xBF}, []byte("\n  <Invoice/>")...), processor.FormatXML},
		{"ZIP", []byte("PK\x03\x04rest"), processor.FormatZIP},
		{"PDF", []byte("%PDF-1.4\n%some content"), processor.FormatPDF},
		{"Unknown format", []byte("some random text"), processor.FormatUnknown},
		{"Empty data", []byte{}, processor.FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, processor.DetectFormat(tt.data))
		})
	}
}

func TestFormatString(t *testing.T) {
	tests := []struct {
		format   processor.Format
		expected string
	}{
		{processor.FormatXML, "xml"},
		{processor.FormatZIP, "zip"},
		{processor.FormatPDF, "pdf"},
		{processor.FormatUnknown, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.format.String())
		})
	}
}

// Benchmark tests

func BenchmarkDetectFormat_XML(b *testing.B) {
	data := []byte(`<?xml version="1.0"?><Invoice><ID>1</ID></Invoice>`)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		processor.DetectFormat(data)
	}
}

func BenchmarkProcessBytes_ZIP(b *testing.B) {
	ctx := context.Background()
	p := processor.NewPipeline()
	raw := zipOf(b, map[string]string{
		"fv.xml": invoiceXML("FE-1", "Acme", "9", "2026-01-10", "10"),
	}, "fv.xml")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.ProcessBytes(ctx, raw, "fv.zip")
	}
}
