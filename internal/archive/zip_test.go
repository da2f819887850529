package archive_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/factura-importer/internal/archive"
	"github.com/rezonia/factura-importer/internal/model"
)

type member struct {
	name string
	body string
}

func buildZip(t *testing.T, members ...member) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(m.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func acceptInvoices(name string, data []byte) error {
	if strings.Contains(string(data), "<Invoice") {
		return nil
	}
	return model.NewExtractionError(model.ReasonNotAnInvoiceDocument, name, "not an invoice", nil)
}

func TestIsZip(t *testing.T) {
	assert.True(t, archive.IsZip(buildZip(t, member{"a.xml", "<Invoice/>"})))
	assert.False(t, archive.IsZip([]byte("<?xml version=\"1.0\"?><Invoice/>")))
	assert.False(t, archive.IsZip(nil))
}

func TestOpen_PicksFirstAcceptedXML(t *testing.T) {
	raw := buildZip(t,
		member{"readme.txt", "hello"},
		member{"ad0900123456.xml", "<ApplicationResponse/>"},
		member{"fv0900123456.xml", "<Invoice>ok</Invoice>"},
		member{"other.pdf", "%PDF-other"},
		member{"fv0900123456.pdf", "%PDF-match"},
	)

	var offered []string
	b, err := archive.Open(raw, func(name string, data []byte) error {
		offered = append(offered, name)
		return acceptInvoices(name, data)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ad0900123456.xml", "fv0900123456.xml"}, offered)
	assert.Equal(t, "fv0900123456.xml", b.XMLName)
	assert.Equal(t, "<Invoice>ok</Invoice>", string(b.XML))
	assert.Equal(t, "fv0900123456.pdf", b.PDFName)
	assert.Equal(t, "%PDF-match", string(b.PDF))
}

func TestOpen_FallsBackToFirstPDF(t *testing.T) {
	raw := buildZip(t,
		member{"factura.XML", "<Invoice/>"},
		member{"representacion.pdf", "%PDF-1"},
		member{"anexo.pdf", "%PDF-2"},
	)

	b, err := archive.Open(raw, acceptInvoices)
	require.NoError(t, err)
	assert.Equal(t, "representacion.pdf", b.PDFName)
}

func TestOpen_NoPDF(t *testing.T) {
	b, err := archive.Open(buildZip(t, member{"dir/inv.xml", "<Invoice/>"}), acceptInvoices)
	require.NoError(t, err)
	assert.Equal(t, "dir/inv.xml", b.XMLName)
	assert.Empty(t, b.PDFName)
	assert.Nil(t, b.PDF)
}

func TestOpen_OnlyPDFs(t *testing.T) {
	raw := buildZip(t, member{"a.pdf", "%PDF"}, member{"b.pdf", "%PDF"})

	b, err := archive.Open(raw, acceptInvoices)
	assert.Nil(t, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotAnInvoiceDocument)
}

func TestOpen_AllRejectedReturnsFirstError(t *testing.T) {
	first := errors.New("first rejection")
	calls := 0
	raw := buildZip(t, member{"a.xml", "x"}, member{"b.xml", "y"})

	_, err := archive.Open(raw, func(string, []byte) error {
		calls++
		if calls == 1 {
			return first
		}
		return errors.New("second rejection")
	})
	assert.ErrorIs(t, err, first)
	assert.Equal(t, 2, calls)
}

func TestOpen_SkipsMacOSMetadata(t *testing.T) {
	raw := buildZip(t,
		member{"__MACOSX/._inv.xml", "junk"},
		member{"inv.xml", "<Invoice/>"},
	)

	var offered []string
	_, err := archive.Open(raw, func(name string, data []byte) error {
		offered = append(offered, name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"inv.xml"}, offered)
}

func TestOpen_CorruptArchive(t *testing.T) {
	_, err := archive.Open([]byte("PK\x03\x04 truncated"), acceptInvoices)
	require.Error(t, err)
	assert.Equal(t, model.ReasonMalformedXML, model.ReasonOf(err))
}

func zipFiles(t *testing.T, names ...string) []*zip.File {
	t.Helper()
	members := make([]member, len(names))
	for i, n := range names {
		members[i] = member{name: n}
	}
	raw := buildZip(t, members...)
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	return zr.File
}

func TestPairPDF_BaseNameWithinXMLName(t *testing.T) {
	files := zipFiles(t, "anexo.pdf", "fv0900123456000260000012.pdf")

	got := archive.PairPDF("folder/ad0900123456000260000012-fv0900123456000260000012.xml", files)
	require.NotNil(t, got)
	assert.Equal(t, "fv0900123456000260000012.pdf", got.Name)

	assert.Nil(t, archive.PairPDF("a.xml", nil))
}

func TestPairPDF_LongerPDFNameDoesNotMatch(t *testing.T) {
	files := zipFiles(t, "z.pdf", "fv09001234560002600000123.pdf")

	got := archive.PairPDF("fv0900123456000260000012.xml", files)
	require.NotNil(t, got)
	assert.Equal(t, "z.pdf", got.Name, "falls back to the first PDF")
}

func TestPairPDF_EmptyBaseNameNeverMatches(t *testing.T) {
	files := zipFiles(t, "representacion.pdf", ".pdf", "fv1.pdf")

	got := archive.PairPDF("fv1.xml", files)
	require.NotNil(t, got)
	assert.Equal(t, "fv1.pdf", got.Name)

	got = archive.PairPDF("other.xml", zipFiles(t, ".pdf", "anexo.pdf"))
	require.NotNil(t, got)
	assert.Equal(t, ".pdf", got.Name, "only the first-PDF fallback may pick it")
}
