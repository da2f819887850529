package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/rezonia/factura-importer/internal/model"
)

// MaxMemberSize caps how much of a single archive member is read
const MaxMemberSize = 64 << 20

var zipMagic = []byte("PK\x03\x04")

// IsZip reports whether raw starts with a ZIP local file header
func IsZip(raw []byte) bool {
	return bytes.HasPrefix(raw, zipMagic)
}

// Bundle is the XML member chosen from an archive plus its companion PDF
type Bundle struct {
	XMLName string
	XML     []byte
	PDFName string
	PDF     []byte
}

// AcceptFunc decides whether an XML member carries a usable invoice.
// A non-nil error rejects the member and the next one is tried.
type AcceptFunc func(name string, data []byte) error

// Open scans a ZIP archive. XML members are offered to accept in archive
// order and the first one accepted wins. When none is accepted the error of
// the first rejected member is returned; an archive without XML members
// reports NotAnInvoiceDocument.
func Open(raw []byte, accept AcceptFunc) (*Bundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, model.NewExtractionError(model.ReasonMalformedXML, "zip", "failed to read archive", err)
	}

	var xmlFiles, pdfFiles []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".xml":
			xmlFiles = append(xmlFiles, f)
		case ".pdf":
			pdfFiles = append(pdfFiles, f)
		}
	}

	if len(xmlFiles) == 0 {
		return nil, model.NewExtractionError(model.ReasonNotAnInvoiceDocument, "zip",
			fmt.Sprintf("archive has no XML member (%d PDF)", len(pdfFiles)), nil)
	}

	var firstErr error
	for _, f := range xmlFiles {
		data, err := readMember(f)
		if err != nil {
			if firstErr == nil {
				firstErr = model.NewExtractionError(model.ReasonMalformedXML, f.Name, "failed to read archive member", err)
			}
			continue
		}
		if err := accept(f.Name, data); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		b := &Bundle{XMLName: f.Name, XML: data}
		if pdf := PairPDF(f.Name, pdfFiles); pdf != nil {
			// The PDF is a best-effort companion; a broken one is dropped.
			if pdfData, err := readMember(pdf); err == nil {
				b.PDFName = pdf.Name
				b.PDF = pdfData
			}
		}
		return b, nil
	}
	return nil, firstErr
}

// PairPDF picks the companion PDF for xmlName: the first PDF whose base name
// is a substring of the XML base name, else the first PDF. Members with an
// empty base name such as ".pdf" never match by name.
func PairPDF(xmlName string, pdfs []*zip.File) *zip.File {
	if len(pdfs) == 0 {
		return nil
	}
	xmlBase := baseName(xmlName)
	for _, p := range pdfs {
		pdfBase := baseName(p.Name)
		if pdfBase != "" && strings.Contains(xmlBase, pdfBase) {
			return p
		}
	}
	return pdfs[0]
}

func baseName(name string) string {
	base := path.Base(name)
	return strings.TrimSuffix(base, path.Ext(base))
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxMemberSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxMemberSize {
		return nil, fmt.Errorf("member %s exceeds %d bytes", f.Name, MaxMemberSize)
	}
	return data, nil
}
