package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/rezonia/factura-importer/internal/archive"
	"github.com/rezonia/factura-importer/internal/model"
)

// Files saves invoice source files under a target directory
type Files struct {
	dir    string
	logger *zap.Logger
}

// NewFiles creates an archiver rooted at dir. The directory is created on
// first save.
func NewFiles(dir string, logger *zap.Logger) *Files {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Files{dir: dir, logger: logger}
}

// SafeName keeps letters, digits, spaces, '-' and '_' and trims the result
func SafeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == ' ' || r == '-' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// BaseName is "<issue date> <safe supplier>"
func BaseName(rec *model.Record) string {
	supplier := SafeName(rec.SupplierName)
	if supplier == "" {
		supplier = "proveedor"
	}
	return rec.IssueDateISO() + " " + supplier
}

// Save writes the XML and, when present, the PDF of bundle. A file that
// already exists with the same content is kept and still reported. When a
// different invoice already claimed the name, the invoice number is
// appended.
func (f *Files) Save(rec *model.Record, bundle *archive.Bundle) ([]string, error) {
	if rec == nil || bundle == nil || len(bundle.XML) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", f.dir, err)
	}

	base := BaseName(rec)
	var saved []string

	name, err := f.write(base, rec, ".xml", bundle.XML)
	if err != nil {
		return saved, err
	}
	saved = append(saved, name)

	if len(bundle.PDF) > 0 {
		name, err := f.write(base, rec, ".pdf", bundle.PDF)
		if err != nil {
			return saved, err
		}
		saved = append(saved, name)
	}
	return saved, nil
}

func (f *Files) write(base string, rec *model.Record, ext string, data []byte) (string, error) {
	candidates := []string{base + ext}
	if num := SafeName(rec.InvoiceNumber); num != "" {
		candidates = append(candidates, base+" "+num+ext)
	}

	for _, name := range candidates {
		path := filepath.Join(f.dir, name)
		existing, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return "", fmt.Errorf("failed to write %s: %w", name, err)
			}
			f.logger.Debug("saved invoice file", zap.String("file", name))
			return name, nil
		case err != nil:
			return "", fmt.Errorf("failed to read %s: %w", name, err)
		case bytes.Equal(existing, data):
			f.logger.Debug("invoice file already present", zap.String("file", name))
			return name, nil
		}
	}

	last := candidates[len(candidates)-1]
	f.logger.Warn("file name taken by another document, skipping", zap.String("file", last))
	return last, nil
}
