package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rezonia/factura-importer/internal/model"
)

// Format names an export format
type Format string

const (
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
	FormatPDF   Format = "pdf"
)

// BaseName is the file name stem shared by every export of a day
const BaseName = "facturas_export"

// Renderer writes records in one format
type Renderer interface {
	Ext() string
	Render(path string, records []model.Record, now time.Time) error
}

// GeneratedFile is one written export
type GeneratedFile struct {
	Format Format `json:"type"`
	Path   string `json:"path"`
}

// ParseFormats validates format names. Duplicates are dropped; an empty
// list selects every format.
func ParseFormats(names []string) ([]Format, error) {
	if len(names) == 0 {
		return []Format{FormatExcel, FormatCSV, FormatPDF}, nil
	}
	seen := map[Format]bool{}
	var out []Format
	for _, n := range names {
		f := Format(strings.ToLower(strings.TrimSpace(n)))
		switch f {
		case FormatExcel, FormatCSV, FormatPDF:
		default:
			return nil, model.NewValidationError("formats", n, "oneof=excel csv pdf", "unknown export format")
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Exporter renders record sets in several formats
type Exporter struct {
	renderers map[Format]Renderer
	logger    *zap.Logger
}

// Option configures an Exporter
type Option func(*Exporter)

// WithRenderer registers or replaces the renderer for a format
func WithRenderer(f Format, r Renderer) Option {
	return func(e *Exporter) {
		e.renderers[f] = r
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExporter creates an exporter with the excel, csv and pdf renderers
func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{
		renderers: map[Format]Renderer{
			FormatExcel: Excel{},
			FormatCSV:   CSV{},
			FormatPDF:   PDF{},
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes one file per format into outDir. A failing format is
// reported in the error map and never prevents the others.
func (e *Exporter) Export(records []model.Record, formats []Format, outDir string, now time.Time) ([]GeneratedFile, map[Format]error) {
	errs := map[Format]error{}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		for _, f := range formats {
			errs[f] = fmt.Errorf("failed to create %s: %w", outDir, err)
		}
		return nil, errs
	}

	stem := now.Format(model.DateLayout) + " " + BaseName
	var files []GeneratedFile
	for _, f := range formats {
		r, ok := e.renderers[f]
		if !ok {
			errs[f] = model.NewValidationError("formats", string(f), "oneof=excel csv pdf", "unknown export format")
			continue
		}
		path := filepath.Join(outDir, stem+r.Ext())
		if err := r.Render(path, records, now); err != nil {
			e.logger.Error("Export failed", zap.String("format", string(f)), zap.Error(err))
			errs[f] = err
			continue
		}
		e.logger.Info("Export written", zap.String("format", string(f)), zap.String("path", path), zap.Int("records", len(records)))
		files = append(files, GeneratedFile{Format: f, Path: path})
	}
	if len(errs) == 0 {
		errs = nil
	}
	return files, errs
}

// ErrorMessages flattens per-format errors into stable, sorted strings
func ErrorMessages(errs map[Format]error) []string {
	out := make([]string, 0, len(errs))
	for f, err := range errs {
		out = append(out, fmt.Sprintf("%s: %v", f, err))
	}
	sort.Strings(out)
	return out
}
