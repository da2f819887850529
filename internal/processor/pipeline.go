package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"go.uber.org/zap"

	"github.com/rezonia/factura-importer/internal/archive"
	"github.com/rezonia/factura-importer/internal/model"
	xmlparser "github.com/rezonia/factura-importer/internal/parser/xml"
)

// Format is the detected payload type
type Format int

const (
	FormatUnknown Format = iota
	FormatXML
	FormatZIP
	FormatPDF
)

func (f Format) String() string {
	switch f {
	case FormatXML:
		return "xml"
	case FormatZIP:
		return "zip"
	case FormatPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectFormat sniffs the payload type from its leading bytes
func DetectFormat(data []byte) Format {
	if archive.IsZip(data) {
		return FormatZIP
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, utf8BOM), " \t\r\n")
	switch {
	case bytes.HasPrefix(trimmed, []byte("%PDF")):
		return FormatPDF
	case bytes.HasPrefix(trimmed, []byte("<")):
		return FormatXML
	}
	return FormatUnknown
}

// Result is the outcome of locating and normalizing one payload. Exactly
// one of Record and Error is set.
type Result struct {
	Record *model.Record
	Bundle *archive.Bundle
	Format Format
	Error  error
}

// Pipeline locates and normalizes raw payloads
type Pipeline struct {
	normalizer *xmlparser.Normalizer
	logger     *zap.Logger
}

// Option configures the pipeline
type Option func(*Pipeline)

// WithNormalizer sets the normalizer
func WithNormalizer(n *xmlparser.Normalizer) Option {
	return func(p *Pipeline) {
		p.normalizer = n
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline creates a new processing pipeline
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	if p.normalizer == nil {
		p.normalizer = xmlparser.NewNormalizer(p.logger)
	}
	return p
}

// ProcessXML processes XML or ZIP input from a reader
func (p *Pipeline) ProcessXML(ctx context.Context, r io.Reader) *Result {
	data, err := io.ReadAll(r)
	if err != nil {
		return &Result{Error: fmt.Errorf("failed to read input: %w", err)}
	}
	return p.ProcessBytes(ctx, data, "")
}

// ProcessBytes locates and normalizes a standalone XML document or a ZIP
// archive. filename is recorded as the record's source filename; for a ZIP
// the chosen member name is used instead.
func (p *Pipeline) ProcessBytes(ctx context.Context, data []byte, filename string) *Result {
	format := DetectFormat(data)
	switch format {
	case FormatZIP:
		return p.processZIP(data)
	case FormatPDF:
		return &Result{Format: format, Error: model.NewExtractionError(model.ReasonNotAnInvoiceDocument,
			"payload", "PDF payloads carry no structured invoice", nil)}
	}

	rec, err := p.normalizer.Parse(data)
	if err != nil {
		p.logger.Debug("XML rejected", zap.String("file", filename), zap.Error(err))
		return &Result{Format: FormatXML, Error: err}
	}
	rec.SourceFilename = filename
	return &Result{
		Record: rec,
		Bundle: &archive.Bundle{XMLName: filename, XML: data},
		Format: FormatXML,
	}
}

func (p *Pipeline) processZIP(data []byte) *Result {
	var rec *model.Record
	bundle, err := archive.Open(data, func(name string, member []byte) error {
		r, err := p.normalizer.Parse(member)
		if err != nil {
			p.logger.Debug("archive member rejected", zap.String("member", name), zap.Error(err))
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return &Result{Format: FormatZIP, Error: err}
	}
	rec.SourceFilename = path.Base(bundle.XMLName)
	return &Result{Record: rec, Bundle: bundle, Format: FormatZIP}
}
