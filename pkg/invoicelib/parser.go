package invoicelib

import (
	"context"
	"io"

	"github.com/rezonia/factura-importer/internal/processor"
)

var defaultPipeline = processor.NewPipeline()

// Parse normalizes a standalone XML document, an AttachedDocument wrapper
// or a ZIP archive. Failures are *ExtractionError values.
func Parse(raw []byte) (*Record, error) {
	res := defaultPipeline.ProcessBytes(context.Background(), raw, "")
	if res.Error != nil {
		return nil, res.Error
	}
	return res.Record, nil
}

// ParseReader reads r fully and parses it
func ParseReader(ctx context.Context, r io.Reader) (*Record, error) {
	res := defaultPipeline.ProcessXML(ctx, r)
	if res.Error != nil {
		return nil, res.Error
	}
	return res.Record, nil
}

// Warnings returns non-fatal consistency warnings for rec
func Warnings(rec *Record) []string {
	return processor.Check(rec)
}

// ParseResult is the outcome of one input of ParseBatch
type ParseResult struct {
	Record *Record
	Err    error
}

// ParseBatch parses inputs concurrently. Results keep the input order.
func ParseBatch(ctx context.Context, inputs [][]byte) []ParseResult {
	results := make([]ParseResult, len(inputs))
	done := make(chan struct{}, len(inputs))

	for i, input := range inputs {
		go func(idx int, raw []byte) {
			defer func() { done <- struct{}{} }()
			res := defaultPipeline.ProcessBytes(ctx, raw, "")
			results[idx] = ParseResult{Record: res.Record, Err: res.Error}
		}(i, input)
	}
	for range inputs {
		<-done
	}
	return results
}
