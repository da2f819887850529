package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rezonia/factura-importer/internal/archive"
	"github.com/rezonia/factura-importer/internal/model"
)

var errNoResult = errors.New("item produced no result")

// Item is one unit of batch work: a file, an uploaded payload or a mail
// message. Resolve must not persist anything.
type Item interface {
	Label() string
	Resolve(ctx context.Context, p *Pipeline) *Result
}

// Finisher is implemented by items that need to react to their final
// outcome, e.g. labelling or discarding a mail message
type Finisher interface {
	Finish(ctx context.Context, out *model.Outcome) error
}

// Describer is implemented by items that carry display fields of their own,
// such as the sender and subject of a mail message. Describe runs after
// Resolve whatever its result.
type Describer interface {
	Describe(out *model.Outcome)
}

// Archiver stores the source files of an imported record and returns the
// names it wrote
type Archiver interface {
	Save(rec *model.Record, bundle *archive.Bundle) ([]string, error)
}

// Batch drives items through the pipeline and the gate sequentially
type Batch struct {
	pipeline *Pipeline
	gate     *Gate
	archiver Archiver
	logger   *zap.Logger
}

// BatchOption configures a Batch
type BatchOption func(*Batch)

// WithArchiver saves source files of imported records
func WithArchiver(a Archiver) BatchOption {
	return func(b *Batch) {
		b.archiver = a
	}
}

// WithBatchLogger sets the logger
func WithBatchLogger(l *zap.Logger) BatchOption {
	return func(b *Batch) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBatch creates a batch driver
func NewBatch(p *Pipeline, g *Gate, opts ...BatchOption) *Batch {
	b := &Batch{pipeline: p, gate: g, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run processes items in the order given. Failures are recorded per item
// and never stop the batch. Filtered items are counted but left out of the
// returned outcomes. Cancelling ctx stops the run between items.
func (b *Batch) Run(ctx context.Context, items []Item, filters model.Filters, mode model.Mode) ([]model.Outcome, model.Stats) {
	stats := model.Stats{RunID: uuid.NewString()}
	outcomes := make([]model.Outcome, 0, len(items))

	log := b.logger.With(zap.String("run_id", stats.RunID), zap.String("mode", string(mode)))
	log.Info("Batch started", zap.Int("items", len(items)))

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			log.Warn("Batch cancelled", zap.Int("remaining", len(items)-i), zap.Error(err))
			break
		}

		out := b.runItem(ctx, item, filters, mode, log)
		stats.Add(out.Status)
		if out.Status == model.StatusSuccess || out.Status == model.StatusDuplicate {
			stats.FilesSaved += len(out.Files)
		}
		if out.Status != model.StatusFiltered {
			outcomes = append(outcomes, *out)
		}
	}

	log.Info("Batch finished",
		zap.Int("scanned", stats.Scanned),
		zap.Int("successful", stats.Successful),
		zap.Int("duplicates", stats.Duplicate),
		zap.Int("errors", stats.Errors),
		zap.Int("filtered", stats.Filtered),
	)
	return outcomes, stats
}

func (b *Batch) runItem(ctx context.Context, item Item, filters model.Filters, mode model.Mode, log *zap.Logger) (out *model.Outcome) {
	out = &model.Outcome{Label: item.Label()}
	defer func() {
		if r := recover(); r != nil {
			log.Error("Item panicked", zap.String("item", out.Label), zap.Any("panic", r))
			*out = model.Outcome{
				Label:   out.Label,
				Status:  model.StatusError,
				Reason:  model.ReasonUnexpected,
				Message: fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	res := item.Resolve(ctx, b.pipeline)
	if d, ok := item.(Describer); ok {
		d.Describe(out)
	}
	switch {
	case res == nil:
		b.fail(out, errNoResult)
	case res.Error != nil:
		b.fail(out, res.Error)
	case !filters.Match(res.Record):
		out.Fill(res.Record)
		out.Status = model.StatusFiltered
	default:
		out.Fill(res.Record)
		status, err := b.gate.Submit(ctx, res.Record, mode)
		out.Status = status
		if err != nil {
			b.fail(out, err)
			break
		}
		if mode == model.ModeCommit && b.archiver != nil {
			files, err := b.archiver.Save(res.Record, res.Bundle)
			out.Files = files
			if err != nil {
				log.Error("Failed to archive source files", zap.String("item", out.Label), zap.Error(err))
				out.Message = "archive failed: " + err.Error()
			}
		}
	}

	if out.Status == model.StatusError {
		log.Warn("Item failed", zap.String("item", out.Label), zap.String("reason", string(out.Reason)), zap.String("message", out.Message))
	} else {
		log.Debug("Item processed", zap.String("item", out.Label), zap.String("status", string(out.Status)))
	}

	if f, ok := item.(Finisher); ok {
		if err := f.Finish(ctx, out); err != nil {
			log.Warn("Item finisher failed", zap.String("item", out.Label), zap.Error(err))
		}
	}
	return out
}

func (b *Batch) fail(out *model.Outcome, err error) {
	out.Status = model.StatusError
	out.Reason = model.ReasonOf(err)
	out.Message = err.Error()
}
