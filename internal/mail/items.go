package mail

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rezonia/factura-importer/internal/model"
	"github.com/rezonia/factura-importer/internal/processor"
)

// DefaultLabel marks messages that were already imported
const DefaultLabel = "Factura_Procesada"

// Options controls how a mailbox is turned into batch items
type Options struct {
	Label        string `mapstructure:"processed_label"`
	MaxMessages  int    `mapstructure:"max_messages"`
	TrashInvalid bool   `mapstructure:"trash_invalid"`
	// DryRun leaves the mailbox untouched whatever the outcome
	DryRun bool `mapstructure:"-"`
}

// Items lists unprocessed messages oldest first and wraps each as a batch
// item. MaxMessages <= 0 means no limit.
func Items(ctx context.Context, src Source, opts Options, logger *zap.Logger) ([]processor.Item, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Label == "" {
		opts.Label = DefaultLabel
	}

	labelID, err := src.EnsureLabel(ctx, opts.Label)
	if err != nil {
		return nil, err
	}
	ids, err := src.ListUnprocessed(ctx, opts.Label)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	if opts.MaxMessages > 0 && len(ids) > opts.MaxMessages {
		ids = ids[:opts.MaxMessages]
	}

	logger.Info("mailbox scanned", zap.Int("messages", len(ids)), zap.String("label", opts.Label))

	items := make([]processor.Item, len(ids))
	for i, id := range ids {
		items[i] = &messageItem{
			src:     src,
			id:      id,
			labelID: labelID,
			opts:    opts,
			logger:  logger.With(zap.String("message", id)),
		}
	}
	return items, nil
}

// messageItem resolves the first importable ZIP attachment of a message's
// thread
type messageItem struct {
	src     Source
	id      string
	labelID string
	opts    Options
	logger  *zap.Logger

	meta *Message
}

func (m *messageItem) Label() string {
	return m.id
}

func (m *messageItem) Resolve(ctx context.Context, p *processor.Pipeline) *processor.Result {
	meta, err := m.src.Metadata(ctx, m.id)
	if err != nil {
		return &processor.Result{Error: err}
	}
	m.meta = meta

	msgs, err := m.threadOf(ctx, meta)
	if err != nil {
		return &processor.Result{Error: err}
	}

	var firstErr error
	zips := 0
	for _, msg := range msgs {
		for _, att := range msg.Attachments {
			if !att.IsZip() {
				continue
			}
			zips++
			data, err := m.src.Download(ctx, msg.ID, att.ID)
			if err != nil {
				return &processor.Result{Error: err}
			}
			res := p.ProcessBytes(ctx, data, att.Filename)
			if res.Error == nil {
				m.logger.Debug("invoice found in thread",
					zap.String("from", meta.From),
					zap.String("attachment", att.Filename),
				)
				return res
			}
			if firstErr == nil {
				firstErr = res.Error
			}
		}
	}

	if firstErr != nil {
		return &processor.Result{Error: firstErr}
	}
	return &processor.Result{Error: model.NewExtractionError(model.ReasonNotAnInvoiceDocument, "attachments",
		fmt.Sprintf("no ZIP attachment in thread (%d checked)", zips), nil)}
}

// Describe copies the message headers into the outcome, failures included
func (m *messageItem) Describe(out *model.Outcome) {
	if m.meta == nil {
		return
	}
	out.Sender = m.meta.From
	out.Subject = m.meta.Subject
	out.Received = m.meta.Date
}

func (m *messageItem) threadOf(ctx context.Context, meta *Message) ([]*Message, error) {
	if meta.ThreadID != "" {
		return m.src.ThreadMessages(ctx, meta.ThreadID)
	}
	atts, err := m.src.Attachments(ctx, m.id)
	if err != nil {
		return nil, err
	}
	single := *meta
	single.Attachments = atts
	return []*Message{&single}, nil
}

// Finish labels imported messages and discards those without a usable
// invoice. Storage faults, transport errors and filtered messages are left
// in the inbox for the next run.
func (m *messageItem) Finish(ctx context.Context, out *model.Outcome) error {
	if m.opts.DryRun {
		return nil
	}
	switch out.Status {
	case model.StatusSuccess, model.StatusDuplicate:
		return m.src.MarkProcessed(ctx, m.id, m.labelID)
	case model.StatusError:
		if !m.opts.TrashInvalid || !unusable(out.Reason) {
			return nil
		}
		m.logger.Info("discarding message without a valid invoice", zap.String("reason", string(out.Reason)))
		return m.src.Trash(ctx, m.id)
	}
	return nil
}

func unusable(r model.Reason) bool {
	switch r {
	case model.ReasonMalformedXML, model.ReasonNotAnInvoiceDocument,
		model.ReasonMissingInvoiceNumber, model.ReasonMissingSupplierName:
		return true
	}
	return false
}
