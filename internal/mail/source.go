package mail

import (
	"context"
	"strings"
)

// Attachment references a file attached to a message
type Attachment struct {
	Filename string `json:"filename"`
	ID       string `json:"attachment_id"`
}

// IsZip reports whether the attachment looks like a ZIP archive
func (a Attachment) IsZip() bool {
	return strings.HasSuffix(strings.ToLower(a.Filename), ".zip")
}

// Message is the provider-neutral view of a mail message
type Message struct {
	ID           string       `json:"id"`
	ThreadID     string       `json:"thread_id,omitempty"`
	From         string       `json:"from"`
	Subject      string       `json:"subject"`
	Date         string       `json:"date"`
	InternalDate int64        `json:"-"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

// Source is the mailbox capability used by the importer
type Source interface {
	// EnsureLabel returns the id of the named label, creating it if needed
	EnsureLabel(ctx context.Context, name string) (string, error)

	// ListUnprocessed returns ids of inbox messages without the label,
	// newest first as the provider reports them
	ListUnprocessed(ctx context.Context, label string) ([]string, error)

	// Metadata fetches headers and thread grouping, without attachments
	Metadata(ctx context.Context, messageID string) (*Message, error)

	// Attachments lists the attachments of a single message
	Attachments(ctx context.Context, messageID string) ([]Attachment, error)

	// ThreadMessages returns every message of a thread, oldest first, with
	// attachments populated
	ThreadMessages(ctx context.Context, threadID string) ([]*Message, error)

	// Download fetches raw attachment bytes
	Download(ctx context.Context, messageID, attachmentID string) ([]byte, error)

	// MarkProcessed applies the label and removes the message from the inbox
	MarkProcessed(ctx context.Context, messageID, labelID string) error

	// Trash moves a message to the trash
	Trash(ctx context.Context, messageID string) error
}
