package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	netmail "net/mail"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/rezonia/factura-importer/internal/model"
)

// MaxListed caps how many message ids a single listing collects
const MaxListed = 2000

// ErrTokenMissing is returned when an OAuth client has no stored token
var ErrTokenMissing = errors.New("gmail token not found, run the auth command first")

// GmailConfig holds Gmail connection settings
type GmailConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
	User            string `mapstructure:"user"`
}

// Gmail implements Source over the Gmail REST API
type Gmail struct {
	svc    *gmail.Service
	user   string
	logger *zap.Logger
}

// NewGmail wraps an existing service
func NewGmail(svc *gmail.Service, user string, logger *zap.Logger) *Gmail {
	if user == "" {
		user = "me"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gmail{svc: svc, user: user, logger: logger}
}

// DialGmail builds an authorized client from the credentials file. Service
// account keys impersonate cfg.User; installed-app credentials use the
// stored token.
func DialGmail(ctx context.Context, cfg GmailConfig, logger *zap.Logger) (*Gmail, error) {
	creds, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var client *http.Client
	if isServiceAccount(creds) {
		jwtCfg, err := google.JWTConfigFromJSON(creds, gmail.GmailModifyScope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse service account: %w", err)
		}
		if cfg.User != "" && cfg.User != "me" {
			jwtCfg.Subject = cfg.User
		}
		client = jwtCfg.Client(ctx)
	} else {
		oauthCfg, err := OAuthConfig(creds)
		if err != nil {
			return nil, err
		}
		tok, err := LoadToken(cfg.TokenFile)
		if err != nil {
			return nil, err
		}
		client = oauth2.NewClient(ctx, oauthCfg.TokenSource(ctx, tok))
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return NewGmail(svc, cfg.User, logger), nil
}

func isServiceAccount(creds []byte) bool {
	var probe struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(creds, &probe) == nil && probe.Type == "service_account"
}

// OAuthConfig parses installed-app client credentials
func OAuthConfig(creds []byte) (*oauth2.Config, error) {
	cfg, err := google.ConfigFromJSON(creds, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client credentials: %w", err)
	}
	return cfg, nil
}

// AuthURL returns the consent page address for an offline token
func AuthURL(cfg *oauth2.Config) string {
	return cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
}

// ExchangeAndSave trades an authorization code for a token and stores it
func ExchangeAndSave(ctx context.Context, cfg *oauth2.Config, code, path string) error {
	tok, err := cfg.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return SaveToken(path, tok)
}

// LoadToken reads a stored OAuth token
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrTokenMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &tok, nil
}

// SaveToken writes an OAuth token readable only by the owner
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (g *Gmail) EnsureLabel(ctx context.Context, name string) (string, error) {
	resp, err := g.svc.Users.Labels.List(g.user).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to list labels: %w", err)
	}
	for _, l := range resp.Labels {
		if l.Name == name {
			return l.Id, nil
		}
	}

	created, err := g.svc.Users.Labels.Create(g.user, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create label %q: %w", name, err)
	}
	g.logger.Info("created gmail label", zap.String("label", name), zap.String("id", created.Id))
	return created.Id, nil
}

func (g *Gmail) ListUnprocessed(ctx context.Context, label string) ([]string, error) {
	query := fmt.Sprintf("label:INBOX -label:%s", label)
	var ids []string
	pageToken := ""
	for {
		call := g.svc.Users.Messages.List(g.user).Q(query).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if len(ids) >= MaxListed {
			g.logger.Warn("message listing capped", zap.Int("cap", MaxListed))
			return ids[:MaxListed], nil
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (g *Gmail) Metadata(ctx context.Context, messageID string) (*Message, error) {
	m, err := g.svc.Users.Messages.Get(g.user, messageID).
		Format("metadata").
		MetadataHeaders("From", "Date", "Subject").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", messageID, err)
	}
	msg := convertMessage(m)
	msg.Attachments = nil
	return msg, nil
}

func (g *Gmail) Attachments(ctx context.Context, messageID string) ([]Attachment, error) {
	m, err := g.svc.Users.Messages.Get(g.user, messageID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", messageID, err)
	}
	return collectAttachments(m.Payload), nil
}

func (g *Gmail) ThreadMessages(ctx context.Context, threadID string) ([]*Message, error) {
	t, err := g.svc.Users.Threads.Get(g.user, threadID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thread %s: %w", threadID, err)
	}
	out := make([]*Message, 0, len(t.Messages))
	for _, m := range t.Messages {
		out = append(out, convertMessage(m))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].InternalDate < out[j].InternalDate
	})
	return out, nil
}

func (g *Gmail) Download(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	body, err := g.svc.Users.Messages.Attachments.Get(g.user, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment: %w", err)
	}
	return decodeBody(body.Data)
}

func (g *Gmail) MarkProcessed(ctx context.Context, messageID, labelID string) error {
	_, err := g.svc.Users.Messages.Modify(g.user, messageID, &gmail.ModifyMessageRequest{
		AddLabelIds:    []string{labelID},
		RemoveLabelIds: []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to label message %s: %w", messageID, err)
	}
	return nil
}

func (g *Gmail) Trash(ctx context.Context, messageID string) error {
	if _, err := g.svc.Users.Messages.Trash(g.user, messageID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to trash message %s: %w", messageID, err)
	}
	return nil
}

// decodeBody accepts base64url data with or without padding
func decodeBody(data string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}

func convertMessage(m *gmail.Message) *Message {
	msg := &Message{
		ID:           m.Id,
		ThreadID:     m.ThreadId,
		InternalDate: m.InternalDate,
	}
	if m.Payload == nil {
		return msg
	}
	for _, h := range m.Payload.Headers {
		switch h.Name {
		case "From":
			msg.From = h.Value
		case "Subject":
			msg.Subject = h.Value
		case "Date":
			msg.Date = headerDate(h.Value)
		}
	}
	msg.Attachments = collectAttachments(m.Payload)
	return msg
}

// headerDate renders a Date header as YYYY-MM-DD, keeping the raw value
// when it cannot be parsed
func headerDate(v string) string {
	t, err := netmail.ParseDate(v)
	if err != nil {
		return v
	}
	return t.Format(model.DateLayout)
}

func collectAttachments(part *gmail.MessagePart) []Attachment {
	if part == nil {
		return nil
	}
	var out []Attachment
	if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
		out = append(out, Attachment{Filename: part.Filename, ID: part.Body.AttachmentId})
	}
	for _, p := range part.Parts {
		out = append(out, collectAttachments(p)...)
	}
	return out
}
