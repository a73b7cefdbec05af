package google

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/yanqian/ai-assistant/internal/domain/mail"
)

const metadataFetchConcurrency = 5

// MailConfig filters which unread messages are fetched.
type MailConfig struct {
	MaxAgeHours    int
	MaxResults     int
	Labels         []string
	ExcludeSenders []string
	PreviewLength  int
}

// MailProvider lists unread Gmail messages.
type MailProvider struct {
	cfg     MailConfig
	tokens  TokenSourceProvider
	logger  *slog.Logger
	now     func() time.Time
	options []option.ClientOption
}

// NewMailProvider builds a provider authorized through tokens.
func NewMailProvider(cfg MailConfig, tokens TokenSourceProvider, logger *slog.Logger) *MailProvider {
	if cfg.MaxAgeHours <= 0 {
		cfg.MaxAgeHours = 24
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	if cfg.PreviewLength <= 0 {
		cfg.PreviewLength = 200
	}
	return &MailProvider{cfg: cfg, tokens: tokens, logger: logger.With("component", "google.gmail"), now: time.Now}
}

// UnreadEmails implements mail.Provider. Messages whose metadata cannot be
// fetched are skipped.
func (p *MailProvider) UnreadEmails(ctx context.Context, limit int) ([]mail.Message, error) {
	ts, err := p.tokens.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, p.options...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail client: %w", err)
	}

	if limit <= 0 || limit > p.cfg.MaxResults {
		limit = p.cfg.MaxResults
	}
	query := p.query()
	list, err := svc.Users.Messages.List("me").Context(ctx).Q(query).MaxResults(int64(limit)).Do()
	if err != nil {
		return nil, fmt.Errorf("list unread messages: %w", err)
	}

	messages := make([]*mail.Message, len(list.Messages))
	var mu sync.Mutex
	skipped := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(metadataFetchConcurrency)
	for i, ref := range list.Messages {
		i, id := i, ref.Id
		g.Go(func() error {
			msg, err := svc.Users.Messages.Get("me", id).
				Context(gctx).
				Format("metadata").
				MetadataHeaders("From", "Subject", "Date").
				Do()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.logger.Warn("failed to fetch message metadata", "id", id, "error", err)
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			converted := p.convert(msg)
			messages[i] = &converted
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]mail.Message, 0, len(messages))
	for _, m := range messages {
		if m != nil {
			out = append(out, *m)
		}
	}
	p.logger.Info("unread emails fetched", "count", len(out), "skipped", skipped, "query", query)
	return out, nil
}

func (p *MailProvider) query() string {
	after := p.now().Add(-time.Duration(p.cfg.MaxAgeHours) * time.Hour)
	parts := []string{"is:unread", "after:" + after.Format("2006/01/02")}
	for _, label := range p.cfg.Labels {
		if label = strings.TrimSpace(label); label != "" {
			parts = append(parts, "label:"+label)
		}
	}
	for _, sender := range p.cfg.ExcludeSenders {
		if sender = strings.TrimSpace(sender); sender != "" {
			parts = append(parts, "-from:"+sender)
		}
	}
	return strings.Join(parts, " ")
}

func (p *MailProvider) convert(msg *gmail.Message) mail.Message {
	out := mail.Message{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		Labels:       msg.LabelIds,
		InternalDate: time.UnixMilli(msg.InternalDate).UTC(),
		Preview:      truncatePreview(msg.Snippet, p.cfg.PreviewLength),
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				out.Sender = h.Value
			case "subject":
				out.Subject = h.Value
			case "date":
				out.Date = h.Value
			}
		}
	}
	return out
}

func truncatePreview(snippet string, limit int) string {
	snippet = strings.TrimSpace(snippet)
	if limit <= 0 || utf8.RuneCountInString(snippet) <= limit {
		return snippet
	}
	runes := []rune(snippet)
	return string(runes[:limit]) + "..."
}

var _ mail.Provider = (*MailProvider)(nil)
