package assistant

import (
	"context"

	"github.com/yanqian/ai-assistant/internal/domain/calendar"
	"github.com/yanqian/ai-assistant/internal/domain/calendarquery"
	"github.com/yanqian/ai-assistant/internal/domain/mail"
	"github.com/yanqian/ai-assistant/internal/domain/summarizer"
)

// QueryAnalyzer turns calendar questions into search windows.
type QueryAnalyzer interface {
	Analyze(ctx context.Context, text, timezone string) calendarquery.CalendarQuery
}

// CalendarSearcher lists events overlapping a window.
type CalendarSearcher = calendar.Searcher

// MailProvider lists unread mail.
type MailProvider = mail.Provider

// Summarizer writes the natural language replies.
type Summarizer interface {
	CalendarReply(ctx context.Context, req summarizer.EventsRequest) (summarizer.Response, error)
	EmailReply(ctx context.Context, req summarizer.EmailsRequest) (summarizer.Response, error)
	GeneralReply(ctx context.Context, req summarizer.GeneralRequest) (summarizer.Response, error)
	DailyBriefing(ctx context.Context, req summarizer.BriefingRequest) (summarizer.Response, error)
}

// Classifier is the completion capability used for routing.
type Classifier interface {
	Complete(ctx context.Context, prompt, systemPrompt string, temperature float32) (string, error)
}

// PreferenceStore persists per-chat preferences and briefing subscriptions.
type PreferenceStore interface {
	Get(ctx context.Context, chatID string) (Preferences, bool, error)
	Save(ctx context.Context, prefs Preferences) error
	Subscribers(ctx context.Context) ([]string, error)
}

// QueryLog keeps a history of analyzed calendar questions.
type QueryLog interface {
	Record(ctx context.Context, entry QueryLogEntry) error
	Recent(ctx context.Context, chatID string, limit int) ([]QueryLogEntry, error)
}

// Notifier delivers unsolicited messages such as the daily briefing.
type Notifier interface {
	Notify(ctx context.Context, chatID, text string) error
}
