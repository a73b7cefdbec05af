package summarizer

import (
	"time"

	"github.com/yanqian/ai-assistant/internal/domain/calendar"
	"github.com/yanqian/ai-assistant/internal/domain/mail"
	"github.com/yanqian/ai-assistant/pkg/metrics"
)

// Config configures reply generation.
type Config struct {
	EmailLimit        int
	BriefingItemLimit int
	MaxPromptTokens   int
}

// EventsRequest asks for an answer about calendar events.
type EventsRequest struct {
	Query        string
	Events       []calendar.Event
	Limit        int
	Location     *time.Location
	LanguageHint string
}

// EmailsRequest asks for an answer about unread emails.
type EmailsRequest struct {
	Query  string
	Emails []mail.Message
}

// GeneralRequest is a free-form question.
type GeneralRequest struct {
	Query string
}

// BriefingRequest combines today's events and unread mail.
type BriefingRequest struct {
	Events       []calendar.Event
	Emails       []mail.Message
	Location     *time.Location
	LanguageHint string
}

// Response is the generated reply. Degraded marks a deterministic listing
// produced because the model was unavailable.
type Response struct {
	Text       string              `json:"text"`
	DurationMs int64               `json:"durationMs,omitempty"`
	TokenUsage *metrics.TokenUsage `json:"tokenUsage,omitempty"`
	Degraded   bool                `json:"degraded,omitempty"`
}
