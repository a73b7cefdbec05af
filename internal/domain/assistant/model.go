package assistant

import (
	"time"

	"github.com/yanqian/ai-assistant/internal/domain/calendarquery"
)

// Config controls routing and default preferences.
type Config struct {
	DefaultTimezone   string
	DefaultLanguage   string
	DefaultChatID     string
	EmailLimit        int
	BriefingItemLimit int
}

// Route names the handler chosen for a message.
type Route string

const (
	RouteCalendar Route = "calendar"
	RouteEmail    Route = "email"
	RouteGeneral  Route = "general"
	RouteCommand  Route = "command"
	RouteBriefing Route = "briefing"
)

// Message is one incoming user message.
type Message struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
}

// Reply is the text sent back plus routing details.
type Reply struct {
	Text     string                       `json:"text"`
	Route    Route                        `json:"route"`
	Query    *calendarquery.CalendarQuery `json:"query,omitempty"`
	Degraded bool                         `json:"degraded,omitempty"`
}

// Preferences are per-chat settings.
type Preferences struct {
	ChatID     string    `json:"chatId"`
	Timezone   string    `json:"timezone,omitempty"`
	Language   string    `json:"language,omitempty"`
	Subscribed bool      `json:"subscribed"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// QueryLogEntry records one analyzed calendar question.
type QueryLogEntry struct {
	ID         int64                   `json:"id"`
	ChatID     string                  `json:"chatId"`
	Text       string                  `json:"text"`
	QueryType  calendarquery.QueryType `json:"queryType"`
	Start      time.Time               `json:"start"`
	End        time.Time               `json:"end"`
	EventLimit *int                    `json:"eventLimit,omitempty"`
	Language   string                  `json:"language"`
	Fallback   bool                    `json:"fallback"`
	EventCount int                     `json:"eventCount"`
	CreatedAt  time.Time               `json:"createdAt"`
}
