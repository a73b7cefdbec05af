package calendarquery

import (
	"strings"
	"time"
)

// QueryType classifies what window of the calendar the user asked about.
type QueryType string

const (
	QueryToday        QueryType = "today"
	QueryDateRange    QueryType = "date_range"
	QueryNextEvents   QueryType = "next_events"
	QuerySpecificDate QueryType = "specific_date"
)

const (
	// MinEventLimit and MaxEventLimit bound any requested event count.
	MinEventLimit = 1
	MaxEventLimit = 50

	// NextEventsHorizonDays is how far ahead "next events" queries look by default.
	NextEventsHorizonDays = 90

	// DefaultTimezone applies when the caller supplies no zone.
	DefaultTimezone = "UTC"

	// defaultIntentLanguage is assumed when the model omits the language.
	defaultIntentLanguage = "en"
)

// ParseQueryType maps model output onto the closed set of query types.
// Unknown or empty values become QueryToday.
func ParseQueryType(raw string) QueryType {
	switch QueryType(strings.ToLower(strings.TrimSpace(raw))) {
	case QueryDateRange:
		return QueryDateRange
	case QueryNextEvents:
		return QueryNextEvents
	case QuerySpecificDate:
		return QuerySpecificDate
	default:
		return QueryToday
	}
}

// Config configures the analyzer.
type Config struct {
	DefaultTimezone string
	DefaultLanguage string
	Temperature     float32
	Timeout         time.Duration
}

// QueryIntent is the model's untrusted guess at what the user wants. Date
// fields are still symbolic expressions at this point.
type QueryIntent struct {
	QueryType          QueryType
	StartExpr          string
	EndExpr            string
	EventLimit         *int
	TimeContext        string
	Language           string
	NeedsClarification bool
	AmbiguityReason    string
}

// CalendarQuery is the validated query handed to calendar search.
type CalendarQuery struct {
	QueryType          QueryType `json:"queryType"`
	StartDatetime      time.Time `json:"startDatetime"`
	EndDatetime        time.Time `json:"endDatetime"`
	EventLimit         *int      `json:"eventLimit,omitempty"`
	TimeContext        string    `json:"timeContext"`
	Language           string    `json:"language"`
	OriginalQuery      string    `json:"originalQuery"`
	NeedsClarification bool      `json:"needsClarification"`
	AmbiguityReason    string    `json:"ambiguityReason,omitempty"`
	Fallback           bool      `json:"fallback"`
}

// Limit returns the event limit or zero when none was requested.
func (q CalendarQuery) Limit() int {
	if q.EventLimit == nil {
		return 0
	}
	return *q.EventLimit
}
