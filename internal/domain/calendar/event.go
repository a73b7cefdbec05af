package calendar

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Event is a normalized calendar entry from any provider.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	AllDay      bool       `json:"allDay"`
	Status      string     `json:"status,omitempty"`
	Organizer   string     `json:"organizer,omitempty"`
	Attendees   []Attendee `json:"attendees,omitempty"`
	MeetingType string     `json:"meetingType,omitempty"`
	Link        string     `json:"link,omitempty"`
}

// Attendee is one invited participant.
type Attendee struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`
}

// Searcher lists events overlapping [start, end]. A positive limit caps the
// number of returned events; zero means provider default.
type Searcher interface {
	Search(ctx context.Context, start, end time.Time, limit int) ([]Event, error)
}

const (
	StatusCancelled = "cancelled"

	MeetingVirtual     = "virtual"
	MeetingInPerson    = "in-person"
	MeetingStandup     = "standup"
	MeetingOneOnOne    = "one-on-one"
	MeetingInterview   = "interview"
	MeetingCompanyWide = "company-wide"
	MeetingGeneric     = "meeting"
)

var virtualHints = []string{"zoom", "meet", "teams", "webex", "skype", "virtual", "online", "video"}

// Duration is the event length; all-day events count as whole days.
func (e Event) Duration() time.Duration {
	if e.End.Before(e.Start) {
		return 0
	}
	return e.End.Sub(e.Start)
}

// ShouldInclude reports whether the event belongs in user facing listings.
func ShouldInclude(e Event) bool {
	return !strings.EqualFold(e.Status, StatusCancelled)
}

// DetermineMeetingType guesses the kind of meeting from its text fields.
func DetermineMeetingType(e Event) string {
	title := strings.ToLower(e.Title)
	description := strings.ToLower(e.Description)
	location := strings.ToLower(e.Location)

	if containsAny(title, virtualHints) || containsAny(description, virtualHints) || containsAny(location, virtualHints) {
		return MeetingVirtual
	}
	if location != "" {
		return MeetingInPerson
	}
	switch {
	case containsAny(title, []string{"standup", "daily", "scrum"}):
		return MeetingStandup
	case containsAny(title, []string{"1:1", "one-on-one", "1-on-1"}):
		return MeetingOneOnOne
	case containsAny(title, []string{"interview", "candidate"}):
		return MeetingInterview
	case containsAny(title, []string{"all-hands", "company", "town hall"}):
		return MeetingCompanyWide
	}
	return MeetingGeneric
}

// SortByStart orders events chronologically, all-day events first within a
// tie, then by title for stable output.
func SortByStart(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.AllDay != b.AllDay {
			return a.AllDay
		}
		return a.Title < b.Title
	})
}

// Overlaps reports whether the event intersects [start, end].
func (e Event) Overlaps(start, end time.Time) bool {
	return !e.Start.After(end) && !e.End.Before(start)
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
