package calendarquery

import (
	"strings"
	"time"

	"github.com/yanqian/ai-assistant/pkg/util"
)

// TemporalContext is a snapshot of "now" and the calendar boundaries derived
// from it in one timezone. It is built per query and never mutated.
type TemporalContext struct {
	Now         time.Time
	Today       time.Time
	Tomorrow    time.Time
	StartOfWeek time.Time
	EndOfWeek   time.Time
	EndOfMonth  time.Time

	WeekdayName    string
	MonthYearLabel string
	TimezoneLabel  string
	Location       *time.Location
}

// BuildTemporalContext derives the context for now in the named zone. An empty
// zone means UTC; an unknown zone silently uses the process local zone.
func BuildTemporalContext(timezone string, now time.Time) TemporalContext {
	label := strings.TrimSpace(timezone)
	if label == "" {
		label = DefaultTimezone
	}
	loc, _ := util.LoadLocation(label)
	now = now.In(loc)

	today := util.StartOfDay(now)
	sinceMonday := (int(now.Weekday()) + 6) % 7
	startOfWeek := today.AddDate(0, 0, -sinceMonday)
	sunday := startOfWeek.AddDate(0, 0, 6)
	endOfWeek := time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 23, 59, 59, 0, loc)

	return TemporalContext{
		Now:            now,
		Today:          today,
		Tomorrow:       today.AddDate(0, 0, 1),
		StartOfWeek:    startOfWeek,
		EndOfWeek:      endOfWeek,
		EndOfMonth:     endOfMonth(now),
		WeekdayName:    now.Weekday().String(),
		MonthYearLabel: now.Format("January 2006"),
		TimezoneLabel:  label,
		Location:       loc,
	}
}

func endOfMonth(now time.Time) time.Time {
	var firstOfNext time.Time
	if now.Month() == time.December {
		firstOfNext = time.Date(now.Year()+1, time.January, 1, 0, 0, 0, 0, now.Location())
	} else {
		firstOfNext = time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
	}
	last := firstOfNext.AddDate(0, 0, -1)
	return time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 59, 0, now.Location())
}
