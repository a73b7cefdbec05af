package calendarquery

import (
	"time"

	"github.com/yanqian/ai-assistant/pkg/util"
)

// Validate applies defaulting, ordering correction and bounds clamping to a
// decoded intent. It is total: every input yields a usable query with both
// bounds set and start <= end.
func Validate(intent QueryIntent, start, end *time.Time, tc TemporalContext) CalendarQuery {
	qt := intent.QueryType
	if qt == "" {
		qt = QueryToday
	}

	if qt == QueryNextEvents && start == nil {
		start = ptr(tc.Now)
	}
	if qt == QueryNextEvents && end == nil {
		end = ptr(tc.Now.AddDate(0, 0, NextEventsHorizonDays))
	}
	if qt == QueryToday && start == nil && end == nil {
		start = ptr(util.StartOfDay(tc.Now))
		end = ptr(util.EndOfDay(tc.Now))
	}

	start, end = completeBounds(qt, start, end, tc)

	if start.After(*end) {
		start, end = end, start
	}

	// A bare date given as both bounds means that whole day.
	if (qt == QuerySpecificDate || qt == QueryDateRange) && start.Equal(*end) && end.Equal(util.StartOfDay(*end)) {
		end = ptr(util.EndOfDay(*end))
	}

	// A today query always covers the whole local day, even when the model
	// echoed "today"/"today" as a zero-width pair.
	if qt == QueryToday {
		start = ptr(util.StartOfDay(tc.Now))
		end = ptr(util.EndOfDay(tc.Now))
	}

	return CalendarQuery{
		QueryType:          qt,
		StartDatetime:      *start,
		EndDatetime:        *end,
		EventLimit:         clampLimit(intent.EventLimit),
		TimeContext:        intent.TimeContext,
		Language:           intent.Language,
		NeedsClarification: intent.NeedsClarification,
		AmbiguityReason:    intent.AmbiguityReason,
	}
}

// completeBounds fills whichever bound is still missing after the defaulting
// rules so downstream search always gets a closed window.
func completeBounds(qt QueryType, start, end *time.Time, tc TemporalContext) (*time.Time, *time.Time) {
	switch {
	case start == nil && end == nil:
		return ptr(util.StartOfDay(tc.Now)), ptr(util.EndOfDay(tc.Now))
	case start == nil:
		if qt == QuerySpecificDate || end.Before(tc.Now) {
			return ptr(util.StartOfDay(*end)), end
		}
		return ptr(tc.Now), end
	case end == nil:
		if qt == QuerySpecificDate {
			return start, ptr(util.EndOfDay(*start))
		}
		return start, ptr(start.AddDate(0, 0, NextEventsHorizonDays))
	}
	return start, end
}

func clampLimit(limit *int) *int {
	if limit == nil {
		return nil
	}
	n := *limit
	if n < MinEventLimit {
		n = MinEventLimit
	}
	if n > MaxEventLimit {
		n = MaxEventLimit
	}
	return &n
}

func ptr(t time.Time) *time.Time {
	return &t
}
