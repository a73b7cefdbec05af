package calendarquery

import (
	"time"

	"github.com/yanqian/ai-assistant/pkg/util"
)

// Fallback builds the deterministic query used whenever the model cannot be
// trusted: today's full local day in now's location, in the given language.
func Fallback(text string, now time.Time, language string) CalendarQuery {
	return CalendarQuery{
		QueryType:     QueryToday,
		StartDatetime: util.StartOfDay(now),
		EndDatetime:   util.EndOfDay(now),
		TimeContext:   "today",
		Language:      language,
		OriginalQuery: text,
		Fallback:      true,
	}
}
