package calendarquery

import (
	"fmt"
	"strings"
	"time"
)

const intentSystemPrompt = "You are a calendar query analyzer. Return only valid JSON with the exact structure requested. Be precise with datetime handling and language detection."

const intentInstructions = `Analyze this calendar query and return a JSON response with the following structure:

{
  "query_type": "date_range" | "next_events" | "specific_date" | "today",
  "start_datetime": "ISO datetime or relative like 'now', 'today'",
  "end_datetime": "ISO datetime or relative like 'end_of_month', '+90days'",
  "event_limit": number (only if user asked for specific count like "next 5 events"),
  "time_context": "descriptive label like 'this_week', 'end_of_month', 'next_events'",
  "language": "pt" | "en" | "es" | "fr" (detected language),
  "needs_clarification": false (set to true only if query is genuinely ambiguous),
  "ambiguity_reason": "explanation if needs_clarification is true"
}

Relative values you may use: now, today, tomorrow, end_of_week, end_of_month, +Ndays, +Nweeks.

IMPORTANT RULES:
1. For "next N events" queries, use "now" as start_datetime (current exact time) and "+90days" as end_datetime
2. For date range queries like "até fim do mês", use current datetime as start and actual end date
3. Always return valid JSON only, no additional text
4. If user asks for specific number of events, set event_limit to that number
5. If user asks for singular "next event" (próximo evento, next event), set event_limit to 1
6. Language detection should be accurate based on the query

EXAMPLES:
Query: "próximos 5 eventos"
Response: {"query_type": "next_events", "start_datetime": "now", "end_datetime": "+90days", "event_limit": 5, "time_context": "next_events", "language": "pt"}

Query: "qual o meu próximo evento?" (singular)
Response: {"query_type": "next_events", "start_datetime": "now", "end_datetime": "+90days", "event_limit": 1, "time_context": "next_event", "language": "pt"}

Query: "tenho algo até ao fim do mês?"
Response: {"query_type": "date_range", "start_datetime": "now", "end_datetime": "end_of_month", "time_context": "end_of_month", "language": "pt"}

Query: "what meetings do I have today?"
Response: {"query_type": "today", "start_datetime": "today", "end_datetime": "today", "time_context": "today", "language": "en"}

Query: "what's my next meeting?" (singular)
Response: {"query_type": "next_events", "start_datetime": "now", "end_datetime": "+90days", "event_limit": 1, "time_context": "next_event", "language": "en"}`

func buildIntentPrompt(text string, tc TemporalContext) string {
	var b strings.Builder
	b.WriteString("CURRENT TEMPORAL CONTEXT:\n")
	fmt.Fprintf(&b, "- Current date/time: %s\n", tc.Now.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Current date: %s\n", tc.Now.Format(time.DateOnly))
	fmt.Fprintf(&b, "- Current time: %s\n", tc.Now.Format(time.TimeOnly))
	fmt.Fprintf(&b, "- Today is: %s\n", tc.WeekdayName)
	fmt.Fprintf(&b, "- Current month: %s\n", tc.MonthYearLabel)
	fmt.Fprintf(&b, "- Tomorrow: %s\n", tc.Tomorrow.Format(time.DateOnly))
	fmt.Fprintf(&b, "- Start of this week: %s\n", tc.StartOfWeek.Format(time.DateOnly))
	fmt.Fprintf(&b, "- End of this week: %s\n", tc.EndOfWeek.Format(time.DateOnly))
	fmt.Fprintf(&b, "- End of this month: %s\n", tc.EndOfMonth.Format(time.DateOnly))
	fmt.Fprintf(&b, "- Timezone: %s\n\n", tc.TimezoneLabel)
	fmt.Fprintf(&b, "User calendar query: %q\n\n", text)
	b.WriteString(intentInstructions)
	return b.String()
}
