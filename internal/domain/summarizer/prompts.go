package summarizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/yanqian/ai-assistant/internal/domain/calendar"
	"github.com/yanqian/ai-assistant/internal/domain/mail"
)

const (
	calendarSystemPrompt = "You are a helpful calendar assistant. ALWAYS respond in the same language the user used in their question. If they asked in Portuguese, you MUST reply in Portuguese. Be natural and focus on what the user actually asked for."
	emailSystemPrompt    = "You are a helpful email assistant. ALWAYS respond in the same language the user used in their question. If they asked in Portuguese, you MUST reply in Portuguese. Be natural and focus on what the user actually asked for."
	generalSystemPrompt  = "You are a helpful personal assistant. Respond naturally in the user's language and be conversational yet professional."
	briefingSystemPrompt = "You are a helpful personal assistant providing daily briefings. Be natural, organized, and focus on actionable insights."

	maxAttendeesListed = 5
)

const languageRules = `IMPORTANT: Respond in the EXACT same language as the user's question.
If they asked in Portuguese, reply in Portuguese.
If they asked in English, reply in English.
If they asked in Spanish, reply in Spanish.`

func calendarPrompt(req EventsRequest, events []calendar.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User asked: %q\n\n", req.Query)
	if len(events) == 0 {
		b.WriteString("There are no meetings or events scheduled in the requested period.\n\n")
		b.WriteString("Respond to the user's request in the same language they used, letting them know there are no meetings scheduled.")
		writeLanguageHint(&b, req.LanguageHint)
		return b.String()
	}

	b.WriteString("Here are the calendar events:\n")
	for i, event := range events {
		fmt.Fprintf(&b, "%d. %s\n", i+1, describeEvent(event, req.Location))
	}
	b.WriteString("\n")
	b.WriteString(languageRules)
	b.WriteString("\n\n")
	if req.Limit > 0 {
		fmt.Fprintf(&b, "IMPORTANT: The user asked for %d event(s). Only show that exact number of events in chronological order, not all events found.\n\n", req.Limit)
	}
	b.WriteString(`Analyze the calendar and respond to the user's request.
Provide helpful, organized information that directly addresses what they asked for.
Use clear formatting and be conversational yet informative.`)
	writeLanguageHint(&b, req.LanguageHint)
	return b.String()
}

func emailPrompt(req EmailsRequest, emails []mail.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User asked: %q\n\n", req.Query)
	if len(emails) == 0 {
		b.WriteString("There are currently no unread emails.\n\n")
		b.WriteString("Respond to the user's request in the same language they used, letting them know there are no unread emails at this time.")
		return b.String()
	}

	fmt.Fprintf(&b, "Here are the %d unread emails:\n", len(emails))
	for i, msg := range emails {
		fmt.Fprintf(&b, "%d. From: %s\n   Subject: %s\n   Date: %s\n   Preview: %s\n\n",
			i+1, orDefault(msg.Sender, "Unknown"), orDefault(msg.Subject, "No Subject"), msg.Date, msg.Preview)
	}
	b.WriteString(languageRules)
	b.WriteString(`

Analyze the emails and respond to the user's request.
Provide helpful, organized information that directly addresses what they asked for.
Use clear formatting and be conversational yet informative.`)
	return b.String()
}

func generalPrompt(req GeneralRequest) string {
	return fmt.Sprintf(`User asked: %q

This is a general request not specifically about emails or calendar.
Respond helpfully in the same language the user used.
Be conversational, friendly, and informative.

If they're asking about your capabilities, let them know you can help with:
- Checking and analyzing emails
- Reviewing calendar and meetings
- General questions and assistance`, req.Query)
}

func briefingPrompt(req BriefingRequest, events []calendar.Event, emails []mail.Message) string {
	var b strings.Builder
	b.WriteString("Create a comprehensive daily briefing from this information:\n\nEMAILS:\n")
	if len(emails) == 0 {
		b.WriteString("No unread emails.\n")
	}
	for _, msg := range emails {
		fmt.Fprintf(&b, "- From: %s, Subject: %s\n", orDefault(msg.Sender, "Unknown"), orDefault(msg.Subject, "No Subject"))
	}
	b.WriteString("\nCALENDAR:\n")
	if len(events) == 0 {
		b.WriteString("No meetings scheduled for today.\n")
	}
	for _, event := range events {
		fmt.Fprintf(&b, "- %s: %s\n", startLabel(event, req.Location), orDefault(event.Title, "No Title"))
	}
	b.WriteString("\n")
	if hint := strings.TrimSpace(req.LanguageHint); hint != "" {
		fmt.Fprintf(&b, "Respond in the language with code %q.\n", hint)
	} else {
		b.WriteString("Respond in Portuguese (Portugal) as default, but adapt to user's language if context suggests otherwise.\n")
	}
	b.WriteString(`
Provide a unified daily briefing that:
1. Highlights the most important items from both emails and calendar
2. Identifies any connections between emails and meetings
3. Suggests priorities for the day
4. Notes any urgent items requiring immediate attention

Be conversational, organized, and helpful.`)
	return b.String()
}

func describeEvent(event calendar.Event, loc *time.Location) string {
	var b strings.Builder
	start := inZone(event.Start, loc)
	end := inZone(event.End, loc)
	switch {
	case event.AllDay:
		fmt.Fprintf(&b, "%s (All day)", event.Start.Format(time.DateOnly))
	case start.IsZero():
		b.WriteString("Time unknown")
	default:
		fmt.Fprintf(&b, "%s %s", start.Format(time.DateOnly), start.Format("15:04"))
		if !end.IsZero() {
			fmt.Fprintf(&b, " - %s", end.Format("15:04"))
		}
	}
	fmt.Fprintf(&b, ": %s", orDefault(event.Title, "No Title"))
	if event.Location != "" {
		fmt.Fprintf(&b, " (Location: %s)", event.Location)
	}
	if len(event.Attendees) > 0 {
		names := make([]string, 0, maxAttendeesListed)
		for i, attendee := range event.Attendees {
			if i == maxAttendeesListed {
				break
			}
			names = append(names, orDefault(attendee.Name, attendee.Email))
		}
		fmt.Fprintf(&b, "\n   Attendees: %s", strings.Join(names, ", "))
		if extra := len(event.Attendees) - maxAttendeesListed; extra > 0 {
			fmt.Fprintf(&b, " and %d more", extra)
		}
	}
	return b.String()
}

func startLabel(event calendar.Event, loc *time.Location) string {
	if event.AllDay {
		return "All day"
	}
	return inZone(event.Start, loc).Format("15:04")
}

func writeLanguageHint(b *strings.Builder, hint string) {
	if hint = strings.TrimSpace(hint); hint != "" {
		fmt.Fprintf(b, "\n\nThe user's language code is %q.", hint)
	}
}

func inZone(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() || loc == nil || loc == t.Location() {
		return t
	}
	return t.In(loc)
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
