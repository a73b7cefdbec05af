package summarizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/yanqian/ai-assistant/internal/domain/calendar"
	"github.com/yanqian/ai-assistant/internal/domain/mail"
)

// fallbackEvents lists events without the model, grouped by day and by
// period of the day.
func fallbackEvents(events []calendar.Event, loc *time.Location) string {
	if len(events) == 0 {
		return "No events scheduled in this period."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You have %d event%s:", len(events), plural(len(events)))

	var lastDay string
	var lastPeriod string
	for _, event := range events {
		start := inZone(event.Start, loc)
		if event.AllDay {
			start = event.Start
		}
		day := start.Format("Mon 02 Jan")
		if day != lastDay {
			fmt.Fprintf(&b, "\n\n%s", day)
			lastDay = day
			lastPeriod = ""
		}
		period := periodOf(event, start)
		if period != lastPeriod {
			fmt.Fprintf(&b, "\n%s:", period)
			lastPeriod = period
		}
		b.WriteString("\n  • ")
		if event.AllDay {
			b.WriteString(orDefault(event.Title, "No Title"))
			continue
		}
		end := inZone(event.End, loc)
		fmt.Fprintf(&b, "%s-%s: %s", start.Format("15:04"), end.Format("15:04"), orDefault(event.Title, "No Title"))
		if d := formatDuration(event.Duration()); d != "" {
			fmt.Fprintf(&b, " (%s)", d)
		}
	}

	virtual, inPerson := 0, 0
	for _, event := range events {
		switch event.MeetingType {
		case calendar.MeetingVirtual:
			virtual++
		case calendar.MeetingInPerson:
			inPerson++
		}
	}
	if virtual > 0 || inPerson > 0 {
		fmt.Fprintf(&b, "\n\nMeeting breakdown: %d virtual, %d in-person", virtual, inPerson)
	}
	return b.String()
}

func fallbackEmails(emails []mail.Message) string {
	if len(emails) == 0 {
		return "No unread emails."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d unread email%s:", len(emails), plural(len(emails)))
	for _, msg := range emails {
		fmt.Fprintf(&b, "\n  • %s: %s", orDefault(msg.Sender, "Unknown"), orDefault(msg.Subject, "No Subject"))
	}
	return b.String()
}

func fallbackBriefing(events []calendar.Event, emails []mail.Message, loc *time.Location) string {
	return "Daily briefing\n\n" + fallbackEvents(events, loc) + "\n\n" + fallbackEmails(emails)
}

const fallbackGeneral = "I can't reach the language model right now. I can still help with:\n" +
	"  • /calendar to review your meetings\n" +
	"  • /emails to check unread messages\n" +
	"  • /summary for today's briefing"

func periodOf(event calendar.Event, start time.Time) string {
	switch {
	case event.AllDay:
		return "All-day events"
	case start.Hour() < 12:
		return "Morning"
	case start.Hour() < 17:
		return "Afternoon"
	default:
		return "Evening"
	}
}

func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	switch {
	case minutes <= 0:
		return ""
	case minutes < 60:
		return fmt.Sprintf("%dm", minutes)
	case minutes%60 == 0:
		return fmt.Sprintf("%dh", minutes/60)
	default:
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
