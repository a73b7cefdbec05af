package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const helpText = `I can help you with:
• Your calendar: "what do I have today?", "next 5 events", "meetings next week"
• Your inbox: "any unread emails?"
• General questions

Commands:
/summary - daily briefing with today's events and unread emails
/emails - summarize unread emails
/calendar [question] - ask about your calendar (defaults to today)
/timezone <zone> - set your timezone, e.g. /timezone Europe/Lisbon
/language <code> - set your preferred language, e.g. /language pt
/subscribe - receive the daily briefing every morning
/unsubscribe - stop the daily briefing
/help - show this message`

func (s *service) handleCommand(ctx context.Context, msg Message) (Reply, error) {
	name, arg := splitCommand(msg.Text)
	s.logger.Info("command received", "chat_id", msg.ChatID, "command", name)

	switch name {
	case "start":
		return commandReply("Hello! I'm your personal assistant.\n\n" + helpText), nil
	case "help":
		return commandReply(helpText), nil
	case "summary":
		return s.DailyBriefing(ctx, msg.ChatID)
	case "emails":
		return s.handleEmail(ctx, "Summarize my unread emails.")
	case "calendar":
		if arg == "" {
			arg = "What do I have today?"
		}
		return s.handleCalendar(ctx, msg.ChatID, arg, s.preferences(ctx, msg.ChatID))
	case "timezone":
		return s.setTimezone(ctx, msg.ChatID, arg)
	case "language":
		return s.setLanguage(ctx, msg.ChatID, arg)
	case "subscribe":
		return s.setSubscribed(ctx, msg.ChatID, true)
	case "unsubscribe":
		return s.setSubscribed(ctx, msg.ChatID, false)
	default:
		return commandReply(fmt.Sprintf("Unknown command /%s.\n\n%s", name, helpText)), nil
	}
}

func (s *service) setTimezone(ctx context.Context, chatID, zone string) (Reply, error) {
	prefs := s.preferences(ctx, chatID)
	if zone == "" {
		return commandReply(fmt.Sprintf("Your timezone is %s. Use /timezone <zone> to change it.", prefs.Timezone)), nil
	}
	if _, err := time.LoadLocation(zone); err != nil {
		return commandReply(fmt.Sprintf("Unknown timezone %q. Use an IANA name such as Europe/Lisbon.", zone)), nil
	}
	prefs.Timezone = zone
	if err := s.savePreferences(ctx, prefs); err != nil {
		return Reply{}, err
	}
	return commandReply(fmt.Sprintf("Timezone set to %s.", zone)), nil
}

func (s *service) setLanguage(ctx context.Context, chatID, code string) (Reply, error) {
	prefs := s.preferences(ctx, chatID)
	if code == "" {
		return commandReply(fmt.Sprintf("Your language is %s. Use /language <code> to change it.", prefs.Language)), nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		return commandReply(fmt.Sprintf("Unknown language code %q. Try something like pt or en.", code)), nil
	}
	base, _ := tag.Base()
	prefs.Language = base.String()
	if err := s.savePreferences(ctx, prefs); err != nil {
		return Reply{}, err
	}
	return commandReply(fmt.Sprintf("Language set to %s.", prefs.Language)), nil
}

func (s *service) setSubscribed(ctx context.Context, chatID string, subscribed bool) (Reply, error) {
	prefs := s.preferences(ctx, chatID)
	prefs.Subscribed = subscribed
	if err := s.savePreferences(ctx, prefs); err != nil {
		return Reply{}, err
	}
	if subscribed {
		return commandReply("You will receive the daily briefing every morning. Use /unsubscribe to stop."), nil
	}
	return commandReply("Daily briefing disabled."), nil
}

func (s *service) savePreferences(ctx context.Context, prefs Preferences) error {
	if s.prefs == nil {
		return fmt.Errorf("preference store not configured")
	}
	if prefs.ChatID == "" {
		return fmt.Errorf("chat id is required to save preferences")
	}
	prefs.UpdatedAt = s.now().UTC()
	if err := s.prefs.Save(ctx, prefs); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// splitCommand parses "/name@bot arg..." into its lower-cased name and the
// trimmed remainder.
func splitCommand(text string) (string, string) {
	text = strings.TrimPrefix(strings.TrimSpace(text), "/")
	name, arg, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), strings.TrimSpace(arg)
}

func commandReply(text string) Reply {
	return Reply{Text: text, Route: RouteCommand}
}
