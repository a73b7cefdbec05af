package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/yanqian/ai-assistant/internal/domain/calendar"
	"github.com/yanqian/ai-assistant/internal/domain/mail"
	"github.com/yanqian/ai-assistant/internal/domain/summarizer"
	"github.com/yanqian/ai-assistant/pkg/util"
)

// DailyBriefing summarizes today's events in the chat's zone together with
// unread mail. A failing provider contributes nothing rather than failing the
// briefing.
func (s *service) DailyBriefing(ctx context.Context, chatID string) (Reply, error) {
	prefs := s.preferences(ctx, chatID)
	loc := s.location(prefs.Timezone)
	now := s.now().In(loc)

	var events []calendar.Event
	if s.calendar != nil {
		found, err := s.calendar.Search(ctx, util.StartOfDay(now), util.EndOfDay(now), 0)
		if err != nil {
			s.logger.Warn("briefing calendar search failed", "chat_id", chatID, "error", err)
		}
		events = found
	}

	var emails []mail.Message
	if s.mail != nil {
		found, err := s.mail.UnreadEmails(ctx, s.cfg.BriefingItemLimit)
		if err != nil {
			s.logger.Warn("briefing mail fetch failed", "chat_id", chatID, "error", err)
		}
		emails = found
	}

	resp, err := s.summarizer.DailyBriefing(ctx, summarizer.BriefingRequest{
		Events:       events,
		Emails:       emails,
		Location:     loc,
		LanguageHint: prefs.Language,
	})
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: resp.Text, Route: RouteBriefing, Degraded: resp.Degraded}, nil
}

// SendDailyBriefings delivers a briefing to every subscribed chat plus the
// configured default chat. Each chat is attempted; the joined errors are
// returned.
func (s *service) SendDailyBriefings(ctx context.Context, notifier Notifier) error {
	if notifier == nil {
		return errors.New("no notifier configured")
	}
	chats, err := s.briefingChats(ctx)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		s.logger.Info("no chats subscribed to the daily briefing")
		return nil
	}

	var errs []error
	for _, chatID := range chats {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		reply, err := s.DailyBriefing(ctx, chatID)
		if err != nil {
			errs = append(errs, fmt.Errorf("briefing for chat %s: %w", chatID, err))
			continue
		}
		if err := notifier.Notify(ctx, chatID, reply.Text); err != nil {
			errs = append(errs, fmt.Errorf("deliver briefing to chat %s: %w", chatID, err))
			continue
		}
		s.logger.Info("daily briefing delivered", "chat_id", chatID, "degraded", reply.Degraded)
	}
	return errors.Join(errs...)
}

func (s *service) briefingChats(ctx context.Context) ([]string, error) {
	var chats []string
	if s.prefs != nil {
		subs, err := s.prefs.Subscribers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list briefing subscribers: %w", err)
		}
		chats = subs
	}
	if s.cfg.DefaultChatID != "" {
		seen := false
		for _, id := range chats {
			if id == s.cfg.DefaultChatID {
				seen = true
				break
			}
		}
		if !seen {
			chats = append([]string{s.cfg.DefaultChatID}, chats...)
		}
	}
	return chats, nil
}
