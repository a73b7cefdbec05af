package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yanqian/ai-assistant/internal/domain/calendar"
	"github.com/yanqian/ai-assistant/internal/domain/calendarquery"
	"github.com/yanqian/ai-assistant/internal/domain/summarizer"
	apperrors "github.com/yanqian/ai-assistant/pkg/errors"
)

const (
	routeTemperature float32 = 0.1

	routeSystemPrompt = "You are a request classifier. Analyze the user's intent and respond with the appropriate category."

	codeInvalidInput = "invalid_input"
	codeNotLinked    = "not_linked"
)

// Service is the entry point for chat messages and scheduled briefings.
type Service interface {
	HandleMessage(ctx context.Context, msg Message) (Reply, error)
	DailyBriefing(ctx context.Context, chatID string) (Reply, error)
	SendDailyBriefings(ctx context.Context, notifier Notifier) error
	RecentQueries(ctx context.Context, chatID string, limit int) ([]QueryLogEntry, error)
}

type service struct {
	cfg        Config
	analyzer   QueryAnalyzer
	calendar   CalendarSearcher
	mail       MailProvider
	summarizer Summarizer
	classifier Classifier
	prefs      PreferenceStore
	queries    QueryLog
	logger     *slog.Logger
	now        func() time.Time
}

// NewService wires the assistant. calendar and mail may be nil when no
// provider is configured; those requests then get a plain explanation.
func NewService(
	cfg Config,
	analyzer QueryAnalyzer,
	calendar CalendarSearcher,
	mail MailProvider,
	summarizer Summarizer,
	classifier Classifier,
	prefs PreferenceStore,
	queries QueryLog,
	logger *slog.Logger,
) Service {
	if strings.TrimSpace(cfg.DefaultTimezone) == "" {
		cfg.DefaultTimezone = calendarquery.DefaultTimezone
	}
	if strings.TrimSpace(cfg.DefaultLanguage) == "" {
		cfg.DefaultLanguage = "pt"
	}
	if cfg.EmailLimit <= 0 {
		cfg.EmailLimit = 15
	}
	if cfg.BriefingItemLimit <= 0 {
		cfg.BriefingItemLimit = 8
	}
	return &service{
		cfg:        cfg,
		analyzer:   analyzer,
		calendar:   calendar,
		mail:       mail,
		summarizer: summarizer,
		classifier: classifier,
		prefs:      prefs,
		queries:    queries,
		logger:     logger.With("component", "assistant.service"),
		now:        time.Now,
	}
}

func (s *service) HandleMessage(ctx context.Context, msg Message) (Reply, error) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return Reply{}, apperrors.Wrap(codeInvalidInput, "message text cannot be empty", nil)
	}
	msg.Text = text

	if strings.HasPrefix(text, "/") {
		return s.handleCommand(ctx, msg)
	}

	prefs := s.preferences(ctx, msg.ChatID)
	route := s.route(ctx, text)
	s.logger.Info("message routed", "chat_id", msg.ChatID, "route", route)

	switch route {
	case RouteEmail:
		return s.handleEmail(ctx, text)
	case RouteCalendar:
		return s.handleCalendar(ctx, msg.ChatID, text, prefs)
	default:
		return s.handleGeneral(ctx, text)
	}
}

func (s *service) RecentQueries(ctx context.Context, chatID string, limit int) ([]QueryLogEntry, error) {
	if s.queries == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	entries, err := s.queries.Recent(ctx, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent queries: %w", err)
	}
	return entries, nil
}

// route asks the model for EMAIL, CALENDAR or GENERAL and falls back to
// keyword matching when the answer is missing or unusable.
func (s *service) route(ctx context.Context, text string) Route {
	if s.classifier != nil {
		out, err := s.classifier.Complete(ctx, routePrompt(text), routeSystemPrompt, routeTemperature)
		if err != nil {
			s.logger.Warn("route classification failed", "error", err)
		} else if route, ok := parseRoute(out); ok {
			return route
		} else {
			s.logger.Warn("unexpected route classification", "output", out)
		}
	}
	return keywordRoute(text)
}

func (s *service) handleCalendar(ctx context.Context, chatID, text string, prefs Preferences) (Reply, error) {
	query := s.analyzer.Analyze(ctx, text, prefs.Timezone)
	s.logger.Info("calendar query analyzed",
		"query_type", query.QueryType,
		"start", query.StartDatetime,
		"end", query.EndDatetime,
		"limit", query.Limit(),
		"fallback", query.Fallback,
	)

	reply := Reply{Route: RouteCalendar, Query: &query}
	if s.calendar == nil {
		s.logger.Warn("calendar provider not configured")
		reply.Text = "Calendar access is not configured. Link a Google account or set an ICS feed URL."
		return reply, nil
	}

	events, err := s.calendar.Search(ctx, query.StartDatetime, query.EndDatetime, query.Limit())
	if err != nil {
		s.logger.Warn("calendar search failed", "error", err)
		reply.Text = unavailableText("calendar", err)
		return reply, nil
	}
	calendar.SortByStart(events)
	if limit := query.Limit(); limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	s.recordQuery(ctx, chatID, query, len(events))

	resp, err := s.summarizer.CalendarReply(ctx, summarizer.EventsRequest{
		Query:        text,
		Events:       events,
		Limit:        query.Limit(),
		Location:     s.location(prefs.Timezone),
		LanguageHint: query.Language,
	})
	if err != nil {
		return Reply{}, err
	}
	reply.Text = resp.Text
	reply.Degraded = resp.Degraded
	if query.NeedsClarification && strings.TrimSpace(query.AmbiguityReason) != "" {
		reply.Text += "\n\n(" + strings.TrimSpace(query.AmbiguityReason) + ")"
	}
	return reply, nil
}

func (s *service) handleEmail(ctx context.Context, text string) (Reply, error) {
	reply := Reply{Route: RouteEmail}
	if s.mail == nil {
		s.logger.Warn("mail provider not configured")
		reply.Text = "Email access is not configured. Link a Google account to read your inbox."
		return reply, nil
	}
	emails, err := s.mail.UnreadEmails(ctx, s.cfg.EmailLimit)
	if err != nil {
		s.logger.Warn("fetch unread emails failed", "error", err)
		reply.Text = unavailableText("emails", err)
		return reply, nil
	}
	resp, err := s.summarizer.EmailReply(ctx, summarizer.EmailsRequest{Query: text, Emails: emails})
	if err != nil {
		return Reply{}, err
	}
	reply.Text = resp.Text
	reply.Degraded = resp.Degraded
	return reply, nil
}

func (s *service) handleGeneral(ctx context.Context, text string) (Reply, error) {
	resp, err := s.summarizer.GeneralReply(ctx, summarizer.GeneralRequest{Query: text})
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: resp.Text, Route: RouteGeneral, Degraded: resp.Degraded}, nil
}

func (s *service) recordQuery(ctx context.Context, chatID string, query calendarquery.CalendarQuery, eventCount int) {
	if s.queries == nil {
		return
	}
	entry := QueryLogEntry{
		ChatID:     chatID,
		Text:       query.OriginalQuery,
		QueryType:  query.QueryType,
		Start:      query.StartDatetime,
		End:        query.EndDatetime,
		EventLimit: query.EventLimit,
		Language:   query.Language,
		Fallback:   query.Fallback,
		EventCount: eventCount,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.queries.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record calendar query", "error", err)
	}
}

// preferences never fails; a broken store degrades to defaults.
func (s *service) preferences(ctx context.Context, chatID string) Preferences {
	prefs := Preferences{ChatID: chatID}
	if s.prefs != nil && chatID != "" {
		stored, found, err := s.prefs.Get(ctx, chatID)
		if err != nil {
			s.logger.Warn("failed to load chat preferences", "chat_id", chatID, "error", err)
		} else if found {
			prefs = stored
		}
	}
	if prefs.Timezone == "" {
		prefs.Timezone = s.cfg.DefaultTimezone
	}
	if prefs.Language == "" {
		prefs.Language = s.cfg.DefaultLanguage
	}
	return prefs
}

func (s *service) location(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func unavailableText(what string, err error) string {
	if apperrors.IsCode(err, codeNotLinked) {
		return "Your Google account is not linked yet. Open /api/v1/google/authorize to link it."
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("Sorry, fetching your %s took too long. Please try again.", what)
	}
	return fmt.Sprintf("Sorry, I can't access your %s right now.", what)
}

func routePrompt(text string) string {
	return fmt.Sprintf(`User request: %q

Analyze this request and categorize it. Respond with ONLY one of these options:
- EMAIL: if the request is about emails, unread messages, inbox, senders, etc.
- CALENDAR: if the request is about meetings, schedule, appointments, events, calendar, today's agenda, etc.
- GENERAL: if the request is a general question, greeting, or not specifically about email/calendar

Respond with just the category word (EMAIL, CALENDAR, or GENERAL).`, text)
}

func parseRoute(out string) (Route, bool) {
	word := strings.ToUpper(strings.Trim(strings.TrimSpace(out), ".:*\"'`"))
	if fields := strings.Fields(word); len(fields) > 0 {
		word = strings.Trim(fields[0], ".:*\"'`")
	}
	switch word {
	case "EMAIL":
		return RouteEmail, true
	case "CALENDAR":
		return RouteCalendar, true
	case "GENERAL":
		return RouteGeneral, true
	default:
		return "", false
	}
}

var (
	emailKeywords = []string{
		"email", "e-mail", "inbox", "mail", "correio", "mensagens", "caixa de entrada", "unread", "não lidos", "nao lidos",
	}
	calendarKeywords = []string{
		"agenda", "calendar", "calendário", "calendario", "meeting", "reunião", "reuniao", "reuniões", "reunioes",
		"evento", "event", "schedule", "appointment", "compromisso", "marcado",
	}
)

func keywordRoute(text string) Route {
	lower := strings.ToLower(text)
	for _, kw := range emailKeywords {
		if strings.Contains(lower, kw) {
			return RouteEmail
		}
	}
	for _, kw := range calendarKeywords {
		if strings.Contains(lower, kw) {
			return RouteCalendar
		}
	}
	return RouteGeneral
}
