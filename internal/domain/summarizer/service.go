package summarizer

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/yanqian/ai-assistant/internal/domain/calendar"
	"github.com/yanqian/ai-assistant/internal/infra/llm/chatgpt"
	apperrors "github.com/yanqian/ai-assistant/pkg/errors"
	"github.com/yanqian/ai-assistant/pkg/metrics"
)

const (
	calendarTemperature float32 = 0.6
	emailTemperature    float32 = 0.6
	generalTemperature  float32 = 0.7
	briefingTemperature float32 = 0.4
)

// Service turns calendar and mail data into natural language replies.
type Service interface {
	CalendarReply(ctx context.Context, req EventsRequest) (Response, error)
	EmailReply(ctx context.Context, req EmailsRequest) (Response, error)
	GeneralReply(ctx context.Context, req GeneralRequest) (Response, error)
	DailyBriefing(ctx context.Context, req BriefingRequest) (Response, error)
}

type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}

type service struct {
	cfg     Config
	client  ChatClient
	counter TokenCounter
	logger  *slog.Logger
}

// NewService is a wire provider for the summarizer domain.
func NewService(cfg Config, client ChatClient, counter TokenCounter, logger *slog.Logger) Service {
	if cfg.EmailLimit <= 0 {
		cfg.EmailLimit = 15
	}
	if cfg.BriefingItemLimit <= 0 {
		cfg.BriefingItemLimit = 8
	}
	if counter == nil {
		counter = approxCounter{}
	}
	return &service{cfg: cfg, client: client, counter: counter, logger: logger.With("component", "summarizer.service")}
}

func (s *service) CalendarReply(ctx context.Context, req EventsRequest) (Response, error) {
	req.Query = normalize(req.Query)
	events := visibleEvents(req.Events)
	if req.Limit > 0 && len(events) > req.Limit {
		events = events[:req.Limit]
	}

	n := s.fit(len(events), func(n int) string { return calendarPrompt(req, events[:n]) })
	events = events[:n]
	return s.generate(ctx, "calendar", calendarSystemPrompt, calendarPrompt(req, events), calendarTemperature,
		func() string { return fallbackEvents(events, req.Location) })
}

func (s *service) EmailReply(ctx context.Context, req EmailsRequest) (Response, error) {
	req.Query = normalize(req.Query)
	emails := req.Emails
	if len(emails) > s.cfg.EmailLimit {
		emails = emails[:s.cfg.EmailLimit]
	}

	n := s.fit(len(emails), func(n int) string { return emailPrompt(req, emails[:n]) })
	emails = emails[:n]
	return s.generate(ctx, "email", emailSystemPrompt, emailPrompt(req, emails), emailTemperature,
		func() string { return fallbackEmails(emails) })
}

func (s *service) GeneralReply(ctx context.Context, req GeneralRequest) (Response, error) {
	req.Query = normalize(req.Query)
	if req.Query == "" {
		return Response{}, apperrors.Wrap("invalid_input", "message cannot be empty", nil)
	}
	return s.generate(ctx, "general", generalSystemPrompt, generalPrompt(req), generalTemperature,
		func() string { return fallbackGeneral })
}

func (s *service) DailyBriefing(ctx context.Context, req BriefingRequest) (Response, error) {
	events := visibleEvents(req.Events)
	if len(events) > s.cfg.BriefingItemLimit {
		events = events[:s.cfg.BriefingItemLimit]
	}
	emails := req.Emails
	if len(emails) > s.cfg.BriefingItemLimit {
		emails = emails[:s.cfg.BriefingItemLimit]
	}

	// Trim mail before meetings when the prompt is over budget.
	n := s.fit(len(emails), func(n int) string { return briefingPrompt(req, events, emails[:n]) })
	emails = emails[:n]
	n = s.fit(len(events), func(n int) string { return briefingPrompt(req, events[:n], emails) })
	events = events[:n]

	return s.generate(ctx, "briefing", briefingSystemPrompt, briefingPrompt(req, events, emails), briefingTemperature,
		func() string { return fallbackBriefing(events, emails, req.Location) })
}

// generate calls the model and degrades to a deterministic listing when the
// call fails or returns nothing.
func (s *service) generate(ctx context.Context, kind, system, prompt string, temperature float32, fallback func() string) (Response, error) {
	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Messages: []chatgpt.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
	})
	duration := time.Since(start).Milliseconds()

	text := ""
	if err == nil {
		text = strings.TrimSpace(resp.Content)
	}
	if text == "" {
		if err == nil {
			err = apperrors.Wrap("llm_error", "empty completion", nil)
		}
		s.logger.Warn("reply generation failed, using fallback listing", "kind", kind, "error", err)
		return Response{Text: fallback(), DurationMs: duration, Degraded: true}, nil
	}

	usage := resp.Usage
	if usage.IsZero() {
		promptTokens := s.counter.Count(system) + s.counter.Count(prompt)
		completionTokens := s.counter.Count(text)
		usage = metrics.TokenUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		}
	}
	s.logger.Debug("reply generated", "kind", kind, "duration_ms", duration, "total_tokens", usage.TotalTokens)
	return Response{Text: text, DurationMs: duration, TokenUsage: &usage}, nil
}

// fit returns the largest item count, at most n, whose prompt stays within the
// token budget. Items are dropped from the tail; at least one is kept.
func (s *service) fit(n int, build func(n int) string) int {
	if s.cfg.MaxPromptTokens <= 0 {
		return n
	}
	for n > 1 && s.counter.Count(build(n)) > s.cfg.MaxPromptTokens {
		n--
	}
	return n
}

func visibleEvents(events []calendar.Event) []calendar.Event {
	out := make([]calendar.Event, 0, len(events))
	for _, event := range events {
		if calendar.ShouldInclude(event) {
			out = append(out, event)
		}
	}
	calendar.SortByStart(out)
	return out
}

func normalize(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, text)
	return text
}
