package calendarquery

import (
	"context"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/yanqian/ai-assistant/pkg/errors"
	"github.com/yanqian/ai-assistant/pkg/util"
)

// Service turns free-text calendar requests into validated queries.
type Service interface {
	Analyze(ctx context.Context, text, timezone string) CalendarQuery
}

// Completer is the text completion capability used to extract intents.
type Completer interface {
	Complete(ctx context.Context, prompt, systemPrompt string, temperature float32) (string, error)
}

type state string

const (
	stateStart           state = "start"
	stateContextBuilt    state = "context_built"
	stateIntentExtracted state = "intent_extracted"
	stateDatesResolved   state = "dates_resolved"
	stateValidated       state = "validated"
	stateFallback        state = "fallback"
)

type service struct {
	cfg    Config
	client Completer
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires up the calendar query analyzer.
func NewService(cfg Config, client Completer, logger *slog.Logger) Service {
	if strings.TrimSpace(cfg.DefaultTimezone) == "" {
		cfg.DefaultTimezone = DefaultTimezone
	}
	if strings.TrimSpace(cfg.DefaultLanguage) == "" {
		cfg.DefaultLanguage = "pt"
	}
	return &service{
		cfg:    cfg,
		client: client,
		logger: logger.With("component", "calendarquery.service"),
		now:    time.Now,
	}
}

// Analyze never fails. Any extraction problem, including a panic in the
// pipeline, yields the fallback query for text.
func (s *service) Analyze(ctx context.Context, text, timezone string) (query CalendarQuery) {
	current := stateStart
	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		timezone = s.cfg.DefaultTimezone
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("calendar query analysis panicked", "state", current, "panic", r)
			query = s.fallback(text, timezone)
		}
	}()

	if strings.TrimSpace(text) == "" {
		s.logger.Warn("empty calendar query, using fallback")
		return s.fallback(text, timezone)
	}

	tc := BuildTemporalContext(timezone, s.now())
	current = s.transition(current, stateContextBuilt)

	intent, err := s.extract(ctx, text, tc)
	if err != nil {
		s.logger.Warn("calendar query extraction failed, using fallback", "state", current, "error", err)
		s.transition(current, stateFallback)
		return s.fallback(text, timezone)
	}
	current = s.transition(current, stateIntentExtracted)

	startExpr := ParseDateExpr(intent.StartExpr)
	endExpr := ParseDateExpr(intent.EndExpr)
	start := startExpr.Resolve(tc)
	end := endExpr.Resolve(tc)
	current = s.transition(current, stateDatesResolved)

	query = Validate(intent, start, end, tc)
	query.OriginalQuery = text
	s.transition(current, stateValidated)

	s.logger.Info("calendar query analyzed",
		"query_type", query.QueryType,
		"start_expr", startExpr.String(),
		"end_expr", endExpr.String(),
		"start", query.StartDatetime.Format(time.RFC3339),
		"end", query.EndDatetime.Format(time.RFC3339),
		"limit", query.Limit(),
		"language", query.Language,
		"needs_clarification", query.NeedsClarification,
	)
	return query
}

func (s *service) extract(ctx context.Context, text string, tc TemporalContext) (QueryIntent, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	raw, err := s.client.Complete(ctx, buildIntentPrompt(text, tc), intentSystemPrompt, s.cfg.Temperature)
	if err != nil {
		return QueryIntent{}, apperrors.Wrap("llm_error", "calendar query completion failed", err)
	}
	s.logger.Debug("calendar query completion received", "content", raw)

	intent, err := decodeIntent(raw)
	if err != nil {
		return QueryIntent{}, apperrors.Wrap("llm_error", "calendar query response malformed", err)
	}
	intent.Language = normalizeLanguage(intent.Language, defaultIntentLanguage)
	return intent, nil
}

// fallback reads the clock again instead of reusing a context that may
// predate a slow completion call.
func (s *service) fallback(text, timezone string) CalendarQuery {
	loc, _ := util.LoadLocation(timezone)
	return Fallback(text, s.now().In(loc), s.cfg.DefaultLanguage)
}

func (s *service) transition(from, to state) state {
	s.logger.Debug("calendar query state", "from", from, "to", to)
	return to
}
