package calendarquery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServiceAnalyzeNextEvents(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.January, 1, 10, 0, 0, 0, time.UTC)
	client := &stubCompleter{
		response: `{"query_type":"next_events","start_datetime":"now","end_datetime":"+90days","event_limit":5,"language":"pt"}`,
	}
	svc := newTestService(client, now)

	got := svc.Analyze(context.Background(), "próximos 5 eventos", "UTC")

	require.Equal(t, QueryNextEvents, got.QueryType)
	requireSameInstant(t, now, got.StartDatetime)
	requireSameInstant(t, now.AddDate(0, 0, 90), got.EndDatetime)
	require.NotNil(t, got.EventLimit)
	require.Equal(t, 5, *got.EventLimit)
	require.Equal(t, "pt", got.Language)
	require.Equal(t, "próximos 5 eventos", got.OriginalQuery)
	require.False(t, got.Fallback)

	require.Equal(t, 1, client.calls)
	require.Equal(t, intentSystemPrompt, client.lastSystem)
	require.InDelta(t, 0.1, client.lastTemperature, 0.0001)
	require.Contains(t, client.lastPrompt, "próximos 5 eventos")
	require.Contains(t, client.lastPrompt, "- Current date: 2025-01-01")
	require.Contains(t, client.lastPrompt, "- End of this month: 2025-01-31")
	require.Contains(t, client.lastPrompt, "- Start of this week: 2024-12-30")
	require.Contains(t, client.lastPrompt, "- Timezone: UTC")
}

func TestServiceAnalyzeSwapsDateRange(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.January, 1, 10, 0, 0, 0, time.UTC)
	client := &stubCompleter{response: `{"query_type":"date_range","start_datetime":"2025-03-10","end_datetime":"2025-03-01"}`}
	svc := newTestService(client, now)

	got := svc.Analyze(context.Background(), "entre 10 e 1 de março", "UTC")
	require.Equal(t, QueryDateRange, got.QueryType)
	requireSameInstant(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), got.StartDatetime)
	requireSameInstant(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), got.EndDatetime)
	require.Equal(t, "en", got.Language)
}

func TestServiceAnalyzeSingleDateCoversWholeDay(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.January, 1, 10, 0, 0, 0, time.UTC)
	client := &stubCompleter{response: `{"query_type":"specific_date","start_datetime":"2025-03-10","end_datetime":"2025-03-10"}`}
	svc := newTestService(client, now)

	got := svc.Analyze(context.Background(), "what do I have on March 10?", "UTC")
	require.Equal(t, QuerySpecificDate, got.QueryType)
	requireSameInstant(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), got.StartDatetime)
	requireSameInstant(t, time.Date(2025, 3, 10, 23, 59, 59, 999999000, time.UTC), got.EndDatetime)
	require.True(t, got.EndDatetime.After(got.StartDatetime))
}

func TestServiceAnalyzeFallbacks(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.January, 1, 10, 0, 0, 0, time.UTC)
	text := "what do I have?"

	tests := []struct {
		name   string
		client *stubCompleter
	}{
		{name: "completion error", client: &stubCompleter{err: errors.New("503 service unavailable")}},
		{name: "prose response", client: &stubCompleter{response: "You have a busy day ahead, good luck!"}},
		{name: "empty response", client: &stubCompleter{response: "   "}},
		{name: "panicking client", client: &stubCompleter{panicWith: "boom"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := newTestService(tt.client, now)
			got := svc.Analyze(context.Background(), text, "UTC")
			require.Equal(t, Fallback(text, now, "pt"), got)
		})
	}
}

func TestServiceAnalyzeTimeoutFallsBack(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.January, 1, 10, 0, 0, 0, time.UTC)
	client := &stubCompleter{
		fn: func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	svc := newTestService(client, now)
	svc.cfg.Timeout = 20 * time.Millisecond

	got := svc.Analyze(context.Background(), "agenda de amanhã", "UTC")
	require.Equal(t, Fallback("agenda de amanhã", now, "pt"), got)
}

func TestServiceAnalyzeCancelledContextFallsBack(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.January, 1, 10, 0, 0, 0, time.UTC)
	client := &stubCompleter{
		fn: func(ctx context.Context) (string, error) {
			return "", ctx.Err()
		},
	}
	svc := newTestService(client, now)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := svc.Analyze(ctx, "next meeting", "UTC")
	require.True(t, got.Fallback)
}

func TestServiceAnalyzeEmptyTextSkipsCompletion(t *testing.T) {
	t.Parallel()

	client := &stubCompleter{response: `{"query_type":"next_events"}`}
	svc := newTestService(client, time.Date(2025, time.January, 1, 10, 0, 0, 0, time.UTC))

	got := svc.Analyze(context.Background(), "  ", "")
	require.True(t, got.Fallback)
	require.Zero(t, client.calls)
}

func TestServiceAnalyzeUsesRequestedZone(t *testing.T) {
	t.Parallel()

	// 01:00 UTC is still the previous evening in São Paulo.
	now := time.Date(2025, time.January, 1, 1, 0, 0, 0, time.UTC)
	client := &stubCompleter{response: `{"query_type":"today","start_datetime":"today","end_datetime":"today","language":"pt"}`}
	svc := newTestService(client, now)

	got := svc.Analyze(context.Background(), "o que tenho hoje?", "America/Sao_Paulo")
	require.Equal(t, QueryToday, got.QueryType)
	require.Equal(t, 2024, got.StartDatetime.Year())
	require.Equal(t, 31, got.StartDatetime.Day())
	require.Equal(t, 0, got.StartDatetime.Hour())
	require.Equal(t, 23, got.EndDatetime.Hour())
	require.True(t, strings.Contains(client.lastPrompt, "America/Sao_Paulo"))
}

func TestServiceAnalyzeIsTotal(t *testing.T) {
	t.Parallel()

	responses := []string{
		`{"query_type":"next_events","event_limit":-4}`,
		`{"query_type":"specific_date","start_datetime":"2025-02-30"}`,
		`{"query_type":"date_range","start_datetime":"end_of_month","end_datetime":"now"}`,
		`{"event_limit":"many"}`,
		`[]`,
		`{}`,
		`{"query_type":5,"language":42}`,
	}
	now := time.Date(2025, time.January, 31, 23, 30, 0, 0, time.UTC)
	for _, response := range responses {
		svc := newTestService(&stubCompleter{response: response}, now)
		got := svc.Analyze(context.Background(), "anything", "UTC")
		require.False(t, got.StartDatetime.After(got.EndDatetime), response)
		if got.EventLimit != nil {
			require.GreaterOrEqual(t, *got.EventLimit, MinEventLimit)
			require.LessOrEqual(t, *got.EventLimit, MaxEventLimit)
		}
	}
}

type stubCompleter struct {
	response  string
	err       error
	panicWith string
	fn        func(ctx context.Context) (string, error)

	calls           int
	lastPrompt      string
	lastSystem      string
	lastTemperature float32
}

func (s *stubCompleter) Complete(ctx context.Context, prompt, systemPrompt string, temperature float32) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	s.lastSystem = systemPrompt
	s.lastTemperature = temperature
	if s.panicWith != "" {
		panic(s.panicWith)
	}
	if s.fn != nil {
		return s.fn(ctx)
	}
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func newTestService(client Completer, now time.Time) *service {
	return &service{
		cfg: Config{
			DefaultTimezone: "UTC",
			DefaultLanguage: "pt",
			Temperature:     0.1,
		},
		client: client,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    func() time.Time { return now },
	}
}
