package calendarquery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeIntentStrictJSON(t *testing.T) {
	t.Parallel()

	raw := `{"query_type":"next_events","start_datetime":"now","end_datetime":"+90days","event_limit":5,"time_context":"next_events","language":"pt"}`
	intent, err := decodeIntent(raw)
	require.NoError(t, err)
	require.Equal(t, QueryNextEvents, intent.QueryType)
	require.Equal(t, "now", intent.StartExpr)
	require.Equal(t, "+90days", intent.EndExpr)
	require.NotNil(t, intent.EventLimit)
	require.Equal(t, 5, *intent.EventLimit)
	require.Equal(t, "next_events", intent.TimeContext)
	require.Equal(t, "pt", intent.Language)
	require.False(t, intent.NeedsClarification)
}

func TestDecodeIntentRecoversEmbeddedObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want QueryType
	}{
		{
			name: "code fence",
			raw:  "```json\n{\"query_type\":\"date_range\",\"start_datetime\":\"now\",\"end_datetime\":\"end_of_month\"}\n```",
			want: QueryDateRange,
		},
		{
			name: "prose around object",
			raw:  "Sure! Here is the analysis: {\"query_type\":\"specific_date\",\"start_date\":\"2025-03-10\"} Let me know.",
			want: QuerySpecificDate,
		},
		{
			name: "brace inside string value",
			raw:  "Result -> {\"query_type\":\"today\",\"ambiguity_reason\":\"user wrote {weird}\"}",
			want: QueryToday,
		},
		{
			name: "first candidate invalid",
			raw:  "{not json} and then {\"query_type\":\"next_events\"}",
			want: QueryNextEvents,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			intent, err := decodeIntent(tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.want, intent.QueryType)
		})
	}
}

func TestDecodeIntentFailures(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"",
		"I could not understand your question, sorry.",
		"null",
		`["today"]`,
		"{unterminated",
	} {
		_, err := decodeIntent(raw)
		require.ErrorIs(t, err, ErrNoJSON, raw)
	}
}

func TestDecodeIntentLooseTypes(t *testing.T) {
	t.Parallel()

	raw := `{"query_type":"NEXT_EVENTS","start_date":"now","end_date":"+7days","event_limit":"3","needs_clarification":"true","ambiguity_reason":"which calendar?","language":"pt-BR"}`
	intent, err := decodeIntent(raw)
	require.NoError(t, err)
	require.Equal(t, QueryNextEvents, intent.QueryType)
	require.Equal(t, "now", intent.StartExpr)
	require.Equal(t, "+7days", intent.EndExpr)
	require.Equal(t, 3, *intent.EventLimit)
	require.True(t, intent.NeedsClarification)
	require.Equal(t, "which calendar?", intent.AmbiguityReason)
	require.Equal(t, "pt", normalizeLanguage(intent.Language, "en"))
}

func TestDecodeIntentDefaults(t *testing.T) {
	t.Parallel()

	intent, err := decodeIntent(`{"query_type":"weekly_digest","event_limit":null,"start_datetime":{"nested":true}}`)
	require.NoError(t, err)
	require.Equal(t, QueryToday, intent.QueryType)
	require.Nil(t, intent.EventLimit)
	require.Empty(t, intent.StartExpr)

	intent, err = decodeIntent(`{"event_limit":7.9}`)
	require.NoError(t, err)
	require.Equal(t, 7, *intent.EventLimit)
}

func TestNormalizeLanguage(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pt", normalizeLanguage("pt", "en"))
	require.Equal(t, "es", normalizeLanguage("ES", "en"))
	require.Equal(t, "fr", normalizeLanguage("fr-CA", "en"))
	require.Equal(t, "en", normalizeLanguage("", "en"))
	require.Equal(t, "en", normalizeLanguage("klingon!", "en"))
}
