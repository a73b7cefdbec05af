package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/yanqian/ai-assistant/internal/domain/calendar"
)

func TestCalendarProviderSearch(t *testing.T) {
	t.Parallel()

	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/calendars/work@example.com/events"), r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		writeJSON(w, map[string]any{
			"items": []map[string]any{
				{
					"id": "b", "summary": "Design review", "status": "confirmed",
					"start":       map[string]string{"dateTime": "2025-07-01T14:00:00+01:00"},
					"end":         map[string]string{"dateTime": "2025-07-01T15:00:00+01:00"},
					"hangoutLink": "https://meet.google.com/abc",
					"organizer":   map[string]string{"email": "lead@example.com"},
					"attendees": []map[string]any{
						{"email": "me@example.com", "displayName": "Me", "responseStatus": "accepted"},
						{"email": "room@resource.example.com", "resource": true},
					},
				},
				{
					"id": "a", "summary": "Holiday", "status": "confirmed",
					"start": map[string]string{"date": "2025-07-01"},
					"end":   map[string]string{"date": "2025-07-02"},
				},
				{
					"id": "c", "summary": "Dropped", "status": "cancelled",
					"start": map[string]string{"dateTime": "2025-07-01T09:00:00Z"},
					"end":   map[string]string{"dateTime": "2025-07-01T10:00:00Z"},
				},
			},
		})
	}))
	defer srv.Close()

	provider := NewCalendarProvider(CalendarConfig{CalendarID: "work@example.com"}, staticTokens(), discardLogger())
	provider.options = testOptions(srv.URL)

	lisbon, err := time.LoadLocation("Europe/Lisbon")
	require.NoError(t, err)
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, lisbon)
	events, err := provider.Search(context.Background(), start, start.Add(24*time.Hour-time.Second), 80)
	require.NoError(t, err)

	require.Equal(t, "true", query["singleEvents"])
	require.Equal(t, "startTime", query["orderBy"])
	require.Equal(t, "50", query["maxResults"])
	require.Equal(t, "2025-07-01T00:00:00+01:00", query["timeMin"])

	require.Len(t, events, 2)
	require.Equal(t, "Holiday", events[0].Title)
	require.True(t, events[0].AllDay)
	require.Equal(t, 24*time.Hour, events[0].Duration())

	review := events[1]
	require.Equal(t, "Design review", review.Title)
	require.Equal(t, calendar.MeetingVirtual, review.MeetingType)
	require.Equal(t, "https://meet.google.com/abc", review.Link)
	require.Equal(t, "lead@example.com", review.Organizer)
	require.Equal(t, []calendar.Attendee{{Email: "me@example.com", Name: "Me", Status: "accepted"}}, review.Attendees)
	require.Equal(t, lisbon, review.Start.Location())
	require.Equal(t, 14, review.Start.Hour())
}

func TestCalendarProviderPropagatesTokenErrors(t *testing.T) {
	t.Parallel()

	provider := NewCalendarProvider(CalendarConfig{}, failingTokens{}, discardLogger())
	_, err := provider.Search(context.Background(), time.Now(), time.Now().Add(time.Hour), 0)
	require.ErrorContains(t, err, "not linked")
}

func TestMailProviderUnreadEmails(t *testing.T) {
	t.Parallel()

	var listQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/users/me/messages"):
			listQuery = r.URL.Query().Get("q")
			require.Equal(t, "2", r.URL.Query().Get("maxResults"))
			writeJSON(w, map[string]any{"messages": []map[string]string{{"id": "m1"}, {"id": "m2"}, {"id": "broken"}}})
		case strings.HasSuffix(r.URL.Path, "/users/me/messages/broken"):
			http.Error(w, `{"error":{"code":500,"message":"boom"}}`, http.StatusInternalServerError)
		case strings.Contains(r.URL.Path, "/users/me/messages/"):
			id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			require.Equal(t, "metadata", r.URL.Query().Get("format"))
			writeJSON(w, map[string]any{
				"id": id, "threadId": "t-" + id, "snippet": strings.Repeat("á", 12), "internalDate": "1735725600000",
				"labelIds": []string{"UNREAD", "INBOX"},
				"payload": map[string]any{"headers": []map[string]string{
					{"name": "From", "value": "Boss <boss@example.com>"},
					{"name": "Subject", "value": "Subject " + id},
					{"name": "Date", "value": "Wed, 1 Jan 2025 10:00:00 +0000"},
				}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	provider := NewMailProvider(MailConfig{
		MaxAgeHours:    48,
		MaxResults:     2,
		Labels:         []string{"INBOX"},
		ExcludeSenders: []string{"noreply@example.com", " "},
		PreviewLength:  10,
	}, staticTokens(), discardLogger())
	provider.options = testOptions(srv.URL)
	provider.now = func() time.Time { return time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC) }

	msgs, err := provider.UnreadEmails(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, "is:unread after:2025/01/01 label:INBOX -from:noreply@example.com", listQuery)

	require.Len(t, msgs, 2)
	require.Equal(t, "m1", msgs[0].ID)
	require.Equal(t, "t-m1", msgs[0].ThreadID)
	require.Equal(t, "Boss <boss@example.com>", msgs[0].Sender)
	require.Equal(t, "Subject m2", msgs[1].Subject)
	require.Equal(t, strings.Repeat("á", 10)+"...", msgs[0].Preview)
	require.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), msgs[0].InternalDate)
	require.Equal(t, []string{"UNREAD", "INBOX"}, msgs[0].Labels)
}

func TestParseCredentials(t *testing.T) {
	t.Parallel()

	client, err := ParseCredentials(context.Background(), []byte(`{"installed":{
		"client_id":"id.apps.googleusercontent.com","client_secret":"secret",
		"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",
		"redirect_uris":["http://localhost"]}}`))
	require.NoError(t, err)
	require.Nil(t, client.ServiceAccount)
	require.Equal(t, "id.apps.googleusercontent.com", client.Client.ClientID)
	require.Equal(t, "secret", client.Client.ClientSecret)
	require.Equal(t, "http://localhost", client.Client.RedirectURL)

	_, err = ParseCredentials(context.Background(), []byte(`not json`))
	require.Error(t, err)

	_, err = LoadCredentials(context.Background(), t.TempDir()+"/missing.json")
	require.ErrorIs(t, err, ErrNoCredentials)
}

func TestTruncatePreview(t *testing.T) {
	t.Parallel()

	require.Equal(t, "short", truncatePreview("  short ", 10))
	require.Equal(t, "abc...", truncatePreview("abcdef", 3))
}

func testOptions(url string) []option.ClientOption {
	client := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}))
	return []option.ClientOption{option.WithEndpoint(url + "/"), option.WithHTTPClient(client)}
}

func staticTokens() TokenSourceProvider {
	return StaticTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}))
}

type failingTokens struct{}

func (failingTokens) TokenSource(context.Context) (oauth2.TokenSource, error) {
	return nil, errors.New("google account is not linked")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
