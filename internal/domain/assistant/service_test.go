package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/ai-assistant/internal/domain/calendar"
	"github.com/yanqian/ai-assistant/internal/domain/calendarquery"
	"github.com/yanqian/ai-assistant/internal/domain/mail"
	"github.com/yanqian/ai-assistant/internal/domain/summarizer"
	apperrors "github.com/yanqian/ai-assistant/pkg/errors"
)

var fixedNow = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

func TestHandleMessageRoutesByClassifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		classifier *stubClassifier
		text       string
		want       Route
	}{
		{name: "email", classifier: &stubClassifier{out: "EMAIL"}, text: "what's new?", want: RouteEmail},
		{name: "calendar with punctuation", classifier: &stubClassifier{out: " Calendar.\n"}, text: "hi", want: RouteCalendar},
		{name: "general", classifier: &stubClassifier{out: "GENERAL"}, text: "tenho reunião?", want: RouteGeneral},
		{name: "error uses keywords", classifier: &stubClassifier{err: errors.New("down")}, text: "Tenho reuniões amanhã?", want: RouteCalendar},
		{name: "garbage uses keywords", classifier: &stubClassifier{out: "I think it is about mail"}, text: "check my inbox", want: RouteEmail},
		{name: "keywords default to general", classifier: &stubClassifier{err: errors.New("down")}, text: "olá!", want: RouteGeneral},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(tt.classifier)
			reply, err := h.svc.HandleMessage(context.Background(), Message{ChatID: "1", Text: tt.text})
			require.NoError(t, err)
			require.Equal(t, tt.want, reply.Route)
		})
	}
}

func TestHandleMessageRejectsEmptyText(t *testing.T) {
	t.Parallel()

	h := newHarness(&stubClassifier{out: "GENERAL"})
	_, err := h.svc.HandleMessage(context.Background(), Message{ChatID: "1", Text: "  "})
	require.True(t, apperrors.IsCode(err, codeInvalidInput))
}

func TestCalendarFlow(t *testing.T) {
	t.Parallel()

	h := newHarness(&stubClassifier{out: "CALENDAR"})
	limit := 2
	h.analyzer.query = calendarquery.CalendarQuery{
		QueryType:          calendarquery.QueryNextEvents,
		StartDatetime:      fixedNow,
		EndDatetime:        fixedNow.AddDate(0, 0, 90),
		EventLimit:         &limit,
		Language:           "pt",
		OriginalQuery:      "próximos 2 eventos",
		NeedsClarification: true,
		AmbiguityReason:    "Não ficou claro o período.",
	}
	h.calendar.events = []calendar.Event{
		{Title: "third", Start: fixedNow.Add(3 * time.Hour)},
		{Title: "first", Start: fixedNow.Add(time.Hour)},
		{Title: "second", Start: fixedNow.Add(2 * time.Hour)},
	}
	require.NoError(t, h.prefs.Save(context.Background(), Preferences{ChatID: "1", Timezone: "Europe/Lisbon"}))

	reply, err := h.svc.HandleMessage(context.Background(), Message{ChatID: "1", Text: "próximos 2 eventos"})
	require.NoError(t, err)
	require.Equal(t, RouteCalendar, reply.Route)
	require.Equal(t, "calendar reply\n\n(Não ficou claro o período.)", reply.Text)
	require.NotNil(t, reply.Query)

	require.Equal(t, "Europe/Lisbon", h.analyzer.timezone)
	require.Equal(t, 2, h.calendar.limit)
	require.Equal(t, fixedNow, h.calendar.start)

	req := h.summarizer.events
	require.Equal(t, "próximos 2 eventos", req.Query)
	require.Equal(t, 2, req.Limit)
	require.Equal(t, "pt", req.LanguageHint)
	require.Equal(t, "Europe/Lisbon", req.Location.String())
	require.Len(t, req.Events, 2)
	require.Equal(t, "first", req.Events[0].Title)
	require.Equal(t, "second", req.Events[1].Title)

	entries, err := h.svc.RecentQueries(context.Background(), "1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, calendarquery.QueryNextEvents, entries[0].QueryType)
	require.Equal(t, 2, entries[0].EventCount)
	require.Equal(t, fixedNow, entries[0].CreatedAt)
}

func TestCalendarProviderProblems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		nilCal   bool
		contains string
	}{
		{name: "not configured", nilCal: true, contains: "not configured"},
		{name: "not linked", err: apperrors.Wrap("not_linked", "google account is not linked", nil), contains: "not linked"},
		{name: "generic failure", err: errors.New("boom"), contains: "can't access your calendar"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(&stubClassifier{out: "CALENDAR"})
			h.calendar.err = tt.err
			svc := h.svc.(*service)
			if tt.nilCal {
				svc.calendar = nil
			}
			reply, err := svc.HandleMessage(context.Background(), Message{ChatID: "1", Text: "agenda"})
			require.NoError(t, err)
			require.Contains(t, reply.Text, tt.contains)
			require.Equal(t, RouteCalendar, reply.Route)
			require.Nil(t, h.summarizer.events.Events)
		})
	}
}

func TestEmailFlow(t *testing.T) {
	t.Parallel()

	h := newHarness(&stubClassifier{out: "EMAIL"})
	h.mail.messages = []mail.Message{{Sender: "a@example.com", Subject: "hello"}}

	reply, err := h.svc.HandleMessage(context.Background(), Message{ChatID: "1", Text: "emails?"})
	require.NoError(t, err)
	require.Equal(t, "email reply", reply.Text)
	require.Equal(t, 15, h.mail.max)
	require.Len(t, h.summarizer.emails.Emails, 1)

	reply, err = h.svc.HandleMessage(context.Background(), Message{ChatID: "1", Text: "/emails"})
	require.NoError(t, err)
	require.Equal(t, RouteEmail, reply.Route)
}

func TestCommands(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(&stubClassifier{out: "GENERAL"})

	reply, err := h.svc.HandleMessage(ctx, Message{ChatID: "7", Text: "/help"})
	require.NoError(t, err)
	require.Equal(t, RouteCommand, reply.Route)
	require.Contains(t, reply.Text, "/subscribe")

	reply, err = h.svc.HandleMessage(ctx, Message{ChatID: "7", Text: "/timezone Mars/Olympus"})
	require.NoError(t, err)
	require.Contains(t, reply.Text, "Unknown timezone")

	_, err = h.svc.HandleMessage(ctx, Message{ChatID: "7", Text: "/timezone@my_bot America/Sao_Paulo"})
	require.NoError(t, err)
	_, err = h.svc.HandleMessage(ctx, Message{ChatID: "7", Text: "/language en-GB"})
	require.NoError(t, err)
	_, err = h.svc.HandleMessage(ctx, Message{ChatID: "7", Text: "/subscribe"})
	require.NoError(t, err)

	prefs, found, err := h.prefs.Get(ctx, "7")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "America/Sao_Paulo", prefs.Timezone)
	require.Equal(t, "en", prefs.Language)
	require.True(t, prefs.Subscribed)

	reply, err = h.svc.HandleMessage(ctx, Message{ChatID: "7", Text: "/calendar"})
	require.NoError(t, err)
	require.Equal(t, RouteCalendar, reply.Route)
	require.Equal(t, "What do I have today?", h.analyzer.text)
	require.Equal(t, "America/Sao_Paulo", h.analyzer.timezone)

	_, err = h.svc.HandleMessage(ctx, Message{ChatID: "7", Text: "/unsubscribe"})
	require.NoError(t, err)
	subs, err := h.prefs.Subscribers(ctx)
	require.NoError(t, err)
	require.Empty(t, subs)

	reply, err = h.svc.HandleMessage(ctx, Message{ChatID: "7", Text: "/nope"})
	require.NoError(t, err)
	require.Contains(t, reply.Text, "Unknown command /nope")
	require.Zero(t, h.classifier.calls)
}

func TestDailyBriefingUsesChatDay(t *testing.T) {
	t.Parallel()

	h := newHarness(&stubClassifier{})
	require.NoError(t, h.prefs.Save(context.Background(), Preferences{ChatID: "9", Timezone: "America/Sao_Paulo", Language: "pt"}))
	h.mail.err = errors.New("gmail down")

	reply, err := h.svc.DailyBriefing(context.Background(), "9")
	require.NoError(t, err)
	require.Equal(t, RouteBriefing, reply.Route)
	require.Equal(t, "briefing reply", reply.Text)

	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	require.True(t, time.Date(2025, 1, 1, 0, 0, 0, 0, saoPaulo).Equal(h.calendar.start), h.calendar.start)
	require.True(t, time.Date(2025, 1, 1, 23, 59, 59, 999999000, saoPaulo).Equal(h.calendar.end), h.calendar.end)
	require.Equal(t, 8, h.mail.max)
	require.Equal(t, "pt", h.summarizer.briefing.LanguageHint)
	require.Nil(t, h.summarizer.briefing.Emails)
}

func TestSendDailyBriefings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(&stubClassifier{})
	h.svc.(*service).cfg.DefaultChatID = "100"
	require.NoError(t, h.prefs.Save(ctx, Preferences{ChatID: "200", Subscribed: true}))
	require.NoError(t, h.prefs.Save(ctx, Preferences{ChatID: "100", Subscribed: true}))
	require.NoError(t, h.prefs.Save(ctx, Preferences{ChatID: "300"}))

	notifier := &stubNotifier{failFor: "200"}
	err := h.svc.SendDailyBriefings(ctx, notifier)
	require.ErrorContains(t, err, "chat 200")
	require.Equal(t, []string{"100", "200"}, notifier.chats)

	require.Error(t, h.svc.SendDailyBriefings(ctx, nil))
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, name, arg string
	}{
		{"/start", "start", ""},
		{"/Calendar  next week ", "calendar", "next week"},
		{"/timezone@assistant_bot Europe/Lisbon", "timezone", "Europe/Lisbon"},
	}
	for _, tt := range tests {
		name, arg := splitCommand(tt.in)
		require.Equal(t, tt.name, name, tt.in)
		require.Equal(t, tt.arg, arg, tt.in)
	}
}

type harness struct {
	svc        Service
	classifier *stubClassifier
	analyzer   *stubAnalyzer
	calendar   *stubCalendar
	mail       *stubMail
	summarizer *stubSummarizer
	prefs      *memoryPrefs
}

func newHarness(classifier *stubClassifier) *harness {
	h := &harness{
		classifier: classifier,
		analyzer:   &stubAnalyzer{},
		calendar:   &stubCalendar{},
		mail:       &stubMail{},
		summarizer: &stubSummarizer{},
		prefs:      &memoryPrefs{prefs: map[string]Preferences{}},
	}
	svc := NewService(Config{DefaultTimezone: "UTC", DefaultLanguage: "pt"},
		h.analyzer, h.calendar, h.mail, h.summarizer, classifier, h.prefs, &memoryLog{},
		slog.New(slog.NewTextHandler(io.Discard, nil))).(*service)
	svc.now = func() time.Time { return fixedNow }
	h.svc = svc
	return h
}

type stubClassifier struct {
	out   string
	err   error
	calls int
}

func (s *stubClassifier) Complete(context.Context, string, string, float32) (string, error) {
	s.calls++
	return s.out, s.err
}

type stubAnalyzer struct {
	query    calendarquery.CalendarQuery
	text     string
	timezone string
}

func (s *stubAnalyzer) Analyze(_ context.Context, text, timezone string) calendarquery.CalendarQuery {
	s.text, s.timezone = text, timezone
	q := s.query
	if q.QueryType == "" {
		q = calendarquery.Fallback(text, fixedNow, "pt")
	}
	return q
}

type stubCalendar struct {
	events     []calendar.Event
	err        error
	start, end time.Time
	limit      int
}

func (s *stubCalendar) Search(_ context.Context, start, end time.Time, limit int) ([]calendar.Event, error) {
	s.start, s.end, s.limit = start, end, limit
	if s.err != nil {
		return nil, s.err
	}
	return append([]calendar.Event(nil), s.events...), nil
}

type stubMail struct {
	messages []mail.Message
	err      error
	max      int
}

func (s *stubMail) UnreadEmails(_ context.Context, max int) ([]mail.Message, error) {
	s.max = max
	if s.err != nil {
		return nil, s.err
	}
	return s.messages, nil
}

type stubSummarizer struct {
	events   summarizer.EventsRequest
	emails   summarizer.EmailsRequest
	briefing summarizer.BriefingRequest
}

func (s *stubSummarizer) CalendarReply(_ context.Context, req summarizer.EventsRequest) (summarizer.Response, error) {
	s.events = req
	return summarizer.Response{Text: "calendar reply"}, nil
}

func (s *stubSummarizer) EmailReply(_ context.Context, req summarizer.EmailsRequest) (summarizer.Response, error) {
	s.emails = req
	return summarizer.Response{Text: "email reply"}, nil
}

func (s *stubSummarizer) GeneralReply(context.Context, summarizer.GeneralRequest) (summarizer.Response, error) {
	return summarizer.Response{Text: "general reply"}, nil
}

func (s *stubSummarizer) DailyBriefing(_ context.Context, req summarizer.BriefingRequest) (summarizer.Response, error) {
	s.briefing = req
	return summarizer.Response{Text: "briefing reply"}, nil
}

type memoryPrefs struct {
	mu    sync.Mutex
	prefs map[string]Preferences
}

func (m *memoryPrefs) Get(_ context.Context, chatID string) (Preferences, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[chatID]
	return p, ok, nil
}

func (m *memoryPrefs) Save(_ context.Context, prefs Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[prefs.ChatID] = prefs
	return nil
}

func (m *memoryPrefs) Subscribers(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, p := range m.prefs {
		if p.Subscribed {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memoryLog struct {
	entries []QueryLogEntry
}

func (m *memoryLog) Record(_ context.Context, entry QueryLogEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryLog) Recent(_ context.Context, chatID string, limit int) ([]QueryLogEntry, error) {
	var out []QueryLogEntry
	for _, e := range m.entries {
		if e.ChatID == chatID {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type stubNotifier struct {
	failFor string
	chats   []string
}

func (s *stubNotifier) Notify(_ context.Context, chatID, _ string) error {
	s.chats = append(s.chats, chatID)
	if chatID == s.failFor {
		return errors.New("telegram down")
	}
	return nil
}
