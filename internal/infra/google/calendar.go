package google

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/yanqian/ai-assistant/internal/domain/calendar"
)

const maxCalendarResults = 50

// CalendarConfig selects the calendar to read.
type CalendarConfig struct {
	CalendarID string
}

// CalendarProvider searches a Google Calendar.
type CalendarProvider struct {
	cfg     CalendarConfig
	tokens  TokenSourceProvider
	logger  *slog.Logger
	options []option.ClientOption
}

// NewCalendarProvider builds a provider authorized through tokens.
func NewCalendarProvider(cfg CalendarConfig, tokens TokenSourceProvider, logger *slog.Logger) *CalendarProvider {
	if strings.TrimSpace(cfg.CalendarID) == "" {
		cfg.CalendarID = "primary"
	}
	return &CalendarProvider{cfg: cfg, tokens: tokens, logger: logger.With("component", "google.calendar")}
}

// Search implements calendar.Searcher. Results are single events ordered by
// start time; cancelled ones are dropped.
func (p *CalendarProvider) Search(ctx context.Context, start, end time.Time, limit int) ([]calendar.Event, error) {
	ts, err := p.tokens.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, p.options...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar client: %w", err)
	}

	if limit <= 0 || limit > maxCalendarResults {
		limit = maxCalendarResults
	}
	resp, err := svc.Events.List(p.cfg.CalendarID).
		Context(ctx).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(int64(limit)).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}

	loc := start.Location()
	events := make([]calendar.Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		event, ok := normalizeEvent(item, loc)
		if !ok {
			p.logger.Debug("skipping calendar item", "id", item.Id, "status", item.Status)
			continue
		}
		events = append(events, event)
	}
	calendar.SortByStart(events)
	p.logger.Info("calendar events fetched", "count", len(events), "start", start, "end", end)
	return events, nil
}

func normalizeEvent(item *gcal.Event, loc *time.Location) (calendar.Event, bool) {
	if item == nil || item.Start == nil {
		return calendar.Event{}, false
	}
	event := calendar.Event{
		ID:          item.Id,
		Title:       strings.TrimSpace(item.Summary),
		Description: item.Description,
		Location:    item.Location,
		Status:      item.Status,
		Link:        firstNonEmpty(item.HangoutLink, item.HtmlLink),
	}
	if !calendar.ShouldInclude(event) {
		return calendar.Event{}, false
	}

	start, allDay, ok := eventTime(item.Start, loc)
	if !ok {
		return calendar.Event{}, false
	}
	end, _, ok := eventTime(item.End, loc)
	if !ok {
		end = start
		if allDay {
			end = start.AddDate(0, 0, 1)
		}
	}
	event.Start, event.End, event.AllDay = start, end, allDay

	if item.Organizer != nil {
		event.Organizer = firstNonEmpty(item.Organizer.Email, item.Organizer.DisplayName)
	}
	for _, a := range item.Attendees {
		if a == nil || a.Resource {
			continue
		}
		event.Attendees = append(event.Attendees, calendar.Attendee{
			Email:  a.Email,
			Name:   a.DisplayName,
			Status: a.ResponseStatus,
		})
	}
	event.MeetingType = calendar.DetermineMeetingType(event)
	if event.MeetingType != calendar.MeetingVirtual && item.HangoutLink != "" {
		event.MeetingType = calendar.MeetingVirtual
	}
	return event, true
}

func eventTime(dt *gcal.EventDateTime, loc *time.Location) (time.Time, bool, bool) {
	if dt == nil {
		return time.Time{}, false, false
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, false, false
		}
		return t.In(loc), false, true
	}
	if dt.Date != "" {
		zone := loc
		if dt.TimeZone != "" {
			if z, err := time.LoadLocation(dt.TimeZone); err == nil {
				zone = z
			}
		}
		t, err := time.ParseInLocation(time.DateOnly, dt.Date, zone)
		if err != nil {
			return time.Time{}, false, false
		}
		return t, true, true
	}
	return time.Time{}, false, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ calendar.Searcher = (*CalendarProvider)(nil)
