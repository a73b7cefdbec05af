package ics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yanqian/ai-assistant/internal/domain/calendar"
)

const (
	defaultMaxOccurrences = 500
	defaultSearchLimit    = 50
)

// Config controls the ICS provider.
type Config struct {
	FeedURL        string
	Timeout        time.Duration
	MaxOccurrences int
	// Location reads floating times and DATE values. Defaults to UTC.
	Location *time.Location
}

// Provider serves calendar searches from a subscribed ICS feed.
type Provider struct {
	cfg     Config
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewProvider builds a provider for cfg.FeedURL.
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = defaultMaxOccurrences
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Provider{
		cfg:     cfg,
		fetcher: NewFetcher(cfg.FeedURL, cfg.Timeout, logger),
		logger:  logger.With("component", "ics.provider"),
	}
}

// Search implements calendar.Searcher.
func (p *Provider) Search(ctx context.Context, start, end time.Time, limit int) ([]calendar.Event, error) {
	body, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch ics feed: %w", err)
	}
	parsed, skipped, err := parseCalendar(body, p.cfg.Location)
	if err != nil {
		return nil, err
	}
	for _, perr := range skipped {
		p.logger.Warn("skipping unparseable vevent", "error", perr)
	}

	occurrences, truncated, err := expand(parsed, start, end, p.cfg.MaxOccurrences)
	if err != nil {
		return nil, err
	}
	if len(truncated) > 0 {
		p.logger.Warn("recurring events truncated", "uids", truncated, "cap", p.cfg.MaxOccurrences)
	}

	events := make([]calendar.Event, 0, len(occurrences))
	for _, occ := range occurrences {
		event := toEvent(occ)
		if !calendar.ShouldInclude(event) {
			continue
		}
		events = append(events, event)
	}
	calendar.SortByStart(events)

	if limit <= 0 || limit > defaultSearchLimit {
		limit = defaultSearchLimit
	}
	if len(events) > limit {
		events = events[:limit]
	}
	p.logger.Debug("ics search completed", "start", start, "end", end, "events", len(events))
	return events, nil
}

func toEvent(occ occurrence) calendar.Event {
	ev := occ.event
	event := calendar.Event{
		ID:          ev.UID + "@" + occ.start.UTC().Format(time.RFC3339),
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       occ.start,
		End:         occ.end,
		AllDay:      ev.AllDay,
		Status:      ev.Status,
		Organizer:   ev.Organizer,
		Attendees:   ev.Attendees,
		Link:        ev.URL,
	}
	event.MeetingType = calendar.DetermineMeetingType(event)
	return event
}

var _ calendar.Searcher = (*Provider)(nil)
