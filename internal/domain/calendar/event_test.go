package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDetermineMeetingType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{name: "zoom link in description", event: Event{Title: "Sync", Description: "https://zoom.us/j/1"}, want: MeetingVirtual},
		{name: "physical location", event: Event{Title: "Lunch", Location: "Rua Augusta 10"}, want: MeetingInPerson},
		{name: "online location", event: Event{Title: "Planning", Location: "Microsoft Teams"}, want: MeetingVirtual},
		{name: "standup", event: Event{Title: "Daily standup"}, want: MeetingStandup},
		{name: "one on one", event: Event{Title: "1:1 Ana / Rui"}, want: MeetingOneOnOne},
		{name: "interview", event: Event{Title: "Candidate screening"}, want: MeetingInterview},
		{name: "town hall", event: Event{Title: "Q3 Town Hall"}, want: MeetingCompanyWide},
		{name: "generic", event: Event{Title: "Dentist"}, want: MeetingGeneric},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, DetermineMeetingType(tt.event))
		})
	}
}

func TestShouldInclude(t *testing.T) {
	t.Parallel()

	require.True(t, ShouldInclude(Event{Status: "confirmed"}))
	require.True(t, ShouldInclude(Event{}))
	require.False(t, ShouldInclude(Event{Status: "Cancelled"}))
}

func TestSortByStart(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{Title: "late", Start: day.Add(15 * time.Hour)},
		{Title: "b", Start: day.Add(9 * time.Hour)},
		{Title: "holiday", Start: day, AllDay: true},
		{Title: "a", Start: day.Add(9 * time.Hour)},
		{Title: "midnight", Start: day},
	}
	SortByStart(events)

	titles := make([]string, 0, len(events))
	for _, e := range events {
		titles = append(titles, e.Title)
	}
	require.Equal(t, []string{"holiday", "midnight", "a", "b", "late"}, titles)
}

func TestDurationAndOverlap(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	e := Event{Start: start, End: start.Add(90 * time.Minute)}
	require.Equal(t, 90*time.Minute, e.Duration())
	require.Zero(t, Event{Start: start, End: start.Add(-time.Hour)}.Duration())

	require.True(t, e.Overlaps(start.Add(time.Hour), start.Add(2*time.Hour)))
	require.False(t, e.Overlaps(start.Add(2*time.Hour), start.Add(3*time.Hour)))
}
