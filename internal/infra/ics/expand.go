package ics

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

type occurrence struct {
	event parsedEvent
	start time.Time
	end   time.Time
}

// expand turns parsed events into concrete occurrences overlapping
// [from, to). RECURRENCE-ID overrides replace the instance they name. Each
// recurring event yields at most maxPerEvent occurrences; truncated UIDs are
// returned alongside.
func expand(events []parsedEvent, from, to time.Time, maxPerEvent int) ([]occurrence, []string, error) {
	if to.Before(from) {
		return nil, nil, fmt.Errorf("expand: window end %s is before start %s", to, from)
	}

	overrides := make(map[string][]parsedEvent)
	var bases []parsedEvent
	for _, ev := range events {
		if ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	var (
		out       []occurrence
		truncated []string
	)
	for _, ev := range bases {
		if ev.RawRRule == "" {
			if overlaps(ev.Start, ev.End, from, to) {
				out = append(out, occurrence{event: ev, start: ev.Start, end: ev.End})
			}
			continue
		}
		occ, capped, err := expandRecurring(ev, overrides[ev.UID], from, to, maxPerEvent)
		if err != nil {
			return nil, nil, err
		}
		if capped {
			truncated = append(truncated, ev.UID)
		}
		out = append(out, occ...)
	}

	// Overrides that moved an instance into the window from outside it.
	for uid, ovs := range overrides {
		for _, ov := range ovs {
			if !hasBase(bases, uid) && overlaps(ov.Start, ov.End, from, to) {
				out = append(out, occurrence{event: ov, start: ov.Start, end: ov.End})
			}
		}
	}
	return out, truncated, nil
}

func expandRecurring(ev parsedEvent, overrides []parsedEvent, from, to time.Time, maxPerEvent int) ([]occurrence, bool, error) {
	opt, err := rrule.StrToROptionInLocation(ev.RawRRule, ev.Start.Location())
	if err != nil {
		return nil, false, fmt.Errorf("event %s RRULE %q: %w", ev.UID, ev.RawRRule, err)
	}
	opt.Dtstart = ev.Start
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, false, fmt.Errorf("event %s RRULE %q: %w", ev.UID, ev.RawRRule, err)
	}

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	duration := ev.End.Sub(ev.Start)
	// Widen the lower bound so instances that started earlier but are still
	// running at from are kept.
	starts := set.Between(from.Add(-duration), to, true)

	var (
		out    []occurrence
		capped bool
		used   = make(map[int]bool)
	)
	for _, start := range starts {
		if maxPerEvent > 0 && len(out) == maxPerEvent {
			capped = true
			break
		}
		occ := occurrence{event: ev, start: start, end: start.Add(duration)}
		for i, ov := range overrides {
			if ov.Recurrence.Equal(start) {
				occ = occurrence{event: ov, start: ov.Start, end: ov.End}
				used[i] = true
				break
			}
		}
		if occ.event.Status == "cancelled" || !overlaps(occ.start, occ.end, from, to) {
			continue
		}
		out = append(out, occ)
	}

	// Overrides whose original slot fell outside the window but whose new
	// time is inside it.
	for i, ov := range overrides {
		if used[i] || ov.Status == "cancelled" {
			continue
		}
		if !ov.Recurrence.Before(from.Add(-duration)) && ov.Recurrence.Before(to) {
			continue
		}
		if overlaps(ov.Start, ov.End, from, to) {
			out = append(out, occurrence{event: ov, start: ov.Start, end: ov.End})
		}
	}
	return out, capped, nil
}

// overlaps reports whether [start, end) intersects [from, to). Zero-length
// events count when they start inside the window.
func overlaps(start, end, from, to time.Time) bool {
	if !end.After(start) {
		return !start.Before(from) && start.Before(to)
	}
	return start.Before(to) && end.After(from)
}

func hasBase(bases []parsedEvent, uid string) bool {
	for _, b := range bases {
		if b.UID == uid {
			return true
		}
	}
	return false
}
