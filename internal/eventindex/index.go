// Package eventindex assigns events to calendar days.
//
// Membership is decided by comparing zero-padded YYYY-MM-DD strings of the
// local calendar day, never by UTC instants, so an event dated 2026-03-10 is
// on 2026-03-10 whatever the viewer's offset. Event lists are small (hundreds),
// so every lookup is a linear scan and results keep the source order.
package eventindex

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"slidecal/internal/dates"
	"slidecal/internal/model"
)

// Direction is the paging direction of a day scan.
type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

// EventsOnDay returns the events covering day, in source order.
func EventsOnDay(day time.Time, events []model.Event) []model.Event {
	return eventsOnKey(dates.Format(day), events)
}

func eventsOnKey(key string, events []model.Event) []model.Event {
	var out []model.Event
	for _, e := range events {
		if e.OnDay(key) {
			out = append(out, e)
		}
	}
	return out
}

// EventsInWindow buckets events for each of the given days. Every day gets a
// key, even when nothing is on it.
func EventsInWindow(days []time.Time, events []model.Event) map[string][]model.Event {
	out := make(map[string][]model.Event, len(days))
	for _, d := range days {
		key := dates.Format(d)
		if _, seen := out[key]; seen {
			continue
		}
		out[key] = eventsOnKey(key, events)
	}
	return out
}

// HasEventsOnDay is EventsOnDay without the allocation.
func HasEventsOnDay(day time.Time, events []model.Event) bool {
	key := dates.Format(day)
	for _, e := range events {
		if e.OnDay(key) {
			return true
		}
	}
	return false
}

// FindNearestDayWithEvents scans at most maxLookahead days from `from` in
// dir and returns the first one with an event. When nothing is found it
// returns the plain neighbour, from ± 1 day.
func FindNearestDayWithEvents(from time.Time, dir Direction, events []model.Event, maxLookahead int) time.Time {
	step := int(dir)
	if step == 0 {
		step = int(Forward)
	}
	if step > 1 {
		step = 1
	} else if step < -1 {
		step = -1
	}

	if len(events) > 0 {
		for i := 1; i <= maxLookahead; i++ {
			d := dates.AddDays(from, step*i)
			if HasEventsOnDay(d, events) {
				return d
			}
		}
	}
	return dates.AddDays(from, step)
}

// Filter is an optional allow-list applied before bucketing. Empty lists
// allow everything; matching is case-insensitive.
type Filter struct {
	Cities []string
	Types  []string
}

// Empty reports whether the filter lets every event through.
func (f Filter) Empty() bool {
	return len(f.Cities) == 0 && len(f.Types) == 0
}

// Allows reports whether e passes both allow-lists.
func (f Filter) Allows(e model.Event) bool {
	return matchesAny(f.Cities, e.LocationCity) && matchesAny(f.Types, e.EventType)
}

// Apply returns the allowed events in source order.
func (f Filter) Apply(events []model.Event) []model.Event {
	if f.Empty() {
		return events
	}
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if f.Allows(e) {
			out = append(out, e)
		}
	}
	return out
}

// Key is a stable representation of the filter for cache keys. Items are
// normalized, sorted and length-prefixed, so list order and commas inside a
// value never collide.
func (f Filter) Key() string {
	return listKey(f.Cities) + "|" + listKey(f.Types)
}

func listKey(items []string) string {
	norm := make([]string, 0, len(items))
	for _, it := range items {
		norm = append(norm, strings.ToLower(strings.TrimSpace(it)))
	}
	slices.Sort(norm)
	var b strings.Builder
	for _, it := range norm {
		b.WriteString(strconv.Itoa(len(it)))
		b.WriteByte(':')
		b.WriteString(it)
	}
	return b.String()
}

// Choices are the filter values present in an event list.
type Choices struct {
	Cities []string `json:"cities"`
	Types  []string `json:"types"`
}

// FilterChoices returns the distinct non-empty cities and event types of
// events, sorted case-insensitively. Values differing only in case are
// listed once, with the first spelling seen.
func FilterChoices(events []model.Event) Choices {
	return Choices{
		Cities: distinct(events, func(e model.Event) string { return e.LocationCity }),
		Types:  distinct(events, func(e model.Event) string { return e.EventType }),
	}
}

func distinct(events []model.Event, field func(model.Event) string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, e := range events {
		v := strings.TrimSpace(field(e))
		k := strings.ToLower(v)
		if v == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return out
}

func matchesAny(allowed []string, v string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), v) {
			return true
		}
	}
	return false
}
