package eventindex

import (
	"strings"
	"testing"
	"time"

	"slidecal/internal/dates"
	"slidecal/internal/model"
)

func day(s string) time.Time {
	t, err := dates.Parse(s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestEventsOnDay_Membership(t *testing.T) {
	e := model.Event{ID: "a", StartDate: "2026-03-10", EndDate: "2026-03-12"}

	tests := []struct {
		day  string
		want bool
	}{
		{"2026-03-09", false},
		{"2026-03-10", true},
		{"2026-03-11", true},
		{"2026-03-12", true},
		{"2026-03-13", false},
	}
	for _, tt := range tests {
		got := EventsOnDay(day(tt.day), []model.Event{e})
		if (len(got) == 1) != tt.want {
			t.Errorf("EventsOnDay(%s) = %v, want present=%v", tt.day, got, tt.want)
		}
	}
}

func TestEventsOnDay_LocalDayNotUTC(t *testing.T) {
	e := model.Event{ID: "a", StartDate: "2026-03-10"}
	west := time.FixedZone("UTC-8", -8*3600)
	// 23:00 local on the 10th is already the 11th in UTC.
	late := time.Date(2026, 3, 10, 23, 0, 0, 0, west)
	if got := EventsOnDay(late, []model.Event{e}); len(got) != 1 {
		t.Fatalf("expected event on local day, got %v", got)
	}
}

func TestEventsOnDay_PreservesOrder(t *testing.T) {
	events := []model.Event{
		{ID: "c", StartDate: "2026-03-10"},
		{ID: "a", StartDate: "2026-03-09", EndDate: "2026-03-11"},
		{ID: "x", StartDate: "2026-03-12"},
		{ID: "b", StartDate: "2026-03-10"},
	}
	got := EventsOnDay(day("2026-03-10"), events)
	want := []string{"c", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, want[i])
		}
	}
}

func TestEventsOnDay_MalformedEvents(t *testing.T) {
	events := []model.Event{
		{ID: "no-start"},
		{ID: "reversed", StartDate: "2026-03-10", EndDate: "2026-03-05"},
	}

	if got := EventsOnDay(day("2026-03-07"), events); len(got) != 0 {
		t.Errorf("reversed event leaked onto 03-07: %v", got)
	}
	got := EventsOnDay(day("2026-03-10"), events)
	if len(got) != 1 || got[0].ID != "reversed" {
		t.Errorf("reversed event should clamp to its start day, got %v", got)
	}
}

func TestEventsInWindow(t *testing.T) {
	events := []model.Event{
		{ID: "a", StartDate: "2026-03-10", EndDate: "2026-03-11"},
		{ID: "b", StartDate: "2026-03-11"},
	}
	days := []time.Time{day("2026-03-09"), day("2026-03-10"), day("2026-03-11")}

	got := EventsInWindow(days, events)
	if len(got) != 3 {
		t.Fatalf("expected a key per day, got %d", len(got))
	}
	if n := len(got["2026-03-09"]); n != 0 {
		t.Errorf("03-09 has %d events", n)
	}
	if n := len(got["2026-03-10"]); n != 1 {
		t.Errorf("03-10 has %d events", n)
	}
	if n := len(got["2026-03-11"]); n != 2 {
		t.Errorf("03-11 has %d events", n)
	}
}

func TestEventsInWindow_EmptyInput(t *testing.T) {
	got := EventsInWindow([]time.Time{day("2026-03-09")}, nil)
	if evs, ok := got["2026-03-09"]; !ok || len(evs) != 0 {
		t.Errorf("unexpected result %v", got)
	}
}

func TestFindNearestDayWithEvents(t *testing.T) {
	events := []model.Event{
		{ID: "a", StartDate: "2026-03-20"},
		{ID: "b", StartDate: "2026-03-01"},
	}
	from := day("2026-03-10")

	tests := []struct {
		name      string
		dir       Direction
		lookahead int
		want      string
	}{
		{"forward finds", Forward, 30, "2026-03-20"},
		{"backward finds", Backward, 30, "2026-03-01"},
		{"forward beyond horizon falls back", Forward, 9, "2026-03-11"},
		{"exact horizon is reachable", Forward, 10, "2026-03-20"},
		{"zero lookahead falls back", Backward, 0, "2026-03-09"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindNearestDayWithEvents(from, tt.dir, events, tt.lookahead)
			if dates.Format(got) != tt.want {
				t.Errorf("got %s, want %s", dates.Format(got), tt.want)
			}
		})
	}
}

func TestFindNearestDayWithEvents_NoEvents(t *testing.T) {
	from := day("2026-12-31")
	if got := FindNearestDayWithEvents(from, Forward, nil, 365); dates.Format(got) != "2027-01-01" {
		t.Errorf("forward fallback = %s", dates.Format(got))
	}
	if got := FindNearestDayWithEvents(from, Backward, []model.Event{}, 365); dates.Format(got) != "2026-12-30" {
		t.Errorf("backward fallback = %s", dates.Format(got))
	}
}

func TestFilter(t *testing.T) {
	events := []model.Event{
		{ID: "1", LocationCity: "Paris", EventType: "concert"},
		{ID: "2", LocationCity: "Lyon", EventType: "concert"},
		{ID: "3", LocationCity: "paris", EventType: "expo"},
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty allows all", Filter{}, []string{"1", "2", "3"}},
		{"city case-insensitive", Filter{Cities: []string{"PARIS"}}, []string{"1", "3"}},
		{"type", Filter{Types: []string{"concert"}}, []string{"1", "2"}},
		{"both", Filter{Cities: []string{"Paris"}, Types: []string{"expo"}}, []string{"3"}},
		{"no match", Filter{Cities: []string{"Nice"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(events)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestFilterKey(t *testing.T) {
	tests := []struct {
		name string
		a, b Filter
		same bool
	}{
		{"comma inside a value", Filter{Cities: []string{"a,b"}}, Filter{Cities: []string{"a", "b"}}, false},
		{"city vs type", Filter{Cities: []string{"x"}}, Filter{Types: []string{"x"}}, false},
		{"separator inside a value", Filter{Cities: []string{"a|1:b"}}, Filter{Cities: []string{"a"}, Types: []string{"b"}}, false},
		{"order and case", Filter{Cities: []string{"Lyon", "paris"}}, Filter{Cities: []string{"PARIS", " lyon"}}, true},
		{"empty", Filter{}, Filter{Cities: []string{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Key() == tt.b.Key(); got != tt.same {
				t.Errorf("Key(%+v)=%q, Key(%+v)=%q", tt.a, tt.a.Key(), tt.b, tt.b.Key())
			}
		})
	}
}

func TestFilterChoices(t *testing.T) {
	events := []model.Event{
		{ID: "1", LocationCity: "Paris", EventType: "concert"},
		{ID: "2", LocationCity: "lyon", EventType: ""},
		{ID: "3", LocationCity: "paris", EventType: "Expo"},
		{ID: "4", LocationCity: " ", EventType: "concert"},
	}
	got := FilterChoices(events)
	if strings.Join(got.Cities, ",") != "lyon,Paris" {
		t.Errorf("cities = %q", got.Cities)
	}
	if strings.Join(got.Types, ",") != "concert,Expo" {
		t.Errorf("types = %q", got.Types)
	}

	empty := FilterChoices(nil)
	if empty.Cities == nil || len(empty.Cities) != 0 || len(empty.Types) != 0 {
		t.Errorf("empty = %#v", empty)
	}
}
