package views

import (
	"testing"
	"time"

	"slidecal/internal/dates"
	"slidecal/internal/model"
)

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := dates.Parse(s, time.UTC)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func TestParseGranularity(t *testing.T) {
	tests := []struct {
		in      string
		want    Granularity
		wantErr bool
	}{
		{"day", Day, false},
		{"3day", ThreeDay, false},
		{"WEEK", Week, false},
		{"biweekly", Biweekly, false},
		{"2week", Biweekly, false},
		{" month ", Month, false},
		{"year", Day, true},
	}
	for _, tt := range tests {
		got, err := ParseGranularity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseGranularity(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseGranularity(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	for _, g := range All() {
		back, err := ParseGranularity(g.String())
		if err != nil || back != g {
			t.Errorf("round trip of %s failed", g)
		}
	}
}

func TestAdjacent_FixedLengths(t *testing.T) {
	anchors := []string{"2026-03-10", "2026-03-29", "2026-12-30", "2028-02-28", "2026-10-25"}
	for _, g := range []Granularity{Day, ThreeDay, Week, Biweekly} {
		v := New(g, Options{})
		for _, a := range anchors {
			anchor := mustDay(t, a)
			prev, next := v.Adjacent(anchor, nil)

			if want := dates.AddDays(anchor, g.Length()); !next.Equal(want) {
				t.Errorf("%s next(%s) = %s, want %s", g, a, dates.Format(next), dates.Format(want))
			}
			if want := dates.AddDays(anchor, -g.Length()); !prev.Equal(want) {
				t.Errorf("%s prev(%s) = %s, want %s", g, a, dates.Format(prev), dates.Format(want))
			}

			back, _ := v.Adjacent(next, nil)
			if !back.Equal(anchor) {
				t.Errorf("%s prev(next(%s)) = %s", g, a, dates.Format(back))
			}
		}
	}
}

func TestAdjacent_Month(t *testing.T) {
	v := New(Month, Options{})
	prev, next := v.Adjacent(mustDay(t, "2026-01-31"), nil)
	if dates.Format(prev) != "2025-12-01" || dates.Format(next) != "2026-02-01" {
		t.Errorf("prev=%s next=%s", dates.Format(prev), dates.Format(next))
	}
	back, _ := v.Adjacent(next, nil)
	if dates.Format(back) != "2026-01-01" {
		t.Errorf("prev(next) = %s", dates.Format(back))
	}
}

func TestAdjacent_DaySkipsEmptyDays(t *testing.T) {
	events := []model.Event{
		{ID: "a", StartDate: "2026-03-02"},
		{ID: "b", StartDate: "2026-03-15"},
	}
	v := New(Day, Options{SkipEmpty: true, MaxLookahead: 30})
	prev, next := v.Adjacent(mustDay(t, "2026-03-10"), events)
	if dates.Format(prev) != "2026-03-02" || dates.Format(next) != "2026-03-15" {
		t.Errorf("prev=%s next=%s", dates.Format(prev), dates.Format(next))
	}

	// Beyond the horizon the day view just steps by one.
	v = New(Day, Options{SkipEmpty: true, MaxLookahead: 3})
	prev, next = v.Adjacent(mustDay(t, "2026-03-10"), events)
	if dates.Format(prev) != "2026-03-09" || dates.Format(next) != "2026-03-11" {
		t.Errorf("prev=%s next=%s", dates.Format(prev), dates.Format(next))
	}
}

func TestWindow_Alignment(t *testing.T) {
	wed := mustDay(t, "2026-03-11")
	tests := []struct {
		g     Granularity
		first string
		n     int
	}{
		{Day, "2026-03-11", 1},
		{ThreeDay, "2026-03-11", 3},
		{Week, "2026-03-09", 7},
		{Biweekly, "2026-03-09", 14},
	}
	for _, tt := range tests {
		days := New(tt.g, Options{}).Window(wed)
		if len(days) != tt.n {
			t.Errorf("%s window has %d days, want %d", tt.g, len(days), tt.n)
			continue
		}
		if dates.Format(days[0]) != tt.first {
			t.Errorf("%s window starts %s, want %s", tt.g, dates.Format(days[0]), tt.first)
		}
		for i := 1; i < len(days); i++ {
			if dates.DaysBetween(days[i-1], days[i]) != 1 {
				t.Errorf("%s window not contiguous at %d", tt.g, i)
			}
		}
	}
}

func TestMonthGridCompleteness(t *testing.T) {
	v := New(Month, Options{})
	for year := 2024; year <= 2028; year++ {
		for m := time.January; m <= time.December; m++ {
			anchor := time.Date(year, m, 15, 0, 0, 0, 0, time.UTC)
			cells := v.Window(anchor)

			if len(cells) != 35 && len(cells) != 42 {
				t.Fatalf("%d-%02d: %d cells", year, m, len(cells))
			}
			if dates.MondayOffset(cells[0]) != 0 {
				t.Fatalf("%d-%02d: grid does not start on Monday", year, m)
			}

			first := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
			offset := dates.MondayOffset(first)
			if !cells[offset].Equal(first) {
				t.Fatalf("%d-%02d: 1st at wrong cell", year, m)
			}
			for i := 0; i < dates.DaysInMonth(m, year); i++ {
				c := cells[offset+i]
				if c.Month() != m || c.Day() != i+1 {
					t.Fatalf("%d-%02d: cell %d is %s", year, m, offset+i, dates.Format(c))
				}
			}
		}
	}
}

func TestMonthGrid_ShortFebruaryIsPadded(t *testing.T) {
	// February 2027 starts on a Monday and fills exactly four weeks.
	cells := New(Month, Options{}).Window(mustDay(t, "2027-02-10"))
	if len(cells) != 35 {
		t.Errorf("cells = %d, want 35", len(cells))
	}
}

func TestBuildStrip_EmptyEvents(t *testing.T) {
	anchor := mustDay(t, "2026-03-11")
	for _, g := range All() {
		for _, events := range [][]model.Event{nil, {}} {
			s := BuildStrip(New(g, Options{SkipEmpty: true, MaxLookahead: 10}), anchor, events, anchor)
			for _, p := range s.Panels() {
				if len(p.Cells) == 0 {
					t.Fatalf("%s: empty panel", g)
				}
				for _, c := range p.Cells {
					if c.Layout.Kind != Empty {
						t.Errorf("%s: cell %s not empty", g, c.Key)
					}
					if _, ok := c.Target(0); ok {
						t.Errorf("%s: empty cell has a target", g)
					}
				}
			}
		}
	}
}

func TestBuildPanel_Layouts(t *testing.T) {
	anchor := mustDay(t, "2026-03-11")
	events := []model.Event{
		{ID: "solo", Title: "Solo", StartDate: "2026-03-09", Slug: "solo", FeaturedImage: "https://img/solo.jpg", LocationCity: "Lyon"},
		{ID: "a", Title: "A", StartDate: "2026-03-10", Slug: "a"},
		{ID: "b", Title: "B", StartDate: "2026-03-10", Slug: "b"},
		{ID: "c", Title: "C", StartDate: "2026-03-10", Slug: "c"},
		{ID: "d", Title: "D", StartDate: "2026-03-10", Slug: "d"},
	}

	week := BuildPanel(New(Week, Options{}), anchor, events, anchor)
	mon, tue, wed := week.Cells[0], week.Cells[1], week.Cells[2]

	if mon.Layout.Kind != Single {
		t.Fatalf("monday kind = %s", mon.Layout.Kind)
	}
	card := mon.Layout.Cards[0]
	if card.Image == "" || card.Subtitle != "Lyon" {
		t.Errorf("single card = %+v", card)
	}
	if path, ok := mon.Target(0); !ok || path != "/events/solo" {
		t.Errorf("target = %q, %v", path, ok)
	}

	if tue.Layout.Kind != Split || len(tue.Layout.Cards) != 4 || tue.Layout.More != 0 {
		t.Errorf("week split = %+v", tue.Layout)
	}
	if tue.Layout.Split != Stack {
		t.Errorf("week split direction = %s", tue.Layout.Split)
	}
	if tue.Layout.Cards[2].Title != "C" {
		t.Errorf("order not preserved: %s", tue.Layout.Cards[2].Title)
	}
	if tue.Layout.Cards[0].Gradient.From == "" {
		t.Error("missing image did not get a placeholder")
	}

	if !wed.Today || mon.Today {
		t.Errorf("today flags: mon=%v wed=%v", mon.Today, wed.Today)
	}
	if !wed.Muted() || mon.Muted() {
		t.Errorf("muted flags: mon=%v wed=%v", mon.Muted(), wed.Muted())
	}

	month := BuildPanel(New(Month, Options{}), anchor, events, anchor)
	for _, c := range month.Cells {
		if c.Key != "2026-03-10" {
			continue
		}
		if len(c.Layout.Cards) != 3 || c.Layout.More != 1 {
			t.Errorf("month cell = %d cards, %d more", len(c.Layout.Cards), c.Layout.More)
		}
	}

	day := BuildPanel(New(Day, Options{}), mustDay(t, "2026-03-10"), events, anchor)
	if day.Cells[0].Layout.Split != Columns {
		t.Errorf("day split direction = %s", day.Cells[0].Layout.Split)
	}
}

func TestBuildPanel_MonthPaddingOutOfRange(t *testing.T) {
	p := BuildPanel(New(Month, Options{}), mustDay(t, "2026-03-11"), nil, time.Time{})
	if p.Cells[0].InRange {
		t.Errorf("leading padding cell %s marked in range", p.Cells[0].Key)
	}
	if len(p.Rows()) != len(p.Cells)/7 {
		t.Errorf("rows = %d", len(p.Rows()))
	}
}

func TestBuildCard_Details(t *testing.T) {
	e := model.Event{
		ID: "x", Title: "Fest", StartDate: "2026-03-10", EndDate: "2026-03-12",
		StartTime: "19:00", EndTime: "23:00", ShortDescription: "Open air",
		LocationName: "Park", LocationCity: "Nantes",
	}
	day := buildCard(e, New(Day, Options{}).Policy(), true)
	if day.Detail != "19:00–23:00 · 2026-03-10 → 2026-03-12 · Open air" {
		t.Errorf("day detail = %q", day.Detail)
	}
	if day.Subtitle != "Park, Nantes" {
		t.Errorf("day subtitle = %q", day.Subtitle)
	}

	month := buildCard(e, New(Month, Options{}).Policy(), false)
	if month.Detail != "" || month.Subtitle != "" {
		t.Errorf("month card should be title only: %+v", month)
	}
}

func TestPlaceholderDeterministic(t *testing.T) {
	e := model.Event{ID: "evt-42"}
	if Placeholder(e) != Placeholder(e) {
		t.Error("placeholder not deterministic")
	}
	if g := Placeholder(model.Event{}); g.From == "" || g.To == "" {
		t.Errorf("empty event placeholder = %+v", g)
	}
}

func TestLabels(t *testing.T) {
	anchor := mustDay(t, "2026-03-11")
	tests := []struct {
		g    Granularity
		want string
	}{
		{Day, "Wed 11 Mar 2026"},
		{ThreeDay, "11 – 13 Mar 2026"},
		{Week, "9 – 15 Mar 2026"},
		{Biweekly, "9 – 22 Mar 2026"},
		{Month, "March 2026"},
	}
	for _, tt := range tests {
		if got := New(tt.g, Options{}).Label(anchor); got != tt.want {
			t.Errorf("%s label = %q, want %q", tt.g, got, tt.want)
		}
	}
	if got := New(Week, Options{}).Label(mustDay(t, "2026-03-31")); got != "30 Mar – 5 Apr 2026" {
		t.Errorf("cross-month label = %q", got)
	}
}
