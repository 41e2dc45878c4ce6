// Package views turns an anchor date into the prev/current/next windows of a
// calendar granularity and places events into their day cells.
package views

import (
	"time"

	"slidecal/internal/dates"
	"slidecal/internal/eventindex"
	"slidecal/internal/model"
)

// Options are shared by all views.
type Options struct {
	// SkipEmpty makes the day view page to the nearest day with events.
	SkipEmpty bool
	// MaxLookahead bounds the SkipEmpty scan.
	MaxLookahead int
}

// View is one granularity's window math and rendering policy.
type View interface {
	Granularity() Granularity
	// Window lists the days shown for anchor, in display order.
	Window(anchor time.Time) []time.Time
	// Adjacent returns the anchors of the previous and next windows.
	Adjacent(anchor time.Time, events []model.Event) (prev, next time.Time)
	Policy() Policy
	Label(anchor time.Time) string
	// Columns is the number of day columns per row.
	Columns() int
}

// New returns the view for g.
func New(g Granularity, opts Options) View {
	switch g {
	case Day:
		return dayView{opts: opts}
	case ThreeDay:
		return spanView{g: ThreeDay, align: false}
	case Biweekly:
		return spanView{g: Biweekly, align: true}
	case Month:
		return monthView{}
	default:
		return spanView{g: Week, align: true}
	}
}

type dayView struct {
	opts Options
}

func (dayView) Granularity() Granularity { return Day }
func (dayView) Columns() int             { return 1 }

func (dayView) Window(anchor time.Time) []time.Time {
	return []time.Time{dates.StartOfDay(anchor)}
}

func (v dayView) Adjacent(anchor time.Time, events []model.Event) (time.Time, time.Time) {
	if !v.opts.SkipEmpty {
		return dates.AddDays(anchor, -1), dates.AddDays(anchor, 1)
	}
	prev := eventindex.FindNearestDayWithEvents(anchor, eventindex.Backward, events, v.opts.MaxLookahead)
	next := eventindex.FindNearestDayWithEvents(anchor, eventindex.Forward, events, v.opts.MaxLookahead)
	return prev, next
}

func (dayView) Policy() Policy {
	return Policy{Split: Columns, ShowLocation: true, ShowTime: true, ShowDate: true, ShowDescription: true}
}

func (dayView) Label(anchor time.Time) string {
	return anchor.Format("Mon 2 Jan 2006")
}

// spanView covers the fixed multi-day windows. Weeks are Monday-aligned;
// the 3-day window starts on the anchor itself.
type spanView struct {
	g     Granularity
	align bool
}

func (v spanView) Granularity() Granularity { return v.g }

func (v spanView) Columns() int {
	if v.g == ThreeDay {
		return 3
	}
	return 7
}

func (v spanView) start(anchor time.Time) time.Time {
	if v.align {
		return dates.StartOfWeek(anchor)
	}
	return dates.StartOfDay(anchor)
}

func (v spanView) Window(anchor time.Time) []time.Time {
	n := v.g.Length()
	start := v.start(anchor)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = dates.AddDays(start, i)
	}
	return out
}

func (v spanView) Adjacent(anchor time.Time, _ []model.Event) (time.Time, time.Time) {
	n := v.g.Length()
	return dates.AddDays(anchor, -n), dates.AddDays(anchor, n)
}

func (v spanView) Policy() Policy {
	switch v.g {
	case ThreeDay:
		return Policy{Split: Stack, ShowLocation: true, ShowTime: true, ShowDescription: true}
	case Week:
		return Policy{Split: Stack, ShowLocation: true, ShowTime: true}
	default:
		return Policy{Split: Stack, ShowLocation: true}
	}
}

func (v spanView) Label(anchor time.Time) string {
	days := v.Window(anchor)
	return rangeLabel(days[0], days[len(days)-1])
}

type monthView struct{}

func (monthView) Granularity() Granularity { return Month }
func (monthView) Columns() int             { return 7 }

// Window is a Monday-first grid padded with neighbouring-month days to full
// weeks. It always has 35 or 42 cells.
func (monthView) Window(anchor time.Time) []time.Time {
	first := dates.FirstOfMonth(anchor)
	lead := dates.MondayOffset(first)
	n := lead + dates.DaysInMonth(first.Month(), first.Year())
	cells := ((n + 6) / 7) * 7
	if cells < 35 {
		cells = 35
	}

	start := dates.AddDays(first, -lead)
	out := make([]time.Time, cells)
	for i := range out {
		out[i] = dates.AddDays(start, i)
	}
	return out
}

func (monthView) Adjacent(anchor time.Time, _ []model.Event) (time.Time, time.Time) {
	return dates.AddMonths(anchor, -1), dates.AddMonths(anchor, 1)
}

func (monthView) Policy() Policy {
	return Policy{Split: Stack, MaxCards: 3}
}

func (monthView) Label(anchor time.Time) string {
	return anchor.Format("January 2006")
}

func rangeLabel(from, to time.Time) string {
	switch {
	case from.Year() != to.Year():
		return from.Format("2 Jan 2006") + " – " + to.Format("2 Jan 2006")
	case from.Month() != to.Month():
		return from.Format("2 Jan") + " – " + to.Format("2 Jan 2006")
	default:
		return from.Format("2") + " – " + to.Format("2 Jan 2006")
	}
}
