package views

import (
	"time"

	"slidecal/internal/carousel"
	"slidecal/internal/dates"
	"slidecal/internal/model"
)

// Navigator owns the page state: the current date and the active view.
// Every date change goes through SetDate, which reports to OnDateChange.
type Navigator struct {
	date time.Time
	view View
	opts Options
	now  func() time.Time

	onDateChange func(time.Time)
	onViewChange func(Granularity)
}

// NewNavigator starts on date with granularity g.
func NewNavigator(g Granularity, date time.Time, opts Options) *Navigator {
	return &Navigator{
		date: dates.StartOfDay(date),
		view: New(g, opts),
		opts: opts,
		now:  time.Now,
	}
}

// SetClock replaces the wall clock used for Today and the today highlight.
func (n *Navigator) SetClock(now func() time.Time) {
	if now != nil {
		n.now = now
	}
}

// OnDateChange registers the single date callback.
func (n *Navigator) OnDateChange(fn func(time.Time)) { n.onDateChange = fn }

// OnViewChange registers the view callback.
func (n *Navigator) OnViewChange(fn func(Granularity)) { n.onViewChange = fn }

func (n *Navigator) Date() time.Time          { return n.date }
func (n *Navigator) View() View               { return n.view }
func (n *Navigator) Granularity() Granularity { return n.view.Granularity() }

// Now is the navigator's clock, in the date's location.
func (n *Navigator) Now() time.Time { return n.now().In(n.date.Location()) }

// SetDate moves to d. Setting the day already shown is a no-op and does not
// call OnDateChange.
func (n *Navigator) SetDate(d time.Time) bool {
	d = dates.StartOfDay(d)
	if dates.SameDay(d, n.date) {
		return false
	}
	n.date = d
	if n.onDateChange != nil {
		n.onDateChange(d)
	}
	return true
}

// SetView swaps the granularity. The date is left as is.
func (n *Navigator) SetView(g Granularity) {
	if g == n.view.Granularity() {
		return
	}
	n.view = New(g, n.opts)
	if n.onViewChange != nil {
		n.onViewChange(g)
	}
}

// Next moves to the following window.
func (n *Navigator) Next(events []model.Event) bool {
	_, next := n.view.Adjacent(n.date, events)
	return n.SetDate(next)
}

// Prev moves to the preceding window.
func (n *Navigator) Prev(events []model.Event) bool {
	prev, _ := n.view.Adjacent(n.date, events)
	return n.SetDate(prev)
}

// Today jumps to the real-world date.
func (n *Navigator) Today() bool {
	return n.SetDate(n.Now())
}

// Strip builds the three panels around the current date.
func (n *Navigator) Strip(events []model.Event) Strip {
	return BuildStrip(n.view, n.date, events, n.Now())
}

// Callbacks connects a carousel to the navigator. A committed next/prev
// shifts the date, then afterSwap runs. Hosts that redraw synchronously pass
// the carousel's ResetPosition so the strip recenters in the same frame the
// new panels appear; hosts that paint later call ResetPosition themselves.
func (n *Navigator) Callbacks(events func() []model.Event, afterSwap func(), onSettle func(carousel.Outcome)) carousel.Callbacks {
	list := func() []model.Event {
		if events == nil {
			return nil
		}
		return events()
	}
	return carousel.Callbacks{
		OnNext: func() {
			n.Next(list())
			if afterSwap != nil {
				afterSwap()
			}
		},
		OnPrev: func() {
			n.Prev(list())
			if afterSwap != nil {
				afterSwap()
			}
		},
		OnSettle: onSettle,
	}
}
