package views

import (
	"hash/fnv"
	"strings"
	"time"

	"slidecal/internal/dates"
	"slidecal/internal/eventindex"
	"slidecal/internal/model"
)

// SplitDirection is how a multi-event cell is divided.
type SplitDirection int

const (
	Stack   SplitDirection = iota // equal rows
	Columns                       // equal columns
)

func (d SplitDirection) String() string {
	if d == Columns {
		return "columns"
	}
	return "stack"
}

// Policy is a view's per-cell rendering density.
type Policy struct {
	Split SplitDirection
	// MaxCards caps visible sub-cards; 0 means no cap.
	MaxCards        int
	ShowLocation    bool
	ShowTime        bool
	ShowDate        bool
	ShowDescription bool
}

// LayoutKind is the shape of a day cell.
type LayoutKind int

const (
	Empty LayoutKind = iota
	Single
	Split
)

func (k LayoutKind) String() string {
	switch k {
	case Single:
		return "single"
	case Split:
		return "split"
	default:
		return "empty"
	}
}

// Gradient is the placeholder drawn when an event has no image.
type Gradient struct {
	From  string
	To    string
	Angle int
}

// Card is one event as drawn inside a cell.
type Card struct {
	Event    model.Event
	Title    string
	Subtitle string
	Detail   string
	// Image is the featured image URL; empty means use Gradient.
	Image    string
	Gradient Gradient
	Path     string
}

// Layout is the placement of a cell's events.
type Layout struct {
	Kind  LayoutKind
	Split SplitDirection
	Cards []Card
	// More counts events hidden behind a "+K more" badge.
	More int
}

// Cell is one day of a window.
type Cell struct {
	Date      time.Time
	Key       string
	DayNumber int
	// InRange is false for the neighbouring-month padding of a month grid.
	InRange bool
	Today   bool
	Events  []model.Event
	Layout  Layout
}

// Muted reports whether the day number is drawn muted.
func (c Cell) Muted() bool {
	return c.Layout.Kind == Empty || !c.InRange
}

// Target returns the navigation path of the i-th card. Empty cells have none.
func (c Cell) Target(i int) (string, bool) {
	if c.Layout.Kind == Empty || i < 0 || i >= len(c.Layout.Cards) {
		return "", false
	}
	return c.Layout.Cards[i].Path, true
}

// Panel is one rendered window.
type Panel struct {
	Anchor  time.Time
	Label   string
	Columns int
	Cells   []Cell
}

// Rows splits the cells into rows of Columns cells.
func (p Panel) Rows() [][]Cell {
	cols := p.Columns
	if cols <= 0 {
		cols = len(p.Cells)
	}
	var rows [][]Cell
	for i := 0; i < len(p.Cells); i += cols {
		end := i + cols
		if end > len(p.Cells) {
			end = len(p.Cells)
		}
		rows = append(rows, p.Cells[i:end])
	}
	return rows
}

// Strip is the three panels a carousel shows.
type Strip struct {
	View    Granularity
	Prev    Panel
	Current Panel
	Next    Panel
}

// Panels returns prev, current and next in strip order.
func (s Strip) Panels() [3]Panel {
	return [3]Panel{s.Prev, s.Current, s.Next}
}

// BuildPanel buckets events into v's window for anchor. today is passed in on
// every call so the highlight follows the wall clock across midnight.
func BuildPanel(v View, anchor time.Time, events []model.Event, today time.Time) Panel {
	days := v.Window(anchor)
	buckets := eventindex.EventsInWindow(days, events)
	policy := v.Policy()
	month := anchor.Month()

	cells := make([]Cell, len(days))
	for i, d := range days {
		key := dates.Format(d)
		evs := buckets[key]
		cells[i] = Cell{
			Date:      d,
			Key:       key,
			DayNumber: d.Day(),
			InRange:   v.Granularity() != Month || d.Month() == month,
			Today:     dates.SameDay(d, today),
			Events:    evs,
			Layout:    layoutCell(evs, policy),
		}
	}

	return Panel{
		Anchor:  dates.StartOfDay(anchor),
		Label:   v.Label(anchor),
		Columns: v.Columns(),
		Cells:   cells,
	}
}

// BuildStrip builds the prev/current/next panels around anchor.
func BuildStrip(v View, anchor time.Time, events []model.Event, today time.Time) Strip {
	prev, next := v.Adjacent(anchor, events)
	return Strip{
		View:    v.Granularity(),
		Prev:    BuildPanel(v, prev, events, today),
		Current: BuildPanel(v, anchor, events, today),
		Next:    BuildPanel(v, next, events, today),
	}
}

func layoutCell(evs []model.Event, p Policy) Layout {
	switch len(evs) {
	case 0:
		return Layout{Kind: Empty}
	case 1:
		return Layout{Kind: Single, Cards: []Card{buildCard(evs[0], p, true)}}
	}

	visible := evs
	more := 0
	if p.MaxCards > 0 && len(evs) > p.MaxCards {
		visible = evs[:p.MaxCards]
		more = len(evs) - p.MaxCards
	}
	cards := make([]Card, len(visible))
	for i, e := range visible {
		cards[i] = buildCard(e, p, false)
	}
	return Layout{Kind: Split, Split: p.Split, Cards: cards, More: more}
}

// buildCard fills the text a card shows. Sub-cards of a split cell get the
// title and at most the time; a single event gets everything the view allows.
func buildCard(e model.Event, p Policy, single bool) Card {
	c := Card{
		Event: e,
		Title: e.Title,
		Image: strings.TrimSpace(e.FeaturedImage),
		Path:  e.Path(),
	}
	if c.Image == "" {
		c.Gradient = Placeholder(e)
	}

	var detail []string
	if p.ShowTime {
		if t := timeRange(e); t != "" {
			detail = append(detail, t)
		}
	}
	if single {
		if p.ShowLocation {
			c.Subtitle = e.Location()
		}
		if p.ShowDate && e.LastDay() != e.StartDate {
			detail = append(detail, e.StartDate+" → "+e.LastDay())
		}
		if p.ShowDescription {
			desc := e.ShortDescription
			if desc == "" {
				desc = e.Description
			}
			if desc != "" {
				detail = append(detail, desc)
			}
		}
	}
	c.Detail = strings.Join(detail, " · ")
	return c
}

func timeRange(e model.Event) string {
	switch {
	case e.StartTime != "" && e.EndTime != "":
		return e.StartTime + "–" + e.EndTime
	default:
		return e.StartTime
	}
}

var palette = [][2]string{
	{"#ff6b6b", "#f06595"},
	{"#845ef7", "#5c7cfa"},
	{"#339af0", "#22b8cf"},
	{"#20c997", "#51cf66"},
	{"#fcc419", "#ff922b"},
	{"#f783ac", "#cc5de8"},
	{"#4dabf7", "#748ffc"},
	{"#94d82d", "#38d9a9"},
}

// Placeholder derives a gradient from the event identity, so the same event
// always gets the same colours.
func Placeholder(e model.Event) Gradient {
	key := e.ID
	if key == "" {
		key = e.Slug + "\x00" + e.Title
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	sum := h.Sum32()

	pair := palette[sum%uint32(len(palette))]
	return Gradient{
		From:  pair[0],
		To:    pair[1],
		Angle: int(sum>>8) % 360,
	}
}
