// Package tui is a terminal host for the calendar. Mouse drags and wheel
// notches drive the swipe carousel exactly as pointer events would in a
// browser; the strip is drawn three panels wide and cut to the viewport at
// the carousel's offset.
package tui

import (
	"context"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"slidecal/internal/carousel"
	"slidecal/internal/metrics"
	"slidecal/internal/model"
	"slidecal/internal/views"
)

const (
	// Rows above and below the strip: header, tabs, footer.
	headerRows = 2
	footerRows = 1

	// wheelNotchPx is the delta one wheel notch reports.
	wheelNotchPx = 100
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

// Options configure the terminal host.
type Options struct {
	View     views.Granularity
	Date     time.Time
	Views    views.Options
	Carousel carousel.Options

	// CellWidthPx and CellHeightPx convert terminal cells to the pixel
	// units the carousel thresholds are tuned for.
	CellWidthPx  float64
	CellHeightPx float64

	// Load returns the filtered event list. Nil means no events.
	Load func(ctx context.Context) []model.Event
	// Open is called with the path of a tapped event card.
	Open func(path string)

	Metrics *metrics.Metrics
	Now     func() time.Time
}

type eventsMsg []model.Event

// Model is the bubbletea model.
type Model struct {
	opts  Options
	nav   *views.Navigator
	car   *carousel.Carousel
	track *track
	sched *scheduler

	events  []model.Event
	width   int
	height  int
	pressed bool
	ticking bool
	status  string
}

// New builds the model; call it once per program.
func New(opts Options) *Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CellWidthPx <= 0 {
		opts.CellWidthPx = 8
	}
	if opts.CellHeightPx <= 0 {
		opts.CellHeightPx = 16
	}
	if opts.Date.IsZero() {
		opts.Date = opts.Now()
	}

	m := &Model{
		opts:  opts,
		nav:   views.NewNavigator(opts.View, opts.Date, opts.Views),
		track: &track{now: opts.Now},
		sched: newScheduler(),
	}
	m.nav.SetClock(opts.Now)
	m.car = carousel.New(m.track, m.sched, m.nav.Callbacks(
		func() []model.Event { return m.events },
		// View runs right after Update, so recentering here swaps content
		// and position in the same frame.
		func() { m.car.ResetPosition() },
		func(o carousel.Outcome) { m.opts.Metrics.Settled(o) },
	), opts.Carousel)
	return m
}

// Navigator exposes the date/view state.
func (m *Model) Navigator() *views.Navigator { return m.nav }

func (m *Model) Init() tea.Cmd {
	return m.load()
}

func (m *Model) load() tea.Cmd {
	if m.opts.Load == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return eventsMsg(m.opts.Load(ctx))
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.car.SetWidth(float64(m.width) * m.opts.CellWidthPx)

	case eventsMsg:
		m.events = msg
		m.status = ""

	case schedMsg:
		m.sched.run(msg.id)

	case animTickMsg:
		m.ticking = false
		if m.track.advance() {
			m.car.TransitionEnd()
		}

	case tea.MouseMsg:
		m.handleMouse(msg)

	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	cmds = append(cmds, m.sched.drain()...)
	if m.track.animating && !m.ticking {
		m.ticking = true
		cmds = append(cmds, tea.Tick(frameInterval, func(time.Time) tea.Msg { return animTickMsg{} }))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.car.Close()
		return tea.Quit
	case "r":
		m.status = "reloading…"
		return m.load()
	}

	if m.car.Phase() != carousel.Idle {
		return nil
	}
	switch key := msg.String(); key {
	case "right", "l", "n":
		m.car.Commit(carousel.Next)
	case "left", "h", "p":
		m.car.Commit(carousel.Prev)
	case "t":
		m.nav.Today()
	case "1", "2", "3", "4", "5":
		all := views.All()
		m.nav.SetView(all[int(key[0]-'1')])
	}
	return nil
}

func (m *Model) point(msg tea.MouseMsg) carousel.Point {
	return carousel.Point{
		X:  float64(msg.X) * m.opts.CellWidthPx,
		Y:  float64(msg.Y) * m.opts.CellHeightPx,
		At: m.opts.Now(),
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	switch msg.Button {
	case tea.MouseButtonWheelDown:
		m.car.Wheel(0, wheelNotchPx, m.opts.Now())
		return
	case tea.MouseButtonWheelUp:
		m.car.Wheel(0, -wheelNotchPx, m.opts.Now())
		return
	case tea.MouseButtonWheelRight:
		m.car.Wheel(wheelNotchPx, 0, m.opts.Now())
		return
	case tea.MouseButtonWheelLeft:
		m.car.Wheel(-wheelNotchPx, 0, m.opts.Now())
		return
	}

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || msg.Y < headerRows || msg.Y >= m.height-footerRows {
			return
		}
		m.pressed = m.car.PointerDown(m.point(msg))

	case tea.MouseActionMotion:
		if m.pressed {
			m.car.PointerMove(m.point(msg))
		}

	case tea.MouseActionRelease:
		if !m.pressed {
			return
		}
		m.pressed = false
		rel := m.car.PointerUp(m.point(msg))
		if rel.Tap(m.car.Options().Deadzone) {
			m.tap(msg.X, msg.Y-headerRows)
		}
	}
}

// tap is navigateTo for the card under (x, y) in strip coordinates.
func (m *Model) tap(x, y int) {
	strip := m.nav.Strip(m.events)
	path, ok := hitTest(strip.Current, m.width, m.stripHeight(), x, y)
	if !ok {
		return
	}
	m.status = "open " + path
	if m.opts.Open != nil {
		m.opts.Open(path)
	}
}

func (m *Model) stripHeight() int {
	return max(m.height-headerRows-footerRows, 1)
}

// shift converts the track offset to the first visible strip column.
func (m *Model) shift() int {
	s := int(math.Round(-m.track.offset / m.opts.CellWidthPx))
	return min(max(s, 0), 2*m.width)
}

func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "loading…"
	}

	strip := m.nav.Strip(m.events)
	var b strings.Builder

	b.WriteString(titleStyle.Render("slidecal") + "  " + strip.Current.Label)
	b.WriteByte('\n')

	tabs := make([]string, 0, len(views.All()))
	for i, g := range views.All() {
		label := string(rune('1'+i)) + " " + g.Title()
		if g == m.nav.Granularity() {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteByte('\n')

	h := m.stripHeight()
	cv := drawStrip(strip, m.width, h)
	from := m.shift()
	for y := 0; y < h; y++ {
		b.WriteString(cv.window(y, from, m.width))
		b.WriteByte('\n')
	}

	footer := helpStyle.Render("drag/wheel/←→ move · t today · 1-5 view · r reload · q quit")
	if m.status != "" {
		footer = statusStyle.Render(m.status)
	}
	b.WriteString(footer)
	return b.String()
}
