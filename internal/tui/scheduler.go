package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// frameInterval approximates one display frame.
const frameInterval = 16 * time.Millisecond

// schedMsg runs the scheduled function with the given id.
type schedMsg struct{ id uint64 }

// scheduler implements carousel.Scheduler on top of the bubbletea update
// loop. Work is queued as tea.Cmds and executed when the matching schedMsg
// comes back through Update, so everything runs on one goroutine.
type scheduler struct {
	next    uint64
	pending map[uint64]func()
	cmds    []tea.Cmd
}

func newScheduler() *scheduler {
	return &scheduler{pending: make(map[uint64]func())}
}

func (s *scheduler) RequestFrame(fn func()) func() {
	return s.AfterFunc(frameInterval, fn)
}

func (s *scheduler) AfterFunc(d time.Duration, fn func()) func() {
	s.next++
	id := s.next
	s.pending[id] = fn
	s.cmds = append(s.cmds, tea.Tick(d, func(time.Time) tea.Msg { return schedMsg{id: id} }))
	return func() { delete(s.pending, id) }
}

// run executes a due function unless it was cancelled.
func (s *scheduler) run(id uint64) {
	fn, ok := s.pending[id]
	if !ok {
		return
	}
	delete(s.pending, id)
	fn()
}

// drain hands the queued ticks to bubbletea.
func (s *scheduler) drain() []tea.Cmd {
	cmds := s.cmds
	s.cmds = nil
	return cmds
}
