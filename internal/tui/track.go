package tui

import (
	"math"
	"time"
)

// animTickMsg advances the track tween.
type animTickMsg struct{}

// track is the terminal stand-in for the sliding element: it stores the
// offset in pixels and eases between offsets over the requested duration.
type track struct {
	now func() time.Time

	offset float64

	from, to  float64
	start     time.Time
	duration  time.Duration
	animating bool
}

func (t *track) SetTransform(offset float64, animate bool, d time.Duration) {
	if !animate || d <= 0 {
		t.offset = offset
		t.animating = false
		return
	}
	t.from = t.offset
	t.to = offset
	t.start = t.now()
	t.duration = d
	t.animating = true
}

// advance moves the tween to the current time and reports whether it just
// finished.
func (t *track) advance() bool {
	if !t.animating {
		return false
	}
	p := float64(t.now().Sub(t.start)) / float64(t.duration)
	if p >= 1 {
		t.offset = t.to
		t.animating = false
		return true
	}
	t.offset = t.from + (t.to-t.from)*easeOutCubic(math.Max(p, 0))
	return false
}

func easeOutCubic(p float64) float64 {
	q := 1 - p
	return 1 - q*q*q
}
