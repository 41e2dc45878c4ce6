// Package carousel is a content-agnostic three-panel swipe strip.
//
// The strip is three viewport-wide panels (prev, current, next) laid side by
// side. At rest it is offset by -width so the middle panel fills the viewport.
// Gestures move the strip directly through a Track handle, and a release
// settles on exactly one of next, prev or cancel. The carousel never knows
// what the panels show; after a next/prev transition it asks the owner to
// swap content and the owner calls ResetPosition once the new content is in
// place.
package carousel

import (
	"math"
	"sync"
	"time"
)

// Phase is the state of the gesture machine.
type Phase int

const (
	Idle Phase = iota
	Dragging
	Animating
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Animating:
		return "animating"
	default:
		return "unknown"
	}
}

// Outcome is how a gesture settled.
type Outcome int

const (
	// None means the input did not produce a gesture (ignored or still accumulating).
	None Outcome = iota
	Next
	Prev
	Cancel
)

func (o Outcome) String() string {
	switch o {
	case Next:
		return "next"
	case Prev:
		return "prev"
	case Cancel:
		return "cancel"
	default:
		return "none"
	}
}

// Point is one pointer/touch sample in pixels.
type Point struct {
	X, Y float64
	At   time.Time
}

// Track is the direct handle to the sliding element. SetTransform is the
// only write the carousel performs; animate=false must apply instantly.
type Track interface {
	SetTransform(offset float64, animate bool, duration time.Duration)
}

// Scheduler defers work to the host's loop. Functions must run later, never
// inside the RequestFrame/AfterFunc call. The returned func cancels the work.
type Scheduler interface {
	RequestFrame(fn func()) (cancel func())
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// Callbacks are invoked without the carousel lock held, so they may call
// back into the carousel (typically ResetPosition).
type Callbacks struct {
	// OnNext / OnPrev fire when a next/prev transition has finished. The
	// strip then rests on the new panel until ResetPosition is called.
	OnNext func()
	OnPrev func()
	// OnSettle fires once per gesture for every outcome, cancel included.
	OnSettle func(Outcome)
}

// Options tune the commit heuristics. The same set applies to drag and wheel input.
type Options struct {
	// Threshold is the fraction of the width past which a drag commits.
	Threshold float64
	// VelocityMin (px/ms) commits a flick that moved at least Deadzone.
	VelocityMin float64
	Deadzone    float64
	// AxisLockSlop is the distance after which a drag is locked to one axis.
	AxisLockSlop float64
	// VelocityStale drops the velocity estimate if the pointer rested this
	// long before release.
	VelocityStale time.Duration
	// Duration of the eased transition.
	Duration time.Duration
	// CompletionSlack is added to Duration for the fallback completion timer.
	CompletionSlack time.Duration
	WheelThreshold  float64
	WheelDebounce   time.Duration
}

// DefaultOptions returns the tuned constant set.
func DefaultOptions() Options {
	return Options{
		Threshold:       0.2,
		VelocityMin:     0.3,
		Deadzone:        8,
		AxisLockSlop:    10,
		VelocityStale:   100 * time.Millisecond,
		Duration:        300 * time.Millisecond,
		CompletionSlack: 150 * time.Millisecond,
		WheelThreshold:  80,
		WheelDebounce:   50 * time.Millisecond,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.Threshold <= 0 || o.Threshold >= 1 {
		o.Threshold = def.Threshold
	}
	if o.VelocityMin <= 0 {
		o.VelocityMin = def.VelocityMin
	}
	if o.Deadzone <= 0 {
		o.Deadzone = def.Deadzone
	}
	if o.AxisLockSlop <= 0 {
		o.AxisLockSlop = def.AxisLockSlop
	}
	if o.VelocityStale <= 0 {
		o.VelocityStale = def.VelocityStale
	}
	if o.Duration <= 0 {
		o.Duration = def.Duration
	}
	if o.CompletionSlack <= 0 {
		o.CompletionSlack = def.CompletionSlack
	}
	if o.WheelThreshold <= 0 {
		o.WheelThreshold = def.WheelThreshold
	}
	if o.WheelDebounce <= 0 {
		o.WheelDebounce = def.WheelDebounce
	}
	return o
}

// Decide maps a released drag to an outcome. dx is the displacement and v the
// signed release velocity (px/ms); negative values mean the content moved left.
func Decide(dx, v, width float64, opts Options) Outcome {
	if width <= 0 {
		return Cancel
	}
	limit := opts.Threshold * width
	switch {
	case dx <= -limit:
		return Next
	case dx >= limit:
		return Prev
	case dx <= -opts.Deadzone && v <= -opts.VelocityMin:
		return Next
	case dx >= opts.Deadzone && v >= opts.VelocityMin:
		return Prev
	}
	return Cancel
}

// Release describes a finished drag. Hosts use DX/DY to tell taps from swipes.
type Release struct {
	Outcome  Outcome
	DX, DY   float64
	Velocity float64
}

// Tap reports whether the release barely moved and did not commit.
func (r Release) Tap(slop float64) bool {
	return r.Outcome == Cancel && math.Abs(r.DX) <= slop && math.Abs(r.DY) <= slop
}

type axis int

const (
	axisNone axis = iota
	axisX
	axisY
)

// Carousel is the gesture-to-animation state machine.
type Carousel struct {
	mu    sync.Mutex
	opts  Options
	track Track
	sched Scheduler
	cb    Callbacks

	width  float64
	phase  Phase
	offset float64
	closed bool

	start    Point
	last     Point
	velocity float64
	axis     axis

	pending Outcome
	// settled is set once a next/prev transition finished and the strip is
	// waiting for ResetPosition.
	settled bool
	// gen invalidates frames and timers scheduled for an older animation.
	gen         uint64
	cancelFrame func()
	cancelTimer func()

	wheelAcc  float64
	wheelLast time.Time
}

// New builds an idle carousel. Call SetWidth before feeding gestures.
func New(track Track, sched Scheduler, cb Callbacks, opts Options) *Carousel {
	return &Carousel{
		opts:  opts.normalized(),
		track: track,
		sched: sched,
		cb:    cb,
		phase: Idle,
	}
}

func (c *Carousel) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Offset is the last transform written to the track.
func (c *Carousel) Offset() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

func (c *Carousel) Width() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width
}

// Options returns the normalized options in effect.
func (c *Carousel) Options() Options {
	return c.opts
}

// SetWidth records a new viewport width. Any running transition is finished
// first, then the strip snaps back to center for the new width.
func (c *Carousel) SetWidth(w float64) {
	c.mu.Lock()
	if c.closed || w <= 0 {
		c.mu.Unlock()
		return
	}
	c.width = w

	var fire func()
	if c.phase == Animating && !c.settled {
		fire = c.finishLocked()
	}
	if c.phase == Animating && c.settled {
		// Still showing the new panel; keep it aligned until the owner resets.
		c.offset = c.targetFor(c.pending)
		c.writeLocked(c.offset, false)
	} else {
		c.resetLocked()
	}
	c.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// ResetPosition snaps the strip to center with no transition and returns to
// idle. Owners call it after a next/prev callback once the new panel content
// is in place and before it is shown. Calling it twice is harmless.
func (c *Carousel) ResetPosition() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.resetLocked()
}

func (c *Carousel) resetLocked() {
	c.clearScheduledLocked()
	c.gen++
	c.phase = Idle
	c.pending = None
	c.settled = false
	c.axis = axisNone
	c.velocity = 0
	c.offset = -c.width
	c.writeLocked(c.offset, false)
}

// PointerDown starts a drag. It returns false when the input is ignored:
// while animating, after Close, or before a width is known.
func (c *Carousel) PointerDown(p Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.track == nil || c.phase != Idle || c.width <= 0 {
		return false
	}
	c.phase = Dragging
	c.start = p
	c.last = p
	c.velocity = 0
	c.axis = axisNone
	c.wheelAcc = 0
	c.offset = -c.width
	c.writeLocked(c.offset, false)
	return true
}

// PointerMove follows the pointer 1:1 once the drag is locked horizontally.
func (c *Carousel) PointerMove(p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.phase != Dragging {
		return
	}

	c.sampleLocked(p)

	dx := p.X - c.start.X
	dy := p.Y - c.start.Y
	if c.axis == axisNone {
		if math.Max(math.Abs(dx), math.Abs(dy)) < c.opts.AxisLockSlop {
			return
		}
		if math.Abs(dx) >= math.Abs(dy) {
			c.axis = axisX
		} else {
			c.axis = axisY
		}
	}
	if c.axis != axisX {
		return
	}

	c.offset = -c.width + clamp(dx, -c.width, c.width)
	c.writeLocked(c.offset, false)
}

// sampleLocked updates the instantaneous velocity from the previous sample.
func (c *Carousel) sampleLocked(p Point) {
	dt := float64(p.At.Sub(c.last.At)) / float64(time.Millisecond)
	if dt > 0 {
		c.velocity = (p.X - c.last.X) / dt
	}
	c.last = p
}

// PointerUp ends the drag and starts the settle animation.
func (c *Carousel) PointerUp(p Point) Release {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.phase != Dragging {
		return Release{Outcome: None}
	}

	gap := p.At.Sub(c.last.At)
	switch {
	case p.X != c.last.X && gap > 0:
		c.sampleLocked(p)
	case gap > c.opts.VelocityStale:
		c.velocity = 0
	}

	dx := p.X - c.start.X
	dy := p.Y - c.start.Y

	outcome := Cancel
	if c.axis != axisY {
		outcome = Decide(dx, c.velocity, c.width, c.opts)
	}

	rel := Release{Outcome: outcome, DX: dx, DY: dy, Velocity: c.velocity}
	c.animateLocked(outcome)
	return rel
}

// PointerCancel aborts a drag (e.g. touchcancel); it settles as a cancel.
func (c *Carousel) PointerCancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.phase != Dragging {
		return
	}
	c.animateLocked(Cancel)
}

// Wheel accumulates wheel deltas while idle and commits once the total passes
// WheelThreshold. Events further apart than WheelDebounce start a new total.
func (c *Carousel) Wheel(dx, dy float64, at time.Time) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.track == nil || c.phase != Idle || c.width <= 0 {
		return None
	}

	d := dy
	if math.Abs(dx) > math.Abs(dy) {
		d = dx
	}
	if !c.wheelLast.IsZero() && at.Sub(c.wheelLast) > c.opts.WheelDebounce {
		c.wheelAcc = 0
	}
	c.wheelLast = at
	c.wheelAcc += d

	if math.Abs(c.wheelAcc) < c.opts.WheelThreshold {
		return None
	}
	outcome := Next
	if c.wheelAcc < 0 {
		outcome = Prev
	}
	c.wheelAcc = 0
	c.animateLocked(outcome)
	return outcome
}

// Commit animates a next/prev without a gesture, e.g. for arrow keys.
func (c *Carousel) Commit(o Outcome) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.track == nil || c.phase != Idle || c.width <= 0 {
		return false
	}
	if o != Next && o != Prev {
		return false
	}
	c.animateLocked(o)
	return true
}

// TransitionEnd is reported by the host when the eased transition finished.
func (c *Carousel) TransitionEnd() {
	c.mu.Lock()
	if c.closed || c.phase != Animating || c.settled || c.cancelFrame != nil {
		// Not started yet or already handled.
		c.mu.Unlock()
		return
	}
	fire := c.finishLocked()
	c.mu.Unlock()
	fire()
}

// Close releases pending frames and timers. Every later call is a no-op.
func (c *Carousel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearScheduledLocked()
	c.closed = true
}

func (c *Carousel) animateLocked(o Outcome) {
	c.clearScheduledLocked()
	c.gen++
	gen := c.gen
	c.phase = Animating
	c.pending = o
	c.settled = false
	c.axis = axisNone

	if c.sched == nil {
		// Nothing can drive the animation; land on the target immediately.
		c.offset = c.targetFor(o)
		c.writeLocked(c.offset, false)
		return
	}

	target := c.targetFor(o)
	c.cancelFrame = c.sched.RequestFrame(func() { c.startTransition(gen, target) })
	c.cancelTimer = c.sched.AfterFunc(c.opts.Duration+c.opts.CompletionSlack, func() { c.timeout(gen) })
}

// startTransition runs one frame after the commit so the host has painted the
// start position before the eased transform is applied.
func (c *Carousel) startTransition(gen uint64, target float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen || c.phase != Animating {
		return
	}
	c.cancelFrame = nil
	c.offset = target
	c.writeLocked(target, true)
}

func (c *Carousel) timeout(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.phase != Animating || c.settled {
		c.mu.Unlock()
		return
	}
	c.cancelTimer = nil
	fire := c.finishLocked()
	c.mu.Unlock()
	fire()
}

// finishLocked completes the running animation and returns the callbacks to
// run once the lock is released.
func (c *Carousel) finishLocked() func() {
	o := c.pending
	if c.cancelFrame != nil {
		// The transition never started; land on the target directly.
		c.offset = c.targetFor(o)
		c.writeLocked(c.offset, false)
	}
	c.clearScheduledLocked()

	var then func()
	switch o {
	case Next:
		c.settled = true
		then = c.cb.OnNext
	case Prev:
		c.settled = true
		then = c.cb.OnPrev
	default:
		c.phase = Idle
		c.pending = None
	}

	settle := c.cb.OnSettle
	return func() {
		if settle != nil {
			settle(o)
		}
		if then != nil {
			then()
		}
	}
}

func (c *Carousel) clearScheduledLocked() {
	if c.cancelFrame != nil {
		c.cancelFrame()
		c.cancelFrame = nil
	}
	if c.cancelTimer != nil {
		c.cancelTimer()
		c.cancelTimer = nil
	}
}

func (c *Carousel) targetFor(o Outcome) float64 {
	switch o {
	case Next:
		return -2 * c.width
	case Prev:
		return 0
	default:
		return -c.width
	}
}

func (c *Carousel) writeLocked(offset float64, animate bool) {
	if c.track == nil {
		return
	}
	var d time.Duration
	if animate {
		d = c.opts.Duration
	}
	c.track.SetTransform(offset, animate, d)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
