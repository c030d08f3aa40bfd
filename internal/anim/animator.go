package anim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"car-animator/internal/geo"
)

const (
	DefaultStepDelay  = 2 * time.Second
	DefaultDwellDelay = 5 * time.Second

	// WaypointDecimals is the rounding applied to marker and waypoint before
	// comparing them (~11km at 1 decimal).
	WaypointDecimals = 1
)

var (
	// ErrDegeneratePath is returned by Start when the path has fewer than two points.
	ErrDegeneratePath = errors.New("degenerate path")
	// ErrCancelled is reported by Handle.Err after Cancel.
	ErrCancelled = errors.New("animation cancelled")
)

// Step describes one marker movement. Delay is the wait before the next step.
type Step struct {
	Cursor  int
	From    geo.Coordinate
	To      geo.Coordinate
	Bearing float64
	Dwell   bool
	Delay   time.Duration
	Final   bool
}

// StepFunc receives every step. It runs outside the handle lock, so it may call Cancel.
type StepFunc func(Step)

// Options tune an Animator. Zero values fall back to defaults.
type Options struct {
	StepDelay  time.Duration
	DwellDelay time.Duration
	// StartDelay is the wait before the first step.
	StartDelay time.Duration
	Scheduler  Scheduler
}

// Animator starts marker animations that share delays and a scheduler.
type Animator struct {
	stepDelay  time.Duration
	dwellDelay time.Duration
	startDelay time.Duration
	sched      Scheduler
}

// New returns an Animator, filling unset options with the defaults.
func New(opts Options) *Animator {
	a := &Animator{
		stepDelay:  opts.StepDelay,
		dwellDelay: opts.DwellDelay,
		startDelay: opts.StartDelay,
		sched:      opts.Scheduler,
	}
	if a.stepDelay <= 0 {
		a.stepDelay = DefaultStepDelay
	}
	if a.dwellDelay <= 0 {
		a.dwellDelay = DefaultDwellDelay
	}
	if a.startDelay < 0 {
		a.startDelay = 0
	}
	if a.sched == nil {
		a.sched = RealScheduler{}
	}
	return a
}

// Start animates a marker from initial along path, one segment per tick.
// Waypoints are consumed the first time the marker lands on them.
func (a *Animator) Start(path geo.Path, waypoints []geo.Coordinate, initial geo.Coordinate, onStep StepFunc) (*Handle, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("%w: %d point(s)", ErrDegeneratePath, len(path))
	}
	h := &Handle{
		a:        a,
		path:     append(geo.Path(nil), path...),
		pending:  append([]geo.Coordinate(nil), waypoints...),
		position: initial,
		onStep:   onStep,
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	h.timer = a.sched.AfterFunc(a.startDelay, h.step)
	h.mu.Unlock()
	return h, nil
}

// State is a point-in-time copy of a running animation.
type State struct {
	Cursor    int              `json:"cursor"`
	Length    int              `json:"length"`
	Position  geo.Coordinate   `json:"position"`
	Pending   []geo.Coordinate `json:"pendingWaypoints"`
	Finished  bool             `json:"finished"`
	Cancelled bool             `json:"cancelled"`
}

// Handle owns the state of one animation.
type Handle struct {
	a      *Animator
	onStep StepFunc

	mu        sync.Mutex
	path      geo.Path
	cursor    int
	pending   []geo.Coordinate
	position  geo.Coordinate
	timer     Timer
	finished  bool
	cancelled bool
	done      chan struct{}
}

func (h *Handle) step() {
	h.mu.Lock()
	if h.finished || h.cancelled {
		h.mu.Unlock()
		return
	}
	h.timer = nil
	h.cursor++
	from := h.position
	to := h.path[h.cursor]
	h.position = to

	delay := h.a.stepDelay
	dwell := h.consumeWaypointLocked(to)
	if dwell {
		delay = h.a.dwellDelay
	}
	final := h.cursor == len(h.path)-1
	st := Step{
		Cursor:  h.cursor,
		From:    from,
		To:      to,
		Bearing: geo.InitialBearing(from, to),
		Dwell:   dwell,
		Delay:   delay,
		Final:   final,
	}
	h.mu.Unlock()

	if h.onStep != nil {
		h.onStep(st)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return
	}
	if final {
		h.finishLocked(false)
		return
	}
	h.timer = h.a.sched.AfterFunc(delay, h.step)
}

// consumeWaypointLocked removes the first pending waypoint matching pos.
func (h *Handle) consumeWaypointLocked(pos geo.Coordinate) bool {
	for i, wp := range h.pending {
		if geo.RoundedEqual(pos, wp, WaypointDecimals) {
			h.pending = append(h.pending[:i], h.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (h *Handle) finishLocked(cancelled bool) {
	if h.finished {
		return
	}
	h.finished = true
	h.cancelled = cancelled
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	close(h.done)
}

// Cancel stops the animation. It is safe to call repeatedly and after completion.
func (h *Handle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finishLocked(true)
}

// Done is closed once the animation finishes or is cancelled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns ErrCancelled after Cancel, nil otherwise.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return ErrCancelled
	}
	return nil
}

// Wait blocks until the animation ends or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) Snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return State{
		Cursor:    h.cursor,
		Length:    len(h.path),
		Position:  h.position,
		Pending:   append([]geo.Coordinate(nil), h.pending...),
		Finished:  h.finished,
		Cancelled: h.cancelled,
	}
}
