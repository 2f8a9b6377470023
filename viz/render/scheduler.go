package render

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"go.viam.com/rgbdview/logging"
)

// DefaultFrameInterval is roughly one display refresh.
const DefaultFrameInterval = time.Second / 60

// State is where the scheduler is in its render cycle.
type State int

// The scheduler's states.
const (
	StateIdle State = iota
	StateDirtyPending
	StateRendering
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDirtyPending:
		return "dirty-pending"
	case StateRendering:
		return "rendering"
	default:
		return "unknown"
	}
}

// DirtyState records why the next frame must be drawn.
type DirtyState struct {
	Requested     bool
	CameraChanged bool
}

// Dirty is true if either flag is set.
func (d DirtyState) Dirty() bool {
	return d.Requested || d.CameraChanged
}

// DrawFunc draws one frame.
type DrawFunc func() error

// Scheduler runs the frame loop. Every tick it polls the camera controls and draws when the
// scene is dirty, or always when OnlyRenderWhenNecessary is off. Flags are cleared only after a
// draw; ForceRerender draws without consulting or clearing them.
//
// The scheduler is not itself safe for concurrent use. Run takes the configured locker around
// each tick so callers that mutate the scene under the same lock stay serialized with drawing.
type Scheduler struct {
	logger   logging.Logger
	clock    clock.Clock
	interval time.Duration
	locker   sync.Locker

	draw     DrawFunc
	controls CameraMover

	onlyRenderWhenNecessary bool
	dirty                   DirtyState
	state                   State

	ticks atomic.Uint64
	draws atomic.Uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithFrameInterval sets the tick period of Run.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithLocker sets the lock held around each tick of Run.
func WithLocker(l sync.Locker) Option {
	return func(s *Scheduler) { s.locker = l }
}

// WithOnlyRenderWhenNecessary sets the initial policy. It defaults to true.
func WithOnlyRenderWhenNecessary(only bool) Option {
	return func(s *Scheduler) { s.onlyRenderWhenNecessary = only }
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// NewScheduler returns an idle scheduler. controls may be nil until SetControls is called.
func NewScheduler(draw DrawFunc, controls CameraMover, logger logging.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:                  logger,
		clock:                   clock.New(),
		interval:                DefaultFrameInterval,
		locker:                  noopLocker{},
		draw:                    draw,
		controls:                controls,
		onlyRenderWhenNecessary: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetControls swaps the polled camera controls, e.g. after a control-scheme switch.
func (s *Scheduler) SetControls(controls CameraMover) {
	s.controls = controls
}

// RequestRender marks the scene as needing a draw on the next tick.
func (s *Scheduler) RequestRender() {
	s.dirty.Requested = true
	if s.state == StateIdle {
		s.state = StateDirtyPending
	}
}

// SetOnlyRenderWhenNecessary changes the draw policy.
func (s *Scheduler) SetOnlyRenderWhenNecessary(only bool) {
	s.onlyRenderWhenNecessary = only
}

// OnlyRenderWhenNecessary reports the draw policy.
func (s *Scheduler) OnlyRenderWhenNecessary() bool {
	return s.onlyRenderWhenNecessary
}

// Dirty returns the pending flags.
func (s *Scheduler) Dirty() DirtyState {
	return s.dirty
}

// State returns the scheduler state.
func (s *Scheduler) State() State {
	return s.state
}

// Ticks is the number of frames processed.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

// Draws is the number of frames actually drawn, forced draws included.
func (s *Scheduler) Draws() uint64 {
	return s.draws.Load()
}

// Tick processes one frame and reports whether it drew.
func (s *Scheduler) Tick() bool {
	s.ticks.Inc()
	if s.controls != nil && s.controls.Update() {
		s.dirty.CameraChanged = true
	}
	if s.onlyRenderWhenNecessary && !s.dirty.Dirty() {
		return false
	}
	s.render()
	s.dirty = DirtyState{}
	s.state = StateIdle
	return true
}

// ForceRerender draws immediately, leaving the dirty flags and state as they were.
func (s *Scheduler) ForceRerender() error {
	prev := s.state
	err := s.render()
	s.state = prev
	return err
}

func (s *Scheduler) render() error {
	s.state = StateRendering
	s.draws.Inc()
	if s.draw == nil {
		return nil
	}
	if err := s.draw(); err != nil {
		s.logger.Warnw("frame draw failed", "error", err)
		return err
	}
	return nil
}

// Run ticks every frame interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()
	s.logger.Debugw("frame loop started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("frame loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
		s.locker.Lock()
		s.Tick()
		s.locker.Unlock()
	}
}
