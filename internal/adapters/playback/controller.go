// Package playback owns the timeline: the cursor in simulated seconds, the
// speed multiplier, and the idle -> ready -> running <-> paused -> completed
// state machine, with error reachable from any non-idle state.
//
// All state derivation funnels through one loop goroutine, so at most one
// derivation is in flight at any time. Seeks requested while a derivation
// runs are queued and coalesced: only the most recent target survives. A
// seek while running is treated as pause-seek-resume so tick-driven and
// seek-driven replay never race.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/okian/precinct/internal/domain/model"
	"github.com/okian/precinct/pkg/logger"
	"github.com/okian/precinct/pkg/metrics"
)

const component = "playback"

// Default controller configuration constants.
const (
	defaultTickInterval = 250 * time.Millisecond
	defaultSpeed        = 1.0
	defaultMaxSpeed     = 64.0
)

// Deriver rebuilds downstream state for a cursor position. Derive is called
// from the controller's loop goroutine only, never concurrently.
type Deriver interface {
	Derive(ctx context.Context, cursor float64)
}

// DeriverFunc adapts a plain function to the Deriver interface.
type DeriverFunc func(ctx context.Context, cursor float64)

// Derive calls the wrapped function.
func (f DeriverFunc) Derive(ctx context.Context, cursor float64) { f(ctx, cursor) }

// Controller is the timeline state machine and tick scheduler.
type Controller struct {
	mu sync.Mutex

	state    model.PlaybackState
	cursor   float64
	duration float64
	speed    float64
	ready    bool // buffer holds enough data for arbitrary seeking
	lastErr  error

	scenarioID   string
	scenarioName string

	// pendingSeek is the coalesced seek target awaiting the loop. Writing
	// over a non-nil value drops the superseded target.
	pendingSeek *float64
	lastAdvance time.Time

	tick     time.Duration
	maxSpeed float64
	deriver  Deriver

	kick    chan struct{}
	stopCh  chan struct{}
	done    chan struct{}
	started bool
	closed  bool

	logger logger.Logger
}

// NewController creates a controller in the idle state.
func NewController(deriver Deriver, opts ...Option) *Controller {
	c := &Controller{
		state:    model.PlaybackIdle,
		speed:    defaultSpeed,
		tick:     defaultTickInterval,
		maxSpeed: defaultMaxSpeed,
		deriver:  deriver,
		kick:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named(component)
	}

	return c
}

// Start launches the tick loop. Safe to call once; later calls are no-ops.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.run(ctx)
}

// Close stops the tick scheduler. No state mutation happens after Close
// returns; an in-flight derivation result is discarded by its consumers.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	close(c.stopCh)
	c.mu.Unlock()

	if started {
		<-c.done
	}
	return nil
}

// ScenarioLoaded resets the timeline for a new scenario: cursor 0, ready
// state, derivation queued so consumers see the zeroed baseline.
func (c *Controller) ScenarioLoaded(ctx context.Context, id, name string, durationSeconds float64) {
	c.mu.Lock()
	c.scenarioID = id
	c.scenarioName = name
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	c.duration = durationSeconds
	c.cursor = 0
	c.ready = false
	c.lastErr = nil
	c.state = model.PlaybackReady
	target := 0.0
	c.pendingSeek = &target
	c.mu.Unlock()

	metrics.UpdateCursorSeconds(0)
	metrics.UpdatePlaybackRunning(false)
	c.logger.Info(ctx, "scenario loaded",
		logger.String("scenario_id", id),
		logger.Float64("duration_seconds", durationSeconds))
	c.wake()
}

// SourceReady marks the buffer as able to support arbitrary seeking.
func (c *Controller) SourceReady(ctx context.Context) {
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
	c.logger.Info(ctx, "playback ready")
}

// SourceCompleted marks the feed as fully delivered. Playback keeps its
// current state; the cursor still has the rest of the timeline to cover.
func (c *Controller) SourceCompleted(ctx context.Context) {
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
	c.logger.Info(ctx, "source completed")
}

// Fail freezes the cursor and surfaces an upstream failure. Recovery is the
// transport's problem; a new scenario bootstrap clears the error.
func (c *Controller) Fail(ctx context.Context, err error) {
	c.mu.Lock()
	if c.state == model.PlaybackIdle {
		c.mu.Unlock()
		return
	}
	c.state = model.PlaybackError
	c.lastErr = err
	c.pendingSeek = nil
	c.mu.Unlock()

	metrics.UpdatePlaybackRunning(false)
	metrics.RecordErrorByComponent(component, "transport")
	c.logger.Error(ctx, "playback entered error state", logger.Error(err))
}

// Play starts or resumes the cursor. Resuming from completed re-seeks to 0.
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case model.PlaybackReady, model.PlaybackPaused:
	case model.PlaybackCompleted:
		target := 0.0
		c.cursor = 0
		c.pendingSeek = &target
	case model.PlaybackRunning:
		c.mu.Unlock()
		return nil
	default:
		st := c.state
		c.mu.Unlock()
		return stateError(st)
	}
	c.state = model.PlaybackRunning
	c.lastAdvance = time.Now()
	c.mu.Unlock()

	metrics.UpdatePlaybackRunning(true)
	c.logger.Info(ctx, "playback started")
	c.wake()
	return nil
}

// Pause freezes the cursor. A no-op outside running.
func (c *Controller) Pause(ctx context.Context) {
	c.mu.Lock()
	if c.state != model.PlaybackRunning {
		c.mu.Unlock()
		return
	}
	c.state = model.PlaybackPaused
	c.mu.Unlock()

	metrics.UpdatePlaybackRunning(false)
	c.logger.Info(ctx, "playback paused")
}

// SetSpeed updates the multiplier. Takes effect on the next tick and never
// changes the playback state.
func (c *Controller) SetSpeed(ctx context.Context, multiplier float64) error {
	if multiplier <= 0 {
		return ErrInvalidSpeed
	}
	if multiplier > c.maxSpeed {
		return ErrSpeedTooHigh
	}

	c.mu.Lock()
	c.speed = multiplier
	c.mu.Unlock()

	metrics.UpdatePlaybackSpeed(multiplier)
	c.logger.Debug(ctx, "speed changed", logger.Float64("speed", multiplier))
	return nil
}

// SeekToTime moves the cursor, clamped to [0, duration], and queues a full
// re-derivation. The seek coalesces with any still-pending target.
func (c *Controller) SeekToTime(ctx context.Context, seconds float64) error {
	c.mu.Lock()
	if c.state == model.PlaybackIdle || c.state == model.PlaybackError {
		st := c.state
		c.mu.Unlock()
		return stateError(st)
	}
	target := clamp(seconds, 0, c.duration)
	if c.pendingSeek != nil {
		metrics.RecordSeekCoalesced()
	}
	c.pendingSeek = &target
	c.mu.Unlock()

	metrics.RecordPlaybackSeek()
	c.wake()
	return nil
}

// SeekToPercent seeks to a fraction of the scenario duration, p in [0, 100].
func (c *Controller) SeekToPercent(ctx context.Context, p float64) error {
	c.mu.Lock()
	duration := c.duration
	c.mu.Unlock()
	return c.SeekToTime(ctx, clamp(p, 0, 100)/100*duration)
}

// Status returns the externally visible playback position.
func (c *Controller) Status(ctx context.Context) model.PlaybackStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.PlaybackStatus{
		State:           c.state,
		CursorSeconds:   c.cursor,
		DurationSeconds: c.duration,
		Speed:           c.speed,
		PlaybackReady:   c.ready,
		ScenarioID:      c.scenarioID,
		ScenarioName:    c.scenarioName,
	}
}

// Cursor returns the current cursor in simulated seconds.
func (c *Controller) Cursor(ctx context.Context) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Err returns the failure that moved the controller into the error state.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// run is the single derivation loop: ticks advance the cursor, kicks apply
// coalesced seeks. Derive runs outside the lock, one call at a time.
func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			if target, ok := c.advance(); ok {
				c.derive(ctx, target)
			}
		case <-c.kick:
			if target, ok := c.takeSeek(); ok {
				c.derive(ctx, target)
			}
		}
	}
}

// advance moves the cursor one tick forward. Returns the derivation target
// and whether a derivation is due. A pending seek wins over the tick.
func (c *Controller) advance() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pendingSeek != nil {
		return c.applySeekLocked()
	}
	if c.state != model.PlaybackRunning {
		return 0, false
	}

	now := time.Now()
	elapsed := now.Sub(c.lastAdvance).Seconds()
	c.lastAdvance = now

	c.cursor = clamp(c.cursor+elapsed*c.speed, 0, c.duration)
	if c.cursor >= c.duration && c.duration > 0 {
		c.state = model.PlaybackCompleted
		metrics.UpdatePlaybackRunning(false)
	}
	metrics.RecordPlaybackTick()
	metrics.UpdateCursorSeconds(c.cursor)
	return c.cursor, true
}

// takeSeek consumes the pending seek target, if any.
func (c *Controller) takeSeek() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingSeek == nil {
		return 0, false
	}
	return c.applySeekLocked()
}

// applySeekLocked commits the pending seek to the cursor. Runs the
// pause-seek-resume dance so a running timeline restarts its wall-clock
// base at the new position. Callers must hold c.mu.
func (c *Controller) applySeekLocked() (float64, bool) {
	target := *c.pendingSeek
	c.pendingSeek = nil

	wasRunning := c.state == model.PlaybackRunning
	c.cursor = target
	if wasRunning {
		// Resume from the seek target; the elapsed base restarts here.
		c.lastAdvance = time.Now()
	}
	if c.state == model.PlaybackCompleted && target < c.duration {
		c.state = model.PlaybackPaused
	}
	metrics.UpdateCursorSeconds(c.cursor)
	return target, true
}

// derive invokes the deriver unless the controller was closed.
func (c *Controller) derive(ctx context.Context, cursor float64) {
	select {
	case <-c.stopCh:
		return
	default:
	}
	c.deriver.Derive(ctx, cursor)
}

// wake nudges the loop without blocking; a pending nudge is enough.
func (c *Controller) wake() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
