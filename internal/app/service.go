// Package service wires the playback engine together and implements the
// dependencies required by the HTTP API and the feed transport: scenario
// lifecycle, frame ingestion, the derivation pass (replay -> aggregate ->
// newsroom -> broadcast), playback controls, and override writes.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/precinct/internal/adapters/framebuffer"
	"github.com/okian/precinct/internal/adapters/playback"
	"github.com/okian/precinct/internal/adapters/statestore"
	"github.com/okian/precinct/internal/domain/aggregate"
	"github.com/okian/precinct/internal/domain/geo"
	"github.com/okian/precinct/internal/domain/model"
	"github.com/okian/precinct/internal/domain/newsroom"
	"github.com/okian/precinct/pkg/logger"
	"github.com/okian/precinct/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultTickInterval  = 250 * time.Millisecond
	defaultSpeed         = 1.0
	defaultMaxSpeed      = 64.0
	defaultCallThreshold = 95.0
	defaultSafetyMargin  = 5.0
	defaultWindow        = 200
	defaultNoiseFloor    = 1.0

	// subscriberBuffer bounds each stream subscriber's channel; a consumer
	// that cannot keep up loses intermediate updates, never the stream.
	subscriberBuffer = 16

	nationalScope = "national"
)

// StreamUpdate is one push to stream subscribers, produced after every
// derivation pass.
type StreamUpdate struct {
	Status   model.PlaybackStatus  `json:"status"`
	Snapshot model.Snapshot        `json:"snapshot"`
	Events   []model.NewsroomEvent `json:"events,omitempty"`
}

// Service implements the engine facade for the playback system.
type Service struct {
	mu sync.RWMutex

	// Core components. Buffer and store are replaced wholesale on every
	// scenario load; the controller, aggregator, and generator live for the
	// service lifetime and reset in place.
	buffer     framebuffer.Buffer
	store      statestore.Store
	controller *playback.Controller
	aggregator *aggregate.Engine
	generator  *newsroom.InMemoryGenerator

	scenario *model.Scenario
	latest   model.Snapshot
	latestOK bool
	cursor   float64 // last derived cursor, in simulated seconds

	// Configuration
	tickInterval  time.Duration
	speed         float64
	maxSpeed      float64
	callThreshold float64
	safetyMargin  float64
	window        int
	noiseFloor    float64

	// deriveMu serializes derivation passes: the controller loop, override
	// writes, and scenario swaps all take it, so at most one derivation is
	// ever in flight.
	deriveMu sync.Mutex

	// Stream fan-out
	subMu   sync.Mutex
	subs    map[uint64]chan StreamUpdate
	nextSub uint64

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithTickInterval sets the playback clock tick interval.
func WithTickInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithDefaultSpeed sets the initial playback speed multiplier.
func WithDefaultSpeed(speed float64) Option {
	return func(s *Service) {
		if speed > 0 {
			s.speed = speed
		}
	}
}

// WithMaxSpeed caps the speed multiplier accepted from the API.
func WithMaxSpeed(speed float64) Option {
	return func(s *Service) {
		if speed > 0 {
			s.maxSpeed = speed
		}
	}
}

// WithCallThreshold sets the race-call reporting threshold percent.
func WithCallThreshold(p float64) Option {
	return func(s *Service) {
		if p > 0 && p <= 100 {
			s.callThreshold = p
		}
	}
}

// WithSafetyMargin sets the race-call safety margin percent.
func WithSafetyMargin(p float64) Option {
	return func(s *Service) {
		if p >= 0 {
			s.safetyMargin = p
		}
	}
}

// WithNewsroomWindow bounds the retained newsroom events.
func WithNewsroomWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithPaceNoiseFloor sets the reporting percent below which pace
// extrapolation falls back to baseline expectations.
func WithPaceNoiseFloor(p float64) Option {
	return func(s *Service) {
		if p >= 0 {
			s.noiseFloor = p
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		tickInterval:  defaultTickInterval,
		speed:         defaultSpeed,
		maxSpeed:      defaultMaxSpeed,
		callThreshold: defaultCallThreshold,
		safetyMargin:  defaultSafetyMargin,
		window:        defaultWindow,
		noiseFloor:    defaultNoiseFloor,
		subs:          make(map[uint64]chan StreamUpdate),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the long-lived components and launches the tick loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting playback service...")

	s.aggregator = aggregate.NewEngine(
		aggregate.WithNoiseFloorPercent(s.noiseFloor),
	)
	s.generator = newsroom.NewInMemoryGenerator(
		newsroom.WithCallThreshold(s.callThreshold),
		newsroom.WithSafetyMargin(s.safetyMargin),
		newsroom.WithWindow(s.window),
	)
	s.controller = playback.NewController(
		playback.DeriverFunc(s.Derive),
		playback.WithTickInterval(s.tickInterval),
		playback.WithDefaultSpeed(s.speed),
		playback.WithMaxSpeed(s.maxSpeed),
	)
	s.controller.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "playback service started",
		logger.Duration("tick_interval", s.tickInterval),
		logger.Float64("call_threshold", s.callThreshold),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping playback service...")

	if s.controller != nil {
		_ = s.controller.Close()
	}
	if s.buffer != nil {
		_ = s.buffer.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.subMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subMu.Unlock()

	s.started = false
	s.logger.Info(ctx, "playback service stopped")
}

// LoadScenario installs a new scenario: a fresh buffer and store, reset
// newsroom memory, timeline back to zero. Implements the feed bootstrap.
func (s *Service) LoadScenario(ctx context.Context, sc model.Scenario) error {
	if sc.DurationSeconds <= 0 {
		return fmt.Errorf("%w: duration %v", ErrInvalidScenario, sc.DurationSeconds)
	}
	if len(sc.Baseline) == 0 {
		return fmt.Errorf("%w: empty baseline", ErrInvalidScenario)
	}

	// Hold the derivation lock across the swap so no replay runs against a
	// half-replaced component pair.
	s.deriveMu.Lock()
	defer s.deriveMu.Unlock()

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.buffer != nil {
		_ = s.buffer.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
	buf := framebuffer.NewMemoryBuffer(
		framebuffer.WithCountyCapacity(len(sc.Baseline)),
	)
	s.buffer = buf
	s.store = statestore.NewMemoryStore(buf, sc.Baseline)
	s.scenario = &sc
	s.latestOK = false
	s.cursor = 0
	generator := s.generator
	controller := s.controller
	s.mu.Unlock()

	generator.Reset(ctx)
	generator.SetReportingConfig(ctx, sc.Reporting)
	controller.ScenarioLoaded(ctx, sc.ID, sc.Name, sc.DurationSeconds)
	s.logger.Info(ctx, "scenario loaded",
		logger.String("scenario_id", sc.ID),
		logger.String("name", sc.Name),
		logger.Int("counties", len(sc.Baseline)),
		logger.Float64("duration_seconds", sc.DurationSeconds),
	)
	return nil
}

// IngestFrame buffers one frame after normalizing every county update.
// Arrival never triggers a replay; the next tick or seek picks it up.
func (s *Service) IngestFrame(ctx context.Context, f model.Frame) {
	s.mu.RLock()
	buf := s.buffer
	s.mu.RUnlock()
	if buf == nil {
		s.logger.Warn(ctx, "frame before scenario bootstrap; dropped",
			logger.Float64("timestamp", f.Timestamp))
		return
	}

	normalized := make(map[string]model.CountyUpdate, len(f.Counties))
	for fips, u := range f.Counties {
		nu, corrected := model.NormalizeUpdate(u)
		if corrected {
			metrics.RecordInvariantCorrection()
			s.logger.Debug(ctx, "corrected invariant violation in frame",
				logger.String("fips", fips),
				logger.Float64("timestamp", f.Timestamp))
		}
		normalized[geo.NormalizeFIPS(fips)] = nu
	}
	buf.Ingest(ctx, model.Frame{Timestamp: f.Timestamp, Counties: normalized})
}

// SourceReady marks the buffer ready for arbitrary seeking.
func (s *Service) SourceReady(ctx context.Context) {
	if c := s.ctrl(); c != nil {
		c.SourceReady(ctx)
	}
}

// SourceCompleted marks the feed fully delivered.
func (s *Service) SourceCompleted(ctx context.Context) {
	if c := s.ctrl(); c != nil {
		c.SourceCompleted(ctx)
	}
}

// SourceFailed surfaces a transport failure into the timeline.
func (s *Service) SourceFailed(ctx context.Context, err error) {
	if c := s.ctrl(); c != nil {
		c.Fail(ctx, err)
	}
}

// Derive is the derivation pass: replay county state up to the cursor,
// recompute rollups, scan for newsroom events, broadcast to subscribers.
// Called by the controller loop and, directly, by override clears.
func (s *Service) Derive(ctx context.Context, cursor float64) {
	s.deriveMu.Lock()
	defer s.deriveMu.Unlock()
	s.deriveLocked(ctx, cursor)
}

// deriveLocked runs one pass. Callers must hold s.deriveMu.
func (s *Service) deriveLocked(ctx context.Context, cursor float64) {
	start := time.Now()

	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return
	}

	store.ApplyUpToCursor(ctx, cursor)
	metrics.RecordReplay()
	s.publishLocked(ctx, store, cursor)
	metrics.RecordReplayDuration(float64(time.Since(start).Milliseconds()))
}

// publishLocked aggregates the store's current states, scans for events,
// and broadcasts. Callers must hold s.deriveMu.
func (s *Service) publishLocked(ctx context.Context, store statestore.Store, cursor float64) {
	snap := s.aggregator.Compute(ctx, aggregate.Input{
		CursorSeconds: cursor,
		States:        store.CountyStates(ctx),
		Baseline:      store.Baseline(ctx),
		Fingerprint:   store.Fingerprint(ctx),
	})
	events := s.generator.Observe(ctx, snap)

	s.mu.Lock()
	s.latest = snap
	s.latestOK = true
	s.cursor = cursor
	s.mu.Unlock()

	s.broadcast(StreamUpdate{
		Status:   s.controller.Status(ctx),
		Snapshot: snap,
		Events:   events,
	})
}

// CountyStates returns the materialized state for every county.
func (s *Service) CountyStates(ctx context.Context) map[string]model.CountyState {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return map[string]model.CountyState{}
	}
	return store.CountyStates(ctx)
}

// County returns the materialized state for one county.
func (s *Service) County(ctx context.Context, fips string) (model.CountyState, bool) {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return model.CountyState{}, false
	}
	return store.County(ctx, fips)
}

// Scenario returns the active scenario descriptor.
func (s *Service) Scenario(ctx context.Context) (model.Scenario, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.scenario == nil {
		return model.Scenario{}, false
	}
	return *s.scenario, true
}

// Snapshot returns the latest derived aggregate snapshot.
func (s *Service) Snapshot(ctx context.Context) (model.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.latestOK {
		return model.Snapshot{}, false
	}
	return s.latest, true
}

// Aggregate returns one rollup: scope "national", a state postal code, or a
// 2-digit state FIPS code.
func (s *Service) Aggregate(ctx context.Context, scope string) (model.Rollup, error) {
	s.mu.RLock()
	snap, ok := s.latest, s.latestOK
	s.mu.RUnlock()
	if !ok {
		return model.Rollup{}, ErrNoSnapshot
	}
	if scope == nationalScope || scope == "" {
		return snap.National, nil
	}
	st, ok := geo.Resolve(scope)
	if !ok {
		return model.Rollup{}, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
	r, ok := snap.States[st.Postal]
	if !ok {
		// A known state with no baseline counties rolls up to zeros.
		return model.Rollup{Scope: st.Postal, StateFIPS: st.FIPS}, nil
	}
	return r, nil
}

// NewsroomEvents returns the retained recent events, oldest first.
func (s *Service) NewsroomEvents(ctx context.Context) []model.NewsroomEvent {
	s.mu.RLock()
	generator := s.generator
	s.mu.RUnlock()
	if generator == nil {
		return nil
	}
	return generator.Events(ctx)
}

// Play starts or resumes playback.
func (s *Service) Play(ctx context.Context) error {
	c := s.ctrl()
	if c == nil {
		return ErrNotStarted
	}
	return c.Play(ctx)
}

// Pause freezes the cursor.
func (s *Service) Pause(ctx context.Context) error {
	c := s.ctrl()
	if c == nil {
		return ErrNotStarted
	}
	c.Pause(ctx)
	return nil
}

// SetSpeed updates the playback speed multiplier.
func (s *Service) SetSpeed(ctx context.Context, multiplier float64) error {
	c := s.ctrl()
	if c == nil {
		return ErrNotStarted
	}
	return c.SetSpeed(ctx, multiplier)
}

// SeekToTime moves the cursor to an absolute simulated second.
func (s *Service) SeekToTime(ctx context.Context, seconds float64) error {
	c := s.ctrl()
	if c == nil {
		return ErrNotStarted
	}
	return c.SeekToTime(ctx, seconds)
}

// SeekToPercent moves the cursor to a fraction of the scenario duration.
func (s *Service) SeekToPercent(ctx context.Context, p float64) error {
	c := s.ctrl()
	if c == nil {
		return ErrNotStarted
	}
	return c.SeekToPercent(ctx, p)
}

// Status returns the externally visible playback position.
func (s *Service) Status(ctx context.Context) model.PlaybackStatus {
	c := s.ctrl()
	if c == nil {
		return model.PlaybackStatus{State: model.PlaybackIdle, Speed: s.speed}
	}
	return c.Status(ctx)
}

// PlaybackReady reports whether arbitrary seeking is supported yet.
func (s *Service) PlaybackReady(ctx context.Context) bool {
	return s.Status(ctx).PlaybackReady
}

// SetManualOverride merges a partial edit into one county and makes it
// visible to the very next aggregation pass, which runs immediately.
func (s *Service) SetManualOverride(ctx context.Context, fips string, patch model.OverridePatch) (model.CountyState, error) {
	s.mu.RLock()
	store := s.store
	cursor := s.cursor
	s.mu.RUnlock()
	if store == nil {
		return model.CountyState{}, ErrNoScenario
	}

	st, err := store.SetManualOverride(ctx, fips, patch)
	if err != nil {
		return model.CountyState{}, err
	}

	// Recompute aggregates against the edited state without a replay; the
	// override is pinned, so a replay would produce the same view anyway.
	s.deriveMu.Lock()
	s.publishLocked(ctx, store, cursor)
	s.deriveMu.Unlock()
	return st, nil
}

// ClearOverride unpins a county and rederives it from the buffer.
func (s *Service) ClearOverride(ctx context.Context, fips string) bool {
	s.mu.RLock()
	store := s.store
	cursor := s.cursor
	s.mu.RUnlock()
	if store == nil || !store.ClearOverride(ctx, fips) {
		return false
	}

	s.deriveMu.Lock()
	s.deriveLocked(ctx, cursor)
	s.deriveMu.Unlock()
	return true
}

// IsOverridden reports whether a county has an active manual override.
func (s *Service) IsOverridden(ctx context.Context, fips string) bool {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return false
	}
	st, ok := store.County(ctx, fips)
	return ok && st.ManualOverride
}

// Overridden returns the sorted ids of counties with an active override.
func (s *Service) Overridden(ctx context.Context) []string {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return nil
	}
	return store.Overridden(ctx)
}

// Subscribe registers a stream consumer. The returned cancel function must
// be called to release the subscription.
func (s *Service) Subscribe(ctx context.Context) (<-chan StreamUpdate, func()) {
	ch := make(chan StreamUpdate, subscriberBuffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	n := len(s.subs)
	s.subMu.Unlock()

	metrics.UpdateStreamClients(n)
	cancel := func() {
		s.subMu.Lock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
		n := len(s.subs)
		s.subMu.Unlock()
		metrics.UpdateStreamClients(n)
	}
	return ch, cancel
}

// broadcast fans one update out to every subscriber, dropping for slow ones.
func (s *Service) broadcast(u StreamUpdate) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- u:
			metrics.RecordStreamBroadcast()
		default:
			metrics.RecordStreamDropped()
		}
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	ctx := context.Background()

	s.mu.RLock()
	store := s.store
	buf := s.buffer
	scenario := s.scenario
	started := s.started
	s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       started,
		"tick_interval": s.tickInterval.String(),
	}
	if scenario != nil {
		stats["scenario_id"] = scenario.ID
		stats["scenario_name"] = scenario.Name
		stats["duration_seconds"] = scenario.DurationSeconds
	}
	if buf != nil {
		stats["buffered_frames"] = buf.Len(ctx)
	}
	if store != nil {
		stats["counties"] = store.Count(ctx)
		stats["overrides"] = len(store.Overridden(ctx))
		stats["unknown_counties"] = len(store.UnknownCounties(ctx))
	}
	if c := s.ctrl(); c != nil {
		st := c.Status(ctx)
		stats["playback_state"] = string(st.State)
		stats["cursor_seconds"] = st.CursorSeconds
		stats["speed"] = st.Speed
		stats["playback_ready"] = st.PlaybackReady
	}

	s.subMu.Lock()
	stats["stream_subscribers"] = len(s.subs)
	s.subMu.Unlock()
	return stats
}

// ctrl returns the controller, or nil before Start.
func (s *Service) ctrl() *playback.Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.controller
}
