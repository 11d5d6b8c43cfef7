// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/precinct/internal/app"
	"github.com/okian/precinct/internal/domain/model"
)

// StreamUpdate mirrors the push shape broadcast to WebSocket clients.
type StreamUpdate = service.StreamUpdate

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Scenario state.
	Scenario(ctx context.Context) (model.Scenario, bool)
	CountyStates(ctx context.Context) map[string]model.CountyState
	County(ctx context.Context, fips string) (model.CountyState, bool)
	Aggregate(ctx context.Context, scope string) (model.Rollup, error)
	Snapshot(ctx context.Context) (model.Snapshot, bool)
	NewsroomEvents(ctx context.Context) []model.NewsroomEvent

	// Timeline controls.
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	SetSpeed(ctx context.Context, multiplier float64) error
	SeekToTime(ctx context.Context, seconds float64) error
	SeekToPercent(ctx context.Context, p float64) error
	Status(ctx context.Context) model.PlaybackStatus

	// Manual overrides.
	SetManualOverride(ctx context.Context, fips string, patch model.OverridePatch) (model.CountyState, error)
	ClearOverride(ctx context.Context, fips string) bool
	IsOverridden(ctx context.Context, fips string) bool
	Overridden(ctx context.Context) []string

	// Subscribe registers a live update feed. The returned cancel func
	// must be called when the consumer goes away.
	Subscribe(ctx context.Context) (<-chan StreamUpdate, func())
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	scenarioHandler *ScenarioHandler
	countiesHandler *CountiesHandler
	rollupHandler   *RollupHandler
	newsroomHandler *NewsroomHandler
	playbackHandler *PlaybackHandler
	streamHandler   *StreamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := defaultOptions()
	for _, o := range opts {
		o(&cfg)
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		scenarioHandler: NewScenarioHandler(deps),
		countiesHandler: NewCountiesHandler(deps, cfg.maxOverrideBytes),
		rollupHandler:   NewRollupHandler(deps),
		newsroomHandler: NewNewsroomHandler(deps),
		playbackHandler: NewPlaybackHandler(deps),
		streamHandler:   NewStreamHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/scenario", MetricsMiddleware(s.scenarioHandler.HandleGetScenario, "scenario"))
	mux.HandleFunc("/counties", MetricsMiddleware(s.countiesHandler.HandleCounties, "counties"))
	mux.HandleFunc("/counties/", MetricsMiddleware(s.countiesHandler.HandleCounty, "county"))
	mux.HandleFunc("/aggregates/", MetricsMiddleware(s.rollupHandler.HandleGetRollup, "aggregates"))
	mux.HandleFunc("/newsroom", MetricsMiddleware(s.newsroomHandler.HandleGetEvents, "newsroom"))
	mux.HandleFunc("/playback", MetricsMiddleware(s.playbackHandler.HandleStatus, "playback"))
	mux.HandleFunc("/playback/", MetricsMiddleware(s.playbackHandler.HandleControl, "playback_control"))
	mux.HandleFunc("/stream", s.streamHandler.HandleStream)
}

// Option customizes server construction.
type Option func(*options)

type options struct {
	maxOverrideBytes int64
}

func defaultOptions() options {
	return options{maxOverrideBytes: 64 << 10}
}

// WithMaxOverrideBytes caps the accepted override request body size.
func WithMaxOverrideBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOverrideBytes = n
		}
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
