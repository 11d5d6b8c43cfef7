// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/precinct/internal/adapters/playback"
	service "github.com/okian/precinct/internal/app"
	"github.com/okian/precinct/internal/domain/model"
)

// PlaybackDependencies defines the interface for timeline controls.
type PlaybackDependencies interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	SetSpeed(ctx context.Context, multiplier float64) error
	SeekToTime(ctx context.Context, seconds float64) error
	SeekToPercent(ctx context.Context, p float64) error
	Status(ctx context.Context) model.PlaybackStatus
}

// PlaybackHandler handles playback status and control requests.
type PlaybackHandler struct {
	deps PlaybackDependencies
}

// NewPlaybackHandler creates a new playback handler.
func NewPlaybackHandler(deps PlaybackDependencies) *PlaybackHandler {
	return &PlaybackHandler{deps: deps}
}

// HandleStatus handles GET /playback requests.
func (h *PlaybackHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Status(r.Context()))
}

// speedRequest mirrors the OpenAPI schema for POST /playback/speed.
type speedRequest struct {
	Speed float64 `json:"speed"`
}

// seekRequest mirrors the OpenAPI schema for POST /playback/seek. Exactly
// one of the two fields must be set.
type seekRequest struct {
	Seconds *float64 `json:"seconds,omitempty"`
	Percent *float64 `json:"percent,omitempty"`
}

func (s seekRequest) validate() error {
	if (s.Seconds == nil) == (s.Percent == nil) {
		return errors.New("exactly one of seconds or percent is required")
	}
	return nil
}

// HandleControl routes POST /playback/{play|pause|speed|seek} requests.
func (h *PlaybackHandler) HandleControl(w http.ResponseWriter, r *http.Request) {
	const op = "api.playback_control"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	action := strings.TrimPrefix(r.URL.Path, "/playback/")

	var err error
	switch action {
	case "play":
		err = h.deps.Play(r.Context())
	case "pause":
		err = h.deps.Pause(r.Context())
	case "speed":
		var req speedRequest
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, derr))
			return
		}
		err = h.deps.SetSpeed(r.Context(), req.Speed)
	case "seek":
		var req seekRequest
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, derr))
			return
		}
		if verr := req.validate(); verr != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, verr))
			return
		}
		if req.Seconds != nil {
			err = h.deps.SeekToTime(r.Context(), *req.Seconds)
		} else {
			err = h.deps.SeekToPercent(r.Context(), *req.Percent)
		}
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		writePlaybackError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Status(r.Context()))
}

// writePlaybackError translates controller rejections to HTTP statuses.
func writePlaybackError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, playback.ErrInvalidSpeed), errors.Is(err, playback.ErrSpeedTooHigh):
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
	case errors.Is(err, playback.ErrNoScenario), errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusConflict, "no_scenario", WrapKind(op, ErrConflict, err))
	case errors.Is(err, playback.ErrPlaybackDown):
		writeError(w, http.StatusServiceUnavailable, "playback_down", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
