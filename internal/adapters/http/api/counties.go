// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/okian/precinct/internal/adapters/statestore"
	service "github.com/okian/precinct/internal/app"
	"github.com/okian/precinct/internal/domain/model"
)

// CountyDependencies defines the interface for county state operations.
type CountyDependencies interface {
	CountyStates(ctx context.Context) map[string]model.CountyState
	County(ctx context.Context, fips string) (model.CountyState, bool)
	SetManualOverride(ctx context.Context, fips string, patch model.OverridePatch) (model.CountyState, error)
	ClearOverride(ctx context.Context, fips string) bool
	IsOverridden(ctx context.Context, fips string) bool
}

// CountiesHandler handles county state and override requests.
type CountiesHandler struct {
	deps     CountyDependencies
	maxBytes int64
}

// NewCountiesHandler creates a new counties handler.
func NewCountiesHandler(deps CountyDependencies, maxOverrideBytes int64) *CountiesHandler {
	return &CountiesHandler{deps: deps, maxBytes: maxOverrideBytes}
}

// HandleCounties handles GET /counties requests. Counties are returned as a
// FIPS-sorted list so consumers get a stable ordering.
func (h *CountiesHandler) HandleCounties(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	states := h.deps.CountyStates(r.Context())
	list := make([]model.CountyState, 0, len(states))
	for _, st := range states {
		list = append(list, st)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].FIPS < list[j].FIPS })
	writeJSON(w, http.StatusOK, list)
}

// HandleCounty routes /counties/{fips} and /counties/{fips}/override.
func (h *CountiesHandler) HandleCounty(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_county"
	path := strings.TrimPrefix(r.URL.Path, "/counties/")
	fips, rest, hasRest := strings.Cut(path, "/")
	if fips == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if hasRest {
		if rest == "override" {
			h.handleOverride(w, r, fips)
			return
		}
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	st, ok := h.deps.County(r.Context(), fips)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type overrideStatusResponse struct {
	FIPS       string `json:"fips"`
	Overridden bool   `json:"overridden"`
}

// handleOverride serves PUT, DELETE, and GET on /counties/{fips}/override.
func (h *CountiesHandler) handleOverride(w http.ResponseWriter, r *http.Request, fips string) {
	const op = "api.county_override"
	switch r.Method {
	case http.MethodPut:
		var patch model.OverridePatch
		body := http.MaxBytesReader(w, r.Body, h.maxBytes)
		if err := json.NewDecoder(body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		st, err := h.deps.SetManualOverride(r.Context(), fips, patch)
		if err != nil {
			writeOverrideError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	case http.MethodDelete:
		if !h.deps.ClearOverride(r.Context(), fips) {
			writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
			return
		}
		writeJSON(w, http.StatusOK, overrideStatusResponse{FIPS: fips, Overridden: false})
	case http.MethodGet:
		writeJSON(w, http.StatusOK, overrideStatusResponse{
			FIPS:       fips,
			Overridden: h.deps.IsOverridden(r.Context(), fips),
		})
	default:
		http.NotFound(w, r)
	}
}

// writeOverrideError translates domain rejections to HTTP statuses.
func writeOverrideError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNoScenario):
		writeError(w, http.StatusConflict, "no_scenario", WrapKind(op, ErrConflict, err))
	case errors.Is(err, statestore.ErrUnknownCounty):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	case errors.Is(err, model.ErrEmptyPatch),
		errors.Is(err, model.ErrNegativeVotes),
		errors.Is(err, model.ErrInvalidReportingPercent):
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
