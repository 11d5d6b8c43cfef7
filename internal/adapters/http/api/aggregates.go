// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	service "github.com/okian/precinct/internal/app"
	"github.com/okian/precinct/internal/domain/model"
)

// RollupDependencies defines the interface for aggregate reads.
type RollupDependencies interface {
	Aggregate(ctx context.Context, scope string) (model.Rollup, error)
	Snapshot(ctx context.Context) (model.Snapshot, bool)
}

// RollupHandler handles aggregate rollup requests.
type RollupHandler struct {
	deps RollupDependencies
}

// NewRollupHandler creates a new rollup handler.
func NewRollupHandler(deps RollupDependencies) *RollupHandler {
	return &RollupHandler{deps: deps}
}

// HandleGetRollup handles GET /aggregates/{scope} requests, where scope is
// "national", a two-letter postal code, or a two-digit state FIPS prefix.
func (h *RollupHandler) HandleGetRollup(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rollup"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	scope := strings.TrimPrefix(r.URL.Path, "/aggregates/")
	if scope == "" || strings.Contains(scope, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	rollup, err := h.deps.Aggregate(r.Context(), scope)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownScope):
			writeError(w, http.StatusNotFound, "unknown_scope", Wrap(op, err))
		case errors.Is(err, service.ErrNoSnapshot), errors.Is(err, service.ErrNoScenario):
			writeError(w, http.StatusConflict, "no_scenario", WrapKind(op, ErrConflict, err))
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		}
		return
	}
	writeJSON(w, http.StatusOK, rollup)
}
