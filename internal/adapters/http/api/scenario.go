// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/precinct/internal/domain/model"
)

// ScenarioDependencies defines the interface for scenario reads.
type ScenarioDependencies interface {
	Scenario(ctx context.Context) (model.Scenario, bool)
}

// ScenarioHandler handles scenario descriptor requests.
type ScenarioHandler struct {
	deps ScenarioDependencies
}

// NewScenarioHandler creates a new scenario handler.
func NewScenarioHandler(deps ScenarioDependencies) *ScenarioHandler {
	return &ScenarioHandler{deps: deps}
}

// scenarioResponse trims the bootstrap down to the descriptor fields; the
// full baseline table is large and already reflected by /counties.
type scenarioResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	DurationSeconds float64 `json:"duration_seconds"`
	Counties        int     `json:"counties"`
}

// HandleGetScenario handles GET /scenario requests.
func (h *ScenarioHandler) HandleGetScenario(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_scenario"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	sc, ok := h.deps.Scenario(r.Context())
	if !ok {
		writeError(w, http.StatusNotFound, "no_scenario", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, scenarioResponse{
		ID:              sc.ID,
		Name:            sc.Name,
		DurationSeconds: sc.DurationSeconds,
		Counties:        len(sc.Baseline),
	})
}
