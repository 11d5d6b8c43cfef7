// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/precinct/internal/domain/model"
)

// NewsroomDependencies defines the interface for newsroom event reads.
type NewsroomDependencies interface {
	NewsroomEvents(ctx context.Context) []model.NewsroomEvent
}

// NewsroomHandler handles newsroom feed requests.
type NewsroomHandler struct {
	deps NewsroomDependencies
}

// NewNewsroomHandler creates a new newsroom handler.
func NewNewsroomHandler(deps NewsroomDependencies) *NewsroomHandler {
	return &NewsroomHandler{deps: deps}
}

// HandleGetEvents handles GET /newsroom?limit=N requests. Events come back
// newest-last; limit trims from the front so the latest survive.
func (h *NewsroomHandler) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_newsroom"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	events := h.deps.NewsroomEvents(r.Context())
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if n < len(events) {
			events = events[len(events)-n:]
		}
	}
	if events == nil {
		events = []model.NewsroomEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
