package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/minirank/internal/domain/types"
	"github.com/okian/minirank/pkg/dateutil"
)

// ResultsDependencies defines the daily results read operations.
type ResultsDependencies interface {
	Day(ctx context.Context, day time.Time) (DayResults, error)
	Recent(ctx context.Context) ([]DayResults, error)
	Podium(ctx context.Context) ([]types.Result, error)
}

// ResultsHandler serves daily results.
type ResultsHandler struct {
	deps ResultsDependencies
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps ResultsDependencies) *ResultsHandler {
	return &ResultsHandler{deps: deps}
}

// HandleHistory handles GET /history/{date} with date as YYYY-MM-DD.
func (h *ResultsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	day, err := dateutil.Parse(r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	d, err := h.deps.Day(r.Context(), day)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleRecent handles GET /recent.
func (h *ResultsHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	days, err := h.deps.Recent(r.Context())
	if err != nil {
		writeServiceError(w, "api.get_recent", err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

// HandlePodium handles GET /podium.
func (h *ResultsHandler) HandlePodium(w http.ResponseWriter, r *http.Request) {
	results, err := h.deps.Podium(r.Context())
	if err != nil {
		writeServiceError(w, "api.get_podium", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
