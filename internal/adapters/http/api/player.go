package api

import (
	"context"
	"net/http"
	"strings"
)

// PlayerDependencies defines the per-player read operations.
type PlayerDependencies interface {
	Player(ctx context.Context, player string) (PlayerView, error)
	HeadToHead(ctx context.Context, a, b string) (HeadToHead, error)
}

// PlayerHandler serves player profiles and comparisons.
type PlayerHandler struct {
	deps PlayerDependencies
}

// NewPlayerHandler creates a new player handler.
func NewPlayerHandler(deps PlayerDependencies) *PlayerHandler {
	return &PlayerHandler{deps: deps}
}

// HandleGetPlayer handles GET /players/{player}.
func (h *PlayerHandler) HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_player"
	player := strings.TrimSpace(r.PathValue("player"))
	if player == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	view, err := h.deps.Player(r.Context(), player)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleHeadToHead handles GET /h2h/{a}/{b}.
func (h *PlayerHandler) HandleHeadToHead(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_h2h"
	a, b := strings.TrimSpace(r.PathValue("a")), strings.TrimSpace(r.PathValue("b"))
	if a == "" || b == "" || a == b {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	cmp, err := h.deps.HeadToHead(r.Context(), a, b)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}
