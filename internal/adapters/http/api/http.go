// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/minirank/internal/adapters/repository"
	service "github.com/okian/minirank/internal/app"
	"github.com/okian/minirank/internal/domain/history"
	"github.com/okian/minirank/internal/domain/types"
	"github.com/okian/minirank/internal/domain/window"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	LeaderboardDependencies
	ResultsDependencies
	PlayerDependencies
	WindowsProvider
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// DefaultMaxLimit caps ?limit when no other cap is configured.
const DefaultMaxLimit = 100

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit caps GET /leaderboard/{window}?limit.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// Server wires HTTP routes for the read API.
type Server struct {
	maxLimit int

	healthHandler      *HealthHandler
	windowsHandler     *WindowsHandler
	leaderboardHandler *LeaderboardHandler
	resultsHandler     *ResultsHandler
	playerHandler      *PlayerHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{maxLimit: DefaultMaxLimit}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.windowsHandler = NewWindowsHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit)
	s.resultsHandler = NewResultsHandler(deps)
	s.playerHandler = NewPlayerHandler(deps)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /windows", MetricsMiddleware(s.windowsHandler.HandleWindows, "windows"))
	mux.HandleFunc("GET /leaderboard/{window}", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /history/{date}", MetricsMiddleware(s.resultsHandler.HandleHistory, "history"))
	mux.HandleFunc("GET /recent", MetricsMiddleware(s.resultsHandler.HandleRecent, "recent"))
	mux.HandleFunc("GET /podium", MetricsMiddleware(s.resultsHandler.HandlePodium, "podium"))
	mux.HandleFunc("GET /players/{player}", MetricsMiddleware(s.playerHandler.HandleGetPlayer, "players"))
	mux.HandleFunc("GET /h2h/{a}/{b}", MetricsMiddleware(s.playerHandler.HandleHeadToHead, "h2h"))
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
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
	setErrorCode(w, code)
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps domain errors to status codes.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, window.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// isNotFound translates upstream not-found conditions to 404.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrNoSnapshot) ||
		errors.Is(err, repository.ErrNoResults) ||
		errors.Is(err, window.ErrUnknownWindow)
}

// Compile-time check that the service satisfies the handlers.
var _ Dependencies = (*service.Service)(nil)

// Read shapes re-exported for handler signatures.
type (
	DayResults = service.DayResults
	PlayerView = service.PlayerView
	HeadToHead = history.HeadToHead
)
