// Package httpapi exposes the sync service over HTTP: a single POST /v1/sync
// carrying the whole dirty set, plus capability discovery and history
// endpoints. Errors leave as {"error": ..., "error_code": ...} envelopes so
// clients can branch on the code without parsing messages.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/calepin/calepin/internal/auth"
	"github.com/calepin/calepin/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Syncer is the service surface the handlers need. syncsvc.Service satisfies
// it; tests substitute a stub.
type Syncer interface {
	Sync(ctx context.Context, userID, userAgent string, req *model.SyncRequest) (*model.SyncResponse, error)
	History(ctx context.Context, userID string, limit int, cursor string) ([]model.SyncHistoryEntry, string, error)
	State(ctx context.Context, userID string) (*model.AccountState, error)
	Wipe(ctx context.Context, userID, deviceID string) (*model.WipeResult, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	Syncer          Syncer
	RateLimitConfig RateLimitInfo
}

// errorBody is the JSON envelope for every non-200 response.
type errorBody struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// writeError writes the error envelope. code may be empty for errors the
// client has no business branching on.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, ErrorCode: code})
}

// parseLimit parses a limit query param with default and max.
func parseLimit(q string, def, max int) int {
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// Routes creates the HTTP router with all sync endpoints.
func (s *Server) Routes(jwt auth.JWTCfg) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check and capability discovery are unauthenticated.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	})
	r.Get("/v1/sync/info", s.Info)

	// The refresh grant authenticates by the refresh token itself.
	r.Post("/v1/auth/refresh", s.RefreshToken(jwt))
	if jwt.DevMode {
		r.Post("/v1/auth/dev-token", s.DevToken(jwt))
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwt))
		r.Use(RateLimitMiddleware(s.RateLimitConfig))

		r.Post("/v1/sync", s.Sync)
		r.Get("/v1/sync/history", s.History)
		r.Get("/v1/sync/state", s.SyncState)
		r.Post("/v1/sync/wipe", s.Wipe)
	})

	log.Info().Msg("HTTP routes registered")
	return r
}
