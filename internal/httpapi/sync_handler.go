package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/calepin/calepin/internal/auth"
	"github.com/calepin/calepin/internal/model"
	"github.com/calepin/calepin/internal/synclock"
	"github.com/calepin/calepin/internal/syncsvc"
	"github.com/rs/zerolog/log"
)

// Sync handles POST /v1/sync: one request carrying the client's entire dirty
// set, one response carrying everything changed on the server since
// last_sync_at. Conflicts come back inside a 200; only binding, locking, and
// infrastructure failures are HTTP errors.
func (s *Server) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)

	var req model.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("invalid sync request body")
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	resp, err := s.Syncer.Sync(ctx, userID, r.UserAgent(), &req)
	if err != nil {
		var held *synclock.LockHeldError
		switch {
		case errors.Is(err, syncsvc.ErrWorkspaceNotOwned):
			writeError(w, r, http.StatusForbidden, "WORKSPACE_NOT_OWNED",
				"workspace does not belong to the authenticated user")
		case errors.Is(err, syncsvc.ErrEpochBehind):
			writeError(w, r, http.StatusConflict, "EPOCH_MISMATCH",
				"server data was wiped since this device last synced; reset required")
		case errors.As(err, &held):
			writeError(w, r, http.StatusConflict, "SYNC_IN_PROGRESS", held.Reason)
		default:
			log.Ctx(ctx).Error().Err(err).Msg("sync failed")
			writeError(w, r, http.StatusInternalServerError, "SYNC_FAILED", "sync failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// History handles GET /v1/sync/history?limit=<int>&cursor=<opaque>, newest
// runs first. The response carries next_cursor while more pages remain.
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)
	limit := parseLimit(r.URL.Query().Get("limit"), 20, 100)
	cursor := r.URL.Query().Get("cursor")

	entries, next, err := s.Syncer.History(ctx, userID, limit, cursor)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to load sync history")
		writeError(w, r, http.StatusInternalServerError, "", "failed to load sync history")
		return
	}

	body := map[string]any{"history": entries}
	if next != "" {
		body["next_cursor"] = next
	}
	writeJSON(w, http.StatusOK, body)
}
