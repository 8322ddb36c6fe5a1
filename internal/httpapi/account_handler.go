package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/calepin/calepin/internal/auth"
	"github.com/calepin/calepin/internal/synclock"
	"github.com/rs/zerolog/log"
)

// SyncState handles GET /v1/sync/state: the account epoch and last wipe,
// cheap enough for clients to poll before deciding whether a reset is due.
func (s *Server) SyncState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)

	st, err := s.Syncer.State(ctx, userID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to load account state")
		writeError(w, r, http.StatusInternalServerError, "", "failed to load account state")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type wipeRequest struct {
	Confirm  string `json:"confirm"`
	DeviceID string `json:"device_id"`
}

// Wipe handles POST /v1/sync/wipe: it permanently deletes every synced row
// the user owns and bumps the account epoch. The body must carry the literal
// confirmation {"confirm": "WIPE"}; anything else is refused.
func (s *Server) Wipe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)

	var req wipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if req.Confirm != "WIPE" {
		writeError(w, r, http.StatusBadRequest, "CONFIRM_REQUIRED",
			`confirmation required: send {"confirm": "WIPE"}`)
		return
	}

	result, err := s.Syncer.Wipe(ctx, userID, req.DeviceID)
	if err != nil {
		var held *synclock.LockHeldError
		if errors.As(err, &held) {
			writeError(w, r, http.StatusConflict, "SYNC_IN_PROGRESS", held.Reason)
			return
		}
		log.Ctx(ctx).Error().Err(err).Msg("account wipe failed")
		writeError(w, r, http.StatusInternalServerError, "", "account wipe failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
