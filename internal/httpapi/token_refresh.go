package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/calepin/calepin/internal/auth"
	"github.com/rs/zerolog/log"
)

// refreshRequest is an RFC 6749 section 6 refresh grant carried as JSON.
type refreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshToken handles POST /v1/auth/refresh. The request authenticates by
// the refresh token itself, so the route sits outside the JWT middleware.
// Every grant rotates the refresh token; clients must store the new one.
func (s *Server) RefreshToken(jwtCfg auth.JWTCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "", "invalid request body")
			return
		}
		if req.GrantType != "" && req.GrantType != "refresh_token" {
			writeError(w, r, http.StatusBadRequest, "",
				fmt.Sprintf("unsupported grant_type %q", req.GrantType))
			return
		}
		if req.RefreshToken == "" {
			writeError(w, r, http.StatusBadRequest, "", "missing refresh_token")
			return
		}

		userID, err := auth.ValidateRefresh(jwtCfg, req.RefreshToken)
		if err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Msg("refresh grant rejected")
			writeError(w, r, http.StatusUnauthorized, "INVALID_GRANT", "invalid refresh token")
			return
		}

		pair, err := auth.IssueTokens(jwtCfg, userID)
		if err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("token issue failed")
			writeError(w, r, http.StatusInternalServerError, "", "failed to issue tokens")
			return
		}

		log.Ctx(r.Context()).Info().Str("userId", userID).Msg("refresh grant issued")
		writeJSON(w, http.StatusOK, pair)
	}
}

// devTokenRequest mints a token pair for an arbitrary user. Dev mode only.
type devTokenRequest struct {
	UserID string `json:"user_id"`
}

// DevToken handles POST /v1/auth/dev-token, the local-dev counterpart of the
// real auth gateway. Registered only when DevMode is on.
func (s *Server) DevToken(jwtCfg auth.JWTCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req devTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			writeError(w, r, http.StatusBadRequest, "", "user_id is required")
			return
		}
		pair, err := auth.IssueTokens(jwtCfg, req.UserID)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "", "failed to issue tokens")
			return
		}
		log.Ctx(r.Context()).Warn().Str("userId", req.UserID).
			Msg("dev token issued without credential check")
		writeJSON(w, http.StatusOK, pair)
	}
}
