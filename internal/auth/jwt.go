package auth

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const CtxUserID ctxKey = "uid"

// Blacklist rejects revoked tokens. Issuance and revocation live in the auth
// gateway; the sync server only consults it.
type Blacklist interface {
	Revoked(ctx context.Context, token string) bool
}

// JWTCfg holds JWT validation configuration.
type JWTCfg struct {
	HS256Secret string    // HMAC secret for HS256 tokens
	DevMode     bool      // Allow X-Debug-Sub header (DANGEROUS: only for local dev)
	Blacklist   Blacklist // optional revocation check
}

// Middleware authenticates requests and injects the user id into the
// context. The JWT subject is the user id; there is no user table lookup.
// Two modes:
// 1. Production: Bearer token with HS256 validation.
// 2. Development: X-Debug-Sub header (ONLY when DevMode=true).
func Middleware(cfg JWTCfg) func(http.Handler) http.Handler {
	if cfg.DevMode {
		log.Warn().Msg("SECURITY WARNING: DevMode enabled - X-Debug-Sub header will bypass JWT authentication")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := ""
			if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
				tok = h[7:]
			}

			sub := ""

			// Dev mode: accept X-Debug-Sub ONLY when no token is present.
			if cfg.DevMode && tok == "" {
				sub = r.Header.Get("X-Debug-Sub")
				if sub != "" {
					log.Debug().Str("sub", sub).Msg("using X-Debug-Sub header (dev mode)")
				}
			}

			if tok != "" {
				if cfg.Blacklist != nil && cfg.Blacklist.Revoked(r.Context(), tok) {
					log.Warn().Msg("rejected blacklisted token")
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}

				claims := jwt.MapClaims{}
				t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, jwt.ErrSignatureInvalid
					}
					return []byte(cfg.HS256Secret), nil
				})

				if err != nil || !t.Valid {
					log.Warn().Err(err).Msg("jwt validation failed")
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}

				if s, ok := claims["sub"].(string); ok {
					sub = s
				}
			}

			if sub == "" {
				log.Warn().Msg("missing subject (no JWT sub or X-Debug-Sub header)")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), CtxUserID, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated user id from the request context.
// Returns empty string if not authenticated (should never happen after
// the middleware has run).
func UserID(ctx context.Context) string {
	if v := ctx.Value(CtxUserID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
