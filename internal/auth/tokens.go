package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenTTL  = time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour

	issuer = "calepind"
)

// TokenPair is an access token and the refresh token that renews it.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// IssueTokens mints an HS256 access/refresh pair for one user. The refresh
// token carries token_type=refresh and a jti so a revocation list can name
// it individually.
func IssueTokens(cfg JWTCfg, userID string) (*TokenPair, error) {
	now := time.Now()
	access, err := sign(cfg, jwt.MapClaims{
		"sub":        userID,
		"iss":        issuer,
		"iat":        now.Unix(),
		"nbf":        now.Unix(),
		"exp":        now.Add(accessTokenTTL).Unix(),
		"token_type": "access",
	})
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := sign(cfg, jwt.MapClaims{
		"sub":        userID,
		"iss":        issuer,
		"iat":        now.Unix(),
		"nbf":        now.Unix(),
		"exp":        now.Add(refreshTokenTTL).Unix(),
		"token_type": "refresh",
		"jti":        uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(accessTokenTTL.Seconds()),
	}, nil
}

func sign(cfg JWTCfg, claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(cfg.HS256Secret))
}

// ValidateRefresh checks signature, expiry and token_type of a refresh token
// and returns its subject. Access tokens are rejected so a leaked short-lived
// token cannot renew itself.
func ValidateRefresh(cfg JWTCfg, token string) (string, error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.HS256Secret), nil
	})
	if err != nil || !t.Valid {
		return "", fmt.Errorf("refresh token invalid: %w", err)
	}
	if tt, _ := claims["token_type"].(string); tt != "refresh" {
		return "", errors.New("not a refresh token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("refresh token has no subject")
	}
	return sub, nil
}
