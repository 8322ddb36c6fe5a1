package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// tokenPair mirrors the server's token endpoints.
type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshGrant trades a refresh token for a rotated pair at the server's
// /v1/auth/refresh endpoint. The signature matches syncer.RefreshFunc when
// baseURL is bound.
func RefreshGrant(ctx context.Context, baseURL, refreshToken string) (string, string, error) {
	pair, err := postGrant(ctx, baseURL, "/v1/auth/refresh", map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
	if err != nil {
		return "", "", err
	}
	return pair.AccessToken, pair.RefreshToken, nil
}

// DevGrant mints a pair for an arbitrary user against a dev-mode server.
func DevGrant(ctx context.Context, baseURL, userID string) (string, string, error) {
	pair, err := postGrant(ctx, baseURL, "/v1/auth/dev-token", map[string]string{
		"user_id": userID,
	})
	if err != nil {
		return "", "", err
	}
	return pair.AccessToken, pair.RefreshToken, nil
}

func postGrant(ctx context.Context, baseURL, path string, body map[string]string) (*tokenPair, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build grant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{Timeout: requestTimeout}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("post grant: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeServerError(resp)
	}
	var pair tokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, fmt.Errorf("decode grant response: %w", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, fmt.Errorf("grant response missing tokens")
	}
	return &pair, nil
}
