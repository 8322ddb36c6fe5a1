// Package transport is the HTTP side of the sync driver: it posts sync
// requests with bearer auth, retries once through the external token refresh
// on a 401, and backs off once on a 429.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/calepin/calepin/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const requestTimeout = 30 * time.Second

// ErrAuthRequired means the bearer token was rejected and the refresh
// exchange could not produce a working replacement.
var ErrAuthRequired = errors.New("authentication required")

// TokenSource hands out the bearer token and performs the refresh exchange
// after a 401. Refresh must persist its rotation so the next AccessToken
// call returns the fresh token.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
}

// ServerError is a non-2xx sync reply carrying the server's error envelope.
type ServerError struct {
	Status  int
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server replied %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("server replied %d: %s", e.Status, e.Message)
}

// ErrRateLimited is returned when the server still throttles after the
// single backoff attempt.
type ErrRateLimited struct {
	RetryAfter time.Duration
}

func (e ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Client talks to one sync server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	userAgent  string
}

// New builds a sync client for baseURL. userAgent should describe the app,
// its version and platform; the server stamps it on every row it writes.
func New(baseURL string, tokens TokenSource, userAgent string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		tokens:     tokens,
		userAgent:  userAgent,
	}
}

// Sync posts one sync request and decodes the reply. A 401 triggers the
// refresh exchange and a single resend; a 429 honors Retry-After once.
func (c *Client) Sync(ctx context.Context, req *model.SyncRequest) (*model.SyncResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode sync request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/v1/sync", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out model.SyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode sync response: %w", err)
	}
	return &out, nil
}

// History fetches one page of the server's sync log, newest first. An empty
// cursor starts at the top; the returned cursor is empty on the last page.
func (c *Client) History(ctx context.Context, limit int, cursor string) ([]model.SyncHistoryEntry, string, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := "/v1/sync/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	var out struct {
		History    []model.SyncHistoryEntry `json:"history"`
		NextCursor string                   `json:"next_cursor"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, "", fmt.Errorf("decode history response: %w", err)
	}
	return out.History, out.NextCursor, nil
}

// State fetches the account's sync state: the current epoch and last wipe.
func (c *Client) State(ctx context.Context) (*model.AccountState, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/sync/state", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out model.AccountState
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode account state: %w", err)
	}
	return &out, nil
}

// Wipe asks the server to delete every synced row of the account and bump
// the epoch. deviceID identifies the wiping device in the server's audit.
func (c *Client) Wipe(ctx context.Context, deviceID string) (*model.WipeResult, error) {
	body, err := json.Marshal(map[string]string{
		"confirm":   "WIPE",
		"device_id": deviceID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode wipe request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/sync/wipe", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out model.WipeResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode wipe result: %w", err)
	}
	return &out, nil
}

// do runs one authenticated call with the shared retry discipline: a 401
// triggers the refresh exchange and a single resend, a 429 honors Retry-After
// once. On 200 the caller owns the response body.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	correlationID := uuid.NewString()
	logger := log.With().
		Str("url", c.baseURL+path).
		Str("correlationId", correlationID).
		Logger()

	refreshed := false
	backedOff := false
	for {
		resp, err := c.send(ctx, method, path, body, correlationID)
		if err != nil {
			logger.Error().Err(err).Msg("sync request failed")
			return nil, err
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return resp, nil

		case http.StatusUnauthorized:
			resp.Body.Close()
			if refreshed {
				logger.Warn().Msg("still unauthorized after token refresh")
				return nil, ErrAuthRequired
			}
			refreshed = true
			logger.Info().Msg("token rejected, running refresh exchange")
			if err := c.tokens.Refresh(ctx); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrAuthRequired, err)
			}

		case http.StatusTooManyRequests:
			wait := parseRetryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			if wait == 0 {
				wait = time.Second
			}
			if backedOff {
				logger.Warn().Dur("retryAfter", wait).Msg("still rate limited after backoff")
				return nil, ErrRateLimited{RetryAfter: wait}
			}
			backedOff = true
			logger.Info().Dur("retryAfter", wait).Msg("rate limited, backing off")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

		default:
			defer resp.Body.Close()
			return nil, decodeServerError(resp)
		}
	}
}

// send builds and executes one attempt. Each attempt gets a fresh request so
// the body can be re-sent, and a fresh token so a refresh takes effect.
func (c *Client) send(ctx context.Context, method, path string, body []byte, correlationID string) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		payload = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("build sync request: %w", err)
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Correlation-ID", correlationID)

	return c.httpClient.Do(req)
}

func decodeServerError(resp *http.Response) error {
	var envelope struct {
		Error     string `json:"error"`
		ErrorCode string `json:"error_code"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil {
		_ = json.Unmarshal(raw, &envelope)
	}
	if envelope.Error == "" {
		envelope.Error = strings.TrimSpace(string(raw))
	}
	return &ServerError{
		Status:  resp.StatusCode,
		Code:    envelope.ErrorCode,
		Message: envelope.Error,
	}
}

// parseRetryAfter accepts both integer seconds and HTTP-date values.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
