package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/calepin/calepin/internal/auth"
	"github.com/calepin/calepin/internal/model"
)

// stubSyncer satisfies Syncer without a database and records what the
// handler passed through.
type stubSyncer struct {
	resp        *model.SyncResponse
	err         error
	history     []model.SyncHistoryEntry
	historyNext string
	historyErr  error
	state       *model.AccountState
	stateErr    error
	wipeResult  *model.WipeResult
	wipeErr     error

	gotUserID    string
	gotUserAgent string
	gotReq       *model.SyncRequest
	gotLimit     int
	gotCursor    string
	gotWipeDev   string
}

func (s *stubSyncer) Sync(ctx context.Context, userID, userAgent string, req *model.SyncRequest) (*model.SyncResponse, error) {
	s.gotUserID = userID
	s.gotUserAgent = userAgent
	s.gotReq = req
	return s.resp, s.err
}

func (s *stubSyncer) History(ctx context.Context, userID string, limit int, cursor string) ([]model.SyncHistoryEntry, string, error) {
	s.gotLimit = limit
	s.gotCursor = cursor
	return s.history, s.historyNext, s.historyErr
}

func (s *stubSyncer) State(ctx context.Context, userID string) (*model.AccountState, error) {
	if s.state == nil && s.stateErr == nil {
		return &model.AccountState{Epoch: 1}, nil
	}
	return s.state, s.stateErr
}

func (s *stubSyncer) Wipe(ctx context.Context, userID, deviceID string) (*model.WipeResult, error) {
	s.gotUserID = userID
	s.gotWipeDev = deviceID
	return s.wipeResult, s.wipeErr
}

// newTestRouter builds the full middleware chain around a stub service, with
// DevMode auth so tests authenticate via X-Debug-Sub.
func newTestRouter(stub *stubSyncer) http.Handler {
	srv := &Server{Syncer: stub, RateLimitConfig: DefaultRateLimitConfig}
	return srv.Routes(auth.JWTCfg{HS256Secret: "test-secret", DevMode: true})
}

// doSync posts a sync request as the given debug user.
func doSync(t *testing.T, router http.Handler, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var bodyReader *bytes.Reader
	if raw, ok := body.([]byte); ok {
		bodyReader = bytes.NewReader(raw)
	} else {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest("POST", "/v1/sync", bodyReader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Debug-Sub", user)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v (raw: %s)", err, w.Body.String())
	}
	return body
}
