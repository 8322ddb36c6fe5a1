//go:build ignore

package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// This probe drives a running calepind through the full two-device sync
// lifecycle:
// 1. Health check and capability discovery
// 2. Dev token mint (server must run with dev mode on)
// 3. Device A pushes a workspace and a note
// 4. Device B pulls the same data from a zero watermark
// 5. Device B pushes a stale edit and receives a conflict fork
// 6. Refresh grant rotation
// 7. Account wipe, then the old-epoch device is fenced with EPOCH_MISMATCH
// 8. The fenced device rejoins at epoch zero
//
// This serves as the reference for what a client must send at each step.

var (
	serverURL = getEnv("CALEPIN_URL", "http://localhost:8080")
	userID    = getEnv("CALEPIN_USER", "smoke-user")
)

var httpc = &http.Client{Timeout: 10 * time.Second}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type syncResponse struct {
	LastSyncAt  int64            `json:"last_sync_at"`
	SyncEpoch   int64            `json:"sync_epoch"`
	TotalPushed int              `json:"total_pushed"`
	TotalPulled int              `json:"total_pulled"`
	Notes       []map[string]any `json:"upserted_notes"`
	Workspaces  []map[string]any `json:"upserted_workspaces"`
	Conflicts   []map[string]any `json:"conflicts"`
}

func main() {
	fmt.Println("=== Sync Lifecycle Smoke Probe ===")
	fmt.Printf("Server: %s, user: %s\n\n", serverURL, userID)

	fmt.Println("Step 1: Health check and capability discovery...")
	if err := getJSON("/v1/sync/info", "", nil); err != nil {
		fmt.Printf("❌ /v1/sync/info: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("   ✓ server is up")
	fmt.Println()

	fmt.Println("Step 2: Minting dev tokens...")
	var tokens tokenPair
	if err := postJSON("/v1/auth/dev-token", "", map[string]string{"user_id": userID}, &tokens); err != nil {
		fmt.Printf("❌ dev token mint failed (is the server running with JWT_DEV_MODE=1?): %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("   ✓ access token: %s...\n", tokens.AccessToken[:20])
	fmt.Println()

	fmt.Println("Step 3: Device A pushes a workspace and a note...")
	wsID, noteID := randomID(), randomID()
	now := time.Now().Unix()
	var respA syncResponse
	err := postJSON("/v1/sync", tokens.AccessToken, map[string]any{
		"device_id":    "smoke-dev-a",
		"workspace_id": wsID,
		"workspaces": []map[string]any{{
			"id": wsID, "name": "Smoke", "is_default": true,
			"created_at": now, "updated_at": now,
		}},
		"notes": []map[string]any{{
			"id": noteID, "workspace_id": wsID, "title": "hello",
			"content": "written by device A", "created_at": now, "updated_at": now,
		}},
	}, &respA)
	if err != nil {
		fmt.Printf("❌ push failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("   ✓ pushed %d rows, account epoch %d\n", respA.TotalPushed, respA.SyncEpoch)
	fmt.Println()

	fmt.Println("Step 4: Device B pulls from a zero watermark...")
	var respB syncResponse
	err = postJSON("/v1/sync", tokens.AccessToken, map[string]any{
		"device_id": "smoke-dev-b", "workspace_id": wsID,
	}, &respB)
	if err != nil {
		fmt.Printf("❌ pull failed: %v\n", err)
		os.Exit(1)
	}
	if len(respB.Notes) == 0 {
		fmt.Println("❌ device B pulled no notes")
		os.Exit(1)
	}
	fmt.Printf("   ✓ pulled %d rows including the note\n", respB.TotalPulled)
	fmt.Println()

	fmt.Println("Step 5: Device B pushes a stale edit (expect a conflict fork)...")
	var respC syncResponse
	err = postJSON("/v1/sync", tokens.AccessToken, map[string]any{
		"device_id": "smoke-dev-b", "workspace_id": wsID,
		"last_sync_at": respB.LastSyncAt, "sync_epoch": respB.SyncEpoch,
		"notes": []map[string]any{{
			"id": noteID, "workspace_id": wsID, "title": "hello",
			"content": "stale edit from device B", "created_at": now,
			"updated_at": now + 1, "server_ver": 0,
		}},
	}, &respC)
	if err != nil {
		fmt.Printf("❌ conflict push failed: %v\n", err)
		os.Exit(1)
	}
	if len(respC.Conflicts) == 0 {
		fmt.Println("❌ server did not report the version conflict")
		os.Exit(1)
	}
	fmt.Printf("   ✓ %d conflict(s) reported, %d rows pulled back\n",
		len(respC.Conflicts), respC.TotalPulled)
	fmt.Println()

	fmt.Println("Step 6: Rotating the refresh grant...")
	var rotated tokenPair
	err = postJSON("/v1/auth/refresh", "", map[string]string{
		"grant_type": "refresh_token", "refresh_token": tokens.RefreshToken,
	}, &rotated)
	if err != nil {
		fmt.Printf("❌ refresh grant failed: %v\n", err)
		os.Exit(1)
	}
	if rotated.RefreshToken == tokens.RefreshToken {
		fmt.Println("❌ refresh token was not rotated")
		os.Exit(1)
	}
	tokens = rotated
	fmt.Println("   ✓ new pair issued, old refresh token retired")
	fmt.Println()

	fmt.Println("Step 7: Wiping the account...")
	var wipe struct {
		Epoch   int64          `json:"epoch"`
		Deleted map[string]int `json:"deleted"`
	}
	err = postJSON("/v1/sync/wipe", tokens.AccessToken, map[string]string{
		"confirm": "WIPE", "device_id": "smoke-dev-a",
	}, &wipe)
	if err != nil {
		fmt.Printf("❌ wipe failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("   ✓ wiped (epoch now %d, %d notes gone)\n", wipe.Epoch, wipe.Deleted["notes"])

	// Device B still believes the old epoch; its next sync must be fenced.
	status, body := rawSync(tokens.AccessToken, map[string]any{
		"device_id": "smoke-dev-b", "workspace_id": wsID,
		"last_sync_at": respC.LastSyncAt, "sync_epoch": respC.SyncEpoch,
	})
	if status != http.StatusConflict || !bytes.Contains(body, []byte("EPOCH_MISMATCH")) {
		fmt.Printf("❌ stale device got %d %s, want 409 EPOCH_MISMATCH\n", status, body)
		os.Exit(1)
	}
	fmt.Println("   ✓ stale device fenced with EPOCH_MISMATCH")
	fmt.Println()

	fmt.Println("Step 8: Fenced device rejoins at epoch zero...")
	var respD syncResponse
	err = postJSON("/v1/sync", tokens.AccessToken, map[string]any{
		"device_id": "smoke-dev-b",
	}, &respD)
	if err != nil {
		fmt.Printf("❌ rejoin failed: %v\n", err)
		os.Exit(1)
	}
	if respD.SyncEpoch != wipe.Epoch {
		fmt.Printf("❌ rejoin answered epoch %d, want %d\n", respD.SyncEpoch, wipe.Epoch)
		os.Exit(1)
	}
	fmt.Printf("   ✓ adopted epoch %d over an empty account\n", respD.SyncEpoch)
	fmt.Println()

	fmt.Println("=== ✅ SUCCESS - full sync lifecycle verified ===")
}

func postJSON(path, token string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", serverURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func getJSON(path, token string, out any) error {
	req, err := http.NewRequest("GET", serverURL+path, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// rawSync posts a sync request and returns the raw status and body, for the
// steps that expect an error envelope.
func rawSync(token string, in any) (int, []byte) {
	body, _ := json.Marshal(in)
	req, _ := http.NewRequest("POST", serverURL+"/v1/sync", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := httpc.Do(req)
	if err != nil {
		fmt.Printf("❌ sync request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func randomID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
