package httpapi

import (
	"net/http"

	"github.com/calepin/calepin/internal/model"
	"github.com/calepin/calepin/internal/synclock"
)

// ServerInfo describes the server's capabilities and policies so clients can
// discover them before authenticating.
type ServerInfo struct {
	APIVersion         string                      `json:"api_version"`
	ServerTime         int64                       `json:"server_time"`
	Entities           map[string]EntityCapability `json:"entities"`
	Locking            LockingCapability           `json:"locking"`
	ConflictStrategies []string                    `json:"conflict_strategies"`
	RateLimit          *RateLimitInfo              `json:"rate_limit,omitempty"`
	MinClientVersion   string                      `json:"min_client_version"`
}

// RateLimitInfo describes the server's rate limiting policy.
type RateLimitInfo struct {
	WindowSeconds int `json:"window_seconds"`
	MaxRequests   int `json:"max_requests"`
	Burst         int `json:"burst"`
}

// EntityCapability describes how one entity type syncs.
type EntityCapability struct {
	Push bool `json:"push"`
	Pull bool `json:"pull"`
	// Cap is the retained-row ceiling where one applies (snapshots per
	// note and workspace).
	Cap int `json:"cap,omitempty"`
	// InsertOnly marks entities whose deletions do not propagate.
	InsertOnly bool `json:"insert_only,omitempty"`
}

// LockingCapability describes the advisory sync lease.
type LockingCapability struct {
	Supported  bool   `json:"supported"`
	Mode       string `json:"mode"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// Info handles GET /v1/sync/info. Unauthenticated so clients can discover
// capabilities before exchanging tokens.
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	info := ServerInfo{
		APIVersion: "1.0",
		ServerTime: model.Now(),
		Entities: map[string]EntityCapability{
			"workspaces": {Push: true, Pull: true},
			"notes":      {Push: true, Pull: true},
			"folders":    {Push: true, Pull: true},
			"tags":       {Push: true, Pull: true},
			"snapshots":  {Push: true, Pull: true, Cap: model.SnapshotCap},
			"note_tags":  {Push: true, Pull: true, InsertOnly: true},
		},
		Locking: LockingCapability{
			Supported:  true,
			Mode:       "lease",
			TTLSeconds: int(synclock.DefaultTTL.Seconds()),
		},
		ConflictStrategies: []string{
			string(model.KeepBoth), string(model.KeepServer),
			string(model.KeepLocal), string(model.ManualMerge),
		},
		RateLimit:        &s.RateLimitConfig,
		MinClientVersion: "0.1.0",
	}

	writeJSON(w, http.StatusOK, info)
}
