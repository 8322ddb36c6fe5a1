package model

import (
	"encoding/json"
	"testing"
)

func TestStrategyDefaultsToKeepBoth(t *testing.T) {
	cases := []struct {
		raw  string
		want ConflictStrategy
	}{
		{`{}`, KeepBoth},
		{`{"conflict_resolution":"keepServer"}`, KeepServer},
		{`{"conflict_resolution":"keepLocal"}`, KeepLocal},
		{`{"conflict_resolution":"manualMerge"}`, ManualMerge},
		{`{"conflict_resolution":"keepBoth"}`, KeepBoth},
		{`{"conflict_resolution":"bogus"}`, KeepBoth},
	}
	for _, c := range cases {
		var req SyncRequest
		if err := json.Unmarshal([]byte(c.raw), &req); err != nil {
			t.Fatalf("unmarshal %s: %v", c.raw, err)
		}
		if got := req.Strategy(); got != c.want {
			t.Errorf("Strategy() for %s = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestConflictingRule(t *testing.T) {
	// Stored version strictly greater than the client's expected version is
	// the only conflicting case.
	if !Conflicting(2, 1) {
		t.Error("server 2 vs client 1 should conflict")
	}
	if Conflicting(1, 1) {
		t.Error("equal versions should not conflict")
	}
	if Conflicting(1, 2) {
		t.Error("client ahead should not conflict")
	}
	if Conflicting(0, 0) {
		t.Error("create case should not conflict")
	}
}

func TestFinalizeTotals(t *testing.T) {
	resp := SyncResponse{
		PushedNotes:   3,
		PushedFolders: 1,
		PulledNotes:   2,
		PulledTags:    4,
	}
	resp.FinalizeTotals()
	if resp.PushedTotal != 4 {
		t.Errorf("PushedTotal = %d, want 4", resp.PushedTotal)
	}
	if resp.PulledTotal != 6 {
		t.Errorf("PulledTotal = %d, want 6", resp.PulledTotal)
	}
	if resp.Status != StatusSuccess {
		t.Errorf("Status = %q, want success", resp.Status)
	}

	resp.Conflicts = append(resp.Conflicts, ConflictInfo{ID: "x", EntityType: EntityNote})
	resp.FinalizeTotals()
	if resp.Status != StatusPartialSuccess {
		t.Errorf("Status with conflicts = %q, want partial_success", resp.Status)
	}
}

func TestRequestEmpty(t *testing.T) {
	var req SyncRequest
	if !req.Empty() {
		t.Error("zero request should be empty")
	}
	req.Notes = []Note{{ID: "a"}}
	if req.Empty() {
		t.Error("request with a note should not be empty")
	}
}

func TestNullableWireFields(t *testing.T) {
	// workspace_id and parent_id distinguish null from set; absent fields
	// stay nil so the server can tell orphan rows from scoped rows.
	var f Folder
	if err := json.Unmarshal([]byte(`{"id":"f1","name":"inbox"}`), &f); err != nil {
		t.Fatal(err)
	}
	if f.WorkspaceID != nil || f.ParentID != nil {
		t.Error("absent workspace_id/parent_id should stay nil")
	}

	ws := "w1"
	f.WorkspaceID = &ws
	out, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	var back Folder
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatal(err)
	}
	if back.WorkspaceID == nil || *back.WorkspaceID != "w1" {
		t.Errorf("workspace_id lost in round trip: %+v", back)
	}
}
