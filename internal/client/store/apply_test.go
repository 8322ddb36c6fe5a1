package store

import (
	"strings"
	"testing"

	"github.com/calepin/calepin/internal/model"
)

func pulledNote(id, title string, ver int64, ws string) *model.Note {
	n := &model.Note{
		ID:        id,
		Title:     title,
		Content:   "server content",
		CreatedAt: 100,
		UpdatedAt: 200,
		ServerVer: ver,
	}
	if ws != "" {
		n.WorkspaceID = &ws
	}
	return n
}

func TestApplyNoteVersionGate(t *testing.T) {
	s := newTestStore(t)
	ws := mustWorkspaceID(t, s)

	applied, err := s.ApplyNote(pulledNote("n-1", "first", 2, ws), ws, 1000)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !applied {
		t.Fatal("fresh row not applied")
	}
	m := noteMeta(t, s, "n-1")
	if m.IsDirty || m.ServerVer != 2 || m.LastSyncedAt != 1000 {
		t.Errorf("meta after apply = %+v", m)
	}

	// Same version again: the gate skips.
	applied, err = s.ApplyNote(pulledNote("n-1", "echo", 2, ws), ws, 2000)
	if err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	if applied {
		t.Error("equal version must be skipped")
	}

	// Older version: skipped too.
	applied, _ = s.ApplyNote(pulledNote("n-1", "stale", 1, ws), ws, 2000)
	if applied {
		t.Error("older version must be skipped")
	}
	got, _ := s.Note("n-1")
	if got.Title != "first" {
		t.Errorf("stale apply changed the row to %q", got.Title)
	}

	// Newer version lands and clears a local dirty edit.
	got.Title = "local edit"
	mustSaveNote(t, s, got)
	applied, err = s.ApplyNote(pulledNote("n-1", "newer", 3, ws), ws, 3000)
	if err != nil {
		t.Fatalf("newer apply: %v", err)
	}
	if !applied {
		t.Error("newer version must apply")
	}
	got, _ = s.Note("n-1")
	m = noteMeta(t, s, "n-1")
	if got.Title != "newer" || m.IsDirty || m.ServerVer != 3 {
		t.Errorf("after newer apply: title %q meta %+v", got.Title, m)
	}
}

func TestApplyWorkspacePreservesCurrent(t *testing.T) {
	s := newTestStore(t)
	def := mustWorkspace(t, s)

	incoming := &model.Workspace{
		ID:        def.ID,
		Name:      "Renamed Upstream",
		IsDefault: true,
		CreatedAt: def.CreatedAt,
		UpdatedAt: model.Now(),
		ServerVer: 1,
	}
	applied, err := s.ApplyWorkspace(incoming, 500)
	if err != nil {
		t.Fatalf("apply workspace: %v", err)
	}
	if !applied {
		t.Fatal("workspace not applied")
	}

	cur, err := s.CurrentWorkspace()
	if err != nil {
		t.Fatalf("current after apply: %v", err)
	}
	if cur.ID != def.ID {
		t.Error("apply clobbered is_current")
	}
	if cur.Name != "Renamed Upstream" {
		t.Errorf("name = %q", cur.Name)
	}
	m, _ := s.Meta(model.EntityWorkspace, def.ID)
	if m.IsDirty {
		t.Error("pulled workspace should not stay dirty")
	}
}

func TestApplyTombstoneSkipsDefaultWorkspace(t *testing.T) {
	s := newTestStore(t)
	def := mustWorkspace(t, s)

	applied, err := s.ApplyTombstone(model.EntityWorkspace, def.ID)
	if err != nil {
		t.Fatalf("tombstone: %v", err)
	}
	if applied {
		t.Error("default workspace tombstone must be skipped")
	}
	got, _ := s.Workspace(def.ID)
	if got.IsDeleted {
		t.Error("default workspace was deleted")
	}

	n := mustSaveNote(t, s, &model.Note{ID: "n-gone", Title: "bye"})
	applied, err = s.ApplyTombstone(model.EntityNote, n.ID)
	if err != nil {
		t.Fatalf("note tombstone: %v", err)
	}
	if !applied {
		t.Error("note tombstone not applied")
	}
	got2, _ := s.Note(n.ID)
	if !got2.IsDeleted || got2.DeletedAt == nil {
		t.Error("note not tombstoned")
	}
	m := noteMeta(t, s, n.ID)
	if m.IsDirty {
		t.Error("pulled tombstone must not be dirty")
	}
}

func TestApplyTombstoneUnknownIDIsNoop(t *testing.T) {
	s := newTestStore(t)
	applied, err := s.ApplyTombstone(model.EntityNote, "never-seen")
	if err != nil {
		t.Fatalf("tombstone: %v", err)
	}
	if applied {
		t.Error("tombstone for unknown id reported as applied")
	}
}

func TestConflictCopyNote(t *testing.T) {
	s := newTestStore(t)
	ws := mustWorkspaceID(t, s)

	n := mustSaveNote(t, s, &model.Note{ID: "n-c", Title: "Plan", Content: "local edit"})

	copyID, err := s.ConflictCopyNote(n.ID)
	if err != nil {
		t.Fatalf("conflict copy: %v", err)
	}
	if copyID == "" || copyID == n.ID {
		t.Fatalf("copy id = %q", copyID)
	}

	cp, err := s.Note(copyID)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if !strings.HasSuffix(cp.Title, model.LocalConflictSuffix) {
		t.Errorf("copy title = %q, want the local-conflict suffix", cp.Title)
	}
	if cp.Content != "local edit" {
		t.Errorf("copy content = %q", cp.Content)
	}
	if cp.WorkspaceID == nil || *cp.WorkspaceID != ws {
		t.Errorf("copy workspace = %v", cp.WorkspaceID)
	}
	m := noteMeta(t, s, copyID)
	if !m.IsDirty || m.ServerVer != 0 {
		t.Errorf("copy meta = %+v, want dirty ver 0", m)
	}

	// No local row, nothing to preserve.
	copyID, err = s.ConflictCopyNote("missing")
	if err != nil || copyID != "" {
		t.Errorf("copy of missing note = %q, %v", copyID, err)
	}
}

func TestClearDirtyScopedToIDs(t *testing.T) {
	s := newTestStore(t)
	mustWorkspace(t, s)

	a := mustSaveNote(t, s, &model.Note{ID: "n-a", Title: "a"})
	b := mustSaveNote(t, s, &model.Note{ID: "n-b", Title: "b"})

	if err := s.ClearDirty(model.EntityNote, []string{a.ID}, 777); err != nil {
		t.Fatalf("clear: %v", err)
	}
	ma := noteMeta(t, s, a.ID)
	mb := noteMeta(t, s, b.ID)
	if ma.IsDirty || ma.LastSyncedAt != 777 {
		t.Errorf("cleared row meta = %+v", ma)
	}
	if !mb.IsDirty {
		t.Error("row outside the id set lost its dirty bit")
	}

	if err := s.ClearDirty(model.EntityNote, nil, 888); err != nil {
		t.Fatalf("empty clear: %v", err)
	}
	if err := s.ClearDirty("bogus", []string{"x"}, 1); err == nil {
		t.Error("unknown entity must error")
	}
}

func TestApplyNoteTagInsertOnly(t *testing.T) {
	s := newTestStore(t)
	ws := mustWorkspaceID(t, s)

	n := mustSaveNote(t, s, &model.Note{ID: "n-1", Title: "n"})
	tag := &model.Tag{ID: "t-1", Name: "x"}
	if err := s.SaveTag(tag); err != nil {
		t.Fatalf("save tag: %v", err)
	}

	rel := &model.NoteTagRelation{NoteID: n.ID, TagID: tag.ID, CreatedAt: 42}
	applied, err := s.ApplyNoteTag(rel, ws)
	if err != nil {
		t.Fatalf("apply relation: %v", err)
	}
	if !applied {
		t.Error("fresh relation not applied")
	}
	applied, _ = s.ApplyNoteTag(rel, ws)
	if applied {
		t.Error("duplicate relation counted as applied")
	}

	// A locally removed link must stay removed when the server re-sends it.
	if err := s.UntagNote(n.ID, tag.ID); err != nil {
		t.Fatalf("untag: %v", err)
	}
	applied, err = s.ApplyNoteTag(rel, ws)
	if err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	if applied {
		t.Error("pull revived a locally removed link")
	}
	rels, _ := s.RelationsForWorkspace(ws)
	if len(rels) != 0 {
		t.Errorf("relations = %v, want none", rels)
	}
}

func TestAdoptCurrentWorkspace(t *testing.T) {
	s := newTestStore(t)

	// Fresh device: pull brings the user's default workspace in.
	incoming := &model.Workspace{
		ID: "ws-remote", Name: "Main", IsDefault: true,
		CreatedAt: 1, UpdatedAt: 2, ServerVer: 3,
	}
	if _, err := s.ApplyWorkspace(incoming, 100); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := s.CurrentWorkspace(); err != ErrNoWorkspace {
		t.Fatalf("pulled workspace should not be current yet, err = %v", err)
	}

	if err := s.AdoptCurrentWorkspace(); err != nil {
		t.Fatalf("adopt: %v", err)
	}
	cur, err := s.CurrentWorkspace()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cur.ID != "ws-remote" {
		t.Errorf("current = %s, want ws-remote", cur.ID)
	}

	// Idempotent when a current workspace exists.
	if err := s.AdoptCurrentWorkspace(); err != nil {
		t.Fatalf("second adopt: %v", err)
	}
}
