package store

import (
	"testing"

	"github.com/calepin/calepin/internal/model"
)

func TestSaveNoteStampsWorkspaceAndDirty(t *testing.T) {
	s := newTestStore(t)
	ws := mustWorkspace(t, s)

	n := mustSaveNote(t, s, &model.Note{Title: "Groceries", Content: "milk"})
	if n.ID == "" {
		t.Fatal("save did not mint an id")
	}
	if n.WorkspaceID == nil || *n.WorkspaceID != ws.ID {
		t.Errorf("workspace not stamped from current, got %v", n.WorkspaceID)
	}

	m := noteMeta(t, s, n.ID)
	if !m.IsDirty || m.ServerVer != 0 {
		t.Errorf("fresh note meta = dirty %v ver %d, want dirty/0", m.IsDirty, m.ServerVer)
	}

	// Editing keeps sync bookkeeping of the row.
	if _, err := s.conn.Exec(
		`UPDATE notes SET server_ver = 4, is_dirty = 0, last_synced_at = 99 WHERE id = ?`,
		n.ID); err != nil {
		t.Fatalf("prime bookkeeping: %v", err)
	}
	n.Title = "Groceries v2"
	mustSaveNote(t, s, n)

	got, err := s.Note(n.ID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Title != "Groceries v2" {
		t.Errorf("title = %q", got.Title)
	}
	if got.ServerVer != 4 {
		t.Errorf("edit overwrote server_ver: %d", got.ServerVer)
	}
	m = noteMeta(t, s, n.ID)
	if !m.IsDirty {
		t.Error("edit did not mark the note dirty")
	}
	if m.LastSyncedAt != 99 {
		t.Errorf("edit overwrote last_synced_at: %d", m.LastSyncedAt)
	}
}

func TestDeleteNoteTombstonesAndUnlinks(t *testing.T) {
	s := newTestStore(t)
	mustWorkspace(t, s)

	n := mustSaveNote(t, s, &model.Note{Title: "doomed"})
	tag := &model.Tag{Name: "keep"}
	if err := s.SaveTag(tag); err != nil {
		t.Fatalf("save tag: %v", err)
	}
	if err := s.TagNote(n.ID, tag.ID); err != nil {
		t.Fatalf("tag note: %v", err)
	}

	if err := s.DeleteNote(n.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := s.Note(n.ID)
	if !got.IsDeleted || got.DeletedAt == nil {
		t.Error("note not tombstoned")
	}
	m := noteMeta(t, s, n.ID)
	if !m.IsDirty {
		t.Error("tombstone must be dirty so it pushes")
	}

	rels, err := s.RelationsForNote(n.ID)
	if err != nil {
		t.Fatalf("relations: %v", err)
	}
	if len(rels) != 0 {
		t.Errorf("deleting a note should retire its tag links, got %d", len(rels))
	}
}

func TestListNotesScopedAndOrdered(t *testing.T) {
	s := newTestStore(t)
	ws := mustWorkspaceID(t, s)

	other := "ws-other"
	if err := s.SaveWorkspace(&model.Workspace{ID: other, Name: "Other"}); err != nil {
		t.Fatalf("save workspace: %v", err)
	}

	mustSaveNote(t, s, &model.Note{ID: "n-old", Title: "old"})
	mustSaveNote(t, s, &model.Note{ID: "n-pin", Title: "pinned", IsPinned: true})
	mustSaveNote(t, s, &model.Note{ID: "n-foreign", Title: "foreign", WorkspaceID: &other})
	if err := s.DeleteNote("n-old"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	notes, err := s.ListNotes(ws)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("listed %d notes, want 1", len(notes))
	}
	if notes[0].ID != "n-pin" {
		t.Errorf("listed %s", notes[0].ID)
	}
}

func TestTagNoteLifecycle(t *testing.T) {
	s := newTestStore(t)
	ws := mustWorkspaceID(t, s)

	n := mustSaveNote(t, s, &model.Note{Title: "tagged"})
	tag := &model.Tag{Name: "work"}
	if err := s.SaveTag(tag); err != nil {
		t.Fatalf("save tag: %v", err)
	}

	if err := s.TagNote(n.ID, tag.ID); err != nil {
		t.Fatalf("tag: %v", err)
	}
	// Same link twice stays one row.
	if err := s.TagNote(n.ID, tag.ID); err != nil {
		t.Fatalf("re-tag: %v", err)
	}
	rels, err := s.RelationsForWorkspace(ws)
	if err != nil {
		t.Fatalf("relations: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("relation count = %d, want 1", len(rels))
	}

	tags, err := s.TagsForNote(n.ID)
	if err != nil {
		t.Fatalf("tags for note: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "work" {
		t.Errorf("tags for note = %v", tags)
	}

	if err := s.UntagNote(n.ID, tag.ID); err != nil {
		t.Fatalf("untag: %v", err)
	}
	rels, _ = s.RelationsForWorkspace(ws)
	if len(rels) != 0 {
		t.Errorf("untagged link still collected: %v", rels)
	}

	// Tagging again revives the soft-deleted link.
	if err := s.TagNote(n.ID, tag.ID); err != nil {
		t.Fatalf("revive: %v", err)
	}
	rels, _ = s.RelationsForWorkspace(ws)
	if len(rels) != 1 {
		t.Errorf("revived relation count = %d, want 1", len(rels))
	}
}

func TestTagByName(t *testing.T) {
	s := newTestStore(t)
	ws := mustWorkspaceID(t, s)

	tag := &model.Tag{Name: "inbox"}
	if err := s.SaveTag(tag); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.TagByName(ws, "inbox")
	if err != nil {
		t.Fatalf("by name: %v", err)
	}
	if got == nil || got.ID != tag.ID {
		t.Errorf("by name = %v, want %s", got, tag.ID)
	}
	missing, err := s.TagByName(ws, "archive")
	if err != nil {
		t.Fatalf("missing by name: %v", err)
	}
	if missing != nil {
		t.Errorf("missing tag = %v, want nil", missing)
	}
}

func TestSnapshotCreateAndRestore(t *testing.T) {
	s := newTestStore(t)
	mustWorkspace(t, s)

	n := mustSaveNote(t, s, &model.Note{Title: "Draft", Content: "v1"})
	sn, err := s.CreateSnapshot(n.ID, "before rewrite")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if sn.Title != "Draft" || sn.Content != "v1" {
		t.Errorf("snapshot froze %q/%q", sn.Title, sn.Content)
	}

	n.Content = "v2"
	mustSaveNote(t, s, n)

	if err := s.RestoreSnapshot(sn.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, _ := s.Note(n.ID)
	if got.Content != "v1" {
		t.Errorf("restored content = %q, want v1", got.Content)
	}
	m := noteMeta(t, s, n.ID)
	if !m.IsDirty {
		t.Error("restore should dirty the note")
	}

	list, err := s.ListSnapshots(n.ID)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("snapshot count = %d, want 1", len(list))
	}
}

func mustWorkspaceID(t *testing.T, s *Store) string {
	t.Helper()
	return mustWorkspace(t, s).ID
}
