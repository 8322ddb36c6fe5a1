package store

import (
	"errors"
	"testing"

	"github.com/calepin/calepin/internal/model"
)

func TestEnsureDefaultWorkspace(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CurrentWorkspace(); !errors.Is(err, ErrNoWorkspace) {
		t.Fatalf("fresh store CurrentWorkspace err = %v, want ErrNoWorkspace", err)
	}

	w := mustWorkspace(t, s)
	if !w.IsDefault {
		t.Error("created workspace is not default")
	}
	cur, err := s.CurrentWorkspace()
	if err != nil {
		t.Fatalf("current workspace: %v", err)
	}
	if cur.ID != w.ID {
		t.Errorf("current = %s, want the new default %s", cur.ID, w.ID)
	}

	again := mustWorkspace(t, s)
	if again.ID != w.ID {
		t.Errorf("second ensure created a new workspace %s", again.ID)
	}
	all, err := s.ListWorkspaces()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("workspace count = %d, want 1", len(all))
	}

	m, err := s.Meta(model.EntityWorkspace, w.ID)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if !m.IsDirty {
		t.Error("new default workspace should be dirty so it pushes")
	}
}

func TestUseWorkspace(t *testing.T) {
	s := newTestStore(t)
	def := mustWorkspace(t, s)

	side := &model.Workspace{Name: "Side Projects"}
	side.ID = "ws-side"
	if err := s.SaveWorkspace(side); err != nil {
		t.Fatalf("save workspace: %v", err)
	}

	if err := s.UseWorkspace("ws-side"); err != nil {
		t.Fatalf("use workspace: %v", err)
	}
	cur, err := s.CurrentWorkspace()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cur.ID != "ws-side" {
		t.Errorf("current = %s, want ws-side", cur.ID)
	}

	if err := s.UseWorkspace("nope"); !errors.Is(err, ErrNoWorkspace) {
		t.Errorf("switch to missing workspace err = %v, want ErrNoWorkspace", err)
	}
	cur, _ = s.CurrentWorkspace()
	if cur.ID != "ws-side" {
		t.Errorf("failed switch moved the marker to %s", cur.ID)
	}

	if err := s.UseWorkspace(def.ID); err != nil {
		t.Fatalf("switch back: %v", err)
	}
	cur, _ = s.CurrentWorkspace()
	if cur.ID != def.ID {
		t.Errorf("current = %s, want default %s", cur.ID, def.ID)
	}
}

func TestDeleteWorkspaceGuards(t *testing.T) {
	s := newTestStore(t)
	def := mustWorkspace(t, s)

	if err := s.DeleteWorkspace(def.ID); !errors.Is(err, ErrDefaultWorkspace) {
		t.Fatalf("deleting default err = %v, want ErrDefaultWorkspace", err)
	}

	side := &model.Workspace{ID: "ws-side", Name: "Side"}
	if err := s.SaveWorkspace(side); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.UseWorkspace("ws-side"); err != nil {
		t.Fatalf("use: %v", err)
	}

	if err := s.DeleteWorkspace("ws-side"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := s.Workspace("ws-side")
	if err != nil {
		t.Fatalf("read deleted: %v", err)
	}
	if !got.IsDeleted || got.DeletedAt == nil {
		t.Error("workspace not tombstoned")
	}

	// The marker falls back to the default workspace.
	cur, err := s.CurrentWorkspace()
	if err != nil {
		t.Fatalf("current after delete: %v", err)
	}
	if cur.ID != def.ID {
		t.Errorf("current = %s, want default %s", cur.ID, def.ID)
	}

	m, _ := s.Meta(model.EntityWorkspace, "ws-side")
	if !m.IsDirty {
		t.Error("tombstone must be dirty so it pushes")
	}
}
