package syncer

import (
	"context"
	"testing"

	"github.com/calepin/calepin/internal/model"
)

func TestSyncNoteScopesCollection(t *testing.T) {
	fs, url := newFakeServer(t)
	d, st := newTestDriver(t, url, Options{})
	if _, err := st.EnsureDefaultWorkspace(); err != nil {
		t.Fatalf("workspace: %v", err)
	}
	seedNote(t, st, "n-1", "target")
	seedNote(t, st, "n-2", "bystander")

	tag := &model.Tag{Name: "urgent"}
	if err := st.SaveTag(tag); err != nil {
		t.Fatalf("save tag: %v", err)
	}
	if err := st.TagNote("n-1", tag.ID); err != nil {
		t.Fatalf("tag note: %v", err)
	}
	if _, err := st.CreateSnapshot("n-1", "before edit"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if _, err := d.SyncNote(context.Background(), "n-1"); err != nil {
		t.Fatalf("sync note: %v", err)
	}

	req := fs.lastRequest(t)
	if len(req.Notes) != 1 || req.Notes[0].ID != "n-1" {
		t.Errorf("pushed notes = %v", req.Notes)
	}
	if len(req.Tags) != 1 || req.Tags[0].ID != tag.ID {
		t.Errorf("pushed tags = %v", req.Tags)
	}
	if len(req.Snapshots) != 1 || req.Snapshots[0].NoteID != "n-1" {
		t.Errorf("pushed snapshots = %v", req.Snapshots)
	}
	if len(req.NoteTags) != 1 || req.NoteTags[0].TagID != tag.ID {
		t.Errorf("pushed links = %v", req.NoteTags)
	}
	// Workspaces are never part of a note-scoped sync.
	if len(req.Workspaces) != 0 {
		t.Errorf("note sync pushed workspaces: %v", req.Workspaces)
	}

	m1, _ := st.Meta(model.EntityNote, "n-1")
	if m1.IsDirty {
		t.Error("target note still dirty")
	}
	m2, _ := st.Meta(model.EntityNote, "n-2")
	if !m2.IsDirty {
		t.Error("bystander note lost its dirty bit")
	}
}

func TestSyncNoteSkipsCleanRow(t *testing.T) {
	fs, url := newFakeServer(t)
	d, st := newTestDriver(t, url, Options{})
	ws, err := st.EnsureDefaultWorkspace()
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	// A note that arrived from the server and was never edited.
	if _, err := st.ApplyNote(&model.Note{
		ID: "n-clean", Title: "clean", WorkspaceID: &ws.ID, ServerVer: 2,
	}, ws.ID, 100); err != nil {
		t.Fatalf("prime note: %v", err)
	}

	if _, err := d.SyncNote(context.Background(), "n-clean"); err != nil {
		t.Fatalf("sync note: %v", err)
	}
	if req := fs.lastRequest(t); len(req.Notes) != 0 {
		t.Errorf("clean note pushed: %v", req.Notes)
	}
}

func TestSyncTagOnlyWhenDirty(t *testing.T) {
	fs, url := newFakeServer(t)
	d, st := newTestDriver(t, url, Options{})
	if _, err := st.EnsureDefaultWorkspace(); err != nil {
		t.Fatalf("workspace: %v", err)
	}
	tag := &model.Tag{Name: "todo"}
	if err := st.SaveTag(tag); err != nil {
		t.Fatalf("save tag: %v", err)
	}

	if _, err := d.SyncTag(context.Background(), tag.ID); err != nil {
		t.Fatalf("sync tag: %v", err)
	}
	if req := fs.lastRequest(t); len(req.Tags) != 1 {
		t.Fatalf("first sync pushed %d tags", len(req.Tags))
	}

	// Cleared by the first run, so the second has nothing to say.
	if _, err := d.SyncTag(context.Background(), tag.ID); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if req := fs.lastRequest(t); len(req.Tags) != 0 {
		t.Errorf("clean tag pushed again: %v", req.Tags)
	}
}

func TestSyncFolderSubtree(t *testing.T) {
	fs, url := newFakeServer(t)
	d, st := newTestDriver(t, url, Options{})
	if _, err := st.EnsureDefaultWorkspace(); err != nil {
		t.Fatalf("workspace: %v", err)
	}

	root := &model.Folder{Name: "projects"}
	if err := st.SaveFolder(root); err != nil {
		t.Fatalf("save folder: %v", err)
	}
	child := &model.Folder{Name: "active", ParentID: &root.ID}
	if err := st.SaveFolder(child); err != nil {
		t.Fatalf("save child: %v", err)
	}
	stray := &model.Folder{Name: "archive"}
	if err := st.SaveFolder(stray); err != nil {
		t.Fatalf("save stray: %v", err)
	}

	inChild := &model.Note{Title: "filed", FolderID: &child.ID}
	if err := st.SaveNote(inChild); err != nil {
		t.Fatalf("save note: %v", err)
	}
	loose := seedNote(t, st, "", "loose")

	tag := &model.Tag{Name: "shared"}
	if err := st.SaveTag(tag); err != nil {
		t.Fatalf("save tag: %v", err)
	}
	if err := st.TagNote(inChild.ID, tag.ID); err != nil {
		t.Fatalf("tag note: %v", err)
	}

	if _, err := d.SyncFolder(context.Background(), root.ID); err != nil {
		t.Fatalf("sync folder: %v", err)
	}

	req := fs.lastRequest(t)
	folders := map[string]bool{}
	for _, f := range req.Folders {
		folders[f.ID] = true
	}
	if !folders[root.ID] || !folders[child.ID] || len(folders) != 2 {
		t.Errorf("pushed folders = %v", folders)
	}
	if len(req.Notes) != 1 || req.Notes[0].ID != inChild.ID {
		t.Errorf("pushed notes = %v", req.Notes)
	}
	if len(req.Tags) != 1 || len(req.NoteTags) != 1 {
		t.Errorf("satellites: %d tags, %d links", len(req.Tags), len(req.NoteTags))
	}

	mStray, _ := st.Meta(model.EntityFolder, stray.ID)
	if !mStray.IsDirty {
		t.Error("stray folder lost its dirty bit")
	}
	mLoose, _ := st.Meta(model.EntityNote, loose.ID)
	if !mLoose.IsDirty {
		t.Error("loose note lost its dirty bit")
	}
}
