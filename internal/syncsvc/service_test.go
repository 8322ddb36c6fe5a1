package syncsvc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/calepin/calepin/internal/db"
	"github.com/calepin/calepin/internal/model"
	"github.com/calepin/calepin/internal/synclock"
	"github.com/jackc/pgx/v5/pgxpool"
)

const testAgent = "calepin-test/1.0 (linux)"

func getTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration tests")
	}

	pool, err := db.Open(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.Migrate(context.Background(), pool); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	for _, table := range []string{
		"note_tag_relations", "note_snapshots", "notes", "folders", "tags",
		"workspaces", "sync_locks", "sync_history", "account_state",
	} {
		if _, err := pool.Exec(context.Background(), "DELETE FROM "+table); err != nil {
			t.Fatalf("Failed to clean %s: %v", table, err)
		}
	}
	return pool
}

func seedWorkspace(t *testing.T, svc *Service, userID, wsID string) {
	t.Helper()
	req := &model.SyncRequest{
		Workspaces: []model.Workspace{{ID: wsID, Name: "Main", IsDefault: true}},
	}
	resp, err := svc.Sync(context.Background(), userID, testAgent, req)
	if err != nil {
		t.Fatalf("seed workspace: %v", err)
	}
	if resp.PushedWorkspaces != 1 {
		t.Fatalf("seed workspace: pushed = %d, want 1", resp.PushedWorkspaces)
	}
}

func findNote(notes []model.Note, id string) *model.Note {
	for i := range notes {
		if notes[i].ID == id {
			return &notes[i]
		}
	}
	return nil
}

func TestSyncCreateAndFirstPush_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pool := getTestDB(t)
	defer pool.Close()
	svc := NewService(pool)
	ctx := context.Background()

	seedWorkspace(t, svc, "u-create", "ws-create")

	note := model.Note{ID: "note-a", Title: "Hi", Content: "hello"}
	resp, err := svc.Sync(ctx, "u-create", testAgent, &model.SyncRequest{
		Notes: []model.Note{note},
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if resp.Status != model.StatusSuccess {
		t.Errorf("status = %q, want success", resp.Status)
	}
	if resp.PushedNotes != 1 {
		t.Errorf("pushed_notes = %d, want 1", resp.PushedNotes)
	}
	if resp.PulledNotes != 0 {
		t.Errorf("pulled_notes = %d, want 0 (own push is not a pull)", resp.PulledNotes)
	}
	got := findNote(resp.UpsertedNotes, "note-a")
	if got == nil {
		t.Fatal("pushed note missing from upserted_notes")
	}
	if got.ServerVer != 1 {
		t.Errorf("server_ver = %d, want 1", got.ServerVer)
	}
	if got.WorkspaceID == nil || *got.WorkspaceID != "ws-create" {
		t.Errorf("workspace_id = %v, want stamped ws-create", got.WorkspaceID)
	}

	var ver int64
	if err := pool.QueryRow(ctx,
		`SELECT server_ver FROM notes WHERE id = 'note-a'`).Scan(&ver); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if ver != 1 {
		t.Errorf("stored server_ver = %d, want 1", ver)
	}
}

func TestSyncPullOnly_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pool := getTestDB(t)
	defer pool.Close()
	svc := NewService(pool)
	ctx := context.Background()

	seedWorkspace(t, svc, "u-pull", "ws-pull")
	if _, err := svc.Sync(ctx, "u-pull", testAgent, &model.SyncRequest{
		DeviceID: "dev-a",
		Notes:    []model.Note{{ID: "note-p", Title: "from A"}},
	}); err != nil {
		t.Fatalf("device A push: %v", err)
	}

	// Device B has never synced; everything is new to it.
	resp, err := svc.Sync(ctx, "u-pull", testAgent, &model.SyncRequest{DeviceID: "dev-b"})
	if err != nil {
		t.Fatalf("device B pull: %v", err)
	}
	if resp.PushedNotes != 0 {
		t.Errorf("pushed_notes = %d, want 0", resp.PushedNotes)
	}
	if resp.PulledNotes != 1 {
		t.Errorf("pulled_notes = %d, want 1", resp.PulledNotes)
	}
	got := findNote(resp.UpsertedNotes, "note-p")
	if got == nil || got.ServerVer != 1 {
		t.Fatalf("note-p = %+v, want server_ver 1", got)
	}
}

func TestSyncConflictKeepBoth_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pool := getTestDB(t)
	defer pool.Close()
	svc := NewService(pool)
	ctx := context.Background()

	seedWorkspace(t, svc, "u-kb", "ws-kb")
	if _, err := svc.Sync(ctx, "u-kb", testAgent, &model.SyncRequest{
		DeviceID: "dev-a",
		Notes:    []model.Note{{ID: "note-c", Title: "orig"}},
	}); err != nil {
		t.Fatalf("initial push: %v", err)
	}

	// Device A advances the note to v2.
	if _, err := svc.Sync(ctx, "u-kb", testAgent, &model.SyncRequest{
		DeviceID: "dev-a",
		Notes:    []model.Note{{ID: "note-c", Title: "A", ServerVer: 1}},
	}); err != nil {
		t.Fatalf("device A edit: %v", err)
	}

	// Device B pushes a stale edit with keepBoth.
	resp, err := svc.Sync(ctx, "u-kb", testAgent, &model.SyncRequest{
		DeviceID:           "dev-b",
		ConflictResolution: model.KeepBoth,
		Notes:              []model.Note{{ID: "note-c", Title: "B", ServerVer: 1}},
	})
	if err != nil {
		t.Fatalf("device B conflict push: %v", err)
	}

	if resp.Status != model.StatusPartialSuccess {
		t.Errorf("status = %q, want partial_success", resp.Status)
	}
	if len(resp.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(resp.Conflicts))
	}
	c := resp.Conflicts[0]
	if c.ID != "note-c" || c.LocalVersion != 1 || c.ServerVersion != 2 {
		t.Errorf("conflict = %+v, want id=note-c local=1 server=2", c)
	}
	if resp.PushedNotes != 0 {
		t.Errorf("pushed_notes = %d, want 0 (stale write rejected)", resp.PushedNotes)
	}

	orig := findNote(resp.UpsertedNotes, "note-c")
	if orig == nil || orig.Title != "A" || orig.ServerVer != 2 {
		t.Fatalf("original = %+v, want title A at v2 untouched", orig)
	}

	var copyNote *model.Note
	for i := range resp.UpsertedNotes {
		n := &resp.UpsertedNotes[i]
		if n.ID != "note-c" && strings.HasSuffix(n.Title, model.ServerConflictSuffix) {
			copyNote = n
		}
	}
	if copyNote == nil {
		t.Fatal("conflict copy missing from upserted_notes")
	}
	if copyNote.Title != "B"+model.ServerConflictSuffix {
		t.Errorf("copy title = %q, want local payload plus suffix", copyNote.Title)
	}
	if copyNote.ServerVer != 2 {
		t.Errorf("copy server_ver = %d, want the server version so peers pull it", copyNote.ServerVer)
	}
}

func TestSyncConflictKeepServerAndKeepLocal_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pool := getTestDB(t)
	defer pool.Close()
	svc := NewService(pool)
	ctx := context.Background()

	seedWorkspace(t, svc, "u-ks", "ws-ks")
	for _, req := range []*model.SyncRequest{
		{Notes: []model.Note{{ID: "note-s", Title: "orig"}}},
		{Notes: []model.Note{{ID: "note-s", Title: "server", ServerVer: 1}}},
	} {
		if _, err := svc.Sync(ctx, "u-ks", testAgent, req); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	// keepServer never overwrites the newer stored row.
	resp, err := svc.Sync(ctx, "u-ks", testAgent, &model.SyncRequest{
		ConflictResolution: model.KeepServer,
		Notes:              []model.Note{{ID: "note-s", Title: "stale", ServerVer: 1}},
	})
	if err != nil {
		t.Fatalf("keepServer push: %v", err)
	}
	if len(resp.Conflicts) != 1 || resp.PushedNotes != 0 {
		t.Errorf("keepServer: conflicts=%d pushed=%d, want 1/0", len(resp.Conflicts), resp.PushedNotes)
	}
	var title string
	var ver int64
	if err := pool.QueryRow(ctx,
		`SELECT title, server_ver FROM notes WHERE id = 'note-s'`).Scan(&title, &ver); err != nil {
		t.Fatal(err)
	}
	if title != "server" || ver != 2 {
		t.Errorf("stored = %q v%d, want server v2 untouched", title, ver)
	}

	// keepLocal overwrites but must land above the stored version.
	resp, err = svc.Sync(ctx, "u-ks", testAgent, &model.SyncRequest{
		ConflictResolution: model.KeepLocal,
		Notes:              []model.Note{{ID: "note-s", Title: "mine", ServerVer: 1}},
	})
	if err != nil {
		t.Fatalf("keepLocal push: %v", err)
	}
	if len(resp.Conflicts) != 0 || resp.PushedNotes != 1 {
		t.Errorf("keepLocal: conflicts=%d pushed=%d, want 0/1", len(resp.Conflicts), resp.PushedNotes)
	}
	if err := pool.QueryRow(ctx,
		`SELECT title, server_ver FROM notes WHERE id = 'note-s'`).Scan(&title, &ver); err != nil {
		t.Fatal(err)
	}
	if title != "mine" || ver != 3 {
		t.Errorf("stored = %q v%d, want mine v3 (above both sides)", title, ver)
	}
}

func TestSnapshotCapEviction_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pool := getTestDB(t)
	defer pool.Close()
	svc := NewService(pool)
	ctx := context.Background()

	seedWorkspace(t, svc, "u-cap", "ws-cap")
	if _, err := svc.Sync(ctx, "u-cap", testAgent, &model.SyncRequest{
		Notes: []model.Note{{ID: "note-cap", Title: "capped"}},
	}); err != nil {
		t.Fatal(err)
	}

	old := make([]model.NoteSnapshot, 18)
	for i := range old {
		old[i] = model.NoteSnapshot{
			ID:      fmt.Sprintf("snap-%02d", i+1),
			NoteID:  "note-cap",
			Title:   "capped",
			Content: "v",
		}
	}
	if _, err := svc.Sync(ctx, "u-cap", testAgent, &model.SyncRequest{Snapshots: old}); err != nil {
		t.Fatalf("push 18 snapshots: %v", err)
	}

	// Spread creation times so oldest-first eviction is deterministic.
	for i := range old {
		if _, err := pool.Exec(ctx,
			`UPDATE note_snapshots SET created_at = $1 WHERE id = $2`,
			1000+i, old[i].ID); err != nil {
			t.Fatal(err)
		}
	}

	fresh := make([]model.NoteSnapshot, 5)
	for i := range fresh {
		fresh[i] = model.NoteSnapshot{
			ID:      fmt.Sprintf("snap-new-%d", i+1),
			NoteID:  "note-cap",
			Title:   "capped",
			Content: "v2",
		}
	}
	resp, err := svc.Sync(ctx, "u-cap", testAgent, &model.SyncRequest{Snapshots: fresh})
	if err != nil {
		t.Fatalf("push 5 snapshots: %v", err)
	}
	if resp.PushedSnapshots != 5 {
		t.Errorf("pushed_snapshots = %d, want 5", resp.PushedSnapshots)
	}

	var count int
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM note_snapshots WHERE note_id = 'note-cap'`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != model.SnapshotCap {
		t.Errorf("snapshot count = %d, want %d", count, model.SnapshotCap)
	}

	for _, id := range []string{"snap-01", "snap-02", "snap-03"} {
		var exists bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM note_snapshots WHERE id = $1)`, id).Scan(&exists); err != nil {
			t.Fatal(err)
		}
		if exists {
			t.Errorf("%s should have been evicted oldest-first", id)
		}
	}
	for _, sn := range fresh {
		var exists bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM note_snapshots WHERE id = $1)`, sn.ID).Scan(&exists); err != nil {
			t.Fatal(err)
		}
		if !exists {
			t.Errorf("incoming %s missing after cap enforcement", sn.ID)
		}
	}
}

func TestSnapshotOversizedBucket_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pool := getTestDB(t)
	defer pool.Close()
	svc := NewService(pool)
	ctx := context.Background()

	seedWorkspace(t, svc, "u-big", "ws-big")
	if _, err := svc.Sync(ctx, "u-big", testAgent, &model.SyncRequest{
		Notes: []model.Note{{ID: "note-big", Title: "n"}},
	}); err != nil {
		t.Fatal(err)
	}

	batch := make([]model.NoteSnapshot, 25)
	for i := range batch {
		batch[i] = model.NoteSnapshot{
			ID:     fmt.Sprintf("big-%02d", i+1),
			NoteID: "note-big",
			Title:  "n",
		}
	}
	if _, err := svc.Sync(ctx, "u-big", testAgent, &model.SyncRequest{Snapshots: batch}); err != nil {
		t.Fatalf("push 25 snapshots: %v", err)
	}

	// The cap must hold even when one push exceeds it outright.
	var count int
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM note_snapshots WHERE note_id = 'note-big'`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != model.SnapshotCap {
		t.Errorf("snapshot count = %d, want %d", count, model.SnapshotCap)
	}
}

func TestSnapshotRepushIdempotent_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pool := getTestDB(t)
	defer pool.Close()
	svc := NewService(pool)
	ctx := context.Background()

	seedWorkspace(t, svc, "u-re", "ws-re")
	snap := model.NoteSnapshot{ID: "snap-re", NoteID: "note-re", Title: "t"}
	for i := 0; i < 2; i++ {
		if _, err := svc.Sync(ctx, "u-re", testAgent, &model.SyncRequest{
			Snapshots: []model.NoteSnapshot{snap},
		}); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	var count int
	var ver int64
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*), MAX(server_ver) FROM note_snapshots WHERE id = 'snap-re'`).Scan(&count, &ver); err != nil {
		t.Fatal(err)
	}
	if count != 1 || ver != 1 {
		t.Errorf("re-push: count=%d ver=%d, want 1/1", count, ver)
	}
}

func TestFolderTopologicalPush_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pool := getTestDB(t)
	defer pool.Close()
	svc := NewService(pool)
	ctx := context.Background()

	seedWorkspace(t, svc, "u-topo", "ws-topo")

	a, b := "fold-a", "fold-b"
	resp, err := svc.Sync(ctx, "u-topo", testAgent, &model.SyncRequest{
		Folders: []model.Folder{
			{ID: "fold-c", Name: "C", ParentID: &b},
			{ID: "fold-b", Name: "B", ParentID: &a},
			{ID: "fold-a", Name: "A"},
		},
	})
	if err != nil {
		t.Fatalf("reversed push: %v", err)
	}
	if resp.PushedFolders != 3 {
		t.Errorf("pushed_folders = %d, want 3 despite reversed input", resp.PushedFolders)
	}

	var parent *string
	if err := pool.QueryRow(ctx,
		`SELECT parent_id FROM folders WHERE id = 'fold-c'`).Scan(&parent); err != nil {
		t.Fatal(err)
	}
	if parent == nil || *parent != "fold-b" {
		t.Errorf("fold-c parent = %v, want fold-b", parent)
	}
}

func TestFolderCycleLeftUnapplied_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pool := getTestDB(t)
	defer pool.Close()
	svc := NewService(pool)
	ctx := context.Background()

	seedWorkspace(t, svc, "u-cycle", "ws-cycle")

	x, y := "fold-x", "fold-y"
	resp, err := svc.Sync(ctx, "u-cycle", testAgent, &model.SyncRequest{
		Folders: []model.Folder{
			{ID: "fold-x", Name: "X", ParentID: &y},
			{ID: "fold-y", Name: "Y", ParentID: &x},
		},
	})
	if err != nil {
		t.Fatalf("cycle push should not fail the sync: %v", err)
	}
	if resp.PushedFolders != 0 {
		t.Errorf("pushed_folders = %d, want 0 (cycle left unapplied)", resp.PushedFolders)
	}

	var count int
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM folders WHERE id IN ('fold-x', 'fold-y')`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("cycle folders stored = %d, want 0", count)
	}
}

func TestWorkspaceNotOwned_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pool := getTestDB(t)
	defer pool.Close()
	svc := NewService(pool)
	ctx := context.Background()

	seedWorkspace(t, svc, "u-owner", "ws-owner")

	_, err := svc.Sync(ctx, "u-intruder", testAgent, &model.SyncRequest{
		WorkspaceID: "ws-owner",
	})
	if !errors.Is(err, ErrWorkspaceNotOwned) {
		t.Fatalf("err = %v, want ErrWorkspaceNotOwned", err)
	}

	_, err = svc.Sync(ctx, "u-owner", testAgent, &model.SyncRequest{
		WorkspaceID: "ws-missing",
	})
	if !errors.Is(err, ErrWorkspaceNotOwned) {
		t.Fatalf("err for unknown workspace = %v, want ErrWorkspaceNotOwned", err)
	}
}

func TestDefaultWorkspaceGuards_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pool := getTestDB(t)
	defer pool.Close()
	svc := NewService(pool)
	ctx := context.Background()

	seedWorkspace(t, svc, "u-def", "ws-def")

	// Tombstoning the default workspace is silently refused.
	del := model.Now()
	if _, err := svc.Sync(ctx, "u-def", testAgent, &model.SyncRequest{
		Workspaces: []model.Workspace{{
			ID: "ws-def", Name: "Main", IsDefault: true,
			IsDeleted: true, DeletedAt: &del, ServerVer: 1,
		}},
	}); err != nil {
		t.Fatalf("tombstone push: %v", err)
	}

	var isDefault, isDeleted bool
	var ver int64
	if err := pool.QueryRow(ctx,
		`SELECT is_default, is_deleted, server_ver FROM workspaces WHERE id = 'ws-def'`).
		Scan(&isDefault, &isDeleted, &ver); err != nil {
		t.Fatal(err)
	}
	if !isDefault || isDeleted {
		t.Errorf("default workspace: is_default=%v is_deleted=%v, want true/false", isDefault, isDeleted)
	}
	if ver != 2 {
		t.Errorf("server_ver = %d, want 2 (write landed, tombstone stripped)", ver)
	}

	// A second workspace claiming the default slot is demoted.
	if _, err := svc.Sync(ctx, "u-def", testAgent, &model.SyncRequest{
		Workspaces: []model.Workspace{{ID: "ws-def-2", Name: "Pretender", IsDefault: true}},
	}); err != nil {
		t.Fatal(err)
	}
	var pretender bool
	if err := pool.QueryRow(ctx,
		`SELECT is_default FROM workspaces WHERE id = 'ws-def-2'`).Scan(&pretender); err != nil {
		t.Fatal(err)
	}
	if pretender {
		t.Error("second default claim should be demoted to false")
	}
}

func TestSyncLockHeld_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pool := getTestDB(t)
	defer pool.Close()
	svc := NewService(pool)
	ctx := context.Background()

	seedWorkspace(t, svc, "u-lock", "ws-lock")

	ws := "ws-lock"
	lease, err := svc.Locks.Acquire(ctx, "u-lock", "dev-a", &ws, synclock.DefaultTTL)
	if err != nil {
		t.Fatalf("pre-acquire: %v", err)
	}

	_, err = svc.Sync(ctx, "u-lock", testAgent, &model.SyncRequest{DeviceID: "dev-b"})
	var lh *synclock.LockHeldError
	if !errors.As(err, &lh) {
		t.Fatalf("err = %v, want LockHeldError while dev-a holds the lease", err)
	}

	lease.Release(ctx)
	if _, err := svc.Sync(ctx, "u-lock", testAgent, &model.SyncRequest{DeviceID: "dev-b"}); err != nil {
		t.Fatalf("sync after release: %v", err)
	}
}

func TestNoteTagPushAndPull_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pool := getTestDB(t)
	defer pool.Close()
	svc := NewService(pool)
	ctx := context.Background()

	seedWorkspace(t, svc, "u-rel", "ws-rel")
	if _, err := svc.Sync(ctx, "u-rel", testAgent, &model.SyncRequest{
		Notes: []model.Note{{ID: "note-r", Title: "r"}},
		Tags:  []model.Tag{{ID: "tag-r", Name: "work"}},
	}); err != nil {
		t.Fatal(err)
	}

	rel := model.NoteTagRelation{NoteID: "note-r", TagID: "tag-r"}
	resp, err := svc.Sync(ctx, "u-rel", testAgent, &model.SyncRequest{
		NoteTags: []model.NoteTagRelation{rel},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.PushedNoteTags != 1 {
		t.Errorf("pushed_note_tags = %d, want 1", resp.PushedNoteTags)
	}

	// Re-offering the same relation counts zero: only real inserts count.
	resp, err = svc.Sync(ctx, "u-rel", testAgent, &model.SyncRequest{
		NoteTags: []model.NoteTagRelation{rel},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.PushedNoteTags != 0 {
		t.Errorf("duplicate pushed_note_tags = %d, want 0", resp.PushedNoteTags)
	}

	// A device that never synced pulls the relation through its tag.
	resp, err = svc.Sync(ctx, "u-rel", testAgent, &model.SyncRequest{DeviceID: "dev-b"})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range resp.UpsertedNoteTags {
		if r.NoteID == "note-r" && r.TagID == "tag-r" {
			found = true
		}
	}
	if !found {
		t.Error("relation missing from pull window")
	}
}

func TestTagNameClash_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pool := getTestDB(t)
	defer pool.Close()
	svc := NewService(pool)
	ctx := context.Background()

	seedWorkspace(t, svc, "u-tag", "ws-tag")
	if _, err := svc.Sync(ctx, "u-tag", testAgent, &model.SyncRequest{
		Tags: []model.Tag{{ID: "tag-1", Name: "work"}},
	}); err != nil {
		t.Fatal(err)
	}

	// A different id with the same live name is reported, not written.
	resp, err := svc.Sync(ctx, "u-tag", testAgent, &model.SyncRequest{
		Tags: []model.Tag{{ID: "tag-2", Name: "work"}},
	})
	if err != nil {
		t.Fatalf("name clash must not fail the sync: %v", err)
	}
	if resp.PushedTags != 0 || len(resp.Conflicts) != 1 {
		t.Errorf("clash: pushed=%d conflicts=%d, want 0/1", resp.PushedTags, len(resp.Conflicts))
	}
	if resp.Conflicts[0].EntityType != model.EntityTag {
		t.Errorf("conflict entity = %q, want tag", resp.Conflicts[0].EntityType)
	}
}

func TestSyncHistoryRecorded_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pool := getTestDB(t)
	defer pool.Close()
	svc := NewService(pool)
	ctx := context.Background()

	seedWorkspace(t, svc, "u-hist", "ws-hist")
	if _, err := svc.Sync(ctx, "u-hist", testAgent, &model.SyncRequest{
		Notes: []model.Note{{ID: "note-h", Title: "h"}},
	}); err != nil {
		t.Fatal(err)
	}

	var rows, pushed int
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(MAX(pushed_count), 0) FROM sync_history WHERE user_id = 'u-hist'`).
		Scan(&rows, &pushed); err != nil {
		t.Fatal(err)
	}
	if rows != 2 {
		t.Errorf("history rows = %d, want 2 (seed + push)", rows)
	}
	if pushed != 1 {
		t.Errorf("max pushed_count = %d, want 1", pushed)
	}
}

func TestSyncHistoryPaging_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	pool := getTestDB(t)
	defer pool.Close()
	svc := NewService(pool)
	ctx := context.Background()

	// seedWorkspace syncs once; three pushes make four history rows.
	seedWorkspace(t, svc, "u-page", "ws-page")
	for i := 0; i < 3; i++ {
		if _, err := svc.Sync(ctx, "u-page", testAgent, &model.SyncRequest{
			Notes: []model.Note{{ID: fmt.Sprintf("note-p%d", i), Title: "p"}},
		}); err != nil {
			t.Fatal(err)
		}
	}

	first, next, err := svc.History(ctx, "u-page", 3, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 3 || next == "" {
		t.Fatalf("first page: %d entries, cursor %q, want 3 entries and a cursor", len(first), next)
	}
	for i := 1; i < len(first); i++ {
		if first[i].ID >= first[i-1].ID {
			t.Errorf("page not newest first: id[%d]=%d, id[%d]=%d", i-1, first[i-1].ID, i, first[i].ID)
		}
	}

	rest, nextAfter, err := svc.History(ctx, "u-page", 3, next)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || nextAfter != "" {
		t.Fatalf("second page: %d entries, cursor %q, want 1 entry and no cursor", len(rest), nextAfter)
	}
	if rest[0].ID >= first[2].ID {
		t.Errorf("pages overlap: second page id %d, first page ends at %d", rest[0].ID, first[2].ID)
	}

	// A malformed cursor starts over at the top instead of erroring.
	all, _, err := svc.History(ctx, "u-page", 10, "not-a-cursor")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("malformed cursor page = %d entries, want all 4", len(all))
	}
}
