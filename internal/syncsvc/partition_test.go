package syncsvc

import (
	"testing"

	"github.com/calepin/calepin/internal/model"
)

func TestPartitionNotes(t *testing.T) {
	del := int64(1700000000)
	rows := []model.Note{
		{ID: "a", Title: "live"},
		{ID: "b", IsDeleted: true, DeletedAt: &del},
		{ID: "c", Title: "also live"},
	}
	live, dead := partitionNotes(rows)
	if len(live) != 2 || live[0].ID != "a" || live[1].ID != "c" {
		t.Errorf("live = %+v, want a and c", live)
	}
	if len(dead) != 1 || dead[0] != "b" {
		t.Errorf("dead = %v, want [b]", dead)
	}
}

func TestPartitionEmptyIsNonNil(t *testing.T) {
	live, dead := partitionNotes(nil)
	if live == nil || dead == nil {
		t.Error("partition must return non-nil slices so the wire carries []")
	}
	if sn := partitionSnapshots(nil); sn == nil {
		t.Error("snapshot partition must return non-nil")
	}
}

func TestPartitionSnapshotsDropsDeleted(t *testing.T) {
	rows := []model.NoteSnapshot{
		{ID: "s1"},
		{ID: "s2", IsDeleted: true},
	}
	live := partitionSnapshots(rows)
	if len(live) != 1 || live[0].ID != "s1" {
		t.Errorf("live = %+v, want only s1 (snapshots have no tombstone list)", live)
	}
}

func TestPartitionNoteTagsDropsDeleted(t *testing.T) {
	rows := []model.NoteTagRelation{
		{NoteID: "n1", TagID: "t1"},
		{NoteID: "n1", TagID: "t2", IsDeleted: true},
	}
	live := partitionNoteTags(rows)
	if len(live) != 1 || live[0].TagID != "t1" {
		t.Errorf("live = %+v, want only (n1,t1)", live)
	}
}

func TestCountPulledSubtractsPushed(t *testing.T) {
	req := &model.SyncRequest{Notes: []model.Note{{ID: "a"}, {ID: "b"}}}
	pushed := pushedIDs(len(req.Notes), func(i int) string { return req.Notes[i].ID })

	// The window returned the client's own rows plus one new row.
	got := countPulled([]string{"a", "b", "c"}, pushed)
	if got != 1 {
		t.Errorf("countPulled = %d, want 1 (only c is new to the client)", got)
	}
}

func TestNoteTagCompositeKeys(t *testing.T) {
	rows := []model.NoteTagRelation{{NoteID: "n1", TagID: "t1"}}
	ids := noteTagIDs(rows)
	if ids[0] != "n1/t1" {
		t.Errorf("composite key = %q, want n1/t1", ids[0])
	}
}

func TestEffectiveWorkspace(t *testing.T) {
	bound := "w-bound"
	own := "w-own"
	empty := ""
	sc := &syncCtx{wsID: &bound}

	if got := sc.effectiveWS(&own); got == nil || *got != "w-own" {
		t.Errorf("row workspace should win, got %v", got)
	}
	if got := sc.effectiveWS(nil); got == nil || *got != "w-bound" {
		t.Errorf("nil row workspace should take the binding, got %v", got)
	}
	if got := sc.effectiveWS(&empty); got == nil || *got != "w-bound" {
		t.Errorf("empty row workspace should take the binding, got %v", got)
	}

	unbound := &syncCtx{}
	if got := unbound.effectiveWS(nil); got != nil {
		t.Errorf("no binding and no row workspace should stay nil, got %v", got)
	}
}

func TestOrNow(t *testing.T) {
	if got := orNow(0, 42); got != 42 {
		t.Errorf("orNow(0, 42) = %d, want 42", got)
	}
	if got := orNow(7, 42); got != 7 {
		t.Errorf("orNow(7, 42) = %d, want 7", got)
	}
}
