package syncsvc

import "github.com/calepin/calepin/internal/model"

// Partition helpers split pull windows into live upserts and tombstone ids.
// Snapshots carry no tombstone list and relations only travel live, so their
// partitions drop deleted rows outright. All returns are non-nil so the wire
// carries [] rather than null.

func partitionWorkspaces(rows []model.Workspace) ([]model.Workspace, []string) {
	live := make([]model.Workspace, 0, len(rows))
	dead := make([]string, 0)
	for _, w := range rows {
		if w.IsDeleted {
			dead = append(dead, w.ID)
		} else {
			live = append(live, w)
		}
	}
	return live, dead
}

func partitionNotes(rows []model.Note) ([]model.Note, []string) {
	live := make([]model.Note, 0, len(rows))
	dead := make([]string, 0)
	for _, n := range rows {
		if n.IsDeleted {
			dead = append(dead, n.ID)
		} else {
			live = append(live, n)
		}
	}
	return live, dead
}

func partitionFolders(rows []model.Folder) ([]model.Folder, []string) {
	live := make([]model.Folder, 0, len(rows))
	dead := make([]string, 0)
	for _, f := range rows {
		if f.IsDeleted {
			dead = append(dead, f.ID)
		} else {
			live = append(live, f)
		}
	}
	return live, dead
}

func partitionTags(rows []model.Tag) ([]model.Tag, []string) {
	live := make([]model.Tag, 0, len(rows))
	dead := make([]string, 0)
	for _, t := range rows {
		if t.IsDeleted {
			dead = append(dead, t.ID)
		} else {
			live = append(live, t)
		}
	}
	return live, dead
}

func partitionSnapshots(rows []model.NoteSnapshot) []model.NoteSnapshot {
	live := make([]model.NoteSnapshot, 0, len(rows))
	for _, sn := range rows {
		if !sn.IsDeleted {
			live = append(live, sn)
		}
	}
	return live
}

func partitionNoteTags(rows []model.NoteTagRelation) []model.NoteTagRelation {
	live := make([]model.NoteTagRelation, 0, len(rows))
	for _, rel := range rows {
		if !rel.IsDeleted {
			live = append(live, rel)
		}
	}
	return live
}

// pushedIDs collects the ids the client included in its push.
func pushedIDs(n int, at func(int) string) map[string]bool {
	ids := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		ids[at(i)] = true
	}
	return ids
}

// countPulled counts upserted ids the client did not push itself.
func countPulled(ids []string, pushed map[string]bool) int {
	n := 0
	for _, id := range ids {
		if !pushed[id] {
			n++
		}
	}
	return n
}

func workspaceIDs(rows []model.Workspace) []string {
	ids := make([]string, len(rows))
	for i, w := range rows {
		ids[i] = w.ID
	}
	return ids
}

func noteIDs(rows []model.Note) []string {
	ids := make([]string, len(rows))
	for i, n := range rows {
		ids[i] = n.ID
	}
	return ids
}

func folderIDs(rows []model.Folder) []string {
	ids := make([]string, len(rows))
	for i, f := range rows {
		ids[i] = f.ID
	}
	return ids
}

func tagIDs(rows []model.Tag) []string {
	ids := make([]string, len(rows))
	for i, t := range rows {
		ids[i] = t.ID
	}
	return ids
}

func snapshotIDs(rows []model.NoteSnapshot) []string {
	ids := make([]string, len(rows))
	for i, sn := range rows {
		ids[i] = sn.ID
	}
	return ids
}

func noteTagIDs(rows []model.NoteTagRelation) []string {
	ids := make([]string, len(rows))
	for i, rel := range rows {
		ids[i] = rel.NoteID + "/" + rel.TagID
	}
	return ids
}
