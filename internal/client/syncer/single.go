package syncer

import (
	"context"

	"github.com/calepin/calepin/internal/model"
)

// Single-entity syncs speak the exact same protocol as a full sync; only the
// collected dirty set shrinks.

// SyncNote pushes one note if dirty, plus its dirty tags, dirty snapshots
// and live tag links, then pulls as usual.
func (d *Driver) SyncNote(ctx context.Context, id string) (*Report, error) {
	return d.run(ctx, "note", func(sess *session, req *model.SyncRequest) (map[string][]string, error) {
		if err := d.collectNoteSet(id, req, nil); err != nil {
			return nil, err
		}
		return pushedIDs(req), nil
	})
}

// SyncTag pushes one tag if dirty.
func (d *Driver) SyncTag(ctx context.Context, id string) (*Report, error) {
	return d.run(ctx, "tag", func(sess *session, req *model.SyncRequest) (map[string][]string, error) {
		t, err := d.store.Tag(id)
		if err != nil {
			return nil, err
		}
		m, err := d.store.Meta(model.EntityTag, id)
		if err != nil {
			return nil, err
		}
		if t != nil && m != nil && m.IsDirty {
			req.Tags = append(req.Tags, *t)
		}
		return pushedIDs(req), nil
	})
}

// SyncSnapshot pushes one snapshot if dirty.
func (d *Driver) SyncSnapshot(ctx context.Context, id string) (*Report, error) {
	return d.run(ctx, "snapshot", func(sess *session, req *model.SyncRequest) (map[string][]string, error) {
		sn, err := d.store.Snapshot(id)
		if err != nil {
			return nil, err
		}
		m, err := d.store.Meta(model.EntitySnapshot, id)
		if err != nil {
			return nil, err
		}
		if sn != nil && m != nil && m.IsDirty {
			req.Snapshots = append(req.Snapshots, *sn)
		}
		return pushedIDs(req), nil
	})
}

// SyncFolder pushes the dirty folders of one subtree, the dirty notes filed
// in them, and those notes' dirty tags, snapshots and live tag links.
func (d *Driver) SyncFolder(ctx context.Context, id string) (*Report, error) {
	return d.run(ctx, "folder", func(sess *session, req *model.SyncRequest) (map[string][]string, error) {
		subtree, err := d.store.FolderSubtree(id)
		if err != nil {
			return nil, err
		}
		if req.Folders, err = d.store.DirtyFoldersIn(subtree); err != nil {
			return nil, err
		}
		notes, err := d.store.DirtyNotesInFolders(subtree)
		if err != nil {
			return nil, err
		}
		req.Notes = notes

		seenTags := map[string]bool{}
		for _, n := range notes {
			if err := d.collectNoteSatellites(n.ID, req, seenTags); err != nil {
				return nil, err
			}
		}
		return pushedIDs(req), nil
	})
}

// collectNoteSet gathers one note (when dirty) and its satellites.
func (d *Driver) collectNoteSet(id string, req *model.SyncRequest, seenTags map[string]bool) error {
	n, err := d.store.Note(id)
	if err != nil {
		return err
	}
	m, err := d.store.Meta(model.EntityNote, id)
	if err != nil {
		return err
	}
	if n != nil && m != nil && m.IsDirty {
		req.Notes = append(req.Notes, *n)
	}
	return d.collectNoteSatellites(id, req, seenTags)
}

// collectNoteSatellites appends a note's dirty tags, dirty snapshots and
// live tag links. seenTags deduplicates tags shared across notes.
func (d *Driver) collectNoteSatellites(id string, req *model.SyncRequest, seenTags map[string]bool) error {
	tags, err := d.store.DirtyTagsForNote(id)
	if err != nil {
		return err
	}
	for _, t := range tags {
		if seenTags != nil {
			if seenTags[t.ID] {
				continue
			}
			seenTags[t.ID] = true
		}
		req.Tags = append(req.Tags, t)
	}

	snaps, err := d.store.DirtySnapshotsForNote(id)
	if err != nil {
		return err
	}
	req.Snapshots = append(req.Snapshots, snaps...)

	rels, err := d.store.RelationsForNote(id)
	if err != nil {
		return err
	}
	req.NoteTags = append(req.NoteTags, rels...)
	return nil
}
