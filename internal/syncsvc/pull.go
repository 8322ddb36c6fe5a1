package syncsvc

import (
	"context"
	"fmt"

	"github.com/calepin/calepin/internal/model"
	"github.com/jackc/pgx/v5"
)

// pull reads every row the server mutated after the client's last sync,
// including tombstones, then partitions live rows from deleted ids and
// computes the pulled counters. Pushed ids are subtracted so "pulled" means
// new to this client.
func (s *Service) pull(ctx context.Context, tx pgx.Tx, sc *syncCtx, req *model.SyncRequest, resp *model.SyncResponse) error {
	since := req.LastSyncAt

	workspaces, err := s.pullWorkspaceRows(ctx, tx, sc.userID, since)
	if err != nil {
		return err
	}
	resp.UpsertedWorkspaces, resp.DeletedWorkspaceIDs = partitionWorkspaces(workspaces)
	resp.PulledWorkspaces = countPulled(workspaceIDs(resp.UpsertedWorkspaces), pushedIDs(len(req.Workspaces), func(i int) string { return req.Workspaces[i].ID }))

	notes, err := s.pullNoteRows(ctx, tx, sc, since)
	if err != nil {
		return err
	}
	resp.UpsertedNotes, resp.DeletedNoteIDs = partitionNotes(notes)
	resp.PulledNotes = countPulled(noteIDs(resp.UpsertedNotes), pushedIDs(len(req.Notes), func(i int) string { return req.Notes[i].ID }))

	folders, err := s.pullFolderRows(ctx, tx, sc, since)
	if err != nil {
		return err
	}
	resp.UpsertedFolders, resp.DeletedFolderIDs = partitionFolders(folders)
	resp.PulledFolders = countPulled(folderIDs(resp.UpsertedFolders), pushedIDs(len(req.Folders), func(i int) string { return req.Folders[i].ID }))

	tags, err := s.pullTagRows(ctx, tx, sc, since)
	if err != nil {
		return err
	}
	resp.UpsertedTags, resp.DeletedTagIDs = partitionTags(tags)
	resp.PulledTags = countPulled(tagIDs(resp.UpsertedTags), pushedIDs(len(req.Tags), func(i int) string { return req.Tags[i].ID }))

	snapshots, err := s.pullSnapshotRows(ctx, tx, sc, since)
	if err != nil {
		return err
	}
	resp.UpsertedSnapshots = partitionSnapshots(snapshots)
	resp.PulledSnapshots = countPulled(snapshotIDs(resp.UpsertedSnapshots), pushedIDs(len(req.Snapshots), func(i int) string { return req.Snapshots[i].ID }))

	noteTags, err := s.pullNoteTagRows(ctx, tx, sc, since)
	if err != nil {
		return err
	}
	resp.UpsertedNoteTags = partitionNoteTags(noteTags)
	resp.PulledNoteTags = countPulled(noteTagIDs(resp.UpsertedNoteTags), pushedIDs(len(req.NoteTags), func(i int) string {
		return req.NoteTags[i].NoteID + "/" + req.NoteTags[i].TagID
	}))

	return nil
}

// The workspace list syncs across devices regardless of the bound
// workspace, so the window is scoped by user only.
func (s *Service) pullWorkspaceRows(ctx context.Context, tx pgx.Tx, userID string, since int64) ([]model.Workspace, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, user_id, name, description, icon, color, is_default,
			sort_order, is_deleted, deleted_at, created_at, updated_at, server_ver
		FROM workspaces
		WHERE user_id = $1 AND updated_at > $2
		ORDER BY updated_at, id`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("pull workspaces: %w", err)
	}
	defer rows.Close()

	var out []model.Workspace
	for rows.Next() {
		var w model.Workspace
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name, &w.Description, &w.Icon,
			&w.Color, &w.IsDefault, &w.SortOrder, &w.IsDeleted, &w.DeletedAt,
			&w.CreatedAt, &w.UpdatedAt, &w.ServerVer); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Service) pullNoteRows(ctx context.Context, tx pgx.Tx, sc *syncCtx, since int64) ([]model.Note, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, user_id, workspace_id, title, content, excerpt, markdown_cache,
			folder_id, is_favorite, is_pinned, author, word_count,
			read_time_minutes, is_deleted, deleted_at, created_at, updated_at, server_ver
		FROM notes
		WHERE user_id = $1
		  AND (workspace_id = $2 OR workspace_id IS NULL)
		  AND updated_at > $3
		ORDER BY updated_at, id`, sc.userID, sc.wsID, since)
	if err != nil {
		return nil, fmt.Errorf("pull notes: %w", err)
	}
	defer rows.Close()

	var out []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.WorkspaceID, &n.Title, &n.Content,
			&n.Excerpt, &n.MarkdownCache, &n.FolderID, &n.IsFavorite, &n.IsPinned,
			&n.Author, &n.WordCount, &n.ReadTimeMinutes, &n.IsDeleted, &n.DeletedAt,
			&n.CreatedAt, &n.UpdatedAt, &n.ServerVer); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Service) pullFolderRows(ctx context.Context, tx pgx.Tx, sc *syncCtx, since int64) ([]model.Folder, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, user_id, workspace_id, name, parent_id, icon, color,
			sort_order, is_deleted, deleted_at, created_at, updated_at, server_ver
		FROM folders
		WHERE user_id = $1
		  AND (workspace_id = $2 OR workspace_id IS NULL)
		  AND updated_at > $3
		ORDER BY updated_at, id`, sc.userID, sc.wsID, since)
	if err != nil {
		return nil, fmt.Errorf("pull folders: %w", err)
	}
	defer rows.Close()

	var out []model.Folder
	for rows.Next() {
		var f model.Folder
		if err := rows.Scan(&f.ID, &f.UserID, &f.WorkspaceID, &f.Name, &f.ParentID,
			&f.Icon, &f.Color, &f.SortOrder, &f.IsDeleted, &f.DeletedAt,
			&f.CreatedAt, &f.UpdatedAt, &f.ServerVer); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Service) pullTagRows(ctx context.Context, tx pgx.Tx, sc *syncCtx, since int64) ([]model.Tag, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, user_id, workspace_id, name, color, is_deleted, deleted_at,
			created_at, updated_at, server_ver
		FROM tags
		WHERE user_id = $1
		  AND (workspace_id = $2 OR workspace_id IS NULL)
		  AND updated_at > $3
		ORDER BY updated_at, id`, sc.userID, sc.wsID, since)
	if err != nil {
		return nil, fmt.Errorf("pull tags: %w", err)
	}
	defer rows.Close()

	var out []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.WorkspaceID, &t.Name, &t.Color,
			&t.IsDeleted, &t.DeletedAt, &t.CreatedAt, &t.UpdatedAt, &t.ServerVer); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Snapshots are immutable, so the window keys on created_at.
func (s *Service) pullSnapshotRows(ctx context.Context, tx pgx.Tx, sc *syncCtx, since int64) ([]model.NoteSnapshot, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, user_id, workspace_id, note_id, title, content, snapshot_name,
			is_deleted, deleted_at, created_at, updated_at, server_ver
		FROM note_snapshots
		WHERE user_id = $1
		  AND (workspace_id = $2 OR workspace_id IS NULL)
		  AND created_at > $3
		ORDER BY created_at, id`, sc.userID, sc.wsID, since)
	if err != nil {
		return nil, fmt.Errorf("pull snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.NoteSnapshot
	for rows.Next() {
		var sn model.NoteSnapshot
		if err := rows.Scan(&sn.ID, &sn.UserID, &sn.WorkspaceID, &sn.NoteID,
			&sn.Title, &sn.Content, &sn.SnapshotName, &sn.IsDeleted, &sn.DeletedAt,
			&sn.CreatedAt, &sn.UpdatedAt, &sn.ServerVer); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

// Relations have no version of their own; they ride the window of their tag.
func (s *Service) pullNoteTagRows(ctx context.Context, tx pgx.Tx, sc *syncCtx, since int64) ([]model.NoteTagRelation, error) {
	rows, err := tx.Query(ctx, `
		SELECT r.note_id, r.tag_id, r.user_id, r.created_at, r.is_deleted, r.deleted_at
		FROM note_tag_relations r
		JOIN tags t ON t.id = r.tag_id AND t.user_id = r.user_id
		WHERE r.user_id = $1
		  AND (r.workspace_id = $2 OR r.workspace_id IS NULL)
		  AND t.updated_at > $3
		ORDER BY r.created_at, r.note_id, r.tag_id`, sc.userID, sc.wsID, since)
	if err != nil {
		return nil, fmt.Errorf("pull note_tags: %w", err)
	}
	defer rows.Close()

	var out []model.NoteTagRelation
	for rows.Next() {
		var rel model.NoteTagRelation
		if err := rows.Scan(&rel.NoteID, &rel.TagID, &rel.UserID, &rel.CreatedAt,
			&rel.IsDeleted, &rel.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan note_tag: %w", err)
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}
