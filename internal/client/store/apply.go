package store

import (
	"database/sql"
	"fmt"

	"github.com/calepin/calepin/internal/model"
	"github.com/google/uuid"
)

// Response application. Every upsert is version-gated: an incoming row only
// lands when its server_ver is strictly newer than the local row's, so a
// client that already advanced past the response never regresses.

func tableFor(entity string) (string, bool) {
	switch entity {
	case model.EntityWorkspace:
		return "workspaces", true
	case model.EntityNote:
		return "notes", true
	case model.EntityFolder:
		return "folders", true
	case model.EntityTag:
		return "tags", true
	case model.EntitySnapshot:
		return "note_snapshots", true
	}
	return "", false
}

func (s *Store) newerThanLocal(table, id string, incoming int64) (bool, error) {
	var ver int64
	err := s.conn.QueryRow(`SELECT server_ver FROM `+table+` WHERE id = ?`, id).Scan(&ver)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("version gate %s/%s: %w", table, id, err)
	}
	return ver < incoming, nil
}

// bindWs prefers the sync session's workspace binding over whatever the row
// carries; the response is already scoped to that workspace.
func bindWs(rowWs *string, bound string) *string {
	if bound != "" {
		return &bound
	}
	return rowWs
}

// ApplyWorkspace writes one pulled workspace. is_current is client-local and
// never overwritten. Reports whether the row actually landed.
func (s *Store) ApplyWorkspace(w *model.Workspace, syncTime int64) (bool, error) {
	ok, err := s.newerThanLocal("workspaces", w.ID, w.ServerVer)
	if err != nil || !ok {
		return false, err
	}
	_, err = s.conn.Exec(`
		INSERT INTO workspaces (id, name, description, icon, color, is_default, sort_order,
			is_deleted, deleted_at, created_at, updated_at, server_ver, is_dirty, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			icon = excluded.icon,
			color = excluded.color,
			is_default = excluded.is_default,
			sort_order = excluded.sort_order,
			is_deleted = excluded.is_deleted,
			deleted_at = excluded.deleted_at,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			server_ver = excluded.server_ver,
			is_dirty = 0,
			last_synced_at = excluded.last_synced_at`,
		w.ID, w.Name, w.Description, w.Icon, w.Color, w.IsDefault, w.SortOrder,
		w.IsDeleted, w.DeletedAt, w.CreatedAt, w.UpdatedAt, w.ServerVer, syncTime)
	if err != nil {
		return false, fmt.Errorf("apply workspace %s: %w", w.ID, err)
	}
	return true, nil
}

// ApplyNote writes one pulled note, stamped with the session's workspace.
func (s *Store) ApplyNote(n *model.Note, workspaceID string, syncTime int64) (bool, error) {
	ok, err := s.newerThanLocal("notes", n.ID, n.ServerVer)
	if err != nil || !ok {
		return false, err
	}
	_, err = s.conn.Exec(`
		INSERT INTO notes (id, workspace_id, title, content, excerpt, markdown_cache,
			folder_id, is_favorite, is_pinned, author, word_count, read_time_minutes,
			is_deleted, deleted_at, created_at, updated_at, server_ver, is_dirty, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			title = excluded.title,
			content = excluded.content,
			excerpt = excluded.excerpt,
			markdown_cache = excluded.markdown_cache,
			folder_id = excluded.folder_id,
			is_favorite = excluded.is_favorite,
			is_pinned = excluded.is_pinned,
			author = excluded.author,
			word_count = excluded.word_count,
			read_time_minutes = excluded.read_time_minutes,
			is_deleted = excluded.is_deleted,
			deleted_at = excluded.deleted_at,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			server_ver = excluded.server_ver,
			is_dirty = 0,
			last_synced_at = excluded.last_synced_at`,
		n.ID, bindWs(n.WorkspaceID, workspaceID), n.Title, n.Content, n.Excerpt,
		n.MarkdownCache, n.FolderID, n.IsFavorite, n.IsPinned, n.Author, n.WordCount,
		n.ReadTimeMinutes, n.IsDeleted, n.DeletedAt, n.CreatedAt, n.UpdatedAt,
		n.ServerVer, syncTime)
	if err != nil {
		return false, fmt.Errorf("apply note %s: %w", n.ID, err)
	}
	return true, nil
}

// ApplyFolder writes one pulled folder.
func (s *Store) ApplyFolder(f *model.Folder, workspaceID string, syncTime int64) (bool, error) {
	ok, err := s.newerThanLocal("folders", f.ID, f.ServerVer)
	if err != nil || !ok {
		return false, err
	}
	_, err = s.conn.Exec(`
		INSERT INTO folders (id, workspace_id, name, parent_id, icon, color, sort_order,
			is_deleted, deleted_at, created_at, updated_at, server_ver, is_dirty, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			name = excluded.name,
			parent_id = excluded.parent_id,
			icon = excluded.icon,
			color = excluded.color,
			sort_order = excluded.sort_order,
			is_deleted = excluded.is_deleted,
			deleted_at = excluded.deleted_at,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			server_ver = excluded.server_ver,
			is_dirty = 0,
			last_synced_at = excluded.last_synced_at`,
		f.ID, bindWs(f.WorkspaceID, workspaceID), f.Name, f.ParentID, f.Icon, f.Color,
		f.SortOrder, f.IsDeleted, f.DeletedAt, f.CreatedAt, f.UpdatedAt, f.ServerVer,
		syncTime)
	if err != nil {
		return false, fmt.Errorf("apply folder %s: %w", f.ID, err)
	}
	return true, nil
}

// ApplyTag writes one pulled tag.
func (s *Store) ApplyTag(t *model.Tag, workspaceID string, syncTime int64) (bool, error) {
	ok, err := s.newerThanLocal("tags", t.ID, t.ServerVer)
	if err != nil || !ok {
		return false, err
	}
	_, err = s.conn.Exec(`
		INSERT INTO tags (id, workspace_id, name, color,
			is_deleted, deleted_at, created_at, updated_at, server_ver, is_dirty, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			name = excluded.name,
			color = excluded.color,
			is_deleted = excluded.is_deleted,
			deleted_at = excluded.deleted_at,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			server_ver = excluded.server_ver,
			is_dirty = 0,
			last_synced_at = excluded.last_synced_at`,
		t.ID, bindWs(t.WorkspaceID, workspaceID), t.Name, t.Color,
		t.IsDeleted, t.DeletedAt, t.CreatedAt, t.UpdatedAt, t.ServerVer, syncTime)
	if err != nil {
		return false, fmt.Errorf("apply tag %s: %w", t.ID, err)
	}
	return true, nil
}

// ApplySnapshot writes one pulled snapshot.
func (s *Store) ApplySnapshot(sn *model.NoteSnapshot, workspaceID string, syncTime int64) (bool, error) {
	ok, err := s.newerThanLocal("note_snapshots", sn.ID, sn.ServerVer)
	if err != nil || !ok {
		return false, err
	}
	_, err = s.conn.Exec(`
		INSERT INTO note_snapshots (id, workspace_id, note_id, title, content, snapshot_name,
			is_deleted, deleted_at, created_at, updated_at, server_ver, is_dirty, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			note_id = excluded.note_id,
			title = excluded.title,
			content = excluded.content,
			snapshot_name = excluded.snapshot_name,
			is_deleted = excluded.is_deleted,
			deleted_at = excluded.deleted_at,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			server_ver = excluded.server_ver,
			is_dirty = 0,
			last_synced_at = excluded.last_synced_at`,
		sn.ID, bindWs(sn.WorkspaceID, workspaceID), sn.NoteID, sn.Title, sn.Content,
		sn.SnapshotName, sn.IsDeleted, sn.DeletedAt, sn.CreatedAt, sn.UpdatedAt,
		sn.ServerVer, syncTime)
	if err != nil {
		return false, fmt.Errorf("apply snapshot %s: %w", sn.ID, err)
	}
	return true, nil
}

// ApplyNoteTag inserts one pulled note/tag link. Links the user removed
// locally stay removed; the join table pulls insert-only, mirroring the
// server side.
func (s *Store) ApplyNoteTag(r *model.NoteTagRelation, workspaceID string) (bool, error) {
	res, err := s.conn.Exec(`
		INSERT OR IGNORE INTO note_tag_relations (note_id, tag_id, workspace_id, created_at)
		VALUES (?, ?, ?, ?)`,
		r.NoteID, r.TagID, bindWs(nil, workspaceID), r.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("apply note tag %s/%s: %w", r.NoteID, r.TagID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("apply note tag %s/%s: %w", r.NoteID, r.TagID, err)
	}
	return n > 0, nil
}

// ApplyTombstone marks one pulled deletion. The default workspace is never
// tombstoned; that id is skipped silently.
func (s *Store) ApplyTombstone(entity, id string) (bool, error) {
	table, ok := tableFor(entity)
	if !ok {
		return false, fmt.Errorf("apply tombstone: unknown entity %q", entity)
	}
	if entity == model.EntityWorkspace {
		var isDefault bool
		err := s.conn.QueryRow(
			`SELECT is_default FROM workspaces WHERE id = ?`, id).Scan(&isDefault)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("apply tombstone: %w", err)
		}
		if isDefault {
			return false, nil
		}
	}
	res, err := s.conn.Exec(
		`UPDATE `+table+` SET is_deleted = 1, deleted_at = ?, is_dirty = 0 WHERE id = ?`,
		model.Now(), id)
	if err != nil {
		return false, fmt.Errorf("apply tombstone %s/%s: %w", entity, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("apply tombstone %s/%s: %w", entity, id, err)
	}
	return n > 0, nil
}

// ConflictCopyNote forks the local version of a conflicted note into a new
// dirty row so the next sync pushes it, preserving an edit the server-side
// resolution would otherwise discard. Returns the copy's id, or "" when no
// local row exists to preserve.
func (s *Store) ConflictCopyNote(noteID string) (string, error) {
	n, err := s.Note(noteID)
	if err != nil {
		return "", err
	}
	if n == nil || n.IsDeleted {
		return "", nil
	}

	copyID := uuid.NewString()
	now := model.Now()
	_, err = s.conn.Exec(`
		INSERT INTO notes (id, workspace_id, title, content, excerpt, markdown_cache,
			folder_id, is_favorite, is_pinned, author, word_count, read_time_minutes,
			created_at, updated_at, server_ver, is_dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 1)`,
		copyID, n.WorkspaceID, n.Title+model.LocalConflictSuffix, n.Content, n.Excerpt,
		n.MarkdownCache, n.FolderID, n.IsFavorite, n.IsPinned, n.Author, n.WordCount,
		n.ReadTimeMinutes, now, now)
	if err != nil {
		return "", fmt.Errorf("conflict copy of %s: %w", noteID, err)
	}
	return copyID, nil
}

// ClearDirty settles the rows a sync request pushed. Scoped to ids on
// purpose: rows edited while the sync was in flight stay dirty.
func (s *Store) ClearDirty(entity string, ids []string, lastSyncedAt int64) error {
	if len(ids) == 0 {
		return nil
	}
	table, ok := tableFor(entity)
	if !ok {
		return fmt.Errorf("clear dirty: unknown entity %q", entity)
	}
	query, args := inClause(ids)
	args = append([]any{lastSyncedAt}, args...)
	_, err := s.conn.Exec(fmt.Sprintf(
		`UPDATE %s SET is_dirty = 0, last_synced_at = ? WHERE id IN (%s)`, table, query),
		args...)
	if err != nil {
		return fmt.Errorf("clear dirty %s: %w", entity, err)
	}
	return nil
}

// AdoptCurrentWorkspace promotes the default workspace to current when
// nothing is current, which happens after the first pull on a fresh device.
func (s *Store) AdoptCurrentWorkspace() error {
	_, err := s.CurrentWorkspace()
	if err == nil {
		return nil
	}
	if err != ErrNoWorkspace {
		return err
	}
	_, err = s.conn.Exec(
		`UPDATE workspaces SET is_current = 1 WHERE is_default = 1 AND is_deleted = 0`)
	if err != nil {
		return fmt.Errorf("adopt workspace: %w", err)
	}
	return nil
}
