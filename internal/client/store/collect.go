package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/calepin/calepin/internal/model"
)

// Dirty collectors feed the sync request. They include soft-deleted rows so
// tombstones push, and rows with no workspace so legacy data drains on the
// next sync instead of lingering forever.

// DirtyWorkspaces returns every dirty workspace, tombstones included.
func (s *Store) DirtyWorkspaces() ([]model.Workspace, error) {
	rows, err := s.conn.Query(
		`SELECT ` + workspaceCols + ` FROM workspaces WHERE is_dirty = 1`)
	if err != nil {
		return nil, fmt.Errorf("collect workspaces: %w", err)
	}
	defer rows.Close()

	var out []model.Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, fmt.Errorf("collect workspaces: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// DirtyNotes returns the dirty notes of one workspace, tombstones included.
func (s *Store) DirtyNotes(workspaceID string) ([]model.Note, error) {
	rows, err := s.conn.Query(`
		SELECT `+noteCols+` FROM notes
		WHERE is_dirty = 1 AND (workspace_id = ? OR workspace_id IS NULL)`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("collect notes: %w", err)
	}
	return collectNotes(rows)
}

// DirtyFolders returns the dirty folders of one workspace.
func (s *Store) DirtyFolders(workspaceID string) ([]model.Folder, error) {
	rows, err := s.conn.Query(`
		SELECT `+folderCols+` FROM folders
		WHERE is_dirty = 1 AND (workspace_id = ? OR workspace_id IS NULL)`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("collect folders: %w", err)
	}
	defer rows.Close()

	var out []model.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("collect folders: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// DirtyTags returns the dirty tags of one workspace.
func (s *Store) DirtyTags(workspaceID string) ([]model.Tag, error) {
	rows, err := s.conn.Query(`
		SELECT `+tagCols+` FROM tags
		WHERE is_dirty = 1 AND (workspace_id = ? OR workspace_id IS NULL)`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("collect tags: %w", err)
	}
	return collectTags(rows)
}

// DirtySnapshots returns the dirty snapshots of one workspace.
func (s *Store) DirtySnapshots(workspaceID string) ([]model.NoteSnapshot, error) {
	rows, err := s.conn.Query(`
		SELECT `+snapshotCols+` FROM note_snapshots
		WHERE is_dirty = 1 AND (workspace_id = ? OR workspace_id IS NULL)`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("collect snapshots: %w", err)
	}
	return collectSnapshots(rows)
}

// RelationsForWorkspace returns every live note/tag link in the workspace.
// The join table has no dirty bit; the server path is insert-only, so
// re-pushing is harmless.
func (s *Store) RelationsForWorkspace(workspaceID string) ([]model.NoteTagRelation, error) {
	rows, err := s.conn.Query(`
		SELECT note_id, tag_id, created_at FROM note_tag_relations
		WHERE is_deleted = 0 AND (workspace_id = ? OR workspace_id IS NULL)`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("collect note tags: %w", err)
	}
	return collectRelations(rows)
}

// RelationsForNote returns a note's live tag links.
func (s *Store) RelationsForNote(noteID string) ([]model.NoteTagRelation, error) {
	rows, err := s.conn.Query(`
		SELECT note_id, tag_id, created_at FROM note_tag_relations
		WHERE note_id = ? AND is_deleted = 0`, noteID)
	if err != nil {
		return nil, fmt.Errorf("collect note tags: %w", err)
	}
	return collectRelations(rows)
}

// DirtyTagsForNote returns the dirty tags linked to a note.
func (s *Store) DirtyTagsForNote(noteID string) ([]model.Tag, error) {
	rows, err := s.conn.Query(`
		SELECT t.id, t.workspace_id, t.name, t.color,
			t.is_deleted, t.deleted_at, t.created_at, t.updated_at, t.server_ver
		FROM tags t
		JOIN note_tag_relations r ON r.tag_id = t.id AND r.is_deleted = 0
		WHERE r.note_id = ? AND t.is_dirty = 1`, noteID)
	if err != nil {
		return nil, fmt.Errorf("collect note tags: %w", err)
	}
	return collectTags(rows)
}

// DirtySnapshotsForNote returns a note's dirty snapshots.
func (s *Store) DirtySnapshotsForNote(noteID string) ([]model.NoteSnapshot, error) {
	rows, err := s.conn.Query(`
		SELECT `+snapshotCols+` FROM note_snapshots
		WHERE note_id = ? AND is_dirty = 1`, noteID)
	if err != nil {
		return nil, fmt.Errorf("collect snapshots: %w", err)
	}
	return collectSnapshots(rows)
}

// DirtyFoldersIn returns the dirty folders among ids with a single query.
func (s *Store) DirtyFoldersIn(ids []string) ([]model.Folder, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args := inClause(ids)
	rows, err := s.conn.Query(fmt.Sprintf(
		`SELECT `+folderCols+` FROM folders WHERE is_dirty = 1 AND id IN (%s)`, query),
		args...)
	if err != nil {
		return nil, fmt.Errorf("collect folders: %w", err)
	}
	defer rows.Close()

	var out []model.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("collect folders: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// DirtyNotesInFolders returns the dirty notes filed under any of folderIDs.
func (s *Store) DirtyNotesInFolders(folderIDs []string) ([]model.Note, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}
	query, args := inClause(folderIDs)
	rows, err := s.conn.Query(fmt.Sprintf(
		`SELECT `+noteCols+` FROM notes WHERE is_dirty = 1 AND folder_id IN (%s)`, query),
		args...)
	if err != nil {
		return nil, fmt.Errorf("collect notes: %w", err)
	}
	return collectNotes(rows)
}

func inClause(ids []string) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ","), args
}

func collectNotes(rows *sql.Rows) ([]model.Note, error) {
	defer rows.Close()
	var out []model.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("collect notes: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func collectTags(rows *sql.Rows) ([]model.Tag, error) {
	defer rows.Close()
	var out []model.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("collect tags: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func collectSnapshots(rows *sql.Rows) ([]model.NoteSnapshot, error) {
	defer rows.Close()
	var out []model.NoteSnapshot
	for rows.Next() {
		sn, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("collect snapshots: %w", err)
		}
		out = append(out, *sn)
	}
	return out, rows.Err()
}

func collectRelations(rows *sql.Rows) ([]model.NoteTagRelation, error) {
	defer rows.Close()
	var out []model.NoteTagRelation
	for rows.Next() {
		var r model.NoteTagRelation
		if err := rows.Scan(&r.NoteID, &r.TagID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("collect note tags: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
