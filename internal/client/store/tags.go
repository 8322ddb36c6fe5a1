package store

import (
	"database/sql"
	"fmt"

	"github.com/calepin/calepin/internal/model"
	"github.com/google/uuid"
)

const tagCols = `id, workspace_id, name, color,
	is_deleted, deleted_at, created_at, updated_at, server_ver`

func scanTag(row rowScanner) (*model.Tag, error) {
	var (
		t         model.Tag
		wsID      sql.NullString
		deletedAt sql.NullInt64
	)
	err := row.Scan(&t.ID, &wsID, &t.Name, &t.Color,
		&t.IsDeleted, &deletedAt, &t.CreatedAt, &t.UpdatedAt, &t.ServerVer)
	if err != nil {
		return nil, err
	}
	if wsID.Valid {
		t.WorkspaceID = &wsID.String
	}
	if deletedAt.Valid {
		t.DeletedAt = &deletedAt.Int64
	}
	return &t, nil
}

// SaveTag upserts a locally edited tag and marks it dirty.
func (s *Store) SaveTag(t *model.Tag) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.WorkspaceID == nil {
		cur, err := s.CurrentWorkspace()
		if err == nil {
			t.WorkspaceID = &cur.ID
		} else if err != ErrNoWorkspace {
			return err
		}
	}
	now := model.Now()
	if t.CreatedAt == 0 {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	_, err := s.conn.Exec(`
		INSERT INTO tags (id, workspace_id, name, color, created_at, updated_at, is_dirty)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			name = excluded.name,
			color = excluded.color,
			updated_at = excluded.updated_at,
			is_deleted = 0,
			deleted_at = NULL,
			is_dirty = 1`,
		t.ID, t.WorkspaceID, t.Name, t.Color, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save tag: %w", err)
	}
	return nil
}

// Tag looks up one tag by id. Missing tags return nil.
func (s *Store) Tag(id string) (*model.Tag, error) {
	t, err := scanTag(s.conn.QueryRow(
		`SELECT `+tagCols+` FROM tags WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tag: %w", err)
	}
	return t, nil
}

// TagByName finds a live tag by name inside a workspace.
func (s *Store) TagByName(workspaceID, name string) (*model.Tag, error) {
	t, err := scanTag(s.conn.QueryRow(`
		SELECT `+tagCols+` FROM tags
		WHERE name = ? AND is_deleted = 0
		  AND (workspace_id = ? OR (workspace_id IS NULL AND ? = ''))`,
		name, workspaceID, workspaceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find tag: %w", err)
	}
	return t, nil
}

// ListTags returns the live tags of one workspace sorted by name.
func (s *Store) ListTags(workspaceID string) ([]model.Tag, error) {
	rows, err := s.conn.Query(`
		SELECT `+tagCols+` FROM tags
		WHERE is_deleted = 0 AND (workspace_id = ? OR (workspace_id IS NULL AND ? = ''))
		ORDER BY name`, workspaceID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []model.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("list tags: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// DeleteTag soft-deletes a tag and its note links.
func (s *Store) DeleteTag(id string) error {
	now := model.Now()
	_, err := s.conn.Exec(`
		UPDATE tags SET is_deleted = 1, deleted_at = ?, updated_at = ?, is_dirty = 1
		WHERE id = ?`, now, now, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	_, err = s.conn.Exec(`
		UPDATE note_tag_relations SET is_deleted = 1, deleted_at = ?
		WHERE tag_id = ? AND is_deleted = 0`, now, id)
	if err != nil {
		return fmt.Errorf("delete tag links: %w", err)
	}
	return nil
}

// TagNote links a tag to a note. Re-tagging revives a soft-deleted link. The
// link inherits the note's workspace so collection stays scoped.
func (s *Store) TagNote(noteID, tagID string) error {
	n, err := s.Note(noteID)
	if err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("tag note: note %s not found", noteID)
	}
	_, err = s.conn.Exec(`
		INSERT INTO note_tag_relations (note_id, tag_id, workspace_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(note_id, tag_id) DO UPDATE SET is_deleted = 0, deleted_at = NULL`,
		noteID, tagID, n.WorkspaceID, model.Now())
	if err != nil {
		return fmt.Errorf("tag note: %w", err)
	}
	return nil
}

// UntagNote soft-deletes a note/tag link. Link removal never propagates to
// the server; the join table syncs insert-only.
func (s *Store) UntagNote(noteID, tagID string) error {
	_, err := s.conn.Exec(`
		UPDATE note_tag_relations SET is_deleted = 1, deleted_at = ?
		WHERE note_id = ? AND tag_id = ?`, model.Now(), noteID, tagID)
	if err != nil {
		return fmt.Errorf("untag note: %w", err)
	}
	return nil
}

// TagsForNote returns the live tags linked to a note.
func (s *Store) TagsForNote(noteID string) ([]model.Tag, error) {
	rows, err := s.conn.Query(`
		SELECT t.id, t.workspace_id, t.name, t.color,
			t.is_deleted, t.deleted_at, t.created_at, t.updated_at, t.server_ver
		FROM tags t
		JOIN note_tag_relations r ON r.tag_id = t.id AND r.is_deleted = 0
		WHERE r.note_id = ? AND t.is_deleted = 0
		ORDER BY t.name`, noteID)
	if err != nil {
		return nil, fmt.Errorf("tags for note: %w", err)
	}
	defer rows.Close()

	var out []model.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("tags for note: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
