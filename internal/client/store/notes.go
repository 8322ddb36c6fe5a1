package store

import (
	"database/sql"
	"fmt"

	"github.com/calepin/calepin/internal/model"
	"github.com/google/uuid"
)

const noteCols = `id, workspace_id, title, content, excerpt, markdown_cache, folder_id,
	is_favorite, is_pinned, author, word_count, read_time_minutes,
	is_deleted, deleted_at, created_at, updated_at, server_ver`

func scanNote(row rowScanner) (*model.Note, error) {
	var (
		n         model.Note
		wsID      sql.NullString
		folderID  sql.NullString
		deletedAt sql.NullInt64
	)
	err := row.Scan(&n.ID, &wsID, &n.Title, &n.Content, &n.Excerpt, &n.MarkdownCache,
		&folderID, &n.IsFavorite, &n.IsPinned, &n.Author, &n.WordCount,
		&n.ReadTimeMinutes, &n.IsDeleted, &deletedAt, &n.CreatedAt, &n.UpdatedAt,
		&n.ServerVer)
	if err != nil {
		return nil, err
	}
	if wsID.Valid {
		n.WorkspaceID = &wsID.String
	}
	if folderID.Valid {
		n.FolderID = &folderID.String
	}
	if deletedAt.Valid {
		n.DeletedAt = &deletedAt.Int64
	}
	return &n, nil
}

// SaveNote upserts a locally edited note and marks it dirty. A missing id is
// minted; a missing workspace is stamped from the current one. The sync
// bookkeeping columns of an existing row are preserved.
func (s *Store) SaveNote(n *model.Note) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.WorkspaceID == nil {
		cur, err := s.CurrentWorkspace()
		if err == nil {
			n.WorkspaceID = &cur.ID
		} else if err != ErrNoWorkspace {
			return err
		}
	}
	now := model.Now()
	if n.CreatedAt == 0 {
		n.CreatedAt = now
	}
	n.UpdatedAt = now

	_, err := s.conn.Exec(`
		INSERT INTO notes (id, workspace_id, title, content, excerpt, markdown_cache,
			folder_id, is_favorite, is_pinned, author, word_count, read_time_minutes,
			created_at, updated_at, is_dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
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
			updated_at = excluded.updated_at,
			is_deleted = 0,
			deleted_at = NULL,
			is_dirty = 1`,
		n.ID, n.WorkspaceID, n.Title, n.Content, n.Excerpt, n.MarkdownCache,
		n.FolderID, n.IsFavorite, n.IsPinned, n.Author, n.WordCount,
		n.ReadTimeMinutes, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save note: %w", err)
	}
	return nil
}

// Note looks up one note by id, deleted or not. Missing notes return nil.
func (s *Store) Note(id string) (*model.Note, error) {
	n, err := scanNote(s.conn.QueryRow(
		`SELECT `+noteCols+` FROM notes WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read note: %w", err)
	}
	return n, nil
}

// ListNotes returns the live notes of one workspace, most recently edited
// first.
func (s *Store) ListNotes(workspaceID string) ([]model.Note, error) {
	rows, err := s.conn.Query(`
		SELECT `+noteCols+` FROM notes
		WHERE is_deleted = 0 AND (workspace_id = ? OR (workspace_id IS NULL AND ? = ''))
		ORDER BY is_pinned DESC, updated_at DESC`, workspaceID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []model.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("list notes: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// DeleteNote soft-deletes a note and its tag links so tombstones push on the
// next sync.
func (s *Store) DeleteNote(id string) error {
	now := model.Now()
	_, err := s.conn.Exec(`
		UPDATE notes SET is_deleted = 1, deleted_at = ?, updated_at = ?, is_dirty = 1
		WHERE id = ?`, now, now, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	_, err = s.conn.Exec(`
		UPDATE note_tag_relations SET is_deleted = 1, deleted_at = ?
		WHERE note_id = ? AND is_deleted = 0`, now, id)
	if err != nil {
		return fmt.Errorf("delete note tags: %w", err)
	}
	return nil
}
