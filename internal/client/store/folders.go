package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/calepin/calepin/internal/model"
	"github.com/google/uuid"
)

const folderCols = `id, workspace_id, name, parent_id, icon, color, sort_order,
	is_deleted, deleted_at, created_at, updated_at, server_ver`

func scanFolder(row rowScanner) (*model.Folder, error) {
	var (
		f         model.Folder
		wsID      sql.NullString
		parentID  sql.NullString
		deletedAt sql.NullInt64
	)
	err := row.Scan(&f.ID, &wsID, &f.Name, &parentID, &f.Icon, &f.Color, &f.SortOrder,
		&f.IsDeleted, &deletedAt, &f.CreatedAt, &f.UpdatedAt, &f.ServerVer)
	if err != nil {
		return nil, err
	}
	if wsID.Valid {
		f.WorkspaceID = &wsID.String
	}
	if parentID.Valid {
		f.ParentID = &parentID.String
	}
	if deletedAt.Valid {
		f.DeletedAt = &deletedAt.Int64
	}
	return &f, nil
}

// SaveFolder upserts a locally edited folder and marks it dirty.
func (s *Store) SaveFolder(f *model.Folder) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.WorkspaceID == nil {
		cur, err := s.CurrentWorkspace()
		if err == nil {
			f.WorkspaceID = &cur.ID
		} else if err != ErrNoWorkspace {
			return err
		}
	}
	now := model.Now()
	if f.CreatedAt == 0 {
		f.CreatedAt = now
	}
	f.UpdatedAt = now

	_, err := s.conn.Exec(`
		INSERT INTO folders (id, workspace_id, name, parent_id, icon, color, sort_order,
			created_at, updated_at, is_dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			name = excluded.name,
			parent_id = excluded.parent_id,
			icon = excluded.icon,
			color = excluded.color,
			sort_order = excluded.sort_order,
			updated_at = excluded.updated_at,
			is_deleted = 0,
			deleted_at = NULL,
			is_dirty = 1`,
		f.ID, f.WorkspaceID, f.Name, f.ParentID, f.Icon, f.Color, f.SortOrder,
		f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save folder: %w", err)
	}
	return nil
}

// Folder looks up one folder by id. Missing folders return nil.
func (s *Store) Folder(id string) (*model.Folder, error) {
	f, err := scanFolder(s.conn.QueryRow(
		`SELECT `+folderCols+` FROM folders WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read folder: %w", err)
	}
	return f, nil
}

// ListFolders returns the live folders of one workspace in display order.
func (s *Store) ListFolders(workspaceID string) ([]model.Folder, error) {
	rows, err := s.conn.Query(`
		SELECT `+folderCols+` FROM folders
		WHERE is_deleted = 0 AND (workspace_id = ? OR (workspace_id IS NULL AND ? = ''))
		ORDER BY sort_order, name`, workspaceID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var out []model.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("list folders: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// DeleteFolder soft-deletes a folder. Notes keep their folder_id; the
// reference simply dangles until they are refiled.
func (s *Store) DeleteFolder(id string) error {
	now := model.Now()
	_, err := s.conn.Exec(`
		UPDATE folders SET is_deleted = 1, deleted_at = ?, updated_at = ?, is_dirty = 1
		WHERE id = ?`, now, now, id)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	return nil
}

// FolderSubtree returns id plus every transitive child folder id. A visited
// set guards against parent cycles in unsynced local data.
func (s *Store) FolderSubtree(id string) ([]string, error) {
	visited := map[string]bool{id: true}
	order := []string{id}
	frontier := []string{id}

	for len(frontier) > 0 {
		placeholders := make([]string, len(frontier))
		args := make([]any, len(frontier))
		for i, fid := range frontier {
			placeholders[i] = "?"
			args[i] = fid
		}
		rows, err := s.conn.Query(fmt.Sprintf(
			`SELECT id FROM folders WHERE parent_id IN (%s)`,
			strings.Join(placeholders, ",")), args...)
		if err != nil {
			return nil, fmt.Errorf("folder subtree: %w", err)
		}

		var next []string
		for rows.Next() {
			var child string
			if err := rows.Scan(&child); err != nil {
				rows.Close()
				return nil, fmt.Errorf("folder subtree: %w", err)
			}
			if visited[child] {
				continue
			}
			visited[child] = true
			order = append(order, child)
			next = append(next, child)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("folder subtree: %w", err)
		}
		rows.Close()
		frontier = next
	}
	return order, nil
}
