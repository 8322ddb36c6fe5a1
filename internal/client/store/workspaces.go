package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/calepin/calepin/internal/model"
	"github.com/google/uuid"
)

// ErrNoWorkspace is returned when no workspace is marked current.
var ErrNoWorkspace = errors.New("no current workspace")

// ErrDefaultWorkspace guards the one workspace that must always survive.
var ErrDefaultWorkspace = errors.New("the default workspace cannot be deleted")

const workspaceCols = `id, name, description, icon, color, is_default, sort_order,
	is_deleted, deleted_at, created_at, updated_at, server_ver`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(row rowScanner) (*model.Workspace, error) {
	var (
		w         model.Workspace
		deletedAt sql.NullInt64
	)
	err := row.Scan(&w.ID, &w.Name, &w.Description, &w.Icon, &w.Color, &w.IsDefault,
		&w.SortOrder, &w.IsDeleted, &deletedAt, &w.CreatedAt, &w.UpdatedAt, &w.ServerVer)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		w.DeletedAt = &deletedAt.Int64
	}
	return &w, nil
}

// EnsureDefaultWorkspace returns the default workspace, creating it (dirty,
// current) on first run. It also repairs a missing is_current marker so the
// sync driver always has a workspace binding.
func (s *Store) EnsureDefaultWorkspace() (*model.Workspace, error) {
	w, err := scanWorkspace(s.conn.QueryRow(
		`SELECT `+workspaceCols+` FROM workspaces WHERE is_default = 1 AND is_deleted = 0`))
	if err == nil {
		var current int
		if err := s.conn.QueryRow(
			`SELECT COUNT(*) FROM workspaces WHERE is_current = 1 AND is_deleted = 0`).
			Scan(&current); err != nil {
			return nil, fmt.Errorf("check current workspace: %w", err)
		}
		if current == 0 {
			if _, err := s.conn.Exec(
				`UPDATE workspaces SET is_current = 1 WHERE id = ?`, w.ID); err != nil {
				return nil, fmt.Errorf("restore current workspace: %w", err)
			}
		}
		return w, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("find default workspace: %w", err)
	}

	now := model.Now()
	w = &model.Workspace{
		ID:        uuid.NewString(),
		Name:      "Default Workspace",
		IsDefault: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.conn.Exec(`
		INSERT INTO workspaces (id, name, is_default, is_current, created_at, updated_at, is_dirty)
		VALUES (?, ?, 1, 1, ?, ?, 1)`,
		w.ID, w.Name, now, now)
	if err != nil {
		return nil, fmt.Errorf("create default workspace: %w", err)
	}
	return w, nil
}

// CurrentWorkspace returns the workspace the user is working in.
func (s *Store) CurrentWorkspace() (*model.Workspace, error) {
	w, err := scanWorkspace(s.conn.QueryRow(
		`SELECT ` + workspaceCols + ` FROM workspaces WHERE is_current = 1 AND is_deleted = 0`))
	if err == sql.ErrNoRows {
		return nil, ErrNoWorkspace
	}
	if err != nil {
		return nil, fmt.Errorf("read current workspace: %w", err)
	}
	return w, nil
}

// UseWorkspace makes id the current workspace. Exactly one workspace holds
// the marker at a time.
func (s *Store) UseWorkspace(id string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("switch workspace: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM workspaces WHERE id = ? AND is_deleted = 0`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("switch workspace: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("switch workspace: %w", ErrNoWorkspace)
	}
	if _, err := tx.Exec(`UPDATE workspaces SET is_current = 0 WHERE is_current = 1`); err != nil {
		return fmt.Errorf("switch workspace: %w", err)
	}
	if _, err := tx.Exec(`UPDATE workspaces SET is_current = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("switch workspace: %w", err)
	}
	return tx.Commit()
}

// Workspace looks up one workspace by id, deleted or not.
func (s *Store) Workspace(id string) (*model.Workspace, error) {
	w, err := scanWorkspace(s.conn.QueryRow(
		`SELECT `+workspaceCols+` FROM workspaces WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	return w, nil
}

// ListWorkspaces returns all live workspaces in display order.
func (s *Store) ListWorkspaces() ([]model.Workspace, error) {
	rows, err := s.conn.Query(
		`SELECT ` + workspaceCols + ` FROM workspaces WHERE is_deleted = 0
		 ORDER BY sort_order, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var out []model.Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, fmt.Errorf("list workspaces: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// SaveWorkspace upserts a locally edited workspace and marks it dirty. Sync
// bookkeeping columns on an existing row are preserved.
func (s *Store) SaveWorkspace(w *model.Workspace) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := model.Now()
	if w.CreatedAt == 0 {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	_, err := s.conn.Exec(`
		INSERT INTO workspaces (id, name, description, icon, color, is_default, sort_order,
			created_at, updated_at, is_dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			icon = excluded.icon,
			color = excluded.color,
			is_default = excluded.is_default,
			sort_order = excluded.sort_order,
			updated_at = excluded.updated_at,
			is_dirty = 1`,
		w.ID, w.Name, w.Description, w.Icon, w.Color, w.IsDefault, w.SortOrder,
		w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	return nil
}

// DeleteWorkspace soft-deletes a workspace so the tombstone pushes on the
// next sync. The default workspace is refused; deleting the current one
// moves the marker back to the default.
func (s *Store) DeleteWorkspace(id string) error {
	w, err := s.Workspace(id)
	if err != nil {
		return err
	}
	if w == nil {
		return nil
	}
	if w.IsDefault {
		return ErrDefaultWorkspace
	}

	now := model.Now()
	_, err = s.conn.Exec(`
		UPDATE workspaces
		SET is_deleted = 1, deleted_at = ?, updated_at = ?, is_dirty = 1, is_current = 0
		WHERE id = ?`, now, now, id)
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}

	if _, err := s.CurrentWorkspace(); err == ErrNoWorkspace {
		_, err = s.conn.Exec(
			`UPDATE workspaces SET is_current = 1 WHERE is_default = 1 AND is_deleted = 0`)
		if err != nil {
			return fmt.Errorf("delete workspace: %w", err)
		}
	} else if err != nil {
		return err
	}
	return nil
}
