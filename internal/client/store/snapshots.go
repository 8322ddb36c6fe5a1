package store

import (
	"database/sql"
	"fmt"

	"github.com/calepin/calepin/internal/model"
	"github.com/google/uuid"
)

const snapshotCols = `id, workspace_id, note_id, title, content, snapshot_name,
	is_deleted, deleted_at, created_at, updated_at, server_ver`

func scanSnapshot(row rowScanner) (*model.NoteSnapshot, error) {
	var (
		sn        model.NoteSnapshot
		wsID      sql.NullString
		deletedAt sql.NullInt64
	)
	err := row.Scan(&sn.ID, &wsID, &sn.NoteID, &sn.Title, &sn.Content, &sn.SnapshotName,
		&sn.IsDeleted, &deletedAt, &sn.CreatedAt, &sn.UpdatedAt, &sn.ServerVer)
	if err != nil {
		return nil, err
	}
	if wsID.Valid {
		sn.WorkspaceID = &wsID.String
	}
	if deletedAt.Valid {
		sn.DeletedAt = &deletedAt.Int64
	}
	return &sn, nil
}

// CreateSnapshot freezes the current title and content of a note. Snapshots
// are immutable once written; the server evicts the oldest beyond its cap.
func (s *Store) CreateSnapshot(noteID, name string) (*model.NoteSnapshot, error) {
	n, err := s.Note(noteID)
	if err != nil {
		return nil, err
	}
	if n == nil || n.IsDeleted {
		return nil, fmt.Errorf("snapshot: note %s not found", noteID)
	}

	now := model.Now()
	sn := &model.NoteSnapshot{
		ID:           uuid.NewString(),
		WorkspaceID:  n.WorkspaceID,
		NoteID:       n.ID,
		Title:        n.Title,
		Content:      n.Content,
		SnapshotName: name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err = s.conn.Exec(`
		INSERT INTO note_snapshots (id, workspace_id, note_id, title, content,
			snapshot_name, created_at, updated_at, is_dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		sn.ID, sn.WorkspaceID, sn.NoteID, sn.Title, sn.Content, sn.SnapshotName,
		sn.CreatedAt, sn.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}
	return sn, nil
}

// Snapshot looks up one snapshot by id. Missing snapshots return nil.
func (s *Store) Snapshot(id string) (*model.NoteSnapshot, error) {
	sn, err := scanSnapshot(s.conn.QueryRow(
		`SELECT `+snapshotCols+` FROM note_snapshots WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return sn, nil
}

// ListSnapshots returns a note's live snapshots, newest first.
func (s *Store) ListSnapshots(noteID string) ([]model.NoteSnapshot, error) {
	rows, err := s.conn.Query(`
		SELECT `+snapshotCols+` FROM note_snapshots
		WHERE note_id = ? AND is_deleted = 0
		ORDER BY created_at DESC, id DESC`, noteID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.NoteSnapshot
	for rows.Next() {
		sn, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		out = append(out, *sn)
	}
	return out, rows.Err()
}

// RestoreSnapshot writes a snapshot's title and content back onto its note,
// which marks the note dirty for the next sync.
func (s *Store) RestoreSnapshot(id string) error {
	sn, err := s.Snapshot(id)
	if err != nil {
		return err
	}
	if sn == nil || sn.IsDeleted {
		return fmt.Errorf("restore snapshot: snapshot %s not found", id)
	}
	n, err := s.Note(sn.NoteID)
	if err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("restore snapshot: note %s not found", sn.NoteID)
	}
	n.Title = sn.Title
	n.Content = sn.Content
	return s.SaveNote(n)
}
