package store

import "fmt"

// Rebaseline prepares the store to rejoin a server whose account epoch moved
// on, typically after a wipe. Every live row is marked dirty so the next sync
// re-uploads this device's full copy, and the watermark drops to zero so the
// same sync pulls everything the server still has. Rows the two sides
// disagree on surface as ordinary conflicts. Tombstoned rows are left for
// Compact; the server no longer has anything to delete.
func (s *Store) Rebaseline(epoch int64) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin rebaseline: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{
		"workspaces", "notes", "folders", "tags", "note_snapshots",
	} {
		if _, err := tx.Exec(
			`UPDATE ` + table + ` SET is_dirty = 1, last_synced_at = NULL WHERE is_deleted = 0`); err != nil {
			return fmt.Errorf("mark %s dirty: %w", table, err)
		}
	}

	if _, err := tx.Exec(`
		UPDATE sync_state SET
			last_sync_at   = 0,
			sync_epoch     = ?,
			conflict_count = 0,
			last_error     = NULL,
			pending_count  = (
				(SELECT COUNT(*) FROM workspaces WHERE is_dirty = 1) +
				(SELECT COUNT(*) FROM notes WHERE is_dirty = 1) +
				(SELECT COUNT(*) FROM folders WHERE is_dirty = 1) +
				(SELECT COUNT(*) FROM tags WHERE is_dirty = 1) +
				(SELECT COUNT(*) FROM note_snapshots WHERE is_dirty = 1)
			)
		WHERE id = 1`, epoch); err != nil {
		return fmt.Errorf("reset sync state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebaseline: %w", err)
	}
	return nil
}

// DropLocalData erases every entity row and rejoins the server at the given
// epoch with an empty store. Auth, settings and the device identity survive.
// Returns the number of rows dropped.
func (s *Store) DropLocalData(epoch int64) (int64, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin drop: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for _, table := range []string{
		"note_tag_relations", "note_snapshots", "notes", "tags", "folders", "workspaces",
	} {
		res, err := tx.Exec(`DELETE FROM ` + table)
		if err != nil {
			return 0, fmt.Errorf("drop %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("drop %s: %w", table, err)
		}
		total += n
	}

	if _, err := tx.Exec(`
		UPDATE sync_state SET
			last_sync_at   = 0,
			sync_epoch     = ?,
			pending_count  = 0,
			conflict_count = 0,
			last_error     = NULL
		WHERE id = 1`, epoch); err != nil {
		return 0, fmt.Errorf("reset sync state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit drop: %w", err)
	}
	return total, nil
}
