package store

import (
	"database/sql"
	"fmt"
)

// SyncState is the client's single bookkeeping row (id = 1). LastSyncAt is
// the pull watermark handed back to the server on the next request; Epoch is
// the account epoch the last sync answered with, zero until the first sync.
type SyncState struct {
	LastSyncAt    int64
	Epoch         int64
	PendingCount  int
	ConflictCount int
	LastError     string
}

// SyncState reads the bookkeeping row.
func (s *Store) SyncState() (*SyncState, error) {
	var (
		st      SyncState
		lastErr sql.NullString
	)
	err := s.conn.QueryRow(`
		SELECT last_sync_at, sync_epoch, pending_count, conflict_count, last_error
		FROM sync_state WHERE id = 1`).
		Scan(&st.LastSyncAt, &st.Epoch, &st.PendingCount, &st.ConflictCount, &lastErr)
	if err != nil {
		return nil, fmt.Errorf("read sync state: %w", err)
	}
	st.LastError = lastErr.String
	return &st, nil
}

// SaveSyncState writes the bookkeeping row. An empty LastError stores NULL.
func (s *Store) SaveSyncState(st *SyncState) error {
	var lastErr any
	if st.LastError != "" {
		lastErr = st.LastError
	}
	_, err := s.conn.Exec(`
		UPDATE sync_state
		SET last_sync_at = ?, sync_epoch = ?, pending_count = ?, conflict_count = ?, last_error = ?
		WHERE id = 1`,
		st.LastSyncAt, st.Epoch, st.PendingCount, st.ConflictCount, lastErr)
	if err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}

// PendingCount counts the rows still waiting to push.
func (s *Store) PendingCount() (int, error) {
	var n int
	err := s.conn.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM workspaces WHERE is_dirty = 1) +
			(SELECT COUNT(*) FROM notes WHERE is_dirty = 1) +
			(SELECT COUNT(*) FROM folders WHERE is_dirty = 1) +
			(SELECT COUNT(*) FROM tags WHERE is_dirty = 1) +
			(SELECT COUNT(*) FROM note_snapshots WHERE is_dirty = 1)`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}
