package store

import (
	"database/sql"
	"fmt"
)

// RowMeta exposes the client-only bookkeeping columns of one row. These
// never travel on the wire.
type RowMeta struct {
	ServerVer    int64
	IsDirty      bool
	LastSyncedAt int64
	IsDeleted    bool
}

// Meta reads the bookkeeping columns for one row. Missing rows return nil.
func (s *Store) Meta(entity, id string) (*RowMeta, error) {
	table, ok := tableFor(entity)
	if !ok {
		return nil, fmt.Errorf("meta: unknown entity %q", entity)
	}
	var (
		m      RowMeta
		synced sql.NullInt64
	)
	err := s.conn.QueryRow(
		`SELECT server_ver, is_dirty, last_synced_at, is_deleted FROM `+table+` WHERE id = ?`,
		id).Scan(&m.ServerVer, &m.IsDirty, &synced, &m.IsDeleted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("meta %s/%s: %w", entity, id, err)
	}
	m.LastSyncedAt = synced.Int64
	return &m, nil
}
