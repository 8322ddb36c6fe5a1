package store

import (
	"fmt"
	"strconv"
	"time"
)

const (
	// CompactRetention is how long tombstones survive before Compact removes
	// them physically.
	CompactRetention = 30 * 24 * time.Hour
	// Compaction runs at most once per gate interval.
	compactGate = 24 * time.Hour
)

// Compact hard-deletes soft-deleted rows whose deleted_at is older than
// cutoff. The default workspace is never touched, whatever its flags say.
// Returns the number of rows purged.
func (s *Store) Compact(cutoff int64) (int64, error) {
	var total int64
	for _, table := range []string{
		"notes", "folders", "tags", "note_snapshots", "note_tag_relations",
	} {
		res, err := s.conn.Exec(
			`DELETE FROM `+table+` WHERE is_deleted = 1 AND deleted_at IS NOT NULL AND deleted_at < ?`,
			cutoff)
		if err != nil {
			return total, fmt.Errorf("compact %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("compact %s: %w", table, err)
		}
		total += n
	}

	res, err := s.conn.Exec(`
		DELETE FROM workspaces
		WHERE is_deleted = 1 AND is_default = 0 AND deleted_at IS NOT NULL AND deleted_at < ?`,
		cutoff)
	if err != nil {
		return total, fmt.Errorf("compact workspaces: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return total, fmt.Errorf("compact workspaces: %w", err)
	}
	total += n

	if err := s.SetSetting(SettingLastCompactionAt,
		strconv.FormatInt(time.Now().Unix(), 10)); err != nil {
		return total, err
	}
	return total, nil
}

// CompactIfDue runs Compact with the standard retention window unless it
// already ran within the gate interval. Reports whether it ran.
func (s *Store) CompactIfDue() (int64, bool, error) {
	raw, err := s.Setting(SettingLastCompactionAt)
	if err != nil {
		return 0, false, err
	}
	now := time.Now()
	if raw != "" {
		last, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && now.Unix()-last < int64(compactGate.Seconds()) {
			return 0, false, nil
		}
	}
	purged, err := s.Compact(now.Add(-CompactRetention).Unix())
	return purged, true, err
}
