package store

import (
	"database/sql"
	"fmt"
	"strconv"
)

// Settings keys.
const (
	SettingDeviceID            = "device_id"
	SettingLastCompactionAt    = "last_compaction_at"
	SettingAutoSyncEnabled     = "auto_sync_enabled"
	SettingSyncIntervalMinutes = "sync_interval_minutes"
)

// Setting returns the value for key, or "" when unset.
func (s *Store) Setting(key string) (string, error) {
	var value string
	err := s.conn.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting writes or replaces one settings row.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.conn.Exec(
		`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

// AutoSyncEnabled reports the auto-sync toggle; off until set.
func (s *Store) AutoSyncEnabled() (bool, error) {
	v, err := s.Setting(SettingAutoSyncEnabled)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// SetAutoSync flips the auto-sync toggle.
func (s *Store) SetAutoSync(enabled bool) error {
	return s.SetSetting(SettingAutoSyncEnabled, strconv.FormatBool(enabled))
}

// SyncIntervalMinutes returns the auto-sync interval, defaulting to 5.
func (s *Store) SyncIntervalMinutes() (int, error) {
	v, err := s.Setting(SettingSyncIntervalMinutes)
	if err != nil {
		return 0, err
	}
	if v == "" {
		return 5, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 5, nil
	}
	return n, nil
}
