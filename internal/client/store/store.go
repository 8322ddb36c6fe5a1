// Package store is the client's local database on SQLite: the syncable
// entity tables plus the client-only bookkeeping the sync driver needs
// (dirty bits, last_synced_at, sync_state, sealed tokens, settings).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/calepin/calepin/internal/client/cryptoseal"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store wraps the local database connection.
type Store struct {
	conn *sql.DB
	path string
	seal *cryptoseal.Sealer
}

// Open opens (creating if needed) the client database, applies pragmas and
// schema, and binds the token sealer to this device's identity.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL keeps reads open while the sync transaction writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	// Slightly faster writes, still safe with WAL
	conn.Exec("PRAGMA synchronous=NORMAL")
	conn.Exec("PRAGMA foreign_keys=ON")

	s := &Store{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	deviceID, err := s.ensureDeviceID()
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.seal = cryptoseal.New(deviceID)

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// ensureDeviceID reads the persisted device identity, minting one on first
// run. The id never changes afterwards; the token sealing key depends on it.
func (s *Store) ensureDeviceID() (string, error) {
	id, err := s.Setting(SettingDeviceID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	id = fmt.Sprintf("cli-%s-%s", runtime.GOOS, uuid.NewString())
	if err := s.SetSetting(SettingDeviceID, id); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}

// DeviceID returns this client's persistent device identity.
func (s *Store) DeviceID() (string, error) {
	return s.Setting(SettingDeviceID)
}
