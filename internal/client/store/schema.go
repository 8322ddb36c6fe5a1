package store

import "fmt"

// Client tables mirror the server's syncable entities plus the client-only
// columns is_dirty and last_synced_at. Timestamps are unix seconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS workspaces (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		icon           TEXT NOT NULL DEFAULT '',
		color          TEXT NOT NULL DEFAULT '',
		is_default     INTEGER NOT NULL DEFAULT 0,
		is_current     INTEGER NOT NULL DEFAULT 0,
		sort_order     INTEGER NOT NULL DEFAULT 0,
		is_deleted     INTEGER NOT NULL DEFAULT 0,
		deleted_at     INTEGER,
		created_at     INTEGER NOT NULL DEFAULT 0,
		updated_at     INTEGER NOT NULL DEFAULT 0,
		server_ver     INTEGER NOT NULL DEFAULT 0,
		is_dirty       INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER
	)`,

	`CREATE TABLE IF NOT EXISTS folders (
		id             TEXT PRIMARY KEY,
		workspace_id   TEXT,
		name           TEXT NOT NULL,
		parent_id      TEXT,
		icon           TEXT NOT NULL DEFAULT '',
		color          TEXT NOT NULL DEFAULT '',
		sort_order     INTEGER NOT NULL DEFAULT 0,
		is_deleted     INTEGER NOT NULL DEFAULT 0,
		deleted_at     INTEGER,
		created_at     INTEGER NOT NULL DEFAULT 0,
		updated_at     INTEGER NOT NULL DEFAULT 0,
		server_ver     INTEGER NOT NULL DEFAULT 0,
		is_dirty       INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_folders_parent ON folders (parent_id)`,

	`CREATE TABLE IF NOT EXISTS notes (
		id                TEXT PRIMARY KEY,
		workspace_id      TEXT,
		title             TEXT NOT NULL DEFAULT '',
		content           TEXT NOT NULL DEFAULT '',
		excerpt           TEXT NOT NULL DEFAULT '',
		markdown_cache    TEXT NOT NULL DEFAULT '',
		folder_id         TEXT,
		is_favorite       INTEGER NOT NULL DEFAULT 0,
		is_pinned         INTEGER NOT NULL DEFAULT 0,
		author            TEXT NOT NULL DEFAULT '',
		word_count        INTEGER NOT NULL DEFAULT 0,
		read_time_minutes INTEGER NOT NULL DEFAULT 0,
		is_deleted        INTEGER NOT NULL DEFAULT 0,
		deleted_at        INTEGER,
		created_at        INTEGER NOT NULL DEFAULT 0,
		updated_at        INTEGER NOT NULL DEFAULT 0,
		server_ver        INTEGER NOT NULL DEFAULT 0,
		is_dirty          INTEGER NOT NULL DEFAULT 0,
		last_synced_at    INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_workspace ON notes (workspace_id, updated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_folder ON notes (folder_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_dirty ON notes (is_dirty)`,

	`CREATE TABLE IF NOT EXISTS tags (
		id             TEXT PRIMARY KEY,
		workspace_id   TEXT,
		name           TEXT NOT NULL,
		color          TEXT NOT NULL DEFAULT '',
		is_deleted     INTEGER NOT NULL DEFAULT 0,
		deleted_at     INTEGER,
		created_at     INTEGER NOT NULL DEFAULT 0,
		updated_at     INTEGER NOT NULL DEFAULT 0,
		server_ver     INTEGER NOT NULL DEFAULT 0,
		is_dirty       INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER
	)`,

	`CREATE TABLE IF NOT EXISTS note_snapshots (
		id             TEXT PRIMARY KEY,
		workspace_id   TEXT,
		note_id        TEXT NOT NULL,
		title          TEXT NOT NULL DEFAULT '',
		content        TEXT NOT NULL DEFAULT '',
		snapshot_name  TEXT NOT NULL DEFAULT '',
		is_deleted     INTEGER NOT NULL DEFAULT 0,
		deleted_at     INTEGER,
		created_at     INTEGER NOT NULL DEFAULT 0,
		updated_at     INTEGER NOT NULL DEFAULT 0,
		server_ver     INTEGER NOT NULL DEFAULT 0,
		is_dirty       INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_note ON note_snapshots (note_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS note_tag_relations (
		note_id      TEXT NOT NULL,
		tag_id       TEXT NOT NULL,
		workspace_id TEXT,
		created_at   INTEGER NOT NULL DEFAULT 0,
		is_deleted   INTEGER NOT NULL DEFAULT 0,
		deleted_at   INTEGER,
		PRIMARY KEY (note_id, tag_id)
	)`,

	`CREATE TABLE IF NOT EXISTS sync_state (
		id             INTEGER PRIMARY KEY CHECK (id = 1),
		last_sync_at   INTEGER NOT NULL DEFAULT 0,
		sync_epoch     INTEGER NOT NULL DEFAULT 0,
		pending_count  INTEGER NOT NULL DEFAULT 0,
		conflict_count INTEGER NOT NULL DEFAULT 0,
		last_error     TEXT
	)`,
	`INSERT OR IGNORE INTO sync_state (id) VALUES (1)`,

	`CREATE TABLE IF NOT EXISTS user_auth (
		id            INTEGER PRIMARY KEY CHECK (id = 1),
		user_id       TEXT NOT NULL DEFAULT '',
		email         TEXT NOT NULL DEFAULT '',
		access_token  BLOB,
		refresh_token BLOB,
		is_current    INTEGER NOT NULL DEFAULT 1,
		updated_at    INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

func (s *Store) migrate() error {
	for _, stmt := range schema {
		if _, err := s.conn.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
