package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds one statement per entry; pgx's extended protocol does not
// accept multi-statement strings. All statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS workspaces (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		name              TEXT NOT NULL DEFAULT '',
		description       TEXT NOT NULL DEFAULT '',
		icon              TEXT NOT NULL DEFAULT '',
		color             TEXT NOT NULL DEFAULT '',
		is_default        BOOLEAN NOT NULL DEFAULT FALSE,
		sort_order        BIGINT NOT NULL DEFAULT 0,
		is_deleted        BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at        BIGINT,
		created_at        BIGINT NOT NULL,
		updated_at        BIGINT NOT NULL,
		server_ver        BIGINT NOT NULL DEFAULT 0,
		device_id         TEXT NOT NULL DEFAULT '',
		updated_by_device TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_workspaces_user_updated
		ON workspaces (user_id, updated_at)`,
	// At most one live default workspace per user.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_workspaces_user_default
		ON workspaces (user_id) WHERE is_default AND NOT is_deleted`,

	`CREATE TABLE IF NOT EXISTS folders (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		workspace_id      TEXT,
		name              TEXT NOT NULL DEFAULT '',
		parent_id         TEXT,
		icon              TEXT NOT NULL DEFAULT '',
		color             TEXT NOT NULL DEFAULT '',
		sort_order        BIGINT NOT NULL DEFAULT 0,
		is_deleted        BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at        BIGINT,
		created_at        BIGINT NOT NULL,
		updated_at        BIGINT NOT NULL,
		server_ver        BIGINT NOT NULL DEFAULT 0,
		device_id         TEXT NOT NULL DEFAULT '',
		updated_by_device TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_folders_user_ws_updated
		ON folders (user_id, workspace_id, updated_at)`,

	`CREATE TABLE IF NOT EXISTS notes (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		workspace_id      TEXT,
		title             TEXT NOT NULL DEFAULT '',
		content           TEXT NOT NULL DEFAULT '',
		excerpt           TEXT NOT NULL DEFAULT '',
		markdown_cache    TEXT NOT NULL DEFAULT '',
		folder_id         TEXT,
		is_favorite       BOOLEAN NOT NULL DEFAULT FALSE,
		is_pinned         BOOLEAN NOT NULL DEFAULT FALSE,
		author            TEXT NOT NULL DEFAULT '',
		word_count        BIGINT NOT NULL DEFAULT 0,
		read_time_minutes BIGINT NOT NULL DEFAULT 0,
		is_deleted        BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at        BIGINT,
		created_at        BIGINT NOT NULL,
		updated_at        BIGINT NOT NULL,
		server_ver        BIGINT NOT NULL DEFAULT 0,
		device_id         TEXT NOT NULL DEFAULT '',
		updated_by_device TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_user_ws_updated
		ON notes (user_id, workspace_id, updated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_folder
		ON notes (folder_id)`,

	`CREATE TABLE IF NOT EXISTS tags (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		workspace_id      TEXT,
		name              TEXT NOT NULL DEFAULT '',
		color             TEXT NOT NULL DEFAULT '',
		is_deleted        BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at        BIGINT,
		created_at        BIGINT NOT NULL,
		updated_at        BIGINT NOT NULL,
		server_ver        BIGINT NOT NULL DEFAULT 0,
		device_id         TEXT NOT NULL DEFAULT '',
		updated_by_device TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tags_user_ws_updated
		ON tags (user_id, workspace_id, updated_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_user_ws_name
		ON tags (user_id, workspace_id, name) WHERE NOT is_deleted`,

	`CREATE TABLE IF NOT EXISTS note_snapshots (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		workspace_id      TEXT,
		note_id           TEXT NOT NULL,
		title             TEXT NOT NULL DEFAULT '',
		content           TEXT NOT NULL DEFAULT '',
		snapshot_name     TEXT NOT NULL DEFAULT '',
		is_deleted        BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at        BIGINT,
		created_at        BIGINT NOT NULL,
		updated_at        BIGINT NOT NULL,
		server_ver        BIGINT NOT NULL DEFAULT 0,
		device_id         TEXT NOT NULL DEFAULT '',
		updated_by_device TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_note
		ON note_snapshots (note_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_user_ws_created
		ON note_snapshots (user_id, workspace_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS note_tag_relations (
		note_id      TEXT NOT NULL,
		tag_id       TEXT NOT NULL,
		user_id      TEXT NOT NULL,
		workspace_id TEXT,
		created_at   BIGINT NOT NULL,
		is_deleted   BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at   BIGINT,
		PRIMARY KEY (note_id, tag_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_note_tags_tag
		ON note_tag_relations (tag_id)`,

	`CREATE TABLE IF NOT EXISTS sync_locks (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		device_id    TEXT NOT NULL,
		workspace_id TEXT,
		acquired_at  BIGINT NOT NULL,
		expires_at   BIGINT NOT NULL
	)`,
	// One live lease per (user, workspace); null workspaces collapse to ''.
	// Acquire relies on this to resolve insert races.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_locks_user_ws
		ON sync_locks (user_id, (COALESCE(workspace_id, '')))`,

	`CREATE TABLE IF NOT EXISTS account_state (
		user_id  TEXT PRIMARY KEY,
		epoch    BIGINT NOT NULL DEFAULT 1,
		wiped_at BIGINT,
		wiped_by TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS sync_history (
		id             BIGSERIAL PRIMARY KEY,
		user_id        TEXT NOT NULL,
		sync_type      TEXT NOT NULL,
		pushed_count   INT NOT NULL DEFAULT 0,
		pulled_count   INT NOT NULL DEFAULT 0,
		conflict_count INT NOT NULL DEFAULT 0,
		error          TEXT,
		duration_ms    BIGINT NOT NULL DEFAULT 0,
		created_at     BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_history_user
		ON sync_history (user_id, created_at, id)`,
}

// Migrate applies the sync store schema. Safe to run at every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
