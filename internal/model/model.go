// Package model defines the syncable entities shared by the server store and
// the client local store, the wire shapes of the sync protocol, and the
// version rule that drives reconciliation.
//
// Every syncable entity carries the same reconciliation columns: ServerVer
// (monotonic per row, assigned by the server), IsDeleted/DeletedAt (soft
// delete, propagated as tombstones), CreatedAt/UpdatedAt (unix seconds).
// Clients additionally track is_dirty and last_synced_at in their local
// store; those never travel on the wire.
package model

// Workspace is the top-level container for a user's notes. Exactly one
// workspace per user has IsDefault set; it can be neither deleted nor
// demoted.
type Workspace struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color,omitempty"`
	IsDefault   bool   `json:"is_default"`
	SortOrder   int64  `json:"sort_order"`
	IsDeleted   bool   `json:"is_deleted"`
	DeletedAt   *int64 `json:"deleted_at,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
	ServerVer   int64  `json:"server_ver"`
}

// Folder nests under a workspace. ParentID is self-referential; folders form
// a forest and pushes are applied in dependency order so a child never lands
// before its parent.
type Folder struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id,omitempty"`
	WorkspaceID *string `json:"workspace_id,omitempty"`
	Name        string  `json:"name"`
	ParentID    *string `json:"parent_id,omitempty"`
	Icon        string  `json:"icon,omitempty"`
	Color       string  `json:"color,omitempty"`
	SortOrder   int64   `json:"sort_order"`
	IsDeleted   bool    `json:"is_deleted"`
	DeletedAt   *int64  `json:"deleted_at,omitempty"`
	CreatedAt   int64   `json:"created_at"`
	UpdatedAt   int64   `json:"updated_at"`
	ServerVer   int64   `json:"server_ver"`
}

// Note is the primary entity. Content is an opaque rich-text blob; the
// engine never inspects it.
type Note struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id,omitempty"`
	WorkspaceID     *string `json:"workspace_id,omitempty"`
	Title           string  `json:"title"`
	Content         string  `json:"content"`
	Excerpt         string  `json:"excerpt,omitempty"`
	MarkdownCache   string  `json:"markdown_cache,omitempty"`
	FolderID        *string `json:"folder_id,omitempty"`
	IsFavorite      bool    `json:"is_favorite"`
	IsPinned        bool    `json:"is_pinned"`
	Author          string  `json:"author,omitempty"`
	WordCount       int64   `json:"word_count"`
	ReadTimeMinutes int64   `json:"read_time_minutes"`
	IsDeleted       bool    `json:"is_deleted"`
	DeletedAt       *int64  `json:"deleted_at,omitempty"`
	CreatedAt       int64   `json:"created_at"`
	UpdatedAt       int64   `json:"updated_at"`
	ServerVer       int64   `json:"server_ver"`
}

// Tag labels notes through NoteTagRelation. (user, workspace, name) is
// unique among non-deleted tags.
type Tag struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id,omitempty"`
	WorkspaceID *string `json:"workspace_id,omitempty"`
	Name        string  `json:"name"`
	Color       string  `json:"color,omitempty"`
	IsDeleted   bool    `json:"is_deleted"`
	DeletedAt   *int64  `json:"deleted_at,omitempty"`
	CreatedAt   int64   `json:"created_at"`
	UpdatedAt   int64   `json:"updated_at"`
	ServerVer   int64   `json:"server_ver"`
}

// NoteSnapshot is a manual point-in-time copy of a note. Snapshots are
// immutable once written; the server caps them at SnapshotCap per
// (note, workspace), evicting oldest-first.
type NoteSnapshot struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id,omitempty"`
	WorkspaceID  *string `json:"workspace_id,omitempty"`
	NoteID       string  `json:"note_id"`
	Title        string  `json:"title"`
	Content      string  `json:"content"`
	SnapshotName string  `json:"snapshot_name,omitempty"`
	IsDeleted    bool    `json:"is_deleted"`
	DeletedAt    *int64  `json:"deleted_at,omitempty"`
	CreatedAt    int64   `json:"created_at"`
	UpdatedAt    int64   `json:"updated_at"`
	ServerVer    int64   `json:"server_ver"`
}

// NoteTagRelation joins notes to tags. It has no server version; presence is
// the fact, and the server path is insert-only.
type NoteTagRelation struct {
	NoteID    string `json:"note_id"`
	TagID     string `json:"tag_id"`
	UserID    string `json:"user_id,omitempty"`
	CreatedAt int64  `json:"created_at"`
	IsDeleted bool   `json:"is_deleted,omitempty"`
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

// Entity type labels used in ConflictInfo and logs.
const (
	EntityWorkspace = "workspace"
	EntityNote      = "note"
	EntityFolder    = "folder"
	EntityTag       = "tag"
	EntitySnapshot  = "snapshot"
	EntityNoteTag   = "note_tag"
)

// SnapshotCap bounds snapshots per (note, workspace). Excess rows are
// evicted oldest-first by created_at.
const SnapshotCap = 20

// Title suffixes for conflict copies. The server-side copy is created under
// the keepBoth strategy; the client-side copy preserves a local edit that a
// keepServer or manualMerge resolution would otherwise discard.
const (
	ServerConflictSuffix = " (冲突副本-本地)"
	LocalConflictSuffix  = " (冲突副本 - 本地)"
)
