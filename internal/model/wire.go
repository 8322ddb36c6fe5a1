package model

import "time"

// ConflictStrategy selects how the server resolves a version conflict on a
// pushed note. Other entities always behave like KeepServer.
type ConflictStrategy string

const (
	KeepBoth    ConflictStrategy = "keepBoth"
	KeepServer  ConflictStrategy = "keepServer"
	KeepLocal   ConflictStrategy = "keepLocal"
	ManualMerge ConflictStrategy = "manualMerge"
)

// Valid reports whether s is one of the four wire values.
func (s ConflictStrategy) Valid() bool {
	switch s {
	case KeepBoth, KeepServer, KeepLocal, ManualMerge:
		return true
	}
	return false
}

// SyncStatus is the top-level outcome of a sync call. Conflicts are not
// failures; they downgrade success to partial_success.
type SyncStatus string

const (
	StatusSuccess        SyncStatus = "success"
	StatusPartialSuccess SyncStatus = "partial_success"
	StatusError          SyncStatus = "error"
)

// SyncRequest is the body of POST /sync. All entity slices are optional; an
// absent slice means the client has nothing dirty for that table. SyncEpoch
// is the account epoch the device last saw; zero means a fresh device that
// adopts whatever the server answers.
type SyncRequest struct {
	LastSyncAt         int64             `json:"last_sync_at,omitempty"`
	SyncEpoch          int64             `json:"sync_epoch,omitempty"`
	WorkspaceID        string            `json:"workspace_id,omitempty"`
	DeviceID           string            `json:"device_id,omitempty"`
	ConflictResolution ConflictStrategy  `json:"conflict_resolution,omitempty"`
	Workspaces         []Workspace       `json:"workspaces,omitempty"`
	Notes              []Note            `json:"notes,omitempty"`
	Folders            []Folder          `json:"folders,omitempty"`
	Tags               []Tag             `json:"tags,omitempty"`
	Snapshots          []NoteSnapshot    `json:"snapshots,omitempty"`
	NoteTags           []NoteTagRelation `json:"note_tags,omitempty"`
}

// Strategy returns the requested conflict resolution, defaulting to KeepBoth
// when the field is absent or unknown.
func (r *SyncRequest) Strategy() ConflictStrategy {
	if r.ConflictResolution.Valid() {
		return r.ConflictResolution
	}
	return KeepBoth
}

// Empty reports whether the request pushes nothing (a pull-only sync).
func (r *SyncRequest) Empty() bool {
	return len(r.Workspaces) == 0 && len(r.Notes) == 0 && len(r.Folders) == 0 &&
		len(r.Tags) == 0 && len(r.Snapshots) == 0 && len(r.NoteTags) == 0
}

// ConflictInfo reports one version conflict detected during push. The row
// identified by ID was NOT overwritten (except under keepLocal).
type ConflictInfo struct {
	ID            string `json:"id"`
	EntityType    string `json:"entity_type"`
	LocalVersion  int64  `json:"local_version"`
	ServerVersion int64  `json:"server_version"`
	Title         string `json:"title,omitempty"`
}

// SyncResponse is the body of a successful POST /sync. Upserted slices carry
// full rows; deleted lists carry tombstone ids. Pushed counts are
// server-accepted writes; pulled counts subtract ids the client itself
// pushed, so "pulled" means "new to this client".
type SyncResponse struct {
	Status     SyncStatus `json:"status"`
	ServerTime int64      `json:"server_time"`
	LastSyncAt int64      `json:"last_sync_at"`
	SyncEpoch  int64      `json:"sync_epoch"`

	UpsertedWorkspaces []Workspace       `json:"upserted_workspaces"`
	UpsertedNotes      []Note            `json:"upserted_notes"`
	UpsertedFolders    []Folder          `json:"upserted_folders"`
	UpsertedTags       []Tag             `json:"upserted_tags"`
	UpsertedSnapshots  []NoteSnapshot    `json:"upserted_snapshots"`
	UpsertedNoteTags   []NoteTagRelation `json:"upserted_note_tags"`

	DeletedWorkspaceIDs []string `json:"deleted_workspace_ids"`
	DeletedNoteIDs      []string `json:"deleted_note_ids"`
	DeletedFolderIDs    []string `json:"deleted_folder_ids"`
	DeletedTagIDs       []string `json:"deleted_tag_ids"`

	PushedWorkspaces int `json:"pushed_workspaces"`
	PushedNotes      int `json:"pushed_notes"`
	PushedFolders    int `json:"pushed_folders"`
	PushedTags       int `json:"pushed_tags"`
	PushedSnapshots  int `json:"pushed_snapshots"`
	PushedNoteTags   int `json:"pushed_note_tags"`
	PushedTotal      int `json:"pushed_total"`

	PulledWorkspaces int `json:"pulled_workspaces"`
	PulledNotes      int `json:"pulled_notes"`
	PulledFolders    int `json:"pulled_folders"`
	PulledTags       int `json:"pulled_tags"`
	PulledSnapshots  int `json:"pulled_snapshots"`
	PulledNoteTags   int `json:"pulled_note_tags"`
	PulledTotal      int `json:"pulled_total"`

	Conflicts []ConflictInfo `json:"conflicts"`
}

// FinalizeTotals sums the per-entity counters and settles Status from the
// conflict list. Call once after push and pull are both complete.
func (r *SyncResponse) FinalizeTotals() {
	r.PushedTotal = r.PushedWorkspaces + r.PushedNotes + r.PushedFolders +
		r.PushedTags + r.PushedSnapshots + r.PushedNoteTags
	r.PulledTotal = r.PulledWorkspaces + r.PulledNotes + r.PulledFolders +
		r.PulledTags + r.PulledSnapshots + r.PulledNoteTags
	if len(r.Conflicts) > 0 {
		r.Status = StatusPartialSuccess
	} else {
		r.Status = StatusSuccess
	}
}

// SyncHistoryEntry is one recorded sync run, newest first on the wire.
type SyncHistoryEntry struct {
	ID            int64   `json:"id"`
	SyncType      string  `json:"sync_type"`
	PushedCount   int     `json:"pushed_count"`
	PulledCount   int     `json:"pulled_count"`
	ConflictCount int     `json:"conflict_count"`
	Error         *string `json:"error,omitempty"`
	DurationMs    int64   `json:"duration_ms"`
	CreatedAt     int64   `json:"created_at"`
}

// AccountState is the server's per-account sync bookkeeping: the current
// epoch, and when and by which device the account was last wiped.
type AccountState struct {
	Epoch   int64  `json:"epoch"`
	WipedAt int64  `json:"wiped_at,omitempty"`
	WipedBy string `json:"wiped_by,omitempty"`
}

// WipeResult reports a completed account wipe: the bumped epoch that fences
// out stale devices, and how many rows each table lost.
type WipeResult struct {
	Epoch   int64          `json:"epoch"`
	Deleted map[string]int `json:"deleted"`
}

// Conflicting implements the version rule used on every push: the stored row
// wins a conflict check iff its version is strictly greater than the
// client's expected version. verClient == 0 with no stored row is a create.
func Conflicting(verServer, verClient int64) bool {
	return verServer > verClient
}

// Now is the wall clock used for sync timestamps, unix seconds.
func Now() int64 {
	return time.Now().Unix()
}
