// Package syncer drives the client side of a sync: collect the dirty set,
// post it, apply the response, settle dirty bits, update sync state. The
// session captured at the start is re-verified before every phase; a logout,
// account switch or workspace switch in between aborts with ErrSyncCancelled.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/calepin/calepin/internal/client/store"
	"github.com/calepin/calepin/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSyncCancelled aborts a sync whose session no longer matches the
	// local auth or workspace state.
	ErrSyncCancelled = errors.New("sync cancelled: session changed")

	// ErrSyncInFlight rejects a second concurrent sync in this process.
	ErrSyncInFlight = errors.New("another sync is already running")
)

// Sender posts one sync request. *transport.Client satisfies it.
type Sender interface {
	Sync(ctx context.Context, req *model.SyncRequest) (*model.SyncResponse, error)
}

// Options tune a Driver.
type Options struct {
	// Strategy picks the server-side conflict resolution. Zero means the
	// wire default, keepBoth.
	Strategy model.ConflictStrategy
	// Logger overrides the global logger.
	Logger *zerolog.Logger
}

// Driver runs sync pipelines against one local store and one server.
type Driver struct {
	store    *store.Store
	sender   Sender
	strategy model.ConflictStrategy
	logger   zerolog.Logger

	mu        sync.Mutex
	manual    atomic.Bool
	tickEvery time.Duration
}

// New builds a Driver.
func New(st *store.Store, sender Sender, opts Options) *Driver {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Driver{
		store:    st,
		sender:   sender,
		strategy: opts.Strategy,
		logger:   logger,
	}
}

// Report is what a finished sync presents to the user. Pulled is recomputed
// from the writes that actually landed locally, not the server's guess.
type Report struct {
	Status      model.SyncStatus
	LastSyncAt  int64
	Pushed      int
	Pulled      int
	Conflicts   []model.ConflictInfo
	CopiedNotes []string
	Duration    time.Duration
}

// session is the identity a sync runs under. Any change to it between
// phases invalidates the run.
type session struct {
	id          string
	userID      string
	workspaceID string
	deviceID    string
}

func (d *Driver) begin() (*session, error) {
	ua, err := d.store.Auth()
	if err != nil {
		return nil, err
	}
	deviceID, err := d.store.DeviceID()
	if err != nil {
		return nil, err
	}
	sess := &session{
		id:       uuid.NewString(),
		userID:   ua.UserID,
		deviceID: deviceID,
	}
	cur, err := d.store.CurrentWorkspace()
	if err == nil {
		sess.workspaceID = cur.ID
	} else if !errors.Is(err, store.ErrNoWorkspace) {
		return nil, err
	}
	return sess, nil
}

// verify is the per-phase checkpoint.
func (d *Driver) verify(sess *session) error {
	ua, err := d.store.Auth()
	if err != nil {
		if errors.Is(err, store.ErrNoAuth) {
			return fmt.Errorf("%w: signed out", ErrSyncCancelled)
		}
		return err
	}
	if ua.UserID != sess.userID {
		return fmt.Errorf("%w: account switched", ErrSyncCancelled)
	}
	wsID := ""
	cur, err := d.store.CurrentWorkspace()
	if err == nil {
		wsID = cur.ID
	} else if !errors.Is(err, store.ErrNoWorkspace) {
		return err
	}
	if wsID != sess.workspaceID {
		return fmt.Errorf("%w: workspace switched", ErrSyncCancelled)
	}
	return nil
}

// collector fills the entity slices of a request and reports which local
// row ids it included per entity.
type collector func(sess *session, req *model.SyncRequest) (map[string][]string, error)

// Sync runs the full pipeline for the current workspace.
func (d *Driver) Sync(ctx context.Context) (*Report, error) {
	return d.run(ctx, "full", d.collectWorkspace)
}

func (d *Driver) run(ctx context.Context, syncType string, collect collector) (*Report, error) {
	if !d.mu.TryLock() {
		return nil, ErrSyncInFlight
	}
	defer d.mu.Unlock()

	start := time.Now()
	sess, err := d.begin()
	if err != nil {
		return nil, err
	}
	logger := d.logger.With().
		Str("syncType", syncType).
		Str("sessionId", sess.id).
		Str("workspaceId", sess.workspaceID).
		Logger()

	report, err := d.pipeline(ctx, &logger, sess, collect)
	if err != nil {
		d.recordError(err)
		logger.Warn().Err(err).Dur("duration", time.Since(start)).Msg("sync failed")
		return nil, err
	}
	report.Duration = time.Since(start)
	logger.Info().
		Int("pushed", report.Pushed).
		Int("pulled", report.Pulled).
		Int("conflicts", len(report.Conflicts)).
		Dur("duration", report.Duration).
		Msg("sync finished")
	return report, nil
}

func (d *Driver) pipeline(ctx context.Context, logger *zerolog.Logger, sess *session, collect collector) (*Report, error) {
	if err := d.verify(sess); err != nil {
		return nil, err
	}
	st, err := d.store.SyncState()
	if err != nil {
		return nil, err
	}
	req := &model.SyncRequest{
		LastSyncAt:         st.LastSyncAt,
		SyncEpoch:          st.Epoch,
		WorkspaceID:        sess.workspaceID,
		DeviceID:           sess.deviceID,
		ConflictResolution: d.strategy,
	}
	pushed, err := collect(sess, req)
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Int("workspaces", len(req.Workspaces)).
		Int("notes", len(req.Notes)).
		Int("folders", len(req.Folders)).
		Int("tags", len(req.Tags)).
		Int("snapshots", len(req.Snapshots)).
		Int("noteTags", len(req.NoteTags)).
		Msg("dirty set collected")

	if err := d.verify(sess); err != nil {
		return nil, err
	}
	resp, err := d.sender.Sync(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := d.verify(sess); err != nil {
		return nil, err
	}
	report := &Report{
		Status:     resp.Status,
		LastSyncAt: resp.LastSyncAt,
		Pushed:     resp.PushedTotal,
		Conflicts:  resp.Conflicts,
	}
	failed := d.apply(logger, sess, req, resp, report)

	if err := d.verify(sess); err != nil {
		return nil, err
	}
	for entity, ids := range pushed {
		ids = without(ids, failed[entity])
		if err := d.store.ClearDirty(entity, ids, resp.LastSyncAt); err != nil {
			return nil, err
		}
	}

	if err := d.verify(sess); err != nil {
		return nil, err
	}
	pending, err := d.store.PendingCount()
	if err != nil {
		return nil, err
	}
	if err := d.store.SaveSyncState(&store.SyncState{
		LastSyncAt:    resp.LastSyncAt,
		Epoch:         resp.SyncEpoch,
		PendingCount:  pending,
		ConflictCount: len(resp.Conflicts),
	}); err != nil {
		return nil, err
	}

	// A fresh device syncing unbound adopts the pulled default workspace.
	if sess.workspaceID == "" {
		if err := d.store.AdoptCurrentWorkspace(); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// apply writes the response into the local store in entity order. Conflict
// copies come first, while the conflicted local rows still hold the edits
// the upserts are about to replace. Per-row failures are logged and reported
// back so their dirty bits survive for the next attempt.
func (d *Driver) apply(logger *zerolog.Logger, sess *session, req *model.SyncRequest, resp *model.SyncResponse, report *Report) map[string]map[string]bool {
	failed := map[string]map[string]bool{}
	markFailed := func(entity, id string, err error) {
		logger.Warn().Err(err).Str("entity", entity).Str("id", id).Msg("apply failed")
		if failed[entity] == nil {
			failed[entity] = map[string]bool{}
		}
		failed[entity][id] = true
	}

	if s := req.Strategy(); s == model.KeepServer || s == model.ManualMerge {
		for _, c := range resp.Conflicts {
			if c.EntityType != model.EntityNote {
				continue
			}
			copyID, err := d.store.ConflictCopyNote(c.ID)
			if err != nil {
				markFailed(model.EntityNote, c.ID, err)
				continue
			}
			if copyID != "" {
				report.CopiedNotes = append(report.CopiedNotes, copyID)
				logger.Info().Str("noteId", c.ID).Str("copyId", copyID).
					Msg("kept local edit as conflict copy")
			}
		}
	}

	var applied int
	for i := range resp.UpsertedWorkspaces {
		w := &resp.UpsertedWorkspaces[i]
		ok, err := d.store.ApplyWorkspace(w, resp.LastSyncAt)
		if err != nil {
			markFailed(model.EntityWorkspace, w.ID, err)
			continue
		}
		if ok {
			applied++
		}
	}
	for i := range resp.UpsertedNotes {
		n := &resp.UpsertedNotes[i]
		ok, err := d.store.ApplyNote(n, sess.workspaceID, resp.LastSyncAt)
		if err != nil {
			markFailed(model.EntityNote, n.ID, err)
			continue
		}
		if ok {
			applied++
		}
	}
	for i := range resp.UpsertedFolders {
		f := &resp.UpsertedFolders[i]
		ok, err := d.store.ApplyFolder(f, sess.workspaceID, resp.LastSyncAt)
		if err != nil {
			markFailed(model.EntityFolder, f.ID, err)
			continue
		}
		if ok {
			applied++
		}
	}
	for i := range resp.UpsertedTags {
		t := &resp.UpsertedTags[i]
		ok, err := d.store.ApplyTag(t, sess.workspaceID, resp.LastSyncAt)
		if err != nil {
			markFailed(model.EntityTag, t.ID, err)
			continue
		}
		if ok {
			applied++
		}
	}
	for i := range resp.UpsertedSnapshots {
		sn := &resp.UpsertedSnapshots[i]
		ok, err := d.store.ApplySnapshot(sn, sess.workspaceID, resp.LastSyncAt)
		if err != nil {
			markFailed(model.EntitySnapshot, sn.ID, err)
			continue
		}
		if ok {
			applied++
		}
	}
	for i := range resp.UpsertedNoteTags {
		r := &resp.UpsertedNoteTags[i]
		ok, err := d.store.ApplyNoteTag(r, sess.workspaceID)
		if err != nil {
			logger.Warn().Err(err).Str("noteId", r.NoteID).Str("tagId", r.TagID).
				Msg("apply note tag failed")
			continue
		}
		if ok {
			applied++
		}
	}

	tombstones := []struct {
		entity string
		ids    []string
	}{
		{model.EntityWorkspace, resp.DeletedWorkspaceIDs},
		{model.EntityNote, resp.DeletedNoteIDs},
		{model.EntityFolder, resp.DeletedFolderIDs},
		{model.EntityTag, resp.DeletedTagIDs},
	}
	for _, ts := range tombstones {
		for _, id := range ts.ids {
			if _, err := d.store.ApplyTombstone(ts.entity, id); err != nil {
				logger.Warn().Err(err).Str("entity", ts.entity).Str("id", id).
					Msg("apply tombstone failed")
			}
		}
	}

	report.Pulled = applied
	return failed
}

// recordError leaves the failure in sync_state without moving the
// watermark; the next sync repeats everything the failed one left behind.
func (d *Driver) recordError(err error) {
	st, rerr := d.store.SyncState()
	if rerr != nil {
		return
	}
	st.LastError = err.Error()
	if pending, perr := d.store.PendingCount(); perr == nil {
		st.PendingCount = pending
	}
	_ = d.store.SaveSyncState(st)
}

// collectWorkspace gathers the full dirty set of the session's workspace.
func (d *Driver) collectWorkspace(sess *session, req *model.SyncRequest) (map[string][]string, error) {
	var err error
	if req.Workspaces, err = d.store.DirtyWorkspaces(); err != nil {
		return nil, err
	}
	if req.Notes, err = d.store.DirtyNotes(sess.workspaceID); err != nil {
		return nil, err
	}
	if req.Folders, err = d.store.DirtyFolders(sess.workspaceID); err != nil {
		return nil, err
	}
	if req.Tags, err = d.store.DirtyTags(sess.workspaceID); err != nil {
		return nil, err
	}
	if req.Snapshots, err = d.store.DirtySnapshots(sess.workspaceID); err != nil {
		return nil, err
	}
	if req.NoteTags, err = d.store.RelationsForWorkspace(sess.workspaceID); err != nil {
		return nil, err
	}
	return pushedIDs(req), nil
}

// pushedIDs records which rows the request carries, per entity. Dirty-bit
// clearing is scoped to exactly these ids.
func pushedIDs(req *model.SyncRequest) map[string][]string {
	out := map[string][]string{}
	for _, w := range req.Workspaces {
		out[model.EntityWorkspace] = append(out[model.EntityWorkspace], w.ID)
	}
	for _, n := range req.Notes {
		out[model.EntityNote] = append(out[model.EntityNote], n.ID)
	}
	for _, f := range req.Folders {
		out[model.EntityFolder] = append(out[model.EntityFolder], f.ID)
	}
	for _, t := range req.Tags {
		out[model.EntityTag] = append(out[model.EntityTag], t.ID)
	}
	for _, sn := range req.Snapshots {
		out[model.EntitySnapshot] = append(out[model.EntitySnapshot], sn.ID)
	}
	return out
}

func without(ids []string, exclude map[string]bool) []string {
	if len(exclude) == 0 {
		return ids
	}
	kept := ids[:0]
	for _, id := range ids {
		if !exclude[id] {
			kept = append(kept, id)
		}
	}
	return kept
}
