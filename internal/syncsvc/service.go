// Package syncsvc implements the unified sync transaction: one request, one
// database transaction that absorbs the client's dirty set, resolves version
// conflicts, reads the pull window, and builds the response. Entity order is
// fixed (workspaces, notes, folders, tags, snapshots, relations) so that
// referential dependencies land before their dependents.
package syncsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calepin/calepin/internal/model"
	"github.com/calepin/calepin/internal/synclock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ErrWorkspaceNotOwned is returned when the requested workspace does not
// belong to the calling user or is deleted. Handlers map it to HTTP 403.
var ErrWorkspaceNotOwned = errors.New("workspace not owned by user")

// Service runs sync transactions against the authoritative store.
type Service struct {
	DB    *pgxpool.Pool
	Locks *synclock.Manager
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{DB: db, Locks: synclock.NewManager(db)}
}

// syncCtx carries per-call bookkeeping through push and pull.
type syncCtx struct {
	userID    string
	wsID      *string // bound workspace; nil covers pre-workspace legacy rows
	deviceID  string
	updatedBy string
	strategy  model.ConflictStrategy
	now       int64
}

// effectiveWS resolves the workspace a pushed row lands in: the row's own
// workspace when set, otherwise the request's bound workspace.
func (sc *syncCtx) effectiveWS(rowWS *string) *string {
	if rowWS != nil && *rowWS != "" {
		return rowWS
	}
	return sc.wsID
}

// Sync validates the workspace binding, takes the advisory lease, and runs
// push, pull, and partition inside a single transaction. Conflicts are not
// errors; they ride back in the response.
func (s *Service) Sync(ctx context.Context, userID, userAgent string, req *model.SyncRequest) (*model.SyncResponse, error) {
	started := time.Now()
	logger := log.Ctx(ctx).With().Str("user_id", userID).Logger()

	wsID, err := s.bindWorkspace(ctx, userID, req.WorkspaceID)
	if err != nil {
		return nil, err
	}

	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = "unknown"
	}

	lease, err := s.Locks.Acquire(ctx, userID, deviceID, wsID, synclock.DefaultTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Release on a fresh context so request cancellation cannot strand
		// the lease until the TTL.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		lease.Release(rctx)
	}()

	sc := &syncCtx{
		userID:    userID,
		wsID:      wsID,
		deviceID:  deviceID,
		updatedBy: fmt.Sprintf("%s (%s)", deviceID, userAgent),
		strategy:  req.Strategy(),
		now:       model.Now(),
	}

	resp, err := s.runTx(ctx, sc, req)
	dur := time.Since(started)
	if err != nil {
		logger.Error().Err(err).Dur("duration", dur).Msg("sync transaction failed")
		s.recordHistory(ctx, userID, "full", nil, dur, err)
		return nil, err
	}

	s.recordHistory(ctx, userID, "full", resp, dur, nil)
	logger.Info().
		Int("pushed", resp.PushedTotal).
		Int("pulled", resp.PulledTotal).
		Int("conflicts", len(resp.Conflicts)).
		Dur("duration", dur).
		Msg("sync completed")
	return resp, nil
}

func (s *Service) runTx(ctx context.Context, sc *syncCtx, req *model.SyncRequest) (*model.SyncResponse, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("begin sync tx: %w", err)
	}
	defer tx.Rollback(ctx)

	resp := newResponse(sc.now)

	// The epoch gate fences out devices that last synced before a wipe.
	// Fresh devices send zero and adopt; a device somehow ahead of the
	// server is let through, matching the fresh-device treatment.
	epoch, err := s.ensureEpoch(ctx, tx, sc.userID)
	if err != nil {
		return nil, err
	}
	if req.SyncEpoch != 0 && req.SyncEpoch < epoch {
		return nil, fmt.Errorf("%w: device at %d, account at %d",
			ErrEpochBehind, req.SyncEpoch, epoch)
	}
	resp.SyncEpoch = epoch

	if err := s.push(ctx, tx, sc, req, resp); err != nil {
		return nil, err
	}
	if err := s.pull(ctx, tx, sc, req, resp); err != nil {
		return nil, err
	}
	resp.FinalizeTotals()

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit sync tx: %w", err)
	}
	return resp, nil
}

// newResponse pre-allocates every slice so the wire always carries [] rather
// than null.
func newResponse(now int64) *model.SyncResponse {
	return &model.SyncResponse{
		ServerTime:          now,
		LastSyncAt:          now,
		UpsertedWorkspaces:  []model.Workspace{},
		UpsertedNotes:       []model.Note{},
		UpsertedFolders:     []model.Folder{},
		UpsertedTags:        []model.Tag{},
		UpsertedSnapshots:   []model.NoteSnapshot{},
		UpsertedNoteTags:    []model.NoteTagRelation{},
		DeletedWorkspaceIDs: []string{},
		DeletedNoteIDs:      []string{},
		DeletedFolderIDs:    []string{},
		DeletedTagIDs:       []string{},
		Conflicts:           []model.ConflictInfo{},
	}
}

// push applies the client's dirty set in the fixed entity order.
func (s *Service) push(ctx context.Context, tx pgx.Tx, sc *syncCtx, req *model.SyncRequest, resp *model.SyncResponse) error {
	if err := s.pushWorkspaces(ctx, tx, sc, req.Workspaces, resp); err != nil {
		return err
	}
	if err := s.pushNotes(ctx, tx, sc, req.Notes, resp); err != nil {
		return err
	}
	if err := s.pushFolders(ctx, tx, sc, req.Folders, resp); err != nil {
		return err
	}
	if err := s.pushTags(ctx, tx, sc, req.Tags, resp); err != nil {
		return err
	}
	if err := s.pushSnapshots(ctx, tx, sc, req.Snapshots, resp); err != nil {
		return err
	}
	return s.pushNoteTags(ctx, tx, sc, req.NoteTags, resp)
}

// bindWorkspace resolves the workspace the sync is scoped to. An explicit id
// must be owned and live; otherwise the user's default workspace is used,
// which may not exist for legacy data.
func (s *Service) bindWorkspace(ctx context.Context, userID, requested string) (*string, error) {
	if requested != "" {
		var id string
		err := s.DB.QueryRow(ctx,
			`SELECT id FROM workspaces
			 WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE`,
			requested, userID).Scan(&id)
		if err == pgx.ErrNoRows {
			return nil, ErrWorkspaceNotOwned
		}
		if err != nil {
			return nil, fmt.Errorf("verify workspace ownership: %w", err)
		}
		return &id, nil
	}

	var id string
	err := s.DB.QueryRow(ctx,
		`SELECT id FROM workspaces
		 WHERE user_id = $1 AND is_default AND is_deleted = FALSE
		 LIMIT 1`, userID).Scan(&id)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve default workspace: %w", err)
	}
	return &id, nil
}
