// Package synclock implements the advisory sync lease that serializes sync
// transactions per (user, workspace). The sync_locks table is the source of
// truth; the TTL is the correctness backstop when a holder dies without
// releasing.
package synclock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DefaultTTL bounds how long an unreleased lease blocks other devices.
const DefaultTTL = 30 * time.Second

// Lock hold reasons surfaced to clients inside the 409 body.
const (
	ReasonOtherWorkspace = "another workspace of this user is syncing"
	ReasonOtherDevice    = "another device is syncing"
)

// LockHeldError is returned when an acquire is refused. Handlers map it to
// HTTP 409 SYNC_IN_PROGRESS.
type LockHeldError struct {
	Reason string
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("sync already in progress: %s", e.Reason)
}

// Manager grants leases backed by the sync_locks table.
type Manager struct {
	DB *pgxpool.Pool
}

func NewManager(db *pgxpool.Pool) *Manager {
	return &Manager{DB: db}
}

// Lease is a held sync lock. Release is idempotent; an unreleased lease
// expires on its own after the TTL.
type Lease struct {
	ID        string
	UserID    string
	ExpiresAt int64

	mgr *Manager
}

// Acquire implements the lease contract:
//
//  1. Purge expired rows.
//  2. A live row for the same (user, device) extends in place, unless it is
//     bound to a different workspace.
//  3. A live row for the same (user, workspace) under another device refuses.
//  4. Otherwise insert. A unique index on (user_id, COALESCE(workspace_id,''))
//     turns insert races into refusals, so two devices can never both win.
//
// A null workspace counts as the same workspace as another null.
func (m *Manager) Acquire(ctx context.Context, userID, deviceID string, workspaceID *string, ttl time.Duration) (*Lease, error) {
	now := time.Now().Unix()
	expires := now + int64(ttl/time.Second)

	tx, err := m.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin lock tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM sync_locks WHERE expires_at < $1`, now); err != nil {
		return nil, fmt.Errorf("purge expired locks: %w", err)
	}

	// Same device already holds a lease.
	var lockID string
	var heldWS *string
	err = tx.QueryRow(ctx,
		`SELECT id, workspace_id FROM sync_locks
		 WHERE user_id = $1 AND device_id = $2 AND expires_at >= $3
		 LIMIT 1`, userID, deviceID, now).Scan(&lockID, &heldWS)
	switch {
	case err == nil:
		if !sameWorkspace(heldWS, workspaceID) {
			return nil, &LockHeldError{Reason: ReasonOtherWorkspace}
		}
		if _, err := tx.Exec(ctx,
			`UPDATE sync_locks SET expires_at = $1 WHERE id = $2`, expires, lockID); err != nil {
			return nil, fmt.Errorf("extend lock: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit lock tx: %w", err)
		}
		return &Lease{ID: lockID, UserID: userID, ExpiresAt: expires, mgr: m}, nil
	case err != pgx.ErrNoRows:
		return nil, fmt.Errorf("probe device lock: %w", err)
	}

	// Another device holds the same workspace.
	var other string
	err = tx.QueryRow(ctx,
		`SELECT device_id FROM sync_locks
		 WHERE user_id = $1
		   AND COALESCE(workspace_id, '') = COALESCE($2, '')
		   AND device_id <> $3
		   AND expires_at >= $4
		 LIMIT 1`, userID, workspaceID, deviceID, now).Scan(&other)
	switch {
	case err == nil:
		return nil, &LockHeldError{Reason: ReasonOtherDevice}
	case err != pgx.ErrNoRows:
		return nil, fmt.Errorf("probe workspace lock: %w", err)
	}

	lockID = uuid.NewString()
	tag, err := tx.Exec(ctx,
		`INSERT INTO sync_locks (id, user_id, device_id, workspace_id, acquired_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, (COALESCE(workspace_id, ''))) DO NOTHING`,
		lockID, userID, deviceID, workspaceID, now, expires)
	if err != nil {
		return nil, fmt.Errorf("insert lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Lost the insert race to a concurrent acquire.
		return nil, &LockHeldError{Reason: ReasonOtherDevice}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit lock tx: %w", err)
	}

	return &Lease{ID: lockID, UserID: userID, ExpiresAt: expires, mgr: m}, nil
}

// Release drops the lease. Safe to call more than once; a failed release is
// logged and left to the TTL.
func (l *Lease) Release(ctx context.Context) {
	if l == nil || l.mgr == nil {
		return
	}
	_, err := l.mgr.DB.Exec(ctx,
		`DELETE FROM sync_locks WHERE id = $1 AND user_id = $2`, l.ID, l.UserID)
	if err != nil {
		log.Warn().Err(err).Str("lock_id", l.ID).Msg("lock release failed, ttl will reclaim")
	}
}

func sameWorkspace(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
