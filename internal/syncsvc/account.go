package syncsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calepin/calepin/internal/model"
	"github.com/calepin/calepin/internal/synclock"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// ErrEpochBehind rejects a sync whose device last saw a pre-wipe epoch.
// Handlers map it to HTTP 409 EPOCH_MISMATCH; the device needs a reset
// before it may sync again.
var ErrEpochBehind = errors.New("device sync epoch is behind the account epoch")

// wipeTables lists every entity table a wipe empties, children first.
var wipeTables = []string{
	"note_tag_relations",
	"note_snapshots",
	"notes",
	"tags",
	"folders",
	"workspaces",
}

// ensureEpoch lazily creates the account row on first sync and returns the
// current epoch.
func (s *Service) ensureEpoch(ctx context.Context, tx pgx.Tx, userID string) (int64, error) {
	var epoch int64
	err := tx.QueryRow(ctx, `
		INSERT INTO account_state (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING epoch`, userID).Scan(&epoch)
	if err == pgx.ErrNoRows {
		// The fallback reads through the pool: a repeatable-read snapshot
		// opened before a concurrent first sync committed cannot see the row
		// it just conflicted with.
		err = s.DB.QueryRow(ctx,
			`SELECT epoch FROM account_state WHERE user_id = $1`, userID).Scan(&epoch)
	}
	if err != nil {
		return 0, fmt.Errorf("load account epoch: %w", err)
	}
	return epoch, nil
}

// State reports the account's current epoch and last wipe. Accounts that
// never synced sit at the implicit first epoch.
func (s *Service) State(ctx context.Context, userID string) (*model.AccountState, error) {
	st := &model.AccountState{Epoch: 1}
	var wipedAt *int64
	err := s.DB.QueryRow(ctx,
		`SELECT epoch, wiped_at, wiped_by FROM account_state WHERE user_id = $1`,
		userID).Scan(&st.Epoch, &wipedAt, &st.WipedBy)
	if err == pgx.ErrNoRows {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load account state: %w", err)
	}
	if wipedAt != nil {
		st.WipedAt = *wipedAt
	}
	return st, nil
}

// Wipe deletes every synced row the user owns and bumps the account epoch so
// devices that synced before the wipe fail their next epoch check instead of
// silently re-uploading the data. The wipe holds the unbound sync lease and
// refuses while any other device holds one; a lease taken after that check
// can still race the deletes, in which case the racing device fails the
// epoch gate on its next sync and a reset re-seeds it.
func (s *Service) Wipe(ctx context.Context, userID, deviceID string) (*model.WipeResult, error) {
	started := time.Now()
	if deviceID == "" {
		deviceID = "unknown"
	}

	lease, err := s.Locks.Acquire(ctx, userID, deviceID, nil, synclock.DefaultTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		lease.Release(rctx)
	}()

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin wipe tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var busy bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sync_locks
			WHERE user_id = $1 AND id <> $2 AND expires_at >= $3
		)`, userID, lease.ID, time.Now().Unix()).Scan(&busy); err != nil {
		return nil, fmt.Errorf("probe live leases: %w", err)
	}
	if busy {
		return nil, &synclock.LockHeldError{Reason: synclock.ReasonOtherDevice}
	}

	now := model.Now()
	var epoch int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO account_state (user_id, epoch, wiped_at, wiped_by)
		VALUES ($1, 2, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			epoch    = account_state.epoch + 1,
			wiped_at = EXCLUDED.wiped_at,
			wiped_by = EXCLUDED.wiped_by
		RETURNING epoch`, userID, now, deviceID).Scan(&epoch); err != nil {
		return nil, fmt.Errorf("bump account epoch: %w", err)
	}

	deleted := make(map[string]int, len(wipeTables))
	for _, table := range wipeTables {
		var n int
		if err := tx.QueryRow(ctx, `
			WITH gone AS (
				DELETE FROM `+table+` WHERE user_id = $1 RETURNING 1
			)
			SELECT COUNT(*) FROM gone`, userID).Scan(&n); err != nil {
			return nil, fmt.Errorf("wipe %s: %w", table, err)
		}
		deleted[table] = n
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit wipe tx: %w", err)
	}

	s.recordHistory(ctx, userID, "wipe", nil, time.Since(started), nil)
	log.Ctx(ctx).Warn().
		Str("user_id", userID).
		Str("device_id", deviceID).
		Int64("epoch", epoch).
		Interface("deleted", deleted).
		Msg("account wiped")
	return &model.WipeResult{Epoch: epoch, Deleted: deleted}, nil
}
