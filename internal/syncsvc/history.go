package syncsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/calepin/calepin/internal/model"
	"github.com/calepin/calepin/internal/syncx"
	"github.com/rs/zerolog/log"
)

// historyKeep bounds sync_history rows retained per user.
const historyKeep = 100

// recordHistory appends one audit row per sync call, success or failure.
// It runs outside the sync transaction and never fails the sync itself.
func (s *Service) recordHistory(ctx context.Context, userID, syncType string, resp *model.SyncResponse, dur time.Duration, syncErr error) {
	var pushed, pulled, conflicts int
	if resp != nil {
		pushed = resp.PushedTotal
		pulled = resp.PulledTotal
		conflicts = len(resp.Conflicts)
	}
	var errText *string
	if syncErr != nil {
		msg := syncErr.Error()
		errText = &msg
	}

	// The request context may already be cancelled on the error path.
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	_, err := s.DB.Exec(hctx, `
		INSERT INTO sync_history (user_id, sync_type, pushed_count, pulled_count,
			conflict_count, error, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		userID, syncType, pushed, pulled, conflicts, errText,
		dur.Milliseconds(), model.Now())
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to record sync history")
		return
	}

	_, err = s.DB.Exec(hctx, `
		DELETE FROM sync_history
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM sync_history
			WHERE user_id = $1
			ORDER BY id DESC
			LIMIT $2
		)`, userID, historyKeep)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to prune sync history")
	}
}

// History returns one page of the user's sync runs, newest first. cursor is
// an opaque position from a previous page; empty or malformed starts at the
// top. The returned cursor is empty on the last page.
func (s *Service) History(ctx context.Context, userID string, limit int, cursor string) ([]model.SyncHistoryEntry, string, error) {
	if limit <= 0 || limit > historyKeep {
		limit = historyKeep
	}
	after, _ := syncx.Decode(cursor)

	// Fetch one extra row to learn whether another page exists.
	rows, err := s.DB.Query(ctx, `
		SELECT id, sync_type, pushed_count, pulled_count, conflict_count,
			error, duration_ms, created_at
		FROM sync_history
		WHERE user_id = $1
			AND ($2::bigint = 0 OR (created_at, id) < ($2, $3))
		ORDER BY created_at DESC, id DESC
		LIMIT $4`, userID, after.CreatedAt, after.ID, limit+1)
	if err != nil {
		return nil, "", fmt.Errorf("query sync history: %w", err)
	}
	defer rows.Close()

	entries := []model.SyncHistoryEntry{}
	for rows.Next() {
		var e model.SyncHistoryEntry
		if err := rows.Scan(&e.ID, &e.SyncType, &e.PushedCount, &e.PulledCount,
			&e.ConflictCount, &e.Error, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, "", fmt.Errorf("scan sync history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	next := ""
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[limit-1]
		next = syncx.Encode(syncx.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return entries, next, nil
}
