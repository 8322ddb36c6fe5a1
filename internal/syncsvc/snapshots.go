package syncsvc

import (
	"context"
	"fmt"

	"github.com/calepin/calepin/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// pushSnapshots applies incoming snapshots bucketed per note, enforcing the
// per-(note, workspace) cap oldest-first. Re-pushed ids are deleted before
// counting so retries stay idempotent. A sweep after the upserts keeps the
// cap even when a single push carries more than a full bucket.
func (s *Service) pushSnapshots(ctx context.Context, tx pgx.Tx, sc *syncCtx, incoming []model.NoteSnapshot, resp *model.SyncResponse) error {
	if len(incoming) == 0 {
		return nil
	}

	type bucketKey struct {
		noteID string
		ws     string
	}
	buckets := make(map[bucketKey][]model.NoteSnapshot)
	var order []bucketKey
	for _, sn := range incoming {
		ws := sc.effectiveWS(sn.WorkspaceID)
		key := bucketKey{noteID: sn.NoteID}
		if ws != nil {
			key.ws = *ws
		}
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], sn)
	}

	for _, key := range order {
		bucket := buckets[key]
		ids := make([]string, 0, len(bucket))
		for _, sn := range bucket {
			ids = append(ids, sn.ID)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM note_snapshots WHERE user_id = $1 AND id = ANY($2)`,
			sc.userID, ids); err != nil {
			return fmt.Errorf("clear re-pushed snapshots: %w", err)
		}

		var ws *string
		if key.ws != "" {
			w := key.ws
			ws = &w
		}

		var current int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM note_snapshots
			 WHERE note_id = $1 AND user_id = $2
			   AND (workspace_id = $3 OR workspace_id IS NULL)`,
			key.noteID, sc.userID, ws).Scan(&current); err != nil {
			return fmt.Errorf("count snapshots for note %s: %w", key.noteID, err)
		}

		if excess := current + len(bucket) - model.SnapshotCap; excess > 0 {
			if err := s.evictOldestSnapshots(ctx, tx, sc, key.noteID, ws, excess); err != nil {
				return err
			}
		}

		for _, sn := range bucket {
			if err := s.pushSnapshot(ctx, tx, sc, sn, ws, resp); err != nil {
				return err
			}
		}

		// A bucket larger than the cap can only be trimmed after its rows
		// exist; the pre-eviction above only sees survivors.
		var after int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM note_snapshots
			 WHERE note_id = $1 AND user_id = $2
			   AND (workspace_id = $3 OR workspace_id IS NULL)`,
			key.noteID, sc.userID, ws).Scan(&after); err != nil {
			return fmt.Errorf("recount snapshots for note %s: %w", key.noteID, err)
		}
		if excess := after - model.SnapshotCap; excess > 0 {
			if err := s.evictOldestSnapshots(ctx, tx, sc, key.noteID, ws, excess); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) evictOldestSnapshots(ctx context.Context, tx pgx.Tx, sc *syncCtx, noteID string, ws *string, k int) error {
	_, err := tx.Exec(ctx, `
		DELETE FROM note_snapshots WHERE id IN (
			SELECT id FROM note_snapshots
			WHERE note_id = $1 AND user_id = $2
			  AND (workspace_id = $3 OR workspace_id IS NULL)
			ORDER BY created_at ASC
			LIMIT $4
		)`, noteID, sc.userID, ws, k)
	if err != nil {
		return fmt.Errorf("evict snapshots for note %s: %w", noteID, err)
	}
	return nil
}

func (s *Service) pushSnapshot(ctx context.Context, tx pgx.Tx, sc *syncCtx, sn model.NoteSnapshot, ws *string, resp *model.SyncResponse) error {
	var vs int64
	err := tx.QueryRow(ctx,
		`SELECT server_ver FROM note_snapshots
		 WHERE id = $1 AND user_id = $2
		   AND (workspace_id = $3 OR workspace_id IS NULL)
		 FOR UPDATE`, sn.ID, sc.userID, ws).Scan(&vs)
	exists := err == nil
	if err != nil && err != pgx.ErrNoRows {
		return fmt.Errorf("lock snapshot %s: %w", sn.ID, err)
	}

	if exists && model.Conflicting(vs, sn.ServerVer) {
		resp.Conflicts = append(resp.Conflicts, model.ConflictInfo{
			ID:            sn.ID,
			EntityType:    model.EntitySnapshot,
			LocalVersion:  sn.ServerVer,
			ServerVersion: vs,
			Title:         sn.Title,
		})
		return nil
	}

	// created_at is stamped at receipt: peers pull snapshots through a
	// created_at window, so a client-supplied creation time from before
	// their last sync would never propagate.
	tag, err := tx.Exec(ctx, `
		INSERT INTO note_snapshots (id, user_id, workspace_id, note_id, title,
			content, snapshot_name, is_deleted, deleted_at, created_at,
			updated_at, server_ver, device_id, updated_by_device)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			workspace_id      = EXCLUDED.workspace_id,
			note_id           = EXCLUDED.note_id,
			title             = EXCLUDED.title,
			content           = EXCLUDED.content,
			snapshot_name     = EXCLUDED.snapshot_name,
			is_deleted        = EXCLUDED.is_deleted,
			deleted_at        = EXCLUDED.deleted_at,
			updated_at        = EXCLUDED.updated_at,
			server_ver        = note_snapshots.server_ver + 1,
			device_id         = EXCLUDED.device_id,
			updated_by_device = EXCLUDED.updated_by_device
		WHERE note_snapshots.user_id = EXCLUDED.user_id`,
		sn.ID, sc.userID, ws, sn.NoteID, sn.Title,
		sn.Content, sn.SnapshotName, sn.IsDeleted, sn.DeletedAt,
		sc.now, sc.now, sn.ServerVer+1, sc.deviceID, sc.updatedBy)
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", sn.ID, err)
	}
	if tag.RowsAffected() == 0 {
		log.Ctx(ctx).Warn().Str("snapshot_id", sn.ID).Msg("snapshot id exists under another user, skipped")
		return nil
	}
	resp.PushedSnapshots++
	return nil
}
