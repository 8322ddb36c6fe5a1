package syncsvc

import (
	"context"
	"fmt"

	"github.com/calepin/calepin/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// pushFolders writes incoming folders in dependency order: a folder is
// eligible once its parent is absent, already written in this sync, or
// already stored. Rows left after the passes converge are probable cycles or
// dangling parents; they are logged and left unapplied.
func (s *Service) pushFolders(ctx context.Context, tx pgx.Tx, sc *syncCtx, incoming []model.Folder, resp *model.SyncResponse) error {
	if len(incoming) == 0 {
		return nil
	}

	remaining := make([]model.Folder, len(incoming))
	copy(remaining, incoming)
	written := make(map[string]bool, len(incoming))

	for pass := 0; pass <= len(incoming) && len(remaining) > 0; pass++ {
		var deferred []model.Folder
		progressed := false

		for _, f := range remaining {
			ok, err := s.folderParentReady(ctx, tx, sc, f, written)
			if err != nil {
				return err
			}
			if !ok {
				deferred = append(deferred, f)
				continue
			}
			if err := s.pushFolder(ctx, tx, sc, f, resp); err != nil {
				return err
			}
			written[f.ID] = true
			progressed = true
		}

		remaining = deferred
		if !progressed {
			break
		}
	}

	if len(remaining) > 0 {
		ids := make([]string, 0, len(remaining))
		for _, f := range remaining {
			ids = append(ids, f.ID)
		}
		log.Ctx(ctx).Warn().
			Strs("folder_ids", ids).
			Msg("folders left unapplied, probable cycle or dangling parent")
	}
	return nil
}

func (s *Service) folderParentReady(ctx context.Context, tx pgx.Tx, sc *syncCtx, f model.Folder, written map[string]bool) (bool, error) {
	if f.ParentID == nil || *f.ParentID == "" {
		return true, nil
	}
	if written[*f.ParentID] {
		return true, nil
	}
	ws := sc.effectiveWS(f.WorkspaceID)
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM folders
			WHERE id = $1 AND user_id = $2
			  AND (workspace_id = $3 OR workspace_id IS NULL)
		 )`, *f.ParentID, sc.userID, ws).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probe folder parent %s: %w", *f.ParentID, err)
	}
	return exists, nil
}

// pushFolder applies one folder row, keep-server style on version conflicts.
func (s *Service) pushFolder(ctx context.Context, tx pgx.Tx, sc *syncCtx, f model.Folder, resp *model.SyncResponse) error {
	ws := sc.effectiveWS(f.WorkspaceID)

	var vs int64
	err := tx.QueryRow(ctx,
		`SELECT server_ver FROM folders
		 WHERE id = $1 AND user_id = $2
		 FOR UPDATE`, f.ID, sc.userID).Scan(&vs)
	exists := err == nil
	if err != nil && err != pgx.ErrNoRows {
		return fmt.Errorf("lock folder %s: %w", f.ID, err)
	}

	if exists && model.Conflicting(vs, f.ServerVer) {
		resp.Conflicts = append(resp.Conflicts, model.ConflictInfo{
			ID:            f.ID,
			EntityType:    model.EntityFolder,
			LocalVersion:  f.ServerVer,
			ServerVersion: vs,
			Title:         f.Name,
		})
		return nil
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO folders (id, user_id, workspace_id, name, parent_id, icon,
			color, sort_order, is_deleted, deleted_at, created_at, updated_at,
			server_ver, device_id, updated_by_device)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			workspace_id      = EXCLUDED.workspace_id,
			name              = EXCLUDED.name,
			parent_id         = EXCLUDED.parent_id,
			icon              = EXCLUDED.icon,
			color             = EXCLUDED.color,
			sort_order        = EXCLUDED.sort_order,
			is_deleted        = EXCLUDED.is_deleted,
			deleted_at        = EXCLUDED.deleted_at,
			updated_at        = EXCLUDED.updated_at,
			server_ver        = folders.server_ver + 1,
			device_id         = EXCLUDED.device_id,
			updated_by_device = EXCLUDED.updated_by_device
		WHERE folders.user_id = EXCLUDED.user_id`,
		f.ID, sc.userID, ws, f.Name, f.ParentID, f.Icon,
		f.Color, f.SortOrder, f.IsDeleted, f.DeletedAt,
		orNow(f.CreatedAt, sc.now), sc.now, f.ServerVer+1, sc.deviceID, sc.updatedBy)
	if err != nil {
		return fmt.Errorf("upsert folder %s: %w", f.ID, err)
	}
	if tag.RowsAffected() == 0 {
		log.Ctx(ctx).Warn().Str("folder_id", f.ID).Msg("folder id exists under another user, skipped")
		return nil
	}
	resp.PushedFolders++
	return nil
}
