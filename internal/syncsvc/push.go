package syncsvc

import (
	"context"
	"fmt"

	"github.com/calepin/calepin/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// pushWorkspaces applies incoming workspace rows. Workspaces resolve
// conflicts keep-server style, and the default workspace can be neither
// demoted nor tombstoned, whatever the payload says.
func (s *Service) pushWorkspaces(ctx context.Context, tx pgx.Tx, sc *syncCtx, incoming []model.Workspace, resp *model.SyncResponse) error {
	for _, w := range incoming {
		var vs int64
		var isDefault bool
		err := tx.QueryRow(ctx,
			`SELECT server_ver, is_default FROM workspaces
			 WHERE id = $1 AND user_id = $2
			 FOR UPDATE`, w.ID, sc.userID).Scan(&vs, &isDefault)
		exists := err == nil
		if err != nil && err != pgx.ErrNoRows {
			return fmt.Errorf("lock workspace %s: %w", w.ID, err)
		}

		if exists && model.Conflicting(vs, w.ServerVer) {
			resp.Conflicts = append(resp.Conflicts, model.ConflictInfo{
				ID:            w.ID,
				EntityType:    model.EntityWorkspace,
				LocalVersion:  w.ServerVer,
				ServerVersion: vs,
				Title:         w.Name,
			})
			continue
		}

		if exists && isDefault {
			w.IsDefault = true
			w.IsDeleted = false
			w.DeletedAt = nil
		}
		if w.IsDefault {
			// The established default wins over an incoming pretender.
			var clash bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (
					SELECT 1 FROM workspaces
					WHERE user_id = $1 AND is_default AND NOT is_deleted AND id <> $2
				 )`, sc.userID, w.ID).Scan(&clash); err != nil {
				return fmt.Errorf("probe default workspace: %w", err)
			}
			if clash {
				w.IsDefault = false
			}
		}

		created := w.CreatedAt
		if created == 0 {
			created = sc.now
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO workspaces (id, user_id, name, description, icon, color,
				is_default, sort_order, is_deleted, deleted_at,
				created_at, updated_at, server_ver, device_id, updated_by_device)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (id) DO UPDATE SET
				name              = EXCLUDED.name,
				description       = EXCLUDED.description,
				icon              = EXCLUDED.icon,
				color             = EXCLUDED.color,
				is_default        = EXCLUDED.is_default,
				sort_order        = EXCLUDED.sort_order,
				is_deleted        = EXCLUDED.is_deleted,
				deleted_at        = EXCLUDED.deleted_at,
				updated_at        = EXCLUDED.updated_at,
				server_ver        = workspaces.server_ver + 1,
				device_id         = EXCLUDED.device_id,
				updated_by_device = EXCLUDED.updated_by_device
			WHERE workspaces.user_id = EXCLUDED.user_id`,
			w.ID, sc.userID, w.Name, w.Description, w.Icon, w.Color,
			w.IsDefault, w.SortOrder, w.IsDeleted, w.DeletedAt,
			created, sc.now, w.ServerVer+1, sc.deviceID, sc.updatedBy)
		if err != nil {
			return fmt.Errorf("upsert workspace %s: %w", w.ID, err)
		}
		if tag.RowsAffected() == 0 {
			log.Ctx(ctx).Warn().Str("workspace_id", w.ID).Msg("workspace id exists under another user, skipped")
			continue
		}
		resp.PushedWorkspaces++
	}
	return nil
}

// pushNotes applies incoming note rows. Notes are the only entity that
// honors the request's conflict strategy.
func (s *Service) pushNotes(ctx context.Context, tx pgx.Tx, sc *syncCtx, incoming []model.Note, resp *model.SyncResponse) error {
	for _, n := range incoming {
		ws := sc.effectiveWS(n.WorkspaceID)

		var vs int64
		err := tx.QueryRow(ctx,
			`SELECT server_ver FROM notes
			 WHERE id = $1 AND user_id = $2
			   AND (workspace_id = $3 OR workspace_id IS NULL)
			 FOR UPDATE`, n.ID, sc.userID, ws).Scan(&vs)
		exists := err == nil
		if err != nil && err != pgx.ErrNoRows {
			return fmt.Errorf("lock note %s: %w", n.ID, err)
		}

		if exists && model.Conflicting(vs, n.ServerVer) {
			info := model.ConflictInfo{
				ID:            n.ID,
				EntityType:    model.EntityNote,
				LocalVersion:  n.ServerVer,
				ServerVersion: vs,
				Title:         n.Title,
			}
			switch sc.strategy {
			case model.KeepServer, model.ManualMerge:
				resp.Conflicts = append(resp.Conflicts, info)

			case model.KeepLocal:
				// The overwrite still has to land above the stored version.
				forced := max(n.ServerVer, vs) + 1
				if err := s.overwriteNote(ctx, tx, sc, n, ws, forced); err != nil {
					return err
				}
				resp.PushedNotes++

			default: // KeepBoth
				if err := s.insertConflictCopy(ctx, tx, sc, n, ws, vs); err != nil {
					return err
				}
				resp.Conflicts = append(resp.Conflicts, info)
			}
			continue
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO notes (id, user_id, workspace_id, title, content, excerpt,
				markdown_cache, folder_id, is_favorite, is_pinned, author,
				word_count, read_time_minutes, is_deleted, deleted_at,
				created_at, updated_at, server_ver, device_id, updated_by_device)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20)
			ON CONFLICT (id) DO UPDATE SET
				workspace_id      = EXCLUDED.workspace_id,
				title             = EXCLUDED.title,
				content           = EXCLUDED.content,
				excerpt           = EXCLUDED.excerpt,
				markdown_cache    = EXCLUDED.markdown_cache,
				folder_id         = EXCLUDED.folder_id,
				is_favorite       = EXCLUDED.is_favorite,
				is_pinned         = EXCLUDED.is_pinned,
				author            = EXCLUDED.author,
				word_count        = EXCLUDED.word_count,
				read_time_minutes = EXCLUDED.read_time_minutes,
				is_deleted        = EXCLUDED.is_deleted,
				deleted_at        = EXCLUDED.deleted_at,
				updated_at        = EXCLUDED.updated_at,
				server_ver        = notes.server_ver + 1,
				device_id         = EXCLUDED.device_id,
				updated_by_device = EXCLUDED.updated_by_device
			WHERE notes.user_id = EXCLUDED.user_id`,
			n.ID, sc.userID, ws, n.Title, n.Content, n.Excerpt,
			n.MarkdownCache, n.FolderID, n.IsFavorite, n.IsPinned, n.Author,
			n.WordCount, n.ReadTimeMinutes, n.IsDeleted, n.DeletedAt,
			orNow(n.CreatedAt, sc.now), sc.now, n.ServerVer+1, sc.deviceID, sc.updatedBy)
		if err != nil {
			return fmt.Errorf("upsert note %s: %w", n.ID, err)
		}
		if tag.RowsAffected() == 0 {
			log.Ctx(ctx).Warn().Str("note_id", n.ID).Msg("note id exists under another user, skipped")
			continue
		}
		resp.PushedNotes++
	}
	return nil
}

// overwriteNote is the keepLocal path: the incoming payload replaces the
// stored row at a version above both sides.
func (s *Service) overwriteNote(ctx context.Context, tx pgx.Tx, sc *syncCtx, n model.Note, ws *string, forced int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE notes SET
			workspace_id      = $3,
			title             = $4,
			content           = $5,
			excerpt           = $6,
			markdown_cache    = $7,
			folder_id         = $8,
			is_favorite       = $9,
			is_pinned         = $10,
			author            = $11,
			word_count        = $12,
			read_time_minutes = $13,
			is_deleted        = $14,
			deleted_at        = $15,
			updated_at        = $16,
			server_ver        = $17,
			device_id         = $18,
			updated_by_device = $19
		WHERE id = $1 AND user_id = $2`,
		n.ID, sc.userID, ws, n.Title, n.Content, n.Excerpt,
		n.MarkdownCache, n.FolderID, n.IsFavorite, n.IsPinned, n.Author,
		n.WordCount, n.ReadTimeMinutes, n.IsDeleted, n.DeletedAt,
		sc.now, forced, sc.deviceID, sc.updatedBy)
	if err != nil {
		return fmt.Errorf("overwrite note %s: %w", n.ID, err)
	}
	return nil
}

// insertConflictCopy materializes the keepBoth strategy: the losing local
// payload becomes a brand-new note at the server's version, so every peer
// pulls it as a regular row. The original is left untouched.
func (s *Service) insertConflictCopy(ctx context.Context, tx pgx.Tx, sc *syncCtx, n model.Note, ws *string, vs int64) error {
	copyID := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO notes (id, user_id, workspace_id, title, content, excerpt,
			markdown_cache, folder_id, is_favorite, is_pinned, author,
			word_count, read_time_minutes, is_deleted, deleted_at,
			created_at, updated_at, server_ver, device_id, updated_by_device)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20)`,
		copyID, sc.userID, ws, n.Title+model.ServerConflictSuffix, n.Content, n.Excerpt,
		n.MarkdownCache, n.FolderID, n.IsFavorite, n.IsPinned, n.Author,
		n.WordCount, n.ReadTimeMinutes, n.IsDeleted, n.DeletedAt,
		sc.now, sc.now, vs, sc.deviceID, sc.updatedBy)
	if err != nil {
		return fmt.Errorf("insert conflict copy of note %s: %w", n.ID, err)
	}
	return nil
}

// pushTags applies incoming tag rows, keep-server style on version conflicts.
// A live tag with the same name in the same scope also counts as a conflict;
// writing it would break the name uniqueness the clients rely on.
func (s *Service) pushTags(ctx context.Context, tx pgx.Tx, sc *syncCtx, incoming []model.Tag, resp *model.SyncResponse) error {
	for _, t := range incoming {
		ws := sc.effectiveWS(t.WorkspaceID)

		var vs int64
		err := tx.QueryRow(ctx,
			`SELECT server_ver FROM tags
			 WHERE id = $1 AND user_id = $2
			   AND (workspace_id = $3 OR workspace_id IS NULL)
			 FOR UPDATE`, t.ID, sc.userID, ws).Scan(&vs)
		exists := err == nil
		if err != nil && err != pgx.ErrNoRows {
			return fmt.Errorf("lock tag %s: %w", t.ID, err)
		}

		if exists && model.Conflicting(vs, t.ServerVer) {
			resp.Conflicts = append(resp.Conflicts, model.ConflictInfo{
				ID:            t.ID,
				EntityType:    model.EntityTag,
				LocalVersion:  t.ServerVer,
				ServerVersion: vs,
				Title:         t.Name,
			})
			continue
		}

		if !t.IsDeleted {
			var nameClash bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (
					SELECT 1 FROM tags
					WHERE user_id = $1
					  AND COALESCE(workspace_id, '') = COALESCE($2, '')
					  AND name = $3 AND NOT is_deleted AND id <> $4
				 )`, sc.userID, ws, t.Name, t.ID).Scan(&nameClash); err != nil {
				return fmt.Errorf("probe tag name %q: %w", t.Name, err)
			}
			if nameClash {
				resp.Conflicts = append(resp.Conflicts, model.ConflictInfo{
					ID:            t.ID,
					EntityType:    model.EntityTag,
					LocalVersion:  t.ServerVer,
					ServerVersion: vs,
					Title:         t.Name,
				})
				continue
			}
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO tags (id, user_id, workspace_id, name, color,
				is_deleted, deleted_at, created_at, updated_at, server_ver,
				device_id, updated_by_device)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO UPDATE SET
				workspace_id      = EXCLUDED.workspace_id,
				name              = EXCLUDED.name,
				color             = EXCLUDED.color,
				is_deleted        = EXCLUDED.is_deleted,
				deleted_at        = EXCLUDED.deleted_at,
				updated_at        = EXCLUDED.updated_at,
				server_ver        = tags.server_ver + 1,
				device_id         = EXCLUDED.device_id,
				updated_by_device = EXCLUDED.updated_by_device
			WHERE tags.user_id = EXCLUDED.user_id`,
			t.ID, sc.userID, ws, t.Name, t.Color,
			t.IsDeleted, t.DeletedAt, orNow(t.CreatedAt, sc.now), sc.now, t.ServerVer+1,
			sc.deviceID, sc.updatedBy)
		if err != nil {
			return fmt.Errorf("upsert tag %s: %w", t.ID, err)
		}
		if tag.RowsAffected() == 0 {
			log.Ctx(ctx).Warn().Str("tag_id", t.ID).Msg("tag id exists under another user, skipped")
			continue
		}
		resp.PushedTags++
	}
	return nil
}

func orNow(ts, now int64) int64 {
	if ts == 0 {
		return now
	}
	return ts
}
