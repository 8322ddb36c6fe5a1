package syncsvc

import (
	"context"
	"fmt"

	"github.com/calepin/calepin/internal/model"
	"github.com/jackc/pgx/v5"
)

// pushNoteTags inserts incoming note-tag relations. The server path is
// insert-only with no version check; presence is the fact. The pushed
// counter reflects rows actually inserted, not rows offered, so duplicate
// offers from retries do not inflate it.
func (s *Service) pushNoteTags(ctx context.Context, tx pgx.Tx, sc *syncCtx, incoming []model.NoteTagRelation, resp *model.SyncResponse) error {
	for _, rel := range incoming {
		ws := sc.wsID

		tag, err := tx.Exec(ctx, `
			INSERT INTO note_tag_relations (note_id, tag_id, user_id, workspace_id,
				created_at, is_deleted, deleted_at)
			VALUES ($1, $2, $3, $4, $5, FALSE, NULL)
			ON CONFLICT (note_id, tag_id) DO NOTHING`,
			rel.NoteID, rel.TagID, sc.userID, ws, orNow(rel.CreatedAt, sc.now))
		if err != nil {
			return fmt.Errorf("insert note_tag (%s, %s): %w", rel.NoteID, rel.TagID, err)
		}
		resp.PushedNoteTags += int(tag.RowsAffected())
	}
	return nil
}
