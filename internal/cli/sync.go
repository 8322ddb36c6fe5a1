package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/calepin/calepin/internal/client/syncer"
	"github.com/calepin/calepin/internal/client/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync local changes with the server",
	Long: `Push every locally edited row of the current workspace, pull what other
devices wrote, and settle dirty bits. With --note, --folder, --tag or
--snapshot only that entity (plus what it depends on) is pushed; the pull
side is always complete.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		noteID, _ := cmd.Flags().GetString("note")
		folderID, _ := cmd.Flags().GetString("folder")
		tagID, _ := cmd.Flags().GetString("tag")
		snapshotID, _ := cmd.Flags().GetString("snapshot")

		scoped := 0
		for _, v := range []string{noteID, folderID, tagID, snapshotID} {
			if v != "" {
				scoped++
			}
		}
		if scoped > 1 {
			return fmt.Errorf("--note, --folder, --tag and --snapshot are mutually exclusive")
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		// Opportunistic compaction; a failure never blocks the sync.
		if purged, ran, err := st.CompactIfDue(); err != nil {
			log.Warn().Err(err).Msg("compaction skipped")
		} else if ran && purged > 0 {
			log.Info().Int64("purged", purged).Msg("compacted old tombstones")
		}

		d := newDriver(st)
		d.SetManual(true)
		defer d.SetManual(false)

		ctx := cmd.Context()
		var report *syncer.Report
		switch {
		case noteID != "":
			report, err = d.SyncNote(ctx, noteID)
		case folderID != "":
			report, err = d.SyncFolder(ctx, folderID)
		case tagID != "":
			report, err = d.SyncTag(ctx, tagID)
		case snapshotID != "":
			report, err = d.SyncSnapshot(ctx, snapshotID)
		default:
			report, err = d.Sync(ctx)
		}
		if err != nil {
			return friendlySyncError(err)
		}

		fmt.Printf("Synced: pushed %d, pulled %d (%s)\n",
			report.Pushed, report.Pulled, report.Duration.Round(time.Millisecond))
		for _, c := range report.Conflicts {
			title := c.Title
			if title == "" {
				title = c.ID
			}
			fmt.Printf("  conflict: %s %q (local v%d, server v%d)\n",
				c.EntityType, title, c.LocalVersion, c.ServerVersion)
		}
		for _, id := range report.CopiedNotes {
			fmt.Printf("  local edit kept as copy: %s\n", id)
		}
		return nil
	},
}

// friendlySyncError turns driver errors a user can act on into hints.
func friendlySyncError(err error) error {
	switch {
	case errors.Is(err, transport.ErrAuthRequired):
		return fmt.Errorf("authentication expired; run 'calepin auth login'")
	case errors.Is(err, syncer.ErrSyncCancelled):
		return fmt.Errorf("sync cancelled: the session changed mid-run, nothing was lost")
	case errors.Is(err, syncer.ErrSyncInFlight):
		return fmt.Errorf("a sync is already running")
	}
	var rate transport.ErrRateLimited
	if errors.As(err, &rate) {
		return fmt.Errorf("server is throttling this account, retry in %s", rate.RetryAfter)
	}
	var srvErr *transport.ServerError
	if errors.As(err, &srvErr) && srvErr.Code == "SYNC_IN_PROGRESS" {
		return fmt.Errorf("another device is syncing this account, try again shortly")
	}
	if errors.As(err, &srvErr) && srvErr.Code == "WORKSPACE_NOT_OWNED" {
		return fmt.Errorf("the current workspace belongs to a different account")
	}
	if errors.As(err, &srvErr) && srvErr.Code == "EPOCH_MISMATCH" {
		return fmt.Errorf("the server's data was wiped since this device last synced; run 'calepin reset'")
	}
	return err
}

func init() {
	syncCmd.Flags().String("note", "", "Sync one note and its tags, links and snapshots")
	syncCmd.Flags().String("folder", "", "Sync one folder subtree and the notes filed in it")
	syncCmd.Flags().String("tag", "", "Sync one tag")
	syncCmd.Flags().String("snapshot", "", "Sync one snapshot")
	rootCmd.AddCommand(syncCmd)
}
