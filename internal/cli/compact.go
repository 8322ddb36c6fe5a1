package cli

import (
	"fmt"
	"time"

	"github.com/calepin/calepin/internal/client/store"
	"github.com/spf13/cobra"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Purge tombstones older than the retention window",
	Long: `Physically remove rows that were deleted more than 30 days ago and have
had every chance to push their tombstone. Runs at most once a day unless
--force is given. The default workspace is never removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		force, _ := cmd.Flags().GetBool("force")
		var purged int64
		ran := true
		if force {
			purged, err = st.Compact(time.Now().Add(-store.CompactRetention).Unix())
		} else {
			purged, ran, err = st.CompactIfDue()
		}
		if err != nil {
			return err
		}
		if !ran {
			fmt.Println("Compaction already ran today; use --force to run anyway.")
			return nil
		}
		fmt.Printf("Purged %d row(s)\n", purged)
		return nil
	},
}

func init() {
	compactCmd.Flags().Bool("force", false, "Ignore the once-a-day gate")
	rootCmd.AddCommand(compactCmd)
}
