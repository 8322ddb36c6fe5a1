package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Rejoin the server after its data was wiped",
	Long: `reset re-baselines this device against the server's current account epoch.
By default local notes are kept and marked for re-upload on the next sync;
--drop-local erases the local copy instead, so the next sync starts from
whatever the server holds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		drop, _ := cmd.Flags().GetBool("drop-local")

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		client := newTransport(st)
		state, err := client.State(cmd.Context())
		if err != nil {
			return friendlySyncError(err)
		}

		if drop {
			n, err := st.DropLocalData(state.Epoch)
			if err != nil {
				return err
			}
			fmt.Printf("Dropped %d local row(s); the next sync starts from the server copy.\n", n)
		} else {
			if err := st.Rebaseline(state.Epoch); err != nil {
				return err
			}
			fmt.Println("Local notes kept and queued for re-upload; run 'calepin sync'.")
		}
		fmt.Printf("Rejoined at account epoch %d.\n", state.Epoch)
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("drop-local", false, "Erase local data instead of re-uploading it")
	rootCmd.AddCommand(resetCmd)
}
