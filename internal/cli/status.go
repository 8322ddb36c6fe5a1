package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/calepin/calepin/internal/client/store"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state, pending edits and the current workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if ua, err := st.Auth(); errors.Is(err, store.ErrNoAuth) {
			fmt.Println("Account:   not logged in")
		} else if err != nil {
			return err
		} else {
			fmt.Printf("Account:   %s\n", ua.UserID)
		}

		if ws, err := st.CurrentWorkspace(); errors.Is(err, store.ErrNoWorkspace) {
			fmt.Println("Workspace: none selected")
		} else if err != nil {
			return err
		} else {
			fmt.Printf("Workspace: %s (%s)\n", ws.Name, ws.ID)
		}

		state, err := st.SyncState()
		if err != nil {
			return err
		}
		if state.LastSyncAt == 0 {
			fmt.Println("Last sync: never")
		} else {
			fmt.Printf("Last sync: %s\n", time.Unix(state.LastSyncAt, 0).Format(time.RFC3339))
		}

		pending, err := st.PendingCount()
		if err != nil {
			return err
		}
		fmt.Printf("Pending:   %d local edit(s)\n", pending)
		if state.ConflictCount > 0 {
			fmt.Printf("Conflicts: %d in the last sync\n", state.ConflictCount)
		}
		if state.LastError != "" {
			fmt.Printf("Last error: %s\n", state.LastError)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
