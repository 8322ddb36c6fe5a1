package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sync runs recorded by the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		all, _ := cmd.Flags().GetBool("all")

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		client := newTransport(st)

		printed := 0
		cursor := ""
		for {
			entries, next, err := client.History(cmd.Context(), limit, cursor)
			if err != nil {
				return friendlySyncError(err)
			}
			for _, e := range entries {
				when := time.Unix(e.CreatedAt, 0).Format("2006-01-02 15:04:05")
				if e.Error != nil {
					fmt.Printf("%s  %-8s failed: %s\n", when, e.SyncType, *e.Error)
					continue
				}
				line := fmt.Sprintf("%s  %-8s pushed %d, pulled %d", when, e.SyncType, e.PushedCount, e.PulledCount)
				if e.ConflictCount > 0 {
					line += fmt.Sprintf(", %d conflict(s)", e.ConflictCount)
				}
				fmt.Println(line)
			}
			printed += len(entries)
			if !all || next == "" {
				break
			}
			cursor = next
		}

		if printed == 0 {
			fmt.Println("No sync runs recorded yet.")
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Runs per page")
	historyCmd.Flags().Bool("all", false, "Keep paging until the server log runs out")
	rootCmd.AddCommand(historyCmd)
}
