package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Permanently delete the server's copy of all synced data",
	Long: `wipe erases every note, folder, tag, snapshot and workspace the account
has on the server and bumps the account epoch. Devices that synced before the
wipe are fenced out until they run 'calepin reset'. Local data on this device
is not touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if _, err := st.Auth(); err != nil {
			return fmt.Errorf("not logged in; run 'calepin auth login' first")
		}

		if !yes {
			fmt.Print("This permanently deletes the server's copy of every synced note.\nType WIPE to continue: ")
			scanner := bufio.NewScanner(cmd.InOrStdin())
			if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "WIPE" {
				return errors.New("wipe aborted")
			}
		}

		deviceID, err := st.DeviceID()
		if err != nil {
			return err
		}
		client := newTransport(st)
		result, err := client.Wipe(cmd.Context(), deviceID)
		if err != nil {
			return friendlySyncError(err)
		}

		total := 0
		for _, n := range result.Deleted {
			total += n
		}
		fmt.Printf("Server data wiped: %d row(s) deleted, account epoch is now %d.\n", total, result.Epoch)
		fmt.Println("Every device, this one included, must run 'calepin reset' before its next sync.")
		return nil
	},
}

func init() {
	wipeCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(wipeCmd)
}
