package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/calepin/calepin/internal/client/store"
	"github.com/spf13/cobra"
)

var autosyncCmd = &cobra.Command{
	Use:   "autosync",
	Short: "Background sync settings and runner",
}

var autosyncEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Turn the auto-sync timer on",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAutoSync(true)
	},
}

var autosyncDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Turn the auto-sync timer off",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAutoSync(false)
	},
}

func setAutoSync(enabled bool) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SetAutoSync(enabled); err != nil {
		return err
	}
	if enabled {
		minutes, err := st.SyncIntervalMinutes()
		if err != nil {
			return err
		}
		fmt.Printf("Auto-sync enabled, every %d minute(s)\n", minutes)
	} else {
		fmt.Println("Auto-sync disabled")
	}
	return nil
}

var autosyncIntervalCmd = &cobra.Command{
	Use:   "interval <minutes>",
	Short: "Set how often auto-sync runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := strconv.Atoi(args[0])
		if err != nil || minutes <= 0 {
			return fmt.Errorf("interval must be a positive number of minutes")
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.SetSetting(store.SettingSyncIntervalMinutes, args[0]); err != nil {
			return err
		}
		fmt.Printf("Auto-sync interval set to %d minute(s)\n", minutes)
		return nil
	},
}

var autosyncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the auto-sync loop in the foreground until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		d := newDriver(st)
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Println("Auto-sync running; Ctrl-C to stop.")
		if err := d.AutoSync(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Println("Stopped.")
		return nil
	},
}

func init() {
	autosyncCmd.AddCommand(autosyncEnableCmd, autosyncDisableCmd,
		autosyncIntervalCmd, autosyncRunCmd)
	rootCmd.AddCommand(autosyncCmd)
}
