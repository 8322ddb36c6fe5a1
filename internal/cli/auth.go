package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/calepin/calepin/internal/client/store"
	"github.com/calepin/calepin/internal/client/transport"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the stored server identity",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store sync credentials for this device",
	Long: `Store sync credentials in the local database, sealed to this device.

Tokens issued by the account portal are passed directly:

  calepin auth login --user u-123 --email me@example.com \
      --access-token eyJ... --refresh-token eyJ...

Against a dev-mode server, --dev mints a pair without credentials:

  calepin auth login --dev --user u-123`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		email, _ := cmd.Flags().GetString("email")
		access, _ := cmd.Flags().GetString("access-token")
		refresh, _ := cmd.Flags().GetString("refresh-token")
		dev, _ := cmd.Flags().GetBool("dev")

		if user == "" {
			return fmt.Errorf("--user is required")
		}
		if dev {
			var err error
			access, refresh, err = transport.DevGrant(cmd.Context(), cfg.ServerURL, user)
			if err != nil {
				return fmt.Errorf("dev token grant: %w", err)
			}
		}
		if access == "" || refresh == "" {
			return fmt.Errorf("--access-token and --refresh-token are required (or --dev)")
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.SetTokens(user, email, access, refresh); err != nil {
			return fmt.Errorf("store credentials: %w", err)
		}
		fmt.Printf("Logged in as %s\n", user)
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ua, err := st.Auth()
		if errors.Is(err, store.ErrNoAuth) {
			fmt.Println("Not logged in. Run: calepin auth login")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("User:    %s\n", ua.UserID)
		if ua.Email != "" {
			fmt.Printf("Email:   %s\n", ua.Email)
		}
		fmt.Printf("Updated: %s\n", time.Unix(ua.UpdatedAt, 0).Format(time.RFC3339))
		deviceID, err := st.DeviceID()
		if err == nil {
			fmt.Printf("Device:  %s\n", deviceID)
		}
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.ClearAuth(); err != nil {
			return fmt.Errorf("clear credentials: %w", err)
		}
		fmt.Println("Logged out. Local notes are untouched.")
		return nil
	},
}

func init() {
	authLoginCmd.Flags().String("user", "", "User id the tokens belong to")
	authLoginCmd.Flags().String("email", "", "Account email (informational)")
	authLoginCmd.Flags().String("access-token", "", "Access token from the account portal")
	authLoginCmd.Flags().String("refresh-token", "", "Refresh token from the account portal")
	authLoginCmd.Flags().Bool("dev", false, "Mint tokens from a dev-mode server")

	authCmd.AddCommand(authLoginCmd, authStatusCmd, authLogoutCmd)
	rootCmd.AddCommand(authCmd)
}
