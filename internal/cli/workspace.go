package cli

import (
	"errors"
	"fmt"

	"github.com/calepin/calepin/internal/client/store"
	"github.com/calepin/calepin/internal/model"
	"github.com/spf13/cobra"
)

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Aliases: []string{"ws"},
	Short:   "Manage workspaces",
}

var workspaceInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default workspace if none exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ws, err := st.EnsureDefaultWorkspace()
		if err != nil {
			return err
		}
		fmt.Printf("Workspace %q ready (%s)\n", ws.Name, ws.ID)
		return nil
	},
}

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		list, err := st.ListWorkspaces()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No workspaces. Run: calepin workspace init")
			return nil
		}
		current := ""
		if cur, err := st.CurrentWorkspace(); err == nil {
			current = cur.ID
		}
		for _, ws := range list {
			marker := " "
			if ws.ID == current {
				marker = "*"
			}
			suffix := ""
			if ws.IsDefault {
				suffix = " (default)"
			}
			fmt.Printf("%s %s  %s%s\n", marker, ws.ID, ws.Name, suffix)
		}
		return nil
	},
}

var workspaceUseCmd = &cobra.Command{
	Use:   "use <workspace-id>",
	Short: "Switch the current workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.UseWorkspace(args[0]); err != nil {
			if errors.Is(err, store.ErrNoWorkspace) {
				return fmt.Errorf("no workspace with id %s", args[0])
			}
			return err
		}
		fmt.Printf("Now using workspace %s\n", args[0])
		return nil
	},
}

var workspaceCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ws := &model.Workspace{Name: args[0]}
		if icon, _ := cmd.Flags().GetString("icon"); icon != "" {
			ws.Icon = icon
		}
		if color, _ := cmd.Flags().GetString("color"); color != "" {
			ws.Color = color
		}
		if err := st.SaveWorkspace(ws); err != nil {
			return err
		}
		if use, _ := cmd.Flags().GetBool("use"); use {
			if err := st.UseWorkspace(ws.ID); err != nil {
				return err
			}
		}
		fmt.Printf("Created workspace %s (%s)\n", ws.Name, ws.ID)
		return nil
	},
}

var workspaceDeleteCmd = &cobra.Command{
	Use:   "delete <workspace-id>",
	Short: "Delete a workspace (tombstoned until the next sync)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteWorkspace(args[0]); err != nil {
			if errors.Is(err, store.ErrDefaultWorkspace) {
				return fmt.Errorf("the default workspace cannot be deleted")
			}
			return err
		}
		fmt.Printf("Deleted workspace %s\n", args[0])
		return nil
	},
}

func init() {
	workspaceCreateCmd.Flags().String("icon", "", "Workspace icon")
	workspaceCreateCmd.Flags().String("color", "", "Workspace color")
	workspaceCreateCmd.Flags().Bool("use", false, "Switch to the new workspace")

	workspaceCmd.AddCommand(workspaceInitCmd, workspaceListCmd, workspaceUseCmd,
		workspaceCreateCmd, workspaceDeleteCmd)
	rootCmd.AddCommand(workspaceCmd)
}
