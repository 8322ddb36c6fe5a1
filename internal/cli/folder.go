package cli

import (
	"fmt"

	"github.com/calepin/calepin/internal/model"
	"github.com/spf13/cobra"
)

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Organize notes into folders",
}

var folderAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if _, err := requireWorkspace(st); err != nil {
			return err
		}

		f := &model.Folder{Name: args[0]}
		if parent, _ := cmd.Flags().GetString("parent"); parent != "" {
			f.ParentID = &parent
		}
		if err := st.SaveFolder(f); err != nil {
			return err
		}
		fmt.Printf("Created folder %s\n", f.ID)
		return nil
	},
}

var folderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List folders in the current workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		ws, err := requireWorkspace(st)
		if err != nil {
			return err
		}

		folders, err := st.ListFolders(ws.ID)
		if err != nil {
			return err
		}
		if len(folders) == 0 {
			fmt.Println("No folders.")
			return nil
		}
		for _, f := range folders {
			parent := ""
			if f.ParentID != nil {
				parent = "  (in " + *f.ParentID + ")"
			}
			fmt.Printf("%s  %s%s\n", f.ID, f.Name, parent)
		}
		return nil
	},
}

var folderRmCmd = &cobra.Command{
	Use:   "rm <folder-id>",
	Short: "Delete a folder; notes inside keep their filing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteFolder(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted folder %s\n", args[0])
		return nil
	},
}

func init() {
	folderAddCmd.Flags().String("parent", "", "Parent folder id")
	folderCmd.AddCommand(folderAddCmd, folderListCmd, folderRmCmd)
	rootCmd.AddCommand(folderCmd)
}
