package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/calepin/calepin/internal/model"
	"github.com/spf13/cobra"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Work with notes in the current workspace",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a note",
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

		n := &model.Note{Title: args[0]}
		if content, _ := cmd.Flags().GetString("content"); content != "" {
			n.Content = content
		}
		if folder, _ := cmd.Flags().GetString("folder"); folder != "" {
			n.FolderID = &folder
		}
		if err := st.SaveNote(n); err != nil {
			return err
		}
		fmt.Printf("Created note %s\n", n.ID)
		return nil
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes in the current workspace",
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

		notes, err := st.ListNotes(ws.ID)
		if err != nil {
			return err
		}
		if len(notes) == 0 {
			fmt.Println("No notes.")
			return nil
		}
		for _, n := range notes {
			pin := " "
			if n.IsPinned {
				pin = "^"
			}
			tags, _ := st.TagsForNote(n.ID)
			names := make([]string, 0, len(tags))
			for _, t := range tags {
				names = append(names, "#"+t.Name)
			}
			line := fmt.Sprintf("%s %s  %s", pin, n.ID, n.Title)
			if len(names) > 0 {
				line += "  " + strings.Join(names, " ")
			}
			fmt.Printf("%s  (%s)\n", line, time.Unix(n.UpdatedAt, 0).Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var noteRmCmd = &cobra.Command{
	Use:   "rm <note-id>",
	Short: "Delete a note (tombstoned until the next sync)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteNote(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted note %s\n", args[0])
		return nil
	},
}

var noteTagCmd = &cobra.Command{
	Use:   "tag <note-id> <tag-name>",
	Short: "Attach a tag, creating it on first use",
	Args:  cobra.ExactArgs(2),
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

		noteID, name := args[0], args[1]
		tag, err := st.TagByName(ws.ID, name)
		if err != nil {
			return err
		}
		if tag == nil {
			tag = &model.Tag{Name: name}
			if err := st.SaveTag(tag); err != nil {
				return err
			}
		}
		if err := st.TagNote(noteID, tag.ID); err != nil {
			return err
		}
		fmt.Printf("Tagged %s with #%s\n", noteID, name)
		return nil
	},
}

var noteUntagCmd = &cobra.Command{
	Use:   "untag <note-id> <tag-name>",
	Short: "Detach a tag from a note",
	Args:  cobra.ExactArgs(2),
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

		noteID, name := args[0], args[1]
		tag, err := st.TagByName(ws.ID, name)
		if err != nil {
			return err
		}
		if tag == nil {
			return fmt.Errorf("no tag named %q", name)
		}
		if err := st.UntagNote(noteID, tag.ID); err != nil {
			return err
		}
		fmt.Printf("Untagged %s from #%s\n", noteID, name)
		return nil
	},
}

var noteSnapshotCmd = &cobra.Command{
	Use:   "snapshot <note-id>",
	Short: "Freeze the note's current title and content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		name, _ := cmd.Flags().GetString("name")
		sn, err := st.CreateSnapshot(args[0], name)
		if err != nil {
			return err
		}
		fmt.Printf("Snapshot %s created\n", sn.ID)
		return nil
	},
}

var noteSnapshotsCmd = &cobra.Command{
	Use:   "snapshots <note-id>",
	Short: "List the note's snapshots, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		snaps, err := st.ListSnapshots(args[0])
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No snapshots.")
			return nil
		}
		for _, sn := range snaps {
			name := sn.SnapshotName
			if name == "" {
				name = sn.Title
			}
			fmt.Printf("%s  %s  (%s)\n", sn.ID, name,
				time.Unix(sn.CreatedAt, 0).Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var noteRestoreCmd = &cobra.Command{
	Use:   "restore <snapshot-id>",
	Short: "Write a snapshot's title and content back onto its note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.RestoreSnapshot(args[0]); err != nil {
			return err
		}
		fmt.Printf("Restored snapshot %s\n", args[0])
		return nil
	},
}

func init() {
	noteAddCmd.Flags().String("content", "", "Note body")
	noteAddCmd.Flags().String("folder", "", "Folder id to file the note under")
	noteSnapshotCmd.Flags().String("name", "", "Snapshot label")

	noteCmd.AddCommand(noteAddCmd, noteListCmd, noteRmCmd, noteTagCmd,
		noteUntagCmd, noteSnapshotCmd, noteSnapshotsCmd, noteRestoreCmd)
	rootCmd.AddCommand(noteCmd)
}
