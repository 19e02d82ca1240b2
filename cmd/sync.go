package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jtmorrow/tick/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Exchange change sets with another tick database",
	Long: `Export the working set as a change set, or apply one.

Change sets are JSONL: one issue or tag record per line. On apply,
remote values merge field by field; fields with unsaved local edits
keep the local value.`,
}

var syncExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write all issues and tags as a change set (default stdout)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		return syncExportRun(path)
	},
}

var syncApplyCmd = &cobra.Command{
	Use:   "apply <file>",
	Short: "Merge a change set into the local database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return syncApplyRun(args[0])
	},
}

func init() {
	syncCmd.AddCommand(syncExportCmd)
	syncCmd.AddCommand(syncApplyCmd)
	rootCmd.AddCommand(syncCmd)
}

func syncExportRun(path string) error {
	c, err := getController()
	if err != nil {
		return err
	}

	// Flush pending edits so the export reflects the working set.
	if err := c.Save(context.Background()); err != nil {
		return fmt.Errorf("flush before export: %w", err)
	}

	var w io.Writer = ui.Out
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := sync.WriteChangeSet(w, c.AllIssues(), c.IssueTags, c.AllTags()); err != nil {
		return fmt.Errorf("write change set: %w", err)
	}

	if path != "" {
		ui.Success("Exported %d issues and %d tags to %s", c.IssueCount(), c.TagCount(), path)
	}
	return nil
}

func syncApplyRun(path string) error {
	c, err := getController()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open change set: %w", err)
	}
	defer f.Close()

	cs, err := sync.ReadChangeSet(f)
	if err != nil {
		return fmt.Errorf("read change set: %w", err)
	}
	if cs.Empty() {
		ui.Info("Change set is empty; nothing to do.")
		return nil
	}

	r := sync.NewReconciler(c, nil)
	res := r.Apply(context.Background(), cs)

	ui.Success("Merged change set: %d created, %d updated, %d deleted", res.Created, res.Updated, res.Deleted)
	if res.Conflicts > 0 {
		ui.Warning("%d fields kept local edits over remote values", res.Conflicts)
	}
	return nil
}
