package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jtmorrow/tick/internal/output"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage issue tags",
	Long:  "Create, list, rename, and delete tags for organizing issues.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagListRun()
	},
}

var tagListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagListRun()
	},
}

var tagCreateCmd = &cobra.Command{
	Use:     "create <name>",
	Aliases: []string{"add"},
	Short:   "Create a new tag",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagCreateRun(args[0])
	},
}

var tagRenameCmd = &cobra.Command{
	Use:   "rename <name> <new-name>",
	Short: "Rename a tag",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagRenameRun(args[0], args[1])
	},
}

var tagDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a tag (issues keep their other tags)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagDeleteRun(args[0])
	},
}

var tagAttachCmd = &cobra.Command{
	Use:   "attach <issue-id> <name>",
	Short: "Attach a tag to an issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagAttachRun(args[0], args[1], true)
	},
}

var tagDetachCmd = &cobra.Command{
	Use:   "detach <issue-id> <name>",
	Short: "Detach a tag from an issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagAttachRun(args[0], args[1], false)
	},
}

var tagMissingCmd = &cobra.Command{
	Use:   "missing <issue-id>",
	Short: "List tags not yet attached to an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagMissingRun(args[0])
	},
}

func init() {
	tagCmd.AddCommand(tagListCmd)
	tagCmd.AddCommand(tagCreateCmd)
	tagCmd.AddCommand(tagRenameCmd)
	tagCmd.AddCommand(tagDeleteCmd)
	tagCmd.AddCommand(tagAttachCmd)
	tagCmd.AddCommand(tagDetachCmd)
	tagCmd.AddCommand(tagMissingCmd)
	rootCmd.AddCommand(tagCmd)
}

func tagListRun() error {
	c, err := getController()
	if err != nil {
		return err
	}

	tags := c.AllTags()
	if len(tags) == 0 {
		ui.Info("No tags. Use 'tick tag create <name>' to create one.")
		return nil
	}

	table := ui.Table([]string{"Name", "Open issues"})
	for _, t := range tags {
		_ = table.Append([]string{
			output.Cyan(t.DisplayName()),
			fmt.Sprintf("%d", c.ActiveIssueCount(t.ID)),
		})
	}
	_ = table.Render()
	return nil
}

func tagCreateRun(name string) error {
	c, err := getController()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if _, ok := c.TagByName(name); ok {
		return fmt.Errorf("tag already exists: %s", name)
	}

	t := c.CreateTag(ctx)
	c.RenameTag(t.ID, name)
	if err := c.Save(ctx); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}

	ui.Success("Created tag: %s", output.Cyan(name))
	return nil
}

func tagRenameRun(name, newName string) error {
	c, err := getController()
	if err != nil {
		return err
	}

	t, ok := c.TagByName(name)
	if !ok {
		return fmt.Errorf("tag not found: %s", name)
	}
	if other, ok := c.TagByName(newName); ok && other.ID != t.ID {
		return fmt.Errorf("tag already exists: %s", newName)
	}

	c.RenameTag(t.ID, newName)
	if err := c.Save(context.Background()); err != nil {
		return fmt.Errorf("rename tag: %w", err)
	}

	ui.Success("Renamed tag %s to %s", name, output.Cyan(newName))
	return nil
}

func tagDeleteRun(name string) error {
	c, err := getController()
	if err != nil {
		return err
	}

	t, ok := c.TagByName(name)
	if !ok {
		return fmt.Errorf("tag not found: %s", name)
	}

	c.DeleteTag(t.ID)
	if err := c.Save(context.Background()); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}

	ui.Success("Deleted tag: %s", name)
	return nil
}

func tagAttachRun(issueID, name string, attach bool) error {
	c, err := getController()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue, err := findIssue(c, issueID)
	if err != nil {
		return err
	}

	t, ok := c.TagByName(name)
	if !ok {
		if !attach {
			return fmt.Errorf("tag not found: %s", name)
		}
		t = c.CreateTag(ctx)
		c.RenameTag(t.ID, name)
	}

	if attach {
		c.AttachTag(ctx, issue.ID, t.ID)
		ui.Success("Tagged %s with %s", shortID(issue.ID), output.Cyan(t.DisplayName()))
	} else {
		c.DetachTag(ctx, issue.ID, t.ID)
		ui.Success("Removed %s from %s", output.Cyan(t.DisplayName()), shortID(issue.ID))
	}
	return c.Save(ctx)
}

func tagMissingRun(issueID string) error {
	c, err := getController()
	if err != nil {
		return err
	}

	issue, err := findIssue(c, issueID)
	if err != nil {
		return err
	}

	missing := c.MissingTags(issue.ID)
	if len(missing) == 0 {
		ui.Info("Issue %s has every tag.", shortID(issue.ID))
		return nil
	}

	var names []string
	for _, t := range missing {
		names = append(names, t.DisplayName())
	}
	fmt.Fprintf(ui.Out, "%s\n", strings.Join(names, "\n"))
	return nil
}
