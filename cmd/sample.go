package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jtmorrow/tick/internal/data"
	"github.com/jtmorrow/tick/internal/models"
)

var wipeForce bool

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Seed the database with sample issues and tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sampleRun()
	},
}

var wipeCmd = &cobra.Command{
	Use:   "wipe <issues|tags|all>",
	Short: "Delete every issue, every tag, or both",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return wipeRun(args[0])
	},
}

func init() {
	wipeCmd.Flags().BoolVar(&wipeForce, "force", false, "Skip confirmation")
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(wipeCmd)
}

// sampleSeed describes one sample issue.
type sampleSeed struct {
	title    string
	content  string
	priority models.IssuePriority
	done     bool
	tags     []string
}

var sampleSeeds = []sampleSeed{
	{title: "Water the plants", content: "Living room and balcony.", priority: models.IssuePriorityLow, tags: []string{"home"}},
	{title: "Renew passport", content: "Expires in three months.", priority: models.IssuePriorityHigh, tags: []string{"errands"}},
	{title: "Fix bike brakes", priority: models.IssuePriorityMedium, tags: []string{"home", "errands"}},
	{title: "Book dentist appointment", priority: models.IssuePriorityMedium, done: true, tags: []string{"errands"}},
	{title: "Read chapter 4", content: "Before Thursday's meetup.", priority: models.IssuePriorityLow, tags: []string{"reading"}},
	{title: "Plan weekend trip", priority: models.IssuePriorityMedium},
}

func sampleRun() error {
	c, err := getController()
	if err != nil {
		return err
	}
	ctx := context.Background()

	tagIDs := make(map[string]string)
	for _, seed := range sampleSeeds {
		issue := c.CreateIssue(ctx)
		c.SetTitle(issue.ID, seed.title)
		if seed.content != "" {
			c.SetContent(issue.ID, seed.content)
		}
		c.SetPriority(issue.ID, seed.priority)
		if seed.done {
			c.SetCompleted(issue.ID, true)
		}

		for _, name := range seed.tags {
			id, ok := tagIDs[name]
			if !ok {
				if t, found := c.TagByName(name); found {
					id = t.ID
				} else {
					t := c.CreateTag(ctx)
					c.RenameTag(t.ID, name)
					id = t.ID
				}
				tagIDs[name] = id
			}
			c.AttachTag(ctx, issue.ID, id)
		}
	}

	if err := c.Save(ctx); err != nil {
		return fmt.Errorf("save sample data: %w", err)
	}

	ui.Success("Seeded %d sample issues.", len(sampleSeeds))
	return nil
}

func wipeRun(what string) error {
	c, err := getController()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if !wipeForce {
		return fmt.Errorf("wipe is destructive; re-run with --force to confirm")
	}

	var issues, tags int64
	switch what {
	case "issues":
		issues, err = c.BatchDelete(ctx, data.KindIssue)
	case "tags":
		tags, err = c.BatchDelete(ctx, data.KindTag)
	case "all":
		if issues, err = c.BatchDelete(ctx, data.KindIssue); err == nil {
			tags, err = c.BatchDelete(ctx, data.KindTag)
		}
	default:
		return fmt.Errorf("wipe target must be issues, tags, or all (got %q)", what)
	}
	if err != nil {
		return fmt.Errorf("wipe %s: %w", what, err)
	}

	ui.Success("Deleted %d issues and %d tags.", issues, tags)
	return nil
}
