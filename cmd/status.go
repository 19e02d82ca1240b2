package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jtmorrow/tick/internal/award"
	"github.com/jtmorrow/tick/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database overview",
	Long:  "Show issue, tag, and award counts for the local database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(ui.Out, "tick %s (%s) built %s\n", buildVersion, buildCommit, buildDate)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func statusRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	// Counts come straight from SQL so status reflects the durable state,
	// not the in-memory working set.
	total, err := s.CountIssues(ctx, nil)
	if err != nil {
		return err
	}
	done := true
	closed, err := s.CountIssues(ctx, &done)
	if err != nil {
		return err
	}
	tags, err := s.CountTags(ctx)
	if err != nil {
		return err
	}

	ui.Info("Database: %s", viper.GetString("db_path"))
	fmt.Fprintln(ui.Out)
	fmt.Fprintf(ui.Out, "  Issues:   %d open, %d closed, %d total\n", total-closed, closed, total)
	fmt.Fprintf(ui.Out, "  Tags:     %d\n", tags)

	c, err := getController()
	if err != nil {
		return err
	}
	awards, err := award.Load()
	if err != nil {
		return err
	}
	earned := award.Earned(awards, c)
	fmt.Fprintf(ui.Out, "  Awards:   %d of %d earned\n", len(earned), len(awards))
	if c.PremiumUnlocked() {
		fmt.Fprintf(ui.Out, "  Premium:  %s\n", output.Green("unlocked"))
	}

	return nil
}
