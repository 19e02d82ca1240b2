package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jtmorrow/tick/internal/award"
	"github.com/jtmorrow/tick/internal/output"
)

var awardEarnedOnly bool

var awardCmd = &cobra.Command{
	Use:   "award",
	Short: "Show awards and progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		return awardListRun()
	},
}

var awardListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List awards",
	RunE: func(cmd *cobra.Command, args []string) error {
		return awardListRun()
	},
}

func init() {
	awardListCmd.Flags().BoolVar(&awardEarnedOnly, "earned", false, "Show only earned awards")
	awardCmd.AddCommand(awardListCmd)
	rootCmd.AddCommand(awardCmd)
}

func awardListRun() error {
	c, err := getController()
	if err != nil {
		return err
	}

	awards, err := award.Load()
	if err != nil {
		return fmt.Errorf("load awards: %w", err)
	}

	earned := 0
	table := ui.Table([]string{"", "Award", "Criterion", "Description"})
	for _, a := range awards {
		has := award.HasEarned(a, c)
		if has {
			earned++
		}
		if awardEarnedOnly && !has {
			continue
		}

		mark := " "
		name := a.Name
		if has {
			mark = output.Green("*")
			name = output.Green(name)
		}
		_ = table.Append([]string{
			mark,
			name,
			string(a.Criterion) + " " + strconv.Itoa(a.Value),
			a.Description,
		})
	}
	_ = table.Render()

	ui.Info("Earned %d of %d awards.", earned, len(awards))
	return nil
}
