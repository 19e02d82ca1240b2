package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jtmorrow/tick/internal/models"
	"github.com/jtmorrow/tick/internal/output"
	"github.com/jtmorrow/tick/internal/query"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "List saved filters",
	Long: `List the saved filters with live issue counts.

"All" and "Recent" are built in; every tag contributes one filter
scoped to its issues. Use a filter name with 'tick issue list --filter'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return filterListRun()
	},
}

var filterListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return filterListRun()
	},
}

func init() {
	filterCmd.AddCommand(filterListCmd)
	rootCmd.AddCommand(filterCmd)
}

func filterListRun() error {
	c, err := getController()
	if err != nil {
		return err
	}

	filters := []models.Filter{models.FilterAll(), models.FilterRecent()}
	for _, t := range c.AllTags() {
		filters = append(filters, models.TagFilter(t))
	}

	table := ui.Table([]string{"Filter", "Issues"})
	for _, f := range filters {
		spec := query.NewSpec()
		spec.Filter = f
		name := f.Name
		if f.TagBound() {
			name = output.Cyan(name)
		}
		_ = table.Append([]string{name, strconv.Itoa(c.Count(spec))})
	}
	_ = table.Render()
	return nil
}
