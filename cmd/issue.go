package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jtmorrow/tick/internal/data"
	"github.com/jtmorrow/tick/internal/models"
	"github.com/jtmorrow/tick/internal/output"
	"github.com/jtmorrow/tick/internal/query"
)

var (
	issueContent  string
	issuePriority string
	issueStatus   string
	issueTitle    string
	issueTags     []string
	issueFilter   string
	issueSort     string
	issueDesc     bool
	issueRemind   string
	issueNoRemind bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage issues",
	Long:  "Create, list, update, and complete issues.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add a new issue",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := ""
		if len(args) > 0 {
			title = args[0]
		}
		return issueAddRun(title)
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list [search]",
	Aliases: []string{"ls"},
	Short:   "List issues",
	Long: `List issues matching the active filter and search.

Search text matches title and content. Words prefixed with '#' are
tag tokens: '#bug crash' lists issues tagged bug whose text contains
"crash". Every clause narrows the result.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			issueSearch = args[0]
		}
		return issueListRun()
	},
}

var issueSearch string

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show issue details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0])
	},
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <issue-id>",
	Short: "Update an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpdateRun(args[0])
	},
}

var issueCloseCmd = &cobra.Command{
	Use:     "close <issue-id>",
	Aliases: []string{"done"},
	Short:   "Mark an issue completed",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueSetCompletedRun(args[0], true)
	},
}

var issueReopenCmd = &cobra.Command{
	Use:   "reopen <issue-id>",
	Short: "Reopen a completed issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueSetCompletedRun(args[0], false)
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:     "delete <issue-id>",
	Aliases: []string{"rm"},
	Short:   "Delete an issue",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(args[0])
	},
}

func init() {
	issueAddCmd.Flags().StringVar(&issueContent, "content", "", "Issue content/notes")
	issueAddCmd.Flags().StringVar(&issuePriority, "priority", "", "Priority: low, medium, high")
	issueAddCmd.Flags().StringSliceVar(&issueTags, "tag", nil, "Tag to attach (repeatable; created if missing)")
	issueAddCmd.Flags().StringVar(&issueRemind, "remind", "", "Daily reminder time (HH:MM)")

	issueListCmd.Flags().StringVar(&issueFilter, "filter", "", "Saved filter: all, recent, or a tag name")
	issueListCmd.Flags().StringVar(&issuePriority, "priority", "", "Filter by priority: low, medium, high")
	issueListCmd.Flags().StringVar(&issueStatus, "status", "", "Filter by status: open, closed")
	issueListCmd.Flags().StringVar(&issueSort, "sort", "created", "Sort by: created, modified")
	issueListCmd.Flags().BoolVar(&issueDesc, "desc", false, "Sort newest first")

	issueUpdateCmd.Flags().StringVar(&issueTitle, "title", "", "New title")
	issueUpdateCmd.Flags().StringVar(&issueContent, "content", "", "New content")
	issueUpdateCmd.Flags().StringVar(&issuePriority, "priority", "", "New priority")
	issueUpdateCmd.Flags().StringVar(&issueRemind, "remind", "", "Daily reminder time (HH:MM)")
	issueUpdateCmd.Flags().BoolVar(&issueNoRemind, "no-remind", false, "Clear the reminder")

	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	issueCmd.AddCommand(issueCloseCmd)
	issueCmd.AddCommand(issueReopenCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueAddRun(title string) error {
	c, err := getController()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue := c.CreateIssue(ctx)
	if title != "" {
		c.SetTitle(issue.ID, title)
	}
	if issueContent != "" {
		c.SetContent(issue.ID, issueContent)
	}
	if issuePriority != "" {
		p := models.ParsePriority(issuePriority)
		if p < 0 {
			return fmt.Errorf("invalid priority: %s (use low, medium, or high)", issuePriority)
		}
		c.SetPriority(issue.ID, p)
	}
	if issueRemind != "" {
		if _, err := time.Parse("15:04", issueRemind); err != nil {
			return fmt.Errorf("invalid reminder time %q (use HH:MM)", issueRemind)
		}
		c.SetReminder(issue.ID, true, issueRemind)
	}

	for _, name := range issueTags {
		t, ok := c.TagByName(name)
		if !ok {
			t = c.CreateTag(ctx)
			c.RenameTag(t.ID, name)
		}
		c.AttachTag(ctx, issue.ID, t.ID)
	}

	if err := c.Save(ctx); err != nil {
		return fmt.Errorf("save issue: %w", err)
	}

	ui.Success("Created issue %s: %s", output.Cyan(shortID(issue.ID)), issue.DisplayTitle())
	return nil
}

func issueListRun() error {
	c, err := getController()
	if err != nil {
		return err
	}

	spec := query.NewSpec()

	if issueFilter != "" {
		f, err := resolveFilter(c, issueFilter)
		if err != nil {
			return err
		}
		spec.Filter = f
	}

	if issueSearch != "" {
		text, tokens := query.ParseSearch(issueSearch)
		spec.Search = text
		spec.TagTokens = c.ResolveTagTokens(tokens)
	}

	if issuePriority != "" || issueStatus != "" {
		spec.ExtraFilters = true
		if issuePriority != "" {
			p := models.ParsePriority(issuePriority)
			if p < 0 {
				return fmt.Errorf("invalid priority: %s (use low, medium, or high)", issuePriority)
			}
			spec.Priority = p
		}
		spec.Status = query.ParseStatus(issueStatus)
	}

	if issueSort == "modified" {
		spec.SortField = query.SortByModified
	}
	spec.Descending = issueDesc

	issues := c.Query(spec)
	if len(issues) == 0 {
		ui.Info("No issues found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Status", "Priority", "Tags", "Updated"})
	for _, issue := range issues {
		var names []string
		for _, t := range c.IssueTags(issue.ID) {
			names = append(names, t.DisplayName())
		}

		_ = table.Append([]string{
			shortID(issue.ID),
			issue.DisplayTitle(),
			output.StatusColor(issue.StatusString()),
			output.PriorityColor(issue.Priority.String()),
			strings.Join(names, ", "),
			issue.UpdatedAt.Format("2006-01-02"),
		})
	}
	_ = table.Render()
	return nil
}

func issueShowRun(id string) error {
	c, err := getController()
	if err != nil {
		return err
	}

	issue, err := findIssue(c, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(issue.ID)), issue.DisplayTitle())
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(issue.StatusString()))
	fmt.Fprintf(ui.Out, "  Priority:   %s\n", output.PriorityColor(issue.Priority.String()))
	if issue.Content != "" {
		fmt.Fprintf(ui.Out, "  Content:    %s\n", issue.Content)
	}
	if tags := c.IssueTags(issue.ID); len(tags) > 0 {
		var names []string
		for _, t := range tags {
			names = append(names, t.DisplayName())
		}
		fmt.Fprintf(ui.Out, "  Tags:       %s\n", strings.Join(names, ", "))
	}
	if issue.ReminderEnabled {
		fmt.Fprintf(ui.Out, "  Reminder:   daily at %s\n", issue.ReminderTime)
	}
	fmt.Fprintf(ui.Out, "  Created:    %s\n", issue.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Updated:    %s\n", issue.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", issue.ID)

	return nil
}

func issueUpdateRun(id string) error {
	c, err := getController()
	if err != nil {
		return err
	}

	issue, err := findIssue(c, id)
	if err != nil {
		return err
	}

	changed := false
	if issueTitle != "" {
		c.SetTitle(issue.ID, issueTitle)
		changed = true
	}
	if issueContent != "" {
		c.SetContent(issue.ID, issueContent)
		changed = true
	}
	if issuePriority != "" {
		p := models.ParsePriority(issuePriority)
		if p < 0 {
			return fmt.Errorf("invalid priority: %s (use low, medium, or high)", issuePriority)
		}
		c.SetPriority(issue.ID, p)
		changed = true
	}
	if issueRemind != "" {
		if _, err := time.Parse("15:04", issueRemind); err != nil {
			return fmt.Errorf("invalid reminder time %q (use HH:MM)", issueRemind)
		}
		c.SetReminder(issue.ID, true, issueRemind)
		changed = true
	}
	if issueNoRemind {
		c.SetReminder(issue.ID, false, "")
		changed = true
	}

	if !changed {
		return fmt.Errorf("no updates specified (use --title, --content, --priority, --remind, or --no-remind)")
	}

	if err := c.Save(context.Background()); err != nil {
		return fmt.Errorf("update issue: %w", err)
	}

	ui.Success("Updated issue %s", output.Cyan(shortID(issue.ID)))
	return nil
}

func issueSetCompletedRun(id string, done bool) error {
	c, err := getController()
	if err != nil {
		return err
	}

	issue, err := findIssue(c, id)
	if err != nil {
		return err
	}

	c.SetCompleted(issue.ID, done)
	if err := c.Save(context.Background()); err != nil {
		return fmt.Errorf("save issue: %w", err)
	}

	if done {
		ui.Success("Closed issue %s: %s", output.Cyan(shortID(issue.ID)), issue.DisplayTitle())
	} else {
		ui.Success("Reopened issue %s: %s", output.Cyan(shortID(issue.ID)), issue.DisplayTitle())
	}
	return nil
}

func issueDeleteRun(id string) error {
	c, err := getController()
	if err != nil {
		return err
	}

	issue, err := findIssue(c, id)
	if err != nil {
		return err
	}

	title := issue.DisplayTitle()
	c.DeleteIssue(issue.ID)
	if err := c.Save(context.Background()); err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}

	ui.Success("Deleted issue %s: %s", shortID(issue.ID), title)
	return nil
}

// resolveFilter maps a --filter value to a saved filter: the built-in
// smart filters by name, otherwise a tag filter.
func resolveFilter(c *data.Controller, name string) (models.Filter, error) {
	switch strings.ToLower(name) {
	case "all":
		return models.FilterAll(), nil
	case "recent":
		return models.FilterRecent(), nil
	}
	if t, ok := c.TagByName(name); ok {
		return models.TagFilter(t), nil
	}
	return models.Filter{}, fmt.Errorf("unknown filter: %s (use all, recent, or a tag name)", name)
}

// findIssue finds an issue by full ULID or prefix match.
func findIssue(c *data.Controller, id string) (*models.Issue, error) {
	// Try exact match first
	if issue, ok := c.Issue(id); ok {
		return issue, nil
	}

	// Try prefix match against the working set
	upper := strings.ToUpper(id)
	var matches []*models.Issue
	for _, issue := range c.AllIssues() {
		if strings.HasPrefix(issue.ID, upper) {
			matches = append(matches, issue)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("issue not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous issue ID %s: matches %d issues", id, len(matches))
	}
}

// shortID returns a truncated ULID for display (first 12 chars).
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
