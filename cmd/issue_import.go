package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jtmorrow/tick/internal/data"
	"github.com/jtmorrow/tick/internal/llm"
	"github.com/jtmorrow/tick/internal/models"
)

var (
	importTag    string
	importDryRun bool
	importNoLLM  bool
)

var issueImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import issues from a markdown file",
	Long: `Import issues from a markdown file.

The file should contain issues as numbered or bulleted lists, optionally
grouped under "## Tag <name>" headings. By default an LLM extracts
structured issues (title, content, priority, tags); with --no-llm a
simple line parser is used instead.

LLM extraction requires ANTHROPIC_API_KEY or anthropic.api_key in config.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueImportRun(args[0])
	},
}

func init() {
	issueImportCmd.Flags().StringVar(&importTag, "tag", "", "Attach this tag to every imported issue")
	issueImportCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Preview extracted issues without creating them")
	issueImportCmd.Flags().BoolVar(&importNoLLM, "no-llm", false, "Use the simple markdown parser instead of the LLM")
	issueCmd.AddCommand(issueImportCmd)
}

func issueImportRun(file string) error {
	// Read the markdown file
	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	content := string(raw)
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("file is empty: %s", file)
	}

	c, err := getController()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var extracted []llm.ExtractedIssue
	if importNoLLM {
		extracted = parseMarkdownIssues(content)
	} else {
		client := newLLMClient()
		if client == nil {
			return fmt.Errorf("ANTHROPIC_API_KEY not set (set env var, anthropic.api_key in config, or use --no-llm)")
		}

		var known []string
		for _, t := range c.AllTags() {
			known = append(known, t.DisplayName())
		}

		ui.Info("Extracting issues with LLM...")
		extracted, err = client.ExtractIssues(ctx, content, known)
		if err != nil {
			return fmt.Errorf("extract issues: %w", err)
		}
	}

	if len(extracted) == 0 {
		ui.Info("No issues found in file.")
		return nil
	}

	if importTag != "" {
		for i := range extracted {
			extracted[i].Tags = append(extracted[i].Tags, importTag)
		}
	}

	// Preview table
	table := ui.Table([]string{"#", "Title", "Priority", "Tags"})
	for i, e := range extracted {
		_ = table.Append([]string{
			fmt.Sprintf("%d", i+1),
			e.Title,
			e.Priority,
			strings.Join(e.Tags, ", "),
		})
	}
	_ = table.Render()

	if importDryRun {
		ui.Info("Dry run: would create %d issues.", len(extracted))
		return nil
	}

	return createExtractedIssues(ctx, c, extracted)
}

// parseMarkdownIssues does a simple parse of markdown to extract numbered/bulleted items.
func parseMarkdownIssues(content string) []llm.ExtractedIssue {
	var issues []llm.ExtractedIssue
	currentTag := ""

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		// Check for tag heading: ## Tag <name>
		if strings.HasPrefix(line, "## ") {
			heading := strings.TrimSpace(strings.TrimPrefix(line, "## "))
			if strings.HasPrefix(strings.ToLower(heading), "tag ") {
				currentTag = strings.TrimSpace(heading[4:])
			} else {
				currentTag = ""
			}
			continue
		}

		// Numbered list item: "1. Title", "12. Title"
		title := ""
		if len(line) > 2 {
			for i, c := range line {
				if c == '.' && i > 0 && i < 4 {
					rest := strings.TrimSpace(line[i+1:])
					if rest != "" {
						title = rest
					}
					break
				}
				if c < '0' || c > '9' {
					break
				}
			}
			// Bulleted: "- text" or "* text"
			if title == "" && (strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ")) {
				title = strings.TrimSpace(line[2:])
			}
		}

		if title != "" {
			var tags []string
			if currentTag != "" {
				tags = []string{currentTag}
			}
			issues = append(issues, llm.ExtractedIssue{
				Title:    title,
				Priority: classifyIssuePriority(title),
				Tags:     tags,
			})
		}
	}

	return issues
}

// createExtractedIssues creates issues in the working set, resolving or
// creating tags as needed, then flushes.
func createExtractedIssues(ctx context.Context, c *data.Controller, extracted []llm.ExtractedIssue) error {
	created := 0
	for _, e := range extracted {
		if strings.TrimSpace(e.Title) == "" {
			continue
		}

		issue := c.CreateIssue(ctx)
		c.SetTitle(issue.ID, e.Title)
		if e.Content != "" {
			c.SetContent(issue.ID, e.Content)
		}
		if p := models.ParsePriority(e.Priority); p >= 0 {
			c.SetPriority(issue.ID, p)
		}

		for _, name := range e.Tags {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			t, ok := c.TagByName(name)
			if !ok {
				t = c.CreateTag(ctx)
				c.RenameTag(t.ID, name)
			}
			c.AttachTag(ctx, issue.ID, t.ID)
		}
		created++
	}

	if err := c.Save(ctx); err != nil {
		return fmt.Errorf("save imported issues: %w", err)
	}

	ui.Success("Created %d issues.", created)
	return nil
}
