package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtmorrow/tick/internal/data"
	"github.com/jtmorrow/tick/internal/llm"
	"github.com/jtmorrow/tick/internal/output"
	"github.com/jtmorrow/tick/internal/store"
)

func TestParseMarkdownIssues(t *testing.T) {
	t.Run("numbered list with tag heading", func(t *testing.T) {
		md := `# Quick Issues

## Tag home

1. Water the plants
2. Fix bike brakes
3. Clean the gutters

## Tag errands

1. Renew passport
2. Urgent: pick up prescription
`
		issues := parseMarkdownIssues(md)
		require.Len(t, issues, 5)

		assert.Equal(t, "Water the plants", issues[0].Title)
		assert.Equal(t, []string{"home"}, issues[0].Tags)
		assert.Equal(t, "medium", issues[0].Priority)

		assert.Equal(t, []string{"home"}, issues[2].Tags)

		assert.Equal(t, "Renew passport", issues[3].Title)
		assert.Equal(t, []string{"errands"}, issues[3].Tags)

		assert.Equal(t, "Urgent: pick up prescription", issues[4].Title)
		assert.Equal(t, "high", issues[4].Priority)
	})

	t.Run("bulleted list", func(t *testing.T) {
		md := `## Tag home

- Item one
- Item two
* Item three
`
		issues := parseMarkdownIssues(md)
		require.Len(t, issues, 3)
		assert.Equal(t, "Item one", issues[0].Title)
		assert.Equal(t, "Item two", issues[1].Title)
		assert.Equal(t, "Item three", issues[2].Title)
	})

	t.Run("no tag heading", func(t *testing.T) {
		md := `# Issues

1. First issue
2. Second issue
`
		issues := parseMarkdownIssues(md)
		require.Len(t, issues, 2)
		assert.Empty(t, issues[0].Tags)
		assert.Equal(t, "First issue", issues[0].Title)
	})

	t.Run("non-tag heading resets scope", func(t *testing.T) {
		md := `## Tag home

1. Tagged item

## Notes

1. Untagged item
`
		issues := parseMarkdownIssues(md)
		require.Len(t, issues, 2)
		assert.Equal(t, []string{"home"}, issues[0].Tags)
		assert.Empty(t, issues[1].Tags)
	})

	t.Run("ignores prose and blank lines", func(t *testing.T) {
		md := `Some intro text.

1. Real issue

More prose that is not a list item.
`
		issues := parseMarkdownIssues(md)
		require.Len(t, issues, 1)
		assert.Equal(t, "Real issue", issues[0].Title)
	})
}

func TestClassifyIssuePriority(t *testing.T) {
	assert.Equal(t, "high", classifyIssuePriority("Critical outage in sync"))
	assert.Equal(t, "high", classifyIssuePriority("Pay rent ASAP"))
	assert.Equal(t, "low", classifyIssuePriority("Minor polish on labels"))
	assert.Equal(t, "low", classifyIssuePriority("Someday: learn piano"))
	assert.Equal(t, "medium", classifyIssuePriority("Water the plants"))
}

func TestCreateExtractedIssues(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	c := data.New(s)
	require.NoError(t, c.Load(context.Background()))
	ui = output.New()

	extracted := []llm.ExtractedIssue{
		{Title: "Fix bike brakes", Priority: "high", Tags: []string{"home"}},
		{Title: "Renew passport", Content: "Expires soon.", Tags: []string{"errands", "home"}},
		{Title: "   ", Priority: "low"}, // blank titles are skipped
	}

	require.NoError(t, createExtractedIssues(context.Background(), c, extracted))

	assert.Equal(t, 2, c.IssueCount())
	assert.Equal(t, 2, c.TagCount(), "duplicate tag names should resolve to one tag")

	home, ok := c.TagByName("home")
	require.True(t, ok)
	assert.Equal(t, 2, c.ActiveIssueCount(home.ID))
}
