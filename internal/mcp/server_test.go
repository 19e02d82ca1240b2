package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtmorrow/tick/internal/data"
	"github.com/jtmorrow/tick/internal/store"
)

// newTestServer builds a Server over a controller backed by a temp database.
func newTestServer(t *testing.T) (*Server, *data.Controller) {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	c := data.New(s)
	require.NoError(t, c.Load(context.Background()))

	srv := NewServer(c)
	require.NotNil(t, srv)
	return srv, c
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

func TestNewServer(t *testing.T) {
	srv, _ := newTestServer(t)
	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv, "MCPServer() should return non-nil")
}

func TestHandleListIssues_Empty(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleListIssues(ctx, callToolReq("tick_list_issues", nil))
	require.NoError(t, err)

	var out []issueOut
	resultJSON(t, result, &out)
	assert.Empty(t, out)
}

func TestHandleCreateIssue(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleCreateIssue(ctx, callToolReq("tick_create_issue", map[string]any{
		"title":    "Fix the roof",
		"content":  "Before the rain starts.",
		"priority": "high",
		"tags":     "home, urgent",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out issueOut
	resultJSON(t, result, &out)
	assert.Equal(t, "Fix the roof", out.Title)
	assert.Equal(t, "high", out.Priority)
	assert.Equal(t, "open", out.Status)
	assert.ElementsMatch(t, []string{"home", "urgent"}, out.Tags)

	assert.Equal(t, 1, c.IssueCount())
	assert.Equal(t, 2, c.TagCount())
}

func TestHandleCreateIssue_MissingTitle(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleCreateIssue(context.Background(), callToolReq("tick_create_issue", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleCreateIssue_InvalidPriority(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleCreateIssue(context.Background(), callToolReq("tick_create_issue", map[string]any{
		"title":    "x",
		"priority": "critical",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleListIssues_SearchAndTokens(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()

	bug := c.CreateIssue(ctx)
	c.SetTitle(bug.ID, "Crash on save")
	tag := c.CreateTag(ctx)
	c.RenameTag(tag.ID, "bug")
	c.AttachTag(ctx, bug.ID, tag.ID)

	other := c.CreateIssue(ctx)
	c.SetTitle(other.ID, "Crash course notes")

	result, err := srv.handleListIssues(ctx, callToolReq("tick_list_issues", map[string]any{
		"search": "#bug crash",
	}))
	require.NoError(t, err)

	var out []issueOut
	resultJSON(t, result, &out)
	require.Len(t, out, 1)
	assert.Equal(t, bug.ID, out[0].ID)
}

func TestHandleListIssues_StatusFilter(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()

	open := c.CreateIssue(ctx)
	c.SetTitle(open.ID, "Open one")
	done := c.CreateIssue(ctx)
	c.SetTitle(done.ID, "Done one")
	c.SetCompleted(done.ID, true)

	result, err := srv.handleListIssues(ctx, callToolReq("tick_list_issues", map[string]any{
		"status": "open",
	}))
	require.NoError(t, err)

	var out []issueOut
	resultJSON(t, result, &out)
	require.Len(t, out, 1)
	assert.Equal(t, open.ID, out[0].ID)
}

func TestHandleUpdateIssue(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()

	issue := c.CreateIssue(ctx)
	c.SetTitle(issue.ID, "Old title")

	result, err := srv.handleUpdateIssue(ctx, callToolReq("tick_update_issue", map[string]any{
		"issue_id": issue.ID,
		"title":    "New title",
		"status":   "closed",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out issueOut
	resultJSON(t, result, &out)
	assert.Equal(t, "New title", out.Title)
	assert.Equal(t, "closed", out.Status)
}

func TestHandleUpdateIssue_PrefixMatch(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()

	issue := c.CreateIssue(ctx)
	c.SetTitle(issue.ID, "Prefix target")

	result, err := srv.handleUpdateIssue(ctx, callToolReq("tick_update_issue", map[string]any{
		"issue_id": issue.ID[:10],
		"title":    "Found by prefix",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	got, ok := c.Issue(issue.ID)
	require.True(t, ok)
	assert.Equal(t, "Found by prefix", got.Title)
}

func TestHandleUpdateIssue_NoFields(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()

	issue := c.CreateIssue(ctx)

	result, err := srv.handleUpdateIssue(ctx, callToolReq("tick_update_issue", map[string]any{
		"issue_id": issue.ID,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleUpdateIssue_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleUpdateIssue(context.Background(), callToolReq("tick_update_issue", map[string]any{
		"issue_id": "ZZZZZZZZ",
		"title":    "x",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleListTags(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()

	tag := c.CreateTag(ctx)
	c.RenameTag(tag.ID, "home")
	issue := c.CreateIssue(ctx)
	c.AttachTag(ctx, issue.ID, tag.ID)

	result, err := srv.handleListTags(ctx, callToolReq("tick_list_tags", nil))
	require.NoError(t, err)

	var out []struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		OpenIssues int    `json:"open_issues"`
	}
	resultJSON(t, result, &out)
	require.Len(t, out, 1)
	assert.Equal(t, "home", out[0].Name)
	assert.Equal(t, 1, out[0].OpenIssues)
}

func TestHandleTagIssue_AttachAndDetach(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()

	issue := c.CreateIssue(ctx)

	result, err := srv.handleTagIssue(ctx, callToolReq("tick_tag_issue", map[string]any{
		"issue_id": issue.ID,
		"tag":      "errands",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	tag, ok := c.TagByName("errands")
	require.True(t, ok, "attach should create the missing tag")
	assert.True(t, c.HasTag(issue.ID, tag.ID))

	result, err = srv.handleTagIssue(ctx, callToolReq("tick_tag_issue", map[string]any{
		"issue_id": issue.ID,
		"tag":      "errands",
		"action":   "detach",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.False(t, c.HasTag(issue.ID, tag.ID))
}

func TestHandleTagIssue_DetachUnknownTag(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()

	issue := c.CreateIssue(ctx)

	result, err := srv.handleTagIssue(ctx, callToolReq("tick_tag_issue", map[string]any{
		"issue_id": issue.ID,
		"tag":      "ghost",
		"action":   "detach",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleListAwards(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()

	c.CreateIssue(ctx)

	result, err := srv.handleListAwards(ctx, callToolReq("tick_list_awards", nil))
	require.NoError(t, err)

	var out []struct {
		ID     string `json:"id"`
		Earned bool   `json:"earned"`
	}
	resultJSON(t, result, &out)
	require.NotEmpty(t, out)

	earnedAny := false
	for _, a := range out {
		if a.Earned {
			earnedAny = true
		}
	}
	assert.True(t, earnedAny, "creating an issue should earn the first-issue award")
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitTags("a, b"))
	assert.Equal(t, []string{"a"}, splitTags("a,,  "))
	assert.Nil(t, splitTags(""))
}
