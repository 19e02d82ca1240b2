package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jtmorrow/tick/internal/award"
	"github.com/jtmorrow/tick/internal/data"
	"github.com/jtmorrow/tick/internal/models"
	"github.com/jtmorrow/tick/internal/query"
)

// Server wraps the tick working set and exposes it as MCP tools.
type Server struct {
	ctrl *data.Controller
}

// NewServer creates the MCP server wrapper around a loaded controller.
func NewServer(c *data.Controller) *Server {
	return &Server{ctrl: c}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("tick", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.listTagsTool())
	srv.AddTool(s.tagIssueTool())
	srv.AddTool(s.listAwardsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

type issueOut struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content,omitempty"`
	Status    string   `json:"status"`
	Priority  string   `json:"priority"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

func (s *Server) issueOut(issue *models.Issue) issueOut {
	names := []string{}
	for _, t := range s.ctrl.IssueTags(issue.ID) {
		names = append(names, t.DisplayName())
	}
	return issueOut{
		ID:        issue.ID,
		Title:     issue.DisplayTitle(),
		Content:   issue.Content,
		Status:    issue.StatusString(),
		Priority:  issue.Priority.String(),
		Tags:      names,
		CreatedAt: issue.CreatedAt.Format(time.RFC3339),
		UpdatedAt: issue.UpdatedAt.Format(time.RFC3339),
	}
}

// tick_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tick_list_issues",
		mcp.WithDescription("List issues matching a search. Words prefixed with '#' are tag tokens; all clauses narrow the result. Returns a JSON array of issues with id, title, content, status (open/closed), priority (low/medium/high), and tags."),
		mcp.WithString("search", mcp.Description("Free text and #tag tokens, e.g. '#bug crash'")),
		mcp.WithString("status", mcp.Description("Status filter: open, closed")),
		mcp.WithString("priority", mcp.Description("Priority filter: low, medium, high")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	spec := query.NewSpec()

	if search := request.GetString("search", ""); search != "" {
		text, tokens := query.ParseSearch(search)
		spec.Search = text
		spec.TagTokens = s.ctrl.ResolveTagTokens(tokens)
	}

	status := request.GetString("status", "")
	priority := request.GetString("priority", "")
	if status != "" || priority != "" {
		spec.ExtraFilters = true
		spec.Status = query.ParseStatus(status)
		if priority != "" {
			p := models.ParsePriority(priority)
			if p < 0 {
				return mcp.NewToolResultError(fmt.Sprintf("invalid priority: %s", priority)), nil
			}
			spec.Priority = p
		}
	}

	issues := s.ctrl.Query(spec)
	out := make([]issueOut, len(issues))
	for i, issue := range issues {
		out[i] = s.issueOut(issue)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issues: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// tick_create_issue
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tick_create_issue",
		mcp.WithDescription("Create a new issue. Returns the created issue as JSON."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString("content", mcp.Description("Issue content/notes")),
		mcp.WithString("priority", mcp.Description("Issue priority: low, medium, high (default: medium)")),
		mcp.WithString("tags", mcp.Description("Comma-separated tag names; missing tags are created")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}

	issue := s.ctrl.CreateIssue(ctx)
	s.ctrl.SetTitle(issue.ID, title)
	if content := request.GetString("content", ""); content != "" {
		s.ctrl.SetContent(issue.ID, content)
	}
	if priority := request.GetString("priority", ""); priority != "" {
		p := models.ParsePriority(priority)
		if p < 0 {
			return mcp.NewToolResultError(fmt.Sprintf("invalid priority: %s", priority)), nil
		}
		s.ctrl.SetPriority(issue.ID, p)
	}

	for _, name := range splitTags(request.GetString("tags", "")) {
		t, ok := s.ctrl.TagByName(name)
		if !ok {
			t = s.ctrl.CreateTag(ctx)
			s.ctrl.RenameTag(t.ID, name)
		}
		s.ctrl.AttachTag(ctx, issue.ID, t.ID)
	}

	if err := s.ctrl.Save(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save issue: %v", err)), nil
	}

	data, err := json.Marshal(s.issueOut(issue))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issue: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// tick_update_issue
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tick_update_issue",
		mcp.WithDescription("Update an existing issue. Provide the issue ID (full or prefix) and at least one field to update. Returns the updated issue as JSON."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID (full ULID or unique prefix)")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New content")),
		mcp.WithString("priority", mcp.Description("New priority: low, medium, high")),
		mcp.WithString("status", mcp.Description("New status: open, closed")),
	)
	return tool, s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}

	issue, err := s.findIssue(issueID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	updated := false
	if title := request.GetString("title", ""); title != "" {
		s.ctrl.SetTitle(issue.ID, title)
		updated = true
	}
	if content := request.GetString("content", ""); content != "" {
		s.ctrl.SetContent(issue.ID, content)
		updated = true
	}
	if priority := request.GetString("priority", ""); priority != "" {
		p := models.ParsePriority(priority)
		if p < 0 {
			return mcp.NewToolResultError(fmt.Sprintf("invalid priority: %s", priority)), nil
		}
		s.ctrl.SetPriority(issue.ID, p)
		updated = true
	}
	if status := request.GetString("status", ""); status != "" {
		switch query.ParseStatus(status) {
		case query.StatusOpen:
			s.ctrl.SetCompleted(issue.ID, false)
		case query.StatusClosed:
			s.ctrl.SetCompleted(issue.ID, true)
		default:
			return mcp.NewToolResultError(fmt.Sprintf("invalid status: %s (use open or closed)", status)), nil
		}
		updated = true
	}

	if !updated {
		return mcp.NewToolResultError("no fields provided to update; specify at least one of: title, content, priority, status"), nil
	}

	if err := s.ctrl.Save(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save issue: %v", err)), nil
	}

	data, err := json.Marshal(s.issueOut(issue))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issue: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// tick_list_tags
func (s *Server) listTagsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tick_list_tags",
		mcp.WithDescription("List all tags with their open issue counts. Returns a JSON array."),
	)
	return tool, s.handleListTags
}

func (s *Server) handleListTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type tagOut struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		OpenIssues int    `json:"open_issues"`
	}

	tags := s.ctrl.AllTags()
	out := make([]tagOut, len(tags))
	for i, t := range tags {
		out[i] = tagOut{
			ID:         t.ID,
			Name:       t.DisplayName(),
			OpenIssues: s.ctrl.ActiveIssueCount(t.ID),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal tags: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// tick_tag_issue
func (s *Server) tagIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tick_tag_issue",
		mcp.WithDescription("Attach or detach a tag on an issue. Missing tags are created on attach."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID (full ULID or unique prefix)")),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag name")),
		mcp.WithString("action", mcp.Description("attach (default) or detach")),
	)
	return tool, s.handleTagIssue
}

func (s *Server) handleTagIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	name, err := request.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: tag"), nil
	}

	issue, err := s.findIssue(issueID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	action := request.GetString("action", "attach")
	t, ok := s.ctrl.TagByName(name)

	switch action {
	case "attach":
		if !ok {
			t = s.ctrl.CreateTag(ctx)
			s.ctrl.RenameTag(t.ID, name)
		}
		s.ctrl.AttachTag(ctx, issue.ID, t.ID)
	case "detach":
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("tag not found: %s", name)), nil
		}
		s.ctrl.DetachTag(ctx, issue.ID, t.ID)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("invalid action: %s (use attach or detach)", action)), nil
	}

	if err := s.ctrl.Save(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save: %v", err)), nil
	}

	data, err := json.Marshal(s.issueOut(issue))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issue: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// tick_list_awards
func (s *Server) listAwardsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tick_list_awards",
		mcp.WithDescription("List all awards with earned state. Returns a JSON array."),
	)
	return tool, s.handleListAwards
}

func (s *Server) handleListAwards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	awards, err := award.Load()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load awards: %v", err)), nil
	}

	type awardOut struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Criterion   string `json:"criterion"`
		Value       int    `json:"value"`
		Earned      bool   `json:"earned"`
	}

	out := make([]awardOut, len(awards))
	for i, a := range awards {
		out[i] = awardOut{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			Criterion:   string(a.Criterion),
			Value:       a.Value,
			Earned:      award.HasEarned(a, s.ctrl),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal awards: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// findIssue finds an issue by full ID or unique prefix.
func (s *Server) findIssue(id string) (*models.Issue, error) {
	if issue, ok := s.ctrl.Issue(id); ok {
		return issue, nil
	}

	upper := strings.ToUpper(id)
	var matches []*models.Issue
	for _, issue := range s.ctrl.AllIssues() {
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

// splitTags splits a comma-separated tag list, dropping empties.
func splitTags(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
