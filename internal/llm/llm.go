package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ExtractedIssue holds a single issue extracted from markdown content.
type ExtractedIssue struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Priority string   `json:"priority"`
	Tags     []string `json:"tags"`
}

// Client wraps the Anthropic API for issue extraction.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildPrompt constructs the system and user prompts for issue extraction.
func buildPrompt(content string, tags []string) (system string, user string) {
	system = `You extract structured issues from markdown content. Return ONLY a JSON array of objects with these fields:
- "title": concise issue title
- "content": notes for the issue (can be empty string if the title is self-explanatory)
- "priority": one of "low", "medium", "high"
- "tags": array of tag names for this issue (infer from headings like "## Tag <name>" or context; can be empty)

Rules:
- Each numbered/bulleted item is one issue
- Default priority to "medium" unless context suggests otherwise
- Match tag names to the known tags list when possible; only invent a new tag when nothing fits
- If a section contains no issues, do NOT generate any entries for it. Never create placeholder issues like "no issues specified" or "N/A"
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	if len(tags) > 0 {
		sb.WriteString("Known tags: ")
		sb.WriteString(strings.Join(tags, ", "))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Extract issues from this markdown:\n\n")
	sb.WriteString(content)
	user = sb.String()
	return
}

// ExtractIssues sends markdown content to the LLM and returns structured issues.
func (c *Client) ExtractIssues(ctx context.Context, content string, tags []string) ([]ExtractedIssue, error) {
	systemPrompt, userPrompt := buildPrompt(content, tags)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	text = stripFencing(text)

	var issues []ExtractedIssue
	if err := json.Unmarshal([]byte(text), &issues); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}

	return issues, nil
}

// stripFencing removes markdown code fencing if present.
func stripFencing(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
