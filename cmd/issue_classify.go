package cmd

import "strings"

// classifyIssuePriority infers the issue priority from the title using keyword heuristics.
// High keywords are checked before low keywords. Defaults to "medium".
func classifyIssuePriority(title string) string {
	lower := strings.ToLower(title)

	highKeywords := []string{
		"critical", "urgent", "blocker", "crash", "security",
		"data loss", "asap", "overdue", "deadline",
	}
	for _, kw := range highKeywords {
		if strings.Contains(lower, kw) {
			return "high"
		}
	}

	lowKeywords := []string{
		"minor", "nice to have", "cosmetic", "trivial",
		"low priority", "someday", "eventually",
	}
	for _, kw := range lowKeywords {
		if strings.Contains(lower, kw) {
			return "low"
		}
	}

	return "medium"
}
