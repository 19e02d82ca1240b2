// Package query composes the multi-criterion issue filter: saved filter,
// free text, tag tokens, and the optional priority/status constraints,
// all conjoined into a single predicate plus a sort order.
package query

import (
	"sort"
	"strings"

	"github.com/jtmorrow/tick/internal/models"
)

// StatusConstraint narrows results by completion state.
type StatusConstraint int

const (
	StatusAll StatusConstraint = iota
	StatusOpen
	StatusClosed
)

// ParseStatus converts a status name to its constraint. Anything
// unrecognized means "all".
func ParseStatus(s string) StatusConstraint {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return StatusOpen
	case "closed", "done":
		return StatusClosed
	default:
		return StatusAll
	}
}

// SortField selects the timestamp results are ordered by.
type SortField int

const (
	SortByCreated SortField = iota
	SortByModified
)

// Spec is the full query description. Every clause is independently
// optional; active clauses are ANDed, so each one narrows the result.
type Spec struct {
	Filter    models.Filter
	Search    string   // free text, matched against title and content
	TagTokens []string // resolved tag IDs, one conjunctive clause each

	// Extra filters apply only when enabled.
	ExtraFilters bool
	Priority     models.IssuePriority // -1 = unconstrained
	Status       StatusConstraint

	SortField  SortField
	Descending bool
}

// NewSpec returns a spec with no constraints beyond the All filter.
func NewSpec() Spec {
	return Spec{
		Filter:   models.FilterAll(),
		Priority: models.IssuePriority(-1),
	}
}

// ParseSearch splits "#name" tokens out of raw search input. The
// remaining words form the free-text clause; token names are resolved
// to tag IDs by the caller.
func ParseSearch(raw string) (text string, tokens []string) {
	var words []string
	for _, w := range strings.Fields(raw) {
		if name, ok := strings.CutPrefix(w, "#"); ok && name != "" {
			tokens = append(tokens, name)
			continue
		}
		words = append(words, w)
	}
	return strings.Join(words, " "), tokens
}

// HasTag reports whether an issue references a tag. The controller backs
// it with the two-sided issue/tag index.
type HasTag func(issueID, tagID string) bool

// Match evaluates the spec's conjunction against one issue.
func (s Spec) Match(issue *models.Issue, hasTag HasTag) bool {
	// Base clause: exactly one of tag membership or recency.
	if s.Filter.TagBound() {
		if !hasTag(issue.ID, s.Filter.TagID) {
			return false
		}
	} else if !issue.UpdatedAt.After(s.Filter.MinModified) {
		return false
	}

	// Text clause: title OR content contains, case-insensitive.
	if text := strings.TrimSpace(s.Search); text != "" {
		needle := strings.ToLower(text)
		title := strings.ToLower(issue.DisplayTitle())
		content := strings.ToLower(issue.DisplayContent())
		if !strings.Contains(title, needle) && !strings.Contains(content, needle) {
			return false
		}
	}

	// One conjunctive clause per token tag.
	for _, tagID := range s.TagTokens {
		if !hasTag(issue.ID, tagID) {
			return false
		}
	}

	if s.ExtraFilters {
		if s.Priority >= 0 && issue.Priority != s.Priority {
			return false
		}
		switch s.Status {
		case StatusOpen:
			if issue.Completed {
				return false
			}
		case StatusClosed:
			if !issue.Completed {
				return false
			}
		}
	}

	return true
}

// Apply filters and sorts the given issues. Results are recomputed on
// every call; nothing is cached, so a stale-filter bug cannot exist.
func (s Spec) Apply(issues []*models.Issue, hasTag HasTag) []*models.Issue {
	matched := make([]*models.Issue, 0, len(issues))
	for _, issue := range issues {
		if s.Match(issue, hasTag) {
			matched = append(matched, issue)
		}
	}
	s.Sort(matched)
	return matched
}

// Sort orders issues by the spec's sort field and direction, breaking
// ties with the issue's natural (title, creation date) key.
func (s Spec) Sort(issues []*models.Issue) {
	key := func(i *models.Issue) int64 {
		if s.SortField == SortByModified {
			return i.UpdatedAt.UnixNano()
		}
		return i.CreatedOrNow().UnixNano()
	}
	sort.SliceStable(issues, func(a, b int) bool {
		ka, kb := key(issues[a]), key(issues[b])
		if ka != kb {
			if s.Descending {
				return ka > kb
			}
			return ka < kb
		}
		return issues[a].Less(issues[b])
	})
}
