package models

import (
	"strings"
	"time"
)

// IssuePriority is the urgency of an issue. Values are ordinal so
// priorities compare and persist as small integers.
type IssuePriority int

const (
	IssuePriorityLow    IssuePriority = 0
	IssuePriorityMedium IssuePriority = 1
	IssuePriorityHigh   IssuePriority = 2
)

// String returns the human-readable priority name.
func (p IssuePriority) String() string {
	switch p {
	case IssuePriorityLow:
		return "low"
	case IssuePriorityMedium:
		return "medium"
	case IssuePriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParsePriority converts a priority name to its ordinal value.
// Returns -1 for anything it does not recognize.
func ParsePriority(s string) IssuePriority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return IssuePriorityLow
	case "medium", "med":
		return IssuePriorityMedium
	case "high":
		return IssuePriorityHigh
	default:
		return IssuePriority(-1)
	}
}

// Issue is a single user-tracked item. Issues reference tags many-to-many
// and never own them; the relation lives in the store's two-sided index.
type Issue struct {
	ID              string
	Title           string
	Content         string
	Priority        IssuePriority
	Completed       bool
	ReminderEnabled bool
	ReminderTime    string // time of day, "15:04"
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DisplayTitle returns the title, empty string if unset.
func (i *Issue) DisplayTitle() string {
	return i.Title
}

// DisplayContent returns the content, empty string if unset.
func (i *Issue) DisplayContent() string {
	return i.Content
}

// CreatedOrNow returns the creation date, substituting the current time
// when it was never set. Callers always see a usable timestamp.
func (i *Issue) CreatedOrNow() time.Time {
	if i.CreatedAt.IsZero() {
		return time.Now()
	}
	return i.CreatedAt
}

// StatusString is the human status of the issue.
func (i *Issue) StatusString() string {
	if i.Completed {
		return "closed"
	}
	return "open"
}

// Less orders issues by (lowercased title, creation date) ascending.
// The date breaks ties between issues sharing a title.
func (i *Issue) Less(other *Issue) bool {
	a := strings.ToLower(i.DisplayTitle())
	b := strings.ToLower(other.DisplayTitle())
	if a != b {
		return a < b
	}
	return i.CreatedOrNow().Before(other.CreatedOrNow())
}
