package models

import (
	"strings"

	"github.com/google/uuid"
)

// Tag is a label that groups issues. Deleting a tag only removes the
// relation; the issues it referenced survive.
type Tag struct {
	ID   string
	Name string
}

// EnsureID assigns a fresh UUID when the tag has none.
func (t *Tag) EnsureID() {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
}

// DisplayName returns the name, empty string if unset.
func (t *Tag) DisplayName() string {
	return t.Name
}

// Less orders tags by (lowercased name, UUID string) ascending. The UUID
// is the deterministic tie-break: two tags may share a display name.
func (t *Tag) Less(other *Tag) bool {
	a := strings.ToLower(t.DisplayName())
	b := strings.ToLower(other.DisplayName())
	if a != b {
		return a < b
	}
	return t.ID < other.ID
}
