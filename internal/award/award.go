// Package award loads the static award definitions and evaluates their
// unlock criteria against live store counts. Awards are configuration:
// they are read once at startup and only ever evaluated, never written.
package award

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jtmorrow/tick/internal/models"
)

//go:embed awards.yaml
var configFS embed.FS

// Counts is the read-only view of the store the evaluator needs. All
// methods answer from the in-memory working set, so evaluation is
// correct immediately after any write.
type Counts interface {
	IssueCount() int
	ClosedCount() int
	TagCount() int
	PremiumUnlocked() bool
}

// Load parses the bundled award definitions. A missing or malformed
// file is a broken installation; callers treat the error as fatal.
func Load() ([]models.Award, error) {
	data, err := configFS.ReadFile("awards.yaml")
	if err != nil {
		return nil, fmt.Errorf("read award config: %w", err)
	}

	var doc struct {
		Awards []models.Award `yaml:"awards"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse award config: %w", err)
	}
	if len(doc.Awards) == 0 {
		return nil, fmt.Errorf("award config holds no awards")
	}

	seen := make(map[string]bool, len(doc.Awards))
	for _, a := range doc.Awards {
		// IDs equal names and are unique: checked, never generated.
		if a.ID == "" || a.ID != a.Name {
			return nil, fmt.Errorf("award %q: id must equal name", a.Name)
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("duplicate award id %q", a.ID)
		}
		seen[a.ID] = true
	}
	return doc.Awards, nil
}

// HasEarned evaluates one award against the current counts. An
// unrecognized criterion never unlocks: fail closed, not fatal.
func HasEarned(a models.Award, counts Counts) bool {
	switch a.Criterion {
	case models.AwardCriterionIssues:
		return counts.IssueCount() >= a.Value
	case models.AwardCriterionClosed:
		return counts.ClosedCount() >= a.Value
	case models.AwardCriterionTags:
		return counts.TagCount() >= a.Value
	case models.AwardCriterionUnlock:
		return counts.PremiumUnlocked()
	default:
		return false
	}
}

// Earned returns the subset of awards currently earned, preserving
// definition order. Nothing is memoized between calls.
func Earned(awards []models.Award, counts Counts) []models.Award {
	var out []models.Award
	for _, a := range awards {
		if HasEarned(a, counts) {
			out = append(out, a)
		}
	}
	return out
}
