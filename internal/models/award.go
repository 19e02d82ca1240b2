package models

// AwardCriterion names the progress measurement an award is evaluated
// against.
type AwardCriterion string

const (
	AwardCriterionIssues AwardCriterion = "issues"
	AwardCriterionClosed AwardCriterion = "closed"
	AwardCriterionTags   AwardCriterion = "tags"
	AwardCriterionUnlock AwardCriterion = "unlock"
)

// Award is an unlock condition loaded once from bundled configuration.
// Awards are never created or mutated at runtime, only evaluated.
// The ID equals the name; uniqueness is checked at load, never generated.
type Award struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Color       string         `yaml:"color"`
	Criterion   AwardCriterion `yaml:"criterion"`
	Value       int            `yaml:"value"`
	Icon        string         `yaml:"icon"`
}
