// Package sync merges remote-originated changes into the local working
// set and settles premium-entitlement transactions. The transport is
// opaque: the reconciler only sees "something changed, re-merge" plus
// the affected records.
package sync

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jtmorrow/tick/internal/data"
	"github.com/jtmorrow/tick/internal/models"
)

// ChangeSet is one batch of remote-originated changes.
type ChangeSet struct {
	Issues []data.RemoteIssue
	Tags   []data.RemoteTag
}

// Empty reports whether the set carries no records.
func (cs ChangeSet) Empty() bool {
	return len(cs.Issues) == 0 && len(cs.Tags) == 0
}

// Transport is the sync channel to the other devices. Implementations
// deliver remote change sets and entitlement transactions; the
// reconciler acknowledges transactions it has finalized so they are not
// re-delivered.
type Transport interface {
	Changes() <-chan ChangeSet
	Transactions() <-chan Transaction
	Ack(tx Transaction) error
}

// record is the JSONL wire form of one change-set entry. One record per
// line; unknown kinds are skipped.
type record struct {
	Kind            string    `json:"kind"`
	ID              string    `json:"id"`
	Deleted         bool      `json:"deleted,omitempty"`
	Title           string    `json:"title,omitempty"`
	Content         string    `json:"content,omitempty"`
	Priority        int       `json:"priority,omitempty"`
	Completed       bool      `json:"completed,omitempty"`
	ReminderEnabled bool      `json:"reminder_enabled,omitempty"`
	ReminderTime    string    `json:"reminder_time,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	Name            string    `json:"name,omitempty"`
}

// ReadChangeSet parses a JSONL change set, one record per line.
func ReadChangeSet(r io.Reader) (ChangeSet, error) {
	var cs ChangeSet
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return ChangeSet{}, fmt.Errorf("parse change set line %d: %w", lineNum, err)
		}
		switch rec.Kind {
		case "issue":
			cs.Issues = append(cs.Issues, data.RemoteIssue{
				Issue: models.Issue{
					ID:              rec.ID,
					Title:           rec.Title,
					Content:         rec.Content,
					Priority:        models.IssuePriority(rec.Priority),
					Completed:       rec.Completed,
					ReminderEnabled: rec.ReminderEnabled,
					ReminderTime:    rec.ReminderTime,
					CreatedAt:       rec.CreatedAt,
					UpdatedAt:       rec.UpdatedAt,
				},
				TagIDs:  rec.Tags,
				Deleted: rec.Deleted,
			})
		case "tag":
			cs.Tags = append(cs.Tags, data.RemoteTag{
				Tag:     models.Tag{ID: rec.ID, Name: rec.Name},
				Deleted: rec.Deleted,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return ChangeSet{}, fmt.Errorf("read change set: %w", err)
	}
	return cs, nil
}

// WriteChangeSet emits the working set as a JSONL change set, the form
// another device would merge.
func WriteChangeSet(w io.Writer, issues []*models.Issue, tagsOf func(id string) []*models.Tag, tags []*models.Tag) error {
	enc := json.NewEncoder(w)
	for _, t := range tags {
		if err := enc.Encode(record{Kind: "tag", ID: t.ID, Name: t.Name}); err != nil {
			return fmt.Errorf("write change set: %w", err)
		}
	}
	for _, issue := range issues {
		var tagIDs []string
		for _, t := range tagsOf(issue.ID) {
			tagIDs = append(tagIDs, t.ID)
		}
		rec := record{
			Kind:            "issue",
			ID:              issue.ID,
			Title:           issue.Title,
			Content:         issue.Content,
			Priority:        int(issue.Priority),
			Completed:       issue.Completed,
			ReminderEnabled: issue.ReminderEnabled,
			ReminderTime:    issue.ReminderTime,
			CreatedAt:       issue.CreatedOrNow(),
			UpdatedAt:       issue.UpdatedAt,
			Tags:            tagIDs,
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write change set: %w", err)
		}
	}
	return nil
}
