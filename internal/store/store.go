package store

import (
	"context"

	"github.com/jtmorrow/tick/internal/models"
)

// Snapshot is the full persisted state loaded at startup: both entity
// tables plus the many-to-many join, keyed issue ID -> tag IDs.
type Snapshot struct {
	Issues []*models.Issue
	Tags   []*models.Tag
	Links  map[string][]string
}

// Store is the durability layer beneath the in-memory working set. All
// reads and writes of persisted state go through it; nothing else in
// the repository touches the database.
type Store interface {
	// Bulk load/flush
	LoadAll(ctx context.Context) (*Snapshot, error)
	UpsertIssues(ctx context.Context, issues []*models.Issue) error
	UpsertTags(ctx context.Context, tags []*models.Tag) error

	// Entity removal. DeleteTag removes the tag and its join rows only;
	// referenced issues are untouched.
	DeleteIssue(ctx context.Context, id string) error
	DeleteTag(ctx context.Context, id string) error

	// Relation maintenance
	Link(ctx context.Context, issueID, tagID string) error
	Unlink(ctx context.Context, issueID, tagID string) error
	ReplaceLinks(ctx context.Context, issueID string, tagIDs []string) error

	// Full-table wipes used by the sample-data reset. Implemented as
	// bulk DELETE statements, never by loading instances.
	BatchDeleteIssues(ctx context.Context) (int64, error)
	BatchDeleteTags(ctx context.Context) (int64, error)

	// Counts over persisted rows (status reporting).
	CountIssues(ctx context.Context, completed *bool) (int, error)
	CountTags(ctx context.Context) (int, error)

	// Key-value settings (premium-unlock flag and friends).
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
