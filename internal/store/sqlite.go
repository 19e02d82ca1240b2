package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jtmorrow/tick/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors from the background flush.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NewULID generates a new ULID string, used for issue identity.
func NewULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Bulk load / flush ---

// LoadAll reads the entire persisted state. The working set is small by
// design (hundreds to low thousands of records), so a full load at
// startup is cheaper than query plumbing for partial reads.
func (s *SQLiteStore) LoadAll(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Links: make(map[string][]string)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, priority, completed, reminder_enabled, reminder_time, created_at, updated_at
		FROM issues`)
	if err != nil {
		return nil, fmt.Errorf("load issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		issue := &models.Issue{}
		var priority int
		var completed, reminderEnabled int
		if err := rows.Scan(&issue.ID, &issue.Title, &issue.Content, &priority,
			&completed, &reminderEnabled, &issue.ReminderTime,
			&issue.CreatedAt, &issue.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issue.Priority = models.IssuePriority(priority)
		issue.Completed = completed != 0
		issue.ReminderEnabled = reminderEnabled != 0
		snap.Issues = append(snap.Issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load issues: %w", err)
	}

	tagRows, err := s.db.QueryContext(ctx, "SELECT id, name FROM tags")
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	defer func() { _ = tagRows.Close() }()

	for tagRows.Next() {
		t := &models.Tag{}
		if err := tagRows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		snap.Tags = append(snap.Tags, t)
	}
	if err := tagRows.Err(); err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}

	linkRows, err := s.db.QueryContext(ctx, "SELECT issue_id, tag_id FROM issue_tags")
	if err != nil {
		return nil, fmt.Errorf("load issue tags: %w", err)
	}
	defer func() { _ = linkRows.Close() }()

	for linkRows.Next() {
		var issueID, tagID string
		if err := linkRows.Scan(&issueID, &tagID); err != nil {
			return nil, fmt.Errorf("scan issue tag: %w", err)
		}
		snap.Links[issueID] = append(snap.Links[issueID], tagID)
	}
	return snap, linkRows.Err()
}

// UpsertIssues writes the given issues in a single transaction.
func (s *SQLiteStore) UpsertIssues(ctx context.Context, issues []*models.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, issue := range issues {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO issues (id, title, content, priority, completed, reminder_enabled, reminder_time, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title=excluded.title, content=excluded.content, priority=excluded.priority,
				completed=excluded.completed, reminder_enabled=excluded.reminder_enabled,
				reminder_time=excluded.reminder_time, updated_at=excluded.updated_at`,
			issue.ID, issue.Title, issue.Content, int(issue.Priority),
			boolToInt(issue.Completed), boolToInt(issue.ReminderEnabled), issue.ReminderTime,
			issue.CreatedOrNow().UTC(), issue.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("upsert issue %s: %w", issue.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpsertTags writes the given tags in a single transaction.
func (s *SQLiteStore) UpsertTags(ctx context.Context, tags []*models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range tags {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tags (id, name) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET name=excluded.name`,
			t.ID, t.Name,
		)
		if err != nil {
			return fmt.Errorf("upsert tag %s: %w", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Deletes ---

func (s *SQLiteStore) DeleteIssue(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM issues WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("issue not found: %s", id)
	}
	return nil
}

// DeleteTag removes the tag row; the ON DELETE CASCADE on issue_tags
// removes only the join rows, never the issues.
func (s *SQLiteStore) DeleteTag(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("tag not found: %s", id)
	}
	return nil
}

// --- Relation maintenance ---

func (s *SQLiteStore) Link(ctx context.Context, issueID, tagID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO issue_tags (issue_id, tag_id) VALUES (?, ?)", issueID, tagID)
	if err != nil {
		return fmt.Errorf("link issue tag: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Unlink(ctx context.Context, issueID, tagID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM issue_tags WHERE issue_id = ? AND tag_id = ?", issueID, tagID)
	if err != nil {
		return fmt.Errorf("unlink issue tag: %w", err)
	}
	return nil
}

// ReplaceLinks swaps an issue's entire tag set in one transaction. The
// sync merge uses it when the remote side wins the relation.
func (s *SQLiteStore) ReplaceLinks(ctx context.Context, issueID string, tagIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM issue_tags WHERE issue_id = ?", issueID); err != nil {
		return fmt.Errorf("clear issue tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO issue_tags (issue_id, tag_id) VALUES (?, ?)", issueID, tagID); err != nil {
			return fmt.Errorf("link issue tag: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Batch delete ---

// BatchDeleteIssues wipes the issues table in one statement.
func (s *SQLiteStore) BatchDeleteIssues(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Join rows first: foreign_keys cascades cover this, but the wipe
	// must not depend on pragma state at open time.
	if _, err := tx.ExecContext(ctx, "DELETE FROM issue_tags"); err != nil {
		return 0, fmt.Errorf("batch delete issue tags: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM issues")
	if err != nil {
		return 0, fmt.Errorf("batch delete issues: %w", err)
	}
	n, _ := result.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return n, nil
}

// BatchDeleteTags wipes the tags table in one statement.
func (s *SQLiteStore) BatchDeleteTags(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM issue_tags"); err != nil {
		return 0, fmt.Errorf("batch delete issue tags: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM tags")
	if err != nil {
		return 0, fmt.Errorf("batch delete tags: %w", err)
	}
	n, _ := result.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return n, nil
}

// --- Counts ---

// CountIssues returns the persisted issue count, optionally constrained
// to a completion state, without materializing rows.
func (s *SQLiteStore) CountIssues(ctx context.Context, completed *bool) (int, error) {
	query := "SELECT COUNT(*) FROM issues"
	var args []any
	if completed != nil {
		query += " WHERE completed = ?"
		args = append(args, boolToInt(*completed))
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count issues: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) CountTags(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags").Scan(&n); err != nil {
		return 0, fmt.Errorf("count tags: %w", err)
	}
	return n, nil
}

// --- Settings ---

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
