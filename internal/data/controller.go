// Package data owns the in-memory working set of issues and tags and is
// the single writer for all of it. Reads are answered from memory and
// recomputed per call; durability is a SQLite store behind a debounced
// flush. Nothing outside this package mutates entities directly.
package data

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jtmorrow/tick/internal/models"
	"github.com/jtmorrow/tick/internal/query"
	"github.com/jtmorrow/tick/internal/store"
)

// DefaultFlushInterval is the quiescence window for debounced saves: a
// burst of edits inside the window produces exactly one flush.
const DefaultFlushInterval = 3 * time.Second

// SettingPremiumUnlocked is the settings key for the premium flag.
const SettingPremiumUnlocked = "premium_unlocked"

// EntityKind selects issues or tags for bulk operations.
type EntityKind int

const (
	KindIssue EntityKind = iota
	KindTag
)

// Controller is the data controller: working set, two-sided issue/tag
// index, dirty tracking, debounce timer, and observer list.
type Controller struct {
	st store.Store

	// FlushInterval is the debounce window. Tests shorten it.
	FlushInterval time.Duration

	mu        sync.Mutex
	issues    map[string]*models.Issue
	tags      map[string]*models.Tag
	issueTags map[string]map[string]bool // issue ID -> tag IDs
	tagIssues map[string]map[string]bool // tag ID -> issue IDs

	dirtyIssues map[string]FieldSet
	dirtyTags   map[string]bool
	deadIssues  map[string]bool // deleted locally, pending store delete
	deadTags    map[string]bool

	selected models.Filter
	premium  bool

	timer    *time.Timer
	timerGen uint64

	obs observers
}

// New creates a controller over the given store. Call Load before use.
func New(st store.Store) *Controller {
	return &Controller{
		st:            st,
		FlushInterval: DefaultFlushInterval,
		issues:        make(map[string]*models.Issue),
		tags:          make(map[string]*models.Tag),
		issueTags:     make(map[string]map[string]bool),
		tagIssues:     make(map[string]map[string]bool),
		dirtyIssues:   make(map[string]FieldSet),
		dirtyTags:     make(map[string]bool),
		deadIssues:    make(map[string]bool),
		deadTags:      make(map[string]bool),
		selected:      models.FilterAll(),
	}
}

// Load reads the full persisted state into the working set. A failure
// here is a broken installation and should be treated as fatal by the
// caller; it is the one read error that is not converted to "empty".
func (c *Controller) Load(ctx context.Context) error {
	snap, err := c.st.LoadAll(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, issue := range snap.Issues {
		c.issues[issue.ID] = issue
		c.issueTags[issue.ID] = make(map[string]bool)
	}
	for _, t := range snap.Tags {
		c.tags[t.ID] = t
		c.tagIssues[t.ID] = make(map[string]bool)
	}
	for issueID, tagIDs := range snap.Links {
		for _, tagID := range tagIDs {
			if c.issues[issueID] == nil || c.tags[tagID] == nil {
				continue
			}
			c.issueTags[issueID][tagID] = true
			c.tagIssues[tagID][issueID] = true
		}
	}

	if v, ok, err := c.st.GetSetting(ctx, SettingPremiumUnlocked); err == nil && ok {
		c.premium, _ = strconv.ParseBool(v)
	}
	return nil
}

// Subscribe registers a change listener; the returned func removes it.
// Listeners fire after any create, delete, wipe, or merge.
func (c *Controller) Subscribe(fn func(Change)) func() {
	return c.obs.subscribe(fn)
}

// SelectFilter sets the active filter. Newly created issues attach to
// its tag when it is tag-bound.
func (c *Controller) SelectFilter(f models.Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = f
}

// SelectedFilter returns the active filter.
func (c *Controller) SelectedFilter() models.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// --- Create ---

// CreateIssue allocates a new issue with defaults, attaches it to the
// selected tag filter if one is active, and persists it immediately.
func (c *Controller) CreateIssue(ctx context.Context) *models.Issue {
	now := time.Now().UTC()
	issue := &models.Issue{
		ID:        store.NewULID(),
		Title:     "New issue",
		Priority:  models.IssuePriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}

	c.mu.Lock()
	c.issues[issue.ID] = issue
	c.issueTags[issue.ID] = make(map[string]bool)

	var attachTo string
	if c.selected.TagBound() && c.tags[c.selected.TagID] != nil {
		attachTo = c.selected.TagID
		c.issueTags[issue.ID][attachTo] = true
		c.tagIssues[attachTo][issue.ID] = true
	}
	c.mu.Unlock()

	// Creates are atomic units: written through, not debounced. A write
	// failure is dropped; the record stays dirty for the next flush.
	if err := c.st.UpsertIssues(ctx, []*models.Issue{issue}); err != nil {
		c.mu.Lock()
		c.dirtyIssues[issue.ID] = FieldSet{FieldTitle: true}
		c.mu.Unlock()
	} else if attachTo != "" {
		_ = c.st.Link(ctx, issue.ID, attachTo)
	}

	c.obs.notify(Change{Kind: ChangeCreate, IssueIDs: []string{issue.ID}})
	return issue
}

// CreateTag allocates a new tag with defaults and persists it.
func (c *Controller) CreateTag(ctx context.Context) *models.Tag {
	t := &models.Tag{Name: "New tag"}
	t.EnsureID()

	c.mu.Lock()
	c.tags[t.ID] = t
	c.tagIssues[t.ID] = make(map[string]bool)
	c.mu.Unlock()

	if err := c.st.UpsertTags(ctx, []*models.Tag{t}); err != nil {
		c.mu.Lock()
		c.dirtyTags[t.ID] = true
		c.mu.Unlock()
	}

	c.obs.notify(Change{Kind: ChangeCreate, TagIDs: []string{t.ID}})
	return t
}

// --- Field edits (debounced) ---

func (c *Controller) editIssue(id string, f Field, apply func(*models.Issue)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	issue := c.issues[id]
	if issue == nil {
		return false
	}
	apply(issue)
	issue.UpdatedAt = time.Now().UTC()
	c.dirtyIssues[id] = c.dirtyIssues[id].add(f)
	c.queueSaveLocked()
	return true
}

// SetTitle edits the issue title and schedules a debounced flush.
func (c *Controller) SetTitle(id, title string) bool {
	return c.editIssue(id, FieldTitle, func(i *models.Issue) { i.Title = title })
}

// SetContent edits the issue content.
func (c *Controller) SetContent(id, content string) bool {
	return c.editIssue(id, FieldContent, func(i *models.Issue) { i.Content = content })
}

// SetPriority edits the issue priority.
func (c *Controller) SetPriority(id string, p models.IssuePriority) bool {
	return c.editIssue(id, FieldPriority, func(i *models.Issue) { i.Priority = p })
}

// SetCompleted opens or closes the issue.
func (c *Controller) SetCompleted(id string, done bool) bool {
	return c.editIssue(id, FieldCompleted, func(i *models.Issue) { i.Completed = done })
}

// SetReminder edits both reminder fields together.
func (c *Controller) SetReminder(id string, enabled bool, at string) bool {
	ok := c.editIssue(id, FieldReminderEnabled, func(i *models.Issue) { i.ReminderEnabled = enabled })
	if !ok {
		return false
	}
	return c.editIssue(id, FieldReminderTime, func(i *models.Issue) { i.ReminderTime = at })
}

// RenameTag edits a tag name and schedules a debounced flush.
func (c *Controller) RenameTag(id, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tags[id]
	if t == nil {
		return false
	}
	t.Name = name
	c.dirtyTags[id] = true
	c.queueSaveLocked()
	return true
}

// --- Relations ---

// AttachTag adds the issue/tag relation, updating both index sides
// atomically and writing the join row through immediately.
func (c *Controller) AttachTag(ctx context.Context, issueID, tagID string) bool {
	c.mu.Lock()
	if c.issues[issueID] == nil || c.tags[tagID] == nil {
		c.mu.Unlock()
		return false
	}
	c.issueTags[issueID][tagID] = true
	c.tagIssues[tagID][issueID] = true
	c.issues[issueID].UpdatedAt = time.Now().UTC()
	c.dirtyIssues[issueID] = c.dirtyIssues[issueID].add(FieldTags)
	c.queueSaveLocked()
	c.mu.Unlock()

	_ = c.st.Link(ctx, issueID, tagID)
	return true
}

// DetachTag removes the relation from both index sides.
func (c *Controller) DetachTag(ctx context.Context, issueID, tagID string) bool {
	c.mu.Lock()
	if c.issues[issueID] == nil || c.tags[tagID] == nil {
		c.mu.Unlock()
		return false
	}
	delete(c.issueTags[issueID], tagID)
	delete(c.tagIssues[tagID], issueID)
	c.issues[issueID].UpdatedAt = time.Now().UTC()
	c.dirtyIssues[issueID] = c.dirtyIssues[issueID].add(FieldTags)
	c.queueSaveLocked()
	c.mu.Unlock()

	_ = c.st.Unlink(ctx, issueID, tagID)
	return true
}

// --- Delete ---

// DeleteIssue removes the issue from the working set and every tag's
// relation set, then schedules a flush.
func (c *Controller) DeleteIssue(id string) bool {
	c.mu.Lock()
	if c.issues[id] == nil {
		c.mu.Unlock()
		return false
	}
	for tagID := range c.issueTags[id] {
		delete(c.tagIssues[tagID], id)
	}
	delete(c.issueTags, id)
	delete(c.issues, id)
	delete(c.dirtyIssues, id)
	c.deadIssues[id] = true
	c.queueSaveLocked()
	c.mu.Unlock()

	c.obs.notify(Change{Kind: ChangeDelete, IssueIDs: []string{id}})
	return true
}

// DeleteTag removes the tag and its relations. The issues it referenced
// are untouched; the cascade is one-directional.
func (c *Controller) DeleteTag(id string) bool {
	c.mu.Lock()
	if c.tags[id] == nil {
		c.mu.Unlock()
		return false
	}
	for issueID := range c.tagIssues[id] {
		delete(c.issueTags[issueID], id)
	}
	delete(c.tagIssues, id)
	delete(c.tags, id)
	delete(c.dirtyTags, id)
	c.deadTags[id] = true
	c.queueSaveLocked()
	c.mu.Unlock()

	c.obs.notify(Change{Kind: ChangeDelete, TagIDs: []string{id}})
	return true
}

// BatchDelete wipes all entities of one kind with a bulk statement.
// It is synchronous: when it returns, dependent reads see the post-wipe
// state.
func (c *Controller) BatchDelete(ctx context.Context, kind EntityKind) (int64, error) {
	c.mu.Lock()
	c.cancelTimerLocked()

	var n int64
	var err error
	switch kind {
	case KindIssue:
		n, err = c.st.BatchDeleteIssues(ctx)
		if err == nil {
			c.issues = make(map[string]*models.Issue)
			c.issueTags = make(map[string]map[string]bool)
			for tagID := range c.tagIssues {
				c.tagIssues[tagID] = make(map[string]bool)
			}
			c.dirtyIssues = make(map[string]FieldSet)
			c.deadIssues = make(map[string]bool)
		}
	case KindTag:
		n, err = c.st.BatchDeleteTags(ctx)
		if err == nil {
			c.tags = make(map[string]*models.Tag)
			c.tagIssues = make(map[string]map[string]bool)
			for issueID := range c.issueTags {
				c.issueTags[issueID] = make(map[string]bool)
			}
			c.dirtyTags = make(map[string]bool)
			c.deadTags = make(map[string]bool)
		}
	}
	c.mu.Unlock()

	if err != nil {
		return 0, err
	}
	c.obs.notify(Change{Kind: ChangeWipe})
	return n, nil
}

// --- Flush ---

// Save flushes pending mutations now. It cancels any scheduled flush,
// does nothing when nothing is pending, and is safe to call repeatedly.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	return c.flushLocked(ctx)
}

// QueueSave schedules a flush after the quiescence window, replacing
// any previously scheduled one.
func (c *Controller) QueueSave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queueSaveLocked()
}

func (c *Controller) cancelTimerLocked() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) queueSaveLocked() {
	c.cancelTimerLocked()
	gen := c.timerGen
	c.timer = time.AfterFunc(c.FlushInterval, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// A Save or newer QueueSave superseded this timer while it was
		// firing; a stale timer must never produce a flush.
		if gen != c.timerGen {
			return
		}
		c.timer = nil
		_ = c.flushLocked(context.Background())
	})
}

// flushLocked writes dirty and dead records through. On a write failure
// the records stay pending so the next flush retries; the error is
// reported but never escalated by callers (silent degrade).
func (c *Controller) flushLocked(ctx context.Context) error {
	if len(c.dirtyIssues) == 0 && len(c.dirtyTags) == 0 &&
		len(c.deadIssues) == 0 && len(c.deadTags) == 0 {
		return nil
	}

	var firstErr error

	// Not-found here is fine: the record was created and deleted inside
	// one debounce window and never reached the store.
	for id := range c.deadIssues {
		_ = c.st.DeleteIssue(ctx, id)
		delete(c.deadIssues, id)
	}
	for id := range c.deadTags {
		_ = c.st.DeleteTag(ctx, id)
		delete(c.deadTags, id)
	}

	if len(c.dirtyIssues) > 0 {
		batch := make([]*models.Issue, 0, len(c.dirtyIssues))
		links := make(map[string][]string, len(c.dirtyIssues))
		for id, fields := range c.dirtyIssues {
			issue := c.issues[id]
			if issue == nil {
				delete(c.dirtyIssues, id)
				continue
			}
			batch = append(batch, issue)
			if fields.Has(FieldTags) {
				links[id] = c.tagIDsLocked(id)
			}
		}
		if err := c.st.UpsertIssues(ctx, batch); err != nil {
			firstErr = err
		} else {
			for _, issue := range batch {
				delete(c.dirtyIssues, issue.ID)
			}
			for id, tagIDs := range links {
				_ = c.st.ReplaceLinks(ctx, id, tagIDs)
			}
		}
	}

	if len(c.dirtyTags) > 0 {
		batch := make([]*models.Tag, 0, len(c.dirtyTags))
		for id := range c.dirtyTags {
			if t := c.tags[id]; t != nil {
				batch = append(batch, t)
			} else {
				delete(c.dirtyTags, id)
			}
		}
		if err := c.st.UpsertTags(ctx, batch); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			for _, t := range batch {
				delete(c.dirtyTags, t.ID)
			}
		}
	}

	return firstErr
}

// --- Reads ---

// Issue looks up one issue. Callers must treat the result as read-only;
// edits go through the Set* methods.
func (c *Controller) Issue(id string) (*models.Issue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	issue, ok := c.issues[id]
	return issue, ok
}

// Tag looks up one tag.
func (c *Controller) Tag(id string) (*models.Tag, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tags[id]
	return t, ok
}

// TagByName returns the first tag with the given name, matched
// case-insensitively. Name ties resolve by UUID order.
func (c *Controller) TagByName(name string) (*models.Tag, bool) {
	tags := c.AllTags()
	for _, t := range tags {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return nil, false
}

// Query evaluates the spec against the working set. Results are
// recomputed every call; a failed read presents as an empty slice.
func (c *Controller) Query(spec query.Spec) []*models.Issue {
	c.mu.Lock()
	issues := make([]*models.Issue, 0, len(c.issues))
	for _, issue := range c.issues {
		issues = append(issues, issue)
	}
	c.mu.Unlock()

	return spec.Apply(issues, c.HasTag)
}

// Count returns the cardinality of a query without sorting or
// materializing the result slice.
func (c *Controller) Count(spec query.Spec) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, issue := range c.issues {
		if spec.Match(issue, c.hasTagLocked) {
			n++
		}
	}
	return n
}

// HasTag reports whether the issue references the tag.
func (c *Controller) HasTag(issueID, tagID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasTagLocked(issueID, tagID)
}

func (c *Controller) hasTagLocked(issueID, tagID string) bool {
	return c.issueTags[issueID][tagID]
}

// IssueTags returns the issue's tags sorted alphabetically.
func (c *Controller) IssueTags(issueID string) []*models.Tag {
	c.mu.Lock()
	out := make([]*models.Tag, 0, len(c.issueTags[issueID]))
	for tagID := range c.issueTags[issueID] {
		if t := c.tags[tagID]; t != nil {
			out = append(out, t)
		}
	}
	c.mu.Unlock()
	sortTags(out)
	return out
}

// MissingTags returns all tags not associated with the issue, sorted by
// the tag's natural key. Computed as a symmetric difference in memory;
// the tag population is small.
func (c *Controller) MissingTags(issueID string) []*models.Tag {
	c.mu.Lock()
	out := make([]*models.Tag, 0, len(c.tags))
	for id, t := range c.tags {
		if !c.issueTags[issueID][id] {
			out = append(out, t)
		}
	}
	c.mu.Unlock()
	sortTags(out)
	return out
}

// ActiveIssueCount is the number of open issues referencing the tag.
func (c *Controller) ActiveIssueCount(tagID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for issueID := range c.tagIssues[tagID] {
		if issue := c.issues[issueID]; issue != nil && !issue.Completed {
			n++
		}
	}
	return n
}

// AllIssues returns every issue sorted by the natural key.
func (c *Controller) AllIssues() []*models.Issue {
	c.mu.Lock()
	out := make([]*models.Issue, 0, len(c.issues))
	for _, issue := range c.issues {
		out = append(out, issue)
	}
	c.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// AllTags returns every tag sorted by the natural key.
func (c *Controller) AllTags() []*models.Tag {
	c.mu.Lock()
	out := make([]*models.Tag, 0, len(c.tags))
	for _, t := range c.tags {
		out = append(out, t)
	}
	c.mu.Unlock()
	sortTags(out)
	return out
}

// ResolveTagTokens maps token names to tag IDs. Unresolved names map to
// themselves: no tag carries that ID, so the clause matches nothing and
// the conjunction stays narrowing.
func (c *Controller) ResolveTagTokens(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if t, ok := c.TagByName(name); ok {
			out = append(out, t.ID)
		} else {
			out = append(out, name)
		}
	}
	return out
}

// --- Counts for award evaluation ---

// IssueCount is the total number of issues in the working set.
func (c *Controller) IssueCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.issues)
}

// ClosedCount is the number of completed issues.
func (c *Controller) ClosedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, issue := range c.issues {
		if issue.Completed {
			n++
		}
	}
	return n
}

// TagCount is the total number of tags.
func (c *Controller) TagCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tags)
}

// PremiumUnlocked reports the persisted premium flag.
func (c *Controller) PremiumUnlocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.premium
}

// SetPremiumUnlocked persists the premium flag through settings.
func (c *Controller) SetPremiumUnlocked(ctx context.Context, unlocked bool) error {
	c.mu.Lock()
	c.premium = unlocked
	c.mu.Unlock()
	return c.st.SetSetting(ctx, SettingPremiumUnlocked, strconv.FormatBool(unlocked))
}

// tagIDsLocked snapshots the issue's tag ID set.
func (c *Controller) tagIDsLocked(issueID string) []string {
	out := make([]string, 0, len(c.issueTags[issueID]))
	for tagID := range c.issueTags[issueID] {
		out = append(out, tagID)
	}
	return out
}

func sortTags(tags []*models.Tag) {
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].Less(tags[j]) })
}
