package data

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtmorrow/tick/internal/models"
)

func TestMergeRemote_CreatesUnknownRecords(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	now := time.Now().UTC()
	res := c.MergeRemote(ctx,
		[]RemoteIssue{{Issue: models.Issue{ID: "r1", Title: "from another device", CreatedAt: now, UpdatedAt: now}}},
		[]RemoteTag{{Tag: models.Tag{ID: "t1", Name: "shared"}}},
	)

	assert.Equal(t, 2, res.Created)
	got, ok := c.Issue("r1")
	require.True(t, ok)
	assert.Equal(t, "from another device", got.Title)
	_, ok = c.Tag("t1")
	assert.True(t, ok)
}

func TestMergeRemote_CleanFieldsTakeRemote(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	issue := c.CreateIssue(ctx)
	c.SetTitle(issue.ID, "local title")
	require.NoError(t, c.Save(ctx)) // nothing dirty afterwards

	remote := *issue
	remote.Title = "remote title"
	remote.Priority = models.IssuePriorityHigh
	remote.UpdatedAt = time.Now().UTC().Add(time.Minute)

	res := c.MergeRemote(ctx, []RemoteIssue{{Issue: remote}}, nil)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 0, res.Conflicts)

	got, _ := c.Issue(issue.ID)
	assert.Equal(t, "remote title", got.Title)
	assert.Equal(t, models.IssuePriorityHigh, got.Priority)
}

func TestMergeRemote_LocalDirtyFieldWins(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	issue := c.CreateIssue(ctx)
	c.SetContent(issue.ID, "settled content")
	require.NoError(t, c.Save(ctx))

	// In-flight local edit, not yet flushed.
	c.SetTitle(issue.ID, "my unsent edit")

	remote := *issue
	remote.Title = "remote overwrite"
	remote.Content = "remote content"
	// Remote is chronologically later and still loses the dirty field.
	remote.UpdatedAt = time.Now().UTC().Add(time.Hour)

	res := c.MergeRemote(ctx, []RemoteIssue{{Issue: remote}}, nil)
	assert.Equal(t, 1, res.Conflicts)

	got, _ := c.Issue(issue.ID)
	assert.Equal(t, "my unsent edit", got.Title, "in-flight local edit is never overwritten")
	assert.Equal(t, "remote content", got.Content, "clean fields still take the remote value")
}

func TestMergeRemote_DeleteSkippedWhenLocallyDirty(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	issue := c.CreateIssue(ctx)
	require.NoError(t, c.Save(ctx))
	c.SetTitle(issue.ID, "editing right now")

	res := c.MergeRemote(ctx, []RemoteIssue{{Issue: models.Issue{ID: issue.ID}, Deleted: true}}, nil)
	assert.Equal(t, 1, res.Conflicts)
	_, ok := c.Issue(issue.ID)
	assert.True(t, ok, "remote delete loses to an in-flight local edit")
}

func TestMergeRemote_DeleteAppliesWhenClean(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	issue := c.CreateIssue(ctx)
	tag := c.CreateTag(ctx)
	require.True(t, c.AttachTag(ctx, issue.ID, tag.ID))
	require.NoError(t, c.Save(ctx))

	res := c.MergeRemote(ctx, []RemoteIssue{{Issue: models.Issue{ID: issue.ID}, Deleted: true}}, nil)
	assert.Equal(t, 1, res.Deleted)
	_, ok := c.Issue(issue.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, c.ActiveIssueCount(tag.ID))
}

func TestMergeRemote_RemoteLinksApply(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	issue := c.CreateIssue(ctx)
	tag := c.CreateTag(ctx)
	require.NoError(t, c.Save(ctx))

	remote := *issue
	res := c.MergeRemote(ctx, []RemoteIssue{{Issue: remote, TagIDs: []string{tag.ID, "unknown-tag"}}}, nil)
	assert.Equal(t, 1, res.Updated)
	assert.True(t, c.HasTag(issue.ID, tag.ID))
	assert.False(t, c.HasTag(issue.ID, "unknown-tag"), "links to unknown tags are dropped")
}

func TestMergeRemote_SingleAggregatedNotification(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	var mu sync.Mutex
	var got []Change
	c.Subscribe(func(ch Change) {
		mu.Lock()
		got = append(got, ch)
		mu.Unlock()
	})

	now := time.Now().UTC()
	c.MergeRemote(ctx,
		[]RemoteIssue{
			{Issue: models.Issue{ID: "a", Title: "one", CreatedAt: now, UpdatedAt: now}},
			{Issue: models.Issue{ID: "b", Title: "two", CreatedAt: now, UpdatedAt: now}},
		},
		[]RemoteTag{{Tag: models.Tag{ID: "t", Name: "shared"}}},
	)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1, "a merge emits one aggregated notification")
	assert.Equal(t, ChangeMerge, got[0].Kind)
	assert.ElementsMatch(t, []string{"a", "b"}, got[0].IssueIDs)
	assert.Equal(t, []string{"t"}, got[0].TagIDs)
}

func TestSyncStates(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	known := c.CreateIssue(ctx)
	unknown := c.CreateIssue(ctx)
	editing := c.CreateIssue(ctx)
	require.NoError(t, c.Save(ctx))
	c.SetTitle(editing.ID, "dirty")

	localOnly, synced, dirtyKnown := c.SyncStates(map[string]bool{
		known.ID:   true,
		editing.ID: true,
	})
	assert.Equal(t, []string{unknown.ID}, localOnly)
	assert.Equal(t, []string{known.ID}, synced)
	assert.Equal(t, []string{editing.ID}, dirtyKnown)
}
