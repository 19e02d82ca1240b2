package data

import (
	"context"
	"sort"

	"github.com/jtmorrow/tick/internal/models"
)

// RemoteIssue is one issue-level entry in a remote change set.
type RemoteIssue struct {
	Issue   models.Issue
	TagIDs  []string
	Deleted bool
}

// RemoteTag is one tag-level entry in a remote change set.
type RemoteTag struct {
	Tag     models.Tag
	Deleted bool
}

// MergeResult summarizes one remote merge for status reporting.
type MergeResult struct {
	Created   int
	Updated   int
	Deleted   int
	Conflicts int // records where a locally dirty field overrode the remote value
}

// MergeRemote folds a remote change set into the working set under the
// field-level last-writer-wins policy: any field carrying an unflushed
// local edit keeps its local value even if the remote write is
// chronologically later. The user actively editing on this device never
// has an in-flight edit silently overwritten.
//
// Merged records are written through, and a single aggregated change
// notification fires afterwards.
func (c *Controller) MergeRemote(ctx context.Context, issues []RemoteIssue, tags []RemoteTag) MergeResult {
	var res MergeResult
	var issueIDs, tagIDs []string

	c.mu.Lock()

	for _, rt := range tags {
		id := rt.Tag.ID
		if id == "" {
			continue
		}
		tagIDs = append(tagIDs, id)

		local := c.tags[id]
		switch {
		case rt.Deleted:
			if local == nil {
				continue
			}
			if c.dirtyTags[id] {
				// Locally renamed while remotely deleted: keep ours.
				res.Conflicts++
				continue
			}
			for issueID := range c.tagIssues[id] {
				delete(c.issueTags[issueID], id)
			}
			delete(c.tagIssues, id)
			delete(c.tags, id)
			c.deadTags[id] = true
			res.Deleted++
		case local == nil:
			t := rt.Tag
			c.tags[id] = &t
			c.tagIssues[id] = make(map[string]bool)
			c.dirtyTags[id] = true
			res.Created++
		default:
			if c.dirtyTags[id] {
				res.Conflicts++
				continue
			}
			local.Name = rt.Tag.Name
			c.dirtyTags[id] = true
			res.Updated++
		}
	}

	for _, ri := range issues {
		id := ri.Issue.ID
		if id == "" {
			continue
		}
		issueIDs = append(issueIDs, id)

		local := c.issues[id]
		dirty := c.dirtyIssues[id]

		switch {
		case ri.Deleted:
			if local == nil {
				continue
			}
			if len(dirty) > 0 {
				res.Conflicts++
				continue
			}
			for tagID := range c.issueTags[id] {
				delete(c.tagIssues[tagID], id)
			}
			delete(c.issueTags, id)
			delete(c.issues, id)
			c.deadIssues[id] = true
			res.Deleted++
		case local == nil:
			issue := ri.Issue
			c.issues[id] = &issue
			c.issueTags[id] = make(map[string]bool)
			c.setLinksLocked(id, ri.TagIDs)
			c.dirtyIssues[id] = FieldSet{FieldTitle: true, FieldTags: true}
			res.Created++
		default:
			conflicted := c.mergeIssueLocked(local, dirty, ri)
			if conflicted {
				res.Conflicts++
			} else {
				res.Updated++
			}
			c.dirtyIssues[id] = c.dirtyIssues[id].add(FieldTags)
		}
	}

	c.mu.Unlock()

	// Write the merged state through now; a failure leaves the records
	// dirty for the next flush.
	_ = c.Save(ctx)

	c.obs.notify(Change{Kind: ChangeMerge, IssueIDs: issueIDs, TagIDs: tagIDs})
	return res
}

// mergeIssueLocked applies remote field values, skipping any field the
// local side has edited since the last flush. Reports whether a local
// field won a conflict.
func (c *Controller) mergeIssueLocked(local *models.Issue, dirty FieldSet, ri RemoteIssue) bool {
	conflicted := false
	take := func(f Field, apply func()) {
		if dirty.Has(f) {
			conflicted = true
			return
		}
		apply()
	}

	take(FieldTitle, func() { local.Title = ri.Issue.Title })
	take(FieldContent, func() { local.Content = ri.Issue.Content })
	take(FieldPriority, func() { local.Priority = ri.Issue.Priority })
	take(FieldCompleted, func() { local.Completed = ri.Issue.Completed })
	take(FieldReminderEnabled, func() { local.ReminderEnabled = ri.Issue.ReminderEnabled })
	take(FieldReminderTime, func() { local.ReminderTime = ri.Issue.ReminderTime })
	take(FieldTags, func() { c.setLinksLocked(local.ID, ri.TagIDs) })

	if ri.Issue.UpdatedAt.After(local.UpdatedAt) {
		local.UpdatedAt = ri.Issue.UpdatedAt
	}
	return conflicted
}

// setLinksLocked replaces the issue's tag set on both index sides.
// Remote tag IDs with no local tag record are dropped.
func (c *Controller) setLinksLocked(issueID string, tagIDs []string) {
	for tagID := range c.issueTags[issueID] {
		delete(c.tagIssues[tagID], issueID)
	}
	links := make(map[string]bool, len(tagIDs))
	for _, tagID := range tagIDs {
		if c.tags[tagID] == nil {
			continue
		}
		links[tagID] = true
		c.tagIssues[tagID][issueID] = true
	}
	c.issueTags[issueID] = links
}

// SyncStates classifies every local record against a remote ID set:
// records the remote side knows are "synced", the rest are "local-only".
// Dirty records known remotely count as potential conflicts for the
// next merge.
func (c *Controller) SyncStates(remoteIssueIDs map[string]bool) (localOnly, synced, dirtyKnown []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.issues {
		switch {
		case !remoteIssueIDs[id]:
			localOnly = append(localOnly, id)
		case len(c.dirtyIssues[id]) > 0:
			dirtyKnown = append(dirtyKnown, id)
		default:
			synced = append(synced, id)
		}
	}
	sort.Strings(localOnly)
	sort.Strings(synced)
	sort.Strings(dirtyKnown)
	return localOnly, synced, dirtyKnown
}
