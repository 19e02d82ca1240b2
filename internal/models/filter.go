package models

import "time"

// Filter is a saved query descriptor selecting which issues are visible.
// It is either bound to a tag, or "smart": matching issues modified
// after a threshold, ignoring tags entirely.
type Filter struct {
	Name        string
	Icon        string
	TagID       string    // non-empty for tag-bound filters
	MinModified time.Time // threshold for smart filters
}

// TagBound reports whether the filter matches by tag membership.
func (f Filter) TagBound() bool {
	return f.TagID != ""
}

// FilterAll matches every issue: the modification threshold sits in the
// distant past.
func FilterAll() Filter {
	return Filter{
		Name:        "All",
		Icon:        "tray",
		MinModified: time.Unix(0, 0),
	}
}

// FilterRecent matches issues modified within the last seven days.
func FilterRecent() Filter {
	return Filter{
		Name:        "Recent",
		Icon:        "clock",
		MinModified: time.Now().AddDate(0, 0, -7),
	}
}

// TagFilter builds a filter bound to the given tag.
func TagFilter(t *Tag) Filter {
	return Filter{
		Name:  t.DisplayName(),
		Icon:  "tag",
		TagID: t.ID,
	}
}
