package board

import (
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/dse-portal/noticeboard/types"
)

// DateWindow is a cutoff relative to "now" used for client-side filtering
type DateWindow string

// The date windows offered by the list pages
const (
	WindowAll       DateWindow = "all"
	WindowToday     DateWindow = "today"
	WindowLastWeek  DateWindow = "last-week"
	WindowLastMonth DateWindow = "last-month"
)

// cutoff computes the earliest date included in the window,
// or false when the window does not constrain dates
func (w DateWindow) cutoff(now time.Time) (time.Time, bool) {
	switch w {
	case WindowToday:
		return now.AddDate(0, 0, -1), true
	case WindowLastWeek:
		return now.AddDate(0, 0, -7), true
	case WindowLastMonth:
		return now.AddDate(0, -1, 0), true
	}
	return time.Time{}, false
}

// Filter narrows an already-fetched post list. Applying a filter never
// calls the server; it recomputes a derived sequence from the in-memory
// list every time a value changes
type Filter struct {
	Type   types.PostType
	Window DateWindow
	Search string
}

// Apply computes the filtered sequence, preserving relative order.
// The clock is injected so date windows are reproducible
func (f Filter) Apply(posts []types.Post, now time.Time) []types.Post {
	cutoff, hasCutoff := f.Window.cutoff(now)
	search := strings.ToLower(strings.TrimSpace(f.Search))

	filtered := make([]types.Post, 0, len(posts))
	for _, post := range posts {
		if f.Type != "" && post.Type != f.Type {
			continue
		}
		if hasCutoff && post.Date.Before(cutoff) {
			continue
		}
		if search != "" && !fuzzy.MatchNormalized(search, strings.ToLower(post.Title)) {
			continue
		}
		filtered = append(filtered, post)
	}

	return filtered
}
