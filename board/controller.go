package board

import (
	"context"
	"fmt"
	"time"

	"github.com/hako/durafmt"
	"github.com/rs/zerolog"

	"github.com/dse-portal/noticeboard/auth"
	"github.com/dse-portal/noticeboard/posts"
	"github.com/dse-portal/noticeboard/types"
)

// State is the page-level loading state of a post list
type State int

// Each navigation starts at StateLoading and ends at exactly one of
// StateReady or StateError; there is no cached/stale intermediate state
const (
	StateLoading State = iota
	StateReady
	StateError
)

// Bucket selects which lifecycle collection a controller shows
type Bucket string

// The two mutually exclusive lifecycle buckets
const (
	BucketActive   Bucket = "active"
	BucketArchived Bucket = "archived"
)

// Controller drives one post-list page: it loads a bucket from the
// repository client, recomputes the filtered view, gates mutation controls
// on the session's role, and runs the confirmed deletion flow.
//
// It mirrors the single-threaded UI execution model: one logical caller
// at a time, with in-flight work tracked through the State value
type Controller struct {
	client  *posts.Client
	session *auth.Session
	logger  zerolog.Logger
	now     func() time.Time

	bucket  Bucket
	state   State
	posts   []types.Post
	filter  Filter
	loadErr error
}

// NewController creates a controller for one bucket's list page
func NewController(client *posts.Client, session *auth.Session,
	bucket Bucket, logger zerolog.Logger) *Controller {
	return &Controller{
		client:  client,
		session: session,
		logger:  logger,
		now:     time.Now,
		bucket:  bucket,
		state:   StateLoading,
		filter:  Filter{Window: WindowAll},
	}
}

// WithClock swaps the clock used for date-window filtering,
// used to make tests reproducible
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// Load fetches the bucket's post list from the server. Every navigation
// re-fetches; an earlier list is never reused as a cache
func (c *Controller) Load(ctx context.Context) error {
	c.state = StateLoading
	c.posts = nil
	c.loadErr = nil

	var loaded []types.Post
	var err error
	switch c.bucket {
	case BucketArchived:
		loaded, err = c.client.ListArchived(ctx)
	default:
		loaded, err = c.client.ListActive(ctx)
	}

	if err != nil {
		c.state = StateError
		c.loadErr = err
		c.logger.Warn().Err(err).Str("bucket", string(c.bucket)).Msg("could not load post list")
		return err
	}

	c.state = StateReady
	c.posts = loaded
	return nil
}

// State gets the current page state
func (c *Controller) State() State {
	return c.state
}

// Err gets the error that moved the page into StateError, if any
func (c *Controller) Err() error {
	return c.loadErr
}

// SetFilter replaces the active filter values;
// the visible sequence is recomputed on the next Visible call
func (c *Controller) SetFilter(filter Filter) {
	c.filter = filter
}

// Visible computes the filtered view over the fetched list.
// Filtering is purely client-side and never calls the server
func (c *Controller) Visible() []types.Post {
	if c.state != StateReady {
		return nil
	}
	return c.filter.Apply(c.posts, c.now())
}

// CanMutate determines whether create/edit/delete controls should render.
// Presentation-layer gating only; the server performs the real check
func (c *Controller) CanMutate() bool {
	return c.session.IsAdmin()
}

// Delete runs the deletion flow for a post: an explicit confirmation step,
// then the irreversible server call. It reports whether the post was
// deleted; a declined confirmation is not an error. On failure no local
// state changes, so the action can simply be retried
func (c *Controller) Delete(ctx context.Context, id int, confirm func() bool) (bool, error) {
	if confirm != nil && !confirm() {
		return false, nil
	}

	if err := c.client.Remove(ctx, id); err != nil {
		return false, err
	}

	return true, nil
}

// StatsSummary fetches the archive stats and formats them for the
// dashboard, with a human-readable retention window
func (c *Controller) StatsSummary(ctx context.Context) (string, error) {
	stats, err := c.client.ArchiveStats(ctx)
	if err != nil {
		return "", err
	}

	window := durafmt.Parse(time.Duration(stats.ArchiveDays) * 24 * time.Hour).
		LimitFirstN(2).String()
	return fmt.Sprintf("%d posts: %d active, %d archived; posts older than %s are archived (cutoff %s)",
		stats.TotalPosts, stats.ActivePosts, stats.ArchivedPosts,
		window, stats.ArchiveCutoffDate.Format(types.DateLayout)), nil
}
