package attachments

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dse-portal/noticeboard/posts"
	"github.com/dse-portal/noticeboard/types"
)

// Manager drives the upload/delete flows for a single post's attachments
// on a detail view. Uploads run through the state machine
// idle -> uploading -> idle, deletions independently through
// idle -> deleting(id) -> idle; success and failure both return to idle.
// Only one upload and, independently, one deletion may be in flight at a
// time, matching the disabled-control serialization of the original UI.
//
// After every successful mutation the held post is replaced wholesale with
// the server's response, so the attachment list stays consistent even when
// the server applies additional normalization
type Manager struct {
	client *posts.Client
	logger zerolog.Logger

	mu        sync.Mutex
	post      *types.Post
	uploading bool
	deleting  int
}

// NewManager creates a manager bound to one post
func NewManager(client *posts.Client, post *types.Post, logger zerolog.Logger) *Manager {
	return &Manager{
		client: client,
		logger: logger,
		post:   post,
	}
}

// Post gets the currently held post, including its attachment list
func (m *Manager) Post() *types.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.post
}

// Uploading determines whether an upload is in flight
// (drives the disabled state of the upload control)
func (m *Manager) Uploading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploading
}

// Deleting gets the ID of the attachment whose deletion is in flight
func (m *Manager) Deleting() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleting, m.deleting != 0
}

// Upload validates and uploads one file to the post. Files over the size
// limit are rejected inline without any network request. The error is
// surfaced once and not retried automatically; the caller re-triggers
func (m *Manager) Upload(ctx context.Context, filename string, size int64, file io.Reader) error {
	// Reject oversized files before touching the state machine
	// or the network
	if size > posts.MaxAttachmentSize {
		return posts.NewFileTooLargeError(filename, size, posts.MaxAttachmentSize)
	}

	m.mu.Lock()
	if m.uploading {
		m.mu.Unlock()
		return NewOperationInFlightError("upload")
	}
	m.uploading = true
	postID := m.post.ID
	m.mu.Unlock()

	updated, err := m.client.AddAttachment(ctx, postID, filename, size, file)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploading = false
	if err != nil {
		m.logger.Warn().Err(err).Int("post_id", postID).
			Str("filename", filename).Msg("attachment upload failed")
		return err
	}

	m.post = updated
	return nil
}

// Remove deletes one attachment from the post
func (m *Manager) Remove(ctx context.Context, attachmentID int) error {
	m.mu.Lock()
	if m.deleting != 0 {
		m.mu.Unlock()
		return NewOperationInFlightError("delete")
	}
	m.deleting = attachmentID
	postID := m.post.ID
	m.mu.Unlock()

	updated, err := m.client.RemoveAttachment(ctx, postID, attachmentID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleting = 0
	if err != nil {
		m.logger.Warn().Err(err).Int("post_id", postID).
			Int("attachment_id", attachmentID).Msg("attachment delete failed")
		return err
	}

	m.post = updated
	return nil
}
