package portaltest

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/dse-portal/noticeboard/types"
)

// NotFoundError is an error used to encode when an ID isn't found
// for get, update, and delete operations
type NotFoundError struct {
	Kind string
	ID   int
}

// NewNotFoundError constructs a new NotFoundError
func NewNotFoundError(kind string, id int) *NotFoundError {
	return &NotFoundError{
		Kind: kind,
		ID:   id,
	}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID '%d' not found", e.Kind, e.ID)
}

// HTTPStatusCode gets the status code the error corresponds to
func (e *NotFoundError) HTTPStatusCode() int {
	return http.StatusNotFound
}

// storedFile is an uploaded attachment body held in memory
type storedFile struct {
	key         string
	contentType string
	data        []byte
}

// Store is the in-memory post store behind the reference server.
// It encodes the server-side semantics the client contract depends on:
// ID assignment, audit timestamps, full-replace updates, cascade delete,
// and the archive partition computed against the retention window
type Store struct {
	mu               sync.Mutex
	nextPostID       int
	nextAttachmentID int
	archiveDays      int
	now              func() time.Time
	posts            map[int]*types.Post
	files            map[string]*storedFile
	fileKeys         map[int]string
}

// NewStore creates an empty store with the given retention window in days
func NewStore(archiveDays int) *Store {
	return &Store{
		nextPostID:       1,
		nextAttachmentID: 1,
		archiveDays:      archiveDays,
		now:              time.Now,
		posts:            make(map[int]*types.Post),
		files:            make(map[string]*storedFile),
		fileKeys:         make(map[int]string),
	}
}

// WithClock swaps the clock used for timestamps and archive bucketing
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// archiveCutoff computes the date before which posts count as archived
func (s *Store) archiveCutoff() time.Time {
	return types.NewDate(s.now().AddDate(0, 0, -s.archiveDays)).Time
}

// archived determines which bucket a post belongs to; the sort/display
// date decides, falling back to the creation timestamp
func (s *Store) archived(post *types.Post) bool {
	date := post.Date.Time
	if date.IsZero() {
		date = post.CreatedAt
	}
	return date.Before(s.archiveCutoff())
}

// CreatePost assigns an ID and audit timestamps and stores the post
// in the active collection with no attachments
func (s *Store) CreatePost(payload types.PostCreate) types.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	post := &types.Post{
		ID:          s.nextPostID,
		Type:        payload.Type,
		Title:       payload.Title,
		Content:     payload.Content,
		Date:        payload.Date,
		CreatedAt:   now,
		UpdatedAt:   now,
		Attachments: []types.Attachment{},
	}
	if post.Date.IsZero() {
		post.Date = types.NewDate(now)
	}
	s.nextPostID++
	s.posts[post.ID] = post

	return clonePost(post)
}

// UpdatePost replaces the post's fields wholesale and bumps updated_at
func (s *Store) UpdatePost(id int, payload types.PostUpdate) (types.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return types.Post{}, NewNotFoundError("post", id)
	}

	post.Type = payload.Type
	post.Title = payload.Title
	post.Content = payload.Content
	post.Date = payload.Date
	post.UpdatedAt = s.now().UTC()

	return clonePost(post), nil
}

// DeletePost removes the post and cascades to its attachments,
// so no orphaned file bodies remain reachable
func (s *Store) DeletePost(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return NewNotFoundError("post", id)
	}

	for _, attachment := range post.Attachments {
		if key, ok := s.fileKeys[attachment.ID]; ok {
			delete(s.files, key)
			delete(s.fileKeys, attachment.ID)
		}
	}
	delete(s.posts, id)

	return nil
}

// GetPost gets a single post by ID regardless of its bucket
func (s *Store) GetPost(id int) (types.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return types.Post{}, NewNotFoundError("post", id)
	}

	return clonePost(post), nil
}

// GetArchivedPost gets a single post by ID,
// failing when the post is not in the archived bucket
func (s *Store) GetArchivedPost(id int) (types.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok || !s.archived(post) {
		return types.Post{}, NewNotFoundError("archived post", id)
	}

	return clonePost(post), nil
}

// ListActive gets all posts inside the retention window,
// newest date first
func (s *Store) ListActive() []types.Post {
	return s.list(false)
}

// ListArchived gets all posts that have aged past the retention window,
// newest date first
func (s *Store) ListArchived() []types.Post {
	return s.list(true)
}

func (s *Store) list(archived bool) []types.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts := make([]types.Post, 0)
	for _, post := range s.posts {
		if s.archived(post) == archived {
			posts = append(posts, clonePost(post))
		}
	}

	// Reverse-chronological by date, newest IDs first on ties
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].Date.Equal(posts[j].Date.Time) {
			return posts[i].Date.After(posts[j].Date.Time)
		}
		return posts[i].ID > posts[j].ID
	})

	return posts
}

// Stats computes the dashboard summary of the archive partition
func (s *Store) Stats() types.ArchiveStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := types.ArchiveStats{
		ArchiveDays:       s.archiveDays,
		ArchiveCutoffDate: types.Date{Time: s.archiveCutoff()},
	}
	for _, post := range s.posts {
		stats.TotalPosts++
		if s.archived(post) {
			stats.ArchivedPosts++
		} else {
			stats.ActivePosts++
		}
	}

	return stats
}

// AddAttachment stores the uploaded file under a generated key and appends
// its metadata to the post, returning the entire updated post
func (s *Store) AddAttachment(postID int, filename string,
	contentType string, data []byte) (types.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return types.Post{}, NewNotFoundError("post", postID)
	}

	// Generate the storage key using a random ID
	key := ksuid.New().String()
	s.files[key] = &storedFile{
		key:         key,
		contentType: contentType,
		data:        data,
	}

	attachment := types.Attachment{
		ID:          s.nextAttachmentID,
		Filename:    filename,
		URL:         fmt.Sprintf("/files/%s", key),
		Size:        int64(len(data)),
		ContentType: contentType,
	}
	s.nextAttachmentID++
	s.fileKeys[attachment.ID] = key
	post.Attachments = append(post.Attachments, attachment)
	post.UpdatedAt = s.now().UTC()

	return clonePost(post), nil
}

// RemoveAttachment deletes one attachment and its stored body,
// returning the entire updated post
func (s *Store) RemoveAttachment(postID int, attachmentID int) (types.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return types.Post{}, NewNotFoundError("post", postID)
	}

	found := false
	remaining := make([]types.Attachment, 0, len(post.Attachments))
	for _, attachment := range post.Attachments {
		if attachment.ID == attachmentID {
			found = true
			if key, ok := s.fileKeys[attachment.ID]; ok {
				delete(s.files, key)
				delete(s.fileKeys, attachment.ID)
			}
			continue
		}
		remaining = append(remaining, attachment)
	}
	if !found {
		return types.Post{}, NewNotFoundError("attachment", attachmentID)
	}

	post.Attachments = remaining
	post.UpdatedAt = s.now().UTC()

	return clonePost(post), nil
}

// FileContent gets a stored file body by its storage key
func (s *Store) FileContent(key string) ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, ok := s.files[key]
	if !ok {
		return nil, "", false
	}

	return file.data, file.contentType, true
}

func clonePost(post *types.Post) types.Post {
	clone := *post
	clone.Attachments = make([]types.Attachment, len(post.Attachments))
	copy(clone.Attachments, post.Attachments)
	return clone
}
