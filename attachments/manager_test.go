package attachments

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dse-portal/noticeboard/auth"
	"github.com/dse-portal/noticeboard/portaltest"
	"github.com/dse-portal/noticeboard/posts"
	"github.com/dse-portal/noticeboard/types"
)

var fixedNow = time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC)

type managerFixture struct {
	portal *portaltest.Server
	server *httptest.Server
	client *posts.Client
	post   *types.Post
}

func setupManager(t *testing.T) *managerFixture {
	f := &managerFixture{}
	f.portal = portaltest.NewServer(30, zerolog.Nop())
	f.portal.Store.WithClock(func() time.Time { return fixedNow })
	f.server = httptest.NewServer(f.portal.Router())
	t.Cleanup(f.server.Close)

	token, err := f.portal.IssueToken("test-admin", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("could not issue admin token: %v", err)
	}
	f.client, err = posts.NewClient(f.server.URL, auth.NewSession(token, auth.RoleAdmin), zerolog.Nop())
	if err != nil {
		t.Fatalf("could not create client: %v", err)
	}

	date, _ := types.ParseDate("2025-06-01")
	f.post, err = f.client.Create(context.Background(), types.PostCreate{
		Type:  types.PostTypeNotice,
		Title: "Detail view post",
		Date:  date,
	})
	if err != nil {
		t.Fatalf("could not create post: %v", err)
	}

	return f
}

func TestUploadReplacesHeldPost(t *testing.T) {
	f := setupManager(t)
	manager := NewManager(f.client, f.post, zerolog.Nop())

	content := []byte("syllabus contents")
	err := manager.Upload(context.Background(), "syllabus.txt",
		int64(len(content)), bytes.NewReader(content))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	held := manager.Post()
	if len(held.Attachments) != 1 || held.Attachments[0].Filename != "syllabus.txt" {
		t.Fatalf("expected held post to carry the new attachment, got %+v", held.Attachments)
	}
	if manager.Uploading() {
		t.Error("expected manager to return to idle after upload")
	}
}

func TestRemoveReplacesHeldPost(t *testing.T) {
	f := setupManager(t)
	manager := NewManager(f.client, f.post, zerolog.Nop())

	content := []byte("temporary file")
	if err := manager.Upload(context.Background(), "temp.txt",
		int64(len(content)), bytes.NewReader(content)); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	attachmentID := manager.Post().Attachments[0].ID
	if err := manager.Remove(context.Background(), attachmentID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if len(manager.Post().Attachments) != 0 {
		t.Errorf("expected held post to have no attachments, got %+v", manager.Post().Attachments)
	}
	if _, inFlight := manager.Deleting(); inFlight {
		t.Error("expected manager to return to idle after delete")
	}
}

func TestOversizeUploadFailsInline(t *testing.T) {
	f := setupManager(t)
	manager := NewManager(f.client, f.post, zerolog.Nop())

	err := manager.Upload(context.Background(), "huge.bin",
		posts.MaxAttachmentSize+1, strings.NewReader(""))
	if err == nil {
		t.Fatal("expected oversize upload to fail")
	}
	if _, ok := err.(*posts.FileTooLargeError); !ok {
		t.Fatalf("expected FileTooLargeError, got %T: %v", err, err)
	}
	if manager.Uploading() {
		t.Error("expected manager to stay idle after an inline rejection")
	}
}

// blockingTransport holds every request until released
type blockingTransport struct {
	started  chan struct{}
	release  chan struct{}
	delegate http.RoundTripper
}

func (b *blockingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	b.started <- struct{}{}
	<-b.release
	return b.delegate.RoundTrip(r)
}

func TestConcurrentUploadRejected(t *testing.T) {
	f := setupManager(t)

	transport := &blockingTransport{
		started:  make(chan struct{}, 1),
		release:  make(chan struct{}),
		delegate: http.DefaultTransport,
	}
	f.client.WithHTTPClient(&http.Client{Transport: transport})
	manager := NewManager(f.client, f.post, zerolog.Nop())

	firstDone := make(chan error, 1)
	go func() {
		content := []byte("first upload")
		firstDone <- manager.Upload(context.Background(), "first.txt",
			int64(len(content)), bytes.NewReader(content))
	}()

	// Wait until the first upload is in flight
	<-transport.started
	if !manager.Uploading() {
		t.Error("expected manager to report an in-flight upload")
	}

	content := []byte("second upload")
	err := manager.Upload(context.Background(), "second.txt",
		int64(len(content)), bytes.NewReader(content))
	if err == nil {
		t.Fatal("expected second concurrent upload to be rejected")
	}
	if _, ok := err.(*OperationInFlightError); !ok {
		t.Fatalf("expected OperationInFlightError, got %T: %v", err, err)
	}

	// Let the first upload finish; it must succeed
	close(transport.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first upload failed: %v", err)
	}
	if len(manager.Post().Attachments) != 1 {
		t.Errorf("expected exactly one attachment, got %d", len(manager.Post().Attachments))
	}
}

func TestFailedUploadReturnsToIdle(t *testing.T) {
	f := setupManager(t)
	manager := NewManager(f.client, f.post, zerolog.Nop())

	// Delete the post behind the manager's back so the upload 404s
	if err := f.client.Remove(context.Background(), f.post.ID); err != nil {
		t.Fatalf("could not delete post: %v", err)
	}

	content := []byte("orphaned upload")
	err := manager.Upload(context.Background(), "orphan.txt",
		int64(len(content)), bytes.NewReader(content))
	if err == nil {
		t.Fatal("expected upload against a deleted post to fail")
	}
	if manager.Uploading() {
		t.Error("expected manager to return to idle after a failed upload")
	}

	// The held post is untouched on failure; the action can be retried
	if len(manager.Post().Attachments) != 0 {
		t.Errorf("expected held post to be unchanged, got %+v", manager.Post().Attachments)
	}
}
