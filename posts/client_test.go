package posts

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
	"github.com/dse-portal/noticeboard/types"
)

// fixedNow is the reference instant used by every clock-sensitive test
var fixedNow = time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC)

type portalFixture struct {
	portal *portaltest.Server
	server *httptest.Server
	now    time.Time
}

func setupPortal(t *testing.T, archiveDays int) *portalFixture {
	f := &portalFixture{now: fixedNow}
	f.portal = portaltest.NewServer(archiveDays, zerolog.Nop())
	f.portal.Store.WithClock(func() time.Time { return f.now })
	f.server = httptest.NewServer(f.portal.Router())
	t.Cleanup(f.server.Close)
	return f
}

func (f *portalFixture) adminClient(t *testing.T) *Client {
	token, err := f.portal.IssueToken("test-admin", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("could not issue admin token: %v", err)
	}

	client, err := NewClient(f.server.URL, auth.NewSession(token, auth.RoleAdmin), zerolog.Nop())
	if err != nil {
		t.Fatalf("could not create client: %v", err)
	}
	return client
}

func (f *portalFixture) anonymousClient(t *testing.T) *Client {
	client, err := NewClient(f.server.URL, auth.Anonymous(), zerolog.Nop())
	if err != nil {
		t.Fatalf("could not create client: %v", err)
	}
	return client
}

func mustDate(t *testing.T, value string) types.Date {
	date, err := types.ParseDate(value)
	if err != nil {
		t.Fatalf("could not parse date %s: %v", value, err)
	}
	return date
}

func createPost(t *testing.T, client *Client, postType types.PostType, title string, date string) *types.Post {
	post, err := client.Create(context.Background(), types.PostCreate{
		Type:    postType,
		Title:   title,
		Content: "body",
		Date:    mustDate(t, date),
	})
	if err != nil {
		t.Fatalf("could not create post '%s': %v", title, err)
	}
	return post
}

func TestCreateReturnsServerPost(t *testing.T) {
	f := setupPortal(t, 30)
	client := f.adminClient(t)

	post, err := client.Create(context.Background(), types.PostCreate{
		Type:    types.PostTypeNotice,
		Title:   "Lab safety briefing",
		Content: "First line\nSecond line",
		Date:    mustDate(t, "2025-06-01"),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if post.ID <= 0 {
		t.Errorf("expected server-assigned ID, got %d", post.ID)
	}
	if post.Title != "Lab safety briefing" {
		t.Errorf("title mismatch: %s", post.Title)
	}
	if post.Type != types.PostTypeNotice {
		t.Errorf("type mismatch: %s", post.Type)
	}
	if len(post.Attachments) != 0 {
		t.Errorf("expected empty attachments, got %d", len(post.Attachments))
	}
	if post.UpdatedAt.Before(post.CreatedAt) {
		t.Errorf("updated_at %v precedes created_at %v", post.UpdatedAt, post.CreatedAt)
	}
	if lines := post.ContentLines(); len(lines) != 2 || lines[1] != "Second line" {
		t.Errorf("unexpected content lines: %v", lines)
	}
}

func TestActiveAndArchivedAreDisjoint(t *testing.T) {
	f := setupPortal(t, 30)
	client := f.adminClient(t)

	old := createPost(t, client, types.PostTypeNotice, "Old notice", "2025-01-01")
	recent := createPost(t, client, types.PostTypeEvent, "Department seminar", "2025-06-01")

	active, err := client.ListActive(context.Background())
	if err != nil {
		t.Fatalf("list active failed: %v", err)
	}
	archived, err := client.ListArchived(context.Background())
	if err != nil {
		t.Fatalf("list archived failed: %v", err)
	}

	activeIDs := make(map[int]bool)
	for _, p := range active {
		activeIDs[p.ID] = true
	}
	for _, p := range archived {
		if activeIDs[p.ID] {
			t.Errorf("post %d appears in both buckets", p.ID)
		}
	}

	if !activeIDs[recent.ID] {
		t.Errorf("recent post %d missing from active bucket", recent.ID)
	}
	if len(archived) != 1 || archived[0].ID != old.ID {
		t.Errorf("expected only post %d archived, got %v", old.ID, archived)
	}
}

func TestGetArchivedRejectsActivePosts(t *testing.T) {
	f := setupPortal(t, 30)
	client := f.adminClient(t)

	recent := createPost(t, client, types.PostTypeNotice, "Current notice", "2025-06-01")

	if _, err := client.GetArchived(context.Background(), recent.ID); err == nil {
		t.Fatal("expected get archived to fail for an active post")
	} else if _, ok := err.(*NotFoundError); !ok {
		t.Errorf("expected NotFoundError, got %T: %v", err, err)
	}
}

func TestUpdateReplacesFields(t *testing.T) {
	f := setupPortal(t, 30)
	client := f.adminClient(t)

	post := createPost(t, client, types.PostTypeNotice, "Draft title", "2025-06-01")

	// Advance the store clock so the audit timestamp bump is observable
	f.now = f.now.Add(time.Hour)

	updated, err := client.Update(context.Background(), post.ID, types.PostUpdate{
		Type:    types.PostTypeAnnouncement,
		Title:   "Final title",
		Content: "revised",
		Date:    mustDate(t, "2025-06-02"),
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if updated.Title != "Final title" || updated.Type != types.PostTypeAnnouncement {
		t.Errorf("update did not replace fields: %+v", updated)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Errorf("expected updated_at to advance past created_at")
	}
}

func TestGetAfterDeleteFails(t *testing.T) {
	f := setupPortal(t, 30)
	client := f.adminClient(t)

	post := createPost(t, client, types.PostTypeNotice, "Doomed", "2025-06-01")

	if err := client.Remove(context.Background(), post.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	_, err := client.Get(context.Background(), post.ID)
	if err == nil {
		t.Fatal("expected get to fail after delete")
	}
	notFound, ok := err.(*NotFoundError)
	if !ok {
		t.Fatalf("expected NotFoundError, got %T: %v", err, err)
	}
	if notFound.ID != post.ID {
		t.Errorf("expected error to carry ID %d, got %d", post.ID, notFound.ID)
	}
}

func TestAddAttachmentThenGet(t *testing.T) {
	f := setupPortal(t, 30)
	client := f.adminClient(t)

	post := createPost(t, client, types.PostTypeEvent, "Seminar", "2025-06-01")

	content := []byte("%PDF-1.4 schedule")
	updated, err := client.AddAttachment(context.Background(), post.ID,
		"schedule.pdf", int64(len(content)), bytes.NewReader(content))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if len(updated.Attachments) != 1 {
		t.Fatalf("expected 1 attachment on returned post, got %d", len(updated.Attachments))
	}

	fetched, err := client.Get(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(fetched.Attachments) != 1 || fetched.Attachments[0].Filename != "schedule.pdf" {
		t.Fatalf("expected attachment 'schedule.pdf' on fetched post, got %+v", fetched.Attachments)
	}
	if fetched.Attachments[0].Size != int64(len(content)) {
		t.Errorf("size mismatch: %d", fetched.Attachments[0].Size)
	}

	// The attachment body is fetched by opening its URL directly
	res, err := http.Get(f.server.URL + fetched.Attachments[0].URL)
	if err != nil {
		t.Fatalf("could not fetch attachment body: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("expected 200 fetching attachment body, got %d", res.StatusCode)
	}
}

func TestRemoveAttachment(t *testing.T) {
	f := setupPortal(t, 30)
	client := f.adminClient(t)

	post := createPost(t, client, types.PostTypeNotice, "With file", "2025-06-01")
	content := []byte("plain text attachment")
	withFile, err := client.AddAttachment(context.Background(), post.ID,
		"notes.txt", int64(len(content)), bytes.NewReader(content))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	attachmentID := withFile.Attachments[0].ID
	updated, err := client.RemoveAttachment(context.Background(), post.ID, attachmentID)
	if err != nil {
		t.Fatalf("remove attachment failed: %v", err)
	}
	if len(updated.Attachments) != 0 {
		t.Errorf("expected no attachments on returned post, got %d", len(updated.Attachments))
	}

	fetched, err := client.Get(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	for _, a := range fetched.Attachments {
		if a.ID == attachmentID {
			t.Errorf("attachment %d still present after removal", attachmentID)
		}
	}
}

// countingTransport counts requests without ever performing them
type countingTransport struct {
	requests int
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.requests++
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       http.NoBody,
		Header:     http.Header{},
	}, nil
}

func TestOversizeUploadShortCircuits(t *testing.T) {
	transport := &countingTransport{}
	client, err := NewClient("http://portal.invalid", auth.Anonymous(), zerolog.Nop())
	if err != nil {
		t.Fatalf("could not create client: %v", err)
	}
	client.WithHTTPClient(&http.Client{Transport: transport})

	// One byte over the limit; the reader would fail if it were drained
	size := MaxAttachmentSize + 1
	_, err = client.AddAttachment(context.Background(), 1, "huge.bin",
		size, strings.NewReader(""))
	if err == nil {
		t.Fatal("expected oversize upload to fail")
	}
	if _, ok := err.(*FileTooLargeError); !ok {
		t.Fatalf("expected FileTooLargeError, got %T: %v", err, err)
	}
	if transport.requests != 0 {
		t.Errorf("expected no network request, got %d", transport.requests)
	}
}

func TestAnonymousMutationUnauthorized(t *testing.T) {
	f := setupPortal(t, 30)
	client := f.anonymousClient(t)

	_, err := client.Create(context.Background(), types.PostCreate{
		Type:  types.PostTypeNotice,
		Title: "Should fail",
		Date:  mustDate(t, "2025-06-01"),
	})
	if err == nil {
		t.Fatal("expected anonymous create to fail")
	}
	if _, ok := err.(*UnauthorizedError); !ok {
		t.Errorf("expected UnauthorizedError, got %T: %v", err, err)
	}
}

func TestNonAdminMutationUnauthorized(t *testing.T) {
	f := setupPortal(t, 30)

	token, err := f.portal.IssueToken("student", auth.RoleMember)
	if err != nil {
		t.Fatalf("could not issue member token: %v", err)
	}
	client, err := NewClient(f.server.URL, auth.NewSession(token, auth.RoleMember), zerolog.Nop())
	if err != nil {
		t.Fatalf("could not create client: %v", err)
	}

	_, err = client.Create(context.Background(), types.PostCreate{
		Type:  types.PostTypeNotice,
		Title: "Should fail",
		Date:  mustDate(t, "2025-06-01"),
	})
	if err == nil {
		t.Fatal("expected member create to fail")
	}
	if _, ok := err.(*UnauthorizedError); !ok {
		t.Errorf("expected UnauthorizedError, got %T: %v", err, err)
	}
}

func TestArchiveStats(t *testing.T) {
	f := setupPortal(t, 30)
	client := f.adminClient(t)

	createPost(t, client, types.PostTypeNotice, "Old", "2025-01-01")
	createPost(t, client, types.PostTypeNotice, "Recent", "2025-06-01")

	stats, err := client.ArchiveStats(context.Background())
	if err != nil {
		t.Fatalf("archive stats failed: %v", err)
	}

	if stats.TotalPosts != 2 || stats.ActivePosts != 1 || stats.ArchivedPosts != 1 {
		t.Errorf("unexpected partition: %+v", stats)
	}
	if stats.ArchiveDays != 30 {
		t.Errorf("expected archive window of 30 days, got %d", stats.ArchiveDays)
	}
	expectedCutoff := "2025-05-06"
	if stats.ArchiveCutoffDate.Format(types.DateLayout) != expectedCutoff {
		t.Errorf("expected cutoff %s, got %s", expectedCutoff,
			stats.ArchiveCutoffDate.Format(types.DateLayout))
	}
}

func TestClientValidationShortCircuits(t *testing.T) {
	transport := &countingTransport{}
	client, err := NewClient("http://portal.invalid", auth.Anonymous(), zerolog.Nop())
	if err != nil {
		t.Fatalf("could not create client: %v", err)
	}
	client.WithHTTPClient(&http.Client{Transport: transport})

	_, err = client.Create(context.Background(), types.PostCreate{
		Type:  types.PostType("bulletin"),
		Title: "Unknown type",
	})
	if err == nil {
		t.Fatal("expected create with unknown type to fail")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("expected ValidationError, got %T: %v", err, err)
	}
	if transport.requests != 0 {
		t.Errorf("expected no network request, got %d", transport.requests)
	}
}
