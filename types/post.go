package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PostType is the closed set of notice board entry kinds
type PostType string

// The post types recognized by the portal;
// they control badge styling and list filtering downstream
const (
	PostTypeNotice       PostType = "notice"
	PostTypeAnnouncement PostType = "announcement"
	PostTypeEvent        PostType = "event"
)

// Valid determines whether the type is one of the recognized values
func (t PostType) Valid() bool {
	switch t {
	case PostTypeNotice, PostTypeAnnouncement, PostTypeEvent:
		return true
	}
	return false
}

// DateLayout is the wire format for calendar dates
// (distinct from the RFC 3339 audit timestamps)
const DateLayout = "2006-01-02"

// Date is a calendar date used as the display/sort key of a post
type Date struct {
	time.Time
}

// NewDate creates a Date truncated to its calendar day in UTC
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a calendar date from its wire format
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

// MarshalJSON serializes the date in its wire format
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", d.Format(DateLayout))), nil
}

// UnmarshalJSON parses the date from its wire format
func (d *Date) UnmarshalJSON(data []byte) error {
	value := strings.Trim(string(data), `"`)
	if value == "" || value == "null" {
		return nil
	}
	parsed, err := ParseDate(value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Post is a single notice board entry returned by the portal API.
// Whether it is active or archived is decided server-side against the
// retention window; the client only reads bucket membership
type Post struct {
	ID          int          `json:"id"`
	Type        PostType     `json:"type"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	Date        Date         `json:"date"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Attachments []Attachment `json:"attachments"`
}

// Validate ensures a decoded post has the shape the client depends on,
// rather than trusting the network response
func (p *Post) Validate() error {
	if p.ID <= 0 {
		return errors.New("post ID must be a positive integer")
	}
	if !p.Type.Valid() {
		return fmt.Errorf("unknown post type '%s'", p.Type)
	}
	if strings.TrimSpace(p.Title) == "" {
		return errors.New("post title cannot be empty")
	}
	if p.UpdatedAt.Before(p.CreatedAt) {
		return errors.New("post updated_at precedes created_at")
	}
	for _, a := range p.Attachments {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ContentLines splits the free-text content on newlines
// for newline-to-break rendering
func (p *Post) ContentLines() []string {
	return strings.Split(strings.ReplaceAll(p.Content, "\r\n", "\n"), "\n")
}

// PostCreate is the payload supplied to create a new post
type PostCreate struct {
	Type    PostType `json:"type"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Date    Date     `json:"date"`
}

// Validate checks the required fields before the payload is sent
func (c *PostCreate) Validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("unknown post type '%s'", c.Type)
	}
	if strings.TrimSpace(c.Title) == "" {
		return errors.New("post title cannot be empty")
	}
	return nil
}

// PostUpdate is the full-replace payload for updating a post;
// the server applies PUT semantics, not a partial patch
type PostUpdate struct {
	Type    PostType `json:"type"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Date    Date     `json:"date"`
}

// Validate checks the required fields before the payload is sent
func (u *PostUpdate) Validate() error {
	if !u.Type.Valid() {
		return fmt.Errorf("unknown post type '%s'", u.Type)
	}
	if strings.TrimSpace(u.Title) == "" {
		return errors.New("post title cannot be empty")
	}
	return nil
}
