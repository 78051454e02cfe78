package types

import (
	"errors"
	"path"
	"strings"

	"github.com/c2h5oh/datasize"
)

// Attachment is a file owned by exactly one post
type Attachment struct {
	ID          int    `json:"id"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	Size        int64  `json:"size,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Validate ensures a decoded attachment has the shape the client depends on
func (a *Attachment) Validate() error {
	if a.ID <= 0 {
		return errors.New("attachment ID must be a positive integer")
	}
	if a.Filename == "" {
		return errors.New("attachment filename cannot be empty")
	}
	return nil
}

// HumanSize formats the byte size for display, or an empty string
// when the server did not report one
func (a *Attachment) HumanSize() string {
	if a.Size <= 0 {
		return ""
	}
	return datasize.ByteSize(a.Size).HumanReadable()
}

// ExtensionBadge derives the uppercase file extension used as a badge,
// or "FILE" when there is none
func (a *Attachment) ExtensionBadge() string {
	ext := strings.TrimPrefix(path.Ext(a.Filename), ".")
	if ext == "" {
		return "FILE"
	}
	return strings.ToUpper(ext)
}
