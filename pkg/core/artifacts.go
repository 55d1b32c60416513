package core

import (
	"fmt"
	"path/filepath"
	"time"
)

// Attachment represents an artifact captured during step execution
type Attachment struct {
	Name        string `json:"name"`        // Descriptive name: screenshot
	ContentType string `json:"contentType"` // MIME type: image/png
	Path        string `json:"path"`        // File path on disk
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
)

// Common content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeJSON = "application/json"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(path string) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Path:        path,
	}
}

// ScreenshotPath returns the file a screenshot taken at t is written to.
func ScreenshotPath(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("screenshot-%d.png", t.UnixMilli()))
}
