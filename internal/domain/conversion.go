package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"

	ContentTypePNG  = "image/png"
	ContentTypeJPEG = "image/jpeg"
)

var ErrUnsupportedContentType = errors.New("unsupported content type")

// Conversion records one upload and what the pipeline made of it.
type Conversion struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	ContentType  string    `json:"content_type"`
	SourceKey    string    `json:"source_key,omitempty"`
	SourceFormat string    `json:"source_format,omitempty"`
	SourceBytes  int       `json:"source_bytes"`
	Quality      float32   `json:"quality"`
	OutputFormat string    `json:"output_format"`
	OutputKey    string    `json:"output_key,omitempty"`
	OutputBytes  int       `json:"output_bytes,omitempty"`
	ColorBytes   int       `json:"color_bytes,omitempty"`
	AlphaBytes   int       `json:"alpha_bytes,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	WebhookURL   string    `json:"webhook_url,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Terminal reports whether the conversion will not change status again.
func (c Conversion) Terminal() bool {
	return c.Status == StatusSucceeded || c.Status == StatusFailed
}

// ExtensionForContentType maps a declared upload content type to the file
// extension used for the stored source. The declaration is advisory; the
// pipeline re-detects the format from the bytes.
func ExtensionForContentType(contentType string) (string, error) {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}

	switch mediaType {
	case ContentTypeJPEG:
		return "jpg", nil
	case ContentTypePNG:
		return "png", nil
	case "":
		return "", fmt.Errorf("%w: file type could not be determined", ErrUnsupportedContentType)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}
}

// ValidateQuality checks a caller-supplied base quality.
func ValidateQuality(q float64) error {
	if q != q || q < 0 || q > 100 {
		return fmt.Errorf("quality must be between 0 and 100, got %v", q)
	}
	return nil
}
