package detection

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ContentRef points at a picked image. Data holds the bytes when the picker
// delivered them inline; otherwise URI names a local file (plain path or
// file://) or a remote image (http, https, gs) that backends may fetch.
type ContentRef struct {
	URI         string `json:"uri,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"-"`
}

// IsZero reports whether the reference points at nothing.
func (c ContentRef) IsZero() bool {
	return c.URI == "" && len(c.Data) == 0
}

// IsRemote reports whether the URI is fetched by the backend rather than read locally.
func (c ContentRef) IsRemote() bool {
	u, err := url.Parse(c.URI)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "gs":
		return true
	}
	return false
}

// Bytes returns the image bytes, reading a local file if needed.
func (c ContentRef) Bytes(ctx context.Context) ([]byte, error) {
	if len(c.Data) > 0 {
		return c.Data, nil
	}
	if c.URI == "" {
		return nil, ErrNoContent
	}
	if c.IsRemote() {
		return nil, fmt.Errorf("%w: %s must be fetched by the backend", ErrNoContent, c.URI)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(c.URI, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoContent
	}
	return data, nil
}

// Detector is the interface for object detection backends.
type Detector interface {
	// Name identifies the backend in logs and errors.
	Name() string

	// Detect finds objects in the referenced image. The returned
	// detections are raw; callers run them through Normalize.
	Detect(ctx context.Context, ref ContentRef) ([]Detection, error)

	// Close releases resources.
	Close() error
}
