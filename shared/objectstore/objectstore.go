package objectstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTooLarge is returned by FetchContent when the object exceeds maxBytes.
	ErrTooLarge = errors.New("object exceeds fetch size limit")

	// ErrNotFound is returned when the requested object or URL does not exist.
	ErrNotFound = errors.New("object not found")
)

// StoredObject describes one uploaded object.
type StoredObject struct {
	URL        string    `json:"url"`
	Key        string    `json:"key"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Store is the object-storage collaborator consumed by the pipeline.
// Uploads replace in place; there is no versioning.
type Store interface {
	// Upload stores data under key and returns the stored object metadata.
	Upload(ctx context.Context, key string, data []byte, contentType string) (*StoredObject, error)

	// FetchContent downloads the content behind url, failing with ErrTooLarge
	// once more than maxBytes have been read. A maxBytes of 0 means unbounded.
	FetchContent(ctx context.Context, url string, maxBytes int64) ([]byte, error)

	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error
}
