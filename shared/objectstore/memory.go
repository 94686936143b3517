package objectstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and local development.
// Uploaded objects are addressable both by key (Delete) and by the URL
// returned from Upload (FetchContent); external content can be seeded with
// SeedURL.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	byURL   map[string][]byte
	baseURL string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		byURL:   make(map[string][]byte),
		baseURL: "mem://objects/",
	}
}

// Upload stores data under key
func (s *MemoryStore) Upload(_ context.Context, key string, data []byte, _ string) (*StoredObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)

	url := s.baseURL + key
	s.objects[key] = buf
	s.byURL[url] = buf

	return &StoredObject{
		URL:        url,
		Key:        key,
		Size:       int64(len(buf)),
		UploadedAt: time.Now().UTC(),
	}, nil
}

// FetchContent returns content previously uploaded or seeded under url
func (s *MemoryStore) FetchContent(_ context.Context, url string, maxBytes int64) ([]byte, error) {
	s.mu.Lock()
	data, ok := s.byURL[url]
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("fetch %q: %w", url, ErrNotFound)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Delete removes the object stored under key
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	delete(s.byURL, s.baseURL+key)
	return nil
}

// SeedURL registers external content retrievable via FetchContent
func (s *MemoryStore) SeedURL(url string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	s.byURL[url] = buf
}

// Object returns the stored bytes for key, for test assertions
func (s *MemoryStore) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, true
}

// Keys returns all stored object keys, for test assertions
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}
