package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSConfig holds Google Cloud Storage configuration
type GCSConfig struct {
	Bucket        string
	KeyPrefix     string
	PublicBaseURL string // base URL objects are readable from; defaults to storage.googleapis.com
	EmulatorHost  string // when set, connects without authentication
}

// GCSStore is a Store backed by a Google Cloud Storage bucket. URLs outside
// the bucket's public base are fetched over plain HTTP, which is how result
// archives hosted by the extraction provider are downloaded.
type GCSStore struct {
	client     *storage.Client
	httpClient *http.Client
	config     *GCSConfig
	logger     *slog.Logger
}

// NewGCSStore creates a new GCS-backed store
func NewGCSStore(ctx context.Context, config *GCSConfig, logger *slog.Logger) (*GCSStore, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}

	var opts []option.ClientOption
	if config.EmulatorHost != "" {
		opts = append(opts,
			option.WithoutAuthentication(),
			option.WithEndpoint(strings.TrimRight(config.EmulatorHost, "/")+"/storage/v1/"),
		)
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	logger.Info("Object storage initialized",
		slog.String("bucket", config.Bucket),
		slog.String("key_prefix", config.KeyPrefix),
		slog.String("emulator_host", config.EmulatorHost),
	)

	return &GCSStore{
		client:     client,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		config:     config,
		logger:     logger,
	}, nil
}

// Upload stores data under key in the configured bucket, replacing any
// existing object
func (s *GCSStore) Upload(ctx context.Context, key string, data []byte, contentType string) (*StoredObject, error) {
	objectKey := key
	if s.config.KeyPrefix != "" {
		objectKey = path.Join(s.config.KeyPrefix, key)
	}

	w := s.client.Bucket(s.config.Bucket).Object(objectKey).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to write object %q: %w", objectKey, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize object %q: %w", objectKey, err)
	}

	obj := &StoredObject{
		URL:        s.publicURL(objectKey),
		Key:        objectKey,
		Size:       int64(len(data)),
		UploadedAt: time.Now().UTC(),
	}

	s.logger.Debug("Object uploaded",
		slog.String("key", obj.Key),
		slog.Int64("size", obj.Size),
		slog.String("content_type", contentType),
	)

	return obj, nil
}

// FetchContent downloads url, reading from the bucket when the URL is inside
// the public base and over HTTP otherwise
func (s *GCSStore) FetchContent(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	base := s.publicURL("")
	if strings.HasPrefix(url, base) {
		key := strings.TrimPrefix(url, base)
		return s.fetchObject(ctx, key, maxBytes)
	}
	return s.fetchHTTP(ctx, url, maxBytes)
}

func (s *GCSStore) fetchObject(ctx context.Context, key string, maxBytes int64) ([]byte, error) {
	r, err := s.client.Bucket(s.config.Bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("object %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open object %q: %w", key, err)
	}
	defer r.Close()

	return readBounded(r, maxBytes)
}

func (s *GCSStore) fetchHTTP(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %q: %w", url, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fetch %q: %w", url, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %q: unexpected status %d", url, resp.StatusCode)
	}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("fetch %q (%d bytes): %w", url, resp.ContentLength, ErrTooLarge)
	}

	return readBounded(resp.Body, maxBytes)
}

// Delete removes the object stored under key
func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.config.Bucket).Object(key).Delete(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete object %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying storage client
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) publicURL(key string) string {
	base := s.config.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("https://storage.googleapis.com/%s", s.config.Bucket)
	}
	return strings.TrimRight(base, "/") + "/" + key
}

// readBounded reads r fully, failing once more than maxBytes have been read.
func readBounded(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read content: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}
