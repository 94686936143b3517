package materializer

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/thanhldev/extraction-be/internal/worker/domain"
	"github.com/thanhldev/extraction-be/shared/objectstore"
)

// canonicalEntryName is the preferred structured-text entry inside a result
// archive. When absent, the first entry with the structured-text extension
// is used instead.
const canonicalEntryName = "full.md"

const structuredTextExt = ".md"

// Sibling metadata entries re-uploaded alongside the structured text.
var siblingEntries = map[string]string{
	"layout.json":       domain.AttachmentKindLayout,
	"content_list.json": domain.AttachmentKindContentList,
}

// Result is the outcome of one materialization.
type Result struct {
	Attachments    domain.AttachmentMap
	StructuredText string
}

// Materializer turns a provider result archive into stored, linkable
// artifacts. Re-running it against the same archive and record id produces
// attachments with the same content; storage keys rotate by timestamp.
type Materializer struct {
	store           objectstore.Store
	maxArchiveBytes int64
	logger          *slog.Logger
}

// New creates a new Materializer
func New(store objectstore.Store, maxArchiveBytes int64, logger *slog.Logger) *Materializer {
	return &Materializer{
		store:           store,
		maxArchiveBytes: maxArchiveBytes,
		logger:          logger,
	}
}

// Materialize downloads the result archive, extracts the canonical
// structured-text entry, re-uploads derived artifacts under keys namespaced
// by recordID, and returns the attachment map. Any upload failure aborts the
// whole materialization; no partial attachment sets are produced.
func (m *Materializer) Materialize(ctx context.Context, archiveURL, recordID string) (*Result, error) {
	data, err := m.store.FetchContent(ctx, archiveURL, m.maxArchiveBytes)
	if err != nil {
		if errors.Is(err, objectstore.ErrTooLarge) {
			return nil, fmt.Errorf("%w: limit %d bytes", domain.ErrArchiveTooLarge, m.maxArchiveBytes)
		}
		return nil, fmt.Errorf("%w: download archive: %v", domain.ErrStorageFailed, err)
	}

	m.logger.Debug("Result archive downloaded",
		slog.String("record_id", recordID),
		slog.Int("archive_size", len(data)),
	)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrArchiveMalformed, err)
	}

	textEntry := selectStructuredTextEntry(zr)
	if textEntry == nil {
		return nil, domain.ErrNoStructuredText
	}

	textBytes, err := readEntry(textEntry)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", domain.ErrArchiveMalformed, textEntry.Name, err)
	}
	if !utf8.Valid(textBytes) {
		return nil, fmt.Errorf("%w: entry %q", domain.ErrDecodeFailed, textEntry.Name)
	}

	keyStamp := time.Now().UTC().Format("20060102T150405.000000000")
	attachments := domain.AttachmentMap{}

	stored, err := m.upload(ctx, recordID, keyStamp, "full.md", textBytes, "text/markdown; charset=utf-8")
	if err != nil {
		return nil, err
	}
	attachments[domain.AttachmentKindStructuredText] = *stored

	for _, f := range zr.File {
		kind, ok := siblingEntries[path.Base(f.Name)]
		if !ok {
			continue
		}

		entryBytes, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("%w: read %q: %v", domain.ErrArchiveMalformed, f.Name, err)
		}

		stored, err := m.upload(ctx, recordID, keyStamp, path.Base(f.Name), entryBytes, "application/json")
		if err != nil {
			return nil, err
		}
		attachments[kind] = *stored
	}

	m.logger.Info("Materialization finished",
		slog.String("record_id", recordID),
		slog.Int("attachments", len(attachments)),
	)

	return &Result{
		Attachments:    attachments,
		StructuredText: string(textBytes),
	}, nil
}

func (m *Materializer) upload(ctx context.Context, recordID, keyStamp, name string, data []byte, contentType string) (*domain.Attachment, error) {
	key := path.Join(recordID, keyStamp, name)

	obj, err := m.store.Upload(ctx, key, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: upload %q: %v", domain.ErrStorageFailed, key, err)
	}

	return &domain.Attachment{
		URL:        obj.URL,
		StorageKey: obj.Key,
		Size:       obj.Size,
		UploadedAt: obj.UploadedAt,
	}, nil
}

// selectStructuredTextEntry prefers an entry named exactly full.md at any
// depth, else the first entry carrying the structured-text extension.
func selectStructuredTextEntry(zr *zip.Reader) *zip.File {
	var fallback *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if path.Base(f.Name) == canonicalEntryName {
			return f
		}
		if fallback == nil && strings.HasSuffix(f.Name, structuredTextExt) {
			fallback = f
		}
	}
	return fallback
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
