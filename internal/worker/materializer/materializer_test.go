package materializer

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhldev/extraction-be/internal/worker/domain"
	"github.com/thanhldev/extraction-be/shared/logger"
	"github.com/thanhldev/extraction-be/shared/objectstore"
)

const testArchiveURL = "https://provider.example.com/results/job-1.zip"

func buildArchive(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func newMaterializer(t *testing.T, maxBytes int64) (*Materializer, *objectstore.MemoryStore) {
	t.Helper()
	store := objectstore.NewMemoryStore()
	return New(store, maxBytes, logger.NewDefault().Logger), store
}

func TestMaterialize(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads structured text and siblings", func(t *testing.T) {
		m, store := newMaterializer(t, 1<<20)
		store.SeedURL(testArchiveURL, buildArchive(t, map[string][]byte{
			"full.md":           []byte("# A"),
			"layout.json":       []byte("{}"),
			"content_list.json": []byte("[]"),
			"preview.png":       []byte{0x89, 0x50},
		}))

		res, err := m.Materialize(ctx, testArchiveURL, "rec-1")
		require.NoError(t, err)

		assert.Equal(t, "# A", res.StructuredText)
		require.Contains(t, res.Attachments, domain.AttachmentKindStructuredText)
		require.Contains(t, res.Attachments, domain.AttachmentKindLayout)
		require.Contains(t, res.Attachments, domain.AttachmentKindContentList)
		assert.NotContains(t, res.Attachments, domain.AttachmentKindPDF)

		text := res.Attachments[domain.AttachmentKindStructuredText]
		assert.Equal(t, int64(3), text.Size)
		assert.Contains(t, text.StorageKey, "rec-1/")
		assert.False(t, text.UploadedAt.IsZero())

		data, ok := store.Object(text.StorageKey)
		require.True(t, ok)
		assert.Equal(t, "# A", string(data))
	})

	t.Run("prefers full.md over other structured text entries", func(t *testing.T) {
		m, store := newMaterializer(t, 1<<20)
		store.SeedURL(testArchiveURL, buildArchive(t, map[string][]byte{
			"notes.md":       []byte("notes"),
			"nested/full.md": []byte("canonical"),
		}))

		res, err := m.Materialize(ctx, testArchiveURL, "rec-1")
		require.NoError(t, err)
		assert.Equal(t, "canonical", res.StructuredText)
	})

	t.Run("falls back to first markdown entry", func(t *testing.T) {
		m, store := newMaterializer(t, 1<<20)
		store.SeedURL(testArchiveURL, buildArchive(t, map[string][]byte{
			"notes.md": []byte("notes"),
		}))

		res, err := m.Materialize(ctx, testArchiveURL, "rec-1")
		require.NoError(t, err)
		assert.Equal(t, "notes", res.StructuredText)
	})

	t.Run("no structured text entry is a hard failure", func(t *testing.T) {
		m, store := newMaterializer(t, 1<<20)
		store.SeedURL(testArchiveURL, buildArchive(t, map[string][]byte{
			"layout.json": []byte("{}"),
		}))

		_, err := m.Materialize(ctx, testArchiveURL, "rec-1")
		assert.ErrorIs(t, err, domain.ErrNoStructuredText)
	})

	t.Run("invalid utf8 is a decode failure", func(t *testing.T) {
		m, store := newMaterializer(t, 1<<20)
		store.SeedURL(testArchiveURL, buildArchive(t, map[string][]byte{
			"full.md": {0xff, 0xfe, 0xfd},
		}))

		_, err := m.Materialize(ctx, testArchiveURL, "rec-1")
		assert.ErrorIs(t, err, domain.ErrDecodeFailed)
	})

	t.Run("not an archive", func(t *testing.T) {
		m, store := newMaterializer(t, 1<<20)
		store.SeedURL(testArchiveURL, []byte("plain text, not a zip"))

		_, err := m.Materialize(ctx, testArchiveURL, "rec-1")
		assert.ErrorIs(t, err, domain.ErrArchiveMalformed)
	})

	t.Run("oversized archive fails fast", func(t *testing.T) {
		m, store := newMaterializer(t, 16)
		store.SeedURL(testArchiveURL, buildArchive(t, map[string][]byte{
			"full.md": []byte("# A"),
		}))

		_, err := m.Materialize(ctx, testArchiveURL, "rec-1")
		assert.ErrorIs(t, err, domain.ErrArchiveTooLarge)
	})

	t.Run("missing archive is a storage failure", func(t *testing.T) {
		m, _ := newMaterializer(t, 1<<20)

		_, err := m.Materialize(ctx, testArchiveURL, "rec-1")
		assert.ErrorIs(t, err, domain.ErrStorageFailed)
	})

	t.Run("idempotent on content", func(t *testing.T) {
		m, store := newMaterializer(t, 1<<20)
		store.SeedURL(testArchiveURL, buildArchive(t, map[string][]byte{
			"full.md":     []byte("# A"),
			"layout.json": []byte("{}"),
		}))

		first, err := m.Materialize(ctx, testArchiveURL, "rec-1")
		require.NoError(t, err)
		second, err := m.Materialize(ctx, testArchiveURL, "rec-1")
		require.NoError(t, err)

		assert.Equal(t, first.StructuredText, second.StructuredText)
		require.Equal(t, len(first.Attachments), len(second.Attachments))
		for kind, att := range first.Attachments {
			a, ok := store.Object(att.StorageKey)
			require.True(t, ok)
			b, ok := store.Object(second.Attachments[kind].StorageKey)
			require.True(t, ok)
			assert.Equal(t, a, b, "attachment %s content differs across runs", kind)
		}
	})
}
