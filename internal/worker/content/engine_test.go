package content

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhldev/extraction-be/internal/worker/domain"
	"github.com/thanhldev/extraction-be/shared/logger"
)

type fakeSectionStore struct {
	sections  map[string]*domain.DocumentSection
	updates   int
	updateErr error
}

func (f *fakeSectionStore) GetSection(_ context.Context, sectionID string) (*domain.DocumentSection, error) {
	section, ok := f.sections[sectionID]
	if !ok {
		return nil, domain.ErrSectionNotFound
	}
	copied := *section
	copied.Blocks = append([]domain.Block(nil), section.Blocks...)
	return &copied, nil
}

func (f *fakeSectionStore) UpdateSectionBlocks(_ context.Context, sectionID string, blocks []domain.Block) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	section, ok := f.sections[sectionID]
	if !ok {
		return domain.ErrSectionNotFound
	}
	section.Blocks = blocks
	f.updates++
	return nil
}

type fakeSessionStore struct {
	sessions map[string]*domain.ParseSession
}

func (f *fakeSessionStore) GetSession(_ context.Context, sessionID string) (*domain.ParseSession, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (f *fakeSessionStore) ConsumeSession(_ context.Context, sessionID string) error {
	session, ok := f.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.Consumed {
		return domain.ErrSessionConsumed
	}
	session.Consumed = true
	return nil
}

func (f *fakeSessionStore) ReopenSession(_ context.Context, sessionID string) error {
	session, ok := f.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.Consumed = false
	return nil
}

func newTestEngine(sections *fakeSectionStore, sessions *fakeSessionStore) *Engine {
	return NewEngine(sections, sessions, logger.NewDefault().Logger)
}

func blockIDs(blocks []domain.Block) []string {
	ids := make([]string, len(blocks))
	for i, block := range blocks {
		ids[i] = block.ID
	}
	return ids
}

func TestInsertBlocksRemovesPlaceholder(t *testing.T) {
	sections := &fakeSectionStore{sections: map[string]*domain.DocumentSection{
		"sec-1": {
			SectionID: "sec-1",
			Blocks: []domain.Block{
				{ID: "a", Type: domain.BlockTypeParagraph, Text: "before"},
				{ID: "ph", Type: domain.BlockTypePlaceholder},
				{ID: "b", Type: domain.BlockTypeParagraph, Text: "after"},
			},
		},
	}}
	engine := newTestEngine(sections, &fakeSessionStore{})

	newBlocks := []domain.Block{
		{ID: "n1", Type: domain.BlockTypeHeading, Text: "Extracted", Level: 1},
		{ID: "n2", Type: domain.BlockTypeParagraph, Text: "body"},
	}
	err := engine.InsertBlocks(context.Background(), "sec-1", "ph", 1, newBlocks)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "n1", "n2", "b"}, blockIDs(sections.sections["sec-1"].Blocks))
}

func TestInsertBlocksMissingPlaceholder(t *testing.T) {
	sections := &fakeSectionStore{sections: map[string]*domain.DocumentSection{
		"sec-1": {
			SectionID: "sec-1",
			Blocks: []domain.Block{
				{ID: "a", Type: domain.BlockTypeParagraph, Text: "only"},
			},
		},
	}}
	engine := newTestEngine(sections, &fakeSessionStore{})

	err := engine.InsertBlocks(context.Background(), "sec-1", "gone", 1, []domain.Block{
		{ID: "n1", Type: domain.BlockTypeParagraph, Text: "new"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "n1"}, blockIDs(sections.sections["sec-1"].Blocks))
}

func TestInsertBlocksClampsIndex(t *testing.T) {
	tests := []struct {
		name     string
		index    int
		expected []string
	}{
		{name: "negative clamps to start", index: -5, expected: []string{"n1", "a", "b"}},
		{name: "past end clamps to end", index: 99, expected: []string{"a", "b", "n1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections := &fakeSectionStore{sections: map[string]*domain.DocumentSection{
				"sec-1": {
					SectionID: "sec-1",
					Blocks: []domain.Block{
						{ID: "a", Type: domain.BlockTypeParagraph},
						{ID: "b", Type: domain.BlockTypeParagraph},
					},
				},
			}}
			engine := newTestEngine(sections, &fakeSessionStore{})

			err := engine.InsertBlocks(context.Background(), "sec-1", "", tt.index, []domain.Block{
				{ID: "n1", Type: domain.BlockTypeParagraph},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, blockIDs(sections.sections["sec-1"].Blocks))
		})
	}
}

func TestInsertBlocksSectionNotFound(t *testing.T) {
	engine := newTestEngine(&fakeSectionStore{sections: map[string]*domain.DocumentSection{}}, &fakeSessionStore{})

	err := engine.InsertBlocks(context.Background(), "missing", "", 0, nil)
	assert.ErrorIs(t, err, domain.ErrSectionNotFound)
}

func TestConfirmSessionInsertsPendingBlocks(t *testing.T) {
	sections := &fakeSectionStore{sections: map[string]*domain.DocumentSection{
		"sec-1": {
			SectionID: "sec-1",
			Blocks: []domain.Block{
				{ID: "ph", Type: domain.BlockTypePlaceholder},
			},
		},
	}}
	sessions := &fakeSessionStore{sessions: map[string]*domain.ParseSession{
		"sess-1": {
			SessionID:          "sess-1",
			SectionID:          "sec-1",
			PlaceholderBlockID: "ph",
			InsertionIndex:     0,
			Blocks: []domain.Block{
				{ID: "n1", Type: domain.BlockTypeParagraph, Text: "pending"},
			},
		},
	}}
	engine := newTestEngine(sections, sessions)

	err := engine.ConfirmSession(context.Background(), "sess-1", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"n1"}, blockIDs(sections.sections["sec-1"].Blocks))
	assert.True(t, sessions.sessions["sess-1"].Consumed)
}

func TestConfirmSessionPartialSelection(t *testing.T) {
	sections := &fakeSectionStore{sections: map[string]*domain.DocumentSection{
		"sec-1": {SectionID: "sec-1"},
	}}
	sessions := &fakeSessionStore{sessions: map[string]*domain.ParseSession{
		"sess-1": {
			SessionID: "sess-1",
			SectionID: "sec-1",
			Blocks: []domain.Block{
				{ID: "n1", Type: domain.BlockTypeHeading},
				{ID: "n2", Type: domain.BlockTypeParagraph},
				{ID: "n3", Type: domain.BlockTypeParagraph},
			},
		},
	}}
	engine := newTestEngine(sections, sessions)

	err := engine.ConfirmSession(context.Background(), "sess-1", []string{"n1", "n3"})
	require.NoError(t, err)

	assert.Equal(t, []string{"n1", "n3"}, blockIDs(sections.sections["sec-1"].Blocks))
}

func TestConfirmSessionExactlyOnce(t *testing.T) {
	sections := &fakeSectionStore{sections: map[string]*domain.DocumentSection{
		"sec-1": {SectionID: "sec-1"},
	}}
	sessions := &fakeSessionStore{sessions: map[string]*domain.ParseSession{
		"sess-1": {
			SessionID: "sess-1",
			SectionID: "sec-1",
			Blocks:    []domain.Block{{ID: "n1", Type: domain.BlockTypeParagraph}},
		},
	}}
	engine := newTestEngine(sections, sessions)

	require.NoError(t, engine.ConfirmSession(context.Background(), "sess-1", nil))
	firstUpdates := sections.updates

	err := engine.ConfirmSession(context.Background(), "sess-1", nil)
	assert.ErrorIs(t, err, domain.ErrSessionConsumed)
	assert.Equal(t, firstUpdates, sections.updates)
}

func TestConfirmSessionReopensOnSectionWriteFailure(t *testing.T) {
	sections := &fakeSectionStore{
		sections: map[string]*domain.DocumentSection{
			"sec-1": {
				SectionID: "sec-1",
				Blocks: []domain.Block{
					{ID: "ph", Type: domain.BlockTypePlaceholder},
				},
			},
		},
		updateErr: errors.New("connection reset"),
	}
	sessions := &fakeSessionStore{sessions: map[string]*domain.ParseSession{
		"sess-1": {
			SessionID:          "sess-1",
			SectionID:          "sec-1",
			PlaceholderBlockID: "ph",
			Blocks: []domain.Block{
				{ID: "n1", Type: domain.BlockTypeParagraph, Text: "pending"},
			},
		},
	}}
	engine := newTestEngine(sections, sessions)

	err := engine.ConfirmSession(context.Background(), "sess-1", nil)
	require.Error(t, err)
	assert.False(t, sessions.sessions["sess-1"].Consumed,
		"failed section write must leave the session claimable")

	sections.updateErr = nil
	require.NoError(t, engine.ConfirmSession(context.Background(), "sess-1", nil))
	assert.Equal(t, []string{"n1"}, blockIDs(sections.sections["sec-1"].Blocks))
	assert.True(t, sessions.sessions["sess-1"].Consumed)
}

func TestRemovePlaceholder(t *testing.T) {
	sections := &fakeSectionStore{sections: map[string]*domain.DocumentSection{
		"sec-1": {
			SectionID: "sec-1",
			Blocks: []domain.Block{
				{ID: "a", Type: domain.BlockTypeParagraph, Text: "keep"},
				{ID: "ph", Type: domain.BlockTypePlaceholder},
			},
		},
	}}
	engine := newTestEngine(sections, &fakeSessionStore{})

	err := engine.RemovePlaceholder(context.Background(), "sec-1", "ph")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, blockIDs(sections.sections["sec-1"].Blocks))

	// Already gone is a no-op, and an empty id skips the section entirely.
	require.NoError(t, engine.RemovePlaceholder(context.Background(), "sec-1", "ph"))
	require.NoError(t, engine.RemovePlaceholder(context.Background(), "sec-1", ""))
	assert.Equal(t, []string{"a"}, blockIDs(sections.sections["sec-1"].Blocks))
}

func TestDiscardSessionRemovesPlaceholderOnly(t *testing.T) {
	sections := &fakeSectionStore{sections: map[string]*domain.DocumentSection{
		"sec-1": {
			SectionID: "sec-1",
			Blocks: []domain.Block{
				{ID: "a", Type: domain.BlockTypeParagraph},
				{ID: "ph", Type: domain.BlockTypePlaceholder},
			},
		},
	}}
	sessions := &fakeSessionStore{sessions: map[string]*domain.ParseSession{
		"sess-1": {
			SessionID:          "sess-1",
			SectionID:          "sec-1",
			PlaceholderBlockID: "ph",
			Blocks:             []domain.Block{{ID: "n1", Type: domain.BlockTypeParagraph}},
		},
	}}
	engine := newTestEngine(sections, sessions)

	err := engine.DiscardSession(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, blockIDs(sections.sections["sec-1"].Blocks))
	assert.True(t, sessions.sessions["sess-1"].Consumed)
}

func TestDiscardSessionThenConfirmFails(t *testing.T) {
	sections := &fakeSectionStore{sections: map[string]*domain.DocumentSection{
		"sec-1": {SectionID: "sec-1"},
	}}
	sessions := &fakeSessionStore{sessions: map[string]*domain.ParseSession{
		"sess-1": {SessionID: "sess-1", SectionID: "sec-1"},
	}}
	engine := newTestEngine(sections, sessions)

	require.NoError(t, engine.DiscardSession(context.Background(), "sess-1"))

	err := engine.ConfirmSession(context.Background(), "sess-1", nil)
	assert.ErrorIs(t, err, domain.ErrSessionConsumed)
}

func TestSessionNotFound(t *testing.T) {
	engine := newTestEngine(&fakeSectionStore{}, &fakeSessionStore{sessions: map[string]*domain.ParseSession{}})

	assert.ErrorIs(t, engine.ConfirmSession(context.Background(), "nope", nil), domain.ErrSessionNotFound)
	assert.ErrorIs(t, engine.DiscardSession(context.Background(), "nope"), domain.ErrSessionNotFound)
}
