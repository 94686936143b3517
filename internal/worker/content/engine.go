package content

import (
	"context"
	"log/slog"

	"github.com/thanhldev/extraction-be/internal/worker/domain"
)

// SectionStore provides document section access for the insertion engine.
type SectionStore interface {
	GetSection(ctx context.Context, sectionID string) (*domain.DocumentSection, error)
	UpdateSectionBlocks(ctx context.Context, sectionID string, blocks []domain.Block) error
}

// SessionStore provides parse session access for confirm and discard.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*domain.ParseSession, error)
	ConsumeSession(ctx context.Context, sessionID string) error
	ReopenSession(ctx context.Context, sessionID string) error
}

// Engine applies extracted block output to document sections.
type Engine struct {
	sections SectionStore
	sessions SessionStore
	logger   *slog.Logger
}

// NewEngine creates a content insertion engine.
func NewEngine(sections SectionStore, sessions SessionStore, logger *slog.Logger) *Engine {
	return &Engine{
		sections: sections,
		sessions: sessions,
		logger:   logger,
	}
}

// InsertBlocks splices newBlocks into a section at insertionIndex, removing
// the placeholder block first. A missing placeholder means the section was
// edited while the extraction ran; insertion proceeds at the clamped index.
// The updated block sequence is persisted in a single write.
func (e *Engine) InsertBlocks(ctx context.Context, sectionID, placeholderBlockID string, insertionIndex int, newBlocks []domain.Block) error {
	section, err := e.sections.GetSection(ctx, sectionID)
	if err != nil {
		return err
	}

	blocks := section.Blocks
	if placeholderBlockID != "" {
		removed := false
		filtered := make([]domain.Block, 0, len(blocks))
		for _, block := range blocks {
			if !removed && block.ID == placeholderBlockID && block.Type == domain.BlockTypePlaceholder {
				removed = true
				continue
			}
			filtered = append(filtered, block)
		}
		if !removed {
			e.logger.Warn("Placeholder block missing, inserting at requested index",
				slog.String("section_id", sectionID),
				slog.String("placeholder_block_id", placeholderBlockID),
			)
		}
		blocks = filtered
	}

	index := insertionIndex
	if index < 0 {
		index = 0
	}
	if index > len(blocks) {
		index = len(blocks)
	}

	merged := make([]domain.Block, 0, len(blocks)+len(newBlocks))
	merged = append(merged, blocks[:index]...)
	merged = append(merged, newBlocks...)
	merged = append(merged, blocks[index:]...)

	if err := e.sections.UpdateSectionBlocks(ctx, sectionID, merged); err != nil {
		return err
	}

	e.logger.Info("Inserted blocks into section",
		slog.String("section_id", sectionID),
		slog.Int("inserted", len(newBlocks)),
		slog.Int("index", index),
	)

	return nil
}

// RemovePlaceholder strips a placeholder block from a section without
// inserting anything in its place. Used when an extraction fails or is
// discarded after a placeholder was allocated. A placeholder that is already
// gone is not an error.
func (e *Engine) RemovePlaceholder(ctx context.Context, sectionID, placeholderBlockID string) error {
	if placeholderBlockID == "" {
		return nil
	}
	return e.InsertBlocks(ctx, sectionID, placeholderBlockID, 0, nil)
}

// ConfirmSession consumes a parse session and inserts its pending blocks into
// the target section. A non-empty blockIDs selects a subset of the pending
// blocks; nil confirms all of them. The consumed flag serves as the
// exactly-once gate, so it flips before the section write; when that write
// fails the session is reopened so the output is not lost to a transient
// error.
func (e *Engine) ConfirmSession(ctx context.Context, sessionID string, blockIDs []string) error {
	session, err := e.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := e.sessions.ConsumeSession(ctx, sessionID); err != nil {
		return err
	}

	blocks := session.Blocks
	if len(blockIDs) > 0 {
		selected := make(map[string]bool, len(blockIDs))
		for _, id := range blockIDs {
			selected[id] = true
		}
		filtered := make([]domain.Block, 0, len(blockIDs))
		for _, block := range blocks {
			if selected[block.ID] {
				filtered = append(filtered, block)
			}
		}
		blocks = filtered
	}

	if err := e.InsertBlocks(ctx, session.SectionID, session.PlaceholderBlockID, session.InsertionIndex, blocks); err != nil {
		e.reopen(ctx, sessionID)
		return err
	}
	return nil
}

// DiscardSession consumes a parse session without applying its output. The
// placeholder block, if still present, is removed from the section.
func (e *Engine) DiscardSession(ctx context.Context, sessionID string) error {
	session, err := e.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := e.sessions.ConsumeSession(ctx, sessionID); err != nil {
		return err
	}

	if session.PlaceholderBlockID == "" {
		return nil
	}

	if err := e.InsertBlocks(ctx, session.SectionID, session.PlaceholderBlockID, session.InsertionIndex, nil); err != nil {
		e.reopen(ctx, sessionID)
		return err
	}
	return nil
}

// reopen reverts the consumed flag after a failed section write so the
// session can be confirmed or discarded again.
func (e *Engine) reopen(ctx context.Context, sessionID string) {
	if err := e.sessions.ReopenSession(ctx, sessionID); err != nil {
		e.logger.Error("Failed to reopen parse session after section write error",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}
