package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/thanhldev/extraction-be/internal/worker/domain"
)

// GetSection retrieves a document section with its ordered block list
func (s *Storage) GetSection(ctx context.Context, sectionID string) (*domain.DocumentSection, error) {
	query := `
		SELECT section_id, record_id, blocks
		FROM document_sections
		WHERE section_id = $1
	`

	var row struct {
		SectionID string `db:"section_id"`
		RecordID  string `db:"record_id"`
		Blocks    []byte `db:"blocks"`
	}

	if err := s.db.GetContext(ctx, &row, query, sectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSectionNotFound
		}
		return nil, fmt.Errorf("failed to get section: %w", err)
	}

	var blocks []domain.Block
	if len(row.Blocks) > 0 {
		if err := json.Unmarshal(row.Blocks, &blocks); err != nil {
			return nil, fmt.Errorf("failed to decode section blocks: %w", err)
		}
	}

	return &domain.DocumentSection{
		SectionID: row.SectionID,
		RecordID:  row.RecordID,
		Blocks:    blocks,
	}, nil
}

// UpdateSectionBlocks persists the full block list of a section as a single
// atomic update.
func (s *Storage) UpdateSectionBlocks(ctx context.Context, sectionID string, blocks []domain.Block) error {
	payload, err := json.Marshal(blocks)
	if err != nil {
		return fmt.Errorf("failed to encode section blocks: %w", err)
	}

	query := `
		UPDATE document_sections
		SET blocks = $1,
		    updated_at = NOW()
		WHERE section_id = $2
	`

	result, err := s.db.ExecContext(ctx, query, payload, sectionID)
	if err != nil {
		return fmt.Errorf("failed to update section blocks: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrSectionNotFound
	}

	return nil
}
