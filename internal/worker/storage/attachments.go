package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/thanhldev/extraction-be/internal/worker/domain"
)

// GetAttachments returns the attachment map for a record. A record with no
// attachments yet yields an empty map, not an error.
func (s *Storage) GetAttachments(ctx context.Context, recordID string) (domain.AttachmentMap, error) {
	query := `
		SELECT attachments
		FROM record_attachments
		WHERE record_id = $1
	`

	var payload []byte
	if err := s.db.GetContext(ctx, &payload, query, recordID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AttachmentMap{}, nil
		}
		return nil, fmt.Errorf("failed to get attachments: %w", err)
	}

	attachments := domain.AttachmentMap{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &attachments); err != nil {
			return nil, fmt.Errorf("failed to decode attachments: %w", err)
		}
	}

	return attachments, nil
}

// ReplaceAttachments merges the given attachments into the record's map,
// replacing each kind wholesale. Kinds absent from the input keep their
// current entries. The jsonb merge happens in a single statement so
// concurrent writers for different kinds do not clobber each other.
func (s *Storage) ReplaceAttachments(ctx context.Context, recordID string, attachments domain.AttachmentMap) error {
	if len(attachments) == 0 {
		return nil
	}

	payload, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("failed to encode attachments: %w", err)
	}

	query := `
		INSERT INTO record_attachments (record_id, attachments, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (record_id) DO UPDATE
		SET attachments = record_attachments.attachments || EXCLUDED.attachments,
		    updated_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, recordID, payload); err != nil {
		return fmt.Errorf("failed to replace attachments: %w", err)
	}

	kinds := make([]string, 0, len(attachments))
	for kind := range attachments {
		kinds = append(kinds, kind)
	}
	s.logger.Info("Replaced record attachments",
		slog.String("record_id", recordID),
		slog.Any("kinds", kinds),
	)

	return nil
}
