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

// CreateSession stores a parse session holding pending block output for a
// section.
func (s *Storage) CreateSession(ctx context.Context, session *domain.ParseSession) error {
	payload, err := json.Marshal(session.Blocks)
	if err != nil {
		return fmt.Errorf("failed to encode session blocks: %w", err)
	}

	query := `
		INSERT INTO parse_sessions (
			session_id, record_id, section_id, placeholder_block_id,
			insertion_index, blocks, consumed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW(), NOW())
	`

	_, err = s.db.ExecContext(ctx, query,
		session.SessionID,
		session.RecordID,
		session.SectionID,
		session.PlaceholderBlockID,
		session.InsertionIndex,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to create parse session: %w", err)
	}

	return nil
}

// GetSession retrieves a parse session by id
func (s *Storage) GetSession(ctx context.Context, sessionID string) (*domain.ParseSession, error) {
	query := `
		SELECT session_id, record_id, section_id, placeholder_block_id,
		       insertion_index, blocks, consumed
		FROM parse_sessions
		WHERE session_id = $1
	`

	var row struct {
		SessionID          string `db:"session_id"`
		RecordID           string `db:"record_id"`
		SectionID          string `db:"section_id"`
		PlaceholderBlockID string `db:"placeholder_block_id"`
		InsertionIndex     int    `db:"insertion_index"`
		Blocks             []byte `db:"blocks"`
		Consumed           bool   `db:"consumed"`
	}

	if err := s.db.GetContext(ctx, &row, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get parse session: %w", err)
	}

	var blocks []domain.Block
	if len(row.Blocks) > 0 {
		if err := json.Unmarshal(row.Blocks, &blocks); err != nil {
			return nil, fmt.Errorf("failed to decode session blocks: %w", err)
		}
	}

	return &domain.ParseSession{
		SessionID:          row.SessionID,
		RecordID:           row.RecordID,
		SectionID:          row.SectionID,
		PlaceholderBlockID: row.PlaceholderBlockID,
		InsertionIndex:     row.InsertionIndex,
		Blocks:             blocks,
		Consumed:           row.Consumed,
	}, nil
}

// ConsumeSession flips the one-way consumed flag. Returns ErrSessionConsumed
// when the session was already consumed and ErrSessionNotFound when it does
// not exist; a session's output can be confirmed or discarded exactly once.
func (s *Storage) ConsumeSession(ctx context.Context, sessionID string) error {
	query := `
		UPDATE parse_sessions
		SET consumed = TRUE,
		    updated_at = NOW()
		WHERE session_id = $1
		  AND consumed = FALSE
	`

	result, err := s.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("failed to consume parse session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		if _, err := s.GetSession(ctx, sessionID); err != nil {
			return err
		}
		s.logger.Warn("Parse session already consumed",
			slog.String("session_id", sessionID),
		)
		return domain.ErrSessionConsumed
	}

	return nil
}

// ReopenSession reverts the consumed flag. Called when the section write
// that followed a consume failed, so the pending output stays claimable.
func (s *Storage) ReopenSession(ctx context.Context, sessionID string) error {
	query := `
		UPDATE parse_sessions
		SET consumed = FALSE,
		    updated_at = NOW()
		WHERE session_id = $1
		  AND consumed = TRUE
	`

	if _, err := s.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to reopen parse session: %w", err)
	}

	return nil
}
