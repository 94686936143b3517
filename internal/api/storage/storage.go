package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/thanhldev/extraction-be/internal/api/model"
	"github.com/thanhldev/extraction-be/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

func (s *Storage) CreateJob(ctx context.Context, job *model.ExtractionJob) error {
	query := `
		INSERT INTO extraction_jobs (
			job_id, record_id, owner_id, source_url, admin_scope,
			status, progress, message,
			section_id, placeholder_block_id, insertion_index,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11,
			$12, $13
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.RecordID,
		job.OwnerID,
		job.SourceURL,
		job.AdminScope,
		job.Status,
		job.Progress,
		job.Message,
		job.SectionID,
		job.PlaceholderBlockID,
		job.InsertionIndex,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.ExtractionJob, error) {
	var job model.ExtractionJob
	query := `
		SELECT
			job_id, record_id, owner_id, source_url, admin_scope,
			provider_job_id, status, progress, message, error_message,
			section_id, placeholder_block_id, insertion_index,
			created_at, updated_at, completed_at
		FROM extraction_jobs
		WHERE job_id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// AllocatePlaceholder inserts a placeholder block into a section at the given
// index, clamped to the block list length. The read and write run in one
// transaction with the row locked so concurrent allocations do not lose
// blocks.
func (s *Storage) AllocatePlaceholder(ctx context.Context, sectionID, placeholderID string, index int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var payload []byte
	query := `SELECT blocks FROM document_sections WHERE section_id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &payload, query, sectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrSectionNotFound
		}
		return fmt.Errorf("failed to load section: %w", err)
	}

	var blocks []model.Block
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &blocks); err != nil {
			return fmt.Errorf("failed to decode section blocks: %w", err)
		}
	}

	if index < 0 {
		index = 0
	}
	if index > len(blocks) {
		index = len(blocks)
	}

	placeholder := model.Block{ID: placeholderID, Type: model.BlockTypePlaceholder}
	updated := make([]model.Block, 0, len(blocks)+1)
	updated = append(updated, blocks[:index]...)
	updated = append(updated, placeholder)
	updated = append(updated, blocks[index:]...)

	encoded, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("failed to encode section blocks: %w", err)
	}

	update := `UPDATE document_sections SET blocks = $2, updated_at = NOW() WHERE section_id = $1`
	if _, err := tx.ExecContext(ctx, update, sectionID, encoded); err != nil {
		return fmt.Errorf("failed to update section: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ReleasePlaceholder removes a previously allocated placeholder block from a
// section. Used to roll back when job creation or dispatch fails after the
// placeholder was committed. A placeholder that is already gone is a no-op.
func (s *Storage) ReleasePlaceholder(ctx context.Context, sectionID, placeholderID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var payload []byte
	query := `SELECT blocks FROM document_sections WHERE section_id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &payload, query, sectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrSectionNotFound
		}
		return fmt.Errorf("failed to load section: %w", err)
	}

	var blocks []model.Block
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &blocks); err != nil {
			return fmt.Errorf("failed to decode section blocks: %w", err)
		}
	}

	filtered := make([]model.Block, 0, len(blocks))
	for _, block := range blocks {
		if block.ID == placeholderID && block.Type == model.BlockTypePlaceholder {
			continue
		}
		filtered = append(filtered, block)
	}
	if len(filtered) == len(blocks) {
		return nil
	}

	encoded, err := json.Marshal(filtered)
	if err != nil {
		return fmt.Errorf("failed to encode section blocks: %w", err)
	}

	update := `UPDATE document_sections SET blocks = $2, updated_at = NOW() WHERE section_id = $1`
	if _, err := tx.ExecContext(ctx, update, sectionID, encoded); err != nil {
		return fmt.Errorf("failed to update section: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
