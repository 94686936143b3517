package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/thanhldev/extraction-be/internal/worker/domain"
)

// Storage handles all database operations for the worker service.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// GetJob retrieves an extraction job by its ID
func (s *Storage) GetJob(ctx context.Context, jobID string) (*domain.ExtractionJob, error) {
	query := `
		SELECT job_id, record_id, owner_id, source_url, admin_scope,
		       provider_job_id, status, progress, message, error_message,
		       section_id, placeholder_block_id, insertion_index,
		       created_at, updated_at, completed_at
		FROM extraction_jobs
		WHERE job_id = $1
	`

	var job domain.ExtractionJob
	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// SetProcessing moves a job from pending to processing and records the
// provider-side job id. Terminal jobs are left untouched.
func (s *Storage) SetProcessing(ctx context.Context, jobID, providerJobID string) error {
	query := `
		UPDATE extraction_jobs
		SET status = $1,
		    provider_job_id = $2,
		    message = 'submitted to extraction provider',
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status NOT IN ($4, $5)
	`

	_, err := s.db.ExecContext(ctx, query,
		domain.JobStatusProcessing, providerJobID, jobID,
		domain.JobStatusCompleted, domain.JobStatusFailed,
	)
	if err != nil {
		return fmt.Errorf("failed to set job processing: %w", err)
	}

	s.logger.Info("Job moved to processing",
		slog.String("job_id", jobID),
		slog.String("provider_job_id", providerJobID),
	)

	return nil
}

// UpdateProgress records a poll observation for a processing job. Progress
// is kept monotonically non-decreasing; the provider only promises
// best-effort monotonicity.
func (s *Storage) UpdateProgress(ctx context.Context, jobID string, progress int, message string) error {
	query := `
		UPDATE extraction_jobs
		SET progress = GREATEST(progress, $1),
		    message = $2,
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
	`

	_, err := s.db.ExecContext(ctx, query, progress, message, jobID, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	return nil
}

// MarkCompleted moves a job to completed. Terminal states are sticky, so a
// job that already completed or failed is left untouched.
func (s *Storage) MarkCompleted(ctx context.Context, jobID, message string) error {
	query := `
		UPDATE extraction_jobs
		SET status = $1,
		    progress = 100,
		    message = $2,
		    error_message = NULL,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status NOT IN ($1, $4)
	`

	_, err := s.db.ExecContext(ctx, query,
		domain.JobStatusCompleted, message, jobID, domain.JobStatusFailed,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	s.logger.Info("Job completed",
		slog.String("job_id", jobID),
		slog.String("message", message),
	)

	return nil
}

// MarkFailed moves a job to failed, recording the failure reason verbatim.
func (s *Storage) MarkFailed(ctx context.Context, jobID, errorMessage string) error {
	query := `
		UPDATE extraction_jobs
		SET status = $1,
		    message = 'extraction failed',
		    error_message = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status NOT IN ($1, $4)
	`

	_, err := s.db.ExecContext(ctx, query,
		domain.JobStatusFailed, errorMessage, jobID, domain.JobStatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	s.logger.Info("Job failed",
		slog.String("job_id", jobID),
		slog.String("error", errorMessage),
	)

	return nil
}

// FailOrphanedProcessing marks every job left in processing as failed.
// Called once at worker startup: any row still processing at that point
// belonged to a worker that did not survive.
func (s *Storage) FailOrphanedProcessing(ctx context.Context, reason string) (int64, error) {
	query := `
		UPDATE extraction_jobs
		SET status = $1,
		    message = 'extraction failed',
		    error_message = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE status = $3
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStatusFailed, reason, domain.JobStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile orphaned jobs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// DeleteTerminalBefore removes completed and failed rows whose completion is
// older than the cutoff. Jobs are never deleted synchronously with their
// execution; this retention sweep is the only deletion path.
func (s *Storage) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM extraction_jobs
		WHERE status IN ($1, $2)
		  AND completed_at < $3
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStatusCompleted, domain.JobStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete terminal jobs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
