package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/thanhldev/extraction-be/internal/worker/content"
	"github.com/thanhldev/extraction-be/internal/worker/domain"
	"github.com/thanhldev/extraction-be/internal/worker/materializer"
	"github.com/thanhldev/extraction-be/internal/worker/provider"
)

// JobStore persists job record transitions.
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (*domain.ExtractionJob, error)
	SetProcessing(ctx context.Context, jobID, providerJobID string) error
	UpdateProgress(ctx context.Context, jobID string, progress int, message string) error
	MarkCompleted(ctx context.Context, jobID, message string) error
	MarkFailed(ctx context.Context, jobID, errorMessage string) error
}

// AttachmentStore persists materialized attachment maps.
type AttachmentStore interface {
	ReplaceAttachments(ctx context.Context, recordID string, attachments domain.AttachmentMap) error
}

// SessionCreator persists parse sessions holding derived block output.
type SessionCreator interface {
	CreateSession(ctx context.Context, session *domain.ParseSession) error
}

// ProviderClient submits documents to the extraction provider and polls them.
type ProviderClient interface {
	Submit(ctx context.Context, sourceURL string) (string, error)
	Poll(ctx context.Context, providerJobID string) (*provider.Status, error)
}

// ResultMaterializer turns a result archive into stored attachments.
type ResultMaterializer interface {
	Materialize(ctx context.Context, archiveURL, recordID string) (*materializer.Result, error)
}

// Inserter applies parse session output to document sections.
type Inserter interface {
	ConfirmSession(ctx context.Context, sessionID string, blockIDs []string) error
	RemovePlaceholder(ctx context.Context, sectionID, placeholderBlockID string) error
}

// GenerationGuard reports whether a job goroutine generation is still the
// current one. Superseded generations must not persist transitions.
type GenerationGuard interface {
	IsCurrent(jobID string, generation uint64) bool
}

// RunnerConfig holds the per-job pipeline settings.
type RunnerConfig struct {
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Runner drives one extraction job through its full lifecycle: provider
// submission, fixed-interval polling, result materialization, attachment
// persistence and optional content insertion.
type Runner struct {
	jobs         JobStore
	attachments  AttachmentStore
	sessions     SessionCreator
	provider     ProviderClient
	materializer ResultMaterializer
	inserter     Inserter
	guard        GenerationGuard
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *slog.Logger
}

// NewRunner creates a job runner.
func NewRunner(
	jobs JobStore,
	attachments AttachmentStore,
	sessions SessionCreator,
	providerClient ProviderClient,
	resultMaterializer ResultMaterializer,
	inserter Inserter,
	guard GenerationGuard,
	cfg *RunnerConfig,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		jobs:         jobs,
		attachments:  attachments,
		sessions:     sessions,
		provider:     providerClient,
		materializer: resultMaterializer,
		inserter:     inserter,
		guard:        guard,
		pollInterval: cfg.PollInterval,
		maxWait:      cfg.MaxWait,
		logger:       logger,
	}
}

// Run executes the state machine for one job. A nil return means the dispatch
// message should be acknowledged: the job reached a terminal status, was
// already terminal, or this generation was superseded. A RetryableError asks
// the consumer to requeue the message.
func (r *Runner) Run(ctx context.Context, jobID string, generation uint64) error {
	job, err := r.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return err
		}
		return domain.NewRetryableError(fmt.Errorf("failed to load job: %w", err))
	}

	if job.IsTerminal() {
		r.logger.Warn("Job already terminal, skipping",
			slog.String("job_id", jobID),
			slog.String("status", job.Status),
		)
		return nil
	}

	providerJobID := ""
	if job.ProviderJobID != nil {
		providerJobID = *job.ProviderJobID
	}

	if providerJobID == "" {
		providerJobID, err = r.provider.Submit(ctx, job.SourceURL)
		if err != nil {
			if errors.Is(err, domain.ErrNetwork) {
				// The job never reached the provider; leave it pending and
				// let a redelivery resubmit.
				return domain.NewRetryableError(err)
			}
			return r.fail(ctx, job, generation, err.Error())
		}

		if !r.current(jobID, generation) {
			return nil
		}
		if err := r.jobs.SetProcessing(ctx, jobID, providerJobID); err != nil {
			return domain.NewRetryableError(err)
		}
		r.logger.Info("Job submitted to provider",
			slog.String("job_id", jobID),
			slog.String("provider_job_id", providerJobID),
		)
	}

	status, err := r.pollUntilDone(ctx, jobID, providerJobID, generation)
	if err != nil {
		if errors.Is(err, domain.ErrJobTimeout) {
			return r.fail(ctx, job, generation,
				fmt.Sprintf("extraction exceeded maximum wait of %s", r.maxWait))
		}
		if errors.Is(err, context.Canceled) {
			r.logger.Info("Job run canceled",
				slog.String("job_id", jobID),
			)
			return nil
		}
		return r.fail(ctx, job, generation, err.Error())
	}
	if status == nil {
		// Superseded mid-poll.
		return nil
	}

	result, err := r.materializer.Materialize(ctx, status.ResultArchiveURL, job.RecordID)
	if err != nil {
		return r.fail(ctx, job, generation, err.Error())
	}

	if !r.current(jobID, generation) {
		return nil
	}
	if err := r.attachments.ReplaceAttachments(ctx, job.RecordID, result.Attachments); err != nil {
		return r.fail(ctx, job, generation, err.Error())
	}

	if job.InsertionRequested() {
		if err := r.insert(ctx, job, result.StructuredText); err != nil {
			return r.fail(ctx, job, generation, err.Error())
		}
	}

	if !r.current(jobID, generation) {
		return nil
	}
	message := fmt.Sprintf("extraction completed with %d attachments", len(result.Attachments))
	if err := r.jobs.MarkCompleted(ctx, jobID, message); err != nil {
		return domain.NewRetryableError(err)
	}

	r.logger.Info("Job completed",
		slog.String("job_id", jobID),
		slog.Int("attachments", len(result.Attachments)),
	)
	return nil
}

// pollUntilDone polls the provider on a fixed interval until the job reaches
// done, the provider reports failure, the wall-clock budget expires, or the
// context is canceled. Returns (nil, nil) when this generation was superseded.
func (r *Runner) pollUntilDone(ctx context.Context, jobID, providerJobID string, generation uint64) (*provider.Status, error) {
	deadline := time.Now().Add(r.maxWait)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case now := <-ticker.C:
			if now.After(deadline) {
				return nil, domain.ErrJobTimeout
			}

			status, err := r.provider.Poll(ctx, providerJobID)
			if err != nil {
				return nil, err
			}

			switch status.State {
			case provider.StateDone:
				return status, nil

			case provider.StateFailed:
				reason := status.ErrorMessage
				if reason == "" {
					reason = "extraction provider reported failure"
				}
				return nil, errors.New(reason)

			default:
				if status.Progress == nil {
					continue
				}
				if !r.current(jobID, generation) {
					return nil, nil
				}
				message := fmt.Sprintf("provider state: %s", status.State)
				if err := r.jobs.UpdateProgress(ctx, jobID, *status.Progress, message); err != nil {
					r.logger.Warn("Failed to persist progress",
						slog.String("job_id", jobID),
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}
}

// insert derives blocks from the structured text, records them as a parse
// session and confirms the session in full. A session consumed by a racing
// discard is a benign conflict, not a job failure.
func (r *Runner) insert(ctx context.Context, job *domain.ExtractionJob, structuredText string) error {
	blocks := content.BlocksFromMarkdown(structuredText)

	session := &domain.ParseSession{
		SessionID: uuid.New().String(),
		RecordID:  job.RecordID,
		SectionID: *job.SectionID,
		Blocks:    blocks,
	}
	if job.PlaceholderBlockID != nil {
		session.PlaceholderBlockID = *job.PlaceholderBlockID
	}
	if job.InsertionIndex != nil {
		session.InsertionIndex = *job.InsertionIndex
	}

	if err := r.sessions.CreateSession(ctx, session); err != nil {
		return err
	}

	if err := r.inserter.ConfirmSession(ctx, session.SessionID, nil); err != nil {
		if errors.Is(err, domain.ErrSessionConsumed) {
			r.logger.Warn("Parse session consumed by concurrent discard",
				slog.String("job_id", job.JobID),
				slog.String("session_id", session.SessionID),
			)
			return nil
		}
		return err
	}

	return nil
}

// fail marks the job failed unless this generation was superseded. A job that
// allocated a placeholder block has it removed from the section; the blocks
// it stood in for will never arrive.
func (r *Runner) fail(ctx context.Context, job *domain.ExtractionJob, generation uint64, reason string) error {
	if !r.current(job.JobID, generation) {
		return nil
	}

	if job.InsertionRequested() && job.PlaceholderBlockID != nil {
		if err := r.inserter.RemovePlaceholder(ctx, *job.SectionID, *job.PlaceholderBlockID); err != nil {
			r.logger.Warn("Failed to remove placeholder after job failure",
				slog.String("job_id", job.JobID),
				slog.String("section_id", *job.SectionID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := r.jobs.MarkFailed(ctx, job.JobID, reason); err != nil {
		return domain.NewRetryableError(err)
	}
	r.logger.Error("Job failed",
		slog.String("job_id", job.JobID),
		slog.String("reason", reason),
	)
	return nil
}

func (r *Runner) current(jobID string, generation uint64) bool {
	if r.guard.IsCurrent(jobID, generation) {
		return true
	}
	r.logger.Info("Job generation superseded, suppressing writes",
		slog.String("job_id", jobID),
		slog.Uint64("generation", generation),
	)
	return false
}
