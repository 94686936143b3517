package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/thanhldev/extraction-be/internal/worker/supervisor"
	"github.com/thanhldev/extraction-be/shared/rabbitmq"
)

// MaintenanceStore covers the storage operations the worker service runs
// outside of any single job: startup reconciliation and the retention sweep.
type MaintenanceStore interface {
	FailOrphanedProcessing(ctx context.Context, reason string) (int64, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config holds worker service configuration
type Config struct {
	Logger         *slog.Logger
	RabbitClient   *rabbitmq.Client
	Runner         *Runner
	Supervisor     *supervisor.Supervisor
	Maintenance    MaintenanceStore
	PrefetchCount  int
	ReaperInterval time.Duration
	SweepInterval  time.Duration
	RowRetention   time.Duration
}

// Worker consumes job dispatch messages and drives each job on its own
// supervised goroutine.
type Worker struct {
	logger         *slog.Logger
	rabbitClient   *rabbitmq.Client
	runner         *Runner
	supervisor     *supervisor.Supervisor
	maintenance    MaintenanceStore
	prefetchCount  int
	reaperInterval time.Duration
	sweepInterval  time.Duration
	rowRetention   time.Duration
	workerID       string
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:         cfg.Logger,
		rabbitClient:   cfg.RabbitClient,
		runner:         cfg.Runner,
		supervisor:     cfg.Supervisor,
		maintenance:    cfg.Maintenance,
		prefetchCount:  cfg.PrefetchCount,
		reaperInterval: cfg.ReaperInterval,
		sweepInterval:  cfg.SweepInterval,
		rowRetention:   cfg.RowRetention,
		workerID:       fmt.Sprintf("worker-%s", uuid.New().String()[:8]),
	}
}

// Start reconciles orphaned jobs, starts the background maintenance loops
// and consumes dispatch messages until the context is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("prefetch_count", w.prefetchCount),
	)

	// Rows left in processing belong to goroutines that died with a previous
	// worker process. Their provider-side jobs may be long gone, so they are
	// failed rather than resumed.
	orphaned, err := w.maintenance.FailOrphanedProcessing(ctx, "worker restarted during processing")
	if err != nil {
		return fmt.Errorf("failed to reconcile orphaned jobs: %w", err)
	}
	if orphaned > 0 {
		w.logger.Warn("Reconciled orphaned processing jobs",
			slog.Int64("count", orphaned),
		)
	}

	w.supervisor.StartReaper(ctx, w.reaperInterval)
	go w.sweepLoop(ctx)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.dispatchLoop(ctx, deliveries)

	w.logger.Info("Worker draining active jobs",
		slog.Int("running", w.supervisor.Running()),
	)
	w.supervisor.Wait()
	w.logger.Info("Worker stopped")

	return nil
}

// sweepLoop periodically deletes terminal job rows older than the retention
// window.
func (w *Worker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			cutoff := time.Now().Add(-w.rowRetention)
			deleted, err := w.maintenance.DeleteTerminalBefore(ctx, cutoff)
			if err != nil {
				w.logger.Error("Retention sweep failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if deleted > 0 {
				w.logger.Info("Retention sweep removed terminal jobs",
					slog.Int64("deleted", deleted),
				)
			}
		}
	}
}
