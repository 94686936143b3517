package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/thanhldev/extraction-be/internal/worker/domain"
)

// setupConsumer configures QoS and returns the delivery channel.
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	channel := w.rabbitClient.GetChannel()
	if channel == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}

	if err := channel.Qos(w.prefetchCount, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := w.rabbitClient.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.Int("prefetch_count", w.prefetchCount),
	)

	return deliveries, nil
}

// dispatchLoop reads dispatch messages and hands each job to the supervisor.
// A resubmitted job id cancels and replaces the goroutine already running it.
func (w *Worker) dispatchLoop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Dispatch loop stopped, context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			var msg domain.JobMessage
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				w.logger.Error("Failed to parse dispatch message",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				w.nack(delivery, false)
				continue
			}

			if _, err := uuid.Parse(msg.JobID); err != nil {
				w.logger.Error("Invalid job_id in dispatch message",
					slog.String("job_id", msg.JobID),
					slog.String("error", err.Error()),
				)
				w.nack(delivery, false)
				continue
			}

			jobID := msg.JobID
			generation := w.supervisor.Submit(ctx, jobID, func(jobCtx context.Context, gen uint64) {
				w.settle(delivery, w.runner.Run(jobCtx, jobID, gen))
			})

			w.logger.Debug("Job dispatched",
				slog.String("job_id", jobID),
				slog.Uint64("generation", generation),
			)
		}
	}
}

// settle acknowledges the delivery according to the run outcome. Retryable
// errors are requeued; everything else is dropped.
func (w *Worker) settle(delivery amqp.Delivery, err error) {
	if err == nil {
		if ackErr := delivery.Ack(false); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	var retryable *domain.RetryableError
	requeue := errors.As(err, &retryable)

	w.logger.Error("Job run failed",
		slog.String("error", err.Error()),
		slog.Bool("requeue", requeue),
	)
	w.nack(delivery, requeue)
}

func (w *Worker) nack(delivery amqp.Delivery, requeue bool) {
	if err := delivery.Nack(false, requeue); err != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("error", err.Error()),
		)
	}
}
