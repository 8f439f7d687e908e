package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/pickup-be/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop drains jobsChan until it is closed. Messages already handed to
// the pool are finished even after ctx is canceled.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started", slog.String("worker_name", workerName))

	for msg := range w.jobsChan {
		eventID := msg.Event.EventID.String()

		err := w.processEvent(ctx, msg)
		if err != nil {
			requeue := shouldRequeueJob(err)
			w.logger.Error("Event processing failed",
				slog.String("worker_name", workerName),
				slog.String("event_id", eventID),
				slog.Bool("requeue", requeue),
				slog.String("error", err.Error()),
			)

			if nackErr := msg.Delivery.Nack(false, requeue); nackErr != nil {
				w.logger.Error("Failed to NACK message",
					slog.String("worker_name", workerName),
					slog.String("event_id", eventID),
					slog.String("error", nackErr.Error()),
				)
			}
			continue
		}

		if ackErr := msg.Delivery.Ack(false); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("worker_name", workerName),
				slog.String("event_id", eventID),
				slog.String("error", ackErr.Error()),
			)
		}
	}

	w.logger.Debug("Worker goroutine stopping - jobsChan closed",
		slog.String("worker_name", workerName),
	)
}

// shouldRequeueJob requeues only transient failures
func shouldRequeueJob(err error) bool {
	if errors.Is(err, domain.ErrInvalidPayload) {
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
