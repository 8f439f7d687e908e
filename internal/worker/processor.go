package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/pickup-be/internal/worker/domain"
)

// processEvent records one job event. Shutdown does not interrupt an event
// already being written; the job timeout still applies.
func (w *Worker) processEvent(ctx context.Context, msg *domain.EventMessage) error {
	e := msg.Event

	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.jobTimeout)
	defer cancel()

	inserted, err := w.storage.RecordJobEvent(jobCtx, e)
	if err != nil {
		return domain.NewRetryableError(err)
	}

	attrs := []any{
		slog.String("event_id", e.EventID.String()),
		slog.Int64("job_id", e.JobID),
		slog.String("event", e.Event),
		slog.String("from_stage", e.FromStage.String()),
		slog.String("to_stage", e.ToStage.String()),
		slog.Int64("actor_id", e.ActorID),
	}

	if !inserted {
		w.logger.Info("Duplicate job event skipped", attrs...)
		return nil
	}

	if e.NeedsFollowUp() {
		w.logger.Warn("Job cancelled in delivery, admin follow-up required", attrs...)
		return nil
	}

	w.logger.Info("Job event recorded", attrs...)
	return nil
}
