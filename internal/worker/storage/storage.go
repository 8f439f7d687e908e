package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/pickup-be/internal/events"
	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	table  string
	logger *slog.Logger
}

// NewStorage creates a new Storage writing to the given job events table
func NewStorage(db *sqlx.DB, table string, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		table:  table,
		logger: logger,
	}
}

// RecordJobEvent appends e to the stage history. Redelivered events hit the
// event_id unique key and are skipped; inserted is false in that case.
func (s *Storage) RecordJobEvent(ctx context.Context, e *events.JobEvent) (inserted bool, err error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (event_id, job_id, actor_id, actor_role, event, from_stage, to_stage, follow_up, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING
	`, s.table)

	result, err := s.db.ExecContext(ctx, query,
		e.EventID.String(),
		e.JobID,
		e.ActorID,
		string(e.ActorRole),
		e.Event,
		string(e.FromStage),
		string(e.ToStage),
		e.FollowUp,
		e.OccurredAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record job event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Debug("Job event already recorded",
			slog.String("event_id", e.EventID.String()),
			slog.Int64("job_id", e.JobID),
		)
		return false, nil
	}

	return true, nil
}
