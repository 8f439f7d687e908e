package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/cuongbtq/pickup-be/internal/api/lifecycle"
	"github.com/cuongbtq/pickup-be/internal/api/model"
	"github.com/cuongbtq/pickup-be/shared/postgresql"
	"github.com/lib/pq"
)

var jobColumns = []string{
	"id", "organisation_id", "assigned_to", "progress_stage", "intake_priority",
	"follow_up", "deadline_date", "dropoff_date", "name", "address",
	"weight", "value", "size", "created_at", "updated_at",
}

func (s *Storage) CreateJob(ctx context.Context, job *model.Job) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			organisation_id, progress_stage, intake_priority, follow_up,
			deadline_date, name, address, weight, value, size
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10
		)
		RETURNING id, created_at, updated_at
	`, s.tables.Jobs)

	err := s.db.QueryRowxContext(
		ctx,
		query,
		job.OrganisationID,
		string(job.ProgressStage),
		string(job.IntakePriority),
		job.FollowUp,
		job.DeadlineDate,
		job.Name,
		job.Address,
		job.Weight,
		job.Value,
		job.Size,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)

	if err != nil {
		if postgresql.IsForeignKeyViolation(err) {
			return domain.Validation("organisation %d does not exist", job.OrganisationID)
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Storage) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	var job model.Job
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, columns("", jobColumns), s.tables.Jobs)

	err := s.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// viewQuery selects jobs joined with organisation and assignee names
func (s *Storage) viewQuery() string {
	return fmt.Sprintf(`
		SELECT %s,
			o.name AS organisation_name,
			u.name AS assignee_name,
			u.email AS assignee_email
		FROM %s j
		JOIN %s o ON o.id = j.organisation_id
		LEFT JOIN %s u ON u.id = j.assigned_to
	`, columns("j", jobColumns), s.tables.Jobs, s.tables.Organisations, s.tables.Users)
}

func (s *Storage) GetJobView(ctx context.Context, id int64) (*model.JobView, error) {
	var view model.JobView
	query := s.viewQuery() + " WHERE j.id = $1"

	err := s.db.GetContext(ctx, &view, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &view, nil
}

func stageArray(stages ...domain.Stage) interface{} {
	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = string(st)
	}
	return pq.Array(names)
}

// ListAvailable returns jobs open for reservation, soonest deadline first.
// Admins also see jobs cancelled mid-delivery so they can re-triage them.
func (s *Storage) ListAvailable(ctx context.Context, includeCancelled bool) ([]model.JobView, error) {
	stages := []domain.Stage{domain.StageAvailable}
	if includeCancelled {
		stages = append(stages, domain.StageCancelledInDelivery)
	}

	query := s.viewQuery() + `
		WHERE j.progress_stage = ANY($1)
		ORDER BY j.deadline_date ASC NULLS LAST, j.id ASC
	`

	views := []model.JobView{}
	if err := s.db.SelectContext(ctx, &views, query, stageArray(stages...)); err != nil {
		return nil, fmt.Errorf("failed to list available jobs: %w", err)
	}
	return views, nil
}

// ListOngoing returns reserved and in-delivery jobs, in-delivery first.
// A non-nil assignee restricts the list to that volunteer.
func (s *Storage) ListOngoing(ctx context.Context, assignee *int64) ([]model.JobView, error) {
	query := s.viewQuery() + " WHERE j.progress_stage = ANY($1)"
	args := []interface{}{stageArray(domain.StageReserved, domain.StageInDelivery)}

	if assignee != nil {
		query += " AND j.assigned_to = $2"
		args = append(args, *assignee)
	}

	query += fmt.Sprintf(`
		ORDER BY CASE j.progress_stage WHEN '%s' THEN 0 ELSE 1 END,
			j.deadline_date ASC NULLS LAST, j.id ASC
	`, domain.StageInDelivery)

	views := []model.JobView{}
	if err := s.db.SelectContext(ctx, &views, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list ongoing jobs: %w", err)
	}
	return views, nil
}

// ListCompleted returns completed jobs, latest drop-off first
func (s *Storage) ListCompleted(ctx context.Context, assignee *int64) ([]model.JobView, error) {
	query := s.viewQuery() + " WHERE j.progress_stage = $1"
	args := []interface{}{string(domain.StageCompleted)}

	if assignee != nil {
		query += " AND j.assigned_to = $2"
		args = append(args, *assignee)
	}

	query += " ORDER BY j.dropoff_date DESC NULLS LAST, j.id DESC"

	views := []model.JobView{}
	if err := s.db.SelectContext(ctx, &views, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list completed jobs: %w", err)
	}
	return views, nil
}

type JobFilter struct {
	Stage          domain.Stage
	OrganisationID *int64
	AssignedTo     *int64
	FollowUp       *bool
	PageSize       int
	Cursor         *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	ID        int64
}

// ListJobs returns up to PageSize+1 jobs so callers can tell whether a
// next page exists.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE 1=1
	`, columns("", jobColumns), s.tables.Jobs)
	args := []interface{}{}
	argIdx := 1

	if filter.Stage != "" {
		query += fmt.Sprintf(" AND progress_stage = $%d", argIdx)
		args = append(args, string(filter.Stage))
		argIdx++
	}

	if filter.OrganisationID != nil {
		query += fmt.Sprintf(" AND organisation_id = $%d", argIdx)
		args = append(args, *filter.OrganisationID)
		argIdx++
	}

	if filter.AssignedTo != nil {
		query += fmt.Sprintf(" AND assigned_to = $%d", argIdx)
		args = append(args, *filter.AssignedTo)
		argIdx++
	}

	if filter.FollowUp != nil {
		query += fmt.Sprintf(" AND follow_up = $%d", argIdx)
		args = append(args, *filter.FollowUp)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"

	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	jobs := []model.Job{}
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// addTransition appends the SET and WHERE fragments of tr
func addTransition(b *updateBuilder, id int64, tr lifecycle.Transition) {
	b.set("progress_stage", string(tr.To))

	switch tr.Assign {
	case lifecycle.AssignSet:
		b.set("assigned_to", tr.Assignee)
	case lifecycle.AssignClear:
		b.setExpr("assigned_to", "NULL")
	}
	if tr.FlagFollowUp {
		b.setExpr("follow_up", "TRUE")
	}
	if tr.StampDropoff {
		b.setExpr("dropoff_date", "NOW()")
	}
	if tr.ClearDropoff {
		b.setExpr("dropoff_date", "NULL")
	}
	b.setExpr("updated_at", "NOW()")

	b.where("id = " + b.arg(id))
	b.where("progress_stage = " + b.arg(string(tr.From)))

	if g := tr.Guard; g.Unassigned {
		b.where("assigned_to IS NULL")
	} else if g.AssigneeIs != nil {
		if g.OrUnassigned {
			b.where("(assigned_to IS NULL OR assigned_to = " + b.arg(*g.AssigneeIs) + ")")
		} else {
			b.where("assigned_to = " + b.arg(*g.AssigneeIs))
		}
	}
}

func staleError(tr lifecycle.Transition) error {
	if tr.Event == lifecycle.EventReserve {
		return domain.ErrNoLongerAvailable
	}
	return domain.ErrStaleState
}

// ApplyTransition performs tr as one conditional UPDATE. When the row no
// longer matches the stage and assignee the transition was planned from,
// nothing is written and a conflict is returned.
func (s *Storage) ApplyTransition(ctx context.Context, id int64, tr lifecycle.Transition) (*model.Job, error) {
	var b updateBuilder
	addTransition(&b, id, tr)
	query := b.build(s.tables.Jobs, columns("", jobColumns))

	var job model.Job
	err := s.db.GetContext(ctx, &job, query, b.args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, staleError(tr)
		}
		if postgresql.IsCheckViolation(err) {
			return nil, domain.Conflict("stage %s requires an assignee", tr.To)
		}
		return nil, fmt.Errorf("failed to apply %s transition: %w", tr.Event, err)
	}

	return &job, nil
}

// JobFields are the descriptive attributes an admin may edit. Nil means
// unchanged.
type JobFields struct {
	OrganisationID *int64
	Name           *string
	Address        *string
	Size           *string
	Weight         *float64
	Value          *float64
	IntakePriority *domain.Priority
	DeadlineDate   *time.Time
	ClearDeadline  bool
	FollowUp       *bool
}

// UpdateJob writes field edits together with an override transition in a
// single conditional UPDATE guarded on the stage and assignee read by the
// caller.
func (s *Storage) UpdateJob(ctx context.Context, id int64, fields JobFields, tr lifecycle.Transition) (*model.Job, error) {
	var b updateBuilder

	if fields.OrganisationID != nil {
		b.set("organisation_id", *fields.OrganisationID)
	}
	if fields.Name != nil {
		b.set("name", *fields.Name)
	}
	if fields.Address != nil {
		b.set("address", *fields.Address)
	}
	if fields.Size != nil {
		b.set("size", *fields.Size)
	}
	if fields.Weight != nil {
		b.set("weight", *fields.Weight)
	}
	if fields.Value != nil {
		b.set("value", *fields.Value)
	}
	if fields.IntakePriority != nil {
		b.set("intake_priority", string(*fields.IntakePriority))
	}
	if fields.ClearDeadline {
		b.setExpr("deadline_date", "NULL")
	} else if fields.DeadlineDate != nil {
		b.set("deadline_date", *fields.DeadlineDate)
	}
	if fields.FollowUp != nil && !tr.FlagFollowUp {
		b.set("follow_up", *fields.FollowUp)
	}

	addTransition(&b, id, tr)
	query := b.build(s.tables.Jobs, columns("", jobColumns))

	var job model.Job
	err := s.db.GetContext(ctx, &job, query, b.args...)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, domain.ErrStaleState
		case postgresql.IsForeignKeyViolation(err):
			return nil, domain.Validation("referenced organisation or user does not exist")
		case postgresql.IsCheckViolation(err):
			return nil, domain.Validation("stage %s requires an assignee", tr.To)
		}
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	return &job, nil
}

// DeleteJob removes a job regardless of stage
func (s *Storage) DeleteJob(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.tables.Jobs)

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

// ListJobEvents returns the recorded stage history of a job, oldest first
func (s *Storage) ListJobEvents(ctx context.Context, jobID int64) ([]model.JobEvent, error) {
	query := fmt.Sprintf(`
		SELECT id, event_id, job_id, actor_id, actor_role, event,
			from_stage, to_stage, follow_up, occurred_at, recorded_at
		FROM %s
		WHERE job_id = $1
		ORDER BY occurred_at ASC, id ASC
	`, s.tables.JobEvents)

	events := []model.JobEvent{}
	if err := s.db.SelectContext(ctx, &events, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list job events: %w", err)
	}
	return events, nil
}
