package model

import (
	"time"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
)

type Job struct {
	ID             int64           `db:"id"`
	OrganisationID int64           `db:"organisation_id"`
	AssignedTo     *int64          `db:"assigned_to"`
	ProgressStage  domain.Stage    `db:"progress_stage"`
	IntakePriority domain.Priority `db:"intake_priority"`
	FollowUp       bool            `db:"follow_up"`
	DeadlineDate   *time.Time      `db:"deadline_date"`
	DropoffDate    *time.Time      `db:"dropoff_date"`
	Name           string          `db:"name"`
	Address        string          `db:"address"`
	Weight         *float64        `db:"weight"`
	Value          *float64        `db:"value"`
	Size           string          `db:"size"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// JobView is a job row joined with the names the read views display
type JobView struct {
	Job
	OrganisationName string  `db:"organisation_name"`
	AssigneeName     *string `db:"assignee_name"`
	AssigneeEmail    *string `db:"assignee_email"`
}

// JobEvent is one recorded stage change
type JobEvent struct {
	ID         int64        `db:"id"`
	EventID    string       `db:"event_id"`
	JobID      int64        `db:"job_id"`
	ActorID    int64        `db:"actor_id"`
	ActorRole  domain.Role  `db:"actor_role"`
	Event      string       `db:"event"`
	FromStage  domain.Stage `db:"from_stage"`
	ToStage    domain.Stage `db:"to_stage"`
	FollowUp   bool         `db:"follow_up"`
	OccurredAt time.Time    `db:"occurred_at"`
	RecordedAt time.Time    `db:"recorded_at"`
}
