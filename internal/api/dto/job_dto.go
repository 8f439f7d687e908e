package dto

import (
	"time"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/cuongbtq/pickup-be/internal/api/model"
)

type CreateJobRequest struct {
	OrganisationID int64    `json:"organisation_id" binding:"required,gt=0"`
	Name           string   `json:"name" binding:"required"`
	Address        string   `json:"address"`
	Size           string   `json:"size"`
	Weight         *float64 `json:"weight" binding:"omitempty,gte=0"`
	Value          *float64 `json:"value" binding:"omitempty,gte=0"`
	IntakePriority string   `json:"intake_priority" binding:"omitempty,oneof=low medium high"`
	DeadlineDate   string   `json:"deadline_date"`
}

// UpdateJobRequest is a partial edit. Absent fields are left unchanged; an
// empty deadline_date clears the deadline.
type UpdateJobRequest struct {
	OrganisationID *int64   `json:"organisation_id"`
	Name           *string  `json:"name"`
	Address        *string  `json:"address"`
	Size           *string  `json:"size"`
	Weight         *float64 `json:"weight"`
	Value          *float64 `json:"value"`
	IntakePriority *string  `json:"intake_priority"`
	DeadlineDate   *string  `json:"deadline_date"`
	FollowUp       *bool    `json:"follow_up"`
	ProgressStage  *string  `json:"progress_stage"`
	AssignedTo     *int64   `json:"assigned_to"`
	Unassign       bool     `json:"unassign"`
}

type ListJobsRequest struct {
	Stage          string `form:"stage"`
	OrganisationID int64  `form:"organisation_id"`
	AssignedTo     int64  `form:"assigned_to"`
	FollowUp       *bool  `form:"follow_up"`
	PageSize       int    `form:"page_size"`
	Cursor         string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobsResponse struct {
	Jobs []JobDTO `json:"jobs"`
}

type AssigneeDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type JobDTO struct {
	ID               int64        `json:"id"`
	OrganisationID   int64        `json:"organisation_id"`
	OrganisationName string       `json:"organisation_name,omitempty"`
	AssignedTo       *int64       `json:"assigned_to"`
	Assignee         *AssigneeDTO `json:"assignee,omitempty"`
	ProgressStage    string       `json:"progress_stage"`
	IntakePriority   string       `json:"intake_priority"`
	FollowUp         bool         `json:"follow_up"`
	DeadlineDate     *string      `json:"deadline_date"`
	DropoffDate      *string      `json:"dropoff_date"`
	Name             string       `json:"name"`
	Address          string       `json:"address"`
	Weight           *float64     `json:"weight"`
	Value            *float64     `json:"value"`
	Size             string       `json:"size"`
	CreatedAt        string       `json:"created_at"`
	UpdatedAt        string       `json:"updated_at"`
}

func formatTime(t *time.Time, layout string) *string {
	if t == nil {
		return nil
	}
	s := t.Format(layout)
	return &s
}

func FromJob(job *model.Job) JobDTO {
	return JobDTO{
		ID:             job.ID,
		OrganisationID: job.OrganisationID,
		AssignedTo:     job.AssignedTo,
		ProgressStage:  string(job.ProgressStage),
		IntakePriority: string(job.IntakePriority),
		FollowUp:       job.FollowUp,
		DeadlineDate:   formatTime(job.DeadlineDate, domain.DateLayout),
		DropoffDate:    formatTime(job.DropoffDate, time.RFC3339),
		Name:           job.Name,
		Address:        job.Address,
		Weight:         job.Weight,
		Value:          job.Value,
		Size:           job.Size,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
	}
}

// FromJobView converts a read-view row. The assignee identity is attached
// only when withAssignee is set.
func FromJobView(view *model.JobView, withAssignee bool) JobDTO {
	d := FromJob(&view.Job)
	d.OrganisationName = view.OrganisationName
	if withAssignee && view.AssignedTo != nil && view.AssigneeName != nil {
		d.Assignee = &AssigneeDTO{ID: *view.AssignedTo, Name: *view.AssigneeName}
		if view.AssigneeEmail != nil {
			d.Assignee.Email = *view.AssigneeEmail
		}
	}
	return d
}

func FromJobs(jobs []model.Job) []JobDTO {
	out := make([]JobDTO, len(jobs))
	for i := range jobs {
		out[i] = FromJob(&jobs[i])
	}
	return out
}

func FromJobViews(views []model.JobView, withAssignee bool) []JobDTO {
	out := make([]JobDTO, len(views))
	for i := range views {
		out[i] = FromJobView(&views[i], withAssignee)
	}
	return out
}

type JobEventDTO struct {
	EventID    string `json:"event_id"`
	ActorID    int64  `json:"actor_id"`
	ActorRole  string `json:"actor_role"`
	Event      string `json:"event"`
	FromStage  string `json:"from_stage"`
	ToStage    string `json:"to_stage"`
	FollowUp   bool   `json:"follow_up"`
	OccurredAt string `json:"occurred_at"`
}

type JobEventsResponse struct {
	Events []JobEventDTO `json:"events"`
}

func FromJobEvents(evs []model.JobEvent) []JobEventDTO {
	out := make([]JobEventDTO, len(evs))
	for i, e := range evs {
		out[i] = JobEventDTO{
			EventID:    e.EventID,
			ActorID:    e.ActorID,
			ActorRole:  string(e.ActorRole),
			Event:      e.Event,
			FromStage:  string(e.FromStage),
			ToStage:    string(e.ToStage),
			FollowUp:   e.FollowUp,
			OccurredAt: e.OccurredAt.Format(time.RFC3339),
		}
	}
	return out
}
