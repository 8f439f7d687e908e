// Package service applies authorization and the job lifecycle on top of the
// stores. Every stage change is planned by the lifecycle package and written
// as one conditional update; a lost race surfaces as a conflict and is never
// retried here.
package service

import (
	"context"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/cuongbtq/pickup-be/internal/api/lifecycle"
	"github.com/cuongbtq/pickup-be/internal/api/model"
	"github.com/cuongbtq/pickup-be/internal/api/storage"
	"github.com/cuongbtq/pickup-be/internal/events"
)

type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id int64) (*model.Job, error)
	GetJobView(ctx context.Context, id int64) (*model.JobView, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.Job, error)
	ListAvailable(ctx context.Context, includeCancelled bool) ([]model.JobView, error)
	ListOngoing(ctx context.Context, assignee *int64) ([]model.JobView, error)
	ListCompleted(ctx context.Context, assignee *int64) ([]model.JobView, error)
	ApplyTransition(ctx context.Context, id int64, tr lifecycle.Transition) (*model.Job, error)
	UpdateJob(ctx context.Context, id int64, fields storage.JobFields, tr lifecycle.Transition) (*model.Job, error)
	DeleteJob(ctx context.Context, id int64) error
	ListJobEvents(ctx context.Context, jobID int64) ([]model.JobEvent, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context, role domain.Role) ([]model.User, error)
	UpdateUserRole(ctx context.Context, id int64, role domain.Role) (*model.User, error)
	DeleteUser(ctx context.Context, id int64) error
	HasAdmin(ctx context.Context) (bool, error)
}

type OrganisationStore interface {
	CreateOrganisation(ctx context.Context, org *model.Organisation) error
	GetOrganisation(ctx context.Context, id int64) (*model.Organisation, error)
	ListOrganisations(ctx context.Context) ([]model.Organisation, error)
	UpdateOrganisation(ctx context.Context, id int64, fields storage.OrganisationFields) (*model.Organisation, error)
	DeleteOrganisation(ctx context.Context, id int64) error
}

// EventPublisher ships stage changes to the event history
type EventPublisher interface {
	Publish(ctx context.Context, e events.JobEvent) error
}

func requireAdmin(actor domain.Identity) error {
	if !actor.IsAdmin() {
		return domain.ErrAdminOnly
	}
	return nil
}

func snapshot(job *model.Job) lifecycle.Snapshot {
	return lifecycle.Snapshot{
		Stage:       job.ProgressStage,
		AssignedTo:  job.AssignedTo,
		FollowUp:    job.FollowUp,
		DropoffDate: job.DropoffDate,
	}
}
