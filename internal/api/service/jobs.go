package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/cuongbtq/pickup-be/internal/api/lifecycle"
	"github.com/cuongbtq/pickup-be/internal/api/model"
	"github.com/cuongbtq/pickup-be/internal/api/storage"
	"github.com/cuongbtq/pickup-be/internal/events"
	"github.com/google/uuid"
)

// publishTimeout bounds the broker retries that run after a transition has
// committed, independent of the caller's request.
const publishTimeout = 5 * time.Second

type JobService struct {
	jobs      JobStore
	users     UserStore
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewJobService wires the job service. publisher may be nil, in which case
// stage changes are not recorded in the event history.
func NewJobService(jobs JobStore, users UserStore, publisher EventPublisher, logger *slog.Logger) *JobService {
	return &JobService{
		jobs:      jobs,
		users:     users,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *JobService) Reserve(ctx context.Context, actor domain.Identity, id int64) (*model.Job, error) {
	return s.transition(ctx, actor, id, lifecycle.EventReserve)
}

func (s *JobService) Advance(ctx context.Context, actor domain.Identity, id int64) (*model.Job, error) {
	return s.transition(ctx, actor, id, lifecycle.EventAdvance)
}

func (s *JobService) Cancel(ctx context.Context, actor domain.Identity, id int64) (*model.Job, error) {
	return s.transition(ctx, actor, id, lifecycle.EventCancel)
}

func (s *JobService) transition(ctx context.Context, actor domain.Identity, id int64, ev lifecycle.Event) (*model.Job, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	tr, err := lifecycle.Next(snapshot(job), actor, ev)
	if err != nil {
		s.logger.Info("Job transition rejected",
			slog.Int64("job_id", id),
			slog.Int64("actor_id", actor.UserID),
			slog.String("event", string(ev)),
			slog.String("stage", job.ProgressStage.String()),
			slog.String("reason", err.Error()),
		)
		return nil, err
	}

	updated, err := s.jobs.ApplyTransition(ctx, id, tr)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Job transitioned",
		slog.Int64("job_id", id),
		slog.Int64("actor_id", actor.UserID),
		slog.String("event", string(ev)),
		slog.String("from", tr.From.String()),
		slog.String("to", tr.To.String()),
	)
	s.publish(ctx, actor, tr, updated)
	return updated, nil
}

// publish records a stage change. Failures are logged only; the transition
// has already been committed.
func (s *JobService) publish(ctx context.Context, actor domain.Identity, tr lifecycle.Transition, job *model.Job) {
	if s.publisher == nil {
		return
	}

	e := events.JobEvent{
		EventID:    uuid.New(),
		JobID:      job.ID,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		Event:      string(tr.Event),
		FromStage:  tr.From,
		ToStage:    tr.To,
		AssignedTo: job.AssignedTo,
		FollowUp:   job.FollowUp,
		OccurredAt: s.now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("Failed to publish job event",
			slog.Int64("job_id", job.ID),
			slog.String("event_id", e.EventID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// Get returns a job. Volunteers only see jobs they could reserve or that
// are assigned to them.
func (s *JobService) Get(ctx context.Context, actor domain.Identity, id int64) (*model.JobView, error) {
	view, err := s.jobs.GetJobView(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !visibleToVolunteer(&view.Job, actor.UserID) {
		return nil, domain.ErrNotAssignee
	}
	return view, nil
}

func visibleToVolunteer(job *model.Job, userID int64) bool {
	if job.AssignedTo != nil {
		return *job.AssignedTo == userID
	}
	return job.ProgressStage == domain.StageAvailable
}

// History returns the recorded stage changes of a job
func (s *JobService) History(ctx context.Context, actor domain.Identity, id int64) ([]model.JobEvent, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && (job.AssignedTo == nil || *job.AssignedTo != actor.UserID) {
		return nil, domain.ErrNotAssignee
	}
	return s.jobs.ListJobEvents(ctx, id)
}

// Available lists reservable jobs. Admins also get jobs cancelled
// mid-delivery for re-triage.
func (s *JobService) Available(ctx context.Context, actor domain.Identity) ([]model.JobView, error) {
	views, err := s.jobs.ListAvailable(ctx, actor.IsAdmin())
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return views, nil
	}

	visible := views[:0]
	for _, v := range views {
		if visibleToVolunteer(&v.Job, actor.UserID) {
			visible = append(visible, v)
		}
	}
	return visible, nil
}

func (s *JobService) Ongoing(ctx context.Context, actor domain.Identity) ([]model.JobView, error) {
	return s.jobs.ListOngoing(ctx, scope(actor))
}

func (s *JobService) Completed(ctx context.Context, actor domain.Identity) ([]model.JobView, error) {
	return s.jobs.ListCompleted(ctx, scope(actor))
}

// scope limits volunteer views to their own jobs
func scope(actor domain.Identity) *int64 {
	if actor.IsAdmin() {
		return nil
	}
	id := actor.UserID
	return &id
}

type CreateJobInput struct {
	OrganisationID int64
	Name           string
	Address        string
	Size           string
	Weight         *float64
	Value          *float64
	IntakePriority domain.Priority
	DeadlineDate   *time.Time
}

func (in *CreateJobInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return domain.Validation("name is required")
	}
	if in.OrganisationID <= 0 {
		return domain.Validation("organisation_id is required")
	}
	if in.IntakePriority == "" {
		in.IntakePriority = domain.PriorityMedium
	}
	if !in.IntakePriority.Valid() {
		return domain.Validation("unknown intake_priority %q", in.IntakePriority)
	}
	return validateMeasures(in.Weight, in.Value)
}

func validateMeasures(weight, value *float64) error {
	if weight != nil && *weight < 0 {
		return domain.Validation("weight must not be negative")
	}
	if value != nil && *value < 0 {
		return domain.Validation("value must not be negative")
	}
	return nil
}

// Create inserts a new job in the available stage
func (s *JobService) Create(ctx context.Context, actor domain.Identity, in CreateJobInput) (*model.Job, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	job := &model.Job{
		OrganisationID: in.OrganisationID,
		ProgressStage:  domain.StageAvailable,
		IntakePriority: in.IntakePriority,
		DeadlineDate:   in.DeadlineDate,
		Name:           in.Name,
		Address:        in.Address,
		Weight:         in.Weight,
		Value:          in.Value,
		Size:           in.Size,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("Job created",
		slog.Int64("job_id", job.ID),
		slog.Int64("organisation_id", job.OrganisationID),
		slog.Int64("actor_id", actor.UserID),
	)
	return job, nil
}

// List is the admin listing with filters and keyset pagination
func (s *JobService) List(ctx context.Context, actor domain.Identity, filter storage.JobFilter) ([]model.Job, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if filter.Stage != "" && !filter.Stage.Valid() {
		return nil, domain.Validation("unknown progress_stage %q", filter.Stage)
	}
	return s.jobs.ListJobs(ctx, filter)
}

// JobPatch is an admin edit. Stage and assignee changes are validated by
// lifecycle.Override and written in the same guarded update as the fields.
type JobPatch struct {
	Fields     storage.JobFields
	Stage      *domain.Stage
	AssignedTo *int64
	Unassign   bool
}

func (p *JobPatch) validate() error {
	f := &p.Fields
	if f.Name != nil {
		name := strings.TrimSpace(*f.Name)
		if name == "" {
			return domain.Validation("name must not be empty")
		}
		f.Name = &name
	}
	if f.OrganisationID != nil && *f.OrganisationID <= 0 {
		return domain.Validation("organisation_id must be positive")
	}
	if f.IntakePriority != nil && !f.IntakePriority.Valid() {
		return domain.Validation("unknown intake_priority %q", *f.IntakePriority)
	}
	if f.ClearDeadline && f.DeadlineDate != nil {
		return domain.Validation("deadline_date cannot be both set and cleared")
	}
	if p.Unassign && p.AssignedTo != nil {
		return domain.Validation("assigned_to cannot be both set and cleared")
	}
	return validateMeasures(f.Weight, f.Value)
}

func (s *JobService) Update(ctx context.Context, actor domain.Identity, id int64, patch JobPatch) (*model.Job, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := patch.validate(); err != nil {
		return nil, err
	}

	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	change := lifecycle.AssigneeChange{Effect: lifecycle.AssignKeep}
	switch {
	case patch.Unassign:
		change.Effect = lifecycle.AssignClear
	case patch.AssignedTo != nil:
		if err := s.checkAssignee(ctx, *patch.AssignedTo); err != nil {
			return nil, err
		}
		change = lifecycle.AssigneeChange{Effect: lifecycle.AssignSet, UserID: *patch.AssignedTo}
	}

	target := job.ProgressStage
	if patch.Stage != nil {
		target = *patch.Stage
	}

	tr, err := lifecycle.Override(snapshot(job), target, change)
	if err != nil {
		return nil, err
	}

	updated, err := s.jobs.UpdateJob(ctx, id, patch.Fields, tr)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Job updated",
		slog.Int64("job_id", id),
		slog.Int64("actor_id", actor.UserID),
		slog.String("from", tr.From.String()),
		slog.String("to", tr.To.String()),
	)
	if tr.StageChanged() || change.Effect != lifecycle.AssignKeep {
		s.publish(ctx, actor, tr, updated)
	}
	return updated, nil
}

func (s *JobService) checkAssignee(ctx context.Context, userID int64) error {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.Validation("assignee %d does not exist", userID)
		}
		return err
	}
	if user.Role != domain.RoleVolunteer {
		return domain.Validation("assignee %d is not a volunteer", userID)
	}
	return nil
}

// Delete removes a job whatever its stage
func (s *JobService) Delete(ctx context.Context, actor domain.Identity, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.jobs.DeleteJob(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Job deleted",
		slog.Int64("job_id", id),
		slog.Int64("actor_id", actor.UserID),
	)
	return nil
}
