package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/cuongbtq/pickup-be/internal/api/lifecycle"
	"github.com/cuongbtq/pickup-be/internal/api/model"
	"github.com/cuongbtq/pickup-be/internal/api/storage"
	"github.com/cuongbtq/pickup-be/internal/events"
)

// memStore mirrors the conditional-update semantics of the SQL store: a
// transition is written only if its guard still matches the row.
type memStore struct {
	mu     sync.Mutex
	jobs   map[int64]*model.Job
	users  map[int64]*model.User
	orgs   map[int64]*model.Organisation
	nextID int64

	applyCalls int
}

func newMemStore() *memStore {
	return &memStore{
		jobs:   map[int64]*model.Job{},
		users:  map[int64]*model.User{},
		orgs:   map[int64]*model.Organisation{},
		nextID: 100,
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) putJob(job model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.IntakePriority == "" {
		job.IntakePriority = domain.PriorityMedium
	}
	m.jobs[job.ID] = &job
}

func (m *memStore) putUser(user model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = &user
}

func (m *memStore) job(id int64) model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[id]
}

func (m *memStore) CreateJob(_ context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[job.OrganisationID]; !ok {
		return domain.Validation("organisation %d does not exist", job.OrganisationID)
	}
	job.ID = m.id()
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memStore) GetJob(_ context.Context, id int64) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memStore) view(job *model.Job) model.JobView {
	v := model.JobView{Job: *job, OrganisationName: "Org"}
	if job.AssignedTo != nil {
		if u, ok := m.users[*job.AssignedTo]; ok {
			v.AssigneeName = &u.Name
			v.AssigneeEmail = &u.Email
		}
	}
	return v
}

func (m *memStore) GetJobView(_ context.Context, id int64) (*model.JobView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	v := m.view(job)
	return &v, nil
}

func (m *memStore) filter(keep func(*model.Job) bool) []model.JobView {
	m.mu.Lock()
	defer m.mu.Unlock()
	views := []model.JobView{}
	for _, job := range m.jobs {
		if keep(job) {
			views = append(views, m.view(job))
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

func (m *memStore) ListJobs(_ context.Context, f storage.JobFilter) ([]model.Job, error) {
	views := m.filter(func(j *model.Job) bool {
		return f.Stage == "" || j.ProgressStage == f.Stage
	})
	jobs := make([]model.Job, len(views))
	for i, v := range views {
		jobs[i] = v.Job
	}
	return jobs, nil
}

func (m *memStore) ListAvailable(_ context.Context, includeCancelled bool) ([]model.JobView, error) {
	return m.filter(func(j *model.Job) bool {
		return j.ProgressStage == domain.StageAvailable ||
			(includeCancelled && j.ProgressStage == domain.StageCancelledInDelivery)
	}), nil
}

func ownedBy(j *model.Job, assignee *int64) bool {
	return assignee == nil || (j.AssignedTo != nil && *j.AssignedTo == *assignee)
}

func (m *memStore) ListOngoing(_ context.Context, assignee *int64) ([]model.JobView, error) {
	return m.filter(func(j *model.Job) bool {
		return j.ProgressStage.RequiresAssignee() && ownedBy(j, assignee)
	}), nil
}

func (m *memStore) ListCompleted(_ context.Context, assignee *int64) ([]model.JobView, error) {
	return m.filter(func(j *model.Job) bool {
		return j.ProgressStage == domain.StageCompleted && ownedBy(j, assignee)
	}), nil
}

func (m *memStore) apply(job *model.Job, tr lifecycle.Transition) {
	next := tr.Apply(snapshot(job), time.Now())
	job.ProgressStage = next.Stage
	job.AssignedTo = next.AssignedTo
	job.FollowUp = next.FollowUp
	job.DropoffDate = next.DropoffDate
	job.UpdatedAt = time.Now()
}

func (m *memStore) ApplyTransition(_ context.Context, id int64, tr lifecycle.Transition) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls++

	job, ok := m.jobs[id]
	if !ok || !tr.Matches(snapshot(job)) {
		if tr.Event == lifecycle.EventReserve {
			return nil, domain.ErrNoLongerAvailable
		}
		return nil, domain.ErrStaleState
	}
	m.apply(job, tr)
	cp := *job
	return &cp, nil
}

func (m *memStore) UpdateJob(_ context.Context, id int64, f storage.JobFields, tr lifecycle.Transition) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok || !tr.Matches(snapshot(job)) {
		return nil, domain.ErrStaleState
	}
	if f.Name != nil {
		job.Name = *f.Name
	}
	if f.Address != nil {
		job.Address = *f.Address
	}
	if f.IntakePriority != nil {
		job.IntakePriority = *f.IntakePriority
	}
	if f.FollowUp != nil {
		job.FollowUp = *f.FollowUp
	}
	if f.ClearDeadline {
		job.DeadlineDate = nil
	} else if f.DeadlineDate != nil {
		job.DeadlineDate = f.DeadlineDate
	}
	m.apply(job, tr)
	cp := *job
	return &cp, nil
}

func (m *memStore) DeleteJob(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return domain.ErrJobNotFound
	}
	delete(m.jobs, id)
	return nil
}

func (m *memStore) ListJobEvents(_ context.Context, jobID int64) ([]model.JobEvent, error) {
	return []model.JobEvent{{JobID: jobID, Event: "reserve"}}, nil
}

func (m *memStore) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return domain.Conflict("email %s is already registered", user.Email)
		}
	}
	user.ID = m.id()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memStore) GetUser(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memStore) ListUsers(_ context.Context, role domain.Role) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := []model.User{}
	for _, u := range m.users {
		if role == "" || u.Role == role {
			users = append(users, *u)
		}
	}
	return users, nil
}

func (m *memStore) UpdateUserRole(_ context.Context, id int64, role domain.Role) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Role = role
	cp := *u
	return &cp, nil
}

func (m *memStore) DeleteUser(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	for _, j := range m.jobs {
		if j.AssignedTo != nil && *j.AssignedTo == id {
			return domain.Conflict("user is assigned to jobs")
		}
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) HasAdmin(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Role == domain.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateOrganisation(_ context.Context, org *model.Organisation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	org.ID = m.id()
	cp := *org
	m.orgs[org.ID] = &cp
	return nil
}

func (m *memStore) GetOrganisation(_ context.Context, id int64) (*model.Organisation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[id]
	if !ok {
		return nil, domain.ErrOrganisationNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListOrganisations(_ context.Context) ([]model.Organisation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orgs := []model.Organisation{}
	for _, o := range m.orgs {
		orgs = append(orgs, *o)
	}
	return orgs, nil
}

func (m *memStore) UpdateOrganisation(_ context.Context, id int64, f storage.OrganisationFields) (*model.Organisation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[id]
	if !ok {
		return nil, domain.ErrOrganisationNotFound
	}
	if f.Name != nil {
		o.Name = *f.Name
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) DeleteOrganisation(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.OrganisationID == id {
			return domain.Conflict("organisation still has jobs")
		}
	}
	if _, ok := m.orgs[id]; !ok {
		return domain.ErrOrganisationNotFound
	}
	delete(m.orgs, id)
	return nil
}

type memPublisher struct {
	mu      sync.Mutex
	events  []events.JobEvent
	ctxErrs []error
	err     error
}

func (p *memPublisher) Publish(ctx context.Context, e events.JobEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *memPublisher) published() []events.JobEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.JobEvent(nil), p.events...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
