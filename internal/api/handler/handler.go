package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/cuongbtq/pickup-be/internal/api/model"
	"github.com/cuongbtq/pickup-be/internal/api/service"
	"github.com/cuongbtq/pickup-be/internal/api/storage"
)

type JobService interface {
	Reserve(ctx context.Context, actor domain.Identity, id int64) (*model.Job, error)
	Advance(ctx context.Context, actor domain.Identity, id int64) (*model.Job, error)
	Cancel(ctx context.Context, actor domain.Identity, id int64) (*model.Job, error)
	Get(ctx context.Context, actor domain.Identity, id int64) (*model.JobView, error)
	History(ctx context.Context, actor domain.Identity, id int64) ([]model.JobEvent, error)
	Available(ctx context.Context, actor domain.Identity) ([]model.JobView, error)
	Ongoing(ctx context.Context, actor domain.Identity) ([]model.JobView, error)
	Completed(ctx context.Context, actor domain.Identity) ([]model.JobView, error)
	Create(ctx context.Context, actor domain.Identity, in service.CreateJobInput) (*model.Job, error)
	List(ctx context.Context, actor domain.Identity, filter storage.JobFilter) ([]model.Job, error)
	Update(ctx context.Context, actor domain.Identity, id int64, patch service.JobPatch) (*model.Job, error)
	Delete(ctx context.Context, actor domain.Identity, id int64) error
}

type OrganisationService interface {
	List(ctx context.Context) ([]model.Organisation, error)
	Get(ctx context.Context, id int64) (*model.Organisation, error)
	Create(ctx context.Context, actor domain.Identity, org *model.Organisation) error
	Update(ctx context.Context, actor domain.Identity, id int64, fields storage.OrganisationFields) (*model.Organisation, error)
	Delete(ctx context.Context, actor domain.Identity, id int64) error
}

type UserService interface {
	List(ctx context.Context, actor domain.Identity, role domain.Role) ([]model.User, error)
	Get(ctx context.Context, actor domain.Identity, id int64) (*model.User, error)
	Create(ctx context.Context, actor domain.Identity, in service.CreateUserInput) (*model.User, error)
	UpdateRole(ctx context.Context, actor domain.Identity, id int64, role domain.Role) (*model.User, error)
	Delete(ctx context.Context, actor domain.Identity, id int64) error
}

type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*service.Session, error)
}

// HealthChecker reports whether backing services are reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger        *slog.Logger
	Health        HealthChecker
	Jobs          JobService
	Organisations OrganisationService
	Users         UserService
	Auth          AuthService
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	jobs   JobService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
	}
}

type OrganisationHandler struct {
	logger *slog.Logger
	orgs   OrganisationService
}

func NewOrganisationHandler(deps *Dependencies) *OrganisationHandler {
	return &OrganisationHandler{
		logger: deps.Logger,
		orgs:   deps.Organisations,
	}
}

type UserHandler struct {
	logger *slog.Logger
	users  UserService
}

func NewUserHandler(deps *Dependencies) *UserHandler {
	return &UserHandler{
		logger: deps.Logger,
		users:  deps.Users,
	}
}

type AuthHandler struct {
	logger *slog.Logger
	auth   AuthService
	users  UserService
}

func NewAuthHandler(deps *Dependencies) *AuthHandler {
	return &AuthHandler{
		logger: deps.Logger,
		auth:   deps.Auth,
		users:  deps.Users,
	}
}

type HealthHandler struct {
	logger  *slog.Logger
	checker HealthChecker
	service string
}

func NewHealthHandler(deps *Dependencies, serviceName string) *HealthHandler {
	return &HealthHandler{
		logger:  deps.Logger,
		checker: deps.Health,
		service: serviceName,
	}
}
