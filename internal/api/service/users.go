package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cuongbtq/pickup-be/internal/api/auth"
	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/cuongbtq/pickup-be/internal/api/model"
)

type UserService struct {
	users  UserStore
	hasher *auth.Hasher
	logger *slog.Logger
}

func NewUserService(users UserStore, hasher *auth.Hasher, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		logger: logger,
	}
}

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

func (in *CreateUserInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" {
		return domain.Validation("name is required")
	}
	if !strings.Contains(in.Email, "@") {
		return domain.Validation("a valid email is required")
	}
	if len(in.Password) < auth.MinPasswordLength {
		return domain.Validation("password must be at least %d characters", auth.MinPasswordLength)
	}
	if !in.Role.Valid() {
		return domain.Validation("unknown role %q", in.Role)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// createUser hashes the password and inserts the user
func createUser(ctx context.Context, users UserStore, hasher *auth.Hasher, in CreateUserInput) (*model.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
	}
	if err := users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, actor domain.Identity, role domain.Role) ([]model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if role != "" && !role.Valid() {
		return nil, domain.Validation("unknown role %q", role)
	}
	return s.users.ListUsers(ctx, role)
}

func (s *UserService) Get(ctx context.Context, actor domain.Identity, id int64) (*model.User, error) {
	if actor.UserID != id {
		if err := requireAdmin(actor); err != nil {
			return nil, err
		}
	}
	return s.users.GetUser(ctx, id)
}

// Create adds a user of any role
func (s *UserService) Create(ctx context.Context, actor domain.Identity, in CreateUserInput) (*model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	user, err := createUser(ctx, s.users, s.hasher, in)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User created",
		slog.Int64("user_id", user.ID),
		slog.String("role", string(user.Role)),
		slog.Int64("actor_id", actor.UserID),
	)
	return user, nil
}

func (s *UserService) UpdateRole(ctx context.Context, actor domain.Identity, id int64, role domain.Role) (*model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, domain.Validation("unknown role %q", role)
	}
	if id == actor.UserID {
		return nil, domain.Conflict("you cannot change your own role")
	}

	user, err := s.users.UpdateUserRole(ctx, id, role)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User role changed",
		slog.Int64("user_id", id),
		slog.String("role", string(role)),
		slog.Int64("actor_id", actor.UserID),
	)
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, actor domain.Identity, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if id == actor.UserID {
		return domain.Conflict("you cannot delete your own account")
	}

	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}

	s.logger.Info("User deleted",
		slog.Int64("user_id", id),
		slog.Int64("actor_id", actor.UserID),
	)
	return nil
}
