package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/pickup-be/internal/api/auth"
	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/cuongbtq/pickup-be/internal/api/model"
)

type AuthService struct {
	users  UserStore
	jwt    *auth.JWT
	hasher *auth.Hasher
	logger *slog.Logger
}

func NewAuthService(users UserStore, jwt *auth.JWT, hasher *auth.Hasher, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		jwt:    jwt,
		hasher: hasher,
		logger: logger,
	}
}

// Session is the result of a successful login
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// Register creates a volunteer account
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	user, err := createUser(ctx, s.users, s.hasher, CreateUserInput{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     domain.RoleVolunteer,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Volunteer registered", slog.Int64("user_id", user.ID))
	return user, nil
}

// Login checks credentials and issues a token. Unknown email and wrong
// password give the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := s.jwt.Sign(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in",
		slog.Int64("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Bootstrap creates the first admin when none exists yet. It is a no-op
// once any admin account is present.
func (s *AuthService) Bootstrap(ctx context.Context, name, email, password string) error {
	exists, err := s.users.HasAdmin(ctx)
	if err != nil {
		return err
	}
	if exists {
		s.logger.Debug("Admin account present, skipping bootstrap")
		return nil
	}

	user, err := createUser(ctx, s.users, s.hasher, CreateUserInput{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		return err
	}

	s.logger.Info("Bootstrap admin created",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return nil
}
