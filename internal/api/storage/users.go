package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/cuongbtq/pickup-be/internal/api/model"
	"github.com/cuongbtq/pickup-be/shared/postgresql"
)

var userColumns = []string{
	"id", "name", "email", "password_hash", "role", "created_at", "updated_at",
}

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, s.tables.Users)

	err := s.db.QueryRowxContext(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if postgresql.IsUniqueViolation(err) {
			return domain.Conflict("email %s is already registered", user.Email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (s *Storage) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *Storage) getUser(ctx context.Context, col string, v interface{}) (*model.User, error) {
	var user model.User
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, columns("", userColumns), s.tables.Users, col)

	if err := s.db.GetContext(ctx, &user, query, v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListUsers returns all users, or only those with role when it is non-empty
func (s *Storage) ListUsers(ctx context.Context, role domain.Role) ([]model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s`, columns("", userColumns), s.tables.Users)
	args := []interface{}{}

	if role != "" {
		query += " WHERE role = $1"
		args = append(args, string(role))
	}
	query += " ORDER BY name ASC, id ASC"

	users := []model.User{}
	if err := s.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateUserRole changes a user's role. Promotion to admin is refused while
// the user holds reserved or in-delivery jobs, since admins never carry jobs.
func (s *Storage) UpdateUserRole(ctx context.Context, id int64, role domain.Role) (*model.User, error) {
	query := fmt.Sprintf(`
		UPDATE %[1]s
		SET role = $1, updated_at = NOW()
		WHERE id = $2
		  AND ($1::text <> '%[3]s' OR NOT EXISTS (
			SELECT 1 FROM %[2]s
			WHERE assigned_to = $2 AND progress_stage = ANY($3)
		  ))
		RETURNING %[4]s
	`, s.tables.Users, s.tables.Jobs, domain.RoleAdmin, columns("", userColumns))

	var user model.User
	err := s.db.GetContext(ctx, &user, query,
		string(role), id, stageArray(domain.StageReserved, domain.StageInDelivery))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := s.GetUser(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, domain.Conflict("user has jobs in progress")
		}
		return nil, fmt.Errorf("failed to update user role: %w", err)
	}
	return &user, nil
}

// DeleteUser fails with a conflict while any job references the user
func (s *Storage) DeleteUser(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.tables.Users)

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		if postgresql.IsForeignKeyViolation(err) {
			return domain.Conflict("user is assigned to jobs")
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// HasAdmin reports whether at least one admin account exists
func (s *Storage) HasAdmin(ctx context.Context) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE role = $1)`, s.tables.Users)

	var exists bool
	if err := s.db.GetContext(ctx, &exists, query, string(domain.RoleAdmin)); err != nil {
		return false, fmt.Errorf("failed to check for admin: %w", err)
	}
	return exists, nil
}
