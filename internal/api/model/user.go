package model

import (
	"time"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
)

type User struct {
	ID           int64       `db:"id"`
	Name         string      `db:"name"`
	Email        string      `db:"email"`
	PasswordHash string      `db:"password_hash"`
	Role         domain.Role `db:"role"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

// Identity returns the acting identity for this user
func (u *User) Identity() domain.Identity {
	return domain.Identity{UserID: u.ID, Role: u.Role}
}
