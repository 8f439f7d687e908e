package dto

import (
	"time"

	"github.com/cuongbtq/pickup-be/internal/api/model"
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expires_at"`
	User      UserDTO `json:"user"`
}

type CreateUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required,oneof=admin volunteer"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin volunteer"`
}

type ListUsersRequest struct {
	Role string `form:"role" binding:"omitempty,oneof=admin volunteer"`
}

type UserDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

type UsersResponse struct {
	Users []UserDTO `json:"users"`
}

func FromUser(u *model.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func FromUsers(users []model.User) []UserDTO {
	out := make([]UserDTO, len(users))
	for i := range users {
		out[i] = FromUser(&users[i])
	}
	return out
}
