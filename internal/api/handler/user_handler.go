package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/cuongbtq/pickup-be/internal/api/dto"
	"github.com/cuongbtq/pickup-be/internal/api/service"
	"github.com/gin-gonic/gin"
)

func (h *UserHandler) ListUsers(c *gin.Context) {
	logCall(h.logger, c, "ListUsers")

	who, ok := actor(c)
	if !ok {
		return
	}

	var req dto.ListUsersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBadRequest(h.logger, c, "Invalid query parameters", err)
		return
	}

	users, err := h.users.List(c.Request.Context(), who, domain.Role(req.Role))
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.UsersResponse{Users: dto.FromUsers(users)})
}

func (h *UserHandler) GetUser(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	user, err := h.users.Get(c.Request.Context(), who, id)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromUser(user))
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	logCall(h.logger, c, "CreateUser")

	who, ok := actor(c)
	if !ok {
		return
	}

	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(h.logger, c, "Invalid request body", err)
		return
	}

	user, err := h.users.Create(c.Request.Context(), who, service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromUser(user))
}

// UpdateUserRole handles PATCH /users/:id/role
func (h *UserHandler) UpdateUserRole(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	logCall(h.logger, c, "UpdateUserRole", slog.Int64("user_id", id))

	var req dto.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(h.logger, c, "Invalid request body", err)
		return
	}

	user, err := h.users.UpdateRole(c.Request.Context(), who, id, domain.Role(req.Role))
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromUser(user))
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	logCall(h.logger, c, "DeleteUser", slog.Int64("user_id", id))

	if err := h.users.Delete(c.Request.Context(), who, id); err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
