package handler

import (
	"net/http"
	"time"

	"github.com/cuongbtq/pickup-be/internal/api/dto"
	"github.com/gin-gonic/gin"
)

// Register handles POST /auth/register. Self-registered accounts are always
// volunteers.
func (h *AuthHandler) Register(c *gin.Context) {
	logCall(h.logger, c, "Register")

	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(h.logger, c, "Invalid request body", err)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromUser(user))
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	logCall(h.logger, c, "Login")

	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(h.logger, c, "Invalid request body", err)
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		User:      dto.FromUser(session.User),
	})
}

// Me handles GET /me
func (h *AuthHandler) Me(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}

	user, err := h.users.Get(c.Request.Context(), who, who.UserID)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromUser(user))
}
