package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cuongbtq/pickup-be/internal/api/auth"
	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/gin-gonic/gin"
)

// logCall logs an incoming handler call with its method and path
func logCall(logger *slog.Logger, c *gin.Context, name string, attrs ...slog.Attr) {
	base := []slog.Attr{
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	}
	logger.LogAttrs(c.Request.Context(), slog.LevelInfo, name+" called", append(base, attrs...)...)
}

// respondError renders domain errors with their status and hides everything
// else behind a generic 500.
func respondError(logger *slog.Logger, c *gin.Context, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		c.JSON(de.StatusCode(), gin.H{
			"error": de.Message,
		})
		return
	}

	logger.Error("Request failed",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("error", err.Error()),
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "internal server error",
	})
}

func respondBadRequest(logger *slog.Logger, c *gin.Context, msg string, err error) {
	logger.Warn(msg, slog.String("error", err.Error()))
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

// actor returns the authenticated identity or writes a 401
func actor(c *gin.Context) (domain.Identity, bool) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": domain.ErrUnauthenticated.Error(),
		})
		return domain.Identity{}, false
	}
	return id, true
}

// pathID parses the :id route parameter or writes a 400
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}
