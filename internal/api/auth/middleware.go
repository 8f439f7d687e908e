package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/cuongbtq/pickup-be/internal/api/model"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// UserLookup loads the current user record for a verified token subject
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
}

// IdentityFrom returns the identity set by RequireAuth
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}

// SetIdentity stores the acting identity on the request
func SetIdentity(c *gin.Context, id domain.Identity) {
	c.Set(identityKey, id)
}

// RequireAuth verifies the bearer token and reloads the user so that role
// changes and deletions take effect immediately.
func RequireAuth(jwtSvc *JWT, users UserLookup, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			abortUnauthorized(c)
			return
		}
		token := strings.TrimPrefix(h, "Bearer ")

		uid, err := jwtSvc.Verify(token)
		if err != nil {
			logger.Debug("Rejected bearer token", slog.String("error", err.Error()))
			abortUnauthorized(c)
			return
		}

		user, err := users.GetUser(c.Request.Context(), uid)
		if err != nil {
			if domain.IsKind(err, domain.KindNotFound) {
				logger.Info("Token subject no longer exists", slog.Int64("user_id", uid))
				abortUnauthorized(c)
				return
			}
			logger.Error("Failed to load token subject",
				slog.Int64("user_id", uid),
				slog.String("error", err.Error()),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "internal server error",
			})
			return
		}

		SetIdentity(c, user.Identity())
		c.Next()
	}
}

// RequireRole rejects requests whose identity does not carry role
func RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			abortUnauthorized(c)
			return
		}
		if id.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": domain.Forbidden("%s role required", role).Error(),
			})
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": domain.ErrUnauthenticated.Error(),
	})
}
