package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zhejian/shortlink/internal/model"
	"github.com/zhejian/shortlink/internal/service"
)

const actorKey = "actor"

// Authenticator verifies a bearer token and returns the caller it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.Actor, error)
}

// Auth rejects requests without a valid "Authorization: Bearer <token>" header
// and stores the resolved actor on the gin context.
func Auth(auth Authenticator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, "Missing bearer token")
			return
		}

		actor, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, service.ErrInvalidToken) {
				logger.ErrorContext(c.Request.Context(), "failed to authenticate request",
					slog.String("error", err.Error()))
				abort(c, http.StatusInternalServerError, "Internal server error")
				return
			}
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireAdmin must run after Auth. Non-admin callers get 403.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok || !actor.IsAdmin {
			abort(c, http.StatusForbidden, "Administrator access required")
			return
		}
		c.Next()
	}
}

// ActorFromContext returns the actor stored by Auth.
func ActorFromContext(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, model.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
