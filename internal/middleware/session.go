package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"civicportal/internal/models"
	"civicportal/internal/repository"
	"civicportal/internal/service"
)

const (
	currentUserKey  = "current_user"
	sessionTokenKey = "session_token"
)

type UserResolver interface {
	CurrentUser(ctx context.Context, token string) (models.User, error)
}

// Session loads the user behind the session cookie, if any. Requests
// without a valid session continue anonymously.
func Session(cookieName string, users UserResolver, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}

		user, err := users.CurrentUser(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Set(currentUserKey, user)
			c.Set(sessionTokenKey, token)
		case errors.Is(err, repository.ErrSessionNotFound):
		default:
			log.Error().Err(err).Str("request_id", c.Writer.Header().Get(requestIDHeader)).Msg("resolve session failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
			return
		}

		c.Next()
	}
}

// RequireParticipant admits approved, unblocked users.
func RequireParticipant() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		switch err := service.CheckAccess(user); {
		case errors.Is(err, service.ErrUserBlocked):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account_blocked"})
			return
		case errors.Is(err, service.ErrUserNotApproved):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "pending_approval"})
			return
		}

		c.Next()
	}
}

// RequireAdmin must run after RequireParticipant.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	v, exists := c.Get(currentUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

func SessionToken(c *gin.Context) string {
	return c.GetString(sessionTokenKey)
}
