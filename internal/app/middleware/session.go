package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kidpech/authbridge/internal/domain/authbridge"
	"github.com/kidpech/authbridge/pkg/response"
)

// SessionResolver looks up published sessions.
type SessionResolver interface {
	Current(ctx context.Context, key string) (*authbridge.Session, error)
}

// RequireSession rejects requests without a live session cookie.
func RequireSession(sessions SessionResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !attachSession(c, sessions, cookieName) {
			response.Unauthorized(c, "missing session")
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalSession attaches the session when available without enforcing it.
func OptionalSession(sessions SessionResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		attachSession(c, sessions, cookieName)
		c.Next()
	}
}

func attachSession(c *gin.Context, sessions SessionResolver, cookieName string) bool {
	if _, ok := c.Get(response.SessionContextKey); ok {
		return true
	}
	key, err := c.Cookie(cookieName)
	if err != nil || key == "" {
		return false
	}
	sess, err := sessions.Current(c.Request.Context(), key)
	if err != nil {
		return false
	}
	c.Set(response.SessionContextKey, sess)
	c.Set(response.SessionKeyContextKey, key)
	return true
}
