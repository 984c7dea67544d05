package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
)

const userIDKey = "userID"

// UserMiddleware trusts the authenticating edge (the web frontend's session
// layer) and only validates that the forwarded user id is a real uuid.
type UserMiddleware struct {
	log *logger.Logger
}

func NewUserMiddleware(log *logger.Logger) *UserMiddleware {
	return &UserMiddleware{log: log.With("middleware", "UserMiddleware")}
}

func (um *UserMiddleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user identity"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID reads the authenticated user id set by RequireUser. The second
// return is false on routes that skipped the middleware.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	value, ok := c.Get(userIDKey)
	if !ok {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}
