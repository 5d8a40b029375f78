package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clearpath/claims/internal/models"
	"github.com/clearpath/claims/internal/repository"
)

const actorContextKey = "actor"

// requestLogger logs one line per request with latency and status
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.String("latency", time.Since(start).String()),
			zap.String("client_ip", c.ClientIP()))
	}
}

// identity resolves the calling user from the X-Actor-ID header against the
// user directory. Unknown or inactive actors are rejected before any handler
// runs.
func identity(users *repository.UserRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader("X-Actor-ID")
		if actorID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing X-Actor-ID header",
			})
			return
		}

		actor, err := users.GetByID(c.Request.Context(), actorID)
		if err != nil {
			logger.Warn("Unknown actor", zap.String("actor_id", actorID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "unknown actor",
			})
			return
		}
		if !actor.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "actor is deactivated",
			})
			return
		}

		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// actorFrom retrieves the resolved user set by the identity middleware
func actorFrom(c *gin.Context) *models.User {
	value, ok := c.Get(actorContextKey)
	if !ok {
		return nil
	}
	actor, _ := value.(*models.User)
	return actor
}
