package middleware

import (
	"go-leave/internal/shared/contextutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContextLogger assigns a request id and stores a logger scoped to it in the
// request context, so services can log without knowing about gin.
func ContextLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Set("request_id", rid)
		c.Header("X-Request-ID", rid)

		reqLogger := logger.With(zap.String("request_id", rid))

		ctx := c.Request.Context()
		ctx = contextutil.WithRequestID(ctx, rid)
		ctx = contextutil.WithLogger(ctx, reqLogger)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		reqLogger.Debug("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		)
	}
}
