package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go-leave/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const idempotencyLockTTL = 30 * time.Second

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

type bodyRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response of a POST that carried the same
// Idempotency-Key for the same user and route. A concurrent duplicate gets 409
// while the first request is still running. Only 2xx responses are stored.
func Idempotency(rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	log := zap.L().Named("middleware.idempotency")
	return func(c *gin.Context) {
		idempKey := c.GetHeader("Idempotency-Key")
		if rdb == nil || idempKey == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		userID := c.GetString("user_id")
		cacheKey := fmt.Sprintf("idemp:%s:%s:%s", c.FullPath(), userID, idempKey)
		lockKey := cacheKey + ":lock"

		val, err := rdb.Get(ctx, cacheKey).Result()
		if err == nil {
			var cached cachedResponse
			if json.Unmarshal([]byte(val), &cached) == nil {
				c.Header("Idempotent-Replayed", "true")
				c.Data(cached.Status, cached.ContentType, []byte(cached.Body))
				c.Abort()
				return
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Warn("idempotency lookup failed, continuing without it", zap.String("key", cacheKey), zap.Error(err))
			c.Next()
			return
		}

		isNew, err := rdb.SetNX(ctx, lockKey, "locked", idempotencyLockTTL).Result()
		if err != nil {
			log.Warn("idempotency lock failed, continuing without it", zap.String("key", lockKey), zap.Error(err))
			c.Next()
			return
		}
		if !isNew {
			response.Error(c, http.StatusConflict, "PROCESSING", "A request with this Idempotency-Key is still being processed", nil)
			c.Abort()
			return
		}
		defer func() {
			if err := rdb.Del(ctx, lockKey).Err(); err != nil {
				log.Warn("idempotency unlock failed", zap.String("key", lockKey), zap.Error(err))
			}
		}()

		recorder := &bodyRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = recorder

		c.Next()

		status := recorder.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}

		payload, err := json.Marshal(cachedResponse{
			Status:      status,
			ContentType: recorder.Header().Get("Content-Type"),
			Body:        recorder.body.String(),
		})
		if err != nil {
			log.Error("idempotency encode failed", zap.Error(err))
			return
		}
		if err := rdb.Set(ctx, cacheKey, payload, ttl).Err(); err != nil {
			log.Warn("idempotency store failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
}

