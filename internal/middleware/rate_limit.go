package middleware

import (
	"net/http"
	"sync"

	"go-leave/internal/shared/apperror"
	"go-leave/internal/shared/response"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyedRateLimiter keeps one token bucket per key (client IP or user id).
type KeyedRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	r        rate.Limit
	b        int
}

func NewKeyedRateLimiter(r rate.Limit, b int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		b:        b,
	}
}

func (k *KeyedRateLimiter) GetLimiter(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	limiter, exists := k.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(k.r, k.b)
		k.limiters[key] = limiter
	}

	return limiter
}

func tooManyRequests(c *gin.Context, message string) {
	response.Error(c, http.StatusTooManyRequests, apperror.CodeTooManyRequests, message, nil)
	c.Abort()
}

func RateLimitByIP(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewKeyedRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			tooManyRequests(c, "Too many requests from this IP")
			return
		}
		c.Next()
	}
}

// RateLimitByUser must run after AuthMiddleware; anonymous calls pass through.
func RateLimitByUser(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewKeyedRateLimiter(r, b)
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.Next()
			return
		}
		if !limiter.GetLimiter(userID).Allow() {
			tooManyRequests(c, "Too many requests from this user")
			return
		}
		c.Next()
	}
}
