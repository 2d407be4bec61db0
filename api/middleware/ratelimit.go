package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/use-agent/sosharvest/config"
	"github.com/use-agent/sosharvest/models"
	"golang.org/x/time/rate"
)

const (
	maxIdentities = 4096
	identityTTL   = time.Hour
)

// RateLimit returns per-identity (API key or IP) token-bucket rate limiting
// middleware powered by golang.org/x/time/rate.
//
// Limiters live in an expiring LRU: identities idle for an hour are dropped
// and at most maxIdentities are tracked.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	limiters := expirable.NewLRU[string, *rate.Limiter](maxIdentities, nil, identityTTL)

	return func(c *gin.Context) {
		// Prefer API key as identity (set by auth middleware); fall back to IP.
		identity := c.ClientIP()
		if key, ok := c.Get("api_key"); ok {
			identity = "key:" + key.(string)
		}

		limiter, ok := limiters.Get(identity)
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
		}
		// Re-adding refreshes the entry's TTL.
		limiters.Add(identity, limiter)

		if !limiter.Allow() {
			retry := math.Ceil(1 / cfg.RequestsPerSecond)
			c.Header("Retry-After", strconv.Itoa(int(retry)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.RunResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limit exceeded, please slow down",
				},
			})
			return
		}

		c.Next()
	}
}
