package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const CorrelationHeader = "x-correlation-id"

// CorrelationMiddleware generates a correlation id once per request and attaches it to the context.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(CorrelationHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Writer.Header().Set(CorrelationHeader, cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

// ReadinessGate answers 503 until the database is connected; /healthz always passes.
func ReadinessGate(requireRedis bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}
		if config.GetDB() == nil || (requireRedis && config.GetRedisDB() == nil) {
			abort(c, http.StatusServiceUnavailable, "service is starting")
			return
		}
		c.Next()
	}
}

// ErrorLogger logs only requests that collected gin errors.
func ErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"method":         c.Request.Method,
				"path":           c.FullPath(),
				"status":         c.Writer.Status(),
				"correlation_id": cid,
			}).Error(c.Errors.String())
		}
	}
}

type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// NewRateLimiterFromEnv reads RATE_LIMIT_MAX_REQUESTS and RATE_LIMIT_WINDOW_SECONDS.
func NewRateLimiterFromEnv(client *redis.Client) *RateLimiter {
	limit := config.IntFromEnv("RATE_LIMIT_MAX_REQUESTS", 600)
	window := config.DurationSecondsFromEnv("RATE_LIMIT_WINDOW_SECONDS", time.Minute)
	return NewRateLimiter(client, int64(limit), window)
}

// RateLimitMiddleware counts requests per client IP in a fixed window.
// Requests pass when redis is unavailable.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	client := rl.client
	if client == nil {
		client = config.GetRedisDB()
	}
	if client == nil {
		c.Next()
		return
	}
	key := "RateLimit:" + c.ClientIP()
	ctx := c.Request.Context()

	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		config.LogError(config.GetLogger(), "middlewares", "RateLimitMiddleware", "Incr", key, err)
		c.Next()
		return
	}
	if count == 1 {
		if err := client.Expire(ctx, key, rl.window).Err(); err != nil {
			config.LogError(config.GetLogger(), "middlewares", "RateLimitMiddleware", "Expire", key, err)
		}
	}

	if count > rl.limit {
		c.Header("Retry-After", fmt.Sprint(int(rl.window.Seconds())))
		abort(c, http.StatusTooManyRequests, fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())))
		return
	}
	c.Next()
}
