package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-mcpauth/mcpauth/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterRedis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimitConfig configures one per-endpoint limiter.
type RateLimitConfig struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration // memory store only

	StoreType string // config.StoreMemory or config.StoreRedis

	// RedisClient is the shared connection for the redis store; all
	// limiters of a process reuse one client. Required when StoreType is
	// redis.
	RedisClient *redis.Client
}

// NewRateLimiter builds a gin middleware limiting requests per client IP.
// The redis store is for multi-instance deployments; memory is per process.
func NewRateLimiter(cfg RateLimitConfig) (gin.HandlerFunc, error) {
	rate := limiter.Rate{
		Period: 1 * time.Minute,
		Limit:  int64(cfg.RequestsPerMinute),
	}

	var store limiter.Store
	var err error

	switch cfg.StoreType {
	case config.StoreRedis:
		if cfg.RedisClient == nil {
			return nil, errors.New("redis rate limit store requires a redis client")
		}
		store, err = limiterRedis.NewStoreWithOptions(cfg.RedisClient, limiter.StoreOptions{
			Prefix:          "ratelimit",
			CleanUpInterval: cfg.CleanupInterval,
		})
		if err != nil {
			return nil, err
		}

	case config.StoreMemory:
		fallthrough
	default:
		store = memory.NewStore()
	}

	instance := limiter.New(store, rate)

	middleware := mgin.NewMiddleware(instance, mgin.WithLimitReachedHandler(func(c *gin.Context) {
		// /authorize is hit by browsers; the token and registration
		// endpoints by programs. Answer in kind.
		if strings.Contains(c.GetHeader("Accept"), "text/html") {
			c.HTML(http.StatusTooManyRequests, "error.html", gin.H{
				"title":   "Rate Limit Exceeded",
				"message": "Too many requests. Please try again later.",
			})
		} else {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate_limit_exceeded",
				"error_description": "Too many requests. Please try again later.",
			})
		}
		c.Abort()
	}))

	return middleware, nil
}
