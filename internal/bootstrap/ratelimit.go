package bootstrap

import (
	"log"

	"github.com/go-mcpauth/mcpauth/internal/config"
	"github.com/go-mcpauth/mcpauth/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// rateLimitMiddlewares holds rate limiting middlewares for different endpoints
type rateLimitMiddlewares struct {
	token     gin.HandlerFunc
	authorize gin.HandlerFunc
	register  gin.HandlerFunc
}

// setupRateLimiting configures rate limiting middlewares based on
// configuration. Accepts an optional shared go-redis client.
func setupRateLimiting(cfg *config.Config, redisClient *redis.Client) rateLimitMiddlewares {
	noOpMiddleware := func(c *gin.Context) { c.Next() }

	if !cfg.EnableRateLimit {
		return rateLimitMiddlewares{
			token:     noOpMiddleware,
			authorize: noOpMiddleware,
			register:  noOpMiddleware,
		}
	}

	log.Printf("Rate limiting enabled (store: %s)", cfg.RateLimitStore)

	createLimiter := func(requestsPerMinute int, endpoint string) gin.HandlerFunc {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: requestsPerMinute,
			StoreType:         cfg.RateLimitStore,
			RedisClient:       redisClient, // Shared client (nil for memory store)
			CleanupInterval:   cfg.RateLimitCleanupInterval,
		})
		if err != nil {
			log.Fatalf("Failed to create rate limiter for %s: %v", endpoint, err)
		}
		return limiter
	}

	return rateLimitMiddlewares{
		token:     createLimiter(cfg.TokenRateLimit, "/token"),
		authorize: createLimiter(cfg.AuthorizeRateLimit, "/authorize"),
		register:  createLimiter(cfg.RegisterRateLimit, "/register"),
	}
}
