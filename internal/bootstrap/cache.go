package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/go-mcpauth/mcpauth/internal/cache"
	"github.com/go-mcpauth/mcpauth/internal/config"
	"github.com/go-mcpauth/mcpauth/internal/core"
	"github.com/go-mcpauth/mcpauth/internal/metrics"
	"github.com/go-mcpauth/mcpauth/internal/models"
)

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config) core.Recorder {
	recorder := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Println("Prometheus metrics initialized")
	} else {
		log.Println("Metrics disabled (using noop implementation)")
	}
	return recorder
}

// initializePendingCache builds the store for in-flight upstream logins. The
// memory store runs a janitor so abandoned logins do not pile up; the redis
// store relies on server-side expiry.
func initializePendingCache(
	ctx context.Context,
	cfg *config.Config,
) (cache.Cache[models.PendingAuthorization], error) {
	switch cfg.CacheStore {
	case config.StoreRedis:
		c, err := cache.NewRueidisCache[models.PendingAuthorization](
			ctx,
			cfg.CacheRedisAddr,
			cfg.CacheRedisPassword,
			"mcpauth:pending:",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis pending cache: %w", err)
		}
		log.Printf("Pending authorization cache: redis (addr=%s)", cfg.CacheRedisAddr)
		return c, nil

	default: // memory
		c := cache.NewMemoryCacheWithJanitor[models.PendingAuthorization](
			cfg.PendingAuthSweepInterval,
		)
		log.Println("Pending authorization cache: memory (single instance only)")
		return c, nil
	}
}

// initializeMetricsCache builds the cache backing the periodic gauge queries.
// Returns nil when metrics are disabled.
func initializeMetricsCache(
	ctx context.Context,
	cfg *config.Config,
) (cache.Cache[int64], error) {
	if !cfg.MetricsEnabled {
		return nil, nil //nolint:nilnil // cache not needed in this configuration
	}

	switch cfg.CacheStore {
	case config.StoreRedis:
		c, err := cache.NewRueidisCache[int64](
			ctx,
			cfg.CacheRedisAddr,
			cfg.CacheRedisPassword,
			"mcpauth:metrics:",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis metrics cache: %w", err)
		}
		log.Printf("Metrics cache: redis (addr=%s)", cfg.CacheRedisAddr)
		return c, nil

	default: // memory
		log.Println("Metrics cache: memory (single instance only)")
		return cache.NewMemoryCache[int64](), nil
	}
}
