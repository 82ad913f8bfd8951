package bootstrap

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-mcpauth/mcpauth/internal/cache"
	"github.com/go-mcpauth/mcpauth/internal/config"
	"github.com/go-mcpauth/mcpauth/internal/core"
	"github.com/go-mcpauth/mcpauth/internal/metrics"
	"github.com/go-mcpauth/mcpauth/internal/store"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
)

// createHTTPServer creates the HTTP server instance
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds HTTP server shutdown handler
func addServerShutdownJob(m *graceful.Manager, srv *http.Server) {
	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})
}

// addRedisClientShutdownJob adds Redis client shutdown handler
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client) {
	if redisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		log.Println("Closing Redis connection...")
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
			return err
		}
		log.Println("Redis connection closed")
		return nil
	})
}

// addCacheShutdownJob adds a cache close handler
func addCacheShutdownJob(m *graceful.Manager, name string, closer func() error) {
	if closer == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := closer(); err != nil {
			log.Printf("Error closing %s: %v", name, err)
		} else {
			log.Printf("Closed %s", name)
		}
		return nil
	})
}

// addStoreSweepJob adds the periodic purge of expired authorization codes and
// fully expired token rows. Expired rows are already rejected on lookup; the
// sweep just keeps the tables from growing without bound.
func addStoreSweepJob(m *graceful.Manager, cfg *config.Config, db *store.Store) {
	if cfg.StoreSweepInterval <= 0 {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.StoreSweepInterval)
		defer ticker.Stop()

		sweepExpiredRecords(db)

		for {
			select {
			case <-ticker.C:
				sweepExpiredRecords(db)
			case <-ctx.Done():
				return nil
			}
		}
	})
}

func sweepExpiredRecords(db *store.Store) {
	if deleted, err := db.DeleteExpiredAuthorizationCodes(); err != nil {
		log.Printf("Failed to sweep expired authorization codes: %v", err)
	} else if deleted > 0 {
		log.Printf("Swept %d expired authorization codes", deleted)
	}

	if deleted, err := db.DeleteExpiredTokens(); err != nil {
		log.Printf("Failed to sweep expired tokens: %v", err)
	} else if deleted > 0 {
		log.Printf("Swept %d expired token rows", deleted)
	}
}

// addMetricsGaugeUpdateJob adds the periodic metrics gauge refresh job
func addMetricsGaugeUpdateJob(
	m *graceful.Manager,
	cfg *config.Config,
	db *store.Store,
	recorder core.Recorder,
	metricsCache cache.Cache[int64],
) {
	if !cfg.MetricsEnabled || metricsCache == nil {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.MetricsGaugeUpdateInterval)
		defer ticker.Stop()

		wrapper := metrics.NewCacheWrapper(db, metricsCache)

		updateGaugeMetrics(ctx, wrapper, recorder, cfg.MetricsGaugeUpdateInterval)

		for {
			select {
			case <-ticker.C:
				updateGaugeMetrics(ctx, wrapper, recorder, cfg.MetricsGaugeUpdateInterval)
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// errorLogger handles rate-limited error logging
type errorLogger struct {
	lastErrorTimes  map[string]time.Time
	rateLimitWindow time.Duration
}

func newErrorLogger() *errorLogger {
	return &errorLogger{
		lastErrorTimes:  make(map[string]time.Time),
		rateLimitWindow: 5 * time.Minute,
	}
}

// logIfNeeded logs an error only if rate limit allows
func (e *errorLogger) logIfNeeded(operation string, err error) {
	now := time.Now()
	lastTime, exists := e.lastErrorTimes[operation]

	if !exists || now.Sub(lastTime) >= e.rateLimitWindow {
		log.Printf("Database query failed for %s: %v (further errors will be suppressed for %v)",
			operation, err, e.rateLimitWindow)
		e.lastErrorTimes[operation] = now
	}
}

var gaugeErrorLogger = newErrorLogger()

// updateGaugeMetrics refreshes the active-count gauges through the cache
// wrapper. The cache TTL matches the update interval so multi-instance
// deployments share one round of count queries.
func updateGaugeMetrics(
	ctx context.Context,
	wrapper *metrics.CacheWrapper,
	recorder core.Recorder,
	cacheTTL time.Duration,
) {
	activeTokens, err := wrapper.ActiveTokensCount(ctx, cacheTTL)
	if err != nil {
		recorder.RecordDatabaseQueryError("count_active_tokens")
		gaugeErrorLogger.logIfNeeded("count_active_tokens", err)
	} else {
		recorder.SetActiveTokensCount(int(activeTokens))
	}

	activeUsers, err := wrapper.ActiveUsersCount(ctx, cacheTTL)
	if err != nil {
		recorder.RecordDatabaseQueryError("count_active_users")
		gaugeErrorLogger.logIfNeeded("count_active_users", err)
	} else {
		recorder.SetActiveUsersCount(int(activeUsers))
	}

	clients, err := wrapper.ClientsCount(ctx, cacheTTL)
	if err != nil {
		recorder.RecordDatabaseQueryError("count_clients")
		gaugeErrorLogger.logIfNeeded("count_clients", err)
	} else {
		recorder.SetRegisteredClientsCount(int(clients))
	}
}
