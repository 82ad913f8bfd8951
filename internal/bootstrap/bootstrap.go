package bootstrap

import (
	"context"
	"log"
	"net/http"

	"github.com/go-mcpauth/mcpauth/internal/cache"
	"github.com/go-mcpauth/mcpauth/internal/config"
	"github.com/go-mcpauth/mcpauth/internal/core"
	"github.com/go-mcpauth/mcpauth/internal/models"
	"github.com/go-mcpauth/mcpauth/internal/services"
	"github.com/go-mcpauth/mcpauth/internal/store"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB                   *store.Store
	MetricsRecorder      core.Recorder
	MetricsCache         cache.Cache[int64]
	PendingCache         cache.Cache[models.PendingAuthorization]
	IdentityProvider     core.IdentityProvider // nil without upstream IdP
	RateLimitRedisClient *redis.Client

	// Services
	UserService          *services.UserService
	ClientService        *services.ClientService
	AuthorizationService *services.AuthorizationService
	TokenService         *services.TokenService

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// Run initializes and starts the application
func Run(cfg *config.Config) error {
	app := &Application{Config: cfg}

	// Phase 1: Validate configuration
	validateConfiguration(cfg)

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(); err != nil {
		return err
	}

	// Phase 3: Initialize business layer
	app.initializeBusinessLayer()

	// Phase 4: Initialize HTTP layer
	app.initializeHTTPLayer()

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up database, metrics, caches, and Redis
func (app *Application) initializeInfrastructure() error {
	ctx := context.Background()
	var err error

	// Database
	app.DB, err = initializeDatabase(app.Config)
	if err != nil {
		return err
	}

	// Metrics
	app.MetricsRecorder = initializeMetrics(app.Config)
	app.MetricsCache, err = initializeMetricsCache(ctx, app.Config)
	if err != nil {
		return err
	}

	// Pending authorization cache
	app.PendingCache, err = initializePendingCache(ctx, app.Config)
	if err != nil {
		return err
	}

	// Redis (for rate limiting)
	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(ctx, app.Config)
	if err != nil {
		return err
	}

	return nil
}

// initializeBusinessLayer sets up the identity provider and services
func (app *Application) initializeBusinessLayer() {
	app.IdentityProvider = initializeIdentityProvider(app.Config)

	app.UserService,
		app.ClientService,
		app.AuthorizationService,
		app.TokenService = initializeServices(
		app.Config,
		app.DB,
		app.PendingCache,
		app.IdentityProvider,
		app.MetricsRecorder,
	)
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() {
	app.HandlerSet = initializeHandlers(
		app.Config,
		app.UserService,
		app.ClientService,
		app.AuthorizationService,
		app.TokenService,
	)

	app.Router = setupRouter(
		app.Config,
		app.DB,
		app.HandlerSet,
		app.MetricsRecorder,
		app.UserService,
		app.TokenService,
		app.RateLimitRedisClient,
	)

	app.Server = createHTTPServer(app.Config, app.Router)
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Server)
	addStoreSweepJob(m, app.Config, app.DB)
	addMetricsGaugeUpdateJob(m, app.Config, app.DB, app.MetricsRecorder, app.MetricsCache)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)
	addCacheShutdownJob(m, "pending authorization cache", app.PendingCache.Close)
	if app.MetricsCache != nil {
		addCacheShutdownJob(m, "metrics cache", app.MetricsCache.Close)
	}

	<-m.Done()
}

// validateConfiguration validates all configuration settings
func validateConfiguration(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if !cfg.IsProduction {
		return
	}
	if cfg.APIKeyHashSalt == "mcpauth-hash-salt-change-in-production" {
		log.Fatalf("API_KEY_HASH_SALT must be changed for production deployments")
	}
}
