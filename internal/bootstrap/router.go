package bootstrap

import (
	"log"
	"net/http"

	"github.com/go-mcpauth/mcpauth/internal/config"
	"github.com/go-mcpauth/mcpauth/internal/core"
	"github.com/go-mcpauth/mcpauth/internal/metrics"
	"github.com/go-mcpauth/mcpauth/internal/middleware"
	"github.com/go-mcpauth/mcpauth/internal/services"
	"github.com/go-mcpauth/mcpauth/internal/store"
	"github.com/go-mcpauth/mcpauth/internal/templates"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	db *store.Store,
	h handlerSet,
	recorder core.Recorder,
	users *services.UserService,
	tokens *services.TokenService,
	rateLimitRedisClient *redis.Client,
) *gin.Engine {
	setupGinMode(cfg)
	r := gin.New()

	// Setup middleware
	r.Use(metrics.HTTPMetricsMiddleware(recorder))
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.IPMiddleware())

	r.SetHTMLTemplate(templates.Load())

	// Health check endpoint
	r.GET("/health", createHealthCheckHandler(db))

	// Setup metrics endpoint
	setupMetricsEndpoint(r, cfg)

	// Setup rate limiting
	rateLimiters := setupRateLimiting(cfg, rateLimitRedisClient)

	setupAllRoutes(r, cfg, h, rateLimiters, users, tokens)

	logServerStartup(cfg)

	return r
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupAllRoutes configures all application routes
func setupAllRoutes(
	r *gin.Engine,
	cfg *config.Config,
	h handlerSet,
	rateLimiters rateLimitMiddlewares,
	users *services.UserService,
	tokens *services.TokenService,
) {
	// Discovery documents (public, unthrottled)
	r.GET("/.well-known/oauth-protected-resource", h.discovery.ProtectedResourceMetadata)
	r.GET("/.well-known/oauth-authorization-server", h.discovery.AuthorizationServerMetadata)

	// OAuth endpoints (public)
	r.POST("/register", rateLimiters.register, h.client.Register)
	r.GET("/authorize", rateLimiters.authorize, h.authorization.Authorize)
	r.POST("/authorize", rateLimiters.authorize, h.authorization.AuthorizeSubmit)
	r.GET("/callback", h.authorization.Callback)
	r.POST("/token", rateLimiters.token, h.token.Token)
	r.POST("/revoke", h.token.Revoke)

	// Protected resource API (dual-mode bearer verification)
	requireAuth := middleware.RequireAuth(
		tokens, users,
		cfg.IssuerURL()+"/.well-known/oauth-protected-resource",
	)
	api := r.Group("/api")
	api.Use(requireAuth)
	{
		api.GET("/me", h.resource.Me)
	}
}

// createHealthCheckHandler creates health check endpoint handler
func createHealthCheckHandler(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch err := db.Health(); err {
		case nil:
			c.JSON(http.StatusOK, gin.H{
				"status":   "healthy",
				"database": "connected",
			})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
			})
		}
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config) {
	gin.SetMode(ginModeMap[cfg.IsProduction])
	log.Printf("Gin mode: %s", ginModeLogMessage[cfg.IsProduction])
}

var ginModeMap = map[bool]string{
	true:  gin.ReleaseMode,
	false: gin.DebugMode,
}

var ginModeLogMessage = map[bool]string{
	true:  "Release (production)",
	false: "Debug (development)",
}

// logServerStartup logs server startup information
func logServerStartup(cfg *config.Config) {
	log.Printf("OAuth authorization server starting on %s", cfg.ServerAddr)
	log.Printf("Issuer: %s", cfg.IssuerURL())
	log.Printf("Discovery: %s/.well-known/oauth-authorization-server", cfg.IssuerURL())
}
