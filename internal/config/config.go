package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache / rate-limit store constants
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string // Public base URL used in discovery documents and redirects
	IsProduction bool

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string // Database connection string (DSN or path)

	// APIKeyHashSalt is the application-wide PBKDF2 salt. It is shared across
	// all records so that hash(key) works as an indexed equality lookup; the
	// hashed values are generated high-entropy secrets, not user passwords.
	APIKeyHashSalt string

	// Credential lifetimes
	AuthCodeExpiration     time.Duration // Authorization code lifetime (default: 10m)
	AccessTokenExpiration  time.Duration // Access token lifetime (default: 1h)
	RefreshTokenExpiration time.Duration // Refresh token lifetime (default: 720h = 30 days)

	// Pending authorization cache
	PendingAuthTTL           time.Duration // Lifetime of an in-flight upstream login (default: 10m)
	PendingAuthSweepInterval time.Duration // Janitor sweep interval for the memory store (default: 1m)
	CacheStore               string        // "memory" or "redis"
	CacheRedisAddr           string        // rueidis address when CacheStore is "redis"
	CacheRedisPassword       string

	// Upstream Discord OAuth (the identity source)
	DiscordClientID     string
	DiscordClientSecret string
	DiscordAuthURL      string
	DiscordTokenURL     string
	DiscordAPIBaseURL   string
	DiscordScopes       []string

	// Upstream HTTP client settings
	UpstreamTimeout            time.Duration // Token exchange and profile fetch timeout (default: 15s)
	UpstreamInsecureSkipVerify bool          // Skip TLS verification (dev/testing only)

	// OAuth scopes advertised in the discovery documents
	ScopesSupported []string

	// Metrics
	MetricsEnabled             bool
	MetricsToken               string        // Optional bearer token protecting /metrics
	MetricsGaugeUpdateInterval time.Duration // How often the active-count gauges are refreshed (default: 1m)

	// StoreSweepInterval controls how often expired authorization codes and
	// token rows are purged (default: 10m).
	StoreSweepInterval time.Duration

	// Rate limiting
	EnableRateLimit          bool
	RateLimitStore           string // "memory" or "redis"
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	TokenRateLimit           int // requests per minute on POST /token
	AuthorizeRateLimit       int // requests per minute on /authorize
	RegisterRateLimit        int // requests per minute on POST /register
	RateLimitCleanupInterval time.Duration
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		IsProduction: getEnv("ENVIRONMENT", "development") == "production",

		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:    getEnv("DATABASE_DSN", "mcpauth.db"),

		APIKeyHashSalt: getEnv("API_KEY_HASH_SALT", "mcpauth-hash-salt-change-in-production"),

		AuthCodeExpiration:     getEnvDuration("AUTH_CODE_EXPIRATION", 10*time.Minute),
		AccessTokenExpiration:  getEnvDuration("ACCESS_TOKEN_EXPIRATION", time.Hour),
		RefreshTokenExpiration: getEnvDuration("REFRESH_TOKEN_EXPIRATION", 720*time.Hour),

		PendingAuthTTL:           getEnvDuration("PENDING_AUTH_TTL", 10*time.Minute),
		PendingAuthSweepInterval: getEnvDuration("PENDING_AUTH_SWEEP_INTERVAL", time.Minute),
		CacheStore:               getEnv("CACHE_STORE", StoreMemory),
		CacheRedisAddr:           getEnv("CACHE_REDIS_ADDR", "localhost:6379"),
		CacheRedisPassword:       getEnv("CACHE_REDIS_PASSWORD", ""),

		DiscordClientID:     getEnv("DISCORD_CLIENT_ID", ""),
		DiscordClientSecret: getEnv("DISCORD_CLIENT_SECRET", ""),
		DiscordAuthURL:      getEnv("DISCORD_AUTH_URL", "https://discord.com/api/oauth2/authorize"),
		DiscordTokenURL:     getEnv("DISCORD_TOKEN_URL", "https://discord.com/api/oauth2/token"),
		DiscordAPIBaseURL:   getEnv("DISCORD_API_BASE_URL", "https://discord.com/api"),
		DiscordScopes:       getEnvSlice("DISCORD_SCOPES", []string{"identify"}),

		UpstreamTimeout:            getEnvDuration("UPSTREAM_TIMEOUT", 15*time.Second),
		UpstreamInsecureSkipVerify: getEnvBool("UPSTREAM_INSECURE_SKIP_VERIFY", false),

		ScopesSupported: getEnvSlice(
			"SCOPES_SUPPORTED",
			[]string{"mcp:tools", "mcp:read", "mcp:write"},
		),

		MetricsEnabled:             getEnvBool("METRICS_ENABLED", true),
		MetricsToken:               getEnv("METRICS_TOKEN", ""),
		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", time.Minute),

		StoreSweepInterval: getEnvDuration("STORE_SWEEP_INTERVAL", 10*time.Minute),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", StoreMemory),
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:            getEnv("REDIS_PASSWORD", ""),
		RedisDB:                  getEnvInt("REDIS_DB", 0),
		TokenRateLimit:           getEnvInt("TOKEN_RATE_LIMIT", 60),
		AuthorizeRateLimit:       getEnvInt("AUTHORIZE_RATE_LIMIT", 20),
		RegisterRateLimit:        getEnvInt("REGISTER_RATE_LIMIT", 10),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
	}
}

// Validate checks settings that have no safe fallback.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("BASE_URL must not be empty")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN must not be empty")
	}
	if c.APIKeyHashSalt == "" {
		return fmt.Errorf("API_KEY_HASH_SALT must not be empty")
	}
	if c.AuthCodeExpiration <= 0 || c.AccessTokenExpiration <= 0 || c.RefreshTokenExpiration <= 0 {
		return fmt.Errorf("credential lifetimes must be positive")
	}
	return nil
}

// DiscordConfigured reports whether the upstream Discord OAuth provider can be
// used. When false, /authorize serves the local API-key login form only.
func (c *Config) DiscordConfigured() bool {
	return c.DiscordClientID != "" && c.DiscordClientSecret != ""
}

// IssuerURL returns the public base URL without a trailing slash.
func (c *Config) IssuerURL() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := []string{}
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
