package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-mcpauth/mcpauth/internal/cache"
	"github.com/go-mcpauth/mcpauth/internal/config"
	"github.com/go-mcpauth/mcpauth/internal/metrics"
	"github.com/go-mcpauth/mcpauth/internal/models"
	"github.com/go-mcpauth/mcpauth/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBootstrapConfig() *config.Config {
	return &config.Config{
		ServerAddr:             ":0",
		BaseURL:                "http://localhost:8080",
		DatabaseDriver:         "sqlite",
		DatabaseDSN:            ":memory:",
		APIKeyHashSalt:         "test-salt",
		AuthCodeExpiration:     10 * time.Minute,
		AccessTokenExpiration:  time.Hour,
		RefreshTokenExpiration: 720 * time.Hour,
		PendingAuthTTL:         10 * time.Minute,
		ScopesSupported:        []string{"mcp:tools"},
	}
}

func buildTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := testBootstrapConfig()

	db, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	require.NoError(t, err)

	recorder := metrics.NewNoopMetrics()
	pending := cache.NewMemoryCache[models.PendingAuthorization]()
	t.Cleanup(func() { _ = pending.Close() })

	users, clients, authz, tokens := initializeServices(cfg, db, pending, nil, recorder)
	h := initializeHandlers(cfg, users, clients, authz, tokens)

	return setupRouter(cfg, db, h, recorder, users, tokens, nil)
}

func TestRouterServesHealth(t *testing.T) {
	router := buildTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestRouterServesDiscovery(t *testing.T) {
	router := buildTestRouter(t)

	for _, path := range []string{
		"/.well-known/oauth-protected-resource",
		"/.well-known/oauth-authorization-server",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, "path %s", path)
	}
}

func TestRouterProtectsResourceAPI(t *testing.T) {
	router := buildTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "oauth-protected-resource")
}

func TestCreateHTTPServerTimeouts(t *testing.T) {
	srv := createHTTPServer(testBootstrapConfig(), http.NewServeMux())
	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, 10*time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, 30*time.Second, srv.ReadTimeout)
}
