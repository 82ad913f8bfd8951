package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-mcpauth/mcpauth/internal/cache"
	"github.com/go-mcpauth/mcpauth/internal/config"
	"github.com/go-mcpauth/mcpauth/internal/core"
	"github.com/go-mcpauth/mcpauth/internal/metrics"
	"github.com/go-mcpauth/mcpauth/internal/middleware"
	"github.com/go-mcpauth/mcpauth/internal/models"
	"github.com/go-mcpauth/mcpauth/internal/services"
	"github.com/go-mcpauth/mcpauth/internal/store"
	"github.com/go-mcpauth/mcpauth/internal/templates"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider stands in for the Discord provider in callback tests.
type fakeProvider struct {
	identity *core.Identity
	err      error
}

func (f *fakeProvider) AuthURL(state string) string {
	return "https://idp.example/oauth2/authorize?state=" + state
}

func (f *fakeProvider) Exchange(ctx context.Context, code string) (*core.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

func (f *fakeProvider) Name() string { return "fake" }

type testApp struct {
	router  *gin.Engine
	store   *store.Store
	cfg     *config.Config
	users   *services.UserService
	clients *services.ClientService
	tokens  *services.TokenService
	authz   *services.AuthorizationService
}

// newTestApp wires the full HTTP surface against an in-memory store. A nil
// provider exercises the local-credential branch; a non-nil one the upstream
// branch.
func newTestApp(t *testing.T, provider core.IdentityProvider) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB, err := s.DB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	cfg := &config.Config{
		BaseURL:                "http://localhost:8080",
		APIKeyHashSalt:         "test-salt",
		AuthCodeExpiration:     10 * time.Minute,
		AccessTokenExpiration:  time.Hour,
		RefreshTokenExpiration: 720 * time.Hour,
		PendingAuthTTL:         10 * time.Minute,
		ScopesSupported:        []string{"mcp:tools", "mcp:read", "mcp:write"},
	}
	recorder := metrics.NewNoopMetrics()
	pending := cache.NewMemoryCache[models.PendingAuthorization]()
	t.Cleanup(func() { _ = pending.Close() })

	users := services.NewUserService(s, cfg, recorder)
	clients := services.NewClientService(s, recorder)
	authz := services.NewAuthorizationService(s, cfg, pending, provider, users, recorder)
	tokens := services.NewTokenService(s, cfg, recorder)

	discovery := NewDiscoveryHandler(cfg)
	clientHandler := NewClientHandler(clients)
	authorization := NewAuthorizationHandler(authz, users)
	tokenHandler := NewTokenHandler(authz, tokens)
	resource := NewResourceHandler()

	router := gin.New()
	router.SetHTMLTemplate(templates.Load())

	router.GET("/.well-known/oauth-protected-resource", discovery.ProtectedResourceMetadata)
	router.GET("/.well-known/oauth-authorization-server", discovery.AuthorizationServerMetadata)
	router.POST("/register", clientHandler.Register)
	router.GET("/authorize", authorization.Authorize)
	router.POST("/authorize", authorization.AuthorizeSubmit)
	router.GET("/callback", authorization.Callback)
	router.POST("/token", tokenHandler.Token)
	router.POST("/revoke", tokenHandler.Revoke)

	requireAuth := middleware.RequireAuth(
		tokens, users,
		cfg.IssuerURL()+"/.well-known/oauth-protected-resource",
	)
	router.GET("/api/me", requireAuth, resource.Me)

	return &testApp{
		router:  router,
		store:   s,
		cfg:     cfg,
		users:   users,
		clients: clients,
		tokens:  tokens,
		authz:   authz,
	}
}

func (app *testApp) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

func (app *testApp) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

func (app *testApp) postJSON(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// registerClient registers a client over HTTP and returns its id.
func (app *testApp) registerClient(t *testing.T, redirectURIs []string) string {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"client_name":   "Test Client",
		"redirect_uris": redirectURIs,
	})
	require.NoError(t, err)

	w := app.postJSON(t, "/register", string(payload))
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeJSON(t, w)
	clientID, ok := body["client_id"].(string)
	require.True(t, ok)
	return clientID
}

func TestProtectedResourceMetadata(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.get(t, "/.well-known/oauth-protected-resource")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeJSON(t, w)
	assert.Equal(t, "http://localhost:8080", body["resource"])
	assert.Equal(t, []any{"http://localhost:8080"}, body["authorization_servers"])
	assert.Equal(t, []any{"header"}, body["bearer_methods_supported"])
}

func TestAuthorizationServerMetadata(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.get(t, "/.well-known/oauth-authorization-server")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeJSON(t, w)
	assert.Equal(t, "http://localhost:8080", body["issuer"])
	assert.Equal(t, "http://localhost:8080/authorize", body["authorization_endpoint"])
	assert.Equal(t, "http://localhost:8080/token", body["token_endpoint"])
	assert.Equal(t, "http://localhost:8080/register", body["registration_endpoint"])
	assert.Equal(t, "http://localhost:8080/revoke", body["revocation_endpoint"])
	assert.Equal(t, []any{"code"}, body["response_types_supported"])
	assert.Equal(t, []any{"S256", "plain"}, body["code_challenge_methods_supported"])
}

func TestRegisterClient(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.postJSON(t, "/register",
		`{"client_name":"My MCP Client","redirect_uris":["https://client/cb"]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeJSON(t, w)
	assert.NotEmpty(t, body["client_id"])
	assert.Equal(t, "My MCP Client", body["client_name"])
	assert.Equal(t, []any{"https://client/cb"}, body["redirect_uris"])
	assert.Equal(t, "none", body["token_endpoint_auth_method"])
}

func TestRegisterClientEmptyBody(t *testing.T) {
	app := newTestApp(t, nil)

	// Registration is best-effort: an empty body still yields a client.
	w := app.postJSON(t, "/register", "")
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeJSON(t, w)
	assert.NotEmpty(t, body["client_id"])
	assert.Equal(t, services.DefaultClientName, body["client_name"])
	assert.Equal(t, []any{}, body["redirect_uris"])
}

func TestRegisterClientUnparsableBody(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.postJSON(t, "/register", "{not json")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, decodeJSON(t, w)["client_id"])
}
