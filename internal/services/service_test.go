package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-mcpauth/mcpauth/internal/cache"
	"github.com/go-mcpauth/mcpauth/internal/config"
	"github.com/go-mcpauth/mcpauth/internal/core"
	"github.com/go-mcpauth/mcpauth/internal/metrics"
	"github.com/go-mcpauth/mcpauth/internal/models"
	"github.com/go-mcpauth/mcpauth/internal/store"

	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		BaseURL:                "http://localhost:8080",
		APIKeyHashSalt:         "test-salt",
		AuthCodeExpiration:     10 * time.Minute,
		AccessTokenExpiration:  time.Hour,
		RefreshTokenExpiration: 720 * time.Hour,
		PendingAuthTTL:         10 * time.Minute,
		ScopesSupported:        []string{"mcp:tools", "mcp:read", "mcp:write"},
	}
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)

	sqlDB, err := s.DB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	return s
}

// fakeProvider satisfies core.IdentityProvider for callback tests.
type fakeProvider struct {
	identity *core.Identity
	err      error
	lastCode string
}

func (f *fakeProvider) AuthURL(state string) string {
	return "https://idp.example/oauth2/authorize?state=" + state
}

func (f *fakeProvider) Exchange(ctx context.Context, code string) (*core.Identity, error) {
	f.lastCode = code
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

func (f *fakeProvider) Name() string { return "fake" }

type testEnv struct {
	store   *store.Store
	cfg     *config.Config
	pending cache.Cache[models.PendingAuthorization]

	users    *UserService
	clients  *ClientService
	authz    *AuthorizationService
	tokens   *TokenService
	provider *fakeProvider
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s := setupTestStore(t)
	cfg := testConfig()
	recorder := metrics.NewNoopMetrics()
	pending := cache.NewMemoryCache[models.PendingAuthorization]()
	t.Cleanup(func() { _ = pending.Close() })

	provider := &fakeProvider{
		identity: &core.Identity{UserID: "discord-1000", Username: "tester"},
	}

	users := NewUserService(s, cfg, recorder)

	return &testEnv{
		store:    s,
		cfg:      cfg,
		pending:  pending,
		users:    users,
		clients:  NewClientService(s, recorder),
		authz:    NewAuthorizationService(s, cfg, pending, provider, users, recorder),
		tokens:   NewTokenService(s, cfg, recorder),
		provider: provider,
	}
}

// registerTestClient registers a client with one redirect URI.
func registerTestClient(t *testing.T, env *testEnv) *models.OAuthClient {
	t.Helper()

	client, err := env.clients.Register(
		context.Background(),
		"Test Client",
		[]string{"https://client.example/cb"},
	)
	require.NoError(t, err)
	return client
}
