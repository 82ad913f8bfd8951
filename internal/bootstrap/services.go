package bootstrap

import (
	"github.com/go-mcpauth/mcpauth/internal/cache"
	"github.com/go-mcpauth/mcpauth/internal/config"
	"github.com/go-mcpauth/mcpauth/internal/core"
	"github.com/go-mcpauth/mcpauth/internal/models"
	"github.com/go-mcpauth/mcpauth/internal/services"
	"github.com/go-mcpauth/mcpauth/internal/store"
)

// initializeServices wires the business services
func initializeServices(
	cfg *config.Config,
	db *store.Store,
	pending cache.Cache[models.PendingAuthorization],
	provider core.IdentityProvider,
	recorder core.Recorder,
) (
	*services.UserService,
	*services.ClientService,
	*services.AuthorizationService,
	*services.TokenService,
) {
	users := services.NewUserService(db, cfg, recorder)
	clients := services.NewClientService(db, recorder)
	authz := services.NewAuthorizationService(db, cfg, pending, provider, users, recorder)
	tokens := services.NewTokenService(db, cfg, recorder)

	return users, clients, authz, tokens
}
