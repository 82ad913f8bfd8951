package bootstrap

import (
	"github.com/go-mcpauth/mcpauth/internal/config"
	"github.com/go-mcpauth/mcpauth/internal/handlers"
	"github.com/go-mcpauth/mcpauth/internal/services"
)

// handlerSet groups all HTTP handlers
type handlerSet struct {
	discovery     *handlers.DiscoveryHandler
	client        *handlers.ClientHandler
	authorization *handlers.AuthorizationHandler
	token         *handlers.TokenHandler
	resource      *handlers.ResourceHandler
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(
	cfg *config.Config,
	users *services.UserService,
	clients *services.ClientService,
	authz *services.AuthorizationService,
	tokens *services.TokenService,
) handlerSet {
	return handlerSet{
		discovery:     handlers.NewDiscoveryHandler(cfg),
		client:        handlers.NewClientHandler(clients),
		authorization: handlers.NewAuthorizationHandler(authz, users),
		token:         handlers.NewTokenHandler(authz, tokens),
		resource:      handlers.NewResourceHandler(),
	}
}
