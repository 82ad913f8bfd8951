package handlers

import (
	"net/http"

	"github.com/go-mcpauth/mcpauth/internal/config"

	"github.com/gin-gonic/gin"
)

// DiscoveryHandler serves the static RFC 9728 / RFC 8414 metadata documents.
// Both are derived from the deployment's public base URL; no state.
type DiscoveryHandler struct {
	config *config.Config
}

func NewDiscoveryHandler(cfg *config.Config) *DiscoveryHandler {
	return &DiscoveryHandler{config: cfg}
}

// ProtectedResourceMetadata handles GET /.well-known/oauth-protected-resource.
func (h *DiscoveryHandler) ProtectedResourceMetadata(c *gin.Context) {
	issuer := h.config.IssuerURL()
	c.JSON(http.StatusOK, gin.H{
		"resource":                 issuer,
		"authorization_servers":    []string{issuer},
		"bearer_methods_supported": []string{"header"},
		"resource_documentation":   issuer,
	})
}

// AuthorizationServerMetadata handles GET /.well-known/oauth-authorization-server.
func (h *DiscoveryHandler) AuthorizationServerMetadata(c *gin.Context) {
	issuer := h.config.IssuerURL()
	c.JSON(http.StatusOK, gin.H{
		"issuer":                 issuer,
		"authorization_endpoint": issuer + "/authorize",
		"token_endpoint":         issuer + "/token",
		"registration_endpoint":  issuer + "/register",
		"revocation_endpoint":    issuer + "/revoke",
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code", "refresh_token"},
		"token_endpoint_auth_methods_supported": []string{"none", "client_secret_post"},
		"code_challenge_methods_supported":      []string{"S256", "plain"},
		"scopes_supported":                      h.config.ScopesSupported,
	})
}
