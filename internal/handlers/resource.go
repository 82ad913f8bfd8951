package handlers

import (
	"net/http"

	"github.com/go-mcpauth/mcpauth/internal/middleware"

	"github.com/gin-gonic/gin"
)

// ResourceHandler serves the sample protected resource endpoints that sit
// behind dual-mode bearer verification.
type ResourceHandler struct{}

func NewResourceHandler() *ResourceHandler {
	return &ResourceHandler{}
}

// Me handles GET /api/me and reflects the authenticated identity.
func (h *ResourceHandler) Me(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "invalid_token",
			"error_description": "No authenticated user in request context",
		})
		return
	}

	response := gin.H{
		"discord_user_id":  user.DiscordUserID,
		"discord_username": user.DiscordUsername,
		"created_at":       user.CreatedAt,
		"auth_method":      c.GetString(middleware.ContextAuthMethod),
	}
	if token, ok := middleware.TokenFromContext(c); ok {
		response["scope"] = token.Scope
	}

	c.JSON(http.StatusOK, response)
}
