package handlers

import (
	"net/http"

	"github.com/go-mcpauth/mcpauth/internal/services"

	"github.com/gin-gonic/gin"
)

// ClientHandler serves dynamic client registration (RFC 7591).
type ClientHandler struct {
	clients *services.ClientService
}

func NewClientHandler(clients *services.ClientService) *ClientHandler {
	return &ClientHandler{clients: clients}
}

type registrationRequest struct {
	ClientName   string   `json:"client_name"`
	RedirectURIs []string `json:"redirect_uris"`
}

// Register handles POST /register. The body is best-effort: an empty or
// unparsable body still registers a client with defaulted fields, matching
// what loosely-behaved MCP clients actually send.
func (h *ClientHandler) Register(c *gin.Context) {
	var req registrationRequest
	_ = c.ShouldBindJSON(&req)

	client, err := h.clients.Register(c.Request.Context(), req.ClientName, req.RedirectURIs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Failed to register client",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"client_id":                  client.ClientID,
		"client_name":                client.Name,
		"redirect_uris":              []string(client.RedirectURIs),
		"token_endpoint_auth_method": "none",
		"grant_types":                []string{"authorization_code", "refresh_token"},
		"response_types":             []string{"code"},
	})
}
