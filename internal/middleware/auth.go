package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-mcpauth/mcpauth/internal/models"
	"github.com/go-mcpauth/mcpauth/internal/services"

	"github.com/gin-gonic/gin"
)

// Context keys set by RequireAuth.
const (
	ContextUser       = "auth_user"
	ContextToken      = "auth_token"
	ContextAuthMethod = "auth_method"
)

// Auth methods recorded in the request context.
const (
	AuthMethodAPIKey      = "api_key"
	AuthMethodAccessToken = "oauth_token"
)

// RequireAuth guards resource endpoints with dual-mode bearer verification:
// the presented credential is tried as an OAuth access token first, then as
// an API key. Both arrive in the same Authorization header, so clients never
// need to declare which kind they hold.
//
// Failures answer 401 with a WWW-Authenticate challenge pointing at the
// protected-resource metadata, which is how MCP clients discover the
// authorization server.
func RequireAuth(
	tokens *services.TokenService,
	users *services.UserService,
	resourceMetadataURL string,
) gin.HandlerFunc {
	challenge := fmt.Sprintf(`Bearer resource_metadata=%q`, resourceMetadataURL)

	return func(c *gin.Context) {
		credential, ok := bearerCredential(c)
		if !ok {
			unauthorized(c, challenge, "Bearer credential required")
			return
		}

		// Access tokens and API keys share the lookup-by-hash shape, so
		// order is just a matter of which miss is cheaper. Token hashes
		// are a single unsalted SHA-256, keys may walk several schemes.
		record, err := tokens.VerifyAccessToken(c.Request.Context(), credential)
		switch {
		case err == nil:
			user, err := users.GetByID(c.Request.Context(), record.UserID)
			if err != nil || !user.IsActive {
				unauthorized(c, challenge, "Invalid or expired credential")
				return
			}
			users.TouchUsage(c.Request.Context(), user.ID)

			c.Set(ContextUser, user)
			c.Set(ContextToken, record)
			c.Set(ContextAuthMethod, AuthMethodAccessToken)
			c.Next()
			return

		case errors.Is(err, services.ErrInvalidAccessToken):
			// Fall through to the API-key strategies.

		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "Credential verification failed",
			})
			return
		}

		user, err := users.VerifyAPIKey(c.Request.Context(), credential)
		if err != nil {
			if errors.Is(err, services.ErrInvalidAPIKey) || errors.Is(err, services.ErrUserInactive) {
				unauthorized(c, challenge, "Invalid or expired credential")
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "Credential verification failed",
			})
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextAuthMethod, AuthMethodAPIKey)
		c.Next()
	}
}

// bearerCredential extracts the credential from "Authorization: Bearer ...".
func bearerCredential(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	credential := strings.TrimPrefix(header, "Bearer ")
	if credential == "" {
		return "", false
	}
	return credential, true
}

func unauthorized(c *gin.Context, challenge, description string) {
	c.Header("WWW-Authenticate", challenge)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":             "invalid_token",
		"error_description": description,
	})
}

// UserFromContext returns the user set by RequireAuth.
func UserFromContext(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(ContextUser)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}

// TokenFromContext returns the access-token record set by RequireAuth, when
// the request authenticated with an OAuth token rather than an API key.
func TokenFromContext(c *gin.Context) (*models.OAuthToken, bool) {
	value, exists := c.Get(ContextToken)
	if !exists {
		return nil, false
	}
	token, ok := value.(*models.OAuthToken)
	return token, ok
}
