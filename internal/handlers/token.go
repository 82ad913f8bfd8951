package handlers

import (
	"errors"
	"net/http"

	"github.com/go-mcpauth/mcpauth/internal/services"

	"github.com/gin-gonic/gin"
)

// TokenHandler serves the token and revocation endpoints.
type TokenHandler struct {
	authz  *services.AuthorizationService
	tokens *services.TokenService
}

func NewTokenHandler(
	authz *services.AuthorizationService,
	tokens *services.TokenService,
) *TokenHandler {
	return &TokenHandler{
		authz:  authz,
		tokens: tokens,
	}
}

// Token handles POST /token (form-encoded, per RFC 6749).
func (h *TokenHandler) Token(c *gin.Context) {
	switch c.PostForm("grant_type") {
	case "authorization_code":
		h.exchangeAuthorizationCode(c)
	case "refresh_token":
		h.refreshToken(c)
	default:
		tokenError(c, http.StatusBadRequest, "unsupported_grant_type",
			"Supported grant types: authorization_code, refresh_token")
	}
}

func (h *TokenHandler) exchangeAuthorizationCode(c *gin.Context) {
	code := c.PostForm("code")
	if code == "" {
		tokenError(c, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	record, err := h.authz.ExchangeCode(c.Request.Context(), code, c.PostForm("code_verifier"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAuthCodeNotFound),
			errors.Is(err, services.ErrAuthCodeExpired),
			errors.Is(err, services.ErrAuthCodeAlreadyUsed):
			tokenError(c, http.StatusBadRequest, "invalid_grant",
				"Authorization code is invalid, expired, or already used")
		case errors.Is(err, services.ErrInvalidCodeVerifier):
			tokenError(c, http.StatusBadRequest, "invalid_grant",
				"PKCE verification failed")
		default:
			tokenError(c, http.StatusInternalServerError, "server_error",
				"Failed to exchange authorization code")
		}
		return
	}

	pair, err := h.tokens.Issue(c.Request.Context(), record.ClientID, record.UserID, record.Scope)
	if err != nil {
		tokenError(c, http.StatusInternalServerError, "server_error",
			"Failed to issue tokens")
		return
	}

	writeTokenPair(c, pair)
}

func (h *TokenHandler) refreshToken(c *gin.Context) {
	refreshToken := c.PostForm("refresh_token")
	if refreshToken == "" {
		tokenError(c, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	pair, err := h.tokens.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRefreshToken) {
			tokenError(c, http.StatusBadRequest, "invalid_grant",
				"Refresh token is invalid, expired, or revoked")
			return
		}
		tokenError(c, http.StatusInternalServerError, "server_error",
			"Failed to refresh token")
		return
	}

	writeTokenPair(c, pair)
}

// Revoke handles POST /revoke (RFC 7009). The response is 200 regardless of
// whether the token existed, so callers learn nothing from probing.
func (h *TokenHandler) Revoke(c *gin.Context) {
	token := c.PostForm("token")
	if token == "" {
		c.Status(http.StatusOK)
		return
	}

	// token_type_hint is accepted but ignored: both hash lookups are cheap
	// and trying both avoids trusting the caller's claim.
	if _, err := h.tokens.RevokeByValue(c.Request.Context(), token); err != nil {
		tokenError(c, http.StatusInternalServerError, "server_error",
			"Failed to revoke token")
		return
	}

	c.Status(http.StatusOK)
}

func writeTokenPair(c *gin.Context, pair *services.TokenPair) {
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"token_type":    pair.TokenType,
		"expires_in":    pair.ExpiresIn,
		"refresh_token": pair.RefreshToken,
		"scope":         pair.Scope,
	})
}

func tokenError(c *gin.Context, status int, code, description string) {
	c.JSON(status, gin.H{
		"error":             code,
		"error_description": description,
	})
}
