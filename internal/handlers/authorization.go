package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-mcpauth/mcpauth/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthorizationHandler drives the browser-facing half of the
// authorization-code flow: the /authorize entry point (both the upstream-IdP
// redirect and the local API-key form) and the upstream /callback.
type AuthorizationHandler struct {
	authz *services.AuthorizationService
	users *services.UserService
}

func NewAuthorizationHandler(
	authz *services.AuthorizationService,
	users *services.UserService,
) *AuthorizationHandler {
	return &AuthorizationHandler{
		authz: authz,
		users: users,
	}
}

// Authorize handles GET /authorize. With an upstream IdP configured the
// user-agent is bounced there; otherwise the local API-key form is rendered.
func (h *AuthorizationHandler) Authorize(c *gin.Context) {
	req, err := h.authz.ValidateAuthorizationRequest(
		c.Request.Context(),
		c.Query("client_id"),
		c.Query("redirect_uri"),
		c.Query("response_type"),
		c.Query("scope"),
		c.Query("state"),
		c.Query("code_challenge"),
		c.Query("code_challenge_method"),
	)
	if err != nil {
		h.renderAuthorizeError(c, err)
		return
	}

	if h.authz.UpstreamConfigured() {
		redirectURL, err := h.authz.BeginUpstream(c.Request.Context(), req)
		if err != nil {
			c.HTML(http.StatusInternalServerError, "error.html", gin.H{
				"title":   "Authorization Failed",
				"message": "Could not start the authorization flow. Please try again.",
			})
			return
		}
		c.Redirect(http.StatusFound, redirectURL)
		return
	}

	h.renderLoginForm(c, req, "")
}

// AuthorizeSubmit handles POST /authorize, the local-credential form. The
// request parameters are re-validated from the hidden form fields; the posted
// API key is never echoed back.
func (h *AuthorizationHandler) AuthorizeSubmit(c *gin.Context) {
	req, err := h.authz.ValidateAuthorizationRequest(
		c.Request.Context(),
		c.PostForm("client_id"),
		c.PostForm("redirect_uri"),
		"code",
		c.PostForm("scope"),
		c.PostForm("state"),
		c.PostForm("code_challenge"),
		c.PostForm("code_challenge_method"),
	)
	if err != nil {
		h.renderAuthorizeError(c, err)
		return
	}

	user, err := h.users.VerifyAPIKey(c.Request.Context(), c.PostForm("api_key"))
	if err != nil {
		if errors.Is(err, services.ErrInvalidAPIKey) || errors.Is(err, services.ErrUserInactive) {
			// One generic message: malformed and wrong keys are
			// indistinguishable to the submitter.
			h.renderLoginForm(c, req, "Invalid API key.")
			return
		}
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"title":   "Authorization Failed",
			"message": "Could not verify the credential. Please try again.",
		})
		return
	}

	code, err := h.authz.IssueCode(
		c.Request.Context(),
		req.Client.ClientID,
		user.ID,
		req.RedirectURI,
		req.Scope,
		req.CodeChallenge,
		req.CodeChallengeMethod,
	)
	if err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"title":   "Authorization Failed",
			"message": "Could not issue the authorization code. Please try again.",
		})
		return
	}

	h.deliverCode(c, req.RedirectURI, req.State, code, req.Client.Name, user.DiscordUsername)
}

// Callback handles GET /callback, the upstream-IdP return leg.
func (h *AuthorizationHandler) Callback(c *gin.Context) {
	if errCode := c.Query("error"); errCode != "" {
		c.HTML(http.StatusBadRequest, "error.html", gin.H{
			"title":   "Authorization Denied",
			"message": "The identity provider did not authorize this request.",
		})
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.HTML(http.StatusBadRequest, "error.html", gin.H{
			"title":   "Invalid Callback",
			"message": "The callback is missing required parameters.",
		})
		return
	}

	result, err := h.authz.CompleteUpstream(c.Request.Context(), state, code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSessionExpired):
			c.HTML(http.StatusBadRequest, "error.html", gin.H{
				"title":   "Session Expired",
				"message": "This authorization session has expired. Please start over.",
			})
		case errors.Is(err, services.ErrUpstreamFailed):
			c.HTML(http.StatusBadGateway, "error.html", gin.H{
				"title":   "Upstream Authorization Failed",
				"message": "Signing in with the identity provider failed. Please try again.",
			})
		default:
			c.HTML(http.StatusInternalServerError, "error.html", gin.H{
				"title":   "Authorization Failed",
				"message": "Could not complete the authorization flow. Please try again.",
			})
		}
		return
	}

	h.deliverCode(
		c,
		result.Pending.RedirectURI,
		result.Pending.State,
		result.Code,
		"", // client name is not threaded through the pending record
		result.User.DiscordUsername,
	)
}

// deliverCode redirects the code to the client, or shows it on the success
// page when the request carried no redirect URI.
func (h *AuthorizationHandler) deliverCode(
	c *gin.Context,
	redirectURI, state, code, clientName, username string,
) {
	if redirectURI == "" {
		c.HTML(http.StatusOK, "success.html", gin.H{
			"code":        code,
			"client_name": clientName,
			"username":    username,
		})
		return
	}

	target, err := url.Parse(redirectURI)
	if err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"title":   "Authorization Failed",
			"message": "The registered redirect URI is not a valid URL.",
		})
		return
	}
	query := target.Query()
	query.Set("code", code)
	if state != "" {
		query.Set("state", state)
	}
	target.RawQuery = query.Encode()

	c.Redirect(http.StatusFound, target.String())
}

func (h *AuthorizationHandler) renderLoginForm(
	c *gin.Context,
	req *services.AuthorizationRequest,
	errorMessage string,
) {
	status := http.StatusOK
	if errorMessage != "" {
		status = http.StatusUnauthorized
	}
	c.HTML(status, "login.html", gin.H{
		"client_name":           req.Client.Name,
		"client_id":             req.Client.ClientID,
		"redirect_uri":          req.RedirectURI,
		"state":                 req.State,
		"scope":                 req.Scope,
		"code_challenge":        req.CodeChallenge,
		"code_challenge_method": req.CodeChallengeMethod,
		"error":                 errorMessage,
	})
}

// renderAuthorizeError maps validation failures onto the error page. The
// request never reaches a trusted redirect URI at this point, so errors are
// rendered locally instead of bounced to the client.
func (h *AuthorizationHandler) renderAuthorizeError(c *gin.Context, err error) {
	var message string
	switch {
	case errors.Is(err, services.ErrUnsupportedResponseType):
		message = "Only the authorization code flow (response_type=code) is supported."
	case errors.Is(err, services.ErrUnauthorizedClient):
		message = "Unknown client. Register the client before authorizing."
	case errors.Is(err, services.ErrInvalidRedirectURI):
		message = "The redirect URI is not registered for this client."
	case errors.Is(err, services.ErrInvalidAuthRequest):
		message = "The authorization request is missing or has malformed parameters."
	default:
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"title":   "Authorization Failed",
			"message": "Could not validate the authorization request. Please try again.",
		})
		return
	}

	c.HTML(http.StatusBadRequest, "error.html", gin.H{
		"title":   "Invalid Authorization Request",
		"message": message,
	})
}
