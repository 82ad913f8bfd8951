package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// obtainCode walks register → authorize → form submit and returns the code
// from the redirect, plus the API key used.
func obtainCode(t *testing.T, app *testApp) (code, apiKey, clientID string) {
	t.Helper()
	ctx := context.Background()

	clientID = app.registerClient(t, []string{"https://client/cb"})
	_, apiKey, err := app.users.Register(ctx, "500", "tester")
	require.NoError(t, err)

	form := authorizeQuery(clientID, "https://client/cb", "xyz")
	form.Set("api_key", apiKey)
	w := app.postForm(t, "/authorize", form)
	require.Equal(t, http.StatusFound, w.Code)

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	code = location.Query().Get("code")
	require.NotEmpty(t, code)
	return code, apiKey, clientID
}

func exchangeForm(code, verifier string) url.Values {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	return form
}

func TestTokenEndpointFullFlow(t *testing.T) {
	app := newTestApp(t, nil)
	code, _, _ := obtainCode(t, app)

	w := app.postForm(t, "/token", exchangeForm(code, testVerifier))
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeJSON(t, w)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])
	assert.Equal(t, "Bearer", body["token_type"])
	assert.Equal(t, float64(3600), body["expires_in"])
	assert.Equal(t, "mcp:tools", body["scope"])

	// The access token works against the protected resource.
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+body["access_token"].(string))
	resp := httptest.NewRecorder()
	app.router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"discord_user_id":"500"`)

	// Replaying the same code is invalid_grant.
	w = app.postForm(t, "/token", exchangeForm(code, testVerifier))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_grant", decodeJSON(t, w)["error"])
}

func TestTokenEndpointWrongVerifier(t *testing.T) {
	app := newTestApp(t, nil)
	code, _, _ := obtainCode(t, app)

	w := app.postForm(t, "/token", exchangeForm(code, "not-the-verifier"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_grant", decodeJSON(t, w)["error"])
}

func TestTokenEndpointMissingCode(t *testing.T) {
	app := newTestApp(t, nil)

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	w := app.postForm(t, "/token", form)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decodeJSON(t, w)["error"])
}

func TestTokenEndpointUnknownCode(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.postForm(t, "/token", exchangeForm("0000000000000000", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_grant", decodeJSON(t, w)["error"])
}

func TestTokenEndpointUnsupportedGrantType(t *testing.T) {
	app := newTestApp(t, nil)

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	w := app.postForm(t, "/token", form)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unsupported_grant_type", decodeJSON(t, w)["error"])
}

func TestRefreshTokenRotation(t *testing.T) {
	app := newTestApp(t, nil)
	code, _, _ := obtainCode(t, app)

	w := app.postForm(t, "/token", exchangeForm(code, testVerifier))
	require.Equal(t, http.StatusOK, w.Code)
	first := decodeJSON(t, w)

	refreshForm := func(token string) url.Values {
		form := url.Values{}
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", token)
		return form
	}

	// Rotate once.
	w = app.postForm(t, "/token", refreshForm(first["refresh_token"].(string)))
	require.Equal(t, http.StatusOK, w.Code)
	second := decodeJSON(t, w)
	assert.NotEqual(t, first["refresh_token"], second["refresh_token"])

	// The old refresh token is dead, even for a retry.
	w = app.postForm(t, "/token", refreshForm(first["refresh_token"].(string)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_grant", decodeJSON(t, w)["error"])

	// The new one works once more.
	w = app.postForm(t, "/token", refreshForm(second["refresh_token"].(string)))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshTokenMissingParameter(t *testing.T) {
	app := newTestApp(t, nil)

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	w := app.postForm(t, "/token", form)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decodeJSON(t, w)["error"])
}

func TestRevokeAccessToken(t *testing.T) {
	app := newTestApp(t, nil)
	code, _, _ := obtainCode(t, app)

	w := app.postForm(t, "/token", exchangeForm(code, testVerifier))
	require.Equal(t, http.StatusOK, w.Code)
	pair := decodeJSON(t, w)
	accessToken := pair["access_token"].(string)

	form := url.Values{}
	form.Set("token", accessToken)
	form.Set("token_type_hint", "access_token")
	w = app.postForm(t, "/revoke", form)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	// The revoked token no longer reaches the resource.
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp := httptest.NewRecorder()
	app.router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	// The paired refresh token died too.
	refreshForm := url.Values{}
	refreshForm.Set("grant_type", "refresh_token")
	refreshForm.Set("refresh_token", pair["refresh_token"].(string))
	w = app.postForm(t, "/token", refreshForm)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRevokeUnknownTokenStillSucceeds(t *testing.T) {
	app := newTestApp(t, nil)

	form := url.Values{}
	form.Set("token", "never-issued")
	w := app.postForm(t, "/revoke", form)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestRevokeMissingToken(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.postForm(t, "/revoke", url.Values{})
	assert.Equal(t, http.StatusOK, w.Code)
}
