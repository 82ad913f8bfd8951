package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-mcpauth/mcpauth/internal/models"
	"github.com/go-mcpauth/mcpauth/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPKCEVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

func s256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func TestValidateAuthorizationRequest(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	client := registerTestClient(t, env)

	req, err := env.authz.ValidateAuthorizationRequest(
		ctx,
		client.ClientID, "https://client.example/cb", "code",
		"mcp:tools", "caller-state",
		s256Challenge(testPKCEVerifier), "S256",
	)
	require.NoError(t, err)
	assert.Equal(t, client.ClientID, req.Client.ClientID)
	assert.Equal(t, "caller-state", req.State)
	assert.Equal(t, "S256", req.CodeChallengeMethod)
}

func TestValidateAuthorizationRequestErrors(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	client := registerTestClient(t, env)

	tests := []struct {
		name         string
		clientID     string
		redirectURI  string
		responseType string
		method       string
		wantErr      error
	}{
		{
			name:         "wrong response_type",
			clientID:     client.ClientID,
			redirectURI:  "https://client.example/cb",
			responseType: "token",
			wantErr:      ErrUnsupportedResponseType,
		},
		{
			name:         "missing client_id",
			responseType: "code",
			wantErr:      ErrInvalidAuthRequest,
		},
		{
			name:         "unknown client",
			clientID:     "nonexistent",
			responseType: "code",
			wantErr:      ErrUnauthorizedClient,
		},
		{
			name:         "unregistered redirect_uri",
			clientID:     client.ClientID,
			redirectURI:  "https://evil.example/cb",
			responseType: "code",
			wantErr:      ErrInvalidRedirectURI,
		},
		{
			name:         "bad challenge method",
			clientID:     client.ClientID,
			redirectURI:  "https://client.example/cb",
			responseType: "code",
			method:       "S512",
			wantErr:      ErrInvalidAuthRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.authz.ValidateAuthorizationRequest(
				ctx,
				tt.clientID, tt.redirectURI, tt.responseType,
				"", "", "challenge", tt.method,
			)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestChallengeWithoutMethodDefaultsToPlain(t *testing.T) {
	env := setupTestEnv(t)
	client := registerTestClient(t, env)

	req, err := env.authz.ValidateAuthorizationRequest(
		context.Background(),
		client.ClientID, "", "code", "", "", "plain-challenge", "",
	)
	require.NoError(t, err)
	assert.Equal(t, "plain", req.CodeChallengeMethod)
}

func TestBeginAndCompleteUpstream(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	client := registerTestClient(t, env)

	req, err := env.authz.ValidateAuthorizationRequest(
		ctx,
		client.ClientID, "https://client.example/cb", "code",
		"mcp:tools", "caller-state",
		s256Challenge(testPKCEVerifier), "S256",
	)
	require.NoError(t, err)

	redirectURL, err := env.authz.BeginUpstream(ctx, req)
	require.NoError(t, err)

	parsed, err := url.Parse(redirectURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)
	assert.NotEqual(t, "caller-state", state, "upstream state must be fresh")

	result, err := env.authz.CompleteUpstream(ctx, state, "upstream-code")
	require.NoError(t, err)
	assert.Equal(t, "upstream-code", env.provider.lastCode)
	assert.Equal(t, "caller-state", result.Pending.State)
	assert.Equal(t, "discord-1000", result.User.DiscordUserID)
	assert.NotEmpty(t, result.Code)

	// The pending record is consumed: replaying the callback fails.
	_, err = env.authz.CompleteUpstream(ctx, state, "upstream-code")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestCompleteUpstreamUnknownState(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.authz.CompleteUpstream(context.Background(), "never-stored", "code")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestCompleteUpstreamExchangeFailure(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	client := registerTestClient(t, env)

	req, err := env.authz.ValidateAuthorizationRequest(
		ctx, client.ClientID, "", "code", "", "", "", "",
	)
	require.NoError(t, err)

	redirectURL, err := env.authz.BeginUpstream(ctx, req)
	require.NoError(t, err)
	parsed, _ := url.Parse(redirectURL)
	state := parsed.Query().Get("state")

	env.provider.err = errors.New("idp unreachable")
	_, err = env.authz.CompleteUpstream(ctx, state, "code")
	assert.ErrorIs(t, err, ErrUpstreamFailed)

	// Failure must not consume the pending record; a retry can still work.
	env.provider.err = nil
	_, err = env.authz.CompleteUpstream(ctx, state, "code")
	assert.NoError(t, err)
}

func issueTestCode(t *testing.T, env *testEnv, challenge, method string) (string, *models.User) {
	t.Helper()

	ctx := context.Background()
	client := registerTestClient(t, env)
	user, _, err := env.users.Register(ctx, "777", "grace")
	require.NoError(t, err)

	code, err := env.authz.IssueCode(
		ctx, client.ClientID, user.ID,
		"https://client.example/cb", "mcp:tools", challenge, method,
	)
	require.NoError(t, err)
	assert.Len(t, code, 64)
	return code, user
}

func TestExchangeCodeWithPKCE(t *testing.T) {
	env := setupTestEnv(t)
	code, user := issueTestCode(t, env, s256Challenge(testPKCEVerifier), "S256")

	record, err := env.authz.ExchangeCode(context.Background(), code, testPKCEVerifier)
	require.NoError(t, err)
	assert.Equal(t, user.ID, record.UserID)
	assert.True(t, record.IsUsed())
}

func TestExchangeCodeWrongVerifier(t *testing.T) {
	env := setupTestEnv(t)
	code, _ := issueTestCode(t, env, s256Challenge(testPKCEVerifier), "S256")

	_, err := env.authz.ExchangeCode(context.Background(), code, "wrong-verifier")
	assert.ErrorIs(t, err, ErrInvalidCodeVerifier)
}

func TestExchangeCodeMissingVerifier(t *testing.T) {
	env := setupTestEnv(t)
	code, _ := issueTestCode(t, env, s256Challenge(testPKCEVerifier), "S256")

	_, err := env.authz.ExchangeCode(context.Background(), code, "")
	assert.ErrorIs(t, err, ErrInvalidCodeVerifier)
}

func TestExchangeCodePlainMethod(t *testing.T) {
	env := setupTestEnv(t)
	code, _ := issueTestCode(t, env, "plain-secret", "plain")

	_, err := env.authz.ExchangeCode(context.Background(), code, "plain-secret")
	assert.NoError(t, err)
}

func TestExchangeCodeWithoutPKCE(t *testing.T) {
	env := setupTestEnv(t)
	code, _ := issueTestCode(t, env, "", "")

	// No challenge stored: verifier is not required.
	_, err := env.authz.ExchangeCode(context.Background(), code, "")
	assert.NoError(t, err)
}

func TestExchangeCodeSingleUse(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	code, _ := issueTestCode(t, env, s256Challenge(testPKCEVerifier), "S256")

	_, err := env.authz.ExchangeCode(ctx, code, testPKCEVerifier)
	require.NoError(t, err)

	_, err = env.authz.ExchangeCode(ctx, code, testPKCEVerifier)
	assert.ErrorIs(t, err, ErrAuthCodeAlreadyUsed)
}

func TestExchangeCodeConcurrentSingleWinner(t *testing.T) {
	env := setupTestEnv(t)
	code, _ := issueTestCode(t, env, s256Challenge(testPKCEVerifier), "S256")

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.authz.ExchangeCode(context.Background(), code, testPKCEVerifier)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrAuthCodeAlreadyUsed)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestExchangeCodeExpired(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	client := registerTestClient(t, env)
	user, _, err := env.users.Register(ctx, "888", "henry")
	require.NoError(t, err)

	// Insert an already-expired code directly.
	plainCode, err := util.GenerateSecretHex()
	require.NoError(t, err)
	record := &models.AuthorizationCode{
		CodeHash:    util.SHA256Hex(plainCode),
		ClientID:    client.ClientID,
		UserID:      user.ID,
		RedirectURI: "https://client.example/cb",
		Scope:       "mcp:tools",
		ExpiresAt:   time.Now().Add(-time.Second),
	}
	require.NoError(t, env.store.CreateAuthorizationCode(record))

	_, err = env.authz.ExchangeCode(ctx, plainCode, "")
	assert.ErrorIs(t, err, ErrAuthCodeExpired)
}

func TestExchangeCodeNotFound(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.authz.ExchangeCode(context.Background(), strings.Repeat("0", 64), "")
	assert.ErrorIs(t, err, ErrAuthCodeNotFound)
}
