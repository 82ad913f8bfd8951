package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-mcpauth/mcpauth/internal/cache"
	"github.com/go-mcpauth/mcpauth/internal/config"
	"github.com/go-mcpauth/mcpauth/internal/core"
	"github.com/go-mcpauth/mcpauth/internal/models"
	"github.com/go-mcpauth/mcpauth/internal/store"
	"github.com/go-mcpauth/mcpauth/internal/util"
)

// Authorization flow errors. The first group maps one-to-one onto OAuth
// error codes at the handler boundary.
var (
	ErrInvalidAuthRequest      = errors.New("invalid_request")
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrUnauthorizedClient      = errors.New("unauthorized_client")
	ErrInvalidRedirectURI      = errors.New("invalid redirect_uri")

	ErrAuthCodeNotFound    = errors.New("authorization code not found")
	ErrAuthCodeExpired     = errors.New("authorization code expired")
	ErrAuthCodeAlreadyUsed = errors.New("authorization code already used")
	ErrInvalidCodeVerifier = errors.New("invalid code_verifier")

	ErrSessionExpired  = errors.New("authorization session expired")
	ErrUpstreamFailed  = errors.New("upstream authorization failed")
	ErrNoUpstreamIdP   = errors.New("no upstream identity provider configured")
	ErrPendingInternal = errors.New("pending authorization store unavailable")
)

// AuthorizationRequest holds validated parameters of an /authorize request.
type AuthorizationRequest struct {
	Client              *models.OAuthClient
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizationService manages the OAuth 2.1 authorization-code flow:
// request validation, the upstream IdP round trip, and single-use code
// issuance and exchange.
type AuthorizationService struct {
	store    *store.Store
	config   *config.Config
	pending  cache.Cache[models.PendingAuthorization]
	provider core.IdentityProvider // nil when Discord is not configured
	users    *UserService
	metrics  core.Recorder
}

func NewAuthorizationService(
	s *store.Store,
	cfg *config.Config,
	pending cache.Cache[models.PendingAuthorization],
	provider core.IdentityProvider,
	users *UserService,
	m core.Recorder,
) *AuthorizationService {
	return &AuthorizationService{
		store:    s,
		config:   cfg,
		pending:  pending,
		provider: provider,
		users:    users,
		metrics:  m,
	}
}

// UpstreamConfigured reports whether the delegated upstream login flow is
// available.
func (s *AuthorizationService) UpstreamConfigured() bool {
	return s.provider != nil
}

// ValidateAuthorizationRequest checks the initial /authorize parameters.
func (s *AuthorizationService) ValidateAuthorizationRequest(
	ctx context.Context,
	clientID, redirectURI, responseType, scope, state, codeChallenge, codeChallengeMethod string,
) (*AuthorizationRequest, error) {
	// 1. response_type must be "code"
	if responseType != "code" {
		s.metrics.RecordAuthorizationRequest("unsupported_response_type")
		return nil, ErrUnsupportedResponseType
	}

	// 2. client_id is required
	if clientID == "" {
		s.metrics.RecordAuthorizationRequest("invalid_request")
		return nil, ErrInvalidAuthRequest
	}

	// 3. Client must be registered
	client, err := s.store.GetClient(clientID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			s.metrics.RecordAuthorizationRequest("unauthorized_client")
			return nil, ErrUnauthorizedClient
		}
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}

	// 4. A supplied redirect_uri must exactly match a registered one. An
	// empty redirect_uri is allowed: the code is then shown on the success
	// page for manual copy.
	if redirectURI != "" && !client.AllowsRedirectURI(redirectURI) {
		s.metrics.RecordAuthorizationRequest("invalid_redirect_uri")
		return nil, ErrInvalidRedirectURI
	}

	// 5. PKCE method, when present, must be S256 or plain. A challenge
	// without a method defaults to plain per RFC 7636.
	if codeChallengeMethod != "" &&
		codeChallengeMethod != "S256" && codeChallengeMethod != "plain" {
		s.metrics.RecordAuthorizationRequest("invalid_request")
		return nil, ErrInvalidAuthRequest
	}
	if codeChallenge != "" && codeChallengeMethod == "" {
		codeChallengeMethod = "plain"
	}
	if codeChallenge == "" {
		codeChallengeMethod = ""
	}

	s.metrics.RecordAuthorizationRequest("ok")
	return &AuthorizationRequest{
		Client:              client,
		RedirectURI:         redirectURI,
		Scope:               scope,
		State:               state,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
	}, nil
}

// BeginUpstream stores a PendingAuthorization under a fresh opaque state and
// returns the upstream authorize URL to redirect the user-agent to.
func (s *AuthorizationService) BeginUpstream(
	ctx context.Context,
	req *AuthorizationRequest,
) (string, error) {
	if s.provider == nil {
		return "", ErrNoUpstreamIdP
	}

	state, err := util.GenerateSecretHex()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	pending := models.PendingAuthorization{
		ClientID:            req.Client.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		State:               req.State,
		CreatedAt:           time.Now(),
	}
	if err := s.pending.Set(ctx, state, pending, s.config.PendingAuthTTL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPendingInternal, err)
	}

	return s.provider.AuthURL(state), nil
}

// CallbackResult is what the upstream callback resolves to: the original
// request parameters plus the freshly issued local code.
type CallbackResult struct {
	Pending models.PendingAuthorization
	User    *models.User
	Code    string // plaintext authorization code
}

// CompleteUpstream consumes the pending record for state, exchanges the
// upstream code, resolves the local user and issues a local authorization
// code. The pending record is deleted only after full success, so a failed
// exchange leaves an unused record that simply expires.
func (s *AuthorizationService) CompleteUpstream(
	ctx context.Context,
	state, upstreamCode string,
) (*CallbackResult, error) {
	if s.provider == nil {
		return nil, ErrNoUpstreamIdP
	}

	pending, err := s.pending.Get(ctx, state)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrPendingInternal, err)
	}

	upstreamStart := time.Now()
	identity, err := s.provider.Exchange(ctx, upstreamCode)
	if err != nil {
		s.metrics.RecordUpstreamCall("exchange", false, time.Since(upstreamStart))
		log.Printf("[Authorization] Upstream exchange failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailed, err)
	}
	s.metrics.RecordUpstreamCall("exchange", true, time.Since(upstreamStart))

	// Code-flow users authenticate with OAuth tokens; the one-time API key
	// of a newly created user is deliberately discarded here.
	user, _, err := s.users.Register(ctx, identity.UserID, identity.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	plainCode, err := s.IssueCode(
		ctx,
		pending.ClientID,
		user.ID,
		pending.RedirectURI,
		pending.Scope,
		pending.CodeChallenge,
		pending.CodeChallengeMethod,
	)
	if err != nil {
		return nil, err
	}

	if err := s.pending.Delete(ctx, state); err != nil {
		// The record will expire on its own; the login already succeeded.
		log.Printf("[Authorization] Failed to delete pending state: %v", err)
	}

	return &CallbackResult{
		Pending: pending,
		User:    user,
		Code:    plainCode,
	}, nil
}

// IssueCode generates a single-use authorization code and persists its hash.
// Returns the plaintext code for the redirect.
func (s *AuthorizationService) IssueCode(
	ctx context.Context,
	clientID string,
	userID uint,
	redirectURI, scope, codeChallenge, codeChallengeMethod string,
) (string, error) {
	plainCode, err := util.GenerateSecretHex()
	if err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}

	record := &models.AuthorizationCode{
		CodeHash:            util.SHA256Hex(plainCode),
		ClientID:            clientID,
		UserID:              userID,
		RedirectURI:         redirectURI,
		Scope:               scope,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
		ExpiresAt:           time.Now().Add(s.config.AuthCodeExpiration),
	}
	if err := s.store.CreateAuthorizationCode(record); err != nil {
		return "", fmt.Errorf("failed to save authorization code: %w", err)
	}

	s.metrics.RecordCodeIssued()
	log.Printf("[Authorization] Issued code for client %s user %d (hash %s...)",
		clientID, userID, record.CodeHash[:8])
	return plainCode, nil
}

// ExchangeCode validates a plaintext code and claims it. The claim is a
// conditional update, so concurrent redemptions of the same code yield
// exactly one success.
func (s *AuthorizationService) ExchangeCode(
	ctx context.Context,
	plainCode, codeVerifier string,
) (*models.AuthorizationCode, error) {
	start := time.Now()

	record, err := s.store.GetAuthorizationCodeByHash(util.SHA256Hex(plainCode))
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			s.metrics.RecordCodeExchange("not_found", time.Since(start))
			return nil, ErrAuthCodeNotFound
		}
		return nil, fmt.Errorf("failed to look up authorization code: %w", err)
	}

	if record.IsUsed() {
		s.metrics.RecordCodeExchange("already_used", time.Since(start))
		return nil, ErrAuthCodeAlreadyUsed
	}
	if record.IsExpired() {
		s.metrics.RecordCodeExchange("expired", time.Since(start))
		return nil, ErrAuthCodeExpired
	}

	// PKCE is verified only when the original request carried a challenge.
	if record.CodeChallenge != "" {
		if !verifyPKCE(record.CodeChallenge, record.CodeChallengeMethod, codeVerifier) {
			s.metrics.RecordCodeExchange("pkce_mismatch", time.Since(start))
			return nil, ErrInvalidCodeVerifier
		}
	}

	// Claim the code atomically; of N concurrent exchanges one wins.
	now := time.Now()
	if err := s.store.MarkAuthorizationCodeUsed(record.ID); err != nil {
		if errors.Is(err, store.ErrAuthCodeAlreadyUsed) {
			s.metrics.RecordCodeExchange("already_used", time.Since(start))
			return nil, ErrAuthCodeAlreadyUsed
		}
		return nil, fmt.Errorf("failed to mark code as used: %w", err)
	}
	record.UsedAt = &now // Reflect DB state in the returned struct

	s.metrics.RecordCodeExchange("ok", time.Since(start))
	return record, nil
}

// verifyPKCE validates code_verifier against the stored code_challenge.
func verifyPKCE(codeChallenge, method, codeVerifier string) bool {
	if codeVerifier == "" {
		return false
	}
	switch strings.ToUpper(method) {
	case "S256":
		sum := sha256.Sum256([]byte(codeVerifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return util.ConstantTimeEqual(computed, codeChallenge)
	case "PLAIN", "":
		return util.ConstantTimeEqual(codeVerifier, codeChallenge)
	default:
		return false
	}
}
