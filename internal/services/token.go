package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-mcpauth/mcpauth/internal/config"
	"github.com/go-mcpauth/mcpauth/internal/core"
	"github.com/go-mcpauth/mcpauth/internal/models"
	"github.com/go-mcpauth/mcpauth/internal/store"
	"github.com/go-mcpauth/mcpauth/internal/util"
)

var (
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// TokenPair carries the plaintext tokens of one issuance. The plaintext
// exists only in this struct on its way to the response body; the store keeps
// hashes.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64 // access token lifetime in seconds
	Scope        string
}

// TokenService issues, rotates, verifies and revokes access/refresh token
// pairs. A pair lives in one row; rotation revokes the row and inserts a new
// one.
type TokenService struct {
	store   *store.Store
	config  *config.Config
	metrics core.Recorder
}

func NewTokenService(s *store.Store, cfg *config.Config, m core.Recorder) *TokenService {
	return &TokenService{
		store:   s,
		config:  cfg,
		metrics: m,
	}
}

// Issue generates a fresh access/refresh pair for the given session.
func (s *TokenService) Issue(
	ctx context.Context,
	clientID string,
	userID uint,
	scope string,
) (*TokenPair, error) {
	start := time.Now()

	accessToken, err := util.GenerateSecretHex()
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := util.GenerateSecretHex()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	record := &models.OAuthToken{
		AccessTokenHash:  util.SHA256Hex(accessToken),
		RefreshTokenHash: util.SHA256Hex(refreshToken),
		ClientID:         clientID,
		UserID:           userID,
		Scope:            scope,
		ExpiresAt:        time.Now().Add(s.config.AccessTokenExpiration),
		RefreshExpiresAt: time.Now().Add(s.config.RefreshTokenExpiration),
	}
	if err := s.store.CreateToken(record); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	s.metrics.RecordTokenIssued("authorization_code", time.Since(start))
	log.Printf("[Token] Issued token pair for client %s user %d (access hash %s...)",
		clientID, userID, record.AccessTokenHash[:8])

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.config.AccessTokenExpiration.Seconds()),
		Scope:        scope,
	}, nil
}

// Refresh rotates a refresh token: the old row is revoked and a brand-new
// pair is issued. The revocation is a conditional update, so a concurrent
// refresh of the same token gets ErrInvalidRefreshToken — old refresh tokens
// never work twice, not even for a legitimate retry.
func (s *TokenService) Refresh(ctx context.Context, plainRefresh string) (*TokenPair, error) {
	record, err := s.store.GetTokenByRefreshHash(util.SHA256Hex(plainRefresh))
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			s.metrics.RecordTokenRefresh(false)
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	if record.Revoked || record.IsRefreshExpired() {
		s.metrics.RecordTokenRefresh(false)
		return nil, ErrInvalidRefreshToken
	}

	if err := s.store.RevokeToken(record.ID); err != nil {
		if errors.Is(err, store.ErrTokenAlreadyRevoked) {
			s.metrics.RecordTokenRefresh(false)
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to revoke rotated token: %w", err)
	}

	pair, err := s.Issue(ctx, record.ClientID, record.UserID, record.Scope)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTokenRefresh(true)
	return pair, nil
}

// VerifyAccessToken resolves a bearer access token to its token row.
func (s *TokenService) VerifyAccessToken(
	ctx context.Context,
	plainAccess string,
) (*models.OAuthToken, error) {
	record, err := s.store.GetTokenByAccessHash(util.SHA256Hex(plainAccess))
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrInvalidAccessToken
		}
		return nil, fmt.Errorf("failed to look up access token: %w", err)
	}

	if record.Revoked || record.IsAccessExpired() {
		return nil, ErrInvalidAccessToken
	}

	return record, nil
}

// RevokeByValue revokes the pair matching the presented token value, trying
// the access hash first, then the refresh hash. Both tokens of the pair die
// together. Returns false when nothing matched; per RFC 7009 callers treat
// that as success.
func (s *TokenService) RevokeByValue(ctx context.Context, plainToken string) (bool, error) {
	hash := util.SHA256Hex(plainToken)

	record, err := s.store.GetTokenByAccessHash(hash)
	if err != nil {
		if !errors.Is(err, store.ErrRecordNotFound) {
			return false, fmt.Errorf("failed to look up token: %w", err)
		}
		record, err = s.store.GetTokenByRefreshHash(hash)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				s.metrics.RecordTokenRevoked(false)
				return false, nil
			}
			return false, fmt.Errorf("failed to look up token: %w", err)
		}
	}

	if err := s.store.RevokeToken(record.ID); err != nil {
		if errors.Is(err, store.ErrTokenAlreadyRevoked) {
			// Idempotent: revoking twice is still success.
			s.metrics.RecordTokenRevoked(true)
			return true, nil
		}
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}

	s.metrics.RecordTokenRevoked(true)
	log.Printf("[Token] Revoked token pair %d", record.ID)
	return true, nil
}
