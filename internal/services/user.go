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
	ErrUserNotFound  = errors.New("user not found")
	ErrUserInactive  = errors.New("user is deactivated")
	ErrInvalidAPIKey = errors.New("invalid api key")
)

// UserService owns user lifecycle and API-key verification.
type UserService struct {
	store   *store.Store
	config  *config.Config
	metrics core.Recorder
}

func NewUserService(s *store.Store, cfg *config.Config, m core.Recorder) *UserService {
	return &UserService{
		store:   s,
		config:  cfg,
		metrics: m,
	}
}

// Register creates a user for the given platform identity and issues their
// API key. Registration is idempotent: if the user already exists, the
// existing record is returned with an empty plaintext key (keys are disclosed
// exactly once; existing users must regenerate).
func (s *UserService) Register(
	ctx context.Context,
	discordUserID, discordUsername string,
) (*models.User, string, error) {
	existing, err := s.store.GetUserByDiscordID(discordUserID)
	if err == nil {
		return existing, "", nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}

	plainKey, err := util.GenerateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate api key: %w", err)
	}

	user := &models.User{
		DiscordUserID:   discordUserID,
		DiscordUsername: discordUsername,
		APIKeyHash:      util.HashAPIKey(plainKey, s.config.APIKeyHashSalt),
		APIKeyScheme:    util.CurrentAPIKeyScheme,
		IsActive:        true,
	}
	if err := s.store.CreateUser(user); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[User] Registered user %s (hash %s...)", discordUserID, user.APIKeyHash[:8])
	return user, plainKey, nil
}

// RegenerateAPIKey replaces the user's key. The old hash is overwritten in
// the same update, so the previous key stops verifying immediately.
func (s *UserService) RegenerateAPIKey(
	ctx context.Context,
	discordUserID string,
) (string, error) {
	user, err := s.store.GetUserByDiscordID(discordUserID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	plainKey, err := util.GenerateAPIKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}

	hash := util.HashAPIKey(plainKey, s.config.APIKeyHashSalt)
	if err := s.store.UpdateAPIKeyHash(user.ID, hash, util.CurrentAPIKeyScheme); err != nil {
		return "", fmt.Errorf("failed to store api key: %w", err)
	}

	log.Printf("[User] Regenerated api key for user %s", discordUserID)
	return plainKey, nil
}

// Deactivate disables a user. Existing rows are kept; verification starts
// failing immediately. Returns false when no such user exists.
func (s *UserService) Deactivate(ctx context.Context, discordUserID string) (bool, error) {
	user, err := s.store.GetUserByDiscordID(discordUserID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := s.store.SetUserActive(user.ID, false); err != nil {
		return false, fmt.Errorf("failed to deactivate user: %w", err)
	}

	log.Printf("[User] Deactivated user %s", discordUserID)
	return true, nil
}

// VerifyAPIKey checks a plaintext key against the ordered hash strategies.
// A hit under a legacy strategy rewrites the stored hash to the current
// scheme before returning; the rewrite is conditional on the legacy hash so
// concurrent verifications migrate exactly once.
func (s *UserService) VerifyAPIKey(ctx context.Context, plainKey string) (*models.User, error) {
	start := time.Now()

	for _, strategy := range util.APIKeyStrategies {
		hash := strategy.Hash(plainKey, s.config.APIKeyHashSalt)

		user, err := s.store.GetUserByAPIKeyHash(hash)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				continue
			}
			s.metrics.RecordDatabaseQueryError("get_user_by_api_key_hash")
			return nil, fmt.Errorf("failed to look up api key: %w", err)
		}

		if !user.IsActive {
			s.metrics.RecordCredentialVerification("api_key", "inactive", time.Since(start))
			return nil, ErrUserInactive
		}

		if strategy.Migrate {
			currentHash := util.HashAPIKey(plainKey, s.config.APIKeyHashSalt)
			err := s.store.MigrateAPIKeyHash(user.ID, hash, currentHash, util.CurrentAPIKeyScheme)
			switch {
			case err == nil:
				user.APIKeyHash = currentHash
				user.APIKeyScheme = util.CurrentAPIKeyScheme
				s.metrics.RecordAPIKeyMigration()
				log.Printf("[User] Migrated api key hash for user %s to %s",
					user.DiscordUserID, util.CurrentAPIKeyScheme)
			case errors.Is(err, store.ErrHashAlreadyMigrated):
				// A concurrent request won the rewrite; nothing to do.
			default:
				// Verification still succeeded; migration retries on next use.
				log.Printf("[User] Failed to migrate api key hash for user %s: %v",
					user.DiscordUserID, err)
			}
		}

		s.touchUsage(user.ID)
		s.metrics.RecordCredentialVerification("api_key", "ok", time.Since(start))
		return user, nil
	}

	s.metrics.RecordCredentialVerification("api_key", "invalid", time.Since(start))
	return nil, ErrInvalidAPIKey
}

// GetByID returns the user backing a verified credential.
func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.GetUserByID(id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return user, nil
}

// TouchUsage bumps usage accounting for a verified credential. Bearer-token
// requests verify through the token store instead of VerifyAPIKey, so the
// middleware calls this directly.
func (s *UserService) TouchUsage(ctx context.Context, userID uint) {
	s.touchUsage(userID)
}

// touchUsage bumps usage accounting. Failures are logged, never surfaced:
// accounting must not fail the caller's request.
func (s *UserService) touchUsage(userID uint) {
	if err := s.store.TouchUsage(userID); err != nil {
		s.metrics.RecordDatabaseQueryError("touch_usage")
		log.Printf("[User] Failed to update usage for user %d: %v", userID, err)
	}
}
