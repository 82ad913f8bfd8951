package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-mcpauth/mcpauth/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func New(driver, dsn string) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto migrate
	if err := db.AutoMigrate(
		&models.User{},
		&models.OAuthClient{},
		&models.AuthorizationCode{},
		&models.OAuthToken{},
	); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// translateNotFound maps gorm's not-found error to the package sentinel.
func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}

// User operations

func (s *Store) CreateUser(user *models.User) error {
	return s.db.Create(user).Error
}

func (s *Store) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &user, nil
}

func (s *Store) GetUserByDiscordID(discordUserID string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("discord_user_id = ?", discordUserID).First(&user).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &user, nil
}

// GetUserByAPIKeyHash looks a user up by the exact stored hash. The hash
// column is unique-indexed, so this is an O(log n) equality lookup.
func (s *Store) GetUserByAPIKeyHash(hash string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("api_key_hash = ?", hash).First(&user).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &user, nil
}

// UpdateAPIKeyHash replaces a user's key hash unconditionally (regenerate).
func (s *Store) UpdateAPIKeyHash(userID uint, hash, scheme string) error {
	return s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"api_key_hash":   hash,
			"api_key_scheme": scheme,
		}).Error
}

// MigrateAPIKeyHash rewrites a legacy hash to the current scheme. The update
// is conditional on the stored hash still being the legacy one, so concurrent
// verifications of the same key migrate exactly once.
func (s *Store) MigrateAPIKeyHash(userID uint, legacyHash, newHash, scheme string) error {
	result := s.db.Model(&models.User{}).
		Where("id = ? AND api_key_hash = ?", userID, legacyHash).
		Updates(map[string]any{
			"api_key_hash":   newHash,
			"api_key_scheme": scheme,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrHashAlreadyMigrated
	}
	return nil
}

func (s *Store) SetUserActive(userID uint, active bool) error {
	return s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_active", active).Error
}

// TouchUsage bumps usage accounting after a successful verification.
func (s *Store) TouchUsage(userID uint) error {
	return s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"last_used":   time.Now(),
			"usage_count": gorm.Expr("usage_count + 1"),
		}).Error
}

func (s *Store) CountActiveUsers() (int64, error) {
	var count int64
	err := s.db.Model(&models.User{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
}

// Client operations

func (s *Store) CreateClient(client *models.OAuthClient) error {
	return s.db.Create(client).Error
}

func (s *Store) GetClient(clientID string) (*models.OAuthClient, error) {
	var client models.OAuthClient
	if err := s.db.Where("client_id = ?", clientID).First(&client).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &client, nil
}

func (s *Store) CountClients() (int64, error) {
	var count int64
	err := s.db.Model(&models.OAuthClient{}).Count(&count).Error
	return count, err
}

// Authorization code operations

func (s *Store) CreateAuthorizationCode(code *models.AuthorizationCode) error {
	return s.db.Create(code).Error
}

func (s *Store) GetAuthorizationCodeByHash(codeHash string) (*models.AuthorizationCode, error) {
	var code models.AuthorizationCode
	if err := s.db.Where("code_hash = ?", codeHash).First(&code).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &code, nil
}

// MarkAuthorizationCodeUsed claims a code for exchange. The conditional
// update makes redemption atomic: of N concurrent exchanges exactly one sees
// RowsAffected == 1, the rest get ErrAuthCodeAlreadyUsed.
func (s *Store) MarkAuthorizationCodeUsed(id uint) error {
	result := s.db.Model(&models.AuthorizationCode{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", time.Now())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAuthCodeAlreadyUsed
	}
	return nil
}

func (s *Store) DeleteExpiredAuthorizationCodes() (int64, error) {
	result := s.db.Where("expires_at < ?", time.Now()).
		Delete(&models.AuthorizationCode{})
	return result.RowsAffected, result.Error
}

// Token operations

func (s *Store) CreateToken(token *models.OAuthToken) error {
	return s.db.Create(token).Error
}

func (s *Store) GetTokenByAccessHash(hash string) (*models.OAuthToken, error) {
	var token models.OAuthToken
	if err := s.db.Where("access_token_hash = ?", hash).First(&token).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &token, nil
}

func (s *Store) GetTokenByRefreshHash(hash string) (*models.OAuthToken, error) {
	var token models.OAuthToken
	if err := s.db.Where("refresh_token_hash = ?", hash).First(&token).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &token, nil
}

// RevokeToken marks a token pair revoked. The conditional update gives
// rotation single-winner semantics: a concurrent refresh of the same token
// gets ErrTokenAlreadyRevoked instead of silently double-rotating.
func (s *Store) RevokeToken(id uint) error {
	result := s.db.Model(&models.OAuthToken{}).
		Where("id = ? AND revoked = ?", id, false).
		Update("revoked", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTokenAlreadyRevoked
	}
	return nil
}

func (s *Store) RevokeTokensByUserID(userID uint) error {
	return s.db.Model(&models.OAuthToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
}

func (s *Store) DeleteExpiredTokens() (int64, error) {
	result := s.db.Where("refresh_expires_at < ?", time.Now()).
		Delete(&models.OAuthToken{})
	return result.RowsAffected, result.Error
}

func (s *Store) CountActiveTokens() (int64, error) {
	var count int64
	err := s.db.Model(&models.OAuthToken{}).
		Where("revoked = ? AND refresh_expires_at > ?", false, time.Now()).
		Count(&count).Error
	return count, err
}

// Health checks database connectivity.
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.Ping()
}

// DB exposes the underlying gorm handle for tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}
