package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrAuthCodeAlreadyUsed is returned by MarkAuthorizationCodeUsed when the
	// code was already consumed by a concurrent request (0 rows updated).
	ErrAuthCodeAlreadyUsed = errors.New("authorization code already used")

	// ErrTokenAlreadyRevoked is returned by RevokeToken when the row was
	// already revoked, e.g. by a concurrent refresh of the same token.
	ErrTokenAlreadyRevoked = errors.New("token already revoked")

	// ErrHashAlreadyMigrated is returned by MigrateAPIKeyHash when the stored
	// hash no longer matches the expected legacy hash (another request
	// migrated it first).
	ErrHashAlreadyMigrated = errors.New("api key hash already migrated")
)
