package models

import "time"

// AuthorizationCode stores OAuth 2.1 authorization codes. Codes are
// short-lived (default 10 minutes) and single-use; only the SHA-256 hash of
// the plaintext code is persisted.
type AuthorizationCode struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	CodeHash string `gorm:"uniqueIndex;not null"` // SHA256(plainCode)

	ClientID string `gorm:"not null;index"` // FK → OAuthClient.ClientID
	UserID   uint   `gorm:"not null;index"` // FK → User.ID

	RedirectURI string `gorm:"not null"`
	Scope       string `gorm:"not null"` // space-separated scopes

	// PKCE (RFC 7636)
	CodeChallenge       string `gorm:"default:''"` // empty = request carried no PKCE
	CodeChallengeMethod string `gorm:"default:''"` // "S256" or "plain"

	ExpiresAt time.Time
	UsedAt    *time.Time // Set atomically upon exchange; prevents replay
	CreatedAt time.Time
}

func (a *AuthorizationCode) IsExpired() bool {
	return time.Now().After(a.ExpiresAt)
}

func (a *AuthorizationCode) IsUsed() bool {
	return a.UsedAt != nil
}

func (AuthorizationCode) TableName() string {
	return "authorization_codes"
}
