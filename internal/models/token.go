package models

import "time"

// OAuthToken is one access/refresh pair issued from a single authorization.
// Both tokens are stored as SHA-256 hashes in the same row, so revoking the
// row kills the whole pair. Refresh rotation never updates a row in place: it
// revokes the old row and inserts a new one.
type OAuthToken struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	AccessTokenHash  string `gorm:"uniqueIndex;not null"`
	RefreshTokenHash string `gorm:"uniqueIndex;not null"`

	ClientID string `gorm:"not null;index"` // FK → OAuthClient.ClientID
	UserID   uint   `gorm:"not null;index"` // FK → User.ID

	Scope string `gorm:"not null"` // space-separated scopes

	ExpiresAt        time.Time // access token expiry
	RefreshExpiresAt time.Time
	Revoked          bool `gorm:"not null;default:false;index"`
	CreatedAt        time.Time
}

func (t *OAuthToken) IsAccessExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

func (t *OAuthToken) IsRefreshExpired() bool {
	return time.Now().After(t.RefreshExpiresAt)
}

func (OAuthToken) TableName() string {
	return "oauth_tokens"
}
