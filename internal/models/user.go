package models

import "time"

// API key hash scheme identifiers stored in User.APIKeyScheme.
const (
	SchemePBKDF2 = "pbkdf2" // current scheme
	SchemeSHA256 = "sha256" // legacy scheme, migrated on first successful verify
)

// User is an end user identified by their chat-platform account. Each user
// holds at most one API key, stored only as a hash together with the scheme
// that produced it.
type User struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	DiscordUserID   string `gorm:"uniqueIndex;not null"` // Discord snowflake, stable identity
	DiscordUsername string `gorm:"not null"`

	APIKeyHash   string `gorm:"uniqueIndex;not null"` // hash of the key, never the plaintext
	APIKeyScheme string `gorm:"not null;default:'pbkdf2'"`

	IsActive   bool `gorm:"not null;default:true"`
	CreatedAt  time.Time
	LastUsed   *time.Time // Last successful credential verification
	UsageCount int64      `gorm:"not null;default:0"`
}

func (User) TableName() string {
	return "users"
}
