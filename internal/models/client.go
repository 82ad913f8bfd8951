package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringArray stores a []string as a JSON column, portable across sqlite and
// postgres.
type StringArray []string

// Scan implements sql.Scanner
func (s *StringArray) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported type for StringArray: %T", value)
	}
}

// Value implements driver.Valuer
func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Contains reports whether the array holds the exact string.
func (s StringArray) Contains(value string) bool {
	for _, item := range s {
		if item == value {
			return true
		}
	}
	return false
}

// OAuthClient is a dynamically registered OAuth client (RFC 7591). All
// clients are public: no secret is issued and the token endpoint performs no
// client authentication (token_endpoint_auth_method=none).
type OAuthClient struct {
	ClientID     string      `gorm:"primaryKey;size:36"` // Generated UUID
	Name         string      `gorm:"not null"`
	RedirectURIs StringArray `gorm:"type:text;not null"`
	CreatedAt    time.Time
}

func (OAuthClient) TableName() string {
	return "oauth_clients"
}

// AllowsRedirectURI reports whether the URI exactly matches a registered one.
// Matching is byte-exact; no prefix or wildcard rules.
func (c *OAuthClient) AllowsRedirectURI(uri string) bool {
	return c.RedirectURIs.Contains(uri)
}
