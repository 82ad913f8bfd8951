package core

import "context"

// Identity is the upstream account a user proved control of.
type Identity struct {
	UserID   string // stable upstream account ID (Discord snowflake)
	Username string
}

// IdentityProvider is the upstream OAuth provider used to establish user
// identity during the /authorize flow.
type IdentityProvider interface {
	// AuthURL returns the upstream authorization URL carrying state.
	AuthURL(state string) string

	// Exchange redeems the upstream code and fetches the user profile.
	Exchange(ctx context.Context, code string) (*Identity, error)

	Name() string
}
