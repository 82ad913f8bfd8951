package util

import "github.com/go-mcpauth/mcpauth/internal/models"

// HashStrategy couples a scheme identifier with the function that produces it
// and a flag saying whether a match under it must be rewritten to the current
// scheme. Verification walks the list in order; adding a future scheme means
// prepending an entry and flagging the rest for migration.
type HashStrategy struct {
	Scheme  string
	Hash    func(key, salt string) string
	Migrate bool
}

// APIKeyStrategies is the ordered verification list for API keys: the current
// PBKDF2 scheme first, then the legacy unsalted SHA-256 scheme. Migration is
// one-way.
var APIKeyStrategies = []HashStrategy{
	{
		Scheme:  models.SchemePBKDF2,
		Hash:    HashAPIKey,
		Migrate: false,
	},
	{
		Scheme: models.SchemeSHA256,
		Hash: func(key, _ string) string {
			return SHA256Hex(key)
		},
		Migrate: true,
	},
}

// CurrentAPIKeyScheme is the scheme new keys and migrated keys are stored
// under.
const CurrentAPIKeyScheme = models.SchemePBKDF2
