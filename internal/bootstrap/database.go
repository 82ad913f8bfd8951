package bootstrap

import (
	"fmt"

	"github.com/go-mcpauth/mcpauth/internal/config"
	"github.com/go-mcpauth/mcpauth/internal/store"
)

// initializeDatabase creates and migrates the database connection
func initializeDatabase(cfg *config.Config) (*store.Store, error) {
	db, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}
