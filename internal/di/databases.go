// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/cht-holly/chtholly-vault/internal/config"
	"github.com/cht-holly/chtholly-vault/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the local state database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// state.db - holdings and settings document (user-entered, so durable)
	stateDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileDurable,
		Name:    "state",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state database: %w", err)
	}

	if err := stateDB.Migrate(); err != nil {
		stateDB.Close()
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}
	container.StateDB = stateDB

	log.Info().Str("path", stateDB.Path()).Msg("State database initialized")

	return container, nil
}
