// Package di provides dependency injection for repository initialization.
package di

import (
	"fmt"

	"github.com/cht-holly/chtholly-vault/internal/events"
	"github.com/cht-holly/chtholly-vault/internal/localstate"
	"github.com/cht-holly/chtholly-vault/internal/modules/holdings"
	"github.com/cht-holly/chtholly-vault/internal/modules/settings"
	"github.com/rs/zerolog"
)

// InitializeRepositories loads the persisted document and builds the holdings
// repository and settings store from it. The event bus is created here since
// both emit on every mutation.
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.StateDB == nil {
		return fmt.Errorf("state database must be initialized first")
	}

	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	container.LocalState = localstate.NewRepository(container.StateDB.Conn(), log)
	doc, err := container.LocalState.Load()
	if err != nil {
		return fmt.Errorf("failed to load local state: %w", err)
	}

	container.HoldingsRepo = holdings.NewRepository(doc.Holdings, container.LocalState, container.EventManager, log)
	container.SettingsStore = settings.NewStore(doc.Settings, container.LocalState, container.EventManager, log)

	log.Info().
		Int("holdings", len(container.HoldingsRepo.All())).
		Str("currency", container.SettingsStore.Get().DisplayCurrency).
		Msg("Repositories initialized")

	return nil
}
