// Package di provides dependency injection wiring and initialization.
package di

import (
	"context"
	"fmt"

	"github.com/cht-holly/chtholly-vault/internal/config"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations:
// 1. Initialize the state database
// 2. Load the persisted document into the repositories
// 3. Initialize clients and services
// 4. Register jobs
// Nothing runs until Start is called.
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := InitializeRepositories(container, log); err != nil {
		container.StateDB.Close()
		return nil, nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := InitializeServices(container, cfg, log); err != nil {
		container.StateDB.Close()
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	jobs, err := RegisterJobs(container, cfg, log)
	if err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, jobs, nil
}

// Start starts the scheduler and the portfolio service. ctx bounds the
// service's background refreshes.
func (c *Container) Start(ctx context.Context) {
	c.Scheduler.Start()
	c.PortfolioService.Start(ctx)
}

// ResetAll wipes every holding, restores default settings, drops prices and
// history, and removes the persisted document. The refresh timer stays off
// until auto-refresh or visibility turns it back on.
func (c *Container) ResetAll(ctx context.Context) error {
	if err := c.HoldingsRepo.ImportAll(nil); err != nil {
		return fmt.Errorf("failed to clear holdings: %w", err)
	}
	c.SettingsStore.Reset(ctx)
	c.PortfolioService.Reset()

	if err := c.LocalState.Clear(); err != nil {
		return fmt.Errorf("failed to clear local state: %w", err)
	}
	return nil
}

// Close stops background work and releases every resource, in reverse
// order of creation. Safe to call on a partially started container.
func (c *Container) Close() error {
	if c.PortfolioService != nil {
		c.PortfolioService.Stop()
	}
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.MarketFetcher != nil {
		c.MarketFetcher.Close()
	}
	if c.RateFetcher != nil {
		c.RateFetcher.Close()
	}
	if c.StateDB != nil {
		return c.StateDB.Close()
	}
	return nil
}
