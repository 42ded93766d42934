/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived component of the application and is
 * handed to the HTTP server, which builds its handlers from it.
 */
package di

import (
	"github.com/cht-holly/chtholly-vault/internal/clientdata"
	"github.com/cht-holly/chtholly-vault/internal/clients/coingecko"
	"github.com/cht-holly/chtholly-vault/internal/clients/exchangerate"
	"github.com/cht-holly/chtholly-vault/internal/clients/fetch"
	"github.com/cht-holly/chtholly-vault/internal/database"
	"github.com/cht-holly/chtholly-vault/internal/events"
	"github.com/cht-holly/chtholly-vault/internal/localstate"
	"github.com/cht-holly/chtholly-vault/internal/modules/holdings"
	"github.com/cht-holly/chtholly-vault/internal/modules/portfolio"
	"github.com/cht-holly/chtholly-vault/internal/modules/settings"
	"github.com/cht-holly/chtholly-vault/internal/reliability"
	"github.com/cht-holly/chtholly-vault/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
)

/**
 * Container holds all dependencies for the application.
 *
 * Layers:
 * - Database: the local state database
 * - Repositories: persisted document, holdings, settings
 * - Clients: rate-limited fetch clients and the two provider gateways
 * - Services: event bus, schedulers, portfolio synchronizer
 */
type Container struct {
	// Database
	StateDB *database.DB

	// Repositories
	LocalState    *localstate.Repository
	HoldingsRepo  *holdings.Repository
	SettingsStore *settings.Store

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Metrics
	MetricsRegistry *prometheus.Registry
	FetchMetrics    *fetch.Metrics

	// Clients
	MarketFetcher      *fetch.Client
	RateFetcher        *fetch.Client
	MarketDataClient   *coingecko.Client
	ExchangeRateClient *exchangerate.Client

	// Scheduling
	Scheduler        *scheduler.Scheduler
	RefreshScheduler *scheduler.RefreshScheduler

	// Services
	PortfolioService *portfolio.Service
}

// JobInstances holds the registered scheduler jobs so they can be run on demand
type JobInstances struct {
	CacheCleanup     *clientdata.CleanupJob
	StateMaintenance *reliability.MaintenanceJob
}
