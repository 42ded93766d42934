// Package di provides dependency injection for service initialization.
package di

import (
	"fmt"

	"github.com/cht-holly/chtholly-vault/internal/clients/coingecko"
	"github.com/cht-holly/chtholly-vault/internal/clients/exchangerate"
	"github.com/cht-holly/chtholly-vault/internal/clients/fetch"
	"github.com/cht-holly/chtholly-vault/internal/config"
	"github.com/cht-holly/chtholly-vault/internal/modules/holdings"
	"github.com/cht-holly/chtholly-vault/internal/modules/portfolio"
	"github.com/cht-holly/chtholly-vault/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// InitializeServices creates the provider clients, the schedulers and the
// portfolio service, and connects the repositories to the service.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.HoldingsRepo == nil || container.SettingsStore == nil {
		return fmt.Errorf("repositories must be initialized first")
	}

	// ==========================================
	// Metrics
	// ==========================================
	container.MetricsRegistry = prometheus.NewRegistry()
	container.MetricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	// One collector set for both fetch clients; the client name is a label
	container.FetchMetrics = fetch.NewMetrics(container.MetricsRegistry)

	// ==========================================
	// Provider clients
	// ==========================================
	container.MarketFetcher = fetch.NewClient(fetch.Options{
		Name:         "coingecko",
		RequestDelay: cfg.RequestDelay,
		Timeout:      cfg.HTTPTimeout,
		Metrics:      container.FetchMetrics,
	}, log)

	container.RateFetcher = fetch.NewClient(fetch.Options{
		Name:         "yahoo_fx",
		RequestDelay: cfg.RequestDelay,
		Timeout:      cfg.HTTPTimeout,
		Headers:      map[string]string{"User-Agent": exchangerate.UserAgent},
		Metrics:      container.FetchMetrics,
	}, log)

	container.MarketDataClient = coingecko.NewClient(cfg.MarketDataBaseURL, container.MarketFetcher, log)
	container.ExchangeRateClient = exchangerate.NewClient(cfg.ExchangeRateBaseURL, container.RateFetcher, log)

	// ==========================================
	// Scheduling
	// ==========================================
	container.Scheduler = scheduler.New(log)
	container.RefreshScheduler = scheduler.NewRefreshScheduler(container.Scheduler, log)

	// ==========================================
	// Portfolio service
	// ==========================================
	container.PortfolioService = portfolio.NewService(
		container.HoldingsRepo,
		container.SettingsStore,
		container.MarketDataClient,
		container.ExchangeRateClient,
		container.RefreshScheduler,
		container.EventManager,
		log,
	)

	container.HoldingsRepo.OnChange(func(change holdings.Change) {
		container.PortfolioService.HoldingsChanged(change.Holdings)
	})
	container.SettingsStore.OnChange(container.PortfolioService.SettingsChanged)

	if !cfg.StartVisible {
		container.PortfolioService.SetVisible(false)
	}

	log.Info().
		Str("market_data", cfg.MarketDataBaseURL).
		Str("exchange_rates", cfg.ExchangeRateBaseURL).
		Dur("request_delay", cfg.RequestDelay).
		Msg("Services initialized")

	return nil
}
