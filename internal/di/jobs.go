// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/cht-holly/chtholly-vault/internal/clientdata"
	"github.com/cht-holly/chtholly-vault/internal/config"
	"github.com/cht-holly/chtholly-vault/internal/reliability"
	"github.com/rs/zerolog"
)

const maintenanceSchedule = "0 0 3 * * *"

// RegisterJobs registers the background jobs with the scheduler.
// Returns JobInstances for running jobs on demand.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Scheduler == nil {
		return nil, fmt.Errorf("scheduler must be initialized first")
	}

	instances := &JobInstances{}

	// Expired provider responses and rates are swept; the caches only
	// evict on read otherwise.
	cleanup := clientdata.NewCleanupJob(log,
		container.MarketFetcher.Cache(),
		container.RateFetcher.Cache(),
		container.ExchangeRateClient.Cache(),
	)
	schedule := fmt.Sprintf("@every %s", cfg.CacheCleanup)
	if err := container.Scheduler.AddJob(schedule, cleanup); err != nil {
		return nil, err
	}
	instances.CacheCleanup = cleanup

	// Daily at 03:00: integrity check, WAL checkpoint and a local snapshot
	maintenance := reliability.NewMaintenanceJob(container.StateDB, cfg.BackupDir(), reliability.DefaultRetention, log)
	if err := container.Scheduler.AddJob(maintenanceSchedule, maintenance); err != nil {
		return nil, err
	}
	instances.StateMaintenance = maintenance

	log.Info().
		Str("cache_cleanup", schedule).
		Str("state_maintenance", maintenanceSchedule).
		Msg("Jobs registered")

	return instances, nil
}
