package clientdata

import (
	"github.com/rs/zerolog"
)

// Sweepable is a cache that can drop its expired entries.
type Sweepable interface {
	Name() string
	DeleteExpired() int
}

// CleanupJob removes expired entries from all registered caches.
// Reads already evict lazily; the job only bounds memory for keys nobody reads again.
type CleanupJob struct {
	caches []Sweepable
	log    zerolog.Logger
}

// NewCleanupJob creates a new client data cleanup job.
func NewCleanupJob(log zerolog.Logger, caches ...Sweepable) *CleanupJob {
	return &CleanupJob{
		caches: caches,
		log:    log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// Register adds a cache to the sweep list.
func (j *CleanupJob) Register(cache Sweepable) {
	j.caches = append(j.caches, cache)
}

// Run executes one sweep.
func (j *CleanupJob) Run() error {
	j.Sweep()
	return nil
}

// Sweep deletes expired entries and returns the total removed.
func (j *CleanupJob) Sweep() int {
	total := 0
	for _, cache := range j.caches {
		removed := cache.DeleteExpired()
		if removed > 0 {
			j.log.Debug().
				Str("cache", cache.Name()).
				Int("deleted", removed).
				Msg("Cleaned up expired cache entries")
		}
		total += removed
	}

	if total > 0 {
		j.log.Info().Int("total_deleted", total).Msg("Client data cleanup completed")
	}
	return total
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}
