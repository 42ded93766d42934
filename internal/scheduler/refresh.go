package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// RefreshScheduler owns the single periodic price refresh entry
type RefreshScheduler struct {
	scheduler *Scheduler
	mu        sync.Mutex
	entry     cron.EntryID
	interval  time.Duration
	running   bool
	log       zerolog.Logger
}

// NewRefreshScheduler creates a refresh scheduler on top of s
func NewRefreshScheduler(s *Scheduler, log zerolog.Logger) *RefreshScheduler {
	return &RefreshScheduler{
		scheduler: s,
		log:       log.With().Str("component", "refresh_scheduler").Logger(),
	}
}

// Start runs fn every interval, replacing any previous refresh entry.
// The first tick fires one interval from now.
func (r *RefreshScheduler) Start(interval time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		r.scheduler.remove(r.entry)
	}
	r.entry = r.scheduler.every(interval, fn)
	r.interval = interval
	r.running = true

	r.log.Debug().Dur("interval", interval).Msg("Refresh schedule started")
}

// Stop removes the refresh entry. Stopping an idle scheduler is a no-op.
func (r *RefreshScheduler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.scheduler.remove(r.entry)
	r.running = false

	r.log.Debug().Msg("Refresh schedule stopped")
}

// Running reports whether a refresh entry is scheduled
func (r *RefreshScheduler) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Interval returns the period of the last Start
func (r *RefreshScheduler) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}
