package server

import (
	"context"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/events"
	"github.com/rs/zerolog"
)

// StatusMonitor periodically checks the system status and emits an event
// when it changes.
type StatusMonitor struct {
	eventManager   *events.Manager
	systemHandlers *SystemHandlers
	log            zerolog.Logger

	// Previous state; CPU and memory never count as a change
	last *events.SystemStatusData
}

// NewStatusMonitor creates a new status monitor
func NewStatusMonitor(eventManager *events.Manager, systemHandlers *SystemHandlers, log zerolog.Logger) *StatusMonitor {
	return &StatusMonitor{
		eventManager:   eventManager,
		systemHandlers: systemHandlers,
		log:            log.With().Str("component", "status_monitor").Logger(),
	}
}

// Start begins periodic status monitoring until ctx is cancelled
func (m *StatusMonitor) Start(ctx context.Context, interval time.Duration) {
	go m.monitor(ctx, interval)
}

func (m *StatusMonitor) monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.checkStatus(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkStatus(ctx)
		}
	}
}

// checkStatus emits SystemStatusChanged when the status differs from the
// previous check. Returns whether an event was emitted.
func (m *StatusMonitor) checkStatus(ctx context.Context) bool {
	snapshot := m.systemHandlers.GetSystemStatusSnapshot(ctx)
	current := &events.SystemStatusData{
		Status:     snapshot.Status,
		DatabaseOK: snapshot.DatabaseOK,
		Refreshing: snapshot.Refreshing,
		LastError:  snapshot.LastError,
		CPUPercent: snapshot.CPUPercent,
		MemPercent: snapshot.MemPercent,
	}

	if m.last != nil &&
		m.last.Status == current.Status &&
		m.last.DatabaseOK == current.DatabaseOK &&
		m.last.Refreshing == current.Refreshing &&
		m.last.LastError == current.LastError {
		return false
	}
	m.last = current

	m.log.Debug().Str("status", current.Status).Msg("System status changed")
	if m.eventManager != nil {
		m.eventManager.EmitTyped("status_monitor", current)
	}
	return true
}
