package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/modules/portfolio"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StateSource exposes the portfolio service state
type StateSource interface {
	State() portfolio.State
}

// CacheClearer drops cached provider data
type CacheClearer interface {
	ClearCache()
}

// SystemStatusResponse represents the system status
type SystemStatusResponse struct {
	Status        string     `json:"status"` // healthy, degraded
	StartedAt     time.Time  `json:"started_at"`
	Uptime        string     `json:"uptime"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	DatabaseOK    bool       `json:"database_ok"`
	Holdings      int        `json:"holdings"`
	Refreshing    bool       `json:"refreshing"`
	Visible       bool       `json:"visible"`
	LastRefreshAt *time.Time `json:"last_refresh_at"`
	LastError     string     `json:"last_error,omitempty"`
	CPUPercent    float64    `json:"cpu_percent"`
	MemPercent    float64    `json:"mem_percent"`
	Goroutines    int        `json:"goroutines"`
	GoVersion     string     `json:"go_version"`
}

// SystemHandlers handles system monitoring and maintenance endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	stateDB     HealthChecker
	state       StateSource
	caches      []CacheClearer
	sampleStats func() (float64, float64)
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, stateDB HealthChecker, state StateSource, caches ...CacheClearer) *SystemHandlers {
	h := &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		stateDB:     stateDB,
		state:       state,
		caches:      caches,
	}
	h.sampleStats = h.getSystemStats
	return h
}

// GetSystemStatusSnapshot collects the current system status. A failing
// database health check marks the status degraded.
func (h *SystemHandlers) GetSystemStatusSnapshot(ctx context.Context) SystemStatusResponse {
	uptime := time.Since(h.startupTime)
	state := h.state.State()
	cpuPercent, memPercent := h.sampleStats()

	response := SystemStatusResponse{
		Status:        "healthy",
		StartedAt:     h.startupTime,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		DatabaseOK:    true,
		Holdings:      len(state.Entries),
		Refreshing:    state.Loading,
		Visible:       state.Visible,
		LastRefreshAt: state.LastRefreshAt,
		LastError:     state.Error,
		CPUPercent:    cpuPercent,
		MemPercent:    memPercent,
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
	}

	if err := h.stateDB.HealthCheck(ctx); err != nil {
		h.log.Warn().Err(err).Msg("State database health check failed")
		response.DatabaseOK = false
		response.Status = "degraded"
	}

	return response
}

// HandleSystemStatus returns the system status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")
	h.writeJSON(w, http.StatusOK, h.GetSystemStatusSnapshot(r.Context()))
}

// HandleClearCaches drops every cached provider response and rate
func (h *SystemHandlers) HandleClearCaches(w http.ResponseWriter, r *http.Request) {
	for _, cache := range h.caches {
		cache.ClearCache()
	}

	h.log.Info().Int("caches", len(h.caches)).Msg("Provider caches cleared")
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cleared": len(h.caches),
	})
}

// getSystemStats samples CPU and RAM usage percentages.
// The CPU sample window is kept short so the endpoint stays responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
