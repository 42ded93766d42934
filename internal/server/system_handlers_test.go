package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/domain"
	"github.com/cht-holly/chtholly-vault/internal/modules/portfolio"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHealth struct {
	err error
}

func (f *fakeHealth) HealthCheck(ctx context.Context) error {
	return f.err
}

type fakeState struct {
	state portfolio.State
}

func (f *fakeState) State() portfolio.State {
	return f.state
}

type countingCache struct {
	cleared int
}

func (c *countingCache) ClearCache() {
	c.cleared++
}

func newTestSystemHandlers(health HealthChecker, state StateSource, caches ...CacheClearer) *SystemHandlers {
	h := NewSystemHandlers(zerolog.New(nil).Level(zerolog.Disabled), health, state, caches...)
	h.sampleStats = func() (float64, float64) { return 12.5, 40 }
	return h
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) SystemStatusResponse {
	var response struct {
		Data SystemStatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response.Data
}

func TestSystemHandlers_HandleSystemStatus(t *testing.T) {
	refreshed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	state := &fakeState{state: portfolio.State{
		Entries:       make([]domain.PortfolioEntry, 3),
		Loading:       true,
		Visible:       true,
		LastRefreshAt: &refreshed,
		Error:         "RATE_LIMITED: slow down",
	}}

	tests := []struct {
		name           string
		healthErr      error
		expectedStatus string
		expectedDB     bool
	}{
		{name: "healthy", expectedStatus: "healthy", expectedDB: true},
		{name: "database down", healthErr: errors.New("database is locked"), expectedStatus: "degraded", expectedDB: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestSystemHandlers(&fakeHealth{err: tt.healthErr}, state)

			w := httptest.NewRecorder()
			h.HandleSystemStatus(w, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))

			require.Equal(t, http.StatusOK, w.Code)
			status := decodeStatus(t, w)
			assert.Equal(t, tt.expectedStatus, status.Status)
			assert.Equal(t, tt.expectedDB, status.DatabaseOK)
			assert.Equal(t, 3, status.Holdings)
			assert.True(t, status.Refreshing)
			assert.True(t, status.Visible)
			assert.Equal(t, "RATE_LIMITED: slow down", status.LastError)
			require.NotNil(t, status.LastRefreshAt)
			assert.True(t, refreshed.Equal(*status.LastRefreshAt))
			assert.Equal(t, 12.5, status.CPUPercent)
			assert.Equal(t, 40.0, status.MemPercent)
			assert.NotEmpty(t, status.GoVersion)
			assert.Positive(t, status.Goroutines)
		})
	}
}

func TestSystemHandlers_HandleClearCaches(t *testing.T) {
	market := &countingCache{}
	rates := &countingCache{}
	h := newTestSystemHandlers(&fakeHealth{}, &fakeState{}, market, rates)

	w := httptest.NewRecorder()
	h.HandleClearCaches(w, httptest.NewRequest(http.MethodPost, "/api/system/cache/clear", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, market.cleared)
	assert.Equal(t, 1, rates.cleared)

	var response map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, float64(2), response["data"]["cleared"])
}
