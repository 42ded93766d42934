package server

import (
	"context"
	"errors"
	"testing"

	"github.com/cht-holly/chtholly-vault/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMonitor_EmitsOnlyOnChange(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	bus := events.NewBus(log)
	manager := events.NewManager(bus, log)

	var received []*events.Event
	bus.Subscribe(events.SystemStatusChanged, func(event *events.Event) {
		received = append(received, event)
	})

	health := &fakeHealth{}
	state := &fakeState{}
	monitor := NewStatusMonitor(manager, newTestSystemHandlers(health, state), log)
	ctx := context.Background()

	assert.True(t, monitor.checkStatus(ctx), "first check always emits")
	assert.False(t, monitor.checkStatus(ctx))

	state.state.Error = "PROVIDER_UNAVAILABLE: down"
	assert.True(t, monitor.checkStatus(ctx))

	health.err = errors.New("disk I/O error")
	assert.True(t, monitor.checkStatus(ctx))

	require.Len(t, received, 3)
	last, ok := received[2].Data.(*events.SystemStatusData)
	require.True(t, ok)
	assert.Equal(t, "degraded", last.Status)
	assert.False(t, last.DatabaseOK)
	assert.Equal(t, "PROVIDER_UNAVAILABLE: down", last.LastError)
	assert.Equal(t, "status_monitor", received[2].Module)
}
