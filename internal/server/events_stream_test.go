package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func readDataLine(t *testing.T, reader *bufio.Reader) map[string]interface{} {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload))
		return payload
	}
}

func TestParseTypes(t *testing.T) {
	assert.Equal(t, events.AllEventTypes, parseTypes(""))
	assert.Equal(t,
		[]events.EventType{events.HoldingsChanged, events.SettingsChanged},
		parseTypes(" holdings_changed,SETTINGS_CHANGED,,holdings_changed"),
	)
}

func TestEventsStream_SSE(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	bus := events.NewBus(log)
	handler := NewEventsStreamHandler(bus, log)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?types=holdings_changed", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	assert.Equal(t, "connected", readDataLine(t, reader)["type"])
	assert.Equal(t, 1, bus.SubscriberCount(events.HoldingsChanged))

	// Filtered out
	bus.Emit(events.SettingsChanged, "settings", &events.SettingsChangedData{Changed: []string{"theme"}})
	bus.Emit(events.HoldingsChanged, "holdings", &events.HoldingsChangedData{Action: "add", AssetID: "bitcoin", Count: 1})

	payload := readDataLine(t, reader)
	assert.Equal(t, "HOLDINGS_CHANGED", payload["type"])
	assert.Equal(t, "holdings", payload["module"])
	data, ok := payload["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "bitcoin", data["asset_id"])

	cancel()
	assert.Eventually(t, func() bool {
		return bus.SubscriberCount(events.HoldingsChanged) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventsStream_RejectsNonGet(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	handler := NewEventsStreamHandler(events.NewBus(log), log)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/events/stream", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestEventsStream_WebSocket(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	bus := events.NewBus(log)
	handler := NewEventsStreamHandler(bus, log)

	srv := httptest.NewServer(http.HandlerFunc(handler.ServeWebSocket))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "connected", msg["type"])

	bus.Emit(events.PortfolioChanged, "portfolio", &events.PortfolioChangedData{
		Reason:     "refresh",
		Holdings:   2,
		TotalValue: 41000,
		Currency:   "USD",
	})

	msg = nil
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "PORTFOLIO_CHANGED", msg["type"])
	data, ok := msg["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "refresh", data["reason"])

	conn.Close(websocket.StatusNormalClosure, "")
	assert.Eventually(t, func() bool {
		return bus.SubscriberCount(events.PortfolioChanged) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
