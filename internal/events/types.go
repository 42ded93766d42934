// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	// Portfolio state
	PortfolioChanged     EventType = "PORTFOLIO_CHANGED"
	PriceUpdated         EventType = "PRICE_UPDATED"
	RefreshStarted       EventType = "REFRESH_STARTED"
	ExchangeRatesUpdated EventType = "EXCHANGE_RATES_UPDATED"

	// User-owned state
	HoldingsChanged EventType = "HOLDINGS_CHANGED"
	SettingsChanged EventType = "SETTINGS_CHANGED"

	// Host environment
	VisibilityChanged   EventType = "VISIBILITY_CHANGED"
	SystemStatusChanged EventType = "SYSTEM_STATUS_CHANGED"

	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every event type, in the order streams subscribe to them.
var AllEventTypes = []EventType{
	PortfolioChanged,
	PriceUpdated,
	RefreshStarted,
	ExchangeRatesUpdated,
	HoldingsChanged,
	SettingsChanged,
	VisibilityChanged,
	SystemStatusChanged,
	ErrorOccurred,
}

// Event represents a system event with typed data
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data,omitempty"`
	Type      EventType `json:"type"`
	Module    string    `json:"module"`
}
