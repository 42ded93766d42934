package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// PortfolioChangedData contains data for PortfolioChanged events
type PortfolioChangedData struct {
	Reason     string  `json:"reason"` // refresh, holdings, settings
	Holdings   int     `json:"holdings"`
	TotalValue float64 `json:"total_value"`
	Currency   string  `json:"currency"`
}

// EventType returns the event type for PortfolioChangedData
func (d *PortfolioChangedData) EventType() EventType {
	return PortfolioChanged
}

// PriceUpdatedData contains data for PriceUpdated events
type PriceUpdatedData struct {
	CycleID string `json:"cycle_id"`
	Assets  int    `json:"assets"`
	Missing int    `json:"missing"` // Held assets the provider returned no row for
}

// EventType returns the event type for PriceUpdatedData
func (d *PriceUpdatedData) EventType() EventType {
	return PriceUpdated
}

// RefreshStartedData contains data for RefreshStarted events
type RefreshStartedData struct {
	CycleID string `json:"cycle_id"`
	Assets  int    `json:"assets"`
}

// EventType returns the event type for RefreshStartedData
func (d *RefreshStartedData) EventType() EventType {
	return RefreshStarted
}

// ExchangeRatesUpdatedData contains data for ExchangeRatesUpdated events
type ExchangeRatesUpdatedData struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Rate   float64 `json:"rate"`
	Source string  `json:"source"`
}

// EventType returns the event type for ExchangeRatesUpdatedData
func (d *ExchangeRatesUpdatedData) EventType() EventType {
	return ExchangeRatesUpdated
}

// HoldingsChangedData contains data for HoldingsChanged events
type HoldingsChangedData struct {
	Action  string `json:"action"` // add, remove, quantity, cost_basis, target, import
	AssetID string `json:"asset_id,omitempty"`
	Count   int    `json:"count"`
}

// EventType returns the event type for HoldingsChangedData
func (d *HoldingsChangedData) EventType() EventType {
	return HoldingsChanged
}

// SettingsChangedData contains data for SettingsChanged events
type SettingsChangedData struct {
	Changed []string `json:"changed"`
}

// EventType returns the event type for SettingsChangedData
func (d *SettingsChangedData) EventType() EventType {
	return SettingsChanged
}

// VisibilityChangedData contains data for VisibilityChanged events
type VisibilityChangedData struct {
	Visible bool `json:"visible"`
}

// EventType returns the event type for VisibilityChangedData
func (d *VisibilityChangedData) EventType() EventType {
	return VisibilityChanged
}

// SystemStatusData contains data for SystemStatusChanged events
type SystemStatusData struct {
	Status     string  `json:"status"` // healthy, degraded
	DatabaseOK bool    `json:"database_ok"`
	Refreshing bool    `json:"refreshing"`
	LastError  string  `json:"last_error,omitempty"`
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float64 `json:"mem_percent"`
}

// EventType returns the event type for SystemStatusData
func (d *SystemStatusData) EventType() EventType {
	return SystemStatusChanged
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
