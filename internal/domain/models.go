// Package domain provides core domain models and types.
package domain

import "time"

// BaseCurrency is the currency every price from the market data provider is quoted in.
const BaseCurrency = "USD"

// Holding is a user-entered position in one asset.
// ID is the market data provider's asset id and is unique within a portfolio.
type Holding struct {
	AddedAt          time.Time `json:"added_at"`
	CostBasis        *float64  `json:"cost_basis,omitempty"`        // Purchase price per unit, USD
	TargetMultiplier *float64  `json:"target_multiplier,omitempty"` // Target price = cost basis * multiplier
	ID               string    `json:"id"`
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name"`
	Image            string    `json:"image,omitempty"`
	Quantity         float64   `json:"quantity"`
}

// HoldingsPortfolio is the persisted set of holdings.
type HoldingsPortfolio struct {
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Holdings    []Holding `json:"holdings"`
}

// PriceSnapshot is the latest market data for one asset. Never persisted.
type PriceSnapshot struct {
	FetchedAt    time.Time `json:"fetched_at"`
	AssetID      string    `json:"asset_id"`
	Image        string    `json:"image,omitempty"`
	CurrentPrice float64   `json:"current_price"`  // USD
	Change24hPct float64   `json:"change_24h_pct"` // Percent, e.g. 2.5 for +2.5%
	MarketCap    float64   `json:"market_cap,omitempty"`
}

// PortfolioEntry joins a holding with its latest price snapshot.
type PortfolioEntry struct {
	Price *PriceSnapshot `json:"price,omitempty"`
	Holding
}

// DisplayImage prefers the holding's own image over the snapshot's.
func (e PortfolioEntry) DisplayImage() string {
	if e.Holding.Image != "" {
		return e.Holding.Image
	}
	if e.Price != nil {
		return e.Price.Image
	}
	return ""
}

// CurrentPrice returns the snapshot price in USD, or 0 when no snapshot exists.
func (e PortfolioEntry) CurrentPrice() float64 {
	if e.Price == nil {
		return 0
	}
	return e.Price.CurrentPrice
}

// Change24hPct returns the snapshot's 24h change, or 0 when no snapshot exists.
func (e PortfolioEntry) Change24hPct() float64 {
	if e.Price == nil {
		return 0
	}
	return e.Price.Change24hPct
}

// TargetPrice returns cost basis times target multiplier when both are set.
func (e PortfolioEntry) TargetPrice() (float64, bool) {
	if e.CostBasis == nil || e.TargetMultiplier == nil {
		return 0, false
	}
	return *e.CostBasis * *e.TargetMultiplier, true
}

// Settings are the user preferences that shape refresh and display.
type Settings struct {
	DisplayCurrency          string `json:"display_currency"`
	Theme                    string `json:"theme"`
	RefreshIntervalSeconds   int    `json:"refresh_interval_seconds"`
	AutoRefresh              bool   `json:"auto_refresh"`
	HideValues               bool   `json:"hide_values"`
	ShowPricesInBaseCurrency bool   `json:"show_prices_in_base_currency"`
	ShowTargetPrices         bool   `json:"show_target_prices"`
}

// RefreshInterval returns the refresh period as a duration.
func (s Settings) RefreshInterval() time.Duration {
	return time.Duration(s.RefreshIntervalSeconds) * time.Second
}

// ExchangeRate source values
const (
	RateSourceProvider = "provider"
	RateSourceFallback = "fallback"
	RateSourceIdentity = "identity"
)

// ExchangeRate converts amounts in From into To: amount * Rate.
type ExchangeRate struct {
	Timestamp    time.Time `json:"timestamp"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	Source       string    `json:"source"`
	Rate         float64   `json:"rate"`
	Change24h    float64   `json:"change_24h"`
	ChangePct24h float64   `json:"change_pct_24h"`
}

// AssetListing is one entry of the provider's asset directory.
type AssetListing struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// MarketAsset is one row of the provider's market data.
type MarketAsset struct {
	LastUpdated              time.Time `json:"last_updated"`
	ID                       string    `json:"id"`
	Symbol                   string    `json:"symbol"`
	Name                     string    `json:"name"`
	Image                    string    `json:"image"`
	CurrentPrice             float64   `json:"current_price"`
	MarketCap                float64   `json:"market_cap"`
	MarketCapRank            int       `json:"market_cap_rank"`
	TotalVolume              float64   `json:"total_volume"`
	High24h                  float64   `json:"high_24h"`
	Low24h                   float64   `json:"low_24h"`
	PriceChange24h           float64   `json:"price_change_24h"`
	PriceChangePercentage24h float64   `json:"price_change_percentage_24h"`
	CirculatingSupply        float64   `json:"circulating_supply"`
}

// Snapshot converts a market row into a price snapshot taken at fetchedAt.
func (m MarketAsset) Snapshot(fetchedAt time.Time) PriceSnapshot {
	return PriceSnapshot{
		FetchedAt:    fetchedAt,
		AssetID:      m.ID,
		Image:        m.Image,
		CurrentPrice: m.CurrentPrice,
		Change24hPct: m.PriceChangePercentage24h,
		MarketCap:    m.MarketCap,
	}
}

// PricePoint is one sample of an asset's price history.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}
