package clientdata

import "time"

// TTL constants for the cached provider data.
const (
	// Asset directory (rarely changes)
	TTLAssetDirectory = 24 * time.Hour

	// Market data (changes constantly)
	TTLMarketSnapshot = 5 * time.Minute
	TTLPopularAssets  = 5 * time.Minute
	TTLPriceHistory   = 10 * time.Minute

	// Exchange rates
	TTLExchangeRate = 5 * time.Minute

	// Expired rates stay available as a fallback for this long
	StaleExchangeRate = 24 * time.Hour
)
