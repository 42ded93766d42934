package testing

import (
	"time"

	"github.com/cht-holly/chtholly-vault/internal/domain"
)

// FixtureTime is the fixed timestamp used by fixtures.
var FixtureTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// NewHoldingFixtures returns bitcoin, ethereum and solana holdings.
func NewHoldingFixtures() []domain.Holding {
	return []domain.Holding{
		{
			ID:        "bitcoin",
			Symbol:    "BTC",
			Name:      "Bitcoin",
			Quantity:  1,
			CostBasis: Float(30000),
			AddedAt:   FixtureTime,
		},
		{
			ID:               "ethereum",
			Symbol:           "ETH",
			Name:             "Ethereum",
			Quantity:         10,
			CostBasis:        Float(2000),
			TargetMultiplier: Float(3),
			AddedAt:          FixtureTime,
		},
		{
			ID:       "solana",
			Symbol:   "SOL",
			Name:     "Solana",
			Quantity: 100,
			Image:    "https://example.com/sol-custom.png",
			AddedAt:  FixtureTime,
		},
	}
}

// NewMarketAssetFixtures returns market rows matching NewHoldingFixtures.
func NewMarketAssetFixtures() []domain.MarketAsset {
	return []domain.MarketAsset{
		{
			ID:                       "bitcoin",
			Symbol:                   "btc",
			Name:                     "Bitcoin",
			Image:                    "https://example.com/btc.png",
			CurrentPrice:             50000,
			PriceChangePercentage24h: 10,
			MarketCap:                1e12,
			MarketCapRank:            1,
		},
		{
			ID:                       "ethereum",
			Symbol:                   "eth",
			Name:                     "Ethereum",
			Image:                    "https://example.com/eth.png",
			CurrentPrice:             3000,
			PriceChangePercentage24h: -5,
			MarketCap:                4e11,
			MarketCapRank:            2,
		},
		{
			ID:                       "solana",
			Symbol:                   "sol",
			Name:                     "Solana",
			Image:                    "https://example.com/sol.png",
			CurrentPrice:             100,
			PriceChangePercentage24h: 2,
			MarketCap:                5e10,
			MarketCapRank:            5,
		},
	}
}
