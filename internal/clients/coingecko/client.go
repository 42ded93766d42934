// Package coingecko provides the market data gateway backed by the CoinGecko v3 API.
package coingecko

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/clientdata"
	"github.com/cht-holly/chtholly-vault/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public CoinGecko v3 endpoint.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

const (
	maxSearchResults = 50
	popularCount     = 100
	marketsPageSize  = 250
	defaultHistory   = 7
)

// Fetcher is the rate-limited JSON transport used by the gateway.
type Fetcher interface {
	GetJSON(ctx context.Context, url string, ttl time.Duration, out interface{}) error
	ClearCache()
}

// Client is the market data gateway. Every method returns a *domain.APIError on failure.
type Client struct {
	baseURL string
	fetcher Fetcher
	log     zerolog.Logger
}

// NewClient creates a gateway for baseURL. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, fetcher Fetcher, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		log:     log.With().Str("client", "coingecko").Logger(),
	}
}

// ListAssets returns the full asset directory with upper-cased symbols.
func (c *Client) ListAssets(ctx context.Context) ([]domain.AssetListing, error) {
	var assets []domain.AssetListing
	if err := c.fetcher.GetJSON(ctx, c.baseURL+"/coins/list", clientdata.TTLAssetDirectory, &assets); err != nil {
		c.log.Warn().Err(err).Msg("Failed to fetch asset directory")
		return nil, domain.AsAPIError(err)
	}

	for i := range assets {
		assets[i].Symbol = strings.ToUpper(assets[i].Symbol)
	}
	return assets, nil
}

// SearchAssets filters the asset directory by name, symbol or id.
// Excluded ids are dropped before the result cap is applied.
func (c *Client) SearchAssets(ctx context.Context, query string, excludeIDs []string) ([]domain.AssetListing, error) {
	if strings.TrimSpace(query) == "" {
		return []domain.AssetListing{}, nil
	}

	assets, err := c.ListAssets(ctx)
	if err != nil {
		return nil, err
	}

	results := RankAssets(assets, query, excludeIDs, maxSearchResults)
	c.log.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("Asset search completed")
	return results, nil
}

// GetMarketSnapshot returns market rows for exactly the requested ids.
// An empty id list returns an empty result without touching the network.
func (c *Client) GetMarketSnapshot(ctx context.Context, ids []string) ([]domain.MarketAsset, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []domain.MarketAsset{}, nil
	}

	requested := make(map[string]bool, len(ids))
	for _, id := range ids {
		requested[id] = true
	}

	result := make([]domain.MarketAsset, 0, len(ids))
	for start := 0; start < len(ids); start += marketsPageSize {
		end := start + marketsPageSize
		if end > len(ids) {
			end = len(ids)
		}

		params := marketParams(marketsPageSize)
		params.Set("ids", strings.Join(ids[start:end], ","))

		var page []domain.MarketAsset
		if err := c.fetcher.GetJSON(ctx, c.baseURL+"/coins/markets?"+params.Encode(), clientdata.TTLMarketSnapshot, &page); err != nil {
			c.log.Warn().Err(err).Int("ids", end-start).Msg("Failed to fetch market snapshot")
			return nil, domain.AsAPIError(err)
		}
		if page == nil {
			return nil, domain.NewAPIError(domain.ErrCodeNoData, "No market data received")
		}

		for _, asset := range page {
			if requested[asset.ID] {
				result = append(result, asset)
			}
		}
	}

	return result, nil
}

// GetPopular returns the top assets by market cap.
func (c *Client) GetPopular(ctx context.Context) ([]domain.MarketAsset, error) {
	var assets []domain.MarketAsset
	if err := c.fetcher.GetJSON(ctx, c.baseURL+"/coins/markets?"+marketParams(popularCount).Encode(), clientdata.TTLPopularAssets, &assets); err != nil {
		c.log.Warn().Err(err).Msg("Failed to fetch popular assets")
		return nil, domain.AsAPIError(err)
	}
	if assets == nil {
		return nil, domain.NewAPIError(domain.ErrCodeNoData, "No market data received")
	}
	return assets, nil
}

// GetHistory returns USD price samples for an asset over the last days.
func (c *Client) GetHistory(ctx context.Context, id string, days int) ([]domain.PricePoint, error) {
	if id == "" {
		return nil, domain.NewAPIError(domain.ErrCodeNoData, "asset id is required")
	}
	if days <= 0 {
		days = defaultHistory
	}

	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("days", strconv.Itoa(days))
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart?%s", c.baseURL, url.PathEscape(id), params.Encode())

	var chart struct {
		Prices [][2]float64 `json:"prices"`
	}
	if err := c.fetcher.GetJSON(ctx, endpoint, clientdata.TTLPriceHistory, &chart); err != nil {
		c.log.Warn().Err(err).Str("id", id).Int("days", days).Msg("Failed to fetch price history")
		return nil, domain.AsAPIError(err)
	}
	if chart.Prices == nil {
		return nil, domain.NewAPIError(domain.ErrCodeNoData, "No price history received for %s", id)
	}

	points := make([]domain.PricePoint, 0, len(chart.Prices))
	for _, sample := range chart.Prices {
		points = append(points, domain.PricePoint{
			Timestamp: time.UnixMilli(int64(sample[0])).UTC(),
			Price:     sample[1],
		})
	}
	return points, nil
}

// ClearCache drops all cached provider responses.
func (c *Client) ClearCache() {
	c.fetcher.ClearCache()
}

func marketParams(perPage int) url.Values {
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", "1")
	params.Set("sparkline", "false")
	params.Set("price_change_percentage", "24h")
	return params
}

// uniqueIDs drops blanks and duplicates, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
