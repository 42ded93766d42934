// Package exchangerate provides currency exchange rate fetching and caching functionality.
package exchangerate

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/clientdata"
	"github.com/cht-holly/chtholly-vault/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the Yahoo Finance chart endpoint.
const DefaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// UserAgent is sent with every request; the chart API rejects blank agents.
const UserAgent = "Mozilla/5.0 (compatible; chtholly-vault/1.0)"

// Fetcher is the rate-limited JSON transport used by the gateway.
type Fetcher interface {
	GetJSON(ctx context.Context, url string, ttl time.Duration, out interface{}) error
}

// Client is the exchange rate gateway for Yahoo Finance chart quotes.
// It keeps its own rate cache separate from the market data cache.
type Client struct {
	baseURL string
	fetcher Fetcher
	cache   *clientdata.Cache[domain.ExchangeRate]
	log     zerolog.Logger
	now     func() time.Time
}

// NewClient creates a gateway for baseURL. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, fetcher Fetcher, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		cache:   clientdata.NewCache[domain.ExchangeRate]("exchange_rates").WithStaleRetention(clientdata.StaleExchangeRate),
		log:     log.With().Str("client", "yahoo-fx").Logger(),
		now:     time.Now,
	}
}

// Cache exposes the rate cache so it can be registered with the cleanup job.
func (c *Client) Cache() *clientdata.Cache[domain.ExchangeRate] {
	return c.cache
}

// ClearCache drops every cached rate.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

// chartResponse is the subset of the chart API payload the gateway reads
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetRate returns the rate converting from into to, with its 24h change.
// Same-currency pairs return 1.0 without a network call. When the provider
// fails, an expired cached rate is used first, then the fixed fallback table;
// otherwise the provider error is returned unchanged.
func (c *Client) GetRate(ctx context.Context, from, to string) (domain.ExchangeRate, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == to {
		return domain.ExchangeRate{
			From:      from,
			To:        to,
			Rate:      1.0,
			Timestamp: c.now(),
			Source:    domain.RateSourceIdentity,
		}, nil
	}

	cacheKey := from + ":" + to
	if cached, ok := c.cache.Get(cacheKey); ok {
		c.log.Debug().
			Str("from", from).
			Str("to", to).
			Float64("rate", cached.Rate).
			Msg("Cache hit")
		return cached, nil
	}

	rate, err := c.fetchRate(ctx, from, to)
	if err != nil {
		if stale, ok := c.cache.GetStale(cacheKey); ok {
			c.log.Warn().
				Err(err).
				Str("from", from).
				Str("to", to).
				Float64("rate", stale.Rate).
				Time("as_of", stale.Timestamp).
				Msg("Provider failed, using stale cached rate")
			return stale, nil
		}
		if fallback, ok := fallbackRate(from, to, c.now()); ok {
			c.log.Warn().
				Err(err).
				Str("from", from).
				Str("to", to).
				Float64("rate", fallback.Rate).
				Msg("Provider failed, using fallback rate")
			return fallback, nil
		}
		return domain.ExchangeRate{}, domain.AsAPIError(err)
	}

	c.cache.Store(cacheKey, rate, clientdata.TTLExchangeRate)

	c.log.Info().
		Str("from", from).
		Str("to", to).
		Float64("rate", rate.Rate).
		Msg("Fetched rate")

	return rate, nil
}

// Convert converts amount from one currency to another.
func (c *Client) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	rate, err := c.GetRate(ctx, from, to)
	if err != nil {
		return 0, &domain.APIError{
			Code:    domain.ErrCodeConversionUnavailable,
			Message: fmt.Sprintf("No rate available for %s->%s", from, to),
			Err:     err,
		}
	}
	return amount * rate.Rate, nil
}

func (c *Client) fetchRate(ctx context.Context, from, to string) (domain.ExchangeRate, error) {
	symbol, invert := pairSymbol(from, to)
	endpoint := fmt.Sprintf("%s/%s?interval=1d&range=2d", c.baseURL, url.PathEscape(symbol))

	c.log.Debug().Str("symbol", symbol).Bool("invert", invert).Msg("Fetching rate")

	var resp chartResponse
	if err := c.fetcher.GetJSON(ctx, endpoint, 0, &resp); err != nil {
		return domain.ExchangeRate{}, err
	}

	if resp.Chart.Error != nil {
		return domain.ExchangeRate{}, domain.NewAPIError(domain.ErrCodeNoData,
			"Provider error for %s: %s", symbol, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return domain.ExchangeRate{}, domain.NewAPIError(domain.ErrCodeNoData, "No quote returned for %s", symbol)
	}

	meta := resp.Chart.Result[0].Meta
	price := meta.RegularMarketPrice
	if price <= 0 {
		return domain.ExchangeRate{}, domain.NewAPIError(domain.ErrCodeNoData, "Invalid price data for %s", symbol)
	}

	previous := meta.PreviousClose
	if previous <= 0 {
		previous = meta.ChartPreviousClose
	}

	var change, changePct float64
	if previous > 0 {
		change = price - previous
		changePct = change / previous * 100
	}

	timestamp := c.now()
	if meta.RegularMarketTime > 0 {
		timestamp = time.Unix(meta.RegularMarketTime, 0).UTC()
	}

	rate := domain.ExchangeRate{
		From:         from,
		To:           to,
		Rate:         price,
		Change24h:    change,
		ChangePct24h: changePct,
		Timestamp:    timestamp,
		Source:       domain.RateSourceProvider,
	}
	if invert {
		rate = invertRate(rate, price)
	}
	return rate, nil
}

// invertRate turns a quote for to->from into from->to.
// The absolute change is the derivative of 1/p: -change/p².
func invertRate(rate domain.ExchangeRate, price float64) domain.ExchangeRate {
	rate.Rate = 1 / price
	rate.Change24h = -rate.Change24h / (price * price)
	rate.ChangePct24h = -rate.ChangePct24h
	return rate
}
