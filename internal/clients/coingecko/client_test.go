package coingecko

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/clients/fetch"
	"github.com/cht-holly/chtholly-vault/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type providerStub struct {
	mu       sync.Mutex
	requests []*http.Request
	handler  http.HandlerFunc
}

func (p *providerStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.requests = append(p.requests, r.Clone(context.Background()))
	p.mu.Unlock()
	p.handler(w, r)
}

func (p *providerStub) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *providerStub) last() *http.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}

func setupClient(t *testing.T, handler http.HandlerFunc) (*Client, *providerStub) {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)

	stub := &providerStub{handler: handler}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	fetcher := fetch.NewClient(fetch.Options{Name: "coingecko-test", RequestDelay: 5 * time.Millisecond}, log)
	t.Cleanup(fetcher.Close)

	return NewClient(server.URL, fetcher, log), stub
}

const marketsBody = `[
	{"id":"bitcoin","symbol":"btc","name":"Bitcoin","image":"btc.png","current_price":50000,"price_change_percentage_24h":10,"market_cap":1000000,"market_cap_rank":1},
	{"id":"ethereum","symbol":"eth","name":"Ethereum","image":"eth.png","current_price":3000,"price_change_percentage_24h":-2.5,"market_cap":500000,"market_cap_rank":2},
	{"id":"dogecoin","symbol":"doge","name":"Dogecoin","image":"doge.png","current_price":0.1,"price_change_percentage_24h":1,"market_cap":100,"market_cap_rank":9}
]`

func TestListAssets_UppercasesSymbolsAndCaches(t *testing.T) {
	client, stub := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/list", r.URL.Path)
		fmt.Fprint(w, `[{"id":"bitcoin","symbol":"btc","name":"Bitcoin"},{"id":"ethereum","symbol":"eth","name":"Ethereum"}]`)
	})

	assets, err := client.ListAssets(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "BTC", assets[0].Symbol)

	_, err = client.ListAssets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stub.count(), "directory is cached for 24h")
}

func TestSearchAssets_UsesCachedDirectory(t *testing.T) {
	client, stub := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"bitcoin","symbol":"btc","name":"Bitcoin"},{"id":"wrapped-bitcoin","symbol":"wbtc","name":"Wrapped Bitcoin"}]`)
	})

	results, err := client.SearchAssets(context.Background(), "btc", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "bitcoin", results[0].ID)

	results, err = client.SearchAssets(context.Background(), "btc", []string{"bitcoin"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "wrapped-bitcoin", results[0].ID)

	assert.Equal(t, 1, stub.count())
}

func TestSearchAssets_BlankQuerySkipsNetwork(t *testing.T) {
	client, stub := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	results, err := client.SearchAssets(context.Background(), " ", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, stub.count())
}

func TestGetMarketSnapshot_EmptyIDsSkipsNetwork(t *testing.T) {
	client, stub := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, marketsBody)
	})

	assets, err := client.GetMarketSnapshot(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, assets)
	assert.Empty(t, assets)
	assert.Equal(t, 0, stub.count())
}

func TestGetMarketSnapshot_ReturnsExactlyRequestedIDs(t *testing.T) {
	client, stub := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, marketsBody)
	})

	assets, err := client.GetMarketSnapshot(context.Background(), []string{"bitcoin", "ethereum", "bitcoin"})
	require.NoError(t, err)

	require.Len(t, assets, 2)
	assert.Equal(t, "bitcoin", assets[0].ID)
	assert.Equal(t, 50000.0, assets[0].CurrentPrice)
	assert.Equal(t, -2.5, assets[1].PriceChangePercentage24h)

	query := stub.last().URL.Query()
	assert.Equal(t, "/coins/markets", stub.last().URL.Path)
	assert.Equal(t, "usd", query.Get("vs_currency"))
	assert.Equal(t, "bitcoin,ethereum", query.Get("ids"))
	assert.Equal(t, "market_cap_desc", query.Get("order"))
	assert.Equal(t, "250", query.Get("per_page"))
	assert.Equal(t, "false", query.Get("sparkline"))
	assert.Equal(t, "24h", query.Get("price_change_percentage"))
}

func TestGetMarketSnapshot_CacheKeyedByIDs(t *testing.T) {
	client, stub := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, marketsBody)
	})

	_, err := client.GetMarketSnapshot(context.Background(), []string{"bitcoin"})
	require.NoError(t, err)
	_, err = client.GetMarketSnapshot(context.Background(), []string{"bitcoin"})
	require.NoError(t, err)
	assert.Equal(t, 1, stub.count())

	_, err = client.GetMarketSnapshot(context.Background(), []string{"ethereum"})
	require.NoError(t, err)
	assert.Equal(t, 2, stub.count())

	client.ClearCache()
	_, err = client.GetMarketSnapshot(context.Background(), []string{"bitcoin"})
	require.NoError(t, err)
	assert.Equal(t, 3, stub.count())
}

func TestGetMarketSnapshot_SplitsLargeRequests(t *testing.T) {
	client, stub := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		requested := strings.Split(r.URL.Query().Get("ids"), ",")
		rows := make([]string, 0, len(requested))
		for _, id := range requested {
			rows = append(rows, fmt.Sprintf(`{"id":%q,"current_price":1}`, id))
		}
		fmt.Fprint(w, "["+strings.Join(rows, ",")+"]")
	})

	ids := make([]string, 0, 260)
	for i := 0; i < 260; i++ {
		ids = append(ids, fmt.Sprintf("asset-%d", i))
	}

	assets, err := client.GetMarketSnapshot(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, assets, 260)
	assert.Equal(t, 2, stub.count())
}

func TestGetMarketSnapshot_NullPayloadIsNoData(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `null`)
	})

	_, err := client.GetMarketSnapshot(context.Background(), []string{"bitcoin"})
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrCodeNoData))
}

func TestGetMarketSnapshot_RateLimited(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetMarketSnapshot(context.Background(), []string{"bitcoin"})
	require.Error(t, err)

	var apiErr *domain.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, domain.ErrCodeRateLimited, apiErr.Code)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
}

func TestGetPopular(t *testing.T) {
	client, stub := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, marketsBody)
	})

	assets, err := client.GetPopular(context.Background())
	require.NoError(t, err)
	assert.Len(t, assets, 3)
	assert.Equal(t, "100", stub.last().URL.Query().Get("per_page"))
	assert.Empty(t, stub.last().URL.Query().Get("ids"))
}

func TestGetHistory(t *testing.T) {
	client, stub := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"prices":[[1704067200000,42000.5],[1704153600000,43000]]}`)
	})

	points, err := client.GetHistory(context.Background(), "bitcoin", 30)
	require.NoError(t, err)

	require.Len(t, points, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), points[0].Timestamp)
	assert.Equal(t, 42000.5, points[0].Price)
	assert.Equal(t, "/coins/bitcoin/market_chart", stub.last().URL.Path)
	assert.Equal(t, "30", stub.last().URL.Query().Get("days"))
}

func TestGetHistory_RequiresID(t *testing.T) {
	client, stub := setupClient(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := client.GetHistory(context.Background(), "", 7)
	require.Error(t, err)
	assert.Equal(t, 0, stub.count())
}
