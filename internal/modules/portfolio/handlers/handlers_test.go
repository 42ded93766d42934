package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/domain"
	"github.com/cht-holly/chtholly-vault/internal/modules/holdings"
	"github.com/cht-holly/chtholly-vault/internal/modules/portfolio"
	"github.com/cht-holly/chtholly-vault/internal/modules/settings"
	testutil "github.com/cht-holly/chtholly-vault/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopScheduler struct{}

func (noopScheduler) Start(time.Duration, func()) {}
func (noopScheduler) Stop()                       {}

type fakeResetter struct {
	repo    *holdings.Repository
	store   *settings.Store
	service *portfolio.Service
	err     error
	calls   int
}

func (f *fakeResetter) ResetAll(ctx context.Context) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if err := f.repo.ImportAll(nil); err != nil {
		return err
	}
	f.store.Reset(ctx)
	f.service.Reset()
	return nil
}

type handlerFixture struct {
	router   http.Handler
	service  *portfolio.Service
	market   *testutil.MockMarketData
	store    *settings.Store
	resetter *fakeResetter
}

func setupHandler(t *testing.T) *handlerFixture {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	repo := holdings.NewRepository(nil, nil, nil, logger)
	require.NoError(t, repo.ImportAll(testutil.NewHoldingFixtures()))

	store := settings.NewStore(nil, nil, nil, logger)
	market := testutil.NewMockMarketData(testutil.NewMarketAssetFixtures()...)
	rates := testutil.NewMockRateProvider(map[string]float64{"SGD": 2})
	service := portfolio.NewService(repo, store, market, rates, noopScheduler{}, nil, logger)
	store.OnChange(service.SettingsChanged)
	t.Cleanup(service.Stop)

	resetter := &fakeResetter{repo: repo, store: store, service: service}
	router := chi.NewRouter()
	NewHandler(service, store, resetter, logger).RegisterRoutes(router)

	return &handlerFixture{router: router, service: service, market: market, store: store, resetter: resetter}
}

func (f *handlerFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) PortfolioView {
	t.Helper()
	var response struct {
		Data     PortfolioView          `json:"data"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Contains(t, response.Metadata, "timestamp")
	return response.Data
}

func TestHandleRefreshAndGetPortfolio(t *testing.T) {
	f := setupHandler(t)

	w := f.do("POST", "/portfolio/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)

	view := decodeView(t, w)
	require.Len(t, view.Entries, 3)
	require.NotNil(t, view.Analytics)
	assert.Equal(t, 90000.0, *view.Analytics.TotalValue)
	assert.Equal(t, "USD", view.Currency)
	assert.Equal(t, "$", view.CurrencySymbol)
	assert.Equal(t, "https://example.com/sol-custom.png", view.Entries[2].Image)
	assert.Nil(t, view.Entries[1].TargetPrice, "target prices are off by default")

	w = f.do("GET", "/portfolio", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, decodeView(t, w).LastRefreshAt)
}

func TestHandleGetPortfolio_HideValues(t *testing.T) {
	f := setupHandler(t)
	require.NoError(t, f.service.Refresh(context.Background()))

	hide := true
	_, err := f.store.Update(context.Background(), settings.Patch{HideValues: &hide})
	require.NoError(t, err)

	view := decodeView(t, f.do("GET", "/portfolio", ""))
	assert.True(t, view.ValuesHidden)
	assert.Nil(t, view.Analytics.TotalValue)
	assert.Nil(t, view.Analytics.TotalChange24h)
	assert.InDelta(t, 3700.0/90000.0*100, view.Analytics.TotalChange24hPct, 1e-9)
	for _, e := range view.Entries {
		assert.Nil(t, e.Value)
		assert.Nil(t, e.Quantity)
		assert.NotNil(t, e.Price, "market prices stay visible")
	}

	w := f.do("GET", "/portfolio/history", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"values_hidden":true`)
}

func TestHandleGetPortfolio_CurrencyAndTargets(t *testing.T) {
	f := setupHandler(t)
	require.NoError(t, f.service.Refresh(context.Background()))

	currency := "SGD"
	targets := true
	base := true
	_, err := f.store.Update(context.Background(), settings.Patch{
		DisplayCurrency:          &currency,
		ShowTargetPrices:         &targets,
		ShowPricesInBaseCurrency: &base,
	})
	require.NoError(t, err)

	view := decodeView(t, f.do("GET", "/portfolio", ""))
	assert.Equal(t, "SGD", view.Currency)
	assert.Equal(t, "S$", view.CurrencySymbol)
	assert.Equal(t, 180000.0, *view.Analytics.TotalValue)

	btc := view.Entries[0]
	assert.Equal(t, "USD", btc.PriceCurrency)
	assert.Equal(t, 50000.0, *btc.Price)
	assert.Equal(t, 100000.0, *btc.Value)

	eth := view.Entries[1]
	require.NotNil(t, eth.TargetPrice)
	assert.Equal(t, 6000.0, *eth.TargetPrice)
}

func TestHandleRefresh_Errors(t *testing.T) {
	f := setupHandler(t)

	f.market.SetError(domain.NewAPIError(domain.ErrCodeRateLimited, "slow down"))
	w := f.do("POST", "/portfolio/refresh", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	f.market.SetError(domain.NewAPIError(domain.ErrCodeProviderUnavailable, "down"))
	w = f.do("POST", "/portfolio/refresh", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	view := decodeView(t, f.do("GET", "/portfolio", ""))
	assert.Contains(t, view.Error, "down")

	w = f.do("POST", "/portfolio/clear-error", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeView(t, f.do("GET", "/portfolio", "")).Error)
}

func TestHandleRefresh_InProgress(t *testing.T) {
	f := setupHandler(t)
	f.market.Block()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.service.Refresh(context.Background())
	}()
	require.Eventually(t, func() bool { return len(f.market.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	w := f.do("POST", "/portfolio/refresh", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	f.market.Release()
	<-done
}

func TestHandleGetAnalyticsAndHistory(t *testing.T) {
	f := setupHandler(t)
	require.NoError(t, f.service.Refresh(context.Background()))

	w := f.do("GET", "/portfolio/analytics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"best_performer"`)

	w = f.do("GET", "/portfolio/history", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data struct {
			History []portfolio.HistoryPoint   `json:"history"`
			Summary *portfolio.HistorySummary `json:"summary"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Len(t, response.Data.History, 1)
	require.NotNil(t, response.Data.Summary)
	assert.Equal(t, 1, response.Data.Summary.Points)
}

func TestHandleSetVisibility(t *testing.T) {
	f := setupHandler(t)

	w := f.do("POST", "/visibility", `{"visible":false}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, f.service.State().Visible)

	w = f.do("POST", "/visibility", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleReset(t *testing.T) {
	f := setupHandler(t)
	require.Equal(t, http.StatusOK, f.do("POST", "/portfolio/refresh", "").Code)

	w := f.do("POST", "/portfolio/reset", "")
	require.Equal(t, http.StatusOK, w.Code)

	view := decodeView(t, w)
	assert.Empty(t, view.Entries)
	assert.Nil(t, view.Analytics)
	assert.Nil(t, view.LastRefreshAt)
	assert.Equal(t, "USD", view.Currency)
	assert.Equal(t, 1, f.resetter.calls)
}

func TestHandleReset_Failure(t *testing.T) {
	f := setupHandler(t)
	f.resetter.err = errors.New("disk full")

	w := f.do("POST", "/portfolio/reset", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk full")
}
