package portfolio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/domain"
	"github.com/cht-holly/chtholly-vault/internal/events"
	testutil "github.com/cht-holly/chtholly-vault/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHoldings struct {
	mu       sync.Mutex
	holdings []domain.Holding
}

func (f *fakeHoldings) All() []domain.Holding {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Holding(nil), f.holdings...)
}

func (f *fakeHoldings) set(holdings ...domain.Holding) []domain.Holding {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holdings = append([]domain.Holding(nil), holdings...)
	return append([]domain.Holding(nil), holdings...)
}

type fakeSettings struct {
	mu       sync.Mutex
	settings domain.Settings
}

func (f *fakeSettings) Get() domain.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings
}

func (f *fakeSettings) set(s domain.Settings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = s
}

type fakeScheduler struct {
	mu       sync.Mutex
	starts   []time.Duration
	stops    int
	running  bool
	callback func()
}

func (f *fakeScheduler) Start(interval time.Duration, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, interval)
	f.running = true
	f.callback = fn
}

func (f *fakeScheduler) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.running = false
}

func (f *fakeScheduler) isRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeScheduler) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts)
}

func (f *fakeScheduler) fire() {
	f.mu.Lock()
	fn := f.callback
	f.mu.Unlock()
	fn()
}

type serviceFixture struct {
	svc       *Service
	market    *testutil.MockMarketData
	rates     *testutil.MockRateProvider
	scheduler *fakeScheduler
	holdings  *fakeHoldings
	settings  *fakeSettings
	bus       *events.Bus
}

func defaultSettings() domain.Settings {
	return domain.Settings{
		DisplayCurrency:        "USD",
		RefreshIntervalSeconds: 60,
		AutoRefresh:            true,
		Theme:                  "system",
	}
}

func newServiceFixture(t *testing.T, holdings ...domain.Holding) *serviceFixture {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)

	f := &serviceFixture{
		market:    testutil.NewMockMarketData(testutil.NewMarketAssetFixtures()...),
		rates:     testutil.NewMockRateProvider(map[string]float64{"SGD": 1.35, "MYR": 4.48}),
		scheduler: &fakeScheduler{},
		holdings:  &fakeHoldings{},
		settings:  &fakeSettings{settings: defaultSettings()},
		bus:       events.NewBus(log),
	}
	f.holdings.set(holdings...)
	f.svc = NewService(f.holdings, f.settings, f.market, f.rates, f.scheduler, events.NewManager(f.bus, log), log)
	t.Cleanup(f.svc.Stop)
	return f
}

func btcHolding() domain.Holding {
	return domain.Holding{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", Quantity: 1}
}

func TestRefresh_NoHoldingsIsNoop(t *testing.T) {
	f := newServiceFixture(t)

	require.NoError(t, f.svc.Refresh(context.Background()))
	assert.Empty(t, f.market.Calls())
	assert.Nil(t, f.svc.State().LastRefreshAt)
}

func TestRefresh_SingleHoldingAnalytics(t *testing.T) {
	f := newServiceFixture(t, btcHolding())

	require.NoError(t, f.svc.Refresh(context.Background()))

	state := f.svc.State()
	require.NotNil(t, state.Analytics)
	assert.Equal(t, 50000.0, state.Analytics.TotalValue)
	assert.Equal(t, 5000.0, state.Analytics.TotalChange24h)
	assert.Equal(t, 10.0, state.Analytics.TotalChange24hPct)

	require.Len(t, state.Entries, 1)
	require.NotNil(t, state.Entries[0].Price)
	assert.Equal(t, 50000.0, state.Entries[0].Price.CurrentPrice)
	assert.False(t, state.Loading)
	assert.Empty(t, state.Error)
	assert.NotNil(t, state.LastRefreshAt)
	assert.Len(t, state.History, 1)
}

func TestRefresh_RequestsExactlyHeldIDs(t *testing.T) {
	f := newServiceFixture(t, testutil.NewHoldingFixtures()...)

	require.NoError(t, f.svc.Refresh(context.Background()))

	calls := f.market.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"bitcoin", "ethereum", "solana"}, calls[0])
}

func TestRefresh_FailureKeepsViewAndSetsError(t *testing.T) {
	f := newServiceFixture(t, testutil.NewHoldingFixtures()...)
	require.NoError(t, f.svc.Refresh(context.Background()))
	before := f.svc.State()

	f.market.SetError(domain.NewAPIError(domain.ErrCodeRateLimited, "Rate limit exceeded"))
	err := f.svc.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrCodeRateLimited))

	after := f.svc.State()
	assert.Equal(t, before.Entries, after.Entries)
	assert.Equal(t, before.Analytics, after.Analytics)
	assert.Equal(t, before.History, after.History)
	assert.Equal(t, before.LastRefreshAt, after.LastRefreshAt)
	assert.Contains(t, after.Error, "Rate limit exceeded")
	assert.False(t, after.Loading)

	f.svc.ClearError()
	assert.Empty(t, f.svc.State().Error)
}

func TestRefresh_FailureEmitsError(t *testing.T) {
	f := newServiceFixture(t, btcHolding())

	var got *events.ErrorEventData
	f.bus.Subscribe(events.ErrorOccurred, func(event *events.Event) {
		got = event.Data.(*events.ErrorEventData)
	})

	f.market.SetError(domain.NewAPIError(domain.ErrCodeProviderUnavailable, "down"))
	assert.Error(t, f.svc.Refresh(context.Background()))

	require.NotNil(t, got)
	assert.Contains(t, got.Error, "down")
	assert.NotEmpty(t, got.Context["cycle_id"])
}

func TestRefresh_BackToBackSendsOneBatch(t *testing.T) {
	f := newServiceFixture(t, btcHolding())
	f.market.Block()

	done := make(chan error, 1)
	go func() { done <- f.svc.Refresh(context.Background()) }()

	require.Eventually(t, func() bool { return len(f.market.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, f.svc.State().Loading)

	err := f.svc.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRefreshInProgress)

	f.market.Release()
	require.NoError(t, <-done)
	assert.Len(t, f.market.Calls(), 1)

	// The guard is released once the cycle completes
	require.NoError(t, f.svc.Refresh(context.Background()))
	assert.Len(t, f.market.Calls(), 2)
}

func TestRefresh_PricesAssetAddedWhileInFlight(t *testing.T) {
	f := newServiceFixture(t, btcHolding())
	f.market.Block()

	done := make(chan error, 1)
	go func() { done <- f.svc.Refresh(context.Background()) }()
	require.Eventually(t, func() bool { return len(f.market.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	f.svc.HoldingsChanged(f.holdings.set(btcHolding(), domain.Holding{ID: "ethereum", Quantity: 2}))
	assert.ErrorIs(t, f.svc.Refresh(context.Background()), ErrRefreshInProgress)

	f.market.Release()
	require.NoError(t, <-done)

	require.Eventually(t, func() bool {
		for _, e := range f.svc.State().Entries {
			if e.ID == "ethereum" {
				return e.Price != nil
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	calls := f.market.Calls()
	assert.Equal(t, []string{"bitcoin"}, calls[0])
	assert.Contains(t, calls[len(calls)-1], "ethereum")
}

func TestRefresh_UnknownAssetDoesNotLoop(t *testing.T) {
	f := newServiceFixture(t, btcHolding(), domain.Holding{ID: "unknown-coin", Quantity: 3})

	require.NoError(t, f.svc.Refresh(context.Background()))
	f.svc.Stop()

	assert.Len(t, f.market.Calls(), 1, "an asset the provider does not know is not refetched")
}

func TestRefresh_CurrencyChangeWhileRateInFlight(t *testing.T) {
	f := newServiceFixture(t, btcHolding())
	sgd := defaultSettings()
	sgd.DisplayCurrency = "SGD"
	f.settings.set(sgd)
	f.rates.Block("SGD")

	done := make(chan error, 1)
	go func() { done <- f.svc.Refresh(context.Background()) }()
	require.Eventually(t, func() bool { return len(f.rates.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	myr := sgd
	myr.DisplayCurrency = "MYR"
	f.settings.set(myr)
	f.svc.SettingsChanged(context.Background(), sgd, myr)

	f.rates.Release("SGD")
	require.NoError(t, <-done)

	state := f.svc.State()
	require.NotNil(t, state.Analytics)
	assert.Equal(t, "MYR", state.Analytics.Currency)
	assert.InDelta(t, 50000*4.48, state.Analytics.TotalValue, 1e-6)
	assert.NotContains(t, state.Rates, "SGD", "a rate for the superseded currency is dropped")
}

func TestRefresh_PartialResults(t *testing.T) {
	f := newServiceFixture(t, btcHolding(), domain.Holding{ID: "unknown-coin", Quantity: 3})

	var updated *events.PriceUpdatedData
	f.bus.Subscribe(events.PriceUpdated, func(event *events.Event) {
		updated = event.Data.(*events.PriceUpdatedData)
	})

	require.NoError(t, f.svc.Refresh(context.Background()))

	state := f.svc.State()
	require.Len(t, state.Entries, 2)
	assert.NotNil(t, state.Entries[0].Price)
	assert.Nil(t, state.Entries[1].Price)
	assert.Equal(t, 50000.0, state.Analytics.TotalValue)

	require.NotNil(t, updated)
	assert.Equal(t, 1, updated.Assets)
	assert.Equal(t, 1, updated.Missing)
}

func TestRefresh_ConvertsToDisplayCurrency(t *testing.T) {
	f := newServiceFixture(t, btcHolding())
	s := defaultSettings()
	s.DisplayCurrency = "MYR"
	f.settings.set(s)

	require.NoError(t, f.svc.Refresh(context.Background()))

	state := f.svc.State()
	assert.Equal(t, []string{"USD:MYR"}, f.rates.Calls())
	assert.Equal(t, "MYR", state.Analytics.Currency)
	assert.InDelta(t, 50000*4.48, state.Analytics.TotalValue, 1e-6)
	assert.Equal(t, 4.48, state.Rates["MYR"].Rate)
}

func TestRefresh_RateFailureKeepsLastRate(t *testing.T) {
	f := newServiceFixture(t, btcHolding())
	s := defaultSettings()
	s.DisplayCurrency = "SGD"
	f.settings.set(s)
	require.NoError(t, f.svc.Refresh(context.Background()))

	f.rates.SetError(domain.NewAPIError(domain.ErrCodeTransport, "offline"))
	require.NoError(t, f.svc.Refresh(context.Background()))

	state := f.svc.State()
	assert.Empty(t, state.Error)
	assert.InDelta(t, 50000*1.35, state.Analytics.TotalValue, 1e-6)
}

func TestSettingsChanged_CurrencyFetchesRateOnce(t *testing.T) {
	f := newServiceFixture(t, btcHolding())
	require.NoError(t, f.svc.Refresh(context.Background()))
	historyBefore := len(f.svc.State().History)
	marketCalls := len(f.market.Calls())

	old := f.settings.Get()
	updated := old
	updated.DisplayCurrency = "SGD"
	f.settings.set(updated)

	var states []State
	f.svc.Subscribe(func(s State) { states = append(states, s) })

	f.svc.SettingsChanged(context.Background(), old, updated)

	assert.Equal(t, []string{"USD:SGD"}, f.rates.Calls())
	assert.Len(t, f.market.Calls(), marketCalls, "currency change does not refetch prices")

	state := f.svc.State()
	assert.Equal(t, "SGD", state.Analytics.Currency)
	assert.InDelta(t, 50000*1.35, state.Analytics.TotalValue, 1e-6)
	assert.Len(t, state.History, historyBefore, "settings changes do not record history")

	require.NotEmpty(t, states)
	for _, s := range states {
		assert.Equal(t, "SGD", s.Analytics.Currency, "no published state mixes old analytics with the new currency")
	}
}

func TestSettingsChanged_IntervalRestartsTimer(t *testing.T) {
	f := newServiceFixture(t, btcHolding())
	f.svc.Start(context.Background())
	f.svc.Stop()
	callsBefore := len(f.market.Calls())

	old := f.settings.Get()
	updated := old
	updated.RefreshIntervalSeconds = 30
	f.svc.SettingsChanged(context.Background(), old, updated)
	f.svc.Stop()

	require.Equal(t, 2, f.scheduler.startCount())
	assert.Equal(t, 30*time.Second, f.scheduler.starts[1])
	assert.Len(t, f.market.Calls(), callsBefore, "interval change does not refresh immediately")
}

func TestSettingsChanged_AutoRefreshToggle(t *testing.T) {
	f := newServiceFixture(t, btcHolding())

	on := f.settings.Get()
	off := on
	off.AutoRefresh = false

	f.svc.SettingsChanged(context.Background(), on, off)
	assert.False(t, f.scheduler.isRunning())
	assert.Equal(t, 1, f.scheduler.stops)

	f.svc.SettingsChanged(context.Background(), off, on)
	f.svc.Stop()

	assert.Equal(t, 1, f.scheduler.startCount())
	assert.Len(t, f.market.Calls(), 1, "turning auto-refresh on refreshes right away")
}

func TestStart_AutoRefreshVisible(t *testing.T) {
	f := newServiceFixture(t, btcHolding())

	f.svc.Start(context.Background())
	f.svc.Stop()

	assert.Equal(t, []time.Duration{time.Minute}, f.scheduler.starts)
	assert.Len(t, f.market.Calls(), 1)
	assert.Equal(t, 50000.0, f.svc.State().Analytics.TotalValue)
}

func TestStart_AutoRefreshOff(t *testing.T) {
	f := newServiceFixture(t, btcHolding())
	s := defaultSettings()
	s.AutoRefresh = false
	f.settings.set(s)

	f.svc.Start(context.Background())
	f.svc.Stop()

	assert.Zero(t, f.scheduler.startCount())
	assert.Empty(t, f.market.Calls())

	state := f.svc.State()
	require.Len(t, state.Entries, 1, "view is built from holdings without prices")
	assert.Nil(t, state.Entries[0].Price)
	assert.Equal(t, 0.0, state.Analytics.TotalValue)
}

func TestStop_DropsBackgroundRefreshesUntilStart(t *testing.T) {
	f := newServiceFixture(t, btcHolding())
	f.svc.Stop()

	f.svc.HoldingsChanged(f.holdings.set(btcHolding(), domain.Holding{ID: "ethereum", Quantity: 2}))
	f.svc.Stop()
	assert.Empty(t, f.market.Calls())

	f.svc.Start(context.Background())
	f.svc.Stop()
	assert.Len(t, f.market.Calls(), 1)
}

func TestSchedulerTickRefreshes(t *testing.T) {
	f := newServiceFixture(t, btcHolding())
	f.svc.Start(context.Background())
	f.svc.Stop()

	f.scheduler.fire()
	assert.Len(t, f.market.Calls(), 2)
}

func TestSetVisible(t *testing.T) {
	f := newServiceFixture(t, btcHolding())

	var visibility []bool
	f.bus.Subscribe(events.VisibilityChanged, func(event *events.Event) {
		visibility = append(visibility, event.Data.(*events.VisibilityChangedData).Visible)
	})

	f.svc.SetVisible(true) // unchanged, ignored
	f.svc.SetVisible(false)
	assert.False(t, f.scheduler.isRunning())
	assert.False(t, f.svc.State().Visible)

	f.svc.SetVisible(true)
	f.svc.Stop()

	assert.Equal(t, 1, f.scheduler.startCount())
	assert.Len(t, f.market.Calls(), 1, "becoming visible refreshes right away")
	assert.Equal(t, []bool{false, true}, visibility)
}

func TestSetVisible_HiddenBlocksAutoRefreshStart(t *testing.T) {
	f := newServiceFixture(t, btcHolding())
	f.svc.SetVisible(false)

	on := f.settings.Get()
	off := on
	off.AutoRefresh = false
	f.svc.SettingsChanged(context.Background(), off, on)
	f.svc.Stop()

	assert.Zero(t, f.scheduler.startCount())
	assert.Empty(t, f.market.Calls())
}

func TestHoldingsChanged_NewAssetTriggersRefresh(t *testing.T) {
	f := newServiceFixture(t, btcHolding())
	require.NoError(t, f.svc.Refresh(context.Background()))

	holdings := f.holdings.set(btcHolding(), domain.Holding{ID: "ethereum", Quantity: 2})
	f.svc.HoldingsChanged(holdings)
	f.svc.Stop()

	calls := f.market.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, calls[1])

	state := f.svc.State()
	assert.Equal(t, 56000.0, state.Analytics.TotalValue)
	// refresh, holdings change, refresh
	assert.Len(t, state.History, 3)
}

func TestHoldingsChanged_PricedAssetsRecomputeOnly(t *testing.T) {
	f := newServiceFixture(t, btcHolding())
	require.NoError(t, f.svc.Refresh(context.Background()))

	more := btcHolding()
	more.Quantity = 2
	f.svc.HoldingsChanged(f.holdings.set(more))
	f.svc.Stop()

	assert.Len(t, f.market.Calls(), 1)
	state := f.svc.State()
	assert.Equal(t, 100000.0, state.Analytics.TotalValue)
	assert.Len(t, state.History, 2)
}

func TestHoldingsChanged_EmptyClearsAnalytics(t *testing.T) {
	f := newServiceFixture(t, btcHolding())
	require.NoError(t, f.svc.Refresh(context.Background()))

	f.svc.HoldingsChanged(f.holdings.set())

	state := f.svc.State()
	assert.Empty(t, state.Entries)
	assert.Nil(t, state.Analytics)
	assert.Len(t, state.History, 1, "no point is recorded without analytics")
}

func TestSubscribe(t *testing.T) {
	f := newServiceFixture(t, btcHolding())

	var mu sync.Mutex
	var loading []bool
	unsubscribe := f.svc.Subscribe(func(s State) {
		mu.Lock()
		loading = append(loading, s.Loading)
		mu.Unlock()
	})

	require.NoError(t, f.svc.Refresh(context.Background()))
	unsubscribe()
	require.NoError(t, f.svc.Refresh(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, loading)
}

func TestState_IsDeepCopy(t *testing.T) {
	f := newServiceFixture(t, testutil.NewHoldingFixtures()...)
	require.NoError(t, f.svc.Refresh(context.Background()))

	state := f.svc.State()
	state.Entries[0].Price.CurrentPrice = 1
	*state.Entries[0].CostBasis = 1
	state.History[0].AssetValues["bitcoin"] = 1
	state.Rates["XXX"] = domain.ExchangeRate{}

	fresh := f.svc.State()
	assert.Equal(t, 50000.0, fresh.Entries[0].Price.CurrentPrice)
	assert.Equal(t, 30000.0, *fresh.Entries[0].CostBasis)
	assert.Equal(t, 50000.0, fresh.History[0].AssetValues["bitcoin"])
	assert.NotContains(t, fresh.Rates, "XXX")
}

func TestReset(t *testing.T) {
	f := newServiceFixture(t, btcHolding())
	require.NoError(t, f.svc.Refresh(context.Background()))

	f.svc.Reset()

	state := f.svc.State()
	assert.Empty(t, state.Entries)
	assert.Nil(t, state.Analytics)
	assert.Empty(t, state.History)
	assert.Nil(t, state.LastRefreshAt)
	assert.Nil(t, Summarize(state.History))
	assert.False(t, f.scheduler.isRunning())
}

func TestHistorySummary(t *testing.T) {
	f := newServiceFixture(t, btcHolding())
	require.NoError(t, f.svc.Refresh(context.Background()))

	f.market.SetAssets(domain.MarketAsset{ID: "bitcoin", CurrentPrice: 60000})
	require.NoError(t, f.svc.Refresh(context.Background()))

	summary := Summarize(f.svc.State().History)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.Points)
	assert.Equal(t, 10000.0, summary.Change)
	assert.Equal(t, 60000.0, summary.High)
}
