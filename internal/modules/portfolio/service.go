// Package portfolio keeps the priced portfolio view in sync with the market.
package portfolio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/domain"
	"github.com/cht-holly/chtholly-vault/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrRefreshInProgress is returned when a refresh is requested while one is running
var ErrRefreshInProgress = errors.New("refresh already in progress")

// MarketData fetches market rows for a set of asset ids
type MarketData interface {
	GetMarketSnapshot(ctx context.Context, ids []string) ([]domain.MarketAsset, error)
}

// RateProvider fetches exchange rates
type RateProvider interface {
	GetRate(ctx context.Context, from, to string) (domain.ExchangeRate, error)
}

// Scheduler runs the periodic refresh
type Scheduler interface {
	Start(interval time.Duration, fn func())
	Stop()
}

// HoldingsSource provides the current holdings
type HoldingsSource interface {
	All() []domain.Holding
}

// SettingsSource provides the current settings
type SettingsSource interface {
	Get() domain.Settings
}

// State is a consistent copy of everything the service owns
type State struct {
	LastRefreshAt *time.Time                     `json:"last_refresh_at"`
	Analytics     *Analytics                     `json:"analytics"`
	Rates         map[string]domain.ExchangeRate `json:"rates"`
	Error         string                         `json:"error,omitempty"`
	Entries       []domain.PortfolioEntry        `json:"entries"`
	History       []HistoryPoint                 `json:"history"`
	Loading       bool                           `json:"loading"`
	Visible       bool                           `json:"visible"`
}

// RateTable returns the known USD->currency rates
func (st State) RateTable() RateTable {
	table := make(RateTable, len(st.Rates))
	for currency, rate := range st.Rates {
		table[currency] = rate.Rate
	}
	return table
}

// Service merges holdings with fetched prices and derives analytics and history.
//
// Refresh cycles never overlap. Network calls happen outside the lock and the
// results are applied in one step, so readers never see a half-merged view.
type Service struct {
	holdings     HoldingsSource
	settings     SettingsSource
	market       MarketData
	rates        RateProvider
	scheduler    Scheduler
	eventManager *events.Manager
	log          zerolog.Logger
	now          func() time.Time

	mu            sync.RWMutex
	snapshots     map[string]domain.PriceSnapshot
	rateByCcy     map[string]domain.ExchangeRate
	entries       []domain.PortfolioEntry
	analytics     *Analytics
	history       []HistoryPoint
	loading       bool
	errMsg        string
	lastRefreshAt time.Time
	visible       bool
	ctx           context.Context

	refreshing atomic.Bool
	bgMu       sync.Mutex
	stopped    bool
	background sync.WaitGroup

	subsMu  sync.RWMutex
	subs    map[uint64]func(State)
	nextSub uint64
}

// NewService creates the portfolio service. The host starts out visible.
func NewService(
	holdings HoldingsSource,
	settings SettingsSource,
	market MarketData,
	rates RateProvider,
	scheduler Scheduler,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		holdings:     holdings,
		settings:     settings,
		market:       market,
		rates:        rates,
		scheduler:    scheduler,
		eventManager: eventManager,
		log:          log.With().Str("service", "portfolio").Logger(),
		now:          time.Now,
		snapshots:    make(map[string]domain.PriceSnapshot),
		rateByCcy:    make(map[string]domain.ExchangeRate),
		visible:      true,
		ctx:          context.Background(),
		subs:         make(map[uint64]func(State)),
	}
}

// Start builds the initial view and, when auto-refresh is on and the host is
// visible, starts the timer and refreshes right away. ctx bounds background
// refreshes.
func (s *Service) Start(ctx context.Context) {
	holdings := s.holdings.All()
	settings := s.settings.Get()

	s.bgMu.Lock()
	s.stopped = false
	s.bgMu.Unlock()

	s.mu.Lock()
	s.ctx = ctx
	s.recombine(holdings, settings.DisplayCurrency)
	visible := s.visible
	s.mu.Unlock()

	s.publish()

	if settings.AutoRefresh && visible {
		s.startSchedule(settings.RefreshInterval())
		s.refreshAsync()
	}

	s.log.Info().
		Int("holdings", len(holdings)).
		Bool("auto_refresh", settings.AutoRefresh).
		Msg("Portfolio service started")
}

// Stop stops the timer and waits for background refreshes to finish.
// Refreshes requested after Stop are dropped until the next Start.
func (s *Service) Stop() {
	s.scheduler.Stop()

	s.bgMu.Lock()
	s.stopped = true
	s.bgMu.Unlock()

	s.background.Wait()
}

// State returns a deep copy of the current state
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// Subscribe registers fn to receive every published state. The returned
// function removes the subscription.
func (s *Service) Subscribe(fn func(State)) func() {
	s.subsMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// Refresh fetches snapshots for every held asset and rebuilds the view.
// With no holdings it does nothing. On failure the previous view, analytics
// and history are kept and the error message is stored. Assets added while the
// request was in flight get one follow-up refresh in the background.
func (s *Service) Refresh(ctx context.Context) error {
	held := s.holdings.All()
	if len(held) == 0 {
		return nil
	}

	if !s.refreshing.CompareAndSwap(false, true) {
		return ErrRefreshInProgress
	}

	followUp, err := s.refreshCycle(ctx, held)
	if err == nil && followUp {
		s.log.Debug().Msg("Holdings changed during refresh, pricing new assets")
		s.refreshAsync()
	}
	return err
}

// refreshCycle runs one fetch-and-apply cycle and releases the in-flight guard.
// followUp reports held assets that were neither requested nor priced.
func (s *Service) refreshCycle(ctx context.Context, held []domain.Holding) (followUp bool, err error) {
	defer s.refreshing.Store(false)

	cycleID := uuid.NewString()
	ids := make([]string, 0, len(held))
	requested := make(map[string]bool, len(held))
	for _, h := range held {
		ids = append(ids, h.ID)
		requested[h.ID] = true
	}

	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()
	s.publish()
	s.emit(&events.RefreshStartedData{CycleID: cycleID, Assets: len(ids)})

	log := s.log.With().Str("cycle_id", cycleID).Logger()
	log.Debug().Int("assets", len(ids)).Msg("Refreshing prices")

	assets, err := s.market.GetMarketSnapshot(ctx, ids)
	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.errMsg = err.Error()
		s.mu.Unlock()

		log.Warn().Err(err).Msg("Price refresh failed")
		s.publish()
		if s.eventManager != nil {
			s.eventManager.EmitError("portfolio", err, map[string]interface{}{"cycle_id": cycleID})
		}
		return false, err
	}

	fetchedAt := s.now()
	fresh := make(map[string]domain.PriceSnapshot, len(assets))
	for _, a := range assets {
		fresh[a.ID] = a.Snapshot(fetchedAt)
	}

	rate, rateOK := s.fetchRate(ctx, s.settings.Get().DisplayCurrency)

	// Holdings may have changed while the request was in flight
	held = s.holdings.All()

	s.mu.Lock()
	// The currency may have changed while the rate was in flight. A rate for
	// the old currency is dropped; the new one was stored by SettingsChanged.
	currency := s.settings.Get().DisplayCurrency
	rateOK = rateOK && rate.To == currency
	for id, snap := range fresh {
		s.snapshots[id] = snap
	}
	if rateOK {
		s.rateByCcy[rate.To] = rate
	}
	s.recombine(held, currency)
	s.appendHistoryLocked(fetchedAt)
	s.lastRefreshAt = fetchedAt
	s.loading = false
	totalValue := s.totalValueLocked()
	for _, h := range held {
		if _, priced := s.snapshots[h.ID]; !priced && !requested[h.ID] {
			followUp = true
		}
	}
	s.mu.Unlock()

	missing := len(ids) - len(fresh)
	log.Info().
		Int("assets", len(fresh)).
		Int("missing", missing).
		Float64("total_value", totalValue).
		Msg("Prices refreshed")

	s.publish()
	s.emit(&events.PriceUpdatedData{CycleID: cycleID, Assets: len(fresh), Missing: missing})
	if rateOK {
		s.emitRate(rate)
	}
	s.emit(&events.PortfolioChangedData{
		Reason:     "refresh",
		Holdings:   len(held),
		TotalValue: totalValue,
		Currency:   currency,
	})
	return followUp, nil
}

// HoldingsChanged rebuilds the view for a new holdings set and records a
// history point. A background refresh starts when some holding has no price yet.
func (s *Service) HoldingsChanged(holdings []domain.Holding) {
	currency := s.settings.Get().DisplayCurrency

	s.mu.Lock()
	s.recombine(holdings, currency)
	s.appendHistoryLocked(s.now())
	needsPrices := unpriced(holdings, s.snapshots)
	totalValue := s.totalValueLocked()
	s.mu.Unlock()

	s.publish()
	s.emit(&events.PortfolioChangedData{
		Reason:     "holdings",
		Holdings:   len(holdings),
		TotalValue: totalValue,
		Currency:   currency,
	})

	if needsPrices {
		s.refreshAsync()
	}
}

// SettingsChanged reacts to a committed settings change
func (s *Service) SettingsChanged(ctx context.Context, old, updated domain.Settings) {
	if old.DisplayCurrency != updated.DisplayCurrency {
		rate, ok := s.fetchRate(ctx, updated.DisplayCurrency)

		s.mu.Lock()
		if ok {
			s.rateByCcy[rate.To] = rate
		}
		s.recomputeLocked(updated.DisplayCurrency)
		s.mu.Unlock()

		if ok {
			s.emitRate(rate)
		}
	}

	s.mu.RLock()
	visible := s.visible
	s.mu.RUnlock()

	switch {
	case old.AutoRefresh != updated.AutoRefresh:
		if updated.AutoRefresh && visible {
			s.startSchedule(updated.RefreshInterval())
			s.refreshAsync()
		} else if !updated.AutoRefresh {
			s.scheduler.Stop()
		}
	case old.RefreshIntervalSeconds != updated.RefreshIntervalSeconds:
		if updated.AutoRefresh && visible {
			s.startSchedule(updated.RefreshInterval())
		}
	}

	s.publish()
}

// SetVisible pauses the timer while hidden. Becoming visible restarts it and
// refreshes right away when auto-refresh is on. In-flight requests are not
// cancelled.
func (s *Service) SetVisible(visible bool) {
	s.mu.Lock()
	if s.visible == visible {
		s.mu.Unlock()
		return
	}
	s.visible = visible
	s.mu.Unlock()

	settings := s.settings.Get()
	if !visible {
		s.scheduler.Stop()
	} else if settings.AutoRefresh {
		s.startSchedule(settings.RefreshInterval())
		s.refreshAsync()
	}

	s.log.Debug().Bool("visible", visible).Msg("Visibility changed")
	s.emit(&events.VisibilityChangedData{Visible: visible})
	s.publish()
}

// ClearError clears the stored refresh error
func (s *Service) ClearError() {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
	s.publish()
}

// Reset drops prices, rates, analytics and history and stops the timer
func (s *Service) Reset() {
	s.scheduler.Stop()

	s.mu.Lock()
	s.snapshots = make(map[string]domain.PriceSnapshot)
	s.rateByCcy = make(map[string]domain.ExchangeRate)
	s.entries = nil
	s.analytics = nil
	s.history = nil
	s.errMsg = ""
	s.loading = false
	s.lastRefreshAt = time.Time{}
	s.mu.Unlock()

	s.log.Info().Msg("Portfolio state reset")
	s.publish()
}

// fetchRate returns the USD->currency rate. A failure keeps the last known
// rate and is only logged.
func (s *Service) fetchRate(ctx context.Context, currency string) (domain.ExchangeRate, bool) {
	if currency == "" || currency == domain.BaseCurrency {
		return domain.ExchangeRate{}, false
	}

	rate, err := s.rates.GetRate(ctx, domain.BaseCurrency, currency)
	if err != nil {
		s.log.Warn().Err(err).Str("currency", currency).Msg("Exchange rate unavailable, keeping last known rate")
		return domain.ExchangeRate{}, false
	}
	return rate, true
}

func (s *Service) startSchedule(interval time.Duration) {
	s.scheduler.Start(interval, s.tick)
}

// tick runs on the scheduler goroutine
func (s *Service) tick() {
	s.runRefresh()
}

func (s *Service) refreshAsync() {
	s.bgMu.Lock()
	if s.stopped {
		s.bgMu.Unlock()
		return
	}
	s.background.Add(1)
	s.bgMu.Unlock()

	go func() {
		defer s.background.Done()
		s.runRefresh()
	}()
}

func (s *Service) runRefresh() {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	if err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrRefreshInProgress) {
		s.log.Debug().Err(err).Msg("Background refresh failed")
	}
}

// recombine must be called with s.mu held
func (s *Service) recombine(holdings []domain.Holding, currency string) {
	s.entries = combine(holdings, s.snapshots)
	s.recomputeLocked(currency)
}

func (s *Service) recomputeLocked(currency string) {
	s.analytics = ComputeAnalytics(s.entries, currency, s.rateTableLocked())
}

func (s *Service) appendHistoryLocked(at time.Time) {
	if s.analytics == nil {
		return
	}
	s.history = appendHistory(s.history, newHistoryPoint(s.analytics, at), s.now())
}

func (s *Service) rateTableLocked() RateTable {
	table := make(RateTable, len(s.rateByCcy))
	for currency, rate := range s.rateByCcy {
		table[currency] = rate.Rate
	}
	return table
}

func (s *Service) totalValueLocked() float64 {
	if s.analytics == nil {
		return 0
	}
	return s.analytics.TotalValue
}

func (s *Service) stateLocked() State {
	state := State{
		Entries:   cloneEntries(s.entries),
		Analytics: cloneAnalytics(s.analytics),
		History:   cloneHistory(s.history),
		Rates:     make(map[string]domain.ExchangeRate, len(s.rateByCcy)),
		Loading:   s.loading,
		Error:     s.errMsg,
		Visible:   s.visible,
	}
	for k, v := range s.rateByCcy {
		state.Rates[k] = v
	}
	if !s.lastRefreshAt.IsZero() {
		t := s.lastRefreshAt
		state.LastRefreshAt = &t
	}
	return state
}

// publish sends one consistent copy to every subscriber. Subscribers share
// the copy and must not modify it.
func (s *Service) publish() {
	s.subsMu.RLock()
	if len(s.subs) == 0 {
		s.subsMu.RUnlock()
		return
	}
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.RUnlock()

	state := s.State()
	for _, fn := range subs {
		fn(state)
	}
}

func (s *Service) emit(data events.EventData) {
	if s.eventManager != nil {
		s.eventManager.EmitTyped("portfolio", data)
	}
}

func (s *Service) emitRate(rate domain.ExchangeRate) {
	s.emit(&events.ExchangeRatesUpdatedData{
		From:   rate.From,
		To:     rate.To,
		Rate:   rate.Rate,
		Source: rate.Source,
	})
}
