package testing

import (
	"context"
	"sync"

	"github.com/cht-holly/chtholly-vault/internal/domain"
)

// MockMarketData is a mock implementation of the market data gateway
type MockMarketData struct {
	mu     sync.Mutex
	assets map[string]domain.MarketAsset
	err    error
	calls  [][]string
	block  chan struct{}
}

// NewMockMarketData creates a new mock market data gateway
func NewMockMarketData(assets ...domain.MarketAsset) *MockMarketData {
	m := &MockMarketData{assets: make(map[string]domain.MarketAsset)}
	m.SetAssets(assets...)
	return m
}

// SetAssets replaces the rows returned by the mock
func (m *MockMarketData) SetAssets(assets ...domain.MarketAsset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets = make(map[string]domain.MarketAsset, len(assets))
	for _, a := range assets {
		m.assets[a.ID] = a
	}
}

// SetError sets the error to return from GetMarketSnapshot
func (m *MockMarketData) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Block makes every call wait until Release is called
func (m *MockMarketData) Block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = make(chan struct{})
}

// Release unblocks waiting calls
func (m *MockMarketData) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.block != nil {
		close(m.block)
		m.block = nil
	}
}

// Calls returns the id lists of every call made so far
func (m *MockMarketData) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.calls...)
}

// GetMarketSnapshot returns the configured rows for the requested ids
func (m *MockMarketData) GetMarketSnapshot(ctx context.Context, ids []string) ([]domain.MarketAsset, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), ids...))
	block := m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, domain.AsAPIError(ctx.Err())
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	result := make([]domain.MarketAsset, 0, len(ids))
	for _, id := range ids {
		if a, ok := m.assets[id]; ok {
			result = append(result, a)
		}
	}
	return result, nil
}

// MockRateProvider is a mock implementation of the exchange rate gateway
type MockRateProvider struct {
	mu     sync.Mutex
	rates  map[string]float64
	err    error
	calls  []string
	blocks map[string]chan struct{}
}

// NewMockRateProvider creates a mock with rates keyed by target currency (base USD)
func NewMockRateProvider(rates map[string]float64) *MockRateProvider {
	if rates == nil {
		rates = make(map[string]float64)
	}
	return &MockRateProvider{rates: rates, blocks: make(map[string]chan struct{})}
}

// Block makes calls for the target currency wait until Release(currency)
func (m *MockRateProvider) Block(currency string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[currency] = make(chan struct{})
}

// Release unblocks waiting calls for the target currency
func (m *MockRateProvider) Release(currency string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if block, ok := m.blocks[currency]; ok {
		close(block)
		delete(m.blocks, currency)
	}
}

// SetRate sets the USD->currency rate
func (m *MockRateProvider) SetRate(currency string, rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[currency] = rate
}

// SetError sets the error to return from GetRate
func (m *MockRateProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the "FROM:TO" pairs requested so far
func (m *MockRateProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// GetRate returns the configured rate
func (m *MockRateProvider) GetRate(ctx context.Context, from, to string) (domain.ExchangeRate, error) {
	m.mu.Lock()
	m.calls = append(m.calls, from+":"+to)
	block := m.blocks[to]
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.ExchangeRate{}, domain.AsAPIError(ctx.Err())
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return domain.ExchangeRate{}, m.err
	}
	if from == to {
		return domain.ExchangeRate{From: from, To: to, Rate: 1, Source: domain.RateSourceIdentity}, nil
	}
	rate, ok := m.rates[to]
	if !ok {
		return domain.ExchangeRate{}, domain.NewAPIError(domain.ErrCodeNoData, "no rate for %s", to)
	}
	return domain.ExchangeRate{From: from, To: to, Rate: rate, Source: domain.RateSourceProvider}, nil
}
