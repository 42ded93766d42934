package handlers

import (
	"time"

	"github.com/cht-holly/chtholly-vault/internal/domain"
	"github.com/cht-holly/chtholly-vault/internal/modules/portfolio"
)

// EntryView is one portfolio row as shown to the UI. Monetary fields and
// quantities are nil when values are hidden.
type EntryView struct {
	AddedAt          time.Time `json:"added_at"`
	Quantity         *float64  `json:"quantity"`
	Price            *float64  `json:"price"`
	Change24hPct     *float64  `json:"change_24h_pct"`
	Value            *float64  `json:"value"`
	CostBasis        *float64  `json:"cost_basis"`
	TargetMultiplier *float64  `json:"target_multiplier,omitempty"`
	TargetPrice      *float64  `json:"target_price,omitempty"`
	ID               string    `json:"id"`
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name"`
	Image            string    `json:"image,omitempty"`
	PriceCurrency    string    `json:"price_currency"`
	Priced           bool      `json:"priced"`
}

// AllocationView is one distribution slice
type AllocationView struct {
	Value      *float64 `json:"value"`
	ID         string   `json:"id"`
	Symbol     string   `json:"symbol"`
	Percentage float64  `json:"percentage"`
}

// PerformerView is the best or worst mover
type PerformerView struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	ChangePct float64 `json:"change_pct"`
}

// AnalyticsView is the analytics block as shown to the UI
type AnalyticsView struct {
	TotalValue         *float64         `json:"total_value"`
	TotalChange24h     *float64         `json:"total_change_24h"`
	TotalCostBasis     *float64         `json:"total_cost_basis"`
	TotalProfitLoss    *float64         `json:"total_profit_loss"`
	BestPerformer      *PerformerView   `json:"best_performer"`
	WorstPerformer     *PerformerView   `json:"worst_performer"`
	Currency           string           `json:"currency"`
	Distribution       []AllocationView `json:"distribution"`
	TotalChange24hPct  float64          `json:"total_change_24h_pct"`
	TotalProfitLossPct float64          `json:"total_profit_loss_pct"`
}

// PortfolioView is the response of GET /api/portfolio
type PortfolioView struct {
	LastRefreshAt  *time.Time     `json:"last_refresh_at"`
	Analytics      *AnalyticsView `json:"analytics"`
	Currency       string         `json:"currency"`
	CurrencySymbol string         `json:"currency_symbol"`
	Error          string         `json:"error,omitempty"`
	Entries        []EntryView    `json:"entries"`
	Loading        bool           `json:"loading"`
	Visible        bool           `json:"visible"`
	ValuesHidden   bool           `json:"values_hidden"`
}

// masker hides monetary values when the user asked for it
type masker struct {
	hide bool
}

func (m masker) amount(v float64) *float64 {
	if m.hide {
		return nil
	}
	return &v
}

func (m masker) optional(v *float64) *float64 {
	if m.hide || v == nil {
		return nil
	}
	c := *v
	return &c
}

func newEntryView(e domain.PortfolioEntry, settings domain.Settings, rates portfolio.RateTable, m masker) EntryView {
	view := EntryView{
		AddedAt:          e.AddedAt,
		ID:               e.ID,
		Symbol:           e.Symbol,
		Name:             e.Name,
		Image:            e.DisplayImage(),
		Quantity:         m.amount(e.Quantity),
		CostBasis:        m.optional(e.CostBasis),
		TargetMultiplier: m.optional(e.TargetMultiplier),
		PriceCurrency:    settings.DisplayCurrency,
		Priced:           e.Price != nil,
	}

	if settings.ShowPricesInBaseCurrency {
		view.PriceCurrency = domain.BaseCurrency
	}

	if e.Price != nil {
		price := rates.Convert(e.CurrentPrice(), view.PriceCurrency)
		pct := e.Change24hPct()
		view.Price = &price
		view.Change24hPct = &pct
		view.Value = m.amount(rates.Convert(e.CurrentPrice(), settings.DisplayCurrency) * e.Quantity)
	}

	if settings.ShowTargetPrices {
		if target, ok := e.TargetPrice(); ok {
			view.TargetPrice = m.amount(rates.Convert(target, view.PriceCurrency))
		}
	}
	return view
}

func newAnalyticsView(a *portfolio.Analytics, m masker) *AnalyticsView {
	if a == nil {
		return nil
	}

	view := &AnalyticsView{
		Currency:           a.Currency,
		TotalValue:         m.amount(a.TotalValue),
		TotalChange24h:     m.amount(a.TotalChange24h),
		TotalChange24hPct:  a.TotalChange24hPct,
		TotalCostBasis:     m.amount(a.TotalCostBasis),
		TotalProfitLoss:    m.amount(a.TotalProfitLoss),
		TotalProfitLossPct: a.TotalProfitLossPct,
		Distribution:       make([]AllocationView, 0, len(a.Distribution)),
	}
	if a.BestPerformer != nil {
		view.BestPerformer = &PerformerView{
			ID:        a.BestPerformer.Entry.ID,
			Symbol:    a.BestPerformer.Entry.Symbol,
			ChangePct: a.BestPerformer.ChangePct,
		}
	}
	if a.WorstPerformer != nil {
		view.WorstPerformer = &PerformerView{
			ID:        a.WorstPerformer.Entry.ID,
			Symbol:    a.WorstPerformer.Entry.Symbol,
			ChangePct: a.WorstPerformer.ChangePct,
		}
	}
	for _, alloc := range a.Distribution {
		view.Distribution = append(view.Distribution, AllocationView{
			ID:         alloc.Entry.ID,
			Symbol:     alloc.Entry.Symbol,
			Value:      m.amount(alloc.Value),
			Percentage: alloc.Percentage,
		})
	}
	return view
}
