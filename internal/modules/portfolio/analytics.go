package portfolio

import (
	"sort"

	"github.com/cht-holly/chtholly-vault/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// RateTable maps a display currency to its USD->currency rate
type RateTable map[string]float64

// Convert converts a USD amount into currency. Without a usable rate the
// amount is returned unconverted.
func (t RateTable) Convert(amountUSD float64, currency string) float64 {
	if currency == "" || currency == domain.BaseCurrency {
		return amountUSD
	}
	if rate, ok := t[currency]; ok && rate > 0 {
		return amountUSD * rate
	}
	return amountUSD
}

// Performer is the best or worst 24h mover
type Performer struct {
	Entry     domain.PortfolioEntry `json:"entry"`
	ChangePct float64               `json:"change_pct"`
}

// Allocation is one asset's share of the portfolio value
type Allocation struct {
	Entry      domain.PortfolioEntry `json:"entry"`
	Value      float64               `json:"value"`
	Percentage float64               `json:"percentage"`
}

// Analytics are the values derived from the portfolio view, in Currency
type Analytics struct {
	BestPerformer      *Performer   `json:"best_performer"`
	WorstPerformer     *Performer   `json:"worst_performer"`
	Currency           string       `json:"currency"`
	Distribution       []Allocation `json:"distribution"`
	TotalValue         float64      `json:"total_value"`
	TotalChange24h     float64      `json:"total_change_24h"`
	TotalChange24hPct  float64      `json:"total_change_24h_pct"`
	TotalCostBasis     float64      `json:"total_cost_basis"`
	TotalProfitLoss    float64      `json:"total_profit_loss"`
	TotalProfitLossPct float64      `json:"total_profit_loss_pct"`
}

// ComputeAnalytics derives analytics from entries. It returns nil for an
// empty portfolio. Entries without a price count as price 0 and change 0.
func ComputeAnalytics(entries []domain.PortfolioEntry, currency string, rates RateTable) *Analytics {
	if len(entries) == 0 {
		return nil
	}
	if currency == "" {
		currency = domain.BaseCurrency
	}

	values := make([]float64, len(entries))
	changes := make([]float64, len(entries))
	var costs, costedValues []float64

	a := &Analytics{
		Currency:     currency,
		Distribution: make([]Allocation, 0, len(entries)),
	}

	for i, entry := range entries {
		price := rates.Convert(entry.CurrentPrice(), currency)
		value := price * entry.Quantity
		pct := entry.Change24hPct()

		values[i] = value
		changes[i] = value * pct / 100

		// Strict comparisons: the first entry seen wins ties
		if a.BestPerformer == nil || pct > a.BestPerformer.ChangePct {
			a.BestPerformer = &Performer{Entry: entry, ChangePct: pct}
		}
		if a.WorstPerformer == nil || pct < a.WorstPerformer.ChangePct {
			a.WorstPerformer = &Performer{Entry: entry, ChangePct: pct}
		}

		if entry.CostBasis != nil {
			costs = append(costs, rates.Convert(*entry.CostBasis, currency)*entry.Quantity)
			costedValues = append(costedValues, value)
		}

		a.Distribution = append(a.Distribution, Allocation{Entry: entry, Value: value})
	}

	a.TotalValue = floats.Sum(values)
	a.TotalChange24h = floats.Sum(changes)
	if a.TotalValue != 0 {
		a.TotalChange24hPct = a.TotalChange24h / a.TotalValue * 100
	}

	for i := range a.Distribution {
		if a.TotalValue > 0 {
			a.Distribution[i].Percentage = a.Distribution[i].Value / a.TotalValue * 100
		}
	}
	sort.SliceStable(a.Distribution, func(i, j int) bool {
		return a.Distribution[i].Value > a.Distribution[j].Value
	})

	if len(costs) > 0 {
		a.TotalCostBasis = floats.Sum(costs)
		a.TotalProfitLoss = floats.Sum(costedValues) - a.TotalCostBasis
		if a.TotalCostBasis > 0 {
			a.TotalProfitLossPct = a.TotalProfitLoss / a.TotalCostBasis * 100
		}
	}

	return a
}

func cloneAnalytics(a *Analytics) *Analytics {
	if a == nil {
		return nil
	}
	c := *a
	if a.BestPerformer != nil {
		best := *a.BestPerformer
		best.Entry = cloneEntry(best.Entry)
		c.BestPerformer = &best
	}
	if a.WorstPerformer != nil {
		worst := *a.WorstPerformer
		worst.Entry = cloneEntry(worst.Entry)
		c.WorstPerformer = &worst
	}
	c.Distribution = make([]Allocation, len(a.Distribution))
	for i, alloc := range a.Distribution {
		alloc.Entry = cloneEntry(alloc.Entry)
		c.Distribution[i] = alloc
	}
	return &c
}
