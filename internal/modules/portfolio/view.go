package portfolio

import (
	"github.com/cht-holly/chtholly-vault/internal/domain"
)

// combine joins holdings with their snapshots, one entry per holding in
// holdings order
func combine(holdings []domain.Holding, snapshots map[string]domain.PriceSnapshot) []domain.PortfolioEntry {
	entries := make([]domain.PortfolioEntry, 0, len(holdings))
	for _, h := range holdings {
		entry := domain.PortfolioEntry{Holding: cloneHolding(h)}
		if snap, ok := snapshots[h.ID]; ok {
			entry.Price = &snap
		}
		entries = append(entries, entry)
	}
	return entries
}

// unpriced reports whether any holding has no snapshot yet
func unpriced(holdings []domain.Holding, snapshots map[string]domain.PriceSnapshot) bool {
	for _, h := range holdings {
		if _, ok := snapshots[h.ID]; !ok {
			return true
		}
	}
	return false
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneHolding(h domain.Holding) domain.Holding {
	h.CostBasis = cloneFloat(h.CostBasis)
	h.TargetMultiplier = cloneFloat(h.TargetMultiplier)
	return h
}

func cloneEntry(e domain.PortfolioEntry) domain.PortfolioEntry {
	e.Holding = cloneHolding(e.Holding)
	if e.Price != nil {
		p := *e.Price
		e.Price = &p
	}
	return e
}

func cloneEntries(entries []domain.PortfolioEntry) []domain.PortfolioEntry {
	out := make([]domain.PortfolioEntry, len(entries))
	for i, e := range entries {
		out[i] = cloneEntry(e)
	}
	return out
}
