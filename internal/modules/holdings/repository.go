// Package holdings owns the user's set of holdings.
package holdings

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/domain"
	"github.com/cht-holly/chtholly-vault/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultPortfolioName is used when no portfolio has been saved yet
const DefaultPortfolioName = "My Portfolio"

var (
	// ErrInvalidHolding is returned for input that would break a holding invariant
	ErrInvalidHolding = errors.New("invalid holding")
	// ErrNotFound is returned when no holding has the requested id
	ErrNotFound = errors.New("holding not found")
)

// Change actions
const (
	ActionAdd              = "add"
	ActionRemove           = "remove"
	ActionQuantity         = "quantity"
	ActionCostBasis        = "cost_basis"
	ActionTargetMultiplier = "target_multiplier"
	ActionImport           = "import"
)

// Persister stores the holdings document
type Persister interface {
	SaveHoldings(portfolio domain.HoldingsPortfolio) error
}

// Change describes one committed mutation. Holdings is a copy of the full set
// after the mutation.
type Change struct {
	Action   string
	AssetID  string
	Holdings []domain.Holding
}

// Listener is notified after every committed mutation
type Listener func(change Change)

// Repository holds the holdings in memory and writes the whole set through the
// persister on every mutation.
type Repository struct {
	mu           sync.Mutex
	portfolio    domain.HoldingsPortfolio
	persister    Persister
	eventManager *events.Manager
	listenersMu  sync.RWMutex
	listeners    []Listener
	now          func() time.Time
	log          zerolog.Logger
}

// NewRepository creates a holdings repository seeded with a previously saved
// portfolio. A nil portfolio starts an empty one.
func NewRepository(saved *domain.HoldingsPortfolio, persister Persister, eventManager *events.Manager, log zerolog.Logger) *Repository {
	r := &Repository{
		persister:    persister,
		eventManager: eventManager,
		now:          time.Now,
		log:          log.With().Str("repository", "holdings").Logger(),
	}

	if saved != nil {
		r.portfolio = clonePortfolio(*saved)
	} else {
		now := r.now()
		r.portfolio = domain.HoldingsPortfolio{
			ID:          uuid.NewString(),
			Name:        DefaultPortfolioName,
			Holdings:    []domain.Holding{},
			CreatedAt:   now,
			LastUpdated: now,
		}
	}
	return r
}

// OnChange registers a listener for committed mutations
func (r *Repository) OnChange(listener Listener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

// All returns a copy of the holdings in insertion order
func (r *Repository) All() []domain.Holding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneHoldings(r.portfolio.Holdings)
}

// Get returns the holding with the given id
func (r *Repository) Get(id string) (domain.Holding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(id); i >= 0 {
		return cloneHolding(r.portfolio.Holdings[i]), true
	}
	return domain.Holding{}, false
}

// Portfolio returns a copy of the whole holdings document
func (r *Repository) Portfolio() domain.HoldingsPortfolio {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clonePortfolio(r.portfolio)
}

// Add inserts a holding. When the id is already held, the quantities are
// summed and the other fields of the incoming holding are ignored.
func (r *Repository) Add(holding domain.Holding) error {
	if err := validateHolding(holding); err != nil {
		return err
	}

	return r.mutate(ActionAdd, holding.ID, func(p *domain.HoldingsPortfolio, now time.Time) error {
		if i := r.indexOf(holding.ID); i >= 0 {
			existing := &p.Holdings[i]
			existing.Quantity = addQuantities(existing.Quantity, holding.Quantity)
			return nil
		}

		added := cloneHolding(holding)
		added.AddedAt = now
		p.Holdings = append(p.Holdings, added)
		return nil
	})
}

// Remove deletes a holding permanently
func (r *Repository) Remove(id string) error {
	return r.mutate(ActionRemove, id, func(p *domain.HoldingsPortfolio, _ time.Time) error {
		i := r.indexOf(id)
		if i < 0 {
			return fmt.Errorf("remove %q: %w", id, ErrNotFound)
		}
		p.Holdings = append(p.Holdings[:i], p.Holdings[i+1:]...)
		return nil
	})
}

// SetQuantity overwrites the quantity of a holding
func (r *Repository) SetQuantity(id string, quantity float64) error {
	if err := validateQuantity(quantity); err != nil {
		return err
	}

	return r.mutate(ActionQuantity, id, func(p *domain.HoldingsPortfolio, _ time.Time) error {
		i := r.indexOf(id)
		if i < 0 {
			return fmt.Errorf("set quantity %q: %w", id, ErrNotFound)
		}
		p.Holdings[i].Quantity = quantity
		return nil
	})
}

// SetCostBasis sets the per-unit purchase price of a holding. nil clears it.
func (r *Repository) SetCostBasis(id string, price *float64) error {
	if price != nil && (*price < 0 || !isFinite(*price)) {
		return fmt.Errorf("cost basis must be a non-negative number: %w", ErrInvalidHolding)
	}

	return r.mutate(ActionCostBasis, id, func(p *domain.HoldingsPortfolio, _ time.Time) error {
		i := r.indexOf(id)
		if i < 0 {
			return fmt.Errorf("set cost basis %q: %w", id, ErrNotFound)
		}
		p.Holdings[i].CostBasis = cloneFloat(price)
		return nil
	})
}

// SetTargetMultiplier sets the target price multiplier of a holding. nil clears it.
func (r *Repository) SetTargetMultiplier(id string, multiplier *float64) error {
	if multiplier != nil && (*multiplier <= 0 || !isFinite(*multiplier)) {
		return fmt.Errorf("target multiplier must be positive: %w", ErrInvalidHolding)
	}

	return r.mutate(ActionTargetMultiplier, id, func(p *domain.HoldingsPortfolio, _ time.Time) error {
		i := r.indexOf(id)
		if i < 0 {
			return fmt.Errorf("set target multiplier %q: %w", id, ErrNotFound)
		}
		p.Holdings[i].TargetMultiplier = cloneFloat(multiplier)
		return nil
	})
}

// ImportAll replaces the whole set. Duplicate ids in the input are merged by
// summing their quantities; the first occurrence keeps its other fields.
func (r *Repository) ImportAll(holdings []domain.Holding) error {
	for _, h := range holdings {
		if err := validateHolding(h); err != nil {
			return fmt.Errorf("import %q: %w", h.ID, err)
		}
	}

	return r.mutate(ActionImport, "", func(p *domain.HoldingsPortfolio, now time.Time) error {
		imported := make([]domain.Holding, 0, len(holdings))
		index := make(map[string]int, len(holdings))
		for _, h := range holdings {
			if i, ok := index[h.ID]; ok {
				imported[i].Quantity = addQuantities(imported[i].Quantity, h.Quantity)
				continue
			}
			h = cloneHolding(h)
			if h.AddedAt.IsZero() {
				h.AddedAt = now
			}
			index[h.ID] = len(imported)
			imported = append(imported, h)
		}
		p.Holdings = imported
		return nil
	})
}

// ExportAll returns the export document for the current holdings
func (r *Repository) ExportAll() ExportDocument {
	r.mu.Lock()
	defer r.mu.Unlock()
	return newExportDocument(r.portfolio.Name, r.now(), r.portfolio.Holdings)
}

// mutate applies fn to the portfolio, persists it, and notifies listeners.
// fn runs under the lock and must not call back into the repository.
func (r *Repository) mutate(action, assetID string, fn func(p *domain.HoldingsPortfolio, now time.Time) error) error {
	r.mu.Lock()
	now := r.now()
	if err := fn(&r.portfolio, now); err != nil {
		r.mu.Unlock()
		return err
	}
	r.portfolio.LastUpdated = now
	snapshot := clonePortfolio(r.portfolio)
	r.persist(snapshot)
	r.mu.Unlock()

	r.log.Debug().
		Str("action", action).
		Str("asset_id", assetID).
		Int("count", len(snapshot.Holdings)).
		Msg("Holdings changed")

	if r.eventManager != nil {
		r.eventManager.EmitTyped("holdings", &events.HoldingsChangedData{
			Action:  action,
			AssetID: assetID,
			Count:   len(snapshot.Holdings),
		})
	}

	r.listenersMu.RLock()
	listeners := append([]Listener(nil), r.listeners...)
	r.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener(Change{
			Action:   action,
			AssetID:  assetID,
			Holdings: cloneHoldings(snapshot.Holdings),
		})
	}
	return nil
}

// persist writes under the repository lock so saves land in mutation order
func (r *Repository) persist(portfolio domain.HoldingsPortfolio) {
	if r.persister == nil {
		return
	}
	if err := r.persister.SaveHoldings(portfolio); err != nil {
		r.log.Error().Err(err).Msg("Failed to persist holdings")
	}
}

func (r *Repository) indexOf(id string) int {
	for i := range r.portfolio.Holdings {
		if r.portfolio.Holdings[i].ID == id {
			return i
		}
	}
	return -1
}

func validateHolding(h domain.Holding) error {
	if h.ID == "" {
		return fmt.Errorf("asset id is required: %w", ErrInvalidHolding)
	}
	if err := validateQuantity(h.Quantity); err != nil {
		return err
	}
	if h.CostBasis != nil && (*h.CostBasis < 0 || !isFinite(*h.CostBasis)) {
		return fmt.Errorf("cost basis must be a non-negative number: %w", ErrInvalidHolding)
	}
	if h.TargetMultiplier != nil && (*h.TargetMultiplier <= 0 || !isFinite(*h.TargetMultiplier)) {
		return fmt.Errorf("target multiplier must be positive: %w", ErrInvalidHolding)
	}
	return nil
}

func validateQuantity(q float64) error {
	if q < 0 || !isFinite(q) {
		return fmt.Errorf("quantity must be a non-negative number, got %v: %w", q, ErrInvalidHolding)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// addQuantities sums in decimal so repeated adds of 0.1 do not drift
func addQuantities(a, b float64) float64 {
	sum, _ := decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Float64()
	return sum
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

func cloneHoldings(holdings []domain.Holding) []domain.Holding {
	out := make([]domain.Holding, len(holdings))
	for i, h := range holdings {
		out[i] = cloneHolding(h)
	}
	return out
}

func clonePortfolio(p domain.HoldingsPortfolio) domain.HoldingsPortfolio {
	p.Holdings = cloneHoldings(p.Holdings)
	return p
}
