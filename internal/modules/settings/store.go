package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cht-holly/chtholly-vault/internal/domain"
	"github.com/cht-holly/chtholly-vault/internal/events"
	"github.com/rs/zerolog"
)

// ErrInvalidSetting is returned when an update would store an unusable value
var ErrInvalidSetting = errors.New("invalid setting")

// Persister stores the settings document
type Persister interface {
	SaveSettings(settings domain.Settings) error
}

// Listener is notified with the settings before and after a committed change
type Listener func(ctx context.Context, old, updated domain.Settings)

// Patch is a partial update. nil fields are left unchanged.
type Patch struct {
	DisplayCurrency          *string `json:"display_currency,omitempty"`
	Theme                    *string `json:"theme,omitempty"`
	RefreshIntervalSeconds   *int    `json:"refresh_interval_seconds,omitempty"`
	AutoRefresh              *bool   `json:"auto_refresh,omitempty"`
	HideValues               *bool   `json:"hide_values,omitempty"`
	ShowPricesInBaseCurrency *bool   `json:"show_prices_in_base_currency,omitempty"`
	ShowTargetPrices         *bool   `json:"show_target_prices,omitempty"`
}

// Store holds the current settings. Listeners see changes one at a time, in
// commit order, and must not call Update or Reset themselves.
type Store struct {
	mu           sync.Mutex
	current      domain.Settings
	committed    uint64
	notifyMu     sync.Mutex
	notifyTurn   *sync.Cond
	notified     uint64
	persister    Persister
	eventManager *events.Manager
	listenersMu  sync.RWMutex
	listeners    []Listener
	log          zerolog.Logger
}

// NewStore creates a settings store from previously saved settings. nil or
// out-of-range saved fields fall back to the defaults.
func NewStore(saved *domain.Settings, persister Persister, eventManager *events.Manager, log zerolog.Logger) *Store {
	s := &Store{
		persister:    persister,
		eventManager: eventManager,
		log:          log.With().Str("service", "settings").Logger(),
	}
	s.notifyTurn = sync.NewCond(&s.notifyMu)

	s.current = SettingDefaults
	if saved != nil {
		s.current = normalize(*saved)
	}
	return s
}

// OnChange registers a listener for committed changes
func (s *Store) OnChange(listener Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Get returns the current settings
func (s *Store) Get() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update validates and applies a patch. A patch that changes nothing is not
// persisted and notifies nobody.
func (s *Store) Update(ctx context.Context, patch Patch) (domain.Settings, error) {
	s.mu.Lock()
	old := s.current
	updated, err := apply(old, patch)
	if err != nil {
		s.mu.Unlock()
		return old, err
	}
	return s.commit(ctx, old, updated)
}

// Reset restores the defaults
func (s *Store) Reset(ctx context.Context) domain.Settings {
	s.mu.Lock()
	updated, _ := s.commit(ctx, s.current, SettingDefaults)
	return updated
}

// commit must be entered with s.mu held and releases it
func (s *Store) commit(ctx context.Context, old, updated domain.Settings) (domain.Settings, error) {
	changed := diff(old, updated)
	if len(changed) == 0 {
		s.mu.Unlock()
		return old, nil
	}

	s.current = updated
	if s.persister != nil {
		if err := s.persister.SaveSettings(updated); err != nil {
			s.log.Error().Err(err).Msg("Failed to persist settings")
		}
	}
	s.committed++
	seq := s.committed
	s.mu.Unlock()

	s.waitTurn(seq)
	defer s.finishTurn(seq)

	s.log.Info().Strs("changed", changed).Msg("Settings updated")

	if s.eventManager != nil {
		s.eventManager.EmitTyped("settings", &events.SettingsChangedData{Changed: changed})
	}

	s.listenersMu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener(ctx, old, updated)
	}
	return updated, nil
}

// waitTurn blocks until every earlier commit has notified its listeners
func (s *Store) waitTurn(seq uint64) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for s.notified != seq-1 {
		s.notifyTurn.Wait()
	}
}

func (s *Store) finishTurn(seq uint64) {
	s.notifyMu.Lock()
	s.notified = seq
	s.notifyMu.Unlock()
	s.notifyTurn.Broadcast()
}

func apply(current domain.Settings, patch Patch) (domain.Settings, error) {
	next := current

	if patch.DisplayCurrency != nil {
		code := strings.ToUpper(strings.TrimSpace(*patch.DisplayCurrency))
		if !IsSupportedCurrency(code) {
			return current, fmt.Errorf("unsupported display currency %q: %w", *patch.DisplayCurrency, ErrInvalidSetting)
		}
		next.DisplayCurrency = code
	}
	if patch.RefreshIntervalSeconds != nil {
		interval := *patch.RefreshIntervalSeconds
		if interval < MinRefreshIntervalSeconds || interval > MaxRefreshIntervalSeconds {
			return current, fmt.Errorf("refresh interval must be between %d and %d seconds: %w",
				MinRefreshIntervalSeconds, MaxRefreshIntervalSeconds, ErrInvalidSetting)
		}
		next.RefreshIntervalSeconds = interval
	}
	if patch.Theme != nil {
		if !isValidTheme(*patch.Theme) {
			return current, fmt.Errorf("unknown theme %q: %w", *patch.Theme, ErrInvalidSetting)
		}
		next.Theme = *patch.Theme
	}
	if patch.AutoRefresh != nil {
		next.AutoRefresh = *patch.AutoRefresh
	}
	if patch.HideValues != nil {
		next.HideValues = *patch.HideValues
	}
	if patch.ShowPricesInBaseCurrency != nil {
		next.ShowPricesInBaseCurrency = *patch.ShowPricesInBaseCurrency
	}
	if patch.ShowTargetPrices != nil {
		next.ShowTargetPrices = *patch.ShowTargetPrices
	}
	return next, nil
}

// diff returns the JSON names of the fields that differ
func diff(a, b domain.Settings) []string {
	var changed []string
	if a.DisplayCurrency != b.DisplayCurrency {
		changed = append(changed, "display_currency")
	}
	if a.RefreshIntervalSeconds != b.RefreshIntervalSeconds {
		changed = append(changed, "refresh_interval_seconds")
	}
	if a.AutoRefresh != b.AutoRefresh {
		changed = append(changed, "auto_refresh")
	}
	if a.HideValues != b.HideValues {
		changed = append(changed, "hide_values")
	}
	if a.ShowPricesInBaseCurrency != b.ShowPricesInBaseCurrency {
		changed = append(changed, "show_prices_in_base_currency")
	}
	if a.ShowTargetPrices != b.ShowTargetPrices {
		changed = append(changed, "show_target_prices")
	}
	if a.Theme != b.Theme {
		changed = append(changed, "theme")
	}
	return changed
}

func normalize(s domain.Settings) domain.Settings {
	if !IsSupportedCurrency(s.DisplayCurrency) {
		s.DisplayCurrency = SettingDefaults.DisplayCurrency
	}
	s.DisplayCurrency = strings.ToUpper(s.DisplayCurrency)
	if s.RefreshIntervalSeconds < MinRefreshIntervalSeconds || s.RefreshIntervalSeconds > MaxRefreshIntervalSeconds {
		s.RefreshIntervalSeconds = SettingDefaults.RefreshIntervalSeconds
	}
	if !isValidTheme(s.Theme) {
		s.Theme = SettingDefaults.Theme
	}
	return s
}
