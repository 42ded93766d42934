// Package handlers provides HTTP handlers for the priced portfolio view.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/domain"
	"github.com/cht-holly/chtholly-vault/internal/modules/portfolio"
	"github.com/cht-holly/chtholly-vault/internal/modules/settings"
	"github.com/rs/zerolog"
)

// Resetter wipes holdings, settings and derived state in one step
type Resetter interface {
	ResetAll(ctx context.Context) error
}

// Handler handles portfolio HTTP requests
type Handler struct {
	service  *portfolio.Service
	settings portfolio.SettingsSource
	resetter Resetter
	log      zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, settings portfolio.SettingsSource, resetter Resetter, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		settings: settings,
		resetter: resetter,
		log:      log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetPortfolio handles GET /api/portfolio
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.buildView(h.service.State()))
}

// HandleRefresh handles POST /api/portfolio/refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	err := h.service.Refresh(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, portfolio.ErrRefreshInProgress):
			h.writeError(w, http.StatusConflict, err.Error())
		case domain.HasCode(err, domain.ErrCodeRateLimited):
			h.writeError(w, http.StatusTooManyRequests, err.Error())
		default:
			h.writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	h.writeJSON(w, http.StatusOK, h.buildView(h.service.State()))
}

// HandleGetAnalytics handles GET /api/portfolio/analytics
func (h *Handler) HandleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	state := h.service.State()
	m := masker{hide: h.settings.Get().HideValues}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"analytics": newAnalyticsView(state.Analytics, m),
	})
}

// HandleGetHistory handles GET /api/portfolio/history
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	if h.settings.Get().HideValues {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"history":       []portfolio.HistoryPoint{},
			"summary":       nil,
			"values_hidden": true,
		})
		return
	}

	state := h.service.State()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"history":       state.History,
		"summary":       portfolio.Summarize(state.History),
		"values_hidden": false,
	})
}

// HandleClearError handles POST /api/portfolio/clear-error
func (h *Handler) HandleClearError(w http.ResponseWriter, r *http.Request) {
	h.service.ClearError()
	h.writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// HandleReset handles POST /api/portfolio/reset
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.resetter.ResetAll(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Failed to reset portfolio")
		h.writeError(w, http.StatusInternalServerError, "failed to reset portfolio")
		return
	}

	h.log.Info().Msg("Portfolio reset")
	h.writeJSON(w, http.StatusOK, h.buildView(h.service.State()))
}

// HandleSetVisibility handles POST /api/visibility
func (h *Handler) HandleSetVisibility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Visible *bool `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Visible == nil {
		h.writeError(w, http.StatusBadRequest, "visible is required")
		return
	}

	h.service.SetVisible(*req.Visible)
	h.writeJSON(w, http.StatusOK, map[string]bool{"visible": *req.Visible})
}

func (h *Handler) buildView(state portfolio.State) PortfolioView {
	current := h.settings.Get()
	m := masker{hide: current.HideValues}
	rates := state.RateTable()

	view := PortfolioView{
		LastRefreshAt:  state.LastRefreshAt,
		Analytics:      newAnalyticsView(state.Analytics, m),
		Currency:       current.DisplayCurrency,
		CurrencySymbol: settings.CurrencySymbol(current.DisplayCurrency),
		Error:          state.Error,
		Entries:        make([]EntryView, 0, len(state.Entries)),
		Loading:        state.Loading,
		Visible:        state.Visible,
		ValuesHidden:   current.HideValues,
	}
	for _, e := range state.Entries {
		view.Entries = append(view.Entries, newEntryView(e, current, rates, m))
	}
	return view
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON error")
	}
}
