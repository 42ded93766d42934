// Package handlers provides HTTP handlers for user settings.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/modules/settings"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler provides HTTP handlers for settings endpoints
type Handler struct {
	store *settings.Store
	log   zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(store *settings.Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "settings").Logger(),
	}
}

// RegisterRoutes registers settings routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Patch("/", h.HandleUpdate)
		r.Post("/reset", h.HandleReset)
		r.Get("/currencies", h.HandleGetCurrencies)
	})
}

// HandleGet handles GET /api/settings
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"settings":     h.store.Get(),
		"descriptions": settings.SettingDescriptions,
	})
}

// HandleUpdate handles PATCH /api/settings
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch settings.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.store.Update(r.Context(), patch)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidSetting) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to update settings")
		h.writeError(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"settings": updated,
	})
}

// HandleReset handles POST /api/settings/reset
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"settings": h.store.Reset(r.Context()),
	})
}

// HandleGetCurrencies handles GET /api/settings/currencies
func (h *Handler) HandleGetCurrencies(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"currencies": settings.CurrencyOptions(),
	})
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
