// Package handlers provides HTTP handlers for market data lookups.
package handlers

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/domain"
	"github.com/cht-holly/chtholly-vault/internal/utils"
	"github.com/rs/zerolog"
)

const maxHistoryDays = 365

// MarketData is the subset of the market data gateway used by the handlers.
type MarketData interface {
	SearchAssets(ctx context.Context, query string, excludeIDs []string) ([]domain.AssetListing, error)
	GetPopular(ctx context.Context) ([]domain.MarketAsset, error)
	GetHistory(ctx context.Context, id string, days int) ([]domain.PricePoint, error)
}

// RateProvider resolves exchange rates and converts amounts.
type RateProvider interface {
	GetRate(ctx context.Context, from, to string) (domain.ExchangeRate, error)
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}

// Handler handles market HTTP requests
type Handler struct {
	market MarketData
	rates  RateProvider
	log    zerolog.Logger
}

// NewHandler creates a new market handler
func NewHandler(market MarketData, rates RateProvider, log zerolog.Logger) *Handler {
	return &Handler{
		market: market,
		rates:  rates,
		log:    log.With().Str("handler", "market").Logger(),
	}
}

// HandleSearch handles GET /api/market/search?q=&exclude=
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	exclude := utils.ParseList(r.URL.Query().Get("exclude"), nil)

	results, err := h.market.SearchAssets(r.Context(), query, exclude)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}

// HandleGetPopular handles GET /api/market/popular
func (h *Handler) HandleGetPopular(w http.ResponseWriter, r *http.Request) {
	assets, err := h.market.GetPopular(r.Context())
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"assets": assets,
		"count":  len(assets),
	})
}

// HandleGetHistory handles GET /api/market/assets/{id}/history?days=
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request, id string) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxHistoryDays {
			h.writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = parsed
	}

	points, err := h.market.GetHistory(r.Context(), id, days)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"prices": points,
		"count":  len(points),
	})
}

// HandleGetRate handles GET /api/market/rates/{from}/{to}
func (h *Handler) HandleGetRate(w http.ResponseWriter, r *http.Request, from, to string) {
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		h.writeError(w, http.StatusBadRequest, "from and to currencies are required")
		return
	}

	rate, err := h.rates.GetRate(r.Context(), from, to)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, rate)
}

// HandleConvert handles GET /api/market/convert?amount=&from=&to=
func (h *Handler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from := strings.ToUpper(strings.TrimSpace(query.Get("from")))
	to := strings.ToUpper(strings.TrimSpace(query.Get("to")))
	if from == "" || to == "" {
		h.writeError(w, http.StatusBadRequest, "from and to currencies are required")
		return
	}

	amount, err := strconv.ParseFloat(query.Get("amount"), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		h.writeError(w, http.StatusBadRequest, "amount must be a number")
		return
	}

	converted, err := h.rates.Convert(r.Context(), amount, from, to)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"amount":    amount,
		"from":      from,
		"to":        to,
		"converted": converted,
	})
}

func (h *Handler) writeGatewayError(w http.ResponseWriter, err error) {
	h.log.Warn().Err(err).Msg("Market request failed")
	if domain.HasCode(err, domain.ErrCodeRateLimited) {
		h.writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	h.writeError(w, http.StatusBadGateway, err.Error())
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
