// Package handlers provides HTTP handlers for holdings management.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/domain"
	"github.com/cht-holly/chtholly-vault/internal/modules/holdings"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxImportSize bounds the body of an import request
const maxImportSize = 4 << 20

// Handler handles holdings HTTP requests
type Handler struct {
	repo *holdings.Repository
	log  zerolog.Logger
}

// NewHandler creates a new holdings handler
func NewHandler(repo *holdings.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "holdings").Logger(),
	}
}

// AddHoldingRequest is the body of POST /api/holdings
type AddHoldingRequest struct {
	CostBasis        *float64 `json:"cost_basis"`
	TargetMultiplier *float64 `json:"target_multiplier"`
	ID               string   `json:"id"`
	Symbol           string   `json:"symbol"`
	Name             string   `json:"name"`
	Image            string   `json:"image"`
	Quantity         float64  `json:"quantity"`
}

// HandleList handles GET /api/holdings
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	portfolio := h.repo.Portfolio()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":           portfolio.ID,
		"name":         portfolio.Name,
		"holdings":     portfolio.Holdings,
		"last_updated": portfolio.LastUpdated.Format(time.RFC3339),
	})
}

// HandleAdd handles POST /api/holdings
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req AddHoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.repo.Add(domain.Holding{
		ID:               req.ID,
		Symbol:           req.Symbol,
		Name:             req.Name,
		Image:            req.Image,
		Quantity:         req.Quantity,
		CostBasis:        req.CostBasis,
		TargetMultiplier: req.TargetMultiplier,
	})
	if err != nil {
		h.writeRepoError(w, err)
		return
	}

	holding, _ := h.repo.Get(req.ID)
	h.writeJSON(w, http.StatusCreated, holding)
}

// HandleRemove handles DELETE /api/holdings/{id}
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.repo.Remove(id); err != nil {
		h.writeRepoError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"removed": id})
}

// HandleSetQuantity handles PUT /api/holdings/{id}/quantity
func (h *Handler) HandleSetQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity *float64 `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		h.writeError(w, http.StatusBadRequest, "quantity is required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.repo.SetQuantity(id, *req.Quantity); err != nil {
		h.writeRepoError(w, err)
		return
	}
	h.writeHolding(w, id)
}

// HandleSetCostBasis handles PUT /api/holdings/{id}/cost-basis.
// A null cost_basis clears it.
func (h *Handler) HandleSetCostBasis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CostBasis *float64 `json:"cost_basis"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.repo.SetCostBasis(id, req.CostBasis); err != nil {
		h.writeRepoError(w, err)
		return
	}
	h.writeHolding(w, id)
}

// HandleSetTargetMultiplier handles PUT /api/holdings/{id}/target-multiplier.
// A null target_multiplier clears it.
func (h *Handler) HandleSetTargetMultiplier(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetMultiplier *float64 `json:"target_multiplier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.repo.SetTargetMultiplier(id, req.TargetMultiplier); err != nil {
		h.writeRepoError(w, err)
		return
	}
	h.writeHolding(w, id)
}

// HandleExport handles GET /api/holdings/export and returns the export file
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	doc := h.repo.ExportAll()
	data, err := holdings.EncodeExport(doc)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode export")
		h.writeError(w, http.StatusInternalServerError, "Failed to encode export")
		return
	}

	filename := fmt.Sprintf("crypto-portfolio-%s.json", doc.ExportDate.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to write export")
	}
}

// HandleImport handles POST /api/holdings/import. The body is an export file
// and replaces every holding.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	imported, err := holdings.DecodeExport(data, time.Now())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.ImportAll(imported); err != nil {
		h.writeRepoError(w, err)
		return
	}

	h.log.Info().Int("count", len(imported)).Msg("Holdings imported")
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"imported": len(h.repo.All()),
	})
}

func (h *Handler) writeHolding(w http.ResponseWriter, id string) {
	holding, ok := h.repo.Get(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, holdings.ErrNotFound.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, holding)
}

func (h *Handler) writeRepoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, holdings.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, holdings.ErrInvalidHolding):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("Holdings operation failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
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
