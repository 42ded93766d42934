package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers market data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/market", func(r chi.Router) {
		r.Get("/search", h.HandleSearch)
		r.Get("/popular", h.HandleGetPopular)
		r.Get("/assets/{id}/history", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetHistory(w, r, chi.URLParam(r, "id"))
		})
		r.Get("/convert", h.HandleConvert)
		r.Get("/rates/{from}/{to}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetRate(w, r, chi.URLParam(r, "from"), chi.URLParam(r, "to"))
		})
	})
}
