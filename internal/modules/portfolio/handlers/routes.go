package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetPortfolio)
		r.Post("/refresh", h.HandleRefresh)
		r.Get("/analytics", h.HandleGetAnalytics)
		r.Get("/history", h.HandleGetHistory)
		r.Post("/clear-error", h.HandleClearError)
		r.Post("/reset", h.HandleReset)
	})

	r.Post("/visibility", h.HandleSetVisibility)
}
