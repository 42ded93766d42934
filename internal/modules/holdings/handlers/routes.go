package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers holdings routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/holdings", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleAdd)
		r.Get("/export", h.HandleExport)
		r.Post("/import", h.HandleImport)

		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", h.HandleRemove)
			r.Put("/quantity", h.HandleSetQuantity)
			r.Put("/cost-basis", h.HandleSetCostBasis)
			r.Put("/target-multiplier", h.HandleSetTargetMultiplier)
		})
	})
}
