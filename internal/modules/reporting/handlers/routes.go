package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all reporting routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reporting", func(r chi.Router) {
		r.Get("/exposure", h.HandleGetExposure)
		r.Get("/snapshots", h.HandleGetSnapshots)
		r.Post("/snapshots", h.HandleTakeSnapshot)
	})
}
