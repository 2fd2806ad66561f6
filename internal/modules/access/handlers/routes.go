package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all access routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/access", func(r chi.Router) {
		r.Get("/roles", h.HandleGetRoles)

		r.Post("/governors", h.HandleGrantGovernor)
		r.Delete("/governors/{address}", h.HandleRevokeGovernor)

		r.Post("/guardians", h.HandleGrantGuardian)
		r.Delete("/guardians/{address}", h.HandleRevokeGuardian)
	})
}
