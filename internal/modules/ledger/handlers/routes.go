package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Get("/strategies", h.HandleGetStrategies)
		r.Post("/strategies", h.HandleAddStrategy)

		r.Route("/strategies/{strategy}", func(r chi.Router) {
			r.Delete("/", h.HandleRemoveStrategy)

			// Rights and accounting
			r.Get("/assets", h.HandleGetAssets)
			r.Get("/positions", h.HandleGetPositions)
			r.Get("/positions/{asset}", h.HandleGetPosition)
			r.Put("/rights/{asset}", h.HandleSetRight)
			r.Delete("/rights/{asset}", h.HandleRemoveRight)

			// Allowance callers
			r.Get("/callers", h.HandleGetCallers)
			r.Post("/callers/{caller}/toggle", h.HandleToggleCaller)
			r.Post("/allowances", h.HandleChangeAllowances)

			// Fund movements
			r.Post("/push", h.HandlePush)
			r.Post("/pull", h.HandlePull)
		})
	})
}
