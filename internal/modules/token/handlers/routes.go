package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all token routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tokens", func(r chi.Router) {
		r.Get("/assets", h.HandleGetAssets)
		r.Get("/balances/{asset}/{holder}", h.HandleGetBalance)

		if h.faucet {
			r.Post("/faucet", h.HandleFaucet)
		}
	})
}
