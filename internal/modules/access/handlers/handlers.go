// Package handlers provides HTTP handlers for role management.
package handlers

import (
	"context"
	"net/http"

	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/events"
	"github.com/aristath/treasury/internal/modules/access"
	"github.com/aristath/treasury/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles access HTTP requests
type Handler struct {
	registry *access.Registry
	log      zerolog.Logger
}

// NewHandler creates a new access handler
func NewHandler(registry *access.Registry, log zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		log:      log.With().Str("handler", "access").Logger(),
	}
}

type grantRequest struct {
	Address string `json:"address"`
}

// HandleGetRoles handles GET /api/access/roles
func (h *Handler) HandleGetRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.registry.Roles(r.Context())
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, h.log, http.StatusOK, roles)
}

// HandleGrantGovernor handles POST /api/access/governors
func (h *Handler) HandleGrantGovernor(w http.ResponseWriter, r *http.Request) {
	h.handleGrant(w, r, h.registry.GrantGovernor)
}

// HandleGrantGuardian handles POST /api/access/guardians
func (h *Handler) HandleGrantGuardian(w http.ResponseWriter, r *http.Request) {
	h.handleGrant(w, r, h.registry.GrantGuardian)
}

// HandleRevokeGovernor handles DELETE /api/access/governors/{address}
func (h *Handler) HandleRevokeGovernor(w http.ResponseWriter, r *http.Request) {
	h.handleRevoke(w, r, h.registry.RevokeGovernor)
}

// HandleRevokeGuardian handles DELETE /api/access/guardians/{address}
func (h *Handler) HandleRevokeGuardian(w http.ResponseWriter, r *http.Request) {
	h.handleRevoke(w, r, h.registry.RevokeGuardian)
}

type roleOp func(ctx context.Context, caller, addr domain.Address) (*events.Receipt, error)

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request, op roleOp) {
	caller, err := utils.CallerFromRequest(r)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}

	var req grantRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	addr, err := domain.ParseAddress(req.Address)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}

	receipt, err := op(r.Context(), caller, addr)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{"events": receipt.Events()})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request, op roleOp) {
	caller, err := utils.CallerFromRequest(r)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}

	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}

	receipt, err := op(r.Context(), caller, addr)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{"events": receipt.Events()})
}
