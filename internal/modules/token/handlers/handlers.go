// Package handlers provides HTTP handlers for the token book.
package handlers

import (
	"context"
	"fmt"
	"net/http"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/modules/token"
	"github.com/aristath/treasury/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Governance answers whether an address holds the Governor role
type Governance interface {
	IsGovernor(ctx context.Context, addr domain.Address) (bool, error)
}

// Handler handles token HTTP requests
type Handler struct {
	book       *token.Book
	governance Governance
	faucet     bool
	log        zerolog.Logger
}

// NewHandler creates a new token handler. The faucet route is only served when faucet is true.
func NewHandler(book *token.Book, governance Governance, faucet bool, log zerolog.Logger) *Handler {
	return &Handler{
		book:       book,
		governance: governance,
		faucet:     faucet,
		log:        log.With().Str("handler", "token").Logger(),
	}
}

type faucetRequest struct {
	Asset  string      `json:"asset"`
	To     string      `json:"to"`
	Amount sdkmath.Int `json:"amount"`
}

// HandleGetAssets handles GET /api/tokens/assets
func (h *Handler) HandleGetAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.book.Assets(r.Context())
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, h.log, http.StatusOK, assets)
}

// HandleGetBalance handles GET /api/tokens/balances/{asset}/{holder}
func (h *Handler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	asset := domain.Address(chi.URLParam(r, "asset"))
	holder := domain.Address(chi.URLParam(r, "holder"))

	if _, err := h.book.Asset(r.Context(), asset); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	balance, err := h.book.BalanceOf(r.Context(), asset, holder)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"asset":   asset,
		"holder":  holder,
		"balance": balance,
	})
}

// HandleFaucet handles POST /api/tokens/faucet
func (h *Handler) HandleFaucet(w http.ResponseWriter, r *http.Request) {
	caller, err := utils.CallerFromRequest(r)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	ok, err := h.governance.IsGovernor(r.Context(), caller)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	if !ok {
		utils.WriteError(w, h.log, fmt.Errorf("%s is not a governor: %w", caller, domain.ErrUnauthorized))
		return
	}

	var req faucetRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	to, err := domain.ParseAddress(req.To)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	if req.Amount.IsNil() || !req.Amount.IsPositive() {
		utils.WriteError(w, h.log, fmt.Errorf("faucet amount: %w", domain.ErrInvalidAmount))
		return
	}

	asset := domain.Address(req.Asset)
	if err := h.book.Mint(r.Context(), asset, to, req.Amount); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	h.log.Info().
		Str("asset", asset.String()).
		Str("to", to.String()).
		Str("amount", req.Amount.String()).
		Msg("Faucet mint")

	balance, err := h.book.BalanceOf(r.Context(), asset, to)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"asset":   asset,
		"holder":  to,
		"balance": balance,
	})
}
