// Package handlers provides HTTP handlers for the allocation ledger.
package handlers

import (
	"net/http"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/events"
	"github.com/aristath/treasury/internal/modules/ledger"
	"github.com/aristath/treasury/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles ledger HTTP requests
type Handler struct {
	ledger *ledger.Service
	log    zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(service *ledger.Service, log zerolog.Logger) *Handler {
	return &Handler{
		ledger: service,
		log:    log.With().Str("handler", "ledger").Logger(),
	}
}

type addStrategyRequest struct {
	Strategy string `json:"strategy"`
}

type rightRequest struct {
	Cap sdkmath.Int `json:"cap"`
}

type pushRequest struct {
	Transfers []ledger.Transfer `json:"transfers"`
}

type pullRequest struct {
	Withdrawals []ledger.Withdrawal `json:"withdrawals"`
}

type allowancesRequest struct {
	Changes []domain.AllowanceChange `json:"changes"`
}

type receiptResponse struct {
	Events []events.Event `json:"events"`
}

// HandleGetStrategies handles GET /api/ledger/strategies
func (h *Handler) HandleGetStrategies(w http.ResponseWriter, r *http.Request) {
	list, err := h.ledger.Strategies(r.Context())
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, h.log, http.StatusOK, list)
}

// HandleAddStrategy handles POST /api/ledger/strategies
func (h *Handler) HandleAddStrategy(w http.ResponseWriter, r *http.Request) {
	caller, err := utils.CallerFromRequest(r)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}

	var req addStrategyRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	strategy, err := domain.ParseAddress(req.Strategy)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}

	receipt, err := h.ledger.AddStrategy(r.Context(), caller, strategy)
	h.writeReceipt(w, http.StatusCreated, receipt, err)
}

// HandleRemoveStrategy handles DELETE /api/ledger/strategies/{strategy}
func (h *Handler) HandleRemoveStrategy(w http.ResponseWriter, r *http.Request) {
	caller, strategy, ok := h.callerAndStrategy(w, r)
	if !ok {
		return
	}

	receipt, err := h.ledger.RemoveStrategy(r.Context(), caller, strategy)
	h.writeReceipt(w, http.StatusOK, receipt, err)
}

// HandleGetAssets handles GET /api/ledger/strategies/{strategy}/assets
func (h *Handler) HandleGetAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.ledger.StrategyAssets(r.Context(), domain.Address(chi.URLParam(r, "strategy")))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, h.log, http.StatusOK, assets)
}

// HandleGetPositions handles GET /api/ledger/strategies/{strategy}/positions
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.ledger.Positions(r.Context(), domain.Address(chi.URLParam(r, "strategy")))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, h.log, http.StatusOK, positions)
}

// HandleGetPosition handles GET /api/ledger/strategies/{strategy}/positions/{asset}
func (h *Handler) HandleGetPosition(w http.ResponseWriter, r *http.Request) {
	p, err := h.ledger.Position(r.Context(),
		domain.Address(chi.URLParam(r, "strategy")),
		domain.Address(chi.URLParam(r, "asset")))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, h.log, http.StatusOK, p)
}

// HandleGetCallers handles GET /api/ledger/strategies/{strategy}/callers
func (h *Handler) HandleGetCallers(w http.ResponseWriter, r *http.Request) {
	callers, err := h.ledger.Callers(r.Context(), domain.Address(chi.URLParam(r, "strategy")))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, h.log, http.StatusOK, callers)
}

// HandleSetRight handles PUT /api/ledger/strategies/{strategy}/rights/{asset}
func (h *Handler) HandleSetRight(w http.ResponseWriter, r *http.Request) {
	caller, strategy, ok := h.callerAndStrategy(w, r)
	if !ok {
		return
	}

	var req rightRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	if req.Cap.IsNil() {
		req.Cap = sdkmath.ZeroInt()
	}

	receipt, err := h.ledger.AddAssetRight(r.Context(), caller, strategy, domain.Address(chi.URLParam(r, "asset")), req.Cap)
	h.writeReceipt(w, http.StatusOK, receipt, err)
}

// HandleRemoveRight handles DELETE /api/ledger/strategies/{strategy}/rights/{asset}
func (h *Handler) HandleRemoveRight(w http.ResponseWriter, r *http.Request) {
	caller, strategy, ok := h.callerAndStrategy(w, r)
	if !ok {
		return
	}

	receipt, err := h.ledger.RemoveAssetRight(r.Context(), caller, strategy, domain.Address(chi.URLParam(r, "asset")))
	h.writeReceipt(w, http.StatusOK, receipt, err)
}

// HandleToggleCaller handles POST /api/ledger/strategies/{strategy}/callers/{caller}/toggle
func (h *Handler) HandleToggleCaller(w http.ResponseWriter, r *http.Request) {
	caller, strategy, ok := h.callerAndStrategy(w, r)
	if !ok {
		return
	}

	receipt, err := h.ledger.ToggleCaller(r.Context(), caller, strategy, domain.Address(chi.URLParam(r, "caller")))
	h.writeReceipt(w, http.StatusOK, receipt, err)
}

// HandlePush handles POST /api/ledger/strategies/{strategy}/push
func (h *Handler) HandlePush(w http.ResponseWriter, r *http.Request) {
	caller, strategy, ok := h.callerAndStrategy(w, r)
	if !ok {
		return
	}

	var req pushRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}

	receipt, err := h.ledger.Push(r.Context(), caller, strategy, req.Transfers)
	h.writeReceipt(w, http.StatusOK, receipt, err)
}

// HandlePull handles POST /api/ledger/strategies/{strategy}/pull
func (h *Handler) HandlePull(w http.ResponseWriter, r *http.Request) {
	caller, strategy, ok := h.callerAndStrategy(w, r)
	if !ok {
		return
	}

	var req pullRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}

	receipt, err := h.ledger.Pull(r.Context(), caller, strategy, req.Withdrawals)
	h.writeReceipt(w, http.StatusOK, receipt, err)
}

// HandleChangeAllowances handles POST /api/ledger/strategies/{strategy}/allowances
func (h *Handler) HandleChangeAllowances(w http.ResponseWriter, r *http.Request) {
	caller, strategy, ok := h.callerAndStrategy(w, r)
	if !ok {
		return
	}

	var req allowancesRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	for i := range req.Changes {
		if req.Changes[i].Amount.IsNil() {
			req.Changes[i].Amount = sdkmath.ZeroInt()
		}
	}

	receipt, err := h.ledger.ChangeAllowance(r.Context(), caller, strategy, req.Changes)
	h.writeReceipt(w, http.StatusOK, receipt, err)
}

func (h *Handler) callerAndStrategy(w http.ResponseWriter, r *http.Request) (domain.Address, domain.Address, bool) {
	caller, err := utils.CallerFromRequest(r)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return "", "", false
	}
	strategy, err := domain.ParseAddress(chi.URLParam(r, "strategy"))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return "", "", false
	}
	return caller, strategy, true
}

func (h *Handler) writeReceipt(w http.ResponseWriter, status int, receipt *events.Receipt, err error) {
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, h.log, status, receiptResponse{Events: receipt.Events()})
}
