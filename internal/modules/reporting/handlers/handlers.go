// Package handlers provides HTTP handlers for exposure reporting.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/modules/reporting"
	"github.com/aristath/treasury/internal/utils"
	"github.com/rs/zerolog"
)

const defaultTrendLimit = 100

// Handler handles reporting HTTP requests
type Handler struct {
	service *reporting.Service
	log     zerolog.Logger
}

// NewHandler creates a new reporting handler
func NewHandler(service *reporting.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "reporting").Logger(),
	}
}

// HandleGetExposure handles GET /api/reporting/exposure
func (h *Handler) HandleGetExposure(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Exposure(r.Context())
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, h.log, http.StatusOK, report)
}

// HandleGetSnapshots handles GET /api/reporting/snapshots?strategy=...&asset=...&limit=...
func (h *Handler) HandleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	strategy, err := domain.ParseAddress(query.Get("strategy"))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	asset, err := domain.ParseAddress(query.Get("asset"))
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}

	limit := defaultTrendLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	trend, err := h.service.Trend(r.Context(), strategy, asset, limit)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, h.log, http.StatusOK, trend)
}

// HandleTakeSnapshot handles POST /api/reporting/snapshots
func (h *Handler) HandleTakeSnapshot(w http.ResponseWriter, r *http.Request) {
	taken, err := h.service.TakeSnapshot(r.Context())
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, h.log, http.StatusCreated, taken)
}
