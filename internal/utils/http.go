package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aristath/treasury/internal/domain"
	"github.com/rs/zerolog"
)

// CallerHeader carries the acting address of an API request
const CallerHeader = "X-Caller-Address"

// CallerFromRequest returns the acting address of r
func CallerFromRequest(r *http.Request) (domain.Address, error) {
	caller, err := domain.ParseAddress(r.Header.Get(CallerHeader))
	if err != nil {
		return "", fmt.Errorf("missing %s header: %w", CallerHeader, domain.ErrUnauthorized)
	}
	return caller, nil
}

// DecodeJSON decodes the request body into v, rejecting unknown fields
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteError maps err to an HTTP status and writes it as {"error": "..."}
func WriteError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	WriteJSON(w, log, status, map[string]string{"error": err.Error()})
}

// StatusFor maps domain errors to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrNotApproved),
		errors.Is(err, domain.ErrNotLedger):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnknownStrategy),
		errors.Is(err, domain.ErrUnknownRight),
		errors.Is(err, domain.ErrUnknownAsset),
		errors.Is(err, domain.ErrModuleNotDeployed):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyRegistered),
		errors.Is(err, domain.ErrRightsOutstanding),
		errors.Is(err, domain.ErrLastGovernor):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, domain.ErrInvalidCap),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidBatch),
		errors.Is(err, domain.ErrCapExceeded),
		errors.Is(err, domain.ErrStrategyNotApproved),
		errors.Is(err, domain.ErrInsufficientPoolBalance),
		errors.Is(err, domain.ErrInsufficientStrategyBalance),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrExternalCallFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
