// internal/api/handler/metering.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"leadflow-wallet/internal/domain"
	"leadflow-wallet/internal/service"
)

// MeteringHandler handles metered action authorization and the raw usage counter.
type MeteringHandler struct {
	responder
	metering service.MeteringService
	usage    service.UsageService
}

// NewMeteringHandler creates a new MeteringHandler.
func NewMeteringHandler(metering service.MeteringService, usage service.UsageService, logger *slog.Logger) *MeteringHandler {
	return &MeteringHandler{
		responder: newResponder(logger),
		metering:  metering,
		usage:     usage,
	}
}

// AuthorizeRequest carries optional audit context for a metered action.
type AuthorizeRequest struct {
	Reason         string          `json:"reason" validate:"max=500"`
	Metadata       domain.Metadata `json:"metadata"`
	IdempotencyKey string          `json:"idempotency_key" validate:"max=255"`
}

// Authorize consumes quota or wallet credit for one metered action.
// The caller performs the action only when the response is 200 with allowed=true.
// POST /accounts/{userID}/actions/{action}
func (h *MeteringHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	action, err := domain.ParseActionType(chi.URLParam(r, "action"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	var req AuthorizeRequest
	if err := h.decodeOptional(w, r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	auth, err := h.metering.Authorize(r.Context(), userID, action, service.AuthorizeRequest{
		Reason:         req.Reason,
		Metadata:       req.Metadata,
		IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if !auth.Allowed {
		h.respondWithJSON(w, refusalStatus(auth.Reason), auth)
		return
	}
	h.respondWithJSON(w, http.StatusOK, auth)
}

// IncrementRequest is the body of the usage increment endpoint.
type IncrementRequest struct {
	Limit *int `json:"limit" validate:"required,gte=0"`
}

// IncrementUsage bumps a free-tier counter if it is below the given limit.
// POST /accounts/{userID}/usage/{usageType}/increment
func (h *MeteringHandler) IncrementUsage(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	usageType, err := domain.ParseUsageType(chi.URLParam(r, "usageType"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	var req IncrementRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	result, err := h.usage.IncrementIfUnderLimit(r.Context(), userID, usageType, *req.Limit)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if !result.Success {
		h.respondWithJSON(w, refusalStatus(result.Reason), result)
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}

// GetUsage returns the free-tier usage snapshot of an account.
// GET /accounts/{userID}/usage
func (h *MeteringHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	snapshot, err := h.usage.GetUsage(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, snapshot)
}
