// internal/api/handler/billing.go
package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"leadflow-wallet/internal/service"
	"leadflow-wallet/internal/util"
)

// maxWebhookBytes is the payload cap recommended for Stripe webhooks.
const maxWebhookBytes = 65536

// BillingHandler receives payment gateway webhooks.
type BillingHandler struct {
	responder
	billing service.BillingService
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billing service.BillingService, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		responder: newResponder(logger),
		billing:   billing,
	}
}

// StripeWebhook verifies and applies a Stripe event.
// POST /webhooks/stripe
func (h *BillingHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Webhook payload too large", "limit", tooLarge.Limit)
			h.respondWithJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
			return
		}
		h.logger.Warn("Failed to read webhook body", "error", err)
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	if err := h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}
