// internal/api/router.go
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"leadflow-wallet/internal/api/handler"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Account  *handler.AccountHandler
	Metering *handler.MeteringHandler
	Billing  *handler.BillingHandler
}

// NewRouter sets up and returns a new HTTP router.
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.Account.CreateAccount)
		r.Route("/{userID}", func(r chi.Router) {
			r.Get("/", h.Account.GetAccount)
			r.Put("/stripe-customer", h.Account.LinkStripeCustomer)

			// Ledger primitives
			r.Post("/debit", h.Account.Debit)
			r.Post("/credit", h.Account.Credit)
			r.Post("/refund", h.Account.Refund)
			r.Get("/transactions", h.Account.GetTransactionHistory)
			r.Get("/audit", h.Account.VerifyAudit)

			// Metering
			r.Post("/actions/{action}", h.Metering.Authorize)
			r.Get("/usage", h.Metering.GetUsage)
			r.Post("/usage/{usageType}/increment", h.Metering.IncrementUsage)
		})
	})

	r.Post("/webhooks/stripe", h.Billing.StripeWebhook)

	return r
}
