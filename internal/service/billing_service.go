// internal/service/billing_service.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"leadflow-wallet/internal/domain"
	"leadflow-wallet/internal/repository"
	"leadflow-wallet/internal/util"
)

// BillingService turns payment gateway events into plan changes and renewal credits.
type BillingService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	HandleInvoicePaid(ctx context.Context, customerID, invoiceID, priceID string) (domain.CreditResult, error)
	HandleSubscriptionDeleted(ctx context.Context, customerID string) error
	LinkCustomer(ctx context.Context, userID uuid.UUID, customerID string) error
}

// BillingOptions holds the webhook secret and the Stripe price → plan mapping.
type BillingOptions struct {
	WebhookSecret string
	PricePlans    map[string]domain.Plan
}

type billingService struct {
	dbExecutor  repository.DBExecutor
	accountRepo repository.AccountRepository
	ledger      LedgerService
	opts        BillingOptions
	logger      *slog.Logger
}

// NewBillingService creates a new instance of BillingService.
func NewBillingService(
	dbExecutor repository.DBExecutor,
	accountRepo repository.AccountRepository,
	ledger LedgerService,
	opts BillingOptions,
	logger *slog.Logger,
) BillingService {
	return &billingService{
		dbExecutor:  dbExecutor,
		accountRepo: accountRepo,
		ledger:      ledger,
		opts:        opts,
		logger:      logger,
	}
}

// HandleWebhook verifies the Stripe signature and dispatches the event.
// Events that cannot be matched to an account are acknowledged and logged.
func (s *billingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.opts.WebhookSecret == "" {
		return util.ErrBillingNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.opts.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("%w: %v", util.ErrInvalidSignature, err)
	}

	switch event.Type {
	case "invoice.paid":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("%w: invalid invoice payload: %v", util.ErrInvalidInput, err)
		}
		customerID := ""
		if invoice.Customer != nil {
			customerID = invoice.Customer.ID
		}
		_, err := s.HandleInvoicePaid(ctx, customerID, invoice.ID, invoicePriceID(&invoice))
		return s.acknowledgeUnmatched(event, err)
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%w: invalid subscription payload: %v", util.ErrInvalidInput, err)
		}
		customerID := ""
		if sub.Customer != nil {
			customerID = sub.Customer.ID
		}
		return s.acknowledgeUnmatched(event, s.HandleSubscriptionDeleted(ctx, customerID))
	default:
		s.logger.Debug("Ignoring Stripe event", "type", event.Type, "id", event.ID)
		return nil
	}
}

// acknowledgeUnmatched swallows errors a redelivery could never fix.
func (s *billingService) acknowledgeUnmatched(event stripe.Event, err error) error {
	if err == nil {
		return nil
	}
	if util.IsError(err, util.ErrAccountNotFound) || util.IsError(err, util.ErrInvalidInput) {
		s.logger.Warn("Stripe event not applied", "type", event.Type, "id", event.ID, "error", err)
		return nil
	}
	return err
}

func invoicePriceID(invoice *stripe.Invoice) string {
	if invoice.Lines == nil {
		return ""
	}
	for _, line := range invoice.Lines.Data {
		if line != nil && line.Price != nil && line.Price.ID != "" {
			return line.Price.ID
		}
	}
	return ""
}

// HandleInvoicePaid moves the account to the plan of the paid price and credits
// the plan's renewal amount. The invoice ID keys the credit, so redelivered
// events do not credit twice.
func (s *billingService) HandleInvoicePaid(ctx context.Context, customerID, invoiceID, priceID string) (domain.CreditResult, error) {
	if customerID == "" || invoiceID == "" {
		return domain.CreditResult{}, fmt.Errorf("%w: invoice without customer or id", util.ErrInvalidInput)
	}
	plan, ok := s.opts.PricePlans[priceID]
	if !ok || plan.IsFree() {
		return domain.CreditResult{}, fmt.Errorf("%w: price %q is not mapped to a paid plan", util.ErrInvalidInput, priceID)
	}

	account, err := s.accountRepo.GetAccountByStripeCustomer(ctx, s.dbExecutor, customerID)
	if err != nil {
		return domain.CreditResult{}, fmt.Errorf("invoice paid: %w", err)
	}
	if account.Plan != plan {
		if err := s.accountRepo.SetPlan(ctx, s.dbExecutor, account.UserID, plan); err != nil {
			return domain.CreditResult{}, fmt.Errorf("invoice paid: %w", err)
		}
	}

	result, err := s.ledger.Credit(ctx, domain.LedgerEntry{
		UserID:         account.UserID,
		Amount:         plan.RenewalCredit(),
		ActionType:     domain.ActionSubscriptionRenewal,
		Reason:         fmt.Sprintf("%s subscription renewal", plan),
		Metadata:       domain.Metadata{"invoice_id": invoiceID, "price_id": priceID, "customer_id": customerID},
		IdempotencyKey: "stripe:invoice:" + invoiceID,
	})
	if err != nil {
		return domain.CreditResult{}, fmt.Errorf("invoice paid: %w", err)
	}
	if !result.Success {
		return result, fmt.Errorf("invoice paid: %w", util.ErrAccountNotFound)
	}

	s.logger.Info("Subscription renewal credited",
		"user_id", account.UserID,
		"plan", plan,
		"invoice_id", invoiceID,
		"replayed", result.Replayed,
		"new_balance", domain.FormatMinor(result.NewBalance),
	)
	return result, nil
}

// HandleSubscriptionDeleted moves the account back to the free plan. The wallet
// balance is left untouched.
func (s *billingService) HandleSubscriptionDeleted(ctx context.Context, customerID string) error {
	if customerID == "" {
		return fmt.Errorf("%w: subscription without customer", util.ErrInvalidInput)
	}
	account, err := s.accountRepo.GetAccountByStripeCustomer(ctx, s.dbExecutor, customerID)
	if err != nil {
		return fmt.Errorf("subscription deleted: %w", err)
	}
	if err := s.accountRepo.SetPlan(ctx, s.dbExecutor, account.UserID, domain.PlanFree); err != nil {
		return fmt.Errorf("subscription deleted: %w", err)
	}
	s.logger.Info("Subscription cancelled, account moved to free plan", "user_id", account.UserID)
	return nil
}

// LinkCustomer records the Stripe customer created for an account at checkout.
func (s *billingService) LinkCustomer(ctx context.Context, userID uuid.UUID, customerID string) error {
	if customerID == "" {
		return fmt.Errorf("%w: missing customer id", util.ErrInvalidInput)
	}
	if err := s.accountRepo.SetStripeCustomer(ctx, s.dbExecutor, userID, customerID); err != nil {
		return fmt.Errorf("link customer: %w", err)
	}
	return nil
}
