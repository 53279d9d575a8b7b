// internal/service/metering_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"leadflow-wallet/internal/domain"
	"leadflow-wallet/internal/repository"
	"leadflow-wallet/internal/util"
)

// MeteringService is what request handlers call before a metered action. It
// picks the primitive for the account's plan and commits the usage in the same call.
type MeteringService interface {
	Authorize(ctx context.Context, userID uuid.UUID, action domain.ActionType, req AuthorizeRequest) (domain.Authorization, error)
	Refund(ctx context.Context, userID uuid.UUID, req RefundRequest) (domain.CreditResult, error)
}

// AuthorizeRequest carries the audit context of a metered action.
// IdempotencyKey deduplicates wallet charges only. Free-tier counters keep no
// per-request record, so every authorized quota request counts.
type AuthorizeRequest struct {
	Reason         string
	Metadata       domain.Metadata
	IdempotencyKey string
}

// RefundRequest describes a compensating credit issued by the caller after a
// debited action failed. Refunds are never issued automatically.
type RefundRequest struct {
	Amount         int64
	Reason         string
	Metadata       domain.Metadata
	IdempotencyKey string
}

type meteringService struct {
	dbExecutor  repository.DBExecutor
	accountRepo repository.AccountRepository
	ledger      LedgerService
	usage       UsageService
	prices      domain.PriceList
	limits      domain.FreeTierLimits
	logger      *slog.Logger
}

// NewMeteringService creates a new instance of MeteringService.
func NewMeteringService(
	dbExecutor repository.DBExecutor,
	accountRepo repository.AccountRepository,
	ledger LedgerService,
	usage UsageService,
	prices domain.PriceList,
	limits domain.FreeTierLimits,
	logger *slog.Logger,
) MeteringService {
	return &meteringService{
		dbExecutor:  dbExecutor,
		accountRepo: accountRepo,
		ledger:      ledger,
		usage:       usage,
		prices:      prices,
		limits:      limits,
		logger:      logger,
	}
}

// Authorize consumes one unit of the account's allowance for action.
func (s *meteringService) Authorize(ctx context.Context, userID uuid.UUID, action domain.ActionType, req AuthorizeRequest) (domain.Authorization, error) {
	usageType, metered := action.UsageType()
	if !metered {
		return domain.Authorization{}, fmt.Errorf("%w: %q is not a metered action", util.ErrInvalidInput, action)
	}
	auth := domain.Authorization{UserID: userID, Action: action}

	// The plan read is advisory: Debit re-checks it under the row lock.
	account, err := s.accountRepo.GetAccount(ctx, s.dbExecutor, userID)
	if err != nil {
		if util.IsError(err, util.ErrAccountNotFound) {
			s.logger.Warn("Metered action for unknown account", "user_id", userID, "action", action)
			return auth.Deny("", domain.FailureAccountNotFound), nil
		}
		return domain.Authorization{}, fmt.Errorf("authorize %s: failed to load account: %w", action, err)
	}

	if !account.Plan.IsFree() {
		auth, err = s.chargeWallet(ctx, auth, req)
		if err != nil || auth.Reason != domain.FailureFreePlanNotEligible {
			return auth, err
		}
		// Downgraded between the plan read and the debit.
		auth = domain.Authorization{UserID: userID, Action: action}
	}
	return s.consumeQuota(ctx, auth, usageType)
}

func (s *meteringService) chargeWallet(ctx context.Context, auth domain.Authorization, req AuthorizeRequest) (domain.Authorization, error) {
	price, ok := s.prices[auth.Action]
	if !ok || price <= 0 {
		return domain.Authorization{}, fmt.Errorf("authorize %s: no price configured", auth.Action)
	}
	reason := req.Reason
	if reason == "" {
		reason = fmt.Sprintf("%s charge", auth.Action)
	}

	result, err := s.ledger.Debit(ctx, domain.LedgerEntry{
		UserID:         auth.UserID,
		Amount:         price,
		ActionType:     auth.Action,
		Reason:         reason,
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return domain.Authorization{}, fmt.Errorf("authorize %s: %w", auth.Action, err)
	}
	if !result.Success {
		return auth.Deny(domain.MeterWallet, result.Reason), nil
	}

	balance := result.NewBalance
	auth.Allowed = true
	auth.Via = domain.MeterWallet
	auth.Charged = price
	auth.NewBalance = &balance
	auth.Replayed = result.Replayed
	return auth, nil
}

func (s *meteringService) consumeQuota(ctx context.Context, auth domain.Authorization, usageType domain.UsageType) (domain.Authorization, error) {
	result, err := s.usage.IncrementIfUnderLimit(ctx, auth.UserID, usageType, s.limits.Limit(usageType))
	if err != nil {
		return domain.Authorization{}, fmt.Errorf("authorize %s: %w", auth.Action, err)
	}
	if !result.Success {
		return auth.Deny(domain.MeterQuota, result.Reason), nil
	}

	count := result.NewCount
	auth.Allowed = true
	auth.Via = domain.MeterQuota
	auth.NewCount = &count
	return auth, nil
}

// Refund credits amount back to the wallet with action type refund.
func (s *meteringService) Refund(ctx context.Context, userID uuid.UUID, req RefundRequest) (domain.CreditResult, error) {
	result, err := s.ledger.Credit(ctx, domain.LedgerEntry{
		UserID:         userID,
		Amount:         req.Amount,
		ActionType:     domain.ActionRefund,
		Reason:         req.Reason,
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return domain.CreditResult{}, fmt.Errorf("refund: %w", err)
	}
	if result.Success && !result.Replayed {
		s.logger.Info("Refund credited", "user_id", userID, "amount", req.Amount, "new_balance", result.NewBalance)
	}
	return result, nil
}
