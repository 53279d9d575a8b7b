// internal/service/usage_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"leadflow-wallet/internal/domain"
	"leadflow-wallet/internal/repository"
	"leadflow-wallet/internal/util"
	"leadflow-wallet/pkg/db"
)

// UsageService defines the free-tier usage counter.
type UsageService interface {
	IncrementIfUnderLimit(ctx context.Context, userID uuid.UUID, usageType domain.UsageType, limit int) (domain.IncrementResult, error)
	GetUsage(ctx context.Context, userID uuid.UUID) (domain.UsageSnapshot, error)
}

// UsageOptions configures the counting window and the limits reported by GetUsage.
type UsageOptions struct {
	Limits domain.FreeTierLimits
	Window time.Duration // Zero disables window resets
	Now    func() time.Time
}

type usageService struct {
	dbBeginner  db.DBTxBeginner
	dbExecutor  repository.DBExecutor
	accountRepo repository.AccountRepository
	beginTx     db.BeginTxFunc
	commitTx    db.CommitTxFunc
	rollbackTx  db.RollbackTxFunc
	opts        UsageOptions
	logger      *slog.Logger
}

// NewUsageService creates a new instance of UsageService.
func NewUsageService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	accountRepo repository.AccountRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	opts UsageOptions,
	logger *slog.Logger,
) UsageService {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &usageService{
		dbBeginner:  dbBeginner,
		dbExecutor:  dbExecutor,
		accountRepo: accountRepo,
		beginTx:     beginTx,
		commitTx:    commitTx,
		rollbackTx:  rollbackTx,
		opts:        opts,
		logger:      logger,
	}
}

// IncrementIfUnderLimit adds one to the selected counter only while it is below limit.
// The limit is supplied by the caller so plan tables stay outside this service.
func (s *usageService) IncrementIfUnderLimit(ctx context.Context, userID uuid.UUID, usageType domain.UsageType, limit int) (domain.IncrementResult, error) {
	if _, err := domain.ParseUsageType(string(usageType)); err != nil {
		return domain.IncrementResult{}, err
	}
	if limit < 0 {
		return domain.IncrementResult{}, fmt.Errorf("%w: limit must not be negative", util.ErrInvalidInput)
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return domain.IncrementResult{}, fmt.Errorf("increment usage: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return domain.IncrementResult{}, fmt.Errorf("increment usage: transaction controller does not implement DBExecutor")
	}

	account, err := s.accountRepo.GetAccountForUpdate(ctx, txExecutor, userID)
	if err != nil {
		if util.IsError(err, util.ErrAccountNotFound) {
			s.logger.Warn("Usage increment for unknown account", "user_id", userID, "usage_type", usageType)
			return domain.IncrementRefused(domain.FailureUserNotFound), nil
		}
		return domain.IncrementResult{}, fmt.Errorf("increment usage: failed to lock account %s: %w", userID, err)
	}

	now := s.opts.Now()
	windowReset := account.WindowExpired(now, s.opts.Window)
	if windowReset {
		if err := s.accountRepo.ResetUsageWindow(ctx, txExecutor, userID, now); err != nil {
			return domain.IncrementResult{}, fmt.Errorf("increment usage: failed to reset usage window: %w", err)
		}
		account.AnalysesUsed, account.EnrichmentsUsed = 0, 0
		account.UsageResetAt = now
	}

	if account.UsageCount(usageType) >= limit {
		// A reset must still be persisted even though this call is refused.
		if windowReset {
			if err := s.commitTx(txController); err != nil {
				return domain.IncrementResult{}, fmt.Errorf("increment usage: failed to commit transaction: %w", err)
			}
		}
		return domain.IncrementRefused(domain.FailureLimitReached), nil
	}

	newCount, err := s.accountRepo.IncrementUsage(ctx, txExecutor, userID, usageType, limit)
	if err != nil {
		if util.IsError(err, util.ErrLimitReached) {
			return domain.IncrementRefused(domain.FailureLimitReached), nil
		}
		return domain.IncrementResult{}, fmt.Errorf("increment usage: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return domain.IncrementResult{}, fmt.Errorf("increment usage: failed to commit transaction: %w", err)
	}

	return domain.IncrementApplied(newCount), nil
}

// GetUsage returns the account's counters and the configured free-tier limits.
func (s *usageService) GetUsage(ctx context.Context, userID uuid.UUID) (domain.UsageSnapshot, error) {
	account, err := s.accountRepo.GetAccount(ctx, s.dbExecutor, userID)
	if err != nil {
		return domain.UsageSnapshot{}, fmt.Errorf("get usage: %w", err)
	}
	return domain.NewUsageSnapshot(account, s.opts.Limits, s.opts.Window, s.opts.Now()), nil
}
