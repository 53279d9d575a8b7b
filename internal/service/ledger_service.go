// internal/service/ledger_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"leadflow-wallet/internal/domain"
	"leadflow-wallet/internal/repository"
	"leadflow-wallet/internal/util"
	"leadflow-wallet/pkg/db"
)

// LedgerService defines the wallet ledger: the only code path that changes a
// wallet balance. Routine refusals are reported in the result; a non-nil error
// means the outcome is unknown and the caller must treat the action as not authorized.
type LedgerService interface {
	Debit(ctx context.Context, entry domain.LedgerEntry) (domain.DebitResult, error)
	Credit(ctx context.Context, entry domain.LedgerEntry) (domain.CreditResult, error)
	CreateAccount(ctx context.Context, userID uuid.UUID, plan domain.Plan) (*domain.Account, error)
	GetAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	GetTransactionHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.WalletTransaction, int64, error)
	VerifyAudit(ctx context.Context, userID uuid.UUID) (domain.AuditReport, error)
}

// ledgerService implements the LedgerService interface.
type ledgerService struct {
	dbBeginner      db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor      repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	accountRepo     repository.AccountRepository
	transactionRepo repository.TransactionRepository
	beginTx         db.BeginTxFunc
	commitTx        db.CommitTxFunc
	rollbackTx      db.RollbackTxFunc
	logger          *slog.Logger
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	accountRepo repository.AccountRepository,
	transactionRepo repository.TransactionRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) LedgerService {
	return &ledgerService{
		dbBeginner:      dbBeginner,
		dbExecutor:      dbExecutor,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
		logger:          logger,
	}
}

// Debit deducts entry.Amount from a paid-plan wallet if the balance covers it.
func (s *ledgerService) Debit(ctx context.Context, entry domain.LedgerEntry) (domain.DebitResult, error) {
	if err := entry.Validate(domain.TransactionTypeDebit); err != nil {
		return domain.DebitResult{}, err
	}
	return s.apply(ctx, entry, domain.TransactionTypeDebit)
}

// Credit adds entry.Amount to the wallet. Any plan may be credited.
func (s *ledgerService) Credit(ctx context.Context, entry domain.LedgerEntry) (domain.CreditResult, error) {
	if err := entry.Validate(domain.TransactionTypeCredit); err != nil {
		return domain.CreditResult{}, err
	}
	return s.apply(ctx, entry, domain.TransactionTypeCredit)
}

// apply runs lock, checks, balance update and audit append in one database
// transaction. The account row stays locked from the first read until commit
// or rollback, so a concurrent call for the same account sees this call's effect.
func (s *ledgerService) apply(ctx context.Context, entry domain.LedgerEntry, txType domain.TransactionType) (domain.LedgerResult, error) {
	op := string(txType)

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return domain.LedgerResult{}, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return domain.LedgerResult{}, fmt.Errorf("%s: transaction controller does not implement DBExecutor", op)
	}

	account, err := s.accountRepo.GetAccountForUpdate(ctx, txExecutor, entry.UserID)
	if err != nil {
		if util.IsError(err, util.ErrAccountNotFound) {
			s.logger.Warn("Ledger operation for unknown account", "op", op, "user_id", entry.UserID, "action_type", entry.ActionType)
			return domain.LedgerRefused(domain.FailureAccountNotFound), nil
		}
		return domain.LedgerResult{}, fmt.Errorf("%s: failed to lock account %s: %w", op, entry.UserID, err)
	}

	if entry.IdempotencyKey != "" {
		existing, err := s.transactionRepo.GetByIdempotencyKey(ctx, txExecutor, entry.UserID, entry.IdempotencyKey)
		switch {
		case err == nil:
			if !existing.Matches(entry, txType) {
				return domain.LedgerResult{}, fmt.Errorf("%s: idempotency key %q already used for a %s of %d (%s): %w",
					op, entry.IdempotencyKey, existing.Type, existing.Amount, existing.ActionType, util.ErrDuplicateTransaction)
			}
			return domain.LedgerReplayed(existing), nil
		case !util.IsError(err, util.ErrNotFound):
			return domain.LedgerResult{}, fmt.Errorf("%s: failed to check idempotency key: %w", op, err)
		}
	}

	delta := entry.Amount
	if txType == domain.TransactionTypeCredit && account.WalletBalance > math.MaxInt64-entry.Amount {
		return domain.LedgerResult{}, fmt.Errorf("%s: credit of %d overflows balance %d: %w", op, entry.Amount, account.WalletBalance, util.ErrInvalidInput)
	}
	if txType == domain.TransactionTypeDebit {
		if account.Plan.IsFree() {
			return domain.LedgerRefused(domain.FailureFreePlanNotEligible), nil
		}
		if account.WalletBalance < entry.Amount {
			return domain.LedgerRefused(domain.FailureInsufficientCredits), nil
		}
		delta = -entry.Amount
	}

	newBalance, err := s.accountRepo.ApplyBalanceDelta(ctx, txExecutor, entry.UserID, delta)
	if err != nil {
		if util.IsError(err, util.ErrInsufficientFunds) {
			return domain.LedgerRefused(domain.FailureInsufficientCredits), nil
		}
		return domain.LedgerResult{}, fmt.Errorf("%s: failed to update wallet balance: %w", op, err)
	}

	transaction := domain.NewWalletTransaction(entry, txType, newBalance)
	if err := s.transactionRepo.CreateTransaction(ctx, txExecutor, transaction); err != nil {
		return domain.LedgerResult{}, fmt.Errorf("%s: failed to create transaction: %w", op, err)
	}

	if err := s.commitTx(txController); err != nil {
		return domain.LedgerResult{}, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return domain.LedgerApplied(newBalance, transaction.ID), nil
}

// CreateAccount provisions the account record for a newly signed up user.
// Accounts always start with an empty wallet; balances only move through Credit.
func (s *ledgerService) CreateAccount(ctx context.Context, userID uuid.UUID, plan domain.Plan) (*domain.Account, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user id", util.ErrInvalidInput)
	}
	if !plan.Valid() {
		return nil, fmt.Errorf("%w: unknown plan %q", util.ErrInvalidInput, plan)
	}

	account := domain.NewAccount(userID, plan)
	if err := s.accountRepo.CreateAccount(ctx, s.dbExecutor, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.logger.Info("Account created", "user_id", userID, "plan", plan)
	return account, nil
}

// GetAccount reads the account outside any transaction.
func (s *ledgerService) GetAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	account, err := s.accountRepo.GetAccount(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// GetTransactionHistory retrieves a paginated list of transactions for an account.
func (s *ledgerService) GetTransactionHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.WalletTransaction, int64, error) {
	if _, err := s.accountRepo.GetAccount(ctx, s.dbExecutor, userID); err != nil {
		return nil, 0, fmt.Errorf("transaction history: %w", err)
	}

	transactions, totalCount, err := s.transactionRepo.ListByUserID(ctx, s.dbExecutor, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve transaction history: %w", err)
	}
	return transactions, totalCount, nil
}

// VerifyAudit replays the account's log under its row lock, so no mutation can
// land between reading the balance and reading the log.
func (s *ledgerService) VerifyAudit(ctx context.Context, userID uuid.UUID) (domain.AuditReport, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return domain.AuditReport{}, fmt.Errorf("audit: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return domain.AuditReport{}, fmt.Errorf("audit: transaction controller does not implement DBExecutor")
	}

	account, err := s.accountRepo.GetAccountForUpdate(ctx, txExecutor, userID)
	if err != nil {
		return domain.AuditReport{}, fmt.Errorf("audit: %w", err)
	}
	transactions, err := s.transactionRepo.ListAllByUserID(ctx, txExecutor, userID)
	if err != nil {
		return domain.AuditReport{}, fmt.Errorf("audit: %w", err)
	}

	report := domain.NewAuditReport(account, transactions)
	if !report.Consistent {
		s.logger.Error("Wallet audit mismatch",
			"user_id", userID,
			"account_balance", report.AccountBalance,
			"replayed_balance", report.ReplayedBalance,
		)
	}
	return report, nil
}
