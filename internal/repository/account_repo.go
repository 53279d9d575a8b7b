// internal/repository/account_repo.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadflow-wallet/internal/domain"
)

// AccountRepository defines the data operations on the accounts table.
// The mutating methods are only meant to be called by the ledger and the
// usage counter, inside the transaction that holds the account's row lock.
type AccountRepository interface {
	// CreateAccount inserts a new account. It returns util.ErrAccountExists on a duplicate user ID.
	CreateAccount(ctx context.Context, q DBExecutor, account *domain.Account) error
	// GetAccount reads an account without locking it.
	GetAccount(ctx context.Context, q DBExecutor, userID uuid.UUID) (*domain.Account, error)
	// GetAccountForUpdate reads an account and locks its row until the surrounding transaction ends.
	GetAccountForUpdate(ctx context.Context, q DBExecutor, userID uuid.UUID) (*domain.Account, error)
	// GetAccountByStripeCustomer resolves the payment gateway customer to an account.
	GetAccountByStripeCustomer(ctx context.Context, q DBExecutor, customerID string) (*domain.Account, error)
	// ApplyBalanceDelta adds delta to the wallet balance unless the result would be negative,
	// and returns the new balance. It returns util.ErrInsufficientFunds when the guard fails.
	ApplyBalanceDelta(ctx context.Context, q DBExecutor, userID uuid.UUID, delta int64) (int64, error)
	// IncrementUsage adds one to the selected counter while it is below limit and returns
	// the new count. It returns util.ErrLimitReached when the guard fails.
	IncrementUsage(ctx context.Context, q DBExecutor, userID uuid.UUID, usageType domain.UsageType, limit int) (int, error)
	// ResetUsageWindow zeroes both usage counters and starts a new window at the given time.
	ResetUsageWindow(ctx context.Context, q DBExecutor, userID uuid.UUID, at time.Time) error
	// SetPlan changes the account's plan.
	SetPlan(ctx context.Context, q DBExecutor, userID uuid.UUID, plan domain.Plan) error
	// SetStripeCustomer links the account to a payment gateway customer.
	SetStripeCustomer(ctx context.Context, q DBExecutor, userID uuid.UUID, customerID string) error
}
