// internal/repository/postgres/account_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"leadflow-wallet/internal/domain"
	"leadflow-wallet/internal/repository"
	"leadflow-wallet/internal/util"
)

const accountColumns = `user_id, plan, wallet_balance, analyses_used, enrichments_used,
	usage_reset_at, stripe_customer_id, created_at, updated_at`

// usageColumns maps a usage type to its counter column. Only these fixed names
// are ever interpolated into SQL.
var usageColumns = map[domain.UsageType]string{
	domain.UsageAnalyses:    "analyses_used",
	domain.UsageEnrichments: "enrichments_used",
}

// AccountRepository implements repository.AccountRepository for PostgreSQL.
type AccountRepository struct{}

// NewAccountRepository creates a new AccountRepository.
// Methods receive their DBExecutor per call so they can join a caller's transaction.
func NewAccountRepository(db *sqlx.DB) repository.AccountRepository {
	return &AccountRepository{}
}

// CreateAccount inserts a new account with an empty wallet.
func (r *AccountRepository) CreateAccount(ctx context.Context, q repository.DBExecutor, account *domain.Account) error {
	query := `INSERT INTO accounts (user_id, plan, usage_reset_at, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5)`
	_, err := q.ExecContext(ctx, query,
		account.UserID,
		account.Plan,
		account.UsageResetAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if util.IsUniqueViolation(err) {
			return util.ErrAccountExists
		}
		return fmt.Errorf("failed to create account %s: %w", account.UserID, err)
	}
	account.WalletBalance = 0
	return nil
}

// GetAccount retrieves an account by user ID.
func (r *AccountRepository) GetAccount(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`
	return r.getOne(ctx, q, query, userID)
}

// GetAccountForUpdate retrieves an account and takes its row lock. Concurrent
// callers for the same account block here until the holder commits or rolls back.
func (r *AccountRepository) GetAccountForUpdate(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 FOR UPDATE`
	return r.getOne(ctx, q, query, userID)
}

// GetAccountByStripeCustomer retrieves the account linked to a Stripe customer.
func (r *AccountRepository) GetAccountByStripeCustomer(ctx context.Context, q repository.DBExecutor, customerID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE stripe_customer_id = $1`
	return r.getOne(ctx, q, query, customerID)
}

func (r *AccountRepository) getOne(ctx context.Context, q repository.DBExecutor, query string, arg interface{}) (*domain.Account, error) {
	var account domain.Account
	if err := q.GetContext(ctx, &account, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account %v: %w", arg, err)
	}
	return &account, nil
}

// ApplyBalanceDelta adds delta to the wallet balance. The non-negative guard is
// evaluated by PostgreSQL in the same statement as the write.
func (r *AccountRepository) ApplyBalanceDelta(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, delta int64) (int64, error) {
	query := `UPDATE accounts
              SET wallet_balance = wallet_balance + $1, updated_at = $2
              WHERE user_id = $3 AND wallet_balance + $1 >= 0
              RETURNING wallet_balance`
	var newBalance int64
	err := q.GetContext(ctx, &newBalance, query, delta, time.Now().UTC(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, util.ErrInsufficientFunds
		}
		return 0, fmt.Errorf("failed to apply balance delta for account %s: %w", userID, err)
	}
	return newBalance, nil
}

// IncrementUsage adds one to the selected counter while it is below limit.
func (r *AccountRepository) IncrementUsage(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, usageType domain.UsageType, limit int) (int, error) {
	column, ok := usageColumns[usageType]
	if !ok {
		return 0, fmt.Errorf("%w: unknown usage type %q", util.ErrInvalidInput, usageType)
	}
	query := fmt.Sprintf(`UPDATE accounts
              SET %[1]s = %[1]s + 1, updated_at = $1
              WHERE user_id = $2 AND %[1]s < $3
              RETURNING %[1]s`, column)
	var newCount int
	err := q.GetContext(ctx, &newCount, query, time.Now().UTC(), userID, limit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, util.ErrLimitReached
		}
		return 0, fmt.Errorf("failed to increment %s for account %s: %w", column, userID, err)
	}
	return newCount, nil
}

// ResetUsageWindow zeroes the usage counters and starts a new window.
func (r *AccountRepository) ResetUsageWindow(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, at time.Time) error {
	query := `UPDATE accounts
              SET analyses_used = 0, enrichments_used = 0, usage_reset_at = $1, updated_at = $1
              WHERE user_id = $2`
	return r.execOne(ctx, q, "reset usage window", query, at, userID)
}

// SetPlan changes the plan of an account.
func (r *AccountRepository) SetPlan(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, plan domain.Plan) error {
	query := `UPDATE accounts SET plan = $1, updated_at = $2 WHERE user_id = $3`
	return r.execOne(ctx, q, "set plan", query, plan, time.Now().UTC(), userID)
}

// SetStripeCustomer links an account to a Stripe customer ID.
func (r *AccountRepository) SetStripeCustomer(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, customerID string) error {
	query := `UPDATE accounts SET stripe_customer_id = $1, updated_at = $2 WHERE user_id = $3`
	return r.execOne(ctx, q, "set stripe customer", query, customerID, time.Now().UTC(), userID)
}

func (r *AccountRepository) execOne(ctx context.Context, q repository.DBExecutor, op, query string, args ...interface{}) error {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after %s: %w", op, err)
	}
	if rowsAffected == 0 {
		return util.ErrAccountNotFound
	}
	return nil
}
