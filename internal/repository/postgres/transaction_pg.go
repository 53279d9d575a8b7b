// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"leadflow-wallet/internal/domain"
	"leadflow-wallet/internal/repository"
	"leadflow-wallet/internal/util"
)

const transactionColumns = `id, user_id, amount, type, action_type, reason, balance_after,
	metadata, idempotency_key, created_at`

// transactionRow is the storage shape of a wallet transaction.
type transactionRow struct {
	ID             int64          `db:"id"`
	UserID         uuid.UUID      `db:"user_id"`
	Amount         int64          `db:"amount"`
	Type           string         `db:"type"`
	ActionType     string         `db:"action_type"`
	Reason         string         `db:"reason"`
	BalanceAfter   int64          `db:"balance_after"`
	Metadata       types.JSONText `db:"metadata"`
	IdempotencyKey sql.NullString `db:"idempotency_key"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (row transactionRow) toDomain() (domain.WalletTransaction, error) {
	metadata := domain.Metadata{}
	if len(row.Metadata) > 0 {
		if err := row.Metadata.Unmarshal(&metadata); err != nil {
			return domain.WalletTransaction{}, fmt.Errorf("failed to decode metadata of transaction %d: %w", row.ID, err)
		}
	}
	t := domain.WalletTransaction{
		ID:           row.ID,
		UserID:       row.UserID,
		Amount:       row.Amount,
		Type:         domain.TransactionType(row.Type),
		ActionType:   domain.ActionType(row.ActionType),
		Reason:       row.Reason,
		BalanceAfter: row.BalanceAfter,
		Metadata:     metadata,
		CreatedAt:    row.CreatedAt,
	}
	if row.IdempotencyKey.Valid {
		key := row.IdempotencyKey.String
		t.IdempotencyKey = &key
	}
	return t, nil
}

// TransactionRepository implements repository.TransactionRepository for PostgreSQL.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db *sqlx.DB) repository.TransactionRepository {
	return &TransactionRepository{}
}

// CreateTransaction inserts a new transaction record using the provided DBExecutor.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.WalletTransaction) error {
	metadata := transaction.Metadata
	if metadata == nil {
		metadata = domain.Metadata{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata is not JSON encodable: %v", util.ErrInvalidInput, err)
	}

	query := `INSERT INTO wallet_transactions (user_id, amount, type, action_type, reason, balance_after, metadata, idempotency_key, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9) RETURNING id`

	err = q.QueryRowContext(ctx, query,
		transaction.UserID,
		transaction.Amount,
		transaction.Type,
		transaction.ActionType,
		transaction.Reason,
		transaction.BalanceAfter,
		types.JSONText(encoded),
		transaction.IdempotencyKey,
		transaction.CreatedAt,
	).Scan(&transaction.ID)

	if err != nil {
		if util.IsUniqueViolation(err) {
			return util.ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetByIdempotencyKey retrieves the transaction recorded under key for the account.
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, key string) (*domain.WalletTransaction, error) {
	var row transactionRow
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE user_id = $1 AND idempotency_key = $2`
	if err := q.GetContext(ctx, &row, query, userID, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by idempotency key for account %s: %w", userID, err)
	}
	t, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByUserID retrieves a paginated list of transactions for an account.
// It performs two queries: one for the data and one for the total count.
func (r *TransactionRepository) ListByUserID(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, limit, offset int) ([]domain.WalletTransaction, int64, error) {
	rows := []transactionRow{}
	query := `
		SELECT ` + transactionColumns + `
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`
	if err := q.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions for account %s: %w", userID, err)
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM wallet_transactions WHERE user_id = $1`
	if err := q.GetContext(ctx, &totalCount, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("failed to get total transaction count for account %s: %w", userID, err)
	}

	transactions, err := toDomainAll(rows)
	if err != nil {
		return nil, 0, err
	}
	return transactions, totalCount, nil
}

// ListAllByUserID retrieves the full log of an account in insertion order.
func (r *TransactionRepository) ListAllByUserID(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) ([]domain.WalletTransaction, error) {
	rows := []transactionRow{}
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE user_id = $1 ORDER BY id ASC`
	if err := q.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to fetch transaction log for account %s: %w", userID, err)
	}
	return toDomainAll(rows)
}

func toDomainAll(rows []transactionRow) ([]domain.WalletTransaction, error) {
	transactions := make([]domain.WalletTransaction, 0, len(rows))
	for _, row := range rows {
		t, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, nil
}
