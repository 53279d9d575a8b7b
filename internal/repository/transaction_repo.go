// internal/repository/transaction_repo.go
package repository

import (
	"context"

	"github.com/google/uuid"

	"leadflow-wallet/internal/domain"
)

// TransactionRepository defines the append-only operations on wallet_transactions.
type TransactionRepository interface {
	// CreateTransaction appends a record and fills in its ID.
	CreateTransaction(ctx context.Context, q DBExecutor, transaction *domain.WalletTransaction) error
	// GetByIdempotencyKey returns util.ErrNotFound when no record carries the key.
	GetByIdempotencyKey(ctx context.Context, q DBExecutor, userID uuid.UUID, key string) (*domain.WalletTransaction, error)
	// ListByUserID returns a page of the account's transactions, newest first, and the total count.
	ListByUserID(ctx context.Context, q DBExecutor, userID uuid.UUID, limit, offset int) ([]domain.WalletTransaction, int64, error)
	// ListAllByUserID returns every transaction of the account in insertion order.
	ListAllByUserID(ctx context.Context, q DBExecutor, userID uuid.UUID) ([]domain.WalletTransaction, error)
}
