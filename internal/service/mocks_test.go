// internal/service/mocks_test.go
package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"leadflow-wallet/internal/domain"
	"leadflow-wallet/internal/repository"
	"leadflow-wallet/pkg/db"
)

// MockDBExecutor is a mock implementation of repository.DBExecutor.
type MockDBExecutor struct {
	mock.Mock
}

func (m *MockDBExecutor) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	argsCalled := m.Called(ctx, query, args)
	return argsCalled.Get(0).(sql.Result), argsCalled.Error(1)
}

func (m *MockDBExecutor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	m.Called(ctx, query, args)
	return &sql.Row{}
}

// MockAccountRepository is a mock implementation of repository.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) CreateAccount(ctx context.Context, q repository.DBExecutor, account *domain.Account) error {
	args := m.Called(ctx, q, account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetAccount(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) GetAccountForUpdate(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) GetAccountByStripeCustomer(ctx context.Context, q repository.DBExecutor, customerID string) (*domain.Account, error) {
	args := m.Called(ctx, q, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) ApplyBalanceDelta(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, delta int64) (int64, error) {
	args := m.Called(ctx, q, userID, delta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepository) IncrementUsage(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, usageType domain.UsageType, limit int) (int, error) {
	args := m.Called(ctx, q, userID, usageType, limit)
	return args.Int(0), args.Error(1)
}

func (m *MockAccountRepository) ResetUsageWindow(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, q, userID, at)
	return args.Error(0)
}

func (m *MockAccountRepository) SetPlan(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, plan domain.Plan) error {
	args := m.Called(ctx, q, userID, plan)
	return args.Error(0)
}

func (m *MockAccountRepository) SetStripeCustomer(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, customerID string) error {
	args := m.Called(ctx, q, userID, customerID)
	return args.Error(0)
}

// MockTransactionRepository is a mock implementation of repository.TransactionRepository.
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.WalletTransaction) error {
	args := m.Called(ctx, q, transaction)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByIdempotencyKey(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, key string) (*domain.WalletTransaction, error) {
	args := m.Called(ctx, q, userID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletTransaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByUserID(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, limit, offset int) ([]domain.WalletTransaction, int64, error) {
	args := m.Called(ctx, q, userID, limit, offset)
	return args.Get(0).([]domain.WalletTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionRepository) ListAllByUserID(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) ([]domain.WalletTransaction, error) {
	args := m.Called(ctx, q, userID)
	return args.Get(0).([]domain.WalletTransaction), args.Error(1)
}

// MockDBBeginner is a mock implementation of db.DBTxBeginner.
type MockDBBeginner struct {
	mock.Mock
}

func (m *MockDBBeginner) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	args := m.Called(ctx, opts)
	return &sqlx.Tx{}, args.Error(1)
}

// MockTxController is a mock implementation of db.TxController.
// It also implements repository.DBExecutor by embedding MockDBExecutor.
type MockTxController struct {
	mock.Mock
	MockDBExecutor
}

func (m *MockTxController) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTxController) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockLedgerService is a mock implementation of LedgerService.
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Debit(ctx context.Context, entry domain.LedgerEntry) (domain.DebitResult, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(domain.DebitResult), args.Error(1)
}

func (m *MockLedgerService) Credit(ctx context.Context, entry domain.LedgerEntry) (domain.CreditResult, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(domain.CreditResult), args.Error(1)
}

func (m *MockLedgerService) CreateAccount(ctx context.Context, userID uuid.UUID, plan domain.Plan) (*domain.Account, error) {
	args := m.Called(ctx, userID, plan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockLedgerService) GetAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockLedgerService) GetTransactionHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.WalletTransaction, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]domain.WalletTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerService) VerifyAudit(ctx context.Context, userID uuid.UUID) (domain.AuditReport, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.AuditReport), args.Error(1)
}

// MockUsageService is a mock implementation of UsageService.
type MockUsageService struct {
	mock.Mock
}

func (m *MockUsageService) IncrementIfUnderLimit(ctx context.Context, userID uuid.UUID, usageType domain.UsageType, limit int) (domain.IncrementResult, error) {
	args := m.Called(ctx, userID, usageType, limit)
	return args.Get(0).(domain.IncrementResult), args.Error(1)
}

func (m *MockUsageService) GetUsage(ctx context.Context, userID uuid.UUID) (domain.UsageSnapshot, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.UsageSnapshot), args.Error(1)
}

// txFuncs returns begin, commit and rollback functions driving mockTx.
func txFuncs(mockTx *MockTxController) (db.BeginTxFunc, db.CommitTxFunc, db.RollbackTxFunc) {
	begin := func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
		return mockTx, nil
	}
	commit := func(tx db.TxController) error {
		return mockTx.Commit()
	}
	rollback := func(tx db.TxController) {
		_ = mockTx.Rollback()
	}
	return begin, commit, rollback
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
