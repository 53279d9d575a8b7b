// internal/service/ledger_service_test.go
package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"leadflow-wallet/internal/domain"
	"leadflow-wallet/internal/util"
)

type ledgerFixture struct {
	service         LedgerService
	accountRepo     *MockAccountRepository
	transactionRepo *MockTransactionRepository
	dbBeginner      *MockDBBeginner
	dbExecutor      *MockDBExecutor
	txController    *MockTxController
}

func newLedgerFixture() *ledgerFixture {
	f := &ledgerFixture{
		accountRepo:     new(MockAccountRepository),
		transactionRepo: new(MockTransactionRepository),
		dbBeginner:      new(MockDBBeginner),
		dbExecutor:      new(MockDBExecutor),
		txController:    new(MockTxController),
	}
	begin, commit, rollback := txFuncs(f.txController)
	f.service = NewLedgerService(
		f.dbBeginner,
		f.dbExecutor,
		f.accountRepo,
		f.transactionRepo,
		begin,
		commit,
		rollback,
		discardLogger(),
	)
	return f
}

func (f *ledgerFixture) assertExpectations(t *testing.T) {
	mock.AssertExpectationsForObjects(t, f.dbBeginner, f.dbExecutor, f.txController, f.accountRepo, f.transactionRepo)
}

func paidAccount(userID uuid.UUID, balance int64) *domain.Account {
	account := domain.NewAccount(userID, domain.PlanTier1)
	account.WalletBalance = balance
	return account
}

// TestDebit tests the Debit method of LedgerService.
func TestDebit(t *testing.T) {
	userID := uuid.New()

	t.Run("SuccessfulDebit", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()

		f.txController.On("Commit").Return(nil).Once()
		f.txController.On("Rollback").Return(nil).Maybe()
		f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(paidAccount(userID, 10000), nil).Once()
		f.accountRepo.On("ApplyBalanceDelta", ctx, mock.Anything, userID, int64(-1000)).Return(int64(9000), nil).Once()

		var recorded *domain.WalletTransaction
		f.transactionRepo.On("CreateTransaction", ctx, mock.Anything, mock.AnythingOfType("*domain.WalletTransaction")).
			Run(func(args mock.Arguments) {
				recorded = args.Get(2).(*domain.WalletTransaction)
				recorded.ID = 7
			}).
			Return(nil).Once()

		result, err := f.service.Debit(ctx, domain.LedgerEntry{
			UserID:     userID,
			Amount:     1000,
			ActionType: domain.ActionPostAnalysis,
			Reason:     "Post analysis",
			Metadata:   domain.Metadata{"post_id": "abc"},
		})

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, int64(9000), result.NewBalance)
		assert.Equal(t, int64(7), result.TransactionID)
		assert.Empty(t, result.ErrorMessage)

		require.NotNil(t, recorded)
		assert.Equal(t, int64(-1000), recorded.Amount)
		assert.Equal(t, domain.TransactionTypeDebit, recorded.Type)
		assert.Equal(t, domain.ActionPostAnalysis, recorded.ActionType)
		assert.Equal(t, int64(9000), recorded.BalanceAfter)
		assert.Equal(t, "abc", recorded.Metadata["post_id"])

		f.assertExpectations(t)
	})

	t.Run("InsufficientCredits", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()

		f.txController.On("Rollback").Return(nil).Once()
		f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(paidAccount(userID, 500), nil).Once()

		result, err := f.service.Debit(ctx, domain.LedgerEntry{UserID: userID, Amount: 1000, ActionType: domain.ActionPostAnalysis})

		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, domain.FailureInsufficientCredits, result.Reason)
		assert.Equal(t, "insufficient credits", result.ErrorMessage)
		f.accountRepo.AssertNotCalled(t, "ApplyBalanceDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.transactionRepo.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything, mock.Anything)
		f.txController.AssertNotCalled(t, "Commit")
		f.assertExpectations(t)
	})

	t.Run("GuardRejectsConcurrentOverdraft", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()

		f.txController.On("Rollback").Return(nil).Once()
		f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(paidAccount(userID, 1000), nil).Once()
		f.accountRepo.On("ApplyBalanceDelta", ctx, mock.Anything, userID, int64(-1000)).Return(int64(0), util.ErrInsufficientFunds).Once()

		result, err := f.service.Debit(ctx, domain.LedgerEntry{UserID: userID, Amount: 1000, ActionType: domain.ActionEnrichment})

		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, domain.FailureInsufficientCredits, result.Reason)
		f.transactionRepo.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("FreePlanNotEligible", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()

		account := domain.NewAccount(userID, domain.PlanFree)
		account.WalletBalance = 5000
		f.txController.On("Rollback").Return(nil).Once()
		f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(account, nil).Once()

		result, err := f.service.Debit(ctx, domain.LedgerEntry{UserID: userID, Amount: 100, ActionType: domain.ActionPostAnalysis})

		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, domain.FailureFreePlanNotEligible, result.Reason)
		assert.Equal(t, "free plan not eligible for wallet debits", result.ErrorMessage)
		f.assertExpectations(t)
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()

		f.txController.On("Rollback").Return(nil).Once()
		f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(nil, util.ErrAccountNotFound).Once()

		result, err := f.service.Debit(ctx, domain.LedgerEntry{UserID: userID, Amount: 100, ActionType: domain.ActionPostAnalysis})

		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, domain.FailureAccountNotFound, result.Reason)
		f.assertExpectations(t)
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()

		_, err := f.service.Debit(ctx, domain.LedgerEntry{UserID: userID, Amount: 0, ActionType: domain.ActionPostAnalysis})

		assert.ErrorIs(t, err, util.ErrInvalidInput)
		f.txController.AssertNotCalled(t, "Commit")
		f.txController.AssertNotCalled(t, "Rollback")
		f.assertExpectations(t)
	})

	t.Run("CreditActionOnDebit", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()

		_, err := f.service.Debit(ctx, domain.LedgerEntry{UserID: userID, Amount: 100, ActionType: domain.ActionRefund})

		assert.ErrorIs(t, err, util.ErrInvalidInput)
		f.assertExpectations(t)
	})

	t.Run("ReplayedIdempotencyKey", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()

		key := "analysis:42"
		existing := &domain.WalletTransaction{ID: 11, UserID: userID, Amount: -1000, Type: domain.TransactionTypeDebit, ActionType: domain.ActionPostAnalysis, BalanceAfter: 9000, IdempotencyKey: &key}
		f.txController.On("Rollback").Return(nil).Once()
		f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(paidAccount(userID, 9000), nil).Once()
		f.transactionRepo.On("GetByIdempotencyKey", ctx, mock.Anything, userID, key).Return(existing, nil).Once()

		result, err := f.service.Debit(ctx, domain.LedgerEntry{UserID: userID, Amount: 1000, ActionType: domain.ActionPostAnalysis, IdempotencyKey: key})

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.True(t, result.Replayed)
		assert.Equal(t, int64(9000), result.NewBalance)
		assert.Equal(t, int64(11), result.TransactionID)
		f.accountRepo.AssertNotCalled(t, "ApplyBalanceDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("ReplayedKeyWithDifferentPayload", func(t *testing.T) {
		key := "k1"
		existing := &domain.WalletTransaction{ID: 7, UserID: userID, Amount: -1000, Type: domain.TransactionTypeDebit, ActionType: domain.ActionPostAnalysis, BalanceAfter: 0, IdempotencyKey: &key}

		for name, entry := range map[string]domain.LedgerEntry{
			"DifferentAmount": {UserID: userID, Amount: 500000, ActionType: domain.ActionPostAnalysis, IdempotencyKey: key},
			"DifferentAction": {UserID: userID, Amount: 1000, ActionType: domain.ActionEnrichment, IdempotencyKey: key},
		} {
			t.Run(name, func(t *testing.T) {
				ctx := context.Background()
				f := newLedgerFixture()

				f.txController.On("Rollback").Return(nil).Once()
				f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(paidAccount(userID, 0), nil).Once()
				f.transactionRepo.On("GetByIdempotencyKey", ctx, mock.Anything, userID, key).Return(existing, nil).Once()

				result, err := f.service.Debit(ctx, entry)

				assert.ErrorIs(t, err, util.ErrDuplicateTransaction)
				assert.False(t, result.Success)
				assert.False(t, result.Replayed)
				f.accountRepo.AssertNotCalled(t, "ApplyBalanceDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				f.txController.AssertNotCalled(t, "Commit")
				f.assertExpectations(t)
			})
		}
	})

	t.Run("IdempotencyKeyUsedByCredit", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()

		key := "shared"
		existing := &domain.WalletTransaction{ID: 3, UserID: userID, Amount: 500, Type: domain.TransactionTypeCredit, BalanceAfter: 500}
		f.txController.On("Rollback").Return(nil).Once()
		f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(paidAccount(userID, 500), nil).Once()
		f.transactionRepo.On("GetByIdempotencyKey", ctx, mock.Anything, userID, key).Return(existing, nil).Once()

		_, err := f.service.Debit(ctx, domain.LedgerEntry{UserID: userID, Amount: 100, ActionType: domain.ActionPostAnalysis, IdempotencyKey: key})

		assert.ErrorIs(t, err, util.ErrDuplicateTransaction)
		f.assertExpectations(t)
	})

	t.Run("CommitFailure", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()

		f.txController.On("Commit").Return(errors.New("connection reset")).Once()
		f.txController.On("Rollback").Return(nil).Once()
		f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(paidAccount(userID, 2000), nil).Once()
		f.accountRepo.On("ApplyBalanceDelta", ctx, mock.Anything, userID, int64(-1000)).Return(int64(1000), nil).Once()
		f.transactionRepo.On("CreateTransaction", ctx, mock.Anything, mock.Anything).Return(nil).Once()

		result, err := f.service.Debit(ctx, domain.LedgerEntry{UserID: userID, Amount: 1000, ActionType: domain.ActionPostAnalysis})

		assert.Error(t, err)
		assert.False(t, result.Success)
		f.assertExpectations(t)
	})

	t.Run("AuditAppendFailureRollsBack", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()

		f.txController.On("Rollback").Return(nil).Once()
		f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(paidAccount(userID, 2000), nil).Once()
		f.accountRepo.On("ApplyBalanceDelta", ctx, mock.Anything, userID, int64(-1000)).Return(int64(1000), nil).Once()
		f.transactionRepo.On("CreateTransaction", ctx, mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

		_, err := f.service.Debit(ctx, domain.LedgerEntry{UserID: userID, Amount: 1000, ActionType: domain.ActionPostAnalysis})

		assert.Error(t, err)
		f.txController.AssertNotCalled(t, "Commit")
		f.assertExpectations(t)
	})
}

// TestCredit tests the Credit method of LedgerService.
func TestCredit(t *testing.T) {
	userID := uuid.New()

	t.Run("SuccessfulCreditOnFreePlan", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()

		f.txController.On("Commit").Return(nil).Once()
		f.txController.On("Rollback").Return(nil).Maybe()
		f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(domain.NewAccount(userID, domain.PlanFree), nil).Once()
		f.accountRepo.On("ApplyBalanceDelta", ctx, mock.Anything, userID, int64(2500)).Return(int64(2500), nil).Once()

		var recorded *domain.WalletTransaction
		f.transactionRepo.On("CreateTransaction", ctx, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { recorded = args.Get(2).(*domain.WalletTransaction) }).
			Return(nil).Once()

		result, err := f.service.Credit(ctx, domain.LedgerEntry{UserID: userID, Amount: 2500, ActionType: domain.ActionManualGrant})

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, int64(2500), result.NewBalance)
		require.NotNil(t, recorded)
		assert.Equal(t, int64(2500), recorded.Amount)
		assert.Equal(t, domain.TransactionTypeCredit, recorded.Type)
		assert.Equal(t, string(domain.ActionManualGrant), recorded.Reason)
		assert.NotNil(t, recorded.Metadata)
		f.assertExpectations(t)
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()

		f.txController.On("Rollback").Return(nil).Once()
		f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(nil, util.ErrAccountNotFound).Once()

		result, err := f.service.Credit(ctx, domain.LedgerEntry{UserID: userID, Amount: 100, ActionType: domain.ActionRefund})

		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, domain.FailureAccountNotFound, result.Reason)
		f.assertExpectations(t)
	})

	t.Run("ReplayedIdempotencyKey", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()

		key := "refund:9"
		existing := &domain.WalletTransaction{ID: 21, UserID: userID, Amount: 500, Type: domain.TransactionTypeCredit, ActionType: domain.ActionRefund, BalanceAfter: 1500, IdempotencyKey: &key}
		f.txController.On("Rollback").Return(nil).Once()
		f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(paidAccount(userID, 1500), nil).Once()
		f.transactionRepo.On("GetByIdempotencyKey", ctx, mock.Anything, userID, key).Return(existing, nil).Once()

		result, err := f.service.Credit(ctx, domain.LedgerEntry{UserID: userID, Amount: 500, ActionType: domain.ActionRefund, IdempotencyKey: key})

		require.NoError(t, err)
		assert.True(t, result.Replayed)
		assert.Equal(t, int64(1500), result.NewBalance)
		f.accountRepo.AssertNotCalled(t, "ApplyBalanceDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("ReplayedKeyWithDifferentPayload", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()

		key := "refund:9"
		existing := &domain.WalletTransaction{ID: 21, UserID: userID, Amount: 500, Type: domain.TransactionTypeCredit, ActionType: domain.ActionRefund, BalanceAfter: 1500, IdempotencyKey: &key}
		f.txController.On("Rollback").Return(nil).Once()
		f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(paidAccount(userID, 1500), nil).Once()
		f.transactionRepo.On("GetByIdempotencyKey", ctx, mock.Anything, userID, key).Return(existing, nil).Once()

		result, err := f.service.Credit(ctx, domain.LedgerEntry{UserID: userID, Amount: 50000, ActionType: domain.ActionRefund, IdempotencyKey: key})

		assert.ErrorIs(t, err, util.ErrDuplicateTransaction)
		assert.False(t, result.Success)
		f.accountRepo.AssertNotCalled(t, "ApplyBalanceDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("BalanceOverflow", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()

		f.txController.On("Rollback").Return(nil).Once()
		f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(paidAccount(userID, math.MaxInt64-10), nil).Once()

		result, err := f.service.Credit(ctx, domain.LedgerEntry{UserID: userID, Amount: 11, ActionType: domain.ActionManualGrant})

		assert.ErrorIs(t, err, util.ErrInvalidInput)
		assert.False(t, result.Success)
		f.accountRepo.AssertNotCalled(t, "ApplyBalanceDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("DebitActionOnCredit", func(t *testing.T) {
		f := newLedgerFixture()

		_, err := f.service.Credit(context.Background(), domain.LedgerEntry{UserID: userID, Amount: 100, ActionType: domain.ActionEnrichment})

		assert.ErrorIs(t, err, util.ErrInvalidInput)
		f.assertExpectations(t)
	})

	t.Run("UnknownAction", func(t *testing.T) {
		f := newLedgerFixture()

		_, err := f.service.Credit(context.Background(), domain.LedgerEntry{UserID: userID, Amount: 100, ActionType: domain.ActionType("bonus")})

		assert.ErrorIs(t, err, util.ErrUnknownAction)
		f.assertExpectations(t)
	})
}

func TestCreateAccount(t *testing.T) {
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()
		f.accountRepo.On("CreateAccount", ctx, f.dbExecutor, mock.AnythingOfType("*domain.Account")).Return(nil).Once()

		account, err := f.service.CreateAccount(ctx, userID, domain.PlanTier2)

		require.NoError(t, err)
		assert.Equal(t, userID, account.UserID)
		assert.Equal(t, domain.PlanTier2, account.Plan)
		assert.Zero(t, account.WalletBalance)
		f.assertExpectations(t)
	})

	t.Run("UnknownPlan", func(t *testing.T) {
		f := newLedgerFixture()

		_, err := f.service.CreateAccount(context.Background(), userID, domain.Plan("enterprise"))

		assert.ErrorIs(t, err, util.ErrInvalidInput)
		f.assertExpectations(t)
	})

	t.Run("AlreadyExists", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()
		f.accountRepo.On("CreateAccount", ctx, f.dbExecutor, mock.Anything).Return(util.ErrAccountExists).Once()

		_, err := f.service.CreateAccount(ctx, userID, domain.PlanFree)

		assert.ErrorIs(t, err, util.ErrAccountExists)
		f.assertExpectations(t)
	})
}

func TestGetTransactionHistory(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	f := newLedgerFixture()

	transactions := []domain.WalletTransaction{
		{ID: 2, UserID: userID, Amount: -1000, Type: domain.TransactionTypeDebit, BalanceAfter: 4000},
		{ID: 1, UserID: userID, Amount: 5000, Type: domain.TransactionTypeCredit, BalanceAfter: 5000},
	}
	f.accountRepo.On("GetAccount", ctx, f.dbExecutor, userID).Return(paidAccount(userID, 4000), nil).Once()
	f.transactionRepo.On("ListByUserID", ctx, f.dbExecutor, userID, 10, 0).Return(transactions, int64(2), nil).Once()

	got, total, err := f.service.GetTransactionHistory(ctx, userID, 10, 0)

	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, transactions, got)
	f.assertExpectations(t)
}

func TestVerifyAudit(t *testing.T) {
	userID := uuid.New()
	transactions := []domain.WalletTransaction{
		{ID: 1, UserID: userID, Amount: 5000, Type: domain.TransactionTypeCredit, BalanceAfter: 5000},
		{ID: 2, UserID: userID, Amount: -1000, Type: domain.TransactionTypeDebit, BalanceAfter: 4000},
	}

	t.Run("Consistent", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()
		f.txController.On("Rollback").Return(nil).Once()
		f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(paidAccount(userID, 4000), nil).Once()
		f.transactionRepo.On("ListAllByUserID", ctx, mock.Anything, userID).Return(transactions, nil).Once()

		report, err := f.service.VerifyAudit(ctx, userID)

		require.NoError(t, err)
		assert.True(t, report.Consistent)
		assert.Equal(t, int64(4000), report.ReplayedBalance)
		assert.Equal(t, 2, report.TransactionCount)
		f.assertExpectations(t)
	})

	t.Run("Mismatch", func(t *testing.T) {
		ctx := context.Background()
		f := newLedgerFixture()
		f.txController.On("Rollback").Return(nil).Once()
		f.accountRepo.On("GetAccountForUpdate", ctx, mock.Anything, userID).Return(paidAccount(userID, 9999), nil).Once()
		f.transactionRepo.On("ListAllByUserID", ctx, mock.Anything, userID).Return(transactions, nil).Once()

		report, err := f.service.VerifyAudit(ctx, userID)

		require.NoError(t, err)
		assert.False(t, report.Consistent)
		assert.Equal(t, int64(9999), report.AccountBalance)
		f.assertExpectations(t)
	})
}
