// internal/domain/transaction.go
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"leadflow-wallet/internal/util"
)

// TransactionType is the direction of a wallet transaction.
type TransactionType string

const (
	TransactionTypeDebit  TransactionType = "debit"
	TransactionTypeCredit TransactionType = "credit"
)

// maxIdempotencyKeyLen mirrors the column width in the schema.
const maxIdempotencyKeyLen = 255

// WalletTransaction is an immutable audit record appended on every balance mutation.
type WalletTransaction struct {
	ID             int64           `db:"id" json:"id"`                                     // Primary key, BIGSERIAL in DB
	UserID         uuid.UUID       `db:"user_id" json:"user_id"`                           // Owning account
	Amount         int64           `db:"amount" json:"amount"`                             // Signed: negative for debits
	Type           TransactionType `db:"type" json:"type"`                                 // debit | credit
	ActionType     ActionType      `db:"action_type" json:"action_type"`                   // Category, e.g. post_analysis
	Reason         string          `db:"reason" json:"reason"`                             // Human readable description
	BalanceAfter   int64           `db:"balance_after" json:"balance_after"`               // Balance captured with the mutation
	Metadata       Metadata        `db:"-" json:"metadata"`                                // Opaque context, JSONB in DB
	IdempotencyKey *string         `db:"idempotency_key" json:"idempotency_key,omitempty"` // Optional caller supplied dedupe key
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`                     // Timestamp of record creation
}

// NewWalletTransaction builds the audit record for an applied entry.
// The stored amount is signed by the entry's direction.
func NewWalletTransaction(entry LedgerEntry, txType TransactionType, balanceAfter int64) *WalletTransaction {
	var key *string
	if entry.IdempotencyKey != "" {
		k := entry.IdempotencyKey
		key = &k
	}
	metadata := entry.Metadata
	if metadata == nil {
		metadata = Metadata{}
	}
	return &WalletTransaction{
		UserID:         entry.UserID,
		Amount:         entry.signedAmount(txType),
		Type:           txType,
		ActionType:     entry.ActionType,
		Reason:         entry.reason(),
		BalanceAfter:   balanceAfter,
		Metadata:       metadata,
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}
}

// LedgerEntry is the input of a debit or credit.
type LedgerEntry struct {
	UserID         uuid.UUID  `json:"user_id"`
	Amount         int64      `json:"amount"`
	ActionType     ActionType `json:"action_type"`
	Reason         string     `json:"reason"`
	Metadata       Metadata   `json:"metadata,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
}

// Validate checks the entry for the given direction.
func (e LedgerEntry) Validate(direction TransactionType) error {
	if e.UserID == uuid.Nil {
		return fmt.Errorf("%w: missing user id", util.ErrInvalidInput)
	}
	if e.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", util.ErrInvalidInput)
	}
	if err := e.ActionType.Validate(); err != nil {
		return err
	}
	if e.ActionType.Direction() != direction {
		return fmt.Errorf("%w: action %q cannot be recorded as %s", util.ErrInvalidInput, e.ActionType, direction)
	}
	if len(e.IdempotencyKey) > maxIdempotencyKeyLen {
		return fmt.Errorf("%w: idempotency key too long", util.ErrInvalidInput)
	}
	return nil
}

func (e LedgerEntry) signedAmount(txType TransactionType) int64 {
	if txType == TransactionTypeDebit {
		return -e.Amount
	}
	return e.Amount
}

// Matches reports whether t records entry applied as txType. A retried call
// replays t only when it matches; any other reuse of the key is a conflict.
func (t WalletTransaction) Matches(entry LedgerEntry, txType TransactionType) bool {
	return t.Type == txType && t.Amount == entry.signedAmount(txType) && t.ActionType == entry.ActionType
}

// reason defaults to the action type when the caller gave none.
func (e LedgerEntry) reason() string {
	if e.Reason == "" {
		return string(e.ActionType)
	}
	return e.Reason
}

// ReplayBalance sums transaction amounts from zero.
func ReplayBalance(transactions []WalletTransaction) int64 {
	var balance int64
	for _, t := range transactions {
		balance += t.Amount
	}
	return balance
}

// AuditReport compares the account balance with its transaction log.
type AuditReport struct {
	UserID           uuid.UUID `json:"user_id"`
	AccountBalance   int64     `json:"account_balance"`
	ReplayedBalance  int64     `json:"replayed_balance"`
	LastBalanceAfter *int64    `json:"last_balance_after,omitempty"`
	TransactionCount int       `json:"transaction_count"`
	Consistent       bool      `json:"consistent"`
}

// NewAuditReport evaluates the log against the stored balance. It expects
// transactions in insertion order.
func NewAuditReport(account *Account, transactions []WalletTransaction) AuditReport {
	report := AuditReport{
		UserID:           account.UserID,
		AccountBalance:   account.WalletBalance,
		ReplayedBalance:  ReplayBalance(transactions),
		TransactionCount: len(transactions),
	}
	report.Consistent = report.ReplayedBalance == report.AccountBalance
	if n := len(transactions); n > 0 {
		last := transactions[n-1].BalanceAfter
		report.LastBalanceAfter = &last
		report.Consistent = report.Consistent && last == account.WalletBalance
	}
	return report
}
