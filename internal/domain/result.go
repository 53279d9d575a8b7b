// internal/domain/result.go
package domain

// FailureReason identifies a routine refusal of a ledger or usage operation.
type FailureReason string

const (
	FailureFreePlanNotEligible FailureReason = "free_plan_not_eligible"
	FailureInsufficientCredits FailureReason = "insufficient_credits"
	FailureAccountNotFound     FailureReason = "account_not_found"
	FailureLimitReached        FailureReason = "limit_reached"
	FailureUserNotFound        FailureReason = "user_not_found"
)

var failureMessages = map[FailureReason]string{
	FailureFreePlanNotEligible: "free plan not eligible for wallet debits",
	FailureInsufficientCredits: "insufficient credits",
	FailureAccountNotFound:     "account not found",
	FailureLimitReached:        "usage limit reached",
	FailureUserNotFound:        "user not found",
}

// Message returns the caller facing description of the refusal.
func (r FailureReason) Message() string {
	if m, ok := failureMessages[r]; ok {
		return m
	}
	return string(r)
}

// LedgerResult is the outcome of a debit or credit. Refusals are values, not errors.
type LedgerResult struct {
	Success       bool          `json:"success"`
	NewBalance    int64         `json:"new_balance"`
	TransactionID int64         `json:"transaction_id,omitempty"`
	Replayed      bool          `json:"replayed,omitempty"`
	Reason        FailureReason `json:"reason,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

type (
	DebitResult  = LedgerResult
	CreditResult = LedgerResult
)

// LedgerApplied builds a successful result.
func LedgerApplied(newBalance, transactionID int64) LedgerResult {
	return LedgerResult{Success: true, NewBalance: newBalance, TransactionID: transactionID}
}

// LedgerReplayed builds the result returned for an already recorded idempotency key.
func LedgerReplayed(t *WalletTransaction) LedgerResult {
	return LedgerResult{Success: true, NewBalance: t.BalanceAfter, TransactionID: t.ID, Replayed: true}
}

// LedgerRefused builds a failed result that carries no balance.
func LedgerRefused(reason FailureReason) LedgerResult {
	return LedgerResult{Reason: reason, ErrorMessage: reason.Message()}
}

// IncrementResult is the outcome of a free-tier counter increment.
type IncrementResult struct {
	Success      bool          `json:"success"`
	NewCount     int           `json:"new_count"`
	Reason       FailureReason `json:"reason,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// IncrementApplied builds a successful increment result.
func IncrementApplied(newCount int) IncrementResult {
	return IncrementResult{Success: true, NewCount: newCount}
}

// IncrementRefused builds a failed increment result.
func IncrementRefused(reason FailureReason) IncrementResult {
	return IncrementResult{Reason: reason, ErrorMessage: reason.Message()}
}
