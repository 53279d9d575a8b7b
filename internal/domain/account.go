// internal/domain/account.go
package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Account is the single per-user record the ledger and the usage counter mutate.
// WalletBalance is only meaningful for paid plans, the usage counters only for the free plan.
type Account struct {
	UserID           uuid.UUID      `db:"user_id" json:"user_id"`                   // Subject ID issued by the hosted auth provider
	Plan             Plan           `db:"plan" json:"plan"`                         // free | tier-1 | tier-2 | tier-3
	WalletBalance    int64          `db:"wallet_balance" json:"wallet_balance"`     // Minor currency units, never negative
	AnalysesUsed     int            `db:"analyses_used" json:"analyses_used"`       // Free-tier analyses in the current window
	EnrichmentsUsed  int            `db:"enrichments_used" json:"enrichments_used"` // Free-tier enrichments in the current window
	UsageResetAt     time.Time      `db:"usage_reset_at" json:"usage_reset_at"`     // Start of the current free-tier window
	StripeCustomerID sql.NullString `db:"stripe_customer_id" json:"-"`              // Payment gateway customer, if any
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`             // Timestamp of creation
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`             // Timestamp of last update
}

// NewAccount creates a new Account with an empty wallet and a fresh usage window.
func NewAccount(userID uuid.UUID, plan Plan) *Account {
	now := time.Now().UTC()
	return &Account{
		UserID:       userID,
		Plan:         plan,
		UsageResetAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// UsageCount returns the counter selected by usageType.
func (a *Account) UsageCount(usageType UsageType) int {
	if usageType == UsageEnrichments {
		return a.EnrichmentsUsed
	}
	return a.AnalysesUsed
}

// WindowExpired reports whether the free-tier window that started at UsageResetAt
// has run its full length at now.
func (a *Account) WindowExpired(now time.Time, window time.Duration) bool {
	if window <= 0 {
		return false
	}
	return !now.Before(a.UsageResetAt.Add(window))
}
