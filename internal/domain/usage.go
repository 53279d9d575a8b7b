// internal/domain/usage.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// FreeTierLimits caps the usage counters of free-plan accounts per window.
type FreeTierLimits struct {
	Analyses    int
	Enrichments int
}

// Limit returns the cap for the selected counter.
func (l FreeTierLimits) Limit(usageType UsageType) int {
	if usageType == UsageEnrichments {
		return l.Enrichments
	}
	return l.Analyses
}

// UsageSnapshot is a read-only view of an account's free-tier usage.
type UsageSnapshot struct {
	UserID           uuid.UUID `json:"user_id"`
	Plan             Plan      `json:"plan"`
	AnalysesUsed     int       `json:"analyses_used"`
	AnalysesLimit    int       `json:"analyses_limit"`
	EnrichmentsUsed  int       `json:"enrichments_used"`
	EnrichmentsLimit int       `json:"enrichments_limit"`
	WindowStartedAt  time.Time `json:"window_started_at"`
	WindowEndsAt     time.Time `json:"window_ends_at"`
}

// NewUsageSnapshot reports the account's counters at now. A window that has
// already run out is shown as a fresh one, which is what the next increment will see.
func NewUsageSnapshot(account *Account, limits FreeTierLimits, window time.Duration, now time.Time) UsageSnapshot {
	snapshot := UsageSnapshot{
		UserID:           account.UserID,
		Plan:             account.Plan,
		AnalysesUsed:     account.AnalysesUsed,
		AnalysesLimit:    limits.Analyses,
		EnrichmentsUsed:  account.EnrichmentsUsed,
		EnrichmentsLimit: limits.Enrichments,
		WindowStartedAt:  account.UsageResetAt,
	}
	if account.WindowExpired(now, window) {
		snapshot.AnalysesUsed = 0
		snapshot.EnrichmentsUsed = 0
		snapshot.WindowStartedAt = now
	}
	if window > 0 {
		snapshot.WindowEndsAt = snapshot.WindowStartedAt.Add(window)
	}
	return snapshot
}
