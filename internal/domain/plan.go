// internal/domain/plan.go
package domain

import (
	"fmt"

	"leadflow-wallet/internal/util"
)

// Plan identifies the subscription tier of an account.
type Plan string

const (
	PlanFree  Plan = "free"
	PlanTier1 Plan = "tier-1"
	PlanTier2 Plan = "tier-2"
	PlanTier3 Plan = "tier-3"
)

// renewalCredits is the wallet grant, in minor units, applied at every paid billing period.
var renewalCredits = map[Plan]int64{
	PlanTier1: 4900,
	PlanTier2: 9900,
	PlanTier3: 24900,
}

// ParsePlan converts a stored or user supplied value into a Plan.
func ParsePlan(s string) (Plan, error) {
	p := Plan(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown plan %q", util.ErrInvalidInput, s)
	}
	return p, nil
}

// Valid reports whether p is one of the known plans.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanTier1, PlanTier2, PlanTier3:
		return true
	}
	return false
}

// IsFree reports whether the account is metered by usage counters instead of a wallet.
func (p Plan) IsFree() bool {
	return p == PlanFree
}

// RenewalCredit returns the amount credited to the wallet when a billing period is paid.
// The free plan has no renewal credit.
func (p Plan) RenewalCredit() int64 {
	return renewalCredits[p]
}
