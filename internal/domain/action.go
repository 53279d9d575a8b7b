// internal/domain/action.go
package domain

import (
	"fmt"

	"leadflow-wallet/internal/util"
)

// ActionType categorises a ledger mutation for the audit trail.
type ActionType string

const (
	ActionPostAnalysis        ActionType = "post_analysis"
	ActionEnrichment          ActionType = "enrichment"
	ActionManualAdjustment    ActionType = "manual_adjustment"
	ActionSubscriptionRenewal ActionType = "subscription_renewal"
	ActionRefund              ActionType = "refund"
	ActionManualGrant         ActionType = "manual_grant"
	ActionPlanUpgrade         ActionType = "plan_upgrade"
)

// ParseActionType converts a path or payload value into an ActionType.
func ParseActionType(s string) (ActionType, error) {
	a := ActionType(s)
	if err := a.Validate(); err != nil {
		return "", err
	}
	return a, nil
}

// Validate returns util.ErrUnknownAction for values outside the known set.
func (a ActionType) Validate() error {
	switch a {
	case ActionPostAnalysis, ActionEnrichment, ActionManualAdjustment,
		ActionSubscriptionRenewal, ActionRefund, ActionManualGrant, ActionPlanUpgrade:
		return nil
	}
	return fmt.Errorf("%w: %q", util.ErrUnknownAction, string(a))
}

// Direction returns the only transaction type the action may be recorded with.
func (a ActionType) Direction() TransactionType {
	switch a {
	case ActionPostAnalysis, ActionEnrichment, ActionManualAdjustment:
		return TransactionTypeDebit
	}
	return TransactionTypeCredit
}

// UsageType maps a metered action to the free-tier counter it consumes.
func (a ActionType) UsageType() (UsageType, bool) {
	switch a {
	case ActionPostAnalysis:
		return UsageAnalyses, true
	case ActionEnrichment:
		return UsageEnrichments, true
	}
	return "", false
}

// UsageType selects one of the free-tier counters.
type UsageType string

const (
	UsageAnalyses    UsageType = "analyses"
	UsageEnrichments UsageType = "enrichments"
)

// ParseUsageType converts a path value into a UsageType.
func ParseUsageType(s string) (UsageType, error) {
	u := UsageType(s)
	if u != UsageAnalyses && u != UsageEnrichments {
		return "", fmt.Errorf("%w: unknown usage type %q", util.ErrInvalidInput, s)
	}
	return u, nil
}

// Metadata is opaque structured context stored alongside a wallet transaction.
type Metadata map[string]any
