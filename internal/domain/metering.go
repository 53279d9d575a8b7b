// internal/domain/metering.go
package domain

import "github.com/google/uuid"

// PriceList is the wallet cost of each metered action, in minor units.
type PriceList map[ActionType]int64

// Meter names the primitive that authorized a metered action.
type Meter string

const (
	MeterQuota  Meter = "quota"
	MeterWallet Meter = "wallet"
)

// Authorization is the answer given to request handlers before they perform a metered action.
// Handlers must not perform the action unless Allowed is true.
type Authorization struct {
	UserID     uuid.UUID     `json:"user_id"`
	Action     ActionType    `json:"action"`
	Allowed    bool          `json:"allowed"`
	Via        Meter         `json:"via,omitempty"`
	Charged    int64         `json:"charged,omitempty"`
	NewBalance *int64        `json:"new_balance,omitempty"`
	NewCount   *int          `json:"new_count,omitempty"`
	Replayed   bool          `json:"replayed,omitempty"`
	Reason     FailureReason `json:"reason,omitempty"`
	Message    string        `json:"message,omitempty"`
}

var upgradePrompts = map[FailureReason]string{
	FailureInsufficientCredits: "No credits remaining. Please upgrade your plan.",
	FailureLimitReached:        "Free plan limit reached. Please upgrade your plan.",
	FailureFreePlanNotEligible: "This action requires a paid plan. Please upgrade your plan.",
	FailureAccountNotFound:     "Account not found. Please sign in again.",
	FailureUserNotFound:        "Account not found. Please sign in again.",
}

// Deny fills in a refusal with the message shown to the end user.
func (a Authorization) Deny(via Meter, reason FailureReason) Authorization {
	a.Allowed = false
	a.Via = via
	a.Reason = reason
	a.Message = upgradePrompts[reason]
	if a.Message == "" {
		a.Message = reason.Message()
	}
	return a
}
