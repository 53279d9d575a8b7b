// internal/util/errors.go
package util

import (
	"errors"

	"github.com/lib/pq"
)

// Common application-specific errors.
var (
	ErrNotFound             = errors.New("resource not found")
	ErrInvalidInput         = errors.New("invalid input provided")
	ErrUnknownAction        = errors.New("unknown action type")
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountExists        = errors.New("account already exists")
	ErrInsufficientFunds    = errors.New("insufficient credits")
	ErrLimitReached         = errors.New("usage limit reached")
	ErrDuplicateTransaction = errors.New("transaction already recorded")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrBillingNotConfigured = errors.New("billing not configured")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// IsError reports whether any error in err's chain matches target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
