package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for the engine. Callers match them with errors.Is and map
// them to user-facing text.
var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrAccountBanned    = errors.New("account is banned")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Denial reasons carried by DeniedError.
const (
	DenyNotEligible         = "not_eligible"
	DenyInsufficientBalance = "insufficient_balance"
	DenyBelowMinimum        = "below_minimum"
)

// DeniedError is returned when an operation is refused without mutating any
// state. It carries enough data for precise messaging: seconds until the
// action becomes available again, or the amount the balance falls short by.
type DeniedError struct {
	Reason            string
	RetryAfterSeconds int
	Shortfall         decimal.Decimal
}

func (e *DeniedError) Error() string {
	switch e.Reason {
	case DenyNotEligible:
		return fmt.Sprintf("not eligible, retry after %ds", e.RetryAfterSeconds)
	case DenyInsufficientBalance:
		return fmt.Sprintf("insufficient balance, short %s", e.Shortfall)
	case DenyBelowMinimum:
		return fmt.Sprintf("amount below minimum, short %s", e.Shortfall)
	}
	return "denied: " + e.Reason
}

// AsDenied unwraps a DeniedError if err contains one.
func AsDenied(err error) (*DeniedError, bool) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied, true
	}
	return nil, false
}
