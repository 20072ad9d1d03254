/*
errors.go - Centralized error types for the point engine

ERROR CATEGORIES:
  All four kinds are local validation failures raised by balance
  transitions. They are terminal for the call: the engine never retries,
  and a failed call leaves no history entry and no balance change.

  ErrInvalidAmount               non-positive delta or negative balance
  ErrLimitExceeded               balance would exceed MaxChargePoint
  ErrPerTransactionLimitExceeded single use above MaxUsePoint
  ErrInsufficientBalance         use would drive the balance negative

  Storage failures are not wrapped into any of these; they propagate
  as returned by the Store.

USAGE:
  var terr *point.TransitionError
  if errors.As(err, &terr) {
      log.Printf("rejected %s of %d (balance %d)", terr.Op, terr.Delta, terr.Current)
  }
*/
package point

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned for a non-positive delta, or when a
	// balance would be built with a negative amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrLimitExceeded is returned when a balance would exceed MaxChargePoint.
	ErrLimitExceeded = errors.New("balance limit exceeded")

	// ErrPerTransactionLimitExceeded is returned when a single use asks for
	// more than MaxUsePoint.
	ErrPerTransactionLimitExceeded = errors.New("per-transaction use limit exceeded")

	// ErrInsufficientBalance is returned when a use exceeds the current balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TransitionError describes a rejected balance transition.
type TransitionError struct {
	Kind    error // one of the sentinels above
	Op      string
	UserID  UserID
	Current int64
	Delta   int64
	Limit   int64
}

func (e *TransitionError) Error() string {
	switch e.Kind {
	case ErrLimitExceeded:
		return fmt.Sprintf("%s: %v: current %d, requested %d, maximum %d",
			e.Op, e.Kind, e.Current, e.Delta, e.Limit)
	case ErrPerTransactionLimitExceeded:
		return fmt.Sprintf("%s: %v: requested %d, maximum per call %d",
			e.Op, e.Kind, e.Delta, e.Limit)
	case ErrInsufficientBalance:
		return fmt.Sprintf("%s: %v: current %d, requested %d",
			e.Op, e.Kind, e.Current, e.Delta)
	default:
		return fmt.Sprintf("%s: %v: %d", e.Op, e.Kind, e.Delta)
	}
}

func (e *TransitionError) Unwrap() error {
	return e.Kind
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error was caused by the requested amount
// rather than by the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrLimitExceeded) ||
		errors.Is(err, ErrPerTransactionLimitExceeded) ||
		errors.Is(err, ErrInsufficientBalance)
}
