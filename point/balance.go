/*
balance.go - Balance value object and its transitions

PURPOSE:
  A Balance is an immutable snapshot of one user's point total. Charge and
  Use never modify the receiver; they return the next snapshot or an error.
  No I/O happens here, the caller supplies the timestamp.

INVARIANT:
  0 <= Amount <= MaxChargePoint, checked on construction and after every
  transition.

CHECK ORDER (first failure wins):
  Charge: delta <= 0              -> ErrInvalidAmount
          amount + delta > max    -> ErrLimitExceeded

  Use:    delta <= 0              -> ErrInvalidAmount
          delta > MaxUsePoint     -> ErrPerTransactionLimitExceeded
          amount - delta < 0      -> ErrInsufficientBalance

  New:    amount < 0              -> ErrInvalidAmount
          amount > max            -> ErrLimitExceeded
*/
package point

import (
	"fmt"
	"time"
)

// Balance is the current point total of a user.
type Balance struct {
	UserID    UserID
	Amount    int64
	UpdatedAt time.Time
}

// NewBalance builds a Balance, enforcing the amount bounds.
func NewBalance(id UserID, amount int64, at time.Time) (Balance, error) {
	if amount < 0 {
		return Balance{}, &TransitionError{Kind: ErrInvalidAmount, Op: "new", UserID: id, Delta: amount}
	}
	if amount > MaxChargePoint {
		return Balance{}, &TransitionError{Kind: ErrLimitExceeded, Op: "new", UserID: id, Delta: amount, Limit: MaxChargePoint}
	}
	return Balance{UserID: id, Amount: amount, UpdatedAt: at}, nil
}

// EmptyBalance is the balance of a user that has never been charged.
func EmptyBalance(id UserID, at time.Time) Balance {
	return Balance{UserID: id, UpdatedAt: at}
}

// Charge returns the balance after adding delta.
func (b Balance) Charge(delta int64, at time.Time) (Balance, error) {
	if delta <= 0 {
		return Balance{}, b.reject(ErrInvalidAmount, string(TxCharge), delta, 0)
	}
	if delta > MaxChargePoint-b.Amount {
		return Balance{}, b.reject(ErrLimitExceeded, string(TxCharge), delta, MaxChargePoint)
	}
	return NewBalance(b.UserID, b.Amount+delta, at)
}

// Use returns the balance after subtracting delta.
func (b Balance) Use(delta int64, at time.Time) (Balance, error) {
	if delta <= 0 {
		return Balance{}, b.reject(ErrInvalidAmount, string(TxUse), delta, 0)
	}
	if delta > MaxUsePoint {
		return Balance{}, b.reject(ErrPerTransactionLimitExceeded, string(TxUse), delta, MaxUsePoint)
	}
	if b.Amount-delta < 0 {
		return Balance{}, b.reject(ErrInsufficientBalance, string(TxUse), delta, 0)
	}
	return NewBalance(b.UserID, b.Amount-delta, at)
}

// Apply runs the transition matching t.
func (b Balance) Apply(t TransactionType, delta int64, at time.Time) (Balance, error) {
	switch t {
	case TxCharge:
		return b.Charge(delta, at)
	case TxUse:
		return b.Use(delta, at)
	default:
		return Balance{}, fmt.Errorf("apply: unknown transaction type %q", t)
	}
}

func (b Balance) reject(kind error, op string, delta, limit int64) error {
	return &TransitionError{
		Kind:    kind,
		Op:      op,
		UserID:  b.UserID,
		Current: b.Amount,
		Delta:   delta,
		Limit:   limit,
	}
}
