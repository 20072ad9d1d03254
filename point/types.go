/*
Package point provides the per-user point balance engine.

PURPOSE:
  Users own a point balance that can be charged (increased) or used
  (decreased). Every accepted mutation leaves an immutable history entry.
  Operations for one user are strictly serialized; operations for
  different users never wait on each other.

KEY CONCEPTS IN THIS FILE (types.go):
  - UserID: Identifier of the balance owner
  - TransactionType: CHARGE or USE
  - HistoryEntry: Immutable record of one completed charge or use

LIMITS:
  MaxChargePoint: Upper bound of any balance (100,000)
  MaxUsePoint:    Upper bound of a single use (10,000)

USAGE:
  svc := point.NewService(store.NewMemory())
  bal, err := svc.Charge(ctx, 1, 5_000)
  if errors.Is(err, point.ErrLimitExceeded) {
      // balance would pass the maximum
  }

SEE ALSO:
  - balance.go: Balance value object and transition rules
  - service.go: Locked read-modify-write orchestration
  - store.go: Storage collaborator contract
  - lock/registry.go: Key-scoped fair locks
*/
package point

import (
	"fmt"
	"time"
)

// =============================================================================
// LIMITS
// =============================================================================

const (
	// MaxChargePoint is the largest balance a user may hold.
	MaxChargePoint int64 = 100_000

	// MaxUsePoint is the largest amount usable in a single call,
	// independent of the balance.
	MaxUsePoint int64 = 10_000
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// UserID identifies the owner of a balance.
type UserID int64

func (id UserID) String() string {
	return fmt.Sprintf("%d", int64(id))
}

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

type TransactionType string

const (
	TxCharge TransactionType = "CHARGE"
	TxUse    TransactionType = "USE"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TxCharge || t == TxUse
}

// ParseTransactionType converts a stored string back into a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
	return t, nil
}

// =============================================================================
// HISTORY ENTRY - Append-only record of a completed mutation
// =============================================================================

// HistoryEntry records one completed charge or use.
// Amount is the magnitude of the change; the direction comes from Type.
// Entries are never updated or removed.
type HistoryEntry struct {
	ID        int64
	UserID    UserID
	Amount    int64
	Type      TransactionType
	Timestamp time.Time
}

// Signed returns the change this entry applied to the balance.
func (e HistoryEntry) Signed() int64 {
	if e.Type == TxUse {
		return -e.Amount
	}
	return e.Amount
}
