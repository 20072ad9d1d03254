/*
store.go - Storage collaborator contract

PURPOSE:
  The engine sits on a plain key-value style store with no transactions.
  Consistency comes only from the per-user lock held by Service while it
  calls these methods; implementations just need each call to be safe
  under concurrent use.

KEY INTERFACES:
  BalanceStore: current balance per user (read, upsert)
  HistoryStore: append-only transaction records per user
  Store:        both

IMPLEMENTATIONS:
  - point/store/memory.go: In-memory, optional artificial latency
  - store/sqlite/sqlite.go: SQLite tables
  - store/redis/redis.go:   Redis keys
*/
package point

import (
	"context"
	"time"
)

// BalanceStore persists the current balance of each user.
type BalanceStore interface {
	// LoadBalance returns the stored balance, or the zero balance
	// when the user has never been written.
	LoadBalance(ctx context.Context, id UserID) (Balance, error)

	// StoreBalance upserts the amount and returns the stored snapshot
	// stamped with the write time.
	StoreBalance(ctx context.Context, id UserID, amount int64) (Balance, error)
}

// HistoryStore keeps the append-only history. No Update, no Delete.
type HistoryStore interface {
	// AppendHistory records an entry and returns it with its assigned ID.
	AppendHistory(ctx context.Context, id UserID, amount int64, t TransactionType, at time.Time) (HistoryEntry, error)

	// ListHistory returns every entry of the user in append order.
	// Unknown users get an empty slice.
	ListHistory(ctx context.Context, id UserID) ([]HistoryEntry, error)
}

type Store interface {
	BalanceStore
	HistoryStore
}
