// Package store provides Store implementations.
package store

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/warp/point-engine/point"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps balances and history in maps. Each call is atomic on its own;
// there is no way to group calls, which is what the per-user lock is for.
type Memory struct {
	mu        sync.RWMutex
	balances  map[point.UserID]point.Balance
	histories map[point.UserID][]point.HistoryEntry
	cursor    int64

	latency time.Duration
	now     func() time.Time
}

type MemoryOption func(*Memory)

// WithLatency makes every call sleep a random duration in [0, max),
// mimicking a slow table. The sleep happens outside the map lock.
func WithLatency(max time.Duration) MemoryOption {
	return func(m *Memory) { m.latency = max }
}

// WithClock overrides the time used to stamp stored balances.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		balances:  make(map[point.UserID]point.Balance),
		histories: make(map[point.UserID][]point.HistoryEntry),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) LoadBalance(_ context.Context, id point.UserID) (point.Balance, error) {
	m.throttle()
	m.mu.RLock()
	defer m.mu.RUnlock()

	if b, ok := m.balances[id]; ok {
		return b, nil
	}
	return point.EmptyBalance(id, m.now()), nil
}

func (m *Memory) StoreBalance(_ context.Context, id point.UserID, amount int64) (point.Balance, error) {
	m.throttle()
	b := point.Balance{UserID: id, Amount: amount, UpdatedAt: m.now()}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[id] = b
	return b, nil
}

func (m *Memory) AppendHistory(_ context.Context, id point.UserID, amount int64, t point.TransactionType, at time.Time) (point.HistoryEntry, error) {
	m.throttle()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cursor++
	e := point.HistoryEntry{
		ID:        m.cursor,
		UserID:    id,
		Amount:    amount,
		Type:      t,
		Timestamp: at,
	}
	m.histories[id] = append(m.histories[id], e)
	return e, nil
}

func (m *Memory) ListHistory(_ context.Context, id point.UserID) ([]point.HistoryEntry, error) {
	m.throttle()
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]point.HistoryEntry, len(m.histories[id]))
	copy(result, m.histories[id])
	return result, nil
}

// throttle ignores cancellation: a caller inside a critical section
// must be able to finish it.
func (m *Memory) throttle() {
	if m.latency > 0 {
		time.Sleep(rand.N(m.latency))
	}
}
