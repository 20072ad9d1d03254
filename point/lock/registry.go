/*
Package lock provides key-scoped mutual exclusion.

PURPOSE:
  One lock per key, created on first use and shared by every caller of
  that key for the lifetime of the process. Callers holding different keys
  never contend, apart from the brief map lookup.

CREATION:
  Handles are created through sync.Map.LoadOrStore, so concurrent first
  access for the same unseen key yields exactly one shared handle. The
  losing goroutines discard their candidate before anyone locks it.

FAIRNESS:
  sync.Mutex does not grant in arrival order. FairMutex layers a FIFO
  waiter queue over it: on Unlock, ownership is handed directly to the
  oldest waiter, so a late arrival can never barge ahead of it.

GROWTH:
  Handles are never evicted. Len reports how many exist so the registry
  size can be watched from metrics.

USAGE:
  locks := lock.NewRegistry[point.UserID]()
  err := locks.WithLock(userID, func() error {
      // load, validate, append, persist
      return nil
  })
*/
package lock

import (
	"sync"
	"sync/atomic"
)

// =============================================================================
// REGISTRY - One FairMutex per key, created lazily
// =============================================================================

// Registry hands out one FairMutex per key.
type Registry[K comparable] struct {
	locks sync.Map // K -> *FairMutex
	size  atomic.Int64
}

func NewRegistry[K comparable]() *Registry[K] {
	return &Registry[K]{}
}

// Acquire returns the lock for key, creating it on first use.
// It does not lock the handle.
func (r *Registry[K]) Acquire(key K) *FairMutex {
	if m, ok := r.locks.Load(key); ok {
		return m.(*FairMutex)
	}
	m, loaded := r.locks.LoadOrStore(key, &FairMutex{})
	if !loaded {
		r.size.Add(1)
	}
	return m.(*FairMutex)
}

// WithLock runs fn while holding the lock for key. The lock is released
// when fn returns or panics.
func (r *Registry[K]) WithLock(key K, fn func() error) error {
	m := r.Acquire(key)
	m.Lock()
	defer m.Unlock()
	return fn()
}

// Len returns the number of keys that have a lock.
func (r *Registry[K]) Len() int {
	return int(r.size.Load())
}
