package lock

import "sync"

// FairMutex is a mutual exclusion lock granted in arrival order.
// The zero value is an unlocked mutex. Not reentrant.
type FairMutex struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

// Lock blocks until the caller owns the mutex. Callers that find the
// mutex busy are served first-in-first-out.
func (m *FairMutex) Lock() {
	m.mu.Lock()
	if !m.held && len(m.waiters) == 0 {
		m.held = true
		m.mu.Unlock()
		return
	}
	ready := make(chan struct{})
	m.waiters = append(m.waiters, ready)
	m.mu.Unlock()

	// Ownership arrives with held still true.
	<-ready
}

// TryLock acquires the mutex only if it is free and nobody is queued.
func (m *FairMutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held || len(m.waiters) > 0 {
		return false
	}
	m.held = true
	return true
}

// Unlock releases the mutex, handing it to the oldest waiter if any.
// Unlocking an unlocked FairMutex panics.
func (m *FairMutex) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held {
		panic("lock: unlock of unlocked FairMutex")
	}
	if len(m.waiters) == 0 {
		m.held = false
		return
	}
	next := m.waiters[0]
	m.waiters[0] = nil
	m.waiters = m.waiters[1:]
	close(next)
}

// Waiting returns the number of callers queued behind the current owner.
func (m *FairMutex) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}
