/*
service.go - Point operations under per-user locking

PURPOSE:
  Service is the only entry point for reading and mutating balances.

CRITICAL SECTION:
  Charge and Use run as one unit while holding the user's lock:

    1. LoadBalance
    2. Apply the transition (pure, may reject)
    3. AppendHistory
    4. StoreBalance

  A rejected transition returns before step 3, so nothing is written.
  Two mutations of the same user never interleave these steps; mutations
  of different users take different locks and run in parallel.

READS:
  Query and History take no lock and never write.

CANCELLATION:
  The context is checked before waiting for the lock. Once the lock is
  held the critical section runs to completion: the store sees a context
  that keeps the caller's values but is never cancelled.
*/
package point

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/warp/point-engine/point/lock"
)

// Observer receives operational measurements from the service.
// metrics.Collector is the production implementation.
type Observer interface {
	ObserveLockWait(d time.Duration)
	ObserveOperation(t TransactionType, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveLockWait(time.Duration)           {}
func (nopObserver) ObserveOperation(TransactionType, error) {}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store Store
	locks *lock.Registry[UserID]
	now   func() time.Time
	log   *zap.Logger
	obs   Observer
}

type Option func(*Service)

// WithClock overrides the time source used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithObserver(obs Observer) Option {
	return func(s *Service) { s.obs = obs }
}

// WithLocks shares a lock registry, e.g. between services on the same store.
func WithLocks(locks *lock.Registry[UserID]) Option {
	return func(s *Service) { s.locks = locks }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		locks: lock.NewRegistry[UserID](),
		now:   time.Now,
		log:   zap.NewNop(),
		obs:   nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LockCount returns the number of users that have a lock allocated.
func (s *Service) LockCount() int {
	return s.locks.Len()
}

// Query returns the current balance, or the zero balance for an unseen user.
func (s *Service) Query(ctx context.Context, id UserID) (Balance, error) {
	return s.store.LoadBalance(ctx, id)
}

// History returns the user's entries in insertion order.
func (s *Service) History(ctx context.Context, id UserID) ([]HistoryEntry, error) {
	return s.store.ListHistory(ctx, id)
}

// Charge adds amount to the user's balance.
func (s *Service) Charge(ctx context.Context, id UserID, amount int64) (Balance, error) {
	return s.mutate(ctx, id, TxCharge, amount)
}

// Use subtracts amount from the user's balance.
func (s *Service) Use(ctx context.Context, id UserID, amount int64) (Balance, error) {
	return s.mutate(ctx, id, TxUse, amount)
}

func (s *Service) mutate(ctx context.Context, id UserID, t TransactionType, amount int64) (Balance, error) {
	if err := ctx.Err(); err != nil {
		return Balance{}, err
	}

	// Once the lock is held the store calls must not observe cancellation,
	// or a history entry could be written without its balance.
	storeCtx := context.WithoutCancel(ctx)

	var result Balance
	waitStart := time.Now()
	err := s.locks.WithLock(id, func() error {
		s.obs.ObserveLockWait(time.Since(waitStart))

		current, err := s.store.LoadBalance(storeCtx, id)
		if err != nil {
			return err
		}

		at := s.now()
		next, err := current.Apply(t, amount, at)
		if err != nil {
			return err
		}

		if _, err := s.store.AppendHistory(storeCtx, id, amount, t, at); err != nil {
			return err
		}
		stored, err := s.store.StoreBalance(storeCtx, id, next.Amount)
		if err != nil {
			return err
		}
		result = stored
		return nil
	})
	s.obs.ObserveOperation(t, err)

	fields := []zap.Field{
		zap.Int64("user_id", int64(id)),
		zap.String("type", string(t)),
		zap.Int64("amount", amount),
	}
	if err != nil {
		if IsClientError(err) {
			s.log.Debug("point mutation rejected", append(fields, zap.Error(err))...)
		} else {
			s.log.Error("point mutation failed", append(fields, zap.Error(err))...)
		}
		return Balance{}, err
	}
	s.log.Debug("point mutation applied", append(fields, zap.Int64("balance", result.Amount))...)
	return result, nil
}
