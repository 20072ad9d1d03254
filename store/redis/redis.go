/*
Package redis provides a Redis-backed implementation of point.Store.

KEYS:
  <prefix>:balance:<user>   hash {amount, updated_at}
  <prefix>:history:<user>   list of JSON history entries (RPUSH only)
  <prefix>:history:seq      counter used for history IDs

  Each method issues independent commands; there is no MULTI/EXEC or Lua.
  Like the other stores, consistency of a mutation comes from the per-user
  lock held by point.Service, which means a single process owns the keys.
*/
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/point-engine/point"
)

const DefaultPrefix = "point"

type Store struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix, now: time.Now}
}

// Connect dials addr and verifies the connection.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

type historyRecord struct {
	ID        int64  `json:"id"`
	Amount    int64  `json:"amount"`
	Type      string `json:"type"`
	Timestamp int64  `json:"ts"` // unix nanoseconds
}

func (s *Store) balanceKey(id point.UserID) string {
	return fmt.Sprintf("%s:balance:%d", s.prefix, int64(id))
}

func (s *Store) historyKey(id point.UserID) string {
	return fmt.Sprintf("%s:history:%d", s.prefix, int64(id))
}

func (s *Store) seqKey() string {
	return s.prefix + ":history:seq"
}

func (s *Store) LoadBalance(ctx context.Context, id point.UserID) (point.Balance, error) {
	vals, err := s.rdb.HGetAll(ctx, s.balanceKey(id)).Result()
	if err != nil {
		return point.Balance{}, fmt.Errorf("load balance: %w", err)
	}
	if len(vals) == 0 {
		return point.EmptyBalance(id, s.now()), nil
	}

	amount, err := strconv.ParseInt(vals["amount"], 10, 64)
	if err != nil {
		return point.Balance{}, fmt.Errorf("load balance: bad amount %q: %w", vals["amount"], err)
	}
	ts, err := strconv.ParseInt(vals["updated_at"], 10, 64)
	if err != nil {
		return point.Balance{}, fmt.Errorf("load balance: bad updated_at %q: %w", vals["updated_at"], err)
	}
	return point.Balance{UserID: id, Amount: amount, UpdatedAt: time.Unix(0, ts).UTC()}, nil
}

func (s *Store) StoreBalance(ctx context.Context, id point.UserID, amount int64) (point.Balance, error) {
	now := s.now().UTC()
	err := s.rdb.HSet(ctx, s.balanceKey(id),
		"amount", amount,
		"updated_at", now.UnixNano(),
	).Err()
	if err != nil {
		return point.Balance{}, fmt.Errorf("store balance: %w", err)
	}
	return point.Balance{UserID: id, Amount: amount, UpdatedAt: now}, nil
}

func (s *Store) AppendHistory(ctx context.Context, id point.UserID, amount int64, t point.TransactionType, at time.Time) (point.HistoryEntry, error) {
	seq, err := s.rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return point.HistoryEntry{}, fmt.Errorf("append history: %w", err)
	}

	at = at.UTC()
	data, err := json.Marshal(historyRecord{ID: seq, Amount: amount, Type: string(t), Timestamp: at.UnixNano()})
	if err != nil {
		return point.HistoryEntry{}, err
	}
	if err := s.rdb.RPush(ctx, s.historyKey(id), data).Err(); err != nil {
		return point.HistoryEntry{}, fmt.Errorf("append history: %w", err)
	}

	return point.HistoryEntry{ID: seq, UserID: id, Amount: amount, Type: t, Timestamp: at}, nil
}

func (s *Store) ListHistory(ctx context.Context, id point.UserID) ([]point.HistoryEntry, error) {
	raw, err := s.rdb.LRange(ctx, s.historyKey(id), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list history: %w", err)
	}

	entries := make([]point.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var rec historyRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("list history: decode: %w", err)
		}
		t, err := point.ParseTransactionType(rec.Type)
		if err != nil {
			return nil, fmt.Errorf("list history: %w", err)
		}
		entries = append(entries, point.HistoryEntry{
			ID:        rec.ID,
			UserID:    id,
			Amount:    rec.Amount,
			Type:      t,
			Timestamp: time.Unix(0, rec.Timestamp).UTC(),
		})
	}
	return entries, nil
}
