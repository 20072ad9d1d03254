/*
Package sqlite provides a SQLite-backed implementation of point.Store.

PURPOSE:
  Persists balances and history in two tables. Every method is a single
  statement; the store never opens a SQL transaction. Grouping the
  load/append/persist steps of a mutation is the job of the per-user lock
  in point.Service, exactly as with the in-memory store.

KEY TABLES:
  user_points:    one row per user (upserted)
  point_histories: append-only, AUTOINCREMENT id gives insertion order

INDEXES:
  idx_point_histories_user: history lookup by user (hot path)

CONCURRENCY:
  A single connection is used so ":memory:" databases are shared by all
  callers, and a sync.RWMutex serializes writers the same way the
  in-memory store does.

USAGE:
  store, err := sqlite.New("./data/points.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := point.NewService(store)

SEE ALSO:
  - point/store.go: Interface definitions
  - point/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/point-engine/point"
)

// Store implements point.Store using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Current balance per user
	CREATE TABLE IF NOT EXISTS user_points (
		id INTEGER PRIMARY KEY,
		point INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- History (append-only)
	CREATE TABLE IF NOT EXISTS point_histories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		tx_type TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_point_histories_user
		ON point_histories(user_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BALANCES
// =============================================================================

// LoadBalance returns the stored balance or a zero balance for unknown users.
func (s *Store) LoadBalance(ctx context.Context, id point.UserID) (point.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		amount    int64
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT point, updated_at FROM user_points WHERE id = ?", int64(id),
	).Scan(&amount, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return point.EmptyBalance(id, s.now()), nil
	}
	if err != nil {
		return point.Balance{}, fmt.Errorf("failed to load balance: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return point.Balance{}, fmt.Errorf("failed to parse balance timestamp %q: %w", updatedAt, err)
	}
	return point.Balance{UserID: id, Amount: amount, UpdatedAt: t}, nil
}

// StoreBalance upserts the user's balance.
func (s *Store) StoreBalance(ctx context.Context, id point.UserID, amount int64) (point.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	query := `
		INSERT INTO user_points (id, point, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET point = excluded.point, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, int64(id), amount, now.Format(time.RFC3339Nano)); err != nil {
		return point.Balance{}, fmt.Errorf("failed to store balance: %w", err)
	}
	return point.Balance{UserID: id, Amount: amount, UpdatedAt: now}, nil
}

// =============================================================================
// HISTORY
// =============================================================================

// AppendHistory inserts a history row. No UPDATE or DELETE exists for this table.
func (s *Store) AppendHistory(ctx context.Context, id point.UserID, amount int64, t point.TransactionType, at time.Time) (point.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at = at.UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO point_histories (user_id, amount, tx_type, updated_at) VALUES (?, ?, ?, ?)",
		int64(id), amount, string(t), at.Format(time.RFC3339Nano),
	)
	if err != nil {
		return point.HistoryEntry{}, fmt.Errorf("failed to append history: %w", err)
	}
	entryID, err := res.LastInsertId()
	if err != nil {
		return point.HistoryEntry{}, fmt.Errorf("failed to read history id: %w", err)
	}

	return point.HistoryEntry{
		ID:        entryID,
		UserID:    id,
		Amount:    amount,
		Type:      t,
		Timestamp: at,
	}, nil
}

// ListHistory returns the user's history in insertion order.
func (s *Store) ListHistory(ctx context.Context, id point.UserID) ([]point.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount, tx_type, updated_at
		FROM point_histories
		WHERE user_id = ?
		ORDER BY id ASC
	`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []point.HistoryEntry{}
	for rows.Next() {
		var (
			e         point.HistoryEntry
			txType    string
			updatedAt string
		)
		if err := rows.Scan(&e.ID, &e.Amount, &txType, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		if e.Type, err = point.ParseTransactionType(txType); err != nil {
			return nil, err
		}
		e.UserID = id
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("failed to parse history timestamp %q: %w", updatedAt, err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
