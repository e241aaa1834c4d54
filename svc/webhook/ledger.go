package webhook

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger records processed event ids.
type Ledger interface {
	// Seen reports whether id was recorded before.
	Seen(ctx context.Context, id string) (bool, error)
	// Record inserts id, or marks the existing row duplicate. The bool is
	// true when the row already existed.
	Record(ctx context.Context, id, eventType, userID string) (bool, error)
}

// LedgerEntry is one ledger row.
type LedgerEntry struct {
	ID          string
	Type        string
	UserID      string
	Duplicate   bool
	ProcessedAt time.Time
}

// MemoryLedger is an in-process Ledger.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]LedgerEntry
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]LedgerEntry)}
}

func (l *MemoryLedger) Seen(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[id]
	return ok, nil
}

func (l *MemoryLedger) Record(_ context.Context, id, eventType, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[id]; ok {
		e.Duplicate = true
		l.entries[id] = e
		return true, nil
	}
	l.entries[id] = LedgerEntry{ID: id, Type: eventType, UserID: userID, ProcessedAt: time.Now().UTC()}
	return false, nil
}

// Entry returns the row for id.
func (l *MemoryLedger) Entry(id string) (LedgerEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	return e, ok
}

// Len is the number of distinct ids recorded.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// PgLedger stores the ledger in the webhook_events table.
type PgLedger struct {
	pool *pgxpool.Pool
}

// NewPgLedger creates a ledger on pool.
func NewPgLedger(pool *pgxpool.Pool) *PgLedger {
	return &PgLedger{pool: pool}
}

func (l *PgLedger) Seen(ctx context.Context, id string) (bool, error) {
	var seen bool
	err := l.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM webhook_events WHERE id = $1)`, id).Scan(&seen)
	if err != nil {
		return false, errors.Join(ErrLedger, err)
	}
	return seen, nil
}

func (l *PgLedger) Record(ctx context.Context, id, eventType, userID string) (bool, error) {
	var duplicate bool
	err := l.pool.QueryRow(ctx, `
		INSERT INTO webhook_events (id, type, user_id)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (id) DO UPDATE SET duplicate = true
		RETURNING duplicate`, id, eventType, userID,
	).Scan(&duplicate)
	if err != nil {
		return false, errors.Join(ErrLedger, err)
	}
	return duplicate, nil
}
