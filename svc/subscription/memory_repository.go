package subscription

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository. It returns copies so
// callers cannot mutate stored state.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

// MemoryOption configures MemoryRepository.
type MemoryOption func(*MemoryRepository)

// WithClock overrides the time source used for period ends and updatedAt.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryRepository) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository(opts ...MemoryOption) *MemoryRepository {
	m := &MemoryRepository{
		records: make(map[string]*Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryRepository) Get(_ context.Context, userID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records[userID].clone(), nil
}

func (m *MemoryRepository) UpgradeToPremium(_ context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	rec, ok := m.records[userID]
	if !ok {
		end := now.Add(PeriodLength)
		rec = &Record{UserID: userID, CurrentPeriodEnd: &end}
		m.records[userID] = rec
	}
	rec.Tier = TierPremium
	rec.Status = StatusActive
	rec.CancellationScheduledAt = nil
	rec.CanceledAt = nil
	rec.UpdatedAt = now
	return rec.clone(), nil
}

func (m *MemoryRepository) ScheduleCancellation(_ context.Context, userID string, when time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[userID]
	if !ok {
		return nil
	}
	when = when.UTC()
	rec.Status = StatusCanceled
	rec.CancellationScheduledAt = &when
	rec.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryRepository) ApplyCancellationIfDue(_ context.Context, userID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[userID]
	if !ok || rec.CancellationScheduledAt == nil {
		return false, nil
	}
	if rec.CancellationScheduledAt.After(now) {
		return false, nil
	}

	rec.Tier = TierFree
	rec.Status = StatusNone
	rec.CanceledAt = rec.CancellationScheduledAt
	rec.CancellationScheduledAt = nil
	rec.UpdatedAt = m.now().UTC()
	return true, nil
}

func (m *MemoryRepository) AttachCustomer(_ context.Context, userID, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.records[userID]; ok && customerID != "" {
		rec.CustomerID = customerID
		rec.UpdatedAt = m.now().UTC()
	}
	return nil
}
