package audit

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
)

// MemoryStorage keeps the most recent events in memory. It backs
// development runs without a database and tests.
type MemoryStorage struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
}

// NewMemoryStorage keeps at most capacity events; older ones are dropped.
// A non-positive capacity means 10000.
func NewMemoryStorage(capacity int) *MemoryStorage {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryStorage{capacity: capacity}
}

func (s *MemoryStorage) Store(_ context.Context, event Event) error {
	event.Details = maps.Clone(event.Details)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	if over := len(s.events) - s.capacity; over > 0 {
		s.events = slices.Delete(s.events, 0, over)
	}
	return nil
}

func (s *MemoryStorage) Query(_ context.Context, criteria Criteria) ([]Event, error) {
	criteria = criteria.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, 0, min(criteria.Limit, len(s.events)))
	for i := len(s.events) - 1; i >= 0 && len(out) < criteria.Limit; i-- {
		e := s.events[i]
		if criteria.ActionPrefix != "" && !strings.HasPrefix(e.Action, criteria.ActionPrefix) {
			continue
		}
		if criteria.Actor != "" && e.Actor != criteria.Actor {
			continue
		}
		e.Details = maps.Clone(e.Details)
		out = append(out, e)
	}
	return out, nil
}
