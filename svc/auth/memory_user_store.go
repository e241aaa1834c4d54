package auth

import (
	"context"
	"strings"
	"sync"
)

// MemoryUserStore is a UserStore for tests and local runs.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byEmail map[string]User
}

// NewMemoryUserStore creates an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{byEmail: make(map[string]User)}
}

func (s *MemoryUserStore) Create(_ context.Context, u *User) error {
	key := strings.ToLower(u.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[key]; ok {
		return ErrEmailInUse
	}
	s.byEmail[key] = *u
	return nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}
