package identity

import (
	"context"
	"sync"
)

// MemoryStore is the in-process dev fallback used when no database is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User // keyed by normalized username
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	u, err := prepare(in)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return User{}, ErrUsernameTaken()
	}
	s.users[u.Username] = u
	return u, nil
}

func (s *MemoryStore) UserByUsername(ctx context.Context, username string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	n := NormalizeUsername(username)

	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[n]
	if !ok {
		return User{}, userNotFound(n)
	}
	return u, nil
}
