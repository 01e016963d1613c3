package users

import (
	"bytes"
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu    sync.Mutex
	now   func() time.Time
	users map[string]User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, users: make(map[string]User)}
}

func (s *MemoryStore) Ensure(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		user = New(id, s.now())
		s.users[id] = user
	}
	return user.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return User{}, false, nil
	}
	return user.Clone(), true, nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, id string, expected, next Patch) (User, bool, error) {
	if err := ValidatePatch(expected, next); err != nil {
		return User{}, false, err
	}
	want, err := expected.Encode()
	if err != nil {
		return User{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return User{}, false, nil
	}
	have, err := Of(user, expected.Sections()...).Encode()
	if err != nil {
		return User{}, false, err
	}
	for i := range want {
		if !bytes.Equal(want[i].JSON, have[i].JSON) {
			return User{}, false, nil
		}
	}

	next.Apply(&user)
	user.UpdatedAt = s.now()
	s.users[id] = user
	return user.Clone(), true, nil
}
