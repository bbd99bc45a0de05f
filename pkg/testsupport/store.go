package testsupport

import (
	"context"
	"errors"
	"sync"
)

// ErrStoreUnavailable is returned by a Store switched to failing mode.
var ErrStoreUnavailable = errors.New("testsupport: store unavailable")

// Store is an in-memory persistence fake that records every save and can be told to fail.
type Store struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves int
	fail  bool
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Load returns a copy of the bytes saved under key.
func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return nil, false, ErrStoreUnavailable
	}
	data, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Save stores a copy of data under key.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return ErrStoreUnavailable
	}
	s.data[key] = append([]byte(nil), data...)
	s.saves++
	return nil
}

// SetFailing toggles failure mode for both Load and Save.
func (s *Store) SetFailing(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

// Saves returns how many successful saves happened.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Raw returns the stored bytes for key, or nil.
func (s *Store) Raw(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key]
}

// Put seeds raw bytes under key.
func (s *Store) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
}
