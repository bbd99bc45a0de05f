package persist

import (
	"context"

	"github.com/goliatone/go-smartcache/internal/cacheinfra"
)

// MemoryStore keeps snapshots in a bounded in-process sturdyc client.
type MemoryStore struct {
	inner  *cacheinfra.SturdycStore
	prefix string
}

// NewMemoryStore creates a MemoryStore with the given sturdyc sizing.
func NewMemoryStore(cfg cacheinfra.Config, keyPrefix string) (*MemoryStore, error) {
	inner, err := cacheinfra.NewSturdycStore(cfg)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{inner: inner, prefix: keyPrefix}, nil
}

// Load implements cache.Store.
func (s *MemoryStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	return s.inner.Load(ctx, s.prefix+key)
}

// Save implements cache.Store.
func (s *MemoryStore) Save(ctx context.Context, key string, data []byte) error {
	return s.inner.Save(ctx, s.prefix+key, data)
}

// Delete removes the snapshot stored under key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

// Purge removes every snapshot written through this store.
func (s *MemoryStore) Purge(ctx context.Context) (int, error) {
	return s.inner.DeleteByPrefix(ctx, s.prefix)
}

// Len returns the number of snapshots held.
func (s *MemoryStore) Len() int {
	return s.inner.Len()
}

// Close is a no-op; the sturdyc client has no resources to release.
func (s *MemoryStore) Close() error { return nil }
