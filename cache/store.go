package cache

import "context"

// Store is the durable key-value boundary used for snapshot persistence.
// Load reports ok=false when the key has never been written.
type Store interface {
	Load(ctx context.Context, key string) (data []byte, ok bool, err error)
	Save(ctx context.Context, key string, data []byte) error
}

// SnapshotKey is the store key a named cache persists under.
func SnapshotKey(cacheName string) string {
	return "smartcache:" + cacheName
}
