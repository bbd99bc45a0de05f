package cache

import "time"

// Entry is the unit of storage held by a SmartCache slot.
type Entry[V any] struct {
	Value          V             `msgpack:"value"`
	CreatedAt      time.Time     `msgpack:"created_at"`
	TTL            time.Duration `msgpack:"ttl"`
	AccessCount    uint64        `msgpack:"access_count"`
	LastAccessedAt time.Time     `msgpack:"last_accessed_at"`
}

// Expired reports whether now is past CreatedAt+TTL. A non-positive TTL never expires.
func (e *Entry[V]) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) > e.TTL
}

// ExpiresAt returns the absolute expiry time, or the zero time when the entry never expires.
func (e *Entry[V]) ExpiresAt() time.Time {
	if e.TTL <= 0 {
		return time.Time{}
	}
	return e.CreatedAt.Add(e.TTL)
}

func (e *Entry[V]) touch(now time.Time) {
	e.AccessCount++
	e.LastAccessedAt = now
}
