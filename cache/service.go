package cache

import (
	"context"
	"regexp"
	"time"
)

// KeySerializer builds a cache key from a prefix + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(prefix string, args ...any) string
}

// FetchFn is the producer invoked by GetOrFetch when no valid entry exists.
type FetchFn[V any] func(ctx context.Context) (V, error)

// Service is the typed caching contract SmartCache satisfies. Domain services depend on
// it rather than on *SmartCache so they can be substituted in tests.
type Service[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V, ttl ...time.Duration)
	Has(ctx context.Context, key string) bool
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
	GetOrFetch(ctx context.Context, key string, fetchFn FetchFn[V], ttl ...time.Duration) (V, error)
	InvalidatePattern(pattern string) (int, error)
	InvalidateRegexp(re *regexp.Regexp) int
	Stats() Stats
	Name() string
}

var _ Service[any] = (*SmartCache[any])(nil)

// Stats is an observability snapshot of a SmartCache.
type Stats struct {
	Name          string  `json:"name"`
	Size          int     `json:"size"`
	MaxSize       int     `json:"max_size"`
	ExpiredCount  int     `json:"expired_count"`
	TotalAccesses uint64  `json:"total_accesses"`
	AverageAgeMs  float64 `json:"average_age_ms"`
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Evictions     uint64  `json:"evictions"`
	Expirations   uint64  `json:"expirations"`
}
