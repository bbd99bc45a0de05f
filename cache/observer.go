package cache

import "time"

// Observer receives cache lifecycle events. Implementations must be safe for
// concurrent use and must not call back into the cache.
type Observer interface {
	Hit(cache string)
	Miss(cache string)
	Eviction(cache string)
	Expiration(cache string)
	Fetch(cache string, took time.Duration, err error)
}

// NoopObserver ignores every event.
type NoopObserver struct{}

func (NoopObserver) Hit(string)                         {}
func (NoopObserver) Miss(string)                        {}
func (NoopObserver) Eviction(string)                    {}
func (NoopObserver) Expiration(string)                  {}
func (NoopObserver) Fetch(string, time.Duration, error) {}
