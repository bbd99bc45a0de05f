package cache

import "time"

// Clock abstracts wall-clock time so TTL behaviour can be driven from tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
