package dashboard

import (
	"context"
	"regexp"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-smartcache/cache"
)

// Target is the type-erased view of a domain cache used for fan-out operations.
type Target interface {
	Name() string
	Clear(ctx context.Context)
	Keys(ctx context.Context) []string
	InvalidateRegexp(re *regexp.Regexp) int
	Stats() cache.Stats
}

type closer interface {
	Close(ctx context.Context) error
}

// Caches bundles the five domain caches. It owns the underlying SmartCache instances
// for the life of the process.
type Caches struct {
	Employees   *EmployeeCache
	Quarters    *QuarterCache
	Evaluations *EvaluationCache
	CoreGroups  *CoreGroupCache
	Charts      *ChartCache

	targets []Target
	closers []closer
}

// NewCaches builds every domain cache from cfg. The options are shared, so one logger,
// store and observer serve all five caches.
func NewCaches(cfg Config, opts ...cache.Option) (*Caches, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Caches{}
	ok := false
	defer func() {
		if !ok {
			_ = c.Close(context.Background())
		}
	}()

	employees, err := cache.New[[]Employee](cfg.Employees, opts...)
	if err != nil {
		return nil, err
	}
	c.add(employees)
	c.Employees = NewEmployeeCache(employees)

	quarters, err := cache.New[[]Quarter](cfg.Quarters, opts...)
	if err != nil {
		return nil, err
	}
	c.add(quarters)
	c.Quarters = NewQuarterCache(quarters)

	evaluations, err := cache.New[[]EvaluationScore](cfg.Evaluations, opts...)
	if err != nil {
		return nil, err
	}
	c.add(evaluations)
	c.Evaluations = NewEvaluationCache(evaluations)

	coreGroups, err := cache.New[CoreGroupAnalytics](cfg.CoreGroups, opts...)
	if err != nil {
		return nil, err
	}
	c.add(coreGroups)
	c.CoreGroups = NewCoreGroupCache(coreGroups)

	charts, err := cache.New[ChartData](cfg.Charts, opts...)
	if err != nil {
		return nil, err
	}
	c.add(charts)
	c.Charts = NewChartCache(charts)

	ok = true
	return c, nil
}

func (c *Caches) add(sc interface {
	Target
	closer
}) {
	c.targets = append(c.targets, sc)
	c.closers = append(c.closers, sc)
}

// Targets returns every domain cache in a fixed order.
func (c *Caches) Targets() []Target {
	return append([]Target(nil), c.targets...)
}

// Target returns the cache with the given name.
func (c *Caches) Target(name string) (Target, bool) {
	for _, t := range c.targets {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Stats returns statistics for every domain cache.
func (c *Caches) Stats() []cache.Stats {
	out := make([]cache.Stats, 0, len(c.targets))
	for _, t := range c.targets {
		out = append(out, t.Stats())
	}
	return out
}

// Close stops every cache and flushes pending snapshots.
func (c *Caches) Close(ctx context.Context) error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
