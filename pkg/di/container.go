package di

import (
	"context"
	"sync"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-smartcache/cache"
	"github.com/goliatone/go-smartcache/dashboard"
	"github.com/goliatone/go-smartcache/metrics"
	"github.com/goliatone/go-smartcache/persist"
	"github.com/goliatone/go-smartcache/repositorycache"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Container wires the cache stack: logger, persistence store, domain caches,
// invalidator, preloader and metrics. It owns everything it builds and releases it
// on Close.
type Container struct {
	config        Config
	logger        *zap.Logger
	store         cache.Store
	ownStore      bool
	caches        *dashboard.Caches
	invalidator   *dashboard.Invalidator
	preloader     *dashboard.Preloader
	collector     *metrics.Collector
	registry      *prometheus.Registry
	keySerializer cache.KeySerializer

	mu      sync.Mutex
	closers []func(context.Context) error
	repos   map[string]struct{}
}

// Option customises a Container.
type Option func(*Container)

// WithLogger replaces the logger built from Config.Logging.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStore replaces the store opened from Config.Persistence. The container does not
// close a store it was given.
func WithStore(store cache.Store) Option {
	return func(c *Container) {
		c.store = store
	}
}

// NewContainer builds a Container from cfg.
func NewContainer(ctx context.Context, cfg Config, opts ...Option) (*Container, error) {
	cfg = cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		config:        cfg,
		keySerializer: cache.NewDefaultKeySerializer(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		logger, err := newLogger(cfg.Logging)
		if err != nil {
			return nil, err
		}
		c.logger = logger
	}

	if c.store == nil && cfg.Persistence.Enabled() {
		store, err := persist.Open(ctx, cfg.Persistence, c.logger)
		if err != nil {
			return nil, err
		}
		c.store = store
		c.ownStore = true
	}

	if cfg.Metrics.Enabled {
		c.collector = metrics.NewCollector(cfg.Metrics.Namespace)
		c.registry = prometheus.NewRegistry()
		if err := c.registry.Register(c.collector); err != nil {
			c.closeStore()
			return nil, errors.Wrap(err, errors.CategoryInternal, "register metrics collector")
		}
	}

	caches, err := dashboard.NewCaches(cfg.Caches, c.cacheOptions()...)
	if err != nil {
		c.closeStore()
		return nil, err
	}
	c.caches = caches
	if c.collector != nil {
		for _, t := range caches.Targets() {
			c.collector.Track(t)
		}
	}

	c.invalidator = dashboard.NewInvalidator(caches, dashboard.WithInvalidatorLogger(c.logger))
	c.preloader = dashboard.NewPreloader(caches, cfg.Preload, c.logger)

	c.logger.Info("container ready",
		zap.String("persistence", cfg.Persistence.Driver),
		zap.Bool("metrics", cfg.Metrics.Enabled),
		zap.Bool("tenant_isolation", cfg.TenantIsolation),
	)
	return c, nil
}

// NewContainerWithDefaults creates a container using DefaultConfig.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(context.Background(), DefaultConfig())
}

func (c *Container) cacheOptions() []cache.Option {
	opts := []cache.Option{cache.WithLogger(c.logger)}
	if c.store != nil {
		opts = append(opts, cache.WithStore(c.store))
	}
	if c.collector != nil {
		opts = append(opts, cache.WithObserver(c.collector))
	}
	return opts
}

// Config returns the normalized configuration.
func (c *Container) Config() Config { return c.config }

// Logger returns the root logger.
func (c *Container) Logger() *zap.Logger { return c.logger }

// Store returns the persistence store, nil when persistence is disabled.
func (c *Container) Store() cache.Store { return c.store }

// Caches returns the domain caches.
func (c *Container) Caches() *dashboard.Caches { return c.caches }

// Invalidator returns the cross-cache invalidator.
func (c *Container) Invalidator() *dashboard.Invalidator { return c.invalidator }

// Preloader returns the background warmer.
func (c *Container) Preloader() *dashboard.Preloader { return c.preloader }

// Metrics returns the collector, nil when metrics are disabled.
func (c *Container) Metrics() *metrics.Collector { return c.collector }

// Registry returns the Prometheus registry holding the collector, nil when metrics
// are disabled.
func (c *Container) Registry() *prometheus.Registry { return c.registry }

// KeySerializer returns the shared key serializer.
func (c *Container) KeySerializer() cache.KeySerializer { return c.keySerializer }

// Close waits for preloads, closes repository and domain caches (flushing
// snapshots) and then the store.
func (c *Container) Close(ctx context.Context) error {
	c.preloader.Wait()

	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var errs []error
	for _, fn := range closers {
		errs = append(errs, fn(ctx))
	}
	errs = append(errs, c.caches.Close(ctx))
	errs = append(errs, c.closeStore())
	_ = c.logger.Sync()
	return errors.Join(errs...)
}

func (c *Container) closeStore() error {
	if !c.ownStore {
		return nil
	}
	if s, ok := c.store.(persist.Store); ok {
		return s.Close()
	}
	return nil
}

func (c *Container) register(sc interface {
	Name() string
	Stats() cache.Stats
	Close(context.Context) error
}) {
	c.mu.Lock()
	c.closers = append(c.closers, sc.Close)
	c.mu.Unlock()
	if c.collector != nil {
		c.collector.Track(sc)
	}
}

func (c *Container) reserveNamespace(ns string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.repos[ns]; taken {
		return errors.New("repository namespace already cached", errors.CategoryConflict).
			WithMetadata(map[string]any{"namespace": ns})
	}
	if c.repos == nil {
		c.repos = make(map[string]struct{})
	}
	c.repos[ns] = struct{}{}
	return nil
}

func (c *Container) releaseNamespace(ns string) {
	c.mu.Lock()
	delete(c.repos, ns)
	c.mu.Unlock()
}

// NewCachedRepository wraps base with record, list and count caches built from
// Config.Repositories and routes successful writes to the Invalidator. toChange maps a
// written record to the domain change it implies; nil skips domain invalidation.
// Criteria deletes, which carry no records, invalidate every domain cache.
// Each record type can be wrapped once per container; a second call for the same
// namespace fails with CategoryConflict.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
func NewCachedRepository[T any](c *Container, base repository.Repository[T], toChange func(T) dashboard.Change) (*repositorycache.CachedRepository[T], error) {
	ns := repositorycache.NamespaceOf[T]()
	if err := c.reserveNamespace(ns); err != nil {
		return nil, err
	}
	tmpl := c.config.Repositories

	named := func(suffix string) cache.Config {
		cfg := tmpl
		cfg.Name = ns + "_" + suffix
		return cfg
	}

	records, err := cache.New[T](named("records"), c.cacheOptions()...)
	if err != nil {
		c.releaseNamespace(ns)
		return nil, err
	}
	lists, err := cache.New[repositorycache.ListResult[T]](named("lists"), c.cacheOptions()...)
	if err != nil {
		_ = records.Close(context.Background())
		c.releaseNamespace(ns)
		return nil, err
	}
	counts, err := cache.New[int](named("counts"), c.cacheOptions()...)
	if err != nil {
		_ = records.Close(context.Background())
		_ = lists.Close(context.Background())
		c.releaseNamespace(ns)
		return nil, err
	}
	c.register(records)
	c.register(lists)
	c.register(counts)

	logger := c.logger.Named("repository").With(zap.String("namespace", ns))
	onChange := func(ctx context.Context, ch repositorycache.Change[T]) {
		if toChange == nil {
			return
		}
		changes := make([]dashboard.Change, 0, len(ch.Records))
		for _, record := range ch.Records {
			changes = append(changes, toChange(record))
		}
		if len(changes) == 0 {
			changes = append(changes, dashboard.Change{Kind: dashboard.ChangeAll})
		}
		for _, change := range changes {
			if _, err := c.invalidator.Handle(ctx, change); err != nil {
				logger.Warn("domain invalidation failed",
					zap.String("op", string(ch.Op)),
					zap.String("kind", string(change.Kind)),
					zap.Error(err),
				)
			}
		}
	}

	return repositorycache.New(base, repositorycache.Options[T]{
		Records:       records,
		Lists:         lists,
		Counts:        counts,
		KeySerializer: c.keySerializer,
		Namespace:     ns,
		OnChange:      onChange,
		Logger:        c.logger,
	}), nil
}
