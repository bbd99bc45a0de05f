package cache

import "go.uber.org/zap"

// Option customises a SmartCache at construction.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	clock    Clock
	store    Store
	tenants  TenantResolver
	observer Observer
}

func defaultOptions() options {
	return options{
		logger:   zap.NewNop(),
		clock:    SystemClock(),
		tenants:  ContextTenantResolver{},
		observer: NoopObserver{},
	}
}

// WithLogger sets the logger; nil keeps the no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock replaces the wall clock, typically with a manual clock in tests.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithStore sets the persistence backend used when Config.Persistent is true.
func WithStore(store Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithTenantResolver sets how the tenant is derived from a context.
func WithTenantResolver(resolver TenantResolver) Option {
	return func(o *options) {
		if resolver != nil {
			o.tenants = resolver
		}
	}
}

// WithObserver registers an event observer, e.g. a metrics collector.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}
