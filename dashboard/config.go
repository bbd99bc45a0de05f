package dashboard

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-smartcache/cache"
)

// Default TTLs per entity family. Reference data lives long, evaluation data changes often.
const (
	EmployeeTTL       = 30 * time.Minute
	QuarterTTL        = 24 * time.Hour
	CurrentQuarterTTL = time.Hour
	EvaluationTTL     = 5 * time.Minute
	CoreGroupTTL      = 15 * time.Minute
	ChartTTL          = 10 * time.Minute
)

// Cache names, used in logs, metrics and snapshot keys.
const (
	EmployeesCache   = "employees"
	QuartersCache    = "quarters"
	EvaluationsCache = "evaluations"
	CoreGroupsCache  = "coregroups"
	ChartsCache      = "charts"
)

// Config holds one cache.Config per domain cache.
type Config struct {
	Employees   cache.Config `yaml:"employees"`
	Quarters    cache.Config `yaml:"quarters"`
	Evaluations cache.Config `yaml:"evaluations"`
	CoreGroups  cache.Config `yaml:"coregroups"`
	Charts      cache.Config `yaml:"charts"`
}

func domainConfig(name string, maxSize int, ttl time.Duration) cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Name = name
	cfg.MaxSize = maxSize
	cfg.DefaultTTL = ttl
	return cfg
}

// DefaultConfig returns the domain defaults.
func DefaultConfig() Config {
	return Config{
		Employees:   domainConfig(EmployeesCache, 500, EmployeeTTL),
		Quarters:    domainConfig(QuartersCache, 50, QuarterTTL),
		Evaluations: domainConfig(EvaluationsCache, 2000, EvaluationTTL),
		CoreGroups:  domainConfig(CoreGroupsCache, 200, CoreGroupTTL),
		Charts:      domainConfig(ChartsCache, 500, ChartTTL),
	}
}

// WithDefaults fills zero names, sizes, TTLs and debounce intervals from DefaultConfig.
// A zero CleanupInterval is kept and disables the sweeper.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	c.Employees = merge(c.Employees, def.Employees)
	c.Quarters = merge(c.Quarters, def.Quarters)
	c.Evaluations = merge(c.Evaluations, def.Evaluations)
	c.CoreGroups = merge(c.CoreGroups, def.CoreGroups)
	c.Charts = merge(c.Charts, def.Charts)
	return c
}

func merge(cfg, def cache.Config) cache.Config {
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = def.MaxSize
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = def.DefaultTTL
	}
	if cfg.PersistDebounce == 0 {
		cfg.PersistDebounce = def.PersistDebounce
	}
	return cfg
}

// Each applies fn to every cache config.
func (c Config) Each(fn func(*cache.Config)) Config {
	for _, cfg := range []*cache.Config{&c.Employees, &c.Quarters, &c.Evaluations, &c.CoreGroups, &c.Charts} {
		fn(cfg)
	}
	return c
}

// Validate checks every cache config.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Employees),
		validation.Field(&c.Quarters),
		validation.Field(&c.Evaluations),
		validation.Field(&c.CoreGroups),
		validation.Field(&c.Charts),
	)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid dashboard cache config")
	}
	return nil
}
