package di

import (
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-smartcache/cache"
	"github.com/goliatone/go-smartcache/dashboard"
	"github.com/goliatone/go-smartcache/persist"
	"gopkg.in/yaml.v3"
)

// ConfigEnv names the environment variable that overrides the config file path.
const ConfigEnv = "SMARTCACHE_CONFIG"

// Config is the root configuration of a Container.
type Config struct {
	// TenantIsolation is applied to every cache the container builds.
	TenantIsolation bool `yaml:"tenant_isolation"`

	Caches dashboard.Config `yaml:"caches"`

	// Repositories is the template for the caches behind NewCachedRepository.
	// Name is replaced per repository.
	Repositories cache.Config `yaml:"repositories"`

	Persistence persist.Config            `yaml:"persistence"`
	Logging     LoggingConfig             `yaml:"logging"`
	Metrics     MetricsConfig             `yaml:"metrics"`
	Preload     dashboard.PreloaderConfig `yaml:"preload"`
}

// LoggingConfig selects the zap preset and level.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// MetricsConfig controls the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the configuration used by NewContainerWithDefaults.
func DefaultConfig() Config {
	repos := cache.DefaultConfig()
	repos.Name = "repository"
	repos.MaxSize = 1000
	repos.DefaultTTL = 5 * time.Minute

	return Config{
		TenantIsolation: true,
		Caches:          dashboard.DefaultConfig(),
		Repositories:    repos,
		Persistence:     persist.DefaultConfig(),
		Logging:         LoggingConfig{Level: "info"},
		Metrics:         MetricsConfig{Enabled: true, Namespace: "smartcache"},
		Preload:         dashboard.DefaultPreloaderConfig(),
	}
}

// LoadConfig reads a YAML config file over DefaultConfig. When ConfigEnv is set it
// takes precedence over path.
func LoadConfig(path string) (Config, error) {
	if env := os.Getenv(ConfigEnv); env != "" {
		path = env
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		category := errors.CategoryInternal
		if os.IsNotExist(err) {
			category = errors.CategoryNotFound
		}
		return Config{}, errors.Wrap(err, category, "read config").
			WithMetadata(map[string]any{"path": path})
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryBadInput, "parse config").
			WithMetadata(map[string]any{"path": path})
	}

	cfg = cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalize fills cache defaults and propagates the global flags to every cache.
func (c Config) normalize() Config {
	persistent := c.Persistence.Enabled()
	apply := func(cfg *cache.Config) {
		cfg.TenantIsolation = c.TenantIsolation
		cfg.Persistent = persistent
	}

	c.Caches = c.Caches.WithDefaults().Each(apply)

	def := DefaultConfig().Repositories
	if c.Repositories.MaxSize == 0 {
		c.Repositories.MaxSize = def.MaxSize
	}
	if c.Repositories.DefaultTTL == 0 {
		c.Repositories.DefaultTTL = def.DefaultTTL
	}
	if c.Repositories.Name == "" {
		c.Repositories.Name = def.Name
	}
	apply(&c.Repositories)
	return c
}

// Validate checks every section.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Caches),
		validation.Field(&c.Repositories),
		validation.Field(&c.Persistence),
		validation.Field(&c.Logging),
		validation.Field(&c.Metrics),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid container config")
	}
	return nil
}

// Validate implements validation.Validatable.
func (l LoggingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("", "debug", "info", "warn", "error")),
	)
}

// Validate implements validation.Validatable.
func (m MetricsConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Namespace, validation.When(m.Enabled, validation.Required)),
	)
}
