package cache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
)

// Config exposes SmartCache configuration options.
type Config struct {
	// Name identifies the cache instance in logs, metrics and persistence keys.
	Name string `yaml:"name"`

	// MaxSize is the hard upper bound on the number of stored entries.
	MaxSize int `yaml:"max_size"`

	// DefaultTTL applies to Set and GetOrFetch calls that do not pass an explicit TTL.
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// CleanupInterval is how often expired entries are swept. Zero disables the sweeper.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// TenantIsolation prefixes every key with the tenant resolved from the context.
	TenantIsolation bool `yaml:"tenant_isolation"`

	// Persistent enables snapshot restore at construction and snapshot writes after mutations.
	// It has no effect unless a Store is configured.
	Persistent bool `yaml:"persistent"`

	// PersistDebounce coalesces snapshot writes triggered by bursts of mutations.
	PersistDebounce time.Duration `yaml:"persist_debounce"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Name:            "default",
		MaxSize:         1000,
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: time.Minute,
		TenantIsolation: true,
		Persistent:      false,
		PersistDebounce: 2 * time.Second,
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.MaxSize == 0 {
		c.MaxSize = def.MaxSize
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = def.DefaultTTL
	}
	if c.PersistDebounce == 0 {
		c.PersistDebounce = def.PersistDebounce
	}
	return c
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.MaxSize, validation.Required, validation.Min(1)),
		validation.Field(&c.DefaultTTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.CleanupInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.PersistDebounce, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid cache config "+c.Name)
	}
	return nil
}
