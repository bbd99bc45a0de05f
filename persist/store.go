package persist

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-smartcache/cache"
	"github.com/goliatone/go-smartcache/internal/cacheinfra"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Supported Config.Driver values.
const (
	DriverNone     = "none"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Store is a closable cache.Store.
type Store interface {
	cache.Store
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and configures a persistence backend.
type Config struct {
	// Driver is one of none, memory, sqlite, postgres or redis. Empty means none.
	Driver string `yaml:"driver"`

	// DSN is the database connection string for the sqlite and postgres drivers.
	DSN string `yaml:"dsn"`

	// RedisAddr is the host:port of the Redis server.
	RedisAddr string `yaml:"redis_addr"`

	// RedisDB selects the Redis logical database.
	RedisDB int `yaml:"redis_db"`

	// KeyPrefix namespaces every stored key.
	KeyPrefix string `yaml:"key_prefix"`

	// TTL expires stored snapshots that are not rewritten in time. Zero keeps them
	// until overwritten. Honoured by the memory and redis drivers.
	TTL time.Duration `yaml:"ttl"`

	// MemoryCapacity bounds the number of snapshots held by the memory driver.
	MemoryCapacity int `yaml:"memory_capacity"`
}

// DefaultConfig disables persistence.
func DefaultConfig() Config {
	return Config{
		Driver:    DriverNone,
		KeyPrefix: "dashboard:",
	}
}

// Enabled reports whether a backend is selected.
func (c Config) Enabled() bool {
	return c.Driver != "" && c.Driver != DriverNone
}

// Validate checks the driver and its required connection settings.
func (c Config) Validate() error {
	needsDSN := c.Driver == DriverSQLite || c.Driver == DriverPostgres
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.In("", DriverNone, DriverMemory, DriverSQLite, DriverPostgres, DriverRedis)),
		validation.Field(&c.DSN, validation.When(needsDSN, validation.Required)),
		validation.Field(&c.RedisAddr, validation.When(c.Driver == DriverRedis, validation.Required)),
		validation.Field(&c.RedisDB, validation.Min(0)),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
		validation.Field(&c.MemoryCapacity, validation.Min(0)),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid persistence config")
	}
	return nil
}

// Open builds the backend selected by cfg. It returns a nil Store when persistence is
// disabled.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("persist").With(zap.String("driver", cfg.Driver))

	var (
		store Store
		err   error
	)
	switch cfg.Driver {
	case "", DriverNone:
		logger.Debug("persistence disabled")
		return nil, nil
	case DriverMemory:
		mcfg := cacheinfra.DefaultConfig()
		if cfg.MemoryCapacity > 0 {
			mcfg.Capacity = cfg.MemoryCapacity
			if mcfg.NumShards > mcfg.Capacity {
				mcfg.NumShards = mcfg.Capacity
			}
		}
		if cfg.TTL > 0 {
			mcfg.TTL = cfg.TTL
		}
		store, err = NewMemoryStore(mcfg, cfg.KeyPrefix)
	case DriverSQLite:
		store, err = openSQL(ctx, OpenSQLite, cfg)
	case DriverPostgres:
		store, err = openSQL(ctx, OpenPostgres, cfg)
	case DriverRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err = client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, errors.Wrap(err, errors.CategoryExternal, "connect redis").
				WithMetadata(map[string]any{"addr": cfg.RedisAddr})
		}
		store = NewRedisStore(client, cfg.KeyPrefix, cfg.TTL)
	default:
		return nil, errors.New(fmt.Sprintf("unknown persistence driver %q", cfg.Driver), errors.CategoryBadInput)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("persistence store ready", zap.String("key_prefix", cfg.KeyPrefix))
	return store, nil
}
