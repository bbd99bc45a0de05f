package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-smartcache/cache"
	"github.com/goliatone/go-smartcache/dashboard"
	"github.com/goliatone/go-smartcache/persist"
	"github.com/goliatone/go-smartcache/pkg/testsupport"
	"go.uber.org/zap/zaptest"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smartcache.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func newTestContainer(t *testing.T, cfg Config, opts ...Option) *Container {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	container, err := NewContainer(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	t.Cleanup(func() { _ = container.Close(context.Background()) })
	return container
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.TenantIsolation {
		t.Error("tenant isolation should default to on")
	}
	if cfg.Persistence.Enabled() {
		t.Error("persistence should default to off")
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Namespace != "smartcache" {
		t.Errorf("unexpected metrics defaults: %+v", cfg.Metrics)
	}
	if cfg.Caches.Evaluations.DefaultTTL != dashboard.EvaluationTTL {
		t.Errorf("expected evaluation TTL %v, got %v", dashboard.EvaluationTTL, cfg.Caches.Evaluations.DefaultTTL)
	}
	if err := cfg.normalize().Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
tenant_isolation: false
caches:
  employees:
    max_size: 10
    default_ttl: 90s
persistence:
  driver: memory
  key_prefix: "hr:"
logging:
  level: debug
metrics:
  enabled: true
  namespace: hr
preload:
  concurrency: 2
  timeout: 5s
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	employees := cfg.Caches.Employees
	if employees.MaxSize != 10 || employees.DefaultTTL != 90*time.Second {
		t.Errorf("employees config not loaded: %+v", employees)
	}
	if employees.Name != dashboard.EmployeesCache {
		t.Errorf("expected default name %q, got %q", dashboard.EmployeesCache, employees.Name)
	}
	if employees.TenantIsolation {
		t.Error("tenant_isolation: false should propagate to caches")
	}
	if !employees.Persistent || !cfg.Repositories.Persistent {
		t.Error("an enabled persistence driver should mark caches persistent")
	}
	if cfg.Caches.Charts.MaxSize != 500 {
		t.Errorf("untouched caches keep defaults, charts max size = %d", cfg.Caches.Charts.MaxSize)
	}
	if cfg.Persistence.Driver != persist.DriverMemory || cfg.Persistence.KeyPrefix != "hr:" {
		t.Errorf("unexpected persistence: %+v", cfg.Persistence)
	}
	if cfg.Preload.Concurrency != 2 || cfg.Preload.Timeout != 5*time.Second {
		t.Errorf("unexpected preload: %+v", cfg.Preload)
	}
	if cfg.Logging.Level != "debug" || cfg.Metrics.Namespace != "hr" {
		t.Errorf("unexpected logging/metrics: %+v %+v", cfg.Logging, cfg.Metrics)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, "metrics:\n  namespace: from_env\n")
	t.Setenv(ConfigEnv, path)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.Metrics.Namespace != "from_env" {
		t.Errorf("expected namespace from env file, got %q", cfg.Metrics.Namespace)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.IsNotFound(err) {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		if _, err := LoadConfig(writeConfig(t, "caches: [unterminated")); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("metrics without namespace", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "metrics:\n  enabled: true\n  namespace: \"\"\n"))
		if !errors.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		if _, err := LoadConfig(writeConfig(t, "persistence:\n  driver: mongo\n")); err == nil {
			t.Error("expected validation error for unknown driver")
		}
	})

	t.Run("unknown log level", func(t *testing.T) {
		if _, err := LoadConfig(writeConfig(t, "logging:\n  level: verbose\n")); err == nil {
			t.Error("expected validation error for log level")
		}
	})
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close(context.Background())

	if container.Caches() == nil || container.Invalidator() == nil || container.Preloader() == nil {
		t.Fatal("container should expose caches, invalidator and preloader")
	}
	if container.KeySerializer() == nil {
		t.Error("Container should have a non-nil key serializer")
	}
	if container.Store() != nil {
		t.Error("persistence is off by default, store should be nil")
	}
	if container.Metrics() == nil || container.Registry() == nil {
		t.Fatal("metrics are on by default")
	}
	if got := container.Metrics().Tracked(); got != 5 {
		t.Errorf("expected 5 tracked caches, got %d", got)
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Persistence.Driver = persist.DriverSQLite // no DSN

	if _, err := NewContainer(context.Background(), cfg, WithLogger(zaptest.NewLogger(t))); err == nil {
		t.Fatal("expected error for sqlite without DSN")
	}
}

func TestNewContainer_MetricsDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = false

	container := newTestContainer(t, cfg)
	if container.Metrics() != nil || container.Registry() != nil {
		t.Error("metrics should be nil when disabled")
	}
}

func TestNewContainer_MemoryDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Persistence.Driver = persist.DriverMemory

	container := newTestContainer(t, cfg)
	if container.Store() == nil {
		t.Fatal("memory driver should open a store")
	}
	if !container.Config().Caches.Quarters.Persistent {
		t.Error("caches should be persistent with a store")
	}
}

func TestNewContainer_SnapshotsSurviveRestart(t *testing.T) {
	ctx := cache.WithTenant(context.Background(), "acme")
	store := testsupport.NewStore()

	cfg := DefaultConfig()
	cfg.Persistence.Driver = persist.DriverMemory

	first, err := NewContainer(context.Background(), cfg, WithLogger(zaptest.NewLogger(t)), WithStore(store))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	first.Caches().Employees.SetEmployee(ctx, dashboard.Employee{ID: "E1", Name: "Ada"})
	if err := first.Close(context.Background()); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if store.Raw(cache.SnapshotKey(dashboard.EmployeesCache)) == nil {
		t.Fatal("closing the container should flush the employees snapshot")
	}

	second := newTestContainer(t, cfg, WithStore(store))
	e, ok := second.Caches().Employees.PeekEmployee(ctx, "E1")
	if !ok || e.Name != "Ada" {
		t.Errorf("expected restored employee, got %+v (ok=%v)", e, ok)
	}
}

func TestNewCachedRepository_DuplicateNamespace(t *testing.T) {
	container, base, ctx := setupRepository(t)

	first, err := NewCachedRepository[dashboard.Employee](container, base, employeeChange)
	if err != nil {
		t.Fatalf("NewCachedRepository() failed: %v", err)
	}

	_, err = NewCachedRepository[dashboard.Employee](container, base, nil)
	if !errors.IsCategory(err, errors.CategoryConflict) {
		t.Fatalf("second NewCachedRepository() error = %v, want conflict", err)
	}

	// Five domain caches plus one set of records, lists and counts.
	if got := container.Metrics().Tracked(); got != 8 {
		t.Errorf("expected 8 tracked caches, got %d", got)
	}

	if e, err := first.GetByID(ctx, "E1"); err != nil || e.Name != "Ada" {
		t.Errorf("GetByID() = %+v, %v", e, err)
	}
}
