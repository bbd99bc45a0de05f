package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-smartcache/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fixedStats struct {
	stats cache.Stats
}

func (f fixedStats) Name() string       { return f.stats.Name }
func (f fixedStats) Stats() cache.Stats { return f.stats }

func TestCollector_ObserverCounters(t *testing.T) {
	c := NewCollector("dashboard")

	c.Hit("employees")
	c.Hit("employees")
	c.Miss("employees")
	c.Eviction("charts")
	c.Expiration("evaluations")
	c.Fetch("evaluations", 20*time.Millisecond, nil)
	c.Fetch("evaluations", 5*time.Millisecond, errors.New("upstream"))

	tests := []struct {
		name      string
		collector prometheus.Collector
		want      float64
	}{
		{"hits", c.hits.WithLabelValues("employees"), 2},
		{"misses", c.misses.WithLabelValues("employees"), 1},
		{"evictions", c.evictions.WithLabelValues("charts"), 1},
		{"expirations", c.expirations.WithLabelValues("evaluations"), 1},
		{"fetches ok", c.fetches.WithLabelValues("evaluations", "ok"), 1},
		{"fetches error", c.fetches.WithLabelValues("evaluations", "error"), 1},
	}

	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.collector); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCollector_StatsGauges(t *testing.T) {
	c := NewCollector("dashboard")
	c.Track(fixedStats{stats: cache.Stats{
		Name:          "quarters",
		Size:          3,
		MaxSize:       50,
		ExpiredCount:  1,
		TotalAccesses: 7,
		AverageAgeMs:  1500,
	}})
	if c.Tracked() != 1 {
		t.Fatalf("Tracked() = %d, want 1", c.Tracked())
	}

	expected := `
# HELP dashboard_cache_entries Entries currently stored, expired or not.
# TYPE dashboard_cache_entries gauge
dashboard_cache_entries{cache="quarters"} 3
# HELP dashboard_cache_entry_average_age_seconds Average age of stored entries.
# TYPE dashboard_cache_entry_average_age_seconds gauge
dashboard_cache_entry_average_age_seconds{cache="quarters"} 1.5
# HELP dashboard_cache_max_entries Configured size bound.
# TYPE dashboard_cache_max_entries gauge
dashboard_cache_max_entries{cache="quarters"} 50
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"dashboard_cache_entries",
		"dashboard_cache_entry_average_age_seconds",
		"dashboard_cache_max_entries",
	)
	if err != nil {
		t.Fatalf("CollectAndCompare() error = %v", err)
	}

	c.Untrack("quarters")
	if c.Tracked() != 0 {
		t.Errorf("Tracked() after Untrack = %d, want 0", c.Tracked())
	}
	if n := testutil.CollectAndCount(c, "dashboard_cache_entries"); n != 0 {
		t.Errorf("entries series after Untrack = %d, want 0", n)
	}
}

func TestCollector_Register(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c := NewCollector("dashboard")
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	c.Hit("employees")
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	for _, mf := range families {
		if mf.GetName() == "dashboard_cache_hits_total" {
			return
		}
	}
	t.Error("dashboard_cache_hits_total not gathered")
}

func TestCollector_WithSmartCache(t *testing.T) {
	ctx := cache.WithTenant(context.Background(), "acme")
	c := NewCollector("dashboard")

	sc, err := cache.New[string](cache.Config{
		Name:       "employees",
		MaxSize:    1,
		DefaultTTL: time.Minute,
	}, cache.WithObserver(c))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Close(context.Background()) })
	c.Track(sc)

	if _, err := sc.GetOrFetch(ctx, "employee:E1", func(context.Context) (string, error) { return "Ada", nil }); err != nil {
		t.Fatalf("GetOrFetch() error = %v", err)
	}
	sc.Get(ctx, "employee:E1")
	sc.Set(ctx, "employee:E2", "Grace")

	if got := testutil.ToFloat64(c.hits.WithLabelValues("employees")); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.misses.WithLabelValues("employees")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.evictions.WithLabelValues("employees")); got != 1 {
		t.Errorf("evictions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.fetches.WithLabelValues("employees", "ok")); got != 1 {
		t.Errorf("ok fetches = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c, "dashboard_cache_entries"); n != 1 {
		t.Errorf("entries series = %d, want 1", n)
	}
}
