// Package metrics exports SmartCache activity and statistics to Prometheus.
package metrics

import (
	"time"

	"github.com/goliatone/go-smartcache/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
)

// StatsSource is anything that reports cache statistics, typically a *cache.SmartCache.
type StatsSource interface {
	Name() string
	Stats() cache.Stats
}

// Collector counts cache events as a cache.Observer and reports the statistics of
// tracked caches as gauges when scraped.
type Collector struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	evictions   *prometheus.CounterVec
	expirations *prometheus.CounterVec
	fetches     *prometheus.CounterVec
	fetchTime   *prometheus.HistogramVec

	size          *prometheus.Desc
	maxSize       *prometheus.Desc
	expired       *prometheus.Desc
	totalAccesses *prometheus.Desc
	averageAge    *prometheus.Desc

	sources *xsync.MapOf[string, StatsSource]
}

var (
	_ cache.Observer       = (*Collector)(nil)
	_ prometheus.Collector = (*Collector)(nil)
)

// NewCollector creates a Collector whose metrics live under namespace.
func NewCollector(namespace string) *Collector {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, append([]string{"cache"}, labels...))
	}
	gauge := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", name), help, []string{"cache"}, nil)
	}

	return &Collector{
		hits:        counter("hits_total", "Cache lookups served from memory."),
		misses:      counter("misses_total", "Cache lookups that found no valid entry."),
		evictions:   counter("evictions_total", "Entries evicted to respect the size bound."),
		expirations: counter("expirations_total", "Entries removed because their TTL elapsed."),
		fetches:     counter("fetches_total", "Producer invocations by outcome.", "result"),
		fetchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetch_duration_seconds",
			Help:      "Producer latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"cache"}),

		size:          gauge("entries", "Entries currently stored, expired or not."),
		maxSize:       gauge("max_entries", "Configured size bound."),
		expired:       gauge("expired_entries", "Stored entries already past their TTL."),
		totalAccesses: gauge("entry_accesses", "Sum of access counts over stored entries."),
		averageAge:    gauge("entry_average_age_seconds", "Average age of stored entries."),

		sources: xsync.NewMapOf[string, StatsSource](),
	}
}

// Track adds src to the gauges reported on scrape, replacing any source with the same name.
func (c *Collector) Track(src StatsSource) {
	c.sources.Store(src.Name(), src)
}

// Untrack stops reporting the named cache.
func (c *Collector) Untrack(name string) {
	c.sources.Delete(name)
}

// Tracked returns the number of tracked caches.
func (c *Collector) Tracked() int {
	return c.sources.Size()
}

// Hit implements cache.Observer.
func (c *Collector) Hit(name string) { c.hits.WithLabelValues(name).Inc() }

// Miss implements cache.Observer.
func (c *Collector) Miss(name string) { c.misses.WithLabelValues(name).Inc() }

// Eviction implements cache.Observer.
func (c *Collector) Eviction(name string) { c.evictions.WithLabelValues(name).Inc() }

// Expiration implements cache.Observer.
func (c *Collector) Expiration(name string) { c.expirations.WithLabelValues(name).Inc() }

// Fetch implements cache.Observer.
func (c *Collector) Fetch(name string, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.fetches.WithLabelValues(name, result).Inc()
	c.fetchTime.WithLabelValues(name).Observe(took.Seconds())
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.hits.Describe(ch)
	c.misses.Describe(ch)
	c.evictions.Describe(ch)
	c.expirations.Describe(ch)
	c.fetches.Describe(ch)
	c.fetchTime.Describe(ch)
	ch <- c.size
	ch <- c.maxSize
	ch <- c.expired
	ch <- c.totalAccesses
	ch <- c.averageAge
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.hits.Collect(ch)
	c.misses.Collect(ch)
	c.evictions.Collect(ch)
	c.expirations.Collect(ch)
	c.fetches.Collect(ch)
	c.fetchTime.Collect(ch)

	c.sources.Range(func(name string, src StatsSource) bool {
		st := src.Stats()
		ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(st.Size), name)
		ch <- prometheus.MustNewConstMetric(c.maxSize, prometheus.GaugeValue, float64(st.MaxSize), name)
		ch <- prometheus.MustNewConstMetric(c.expired, prometheus.GaugeValue, float64(st.ExpiredCount), name)
		ch <- prometheus.MustNewConstMetric(c.totalAccesses, prometheus.GaugeValue, float64(st.TotalAccesses), name)
		ch <- prometheus.MustNewConstMetric(c.averageAge, prometheus.GaugeValue, st.AverageAgeMs/1000, name)
		return true
	})
}
