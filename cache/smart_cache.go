package cache

import (
	"container/list"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// persistTimeout bounds background snapshot reads and writes.
const persistTimeout = 10 * time.Second

type node[V any] struct {
	key        string
	logicalKey string
	tenant     string
	entry      Entry[V]
}

// SmartCache is a bounded, tenant-aware TTL/LRU cache for values of type V.
//
// All entry bookkeeping happens under a single mutex. GetOrFetch coalesces concurrent
// misses for the same storage key and invalidation epoch through a singleflight
// group, so producers run outside the entry lock. For racing Set calls on the same key the last one to
// acquire the lock wins; no FIFO ordering is implied.
type SmartCache[V any] struct {
	cfg      Config
	logger   *zap.Logger
	clock    Clock
	store    Store
	tenants  TenantResolver
	observer Observer
	instance string

	mu    sync.Mutex
	items map[string]*list.Element
	lru   *list.List // front is most recently used
	epoch uint64     // bumped by every invalidating mutation

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64

	flights singleflight.Group

	persistMu sync.Mutex
	timerMu   sync.Mutex
	timer     *time.Timer
	dirty     atomic.Bool
	closed    bool

	tenantWarn sync.Once
	stop       chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// New creates a SmartCache, restores its snapshot when persistence is enabled and
// starts the expiry sweeper when Config.CleanupInterval is positive.
func New[V any](cfg Config, opts ...Option) (*SmartCache[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	instance := uuid.NewString()
	c := &SmartCache[V]{
		cfg:      cfg,
		clock:    o.clock,
		store:    o.store,
		tenants:  o.tenants,
		observer: o.observer,
		instance: instance,
		logger: o.logger.Named("smartcache").With(
			zap.String("cache", cfg.Name),
			zap.String("instance", instance),
		),
		items: make(map[string]*list.Element, cfg.MaxSize),
		lru:   list.New(),
		stop:  make(chan struct{}),
	}

	if c.persistent() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		n, err := c.Restore(ctx)
		cancel()
		if err != nil {
			c.logger.Warn("snapshot restore failed, starting cold", zap.Error(err))
		} else if n > 0 {
			c.logger.Info("snapshot restored", zap.Int("entries", n))
		}
	}

	if cfg.CleanupInterval > 0 {
		c.wg.Add(1)
		go c.sweepLoop(cfg.CleanupInterval)
	}

	return c, nil
}

// Name returns the configured cache name.
func (c *SmartCache[V]) Name() string { return c.cfg.Name }

// Config returns the configuration the cache was built with.
func (c *SmartCache[V]) Config() Config { return c.cfg }

// Get returns the value stored under key if present and unexpired. Expired entries
// are removed as a side effect. Hits refresh the entry's access bookkeeping.
func (c *SmartCache[V]) Get(ctx context.Context, key string) (V, bool) {
	skey, _ := c.resolveKey(ctx, key)
	return c.lookup(skey)
}

// Has reports whether an unexpired entry exists. It removes expired entries like Get
// but does not count as an access.
func (c *SmartCache[V]) Has(ctx context.Context, key string) bool {
	skey, _ := c.resolveKey(ctx, key)
	_, ok := c.peek(skey)
	return ok
}

// Set inserts or overwrites key. Inserting a new key into a full cache first evicts
// the least recently used entry. A missing or non-positive ttl uses Config.DefaultTTL.
func (c *SmartCache[V]) Set(ctx context.Context, key string, value V, ttl ...time.Duration) {
	skey, tenant := c.resolveKey(ctx, key)
	c.insert(skey, key, tenant, value, c.ttlOf(ttl), nil)
}

// Delete removes key.
func (c *SmartCache[V]) Delete(ctx context.Context, key string) {
	skey, _ := c.resolveKey(ctx, key)

	c.mu.Lock()
	el, ok := c.items[skey]
	if ok {
		c.removeElement(el)
	}
	c.epoch++
	c.mu.Unlock()

	if ok {
		c.scheduleSave()
	}
}

// Clear removes every entry for every tenant.
func (c *SmartCache[V]) Clear(ctx context.Context) {
	c.mu.Lock()
	n := c.lru.Len()
	c.items = make(map[string]*list.Element, c.cfg.MaxSize)
	c.lru.Init()
	c.epoch++
	c.mu.Unlock()

	c.logger.Debug("cache cleared", zap.Int("removed", n))
	c.scheduleSave()
}

// ClearTenant removes the entries that belong to the tenant resolved from ctx.
// Without tenant context it removes the unscoped entries.
func (c *SmartCache[V]) ClearTenant(ctx context.Context) int {
	_, tenant := c.resolveKey(ctx, "")

	c.mu.Lock()
	removed := c.removeWhere(func(n *node[V]) bool { return n.tenant == tenant })
	c.epoch++
	c.mu.Unlock()

	if removed > 0 {
		c.scheduleSave()
	}
	return removed
}

// GetOrFetch returns the cached value for key or runs fetchFn to produce it.
//
// Concurrent calls for the same key while no valid entry exists share one fetchFn
// invocation and all receive its result. Errors are returned to every waiter and are
// never cached. Cancelling ctx releases only this caller; the shared fetch keeps
// running for the remaining waiters. A fetch that lands after an invalidation of the
// cache is returned to its callers but not stored.
func (c *SmartCache[V]) GetOrFetch(ctx context.Context, key string, fetchFn FetchFn[V], ttl ...time.Duration) (V, error) {
	var zero V
	if fetchFn == nil {
		return zero, errors.New("fetch function is required", errors.CategoryBadInput)
	}

	skey, tenant := c.resolveKey(ctx, key)
	if v, ok := c.lookup(skey); ok {
		return v, nil
	}

	entryTTL := c.ttlOf(ttl)
	fetchCtx := context.WithoutCancel(ctx)

	// Flights are scoped to the epoch so callers arriving after an invalidation
	// never join a fetch that started before it.
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	ch := c.flights.DoChan(flightKey(epoch, skey), func() (result any, err error) {
		if v, ok := c.peek(skey); ok {
			return v, nil
		}

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				err = errors.New(fmt.Sprintf("fetch for %q panicked: %v", key, r), errors.CategoryInternal)
			}
			c.observer.Fetch(c.cfg.Name, time.Since(start), err)
		}()

		v, err := fetchFn(fetchCtx)
		if err != nil {
			c.logger.Debug("fetch failed", zap.String("key", key), zap.Error(err))
			return nil, err
		}

		if !c.insert(skey, key, tenant, v, entryTTL, &epoch) {
			c.logger.Debug("fetch result discarded after invalidation", zap.String("key", key))
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

// InvalidatePattern removes every entry whose logical key matches pattern, across all
// tenants, and returns the number removed.
func (c *SmartCache[V]) InvalidatePattern(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryBadInput, "invalid invalidation pattern").
			WithMetadata(map[string]any{"pattern": pattern})
	}
	return c.InvalidateRegexp(re), nil
}

// InvalidateRegexp removes every entry whose logical key matches re.
func (c *SmartCache[V]) InvalidateRegexp(re *regexp.Regexp) int {
	if re == nil {
		return 0
	}

	c.mu.Lock()
	removed := c.removeWhere(func(n *node[V]) bool { return re.MatchString(n.logicalKey) })
	c.epoch++
	c.mu.Unlock()

	if removed > 0 {
		c.logger.Debug("pattern invalidated", zap.String("pattern", re.String()), zap.Int("removed", removed))
		c.scheduleSave()
	}
	return removed
}

// Keys lists the unexpired logical keys visible to the tenant resolved from ctx,
// most recently used first.
func (c *SmartCache[V]) Keys(ctx context.Context) []string {
	_, tenant := c.resolveKey(ctx, "")
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		n := el.Value.(*node[V])
		if n.tenant == tenant && !n.entry.Expired(now) {
			keys = append(keys, n.logicalKey)
		}
	}
	return keys
}

// Len returns the number of stored entries, expired or not.
func (c *SmartCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns an observability snapshot. It has no side effects.
func (c *SmartCache[V]) Stats() Stats {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	st := Stats{
		Name:        c.cfg.Name,
		Size:        c.lru.Len(),
		MaxSize:     c.cfg.MaxSize,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}

	var age time.Duration
	for el := c.lru.Front(); el != nil; el = el.Next() {
		n := el.Value.(*node[V])
		if n.entry.Expired(now) {
			st.ExpiredCount++
		}
		st.TotalAccesses += n.entry.AccessCount
		age += now.Sub(n.entry.CreatedAt)
	}
	if st.Size > 0 {
		st.AverageAgeMs = float64(age.Milliseconds()) / float64(st.Size)
	}
	return st
}

// Sweep removes every expired entry regardless of access and returns the count.
func (c *SmartCache[V]) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	removed := c.removeWhere(func(n *node[V]) bool { return n.entry.Expired(now) })
	c.expirations += uint64(removed)
	c.mu.Unlock()

	for i := 0; i < removed; i++ {
		c.observer.Expiration(c.cfg.Name)
	}
	if removed > 0 {
		c.logger.Debug("expired entries swept", zap.Int("removed", removed))
		c.scheduleSave()
	}
	return removed
}

// Flush writes a snapshot immediately. It is a no-op when persistence is disabled.
func (c *SmartCache[V]) Flush(ctx context.Context) error {
	if !c.persistent() {
		return nil
	}

	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.dirty.Store(false)
	data, err := encodeSnapshot(c.cfg.Name, c.instance, c.clock.Now(), c.snapshotEntries())
	if err != nil {
		c.dirty.Store(true)
		return err
	}

	if err := c.store.Save(ctx, SnapshotKey(c.cfg.Name), data); err != nil {
		c.dirty.Store(true)
		return errors.Wrap(err, errors.CategoryExternal, "save snapshot").
			WithMetadata(map[string]any{"cache": c.cfg.Name})
	}
	return nil
}

// Restore loads the persisted snapshot, skipping entries that already expired and keys
// that are already present. It returns the number of entries loaded.
func (c *SmartCache[V]) Restore(ctx context.Context) (int, error) {
	if !c.persistent() {
		return 0, nil
	}

	data, ok, err := c.store.Load(ctx, SnapshotKey(c.cfg.Name))
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryExternal, "load snapshot").
			WithMetadata(map[string]any{"cache": c.cfg.Name})
	}
	if !ok || len(data) == 0 {
		return 0, nil
	}

	entries, err := decodeSnapshot[V](c.cfg.Name, data)
	if err != nil {
		return 0, err
	}

	now := c.clock.Now()
	loaded, dropped := 0, 0

	c.mu.Lock()
	for _, se := range entries {
		if se.Entry.Expired(now) {
			dropped++
			continue
		}
		if _, exists := c.items[se.Key]; exists {
			continue
		}
		for c.lru.Len() >= c.cfg.MaxSize {
			c.removeElement(c.lru.Back())
		}
		c.items[se.Key] = c.lru.PushFront(&node[V]{
			key:        se.Key,
			logicalKey: se.LogicalKey,
			tenant:     se.Tenant,
			entry:      se.Entry,
		})
		loaded++
	}
	c.mu.Unlock()

	if dropped > 0 {
		c.logger.Debug("expired snapshot entries dropped", zap.Int("dropped", dropped))
	}
	return loaded, nil
}

// Close stops the sweeper and pending snapshot timer and writes a final snapshot when
// there are unsaved mutations. The cache stays usable in memory afterwards.
func (c *SmartCache[V]) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		c.wg.Wait()

		c.timerMu.Lock()
		c.closed = true
		if c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
		c.timerMu.Unlock()

		if c.dirty.Load() {
			err = c.Flush(ctx)
		}
		c.logger.Debug("cache closed")
	})
	return err
}

func (c *SmartCache[V]) persistent() bool {
	return c.cfg.Persistent && c.store != nil
}

func (c *SmartCache[V]) ttlOf(ttl []time.Duration) time.Duration {
	if len(ttl) > 0 && ttl[0] > 0 {
		return ttl[0]
	}
	return c.cfg.DefaultTTL
}

func flightKey(epoch uint64, skey string) string {
	return strconv.FormatUint(epoch, 10) + "|" + skey
}

// resolveKey maps a logical key to its storage key, degrading to the unscoped key
// when tenant isolation is on but no tenant can be resolved.
func (c *SmartCache[V]) resolveKey(ctx context.Context, key string) (string, string) {
	if !c.cfg.TenantIsolation {
		return key, ""
	}

	tenant, err := c.tenants.TenantID(ctx)
	if err != nil || tenant == "" {
		c.tenantWarn.Do(func() {
			c.logger.Warn("tenant context unavailable, falling back to unscoped keys", zap.Error(err))
		})
		c.logger.Debug("tenant fallback", zap.String("key", key), zap.Error(err))
		return TenantKey("", key), ""
	}
	return TenantKey(tenant, key), tenant
}

func (c *SmartCache[V]) lookup(skey string) (V, bool) {
	var zero V
	now := c.clock.Now()

	c.mu.Lock()
	el, ok := c.items[skey]
	if !ok {
		c.misses++
		c.mu.Unlock()
		c.observer.Miss(c.cfg.Name)
		return zero, false
	}

	n := el.Value.(*node[V])
	if n.entry.Expired(now) {
		c.removeElement(el)
		c.expirations++
		c.misses++
		c.mu.Unlock()
		c.observer.Expiration(c.cfg.Name)
		c.observer.Miss(c.cfg.Name)
		c.scheduleSave()
		return zero, false
	}

	n.entry.touch(now)
	c.lru.MoveToFront(el)
	c.hits++
	v := n.entry.Value
	c.mu.Unlock()

	c.observer.Hit(c.cfg.Name)
	return v, true
}

// peek checks validity without touching access stats, removing expired entries.
func (c *SmartCache[V]) peek(skey string) (V, bool) {
	var zero V
	now := c.clock.Now()

	c.mu.Lock()
	el, ok := c.items[skey]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}
	n := el.Value.(*node[V])
	if n.entry.Expired(now) {
		c.removeElement(el)
		c.expirations++
		c.mu.Unlock()
		c.observer.Expiration(c.cfg.Name)
		c.scheduleSave()
		return zero, false
	}
	v := n.entry.Value
	c.mu.Unlock()
	return v, true
}

// insert stores value under skey. When epoch is non-nil the write is skipped if the
// cache was invalidated since the epoch was observed.
func (c *SmartCache[V]) insert(skey, logicalKey, tenant string, value V, ttl time.Duration, epoch *uint64) bool {
	now := c.clock.Now()
	evicted := 0

	c.mu.Lock()
	if epoch != nil && *epoch != c.epoch {
		c.mu.Unlock()
		return false
	}

	if el, ok := c.items[skey]; ok {
		n := el.Value.(*node[V])
		n.entry = Entry[V]{Value: value, CreatedAt: now, TTL: ttl, LastAccessedAt: now}
		c.lru.MoveToFront(el)
	} else {
		for c.lru.Len() >= c.cfg.MaxSize {
			back := c.lru.Back()
			if back == nil {
				break
			}
			c.logger.Debug("evicting least recently used entry", zap.String("key", back.Value.(*node[V]).logicalKey))
			c.removeElement(back)
			c.evictions++
			evicted++
		}
		c.items[skey] = c.lru.PushFront(&node[V]{
			key:        skey,
			logicalKey: logicalKey,
			tenant:     tenant,
			entry:      Entry[V]{Value: value, CreatedAt: now, TTL: ttl, LastAccessedAt: now},
		})
	}
	c.mu.Unlock()

	for i := 0; i < evicted; i++ {
		c.observer.Eviction(c.cfg.Name)
	}
	c.scheduleSave()
	return true
}

// removeWhere must be called with c.mu held.
func (c *SmartCache[V]) removeWhere(match func(*node[V]) bool) int {
	removed := 0
	for el := c.lru.Front(); el != nil; {
		next := el.Next()
		if match(el.Value.(*node[V])) {
			c.removeElement(el)
			removed++
		}
		el = next
	}
	return removed
}

// removeElement must be called with c.mu held.
func (c *SmartCache[V]) removeElement(el *list.Element) {
	n := c.lru.Remove(el).(*node[V])
	delete(c.items, n.key)
}

// snapshotEntries copies unexpired entries least recently used first.
func (c *SmartCache[V]) snapshotEntries() []snapshotEntry[V] {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]snapshotEntry[V], 0, c.lru.Len())
	for el := c.lru.Back(); el != nil; el = el.Prev() {
		n := el.Value.(*node[V])
		if n.entry.Expired(now) {
			continue
		}
		out = append(out, snapshotEntry[V]{Key: n.key, LogicalKey: n.logicalKey, Tenant: n.tenant, Entry: n.entry})
	}
	return out
}

func (c *SmartCache[V]) scheduleSave() {
	if !c.persistent() {
		return
	}
	c.dirty.Store(true)

	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.closed || c.timer != nil {
		return
	}

	c.timer = time.AfterFunc(c.cfg.PersistDebounce, func() {
		c.timerMu.Lock()
		c.timer = nil
		c.timerMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := c.Flush(ctx); err != nil {
			c.logger.Warn("snapshot write failed", zap.Error(err))
		}
	})
}

func (c *SmartCache[V]) sweepLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
