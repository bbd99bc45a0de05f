// Package cache provides SmartCache, a generic, bounded, tenant-aware TTL/LRU cache,
// plus the key serialization and persistence contracts built around it.
//
// # Overview
//
// A SmartCache[V] holds at most Config.MaxSize entries of type V. Every entry carries
// its creation time, TTL and access bookkeeping (see Entry). Lookups never return an
// entry older than its TTL: expired entries are removed lazily on access and by a
// periodic sweep. Inserting a new key into a full cache evicts the least recently
// used entry first, so the size bound holds after every insertion.
//
// # Basic Usage
//
//	scores, err := cache.New[Score](cache.Config{
//		Name:            "evaluations",
//		MaxSize:         2000,
//		DefaultTTL:      5 * time.Minute,
//		CleanupInterval: time.Minute,
//		TenantIsolation: true,
//	}, cache.WithLogger(logger))
//
//	ctx = cache.WithTenant(ctx, companyID)
//	score, err := scores.GetOrFetch(ctx, "evaluation:E1:Q3", func(ctx context.Context) (Score, error) {
//		return api.FetchScore(ctx, "E1", "Q3")
//	})
//
// # Tenant Isolation
//
// With Config.TenantIsolation enabled every public operation rewrites the logical key
// to a storage key built by TenantKey from the tenant returned by the TenantResolver
// (ContextTenantResolver by default). The tenant is quoted, so tenant ids and logical
// keys may themselves contain separators. Callers always pass logical keys. When no
// tenant can be resolved the cache logs a warning once and uses a separate unscoped
// namespace.
//
// # Single-flight Fetches
//
// GetOrFetch coalesces concurrent misses for the same key into one producer call.
// Producer errors reach every waiter and nothing is cached. A caller whose context
// is cancelled stops waiting, but the shared producer keeps running for the others.
// A caller that misses after an invalidation starts a new producer rather than
// joining one that began before it.
//
// # Invalidation
//
// InvalidatePattern and InvalidateRegexp remove entries whose logical key matches,
// across all tenants. The matching is deliberately coarse: removing too much only
// costs a refetch, removing too little serves stale data.
//
// # Persistence
//
// With Config.Persistent and a Store (WithStore), the cache restores a snapshot at
// construction and writes one, debounced, after mutations. Snapshots are msgpack
// encoded and checksummed; corrupt or foreign snapshots are discarded. Persistence
// failures are logged and never affect in-memory correctness.
//
// # Key Serialization
//
// NewDefaultKeySerializer joins a prefix and arguments with KeySeparator:
//
//	keys := cache.NewDefaultKeySerializer()
//	keys.SerializeKey("evaluation", "E1", "Q3") // evaluation:E1:Q3
//
// Composite arguments (structs, maps, slices) serialize deterministically, so equal
// filters produce equal keys.
package cache
