// Package persist provides cache.Store implementations for SmartCache snapshots.
//
// Three backends are available:
//
//   - MemoryStore keeps snapshots in a bounded in-process sturdyc client. It survives
//     cache re-creation within a process, which is useful for tests and for rebuilding
//     caches after a configuration reload.
//   - SQLStore keeps one row per snapshot in the smartcache_snapshots table using bun,
//     on either SQLite (OpenSQLite) or PostgreSQL (OpenPostgres).
//   - RedisStore keeps one Redis string per snapshot, optionally with an expiry.
//
// Open selects a backend from Config. Every backend namespaces its keys with
// Config.KeyPrefix so several applications can share one database.
//
// Persistence is advisory: SmartCache logs and swallows store errors, so a backend
// outage only costs a cold start.
package persist
