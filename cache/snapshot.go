package cache

import (
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goliatone/go-errors"
	"github.com/vmihailenco/msgpack/v5"
)

// snapshotVersion is bumped whenever the envelope or entry layout changes.
// Snapshots with another version are discarded on restore.
const snapshotVersion = 1

type snapshotEnvelope struct {
	Version   int       `msgpack:"v"`
	Cache     string    `msgpack:"cache"`
	Writer    string    `msgpack:"writer"`
	WrittenAt time.Time `msgpack:"written_at"`
	Checksum  uint64    `msgpack:"checksum"`
	Payload   []byte    `msgpack:"payload"`
}

// snapshotEntry is one (CacheKey, Entry) pair. Entries are written least recently
// used first so a restore can rebuild recency order by replaying them.
type snapshotEntry[V any] struct {
	Key        string   `msgpack:"k"`
	LogicalKey string   `msgpack:"lk"`
	Tenant     string   `msgpack:"t"`
	Entry      Entry[V] `msgpack:"e"`
}

func encodeSnapshot[V any](cacheName, writer string, writtenAt time.Time, entries []snapshotEntry[V]) ([]byte, error) {
	payload, err := msgpack.Marshal(entries)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "encode snapshot entries")
	}

	env := snapshotEnvelope{
		Version:   snapshotVersion,
		Cache:     cacheName,
		Writer:    writer,
		WrittenAt: writtenAt,
		Checksum:  xxhash.Sum64(payload),
		Payload:   payload,
	}

	data, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "encode snapshot envelope")
	}
	return data, nil
}

func decodeSnapshot[V any](cacheName string, data []byte) ([]snapshotEntry[V], error) {
	var env snapshotEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "decode snapshot envelope")
	}

	if env.Version != snapshotVersion {
		return nil, errors.New("unsupported snapshot version", errors.CategoryInternal).
			WithMetadata(map[string]any{"version": env.Version, "cache": cacheName})
	}

	if env.Cache != cacheName {
		return nil, errors.New("snapshot belongs to another cache", errors.CategoryInternal).
			WithMetadata(map[string]any{"snapshot_cache": env.Cache, "cache": cacheName})
	}

	if xxhash.Sum64(env.Payload) != env.Checksum {
		return nil, errors.New("snapshot checksum mismatch", errors.CategoryInternal).
			WithMetadata(map[string]any{"cache": cacheName})
	}

	var entries []snapshotEntry[V]
	if err := msgpack.Unmarshal(env.Payload, &entries); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "decode snapshot entries")
	}
	return entries, nil
}
