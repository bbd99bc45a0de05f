package persist

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/goliatone/go-errors"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// SnapshotRow is one persisted snapshot.
type SnapshotRow struct {
	bun.BaseModel `bun:"table:smartcache_snapshots,alias:ss"`

	CacheKey  string    `bun:"cache_key,pk"`
	Payload   []byte    `bun:"payload,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// SQLStore persists snapshots in a relational table through bun.
type SQLStore struct {
	db     *bun.DB
	prefix string
	owned  bool
}

// OpenSQLite opens a SQLite database with the mattn driver.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "open sqlite")
	}
	// SQLite serialises writers; a single connection also keeps in-memory databases alive.
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// OpenPostgres opens a PostgreSQL database with the lib/pq driver.
func OpenPostgres(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "open postgres")
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func openSQL(ctx context.Context, open func(string) (*bun.DB, error), cfg Config) (Store, error) {
	db, err := open(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CategoryExternal, "ping database")
	}
	store, err := NewSQLStore(ctx, db, cfg.KeyPrefix)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.owned = true
	return store, nil
}

// NewSQLStore creates the snapshot table if needed. The caller keeps ownership of db.
func NewSQLStore(ctx context.Context, db *bun.DB, keyPrefix string) (*SQLStore, error) {
	_, err := db.NewCreateTable().
		Model((*SnapshotRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "create snapshot table")
	}
	return &SQLStore{db: db, prefix: keyPrefix}, nil
}

// Load implements cache.Store.
func (s *SQLStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	row := new(SnapshotRow)
	err := s.db.NewSelect().
		Model(row).
		Where("cache_key = ?", s.prefix+key).
		Limit(1).
		Scan(ctx)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, errors.CategoryExternal, "select snapshot").
			WithMetadata(map[string]any{"key": key})
	}
	return row.Payload, true, nil
}

// Save implements cache.Store with an upsert on cache_key.
func (s *SQLStore) Save(ctx context.Context, key string, data []byte) error {
	row := &SnapshotRow{
		CacheKey:  s.prefix + key,
		Payload:   data,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (cache_key) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "upsert snapshot").
			WithMetadata(map[string]any{"key": key})
	}
	return nil
}

// Delete removes the snapshot stored under key.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*SnapshotRow)(nil)).
		Where("cache_key = ?", s.prefix+key).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "delete snapshot").
			WithMetadata(map[string]any{"key": key})
	}
	return nil
}

// UpdatedAt returns when the snapshot under key was last written.
func (s *SQLStore) UpdatedAt(ctx context.Context, key string) (time.Time, bool, error) {
	row := new(SnapshotRow)
	err := s.db.NewSelect().
		Model(row).
		Column("updated_at").
		Where("cache_key = ?", s.prefix+key).
		Limit(1).
		Scan(ctx)
	if stderrors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, errors.CategoryExternal, "select snapshot timestamp")
	}
	return row.UpdatedAt, true, nil
}

// Close closes the database when the store opened it.
func (s *SQLStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
