package repositorycache

import (
	"context"
	"fmt"
	"reflect"
	"regexp"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-smartcache/cache"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Interface assertion to ensure CachedRepository implements Repository[T]
var _ repository.Repository[any] = (*CachedRepository[any])(nil)

// ListResult wraps the tuple result from List operations for caching.
type ListResult[T any] struct {
	Records []T `json:"records" msgpack:"records"`
	Total   int `json:"total" msgpack:"total"`
}

// Operation names the kind of write that produced a Change.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
)

// Change is passed to Options.OnChange after a successful write. Records is empty
// for criteria based deletes, where the affected rows are unknown.
type Change[T any] struct {
	Op        Operation
	Namespace string
	Records   []T
}

// Options wires the caches a CachedRepository reads through. A nil cache disables
// caching for the matching read family.
type Options[T any] struct {
	Records       cache.Service[T]
	Lists         cache.Service[ListResult[T]]
	Counts        cache.Service[int]
	KeySerializer cache.KeySerializer
	// Namespace prefixes every key. Defaults to the snake_case name of T.
	Namespace string
	OnChange  func(ctx context.Context, change Change[T])
	Logger    *zap.Logger
}

// CachedRepository decorates a base repository with read-through caching backed by
// SmartCache. Writes pass through and drop the entries they can affect.
type CachedRepository[T any] struct {
	base      repository.Repository[T]
	records   cache.Service[T]
	lists     cache.Service[ListResult[T]]
	counts    cache.Service[int]
	keys      cache.KeySerializer
	namespace string
	onChange  func(ctx context.Context, change Change[T])
	logger    *zap.Logger

	allRecords *regexp.Regexp
	queries    *regexp.Regexp
}

// New creates a CachedRepository wrapping base.
func New[T any](base repository.Repository[T], opts Options[T]) *CachedRepository[T] {
	ns := opts.Namespace
	if ns == "" {
		ns = NamespaceOf[T]()
	}
	keys := opts.KeySerializer
	if keys == nil {
		keys = cache.NewDefaultKeySerializer()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	q := regexp.QuoteMeta(ns)
	return &CachedRepository[T]{
		base:       base,
		records:    opts.Records,
		lists:      opts.Lists,
		counts:     opts.Counts,
		keys:       keys,
		namespace:  ns,
		onChange:   opts.OnChange,
		logger:     logger.Named("repositorycache").With(zap.String("namespace", ns)),
		allRecords: regexp.MustCompile("^" + q + ":"),
		queries:    regexp.MustCompile("^" + q + ":(get|list|count)(:|$)"),
	}
}

// Namespace returns the key prefix used by this repository.
func (c *CachedRepository[T]) Namespace() string {
	return c.namespace
}

// RecordKey returns the cache key GetByID uses for id without criteria.
func (c *CachedRepository[T]) RecordKey(id string) string {
	return c.key("id", id, nil)
}

func (c *CachedRepository[T]) key(op string, id string, criteria []repository.SelectCriteria) string {
	args := make([]any, 0, 2)
	if id != "" {
		args = append(args, id)
	}
	if len(criteria) > 0 {
		args = append(args, criteria)
	}
	return c.keys.SerializeKey(c.namespace+cache.KeySeparator+op, args...)
}

// Get retrieves a single record using the provided criteria, with caching
func (c *CachedRepository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	if c.records == nil {
		return c.base.Get(ctx, criteria...)
	}
	return c.records.GetOrFetch(ctx, c.key("get", "", criteria), func(ctx context.Context) (T, error) {
		return c.base.Get(ctx, criteria...)
	})
}

// GetByID retrieves a record by ID with optional criteria, with caching
func (c *CachedRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	if c.records == nil {
		return c.base.GetByID(ctx, id, criteria...)
	}
	return c.records.GetOrFetch(ctx, c.key("id", id, criteria), func(ctx context.Context) (T, error) {
		return c.base.GetByID(ctx, id, criteria...)
	})
}

// GetByIdentifier retrieves a record by identifier with optional criteria, with caching
func (c *CachedRepository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	if c.records == nil {
		return c.base.GetByIdentifier(ctx, identifier, criteria...)
	}
	return c.records.GetOrFetch(ctx, c.key("identifier", identifier, criteria), func(ctx context.Context) (T, error) {
		return c.base.GetByIdentifier(ctx, identifier, criteria...)
	})
}

// List retrieves multiple records using the provided criteria, with caching
func (c *CachedRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	if c.lists == nil {
		return c.base.List(ctx, criteria...)
	}
	res, err := c.lists.GetOrFetch(ctx, c.key("list", "", criteria), func(ctx context.Context) (ListResult[T], error) {
		records, total, err := c.base.List(ctx, criteria...)
		return ListResult[T]{Records: records, Total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Records, res.Total, nil
}

// Count returns the number of records matching the criteria, with caching
func (c *CachedRepository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	if c.counts == nil {
		return c.base.Count(ctx, criteria...)
	}
	return c.counts.GetOrFetch(ctx, c.key("count", "", criteria), func(ctx context.Context) (int, error) {
		return c.base.Count(ctx, criteria...)
	})
}

// Create creates a new record. Write operations pass through to base repository
func (c *CachedRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := c.base.Create(ctx, record, criteria...)
	if err == nil {
		c.afterWrite(ctx, OpCreate, result)
	}
	return result, err
}

// CreateTx creates a new record within a transaction
func (c *CachedRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := c.base.CreateTx(ctx, tx, record, criteria...)
	if err == nil {
		c.afterWrite(ctx, OpCreate, result)
	}
	return result, err
}

// CreateMany creates multiple records
func (c *CachedRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	result, err := c.base.CreateMany(ctx, records, criteria...)
	if err == nil {
		c.afterWrite(ctx, OpCreate, result...)
	}
	return result, err
}

// CreateManyTx creates multiple records within a transaction
func (c *CachedRepository[T]) CreateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	result, err := c.base.CreateManyTx(ctx, tx, records, criteria...)
	if err == nil {
		c.afterWrite(ctx, OpCreate, result...)
	}
	return result, err
}

// GetOrCreate gets a record or creates it if it doesn't exist
func (c *CachedRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	result, err := c.base.GetOrCreate(ctx, record)
	if err == nil {
		c.afterWrite(ctx, OpCreate, result)
	}
	return result, err
}

// GetOrCreateTx gets a record or creates it if it doesn't exist within a transaction
func (c *CachedRepository[T]) GetOrCreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	result, err := c.base.GetOrCreateTx(ctx, tx, record)
	if err == nil {
		c.afterWrite(ctx, OpCreate, result)
	}
	return result, err
}

// Update updates a record
func (c *CachedRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.Update(ctx, record, criteria...)
	if err == nil {
		c.afterWrite(ctx, OpUpdate, result)
	}
	return result, err
}

// UpdateTx updates a record within a transaction
func (c *CachedRepository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.UpdateTx(ctx, tx, record, criteria...)
	if err == nil {
		c.afterWrite(ctx, OpUpdate, result)
	}
	return result, err
}

// UpdateMany updates multiple records
func (c *CachedRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpdateMany(ctx, records, criteria...)
	if err == nil {
		c.afterWrite(ctx, OpUpdate, result...)
	}
	return result, err
}

// UpdateManyTx updates multiple records within a transaction
func (c *CachedRepository[T]) UpdateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpdateManyTx(ctx, tx, records, criteria...)
	if err == nil {
		c.afterWrite(ctx, OpUpdate, result...)
	}
	return result, err
}

// Upsert inserts or updates a record
func (c *CachedRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.Upsert(ctx, record, criteria...)
	if err == nil {
		c.afterWrite(ctx, OpUpsert, result)
	}
	return result, err
}

// UpsertTx inserts or updates a record within a transaction
func (c *CachedRepository[T]) UpsertTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.UpsertTx(ctx, tx, record, criteria...)
	if err == nil {
		c.afterWrite(ctx, OpUpsert, result)
	}
	return result, err
}

// UpsertMany inserts or updates multiple records
func (c *CachedRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpsertMany(ctx, records, criteria...)
	if err == nil {
		c.afterWrite(ctx, OpUpsert, result...)
	}
	return result, err
}

// UpsertManyTx inserts or updates multiple records within a transaction
func (c *CachedRepository[T]) UpsertManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpsertManyTx(ctx, tx, records, criteria...)
	if err == nil {
		c.afterWrite(ctx, OpUpsert, result...)
	}
	return result, err
}

// Delete deletes a record
func (c *CachedRepository[T]) Delete(ctx context.Context, record T) error {
	err := c.base.Delete(ctx, record)
	if err == nil {
		c.afterWrite(ctx, OpDelete, record)
	}
	return err
}

// DeleteTx deletes a record within a transaction
func (c *CachedRepository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	err := c.base.DeleteTx(ctx, tx, record)
	if err == nil {
		c.afterWrite(ctx, OpDelete, record)
	}
	return err
}

// DeleteMany deletes multiple records based on criteria
func (c *CachedRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteMany(ctx, criteria...)
	if err == nil {
		c.afterWrite(ctx, OpDelete)
	}
	return err
}

// DeleteManyTx deletes multiple records based on criteria within a transaction
func (c *CachedRepository[T]) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteManyTx(ctx, tx, criteria...)
	if err == nil {
		c.afterWrite(ctx, OpDelete)
	}
	return err
}

// DeleteWhere deletes records based on criteria
func (c *CachedRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteWhere(ctx, criteria...)
	if err == nil {
		c.afterWrite(ctx, OpDelete)
	}
	return err
}

// DeleteWhereTx deletes records based on criteria within a transaction
func (c *CachedRepository[T]) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteWhereTx(ctx, tx, criteria...)
	if err == nil {
		c.afterWrite(ctx, OpDelete)
	}
	return err
}

// ForceDelete force deletes a record (bypassing soft delete)
func (c *CachedRepository[T]) ForceDelete(ctx context.Context, record T) error {
	err := c.base.ForceDelete(ctx, record)
	if err == nil {
		c.afterWrite(ctx, OpDelete, record)
	}
	return err
}

// ForceDeleteTx force deletes a record within a transaction (bypassing soft delete)
func (c *CachedRepository[T]) ForceDeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	err := c.base.ForceDeleteTx(ctx, tx, record)
	if err == nil {
		c.afterWrite(ctx, OpDelete, record)
	}
	return err
}

// GetTx bypasses the cache so reads inside a transaction see uncommitted state.
func (c *CachedRepository[T]) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetTx(ctx, tx, criteria...)
}

// GetByIDTx bypasses the cache.
func (c *CachedRepository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIDTx(ctx, tx, id, criteria...)
}

// ListTx bypasses the cache.
func (c *CachedRepository[T]) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.base.ListTx(ctx, tx, criteria...)
}

// CountTx bypasses the cache.
func (c *CachedRepository[T]) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	return c.base.CountTx(ctx, tx, criteria...)
}

// GetByIdentifierTx bypasses the cache.
func (c *CachedRepository[T]) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIdentifierTx(ctx, tx, identifier, criteria...)
}

// Raw executes a raw SQL query and returns the results
func (c *CachedRepository[T]) Raw(ctx context.Context, sql string, args ...any) ([]T, error) {
	return c.base.Raw(ctx, sql, args...)
}

// RawTx executes a raw SQL query within a transaction and returns the results
func (c *CachedRepository[T]) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]T, error) {
	return c.base.RawTx(ctx, tx, sql, args...)
}

// Handlers returns the model handlers from the base repository
func (c *CachedRepository[T]) Handlers() repository.ModelHandlers[T] {
	return c.base.Handlers()
}

// afterWrite drops the entries a write can affect and notifies OnChange. Creates only
// touch query results; updates and deletes also drop the records' own entries. With no
// records (criteria deletes) the whole namespace goes.
func (c *CachedRepository[T]) afterWrite(ctx context.Context, op Operation, records ...T) {
	removed := 0
	switch {
	case len(records) == 0:
		removed = c.invalidate(c.allRecords)
	case op == OpCreate:
		removed = c.invalidateQueries()
	default:
		removed = c.invalidateQueries()
		for _, record := range records {
			removed += c.invalidateRecord(record)
		}
	}

	c.logger.Debug("write invalidation",
		zap.String("op", string(op)),
		zap.Int("records", len(records)),
		zap.Int("removed", removed),
	)

	if c.onChange != nil {
		c.onChange(ctx, Change[T]{Op: op, Namespace: c.namespace, Records: records})
	}
}

func (c *CachedRepository[T]) invalidateQueries() int {
	return c.invalidate(c.queries)
}

func (c *CachedRepository[T]) invalidateRecord(record T) int {
	removed := 0
	q := regexp.QuoteMeta(c.namespace)
	if id, ok := RecordID(record); ok {
		removed += c.invalidate(regexp.MustCompile("^" + q + ":id:" + regexp.QuoteMeta(id) + "(:|$)"))
	}
	if identifier, ok := RecordIdentifier(record); ok {
		removed += c.invalidate(regexp.MustCompile("^" + q + ":identifier:" + regexp.QuoteMeta(identifier) + "(:|$)"))
	}
	return removed
}

func (c *CachedRepository[T]) invalidate(re *regexp.Regexp) int {
	removed := 0
	if c.records != nil {
		removed += c.records.InvalidateRegexp(re)
	}
	if c.lists != nil {
		removed += c.lists.InvalidateRegexp(re)
	}
	if c.counts != nil {
		removed += c.counts.InvalidateRegexp(re)
	}
	return removed
}

// RecordID extracts an ID field from a record using reflection.
func RecordID(record any) (string, bool) {
	return fieldString(record, "ID", "Id")
}

// RecordIdentifier extracts an identifier field from a record using reflection.
func RecordIdentifier(record any) (string, bool) {
	return fieldString(record, "Identifier", "Name", "Code")
}

func fieldString(record any, names ...string) (string, bool) {
	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", false
	}

	for _, name := range names {
		field := v.FieldByName(name)
		if !field.IsValid() || !field.CanInterface() || field.IsZero() {
			continue
		}
		return fmt.Sprintf("%v", field.Interface()), true
	}
	return "", false
}

// NamespaceOf returns the default key namespace for T: the snake_case type name.
func NamespaceOf[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	if name := toSnake(t.Name()); name != "" {
		return name
	}
	return "record"
}
