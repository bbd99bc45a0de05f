package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// KeySeparator defines the delimiter used between cache key segments.
// Invalidation patterns anchor ids on this separator.
const KeySeparator = ":"

// keySerializer implements KeySerializer using reflection-based serialization.
// Basic values render verbatim so keys stay readable (evaluation:E1:Q3); composite
// values render deterministically so equal filters map to equal keys.
type keySerializer struct {
	sep string
}

// NewDefaultKeySerializer creates a serializer that joins segments with KeySeparator.
func NewDefaultKeySerializer() KeySerializer {
	return &keySerializer{sep: KeySeparator}
}

// NewKeySerializer creates a serializer with a custom segment separator.
func NewKeySerializer(separator string) KeySerializer {
	if separator == "" {
		separator = KeySeparator
	}
	return &keySerializer{sep: separator}
}

// SerializeKey builds a cache key from a prefix and args.
func (s *keySerializer) SerializeKey(prefix string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	if prefix != "" {
		parts = append(parts, prefix)
	}
	for _, arg := range args {
		parts = append(parts, s.value(arg))
	}
	return strings.Join(parts, s.sep)
}

func (s *keySerializer) value(v any) string {
	if v == nil {
		return "nil"
	}

	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case time.Duration:
		return t.String()
	case fmt.Stringer:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr && rv.IsNil() {
			return "nil"
		}
		return t.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func:
		return fmt.Sprintf("func:%p", v)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return s.value(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		return fmt.Sprintf("slice[%d]:{%s}", rv.Len(), s.elements(rv))
	case reflect.Array:
		return fmt.Sprintf("array[%d]:{%s}", rv.Len(), s.elements(rv))
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return s.mapValue(rv)
	case reflect.Struct:
		return s.structValue(rv)
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return fmt.Sprintf("%v", v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "fallback:" + reflect.TypeOf(v).String()
	}
	return "json:" + string(data)
}

func (s *keySerializer) elements(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = s.value(rv.Index(i).Interface())
	}
	return strings.Join(parts, ",")
}

// mapValue sorts pairs by their serialized key so iteration order never leaks into keys.
func (s *keySerializer) mapValue(rv reflect.Value) string {
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, s.value(iter.Key().Interface())+"="+s.value(iter.Value().Interface()))
	}
	sort.Strings(pairs)
	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ","))
}

// structValue renders exported, non-zero fields only so adding an optional
// filter field does not change keys for callers that leave it unset.
func (s *keySerializer) structValue(rv reflect.Value) string {
	rt := rv.Type()
	parts := make([]string, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		fv := rv.Field(i)
		if fv.IsZero() {
			continue
		}
		parts = append(parts, field.Name+"="+s.value(fv.Interface()))
	}
	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ","))
}
