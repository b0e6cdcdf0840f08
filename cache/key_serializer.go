package cache

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// defaultKeySerializer renders key parts deterministically: basic values
// verbatim, text marshalers through MarshalText, structs as their exported
// fields in declaration order, slices and maps element by element.
type defaultKeySerializer struct{}

func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

func (s *defaultKeySerializer) SerializeKey(namespace string, parts ...any) string {
	if len(parts) == 0 {
		return namespace
	}
	out := make([]string, 0, len(parts)+1)
	out = append(out, namespace)
	for _, p := range parts {
		out = append(out, s.serializeValue(p))
	}
	return strings.Join(out, KeySeparator)
}

func (s *defaultKeySerializer) serializeValue(v any) string {
	if v == nil {
		return "nil"
	}
	if tm, ok := v.(encoding.TextMarshaler); ok {
		if b, err := tm.MarshalText(); err == nil {
			return string(b)
		}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return s.serializeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "[]"
		}
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = s.serializeValue(rv.Index(i).Interface())
		}
		return "[" + strings.Join(parts, ",") + "]"
	case reflect.Map:
		pairs := make([]string, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			pairs = append(pairs, s.serializeValue(iter.Key().Interface())+"="+s.serializeValue(iter.Value().Interface()))
		}
		sort.Strings(pairs)
		return "{" + strings.Join(pairs, ",") + "}"
	case reflect.Struct:
		rt := rv.Type()
		parts := make([]string, 0, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			if !rt.Field(i).IsExported() {
				continue
			}
			parts = append(parts, s.serializeValue(rv.Field(i).Interface()))
		}
		return strings.Join(parts, "|")
	case reflect.Func, reflect.Chan:
		return fmt.Sprintf("%s:%p", rv.Kind(), v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
