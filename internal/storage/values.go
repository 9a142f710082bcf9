package storage

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Key normalizes an identifier so that keys read from different columns
// compare equal: every integer kind becomes int64, byte slices become
// strings, pointers are dereferenced.
func Key(v any) any {
	v = Indirect(v)
	switch x := v.(type) {
	case nil:
		return nil
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float64:
		if x == float64(int64(x)) {
			return int64(x)
		}
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	}
	return v
}

// Indirect dereferences pointers, returning nil for nil pointers.
func Indirect(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.CanInterface() {
		return nil
	}
	return rv.Interface()
}

// Compare orders two non-nil attribute values. Numbers compare numerically,
// times chronologically, booleans false before true; anything else falls
// back to its formatted string.
func Compare(a, b any) int {
	a, b = Indirect(a), Indirect(b)
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

var timeType = reflect.TypeOf(time.Time{})

// KindOf maps a Go field type to its column kind. Pointer types are
// nullable. ok is false for types that are not stored as a single column.
func KindOf(t reflect.Type) (kind ColumnKind, nullable bool, ok bool) {
	if t.Kind() == reflect.Pointer {
		nullable = true
		t = t.Elem()
	}
	if t == timeType {
		return KindTime, nullable, true
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInt, nullable, true
	case reflect.Float32, reflect.Float64:
		return KindFloat, nullable, true
	case reflect.String:
		return KindString, nullable, true
	case reflect.Bool:
		return KindBool, nullable, true
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return KindBytes, nullable, true
		}
	}
	return KindUnknown, false, false
}
