package query

import (
	"math"
	"reflect"
	"strconv"

	"github.com/hanpama/fieldgraph/internal/language"
)

// value converts an argument literal. Variables missing from the request
// take the operation's default, or null.
func (l *lowerer) value(v *language.Value) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch v.Kind {
	case language.Variable:
		if val, ok := l.variables[v.Raw]; ok {
			return Normalize(val), nil
		}
		if def := l.defaults.ForName(v.Raw); def != nil && def.DefaultValue != nil {
			return l.value(def.DefaultValue)
		}
		return nil, nil
	case language.IntValue:
		n, err := strconv.Atoi(v.Raw)
		if err != nil {
			return nil, l.errorAt(v.Position, "invalid integer %s", v.Raw)
		}
		return n, nil
	case language.FloatValue:
		f, err := strconv.ParseFloat(v.Raw, 64)
		if err != nil {
			return nil, l.errorAt(v.Position, "invalid number %s", v.Raw)
		}
		return f, nil
	case language.StringValue, language.BlockValue, language.EnumValue:
		return v.Raw, nil
	case language.BooleanValue:
		return v.Raw == "true", nil
	case language.NullValue:
		return nil, nil
	case language.ListValue:
		out := make([]any, len(v.Children))
		for i, c := range v.Children {
			e, err := l.value(c.Value)
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case language.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			e, err := l.value(c.Value)
			if err != nil {
				return nil, err
			}
			out[c.Name] = e
		}
		return out, nil
	}
	return nil, l.errorAt(v.Position, "unsupported value %s", v.String())
}

// Normalize converts an argument value to the JSON-like shapes resolvers
// see: map[string]any, []any, string, bool, nil, int for integral numbers
// and float64 otherwise. Values decoded from JSON and values written as Go
// literals normalize identically.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int:
		return v
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int(x)
		}
		return x
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return Normalize(rv.Float())
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Normalize(iter.Value().Interface())
		}
		return out
	}
	return v
}
