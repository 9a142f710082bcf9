package registry

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/hanpama/fieldgraph/internal/storage"
	"gorm.io/gorm/schema"
)

var naming = schema.NamingStrategy{}

// readAttribute reads name from model: through the storage schema first, then
// a struct field whose column name is name, then a zero-argument method named
// after it.
func readAttribute(store storage.Schema, model any, name string) (any, bool) {
	if store != nil {
		if v, ok := store.Attribute(model, name); ok {
			return v, true
		}
	}
	rv := reflect.ValueOf(model)
	if !rv.IsValid() {
		return nil, false
	}
	if m := rv.MethodByName(methodName(name)); m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() == 1 {
		return m.Call(nil)[0].Interface(), true
	}
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	idx, ok := structField(rv.Type(), name)
	if !ok {
		return nil, false
	}
	return rv.FieldByIndex(idx).Interface(), true
}

// hasAttribute reports whether values of typ can serve readAttribute(name)
// without storage support.
func hasAttribute(typ reflect.Type, name string) bool {
	if m, ok := typ.MethodByName(methodName(name)); ok && m.Type.NumIn() == 1 && m.Type.NumOut() == 1 {
		return true
	}
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	switch typ.Kind() {
	case reflect.Map:
		return typ.Key().Kind() == reflect.String
	case reflect.Struct:
		_, ok := structField(typ, name)
		return ok
	case reflect.Interface:
		return true
	}
	return false
}

func structField(typ reflect.Type, name string) ([]int, bool) {
	f, ok := findField(typ, name)
	if !ok {
		return nil, false
	}
	return f.Index, true
}

func findField(typ reflect.Type, name string) (reflect.StructField, bool) {
	for _, f := range reflect.VisibleFields(typ) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag == name {
			return f, true
		}
		if col := f.Tag.Get("db"); col == name {
			return f, true
		}
		if naming.ColumnName("", f.Name) == name || f.Name == name {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

// methodName converts a snake_case field name into an exported Go method
// name, upper-casing the common initialisms.
func methodName(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		switch part {
		case "id", "url", "uri", "api", "json", "html":
			b.WriteString(strings.ToUpper(part))
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// lookupKey indexes a preloaded map with an owner id. Interface keys are
// compared after storage.Key normalization; typed keys receive the id
// converted to their type, with integers formatted in base 10 for string
// keys.
func lookupKey(m any, key any) (any, bool) {
	if m == nil {
		return nil, false
	}
	key = storage.Key(key)
	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Map {
		return nil, false
	}
	kt := rv.Type().Key()
	if kt.Kind() == reflect.Interface {
		if v := rv.MapIndex(reflect.ValueOf(&key).Elem()); v.IsValid() {
			return v.Interface(), true
		}
		iter := rv.MapRange()
		for iter.Next() {
			if storage.Key(iter.Key().Interface()) == key {
				return iter.Value().Interface(), true
			}
		}
		return nil, false
	}
	kv, ok := convertKey(key, kt)
	if !ok {
		return nil, false
	}
	v := rv.MapIndex(kv)
	if !v.IsValid() {
		return nil, false
	}
	return v.Interface(), true
}

func convertKey(key any, kt reflect.Type) (reflect.Value, bool) {
	kv := reflect.ValueOf(key)
	if !kv.IsValid() {
		return reflect.Value{}, false
	}
	if kt.Kind() == reflect.String && kv.Kind() != reflect.String {
		var s string
		switch kv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			s = strconv.FormatInt(kv.Int(), 10)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			s = strconv.FormatUint(kv.Uint(), 10)
		default:
			return reflect.Value{}, false
		}
		return reflect.ValueOf(s).Convert(kt), true
	}
	if kt.Kind() != reflect.String && kv.Kind() == reflect.String {
		return reflect.Value{}, false
	}
	if !kv.Type().ConvertibleTo(kt) {
		return reflect.Value{}, false
	}
	return kv.Convert(kt), true
}

// Wrap marks registered models inside v for recursion: a registered model
// becomes a Ref and a slice holding only registered models becomes Refs.
// Other values are returned unchanged.
func (r *Registry) Wrap(v any) any {
	if v == nil {
		return nil
	}
	if _, ok := v.(Value); ok {
		return v
	}
	rv := reflect.ValueOf(v)
	if _, ok := r.Table(rv.Type()); ok {
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return Ref{}
		}
		return Ref{Model: v}
	}
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return v
	}
	_, elemRegistered := r.Table(rv.Type().Elem())
	refs := make(Refs, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		e := rv.Index(i).Interface()
		if _, ok := r.TableOf(e); !ok {
			return v
		}
		refs = append(refs, e)
	}
	if len(refs) == 0 && !elemRegistered {
		return v
	}
	return refs
}
