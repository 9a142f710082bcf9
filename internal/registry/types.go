package registry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// TypeDescriptor is the closed set of field type shapes used by the
// projector.
type TypeDescriptor interface {
	typeDescriptor()
}

// ScalarKind classifies scalar values.
type ScalarKind int

const (
	ScalarAny ScalarKind = iota
	ScalarUnknown
	ScalarInt
	ScalarFloat
	ScalarString
	ScalarBoolean
	// ScalarEnum is a literal value set; see Scalar.Literals.
	ScalarEnum
)

func (k ScalarKind) String() string {
	switch k {
	case ScalarInt:
		return "int"
	case ScalarFloat:
		return "float"
	case ScalarString:
		return "string"
	case ScalarBoolean:
		return "boolean"
	case ScalarUnknown:
		return "unknown"
	case ScalarEnum:
		return "enum"
	}
	return "any"
}

type (
	Scalar struct {
		Kind     ScalarKind
		Literals []any
	}
	Object struct {
		Type   reflect.Type
		Only   []string
		Except []string
	}
	List struct {
		Elem TypeDescriptor
	}
	Optional struct {
		Elem TypeDescriptor
	}
	Union struct {
		Elems []TypeDescriptor
	}
	Record struct {
		Fields []RecordField
	}
	RecordField struct {
		Name string
		Type TypeDescriptor
	}
	// Raw carries engine-specific type source through verbatim.
	Raw struct {
		Source string
	}
)

func (Scalar) typeDescriptor()   {}
func (Object) typeDescriptor()   {}
func (List) typeDescriptor()     {}
func (Optional) typeDescriptor() {}
func (Union) typeDescriptor()    {}
func (Record) typeDescriptor()   {}
func (Raw) typeDescriptor()      {}

// Literal declares a scalar restricted to the given values.
func Literal(values ...any) Scalar {
	return Scalar{Kind: ScalarEnum, Literals: values}
}

// ObjectOf declares a serializable object type from a sample model.
func ObjectOf(sample any) Object {
	return Object{Type: reflect.TypeOf(sample)}
}

var scalarKeywords = map[string]ScalarKind{
	"int":     ScalarInt,
	"integer": ScalarInt,
	"float":   ScalarFloat,
	"number":  ScalarFloat,
	"string":  ScalarString,
	"boolean": ScalarBoolean,
	"bool":    ScalarBoolean,
	"any":     ScalarAny,
	"unknown": ScalarUnknown,
}

// ParseType converts a loose declaration into a TypeDescriptor:
//
//	"int", "string?"           scalar keywords, "?" marks optional
//	[]any{x}                   list of x
//	[]any{x, nil}              optional x
//	[]any{x, y, ...}           union
//	map[string]any{...}        record
//	&Model{} / reflect.Type    serializable object
//	1, 2.5, true               literal value
//	TypeDescriptor             itself
func ParseType(decl any) (TypeDescriptor, error) {
	switch d := decl.(type) {
	case nil:
		return Literal(nil), nil
	case TypeDescriptor:
		return d, nil
	case reflect.Type:
		return Object{Type: d}, nil
	case string:
		if base, ok := strings.CutSuffix(d, "?"); ok {
			inner, err := ParseType(base)
			if err != nil {
				return nil, err
			}
			return Optional{Elem: inner}, nil
		}
		kind, ok := scalarKeywords[d]
		if !ok {
			return nil, invalidType("unknown scalar %q", d)
		}
		return Scalar{Kind: kind}, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return Literal(d), nil
	case []any:
		switch {
		case len(d) == 0:
			return nil, invalidType("empty list type")
		case len(d) == 1:
			elem, err := ParseType(d[0])
			if err != nil {
				return nil, err
			}
			return List{Elem: elem}, nil
		case len(d) == 2 && d[1] == nil:
			elem, err := ParseType(d[0])
			if err != nil {
				return nil, err
			}
			return Optional{Elem: elem}, nil
		}
		u := Union{Elems: make([]TypeDescriptor, 0, len(d))}
		for _, e := range d {
			t, err := ParseType(e)
			if err != nil {
				return nil, err
			}
			u.Elems = append(u.Elems, t)
		}
		return u, nil
	case map[string]any:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rec := Record{Fields: make([]RecordField, 0, len(keys))}
		for _, k := range keys {
			t, err := ParseType(d[k])
			if err != nil {
				return nil, fmt.Errorf("record field %s: %w", k, err)
			}
			rec.Fields = append(rec.Fields, RecordField{Name: k, Type: t})
		}
		return rec, nil
	}
	rt := reflect.TypeOf(decl)
	if rt.Kind() == reflect.Pointer && rt.Elem().Kind() == reflect.Struct {
		return Object{Type: rt}, nil
	}
	return nil, invalidType("unsupported type declaration %T", decl)
}

var timeType = reflect.TypeOf(time.Time{})

// inferGoType maps a Go field type to a descriptor. Times encode as strings.
func inferGoType(t reflect.Type) TypeDescriptor {
	if t.Kind() == reflect.Pointer {
		return Optional{Elem: inferGoType(t.Elem())}
	}
	if t == timeType {
		return Scalar{Kind: ScalarString}
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Scalar{Kind: ScalarInt}
	case reflect.Float32, reflect.Float64:
		return Scalar{Kind: ScalarFloat}
	case reflect.String:
		return Scalar{Kind: ScalarString}
	case reflect.Bool:
		return Scalar{Kind: ScalarBoolean}
	}
	return Scalar{Kind: ScalarAny}
}
