// Package projector derives the static shape of a registry: the closure of
// object types reachable from a root type, their fields and argument types,
// and the scalar kinds and enums they use. Renderers for SDL, TypeScript and
// protobuf all read a Projection.
package projector

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hanpama/fieldgraph/internal/registry"
)

// Projection is the set of types reachable from a root.
type Projection struct {
	Root *Type
	// Types holds every object type, sorted by name. The root is included.
	Types []*Type
	// Scalars lists the scalar kinds referenced anywhere, sorted by name.
	Scalars []registry.ScalarKind
	// Enums lists the literal sets that can be rendered as named enums.
	Enums []*Enum

	byKey   map[typeKey]*Type
	byValue map[string]*Enum
	scalars map[registry.ScalarKind]bool
}

// Type is one view of a registered table. Restricted views of the same table
// are distinct types with derived names.
type Type struct {
	Name   string
	Table  *registry.Table
	Only   []string
	Except []string
	Fields []*Field
}

// Field is a public field of a projected type.
type Field struct {
	Name string
	Type registry.TypeDescriptor
	Args []registry.Argument
	// OpenArgs marks a field accepting any argument object.
	OpenArgs bool
}

// Enum is a string literal set whose values are all valid identifiers.
type Enum struct {
	Name   string
	Values []string
}

type typeKey struct {
	typ    reflect.Type
	only   string
	except string
}

func keyOf(o registry.Object) typeKey {
	return typeKey{typ: o.Type, only: strings.Join(o.Only, ","), except: strings.Join(o.Except, ",")}
}

// Project walks the registry from root, a sample model, a reflect.Type or a
// *registry.Table, under the given namespaces.
func Project(reg *registry.Registry, root any, namespaces ...registry.Namespace) (*Projection, error) {
	var rootType reflect.Type
	switch r := root.(type) {
	case *registry.Table:
		rootType = r.Type()
	case reflect.Type:
		rootType = r
	default:
		rootType = reflect.TypeOf(root)
	}
	p := &Projection{
		byKey:   map[typeKey]*Type{},
		byValue: map[string]*Enum{},
		scalars: map[registry.ScalarKind]bool{},
	}
	w := &walker{reg: reg, ns: namespaces, p: p}
	t, err := w.visit(registry.Object{Type: rootType})
	if err != nil {
		return nil, err
	}
	p.Root = t

	for _, t := range p.byKey {
		p.Types = append(p.Types, t)
	}
	slices.SortFunc(p.Types, func(a, b *Type) int { return strings.Compare(a.Name, b.Name) })
	for k := range p.scalars {
		p.Scalars = append(p.Scalars, k)
	}
	slices.SortFunc(p.Scalars, func(a, b registry.ScalarKind) int { return strings.Compare(a.String(), b.String()) })
	slices.SortFunc(p.Enums, func(a, b *Enum) int { return strings.Compare(a.Name, b.Name) })
	return p, nil
}

// Object returns the projected type of an object descriptor.
func (p *Projection) Object(o registry.Object) (*Type, bool) {
	t, ok := p.byKey[keyOf(o)]
	return t, ok
}

// Enum returns the named enum for a literal scalar, if it has one.
func (p *Projection) Enum(s registry.Scalar) (*Enum, bool) {
	values, ok := enumValues(s)
	if !ok {
		return nil, false
	}
	e, ok := p.byValue[strings.Join(values, "|")]
	return e, ok
}

type walker struct {
	reg *registry.Registry
	ns  []registry.Namespace
	p   *Projection
}

func (w *walker) visit(o registry.Object) (*Type, error) {
	key := keyOf(o)
	if t, ok := w.p.byKey[key]; ok {
		return t, nil
	}
	tbl, ok := w.reg.Table(o.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %v is not registered", registry.ErrInvalidType, o.Type)
	}
	t := &Type{Name: DerivedName(tbl.Name(), o.Only, o.Except), Table: tbl, Only: o.Only, Except: o.Except}
	w.p.byKey[key] = t

	for _, name := range tbl.Keys(w.ns, true) {
		if len(o.Only) > 0 && !slices.Contains(o.Only, name) || slices.Contains(o.Except, name) {
			continue
		}
		b, _ := tbl.Lookup(name, w.ns)
		desc, err := DescriptorFor(b.Field)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", tbl.Name(), name, err)
		}
		f := &Field{Name: name, Type: desc, Args: b.Arguments.Args, OpenArgs: b.Arguments.Open}
		if f.OpenArgs {
			w.p.scalars[registry.ScalarAny] = true
		}
		for _, a := range f.Args {
			if err := w.collect(a.Type, t.Name+camel(name)+camel(a.Name)); err != nil {
				return nil, err
			}
		}
		if err := w.collect(desc, t.Name+camel(name)); err != nil {
			return nil, err
		}
		t.Fields = append(t.Fields, f)
	}
	return t, nil
}

// collect records the scalars, enums and object types used by d. enumName
// names a new enum found in d.
func (w *walker) collect(d registry.TypeDescriptor, enumName string) error {
	switch x := d.(type) {
	case registry.Scalar:
		if values, ok := enumValues(x); ok {
			key := strings.Join(values, "|")
			if _, ok := w.p.byValue[key]; !ok {
				e := &Enum{Name: enumName, Values: values}
				w.p.byValue[key] = e
				w.p.Enums = append(w.p.Enums, e)
			}
			return nil
		}
		w.p.scalars[ScalarKind(x)] = true
	case registry.Object:
		_, err := w.visit(x)
		return err
	case registry.List:
		return w.collect(x.Elem, enumName)
	case registry.Optional:
		return w.collect(x.Elem, enumName)
	case registry.Union:
		w.p.scalars[registry.ScalarAny] = true
		for _, e := range x.Elems {
			if err := w.collect(e, enumName); err != nil {
				return err
			}
		}
	case registry.Record:
		w.p.scalars[registry.ScalarAny] = true
		for _, f := range x.Fields {
			if err := w.collect(f.Type, enumName+camel(f.Name)); err != nil {
				return err
			}
		}
	case registry.Raw:
		w.p.scalars[registry.ScalarAny] = true
	}
	return nil
}

// DescriptorFor returns the type of f with the field's only/except pushed
// into the object types it references.
func DescriptorFor(f *registry.Field) (registry.TypeDescriptor, error) {
	d, err := f.Type()
	if err != nil {
		return nil, err
	}
	if len(f.Only) == 0 && len(f.Except) == 0 {
		return d, nil
	}
	return withView(d, f.Only, f.Except), nil
}

func withView(d registry.TypeDescriptor, only, except []string) registry.TypeDescriptor {
	switch x := d.(type) {
	case registry.Object:
		if x.Only == nil && x.Except == nil {
			x.Only, x.Except = only, except
		}
		return x
	case registry.List:
		return registry.List{Elem: withView(x.Elem, only, except)}
	case registry.Optional:
		return registry.Optional{Elem: withView(x.Elem, only, except)}
	case registry.Union:
		u := registry.Union{Elems: make([]registry.TypeDescriptor, len(x.Elems))}
		for i, e := range x.Elems {
			u.Elems[i] = withView(e, only, except)
		}
		return u
	}
	return d
}

// DerivedName names a restricted view: base + "Only" + fields, then
// "Except" + fields, each field camelized.
func DerivedName(base string, only, except []string) string {
	var b strings.Builder
	b.WriteString(base)
	if len(only) > 0 {
		b.WriteString("Only")
		for _, f := range only {
			b.WriteString(camel(f))
		}
	}
	if len(except) > 0 {
		b.WriteString("Except")
		for _, f := range except {
			b.WriteString(camel(f))
		}
	}
	return b.String()
}

var title = cases.Title(language.Und, cases.NoLower)

// camel turns snake_case and lowerCamel names into UpperCamel.
func camel(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, p := range parts {
		parts[i] = title.String(p)
	}
	return strings.Join(parts, "")
}

var namePattern = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

func enumValues(s registry.Scalar) ([]string, bool) {
	if s.Kind != registry.ScalarEnum || len(s.Literals) == 0 {
		return nil, false
	}
	values := make([]string, len(s.Literals))
	for i, l := range s.Literals {
		v, ok := l.(string)
		if !ok || !namePattern.MatchString(v) || v == "true" || v == "false" || v == "null" {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

// ScalarKind returns the kind a scalar renders as. Literal sets collapse to
// the common kind of their values, or any when they disagree.
func ScalarKind(s registry.Scalar) registry.ScalarKind {
	if s.Kind != registry.ScalarEnum {
		return s.Kind
	}
	kind := registry.ScalarUnknown
	for _, l := range s.Literals {
		var k registry.ScalarKind
		switch l.(type) {
		case string:
			k = registry.ScalarString
		case bool:
			k = registry.ScalarBoolean
		case float32, float64:
			k = registry.ScalarFloat
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			k = registry.ScalarInt
		default:
			return registry.ScalarAny
		}
		switch {
		case kind == registry.ScalarUnknown:
			kind = k
		case kind == registry.ScalarInt && k == registry.ScalarFloat, kind == registry.ScalarFloat && k == registry.ScalarInt:
			kind = registry.ScalarFloat
		case kind != k:
			return registry.ScalarAny
		}
	}
	if kind == registry.ScalarUnknown {
		return registry.ScalarAny
	}
	return kind
}
