// Package registry holds the per-type field definitions the serializer and
// the schema projector work from.
//
// Every serializable Go type opts in with Define, which returns its Table.
// Fields are registered on tables, optionally under a Namespace. A lookup for
// a concrete type checks the active namespaces in order, then the default
// namespace, then each ancestor linked with Extends, with the ancestor chain
// flattened when it is linked.
package registry

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/hanpama/fieldgraph/internal/storage"
)

// Namespace partitions field registrations. The empty namespace is the
// default one.
type Namespace string

// Registry maps Go types to their field tables.
type Registry struct {
	mu     sync.RWMutex
	tables map[reflect.Type]*Table
	byName map[string]*Table
	store  storage.Storage
}

// Option configures a Registry.
type Option func(*Registry)

// WithStorage enables relation metadata, association fields, count fields
// and column-based type inference.
func WithStorage(s storage.Storage) Option {
	return func(r *Registry) { r.store = s }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		tables: make(map[reflect.Type]*Table),
		byName: make(map[string]*Table),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Storage returns the configured storage, or nil.
func (r *Registry) Storage() storage.Storage { return r.store }

// Table is the field table of one serializable type.
type Table struct {
	reg        *Registry
	name       string
	typ        reflect.Type
	fields     map[Namespace]map[string]*Field
	order      map[Namespace][]string
	preloaders map[string]*Preloader
	chain      []link
}

type link struct {
	table  *Table
	upcast func(any) any
}

// Define registers the type of sample under a schema name and returns its
// table. Defining the same type twice returns the existing table.
func (r *Registry) Define(sample any, name string) *Table {
	typ := reflect.TypeOf(sample)
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tables[typ]; ok {
		return t
	}
	if name == "" {
		name = typ.String()
		if typ.Kind() == reflect.Pointer {
			name = typ.Elem().Name()
		}
	}
	t := &Table{
		reg:        r,
		name:       name,
		typ:        typ,
		fields:     make(map[Namespace]map[string]*Field),
		order:      make(map[Namespace][]string),
		preloaders: make(map[string]*Preloader),
	}
	t.chain = []link{{table: t}}
	r.tables[typ] = t
	r.byName[name] = t
	return t
}

// Extends makes parent's fields visible on t. upcast converts a model of t's
// type into parent's model type; nil passes models through unchanged.
// Ancestors must be linked before their descendants.
func (t *Table) Extends(parent *Table, upcast func(any) any) *Table {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	chain := []link{{table: t}}
	for _, l := range parent.chain {
		inner := l.upcast
		chain = append(chain, link{table: l.table, upcast: compose(upcast, inner)})
	}
	t.chain = chain
	return t
}

func compose(outer, inner func(any) any) func(any) any {
	switch {
	case outer == nil:
		return inner
	case inner == nil:
		return outer
	}
	return func(v any) any { return inner(outer(v)) }
}

// Name is the schema name of the table's type.
func (t *Table) Name() string { return t.name }

// Type is the Go type registered with Define.
func (t *Table) Type() reflect.Type { return t.typ }

// Registry returns the registry that owns t.
func (t *Table) Registry() *Registry { return t.reg }

// DefinePreloader registers a named preloader that fields of t and of its
// descendants can reference with PreloadNamed.
func (t *Table) DefinePreloader(name string, p *Preloader) {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	if p.Name == "" {
		p.Name = name
	}
	t.preloaders[name] = p
}

func (t *Table) preloader(name string) (*Preloader, bool) {
	for _, l := range t.chain {
		if p, ok := l.table.preloaders[name]; ok {
			return p, true
		}
	}
	return nil, false
}

// Table returns the table registered for typ.
func (r *Registry) Table(typ reflect.Type) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[typ]
	return t, ok
}

// TableOf returns the table registered for the dynamic type of model.
func (r *Registry) TableOf(model any) (*Table, bool) {
	if model == nil {
		return nil, false
	}
	return r.Table(reflect.TypeOf(model))
}

// TableByName returns the table registered under a schema name.
func (r *Registry) TableByName(name string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// Binding is a field as seen from a concrete table. Fields inherited from an
// ancestor carry the conversion to the ancestor's model type.
type Binding struct {
	*Field
	upcast func(any) any
}

// Model converts obj into the model the field's functions expect.
func (b Binding) Model(obj any) any {
	if b.upcast == nil {
		return obj
	}
	return b.upcast(obj)
}

// Lookup resolves name on t under the active namespaces.
func (t *Table) Lookup(name string, namespaces []Namespace) (Binding, bool) {
	t.reg.mu.RLock()
	defer t.reg.mu.RUnlock()
	for _, l := range t.chain {
		for _, ns := range namespaces {
			if f, ok := l.table.fields[ns][name]; ok {
				return Binding{Field: f, upcast: l.upcast}, true
			}
		}
		if f, ok := l.table.fields[""][name]; ok {
			return Binding{Field: f, upcast: l.upcast}, true
		}
	}
	return Binding{}, false
}

// Lookup resolves a field on the table registered for typ.
func (r *Registry) Lookup(typ reflect.Type, name string, namespaces []Namespace) (Binding, bool) {
	t, ok := r.Table(typ)
	if !ok {
		return Binding{}, false
	}
	return t.Lookup(name, namespaces)
}

// Keys lists every field name visible on t under the active namespaces, in
// registration order. With publicOnly, private fields and meta fields
// (prefixed "__") are left out.
func (t *Table) Keys(namespaces []Namespace, publicOnly bool) []string {
	t.reg.mu.RLock()
	var names []string
	seen := map[string]bool{}
	for _, l := range t.chain {
		for _, ns := range append([]Namespace{""}, namespaces...) {
			for _, name := range l.table.order[ns] {
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
		}
	}
	t.reg.mu.RUnlock()
	if !publicOnly {
		return names
	}
	return slices.DeleteFunc(names, func(name string) bool {
		if strings.HasPrefix(name, "__") {
			return true
		}
		b, ok := t.Lookup(name, namespaces)
		return !ok || b.Private
	})
}

// Keys is Table.Keys for the table registered for typ.
func (r *Registry) Keys(typ reflect.Type, namespaces []Namespace, publicOnly bool) []string {
	t, ok := r.Table(typ)
	if !ok {
		return nil
	}
	return t.Keys(namespaces, publicOnly)
}

// NotFound builds the error reported for an unknown field.
func (t *Table) NotFound(name string, namespaces []Namespace) error {
	ns := make([]string, len(namespaces))
	for i, n := range namespaces {
		ns[i] = string(n)
	}
	return invalidQuery("no serializer field `%s` namespaces: [%s] for %s", name, strings.Join(ns, ", "), t.name)
}

// PrimaryKey returns the normalized primary key of model, read from storage
// when available and from an "id" attribute otherwise.
func (r *Registry) PrimaryKey(model any) (any, bool) {
	if r.store != nil {
		if id, ok := r.store.PrimaryKey(model); ok {
			return id, true
		}
	}
	v, ok := readAttribute(nil, model, "id")
	if !ok {
		return nil, false
	}
	return storage.Key(v), true
}

// ID returns the "id" attribute of model as stored, falling back to the
// normalized primary key when the model has no such attribute.
func (r *Registry) ID(model any) (any, bool) {
	if v, ok := readAttribute(r.schema(), model, "id"); ok {
		if v = storage.Indirect(v); v != nil {
			return v, true
		}
	}
	return r.PrimaryKey(model)
}

func (t *Table) String() string { return fmt.Sprintf("Table(%s)", t.name) }
