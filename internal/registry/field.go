package registry

import (
	"context"
	"reflect"
	"slices"

	"github.com/hanpama/fieldgraph/internal/storage"
)

// Scope selects the object-level permission applied to the objects a field
// resolves to. The zero Scope inherits the caller's mode.
type Scope struct {
	// Field names the permission field checked on target objects.
	Field string
	// Disabled turns permission filtering off for the whole subtree.
	Disabled bool
}

// Field is one exposed field of a registered type under one namespace.
type Field struct {
	Name       string
	Namespace  Namespace
	Includes   []string
	Preloaders []*Preloader
	Only       []string
	Except     []string
	Private    bool
	Scope      Scope
	Fallback   any
	// OrderColumn is the column sorted on when the field is used as an
	// association sort key. Setting it makes the field orderable.
	OrderColumn string
	Orderable   bool
	Arguments   ArgumentSpec
	// CountOf and Relation name the storage relation behind synthesized
	// count and association fields.
	CountOf  string
	Relation string

	resolver      ResolveFunc
	resolverSig   Signature
	permission    PermissionFunc
	permissionSig Signature
	typeFn        func() (TypeDescriptor, error)
	closed        bool
	accepted      map[string]bool
	table         *Table
}

// Table returns the table the field was registered on.
func (f *Field) Table() *Table { return f.table }

// HasPermission reports whether the field declares a per-object gate.
func (f *Field) HasPermission() bool { return f.permission != nil }

// Type returns the field's type descriptor, evaluating lazy declarations.
func (f *Field) Type() (TypeDescriptor, error) {
	if f.typeFn == nil {
		return Scalar{Kind: ScalarAny}, nil
	}
	return f.typeFn()
}

// CheckArgs validates field arguments before any batch work happens.
func (f *Field) CheckArgs(args any) error {
	if !f.closed {
		return nil
	}
	if args == nil {
		return f.checkRequired(nil)
	}
	m, ok := args.(map[string]any)
	if !ok {
		return invalidQuery("arguments of %s must be an object, got %T", f.Name, args)
	}
	for k := range m {
		if !f.accepted[k] {
			return invalidQuery("unknown argument %q for field %s", k, f.Name)
		}
	}
	return f.checkRequired(m)
}

func (f *Field) checkRequired(m map[string]any) error {
	for _, a := range f.Arguments.Args {
		if _, ok := m[a.Name]; a.Required && !ok {
			return invalidQuery("missing required argument %q for field %s", a.Name, f.Name)
		}
	}
	return nil
}

// Resolve computes the field's value for obj from the batch results of its
// preloaders, in registration order.
func (f *Field) Resolve(ctx context.Context, obj any, preloaded []any, userContext any, args any) (any, error) {
	c, params, err := f.resolverSig.bind(userContext, args)
	if err != nil {
		return nil, err
	}
	return f.resolver(ctx, obj, Input{Preloaded: preloaded, Context: c, Params: params})
}

// Allowed evaluates the field's permission gate. Fields without one are
// always allowed.
func (f *Field) Allowed(ctx context.Context, obj any, preloaded []any, userContext any, args any) (bool, error) {
	if f.permission == nil {
		return true, nil
	}
	c, params, err := f.permissionSig.bind(userContext, args)
	if err != nil {
		return false, err
	}
	return f.permission(ctx, obj, Input{Preloaded: preloaded, Context: c, Params: params})
}

type fieldConfig struct {
	namespaces    []Namespace
	includes      []string
	preloaders    []*Preloader
	named         []string
	resolver      ResolveFunc
	resolverSig   Signature
	only          []string
	except        []string
	private       bool
	scope         Scope
	permission    PermissionFunc
	permissionSig Signature
	fallback      any
	orderColumn   string
	orderable     bool
	typeDecl      any
	typeSet       bool
	args          *ArgumentSpec
	countOf       string
	association   string
	noOverwrite   bool
}

// FieldOption configures a field registration.
type FieldOption func(*fieldConfig)

// InNamespace registers the field under the given namespaces instead of the
// default one.
func InNamespace(ns ...Namespace) FieldOption {
	return func(c *fieldConfig) { c.namespaces = append(c.namespaces, ns...) }
}

// Includes asks storage to eager-load relations for the whole batch before
// the field resolves.
func Includes(relations ...string) FieldOption {
	return func(c *fieldConfig) { c.includes = append(c.includes, relations...) }
}

// Preload attaches batch functions. Their results reach the resolver through
// Input.Preloaded in the same order.
func Preload(p ...*Preloader) FieldOption {
	return func(c *fieldConfig) { c.preloaders = append(c.preloaders, p...) }
}

// PreloadNamed attaches preloaders registered with DefinePreloader.
func PreloadNamed(names ...string) FieldOption {
	return func(c *fieldConfig) { c.named = append(c.named, names...) }
}

// Resolver sets the per-object function. Without a signature it receives the
// user context and the raw arguments.
func Resolver(fn ResolveFunc, sig ...Signature) FieldOption {
	return func(c *fieldConfig) {
		c.resolver = fn
		c.resolverSig = Signature{Context: true, Params: ParamsPositional}
		if len(sig) > 0 {
			c.resolverSig = sig[0]
		}
	}
}

// Getter sets a resolver computing the value from the object alone.
func Getter[T any](fn func(T) any) FieldOption {
	return Resolver(Resolve(func(_ context.Context, obj T, _ Input) (any, error) {
		return fn(obj), nil
	}), Signature{})
}

// Only restricts which fields of the target type can be selected through
// this field.
func Only(names ...string) FieldOption {
	return func(c *fieldConfig) { c.only = append(c.only, names...) }
}

// Except hides fields of the target type when reached through this field.
func Except(names ...string) FieldOption {
	return func(c *fieldConfig) { c.except = append(c.except, names...) }
}

// Private hides the field from wildcards and explicit selection. It can
// still back other fields and permission checks.
func Private() FieldOption {
	return func(c *fieldConfig) { c.private = true }
}

// ScopedAccess checks the named permission field on the objects this field
// resolves to.
func ScopedAccess(field string) FieldOption {
	return func(c *fieldConfig) { c.scope = Scope{Field: field} }
}

// NoScopedAccess disables permission filtering below this field.
func NoScopedAccess() FieldOption {
	return func(c *fieldConfig) { c.scope = Scope{Disabled: true} }
}

// Permission gates the field per object; denied objects get the fallback.
func Permission(fn PermissionFunc, sig ...Signature) FieldOption {
	return func(c *fieldConfig) {
		c.permission = fn
		c.permissionSig = Signature{Context: true, Params: ParamsPositional}
		if len(sig) > 0 {
			c.permissionSig = sig[0]
		}
	}
}

// Fallback is the value used when permission is denied or a single
// preloader has no entry for the object.
func Fallback(v any) FieldOption {
	return func(c *fieldConfig) { c.fallback = v }
}

// OrderColumn makes the field a sort key backed by column.
func OrderColumn(column string) FieldOption {
	return func(c *fieldConfig) { c.orderColumn = column }
}

// Orderable makes the field a sort key backed by the column of the same name.
func Orderable() FieldOption {
	return func(c *fieldConfig) { c.orderable = true }
}

// Type declares the field's type. decl is anything ParseType accepts, or a
// func() any evaluated when the type is first needed.
func Type(decl any) FieldOption {
	return func(c *fieldConfig) { c.typeDecl, c.typeSet = decl, true }
}

// Arguments declares the field's parameters, replacing inference.
func Arguments(args ...Argument) FieldOption {
	return func(c *fieldConfig) {
		spec := ArgumentSpec{Args: args}
		c.args = &spec
	}
}

// AnyArguments declares an open parameter bag.
func AnyArguments() FieldOption {
	return func(c *fieldConfig) { c.args = &ArgumentSpec{Open: true} }
}

// CountOf synthesizes a field counting the rows of relation.
func CountOf(relation string) FieldOption {
	return func(c *fieldConfig) { c.countOf = relation }
}

// Association exposes relation under the field's name.
func Association(relation string) FieldOption {
	return func(c *fieldConfig) { c.association = relation }
}

// NoOverwrite keeps an existing registration of the same name and namespace.
func NoOverwrite() FieldOption {
	return func(c *fieldConfig) { c.noOverwrite = true }
}

// Fields registers plain attribute fields.
func (t *Table) Fields(names ...string) error {
	for _, name := range names {
		if err := t.Field(name); err != nil {
			return err
		}
	}
	return nil
}

// Field registers one field.
func (t *Table) Field(name string, opts ...FieldOption) error {
	var c fieldConfig
	for _, o := range opts {
		o(&c)
	}
	if c.countOf != "" && (len(c.includes) > 0 || len(c.preloaders) > 0 || len(c.named) > 0 ||
		c.resolver != nil || len(c.only) > 0 || len(c.except) > 0) {
		return invalidQuery("field %s: count_of cannot be combined with includes, preload, resolver, only or except", name)
	}
	preloaders := slices.Clone(c.preloaders)
	for _, n := range c.named {
		p, ok := t.preloader(n)
		if !ok {
			return configurationError("preloader not found: %s", n)
		}
		preloaders = append(preloaders, p)
	}
	if len(preloaders) > 1 && c.resolver == nil {
		return invalidQuery("field %s: a resolver is required with multiple preloaders", name)
	}

	f := &Field{
		Name:          name,
		Includes:      c.includes,
		Preloaders:    preloaders,
		Only:          c.only,
		Except:        c.except,
		Private:       c.private,
		Scope:         c.scope,
		Fallback:      c.fallback,
		OrderColumn:   c.orderColumn,
		Orderable:     c.orderable || c.orderColumn != "",
		resolver:      c.resolver,
		resolverSig:   c.resolverSig,
		permission:    c.permission,
		permissionSig: c.permissionSig,
		table:         t,
	}

	relName := name
	if c.association != "" {
		relName = c.association
	}
	var rel storage.Relation
	hasRel := false
	if store := t.reg.store; store != nil {
		rel, hasRel = store.Relation(t.typ, relName)
	}

	switch {
	case c.countOf != "":
		if err := t.countField(f, c.countOf); err != nil {
			return err
		}
	case hasRel && len(c.includes) == 0 && len(preloaders) == 0 && c.resolver == nil && c.args == nil:
		t.associationField(f, rel)
	case c.association != "":
		return configurationError("field %s: %s has no relation %s", name, t.name, c.association)
	default:
		if hasRel && len(c.includes) == 0 {
			f.Includes = []string{relName}
		}
		if err := t.customField(f, hasRel, rel); err != nil {
			return err
		}
	}

	if c.args != nil {
		f.Arguments = *c.args
	}
	if c.typeSet {
		decl := c.typeDecl
		f.typeFn = func() (TypeDescriptor, error) {
			if lazy, ok := decl.(func() any); ok {
				return ParseType(lazy())
			}
			return ParseType(decl)
		}
	}
	f.prepareArgs(c.args != nil)

	namespaces := c.namespaces
	if len(namespaces) == 0 {
		namespaces = []Namespace{""}
	}
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	for _, ns := range namespaces {
		if t.fields[ns] == nil {
			t.fields[ns] = make(map[string]*Field)
		}
		if _, exists := t.fields[ns][name]; exists {
			if c.noOverwrite {
				continue
			}
		} else {
			t.order[ns] = append(t.order[ns], name)
		}
		nf := *f
		nf.Namespace = ns
		t.fields[ns][name] = &nf
	}
	return nil
}

// prepareArgs decides which argument keys CheckArgs accepts. Positional and
// open signatures accept anything unless arguments were declared.
func (f *Field) prepareArgs(declared bool) {
	sigs := make([]Signature, 0, len(f.Preloaders)+2)
	for _, p := range f.Preloaders {
		sigs = append(sigs, p.Signature)
	}
	sigs = append(sigs, f.resolverSig)
	if f.permission != nil {
		sigs = append(sigs, f.permissionSig)
	}
	if !declared && f.Arguments.empty() {
		f.Arguments = inferArguments(sigs...)
	}
	if f.Arguments.Open {
		return
	}
	if !declared {
		for _, s := range sigs {
			if s.Params == ParamsPositional || s.Params == ParamsOpen {
				return
			}
		}
	}
	f.closed = true
	f.accepted = make(map[string]bool, len(f.Arguments.Args))
	for _, a := range f.Arguments.Args {
		f.accepted[a.Name] = true
	}
}

// customField completes a field built from user options: a default resolver
// when none was given and an inferred type.
func (t *Table) customField(f *Field, hasRel bool, rel storage.Relation) error {
	reg := t.reg
	name := f.Name
	switch {
	case f.resolver != nil:
	case len(f.Preloaders) == 1:
		fallback := f.Fallback
		f.resolver = func(_ context.Context, obj any, in Input) (any, error) {
			id, ok := reg.PrimaryKey(obj)
			if !ok {
				return fallback, nil
			}
			v, ok := lookupKey(in.Preloaded[0], id)
			if !ok {
				return fallback, nil
			}
			return reg.Wrap(v), nil
		}
	default:
		if !hasRel && !t.attributeKnown(name) {
			return configurationError("field %s: %s has no attribute %s", name, t.name, name)
		}
		f.resolver = func(_ context.Context, obj any, _ Input) (any, error) {
			v, _ := readAttribute(reg.schema(), obj, name)
			return reg.Wrap(v), nil
		}
	}
	if hasRel {
		f.typeFn = func() (TypeDescriptor, error) { return relationType(rel), nil }
		return nil
	}
	f.typeFn = func() (TypeDescriptor, error) { return t.inferAttributeType(name), nil }
	return nil
}

func (r *Registry) schema() storage.Schema {
	if r.store == nil {
		return nil
	}
	return r.store
}

func (t *Table) attributeKnown(name string) bool {
	if store := t.reg.store; store != nil {
		if _, ok := store.Column(t.typ, name); ok {
			return true
		}
	}
	return hasAttribute(t.typ, name)
}

const maxEnumValues = 16

func (t *Table) inferAttributeType(name string) TypeDescriptor {
	if store := t.reg.store; store != nil {
		if col, ok := store.Column(t.typ, name); ok {
			return columnType(col)
		}
	}
	if m, ok := t.typ.MethodByName(methodName(name)); ok && m.Type.NumOut() == 1 {
		return t.reg.goType(m.Type.Out(0))
	}
	st := t.typ
	for st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() == reflect.Struct {
		if sf, ok := findField(st, name); ok {
			return t.reg.goType(sf.Type)
		}
	}
	return Scalar{Kind: ScalarAny}
}

func columnType(col storage.Column) TypeDescriptor {
	var td TypeDescriptor
	switch col.Kind {
	case storage.KindInt:
		td = Scalar{Kind: ScalarInt}
	case storage.KindFloat:
		td = Scalar{Kind: ScalarFloat}
	case storage.KindString, storage.KindTime:
		td = Scalar{Kind: ScalarString}
	case storage.KindBool:
		td = Scalar{Kind: ScalarBoolean}
	default:
		td = Scalar{Kind: ScalarAny}
	}
	if n := len(col.EnumValues); n > 0 && n <= maxEnumValues {
		lits := make([]any, n)
		for i, v := range col.EnumValues {
			lits[i] = v
		}
		td = Literal(lits...)
	}
	if col.Nullable {
		return Optional{Elem: td}
	}
	return td
}

// goType infers a descriptor for a Go type, recognizing registered models.
func (r *Registry) goType(t reflect.Type) TypeDescriptor {
	if _, ok := r.Table(t); ok {
		return Optional{Elem: Object{Type: t}}
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8 {
		if _, ok := r.Table(t.Elem()); ok {
			return List{Elem: Object{Type: t.Elem()}}
		}
		return List{Elem: r.goType(t.Elem())}
	}
	return inferGoType(t)
}

func relationType(rel storage.Relation) TypeDescriptor {
	obj := Object{Type: rel.Target}
	switch {
	case rel.Many:
		return List{Elem: obj}
	case !rel.Required:
		return Optional{Elem: obj}
	}
	return obj
}
