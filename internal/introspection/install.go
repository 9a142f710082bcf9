// Package introspection answers GraphQL introspection queries through the
// serializer itself: the schema, its types, fields and arguments are
// registered as serializable tables and reached from a __schema field on the
// root type.
package introspection

import (
	"context"
	"sort"

	"github.com/hanpama/fieldgraph/internal/projector"
	"github.com/hanpama/fieldgraph/internal/registry"
	"github.com/hanpama/fieldgraph/internal/schema"
)

type (
	schemaNode struct {
		s *schema.Schema
	}
	// typeNode is a named type or a LIST/NON_NULL wrapper around one.
	typeNode struct {
		s   *schema.Schema
		ref *schema.TypeRef
	}
	fieldNode struct {
		s *schema.Schema
		f *schema.Field
	}
	inputValueNode struct {
		s *schema.Schema
		v *schema.InputValue
	}
	enumValueNode struct {
		v *schema.EnumValue
	}
	directiveNode struct {
		s *schema.Schema
		d *schema.Directive
	}
)

// Schema projects root and returns its GraphQL schema extended with the
// introspection types.
func Schema(reg *registry.Registry, root *registry.Table, namespaces ...registry.Namespace) (*schema.Schema, error) {
	p, err := projector.Project(reg, root, namespaces...)
	if err != nil {
		return nil, err
	}
	return extendSchemaWithIntrospection(schema.FromProjection(p)), nil
}

// Install registers the introspection tables on reg and adds __schema and
// __type fields to root. Meta fields stay out of wildcards and projections.
func Install(reg *registry.Registry, root *registry.Table, namespaces ...registry.Namespace) error {
	if err := define(reg); err != nil {
		return err
	}
	load := func() (*schema.Schema, error) { return Schema(reg, root, namespaces...) }

	err := root.Field("__schema",
		registry.Type(registry.ObjectOf(&schemaNode{})),
		registry.Resolver(registry.Resolve(func(_ context.Context, _ any, _ registry.Input) (any, error) {
			s, err := load()
			if err != nil {
				return nil, err
			}
			return registry.Ref{Model: &schemaNode{s: s}}, nil
		}), registry.Signature{}))
	if err != nil {
		return err
	}
	return root.Field("__type",
		registry.Type(registry.Optional{Elem: registry.ObjectOf(&typeNode{})}),
		registry.Arguments(registry.Argument{Name: "name", Type: registry.Scalar{Kind: registry.ScalarString}, Required: true}),
		registry.Resolver(registry.Resolve(func(_ context.Context, _ any, in registry.Input) (any, error) {
			s, err := load()
			if err != nil {
				return nil, err
			}
			params, _ := in.Params.(map[string]any)
			name, _ := params["name"].(string)
			if _, ok := s.Types[name]; !ok {
				return registry.Ref{}, nil
			}
			return registry.Ref{Model: &typeNode{s: s, ref: schema.NamedType(name)}}, nil
		}), registry.Signature{Params: registry.ParamsNamed, Required: []string{"name"}}))
}

var includeDeprecated = registry.Arguments(registry.Argument{Name: "includeDeprecated", Type: registry.Scalar{Kind: registry.ScalarBoolean}})

func define(reg *registry.Registry) error {
	typeList := registry.Type(registry.List{Elem: registry.ObjectOf(&typeNode{})})
	optionalType := registry.Type(registry.Optional{Elem: registry.ObjectOf(&typeNode{})})
	str := registry.Type("string")
	optionalStr := registry.Type("string?")
	boolean := registry.Type("boolean")
	inputList := registry.Type(registry.List{Elem: registry.ObjectOf(&inputValueNode{})})
	notDeprecated := func(t *registry.Table) error {
		if err := t.Field("isDeprecated", boolean, registry.Getter(func(any) any { return false })); err != nil {
			return err
		}
		return t.Field("deprecationReason", optionalStr, registry.Getter(func(any) any { return nil }))
	}

	schemas := reg.Define(&schemaNode{}, "__Schema")
	for _, f := range []struct {
		name string
		typ  registry.FieldOption
		get  func(*schemaNode) any
	}{
		{"description", optionalStr, func(*schemaNode) any { return nil }},
		{"types", typeList, func(n *schemaNode) any { return resolveSchemaTypes(n.s) }},
		{"queryType", registry.Type(registry.ObjectOf(&typeNode{})), func(n *schemaNode) any {
			return registry.Ref{Model: &typeNode{s: n.s, ref: schema.NamedType(n.s.QueryType)}}
		}},
		{"mutationType", optionalType, func(*schemaNode) any { return registry.Ref{} }},
		{"subscriptionType", optionalType, func(*schemaNode) any { return registry.Ref{} }},
		{"directives", registry.Type(registry.List{Elem: registry.ObjectOf(&directiveNode{})}), func(n *schemaNode) any {
			return resolveSchemaDirectives(n.s)
		}},
	} {
		if err := schemas.Field(f.name, f.typ, registry.Getter(f.get)); err != nil {
			return err
		}
	}

	types := reg.Define(&typeNode{}, "__Type")
	for _, f := range []struct {
		name string
		opts []registry.FieldOption
		get  func(*typeNode) any
	}{
		{"kind", []registry.FieldOption{str}, func(n *typeNode) any { return n.kind() }},
		{"name", []registry.FieldOption{optionalStr}, func(n *typeNode) any {
			if n.ref.Kind != schema.TypeRefKindNamed {
				return nil
			}
			return n.ref.Named
		}},
		{"description", []registry.FieldOption{optionalStr}, func(n *typeNode) any {
			if def := n.def(); def != nil {
				return optional(def.Description)
			}
			return nil
		}},
		{"specifiedByURL", []registry.FieldOption{optionalStr}, func(*typeNode) any { return nil }},
		{"fields", []registry.FieldOption{registry.Type(registry.Optional{Elem: registry.List{Elem: registry.ObjectOf(&fieldNode{})}}), includeDeprecated},
			func(n *typeNode) any { return resolveTypeFields(n) }},
		{"interfaces", []registry.FieldOption{registry.Type(registry.Optional{Elem: registry.List{Elem: registry.ObjectOf(&typeNode{})}})},
			func(n *typeNode) any {
				if n.kind() != string(schema.TypeKindObject) {
					return nil
				}
				return registry.Refs{}
			}},
		{"possibleTypes", []registry.FieldOption{registry.Type(registry.Optional{Elem: registry.List{Elem: registry.ObjectOf(&typeNode{})}})},
			func(*typeNode) any { return nil }},
		{"enumValues", []registry.FieldOption{registry.Type(registry.Optional{Elem: registry.List{Elem: registry.ObjectOf(&enumValueNode{})}}), includeDeprecated},
			func(n *typeNode) any { return resolveTypeEnumValues(n) }},
		{"inputFields", []registry.FieldOption{registry.Type(registry.Optional{Elem: registry.List{Elem: registry.ObjectOf(&inputValueNode{})}}), includeDeprecated},
			func(*typeNode) any { return nil }},
		{"ofType", []registry.FieldOption{optionalType}, func(n *typeNode) any {
			if n.ref.Kind == schema.TypeRefKindNamed {
				return registry.Ref{}
			}
			return registry.Ref{Model: &typeNode{s: n.s, ref: n.ref.OfType}}
		}},
		{"isOneOf", []registry.FieldOption{registry.Type("boolean?")}, func(n *typeNode) any { return nil }},
	} {
		if err := types.Field(f.name, append(f.opts, registry.Getter(f.get))...); err != nil {
			return err
		}
	}

	fields := reg.Define(&fieldNode{}, "__Field")
	if err := fields.Field("name", str, registry.Getter(func(n *fieldNode) any { return n.f.Name })); err != nil {
		return err
	}
	if err := fields.Field("description", optionalStr, registry.Getter(func(n *fieldNode) any { return optional(n.f.Description) })); err != nil {
		return err
	}
	if err := fields.Field("args", inputList, includeDeprecated, registry.Getter(func(n *fieldNode) any {
		return inputValues(n.s, n.f.Arguments)
	})); err != nil {
		return err
	}
	if err := fields.Field("type", registry.Type(registry.ObjectOf(&typeNode{})), registry.Getter(func(n *fieldNode) any {
		return registry.Ref{Model: &typeNode{s: n.s, ref: n.f.Type}}
	})); err != nil {
		return err
	}
	if err := notDeprecated(fields); err != nil {
		return err
	}

	inputs := reg.Define(&inputValueNode{}, "__InputValue")
	if err := inputs.Field("name", str, registry.Getter(func(n *inputValueNode) any { return n.v.Name })); err != nil {
		return err
	}
	if err := inputs.Field("description", optionalStr, registry.Getter(func(n *inputValueNode) any { return optional(n.v.Description) })); err != nil {
		return err
	}
	if err := inputs.Field("type", registry.Type(registry.ObjectOf(&typeNode{})), registry.Getter(func(n *inputValueNode) any {
		return registry.Ref{Model: &typeNode{s: n.s, ref: n.v.Type}}
	})); err != nil {
		return err
	}
	if err := inputs.Field("defaultValue", optionalStr, registry.Getter(func(*inputValueNode) any { return nil })); err != nil {
		return err
	}
	if err := notDeprecated(inputs); err != nil {
		return err
	}

	enumValues := reg.Define(&enumValueNode{}, "__EnumValue")
	if err := enumValues.Field("name", str, registry.Getter(func(n *enumValueNode) any { return n.v.Name })); err != nil {
		return err
	}
	if err := enumValues.Field("description", optionalStr, registry.Getter(func(n *enumValueNode) any { return optional(n.v.Description) })); err != nil {
		return err
	}
	if err := notDeprecated(enumValues); err != nil {
		return err
	}

	directives := reg.Define(&directiveNode{}, "__Directive")
	if err := directives.Field("name", str, registry.Getter(func(n *directiveNode) any { return n.d.Name })); err != nil {
		return err
	}
	if err := directives.Field("description", optionalStr, registry.Getter(func(n *directiveNode) any { return optional(n.d.Description) })); err != nil {
		return err
	}
	if err := directives.Field("isRepeatable", boolean, registry.Getter(func(*directiveNode) any { return false })); err != nil {
		return err
	}
	if err := directives.Field("locations", registry.Type([]any{"string"}), registry.Getter(func(n *directiveNode) any {
		return resolveDirectiveLocations(n.d)
	})); err != nil {
		return err
	}
	return directives.Field("args", inputList, includeDeprecated, registry.Getter(func(n *directiveNode) any {
		return inputValues(n.s, n.d.Arguments)
	}))
}

// def is the named type under any wrappers.
func (n *typeNode) def() *schema.Type {
	if n.ref.Kind != schema.TypeRefKindNamed {
		return nil
	}
	return n.s.Types[n.ref.Named]
}

func (n *typeNode) kind() string {
	if n.ref.Kind != schema.TypeRefKindNamed {
		return string(n.ref.Kind)
	}
	if def := n.def(); def != nil {
		return string(def.Kind)
	}
	return string(schema.TypeKindScalar)
}

// --- helpers ---

func resolveSchemaTypes(sch *schema.Schema) registry.Refs {
	names := make([]string, 0, len(sch.Types))
	for name := range sch.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make(registry.Refs, len(names))
	for i, name := range names {
		out[i] = &typeNode{s: sch, ref: schema.NamedType(name)}
	}
	return out
}

func resolveSchemaDirectives(sch *schema.Schema) registry.Refs {
	dirs := make([]*schema.Directive, 0, len(sch.Directives))
	for _, d := range sch.Directives {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
	out := make(registry.Refs, len(dirs))
	for i, d := range dirs {
		out[i] = &directiveNode{s: sch, d: d}
	}
	return out
}

func resolveTypeFields(n *typeNode) any {
	def := n.def()
	if def == nil || def.Kind != schema.TypeKindObject {
		return nil
	}
	out := make(registry.Refs, len(def.Fields))
	for i, f := range def.Fields {
		out[i] = &fieldNode{s: n.s, f: f}
	}
	return out
}

func resolveTypeEnumValues(n *typeNode) any {
	def := n.def()
	if def == nil || def.Kind != schema.TypeKindEnum {
		return nil
	}
	out := make(registry.Refs, len(def.EnumValues))
	for i, ev := range def.EnumValues {
		out[i] = &enumValueNode{v: ev}
	}
	return out
}

func resolveDirectiveLocations(d *schema.Directive) []string {
	locs := make([]string, len(d.Locations))
	copy(locs, d.Locations)
	sort.Strings(locs)
	return locs
}

func inputValues(sch *schema.Schema, args []*schema.InputValue) registry.Refs {
	out := make(registry.Refs, len(args))
	for i, a := range args {
		out[i] = &inputValueNode{s: sch, v: a}
	}
	return out
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
