package schema

import (
	"fmt"
	"slices"

	"github.com/hanpama/fieldgraph/internal/language"
	"github.com/hanpama/fieldgraph/internal/projector"
	"github.com/hanpama/fieldgraph/internal/registry"
)

// FromProjection builds the GraphQL schema of a projection. Values without a
// GraphQL shape use the Any scalar; string literal sets become enums.
func FromProjection(p *projector.Projection) *Schema {
	s := &Schema{
		QueryType:  p.Root.Name,
		Types:      map[string]*Type{},
		Directives: map[string]*Directive{},
	}
	for _, t := range []*Type{stringType, intType, floatType, booleanType} {
		s.Types[t.Name] = t
	}
	s.Directives[includeDirective.Name] = includeDirective
	s.Directives[skipDirective.Name] = skipDirective

	for _, k := range p.Scalars {
		if k == registry.ScalarAny || k == registry.ScalarUnknown {
			s.Types[anyType.Name] = anyType
		}
	}
	for _, e := range p.Enums {
		t := &Type{Name: e.Name, Kind: TypeKindEnum}
		for _, v := range e.Values {
			t.EnumValues = append(t.EnumValues, &EnumValue{Name: v})
		}
		s.Types[t.Name] = t
	}

	b := &builder{p: p, s: s}
	for _, pt := range p.Types {
		t := &Type{Name: pt.Name, Kind: TypeKindObject}
		for _, pf := range pt.Fields {
			f := &Field{Name: pf.Name, Type: b.typeRef(pf.Type)}
			for _, a := range pf.Args {
				ref := b.typeRef(a.Type)
				if !a.Required && ref.IsNonNull() {
					ref = ref.Unwrap()
				}
				f.Arguments = append(f.Arguments, &InputValue{Name: a.Name, Type: ref})
			}
			t.Fields = append(t.Fields, f)
		}
		s.Types[t.Name] = t
	}
	return s
}

type builder struct {
	p *projector.Projection
	s *Schema
}

// typeRef maps a descriptor to a reference; everything but Optional and Any
// is non-null.
func (b *builder) typeRef(d registry.TypeDescriptor) *TypeRef {
	if o, ok := d.(registry.Optional); ok {
		return b.nullable(o.Elem)
	}
	ref := b.nullable(d)
	if ref.Kind == TypeRefKindNamed && ref.Named == anyType.Name {
		return ref
	}
	return NonNullType(ref)
}

func (b *builder) nullable(d registry.TypeDescriptor) *TypeRef {
	switch x := d.(type) {
	case registry.Scalar:
		if e, ok := b.p.Enum(x); ok {
			return NamedType(e.Name)
		}
		return b.scalar(projector.ScalarKind(x))
	case registry.Object:
		if t, ok := b.p.Object(x); ok {
			return NamedType(t.Name)
		}
	case registry.List:
		return ListType(b.typeRef(x.Elem))
	case registry.Optional:
		return b.nullable(x.Elem)
	}
	return b.scalar(registry.ScalarAny)
}

func (b *builder) scalar(k registry.ScalarKind) *TypeRef {
	switch k {
	case registry.ScalarInt:
		return NamedType(intType.Name)
	case registry.ScalarFloat:
		return NamedType(floatType.Name)
	case registry.ScalarString:
		return NamedType(stringType.Name)
	case registry.ScalarBoolean:
		return NamedType(booleanType.Name)
	}
	b.s.Types[anyType.Name] = anyType
	return NamedType(anyType.Name)
}

// Validate parses sdl and checks that every referenced type is defined.
func Validate(sdl string) error {
	doc, err := language.ParseSchema("schema.graphql", sdl)
	if err != nil {
		return err
	}
	defined := map[string]bool{"Int": true, "Float": true, "String": true, "Boolean": true, "ID": true}
	for _, d := range doc.Definitions {
		defined[d.Name] = true
	}
	var missing []string
	check := func(name string) {
		if !defined[name] && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
	}
	for _, sd := range doc.Schema {
		for _, op := range sd.OperationTypes {
			check(op.Type)
		}
	}
	for _, d := range doc.Definitions {
		for _, f := range d.Fields {
			check(f.Type.Name())
			for _, a := range f.Arguments {
				check(a.Type.Name())
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("undefined types: %v", missing)
	}
	return nil
}
