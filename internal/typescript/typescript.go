// Package typescript renders TypeScript declarations for a projection: a data
// interface per type plus the query shapes accepted by the serializer, and an
// optional query builder that derives a query from a sample data object.
package typescript

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hanpama/fieldgraph/internal/projector"
	"github.com/hanpama/fieldgraph/internal/registry"
)

// Render returns the data interfaces of every projected type followed by
// their query types.
func Render(p *projector.Projection) string {
	r := &renderer{p: p}
	var parts []string
	for _, t := range p.Types {
		parts = append(parts, r.dataType(t))
	}
	for _, t := range p.Types {
		parts = append(parts, r.queryType(t))
	}
	return strings.Join(parts, "\n")
}

// RenderQueryBuilder returns the field/child definitions table of every
// projected type and a buildQuery function reading it.
func RenderQueryBuilder(p *projector.Projection) string {
	r := &renderer{p: p}
	defs := make([]string, len(p.Types))
	for i, t := range p.Types {
		defs[i] = indent(r.definition(t), "  ")
	}
	return "export const definitions = {\n" + strings.Join(defs, ",\n") + "\n}\n" + queryBuilderScript
}

// TypeName is the TypeScript interface name of a projected type.
func TypeName(t *projector.Type) string { return "Type" + t.Name }

func queryName(t *projector.Type) string { return TypeName(t) + "Query" }

func baseQueryName(t *projector.Type) string { return TypeName(t) + "QueryBase" }

type renderer struct {
	p *projector.Projection
}

func (r *renderer) dataType(t *projector.Type) string {
	var lines, params []string
	for _, f := range t.Fields {
		lines = append(lines, fmt.Sprintf("%s?: %s", f.Name, r.tsType(f.Type)))
		if f.OpenArgs || len(f.Args) > 0 {
			params = append(params, fmt.Sprintf("  %s?: %s", f.Name, r.argsType(f)))
		}
	}
	if len(params) > 0 {
		lines = append(lines, "_params?: {")
		lines = append(lines, params...)
		lines = append(lines, "}")
	}
	lines = append(lines, fmt.Sprintf("_meta?: { name: '%s'; query: %s }", t.Name, baseQueryName(t)))
	return block("export interface "+TypeName(t), lines)
}

func (r *renderer) queryType(t *projector.Type) string {
	var lines []string
	for _, f := range t.Fields {
		child, ok := r.association(f.Type)
		switch {
		case !ok:
			lines = append(lines, f.Name+"?: true | { as: string }")
		case f.OpenArgs || len(f.Args) > 0:
			q := queryName(child)
			lines = append(lines, fmt.Sprintf("%s?: true | %s | { as?: string; params?: %s; attributes?: %s }", f.Name, q, r.argsType(f), q))
		default:
			q := queryName(child)
			lines = append(lines, fmt.Sprintf("%s?: true | %s | { as?: string; attributes?: %s }", f.Name, q, q))
		}
	}
	lines = append(lines, "'*'?: true")
	base := baseQueryName(t)
	header := fmt.Sprintf("export type %s = keyof (%s) | (keyof (%s))[] | %s\n", queryName(t), base, base, base)
	return header + block("export interface "+base, lines)
}

func (r *renderer) definition(t *projector.Type) string {
	var fields, children []string
	for _, f := range t.Fields {
		if child, ok := r.association(f.Type); ok {
			children = append(children, fmt.Sprintf("    %s: %s", f.Name, quote(child.Name)))
			continue
		}
		fields = append(fields, fmt.Sprintf("    %s: %s as %s", f.Name, sample(f.Type), r.tsType(f.Type)))
	}
	var b strings.Builder
	b.WriteString(t.Name + ": {\n  fields: {\n")
	if len(fields) > 0 {
		b.WriteString(strings.Join(fields, ",\n") + "\n")
	}
	b.WriteString("  },\n  children: {\n")
	if len(children) > 0 {
		b.WriteString(strings.Join(children, ",\n") + "\n")
	}
	b.WriteString("  }\n}")
	return b.String()
}

// association returns the object type a field serializes, looking through
// lists and optionals.
func (r *renderer) association(d registry.TypeDescriptor) (*projector.Type, bool) {
	switch x := d.(type) {
	case registry.Object:
		return r.p.Object(x)
	case registry.List:
		return r.association(x.Elem)
	case registry.Optional:
		return r.association(x.Elem)
	}
	return nil, false
}

func (r *renderer) argsType(f *projector.Field) string {
	if f.OpenArgs {
		return "{ [key: string]: any }"
	}
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		opt := "?"
		if a.Required {
			opt = ""
		}
		parts[i] = fmt.Sprintf("%s%s: %s", a.Name, opt, r.tsType(a.Type))
	}
	return "{ " + strings.Join(parts, "; ") + " }"
}

func (r *renderer) tsType(d registry.TypeDescriptor) string {
	switch x := d.(type) {
	case registry.Scalar:
		return scalarType(x)
	case registry.Object:
		if t, ok := r.p.Object(x); ok {
			return TypeName(t)
		}
		return "any"
	case registry.List:
		return "(" + r.tsType(x.Elem) + " [])"
	case registry.Optional:
		return "(" + r.tsType(x.Elem) + " | null)"
	case registry.Union:
		elems := make([]string, len(x.Elems))
		for i, e := range x.Elems {
			elems[i] = r.tsType(e)
		}
		return "(" + strings.Join(elems, " | ") + ")"
	case registry.Record:
		fields := make([]string, len(x.Fields))
		for i, f := range x.Fields {
			key := f.Name
			if key == "*" {
				key = "[key: string]"
			}
			fields[i] = key + ": " + r.tsType(f.Type)
		}
		return "{ " + strings.Join(fields, "; ") + " }"
	case registry.Raw:
		return x.Source
	}
	return "any"
}

func scalarType(s registry.Scalar) string {
	switch s.Kind {
	case registry.ScalarInt, registry.ScalarFloat:
		return "number"
	case registry.ScalarString:
		return "string"
	case registry.ScalarBoolean:
		return "boolean"
	case registry.ScalarUnknown:
		return "unknown"
	case registry.ScalarEnum:
		if len(s.Literals) == 1 {
			return quote(s.Literals[0])
		}
		values := make([]string, len(s.Literals))
		for i, l := range s.Literals {
			values[i] = quote(l)
		}
		return "(" + strings.Join(values, " | ") + ")"
	}
	return "any"
}

// sample is a JSON value of type d, used as the runtime marker in the query
// builder definitions.
func sample(d registry.TypeDescriptor) string {
	switch x := d.(type) {
	case registry.Scalar:
		switch x.Kind {
		case registry.ScalarInt, registry.ScalarFloat:
			return "0"
		case registry.ScalarString:
			return `""`
		case registry.ScalarBoolean:
			return "false"
		case registry.ScalarEnum:
			if len(x.Literals) > 0 {
				return quote(x.Literals[0])
			}
		}
	case registry.List:
		return "[]"
	case registry.Union:
		if len(x.Elems) > 0 {
			return sample(x.Elems[0])
		}
	case registry.Record:
		fields := make([]string, 0, len(x.Fields))
		for _, f := range x.Fields {
			if f.Name != "*" {
				fields = append(fields, quote(f.Name)+":"+sample(f.Type))
			}
		}
		return "{" + strings.Join(fields, ",") + "}"
	}
	return "null"
}

func quote(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func block(header string, lines []string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString(" {\n")
	for _, l := range lines {
		b.WriteString("  ")
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("}\n")
	return b.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

const queryBuilderScript = `interface Meta { query: {}; name: string }
interface DataTypeBase { _meta?: Meta, _params?: { [key: string]: any } }
export function buildQuery<DataType extends DataTypeBase>(
  name: (DataType['_meta'] & Meta)['name'],
  data: DataType
): (DataType['_meta'] & Meta)['query'] {
  const defs = definitions[name as any]
  if (!defs) return {} as any
  const query: { [key: string]: any } = {}
  for (const fieldName in data) {
    const params = data._params && data._params[fieldName]
    if (defs.fields[fieldName] !== undefined) {
      query[fieldName] = params ? { params } : true
      continue
    }
    const fieldType = defs.children[fieldName]
    if (!fieldType) continue
    let fieldValue = data[fieldName]
    if (fieldValue instanceof Array) {
      if (fieldValue.length === 0) {
        query[fieldName] = true
        continue
      }
      fieldValue = fieldValue[0]
    }
    const subQuery = buildQuery(fieldType as any, fieldValue)
    if (params) {
      query[fieldName] = { params, attributes: subQuery }
    } else {
      query[fieldName] = subQuery
    }
  }
  return query as any
}
`
