package introspection

import (
	"github.com/hanpama/fieldgraph/internal/schema"
)

// extendSchemaWithIntrospection creates a copy of the schema with the
// introspection types and the __schema and __type root fields.
func extendSchemaWithIntrospection(original *schema.Schema) *schema.Schema {
	extended := &schema.Schema{
		QueryType:  original.QueryType,
		Types:      make(map[string]*schema.Type, len(original.Types)+8),
		Directives: original.Directives,
	}
	for name, typ := range original.Types {
		extended.Types[name] = typ
	}
	addIntrospectionTypes(extended)

	if queryType := extended.GetQueryType(); queryType != nil {
		queryTypeCopy := &schema.Type{
			Name:        queryType.Name,
			Kind:        queryType.Kind,
			Description: queryType.Description,
			Fields:      make([]*schema.Field, len(queryType.Fields)),
		}
		copy(queryTypeCopy.Fields, queryType.Fields)
		queryTypeCopy.Fields = append(queryTypeCopy.Fields,
			&schema.Field{
				Name:        "__schema",
				Description: "Access the current type schema of this server.",
				Type:        schema.NonNullType(schema.NamedType("__Schema")),
			},
			&schema.Field{
				Name:        "__type",
				Description: "Request the type information of a single type.",
				Arguments: []*schema.InputValue{
					{
						Name:        "name",
						Description: "The name of the type to look up.",
						Type:        schema.NonNullType(schema.NamedType("String")),
					},
				},
				Type: schema.NamedType("__Type"),
			},
		)
		extended.Types[queryType.Name] = queryTypeCopy
	}
	return extended
}

func addIntrospectionTypes(sch *schema.Schema) {
	sch.Types["__Schema"] = schemaType()
	sch.Types["__Type"] = typeType()
	sch.Types["__Field"] = fieldType()
	sch.Types["__InputValue"] = inputValueType()
	sch.Types["__EnumValue"] = enumValueType()
	sch.Types["__Directive"] = directiveType()
	sch.Types["__TypeKind"] = typeKindEnum()
	sch.Types["__DirectiveLocation"] = directiveLocationEnum()
}

var includeDeprecatedArg = &schema.InputValue{Name: "includeDeprecated", Type: schema.NamedType("Boolean")}

func schemaType() *schema.Type {
	return &schema.Type{
		Name:        "__Schema",
		Kind:        schema.TypeKindObject,
		Description: "A GraphQL Schema defines the capabilities of a GraphQL server.",
		Fields: []*schema.Field{
			{
				Name:        "description",
				Description: "A description of the schema.",
				Type:        schema.NamedType("String"),
			},
			{
				Name:        "types",
				Description: "A list of all types supported by this server.",
				Type:        schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("__Type")))),
			},
			{
				Name:        "queryType",
				Description: "The type that query operations will be rooted at.",
				Type:        schema.NonNullType(schema.NamedType("__Type")),
			},
			{
				Name:        "mutationType",
				Description: "If this server supports mutation, the type that mutation operations will be rooted at.",
				Type:        schema.NamedType("__Type"),
			},
			{
				Name:        "subscriptionType",
				Description: "If this server support subscription, the type that subscription operations will be rooted at.",
				Type:        schema.NamedType("__Type"),
			},
			{
				Name:        "directives",
				Description: "A list of all directives supported by this server.",
				Type:        schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("__Directive")))),
			},
		},
	}
}

func typeType() *schema.Type {
	return &schema.Type{
		Name:        "__Type",
		Kind:        schema.TypeKindObject,
		Description: "The fundamental unit of any GraphQL Schema is the type.",
		Fields: []*schema.Field{
			{Name: "kind", Type: schema.NonNullType(schema.NamedType("__TypeKind"))},
			{Name: "name", Type: schema.NamedType("String")},
			{Name: "description", Type: schema.NamedType("String")},
			{Name: "specifiedByURL", Type: schema.NamedType("String")},
			{
				Name:      "fields",
				Arguments: []*schema.InputValue{includeDeprecatedArg},
				Type:      schema.ListType(schema.NonNullType(schema.NamedType("__Field"))),
			},
			{Name: "interfaces", Type: schema.ListType(schema.NonNullType(schema.NamedType("__Type")))},
			{Name: "possibleTypes", Type: schema.ListType(schema.NonNullType(schema.NamedType("__Type")))},
			{
				Name:      "enumValues",
				Arguments: []*schema.InputValue{includeDeprecatedArg},
				Type:      schema.ListType(schema.NonNullType(schema.NamedType("__EnumValue"))),
			},
			{
				Name:      "inputFields",
				Arguments: []*schema.InputValue{includeDeprecatedArg},
				Type:      schema.ListType(schema.NonNullType(schema.NamedType("__InputValue"))),
			},
			{Name: "ofType", Type: schema.NamedType("__Type")},
			{Name: "isOneOf", Type: schema.NamedType("Boolean")},
		},
	}
}

func fieldType() *schema.Type {
	return &schema.Type{
		Name:        "__Field",
		Kind:        schema.TypeKindObject,
		Description: "Object and Interface types are described by a list of Fields, each of which has a name, potentially a list of arguments, and a return type.",
		Fields: []*schema.Field{
			{Name: "name", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "description", Type: schema.NamedType("String")},
			{
				Name:      "args",
				Arguments: []*schema.InputValue{includeDeprecatedArg},
				Type:      schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("__InputValue")))),
			},
			{Name: "type", Type: schema.NonNullType(schema.NamedType("__Type"))},
			{Name: "isDeprecated", Type: schema.NonNullType(schema.NamedType("Boolean"))},
			{Name: "deprecationReason", Type: schema.NamedType("String")},
		},
	}
}

func inputValueType() *schema.Type {
	return &schema.Type{
		Name:        "__InputValue",
		Kind:        schema.TypeKindObject,
		Description: "Arguments provided to Fields or Directives and the input fields of an InputObject are represented as Input Values which describe their type and optionally a default value.",
		Fields: []*schema.Field{
			{Name: "name", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "description", Type: schema.NamedType("String")},
			{Name: "type", Type: schema.NonNullType(schema.NamedType("__Type"))},
			{Name: "defaultValue", Type: schema.NamedType("String")},
			{Name: "isDeprecated", Type: schema.NonNullType(schema.NamedType("Boolean"))},
			{Name: "deprecationReason", Type: schema.NamedType("String")},
		},
	}
}

func enumValueType() *schema.Type {
	return &schema.Type{
		Name:        "__EnumValue",
		Kind:        schema.TypeKindObject,
		Description: "One possible value for a given Enum.",
		Fields: []*schema.Field{
			{Name: "name", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "description", Type: schema.NamedType("String")},
			{Name: "isDeprecated", Type: schema.NonNullType(schema.NamedType("Boolean"))},
			{Name: "deprecationReason", Type: schema.NamedType("String")},
		},
	}
}

func directiveType() *schema.Type {
	return &schema.Type{
		Name:        "__Directive",
		Kind:        schema.TypeKindObject,
		Description: "A Directive provides a way to describe alternate runtime execution and type validation behavior in a GraphQL document.",
		Fields: []*schema.Field{
			{Name: "name", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "description", Type: schema.NamedType("String")},
			{Name: "isRepeatable", Type: schema.NonNullType(schema.NamedType("Boolean"))},
			{Name: "locations", Type: schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("__DirectiveLocation"))))},
			{
				Name:      "args",
				Arguments: []*schema.InputValue{includeDeprecatedArg},
				Type:      schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("__InputValue")))),
			},
		},
	}
}

func typeKindEnum() *schema.Type {
	return enumType("__TypeKind", "An enum describing what kind of type a given `__Type` is.",
		"SCALAR", "OBJECT", "INTERFACE", "UNION", "ENUM", "INPUT_OBJECT", "LIST", "NON_NULL")
}

func directiveLocationEnum() *schema.Type {
	return enumType("__DirectiveLocation", "A Directive can be adjacent to many parts of the GraphQL language, a __DirectiveLocation describes one such possible adjacencies.",
		"QUERY", "MUTATION", "SUBSCRIPTION", "FIELD", "FRAGMENT_DEFINITION", "FRAGMENT_SPREAD", "INLINE_FRAGMENT", "VARIABLE_DEFINITION")
}

func enumType(name, desc string, values ...string) *schema.Type {
	t := &schema.Type{Name: name, Kind: schema.TypeKindEnum, Description: desc}
	for _, v := range values {
		t.EnumValues = append(t.EnumValues, &schema.EnumValue{Name: v})
	}
	return t
}
