package protoexport

import (
	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hanpama/fieldgraph/internal/projector"
	"github.com/hanpama/fieldgraph/internal/registry"
)

type resolvedType struct {
	isRepeated bool
	isOptional bool
	isMessage  bool
	fieldType  *protobuilder.FieldType
}

// valueType carries values with no static proto shape.
var valueType = protobuilder.FieldTypeImportedMessage(
	structpb.File_google_protobuf_struct_proto.Messages().ByName("Value"))

func (b *builder) resolveType(d registry.TypeDescriptor) resolvedType {
	switch x := d.(type) {
	case registry.Optional:
		inner := b.resolveType(x.Elem)
		if inner.isRepeated || inner.isMessage {
			return inner
		}
		inner.isOptional = true
		return inner
	case registry.List:
		elem := b.resolveType(x.Elem)
		if elem.isRepeated {
			return resolvedType{isMessage: true, fieldType: valueType}
		}
		return resolvedType{isRepeated: true, fieldType: elem.fieldType}
	case registry.Scalar:
		if e, ok := b.projection.Enum(x); ok {
			return resolvedType{fieldType: protobuilder.FieldTypeEnum(b.enumBuilders[e.Name])}
		}
		if kind, ok := scalars[projector.ScalarKind(x)]; ok {
			return resolvedType{fieldType: protobuilder.FieldTypeScalar(kind)}
		}
	case registry.Object:
		if t, ok := b.projection.Object(x); ok {
			return resolvedType{isMessage: true, fieldType: protobuilder.FieldTypeMessage(b.messageBuilders[t.Name])}
		}
	}
	return resolvedType{isMessage: true, fieldType: valueType}
}

var scalars = map[registry.ScalarKind]protoreflect.Kind{
	registry.ScalarInt:     protoreflect.Int64Kind,
	registry.ScalarFloat:   protoreflect.DoubleKind,
	registry.ScalarString:  protoreflect.StringKind,
	registry.ScalarBoolean: protoreflect.BoolKind,
}
