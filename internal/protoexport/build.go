// Package protoexport exports a projection as a proto3 file: one message per
// projected type, one enum per named literal set. Field numbers are derived
// from field names so regenerated files stay wire compatible.
package protoexport

import (
	"fmt"
	"strings"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/fieldgraph/internal/projector"
)

// Export is a built proto file with lookups from projected names.
type Export struct {
	File protoreflect.FileDescriptor

	messages map[string]protoreflect.MessageDescriptor
	fields   map[[2]string]protoreflect.FieldDescriptor
}

// Message returns the message of a projected type.
func (e *Export) Message(typeName string) protoreflect.MessageDescriptor {
	return e.messages[typeName]
}

// Field returns the proto field of a projected type's field.
func (e *Export) Field(typeName, field string) protoreflect.FieldDescriptor {
	return e.fields[[2]string{typeName, field}]
}

// Build converts a projection into a proto file in package pkg.
func Build(p *projector.Projection, pkg string) (*Export, error) {
	b := &builder{
		projection:      p,
		file:            protobuilder.NewFile(filePath(pkg)),
		messageBuilders: map[string]*protobuilder.MessageBuilder{},
		enumBuilders:    map[string]*protobuilder.EnumBuilder{},
		fieldNames:      map[[2]protoreflect.Name]string{},
	}
	b.file.SetPackageName(protoreflect.FullName(pkg))
	b.file.SetSyntax(protoreflect.Proto3)

	// Pass 1: declare enums and messages so fields can reference them
	for _, e := range p.Enums {
		b.addEnum(e)
	}
	for _, t := range p.Types {
		b.addMessage(t)
	}

	// Pass 2: message fields
	for _, t := range p.Types {
		if err := b.addMessageFields(t); err != nil {
			return nil, err
		}
	}

	fd, err := b.file.Build()
	if err != nil {
		return nil, err
	}

	e := &Export{
		File:     fd,
		messages: map[string]protoreflect.MessageDescriptor{},
		fields:   map[[2]string]protoreflect.FieldDescriptor{},
	}
	messages := fd.Messages()
	for i := 0; i < messages.Len(); i++ {
		msg := messages.Get(i)
		e.messages[string(msg.Name())] = msg
		fields := msg.Fields()
		for j := 0; j < fields.Len(); j++ {
			field := fields.Get(j)
			if name, ok := b.fieldNames[[2]protoreflect.Name{msg.Name(), field.Name()}]; ok {
				e.fields[[2]string{string(msg.Name()), name}] = field
			}
		}
	}
	return e, nil
}

type builder struct {
	projection *projector.Projection
	file       *protobuilder.FileBuilder

	messageBuilders map[string]*protobuilder.MessageBuilder
	enumBuilders    map[string]*protobuilder.EnumBuilder
	// [message, proto field] -> projected field name
	fieldNames map[[2]protoreflect.Name]string
}

func (b *builder) addMessage(t *projector.Type) {
	mb := protobuilder.NewMessage(nameMessage(t.Name))
	desc := "Serialized " + t.Table.Name() + "."
	if t.Name != t.Table.Name() {
		var view []string
		if len(t.Only) > 0 {
			view = append(view, "only "+strings.Join(t.Only, ", "))
		}
		if len(t.Except) > 0 {
			view = append(view, "except "+strings.Join(t.Except, ", "))
		}
		desc = fmt.Sprintf("Serialized %s restricted to %s.", t.Table.Name(), strings.Join(view, "; "))
	}
	mb.SetComments(comment(desc))
	b.messageBuilders[t.Name] = mb
	b.file.AddMessage(mb)
}

func (b *builder) addEnum(e *projector.Enum) {
	eb := protobuilder.NewEnum(protoreflect.Name(e.Name))
	b.enumBuilders[e.Name] = eb

	// Add default ZERO value: <ENUM>_UNSPECIFIED = 0
	zero := protobuilder.NewEnumValue(nameEnumValue(e.Name, "UNSPECIFIED"))
	zero.SetNumber(0)
	eb.AddValue(zero)

	evbs := make([]*protobuilder.EnumValueBuilder, 0, len(e.Values))
	for _, v := range e.Values {
		if strings.EqualFold(v, "unspecified") {
			continue
		}
		evb := protobuilder.NewEnumValue(nameEnumValue(e.Name, v))
		eb.AddValue(evb)
		evbs = append(evbs, evb)
	}
	allocateEnumValueNumbers(evbs)

	b.file.AddEnum(eb)
}

func (b *builder) addMessageFields(t *projector.Type) error {
	mb := b.messageBuilders[t.Name]

	fieldBuilders := make([]*protobuilder.FieldBuilder, 0, len(t.Fields))
	seen := map[protoreflect.Name]bool{}
	for _, field := range t.Fields {
		rt := b.resolveType(field.Type)
		fieldName := nameField(field.Name)
		if seen[fieldName] {
			return fmt.Errorf("%s.%s: proto field %s is already defined", t.Name, field.Name, fieldName)
		}
		seen[fieldName] = true

		fb := protobuilder.NewField(fieldName, rt.fieldType)
		fb.SetComments(comment(argumentComment(field)))
		if rt.isOptional {
			fb.SetOptional()
		}
		if rt.isRepeated {
			fb.SetRepeated()
		}
		mb.AddField(fb)
		fieldBuilders = append(fieldBuilders, fb)
		b.fieldNames[[2]protoreflect.Name{mb.Name(), fb.Name()}] = field.Name
	}
	allocateFieldNumbers(fieldBuilders)
	return nil
}
