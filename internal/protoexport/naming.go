package protoexport

import (
	"strings"
	"unicode"

	"google.golang.org/protobuf/reflect/protoreflect"
)

func nameMessage(typeName string) protoreflect.Name {
	return protoreflect.Name(typeName)
}

func nameField(fieldName string) protoreflect.Name {
	return protoreflect.Name(snakeCase(fieldName))
}

func nameEnumValue(enumName string, value string) protoreflect.Name {
	prefix := strings.ToUpper(snakeCase(enumName))
	return protoreflect.Name(prefix + "_" + strings.ToUpper(snakeCase(value)))
}

func filePath(pkg string) string {
	return strings.ReplaceAll(pkg, ".", "/") + "/types.proto"
}

// snakeCase converts a string from CamelCase or PascalCase to snake_case.
func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' && (unicode.IsLower(rune(s[i-1])) || unicode.IsDigit(rune(s[i-1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
