package protoexport

import (
	"strings"

	"github.com/jhump/protoreflect/v2/protobuilder"

	"github.com/hanpama/fieldgraph/internal/projector"
)

// comment renders text as a leading comment, one " line" per input line.
func comment(text string) protobuilder.Comments {
	text = strings.TrimSpace(text)
	if text == "" {
		return protobuilder.Comments{}
	}
	var b strings.Builder
	for line := range strings.SplitSeq(text, "\n") {
		b.WriteString(" ")
		b.WriteString(strings.TrimRight(line, " \t"))
		b.WriteString("\n")
	}
	return protobuilder.Comments{LeadingComment: b.String()}
}

// argumentComment documents the parameters of f, which proto fields cannot
// carry.
func argumentComment(f *projector.Field) string {
	if f.OpenArgs {
		return "Accepts any arguments."
	}
	if len(f.Args) == 0 {
		return ""
	}
	names := make([]string, len(f.Args))
	for i, a := range f.Args {
		names[i] = a.Name
		if a.Required {
			names[i] += " (required)"
		}
	}
	return "Arguments: " + strings.Join(names, ", ") + "."
}
