package query

import (
	"errors"
	"strconv"

	"github.com/hanpama/fieldgraph/internal/language"
)

// Parse parses a text query. When the document holds several query
// operations, operationName selects one; otherwise the first query
// operation is used. Variables are substituted while parsing.
func Parse(text string, operationName string, variables map[string]any) (*Node, error) {
	doc, err := language.ParseQuery(text)
	if err != nil {
		var gerr *language.Error
		if errors.As(err, &gerr) {
			line, col := 0, 0
			if len(gerr.Locations) > 0 {
				line, col = gerr.Locations[0].Line, gerr.Locations[0].Column
			}
			return nil, newParseError(text, line, col, "%s", gerr.Message)
		}
		return nil, &ParseError{Message: err.Error()}
	}

	op, err := selectOperation(doc, operationName)
	if err != nil {
		return nil, err
	}
	l := &lowerer{
		source:    text,
		doc:       doc,
		variables: variables,
		defaults:  op.VariableDefinitions,
		expanding: make(map[string]bool),
	}
	root := &Node{}
	if err := l.collect(root, op.SelectionSet); err != nil {
		return nil, err
	}
	return root, nil
}

func selectOperation(doc *language.QueryDocument, name string) (*language.OperationDefinition, error) {
	for _, op := range doc.Operations {
		if op.Operation != language.Query {
			continue
		}
		if name == "" || op.Name == name {
			return op, nil
		}
	}
	if name != "" {
		return nil, &ParseError{Message: "operation not found: " + strconv.Quote(name)}
	}
	return nil, &ParseError{Message: "no query operation"}
}

// lowerer converts selection sets to nodes, inlining fragments.
type lowerer struct {
	source    string
	doc       *language.QueryDocument
	variables map[string]any
	defaults  language.VariableDefinitionList
	expanding map[string]bool
}

func (l *lowerer) errorAt(pos *language.Position, format string, args ...any) error {
	if pos == nil {
		return newParseError(l.source, 0, 0, format, args...)
	}
	return newParseError(l.source, pos.Line, pos.Column, format, args...)
}

func (l *lowerer) collect(parent *Node, set language.SelectionSet) error {
	for _, selection := range set {
		switch sel := selection.(type) {
		case *language.Field:
			include, err := l.shouldInclude(sel.Directives)
			if err != nil {
				return err
			}
			if !include {
				continue
			}
			key := sel.Alias
			if key == "" {
				key = sel.Name
			}
			n := &Node{Field: sel.Name, Key: key}
			if len(sel.Arguments) > 0 {
				args := make(map[string]any, len(sel.Arguments))
				for _, a := range sel.Arguments {
					v, err := l.value(a.Value)
					if err != nil {
						return err
					}
					args[a.Name] = v
				}
				n.Args = args
			}
			if err := l.collect(n, sel.SelectionSet); err != nil {
				return err
			}
			parent.add(n)

		case *language.InlineFragment:
			include, err := l.shouldInclude(sel.Directives)
			if err != nil {
				return err
			}
			if !include {
				continue
			}
			if err := l.collect(parent, sel.SelectionSet); err != nil {
				return err
			}

		case *language.FragmentSpread:
			include, err := l.shouldInclude(sel.Directives)
			if err != nil {
				return err
			}
			if !include {
				continue
			}
			def := l.doc.Fragments.ForName(sel.Name)
			if def == nil {
				return l.errorAt(sel.Position, "fragment not found: %s", sel.Name)
			}
			if l.expanding[sel.Name] {
				return l.errorAt(sel.Position, "circular fragment: %s", sel.Name)
			}
			l.expanding[sel.Name] = true
			err = l.collect(parent, def.SelectionSet)
			delete(l.expanding, sel.Name)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// shouldInclude evaluates @skip and @include.
func (l *lowerer) shouldInclude(directives language.DirectiveList) (bool, error) {
	if skip := directives.ForName("skip"); skip != nil {
		v, err := l.directiveArg(skip)
		if err != nil {
			return false, err
		}
		if b, ok := v.(bool); ok && b {
			return false, nil
		}
	}
	if include := directives.ForName("include"); include != nil {
		v, err := l.directiveArg(include)
		if err != nil {
			return false, err
		}
		if b, ok := v.(bool); ok && !b {
			return false, nil
		}
	}
	return true, nil
}

func (l *lowerer) directiveArg(d *language.Directive) (any, error) {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return nil, l.errorAt(d.Position, "directive @%s requires argument \"if\"", d.Name)
	}
	return l.value(arg.Value)
}
