package registry

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// ArgumentSpec is the parameter shape of a field. Open means any argument
// object is accepted and the projector renders an untyped bag.
type ArgumentSpec struct {
	Open bool
	Args []Argument
}

// Argument is one named field parameter.
type Argument struct {
	Name     string
	Type     TypeDescriptor
	Required bool
}

func (s ArgumentSpec) empty() bool { return !s.Open && len(s.Args) == 0 }

// Lookup returns the named argument.
func (s ArgumentSpec) Lookup(name string) (Argument, bool) {
	for _, a := range s.Args {
		if a.Name == name {
			return a, true
		}
	}
	return Argument{}, false
}

// inferArguments derives an ArgumentSpec from the declared signatures of a
// field's functions. Positional parameters declare nothing.
func inferArguments(sigs ...Signature) ArgumentSpec {
	var spec ArgumentSpec
	seen := map[string]int{}
	add := func(name string, required bool) {
		if i, ok := seen[name]; ok {
			spec.Args[i].Required = spec.Args[i].Required || required
			return
		}
		seen[name] = len(spec.Args)
		spec.Args = append(spec.Args, Argument{Name: name, Type: argumentType(name), Required: required})
	}
	for _, sig := range sigs {
		switch sig.Params {
		case ParamsOpen:
			spec.Open = true
		case ParamsNamed:
			for _, n := range sig.Required {
				add(n, true)
			}
			for _, n := range sig.Optional {
				add(n, false)
			}
		}
	}
	return spec
}

// argumentType guesses a type from a parameter name: identifiers are
// integers, plural names are lists.
func argumentType(name string) TypeDescriptor {
	singular := inflection.Singular(name)
	plural := singular != name && inflection.Plural(singular) == name
	base := name
	if plural {
		base = singular
	}
	var elem TypeDescriptor = Scalar{Kind: ScalarAny}
	if strings.HasSuffix(base, "_id") || strings.HasSuffix(base, "Id") || base == "id" {
		elem = Scalar{Kind: ScalarInt}
	}
	if plural {
		return List{Elem: elem}
	}
	return elem
}
