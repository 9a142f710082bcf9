package query

import (
	"fmt"
	"slices"
)

// Reserved keys of structural queries.
const (
	keyAs         = "as"
	keyField      = "field"
	keyParams     = "params"
	keyAttributes = "attributes"
	keyQuery      = "query"
)

// ParseStructural converts a structural query. v is a field name, a list of
// entries or a map; typed slices and maps are accepted. In a map the keys
// "as", "field", "params", "attributes" and "query" configure the enclosing
// field and every other key selects a child.
func ParseStructural(v any) (*Node, error) {
	root := &Node{}
	if err := fillNode(root, Normalize(v), "$"); err != nil {
		return nil, err
	}
	return root, nil
}

func fillNode(n *Node, v any, path string) error {
	switch x := v.(type) {
	case nil, bool:
		return nil
	case string:
		n.add(&Node{Field: x, Key: x})
		return nil
	case []any:
		for i, e := range x {
			if err := fillNode(n, e, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for _, k := range sortedKeys(x, true) {
			e := x[k]
			p := path + "." + k
			switch k {
			case keyAs:
				s, ok := e.(string)
				if !ok {
					return &ParseError{Message: fmt.Sprintf("%s: alias must be a string, got %T", p, e)}
				}
				n.Key = s
			case keyField:
				s, ok := e.(string)
				if !ok {
					return &ParseError{Message: fmt.Sprintf("%s: field must be a string, got %T", p, e)}
				}
				n.Field = s
			case keyParams:
				n.Args = e
			case keyAttributes, keyQuery:
				if err := fillAttributes(n, e, p); err != nil {
					return err
				}
			default:
				c, err := childNode(k, e, p)
				if err != nil {
					return err
				}
				n.add(c)
			}
		}
		return nil
	}
	return &ParseError{Message: fmt.Sprintf("%s: expected a string, list or map, got %T", path, v)}
}

// fillAttributes reads a child selection in which every map key is a field
// name, reserved or not.
func fillAttributes(n *Node, v any, path string) error {
	m, ok := v.(map[string]any)
	if !ok {
		return fillNode(n, v, path)
	}
	for _, k := range sortedKeys(m, false) {
		c, err := childNode(k, m[k], path+"."+k)
		if err != nil {
			return err
		}
		n.add(c)
	}
	return nil
}

func childNode(key string, v any, path string) (*Node, error) {
	c := &Node{Field: key, Key: key}
	if err := fillNode(c, v, path); err != nil {
		return nil, err
	}
	return c, nil
}

// sortedKeys orders map keys by name. With reserved set, alias and
// parameter keys come first.
func sortedKeys(m map[string]any, reserved bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	rank := func(k string) int {
		if !reserved {
			return 0
		}
		switch k {
		case keyAs, keyField, keyParams:
			return 0
		}
		return 1
	}
	slices.SortFunc(keys, func(a, b string) int {
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra - rb
		}
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	})
	return keys
}
