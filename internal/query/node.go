// Package query turns text and structural queries into a tree of Nodes.
//
// Text queries use the GraphQL surface: aliases, arguments, nested
// selections, fragments, variables and comments. Structural queries are
// nested lists and maps:
//
//	[]any{"id", "name", map[string]any{
//		"posts": map[string]any{
//			"as":         "recent",
//			"params":     map[string]any{"first": 2},
//			"attributes": []any{"id", "title"},
//		},
//	}}
//
// Both forms produce the same Node shape.
package query

import "slices"

// Wildcard selects every public field of the target type.
const Wildcard = "*"

// Node is one selected field. The root node has no field name.
type Node struct {
	// Field is the registry field looked up on the target type.
	Field string
	// Key is the output key; it differs from Field when aliased.
	Key      string
	Args     any
	Children []*Node
}

// IsWildcard reports whether n is the wildcard marker.
func (n *Node) IsWildcard() bool { return n.Field == Wildcard }

// Child returns the child with the given output key.
func (n *Node) Child(key string) (*Node, bool) {
	for _, c := range n.Children {
		if c.Key == key {
			return c, true
		}
	}
	return nil, false
}

// add appends c, merging it into an existing child with the same output
// key. Children merge recursively and later arguments win.
func (n *Node) add(c *Node) {
	existing, ok := n.Child(c.Key)
	if !ok {
		n.Children = append(n.Children, c)
		return
	}
	existing.Field = c.Field
	if c.Args != nil {
		existing.Args = c.Args
	}
	for _, gc := range c.Children {
		existing.add(gc)
	}
}

// Clone returns a deep copy of the tree. Arguments are shared.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Field: n.Field, Key: n.Key, Args: n.Args, Children: make([]*Node, len(n.Children))}
	for i, c := range n.Children {
		out.Children[i] = c.Clone()
	}
	return out
}

// Fields lists the output keys of n's children.
func (n *Node) Fields() []string {
	keys := make([]string, len(n.Children))
	for i, c := range n.Children {
		keys[i] = c.Key
	}
	return slices.Clip(keys)
}
