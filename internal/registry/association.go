package registry

import (
	"context"
	"reflect"
	"slices"
	"strings"

	"github.com/hanpama/fieldgraph/internal/storage"
)

var associationArgs = []Argument{
	{Name: "limit", Type: Scalar{Kind: ScalarInt}},
	{Name: "first", Type: Scalar{Kind: ScalarInt}},
	{Name: "last", Type: Scalar{Kind: ScalarInt}},
	{Name: "order", Type: Scalar{Kind: ScalarAny}},
	{Name: "order_by", Type: Scalar{Kind: ScalarString}},
	{Name: "direction", Type: Literal("asc", "desc")},
}

// ordering is the parsed form of association arguments.
type ordering struct {
	limit   int
	order   storage.Order
	ordered bool
	keyed   bool // the client named the sort column
	last    bool
}

// parseOrdering reads limit, first, last, order, order_by and direction.
// "order" is either a direction applied to the primary key or a single-entry
// map from column to direction.
func parseOrdering(params map[string]any) (ordering, error) {
	o := ordering{limit: -1, order: storage.Order{Column: "id"}}
	for _, key := range []string{"limit", "first", "last"} {
		v, ok := params[key]
		if !ok || v == nil {
			continue
		}
		n, ok := toInt(v)
		if !ok || n < 0 {
			return o, invalidQuery("%s must be a non-negative integer, got %v", key, v)
		}
		o.limit = n
		o.last = key == "last"
	}
	direction := func(v any) (bool, error) {
		s, _ := v.(string)
		switch strings.ToLower(s) {
		case "asc":
			return false, nil
		case "desc":
			return true, nil
		}
		return false, invalidQuery("invalid order mode: %v", v)
	}
	switch ord := params["order"].(type) {
	case nil:
	case string:
		desc, err := direction(ord)
		if err != nil {
			return o, err
		}
		o.order.Desc, o.ordered = desc, true
	case map[string]any:
		if len(ord) != 1 {
			return o, invalidQuery("invalid order: %v", ord)
		}
		for k, v := range ord {
			desc, err := direction(v)
			if err != nil {
				return o, err
			}
			o.order = storage.Order{Column: k, Desc: desc}
		}
		o.ordered, o.keyed = true, true
	default:
		return o, invalidQuery("invalid order: %v", ord)
	}
	if by, ok := params["order_by"]; ok && by != nil {
		s, ok := by.(string)
		if !ok || s == "" {
			return o, invalidQuery("invalid order key: %v", by)
		}
		o.order.Column, o.ordered, o.keyed = s, true, true
	}
	if dir, ok := params["direction"]; ok && dir != nil {
		desc, err := direction(dir)
		if err != nil {
			return o, err
		}
		o.order.Desc, o.ordered = desc, true
	}
	return o, nil
}

func toInt(v any) (int, bool) {
	switch k := storage.Key(v).(type) {
	case int64:
		return int(k), true
	case string:
		n := 0
		if k == "" {
			return 0, false
		}
		for _, r := range k {
			if r < '0' || r > '9' {
				return 0, false
			}
			n = n*10 + int(r-'0')
		}
		return n, true
	}
	return 0, false
}

// sortColumn validates an ordering key against the target type and returns
// the column to sort on. The primary key is always orderable; only a key the
// client named is checked against Only and Except.
func (f *Field) sortColumn(target *Table, key string, keyed bool, namespaces []Namespace) (string, error) {
	if keyed && (len(f.Only) > 0 && !slices.Contains(f.Only, key) || slices.Contains(f.Except, key)) {
		return "", invalidQuery("invalid order key: %s", key)
	}
	if target != nil {
		if b, ok := target.Lookup(key, namespaces); ok {
			if b.OrderColumn != "" {
				return b.OrderColumn, nil
			}
			if b.Orderable {
				return key, nil
			}
		}
	}
	if key == "id" {
		return key, nil
	}
	return "", invalidQuery("invalid order key: %s", key)
}

// associationField synthesizes a batched relation loader. Without ordering
// arguments the whole relation is loaded; with them rows are sorted with
// nil keys first and truncated per owner.
func (t *Table) associationField(f *Field, rel storage.Relation) {
	reg := t.reg
	relName := rel.Name
	f.Relation = relName
	f.Arguments = ArgumentSpec{Args: associationArgs}
	f.typeFn = func() (TypeDescriptor, error) { return relationType(rel), nil }
	owner := t.typ

	load := func(ctx context.Context, b Batch) (any, error) {
		params, _ := b.Params.(map[string]any)
		o, err := parseOrdering(params)
		if err != nil {
			return nil, err
		}
		if o.ordered || o.limit >= 0 {
			target, _ := reg.Table(rel.Target)
			col, err := f.sortColumn(target, o.order.Column, o.keyed, b.Namespaces)
			if err != nil {
				return nil, err
			}
			o.order.Column = col
		}
		ids := make([]any, 0, len(b.Models))
		for _, m := range b.Models {
			if id, ok := reg.PrimaryKey(m); ok {
				ids = append(ids, id)
			}
		}
		return reg.loadAssociation(ctx, owner, ids, relName, o)
	}
	names := make([]string, len(associationArgs))
	for i, a := range associationArgs {
		names[i] = a.Name
	}
	p := NewPreloader(load, Signature{Params: ParamsNamed, Optional: names})
	p.Name = t.name + "." + relName
	f.Preloaders = []*Preloader{p}

	f.resolver = func(_ context.Context, obj any, in Input) (any, error) {
		id, _ := reg.PrimaryKey(obj)
		loaded, _ := in.Preloaded[0].(map[any][]any)
		rows, ok := loaded[id]
		if !ok {
			v, _ := readAttribute(reg.schema(), obj, relName)
			return reg.Wrap(v), nil
		}
		if rel.Many {
			return Refs(rows), nil
		}
		if len(rows) == 0 {
			return Ref{}, nil
		}
		return Ref{Model: rows[0]}, nil
	}
}

// loadAssociation prefers a top-N loader when a limit is given. "last"
// requests the reverse direction and flips each owner's rows back.
func (r *Registry) loadAssociation(ctx context.Context, owner reflect.Type, ids []any, relName string, o ordering) (map[any][]any, error) {
	order := o.order
	if o.last {
		order.Desc = !order.Desc
	}
	if topN, ok := r.store.(storage.TopNLoader); ok && o.limit >= 0 {
		out, err := topN.LoadTopN(ctx, owner, ids, relName, storage.TopNOptions{Limit: o.limit, Order: order})
		if err != nil {
			return nil, err
		}
		if o.last {
			for _, rows := range out {
				slices.Reverse(rows)
			}
		}
		return out, nil
	}
	var opts storage.PreloadOptions
	sorted := o.ordered || o.limit >= 0
	if sorted {
		opts.Order = &order
	}
	out, err := r.store.PreloadAssociation(ctx, owner, ids, relName, opts)
	if err != nil || !sorted {
		return out, err
	}
	key := func(rec any) any {
		v, _ := readAttribute(r.schema(), rec, order.Column)
		return v
	}
	id := func(rec any) any {
		v, _ := r.PrimaryKey(rec)
		return v
	}
	for k, rows := range out {
		rows = slices.Clone(rows)
		storage.SortRecords(rows, key, id, order.Desc)
		if o.limit >= 0 && len(rows) > o.limit {
			rows = rows[:o.limit]
		}
		if o.last {
			slices.Reverse(rows)
		}
		out[k] = rows
	}
	return out, nil
}

// countField synthesizes a grouped count over relation; owners without rows
// count 0.
func (t *Table) countField(f *Field, relation string) error {
	reg := t.reg
	counter, ok := reg.store.(storage.Counter)
	if !ok {
		return configurationError("field %s: count_of requires storage", f.Name)
	}
	if _, ok := reg.store.Relation(t.typ, relation); !ok {
		return configurationError("field %s: %s has no relation %s", f.Name, t.name, relation)
	}
	owner := t.typ
	p := NewPreloader(func(ctx context.Context, b Batch) (any, error) {
		ids := make([]any, 0, len(b.Models))
		for _, m := range b.Models {
			if id, ok := reg.PrimaryKey(m); ok {
				ids = append(ids, id)
			}
		}
		return counter.GroupedCount(ctx, owner, ids, relation)
	}, Signature{})
	p.Name = t.name + "." + relation + ".count"
	f.CountOf = relation
	f.Preloaders = []*Preloader{p}
	f.resolver = func(_ context.Context, obj any, in Input) (any, error) {
		id, _ := reg.PrimaryKey(obj)
		counts, _ := in.Preloaded[0].(map[any]int)
		return counts[id], nil
	}
	f.typeFn = func() (TypeDescriptor, error) { return Scalar{Kind: ScalarInt}, nil }
	return nil
}
