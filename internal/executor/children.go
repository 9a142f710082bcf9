package executor

import (
	"reflect"

	"github.com/hanpama/fieldgraph/internal/query"
	"github.com/hanpama/fieldgraph/internal/registry"
)

type slotKind int

const (
	slotRef slotKind = iota
	slotRefs
	slotComposite
	slotCustom
)

// slot is where the serialized children of one resolved value go.
type slot struct {
	out        map[string]any
	key        string
	kind       slotKind
	start, end int
	build      func([]any) any
	reshape    func(func(any) (map[string]any, bool)) any
}

// childBatch gathers the objects every object of a group resolved for one
// field, so the next level sees them all at once.
type childBatch struct {
	models []any
	slots  []slot
}

func (b *childBatch) add(out map[string]any, key string, v any) {
	sl := slot{out: out, key: key, start: len(b.models)}
	switch x := v.(type) {
	case registry.Ref:
		if isNil(x.Model) {
			out[key] = nil
			return
		}
		sl.kind = slotRef
		b.models = append(b.models, x.Model)
	case registry.Refs:
		sl.kind = slotRefs
		b.models = append(b.models, x...)
	case registry.Composite:
		sl.kind = slotComposite
		sl.build = x.Build
		b.models = append(b.models, x.Models...)
	case registry.Custom:
		sl.kind = slotCustom
		sl.reshape = x.Reshape
		b.models = append(b.models, x.Models...)
	default:
		out[key] = v
		return
	}
	sl.end = len(b.models)
	b.slots = append(b.slots, sl)
}

func (s *state) flush(b *childBatch, node *query.Node, v view, m mode) error {
	if len(b.slots) == 0 {
		return nil
	}
	results, err := s.serialize(b.models, node, v, m)
	if err != nil {
		return err
	}
	for _, sl := range b.slots {
		part := results[sl.start:sl.end]
		switch sl.kind {
		case slotRef:
			sl.out[sl.key] = part[0].value()
		case slotRefs:
			sl.out[sl.key] = collect(part)
		case slotComposite:
			values := make([]any, len(part))
			for i, r := range part {
				values[i] = r.value()
			}
			var built any
			if sl.build != nil {
				built = sl.build(values)
			} else {
				built = values
			}
			sl.out[sl.key] = built
		case slotCustom:
			sl.out[sl.key] = sl.reshape(lookupIn(b.models[sl.start:sl.end], part))
		}
	}
	return nil
}

// lookupIn indexes serialized outputs by their source model. Models that are
// not comparable cannot be looked up.
func lookupIn(models []any, results []result) func(any) (map[string]any, bool) {
	index := make(map[any]map[string]any, len(models))
	for i, m := range models {
		if m == nil || !reflect.TypeOf(m).Comparable() {
			continue
		}
		r := results[i]
		if r.dropped || r.isRaw {
			continue
		}
		index[m] = r.out
	}
	return func(model any) (map[string]any, bool) {
		if model == nil || !reflect.TypeOf(model).Comparable() {
			return nil, false
		}
		out, ok := index[model]
		return out, ok
	}
}

// resolveValue serializes a value at the root of a call.
func (s *state) resolveValue(v registry.Value, node *query.Node, vw view, m mode) (any, error) {
	holder := map[string]any{}
	b := &childBatch{}
	b.add(holder, "", v)
	if err := s.flush(b, node, vw, m); err != nil {
		return nil, err
	}
	return holder[""], nil
}
