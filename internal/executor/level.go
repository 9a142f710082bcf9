package executor

import (
	"context"
	"reflect"
	"slices"

	"github.com/hanpama/fieldgraph/internal/query"
	"github.com/hanpama/fieldgraph/internal/registry"
)

type state struct {
	exec *Executor
	ctx  context.Context
	cfg  callConfig
}

// view is the only/except restriction a parent field puts on its children.
type view struct {
	only   []string
	except []string
}

func (v view) allows(name string) bool {
	if v.only != nil && !slices.Contains(v.only, name) {
		return false
	}
	return !slices.Contains(v.except, name)
}

// result is the serialized form of one input object of a level.
type result struct {
	out     map[string]any
	raw     any
	isRaw   bool
	dropped bool
}

func (r result) value() any {
	switch {
	case r.dropped:
		return nil
	case r.isRaw:
		return r.raw
	}
	return r.out
}

// collect returns the values of the results that survived permission checks.
func collect(rs []result) []any {
	out := make([]any, 0, len(rs))
	for _, r := range rs {
		if !r.dropped {
			out = append(out, r.value())
		}
	}
	return out
}

type selection struct {
	key     string
	node    *query.Node
	binding registry.Binding
}

// group holds the objects of one registered type within a level.
type group struct {
	table    *registry.Table
	idx      []int
	models   []any
	sels     []selection
	defaults *registry.Binding
	live     []int
	loaded   map[loadKey]any
}

func (s *state) namespaces() []registry.Namespace { return s.cfg.namespaces }

// serialize renders one level and everything below it.
func (s *state) serialize(models []any, node *query.Node, v view, m mode) ([]result, error) {
	results := make([]result, len(models))
	groups := s.group(models, results)

	for _, g := range groups {
		if err := s.plan(g, node, v); err != nil {
			return nil, err
		}
	}
	for _, g := range groups {
		if err := s.eagerLoad(g); err != nil {
			return nil, err
		}
	}
	if err := s.filter(groups, m, results); err != nil {
		return nil, err
	}
	if err := s.preload(groups); err != nil {
		return nil, err
	}
	for _, g := range groups {
		if err := s.resolve(g, results, m); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *state) group(models []any, results []result) []*group {
	reg := s.exec.reg
	var groups []*group
	byType := map[reflect.Type]*group{}
	for i, obj := range models {
		if isNil(obj) {
			results[i] = result{isRaw: true}
			continue
		}
		t, ok := reg.TableOf(obj)
		if !ok {
			results[i] = result{raw: obj, isRaw: true}
			continue
		}
		g := byType[t.Type()]
		if g == nil {
			g = &group{table: t, loaded: map[loadKey]any{}}
			byType[t.Type()] = g
			groups = append(groups, g)
		}
		g.idx = append(g.idx, i)
		g.models = append(g.models, obj)
	}
	return groups
}

// plan expands wildcards and validates every selected field of g.
func (s *state) plan(g *group, node *query.Node, v view) error {
	ns := s.namespaces()
	explicit := map[string]bool{}
	for _, c := range node.Children {
		if !c.IsWildcard() {
			explicit[c.Key] = true
			explicit[c.Field] = true
		}
	}

	var nodes []*query.Node
	seen := map[string]bool{}
	for _, c := range node.Children {
		if !c.IsWildcard() {
			nodes = append(nodes, c)
			continue
		}
		for _, k := range g.table.Keys(ns, true) {
			if explicit[k] || seen[k] || k == DefaultsField || !v.allows(k) {
				continue
			}
			seen[k] = true
			nodes = append(nodes, &query.Node{Field: k, Key: k})
		}
	}

	g.sels = make([]selection, 0, len(nodes))
	for _, n := range nodes {
		b, ok := g.table.Lookup(n.Field, ns)
		if !ok || b.Private {
			return g.table.NotFound(n.Field, ns)
		}
		if !v.allows(n.Field) {
			return registry.InvalidQuery("field %s is not allowed here on %s", n.Field, g.table.Name())
		}
		if err := b.CheckArgs(n.Args); err != nil {
			return err
		}
		g.sels = append(g.sels, selection{key: n.Key, node: n, binding: b})
	}

	if b, ok := g.table.Lookup(DefaultsField, ns); ok {
		g.defaults = &b
	}
	return nil
}

func (s *state) eagerLoad(g *group) error {
	store := s.exec.reg.Storage()
	if store == nil {
		return nil
	}
	type target struct {
		models    []any
		relations []string
	}
	var order []*registry.Table
	targets := map[*registry.Table]*target{}
	for _, sel := range g.sels {
		if len(sel.binding.Includes) == 0 {
			continue
		}
		owner := sel.binding.Table()
		t := targets[owner]
		if t == nil {
			t = &target{models: make([]any, len(g.models))}
			for i, obj := range g.models {
				t.models[i] = sel.binding.Model(obj)
			}
			targets[owner] = t
			order = append(order, owner)
		}
		for _, rel := range sel.binding.Includes {
			if !slices.Contains(t.relations, rel) {
				t.relations = append(t.relations, rel)
			}
		}
	}
	for _, owner := range order {
		t := targets[owner]
		if err := store.EagerLoad(s.ctx, t.models, t.relations...); err != nil {
			return err
		}
	}
	return nil
}

// filter applies object-level permission and records the surviving objects
// of each group.
func (s *state) filter(groups []*group, m mode, results []result) error {
	type check struct {
		g *group
		b registry.Binding
	}
	var checks []check
	for _, g := range groups {
		g.live = make([]int, len(g.models))
		for i := range g.models {
			g.live[i] = i
		}
		if !m.enabled {
			continue
		}
		if b, ok := g.table.Lookup(m.field, s.namespaces()); ok {
			checks = append(checks, check{g: g, b: b})
		}
	}
	if len(checks) == 0 {
		return nil
	}

	var jobs []*loadJob
	for _, c := range checks {
		jobs = appendJobs(jobs, c.g, c.b, nil)
	}
	if err := s.runJobs(jobs); err != nil {
		return err
	}

	for _, c := range checks {
		preloaded := c.g.preloaded(c.b, nil)
		live := c.g.live[:0]
		for i, obj := range c.g.models {
			v, err := c.b.Resolve(s.ctx, c.b.Model(obj), preloaded, s.cfg.userContext, nil)
			if err != nil {
				return err
			}
			if truthy(v) {
				live = append(live, i)
				continue
			}
			results[c.g.idx[i]] = result{dropped: true}
		}
		c.g.live = live
	}
	return nil
}

func (s *state) resolve(g *group, results []result, m mode) error {
	for _, i := range g.live {
		results[g.idx[i]] = result{out: make(map[string]any, len(g.sels))}
	}

	for _, sel := range g.sels {
		b := sel.binding
		args := sel.node.Args
		preloaded := g.preloaded(b, args)
		batch := &childBatch{}
		for _, i := range g.live {
			obj := b.Model(g.models[i])
			out := results[g.idx[i]].out
			allowed, err := b.Allowed(s.ctx, obj, preloaded, s.cfg.userContext, args)
			if err != nil {
				return err
			}
			if !allowed {
				out[sel.key] = b.Fallback
				continue
			}
			v, err := b.Resolve(s.ctx, obj, preloaded, s.cfg.userContext, args)
			if err != nil {
				return err
			}
			batch.add(out, sel.key, v)
		}
		child := view{only: b.Only, except: b.Except}
		if err := s.flush(batch, sel.node, child, m.child(b.Scope)); err != nil {
			return err
		}
	}

	if g.defaults != nil {
		b := *g.defaults
		preloaded := g.preloaded(b, nil)
		for _, i := range g.live {
			v, err := b.Resolve(s.ctx, b.Model(g.models[i]), preloaded, s.cfg.userContext, nil)
			if err != nil {
				return err
			}
			defaults, _ := v.(map[string]any)
			out := results[g.idx[i]].out
			for k, dv := range defaults {
				if _, ok := out[k]; !ok {
					out[k] = dv
				}
			}
		}
	}

	if s.cfg.includeID {
		for _, i := range g.live {
			if id, ok := s.exec.reg.ID(g.models[i]); ok {
				results[g.idx[i]].out["id"] = id
			}
		}
	}
	return nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	}
	return !isNil(v)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
