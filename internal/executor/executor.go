package executor

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/hanpama/fieldgraph/internal/eventbus"
	"github.com/hanpama/fieldgraph/internal/events"
	"github.com/hanpama/fieldgraph/internal/query"
	"github.com/hanpama/fieldgraph/internal/registry"
	"go.uber.org/zap"
)

// DefaultPermissionField is the object-level permission field checked unless
// a call overrides it.
const DefaultPermissionField = "permission"

// DefaultsField names the optional per-type field whose resolved map is
// merged into every output object.
const DefaultsField = "defaults"

// Executor serializes registered models.
type Executor struct {
	reg         *registry.Registry
	concurrency int
	logger      *zap.Logger
	preloadSeq  atomic.Uint64
}

// Option configures an Executor.
type Option func(*Executor)

// WithConcurrency runs up to n preloaders of one level at the same time.
func WithConcurrency(n int) Option {
	return func(e *Executor) { e.concurrency = n }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New creates an executor over reg.
func New(reg *registry.Registry, opts ...Option) *Executor {
	e := &Executor{reg: reg, concurrency: 1, logger: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	return e
}

// Registry returns the registry the executor reads.
func (e *Executor) Registry() *registry.Registry { return e.reg }

type callConfig struct {
	userContext any
	namespaces  []registry.Namespace
	permission  mode
	includeID   bool
}

// mode is the object-level permission check applied to a level.
type mode struct {
	field   string
	enabled bool
}

func (m mode) child(scope registry.Scope) mode {
	switch {
	case scope.Disabled:
		return mode{}
	case scope.Field != "":
		return mode{field: scope.Field, enabled: true}
	}
	return m
}

// CallOption configures one Serialize call.
type CallOption func(*callConfig)

// WithContext passes a user value to preloaders, resolvers and permission
// gates that declare a context parameter.
func WithContext(v any) CallOption {
	return func(c *callConfig) { c.userContext = v }
}

// WithNamespaces activates namespaces in priority order.
func WithNamespaces(ns ...registry.Namespace) CallOption {
	return func(c *callConfig) { c.namespaces = append(c.namespaces, ns...) }
}

// WithPermission checks the named field instead of "permission".
func WithPermission(field string) CallOption {
	return func(c *callConfig) { c.permission = mode{field: field, enabled: true} }
}

// WithoutPermission disables object-level permission for the call.
func WithoutPermission() CallOption {
	return func(c *callConfig) { c.permission = mode{} }
}

// WithIncludeID adds the primary key as "id" to every output object.
func WithIncludeID() CallOption {
	return func(c *callConfig) { c.includeID = true }
}

// Serialize renders root against q. A registered model yields a map, a
// slice yields a list without the objects denied by permission, nil yields
// nil. Any other value is returned unchanged.
func (e *Executor) Serialize(ctx context.Context, root any, q *query.Node, opts ...CallOption) (out any, err error) {
	cfg := callConfig{permission: mode{field: DefaultPermissionField, enabled: true}}
	for _, o := range opts {
		o(&cfg)
	}
	if q == nil {
		q = &query.Node{}
	}

	rootName := e.typeName(root)
	ns := make([]string, len(cfg.namespaces))
	for i, n := range cfg.namespaces {
		ns[i] = string(n)
	}
	start := time.Now()
	eventbus.Publish(ctx, events.SerializeStart{Root: rootName, Namespaces: ns})
	defer func() {
		eventbus.Publish(ctx, events.SerializeFinish{Root: rootName, Err: err, Duration: time.Since(start)})
	}()

	s := &state{exec: e, ctx: ctx, cfg: cfg}
	switch v := root.(type) {
	case nil:
		return nil, nil
	case registry.Value:
		return s.resolveValue(v, q, view{}, cfg.permission)
	}
	if _, ok := e.reg.TableOf(root); ok {
		return s.resolveValue(registry.Ref{Model: root}, q, view{}, cfg.permission)
	}
	if rv := reflect.ValueOf(root); rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		models := make([]any, rv.Len())
		for i := range models {
			models[i] = rv.Index(i).Interface()
		}
		return s.resolveValue(registry.Refs(models), q, view{}, cfg.permission)
	}
	return root, nil
}

func (e *Executor) typeName(v any) string {
	if v == nil {
		return "nil"
	}
	if t, ok := e.reg.TableOf(v); ok {
		return t.Name()
	}
	rt := reflect.TypeOf(v)
	if rt.Kind() == reflect.Slice {
		if t, ok := e.reg.Table(rt.Elem()); ok {
			return "[" + t.Name() + "]"
		}
	}
	return fmt.Sprintf("%T", v)
}
