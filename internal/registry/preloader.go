package registry

import (
	"context"
	"fmt"
	"slices"
)

// ParamKind declares how a preloader, resolver or permission gate accepts
// field arguments.
type ParamKind int

const (
	// ParamsNone ignores arguments.
	ParamsNone ParamKind = iota
	// ParamsPositional receives the argument value whole, whatever its shape.
	ParamsPositional
	// ParamsNamed receives only the declared Required and Optional keys.
	ParamsNamed
	// ParamsOpen receives every key of an argument object.
	ParamsOpen
)

// Signature is the declared calling convention of a function attached to a
// field. It replaces any inspection of the function itself.
type Signature struct {
	Context  bool
	Params   ParamKind
	Required []string
	Optional []string
}

func (s Signature) accepts(name string) bool {
	switch s.Params {
	case ParamsPositional, ParamsOpen:
		return true
	case ParamsNamed:
		return slices.Contains(s.Required, name) || slices.Contains(s.Optional, name)
	}
	return false
}

// bind selects the context and parameters a function with this signature
// receives.
func (s Signature) bind(userContext any, args any) (any, any, error) {
	var c any
	if s.Context {
		c = userContext
	}
	switch s.Params {
	case ParamsNone:
		return c, nil, nil
	case ParamsPositional:
		return c, args, nil
	}
	m, ok := args.(map[string]any)
	if !ok && args != nil {
		return nil, nil, invalidQuery("arguments must be an object, got %T", args)
	}
	if s.Params == ParamsOpen {
		if m == nil {
			m = map[string]any{}
		}
		return c, m, nil
	}
	out := make(map[string]any, len(s.Required)+len(s.Optional))
	for _, name := range s.Required {
		v, ok := m[name]
		if !ok {
			return nil, nil, invalidQuery("missing required argument %q", name)
		}
		out[name] = v
	}
	for _, name := range s.Optional {
		if v, ok := m[name]; ok {
			out[name] = v
		}
	}
	return c, out, nil
}

// Batch is the input of one preloader invocation.
type Batch struct {
	Models     []any
	Context    any
	Params     any
	Namespaces []Namespace
}

// LoadFunc computes auxiliary data for a whole group of objects.
type LoadFunc func(ctx context.Context, b Batch) (any, error)

// Preloader is a batch function shared by the fields that reference it.
// Invocations are deduplicated by pointer identity and argument value.
type Preloader struct {
	Name      string
	Signature Signature
	load      LoadFunc
}

// NewPreloader wraps load with its declared signature.
func NewPreloader(load LoadFunc, sig Signature) *Preloader {
	return &Preloader{Signature: sig, load: load}
}

// PreloadFunc adapts a typed batch function that ignores context and
// arguments.
func PreloadFunc[T any, R any](fn func(ctx context.Context, models []T) (R, error)) *Preloader {
	return NewPreloader(func(ctx context.Context, b Batch) (any, error) {
		return fn(ctx, Models[T](b.Models))
	}, Signature{})
}

// Models converts a batch to a typed slice, skipping foreign values.
func Models[T any](models []any) []T {
	out := make([]T, 0, len(models))
	for _, m := range models {
		if t, ok := m.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// Load runs the preloader for models with the given user context and field
// arguments, filtered through its signature.
func (p *Preloader) Load(ctx context.Context, models []any, userContext any, args any, namespaces []Namespace) (any, error) {
	c, params, err := p.Signature.bind(userContext, args)
	if err != nil {
		return nil, err
	}
	out, err := p.load(ctx, Batch{Models: models, Context: c, Params: params, Namespaces: namespaces})
	if err != nil {
		name := p.Name
		if name == "" {
			name = "anonymous"
		}
		return nil, fmt.Errorf("preloader %s: %w", name, err)
	}
	return out, nil
}

// Input is what a resolver or permission gate receives for one object.
type Input struct {
	Preloaded []any
	Context   any
	Params    any
}

// ResolveFunc computes a field's value for one object.
type ResolveFunc func(ctx context.Context, obj any, in Input) (any, error)

// PermissionFunc decides whether a field is visible on one object.
type PermissionFunc func(ctx context.Context, obj any, in Input) (bool, error)

// Resolve adapts a typed resolver.
func Resolve[T any](fn func(ctx context.Context, obj T, in Input) (any, error)) ResolveFunc {
	return func(ctx context.Context, obj any, in Input) (any, error) {
		t, ok := obj.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("resolver expects %T, got %T", zero, obj)
		}
		return fn(ctx, t, in)
	}
}

// Allow adapts a typed permission gate.
func Allow[T any](fn func(ctx context.Context, obj T, in Input) (bool, error)) PermissionFunc {
	return func(ctx context.Context, obj any, in Input) (bool, error) {
		t, ok := obj.(T)
		if !ok {
			return false, nil
		}
		return fn(ctx, t, in)
	}
}
