// Package gateway turns transport-neutral requests into serialized
// responses: it resolves persisted queries, parses text or structural
// queries, picks the root object and runs the executor.
package gateway

import (
	"context"
	"time"

	"github.com/hanpama/fieldgraph/internal/eventbus"
	"github.com/hanpama/fieldgraph/internal/events"
	"github.com/hanpama/fieldgraph/internal/executor"
	"github.com/hanpama/fieldgraph/internal/persisted"
	"github.com/hanpama/fieldgraph/internal/query"
)

// RootFunc returns the object a request is serialized against.
type RootFunc func(ctx context.Context) (any, error)

// Gateway executes requests against one root.
type Gateway struct {
	exec      *executor.Executor
	root      RootFunc
	persisted persisted.Store
	userCtx   func(context.Context) any
	callOpts  []executor.CallOption
}

type Option func(*Gateway)

// WithPersisted enables persisted queries backed by s.
func WithPersisted(s persisted.Store) Option { return func(g *Gateway) { g.persisted = s } }

// WithUserContext derives the value passed to resolvers and permissions as
// their context argument.
func WithUserContext(fn func(context.Context) any) Option {
	return func(g *Gateway) { g.userCtx = fn }
}

// WithCallOptions appends executor options applied to every request.
func WithCallOptions(opts ...executor.CallOption) Option {
	return func(g *Gateway) { g.callOpts = append(g.callOpts, opts...) }
}

// New returns a gateway serializing with exec from the object root returns.
func New(exec *executor.Executor, root RootFunc, opts ...Option) *Gateway {
	g := &Gateway{exec: exec, root: root}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Execute runs one request. Failures are reported in the response; data is
// nil whenever errors are present.
func (g *Gateway) Execute(ctx context.Context, req Request) Response {
	start := time.Now()
	text, _ := req.Query.(string)
	persistedText := false
	var errs []error
	defer func() {
		eventbus.Publish(ctx, events.QueryFinish{
			Query:         text,
			OperationName: req.OperationName,
			Errors:        errs,
			Duration:      time.Since(start),
		})
	}()

	q, err := g.parse(ctx, req, &text, &persistedText)
	eventbus.Publish(ctx, events.QueryStart{Query: text, OperationName: req.OperationName, Persisted: persistedText})
	if err != nil {
		errs = append(errs, err)
		return errorResponse(err)
	}
	root, err := g.root(ctx)
	if err != nil {
		errs = append(errs, err)
		return errorResponse(err)
	}
	opts := g.callOpts
	if g.userCtx != nil {
		opts = append(opts[:len(opts):len(opts)], executor.WithContext(g.userCtx(ctx)))
	}
	data, err := g.exec.Serialize(ctx, root, q, opts...)
	if err != nil {
		errs = append(errs, err)
		return errorResponse(err)
	}
	return Response{Data: data}
}

func (g *Gateway) parse(ctx context.Context, req Request, text *string, fromStore *bool) (*query.Node, error) {
	if pq := req.Extensions.PersistedQuery; pq != nil && pq.SHA256Hash != "" {
		if g.persisted == nil {
			return nil, ErrPersistedQueryNotSupported
		}
		*fromStore = *text == ""
		resolved, err := persisted.Resolve(ctx, g.persisted, *text, pq.SHA256Hash)
		if err != nil {
			return nil, err
		}
		*text = resolved
		return query.Parse(resolved, req.OperationName, req.Variables)
	}
	switch v := req.Query.(type) {
	case nil:
		return nil, ErrMissingQuery
	case string:
		if v == "" {
			return nil, ErrMissingQuery
		}
		return query.Parse(v, req.OperationName, req.Variables)
	}
	return query.ParseStructural(req.Query)
}
