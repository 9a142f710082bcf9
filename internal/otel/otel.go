// Package otel turns engine and transport events into OpenTelemetry spans.
package otel

import (
	"context"
	"strings"
	"sync"

	"github.com/hanpama/fieldgraph/internal/eventbus"
	"github.com/hanpama/fieldgraph/internal/events"
	"github.com/hanpama/fieldgraph/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := Subscribe(tp.Tracer("fieldgraph"))
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Subscribe records spans with tracer until the returned function is called.
// Spans are correlated by request id: serialize spans nest under the query
// span, which nests under the HTTP or gRPC span.
func Subscribe(tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	return s.register()
}

type subscriber struct {
	tracer       trace.Tracer
	httpSpans    sync.Map // rid -> trace.Span
	grpcSpans    sync.Map // rid -> trace.Span
	querySpans   sync.Map // rid -> trace.Span
	serialSpans  sync.Map // rid -> trace.Span
	preloadSpans sync.Map // preload id -> trace.Span
}

func (s *subscriber) parent(ctx context.Context, rid string, maps ...*sync.Map) context.Context {
	for _, m := range maps {
		if v, ok := m.Load(rid); ok {
			return trace.ContextWithSpan(ctx, v.(trace.Span))
		}
	}
	return ctx
}

func end(m *sync.Map, key any, err error, attrs ...attribute.KeyValue) {
	v, ok := m.LoadAndDelete(key)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *subscriber) register() func() {
	var unsubs []func()
	on := func(u func()) { unsubs = append(unsubs, u) }

	on(eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
		span.SetAttributes(
			semconv.HTTPMethodKey.String(e.Request.Method),
			attribute.String("http.target", e.Request.URL.Path),
		)
		s.httpSpans.Store(rid, span)
	}))
	on(eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		rid, _ := reqid.FromContext(ctx)
		end(&s.httpSpans, rid, nil,
			semconv.HTTPStatusCodeKey.Int(e.Status),
			semconv.HTTPRouteKey.String(e.Route))
	}))

	on(eventbus.Subscribe(func(ctx context.Context, e events.GRPCServerStart) {
		rid, _ := reqid.FromContext(ctx)
		service, method := splitMethod(e.Method)
		_, span := s.tracer.Start(ctx, "grpc.server", trace.WithSpanKind(trace.SpanKindServer))
		span.SetAttributes(
			semconv.RPCServiceKey.String(service),
			semconv.RPCMethodKey.String(method),
			attribute.String("net.peer.name", e.Peer),
		)
		s.grpcSpans.Store(rid, span)
	}))
	on(eventbus.Subscribe(func(ctx context.Context, e events.GRPCServerFinish) {
		rid, _ := reqid.FromContext(ctx)
		end(&s.grpcSpans, rid, e.Err, attribute.String("grpc.code", e.Code.String()))
	}))

	on(eventbus.Subscribe(func(ctx context.Context, e events.QueryStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(s.parent(ctx, rid, &s.httpSpans, &s.grpcSpans), "fieldgraph.query")
		span.SetAttributes(
			attribute.String("fieldgraph.operation.name", e.OperationName),
			attribute.Bool("fieldgraph.persisted", e.Persisted),
		)
		s.querySpans.Store(rid, span)
	}))
	on(eventbus.Subscribe(func(ctx context.Context, e events.QueryFinish) {
		rid, _ := reqid.FromContext(ctx)
		var err error
		if len(e.Errors) > 0 {
			err = e.Errors[0]
		}
		end(&s.querySpans, rid, err, attribute.Int("fieldgraph.error_count", len(e.Errors)))
	}))

	on(eventbus.Subscribe(func(ctx context.Context, e events.SerializeStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(s.parent(ctx, rid, &s.querySpans, &s.httpSpans, &s.grpcSpans), "fieldgraph.serialize")
		span.SetAttributes(
			attribute.String("fieldgraph.root", e.Root),
			attribute.StringSlice("fieldgraph.namespaces", e.Namespaces),
		)
		s.serialSpans.Store(rid, span)
	}))
	on(eventbus.Subscribe(func(ctx context.Context, e events.SerializeFinish) {
		rid, _ := reqid.FromContext(ctx)
		end(&s.serialSpans, rid, e.Err)
	}))

	on(eventbus.Subscribe(func(ctx context.Context, e events.PreloadStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(s.parent(ctx, rid, &s.serialSpans), "fieldgraph.preload")
		span.SetAttributes(
			attribute.String("fieldgraph.type", e.Type),
			attribute.String("fieldgraph.preloader", e.Preloader),
			attribute.Int("fieldgraph.batch_size", e.Size),
		)
		s.preloadSpans.Store(e.ID, span)
	}))
	on(eventbus.Subscribe(func(ctx context.Context, e events.PreloadFinish) {
		end(&s.preloadSpans, e.ID, e.Err)
	}))

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func splitMethod(full string) (service, method string) {
	full = strings.TrimPrefix(full, "/")
	if i := strings.LastIndex(full, "/"); i >= 0 {
		return full[:i], full[i+1:]
	}
	return "", full
}
