package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hanpama/fieldgraph/internal/eventbus"
	"github.com/hanpama/fieldgraph/internal/events"
	"github.com/hanpama/fieldgraph/internal/reqid"
)

func TestSpansNestByRequest(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	unsubscribe := Subscribe(tp.Tracer("test"))
	defer unsubscribe()

	ctx, _ := reqid.NewContext(context.Background())
	r := httptest.NewRequest("POST", "/graphql", nil)
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	eventbus.Publish(ctx, events.QueryStart{Query: "{ a }"})
	eventbus.Publish(ctx, events.SerializeStart{Root: "User"})
	eventbus.Publish(ctx, events.PreloadStart{ID: 1, Type: "User", Preloader: "posts", Size: 2})
	eventbus.Publish(ctx, events.PreloadFinish{ID: 1, Err: errors.New("boom")})
	eventbus.Publish(ctx, events.SerializeFinish{Root: "User"})
	eventbus.Publish(ctx, events.QueryFinish{})
	eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: 200})

	spans := rec.Ended()
	require.Len(t, spans, 4)
	byName := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		byName[s.Name()] = s
	}
	httpSpan := byName["http.request"]
	require.NotNil(t, httpSpan)
	assert.Equal(t, httpSpan.SpanContext().SpanID(), byName["fieldgraph.query"].Parent().SpanID())
	assert.Equal(t, byName["fieldgraph.query"].SpanContext().SpanID(), byName["fieldgraph.serialize"].Parent().SpanID())
	assert.Equal(t, byName["fieldgraph.serialize"].SpanContext().SpanID(), byName["fieldgraph.preload"].Parent().SpanID())
	assert.Len(t, byName["fieldgraph.preload"].Events(), 1, "preload error is recorded")
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup("", "svc")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSplitMethod(t *testing.T) {
	svc, m := splitMethod("/fieldgraph.v1.Query/Execute")
	assert.Equal(t, "fieldgraph.v1.Query", svc)
	assert.Equal(t, "Execute", m)
}
