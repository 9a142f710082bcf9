package grpcapi

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hanpama/fieldgraph/internal/eventbus"
	"github.com/hanpama/fieldgraph/internal/events"
	"github.com/hanpama/fieldgraph/internal/executor"
	"github.com/hanpama/fieldgraph/internal/gateway"
	"github.com/hanpama/fieldgraph/internal/registry"
	"github.com/hanpama/fieldgraph/internal/reqid"
)

type account struct {
	Handle string
	Tags   []string
}

func newClient(t *testing.T) (*Client, *string) {
	t.Helper()
	var seenID string
	reg := registry.New()
	accounts := reg.Define(&account{}, "Account")
	require.NoError(t, accounts.Fields("handle", "tags"))
	require.NoError(t, accounts.Field("request_id", registry.Resolver(func(ctx context.Context, _ any, _ registry.Input) (any, error) {
		seenID, _ = reqid.FromContext(ctx)
		return seenID, nil
	})))
	gw := gateway.New(executor.New(reg), func(context.Context) (any, error) {
		return &account{Handle: "ann", Tags: []string{"a", "b"}}, nil
	})

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryInterceptor))
	Register(srv, gw)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := Dial("passthrough:///bufnet", WithDialOptions(
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, &seenID
}

func TestExecute(t *testing.T) {
	c, _ := newClient(t)
	data, err := c.Execute(context.Background(), gateway.Request{Query: "{ handle tags }"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"handle": "ann", "tags": []any{"a", "b"}}, data)

	data, err = c.Execute(context.Background(), gateway.Request{Query: map[string]any{"handle": true}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"handle": "ann"}, data)
}

func TestExecuteStatusCodes(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	_, err := c.Execute(ctx, gateway.Request{Query: "{ handle"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Execute(ctx, gateway.Request{Query: "{ missing }"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "missing")
}

func TestRequestIDAndEvents(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	defer eventbus.Use(nil)
	var finished []events.GRPCServerFinish
	eventbus.Subscribe(func(_ context.Context, e events.GRPCServerFinish) { finished = append(finished, e) })

	c, seen := newClient(t)
	ctx, id := reqid.NewContext(context.Background())
	_, err := c.Execute(ctx, gateway.Request{Query: "{ request_id }"})
	require.NoError(t, err)
	assert.Equal(t, id, *seen)

	require.Len(t, finished, 1)
	assert.Equal(t, ExecuteMethod, finished[0].Method)
	assert.Equal(t, codes.OK, finished[0].Code)
}

func TestEncode(t *testing.T) {
	s, err := encode(map[string]any{"n": 1, "list": []string{"x"}, "nested": map[string]int{"k": 2}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": float64(1), "list": []any{"x"}, "nested": map[string]any{"k": float64(2)}}, s.AsMap())

	req, err := decodeRequest(&structpb.Struct{Fields: map[string]*structpb.Value{
		"query":         structpb.NewStringValue("{ a }"),
		"operationName": structpb.NewStringValue("Op"),
	}})
	require.NoError(t, err)
	assert.Equal(t, "{ a }", req.Query)
	assert.Equal(t, "Op", req.OperationName)
}
