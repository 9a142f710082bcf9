package grpcapi

import (
	"context"
	"encoding/json"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hanpama/fieldgraph/internal/gateway"
	"github.com/hanpama/fieldgraph/internal/reqid"
)

// Options configures a Client.
//
// Defaults:
// - RPCTimeout:  3s (used only if the context has no deadline)
// - DialOptions: insecure credentials
type Options struct {
	RPCTimeout  time.Duration
	DialOptions []grpc.DialOption
}

type Option func(*Options)

func WithRPCTimeout(d time.Duration) Option { return func(o *Options) { o.RPCTimeout = d } }
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *Options) { o.DialOptions = opts }
}

// Client calls fieldgraph.v1.Query/Execute.
type Client struct {
	conn *grpc.ClientConn
	opts Options
}

// Dial connects to target.
func Dial(target string, opts ...Option) (*Client, error) {
	o := Options{RPCTimeout: 3 * time.Second}
	for _, f := range opts {
		f(&o)
	}
	if len(o.DialOptions) == 0 {
		o.DialOptions = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, o.DialOptions...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, opts: o}, nil
}

// Close closes the connection.
func (c *Client) Close() error { return c.conn.Close() }

// Execute sends req and decodes the response data.
func (c *Client) Execute(ctx context.Context, req gateway.Request) (any, error) {
	if _, ok := ctx.Deadline(); !ok && c.opts.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RPCTimeout)
		defer cancel()
	}
	if id, ok := reqid.FromContext(ctx); ok {
		ctx = metadata.AppendToOutgoingContext(ctx, reqid.Header, id)
	}
	in, err := encode(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, ExecuteMethod, in, out); err != nil {
		return nil, err
	}
	var res struct {
		Data any `json:"data"`
	}
	b, err := json.Marshal(out.AsMap())
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}
