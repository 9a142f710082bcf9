// Package grpcapi serves a gateway as the gRPC method
// fieldgraph.v1.Query/Execute. Requests and responses are
// google.protobuf.Struct values shaped like the HTTP JSON bodies.
package grpcapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hanpama/fieldgraph/internal/eventbus"
	"github.com/hanpama/fieldgraph/internal/events"
	"github.com/hanpama/fieldgraph/internal/gateway"
	"github.com/hanpama/fieldgraph/internal/reqid"
)

const (
	ServiceName   = "fieldgraph.v1.Query"
	ExecuteMethod = "/" + ServiceName + "/Execute"
)

// QueryServer is the server API of fieldgraph.v1.Query.
type QueryServer interface {
	Execute(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes fieldgraph.v1.Query for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QueryServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Execute",
		Handler:    executeHandler,
	}},
	Metadata: "fieldgraph/v1/query.proto",
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExecuteMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QueryServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Service implements QueryServer over a gateway.
type Service struct {
	gw *gateway.Gateway
}

func NewService(gw *gateway.Gateway) *Service { return &Service{gw: gw} }

// Register adds the service to s.
func Register(s *grpc.Server, gw *gateway.Gateway) {
	s.RegisterService(&ServiceDesc, NewService(gw))
}

// Execute runs one request. Request-caused failures become InvalidArgument;
// other failures become Internal. The error list is also kept in the
// response body.
func (s *Service) Execute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res := s.gw.Execute(ctx, req)
	if res.Err != nil {
		code := codes.Internal
		if gateway.IsClientError(res.Err) {
			code = codes.InvalidArgument
		}
		return nil, status.Error(code, res.Errors[0].Message)
	}
	return encode(res)
}

func decodeRequest(in *structpb.Struct) (gateway.Request, error) {
	var req gateway.Request
	b, err := json.Marshal(in.AsMap())
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(b, &req); err != nil {
		return req, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}

// encode converts v to a Struct through its JSON form, so typed slices and
// maps produced by resolvers become plain lists and objects.
func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// UnaryInterceptor assigns request ids from incoming metadata and publishes
// gRPC server events.
func UnaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	var id string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(reqid.Header); len(v) > 0 {
			id = v[0]
		}
	}
	ctx, _ = reqid.WithID(ctx, id)
	addr := ""
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr = p.Addr.String()
	}
	start := time.Now()
	eventbus.Publish(ctx, events.GRPCServerStart{Method: info.FullMethod, Peer: addr})
	resp, err := handler(ctx, req)
	eventbus.Publish(ctx, events.GRPCServerFinish{
		Method:   info.FullMethod,
		Peer:     addr,
		Code:     status.Code(err),
		Err:      err,
		Duration: time.Since(start),
	})
	return resp, err
}
