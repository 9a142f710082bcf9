package events

import (
	"time"

	"google.golang.org/grpc/codes"
)

// GRPCServerStart is emitted when a gRPC call is received.
type GRPCServerStart struct {
	Method string
	Peer   string
}

// GRPCServerFinish is emitted after a gRPC handler returns.
type GRPCServerFinish struct {
	Method   string
	Peer     string
	Code     codes.Code
	Err      error
	Duration time.Duration
}
