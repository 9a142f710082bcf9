// Package logging builds the process logger and logs engine and transport
// events from the event bus.
package logging

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hanpama/fieldgraph/internal/eventbus"
	"github.com/hanpama/fieldgraph/internal/events"
	"github.com/hanpama/fieldgraph/internal/reqid"
)

// New builds a zap logger at level ("debug", "info", "warn", "error").
// Development loggers are human readable.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func withRequest(ctx context.Context, fields ...zap.Field) []zap.Field {
	if rid, ok := reqid.FromContext(ctx); ok {
		return append(fields, zap.String("request_id", rid))
	}
	return fields
}

// Subscribe logs events with log until the returned function is called.
// Requests and queries are logged at info, serializer internals at debug,
// failures at warn or error.
func Subscribe(log *zap.Logger) (unsubscribe func()) {
	var unsubs []func()
	on := func(u func()) { unsubs = append(unsubs, u) }

	on(eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		log.Info("http request", withRequest(ctx,
			zap.String("method", e.Request.Method),
			zap.String("path", e.Request.URL.Path),
			zap.String("route", e.Route),
			zap.Int("status", e.Status),
			zap.Int("bytes", e.Bytes),
			zap.Duration("duration", e.Duration))...)
	}))
	on(eventbus.Subscribe(func(ctx context.Context, e events.GRPCServerFinish) {
		fields := withRequest(ctx,
			zap.String("method", e.Method),
			zap.String("peer", e.Peer),
			zap.Stringer("code", e.Code),
			zap.Duration("duration", e.Duration))
		if e.Err != nil {
			log.Warn("grpc call failed", append(fields, zap.Error(e.Err))...)
			return
		}
		log.Info("grpc call", fields...)
	}))
	on(eventbus.Subscribe(func(ctx context.Context, e events.QueryFinish) {
		fields := withRequest(ctx,
			zap.String("operation", e.OperationName),
			zap.Duration("duration", e.Duration))
		if len(e.Errors) > 0 {
			log.Warn("query failed", append(fields, zap.Errors("errors", e.Errors))...)
			return
		}
		log.Info("query", fields...)
	}))
	on(eventbus.Subscribe(func(ctx context.Context, e events.SerializeFinish) {
		fields := withRequest(ctx, zap.String("root", e.Root), zap.Duration("duration", e.Duration))
		if e.Err != nil {
			log.Debug("serialize failed", append(fields, zap.Error(e.Err))...)
			return
		}
		log.Debug("serialize", fields...)
	}))
	on(eventbus.Subscribe(func(ctx context.Context, e events.PreloadFinish) {
		fields := withRequest(ctx,
			zap.String("type", e.Type),
			zap.String("preloader", e.Preloader),
			zap.Int("size", e.Size),
			zap.Duration("duration", e.Duration))
		if e.Err != nil {
			log.Error("preload failed", append(fields, zap.Error(e.Err))...)
			return
		}
		log.Debug("preload", fields...)
	}))

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
