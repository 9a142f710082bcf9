package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/hanpama/fieldgraph/internal/grpcapi"
	"github.com/hanpama/fieldgraph/internal/otel"
	"github.com/hanpama/fieldgraph/internal/server"
)

const shutdownTimeout = 5 * time.Second

// identityHeaders are forwarded to the viewer lookup.
var identityHeaders = []string{"X-User-Id", "X-User-Role"}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP endpoint and, optionally, the gRPC service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			shutdown, err := otel.Setup(a.cfg.Telemetry.OTLPEndpoint, a.cfg.Telemetry.ServiceName)
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(context.Background()) }()

			return a.serve(ctx)
		},
	}
	f := cmd.Flags()
	f.String("addr", ":8080", "HTTP listen address")
	f.String("grpc-addr", "", "gRPC listen address; empty disables gRPC")
	f.String("persisted", "memory", "Persisted query store: memory or redis")
	f.String("redis-addr", "localhost:6379", "Redis address for persisted queries")
	f.String("otlp", "", "OTLP collector endpoint")
	return cmd
}

// handler is the HTTP surface: query endpoint, schema documents and health.
func (a *app) handler() (http.Handler, error) {
	docs, err := a.documents()
	if err != nil {
		return nil, err
	}
	sc := a.cfg.Server
	opts := []server.Option{
		server.WithTimeout(sc.Timeout),
		server.WithMaxBodyBytes(sc.MaxBodyBytes),
		server.WithForwardHeaders(identityHeaders...),
	}
	if sc.Pretty {
		opts = append(opts, server.WithPretty())
	}
	if len(sc.CORSOrigins) > 0 {
		opts = append(opts, server.WithCORS(sc.CORSOrigins...))
	}
	return server.Router(server.New(a.gw, opts...), docs), nil
}

// serve runs until ctx is done or a listener fails.
func (a *app) serve(ctx context.Context) error {
	h, err := a.handler()
	if err != nil {
		return err
	}
	var lis net.Listener
	if addr := a.cfg.GRPC.Addr; addr != "" {
		if lis, err = net.Listen("tcp", addr); err != nil {
			return err
		}
	}
	httpSrv := &http.Server{Addr: a.cfg.Server.Addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("http listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})

	if lis != nil {
		gs := grpc.NewServer(grpc.UnaryInterceptor(grpcapi.UnaryInterceptor))
		grpcapi.Register(gs, a.gw)
		g.Go(func() error {
			a.log.Info("grpc listening", zap.String("addr", lis.Addr().String()))
			return gs.Serve(lis)
		})
		g.Go(func() error {
			<-ctx.Done()
			gs.GracefulStop()
			return nil
		})
	}
	return g.Wait()
}
