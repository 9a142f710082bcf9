package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hanpama/fieldgraph/internal/config"
	"github.com/hanpama/fieldgraph/internal/demo"
	"github.com/hanpama/fieldgraph/internal/eventbus"
	"github.com/hanpama/fieldgraph/internal/executor"
	"github.com/hanpama/fieldgraph/internal/gateway"
	"github.com/hanpama/fieldgraph/internal/introspection"
	"github.com/hanpama/fieldgraph/internal/logging"
	"github.com/hanpama/fieldgraph/internal/persisted"
	"github.com/hanpama/fieldgraph/internal/projector"
	"github.com/hanpama/fieldgraph/internal/registry"
	"github.com/hanpama/fieldgraph/internal/schema"
	"github.com/hanpama/fieldgraph/internal/server"
	"github.com/hanpama/fieldgraph/internal/storage"
	"github.com/hanpama/fieldgraph/internal/storage/gormstore"
	"github.com/hanpama/fieldgraph/internal/typescript"
)

// app is the wired process: storage, registry, executor and gateway.
type app struct {
	cfg  *config.Config
	log  *zap.Logger
	reg  *registry.Registry
	root *registry.Table
	gw   *gateway.Gateway

	closers []func() error
}

// setup loads the configuration for cmd and wires everything the commands
// share. The caller must Close the app.
func setup(ctx context.Context, cmd *cobra.Command, opts ...gateway.Option) (_ *app, err error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(file, cmd.Flags())
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	eventbus.Use(eventbus.New())
	unsubscribe := logging.Subscribe(log)
	a.onClose(func() error { unsubscribe(); return nil })

	store, catalog, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}
	a.reg, a.root, err = newRegistry(store, catalog)
	if err != nil {
		return nil, err
	}
	exec := executor.New(a.reg,
		executor.WithConcurrency(cfg.Executor.Concurrency),
		executor.WithLogger(log))

	ps, err := a.openPersisted(ctx)
	if err != nil {
		return nil, err
	}
	gwOpts := []gateway.Option{gateway.WithUserContext(viewer)}
	if ps != nil {
		gwOpts = append(gwOpts, gateway.WithPersisted(ps))
	}
	a.gw = gateway.New(exec, func(context.Context) (any, error) { return &demo.Query{}, nil },
		append(gwOpts, opts...)...)
	return a, nil
}

func newRegistry(store storage.Storage, catalog demo.Catalog) (*registry.Registry, *registry.Table, error) {
	reg := registry.New(registry.WithStorage(store))
	root, err := demo.Register(reg, store, catalog)
	if err != nil {
		return nil, nil, fmt.Errorf("register demo types: %w", err)
	}
	if err := introspection.Install(reg, root); err != nil {
		return nil, nil, fmt.Errorf("install introspection: %w", err)
	}
	return reg, root, nil
}

func (a *app) openStorage(ctx context.Context) (storage.Storage, demo.Catalog, error) {
	db := a.cfg.Database
	if db.Driver == "memory" {
		s := demo.NewMemStore()
		if db.Seed {
			demo.SeedMemory(s)
		}
		return s, demo.MemCatalog{Store: s}, nil
	}

	gdb, err := gormstore.Open(db.Driver, db.DSN, a.log)
	if err != nil {
		return nil, nil, err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		a.onClose(sqlDB.Close)
	}
	if err := demo.Migrate(gdb.WithContext(ctx)); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	if db.Seed {
		if err := demo.SeedDB(ctx, gdb); err != nil {
			return nil, nil, err
		}
	}
	return gormstore.New(gdb), demo.GormCatalog{DB: gdb}, nil
}

func (a *app) openPersisted(ctx context.Context) (persisted.Store, error) {
	pc := a.cfg.Persisted
	switch pc.Store {
	case "":
		return nil, nil
	case "redis":
		rc := persisted.DefaultRedisConfig()
		rc.Addr = pc.RedisAddr
		rc.DB = pc.RedisDB
		rc.TTL = pc.TTL
		r, err := persisted.NewRedis(ctx, rc)
		if err != nil {
			return nil, err
		}
		a.onClose(r.Close)
		return r, nil
	}
	return persisted.NewMemory(), nil
}

// documents renders the schema files served next to the query endpoint.
func (a *app) documents() (server.Documents, error) {
	p, err := projector.Project(a.reg, a.root)
	if err != nil {
		return server.Documents{}, err
	}
	return server.Documents{
		SDL:        schema.Render(schema.FromProjection(p)),
		TypeScript: typescript.Render(p),
	}, nil
}

func (a *app) onClose(fn func() error) { a.closers = append(a.closers, fn) }

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	_ = a.log.Sync()
	return errors.Join(errs...)
}

// viewer picks the request's user: an explicit context value first, then
// the forwarded identity headers.
func viewer(ctx context.Context) any {
	if v := demo.FromContext(ctx); v != nil {
		return v
	}
	if v := demo.ViewerFromHeader(server.HeadersFromContext(ctx)); v != nil {
		return v
	}
	return nil
}

// namespaces converts flag values.
func namespaces(names []string) []registry.Namespace {
	out := make([]registry.Namespace, len(names))
	for i, n := range names {
		out[i] = registry.Namespace(n)
	}
	return out
}
