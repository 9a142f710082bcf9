package executor

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hanpama/fieldgraph/internal/eventbus"
	"github.com/hanpama/fieldgraph/internal/events"
	"github.com/hanpama/fieldgraph/internal/registry"
)

// loadKey identifies one preloader invocation within a group.
type loadKey struct {
	preloader *registry.Preloader
	args      string
}

func keyOf(p *registry.Preloader, args any) loadKey {
	return loadKey{preloader: p, args: canonicalArgs(args)}
}

// canonicalArgs renders args so that equal values compare equal. Map keys
// are sorted by encoding/json.
func canonicalArgs(args any) string {
	if args == nil {
		return ""
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%#v", args)
	}
	return string(b)
}

type loadJob struct {
	g    *group
	b    registry.Binding
	p    *registry.Preloader
	args any
	key  loadKey
	out  any
}

// appendJobs queues the preloaders of b that have not run for g yet.
func appendJobs(jobs []*loadJob, g *group, b registry.Binding, args any) []*loadJob {
	for _, p := range b.Preloaders {
		key := keyOf(p, args)
		if _, ok := g.loaded[key]; ok {
			continue
		}
		g.loaded[key] = nil
		jobs = append(jobs, &loadJob{g: g, b: b, p: p, args: args, key: key})
	}
	return jobs
}

func (g *group) preloaded(b registry.Binding, args any) []any {
	if len(b.Preloaders) == 0 {
		return nil
	}
	out := make([]any, len(b.Preloaders))
	for i, p := range b.Preloaders {
		out[i] = g.loaded[keyOf(p, args)]
	}
	return out
}

// preload runs every preloader the selections of the level need. No
// resolver starts before all of them have returned.
func (s *state) preload(groups []*group) error {
	var jobs []*loadJob
	for _, g := range groups {
		if len(g.live) == 0 {
			continue
		}
		for _, sel := range g.sels {
			jobs = appendJobs(jobs, g, sel.binding, sel.node.Args)
		}
		if g.defaults != nil {
			jobs = appendJobs(jobs, g, *g.defaults, nil)
		}
	}
	return s.runJobs(jobs)
}

func (s *state) runJobs(jobs []*loadJob) error {
	if len(jobs) == 0 {
		return nil
	}
	if s.exec.concurrency == 1 || len(jobs) == 1 {
		for _, j := range jobs {
			if err := s.runJob(j); err != nil {
				return err
			}
		}
	} else {
		eg, ctx := errgroup.WithContext(s.ctx)
		eg.SetLimit(s.exec.concurrency)
		sub := *s
		sub.ctx = ctx
		for _, j := range jobs {
			eg.Go(func() error { return sub.runJob(j) })
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	}
	for _, j := range jobs {
		j.g.loaded[j.key] = j.out
	}
	return nil
}

func (s *state) runJob(j *loadJob) error {
	models := make([]any, len(j.g.live))
	for i, idx := range j.g.live {
		models[i] = j.b.Model(j.g.models[idx])
	}
	name := j.p.Name
	if name == "" {
		name = j.b.Name
	}
	id := s.exec.preloadSeq.Add(1)
	typ := j.g.table.Name()
	eventbus.Publish(s.ctx, events.PreloadStart{ID: id, Type: typ, Preloader: name, Size: len(models)})
	start := time.Now()
	out, err := j.p.Load(s.ctx, models, s.cfg.userContext, j.args, s.cfg.namespaces)
	took := time.Since(start)
	eventbus.Publish(s.ctx, events.PreloadFinish{ID: id, Type: typ, Preloader: name, Size: len(models), Err: err, Duration: took})
	s.exec.logger.Debug("preload",
		zap.String("type", typ),
		zap.String("preloader", name),
		zap.Int("size", len(models)),
		zap.Duration("took", took),
		zap.Error(err),
	)
	if err != nil {
		return err
	}
	j.out = out
	return nil
}
