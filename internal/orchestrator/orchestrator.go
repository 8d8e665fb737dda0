// Package orchestrator fans collection work out across (entity, source)
// pairs. It resolves the entities a request targets, builds a fresh collector
// per task from the registry, runs tasks under a concurrency bound, and
// aggregates the results. Entity data is never written here; the run and its
// per-task outcomes are recorded through the injected store as a side
// observation of orchestration.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pe-intel/internal/collector"
	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/store"
)

// EntityResolver loads the entities a request targets from the reference
// tables. persist.Catalog implements it.
type EntityResolver interface {
	ResolveEntities(ctx context.Context, req model.Request) ([]model.Entity, error)
}

// Progress is a point-in-time snapshot of a running orchestration.
// CurrentEntity and CurrentSource name the most recently started task.
type Progress struct {
	Total         int          `json:"total"`
	Completed     int          `json:"completed"`
	Successful    int          `json:"successful"`
	Failed        int          `json:"failed"`
	CurrentEntity string       `json:"current_entity,omitempty"`
	CurrentSource model.Source `json:"current_source,omitempty"`
}

// Orchestrator executes collection requests. Safe for one Run at a time;
// Progress and RunRecord may be read concurrently from other goroutines.
type Orchestrator struct {
	registry *collector.Registry
	resolver EntityResolver
	store    store.Store // run tracking; nil disables recording
	deps     collector.Deps
	log      *zap.Logger

	mu       sync.Mutex
	progress Progress
	run      *model.Run
}

// New wires an orchestrator. The store is optional: a nil store runs the
// pipeline without recording run or task rows.
func New(reg *collector.Registry, resolver EntityResolver, st store.Store, deps collector.Deps) *Orchestrator {
	return &Orchestrator{
		registry: reg,
		resolver: resolver,
		store:    st,
		deps:     deps,
		log:      zap.L().With(zap.String("component", "orchestrator")),
	}
}

// task is one (entity, source) unit of work.
type task struct {
	entity model.Entity
	source model.Source
}

// Run resolves the request's entities, executes one task per
// (entity, source) under the request's concurrency bound, and returns every
// task's result. Collector failures are encoded in the results; the returned
// error covers orchestration itself: an unresolvable entity set or a
// cancelled context. On cancellation partial results are discarded.
func (o *Orchestrator) Run(ctx context.Context, req model.Request) ([]*model.Result, error) {
	entities, skipped, err := o.resolveTargets(ctx, req)
	if err != nil {
		return nil, err
	}

	tasks := make([]task, 0, len(entities)*len(req.Sources))
	for _, e := range entities {
		for _, src := range req.Sources {
			tasks = append(tasks, task{entity: e, source: src})
		}
	}

	o.mu.Lock()
	o.progress = Progress{Total: len(tasks)}
	o.run = nil
	o.mu.Unlock()

	run := o.beginRun(ctx, req, len(entities), len(tasks), skipped)

	o.log.Info("run started",
		zap.String("entity_type", string(req.EntityType)),
		zap.String("mode", string(req.Mode)),
		zap.Int("entities", len(entities)),
		zap.Int("entities_skipped", skipped),
		zap.Int("tasks", len(tasks)),
		zap.Int("max_concurrent", req.MaxConcurrent),
	)

	// Each task writes its own slot, so the slice needs no lock.
	results := make([]*model.Result, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(req.MaxConcurrent)
	for i, t := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = o.runTask(gctx, t, req)
			return nil
		})
	}
	waitErr := g.Wait()

	if err := ctx.Err(); err != nil {
		o.finishRun(ctx, run, nil, err)
		o.log.Warn("run cancelled", zap.Error(err))
		return nil, eris.Wrap(err, "orchestrator: run cancelled")
	}
	if waitErr != nil {
		o.finishRun(ctx, run, nil, waitErr)
		return nil, eris.Wrap(waitErr, "orchestrator: run aborted")
	}

	o.finishRun(ctx, run, results, nil)

	p := o.Progress()
	o.log.Info("run finished",
		zap.Int("tasks", p.Total),
		zap.Int("successful", p.Successful),
		zap.Int("failed", p.Failed),
	)
	return results, nil
}

// resolveTargets loads the request's entities and applies the incremental
// freshness window. Returns the entities to collect and how many were
// skipped as already fresh.
func (o *Orchestrator) resolveTargets(ctx context.Context, req model.Request) ([]model.Entity, int, error) {
	entities, err := o.resolver.ResolveEntities(ctx, req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "orchestrator: resolve entities")
	}

	if req.Mode != model.ModeIncremental || req.MaxAgeDays <= 0 {
		return entities, 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -req.MaxAgeDays)
	fresh := make([]model.Entity, 0, len(entities))
	skipped := 0
	for _, e := range entities {
		if e.LastCollectedAt != nil && e.LastCollectedAt.After(cutoff) {
			skipped++
			o.log.Debug("entity fresh, skipping",
				zap.Int64("entity_id", e.ID),
				zap.String("entity", e.Name),
				zap.Time("last_collected_at", *e.LastCollectedAt),
			)
			continue
		}
		fresh = append(fresh, e)
	}
	return fresh, skipped, nil
}

// runTask builds the task's collector and invokes it. A source with no
// registered factory yields a failed result rather than an error so one bad
// source name cannot sink the run.
func (o *Orchestrator) runTask(ctx context.Context, t task, req model.Request) *model.Result {
	o.mu.Lock()
	o.progress.CurrentEntity = t.entity.Name
	o.progress.CurrentSource = t.source
	o.mu.Unlock()

	deps := o.deps
	deps.RateLimitDelay = req.RateLimitDelay
	deps.MaxRetries = req.MaxRetries
	deps.Incremental = req.Mode == model.ModeIncremental

	var result *model.Result
	c, err := o.registry.New(t.source, deps)
	if err != nil {
		result = model.NewResult(t.entity, t.source).Fail(err.Error())
	} else {
		result = c.Collect(ctx, t.entity)
	}

	o.mu.Lock()
	o.progress.Completed++
	if result.Success {
		o.progress.Successful++
	} else {
		o.progress.Failed++
	}
	o.mu.Unlock()

	if result.Success {
		o.log.Debug("task complete",
			zap.String("entity", t.entity.Name),
			zap.String("source", string(t.source)),
			zap.Int("items", len(result.Items)),
			zap.Int("warnings", len(result.Warnings)),
			zap.Duration("duration", result.Duration()),
		)
	} else {
		o.log.Warn("task failed",
			zap.String("entity", t.entity.Name),
			zap.String("source", string(t.source)),
			zap.String("error", result.ErrorMessage),
		)
	}
	return result
}

// Progress returns a snapshot of the current run's progress.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

// RunRecord returns the run row recorded for the most recent Run call, nil
// when no store is wired or the row could not be created. Callers that
// persist the results afterwards fill in the item counters and complete the
// run again.
func (o *Orchestrator) RunRecord() *model.Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run
}

// beginRun opens the run row. Recording is observational: a store failure is
// logged and the run proceeds unrecorded.
func (o *Orchestrator) beginRun(ctx context.Context, req model.Request, entities, total, skippedEntities int) *model.Run {
	if o.store == nil {
		return nil
	}
	run, err := o.store.CreateRun(ctx, req.EntityType, req.Sources, req.Mode)
	if err != nil {
		o.log.Warn("create run record", zap.Error(err))
		return nil
	}
	run.Entities = entities
	run.TasksTotal = total
	run.TasksSkipped = skippedEntities * len(req.Sources)
	o.mu.Lock()
	o.run = run
	o.mu.Unlock()
	return run
}

// finishRun stamps the task tallies onto the run row and inserts the
// per-task rows. Item counters stay zero here; the persister's caller adds
// them once the write phase has run.
func (o *Orchestrator) finishRun(ctx context.Context, run *model.Run, results []*model.Result, runErr error) {
	if run == nil {
		return
	}
	if runErr != nil {
		run.Status = model.RunStatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = model.RunStatusComplete
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Success {
			run.TasksOK++
		} else {
			run.TasksFailed++
		}
		run.RequestsMade += r.RequestsMade
		run.BytesDownloaded += r.BytesDownloaded
	}

	// Run the store writes on a fresh context so a cancelled run still gets
	// its terminal status.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := o.store.CompleteRun(recCtx, run); err != nil {
		o.log.Warn("complete run record", zap.Error(err))
	}
	if tasks := taskRows(run.ID, results); len(tasks) > 0 {
		if _, err := o.store.InsertTasks(recCtx, tasks); err != nil {
			o.log.Warn("insert task records", zap.Error(err))
		}
	}
}

// taskRows converts results into persistable task rows.
func taskRows(runID string, results []*model.Result) []model.Task {
	tasks := make([]model.Task, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		tasks = append(tasks, model.Task{
			RunID:           runID,
			EntityID:        r.EntityID,
			EntityName:      r.EntityName,
			Source:          r.Source,
			Success:         r.Success,
			ErrorMessage:    r.ErrorMessage,
			Warnings:        len(r.Warnings),
			Items:           len(r.Items),
			RequestsMade:    r.RequestsMade,
			BytesDownloaded: r.BytesDownloaded,
			StartedAt:       r.StartedAt,
			CompletedAt:     r.CompletedAt,
		})
	}
	return tasks
}
