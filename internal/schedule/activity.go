package schedule

import (
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/orchestrator"
	"github.com/sells-group/pe-intel/internal/persist"
	"github.com/sells-group/pe-intel/internal/store"
)

// Activities bundles the pipeline the collection activity drives. One value
// serves both the Temporal worker and on-demand callers.
type Activities struct {
	orch      *orchestrator.Orchestrator
	persister *persist.Persister
	catalog   *persist.Catalog
	store     store.Store
	defaults  model.RequestDefaults
	log       *zap.Logger
}

// NewActivities wires the collection flow. The store is optional and only
// used to stamp item counts onto the run record; the catalog is optional and
// only used to mark collected entities fresh.
func NewActivities(orch *orchestrator.Orchestrator, p *persist.Persister, cat *persist.Catalog, st store.Store, defaults model.RequestDefaults) *Activities {
	return &Activities{
		orch:      orch,
		persister: p,
		catalog:   cat,
		store:     st,
		defaults:  defaults,
		log:       zap.L().With(zap.String("component", "schedule")),
	}
}

// RunCollection is the Temporal activity: Collect with orchestration
// progress reported as heartbeats while the run executes.
func (a *Activities) RunCollection(ctx context.Context, req model.Request) (*RunSummary, error) {
	stop := a.heartbeat(ctx)
	defer stop()
	return a.Collect(ctx, req)
}

// Collect runs one collection end to end: orchestrate, persist, then stamp
// the run record and freshness markers. The CLI and the HTTP API call it
// directly, without a Temporal server.
func (a *Activities) Collect(ctx context.Context, req model.Request) (*RunSummary, error) {
	req = req.Normalize(a.defaults)
	if err := req.Validate(); err != nil {
		return nil, eris.Wrap(err, "schedule: invalid request")
	}

	start := time.Now()
	results, err := a.orch.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	stats, perr := a.persister.Persist(ctx, results)
	if perr != nil {
		a.recordPersistFailure(ctx, stats, perr)
		return nil, perr
	}

	summary := &RunSummary{
		EntityType:     req.EntityType,
		Mode:           req.Mode,
		ItemsPersisted: stats.Persisted,
		ItemsUpdated:   stats.Updated,
		ItemsSkipped:   stats.Skipped,
		ItemsFailed:    stats.Failed,
		Errors:         stats.Errors,
		Duration:       time.Since(start),
	}

	// An entity counts as collected when at least one of its tasks succeeded.
	okByEntity := make(map[int64]bool)
	for _, r := range results {
		if r == nil {
			continue
		}
		summary.Tasks++
		if r.Success {
			summary.TasksOK++
			okByEntity[r.EntityID] = true
		} else {
			summary.TasksFailed++
			if _, seen := okByEntity[r.EntityID]; !seen {
				okByEntity[r.EntityID] = false
			}
		}
		summary.RequestsMade += r.RequestsMade
		summary.BytesDownloaded += r.BytesDownloaded
	}
	summary.Entities = len(okByEntity)

	touched := make([]int64, 0, len(okByEntity))
	for id, ok := range okByEntity {
		if ok {
			touched = append(touched, id)
		}
	}
	slices.Sort(touched)

	if run := a.orch.RunRecord(); run != nil {
		fillItemCounts(run, stats)
		summary.RunID = run.ID
		if a.store != nil {
			if err := a.store.CompleteRun(ctx, run); err != nil {
				a.log.Warn("complete run with item counts", zap.Error(err))
			}
		}
	}

	if a.catalog != nil && len(touched) > 0 {
		if err := a.catalog.TouchCollected(ctx, req.EntityType, touched); err != nil {
			a.log.Warn("touch collected entities", zap.Error(err))
		}
	}

	a.log.Info("collection run complete",
		zap.String("run_id", summary.RunID),
		zap.Int("entities", summary.Entities),
		zap.Int("tasks_ok", summary.TasksOK),
		zap.Int("tasks_failed", summary.TasksFailed),
		zap.Int("items_persisted", summary.ItemsPersisted),
		zap.Int("items_updated", summary.ItemsUpdated),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// recordPersistFailure marks the run record failed when the write phase
// aborts after orchestration already completed it.
func (a *Activities) recordPersistFailure(ctx context.Context, stats *persist.Stats, perr error) {
	run := a.orch.RunRecord()
	if run == nil || a.store == nil {
		return
	}
	run.Status = model.RunStatusFailed
	run.Error = perr.Error()
	fillItemCounts(run, stats)
	if err := a.store.CompleteRun(ctx, run); err != nil {
		a.log.Warn("record persist failure", zap.Error(err))
	}
}

func fillItemCounts(run *model.Run, stats *persist.Stats) {
	if stats == nil {
		return
	}
	run.ItemsPersisted = stats.Persisted
	run.ItemsUpdated = stats.Updated
	run.ItemsSkipped = stats.Skipped
	run.ItemsFailed = stats.Failed
}

// heartbeat reports orchestration progress until the returned stop function
// is called. Must only run inside an activity context.
func (a *Activities) heartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(heartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx, a.orch.Progress())
			}
		}
	}()
	return func() { close(done) }
}
