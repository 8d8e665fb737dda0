// Package schedule runs collections on a Temporal cadence. The workflow
// wraps one orchestrate-then-persist cycle in a single durable activity; the
// worker serves it from the collection task queue, and the standing cron
// schedules feed it canned requests. On-demand callers share the same
// activity flow without a Temporal server.
package schedule

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/pe-intel/internal/model"
)

const (
	// runTimeout bounds one collection run end to end.
	runTimeout = 4 * time.Hour

	// heartbeatTimeout is how long the server waits between activity
	// heartbeats before declaring the run lost.
	heartbeatTimeout = 10 * time.Minute

	// heartbeatInterval is how often the activity reports progress.
	heartbeatInterval = 30 * time.Second
)

// RunSummary is the result of one collection run: task tallies from the
// orchestrator and item tallies from the persister.
type RunSummary struct {
	RunID      string           `json:"run_id,omitempty"`
	EntityType model.EntityType `json:"entity_type"`
	Mode       model.Mode       `json:"mode"`

	Entities    int `json:"entities"`
	Tasks       int `json:"tasks"`
	TasksOK     int `json:"tasks_ok"`
	TasksFailed int `json:"tasks_failed"`

	ItemsPersisted int `json:"items_persisted"`
	ItemsUpdated   int `json:"items_updated"`
	ItemsSkipped   int `json:"items_skipped"`
	ItemsFailed    int `json:"items_failed"`

	RequestsMade    int64 `json:"requests_made"`
	BytesDownloaded int64 `json:"bytes_downloaded"`

	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"duration"`
}

// CollectionWorkflow executes one collection run as a single activity. The
// activity gets one attempt within a generous completion window; a failed
// run surfaces on the schedule instead of retrying.
func CollectionWorkflow(ctx workflow.Context, req model.Request) (*RunSummary, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: runTimeout,
		HeartbeatTimeout:    heartbeatTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	logger := workflow.GetLogger(ctx)
	logger.Info("collection started",
		"entity_type", req.EntityType,
		"mode", req.Mode,
	)

	var a *Activities
	var summary RunSummary
	if err := workflow.ExecuteActivity(ctx, a.RunCollection, req).Get(ctx, &summary); err != nil {
		return nil, err
	}

	logger.Info("collection finished",
		"run_id", summary.RunID,
		"tasks_ok", summary.TasksOK,
		"tasks_failed", summary.TasksFailed,
		"items_persisted", summary.ItemsPersisted,
		"items_updated", summary.ItemsUpdated,
	)
	return &summary, nil
}
