package schedule

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/model"
)

// scheduleSpec is one standing schedule: a cron line and the canned request
// it submits. Requests leave tuning fields zero; the activity normalizes
// them from config defaults.
type scheduleSpec struct {
	id   string
	cron string
	note string
	req  model.Request
}

// defaultSchedules returns the standing collection cadence: a weekly full
// refresh of every source and a daily incremental news sweep. Cron times are
// UTC.
func defaultSchedules() []scheduleSpec {
	return []scheduleSpec{
		{
			id:   "pe-collect-weekly-full",
			cron: "0 6 * * 1",
			note: "Weekly full refresh, every source, Monday 06:00 UTC.",
			req: model.Request{
				EntityType: model.EntityFirm,
				Mode:       model.ModeFull,
			},
		},
		{
			id:   "pe-collect-daily-news",
			cron: "0 7 * * *",
			note: "Daily incremental press and news sweep, 07:00 UTC.",
			req: model.Request{
				EntityType: model.EntityFirm,
				Mode:       model.ModeIncremental,
				Sources:    []model.Source{model.SourcePressRelease, model.SourceNewsAPI},
			},
		},
	}
}

// EnsureSchedules registers the standing schedules on the server, skipping
// any that already exist.
func EnsureSchedules(ctx context.Context, c client.Client, taskQueue string) error {
	logger := zap.L().With(zap.String("component", "schedule"))
	sc := c.ScheduleClient()

	for _, s := range defaultSchedules() {
		if _, err := sc.GetHandle(ctx, s.id).Describe(ctx); err == nil {
			logger.Info("schedule already registered", zap.String("schedule_id", s.id))
			continue
		}
		_, err := sc.Create(ctx, client.ScheduleOptions{
			ID:   s.id,
			Note: s.note,
			Spec: client.ScheduleSpec{
				CronExpressions: []string{s.cron},
			},
			Action: &client.ScheduleWorkflowAction{
				ID:        s.id + "-run",
				Workflow:  CollectionWorkflow,
				Args:      []interface{}{s.req},
				TaskQueue: taskQueue,
			},
		})
		if err != nil {
			return eris.Wrapf(err, "schedule: create %s", s.id)
		}
		logger.Info("schedule created",
			zap.String("schedule_id", s.id),
			zap.String("cron", s.cron),
		)
	}
	return nil
}

// TriggerNow starts one collection workflow immediately, outside the
// standing schedules. Returns the workflow ID.
func TriggerNow(ctx context.Context, c client.Client, taskQueue string, req model.Request) (string, error) {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "pe-collect-manual-" + uuid.NewString(),
		TaskQueue: taskQueue,
	}, CollectionWorkflow, req)
	if err != nil {
		return "", eris.Wrap(err, "schedule: start collection")
	}
	return run.GetID(), nil
}
