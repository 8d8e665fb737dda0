package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/schedule"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Temporal worker for scheduled collections",
	Long:  "Serves the collection workflow and activity from the configured task queue. Scheduled and triggered runs execute inside this process.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initCollectEnv(ctx, "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := schedule.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace)
		if err != nil {
			return err
		}
		defer c.Close()

		w := schedule.NewWorker(c, cfg.Temporal.TaskQueue, env.Acts)

		zap.L().Info("worker starting",
			zap.String("task_queue", cfg.Temporal.TaskQueue),
			zap.String("temporal", cfg.Temporal.HostPort),
		)
		if err := w.Run(worker.InterruptCh()); err != nil {
			return eris.Wrap(err, "worker run")
		}

		logCostLines(env.Costs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
