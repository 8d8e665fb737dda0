package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage the standing Temporal collection schedules",
}

// -- schedule ensure --

var scheduleEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Register the standing cron schedules",
	Long:  "Creates the weekly full refresh and daily news sweep schedules on the Temporal server. Schedules that already exist are left untouched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("schedule"); err != nil {
			return err
		}

		c, err := schedule.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := schedule.EnsureSchedules(ctx, c, cfg.Temporal.TaskQueue); err != nil {
			return eris.Wrap(err, "ensure schedules")
		}

		zap.L().Info("schedules ensured", zap.String("task_queue", cfg.Temporal.TaskQueue))
		return nil
	},
}

// -- schedule trigger --

var (
	triggerEntity  string
	triggerSources []string
	triggerMode    string
)

var scheduleTriggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Start an ad hoc collection workflow",
	Long:  "Starts one collection workflow on the task queue immediately. A running worker picks it up; the command returns the workflow ID without waiting.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("schedule"); err != nil {
			return err
		}

		req, err := parseRequestFlags(triggerEntity, triggerSources, triggerMode)
		if err != nil {
			return err
		}

		c, err := schedule.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace)
		if err != nil {
			return err
		}
		defer c.Close()

		id, err := schedule.TriggerNow(ctx, c, cfg.Temporal.TaskQueue, req)
		if err != nil {
			return eris.Wrap(err, "trigger collection")
		}

		zap.L().Info("collection triggered", zap.String("workflow_id", id))
		return nil
	},
}

func init() {
	scheduleTriggerCmd.Flags().StringVar(&triggerEntity, "entity", "", "entity type to collect (FIRM, COMPANY, PERSON)")
	scheduleTriggerCmd.Flags().StringSliceVar(&triggerSources, "source", nil, "sources to run (repeatable; default all)")
	scheduleTriggerCmd.Flags().StringVar(&triggerMode, "mode", "", "collection mode (INCREMENTAL or FULL)")

	scheduleCmd.AddCommand(scheduleEnsureCmd)
	scheduleCmd.AddCommand(scheduleTriggerCmd)
	rootCmd.AddCommand(scheduleCmd)
}
