package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pe-intel/internal/db"
	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect collection run history",
	Long:  "Commands for listing, viewing, and summarizing collection runs.",
}

// runsStore opens the run tracking store for read-only inspection.
func runsStore(cmd *cobra.Command) (store.Store, func(), error) {
	ctx := cmd.Context()

	if err := cfg.Validate("runs"); err != nil {
		return nil, nil, err
	}

	if cfg.Store.Driver == "sqlite" {
		st, err := initStore(nil)
		if err != nil {
			return nil, nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, nil, eris.Wrap(err, "migrate store")
		}
		return st, func() { _ = st.Close() }, nil
	}

	pool, err := db.Connect(ctx, cfg.Database.URL, &db.PoolConfig{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "connect database")
	}
	st, err := initStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		pool.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}
	return st, func() { _ = st.Close(); pool.Close() }, nil
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collection runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, closeStore, err := runsStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		status, _ := cmd.Flags().GetString("status")
		entity, _ := cmd.Flags().GetString("entity")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.RunFilter{
			Status:     model.RunStatus(status),
			EntityType: model.EntityType(entity),
			Limit:      limit,
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run, including its tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, closeStore, err := runsStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		if run == nil {
			return eris.Errorf("run not found: %s", args[0])
		}

		tasks, err := st.ListTasks(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "list tasks")
		}

		out := struct {
			Run   *model.Run   `json:"run"`
			Tasks []model.Task `json:"tasks,omitempty"`
		}{run, tasks}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, closeStore, err := runsStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		stats := computeRunStats(runs)
		formatRunStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().String("entity", "", "filter by entity type (FIRM, COMPANY, PERSON)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Int("limit", 1000, "number of recent runs to aggregate")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total          int
	Complete       int
	Failed         int
	Running        int
	TasksOK        int
	TasksFailed    int
	ItemsPersisted int
	ItemsUpdated   int
	AvgDurSecs     float64
}

// computeRunStats computes aggregate statistics from a list of runs.
func computeRunStats(runs []model.Run) runStats {
	var s runStats
	s.Total = len(runs)

	var totalDur time.Duration
	var durCount int

	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			s.Complete++
			if r.CompletedAt != nil {
				totalDur += r.CompletedAt.Sub(r.StartedAt)
				durCount++
			}
		case model.RunStatusFailed:
			s.Failed++
		case model.RunStatusRunning:
			s.Running++
		}
		s.TasksOK += r.TasksOK
		s.TasksFailed += r.TasksFailed
		s.ItemsPersisted += r.ItemsPersisted
		s.ItemsUpdated += r.ItemsUpdated
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tENTITY\tMODE\tSTATUS\tTASKS\tITEMS\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t----\t------\t-----\t-----\t-------\t--------")

	for _, r := range runs {
		dur := "-"
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.EntityType,
			r.Mode,
			r.Status,
			r.TasksOK,
			r.TasksTotal,
			r.ItemsPersisted+r.ItemsUpdated,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.Running)
	_, _ = fmt.Fprintf(w, "Tasks ok:\t%d\n", s.TasksOK)
	_, _ = fmt.Fprintf(w, "Tasks failed:\t%d\n", s.TasksFailed)
	_, _ = fmt.Fprintf(w, "Items persisted:\t%d\n", s.ItemsPersisted)
	_, _ = fmt.Fprintf(w, "Items updated:\t%d\n", s.ItemsUpdated)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
