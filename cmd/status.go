package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pe-intel/internal/db"
	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/persist"
	"github.com/sells-group/pe-intel/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show entity table counts and the latest run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("status"); err != nil {
			return err
		}

		pool, err := db.Connect(ctx, cfg.Database.URL, &db.PoolConfig{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return eris.Wrap(err, "connect database")
		}
		defer pool.Close()

		counts, err := persist.NewCatalog(pool).TableCounts(ctx)
		if err != nil {
			return eris.Wrap(err, "table counts")
		}
		formatTableCounts(os.Stdout, counts)

		st, err := initStore(pool)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 1})
		if err != nil {
			return eris.Wrap(err, "list runs")
		}
		if len(runs) > 0 {
			fmt.Fprintln(os.Stdout)
			formatLatestRun(os.Stdout, runs[0])
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// formatTableCounts writes row counts per entity table, sorted by name.
func formatTableCounts(out io.Writer, counts map[string]int64) {
	tables := make([]string, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TABLE\tROWS")
	_, _ = fmt.Fprintln(w, "-----\t----")
	for _, t := range tables {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", t, counts[t])
	}
	_ = w.Flush()
}

// formatLatestRun writes a one-run summary block.
func formatLatestRun(out io.Writer, r model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Latest run:\t%s\n", truncateID(r.ID))
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	_, _ = fmt.Fprintf(w, "Entity type:\t%s\n", r.EntityType)
	_, _ = fmt.Fprintf(w, "Mode:\t%s\n", r.Mode)
	_, _ = fmt.Fprintf(w, "Tasks:\t%d ok / %d failed / %d total\n", r.TasksOK, r.TasksFailed, r.TasksTotal)
	_, _ = fmt.Fprintf(w, "Items:\t%d new / %d updated / %d skipped / %d failed\n",
		r.ItemsPersisted, r.ItemsUpdated, r.ItemsSkipped, r.ItemsFailed)
	_, _ = fmt.Fprintf(w, "Started:\t%s\n", r.StartedAt.Format("2006-01-02 15:04"))
	if r.CompletedAt != nil {
		_, _ = fmt.Fprintf(w, "Duration:\t%s\n", r.CompletedAt.Sub(r.StartedAt).Round(time.Second))
	}
	_ = w.Flush()
}
