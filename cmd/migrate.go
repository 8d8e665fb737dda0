package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/db"
	"github.com/sells-group/pe-intel/internal/persist"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Long:  "Creates the PE entity tables in Postgres and the run tracking tables in the configured store. Statements are idempotent; rerunning is safe.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		if cfg.Database.URL != "" {
			pool, err := db.Connect(ctx, cfg.Database.URL, &db.PoolConfig{
				MaxConns: cfg.Database.MaxConns,
				MinConns: cfg.Database.MinConns,
			})
			if err != nil {
				return eris.Wrap(err, "connect database")
			}
			defer pool.Close()

			if err := persist.Migrate(ctx, pool); err != nil {
				return eris.Wrap(err, "migrate entity schema")
			}
			zap.L().Info("entity schema migrated")

			st, err := initStore(pool)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
		} else {
			// SQLite-only setup: run tracking lives in the local file.
			st, err := initStore(nil)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
		}

		zap.L().Info("all migrations applied successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
