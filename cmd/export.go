package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/db"
	"github.com/sells-group/pe-intel/internal/export"
	"github.com/sells-group/pe-intel/pkg/notion"
	sfpkg "github.com/sells-group/pe-intel/pkg/salesforce"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export collected data to analyst destinations",
	Long:  "Commands for writing the XLSX workbook, pushing firms to Salesforce, and publishing deals to the Notion board.",
}

// exportPool validates export config and opens the entity pool. Callers own
// the returned pool.
func exportPool(cmd *cobra.Command) (*pgxpool.Pool, error) {
	if err := cfg.Validate("export"); err != nil {
		return nil, err
	}
	pool, err := db.Connect(cmd.Context(), cfg.Database.URL, &db.PoolConfig{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "connect database")
	}
	return pool, nil
}

// -- export xlsx --

var exportXLSXOut string

var exportXLSXCmd = &cobra.Command{
	Use:   "xlsx",
	Short: "Write the analyst workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := exportPool(cmd)
		if err != nil {
			return err
		}
		defer pool.Close()

		out := exportXLSXOut
		if out == "" {
			out = filepath.Join(cfg.Export.XLSXDir, fmt.Sprintf("pe-intel-%s.xlsx", time.Now().Format("2006-01-02")))
		}

		if err := export.NewWorkbookWriter(pool).WriteFile(ctx, out); err != nil {
			return eris.Wrap(err, "export xlsx")
		}

		zap.L().Info("workbook written", zap.String("path", out))
		return nil
	},
}

// -- export salesforce --

var exportSFCmd = &cobra.Command{
	Use:   "salesforce",
	Short: "Upsert active firms as Salesforce Accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Salesforce.ConsumerKey == "" || cfg.Salesforce.ConsumerSecret == "" {
			return eris.New("salesforce credentials are required (PE_SALESFORCE_CONSUMER_KEY, PE_SALESFORCE_CONSUMER_SECRET)")
		}

		sf, err := salesforce.Init(salesforce.Creds{
			Domain:         cfg.Salesforce.Domain,
			ConsumerKey:    cfg.Salesforce.ConsumerKey,
			ConsumerSecret: cfg.Salesforce.ConsumerSecret,
		})
		if err != nil {
			return eris.Wrap(err, "init salesforce")
		}
		sfClient := sfpkg.NewClient(sf, sfpkg.WithRateLimit(5))

		pool, err := exportPool(cmd)
		if err != nil {
			return err
		}
		defer pool.Close()

		stats, err := export.NewAccountPusher(pool, sfClient).PushFirms(ctx)
		if err != nil {
			return eris.Wrap(err, "export salesforce")
		}

		zap.L().Info("salesforce push complete",
			zap.Int("firms", stats.Firms),
			zap.Int("created", stats.Created),
			zap.Int("updated", stats.Updated),
			zap.Int("contacts", stats.Contacts),
			zap.Int("failed", stats.Failed),
		)
		return nil
	},
}

// -- export notion --

var exportNotionSince time.Duration

var exportNotionCmd = &cobra.Command{
	Use:   "notion",
	Short: "Publish recent deals to the Notion deal board",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Notion.Token == "" {
			return eris.New("notion token is required (PE_NOTION_TOKEN)")
		}
		if cfg.Notion.DealsDB == "" {
			return eris.New("notion deals DB ID is required (PE_NOTION_DEALS_DB)")
		}

		pool, err := exportPool(cmd)
		if err != nil {
			return err
		}
		defer pool.Close()

		nc := notion.NewClient(cfg.Notion.Token)
		pub := export.NewDealPublisher(pool, nc, cfg.Notion.DealsDB)

		stats, err := pub.PublishSince(ctx, time.Now().Add(-exportNotionSince))
		if err != nil {
			return eris.Wrap(err, "export notion")
		}

		zap.L().Info("notion publish complete",
			zap.Int("deals", stats.Deals),
			zap.Int("created", stats.Created),
			zap.Int("skipped", stats.Skipped),
		)
		return nil
	},
}

func init() {
	exportXLSXCmd.Flags().StringVar(&exportXLSXOut, "out", "", "output path (default <export.xlsx_dir>/pe-intel-<date>.xlsx)")
	exportNotionCmd.Flags().DurationVar(&exportNotionSince, "since", 168*time.Hour, "publish deals announced within this window")

	exportCmd.AddCommand(exportXLSXCmd)
	exportCmd.AddCommand(exportSFCmd)
	exportCmd.AddCommand(exportNotionCmd)
	rootCmd.AddCommand(exportCmd)
}
