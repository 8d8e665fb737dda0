package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pe-intel/internal/db"
	"github.com/sells-group/pe-intel/internal/fetcher"
	"github.com/sells-group/pe-intel/internal/persist"
)

var seedFilePath string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the firm universe from a YAML, CSV, or XLSX file",
	Long: "Upserts curated firms (name, website, CIK, CRD number) into pe_firms. " +
		"Existing firms are matched by name and their identifier columns refreshed. " +
		"Tabular files need a header row with a name column; website, cik, crd_number, " +
		"firm_type, and sector columns are optional.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("seed"); err != nil {
			return err
		}

		firms, err := loadSeedFile(seedFilePath)
		if err != nil {
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

		n, err := persist.NewCatalog(pool).SeedFirms(ctx, firms)
		if err != nil {
			return eris.Wrap(err, "seed firms")
		}

		zap.L().Info("seed complete",
			zap.Int64("upserted", n),
			zap.Int("in_file", len(firms)),
			zap.String("file", seedFilePath),
		)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFilePath, "file", "", "path to firm seed file, .yaml/.csv/.xlsx (required)")
	_ = seedCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(seedCmd)
}

// loadSeedFile parses a firm seed file, dispatching on the extension.
func loadSeedFile(path string) ([]persist.SeedFirm, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadSeedYAML(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "open seed file %s", path)
		}
		defer func() { _ = f.Close() }()

		table, err := fetcher.ReadCSVTable(f, fetcher.CSVOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "parse seed file %s", path)
		}
		return seedFirmsFromTable(path, table)
	case ".xlsx":
		table, err := fetcher.ReadXLSXTable(path, fetcher.XLSXOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "parse seed file %s", path)
		}
		return seedFirmsFromTable(path, table)
	default:
		return nil, eris.Errorf("seed file %s: unsupported format (want .yaml, .csv, or .xlsx)", path)
	}
}

// loadSeedYAML parses a firm seed YAML. The file has a top-level "firms" key.
func loadSeedYAML(path string) ([]persist.SeedFirm, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read seed file %s", path)
	}

	var wrapper struct {
		Firms []persist.SeedFirm `yaml:"firms"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "parse seed file")
	}

	if len(wrapper.Firms) == 0 {
		return nil, eris.Errorf("seed file %s contains no firms", path)
	}
	for i, f := range wrapper.Firms {
		if f.Name == "" {
			return nil, eris.Errorf("seed file %s: firm %d has no name", path, i+1)
		}
	}
	return wrapper.Firms, nil
}

// seedFirmsFromTable maps a tabular seed export to firms by header name.
func seedFirmsFromTable(path string, t *fetcher.Table) ([]persist.SeedFirm, error) {
	if t.Col("name") < 0 {
		return nil, eris.Errorf("seed file %s has no name column", path)
	}

	firms := make([]persist.SeedFirm, 0, len(t.Rows))
	for i, row := range t.Rows {
		f := persist.SeedFirm{
			Name:      t.Field(row, "name"),
			Website:   t.Field(row, "website"),
			CIK:       t.Field(row, "cik"),
			CRDNumber: t.Field(row, "crd_number"),
			FirmType:  t.Field(row, "firm_type"),
			Sector:    t.Field(row, "sector"),
		}
		if f.Name == "" {
			// Row 1 is the header.
			return nil, eris.Errorf("seed file %s: row %d has no name", path, i+2)
		}
		firms = append(firms, f)
	}

	if len(firms) == 0 {
		return nil, eris.Errorf("seed file %s contains no firms", path)
	}
	return firms, nil
}
