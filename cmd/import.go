package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/pkg/notion"
)

var (
	importCSVPath string
	importBoardID string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import prospect firms from CSV into Notion",
	Long:  "Loads a prospect CSV (name, domain, firm type, location) into the Notion prospect board. Rows without a domain, or sharing one with an earlier row, are skipped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Notion.Token == "" {
			return eris.New("notion token is required (PE_NOTION_TOKEN)")
		}

		boardID := importBoardID
		if boardID == "" {
			boardID = cfg.Notion.ProspectsDB
		}
		if boardID == "" {
			return eris.New("notion prospects DB ID is required (PE_NOTION_PROSPECTS_DB or --db)")
		}

		client := notion.NewClient(cfg.Notion.Token)

		created, skipped, err := notion.ImportCSV(cmd.Context(), client, boardID, importCSVPath)
		if err != nil {
			return eris.Wrap(err, "import csv")
		}

		zap.L().Info("import complete",
			zap.String("csv", importCSVPath),
			zap.Int("created", created),
			zap.Int("skipped", skipped),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	importCmd.Flags().StringVar(&importBoardID, "db", "", "Notion database ID (overrides config)")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}
