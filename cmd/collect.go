package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pe-intel/internal/model"
)

var (
	collectEntity      string
	collectSources     []string
	collectMode        string
	collectIDs         []int64
	collectFirmTypes   []string
	collectSectors     []string
	collectMaxAge      int
	collectConcurrency int
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run a collection pass over the tracked entities",
	Long:  "Resolves target entities, fans out per-source collectors, and persists the results. Without flags it runs an incremental pass over every firm and source.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		req, err := buildCollectRequest()
		if err != nil {
			return err
		}

		env, err := initCollectEnv(ctx, "collect")
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Acts.Collect(ctx, req)
		logCostLines(env.Costs)
		if err != nil {
			return eris.Wrap(err, "collect")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	collectCmd.Flags().StringVar(&collectEntity, "entity", "", "entity type to collect (FIRM, COMPANY, PERSON)")
	collectCmd.Flags().StringSliceVar(&collectSources, "source", nil, "sources to run (repeatable; default all)")
	collectCmd.Flags().StringVar(&collectMode, "mode", "", "collection mode (INCREMENTAL or FULL)")
	collectCmd.Flags().Int64SliceVar(&collectIDs, "id", nil, "restrict to specific entity IDs (repeatable)")
	collectCmd.Flags().StringSliceVar(&collectFirmTypes, "firm-type", nil, "restrict firms by type (ignored when --id is set)")
	collectCmd.Flags().StringSliceVar(&collectSectors, "sector", nil, "restrict firms by sector (ignored when --id is set)")
	collectCmd.Flags().IntVar(&collectMaxAge, "max-age", 0, "freshness window in days for incremental mode (default from config)")
	collectCmd.Flags().IntVar(&collectConcurrency, "concurrency", 0, "max simultaneous tasks (default from config)")
	rootCmd.AddCommand(collectCmd)
}

// buildCollectRequest assembles a Request from the collect flags. Parse
// errors surface here so bad flag values fail before any connection opens.
func buildCollectRequest() (model.Request, error) {
	req, err := parseRequestFlags(collectEntity, collectSources, collectMode)
	if err != nil {
		return model.Request{}, err
	}

	req.MaxAgeDays = collectMaxAge
	req.MaxConcurrent = collectConcurrency
	req.FirmTypes = collectFirmTypes
	req.Sectors = collectSectors

	switch req.EntityType {
	case model.EntityCompany:
		req.CompanyIDs = collectIDs
	case model.EntityPerson:
		req.PersonIDs = collectIDs
	default:
		req.FirmIDs = collectIDs
	}

	return req, nil
}

// parseRequestFlags parses the entity/source/mode flag values shared by
// collect and schedule trigger. Empty values stay zero for Normalize to fill.
func parseRequestFlags(entity string, sources []string, mode string) (model.Request, error) {
	var req model.Request

	if entity != "" {
		et, err := model.ParseEntityType(entity)
		if err != nil {
			return model.Request{}, err
		}
		req.EntityType = et
	}
	if mode != "" {
		m, err := model.ParseMode(mode)
		if err != nil {
			return model.Request{}, err
		}
		req.Mode = m
	}
	for _, s := range sources {
		src, err := model.ParseSource(s)
		if err != nil {
			return model.Request{}, err
		}
		req.Sources = append(req.Sources, src)
	}

	return req, nil
}
