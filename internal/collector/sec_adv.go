package collector

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/fetcher"
	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/resilience"
)

const maxADVFilings = 5

// SECADV collects Form ADV registration data for an advisor firm from its
// EDGAR submissions file: identity fields at high confidence plus the most
// recent ADV filings.
type SECADV struct {
	deps Deps
	log  *zap.Logger
}

// NewSECADV creates the ADV collector.
func NewSECADV(deps Deps) *SECADV {
	return &SECADV{
		deps: deps,
		log:  zap.L().With(zap.String("component", "collector.sec_adv")),
	}
}

func (c *SECADV) Source() model.Source         { return model.SourceSECADV }
func (c *SECADV) EntityType() model.EntityType { return model.EntityFirm }

// Collect fetches the firm's submissions JSON and emits a FirmUpdate plus
// FormADVFiling items. Firms without a CIK fail without any request; a CIK
// unknown to EDGAR is an empty success.
func (c *SECADV) Collect(ctx context.Context, entity model.Entity) *model.Result {
	result := model.NewResult(entity, c.Source())
	meter := &fetcher.Meter{}

	if entity.CIK == "" {
		return fail(result, meter, "No CIK provided")
	}

	sub, err := fetchSubmissions(ctx, c.deps.Fetcher, meter, entity.CIK)
	if err != nil {
		if resilience.IsNotFound(err) {
			result.Warn(fmt.Sprintf("no EDGAR submissions for CIK %s", entity.CIK))
			return finish(result, meter)
		}
		return fail(result, meter, fmt.Sprintf("fetch submissions: %v", err))
	}

	srcURL := submissionsURL(entity.CIK)
	update := model.FirmUpdate{
		ItemMeta: model.ItemMeta{URL: srcURL, Conf: model.ConfidenceHigh},
		Name:     sub.Name,
		CIK:      padCIK(entity.CIK),
		Phone:    sub.Phone,
	}
	if hq := sub.Addresses.Business.String(); hq != "" {
		update.Headquarters = hq
	}
	if sub.SICDescription != "" {
		update.Description = sub.SICDescription
		if sub.SIC != "" {
			update.Description = fmt.Sprintf("%s (SIC %s)", sub.SICDescription, sub.SIC)
		}
	}
	result.AddItem(update)

	var advCount int
	for _, filing := range recentFilings(sub, nil, 0) {
		if !strings.HasPrefix(filing.Form, "ADV") {
			continue
		}
		item := model.FormADVFiling{
			ItemMeta:   model.ItemMeta{Conf: model.ConfidenceHigh},
			FirmCRD:    entity.CRDNumber,
			FilingID:   filing.AccessionNumber,
			FilingDate: filing.FilingDate,
		}
		if filing.PrimaryDoc != "" {
			item.URL = archivesURL(entity.CIK, filing.AccessionNumber, filing.PrimaryDoc)
		} else {
			item.URL = archivesURL(entity.CIK, filing.AccessionNumber, "")
		}
		result.AddItem(item)

		advCount++
		if advCount >= maxADVFilings {
			break
		}
	}

	c.log.Debug("collected ADV data",
		zap.String("firm", entity.Name),
		zap.Int("filings", advCount),
	)
	return finish(result, meter)
}
