package collector

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/fetcher"
	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/resilience"
)

const max13FFilings = 4

// SECHoldings collects institutional ownership disclosures for a firm:
// 13F-HR holdings parsed from the infotable XML, and SC 13D/13G stakes
// recorded from submission metadata (the stake documents themselves are not
// parsed; subject identity beyond the document description is unavailable).
type SECHoldings struct {
	deps Deps
	log  *zap.Logger
}

// NewSECHoldings creates the 13F/13D collector.
func NewSECHoldings(deps Deps) *SECHoldings {
	return &SECHoldings{
		deps: deps,
		log:  zap.L().With(zap.String("component", "collector.sec_13d")),
	}
}

func (c *SECHoldings) Source() model.Source         { return model.SourceSEC13D }
func (c *SECHoldings) EntityType() model.EntityType { return model.EntityFirm }

// f13Holding is a single holding in a 13F infotable. Tags match by local
// name, so default, prefixed, and stripped namespaces all decode.
type f13Holding struct {
	IssuerName string `xml:"nameOfIssuer"`
	ClassTitle string `xml:"titleOfClass"`
	CUSIP      string `xml:"cusip"`
	Value      int64  `xml:"value"`
	Shares     int64  `xml:"shrsOrPrnAmt>sshPrnamt"`
	ShPrnType  string `xml:"shrsOrPrnAmt>sshPrnamtType"`
	PutCall    string `xml:"putCall"`
	Discretion string `xml:"investmentDiscretion"`
}

// Collect lists the firm's recent filings and emits Holding13F items for up
// to four 13F-HR reports plus Stake13D items for every SC 13D/G entry.
func (c *SECHoldings) Collect(ctx context.Context, entity model.Entity) *model.Result {
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

	var reports, holdings int
	for _, filing := range recentFilings(sub, map[string]bool{"13F-HR": true, "13F-HR/A": true}, max13FFilings) {
		if ctx.Err() != nil {
			return fail(result, meter, ctx.Err().Error())
		}
		n, err := c.collectHoldings(ctx, entity, filing, meter, result)
		if err != nil {
			result.Warn(fmt.Sprintf("13F %s: %v", filing.AccessionNumber, err))
			continue
		}
		reports++
		holdings += n
	}

	stakes := c.collectStakes(entity, sub, result)

	c.log.Debug("collected ownership filings",
		zap.String("firm", entity.Name),
		zap.Int("reports_13f", reports),
		zap.Int("holdings", holdings),
		zap.Int("stakes_13d", stakes),
	)
	return finish(result, meter)
}

// collectHoldings parses one 13F-HR filing's infotable into Holding13F
// items. Returns the number of holdings emitted.
func (c *SECHoldings) collectHoldings(ctx context.Context, entity model.Entity, filing filingRef, meter *fetcher.Meter, result *model.Result) (int, error) {
	idx, err := fetchFilingIndex(ctx, c.deps.Fetcher, meter, entity.CIK, filing.AccessionNumber)
	if err != nil {
		return 0, err
	}

	docName := pickInfoTable(idx)
	if docName == "" {
		return 0, fmt.Errorf("no infotable XML in filing index")
	}

	xmlURL := archivesURL(entity.CIK, filing.AccessionNumber, docName)
	raw, err := c.deps.Fetcher.GetBytes(ctx, xmlURL, fetcher.WithMeter(meter))
	if err != nil {
		return 0, err
	}

	rows, errCh := fetcher.StreamXML[f13Holding](ctx, bytes.NewReader(raw), "infoTable")
	count := 0
	for h := range rows {
		if h.CUSIP == "" && h.IssuerName == "" {
			continue
		}
		result.AddItem(model.Holding13F{
			ItemMeta:        model.ItemMeta{URL: xmlURL, Conf: model.ConfidenceHigh},
			FirmID:          entity.ID,
			CUSIP:           strings.TrimSpace(h.CUSIP),
			Issuer:          strings.TrimSpace(h.IssuerName),
			ClassTitle:      strings.TrimSpace(h.ClassTitle),
			ValueUSD:        h.Value * 1000, // reported in thousands
			Shares:          h.Shares,
			ShareType:       strings.TrimSpace(h.ShPrnType),
			PutCall:         strings.TrimSpace(h.PutCall),
			Discretion:      strings.TrimSpace(h.Discretion),
			ReportDate:      filing.ReportDate,
			AccessionNumber: filing.AccessionNumber,
		})
		count++
	}
	if err := <-errCh; err != nil {
		return count, err
	}
	return count, nil
}

// collectStakes emits a Stake13D per SC 13D/G filing from metadata alone.
func (c *SECHoldings) collectStakes(entity model.Entity, sub *submissionJSON, result *model.Result) int {
	stakeForms := map[string]bool{
		"SC 13D": true, "SC 13D/A": true,
		"SC 13G": true, "SC 13G/A": true,
	}
	count := 0
	for _, filing := range recentFilings(sub, stakeForms, 0) {
		item := model.Stake13D{
			ItemMeta:        model.ItemMeta{Conf: model.ConfidenceHigh},
			FirmID:          entity.ID,
			SubjectCompany:  strings.TrimSpace(filing.PrimaryDocDesc),
			FormType:        filing.Form,
			FilingDate:      filing.FilingDate,
			AccessionNumber: filing.AccessionNumber,
		}
		if filing.PrimaryDoc != "" {
			item.URL = archivesURL(entity.CIK, filing.AccessionNumber, filing.PrimaryDoc)
		} else {
			item.URL = archivesURL(entity.CIK, filing.AccessionNumber, "")
		}
		result.AddItem(item)
		count++
	}
	return count
}

// pickInfoTable returns the most likely infotable document in a filing:
// a file named like "infotable" when present, otherwise the largest XML
// other than the cover page. SEC filings do not label the infotable
// canonically, so size is the tie-break.
func pickInfoTable(idx *filingIndex) string {
	var best string
	var bestSize int
	for _, item := range idx.Directory.Item {
		name := strings.ToLower(item.Name)
		if !strings.HasSuffix(name, ".xml") || name == "primary_doc.xml" {
			continue
		}
		if strings.Contains(name, "infotable") || strings.Contains(name, "info_table") {
			return item.Name
		}
		size, _ := strconv.Atoi(item.Size)
		if best == "" || size > bestSize {
			best = item.Name
			bestSize = size
		}
	}
	return best
}
