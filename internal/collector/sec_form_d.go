package collector

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/fetcher"
	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/resilience"
)

const maxFormDFilings = 10

// exemptionNames maps EDGAR federal exemption item codes to readable names.
// Unknown codes pass through unchanged.
var exemptionNames = map[string]string{
	"04":   "Rule 504",
	"06":   "Rule 506",
	"06b":  "Rule 506(b)",
	"06c":  "Rule 506(c)",
	"3C":   "Investment Company Act Section 3(c)",
	"3C.1": "Section 3(c)(1)",
	"3C.5": "Section 3(c)(5)",
	"3C.7": "Section 3(c)(7)",
}

// SECFormD collects Regulation D exempt-offering notices for a firm: fund
// raises with offering amounts, plus the executives named in each filing.
type SECFormD struct {
	deps Deps
	log  *zap.Logger
}

// NewSECFormD creates the Form D collector.
func NewSECFormD(deps Deps) *SECFormD {
	return &SECFormD{
		deps: deps,
		log:  zap.L().With(zap.String("component", "collector.sec_form_d")),
	}
}

func (c *SECFormD) Source() model.Source         { return model.SourceSECFormD }
func (c *SECFormD) EntityType() model.EntityType { return model.EntityFirm }

// formDXML is the primary document of a Form D filing.
type formDXML struct {
	XMLName        xml.Name      `xml:"edgarSubmission"`
	PrimaryIssuer  formDIssuer   `xml:"primaryIssuer"`
	RelatedPersons []formDPerson `xml:"relatedPersonsList>relatedPersonInfo"`
	OfferingData   formDOffering `xml:"offeringData"`
}

type formDIssuer struct {
	CIK        string `xml:"cik"`
	EntityName string `xml:"entityName"`
	StateOfInc string `xml:"jurisdictionOfInc"`
	YearOfInc  string `xml:"yearOfInc>value"`
}

type formDPerson struct {
	FirstName     string   `xml:"relatedPersonName>firstName"`
	LastName      string   `xml:"relatedPersonName>lastName"`
	Relationships []string `xml:"relatedPersonRelationshipList>relationship"`
}

type formDOffering struct {
	IndustryGroup string   `xml:"industryGroup>industryGroupType"`
	FundType      string   `xml:"industryGroup>investmentFundInfo>investmentFundType"`
	Exemptions    []string `xml:"federalExemptionsExclusions>item"`

	IsEquity     bool `xml:"typesOfSecuritiesOffered>isEquityType"`
	IsDebt       bool `xml:"typesOfSecuritiesOffered>isDebtType"`
	IsOption     bool `xml:"typesOfSecuritiesOffered>isOptionToAcquireType"`
	IsPooledFund bool `xml:"typesOfSecuritiesOffered>isPooledInvestmentFundType"`

	// Amount fields can carry "Indefinite"; parsed leniently.
	MinInvestment  string `xml:"minimumInvestmentAccepted"`
	TotalOffering  string `xml:"offeringSalesAmounts>totalOfferingAmount"`
	TotalSold      string `xml:"offeringSalesAmounts>totalAmountSold"`
	TotalRemaining string `xml:"offeringSalesAmounts>totalRemaining"`

	InvestorCount int `xml:"investors>totalNumberAlreadyInvested"`
}

// Collect lists the firm's D and D/A filings and parses each primary XML
// into a FormDFiling plus RelatedPerson items. Filings whose XML cannot be
// fetched or parsed still produce a metadata-only filing with a warning.
func (c *SECFormD) Collect(ctx context.Context, entity model.Entity) *model.Result {
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

	filings := recentFilings(sub, map[string]bool{"D": true, "D/A": true}, maxFormDFilings)
	for _, filing := range filings {
		if ctx.Err() != nil {
			return fail(result, meter, ctx.Err().Error())
		}
		c.collectFiling(ctx, entity, filing, meter, result)
	}

	c.log.Debug("collected Form D filings",
		zap.String("firm", entity.Name),
		zap.Int("filings", len(filings)),
	)
	return finish(result, meter)
}

// collectFiling fetches one filing's XML and appends its items. Fetch or
// parse failures downgrade to a metadata-only filing item.
func (c *SECFormD) collectFiling(ctx context.Context, entity model.Entity, filing filingRef, meter *fetcher.Meter, result *model.Result) {
	srcURL := archivesURL(entity.CIK, filing.AccessionNumber, "")

	raw, xmlURL, err := c.resolveXML(ctx, entity.CIK, filing, meter)
	if err != nil {
		result.Warn(fmt.Sprintf("form D %s: %v", filing.AccessionNumber, err))
		result.AddItem(metadataOnlyFormD(entity.ID, filing, srcURL))
		return
	}

	var doc formDXML
	if err := xml.Unmarshal(raw, &doc); err != nil {
		result.Warn(fmt.Sprintf("form D %s: parse XML: %v", filing.AccessionNumber, err))
		result.AddItem(metadataOnlyFormD(entity.ID, filing, srcURL))
		return
	}

	offering := doc.OfferingData

	item := model.FormDFiling{
		ItemMeta:          model.ItemMeta{URL: xmlURL, Conf: model.ConfidenceHigh},
		FirmID:            entity.ID,
		FundName:          strings.TrimSpace(doc.PrimaryIssuer.EntityName),
		AccessionNumber:   filing.AccessionNumber,
		FilingDate:        filing.FilingDate,
		OfferingAmountUSD: parseAmount(offering.TotalOffering),
		AmountSoldUSD:     parseAmount(offering.TotalSold),
		MinInvestmentUSD:  parseAmount(offering.MinInvestment),
		InvestorCount:     offering.InvestorCount,
	}
	for _, code := range offering.Exemptions {
		item.ExemptionCodes = append(item.ExemptionCodes, exemptionName(code))
	}
	item.SecurityTypes = securityTypes(offering)
	if item.FundName == "" {
		item.FundName = entity.Name + " Fund"
	}
	result.AddItem(item)

	for _, p := range doc.RelatedPersons {
		name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
		if name == "" {
			continue
		}
		result.AddItem(model.RelatedPerson{
			ItemMeta: model.ItemMeta{URL: xmlURL, Conf: model.ConfidenceHigh},
			FirmID:   entity.ID,
			FullName: name,
			Title:    strings.Join(p.Relationships, ", "),
		})
	}
}

// resolveXML finds the filing's primary XML: the conventional names first,
// then the first XML listed in the filing index.
func (c *SECFormD) resolveXML(ctx context.Context, cik string, filing filingRef, meter *fetcher.Meter) ([]byte, string, error) {
	candidates := []string{"primary_doc.xml", "form-d.xml"}
	if doc := strings.TrimSpace(filing.PrimaryDoc); strings.HasSuffix(doc, ".xml") {
		candidates = append([]string{doc}, candidates...)
	}

	for _, name := range candidates {
		url := archivesURL(cik, filing.AccessionNumber, name)
		raw, err := c.deps.Fetcher.GetBytes(ctx, url, fetcher.WithMeter(meter))
		if err == nil {
			return raw, url, nil
		}
		if !resilience.IsNotFound(err) {
			return nil, "", err
		}
	}

	idx, err := fetchFilingIndex(ctx, c.deps.Fetcher, meter, cik, filing.AccessionNumber)
	if err != nil {
		return nil, "", err
	}
	for _, item := range idx.Directory.Item {
		if strings.HasSuffix(strings.ToLower(item.Name), ".xml") {
			url := archivesURL(cik, filing.AccessionNumber, item.Name)
			raw, err := c.deps.Fetcher.GetBytes(ctx, url, fetcher.WithMeter(meter))
			if err != nil {
				return nil, "", err
			}
			return raw, url, nil
		}
	}
	return nil, "", eris.New("no XML document in filing index")
}

// metadataOnlyFormD builds the fallback filing item when the XML is
// unavailable.
func metadataOnlyFormD(firmID int64, filing filingRef, srcURL string) model.FormDFiling {
	return model.FormDFiling{
		ItemMeta:        model.ItemMeta{URL: srcURL, Conf: model.ConfidenceMedium},
		FirmID:          firmID,
		FundName:        filing.PrimaryDocDesc,
		AccessionNumber: filing.AccessionNumber,
		FilingDate:      filing.FilingDate,
		ParseFailed:     true,
	}
}

// securityTypes converts the offered-security booleans into labels.
func securityTypes(o formDOffering) []string {
	var out []string
	if o.IsEquity {
		out = append(out, "Equity")
	}
	if o.IsDebt {
		out = append(out, "Debt")
	}
	if o.IsPooledFund {
		out = append(out, "Pooled Investment Fund Interests")
	}
	if o.IsOption {
		out = append(out, "Option, Warrant or Other Right to Acquire")
	}
	return out
}

// exemptionName maps an exemption item code to its readable name.
func exemptionName(code string) string {
	code = strings.TrimSpace(code)
	if name, ok := exemptionNames[code]; ok {
		return name
	}
	return code
}

// parseAmount parses a Form D dollar amount. "Indefinite" and malformed
// values become 0.
func parseAmount(s string) int64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || strings.EqualFold(s, "indefinite") {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
