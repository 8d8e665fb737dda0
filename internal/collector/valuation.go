package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/pkg/anthropic"
)

const valuationSystemPrompt = `You are a private equity valuation analyst. Estimate private company valuations from limited data using comparable multiples and industry norms. Respond with a single JSON object only, no prose.`

const valuationUserPrompt = `Estimate the enterprise value of the following private company.

%s

Return a JSON object with these fields:
- enterprise_value_usd (integer)
- equity_value_usd (integer, if estimable)
- low_usd and high_usd (integers, the plausible range)
- valuation_method (one of: Comparable Multiples, DCF Proxy, Revenue Multiple, EBITDA Multiple, Asset-Based, Blended)
- revenue_multiple and ebitda_multiple (numbers, the multiples you applied)
- comparable_companies (array of public tickers)
- industry_median_revenue_multiple and industry_median_ebitda_multiple (numbers)
- confidence (Low, Medium, or High)
- key_assumptions (array of strings)`

// valuationMethods is the closed set the estimator may report.
var valuationMethods = map[string]bool{
	"Comparable Multiples": true,
	"DCF Proxy":            true,
	"Revenue Multiple":     true,
	"EBITDA Multiple":      true,
	"Asset-Based":          true,
	"Blended":              true,
}

// valuationEstimate is the JSON shape requested from the model.
type valuationEstimate struct {
	EnterpriseValueUSD     int64    `json:"enterprise_value_usd"`
	EquityValueUSD         int64    `json:"equity_value_usd"`
	LowUSD                 int64    `json:"low_usd"`
	HighUSD                int64    `json:"high_usd"`
	ValuationMethod        string   `json:"valuation_method"`
	RevenueMultiple        float64  `json:"revenue_multiple"`
	EBITDAMultiple         float64  `json:"ebitda_multiple"`
	ComparableCompanies    []string `json:"comparable_companies"`
	IndustryMedianRevenueX float64  `json:"industry_median_revenue_multiple"`
	IndustryMedianEBITDAX  float64  `json:"industry_median_ebitda_multiple"`
	Confidence             string   `json:"confidence"`
	KeyAssumptions         []string `json:"key_assumptions"`
}

// ValuationEstimator asks the LLM for an enterprise-value estimate of a
// private portfolio company, grounded in whatever financials earlier
// collectors have stored.
type ValuationEstimator struct {
	deps Deps
	log  *zap.Logger
}

// NewValuationEstimator creates the valuation estimator.
func NewValuationEstimator(deps Deps) *ValuationEstimator {
	return &ValuationEstimator{
		deps: deps,
		log:  zap.L().With(zap.String("component", "collector.valuation_estimator")),
	}
}

func (c *ValuationEstimator) Source() model.Source         { return model.SourceValuationEstimator }
func (c *ValuationEstimator) EntityType() model.EntityType { return model.EntityCompany }

// Collect builds the financial context and requests one estimate. Companies
// with neither revenue nor EBITDA on record complete empty with a warning.
func (c *ValuationEstimator) Collect(ctx context.Context, entity model.Entity) *model.Result {
	result := model.NewResult(entity, c.Source())
	if c.deps.LLM == nil {
		return result.Fail("LLM client not configured")
	}

	fin := c.loadFinance(ctx, entity)
	if fin == nil || (fin.RevenueUSD == 0 && fin.EBITDAUSD == 0) {
		result.Warn(fmt.Sprintf("no revenue or EBITDA on record for %q, skipping estimate", entity.Name))
		return result.Complete()
	}

	est, err := c.estimate(ctx, buildFinancialContext(entity, fin))
	if err != nil {
		c.log.Warn("valuation estimate failed",
			zap.String("company", entity.Name),
			zap.Error(err),
		)
		result.Warn("LLM extraction returned no result")
		return result.Complete()
	}
	if est.EnterpriseValueUSD <= 0 {
		result.Warn("estimate returned no enterprise value")
		return result.Complete()
	}

	method := est.ValuationMethod
	if !valuationMethods[method] {
		method = "Blended"
	}

	result.AddItem(model.CompanyValuation{
		ItemMeta:           model.ItemMeta{Conf: model.ConfidenceLLMExtracted},
		CompanyID:          entity.ID,
		Method:             method,
		EnterpriseValueUSD: est.EnterpriseValueUSD,
		LowUSD:             est.LowUSD,
		HighUSD:            est.HighUSD,
		RevenueMultiple:    est.RevenueMultiple,
		EBITDAMultiple:     est.EBITDAMultiple,
		PeerTickers:        est.ComparableCompanies,
		Notes:              estimateNotes(est),
		ValuationDate:      time.Now().UTC(),
	})
	return result.Complete()
}

// loadFinance reads the company snapshot when a reader is wired.
func (c *ValuationEstimator) loadFinance(ctx context.Context, entity model.Entity) *model.CompanyFinance {
	if c.deps.Finance == nil {
		return nil
	}
	fin, err := c.deps.Finance.CompanyFinance(ctx, entity.ID)
	if err != nil {
		c.log.Warn("load company financials failed",
			zap.Int64("company_id", entity.ID),
			zap.Error(err),
		)
		return nil
	}
	return fin
}

// buildFinancialContext renders the known company facts as plain text for
// the prompt, skipping unknown fields.
func buildFinancialContext(entity model.Entity, fin *model.CompanyFinance) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", entity.Name)
	if fin.Sector != "" {
		fmt.Fprintf(&b, "Sector: %s\n", fin.Sector)
	}
	if fin.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", fin.Industry)
	}
	if fin.RevenueUSD > 0 {
		fmt.Fprintf(&b, "Revenue: $%d", fin.RevenueUSD)
		if fin.FiscalYear > 0 {
			fmt.Fprintf(&b, " (FY%d)", fin.FiscalYear)
		}
		b.WriteString("\n")
	}
	if fin.EBITDAUSD != 0 {
		fmt.Fprintf(&b, "EBITDA: $%d\n", fin.EBITDAUSD)
	}
	if fin.NetIncomeUSD != 0 {
		fmt.Fprintf(&b, "Net income: $%d\n", fin.NetIncomeUSD)
	}
	if fin.EmployeeCount > 0 {
		fmt.Fprintf(&b, "Employees: %d\n", fin.EmployeeCount)
	}
	if fin.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", truncateText(fin.Description, 1500))
	}
	return strings.TrimRight(b.String(), "\n")
}

// estimate sends one valuation request and parses the response object.
func (c *ValuationEstimator) estimate(ctx context.Context, finContext string) (*valuationEstimate, error) {
	temp := 0.0
	resp, err := c.deps.LLM.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.deps.ModelDeep,
		MaxTokens:   1024,
		Temperature: &temp,
		System:      anthropic.CachedSystem(valuationSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(valuationUserPrompt, finContext)},
		},
		Label: string(model.SourceValuationEstimator),
	})
	if err != nil {
		return nil, err
	}
	return decodeLLMObject[valuationEstimate](messageText(resp))
}

// estimateNotes folds the fields without columns of their own into the
// notes text.
func estimateNotes(est *valuationEstimate) string {
	var parts []string
	if est.Confidence != "" {
		parts = append(parts, "Confidence: "+est.Confidence)
	}
	if est.EquityValueUSD > 0 {
		parts = append(parts, fmt.Sprintf("Equity value: $%d", est.EquityValueUSD))
	}
	if est.IndustryMedianRevenueX > 0 {
		parts = append(parts, fmt.Sprintf("Industry median EV/Revenue: %.1fx", est.IndustryMedianRevenueX))
	}
	if est.IndustryMedianEBITDAX > 0 {
		parts = append(parts, fmt.Sprintf("Industry median EV/EBITDA: %.1fx", est.IndustryMedianEBITDAX))
	}
	if len(est.KeyAssumptions) > 0 {
		parts = append(parts, "Assumptions: "+strings.Join(est.KeyAssumptions, "; "))
	}
	return strings.Join(parts, ". ")
}
