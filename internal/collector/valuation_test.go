package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-intel/internal/model"
)

const valuationJSON = `{
	"enterprise_value_usd": 180000000,
	"equity_value_usd": 150000000,
	"low_usd": 140000000,
	"high_usd": 220000000,
	"valuation_method": "EBITDA Multiple",
	"revenue_multiple": 4.5,
	"ebitda_multiple": 12.0,
	"comparable_companies": ["RHI", "KFRC"],
	"industry_median_revenue_multiple": 3.8,
	"industry_median_ebitda_multiple": 11.2,
	"confidence": "Medium",
	"key_assumptions": ["TTM EBITDA is sustainable", "no major customer concentration"]
}`

func staffingFinance() *model.CompanyFinance {
	return &model.CompanyFinance{
		CompanyID:     42,
		Name:          "Acme Staffing",
		Sector:        "Industrials",
		Industry:      "Staffing & Employment Services",
		EmployeeCount: 850,
		FiscalYear:    2025,
		RevenueUSD:    40_000_000,
		EBITDAUSD:     15_000_000,
	}
}

func TestValuationEstimator_Collect(t *testing.T) {
	llm := &fakeLLM{responses: []string{valuationJSON}}
	c := NewValuationEstimator(Deps{
		LLM:       llm,
		Finance:   &fakeFinance{fin: staffingFinance()},
		ModelDeep: "deep-model",
	})

	result := c.Collect(context.Background(), companyEntity("Acme Staffing", ""))

	require.True(t, result.Success)
	require.Len(t, result.Items, 1)

	val := result.Items[0].(model.CompanyValuation)
	assert.Equal(t, int64(42), val.CompanyID)
	assert.Equal(t, "EBITDA Multiple", val.Method)
	assert.Equal(t, int64(180_000_000), val.EnterpriseValueUSD)
	assert.Equal(t, int64(140_000_000), val.LowUSD)
	assert.Equal(t, int64(220_000_000), val.HighUSD)
	assert.Equal(t, 12.0, val.EBITDAMultiple)
	assert.Equal(t, []string{"RHI", "KFRC"}, val.PeerTickers)
	assert.Equal(t, model.ConfidenceLLMExtracted, val.Confidence())
	assert.Contains(t, val.Notes, "Confidence: Medium")
	assert.Contains(t, val.Notes, "Equity value: $150000000")
	assert.Contains(t, val.Notes, "TTM EBITDA is sustainable")

	require.Len(t, llm.requests, 1)
	assert.Equal(t, "deep-model", llm.requests[0].Model)
	assert.Contains(t, llm.requests[0].Messages[0].Content, "Revenue: $40000000 (FY2025)")
	assert.Contains(t, llm.requests[0].Messages[0].Content, "EBITDA: $15000000")
}

func TestValuationEstimator_Collect_UnknownMethodFallsBack(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"enterprise_value_usd": 90000000, "valuation_method": "Gut Feel"}`}}
	c := NewValuationEstimator(Deps{LLM: llm, Finance: &fakeFinance{fin: staffingFinance()}})

	result := c.Collect(context.Background(), companyEntity("Acme Staffing", ""))

	require.True(t, result.Success)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Blended", result.Items[0].(model.CompanyValuation).Method)
}

func TestValuationEstimator_Collect_NoFinancials(t *testing.T) {
	llm := &fakeLLM{responses: []string{valuationJSON}}
	c := NewValuationEstimator(Deps{
		LLM:     llm,
		Finance: &fakeFinance{fin: &model.CompanyFinance{CompanyID: 42, Name: "Acme Staffing"}},
	})

	result := c.Collect(context.Background(), companyEntity("Acme Staffing", ""))

	assert.True(t, result.Success)
	assert.Empty(t, result.Items)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no revenue or EBITDA on record")
	assert.Empty(t, llm.requests)
}

func TestValuationEstimator_Collect_NoFinanceReader(t *testing.T) {
	c := NewValuationEstimator(Deps{LLM: &fakeLLM{}})

	result := c.Collect(context.Background(), companyEntity("Acme Staffing", ""))

	assert.True(t, result.Success)
	assert.Empty(t, result.Items)
	require.Len(t, result.Warnings, 1)
}

func TestValuationEstimator_Collect_NoLLM(t *testing.T) {
	c := NewValuationEstimator(Deps{Finance: &fakeFinance{fin: staffingFinance()}})

	result := c.Collect(context.Background(), companyEntity("Acme Staffing", ""))

	assert.False(t, result.Success)
	assert.Equal(t, "LLM client not configured", result.ErrorMessage)
}

func TestValuationEstimator_Collect_LLMErrorDegrades(t *testing.T) {
	llm := &fakeLLM{err: errors.New("overloaded")}
	c := NewValuationEstimator(Deps{LLM: llm, Finance: &fakeFinance{fin: staffingFinance()}})

	result := c.Collect(context.Background(), companyEntity("Acme Staffing", ""))

	assert.True(t, result.Success)
	assert.Empty(t, result.Items)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "LLM extraction returned no result", result.Warnings[0])
}

func TestValuationEstimator_Collect_ZeroEstimate(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"enterprise_value_usd": 0}`}}
	c := NewValuationEstimator(Deps{LLM: llm, Finance: &fakeFinance{fin: staffingFinance()}})

	result := c.Collect(context.Background(), companyEntity("Acme Staffing", ""))

	assert.True(t, result.Success)
	assert.Empty(t, result.Items)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "estimate returned no enterprise value", result.Warnings[0])
}

func TestBuildFinancialContext(t *testing.T) {
	got := buildFinancialContext(companyEntity("Acme Staffing", ""), staffingFinance())

	want := "Company: Acme Staffing\n" +
		"Sector: Industrials\n" +
		"Industry: Staffing & Employment Services\n" +
		"Revenue: $40000000 (FY2025)\n" +
		"EBITDA: $15000000\n" +
		"Employees: 850"
	assert.Equal(t, want, got)
}

func TestEstimateNotes(t *testing.T) {
	est := &valuationEstimate{
		Confidence:             "High",
		EquityValueUSD:         100,
		IndustryMedianRevenueX: 3.8,
		KeyAssumptions:         []string{"a", "b"},
	}
	got := estimateNotes(est)
	assert.Equal(t, "Confidence: High. Equity value: $100. Industry median EV/Revenue: 3.8x. Assumptions: a; b", got)

	assert.Equal(t, "", estimateNotes(&valuationEstimate{}))
}
