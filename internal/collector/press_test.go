package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-intel/internal/model"
)

const eftsDeal8K = `{
	"hits": {
		"total": {"value": 1},
		"hits": [{
			"_id": "0001193125-26-000001:d1.htm",
			"_source": {
				"ciks": ["0001234567"],
				"display_names": ["Target Co  (TGT)  (CIK 0001234567)"],
				"form_type": "8-K",
				"file_date": "2026-06-01",
				"accession_no": "0001193125-26-000001"
			}
		}]
	}
}`

const prSearchPage = `<html><body>
<a href="/news-releases/acme-capital-completes-acquisition-of-target-co-301234567.html">Acme Capital Completes Acquisition of Target Co</a>
<a href="/news-releases/unrelated-product-launch-301111111.html">Unrelated Product Launch Announcement</a>
<a href="/about">About PR Newswire</a>
</body></html>`

const prArticlePage = `<html><head><script>analytics()</script></head><body>
<nav>Home | News</nav>
<h1>Acme Capital Completes Acquisition of Target Co</h1>
<p>Acme Capital today announced it has completed the acquisition of Target Co,
a maker of industrial widgets, for $500 million.</p>
<footer>Copyright</footer>
</body></html>`

func itemsOf(result *model.Result, it model.ItemType) []model.Item {
	var out []model.Item
	for _, item := range result.Items {
		if item.ItemType() == it {
			out = append(out, item)
		}
	}
	return out
}

func pressDeps(f *fakeFetcher, llm *fakeLLM) Deps {
	deps := Deps{Fetcher: f, ModelFast: "test-model", UserAgent: "test-agent"}
	if llm != nil {
		deps.LLM = llm
	}
	return deps
}

func TestPressRelease_Collect(t *testing.T) {
	f := newFakeFetcher()
	f.responses["efts.sec.gov"] = eftsDeal8K
	f.responses["prnewswire.com/search"] = prSearchPage
	f.responses["businesswire.com"] = `<html><body>no results</body></html>`
	f.responses["globenewswire.com"] = `<html><body>no results</body></html>`
	f.responses["acme-capital-completes-acquisition"] = prArticlePage

	llm := &fakeLLM{responses: []string{`{
		"is_deal": true,
		"deal_type": "Buyout",
		"target_company": "Target Co",
		"target_description": "Maker of industrial widgets.",
		"enterprise_value_usd": 500000000,
		"announced_date": "2026-06-01",
		"co_investors": ["Beta Partners"],
		"description": "Acme Capital acquired Target Co for $500 million."
	}`}}

	c := NewPressRelease(pressDeps(f, llm))
	result := c.Collect(context.Background(), firmEntity("Acme Capital"))

	require.True(t, result.Success, "warnings: %v, error: %s", result.Warnings, result.ErrorMessage)

	filings := itemsOf(result, model.ItemDeal8KFiling)
	require.Len(t, filings, 1)
	f8k := filings[0].(model.Deal8K)
	assert.Equal(t, "Target Co", f8k.CompanyName)
	assert.Equal(t, "0001234567", f8k.CIK)
	assert.Equal(t, "0001193125-26-000001", f8k.AccessionNumber)
	assert.Contains(t, f8k.SourceURL(), "www.sec.gov/Archives")

	placeholders := itemsOf(result, model.ItemDealPressRelease)
	require.Len(t, placeholders, 1)
	pr := placeholders[0].(model.DealPressRelease)
	assert.Equal(t, "Acme Capital Completes Acquisition of Target Co", pr.Headline)
	assert.Equal(t, "PR Newswire", pr.Wire)
	assert.Equal(t, model.ConfidenceLow, pr.Confidence())

	deals := itemsOf(result, model.ItemDeal)
	require.Len(t, deals, 1)
	deal := deals[0].(model.Deal)
	assert.Equal(t, "Buyout", deal.DealType)
	assert.Equal(t, "Target Co", deal.TargetCompany)
	assert.Equal(t, int64(500000000), deal.EnterpriseValueUSD)
	assert.Equal(t, "announced", deal.Status)
	assert.Equal(t, []string{"Beta Partners"}, deal.CoInvestors)
	assert.Equal(t, model.ConfidenceLLMExtracted, deal.Confidence())

	companies := itemsOf(result, model.ItemPortfolioCompany)
	require.Len(t, companies, 1)
	co := companies[0].(model.PortfolioCompany)
	assert.Equal(t, "Target Co", co.Name)
	assert.Equal(t, "current", co.Status)
}

func TestPressRelease_Collect_ExitSkipsPortfolioCompany(t *testing.T) {
	f := newFakeFetcher()
	f.responses["efts.sec.gov"] = `{"hits":{"total":{"value":0},"hits":[]}}`
	f.responses["prnewswire.com/search"] = `<html><body>
		<a href="/news-releases/acme-capital-completes-sale-of-old-co-301299999.html">Acme Capital Announces Divestiture of Old Co Holdings</a>
	</body></html>`
	f.responses["businesswire.com"] = `<html></html>`
	f.responses["globenewswire.com"] = `<html></html>`
	f.responses["completes-sale-of-old-co"] = `<html><body><p>Acme Capital has sold Old Co.</p></body></html>`

	llm := &fakeLLM{responses: []string{`{
		"is_deal": true,
		"deal_type": "Exit",
		"target_company": "Old Co",
		"closed_date": "2026-05-15",
		"description": "Acme Capital exited its stake in Old Co."
	}`}}

	c := NewPressRelease(pressDeps(f, llm))
	result := c.Collect(context.Background(), firmEntity("Acme Capital"))

	require.True(t, result.Success)

	deals := itemsOf(result, model.ItemDeal)
	require.Len(t, deals, 1)
	deal := deals[0].(model.Deal)
	assert.Equal(t, "Exit", deal.DealType)
	assert.Equal(t, "closed", deal.Status)
	assert.False(t, deal.ClosedDate.IsZero())

	assert.Empty(t, itemsOf(result, model.ItemPortfolioCompany))
}

func TestPressRelease_Collect_NoLLMKeepsPlaceholders(t *testing.T) {
	f := newFakeFetcher()
	f.responses["efts.sec.gov"] = `{"hits":{"total":{"value":0},"hits":[]}}`
	f.responses["prnewswire.com/search"] = prSearchPage
	f.responses["businesswire.com"] = `<html></html>`
	f.responses["globenewswire.com"] = `<html></html>`

	c := NewPressRelease(pressDeps(f, nil))
	result := c.Collect(context.Background(), firmEntity("Acme Capital"))

	require.True(t, result.Success)
	assert.Len(t, itemsOf(result, model.ItemDealPressRelease), 1)
	assert.Empty(t, itemsOf(result, model.ItemDeal))
	assert.NotEmpty(t, result.Warnings)
}

func TestPressRelease_Collect_NoName(t *testing.T) {
	c := NewPressRelease(pressDeps(newFakeFetcher(), nil))
	result := c.Collect(context.Background(), model.Entity{ID: 1, Type: model.EntityFirm})

	assert.False(t, result.Success)
	assert.Equal(t, "No firm name provided", result.ErrorMessage)
}

func TestPressRelease_Collect_SearchFailuresDegrade(t *testing.T) {
	// Nothing canned at all: every upstream query warns, but the collector
	// still reports success with zero items.
	c := NewPressRelease(pressDeps(newFakeFetcher(), nil))
	result := c.Collect(context.Background(), firmEntity("Acme Capital"))

	assert.True(t, result.Success)
	assert.Empty(t, result.Items)
	assert.Len(t, result.Warnings, 4) // EFTS plus three wires
}

func TestMatchesDealKeywords(t *testing.T) {
	assert.True(t, matchesDealKeywords("Acme Completes Acquisition of Target"))
	assert.True(t, matchesDealKeywords("Acme announces growth INVESTMENT in Target"))
	assert.False(t, matchesDealKeywords("Acme opens new office in Boston"))
}

func TestNormalizeDealType(t *testing.T) {
	assert.Equal(t, "Buyout", normalizeDealType("buyout"))
	assert.Equal(t, "Add-On", normalizeDealType("Add on"))
	assert.Equal(t, "Recapitalization", normalizeDealType("recap"))
	assert.Equal(t, "Other", normalizeDealType("strategic partnership"))
	assert.Equal(t, "", normalizeDealType(""))
}

func TestWireLinks_FiltersByHrefAndKeywords(t *testing.T) {
	doc, err := parseHTML(prSearchPage)
	require.NoError(t, err)

	hits := wireLinks(doc, prWires[0])
	require.Len(t, hits, 1)
	assert.Equal(t, "Acme Capital Completes Acquisition of Target Co", hits[0].headline)
	assert.Equal(t, "https://www.prnewswire.com/news-releases/acme-capital-completes-acquisition-of-target-co-301234567.html", hits[0].url)
	assert.Equal(t, "PR Newswire", hits[0].wire)
}

func TestArticleText_DropsChrome(t *testing.T) {
	text := articleText(prArticlePage)
	assert.Contains(t, text, "completed the acquisition of Target Co")
	assert.NotContains(t, text, "analytics")
	assert.NotContains(t, text, "Copyright")
}
