package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/pkg/yfinance"
)

// usExchanges are the exchange codes accepted when resolving a ticker from
// a name search.
var usExchanges = map[string]bool{
	"NYQ": true, // NYSE
	"NMS": true, // NASDAQ Global Select
	"NGM": true, // NASDAQ Global Market
	"NCM": true, // NASDAQ Capital Market
	"ASE": true, // NYSE American
	"PCX": true, // NYSE Arca
}

// PublicComps pulls fundamentals for publicly traded portfolio companies
// from Yahoo Finance: one financial period, one market valuation, and a
// profile patch.
type PublicComps struct {
	deps Deps
	log  *zap.Logger
}

// NewPublicComps creates the public comps collector.
func NewPublicComps(deps Deps) *PublicComps {
	return &PublicComps{
		deps: deps,
		log:  zap.L().With(zap.String("component", "collector.public_comps")),
	}
}

func (c *PublicComps) Source() model.Source         { return model.SourcePublicComps }
func (c *PublicComps) EntityType() model.EntityType { return model.EntityCompany }

// Collect resolves the company's ticker and fetches its quote summary.
// Companies with no resolvable US listing complete empty with a warning.
func (c *PublicComps) Collect(ctx context.Context, entity model.Entity) *model.Result {
	result := model.NewResult(entity, c.Source())
	if c.deps.YFinance == nil {
		return result.Fail("finance client not configured")
	}

	ticker := strings.ToUpper(strings.TrimSpace(entity.Ticker))
	if ticker == "" {
		var err error
		ticker, err = c.resolveTicker(ctx, entity.Name)
		result.RequestsMade++
		if err != nil {
			return result.Fail("ticker search: " + err.Error())
		}
		if ticker == "" {
			result.Warn(fmt.Sprintf("no US-listed ticker found for %q", entity.Name))
			return result.Complete()
		}
	}

	qs, err := c.deps.YFinance.QuoteSummary(ctx, ticker, nil)
	result.RequestsMade++
	if err != nil {
		return result.Fail(fmt.Sprintf("quote summary for %s: %v", ticker, err))
	}

	sourceURL := "https://finance.yahoo.com/quote/" + ticker
	now := time.Now().UTC()

	c.addFinancial(result, entity.ID, qs, sourceURL, now)
	c.addValuation(result, entity.ID, ticker, qs, sourceURL, now)
	c.addProfile(result, entity.ID, ticker, qs, sourceURL)

	c.log.Debug("collected public comps",
		zap.String("company", entity.Name),
		zap.String("ticker", ticker),
	)
	return result.Complete()
}

// resolveTicker searches Yahoo for the company name and returns the first
// US-listed equity match. Dotted symbols are foreign listings or share
// classes on other venues and are skipped.
func (c *PublicComps) resolveTicker(ctx context.Context, name string) (string, error) {
	resp, err := c.deps.YFinance.Search(ctx, name)
	if err != nil {
		return "", err
	}
	for _, q := range resp.Quotes {
		if q.QuoteType != "EQUITY" || q.Symbol == "" {
			continue
		}
		if strings.Contains(q.Symbol, ".") {
			continue
		}
		if !usExchanges[q.Exchange] {
			continue
		}
		return q.Symbol, nil
	}
	return "", nil
}

func (c *PublicComps) addFinancial(result *model.Result, companyID int64, qs *yfinance.QuoteSummary, sourceURL string, now time.Time) {
	fin := qs.FinancialData
	if fin.TotalRevenue.Raw == 0 && fin.EBITDA.Raw == 0 {
		return
	}
	result.AddItem(model.CompanyFinancial{
		ItemMeta:     model.ItemMeta{URL: sourceURL, Conf: model.ConfidenceHigh},
		CompanyID:    companyID,
		FiscalYear:   now.Year(),
		FiscalPeriod: "TTM",
		RevenueUSD:   fin.TotalRevenue.Int64(),
		EBITDAUSD:    fin.EBITDA.Int64(),
		Currency:     qs.Price.Currency,
		ReportDate:   now,
	})
}

func (c *PublicComps) addValuation(result *model.Result, companyID int64, ticker string, qs *yfinance.QuoteSummary, sourceURL string, now time.Time) {
	stats := qs.DefaultKeyStatistics
	det := qs.SummaryDetail
	if qs.Price.MarketCap.Raw == 0 && stats.EnterpriseValue.Raw == 0 {
		return
	}

	notes := fmt.Sprintf("market cap %s, P/E %.1f, 52w range %s-%s",
		qs.Price.MarketCap.Fmt, det.TrailingPE.Raw,
		det.FiftyTwoWeekLow.Fmt, det.FiftyTwoWeekHigh.Fmt)

	result.AddItem(model.CompanyValuation{
		ItemMeta:           model.ItemMeta{URL: sourceURL, Conf: model.ConfidenceHigh},
		CompanyID:          companyID,
		Method:             "Market Quote",
		EnterpriseValueUSD: stats.EnterpriseValue.Int64(),
		RevenueMultiple:    stats.EnterpriseToRevenue.Raw,
		EBITDAMultiple:     stats.EnterpriseToEbitda.Raw,
		PeerTickers:        []string{ticker},
		Notes:              notes,
		ValuationDate:      now,
	})
}

func (c *PublicComps) addProfile(result *model.Result, companyID int64, ticker string, qs *yfinance.QuoteSummary, sourceURL string) {
	profile := qs.AssetProfile
	update := model.CompanyUpdate{
		ItemMeta:      model.ItemMeta{URL: sourceURL, Conf: model.ConfidenceHigh},
		CompanyID:     companyID,
		Sector:        profile.Sector,
		Industry:      profile.Industry,
		Description:   profile.LongBusinessSummary,
		Location:      joinLocation(profile.City, profile.State),
		EmployeeCount: profile.FullTimeEmployees,
		Ticker:        ticker,
		IsNew:         false,
	}
	if profile.Website != "" {
		update.Website = profile.Website
	}
	result.AddItem(update)
}

// joinLocation renders "City, ST" dropping empty parts.
func joinLocation(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
