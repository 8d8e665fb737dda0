package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/model"
)

// applyPortfolioCompany creates the company on first sight or merges profile
// fields into the existing row. Companies are keyed by name across firms; a
// company first surfaced by one firm is enriched, not duplicated, when
// another names it.
func (p *Persister) applyPortfolioCompany(ctx context.Context, q pgx.Tx, v *model.PortfolioCompany, src model.Source) (outcome, error) {
	if v.Name == "" {
		return outcomeSkipped, eris.New("persist: portfolio company without name")
	}
	id, err := p.lookupCompany(ctx, q, v.Name)
	if err != nil {
		return outcomeSkipped, err
	}
	if id == 0 {
		return p.insertCompany(ctx, q, v, src)
	}
	return p.mergeCompany(ctx, q, id, v, src)
}

func (p *Persister) insertCompany(ctx context.Context, q pgx.Tx, v *model.PortfolioCompany, src model.Source) (outcome, error) {
	var id int64
	err := q.QueryRow(ctx,
		`INSERT INTO pe_portfolio_companies (firm_id, name, website, sector, industry, description,
			status, investment_year, exit_year, location, ticker, cusip, confidence, data_sources)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id`,
		int64OrNil(v.FirmID), v.Name, textOrNil(v.Website), textOrNil(v.Sector), textOrNil(v.Industry),
		textOrNil(v.Description), textOrNil(v.Status), intOrNil(v.InvestmentYear), intOrNil(v.ExitYear),
		textOrNil(v.Location), textOrNil(v.Ticker), textOrNil(v.CUSIP),
		string(confOrLow(v.Conf)), []string{string(src)},
	).Scan(&id)
	if err != nil {
		return outcomeSkipped, eris.Wrapf(err, "persist: create portfolio company %q", v.Name)
	}
	p.companyIDs[normName(v.Name)] = id
	return outcomePersisted, nil
}

func (p *Persister) mergeCompany(ctx context.Context, q pgx.Tx, id int64, v *model.PortfolioCompany, src model.Source) (outcome, error) {
	var cur struct {
		firmID                      *int64
		website, sector, industry   *string
		description, status         *string
		investmentYear, exitYear    *int
		location, ticker, cusip     *string
		confidence                  string
		dataSources                 []string
	}
	err := q.QueryRow(ctx,
		`SELECT firm_id, website, sector, industry, description, status, investment_year, exit_year,
			location, ticker, cusip, confidence, data_sources
		 FROM pe_portfolio_companies WHERE id = $1`, id).
		Scan(&cur.firmID, &cur.website, &cur.sector, &cur.industry, &cur.description, &cur.status,
			&cur.investmentYear, &cur.exitYear, &cur.location, &cur.ticker, &cur.cusip,
			&cur.confidence, &cur.dataSources)
	if err != nil {
		return outcomeSkipped, eris.Wrapf(err, "persist: read portfolio company %d", id)
	}

	over := v.Conf.AtLeast(model.Confidence(cur.confidence))
	_, err = q.Exec(ctx,
		`UPDATE pe_portfolio_companies SET firm_id = $1, website = $2, sector = $3, industry = $4,
			description = $5, status = $6, investment_year = $7, exit_year = $8, location = $9,
			ticker = $10, cusip = $11, confidence = $12, data_sources = $13, updated_at = now()
		 WHERE id = $14`,
		mergeID(cur.firmID, v.FirmID),
		mergeText(cur.website, v.Website, over),
		mergeText(cur.sector, v.Sector, over),
		mergeText(cur.industry, v.Industry, over),
		mergeText(cur.description, v.Description, over),
		mergeText(cur.status, v.Status, over),
		mergeInt(cur.investmentYear, v.InvestmentYear, over),
		mergeInt(cur.exitYear, v.ExitYear, over),
		mergeText(cur.location, v.Location, over),
		mergeText(cur.ticker, v.Ticker, over),
		mergeText(cur.cusip, v.CUSIP, over),
		string(maxConfidence(model.Confidence(cur.confidence), v.Conf)),
		unionSources(cur.dataSources, src),
		id,
	)
	if err != nil {
		return outcomeSkipped, eris.Wrapf(err, "persist: update portfolio company %d", id)
	}
	return outcomeUpdated, nil
}

// applyCompanyUpdate merges enrichment fields into a known company. The
// is_new hint lets an enrichment source create the row when nothing matched
// upstream.
func (p *Persister) applyCompanyUpdate(ctx context.Context, q pgx.Tx, v *model.CompanyUpdate, src model.Source) (outcome, error) {
	id := v.CompanyID
	if id == 0 && v.Name != "" {
		var err error
		id, err = p.lookupCompany(ctx, q, v.Name)
		if err != nil {
			return outcomeSkipped, err
		}
	}
	if id == 0 {
		if !v.IsNew || v.Name == "" {
			return outcomeSkipped, eris.New("persist: company update for unknown company")
		}
		var newID int64
		err := q.QueryRow(ctx,
			`INSERT INTO pe_portfolio_companies (name, website, sector, industry, description,
				location, employee_count, ticker, confidence, data_sources)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING id`,
			v.Name, textOrNil(v.Website), textOrNil(v.Sector), textOrNil(v.Industry),
			textOrNil(v.Description), textOrNil(v.Location), intOrNil(v.EmployeeCount), textOrNil(v.Ticker),
			string(confOrLow(v.Conf)), []string{string(src)},
		).Scan(&newID)
		if err != nil {
			return outcomeSkipped, eris.Wrapf(err, "persist: create company %q", v.Name)
		}
		p.companyIDs[normName(v.Name)] = newID
		return outcomePersisted, nil
	}

	var cur struct {
		website, sector, industry, description, location, ticker *string
		employeeCount                                            *int
		confidence                                               string
		dataSources                                              []string
	}
	err := q.QueryRow(ctx,
		`SELECT website, sector, industry, description, location, ticker, employee_count, confidence, data_sources
		 FROM pe_portfolio_companies WHERE id = $1`, id).
		Scan(&cur.website, &cur.sector, &cur.industry, &cur.description, &cur.location, &cur.ticker,
			&cur.employeeCount, &cur.confidence, &cur.dataSources)
	if err != nil {
		return outcomeSkipped, eris.Wrapf(err, "persist: read portfolio company %d", id)
	}

	over := v.Conf.AtLeast(model.Confidence(cur.confidence))
	_, err = q.Exec(ctx,
		`UPDATE pe_portfolio_companies SET website = $1, sector = $2, industry = $3, description = $4,
			location = $5, ticker = $6, employee_count = $7, confidence = $8, data_sources = $9, updated_at = now()
		 WHERE id = $10`,
		mergeText(cur.website, v.Website, over),
		mergeText(cur.sector, v.Sector, over),
		mergeText(cur.industry, v.Industry, over),
		mergeText(cur.description, v.Description, over),
		mergeText(cur.location, v.Location, over),
		mergeText(cur.ticker, v.Ticker, over),
		mergeInt(cur.employeeCount, v.EmployeeCount, over),
		string(maxConfidence(model.Confidence(cur.confidence), v.Conf)),
		unionSources(cur.dataSources, src),
		id,
	)
	if err != nil {
		return outcomeSkipped, eris.Wrapf(err, "persist: update portfolio company %d", id)
	}
	return outcomeUpdated, nil
}

// applyCompanyFinancial writes one fiscal period, one row per
// (company, year, period). A repeat at equal or higher confidence refreshes
// the figures; a lower-confidence repeat is dropped.
func (p *Persister) applyCompanyFinancial(ctx context.Context, q pgx.Tx, v *model.CompanyFinancial) (outcome, error) {
	if v.CompanyID == 0 || v.FiscalYear == 0 {
		return outcomeSkipped, eris.New("persist: company financial without company or fiscal year")
	}
	period := v.FiscalPeriod
	if period == "" {
		period = "FY"
	}

	var (
		rowID int64
		cur   struct {
			revenue, ebitda, netIncome *int64
			employeeCount              *int
			currency                   *string
			reportDate                 *time.Time
			confidence                 string
		}
	)
	err := q.QueryRow(ctx,
		`SELECT id, revenue_usd, ebitda_usd, net_income_usd, employee_count, currency, report_date, confidence
		 FROM pe_company_financials WHERE company_id = $1 AND fiscal_year = $2 AND fiscal_period = $3`,
		v.CompanyID, v.FiscalYear, period).
		Scan(&rowID, &cur.revenue, &cur.ebitda, &cur.netIncome, &cur.employeeCount,
			&cur.currency, &cur.reportDate, &cur.confidence)
	switch {
	case err == nil:
		if !v.Conf.AtLeast(model.Confidence(cur.confidence)) {
			p.log.Debug("dropping lower-confidence financial period",
				zap.Int64("company_id", v.CompanyID),
				zap.Int("fiscal_year", v.FiscalYear))
			return outcomeSkipped, nil
		}
		_, err = q.Exec(ctx,
			`UPDATE pe_company_financials SET revenue_usd = $1, ebitda_usd = $2, net_income_usd = $3,
				employee_count = $4, currency = $5, report_date = $6, confidence = $7, updated_at = now()
			 WHERE id = $8`,
			mergeInt64(cur.revenue, v.RevenueUSD, true),
			mergeInt64(cur.ebitda, v.EBITDAUSD, true),
			mergeInt64(cur.netIncome, v.NetIncomeUSD, true),
			mergeInt(cur.employeeCount, v.EmployeeCount, true),
			mergeText(cur.currency, v.Currency, true),
			mergeDate(cur.reportDate, v.ReportDate, true),
			string(v.Conf),
			rowID,
		)
		if err != nil {
			return outcomeSkipped, eris.Wrap(err, "persist: update company financial")
		}
		return outcomeUpdated, nil
	case errors.Is(err, pgx.ErrNoRows):
		_, err = q.Exec(ctx,
			`INSERT INTO pe_company_financials (company_id, fiscal_year, fiscal_period, revenue_usd,
				ebitda_usd, net_income_usd, employee_count, currency, report_date, source_url, confidence)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			v.CompanyID, v.FiscalYear, period, int64OrNil(v.RevenueUSD), int64OrNil(v.EBITDAUSD),
			int64OrNil(v.NetIncomeUSD), intOrNil(v.EmployeeCount), textOrNil(v.Currency),
			timeOrNil(v.ReportDate), textOrNil(v.URL), string(confOrLow(v.Conf)))
		if err != nil {
			return outcomeSkipped, eris.Wrap(err, "persist: record company financial")
		}
		return outcomePersisted, nil
	default:
		return outcomeSkipped, eris.Wrap(err, "persist: find company financial")
	}
}

// applyCompanyValuation appends a valuation snapshot. Estimates are never
// merged; history is the point.
func (p *Persister) applyCompanyValuation(ctx context.Context, q pgx.Tx, v *model.CompanyValuation) (outcome, error) {
	if v.CompanyID == 0 || v.Method == "" {
		return outcomeSkipped, eris.New("persist: valuation without company or method")
	}
	_, err := q.Exec(ctx,
		`INSERT INTO pe_company_valuations (company_id, method, enterprise_value_usd, low_usd, high_usd,
			revenue_multiple, ebitda_multiple, peer_tickers, notes, valuation_date, source_url, confidence)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		v.CompanyID, v.Method, int64OrNil(v.EnterpriseValueUSD), int64OrNil(v.LowUSD),
		int64OrNil(v.HighUSD), floatOrNil(v.RevenueMultiple), floatOrNil(v.EBITDAMultiple),
		sliceOrNil(v.PeerTickers), textOrNil(v.Notes), timeOrNil(v.ValuationDate),
		textOrNil(v.URL), string(confOrLow(v.Conf)))
	if err != nil {
		return outcomeSkipped, eris.Wrap(err, "persist: record valuation")
	}
	return outcomePersisted, nil
}
