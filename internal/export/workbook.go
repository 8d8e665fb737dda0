// Package export publishes collected PE intelligence to analyst-facing
// destinations: an XLSX workbook, Salesforce accounts, and a Notion deal
// board. Exports read the entity tables and never write them.
package export

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/db"
)

// WorkbookWriter builds the analyst workbook: one sheet per entity class,
// ordered for review (firms first, then what they own, did, and employ).
type WorkbookWriter struct {
	pool db.Pool
	log  *zap.Logger
}

func NewWorkbookWriter(pool db.Pool) *WorkbookWriter {
	return &WorkbookWriter{
		pool: pool,
		log:  zap.L().With(zap.String("component", "export.workbook")),
	}
}

// WriteFile assembles the workbook and saves it to path.
func (w *WorkbookWriter) WriteFile(ctx context.Context, path string) error {
	f := xlsx.NewFile()

	sheets := []struct {
		name string
		fill func(ctx context.Context, sheet *xlsx.Sheet) (int, error)
	}{
		{"Firms", w.fillFirms},
		{"Portfolio Companies", w.fillCompanies},
		{"Deals", w.fillDeals},
		{"People", w.fillPeople},
		{"Funds", w.fillFunds},
	}
	for _, s := range sheets {
		sheet, err := f.AddSheet(s.name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", s.name)
		}
		n, err := s.fill(ctx, sheet)
		if err != nil {
			return err
		}
		w.log.Info("sheet filled", zap.String("sheet", s.name), zap.Int("rows", n))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save workbook %s", path)
	}
	return nil
}

func headerRow(sheet *xlsx.Sheet, cols ...string) {
	row := sheet.AddRow()
	for _, c := range cols {
		row.AddCell().SetString(c)
	}
}

// setOptInt leaves the cell blank for zero so empty columns read as missing
// rather than 0.
func setOptInt(cell *xlsx.Cell, v int64) {
	if v != 0 {
		cell.SetInt64(v)
	}
}

func setOptDate(cell *xlsx.Cell, t *time.Time) {
	if t != nil && !t.IsZero() {
		cell.SetString(t.Format("2006-01-02"))
	}
}

func (w *WorkbookWriter) fillFirms(ctx context.Context, sheet *xlsx.Sheet) (int, error) {
	headerRow(sheet, "ID", "Name", "Firm Type", "Sector", "AUM (USD)", "Headquarters",
		"Website", "CIK", "CRD", "Team Size", "Confidence", "Last Collected")

	rows, err := w.pool.Query(ctx, `
		SELECT id, name, COALESCE(firm_type, ''), COALESCE(sector, ''),
			COALESCE(aum_usd, 0), COALESCE(headquarters, ''), COALESCE(website, ''),
			COALESCE(cik, ''), COALESCE(crd_number, ''), COALESCE(team_size, 0),
			confidence, last_collected_at
		FROM pe_firms
		WHERE is_active
		ORDER BY name`)
	if err != nil {
		return 0, eris.Wrap(err, "export: query firms")
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			id, aum       int64
			teamSize      int
			name, ftype   string
			sector, hq    string
			website, cik  string
			crd           string
			confidence    string
			lastCollected *time.Time
		)
		if err := rows.Scan(&id, &name, &ftype, &sector, &aum, &hq, &website,
			&cik, &crd, &teamSize, &confidence, &lastCollected); err != nil {
			return n, eris.Wrap(err, "export: scan firm")
		}
		r := sheet.AddRow()
		r.AddCell().SetInt64(id)
		r.AddCell().SetString(name)
		r.AddCell().SetString(ftype)
		r.AddCell().SetString(sector)
		setOptInt(r.AddCell(), aum)
		r.AddCell().SetString(hq)
		r.AddCell().SetString(website)
		r.AddCell().SetString(cik)
		r.AddCell().SetString(crd)
		setOptInt(r.AddCell(), int64(teamSize))
		r.AddCell().SetString(confidence)
		setOptDate(r.AddCell(), lastCollected)
		n++
	}
	return n, eris.Wrap(rows.Err(), "export: read firms")
}

func (w *WorkbookWriter) fillCompanies(ctx context.Context, sheet *xlsx.Sheet) (int, error) {
	headerRow(sheet, "ID", "Firm", "Name", "Sector", "Industry", "Status",
		"Location", "Ticker", "Employees", "Confidence")

	rows, err := w.pool.Query(ctx, `
		SELECT c.id, COALESCE(f.name, ''), c.name, COALESCE(c.sector, ''),
			COALESCE(c.industry, ''), COALESCE(c.status, ''), COALESCE(c.location, ''),
			COALESCE(c.ticker, ''), COALESCE(c.employee_count, 0), c.confidence
		FROM pe_portfolio_companies c
		LEFT JOIN pe_firms f ON f.id = c.firm_id
		WHERE c.is_active
		ORDER BY f.name NULLS LAST, c.name`)
	if err != nil {
		return 0, eris.Wrap(err, "export: query companies")
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			id                 int64
			employees          int
			firm, name, sector string
			industry, status   string
			location, ticker   string
			confidence         string
		)
		if err := rows.Scan(&id, &firm, &name, &sector, &industry, &status,
			&location, &ticker, &employees, &confidence); err != nil {
			return n, eris.Wrap(err, "export: scan company")
		}
		r := sheet.AddRow()
		r.AddCell().SetInt64(id)
		r.AddCell().SetString(firm)
		r.AddCell().SetString(name)
		r.AddCell().SetString(sector)
		r.AddCell().SetString(industry)
		r.AddCell().SetString(status)
		r.AddCell().SetString(location)
		r.AddCell().SetString(ticker)
		setOptInt(r.AddCell(), int64(employees))
		r.AddCell().SetString(confidence)
		n++
	}
	return n, eris.Wrap(rows.Err(), "export: read companies")
}

func (w *WorkbookWriter) fillDeals(ctx context.Context, sheet *xlsx.Sheet) (int, error) {
	headerRow(sheet, "ID", "Firm", "Deal Type", "Target", "Announced", "Status",
		"Enterprise Value (USD)", "Seller", "Source URL")

	rows, err := w.pool.Query(ctx, `
		SELECT d.id, COALESCE(f.name, ''), COALESCE(d.deal_type, ''),
			COALESCE(d.target_company, ''), d.announced_date, COALESCE(d.status, ''),
			COALESCE(d.enterprise_value_usd, 0), COALESCE(d.seller, ''), d.source_url
		FROM pe_deals d
		LEFT JOIN pe_firms f ON f.id = d.firm_id
		ORDER BY d.announced_date DESC NULLS LAST, d.id DESC`)
	if err != nil {
		return 0, eris.Wrap(err, "export: query deals")
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			id, ev              int64
			firm, dtype, target string
			status, seller, url string
			announced           *time.Time
		)
		if err := rows.Scan(&id, &firm, &dtype, &target, &announced, &status,
			&ev, &seller, &url); err != nil {
			return n, eris.Wrap(err, "export: scan deal")
		}
		r := sheet.AddRow()
		r.AddCell().SetInt64(id)
		r.AddCell().SetString(firm)
		r.AddCell().SetString(dtype)
		r.AddCell().SetString(target)
		setOptDate(r.AddCell(), announced)
		r.AddCell().SetString(status)
		setOptInt(r.AddCell(), ev)
		r.AddCell().SetString(seller)
		r.AddCell().SetString(url)
		n++
	}
	return n, eris.Wrap(rows.Err(), "export: read deals")
}

func (w *WorkbookWriter) fillPeople(ctx context.Context, sheet *xlsx.Sheet) (int, error) {
	headerRow(sheet, "ID", "Name", "Title", "Firm", "Location", "LinkedIn", "Confidence")

	rows, err := w.pool.Query(ctx, `
		SELECT p.id, p.full_name, COALESCE(p.title, ''), COALESCE(f.name, ''),
			COALESCE(p.location, ''), COALESCE(p.linkedin_url, ''), p.confidence
		FROM pe_people p
		LEFT JOIN pe_firm_people fp ON fp.person_id = p.id
		LEFT JOIN pe_firms f ON f.id = fp.firm_id
		ORDER BY f.name NULLS LAST, p.full_name`)
	if err != nil {
		return 0, eris.Wrap(err, "export: query people")
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			id                 int64
			name, title, firm  string
			location, linkedin string
			confidence         string
		)
		if err := rows.Scan(&id, &name, &title, &firm, &location, &linkedin, &confidence); err != nil {
			return n, eris.Wrap(err, "export: scan person")
		}
		r := sheet.AddRow()
		r.AddCell().SetInt64(id)
		r.AddCell().SetString(name)
		r.AddCell().SetString(title)
		r.AddCell().SetString(firm)
		r.AddCell().SetString(location)
		r.AddCell().SetString(linkedin)
		r.AddCell().SetString(confidence)
		n++
	}
	return n, eris.Wrap(rows.Err(), "export: read people")
}

func (w *WorkbookWriter) fillFunds(ctx context.Context, sheet *xlsx.Sheet) (int, error) {
	headerRow(sheet, "ID", "Firm", "Fund", "Strategy", "Vintage", "Target Size (USD)",
		"Raised (USD)", "Status")

	rows, err := w.pool.Query(ctx, `
		SELECT fu.id, f.name, fu.name, COALESCE(fu.strategy, ''),
			COALESCE(fu.vintage_year, 0), COALESCE(fu.target_size_usd, 0),
			COALESCE(fu.raised_usd, 0), COALESCE(fu.status, '')
		FROM pe_funds fu
		JOIN pe_firms f ON f.id = fu.firm_id
		ORDER BY f.name, fu.vintage_year DESC NULLS LAST, fu.name`)
	if err != nil {
		return 0, eris.Wrap(err, "export: query funds")
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			id, target, raised    int64
			vintage               int
			firm, fund, strat, st string
		)
		if err := rows.Scan(&id, &firm, &fund, &strat, &vintage, &target, &raised, &st); err != nil {
			return n, eris.Wrap(err, "export: scan fund")
		}
		r := sheet.AddRow()
		r.AddCell().SetInt64(id)
		r.AddCell().SetString(firm)
		r.AddCell().SetString(fund)
		r.AddCell().SetString(strat)
		setOptInt(r.AddCell(), int64(vintage))
		setOptInt(r.AddCell(), target)
		setOptInt(r.AddCell(), raised)
		r.AddCell().SetString(st)
		n++
	}
	return n, eris.Wrap(rows.Err(), "export: read funds")
}
