package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pe-intel/internal/db"
	"github.com/sells-group/pe-intel/internal/model"
)

// Catalog resolves collection targets from the entity tables and records
// when each target was last collected.
type Catalog struct {
	pool db.Pool
}

func NewCatalog(pool db.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// ResolveEntities returns the entities a request targets. Explicit IDs win;
// otherwise active rows filtered by the request's firm types and sectors.
// Fund and deal collection is firm-scoped, so those requests resolve firms.
func (c *Catalog) ResolveEntities(ctx context.Context, req model.Request) ([]model.Entity, error) {
	switch req.EntityType {
	case model.EntityCompany:
		return c.listCompanies(ctx, req)
	case model.EntityPerson:
		return c.listPeople(ctx, req.PersonIDs)
	default:
		return c.listFirms(ctx, req)
	}
}

func (c *Catalog) listFirms(ctx context.Context, req model.Request) ([]model.Entity, error) {
	query := `SELECT id, name, COALESCE(website, ''), COALESCE(cik, ''), COALESCE(ticker, ''),
		COALESCE(crd_number, ''), COALESCE(linkedin_url, ''), COALESCE(sector, ''),
		COALESCE(firm_type, ''), last_collected_at
	FROM pe_firms`

	var (
		conds  []string
		args   []any
		argIdx = 1
	)
	if len(req.FirmIDs) > 0 {
		conds = append(conds, fmt.Sprintf("id = ANY($%d)", argIdx))
		args = append(args, req.FirmIDs)
		argIdx++
	} else {
		conds = append(conds, "is_active")
		if len(req.FirmTypes) > 0 {
			conds = append(conds, fmt.Sprintf("firm_type = ANY($%d)", argIdx))
			args = append(args, req.FirmTypes)
			argIdx++
		}
		if len(req.Sectors) > 0 {
			conds = append(conds, fmt.Sprintf("sector = ANY($%d)", argIdx))
			args = append(args, req.Sectors)
			argIdx++
		}
	}
	query += " WHERE " + strings.Join(conds, " AND ") + " ORDER BY id"

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: list firms")
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		e := model.Entity{Type: model.EntityFirm}
		if err := rows.Scan(&e.ID, &e.Name, &e.Website, &e.CIK, &e.Ticker, &e.CRDNumber,
			&e.LinkedIn, &e.Sector, &e.FirmType, &e.LastCollectedAt); err != nil {
			return nil, eris.Wrap(err, "catalog: scan firm")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "catalog: list firms")
}

func (c *Catalog) listCompanies(ctx context.Context, req model.Request) ([]model.Entity, error) {
	query := `SELECT id, name, COALESCE(website, ''), COALESCE(ticker, ''), COALESCE(sector, ''),
		COALESCE(firm_id, 0), last_collected_at
	FROM pe_portfolio_companies`

	var (
		conds  []string
		args   []any
		argIdx = 1
	)
	if len(req.CompanyIDs) > 0 {
		conds = append(conds, fmt.Sprintf("id = ANY($%d)", argIdx))
		args = append(args, req.CompanyIDs)
		argIdx++
	} else {
		conds = append(conds, "is_active")
		if len(req.Sectors) > 0 {
			conds = append(conds, fmt.Sprintf("sector = ANY($%d)", argIdx))
			args = append(args, req.Sectors)
			argIdx++
		}
	}
	query += " WHERE " + strings.Join(conds, " AND ") + " ORDER BY id"

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: list companies")
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		e := model.Entity{Type: model.EntityCompany}
		if err := rows.Scan(&e.ID, &e.Name, &e.Website, &e.Ticker, &e.Sector,
			&e.FirmID, &e.LastCollectedAt); err != nil {
			return nil, eris.Wrap(err, "catalog: scan company")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "catalog: list companies")
}

// listPeople resolves person targets. The website field carries the firm-site
// bio URL when one was scraped; the firm link is the person's first firm.
func (c *Catalog) listPeople(ctx context.Context, ids []int64) ([]model.Entity, error) {
	query := `SELECT p.id, p.full_name, COALESCE(p.bio_url, ''), COALESCE(p.linkedin_url, ''),
		COALESCE((SELECT fp.firm_id FROM pe_firm_people fp WHERE fp.person_id = p.id ORDER BY fp.id LIMIT 1), 0),
		p.last_collected_at
	FROM pe_people p`

	var args []any
	if len(ids) > 0 {
		query += " WHERE p.id = ANY($1)"
		args = append(args, ids)
	}
	query += " ORDER BY p.id"

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: list people")
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		e := model.Entity{Type: model.EntityPerson}
		if err := rows.Scan(&e.ID, &e.Name, &e.Website, &e.LinkedIn, &e.FirmID, &e.LastCollectedAt); err != nil {
			return nil, eris.Wrap(err, "catalog: scan person")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "catalog: list people")
}

// CompanyFinance loads a company's profile plus its most recent reported
// financial period. Companies with no financials return a profile-only
// snapshot; unknown IDs return nil.
func (c *Catalog) CompanyFinance(ctx context.Context, companyID int64) (*model.CompanyFinance, error) {
	cf := model.CompanyFinance{CompanyID: companyID}
	err := c.pool.QueryRow(ctx,
		`SELECT name, COALESCE(description, ''), COALESCE(sector, ''), COALESCE(industry, ''),
			COALESCE(employee_count, 0)
		 FROM pe_portfolio_companies WHERE id = $1`, companyID).
		Scan(&cf.Name, &cf.Description, &cf.Sector, &cf.Industry, &cf.EmployeeCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: load company %d", companyID)
	}

	err = c.pool.QueryRow(ctx,
		`SELECT fiscal_year, COALESCE(revenue_usd, 0), COALESCE(ebitda_usd, 0),
			COALESCE(net_income_usd, 0), COALESCE(employee_count, 0)
		 FROM pe_company_financials
		 WHERE company_id = $1
		 ORDER BY fiscal_year DESC, fiscal_period DESC
		 LIMIT 1`, companyID).
		Scan(&cf.FiscalYear, &cf.RevenueUSD, &cf.EBITDAUSD, &cf.NetIncomeUSD, &cf.EmployeeCount)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "catalog: load financials for company %d", companyID)
	}
	return &cf, nil
}

// TouchCollected stamps last_collected_at on the given entities so
// incremental runs can skip them while fresh.
func (c *Catalog) TouchCollected(ctx context.Context, entityType model.EntityType, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	var table string
	switch entityType {
	case model.EntityCompany:
		table = "pe_portfolio_companies"
	case model.EntityPerson:
		table = "pe_people"
	default:
		table = "pe_firms"
	}
	_, err := c.pool.Exec(ctx,
		fmt.Sprintf("UPDATE %s SET last_collected_at = now() WHERE id = ANY($1)", table), ids)
	return eris.Wrapf(err, "catalog: touch %s", table)
}

// SeedFirm is one row of a firm seed file. Seeds carry curated identifiers;
// everything else accumulates through collection.
type SeedFirm struct {
	Name      string `yaml:"name" json:"name"`
	Website   string `yaml:"website,omitempty" json:"website,omitempty"`
	CIK       string `yaml:"cik,omitempty" json:"cik,omitempty"`
	CRDNumber string `yaml:"crd_number,omitempty" json:"crd_number,omitempty"`
	FirmType  string `yaml:"firm_type,omitempty" json:"firm_type,omitempty"`
	Sector    string `yaml:"sector,omitempty" json:"sector,omitempty"`
}

// SeedFirms bulk-upserts firms by name, refreshing the curated identifier
// columns on rows that already exist.
func (c *Catalog) SeedFirms(ctx context.Context, firms []SeedFirm) (int64, error) {
	rows := make([][]any, 0, len(firms))
	for _, f := range firms {
		if f.Name == "" {
			continue
		}
		rows = append(rows, []any{
			f.Name, textOrNil(f.Website), textOrNil(f.CIK),
			textOrNil(f.CRDNumber), textOrNil(f.FirmType), textOrNil(f.Sector),
		})
	}
	return db.BulkUpsert(ctx, c.pool, db.UpsertConfig{
		Table:        "pe_firms",
		Columns:      []string{"name", "website", "cik", "crd_number", "firm_type", "sector"},
		ConflictKeys: []string{"name"},
	}, rows)
}

// TableCounts reports row counts for every entity table.
func (c *Catalog) TableCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT 'pe_firms', count(*) FROM pe_firms
		UNION ALL SELECT 'pe_funds', count(*) FROM pe_funds
		UNION ALL SELECT 'pe_fund_performance', count(*) FROM pe_fund_performance
		UNION ALL SELECT 'pe_portfolio_companies', count(*) FROM pe_portfolio_companies
		UNION ALL SELECT 'pe_people', count(*) FROM pe_people
		UNION ALL SELECT 'pe_person_education', count(*) FROM pe_person_education
		UNION ALL SELECT 'pe_person_experience', count(*) FROM pe_person_experience
		UNION ALL SELECT 'pe_firm_people', count(*) FROM pe_firm_people
		UNION ALL SELECT 'pe_fund_investments', count(*) FROM pe_fund_investments
		UNION ALL SELECT 'pe_deals', count(*) FROM pe_deals
		UNION ALL SELECT 'pe_deal_participants', count(*) FROM pe_deal_participants
		UNION ALL SELECT 'pe_company_financials', count(*) FROM pe_company_financials
		UNION ALL SELECT 'pe_company_valuations', count(*) FROM pe_company_valuations
		UNION ALL SELECT 'pe_firm_news', count(*) FROM pe_firm_news
		UNION ALL SELECT 'pe_sec_filings', count(*) FROM pe_sec_filings
		UNION ALL SELECT 'pe_form_d_offerings', count(*) FROM pe_form_d_offerings`)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: count tables")
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			table string
			n     int64
		)
		if err := rows.Scan(&table, &n); err != nil {
			return nil, eris.Wrap(err, "catalog: scan table count")
		}
		counts[table] = n
	}
	return counts, eris.Wrap(rows.Err(), "catalog: count tables")
}
