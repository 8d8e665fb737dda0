package persist

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/db"
)

// domainMigration creates the pe_* entity tables. Idempotent; safe to run on
// every deploy.
//
// Confidence columns hold the ladder low < llm_extracted < medium < high and
// gate merges: a collected value only overwrites a stored one when its
// confidence ranks at or above the row's. data_sources accumulates every
// source that has contributed to a row.
const domainMigration = `
CREATE TABLE IF NOT EXISTS pe_firms (
	id                BIGSERIAL PRIMARY KEY,
	name              TEXT NOT NULL UNIQUE,
	website           TEXT,
	crd_number        TEXT,
	cik               TEXT,
	ticker            TEXT,
	linkedin_url      TEXT,
	firm_type         TEXT,
	sector            TEXT,
	aum_usd           BIGINT,
	founded_year      INTEGER,
	headquarters      TEXT,
	phone             TEXT,
	description       TEXT,
	team_size         INTEGER,
	employee_count    INTEGER,
	total_accounts    INTEGER,
	strategies        TEXT[],
	is_active         BOOLEAN NOT NULL DEFAULT true,
	confidence        TEXT NOT NULL DEFAULT 'low',
	data_sources      TEXT[] NOT NULL DEFAULT '{}',
	last_collected_at TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pe_funds (
	id              BIGSERIAL PRIMARY KEY,
	firm_id         BIGINT NOT NULL REFERENCES pe_firms(id),
	name            TEXT NOT NULL,
	strategy        TEXT,
	vintage_year    INTEGER,
	target_size_usd BIGINT,
	raised_usd      BIGINT,
	status          TEXT,
	confidence      TEXT NOT NULL DEFAULT 'low',
	data_sources    TEXT[] NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pe_fund_performance (
	id             BIGSERIAL PRIMARY KEY,
	fund_id        BIGINT NOT NULL REFERENCES pe_funds(id),
	as_of_date     DATE NOT NULL,
	raised_usd     BIGINT,
	investor_count INTEGER,
	source_url     TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pe_portfolio_companies (
	id                BIGSERIAL PRIMARY KEY,
	firm_id           BIGINT REFERENCES pe_firms(id),
	name              TEXT NOT NULL,
	website           TEXT,
	sector            TEXT,
	industry          TEXT,
	description       TEXT,
	status            TEXT,
	investment_year   INTEGER,
	exit_year         INTEGER,
	location          TEXT,
	ticker            TEXT,
	cusip             TEXT,
	employee_count    INTEGER,
	is_active         BOOLEAN NOT NULL DEFAULT true,
	confidence        TEXT NOT NULL DEFAULT 'low',
	data_sources      TEXT[] NOT NULL DEFAULT '{}',
	last_collected_at TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pe_people (
	id                BIGSERIAL PRIMARY KEY,
	full_name         TEXT NOT NULL,
	title             TEXT,
	bio               TEXT,
	linkedin_url      TEXT,
	email             TEXT,
	location          TEXT,
	crd_number        TEXT,
	photo_url         TEXT,
	bio_url           TEXT,
	confidence        TEXT NOT NULL DEFAULT 'low',
	data_sources      TEXT[] NOT NULL DEFAULT '{}',
	last_collected_at TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pe_person_education (
	id              BIGSERIAL PRIMARY KEY,
	person_id       BIGINT NOT NULL REFERENCES pe_people(id),
	institution     TEXT NOT NULL,
	degree          TEXT,
	field           TEXT,
	graduation_year INTEGER,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pe_person_experience (
	id         BIGSERIAL PRIMARY KEY,
	person_id  BIGINT NOT NULL REFERENCES pe_people(id),
	company    TEXT NOT NULL,
	title      TEXT,
	start_year INTEGER,
	end_year   INTEGER,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pe_firm_people (
	id         BIGSERIAL PRIMARY KEY,
	firm_id    BIGINT NOT NULL REFERENCES pe_firms(id),
	person_id  BIGINT NOT NULL REFERENCES pe_people(id),
	title      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (firm_id, person_id)
);

CREATE TABLE IF NOT EXISTS pe_fund_investments (
	id                  BIGSERIAL PRIMARY KEY,
	fund_id             BIGINT NOT NULL REFERENCES pe_funds(id),
	company_id          BIGINT NOT NULL REFERENCES pe_portfolio_companies(id),
	investment_date     DATE NOT NULL,
	investment_type     TEXT NOT NULL DEFAULT '',
	invested_amount_usd BIGINT,
	shares              BIGINT,
	share_type          TEXT,
	put_call            TEXT,
	confidence          TEXT NOT NULL DEFAULT 'low',
	source_url          TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (fund_id, company_id, investment_date, investment_type)
);

CREATE TABLE IF NOT EXISTS pe_deals (
	id                   BIGSERIAL PRIMARY KEY,
	firm_id              BIGINT REFERENCES pe_firms(id),
	deal_type            TEXT,
	target_company       TEXT,
	target_company_id    BIGINT REFERENCES pe_portfolio_companies(id),
	announced_date       DATE,
	closed_date          DATE,
	enterprise_value_usd BIGINT,
	equity_value_usd     BIGINT,
	status               TEXT,
	seller               TEXT,
	description          TEXT,
	source_url           TEXT NOT NULL UNIQUE,
	confidence           TEXT NOT NULL DEFAULT 'low',
	data_sources         TEXT[] NOT NULL DEFAULT '{}',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pe_deal_participants (
	id         BIGSERIAL PRIMARY KEY,
	deal_id    BIGINT NOT NULL REFERENCES pe_deals(id),
	name       TEXT NOT NULL,
	role       TEXT NOT NULL,
	firm_id    BIGINT REFERENCES pe_firms(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (deal_id, name, role)
);

CREATE TABLE IF NOT EXISTS pe_company_financials (
	id             BIGSERIAL PRIMARY KEY,
	company_id     BIGINT NOT NULL REFERENCES pe_portfolio_companies(id),
	fiscal_year    INTEGER NOT NULL,
	fiscal_period  TEXT NOT NULL DEFAULT 'FY',
	revenue_usd    BIGINT,
	ebitda_usd     BIGINT,
	net_income_usd BIGINT,
	employee_count INTEGER,
	currency       TEXT,
	report_date    DATE,
	source_url     TEXT,
	confidence     TEXT NOT NULL DEFAULT 'low',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, fiscal_year, fiscal_period)
);

CREATE TABLE IF NOT EXISTS pe_company_valuations (
	id                   BIGSERIAL PRIMARY KEY,
	company_id           BIGINT NOT NULL REFERENCES pe_portfolio_companies(id),
	method               TEXT NOT NULL,
	enterprise_value_usd BIGINT,
	low_usd              BIGINT,
	high_usd             BIGINT,
	revenue_multiple     DOUBLE PRECISION,
	ebitda_multiple      DOUBLE PRECISION,
	peer_tickers         TEXT[],
	notes                TEXT,
	valuation_date       DATE,
	source_url           TEXT,
	confidence           TEXT NOT NULL DEFAULT 'low',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pe_firm_news (
	id           BIGSERIAL PRIMARY KEY,
	firm_id      BIGINT NOT NULL REFERENCES pe_firms(id),
	title        TEXT NOT NULL,
	summary      TEXT,
	publisher    TEXT,
	published_at TIMESTAMPTZ,
	news_type    TEXT,
	sentiment    DOUBLE PRECISION,
	relevance    DOUBLE PRECISION,
	source_url   TEXT NOT NULL UNIQUE,
	confidence   TEXT NOT NULL DEFAULT 'low',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pe_sec_filings (
	id               BIGSERIAL PRIMARY KEY,
	firm_id          BIGINT REFERENCES pe_firms(id),
	form_type        TEXT NOT NULL,
	accession_number TEXT NOT NULL UNIQUE,
	filing_date      DATE,
	subject          TEXT,
	source_url       TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pe_form_d_offerings (
	id                  BIGSERIAL PRIMARY KEY,
	firm_id             BIGINT REFERENCES pe_firms(id),
	fund_id             BIGINT REFERENCES pe_funds(id),
	accession_number    TEXT NOT NULL UNIQUE,
	filing_date         DATE,
	exemption_codes     TEXT[],
	security_types      TEXT[],
	offering_amount_usd BIGINT,
	amount_sold_usd     BIGINT,
	investor_count      INTEGER,
	min_investment_usd  BIGINT,
	parse_failed        BOOLEAN NOT NULL DEFAULT false,
	source_url          TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_pe_funds_firm_id ON pe_funds (firm_id);
CREATE INDEX IF NOT EXISTS idx_pe_funds_firm_strategy ON pe_funds (firm_id, strategy);
CREATE INDEX IF NOT EXISTS idx_pe_portfolio_companies_firm_id ON pe_portfolio_companies (firm_id);
CREATE INDEX IF NOT EXISTS idx_pe_portfolio_companies_name_lower ON pe_portfolio_companies (lower(name));
CREATE INDEX IF NOT EXISTS idx_pe_people_name_lower ON pe_people (lower(full_name));
CREATE INDEX IF NOT EXISTS idx_pe_people_linkedin ON pe_people (linkedin_url);
CREATE INDEX IF NOT EXISTS idx_pe_firm_people_person_id ON pe_firm_people (person_id);
CREATE INDEX IF NOT EXISTS idx_pe_person_education_person_id ON pe_person_education (person_id);
CREATE INDEX IF NOT EXISTS idx_pe_person_experience_person_id ON pe_person_experience (person_id);
CREATE INDEX IF NOT EXISTS idx_pe_fund_investments_company_id ON pe_fund_investments (company_id);
CREATE INDEX IF NOT EXISTS idx_pe_fund_performance_fund_id ON pe_fund_performance (fund_id);
CREATE INDEX IF NOT EXISTS idx_pe_deals_firm_id ON pe_deals (firm_id);
CREATE INDEX IF NOT EXISTS idx_pe_deal_participants_deal_id ON pe_deal_participants (deal_id);
CREATE INDEX IF NOT EXISTS idx_pe_company_valuations_company_id ON pe_company_valuations (company_id);
CREATE INDEX IF NOT EXISTS idx_pe_firm_news_firm_id ON pe_firm_news (firm_id);
CREATE INDEX IF NOT EXISTS idx_pe_sec_filings_firm_id ON pe_sec_filings (firm_id);
CREATE INDEX IF NOT EXISTS idx_pe_form_d_offerings_firm_id ON pe_form_d_offerings (firm_id);
`

// Migrate applies the entity-table schema. An advisory lock serializes
// concurrent runs, e.g. overlapping deploys racing the migrate command.
func Migrate(ctx context.Context, pool db.Pool) error {
	log := zap.L().With(zap.String("component", "persist.migrate"))

	if _, err := pool.Exec(ctx, "SELECT pg_advisory_lock(428001)"); err != nil {
		return eris.Wrap(err, "persist: acquire migration advisory lock")
	}
	defer func() {
		if _, err := pool.Exec(ctx, "SELECT pg_advisory_unlock(428001)"); err != nil {
			log.Warn("failed to release migration advisory lock", zap.Error(err))
		}
	}()

	log.Info("applying entity table migration")
	if _, err := pool.Exec(ctx, domainMigration); err != nil {
		return eris.Wrap(err, "persist: apply entity table migration")
	}
	return nil
}
