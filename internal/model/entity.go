package model

import "time"

// Entity is the resolved target of one collection task: a firm, company, or
// person row with the identifying fields collectors key off.
type Entity struct {
	ID   int64      `json:"id"`
	Type EntityType `json:"type"`
	Name string     `json:"name"`

	Website   string `json:"website,omitempty"`
	CIK       string `json:"cik,omitempty"`
	Ticker    string `json:"ticker,omitempty"`
	CRDNumber string `json:"crd_number,omitempty"`
	LinkedIn  string `json:"linkedin_url,omitempty"`
	Sector    string `json:"sector,omitempty"`
	FirmType  string `json:"firm_type,omitempty"`

	// FirmID links companies and people back to their firm when known.
	FirmID int64 `json:"firm_id,omitempty"`

	LastCollectedAt *time.Time `json:"last_collected_at,omitempty"`
}

// CompanyFinance is the read-only snapshot of a company's profile and latest
// reported financials, consulted when estimating private valuations.
type CompanyFinance struct {
	CompanyID     int64  `json:"company_id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Sector        string `json:"sector,omitempty"`
	Industry      string `json:"industry,omitempty"`
	EmployeeCount int    `json:"employee_count,omitempty"`

	FiscalYear   int   `json:"fiscal_year,omitempty"`
	RevenueUSD   int64 `json:"revenue_usd,omitempty"`
	EBITDAUSD    int64 `json:"ebitda_usd,omitempty"`
	NetIncomeUSD int64 `json:"net_income_usd,omitempty"`
}
