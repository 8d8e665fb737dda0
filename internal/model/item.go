package model

import "time"

// ItemType tags one unit of collected data and determines which tables the
// persister writes. Phase 1 types create or update entity rows; phase 2
// types reference them.
type ItemType string

const (
	// Phase 1: entities.
	ItemFirmUpdate       ItemType = "firm_update"
	ItemFormADVFiling    ItemType = "form_adv_filing"
	ItemPortfolioCompany ItemType = "portfolio_company"
	ItemTeamMember       ItemType = "team_member"
	ItemPerson           ItemType = "person"
	ItemRelatedPerson    ItemType = "related_person"
	ItemCompanyUpdate    ItemType = "company_update"

	// Phase 2: relationships and signals.
	Item13FHolding       ItemType = "13f_holding"
	Item13DStake         ItemType = "13d_stake"
	ItemFormDFiling      ItemType = "form_d_filing"
	ItemDeal8KFiling     ItemType = "deal_8k_filing"
	ItemDealPressRelease ItemType = "deal_press_release"
	ItemDeal             ItemType = "deal"
	ItemFirmNews         ItemType = "firm_news"
	ItemCompanyFinancial ItemType = "company_financial"
	ItemCompanyValuation ItemType = "company_valuation"
)

// Phase returns 1 for entity-creating item types and 2 for items that
// reference entities via foreign keys. The persister writes all phase 1
// items before any phase 2 item.
func (t ItemType) Phase() int {
	switch t {
	case ItemFirmUpdate, ItemFormADVFiling, ItemPortfolioCompany,
		ItemTeamMember, ItemPerson, ItemRelatedPerson, ItemCompanyUpdate:
		return 1
	default:
		return 2
	}
}

// Item is one unit of collected data. Each implementation carries the typed
// fields for its table family; ItemMeta supplies provenance.
type Item interface {
	ItemType() ItemType
	EntityType() EntityType
	SourceURL() string
	Confidence() Confidence
}

// ItemMeta holds provenance shared by every item: where the data was
// observed and how much to trust it.
type ItemMeta struct {
	URL  string     `json:"source_url,omitempty"`
	Conf Confidence `json:"confidence"`
}

func (m ItemMeta) SourceURL() string      { return m.URL }
func (m ItemMeta) Confidence() Confidence { return m.Conf }

// FirmUpdate carries profile fields for an existing firm. Non-zero fields
// merge into pe_firms under the confidence rules.
type FirmUpdate struct {
	ItemMeta
	Name          string   `json:"name,omitempty"`
	Website       string   `json:"website,omitempty"`
	CRDNumber     string   `json:"crd_number,omitempty"`
	CIK           string   `json:"cik,omitempty"`
	FirmType      string   `json:"firm_type,omitempty"`
	AUMUSD        int64    `json:"aum_usd,omitempty"`
	FoundedYear   int      `json:"founded_year,omitempty"`
	Headquarters  string   `json:"headquarters,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	Description   string   `json:"description,omitempty"`
	TeamSize      int      `json:"team_size,omitempty"`
	Strategies    []string `json:"strategies,omitempty"`
	EmployeeCount int      `json:"employee_count,omitempty"`
}

func (FirmUpdate) ItemType() ItemType     { return ItemFirmUpdate }
func (FirmUpdate) EntityType() EntityType { return EntityFirm }

// FormADVFiling is one Form ADV filing observed for an advisor firm.
type FormADVFiling struct {
	ItemMeta
	FirmCRD       string    `json:"firm_crd"`
	FilingID      string    `json:"filing_id"`
	AUMUSD        int64     `json:"aum_usd,omitempty"`
	TotalAccounts int       `json:"total_accounts,omitempty"`
	EmployeeCount int       `json:"employee_count,omitempty"`
	FilingDate    time.Time `json:"filing_date"`
}

func (FormADVFiling) ItemType() ItemType     { return ItemFormADVFiling }
func (FormADVFiling) EntityType() EntityType { return EntityFirm }

// PortfolioCompany is a company attributed to a firm's portfolio.
type PortfolioCompany struct {
	ItemMeta
	FirmID         int64  `json:"firm_id"`
	Name           string `json:"name"`
	Website        string `json:"website,omitempty"`
	Sector         string `json:"sector,omitempty"`
	Industry       string `json:"industry,omitempty"`
	Description    string `json:"description,omitempty"`
	Status         string `json:"status,omitempty"` // current | exited
	InvestmentYear int    `json:"investment_year,omitempty"`
	ExitYear       int    `json:"exit_year,omitempty"`
	Location       string `json:"location,omitempty"`
	Ticker         string `json:"ticker,omitempty"`
	CUSIP          string `json:"cusip,omitempty"`
}

func (PortfolioCompany) ItemType() ItemType     { return ItemPortfolioCompany }
func (PortfolioCompany) EntityType() EntityType { return EntityCompany }

// TeamMember is a person found on a firm website team page, before bio
// enrichment.
type TeamMember struct {
	ItemMeta
	FirmID   int64  `json:"firm_id"`
	FullName string `json:"full_name"`
	Title    string `json:"title,omitempty"`
	BioURL   string `json:"bio_url,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
	LinkedIn string `json:"linkedin_url,omitempty"`
	Email    string `json:"email,omitempty"`
}

func (TeamMember) ItemType() ItemType     { return ItemTeamMember }
func (TeamMember) EntityType() EntityType { return EntityPerson }

// Education is one schooling entry on a person profile.
type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	Year        int    `json:"year,omitempty"`
}

// Experience is one prior role on a person profile.
type Experience struct {
	Company   string `json:"company"`
	Title     string `json:"title,omitempty"`
	StartYear int    `json:"start_year,omitempty"`
	EndYear   int    `json:"end_year,omitempty"`
}

// Person is a fully extracted person profile with history.
type Person struct {
	ItemMeta
	FirmID     int64        `json:"firm_id,omitempty"`
	FullName   string       `json:"full_name"`
	Title      string       `json:"title,omitempty"`
	Bio        string       `json:"bio,omitempty"`
	LinkedIn   string       `json:"linkedin_url,omitempty"`
	Email      string       `json:"email,omitempty"`
	Location   string       `json:"location,omitempty"`
	Education  []Education  `json:"education,omitempty"`
	Experience []Experience `json:"experience,omitempty"`
}

func (Person) ItemType() ItemType     { return ItemPerson }
func (Person) EntityType() EntityType { return EntityPerson }

// RelatedPerson is a control person or executive from a regulatory filing
// (e.g. ADV Schedule A).
type RelatedPerson struct {
	ItemMeta
	FirmID    int64  `json:"firm_id"`
	FullName  string `json:"full_name"`
	Title     string `json:"title,omitempty"`
	CRDNumber string `json:"crd_number,omitempty"`
}

func (RelatedPerson) ItemType() ItemType     { return ItemRelatedPerson }
func (RelatedPerson) EntityType() EntityType { return EntityPerson }

// CompanyUpdate carries profile fields for an existing portfolio company.
type CompanyUpdate struct {
	ItemMeta
	CompanyID     int64  `json:"company_id"`
	Name          string `json:"name,omitempty"`
	Website       string `json:"website,omitempty"`
	Sector        string `json:"sector,omitempty"`
	Industry      string `json:"industry,omitempty"`
	Description   string `json:"description,omitempty"`
	Location      string `json:"location,omitempty"`
	EmployeeCount int    `json:"employee_count,omitempty"`
	Ticker        string `json:"ticker,omitempty"`
	IsNew         bool   `json:"is_new,omitempty"`
}

func (CompanyUpdate) ItemType() ItemType     { return ItemCompanyUpdate }
func (CompanyUpdate) EntityType() EntityType { return EntityCompany }

// Holding13F is one infoTable entry from a 13F-HR filing. ValueUSD is
// already converted to whole dollars.
type Holding13F struct {
	ItemMeta
	FirmID          int64     `json:"firm_id"`
	CUSIP           string    `json:"cusip"`
	Issuer          string    `json:"issuer"`
	ClassTitle      string    `json:"class_title,omitempty"`
	ValueUSD        int64     `json:"value_usd"`
	Shares          int64     `json:"shares"`
	ShareType       string    `json:"share_type,omitempty"`
	PutCall         string    `json:"put_call,omitempty"`
	Discretion      string    `json:"discretion,omitempty"`
	ReportDate      time.Time `json:"report_date"`
	AccessionNumber string    `json:"accession_number"`
}

func (Holding13F) ItemType() ItemType     { return Item13FHolding }
func (Holding13F) EntityType() EntityType { return EntityFund }

// Stake13D is an activist or passive stake disclosed in a SC 13D/13G filing.
type Stake13D struct {
	ItemMeta
	FirmID          int64     `json:"firm_id"`
	SubjectCompany  string    `json:"subject_company"`
	SubjectCIK      string    `json:"subject_cik,omitempty"`
	CUSIP           string    `json:"cusip,omitempty"`
	PercentOwned    float64   `json:"percent_owned,omitempty"`
	SharesOwned     int64     `json:"shares_owned,omitempty"`
	FormType        string    `json:"form_type"`
	FilingDate      time.Time `json:"filing_date"`
	AccessionNumber string    `json:"accession_number"`
}

func (Stake13D) ItemType() ItemType     { return Item13DStake }
func (Stake13D) EntityType() EntityType { return EntityCompany }

// FormDFiling is a Regulation D exempt offering notice for a fund raised by
// the firm. ParseFailed marks filings whose XML could not be fetched; only
// search metadata is populated then.
type FormDFiling struct {
	ItemMeta
	FirmID            int64     `json:"firm_id"`
	FundName          string    `json:"fund_name"`
	AccessionNumber   string    `json:"accession_number"`
	FilingDate        time.Time `json:"filing_date"`
	ExemptionCodes    []string  `json:"exemption_codes,omitempty"`
	SecurityTypes     []string  `json:"security_types,omitempty"`
	OfferingAmountUSD int64     `json:"offering_amount_usd,omitempty"`
	AmountSoldUSD     int64     `json:"amount_sold_usd,omitempty"`
	InvestorCount     int       `json:"investor_count,omitempty"`
	MinInvestmentUSD  int64     `json:"min_investment_usd,omitempty"`
	ParseFailed       bool      `json:"parse_failed,omitempty"`
}

func (FormDFiling) ItemType() ItemType     { return ItemFormDFiling }
func (FormDFiling) EntityType() EntityType { return EntityFund }

// Deal8K is a material-event filing (8-K) flagged as deal-related.
type Deal8K struct {
	ItemMeta
	CompanyName     string    `json:"company_name"`
	CIK             string    `json:"cik,omitempty"`
	AccessionNumber string    `json:"accession_number"`
	FilingDate      time.Time `json:"filing_date"`
	Items           []string  `json:"items,omitempty"`
	Description     string    `json:"description,omitempty"`
}

func (Deal8K) ItemType() ItemType     { return ItemDeal8KFiling }
func (Deal8K) EntityType() EntityType { return EntityDeal }

// DealPressRelease is a press release matching deal keywords, before LLM
// enrichment into a Deal.
type DealPressRelease struct {
	ItemMeta
	FirmID      int64     `json:"firm_id,omitempty"`
	Headline    string    `json:"headline"`
	Body        string    `json:"body,omitempty"`
	Wire        string    `json:"wire,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Companies   []string  `json:"companies,omitempty"`
}

func (DealPressRelease) ItemType() ItemType     { return ItemDealPressRelease }
func (DealPressRelease) EntityType() EntityType { return EntityDeal }

// Deal is a structured transaction extracted from filings or press releases.
type Deal struct {
	ItemMeta
	FirmID             int64     `json:"firm_id,omitempty"`
	DealType           string    `json:"deal_type,omitempty"` // Buyout | Growth | Add-On | Recapitalization | Exit | Other
	TargetCompany      string    `json:"target_company"`
	TargetCompanyID    int64     `json:"target_company_id,omitempty"`
	AnnouncedDate      time.Time `json:"announced_date,omitempty"`
	ClosedDate         time.Time `json:"closed_date,omitempty"`
	EnterpriseValueUSD int64     `json:"enterprise_value_usd,omitempty"`
	EquityValueUSD     int64     `json:"equity_value_usd,omitempty"`
	Status             string    `json:"status,omitempty"` // announced | closed | terminated
	Seller             string    `json:"seller,omitempty"`
	CoInvestors        []string  `json:"co_investors,omitempty"`
	Description        string    `json:"description,omitempty"`
}

func (Deal) ItemType() ItemType     { return ItemDeal }
func (Deal) EntityType() EntityType { return EntityDeal }

// FirmNews is a classified news article about a firm.
type FirmNews struct {
	ItemMeta
	FirmID      int64     `json:"firm_id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	Publisher   string    `json:"publisher,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	NewsType    string    `json:"news_type,omitempty"` // Fundraise | Deal | Hire | Strategy | Earnings | Exit | IPO | Restructuring | Other
	Sentiment   float64   `json:"sentiment,omitempty"`
	Relevance   float64   `json:"relevance,omitempty"`
}

func (FirmNews) ItemType() ItemType     { return ItemFirmNews }
func (FirmNews) EntityType() EntityType { return EntityFirm }

// CompanyFinancial is one reported or estimated financial period for a
// portfolio company.
type CompanyFinancial struct {
	ItemMeta
	CompanyID     int64     `json:"company_id"`
	FiscalYear    int       `json:"fiscal_year"`
	FiscalPeriod  string    `json:"fiscal_period,omitempty"` // FY | Q1..Q4
	RevenueUSD    int64     `json:"revenue_usd,omitempty"`
	EBITDAUSD     int64     `json:"ebitda_usd,omitempty"`
	NetIncomeUSD  int64     `json:"net_income_usd,omitempty"`
	EmployeeCount int       `json:"employee_count,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	ReportDate    time.Time `json:"report_date,omitempty"`
}

func (CompanyFinancial) ItemType() ItemType     { return ItemCompanyFinancial }
func (CompanyFinancial) EntityType() EntityType { return EntityCompany }

// CompanyValuation is one valuation estimate for a portfolio company.
type CompanyValuation struct {
	ItemMeta
	CompanyID          int64     `json:"company_id"`
	Method             string    `json:"method"`
	EnterpriseValueUSD int64     `json:"enterprise_value_usd"`
	LowUSD             int64     `json:"low_usd,omitempty"`
	HighUSD            int64     `json:"high_usd,omitempty"`
	RevenueMultiple    float64   `json:"revenue_multiple,omitempty"`
	EBITDAMultiple     float64   `json:"ebitda_multiple,omitempty"`
	PeerTickers        []string  `json:"peer_tickers,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	ValuationDate      time.Time `json:"valuation_date,omitempty"`
}

func (CompanyValuation) ItemType() ItemType     { return ItemCompanyValuation }
func (CompanyValuation) EntityType() EntityType { return EntityCompany }
