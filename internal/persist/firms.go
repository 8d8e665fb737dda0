package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/model"
)

// applyFirmUpdate creates the firm on first sight or merges profile fields
// into the existing row. Firms are keyed by name, case-insensitively.
func (p *Persister) applyFirmUpdate(ctx context.Context, q pgx.Tx, v *model.FirmUpdate, src model.Source) (outcome, error) {
	if v.Name == "" {
		return outcomeSkipped, eris.New("persist: firm update without name")
	}
	id, err := p.lookupFirm(ctx, q, v.Name)
	if err != nil {
		return outcomeSkipped, err
	}
	if id == 0 {
		return p.insertFirm(ctx, q, v, src)
	}
	return p.mergeFirm(ctx, q, id, v, src)
}

func (p *Persister) insertFirm(ctx context.Context, q pgx.Tx, v *model.FirmUpdate, src model.Source) (outcome, error) {
	var id int64
	err := q.QueryRow(ctx,
		`INSERT INTO pe_firms (name, website, crd_number, cik, firm_type, aum_usd, founded_year,
			headquarters, phone, description, team_size, employee_count, strategies, confidence, data_sources)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id`,
		v.Name, textOrNil(v.Website), textOrNil(v.CRDNumber), textOrNil(v.CIK), textOrNil(v.FirmType),
		int64OrNil(v.AUMUSD), intOrNil(v.FoundedYear), textOrNil(v.Headquarters), textOrNil(v.Phone),
		textOrNil(v.Description), intOrNil(v.TeamSize), intOrNil(v.EmployeeCount), sliceOrNil(v.Strategies),
		string(confOrLow(v.Conf)), []string{string(src)},
	).Scan(&id)
	if err != nil {
		return outcomeSkipped, eris.Wrapf(err, "persist: create firm %q", v.Name)
	}
	p.firmIDs[normName(v.Name)] = id
	p.firmNames[id] = v.Name
	return outcomePersisted, nil
}

func (p *Persister) mergeFirm(ctx context.Context, q pgx.Tx, id int64, v *model.FirmUpdate, src model.Source) (outcome, error) {
	var cur struct {
		website, crdNumber, cik, firmType     *string
		aumUSD                                *int64
		foundedYear, teamSize, employeeCount  *int
		headquarters, phone, description      *string
		strategies                            []string
		confidence                            string
		dataSources                           []string
	}
	err := q.QueryRow(ctx,
		`SELECT website, crd_number, cik, firm_type, aum_usd, founded_year, headquarters, phone,
			description, team_size, employee_count, strategies, confidence, data_sources
		 FROM pe_firms WHERE id = $1`, id).
		Scan(&cur.website, &cur.crdNumber, &cur.cik, &cur.firmType, &cur.aumUSD, &cur.foundedYear,
			&cur.headquarters, &cur.phone, &cur.description, &cur.teamSize, &cur.employeeCount,
			&cur.strategies, &cur.confidence, &cur.dataSources)
	if err != nil {
		return outcomeSkipped, eris.Wrapf(err, "persist: read firm %d", id)
	}

	over := v.Conf.AtLeast(model.Confidence(cur.confidence))
	_, err = q.Exec(ctx,
		`UPDATE pe_firms SET website = $1, crd_number = $2, cik = $3, firm_type = $4, aum_usd = $5,
			founded_year = $6, headquarters = $7, phone = $8, description = $9, team_size = $10,
			employee_count = $11, strategies = $12, confidence = $13, data_sources = $14, updated_at = now()
		 WHERE id = $15`,
		mergeText(cur.website, v.Website, over),
		mergeText(cur.crdNumber, v.CRDNumber, over),
		mergeText(cur.cik, v.CIK, over),
		mergeText(cur.firmType, v.FirmType, over),
		mergeInt64(cur.aumUSD, v.AUMUSD, over),
		mergeInt(cur.foundedYear, v.FoundedYear, over),
		mergeText(cur.headquarters, v.Headquarters, over),
		mergeText(cur.phone, v.Phone, over),
		mergeText(cur.description, v.Description, over),
		mergeInt(cur.teamSize, v.TeamSize, over),
		mergeInt(cur.employeeCount, v.EmployeeCount, over),
		mergeTextArray(cur.strategies, v.Strategies, over),
		string(maxConfidence(model.Confidence(cur.confidence), v.Conf)),
		unionSources(cur.dataSources, src),
		id,
	)
	if err != nil {
		return outcomeSkipped, eris.Wrapf(err, "persist: update firm %d", id)
	}
	return outcomeUpdated, nil
}

// applyFormADVFiling records the filing and folds its regulatory figures
// into the firm row. The firm is matched by CRD; firm updates land earlier
// in the same phase, so a CRD discovered this run is already stored.
func (p *Persister) applyFormADVFiling(ctx context.Context, q pgx.Tx, v *model.FormADVFiling, src model.Source) (outcome, error) {
	if v.FirmCRD == "" || v.FilingID == "" {
		return outcomeSkipped, eris.New("persist: ADV filing without CRD or filing id")
	}

	var firmID int64
	err := q.QueryRow(ctx, `SELECT id FROM pe_firms WHERE crd_number = $1`, v.FirmCRD).Scan(&firmID)
	if errors.Is(err, pgx.ErrNoRows) {
		p.log.Debug("no firm matches ADV CRD", zap.String("crd", v.FirmCRD))
		firmID = 0
	} else if err != nil {
		return outcomeSkipped, eris.Wrap(err, "persist: look up firm by CRD")
	}

	tag, err := q.Exec(ctx,
		`INSERT INTO pe_sec_filings (firm_id, form_type, accession_number, filing_date, subject, source_url)
		 VALUES ($1, 'ADV', $2, $3, NULL, $4)
		 ON CONFLICT (accession_number) DO NOTHING`,
		int64OrNil(firmID), v.FilingID, timeOrNil(v.FilingDate), textOrNil(v.URL))
	if err != nil {
		return outcomeSkipped, eris.Wrap(err, "persist: record ADV filing")
	}
	created := tag.RowsAffected() > 0

	if firmID > 0 {
		if err := p.mergeADVFigures(ctx, q, firmID, v, src); err != nil {
			return outcomeSkipped, err
		}
	}
	switch {
	case created:
		return outcomePersisted, nil
	case firmID > 0:
		return outcomeUpdated, nil
	default:
		return outcomeSkipped, nil
	}
}

func (p *Persister) mergeADVFigures(ctx context.Context, q pgx.Tx, firmID int64, v *model.FormADVFiling, src model.Source) error {
	var cur struct {
		aumUSD                       *int64
		employeeCount, totalAccounts *int
		confidence                   string
		dataSources                  []string
	}
	err := q.QueryRow(ctx,
		`SELECT aum_usd, employee_count, total_accounts, confidence, data_sources FROM pe_firms WHERE id = $1`, firmID).
		Scan(&cur.aumUSD, &cur.employeeCount, &cur.totalAccounts, &cur.confidence, &cur.dataSources)
	if err != nil {
		return eris.Wrapf(err, "persist: read firm %d", firmID)
	}

	over := v.Conf.AtLeast(model.Confidence(cur.confidence))
	_, err = q.Exec(ctx,
		`UPDATE pe_firms SET aum_usd = $1, employee_count = $2, total_accounts = $3,
			confidence = $4, data_sources = $5, updated_at = now()
		 WHERE id = $6`,
		mergeInt64(cur.aumUSD, v.AUMUSD, over),
		mergeInt(cur.employeeCount, v.EmployeeCount, over),
		mergeInt(cur.totalAccounts, v.TotalAccounts, over),
		string(maxConfidence(model.Confidence(cur.confidence), v.Conf)),
		unionSources(cur.dataSources, src),
		firmID,
	)
	return eris.Wrapf(err, "persist: merge ADV figures into firm %d", firmID)
}

// apply13FHolding links one reported position to the firm's synthetic 13F
// fund, creating the issuer's portfolio company row on first sight. Repeat
// reports for the same quarter refresh value and share counts.
func (p *Persister) apply13FHolding(ctx context.Context, q pgx.Tx, v *model.Holding13F, src model.Source) (outcome, error) {
	if v.FirmID == 0 || v.Issuer == "" {
		return outcomeSkipped, eris.New("persist: 13F holding without firm or issuer")
	}
	if v.ReportDate.IsZero() {
		return outcomeSkipped, eris.New("persist: 13F holding without report date")
	}

	companyID, err := p.lookupCompany(ctx, q, v.Issuer)
	if err != nil {
		return outcomeSkipped, err
	}
	if companyID == 0 {
		companyID, err = p.insertCompanyStub(ctx, q, v.Issuer, v.FirmID, v.CUSIP, "", v.Conf, src)
		if err != nil {
			return outcomeSkipped, err
		}
	}

	fundID, err := p.synthetic13FFund(ctx, q, v.FirmID, src)
	if err != nil {
		return outcomeSkipped, err
	}

	out := outcomePersisted
	var invID int64
	err = q.QueryRow(ctx,
		`SELECT id FROM pe_fund_investments
		 WHERE fund_id = $1 AND company_id = $2 AND investment_date = $3 AND investment_type = $4`,
		fundID, companyID, v.ReportDate, investmentType13F).Scan(&invID)
	switch {
	case err == nil:
		_, err = q.Exec(ctx,
			`UPDATE pe_fund_investments SET invested_amount_usd = $1, shares = $2, share_type = $3,
				put_call = $4, source_url = $5, updated_at = now()
			 WHERE id = $6`,
			int64OrNil(v.ValueUSD), int64OrNil(v.Shares), textOrNil(v.ShareType),
			textOrNil(v.PutCall), textOrNil(v.URL), invID)
		if err != nil {
			return outcomeSkipped, eris.Wrap(err, "persist: refresh 13F holding")
		}
		out = outcomeUpdated
	case errors.Is(err, pgx.ErrNoRows):
		_, err = q.Exec(ctx,
			`INSERT INTO pe_fund_investments (fund_id, company_id, investment_date, investment_type,
				invested_amount_usd, shares, share_type, put_call, confidence, source_url)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			fundID, companyID, v.ReportDate, investmentType13F,
			int64OrNil(v.ValueUSD), int64OrNil(v.Shares), textOrNil(v.ShareType),
			textOrNil(v.PutCall), string(confOrLow(v.Conf)), textOrNil(v.URL))
		if err != nil {
			return outcomeSkipped, eris.Wrap(err, "persist: record 13F holding")
		}
	default:
		return outcomeSkipped, eris.Wrap(err, "persist: find 13F holding")
	}

	if v.AccessionNumber != "" {
		_, err = q.Exec(ctx,
			`INSERT INTO pe_sec_filings (firm_id, form_type, accession_number, filing_date, subject, source_url)
			 VALUES ($1, '13F-HR', $2, $3, NULL, $4)
			 ON CONFLICT (accession_number) DO NOTHING`,
			v.FirmID, v.AccessionNumber, v.ReportDate, textOrNil(v.URL))
		if err != nil {
			return outcomeSkipped, eris.Wrap(err, "persist: record 13F filing")
		}
	}
	return out, nil
}

// applyStake13D records the 13D/13G filing for the audit trail. The entity
// tables carry no stake rows, so the item itself counts as skipped.
func (p *Persister) applyStake13D(ctx context.Context, q pgx.Tx, v *model.Stake13D) (outcome, error) {
	if v.AccessionNumber == "" {
		return outcomeSkipped, eris.New("persist: 13D stake without accession number")
	}
	formType := v.FormType
	if formType == "" {
		formType = "SC 13D"
	}
	_, err := q.Exec(ctx,
		`INSERT INTO pe_sec_filings (firm_id, form_type, accession_number, filing_date, subject, source_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (accession_number) DO NOTHING`,
		int64OrNil(v.FirmID), formType, v.AccessionNumber, timeOrNil(v.FilingDate),
		textOrNil(v.SubjectCompany), textOrNil(v.URL))
	if err != nil {
		return outcomeSkipped, eris.Wrap(err, "persist: record 13D filing")
	}
	p.log.Debug("recorded 13D/13G filing",
		zap.Int64("firm_id", v.FirmID),
		zap.String("accession", v.AccessionNumber))
	return outcomeSkipped, nil
}

// applyFormDFiling creates or updates the named fund from a Regulation D
// notice, records the offering detail, and snapshots progress when an amount
// sold is reported.
func (p *Persister) applyFormDFiling(ctx context.Context, q pgx.Tx, v *model.FormDFiling, src model.Source) (outcome, error) {
	if v.FirmID == 0 || v.AccessionNumber == "" {
		return outcomeSkipped, eris.New("persist: Form D filing without firm or accession number")
	}

	var (
		fundID  int64
		fundOut outcome
	)
	if v.FundName != "" {
		var err error
		fundID, fundOut, err = p.upsertNamedFund(ctx, q, v, src)
		if err != nil {
			return outcomeSkipped, err
		}
	}

	tag, err := q.Exec(ctx,
		`INSERT INTO pe_form_d_offerings (firm_id, fund_id, accession_number, filing_date,
			exemption_codes, security_types, offering_amount_usd, amount_sold_usd,
			investor_count, min_investment_usd, parse_failed, source_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (accession_number) DO NOTHING`,
		v.FirmID, int64OrNil(fundID), v.AccessionNumber, timeOrNil(v.FilingDate),
		sliceOrNil(v.ExemptionCodes), sliceOrNil(v.SecurityTypes),
		int64OrNil(v.OfferingAmountUSD), int64OrNil(v.AmountSoldUSD),
		intOrNil(v.InvestorCount), int64OrNil(v.MinInvestmentUSD),
		v.ParseFailed, textOrNil(v.URL))
	if err != nil {
		return outcomeSkipped, eris.Wrap(err, "persist: record Form D offering")
	}
	offeringCreated := tag.RowsAffected() > 0

	if offeringCreated && fundID != 0 && v.AmountSoldUSD > 0 && !v.FilingDate.IsZero() {
		_, err = q.Exec(ctx,
			`INSERT INTO pe_fund_performance (fund_id, as_of_date, raised_usd, investor_count, source_url)
			 VALUES ($1, $2, $3, $4, $5)`,
			fundID, v.FilingDate, v.AmountSoldUSD, intOrNil(v.InvestorCount), textOrNil(v.URL))
		if err != nil {
			return outcomeSkipped, eris.Wrap(err, "persist: record fund raise snapshot")
		}
	}

	if v.FundName != "" {
		return fundOut, nil
	}
	if offeringCreated {
		return outcomePersisted, nil
	}
	return outcomeSkipped, nil
}

// upsertNamedFund resolves a fund by name within the firm. Offering totals
// map to target size, amounts sold to raised capital; the vintage year
// defaults to the first filing's year.
func (p *Persister) upsertNamedFund(ctx context.Context, q pgx.Tx, v *model.FormDFiling, src model.Source) (int64, outcome, error) {
	vintage := 0
	if !v.FilingDate.IsZero() {
		vintage = v.FilingDate.Year()
	}

	var (
		id  int64
		cur struct {
			targetSize, raised *int64
			vintageYear        *int
			confidence         string
			dataSources        []string
		}
	)
	err := q.QueryRow(ctx,
		`SELECT id, target_size_usd, raised_usd, vintage_year, confidence, data_sources
		 FROM pe_funds WHERE firm_id = $1 AND lower(name) = $2`,
		v.FirmID, normName(v.FundName)).
		Scan(&id, &cur.targetSize, &cur.raised, &cur.vintageYear, &cur.confidence, &cur.dataSources)
	switch {
	case err == nil:
		over := v.Conf.AtLeast(model.Confidence(cur.confidence))
		_, err = q.Exec(ctx,
			`UPDATE pe_funds SET target_size_usd = $1, raised_usd = $2, vintage_year = $3,
				confidence = $4, data_sources = $5, updated_at = now()
			 WHERE id = $6`,
			mergeInt64(cur.targetSize, v.OfferingAmountUSD, over),
			mergeInt64(cur.raised, v.AmountSoldUSD, over),
			mergeInt(cur.vintageYear, vintage, false),
			string(maxConfidence(model.Confidence(cur.confidence), v.Conf)),
			unionSources(cur.dataSources, src),
			id,
		)
		if err != nil {
			return 0, outcomeSkipped, eris.Wrapf(err, "persist: update fund %q", v.FundName)
		}
		return id, outcomeUpdated, nil
	case errors.Is(err, pgx.ErrNoRows):
		err = q.QueryRow(ctx,
			`INSERT INTO pe_funds (firm_id, name, vintage_year, target_size_usd, raised_usd, confidence, data_sources)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			v.FirmID, v.FundName, intOrNil(vintage),
			int64OrNil(v.OfferingAmountUSD), int64OrNil(v.AmountSoldUSD),
			string(confOrLow(v.Conf)), []string{string(src)},
		).Scan(&id)
		if err != nil {
			return 0, outcomeSkipped, eris.Wrapf(err, "persist: create fund %q", v.FundName)
		}
		return id, outcomePersisted, nil
	default:
		return 0, outcomeSkipped, eris.Wrapf(err, "persist: find fund %q", v.FundName)
	}
}
