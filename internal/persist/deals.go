package persist

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/model"
)

// Deals are append-only per source URL: the first item to carry a URL
// creates the row, later items enrich it under the confidence rules.

// applyDeal8K records a deal-flagged 8-K as a thin deal row plus the filing
// itself.
func (p *Persister) applyDeal8K(ctx context.Context, q pgx.Tx, v *model.Deal8K, src model.Source) (outcome, error) {
	if v.URL == "" || v.AccessionNumber == "" {
		return outcomeSkipped, eris.New("persist: 8-K without source url or accession number")
	}

	out := outcomeSkipped
	var dealID int64
	err := q.QueryRow(ctx, `SELECT id FROM pe_deals WHERE source_url = $1`, v.URL).Scan(&dealID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		desc := v.Description
		if desc == "" && len(v.Items) > 0 {
			desc = "8-K items " + strings.Join(v.Items, ", ")
		}
		_, err = q.Exec(ctx,
			`INSERT INTO pe_deals (target_company, description, announced_date, status, source_url, confidence, data_sources)
			 VALUES ($1, $2, $3, 'announced', $4, $5, $6)`,
			textOrNil(v.CompanyName), textOrNil(desc), timeOrNil(v.FilingDate), v.URL,
			string(confOrLow(v.Conf)), []string{string(src)})
		if err != nil {
			return outcomeSkipped, eris.Wrap(err, "persist: record 8-K deal")
		}
		out = outcomePersisted
	case err != nil:
		return outcomeSkipped, eris.Wrap(err, "persist: find deal by source url")
	}

	_, err = q.Exec(ctx,
		`INSERT INTO pe_sec_filings (firm_id, form_type, accession_number, filing_date, subject, source_url)
		 VALUES (NULL, '8-K', $1, $2, $3, $4)
		 ON CONFLICT (accession_number) DO NOTHING`,
		v.AccessionNumber, timeOrNil(v.FilingDate), textOrNil(v.CompanyName), v.URL)
	if err != nil {
		return outcomeSkipped, eris.Wrap(err, "persist: record 8-K filing")
	}
	return out, nil
}

// applyDealPressRelease records a keyword-matched press release as a
// low-confidence deal placeholder awaiting enrichment.
func (p *Persister) applyDealPressRelease(ctx context.Context, q pgx.Tx, v *model.DealPressRelease, src model.Source) (outcome, error) {
	if v.URL == "" || v.Headline == "" {
		return outcomeSkipped, eris.New("persist: press release without url or headline")
	}

	var dealID int64
	err := q.QueryRow(ctx, `SELECT id FROM pe_deals WHERE source_url = $1`, v.URL).Scan(&dealID)
	if err == nil {
		return outcomeSkipped, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return outcomeSkipped, eris.Wrap(err, "persist: find deal by source url")
	}

	target := ""
	if len(v.Companies) > 0 {
		target = v.Companies[0]
	}
	_, err = q.Exec(ctx,
		`INSERT INTO pe_deals (firm_id, target_company, description, announced_date, status, source_url, confidence, data_sources)
		 VALUES ($1, $2, $3, $4, 'announced', $5, $6, $7)`,
		int64OrNil(v.FirmID), textOrNil(target), textOrNil(v.Headline), timeOrNil(v.PublishedAt),
		v.URL, string(confOrLow(v.Conf)), []string{string(src)})
	if err != nil {
		return outcomeSkipped, eris.Wrap(err, "persist: record press release deal")
	}
	return outcomePersisted, nil
}

// applyDeal writes a structured transaction: the deal row, its participants,
// and the portfolio company link for anything that is not an exit.
func (p *Persister) applyDeal(ctx context.Context, q pgx.Tx, v *model.Deal, src model.Source) (outcome, error) {
	if v.URL == "" {
		return outcomeSkipped, eris.New("persist: deal without source url")
	}

	// Exits reference companies leaving the portfolio; never create rows
	// for those.
	var linkID int64
	if v.TargetCompany != "" && !strings.EqualFold(v.DealType, "exit") {
		linkID = v.TargetCompanyID
		if linkID == 0 {
			var err error
			linkID, err = p.lookupCompany(ctx, q, v.TargetCompany)
			if err != nil {
				return outcomeSkipped, err
			}
			if linkID == 0 {
				linkID, err = p.insertCompanyStub(ctx, q, v.TargetCompany, v.FirmID, "", "", v.Conf, src)
				if err != nil {
					return outcomeSkipped, err
				}
			}
		}
	}

	var (
		dealID int64
		out    outcome
		cur    struct {
			firmID, targetCompanyID        *int64
			dealType, targetCompany        *string
			announced, closed              *time.Time
			enterpriseValue, equityValue   *int64
			status, seller, description    *string
			confidence                     string
			dataSources                    []string
		}
	)
	err := q.QueryRow(ctx,
		`SELECT id, firm_id, deal_type, target_company, target_company_id, announced_date, closed_date,
			enterprise_value_usd, equity_value_usd, status, seller, description, confidence, data_sources
		 FROM pe_deals WHERE source_url = $1`, v.URL).
		Scan(&dealID, &cur.firmID, &cur.dealType, &cur.targetCompany, &cur.targetCompanyID,
			&cur.announced, &cur.closed, &cur.enterpriseValue, &cur.equityValue,
			&cur.status, &cur.seller, &cur.description, &cur.confidence, &cur.dataSources)
	switch {
	case err == nil:
		over := v.Conf.AtLeast(model.Confidence(cur.confidence))
		_, err = q.Exec(ctx,
			`UPDATE pe_deals SET firm_id = $1, deal_type = $2, target_company = $3, target_company_id = $4,
				announced_date = $5, closed_date = $6, enterprise_value_usd = $7, equity_value_usd = $8,
				status = $9, seller = $10, description = $11, confidence = $12, data_sources = $13, updated_at = now()
			 WHERE id = $14`,
			mergeID(cur.firmID, v.FirmID),
			mergeText(cur.dealType, v.DealType, over),
			mergeText(cur.targetCompany, v.TargetCompany, over),
			mergeID(cur.targetCompanyID, linkID),
			mergeDate(cur.announced, v.AnnouncedDate, over),
			mergeDate(cur.closed, v.ClosedDate, over),
			mergeInt64(cur.enterpriseValue, v.EnterpriseValueUSD, over),
			mergeInt64(cur.equityValue, v.EquityValueUSD, over),
			mergeText(cur.status, v.Status, over),
			mergeText(cur.seller, v.Seller, over),
			mergeText(cur.description, v.Description, over),
			string(maxConfidence(model.Confidence(cur.confidence), v.Conf)),
			unionSources(cur.dataSources, src),
			dealID,
		)
		if err != nil {
			return outcomeSkipped, eris.Wrap(err, "persist: enrich deal")
		}
		out = outcomeUpdated
	case errors.Is(err, pgx.ErrNoRows):
		err = q.QueryRow(ctx,
			`INSERT INTO pe_deals (firm_id, deal_type, target_company, target_company_id, announced_date,
				closed_date, enterprise_value_usd, equity_value_usd, status, seller, description,
				source_url, confidence, data_sources)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			 RETURNING id`,
			int64OrNil(v.FirmID), textOrNil(v.DealType), textOrNil(v.TargetCompany), int64OrNil(linkID),
			timeOrNil(v.AnnouncedDate), timeOrNil(v.ClosedDate), int64OrNil(v.EnterpriseValueUSD),
			int64OrNil(v.EquityValueUSD), textOrNil(v.Status), textOrNil(v.Seller),
			textOrNil(v.Description), v.URL, string(confOrLow(v.Conf)), []string{string(src)},
		).Scan(&dealID)
		if err != nil {
			return outcomeSkipped, eris.Wrap(err, "persist: record deal")
		}
		out = outcomePersisted
	default:
		return outcomeSkipped, eris.Wrap(err, "persist: find deal by source url")
	}

	if err := p.addParticipants(ctx, q, dealID, v); err != nil {
		return outcomeSkipped, err
	}
	return out, nil
}

func (p *Persister) addParticipants(ctx context.Context, q pgx.Tx, dealID int64, v *model.Deal) error {
	if v.FirmID > 0 {
		name, err := p.firmName(ctx, q, v.FirmID)
		if err != nil {
			return err
		}
		if err := p.addParticipant(ctx, q, dealID, name, "Buyer", v.FirmID); err != nil {
			return err
		}
	}
	for _, co := range v.CoInvestors {
		if co == "" {
			continue
		}
		// Link only firms already known; participant mentions never create
		// firm rows.
		if err := p.addParticipant(ctx, q, dealID, co, "Co-Investor", p.firmIDs[normName(co)]); err != nil {
			return err
		}
	}
	if v.Seller != "" {
		if err := p.addParticipant(ctx, q, dealID, v.Seller, "Seller", p.firmIDs[normName(v.Seller)]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Persister) addParticipant(ctx context.Context, q pgx.Tx, dealID int64, name, role string, firmID int64) error {
	_, err := q.Exec(ctx,
		`INSERT INTO pe_deal_participants (deal_id, name, role, firm_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (deal_id, name, role) DO NOTHING`,
		dealID, name, role, int64OrNil(firmID))
	return eris.Wrapf(err, "persist: add %s participant", role)
}

// applyFirmNews appends one article. Articles dedupe on source URL; repeats
// are dropped.
func (p *Persister) applyFirmNews(ctx context.Context, q pgx.Tx, v *model.FirmNews) (outcome, error) {
	if v.FirmID == 0 || v.URL == "" || v.Title == "" {
		return outcomeSkipped, eris.New("persist: news without firm, url, or title")
	}

	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pe_firm_news WHERE source_url = $1)`, v.URL).Scan(&exists)
	if err != nil {
		return outcomeSkipped, eris.Wrap(err, "persist: check news url")
	}
	if exists {
		p.log.Debug("skipping already-stored article", zap.String("url", v.URL))
		return outcomeSkipped, nil
	}

	_, err = q.Exec(ctx,
		`INSERT INTO pe_firm_news (firm_id, title, summary, publisher, published_at, news_type,
			sentiment, relevance, source_url, confidence)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		v.FirmID, v.Title, textOrNil(v.Summary), textOrNil(v.Publisher), timeOrNil(v.PublishedAt),
		textOrNil(v.NewsType), floatOrNil(v.Sentiment), floatOrNil(v.Relevance),
		v.URL, string(confOrLow(v.Conf)))
	if err != nil {
		return outcomeSkipped, eris.Wrap(err, "persist: record news")
	}
	return outcomePersisted, nil
}
