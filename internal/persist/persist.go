// Package persist writes collected items into the pe_* entity tables.
//
// Persistence runs in two phases so foreign keys always resolve: phase 1
// items create or update entity rows (firms, companies, people), phase 2
// items reference them (holdings, deals, news). Each phase is one
// transaction; within it every item applies inside its own savepoint, so a
// malformed item rolls back alone and the rest of the batch survives.
package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/db"
	"github.com/sells-group/pe-intel/internal/model"
)

const (
	// strategy13F marks the synthetic fund that aggregates a firm's 13F
	// reported holdings, one per firm.
	strategy13F = "13F Reported Holdings"

	// investmentType13F tags fund investments derived from 13F info tables.
	investmentType13F = "13F Holding"

	// fundSuffix13F is appended to the firm name to form the synthetic
	// fund's display name.
	fundSuffix13F = " - 13F Holdings"
)

// Stats summarizes one Persist call.
type Stats struct {
	Persisted int      `json:"persisted"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomePersisted
	outcomeUpdated
)

// Persister applies collection results to the entity tables. It keeps
// in-memory caches of frequently resolved foreign keys for the duration of
// one Persist call. Not safe for concurrent use.
type Persister struct {
	pool db.Pool
	log  *zap.Logger

	firmIDs    map[string]int64 // lower(name) -> pe_firms.id
	firmNames  map[int64]string // pe_firms.id -> name
	companyIDs map[string]int64 // lower(name) -> pe_portfolio_companies.id
	personIDs  map[string]int64 // linkedin url or lower(full_name) -> pe_people.id
	fundIDs    map[int64]int64  // firm id -> synthetic 13F fund id
}

// New returns a Persister writing through the given pool. The pool is shared
// with the run store; the caller owns its lifecycle.
func New(pool db.Pool) *Persister {
	return &Persister{
		pool: pool,
		log:  zap.L().With(zap.String("component", "persist")),
	}
}

type sourcedItem struct {
	item model.Item
	src  model.Source
}

// Persist applies every item in the given results, phase 1 before phase 2.
// Individual item failures are contained and counted; an error is returned
// only when a phase cannot begin or commit, which loses that phase's items.
func (p *Persister) Persist(ctx context.Context, results []*model.Result) (*Stats, error) {
	stats := &Stats{}
	if err := p.warmCaches(ctx); err != nil {
		return nil, err
	}
	for phase := 1; phase <= 2; phase++ {
		if err := p.applyPhase(ctx, phaseItems(results, phase), phase, stats); err != nil {
			return stats, err
		}
	}
	p.log.Info("persist complete",
		zap.Int("persisted", stats.Persisted),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

func phaseItems(results []*model.Result, phase int) []sourcedItem {
	var items []sourcedItem
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, it := range res.Items {
			if it != nil && it.ItemType().Phase() == phase {
				items = append(items, sourcedItem{item: it, src: res.Source})
			}
		}
	}
	return items
}

func (p *Persister) applyPhase(ctx context.Context, items []sourcedItem, phase int, stats *Stats) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "persist: begin phase %d", phase)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, si := range items {
		p.applyItem(ctx, tx, si, stats)
	}

	if err := tx.Commit(ctx); err != nil {
		// Everything applied in this phase is lost.
		p.log.Error("phase commit failed, items lost",
			zap.Int("phase", phase),
			zap.Int("items", len(items)),
			zap.Error(err))
		return eris.Wrapf(err, "persist: commit phase %d", phase)
	}
	return nil
}

// applyItem runs one item inside a savepoint. On failure the savepoint rolls
// back, the volatile caches are dropped, and the failure is recorded; the
// enclosing phase transaction continues.
func (p *Persister) applyItem(ctx context.Context, tx pgx.Tx, si sourcedItem, stats *Stats) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		p.recordFailure(stats, si, eris.Wrap(err, "persist: open savepoint"))
		return
	}
	out, err := p.apply(ctx, sp, si.item, si.src)
	if err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			p.log.Warn("savepoint rollback failed", zap.Error(rbErr))
		}
		p.clearVolatile()
		p.recordFailure(stats, si, err)
		return
	}
	if err := sp.Commit(ctx); err != nil {
		p.clearVolatile()
		p.recordFailure(stats, si, eris.Wrap(err, "persist: release savepoint"))
		return
	}
	switch out {
	case outcomePersisted:
		stats.Persisted++
	case outcomeUpdated:
		stats.Updated++
	default:
		stats.Skipped++
	}
}

func (p *Persister) recordFailure(stats *Stats, si sourcedItem, err error) {
	stats.Failed++
	stats.Errors = append(stats.Errors, fmt.Sprintf("%s/%s: %v", si.src, si.item.ItemType(), err))
	p.log.Warn("item failed",
		zap.String("source", string(si.src)),
		zap.String("item_type", string(si.item.ItemType())),
		zap.Error(err))
}

func (p *Persister) apply(ctx context.Context, q pgx.Tx, it model.Item, src model.Source) (outcome, error) {
	switch v := it.(type) {
	case model.FirmUpdate:
		return p.applyFirmUpdate(ctx, q, &v, src)
	case model.FormADVFiling:
		return p.applyFormADVFiling(ctx, q, &v, src)
	case model.PortfolioCompany:
		return p.applyPortfolioCompany(ctx, q, &v, src)
	case model.TeamMember:
		return p.applyTeamMember(ctx, q, &v, src)
	case model.Person:
		return p.applyPerson(ctx, q, &v, src)
	case model.RelatedPerson:
		return p.applyRelatedPerson(ctx, q, &v, src)
	case model.CompanyUpdate:
		return p.applyCompanyUpdate(ctx, q, &v, src)
	case model.Holding13F:
		return p.apply13FHolding(ctx, q, &v, src)
	case model.Stake13D:
		return p.applyStake13D(ctx, q, &v)
	case model.FormDFiling:
		return p.applyFormDFiling(ctx, q, &v, src)
	case model.Deal8K:
		return p.applyDeal8K(ctx, q, &v, src)
	case model.DealPressRelease:
		return p.applyDealPressRelease(ctx, q, &v, src)
	case model.Deal:
		return p.applyDeal(ctx, q, &v, src)
	case model.FirmNews:
		return p.applyFirmNews(ctx, q, &v)
	case model.CompanyFinancial:
		return p.applyCompanyFinancial(ctx, q, &v)
	case model.CompanyValuation:
		return p.applyCompanyValuation(ctx, q, &v)
	default:
		p.log.Debug("no handler for item type", zap.String("item_type", string(it.ItemType())))
		return outcomeSkipped, nil
	}
}

// warmCaches loads the FK lookup maps once per Persist call.
func (p *Persister) warmCaches(ctx context.Context) error {
	p.firmIDs = make(map[string]int64)
	p.firmNames = make(map[int64]string)
	p.companyIDs = make(map[string]int64)
	p.personIDs = make(map[string]int64)
	p.fundIDs = make(map[int64]int64)

	if err := p.warmFirms(ctx); err != nil {
		return err
	}
	if err := p.warmCompanies(ctx); err != nil {
		return err
	}
	if err := p.warmPeople(ctx); err != nil {
		return err
	}
	return p.warmFunds(ctx)
}

func (p *Persister) warmFirms(ctx context.Context) error {
	rows, err := p.pool.Query(ctx, `SELECT id, name FROM pe_firms`)
	if err != nil {
		return eris.Wrap(err, "persist: warm firm cache")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return eris.Wrap(err, "persist: scan firm cache row")
		}
		p.firmIDs[normName(name)] = id
		p.firmNames[id] = name
	}
	return eris.Wrap(rows.Err(), "persist: warm firm cache")
}

func (p *Persister) warmCompanies(ctx context.Context) error {
	rows, err := p.pool.Query(ctx, `SELECT id, name FROM pe_portfolio_companies`)
	if err != nil {
		return eris.Wrap(err, "persist: warm company cache")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return eris.Wrap(err, "persist: scan company cache row")
		}
		p.companyIDs[normName(name)] = id
	}
	return eris.Wrap(rows.Err(), "persist: warm company cache")
}

func (p *Persister) warmPeople(ctx context.Context) error {
	rows, err := p.pool.Query(ctx, `SELECT id, full_name, COALESCE(linkedin_url, '') FROM pe_people`)
	if err != nil {
		return eris.Wrap(err, "persist: warm person cache")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id       int64
			name     string
			linkedin string
		)
		if err := rows.Scan(&id, &name, &linkedin); err != nil {
			return eris.Wrap(err, "persist: scan person cache row")
		}
		if linkedin != "" {
			p.personIDs[linkedin] = id
		}
		p.personIDs[normName(name)] = id
	}
	return eris.Wrap(rows.Err(), "persist: warm person cache")
}

func (p *Persister) warmFunds(ctx context.Context) error {
	rows, err := p.pool.Query(ctx, `SELECT id, firm_id FROM pe_funds WHERE strategy = $1`, strategy13F)
	if err != nil {
		return eris.Wrap(err, "persist: warm fund cache")
	}
	defer rows.Close()
	for rows.Next() {
		var id, firmID int64
		if err := rows.Scan(&id, &firmID); err != nil {
			return eris.Wrap(err, "persist: scan fund cache row")
		}
		p.fundIDs[firmID] = id
	}
	return eris.Wrap(rows.Err(), "persist: warm fund cache")
}

// clearVolatile drops cache entries that may reference rows undone by a
// savepoint rollback. Firm and person entries are only written once their
// item's writes are complete, so they survive.
func (p *Persister) clearVolatile() {
	p.companyIDs = make(map[string]int64)
	p.fundIDs = make(map[int64]int64)
}

// lookupFirm resolves a firm id by name, case-insensitively. Returns 0 when
// no firm matches.
func (p *Persister) lookupFirm(ctx context.Context, q pgx.Tx, name string) (int64, error) {
	key := normName(name)
	if id, ok := p.firmIDs[key]; ok {
		return id, nil
	}
	var id int64
	err := q.QueryRow(ctx, `SELECT id FROM pe_firms WHERE lower(name) = $1`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "persist: look up firm")
	}
	p.firmIDs[key] = id
	return id, nil
}

// firmName resolves a firm's display name by id.
func (p *Persister) firmName(ctx context.Context, q pgx.Tx, id int64) (string, error) {
	if name, ok := p.firmNames[id]; ok {
		return name, nil
	}
	var name string
	if err := q.QueryRow(ctx, `SELECT name FROM pe_firms WHERE id = $1`, id).Scan(&name); err != nil {
		return "", eris.Wrapf(err, "persist: firm %d not found", id)
	}
	p.firmNames[id] = name
	return name, nil
}

// lookupCompany resolves a portfolio company id by name, case-insensitively.
// Returns 0 when no company matches.
func (p *Persister) lookupCompany(ctx context.Context, q pgx.Tx, name string) (int64, error) {
	key := normName(name)
	if id, ok := p.companyIDs[key]; ok {
		return id, nil
	}
	var id int64
	err := q.QueryRow(ctx, `SELECT id FROM pe_portfolio_companies WHERE lower(name) = $1 ORDER BY id LIMIT 1`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "persist: look up company")
	}
	p.companyIDs[key] = id
	return id, nil
}

// insertCompanyStub creates a minimal portfolio company row for a name first
// seen in a holding or deal.
func (p *Persister) insertCompanyStub(ctx context.Context, q pgx.Tx, name string, firmID int64, cusip, ticker string, conf model.Confidence, src model.Source) (int64, error) {
	var id int64
	err := q.QueryRow(ctx,
		`INSERT INTO pe_portfolio_companies (firm_id, name, cusip, ticker, confidence, data_sources)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		int64OrNil(firmID), name, textOrNil(cusip), textOrNil(ticker),
		string(confOrLow(conf)), []string{string(src)},
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "persist: create portfolio company %q", name)
	}
	p.companyIDs[normName(name)] = id
	return id, nil
}

// synthetic13FFund finds or creates the per-firm fund that carries 13F
// reported holdings. On a database hit the fund's display name is refreshed
// so it tracks firm renames.
func (p *Persister) synthetic13FFund(ctx context.Context, q pgx.Tx, firmID int64, src model.Source) (int64, error) {
	if id, ok := p.fundIDs[firmID]; ok {
		return id, nil
	}
	name, err := p.firmName(ctx, q, firmID)
	if err != nil {
		return 0, err
	}
	fundName := name + fundSuffix13F

	var id int64
	err = q.QueryRow(ctx, `SELECT id FROM pe_funds WHERE firm_id = $1 AND strategy = $2`, firmID, strategy13F).Scan(&id)
	switch {
	case err == nil:
		if _, err := q.Exec(ctx, `UPDATE pe_funds SET name = $1, updated_at = now() WHERE id = $2`, fundName, id); err != nil {
			return 0, eris.Wrap(err, "persist: refresh 13F fund name")
		}
	case errors.Is(err, pgx.ErrNoRows):
		err = q.QueryRow(ctx,
			`INSERT INTO pe_funds (firm_id, name, strategy, confidence, data_sources)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			firmID, fundName, strategy13F, string(model.ConfidenceHigh), []string{string(src)},
		).Scan(&id)
		if err != nil {
			return 0, eris.Wrap(err, "persist: create 13F fund")
		}
	default:
		return 0, eris.Wrap(err, "persist: find 13F fund")
	}
	p.fundIDs[firmID] = id
	return id, nil
}
