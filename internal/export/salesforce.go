package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/db"
	"github.com/sells-group/pe-intel/pkg/salesforce"
)

// AccountPusher upserts active firms into Salesforce Accounts. Matching is by
// website first, exact name second; unmatched firms become new accounts.
type AccountPusher struct {
	pool db.Pool
	sf   salesforce.Client
	log  *zap.Logger

	// PushTeam also syncs each firm's team members as Contacts under the
	// matched account.
	PushTeam bool
}

func NewAccountPusher(pool db.Pool, sf salesforce.Client) *AccountPusher {
	return &AccountPusher{
		pool: pool,
		sf:   sf,
		log:  zap.L().With(zap.String("component", "export.salesforce")),
	}
}

// PushStats summarizes one push.
type PushStats struct {
	Firms    int      `json:"firms"`
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	Contacts int      `json:"contacts"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

type firmRow struct {
	ID            int64
	Name          string
	Website       string
	Sector        string
	Phone         string
	Description   string
	EmployeeCount int
}

// PushFirms syncs every active firm. Individual failures are recorded and
// skipped so one bad record cannot abort the push.
func (p *AccountPusher) PushFirms(ctx context.Context) (*PushStats, error) {
	firms, err := p.loadFirms(ctx)
	if err != nil {
		return nil, err
	}

	stats := &PushStats{Firms: len(firms)}
	for _, f := range firms {
		if err := ctx.Err(); err != nil {
			return stats, eris.Wrap(err, "export: push cancelled")
		}
		accountID, err := p.pushFirm(ctx, f, stats)
		if err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", f.Name, err))
			p.log.Warn("firm push failed", zap.String("firm", f.Name), zap.Error(err))
			continue
		}
		if p.PushTeam && accountID != "" {
			if err := p.pushTeam(ctx, accountID, f, stats); err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s team: %v", f.Name, err))
				p.log.Warn("team push failed", zap.String("firm", f.Name), zap.Error(err))
			}
		}
	}

	p.log.Info("salesforce push complete",
		zap.Int("firms", stats.Firms),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("contacts", stats.Contacts),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (p *AccountPusher) loadFirms(ctx context.Context) ([]firmRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, COALESCE(website, ''), COALESCE(sector, ''),
			COALESCE(phone, ''), COALESCE(description, ''), COALESCE(employee_count, 0)
		FROM pe_firms
		WHERE is_active
		ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "export: query firms for push")
	}
	defer rows.Close()

	var firms []firmRow
	for rows.Next() {
		var f firmRow
		if err := rows.Scan(&f.ID, &f.Name, &f.Website, &f.Sector, &f.Phone,
			&f.Description, &f.EmployeeCount); err != nil {
			return nil, eris.Wrap(err, "export: scan firm for push")
		}
		firms = append(firms, f)
	}
	return firms, eris.Wrap(rows.Err(), "export: read firms for push")
}

// pushFirm upserts one firm and returns the Salesforce account ID it landed in.
func (p *AccountPusher) pushFirm(ctx context.Context, f firmRow, stats *PushStats) (string, error) {
	acct, err := p.matchAccount(ctx, f)
	if err != nil {
		return "", err
	}

	fields := accountFields(f)
	if acct != nil {
		if err := salesforce.UpdateAccount(ctx, p.sf, acct.ID, fields); err != nil {
			return "", err
		}
		stats.Updated++
		return acct.ID, nil
	}

	id, err := salesforce.CreateAccount(ctx, p.sf, fields)
	if err != nil {
		return "", err
	}
	stats.Created++
	return id, nil
}

func (p *AccountPusher) matchAccount(ctx context.Context, f firmRow) (*salesforce.Account, error) {
	if f.Website != "" {
		acct, err := salesforce.FindAccountByWebsite(ctx, p.sf, f.Website)
		if err != nil {
			return nil, err
		}
		if acct != nil {
			return acct, nil
		}
	}
	return salesforce.FindAccountByName(ctx, p.sf, f.Name)
}

// accountFields maps a firm row onto Account fields, skipping empties so an
// update never blanks data someone entered in the CRM.
func accountFields(f firmRow) map[string]any {
	fields := map[string]any{"Name": f.Name}
	if f.Website != "" {
		fields["Website"] = f.Website
	}
	if f.Sector != "" {
		fields["Industry"] = f.Sector
	}
	if f.Phone != "" {
		fields["Phone"] = f.Phone
	}
	if f.Description != "" {
		fields["Description"] = f.Description
	}
	if f.EmployeeCount > 0 {
		fields["NumberOfEmployees"] = f.EmployeeCount
	}
	return fields
}

type personRow struct {
	FullName string
	Title    string
	Email    string
}

func (p *AccountPusher) pushTeam(ctx context.Context, accountID string, f firmRow, stats *PushStats) error {
	people, err := p.loadTeam(ctx, f.ID)
	if err != nil {
		return err
	}
	if len(people) == 0 {
		return nil
	}

	existing, err := salesforce.FindContactsByAccountID(ctx, p.sf, accountID)
	if err != nil {
		return err
	}
	byName := make(map[string]salesforce.Contact, len(existing))
	for _, c := range existing {
		byName[strings.ToLower(strings.TrimSpace(c.FirstName+" "+c.LastName))] = c
	}

	var (
		newContacts []map[string]any
		newNames    []string
	)
	for _, person := range people {
		key := strings.ToLower(person.FullName)
		contact, found := byName[key]

		fields := make(map[string]any)
		if person.Title != "" {
			fields["Title"] = person.Title
		}
		if person.Email != "" {
			fields["Email"] = person.Email
		}

		if found {
			// Only touch contacts we would actually change.
			if len(fields) == 0 || (contact.Title == person.Title && contact.Email == person.Email) {
				continue
			}
			if err := salesforce.UpdateContact(ctx, p.sf, contact.ID, fields); err != nil {
				p.log.Warn("contact update failed",
					zap.String("contact", person.FullName), zap.Error(err))
				continue
			}
			stats.Contacts++
			continue
		}

		first, last := splitName(person.FullName)
		fields["FirstName"] = first
		fields["LastName"] = last
		fields["AccountId"] = accountID
		newContacts = append(newContacts, fields)
		newNames = append(newNames, person.FullName)
	}

	if len(newContacts) == 0 {
		return nil
	}

	// New contacts go through the Collections API in one shot per firm.
	results, err := salesforce.BulkCreateContacts(ctx, p.sf, newContacts)
	if err != nil {
		return err
	}
	for i, r := range results {
		if !r.Success {
			p.log.Warn("contact create failed",
				zap.String("contact", newNames[i]),
				zap.Strings("errors", r.Errors))
			continue
		}
		stats.Contacts++
	}
	return nil
}

func (p *AccountPusher) loadTeam(ctx context.Context, firmID int64) ([]personRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT pe.full_name, COALESCE(NULLIF(fp.title, ''), COALESCE(pe.title, '')),
			COALESCE(pe.email, '')
		FROM pe_people pe
		JOIN pe_firm_people fp ON fp.person_id = pe.id
		WHERE fp.firm_id = $1
		ORDER BY pe.full_name`, firmID)
	if err != nil {
		return nil, eris.Wrap(err, "export: query team for push")
	}
	defer rows.Close()

	var people []personRow
	for rows.Next() {
		var pr personRow
		if err := rows.Scan(&pr.FullName, &pr.Title, &pr.Email); err != nil {
			return nil, eris.Wrap(err, "export: scan person for push")
		}
		people = append(people, pr)
	}
	return people, eris.Wrap(rows.Err(), "export: read team for push")
}

// splitName breaks a display name into Salesforce FirstName/LastName.
// Salesforce requires LastName, so a single-token name lands there.
func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", "Unknown"
	case 1:
		return "", parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}
