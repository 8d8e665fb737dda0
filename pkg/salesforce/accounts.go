package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Account is the slice of the Salesforce Account object the pusher reads and
// writes. Firms map onto standard fields only; no custom fields are assumed
// in the org.
type Account struct {
	ID                string  `json:"Id" salesforce:"Id"`
	Name              string  `json:"Name" salesforce:"Name"`
	Website           string  `json:"Website" salesforce:"Website"`
	Industry          string  `json:"Industry" salesforce:"Industry"`
	Description       string  `json:"Description" salesforce:"Description"`
	BillingCity       string  `json:"BillingCity" salesforce:"BillingCity"`
	BillingState      string  `json:"BillingState" salesforce:"BillingState"`
	BillingCountry    string  `json:"BillingCountry" salesforce:"BillingCountry"`
	BillingPostalCode string  `json:"BillingPostalCode" salesforce:"BillingPostalCode"`
	Phone             string  `json:"Phone" salesforce:"Phone"`
	NumberOfEmployees int     `json:"NumberOfEmployees" salesforce:"NumberOfEmployees"`
	AnnualRevenue     float64 `json:"AnnualRevenue" salesforce:"AnnualRevenue"`
	Type              string  `json:"Type" salesforce:"Type"`
}

// accountSelect lists the SOQL fields selected for Account lookups.
var accountSelect = []string{
	"Id", "Name", "Website", "Industry", "Description",
	"BillingCity", "BillingState", "BillingCountry", "BillingPostalCode",
	"Phone", "NumberOfEmployees", "AnnualRevenue", "Type",
}

func findOneAccount(ctx context.Context, c Client, where, label string) (*Account, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Account WHERE %s LIMIT 1",
		strings.Join(accountSelect, ", "), where,
	)

	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find account by %s", label))
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// FindAccountByWebsite returns the Account whose Website matches, or nil.
// Website is the primary match key for firms since names drift between the
// CRM and filings.
func FindAccountByWebsite(ctx context.Context, c Client, website string) (*Account, error) {
	where := fmt.Sprintf("Website LIKE '%s'", escapeSoql(website))
	return findOneAccount(ctx, c, where, "website "+website)
}

// FindAccountByName returns the Account with an exact name match, or nil.
func FindAccountByName(ctx context.Context, c Client, name string) (*Account, error) {
	where := fmt.Sprintf("Name = '%s'", escapeSoql(name))
	return findOneAccount(ctx, c, where, "name "+name)
}

// CreateAccount creates an Account and returns the new Salesforce ID.
func CreateAccount(ctx context.Context, c Client, fields map[string]any) (string, error) {
	if fields["Name"] == nil || fields["Name"] == "" {
		return "", eris.New("sf: account Name is required")
	}
	id, err := c.InsertOne(ctx, "Account", fields)
	if err != nil {
		return "", eris.Wrap(err, "sf: create account")
	}
	return id, nil
}

// UpdateAccount updates an Account with the given fields.
func UpdateAccount(ctx context.Context, c Client, accountID string, fields map[string]any) error {
	if accountID == "" {
		return eris.New("sf: account id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, "Account", accountID, fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update account %s", accountID))
	}
	return nil
}

// escapeSoql escapes single quotes in SOQL string literals.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
