package salesforce

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// Contact is the slice of the Salesforce Contact object the team sync reads
// and writes.
type Contact struct {
	ID        string `json:"Id" salesforce:"Id"`
	FirstName string `json:"FirstName" salesforce:"FirstName"`
	LastName  string `json:"LastName" salesforce:"LastName"`
	Email     string `json:"Email" salesforce:"Email"`
	Title     string `json:"Title" salesforce:"Title"`
	AccountID string `json:"AccountId" salesforce:"AccountId"`
}

// FindContactsByAccountID returns all Contacts attached to the given Account.
// The team sync diffs collected people against this set by display name.
func FindContactsByAccountID(ctx context.Context, c Client, accountID string) ([]Contact, error) {
	soql := fmt.Sprintf(
		"SELECT Id, FirstName, LastName, Email, Title, AccountId FROM Contact WHERE AccountId = '%s'",
		escapeSoql(accountID),
	)

	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find contacts for account %s", accountID))
	}
	return contacts, nil
}

// UpdateContact updates a Contact with the given fields.
func UpdateContact(ctx context.Context, c Client, contactID string, fields map[string]any) error {
	if contactID == "" {
		return eris.New("sf: contact id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, "Contact", contactID, fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update contact %s", contactID))
	}
	return nil
}

// BulkCreateContacts inserts contact records in Collections API batches.
// Each record must carry an AccountId. A firm's whole team lands in one or
// two calls instead of one call per person.
func BulkCreateContacts(ctx context.Context, c Client, records []map[string]any) ([]CollectionResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	for i, r := range records {
		if r["AccountId"] == nil || r["AccountId"] == "" {
			return nil, eris.Errorf("sf: contact record %d has no AccountId", i)
		}
	}

	var allResults []CollectionResult

	for start := 0; start < len(records); start += maxBatchSize {
		end := min(start+maxBatchSize, len(records))

		results, err := c.InsertCollection(ctx, "Contact", records[start:end])
		if err != nil {
			return allResults, eris.Wrap(err, fmt.Sprintf("sf: bulk insert contacts batch %d-%d", start, end))
		}
		allResults = append(allResults, results...)
	}

	return allResults, nil
}
