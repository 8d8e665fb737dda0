package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-intel/internal/model"
)

const advSubmissions = `{
	"cik": 1234567,
	"name": "ACME CAPITAL ADVISORS LLC",
	"sic": "6282",
	"sicDescription": "Investment Advice",
	"phone": "617-555-0100",
	"addresses": {
		"business": {"street1": "1 Main St", "city": "Boston", "stateOrCountry": "MA", "zipCode": "02110"}
	},
	"filings": {"recent": {
		"accessionNumber": ["0001234567-26-000010", "0001234567-26-000009", "0001234567-25-000008"],
		"filingDate": ["2026-06-01", "2026-03-15", "2025-03-20"],
		"form": ["ADV", "8-K", "ADV-E"],
		"primaryDocument": ["adv.pdf", "ek.htm", ""]
	}}
}`

func advFirmEntity() model.Entity {
	return model.Entity{ID: 7, Type: model.EntityFirm, Name: "Acme Capital", CIK: "1234567", CRDNumber: "158411"}
}

func TestSECADV_Collect(t *testing.T) {
	f := newFakeFetcher()
	f.responses["data.sec.gov/submissions/CIK0001234567"] = advSubmissions

	c := NewSECADV(Deps{Fetcher: f})
	result := c.Collect(context.Background(), advFirmEntity())

	require.True(t, result.Success)
	assert.Empty(t, result.Warnings)

	updates := itemsOf(result, model.ItemFirmUpdate)
	require.Len(t, updates, 1)
	up := updates[0].(model.FirmUpdate)
	assert.Equal(t, "ACME CAPITAL ADVISORS LLC", up.Name)
	assert.Equal(t, "0001234567", up.CIK)
	assert.Equal(t, "617-555-0100", up.Phone)
	assert.Equal(t, "1 Main St, Boston, MA 02110", up.Headquarters)
	assert.Equal(t, "Investment Advice (SIC 6282)", up.Description)
	assert.Equal(t, model.ConfidenceHigh, up.Confidence())
	assert.Equal(t, "https://data.sec.gov/submissions/CIK0001234567.json", up.SourceURL())

	filings := itemsOf(result, model.ItemFormADVFiling)
	require.Len(t, filings, 2)

	first := filings[0].(model.FormADVFiling)
	assert.Equal(t, "158411", first.FirmCRD)
	assert.Equal(t, "0001234567-26-000010", first.FilingID)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), first.FilingDate)
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/data/1234567/000123456726000010/adv.pdf", first.SourceURL())

	// No primary document listed, so the URL points at the filing directory.
	second := filings[1].(model.FormADVFiling)
	assert.Equal(t, "0001234567-25-000008", second.FilingID)
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/data/1234567/000123456725000008", second.SourceURL())
}

func TestSECADV_Collect_NoCIK(t *testing.T) {
	f := newFakeFetcher()
	c := NewSECADV(Deps{Fetcher: f})

	result := c.Collect(context.Background(), firmEntity("Acme Capital"))

	assert.False(t, result.Success)
	assert.Equal(t, "No CIK provided", result.ErrorMessage)
	assert.Empty(t, f.calls)
}

func TestSECADV_Collect_UnknownCIK(t *testing.T) {
	f := newFakeFetcher()
	c := NewSECADV(Deps{Fetcher: f})

	entity := advFirmEntity()
	entity.CIK = "9999999"
	result := c.Collect(context.Background(), entity)

	assert.True(t, result.Success)
	assert.Empty(t, result.Items)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no EDGAR submissions for CIK 9999999")
}

func TestSECADV_Collect_FetchError(t *testing.T) {
	f := newFakeFetcher()
	f.errs["data.sec.gov/submissions"] = errors.New("edgar timeout")

	c := NewSECADV(Deps{Fetcher: f})
	result := c.Collect(context.Background(), advFirmEntity())

	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "fetch submissions")
	assert.Contains(t, result.ErrorMessage, "edgar timeout")
}
