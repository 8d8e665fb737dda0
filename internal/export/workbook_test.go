package export

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func newMockWorkbookWriter(t *testing.T) (*WorkbookWriter, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewWorkbookWriter(mock), mock
}

func firmSheetColumns() []string {
	return []string{
		"id", "name", "firm_type", "sector", "aum_usd", "headquarters",
		"website", "cik", "crd_number", "team_size", "confidence", "last_collected_at",
	}
}

func TestWorkbookWriter_WriteFile(t *testing.T) {
	w, mock := newMockWorkbookWriter(t)

	collected := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	announced := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM pe_firms`).
		WillReturnRows(pgxmock.NewRows(firmSheetColumns()).
			AddRow(int64(1), "Apex Capital Partners", "PE", "Industrials",
				int64(2_500_000_000), "Chicago, IL", "https://apexcap.com",
				"0001111111", "155555", 12, "high", &collected).
			AddRow(int64(2), "Blue Harbor Advisors", "RIA", "", int64(0), "",
				"https://blueharbor.example.com", "", "288888", 0, "medium", nil))

	mock.ExpectQuery(`FROM pe_portfolio_companies`).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "firm", "name", "sector", "industry", "status",
			"location", "ticker", "employee_count", "confidence",
		}).AddRow(int64(10), "Apex Capital Partners", "Midwest Gasket Co",
			"Industrials", "Sealing Products", "active", "Toledo, OH", "", 0, "medium"))

	mock.ExpectQuery(`FROM pe_deals`).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "firm", "deal_type", "target", "announced", "status",
			"enterprise_value_usd", "seller", "source_url",
		}).AddRow(int64(20), "Apex Capital Partners", "BUYOUT", "Midwest Gasket Co",
			&announced, "announced", int64(120_000_000), "Family ownership",
			"https://news.example.com/apex-gasket"))

	mock.ExpectQuery(`FROM pe_people`).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "full_name", "title", "firm", "location", "linkedin_url", "confidence",
		}).AddRow(int64(30), "Jane Doe", "Managing Partner", "Apex Capital Partners",
			"Chicago, IL", "https://linkedin.com/in/janedoe", "high"))

	mock.ExpectQuery(`FROM pe_funds`).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "firm", "name", "strategy", "vintage_year",
			"target_size_usd", "raised_usd", "status",
		}).AddRow(int64(40), "Apex Capital Partners", "Apex Fund III", "Buyout",
			2024, int64(500_000_000), int64(415_000_000), "investing"))

	path := filepath.Join(t.TempDir(), "intel.xlsx")
	require.NoError(t, w.WriteFile(context.Background(), path))
	assert.NoError(t, mock.ExpectationsWereMet())

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 5)

	firms := f.Sheet["Firms"]
	require.NotNil(t, firms)
	require.Len(t, firms.Rows, 3) // header + 2 firms
	assert.Equal(t, "Name", firms.Rows[0].Cells[1].String())
	assert.Equal(t, "Apex Capital Partners", firms.Rows[1].Cells[1].String())
	assert.Equal(t, "2500000000", firms.Rows[1].Cells[4].String())
	assert.Equal(t, "2026-08-01", firms.Rows[1].Cells[11].String())

	// Zero AUM and missing collection date stay blank.
	assert.Equal(t, "", firms.Rows[2].Cells[4].String())
	assert.Equal(t, "", firms.Rows[2].Cells[11].String())

	companies := f.Sheet["Portfolio Companies"]
	require.NotNil(t, companies)
	require.Len(t, companies.Rows, 2)
	assert.Equal(t, "Midwest Gasket Co", companies.Rows[1].Cells[2].String())
	assert.Equal(t, "", companies.Rows[1].Cells[8].String()) // unknown employee count

	deals := f.Sheet["Deals"]
	require.NotNil(t, deals)
	require.Len(t, deals.Rows, 2)
	assert.Equal(t, "BUYOUT", deals.Rows[1].Cells[2].String())
	assert.Equal(t, "2026-03-15", deals.Rows[1].Cells[4].String())
	assert.Equal(t, "https://news.example.com/apex-gasket", deals.Rows[1].Cells[8].String())

	people := f.Sheet["People"]
	require.NotNil(t, people)
	require.Len(t, people.Rows, 2)
	assert.Equal(t, "Jane Doe", people.Rows[1].Cells[1].String())

	funds := f.Sheet["Funds"]
	require.NotNil(t, funds)
	require.Len(t, funds.Rows, 2)
	assert.Equal(t, "Apex Fund III", funds.Rows[1].Cells[2].String())
	assert.Equal(t, "2024", funds.Rows[1].Cells[4].String())
}

func TestWorkbookWriter_WriteFile_QueryError(t *testing.T) {
	w, mock := newMockWorkbookWriter(t)

	mock.ExpectQuery(`FROM pe_firms`).WillReturnError(assert.AnError)

	err := w.WriteFile(context.Background(), filepath.Join(t.TempDir(), "intel.xlsx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query firms")
}

func TestWorkbookWriter_WriteFile_EmptyTables(t *testing.T) {
	w, mock := newMockWorkbookWriter(t)

	mock.ExpectQuery(`FROM pe_firms`).
		WillReturnRows(pgxmock.NewRows(firmSheetColumns()))
	mock.ExpectQuery(`FROM pe_portfolio_companies`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`FROM pe_deals`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`FROM pe_people`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`FROM pe_funds`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, w.WriteFile(context.Background(), path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 5)
	// Header rows only.
	for _, sheet := range f.Sheets {
		assert.Len(t, sheet.Rows, 1, "sheet %s", sheet.Name)
	}
}
