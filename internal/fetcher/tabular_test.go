package fetcher

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

const seedCSV = `Name,Website,CIK,CRD Number,Firm Type,Sector
Apex Capital Partners,https://apexcap.com,0001234567,158321,Buyout,Industrials
"Apollo Global Management, Inc.",https://apollo.com,0001411494,164281,,
Blue Harbor Advisors,,,,Growth Equity
`

func TestReadCSVTable_SeedExport(t *testing.T) {
	table, err := ReadCSVTable(strings.NewReader(seedCSV), CSVOptions{})
	require.NoError(t, err)

	require.Len(t, table.Rows, 3)
	assert.Equal(t, []string{"Name", "Website", "CIK", "CRD Number", "Firm Type", "Sector"}, table.Header)

	// Quoted comma stays inside the field.
	assert.Equal(t, "Apollo Global Management, Inc.", table.Field(table.Rows[1], "name"))

	// Spreadsheet headers match snake_case names.
	assert.Equal(t, "158321", table.Field(table.Rows[0], "crd_number"))
	assert.Equal(t, "Buyout", table.Field(table.Rows[0], "firm_type"))

	// The short row reads as empty past its last field.
	assert.Equal(t, "Blue Harbor Advisors", table.Field(table.Rows[2], "name"))
	assert.Equal(t, "", table.Field(table.Rows[2], "sector"))
}

func TestReadCSVTable_TrimsWhitespace(t *testing.T) {
	in := "name , cik \n Apex Capital Partners ,  0001234567 \n"
	table, err := ReadCSVTable(strings.NewReader(in), CSVOptions{})
	require.NoError(t, err)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Apex Capital Partners", table.Field(table.Rows[0], "name"))
	assert.Equal(t, "0001234567", table.Field(table.Rows[0], "cik"))
}

func TestReadCSVTable_DelimiterAndComments(t *testing.T) {
	in := "# exported 2026-08-01\nname;website\nApex;https://apexcap.com\n"
	table, err := ReadCSVTable(strings.NewReader(in), CSVOptions{
		Delimiter: ';',
		Comment:   '#',
	})
	require.NoError(t, err)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, "https://apexcap.com", table.Field(table.Rows[0], "website"))
}

func TestReadCSVTable_EmptyInput(t *testing.T) {
	_, err := ReadCSVTable(strings.NewReader(""), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty input")
}

func TestReadCSVTable_HeaderOnly(t *testing.T) {
	table, err := ReadCSVTable(strings.NewReader("name,cik\n"), CSVOptions{})
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
}

func TestTable_Col(t *testing.T) {
	table := &Table{Header: []string{"Name", "CRD Number", "Firm Type"}}

	assert.Equal(t, 0, table.Col("name"))
	assert.Equal(t, 1, table.Col("crd_number"))
	assert.Equal(t, 1, table.Col("CRD NUMBER"))
	assert.Equal(t, 2, table.Col("firm type"))
	assert.Equal(t, -1, table.Col("sector"))
}

func writeSeedWorkbook(t *testing.T, path string) {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Firms")
	require.NoError(t, err)

	header := sheet.AddRow()
	for _, h := range []string{"Name", "Website", "CIK", "CRD Number"} {
		header.AddCell().SetString(h)
	}

	r1 := sheet.AddRow()
	r1.AddCell().SetString("Apex Capital Partners")
	r1.AddCell().SetString("https://apexcap.com")
	r1.AddCell().SetString("0001234567")
	r1.AddCell().SetString("158321")

	// Trailing blank row, as Excel exports tend to have.
	blank := sheet.AddRow()
	blank.AddCell().SetString("")

	r2 := sheet.AddRow()
	r2.AddCell().SetString("Blue Harbor Advisors")

	require.NoError(t, f.Save(path))
}

func TestReadXLSXTable_SeedWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "firms.xlsx")
	writeSeedWorkbook(t, path)

	table, err := ReadXLSXTable(path, XLSXOptions{})
	require.NoError(t, err)

	// The blank row is dropped.
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Apex Capital Partners", table.Field(table.Rows[0], "name"))
	assert.Equal(t, "158321", table.Field(table.Rows[0], "crd_number"))
	assert.Equal(t, "Blue Harbor Advisors", table.Field(table.Rows[1], "name"))
	assert.Equal(t, "", table.Field(table.Rows[1], "website"))
}

func TestReadXLSXTable_SheetByName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "firms.xlsx")
	writeSeedWorkbook(t, path)

	table, err := ReadXLSXTable(path, XLSXOptions{SheetName: "Firms"})
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)

	_, err = ReadXLSXTable(path, XLSXOptions{SheetName: "Deals"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Deals" not found`)
}

func TestReadXLSXTable_SheetIndexOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "firms.xlsx")
	writeSeedWorkbook(t, path)

	_, err := ReadXLSXTable(path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSXTable_MissingFile(t *testing.T) {
	_, err := ReadXLSXTable(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open file")
}
