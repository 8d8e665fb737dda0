package fetcher

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Table is a parsed tabular file: one header row plus data rows. Seed files
// arrive as spreadsheet exports, so columns are addressed by header name
// rather than position.
type Table struct {
	Header []string
	Rows   [][]string
}

// Col returns the index of the named column. Header matching is
// case-insensitive and treats spaces and underscores as the same, so
// "CRD Number" matches "crd_number". Returns -1 when absent.
func (t *Table) Col(name string) int {
	want := normalizeHeader(name)
	for i, h := range t.Header {
		if normalizeHeader(h) == want {
			return i
		}
	}
	return -1
}

// Field returns the named column's value in row, trimmed. Returns "" when
// the column is absent or the row is short.
func (t *Table) Field(row []string, name string) string {
	i := t.Col(name)
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.ReplaceAll(h, " ", "_")
}

// CSVOptions configures ReadCSVTable.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
}

// ReadCSVTable parses CSV from r. The first record is the header; rows may
// have fewer fields than the header (short rows read as empty via Field).
func ReadCSVTable(r io.Reader, opts CSVOptions) (*Table, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1

	var t Table
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		if t.Header == nil {
			t.Header = record
			continue
		}
		t.Rows = append(t.Rows, record)
	}

	if t.Header == nil {
		return nil, eris.New("csv: empty input")
	}
	return &t, nil
}

// XLSXOptions configures ReadXLSXTable.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSXTable reads one sheet of a workbook. The first row is the header;
// rows whose cells are all empty are dropped (Excel exports usually trail
// blank rows).
func ReadXLSXTable(path string, opts XLSXOptions) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var t Table
	for _, row := range sheet.Rows {
		cells := rowToStrings(row)
		if t.Header == nil {
			t.Header = cells
			continue
		}
		if allEmpty(cells) {
			continue
		}
		t.Rows = append(t.Rows, cells)
	}

	if t.Header == nil {
		return nil, eris.Errorf("xlsx: sheet in %s is empty", path)
	}
	return &t, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
