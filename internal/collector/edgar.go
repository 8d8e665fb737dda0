package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pe-intel/internal/fetcher"
)

// EDGAR endpoints shared by the SEC collectors.
const (
	submissionsURLFmt = "https://data.sec.gov/submissions/CIK%s.json"
	archivesURLFmt    = "https://www.sec.gov/Archives/edgar/data/%s/%s"
	eftsSearchURL     = "https://efts.sec.gov/LATEST/search-index"
)

// padCIK left-pads a CIK to the 10 digits the submissions endpoint expects.
func padCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

// unpadCIK strips leading zeros for Archives paths.
func unpadCIK(cik string) string {
	trimmed := strings.TrimLeft(strings.TrimSpace(cik), "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// undashAccession removes dashes from an accession number for Archives paths.
func undashAccession(accession string) string {
	return strings.ReplaceAll(accession, "-", "")
}

// submissionsURL builds the data.sec.gov submissions URL for a CIK.
func submissionsURL(cik string) string {
	return fmt.Sprintf(submissionsURLFmt, padCIK(cik))
}

// archivesURL builds a www.sec.gov Archives URL for a file within a filing
// directory. Pass "" for file to get the directory root.
func archivesURL(cik, accession, file string) string {
	base := fmt.Sprintf(archivesURLFmt, unpadCIK(cik), undashAccession(accession))
	if file == "" {
		return base
	}
	return base + "/" + file
}

// filingIndexURL builds the JSON directory listing URL for a filing.
func filingIndexURL(cik, accession string) string {
	return archivesURL(cik, accession, "index.json")
}

// eftsURL builds an EDGAR full-text search URL for a form type over a date
// window. q defaults to "*" when empty.
func eftsURL(q, forms string, start, end time.Time, from, size int) string {
	if q == "" {
		q = "*"
	}
	return fmt.Sprintf(
		"%s?q=%s&dateRange=custom&startdt=%s&enddt=%s&forms=%s&from=%d&size=%d",
		eftsSearchURL, q,
		start.Format("2006-01-02"), end.Format("2006-01-02"),
		forms, from, size,
	)
}

// submissionJSON is the per-entity submissions file from data.sec.gov.
// Recent filings arrive as parallel arrays keyed by index.
type submissionJSON struct {
	CIK            json.Number `json:"cik"`
	EntityType     string      `json:"entityType"`
	SIC            string      `json:"sic"`
	SICDescription string      `json:"sicDescription"`
	Name           string      `json:"name"`
	StateOfInc     string      `json:"stateOfIncorporation"`
	Phone          string      `json:"phone"`
	Website        string      `json:"website"`
	Tickers        []string    `json:"tickers"`
	Exchanges      []string    `json:"exchanges"`
	Addresses      struct {
		Business edgarAddress `json:"business"`
		Mailing  edgarAddress `json:"mailing"`
	} `json:"addresses"`
	Filings struct {
		Recent filingList `json:"recent"`
	} `json:"filings"`
}

type edgarAddress struct {
	Street1        string `json:"street1"`
	Street2        string `json:"street2"`
	City           string `json:"city"`
	StateOrCountry string `json:"stateOrCountry"`
	ZipCode        string `json:"zipCode"`
}

// String renders the address as "street, city, ST zip". Empty parts are
// dropped.
func (a edgarAddress) String() string {
	var parts []string
	if a.Street1 != "" {
		parts = append(parts, a.Street1)
	}
	if a.City != "" {
		parts = append(parts, a.City)
	}
	tail := strings.TrimSpace(a.StateOrCountry + " " + a.ZipCode)
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ", ")
}

type filingList struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	Form            []string `json:"form"`
	PrimaryDoc      []string `json:"primaryDocument"`
	PrimaryDocDesc  []string `json:"primaryDocDescription"`
	Items           []string `json:"items"`
	Size            []int    `json:"size"`
}

// filingRef is one filing assembled from the parallel arrays.
type filingRef struct {
	AccessionNumber string
	FilingDate      time.Time
	ReportDate      time.Time
	Form            string
	PrimaryDoc      string
	PrimaryDocDesc  string
	Items           string
	Size            int
}

// recentFilings walks the parallel arrays and returns filings whose form is
// in forms (nil matches all), newest first, capped at limit (0 = no cap).
func recentFilings(sub *submissionJSON, forms map[string]bool, limit int) []filingRef {
	recent := sub.Filings.Recent
	var out []filingRef
	for i := range recent.AccessionNumber {
		form := safeIndex(recent.Form, i)
		if forms != nil && !forms[form] {
			continue
		}
		out = append(out, filingRef{
			AccessionNumber: recent.AccessionNumber[i],
			FilingDate:      parseDate(safeIndex(recent.FilingDate, i)),
			ReportDate:      parseDate(safeIndex(recent.ReportDate, i)),
			Form:            form,
			PrimaryDoc:      safeIndex(recent.PrimaryDoc, i),
			PrimaryDocDesc:  safeIndex(recent.PrimaryDocDesc, i),
			Items:           safeIndex(recent.Items, i),
			Size:            safeIntIndex(recent.Size, i),
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// fetchSubmissions downloads and decodes the submissions JSON for a CIK.
func fetchSubmissions(ctx context.Context, f fetcher.Fetcher, m *fetcher.Meter, cik string) (*submissionJSON, error) {
	body, err := f.Download(ctx, submissionsURL(cik), fetcher.WithMeter(m))
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	sub, err := fetcher.DecodeJSONObject[submissionJSON](body)
	if err != nil {
		return nil, eris.Wrap(err, "edgar: decode submissions")
	}
	return sub, nil
}

// filingIndex is the JSON directory listing of one filing's documents.
type filingIndex struct {
	Directory struct {
		Item []indexItem `json:"item"`
	} `json:"directory"`
}

type indexItem struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size string `json:"size"`
}

// fetchFilingIndex downloads and decodes a filing's index.json.
func fetchFilingIndex(ctx context.Context, f fetcher.Fetcher, m *fetcher.Meter, cik, accession string) (*filingIndex, error) {
	body, err := f.Download(ctx, filingIndexURL(cik, accession), fetcher.WithMeter(m))
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	idx, err := fetcher.DecodeJSONObject[filingIndex](body)
	if err != nil {
		return nil, eris.Wrap(err, "edgar: decode filing index")
	}
	return idx, nil
}

// eftsSearchResult is the response from the EDGAR full-text search API.
type eftsSearchResult struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string `json:"_id"`
			Source struct {
				CIKs            []string `json:"ciks"`
				DisplayNames    []string `json:"display_names"`
				FormType        string   `json:"form_type"`
				FileDate        string   `json:"file_date"`
				AccessionNumber string   `json:"accession_no"`
				PeriodOfReport  string   `json:"period_of_report"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// searchEFTS runs a full-text search query and decodes the result.
func searchEFTS(ctx context.Context, f fetcher.Fetcher, m *fetcher.Meter, url string) (*eftsSearchResult, error) {
	body, err := f.Download(ctx, url, fetcher.WithMeter(m))
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	result, err := fetcher.DecodeJSONObject[eftsSearchResult](body)
	if err != nil {
		return nil, eris.Wrap(err, "edgar: decode search results")
	}
	return result, nil
}

// safeIndex returns the string at index i, or empty string if out of bounds.
func safeIndex(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

// safeIntIndex returns the int at index i, or 0 if out of bounds.
func safeIntIndex(s []int, i int) int {
	if i < len(s) {
		return s[i]
	}
	return 0
}

// parseDate parses an EDGAR YYYY-MM-DD date, returning the zero time on
// failure.
func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
