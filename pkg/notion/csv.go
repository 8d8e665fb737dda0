package notion

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// ImportCSV loads a CSV of firms into a Notion database, one page per row.
// Rows are deduplicated on the URL or Domain column when one exists; rows
// with that column blank or already seen count as skipped. A file whose
// header carries both Domain and Firm Type is treated as a prospect list and
// gets the prospect board's column mapping; anything else imports as-is.
func ImportCSV(ctx context.Context, c Client, dbID string, csvPath string) (created, skipped int, err error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "notion: open csv %s", csvPath)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if errors.Is(err, io.EOF) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, eris.Wrap(err, "notion: read csv header")
	}

	prospect := isProspectCSV(headers)
	keyIdx := dedupeColumn(headers)
	seen := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return created, skipped, eris.Wrap(err, "notion: import csv cancelled")
		}

		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return created, skipped, nil
		}
		if err != nil {
			return created, skipped, eris.Wrap(err, "notion: read csv row")
		}

		if keyIdx >= 0 {
			key := ""
			if keyIdx < len(row) {
				key = strings.TrimSpace(row[keyIdx])
			}
			if key == "" {
				skipped++
				continue
			}
			if _, dup := seen[key]; dup {
				skipped++
				continue
			}
			seen[key] = struct{}{}
		}

		mapped := mapRow(headers, row)
		var props notionapi.Properties
		if prospect {
			props = buildProspectProperties(mapped)
		} else {
			props = buildPageProperties(mapped)
		}

		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: props,
		}
		if _, err := c.CreatePage(ctx, req); err != nil {
			return created, skipped, eris.Wrap(err, "notion: create page from csv row")
		}
		created++
	}
}

// mapRow pairs each header with its value. Short rows pad with empty
// strings.
func mapRow(headers, row []string) map[string]string {
	out := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(row) {
			out[h] = row[i]
			continue
		}
		out[h] = ""
	}
	return out
}

// isProspectCSV reports whether the header marks a firm prospect list, which
// carries both a Domain and a Firm Type column.
func isProspectCSV(headers []string) bool {
	var domain, firmType bool
	for _, h := range headers {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "domain":
			domain = true
		case "firm type":
			firmType = true
		}
	}
	return domain && firmType
}

// dedupeColumn returns the index of the URL or Domain column, or -1 when the
// file has neither and every row imports.
func dedupeColumn(headers []string) int {
	for i, h := range headers {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "url", "domain":
			return i
		}
	}
	return -1
}

// findFold returns the first key of row matching name case-insensitively.
func findFold(row map[string]string, name string) (string, string, bool) {
	for k, v := range row {
		if strings.EqualFold(k, name) {
			return k, v, true
		}
	}
	return "", "", false
}

func titleProp(text string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Type: notionapi.PropertyTypeTitle,
		Title: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: text}},
		},
	}
}

func richTextProp(text string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type: notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: text}},
		},
	}
}

// buildPageProperties maps a generic row straight onto columns: Name becomes
// the title, URL a url property, and everything else rich text.
func buildPageProperties(row map[string]string) notionapi.Properties {
	props := make(notionapi.Properties)
	for k, v := range row {
		switch {
		case strings.EqualFold(k, "Name"):
			props[k] = titleProp(v)
		case strings.EqualFold(k, "URL"):
			props[k] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: v}
		default:
			props[k] = richTextProp(v)
		}
	}
	return props
}

// normalizeURL gives a bare domain an https:// scheme.
func normalizeURL(domain string) string {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return ""
	}
	if !strings.Contains(domain, "://") {
		return "https://" + domain
	}
	return domain
}

// buildProspectProperties maps a prospect row onto the prospect board's
// columns: Name is the title, Domain lands in URL with a scheme, Firm Type
// becomes a select, City and State fold into one Location cell, and every
// card starts with Status Queued. Unrecognized non-empty columns pass
// through as rich text.
func buildProspectProperties(row map[string]string) notionapi.Properties {
	props := make(notionapi.Properties)
	handled := make(map[string]bool)

	if k, v, ok := findFold(row, "Name"); ok {
		props["Name"] = titleProp(strings.Trim(strings.TrimSpace(v), `"`))
		handled[k] = true
	}
	if k, v, ok := findFold(row, "Domain"); ok {
		props["URL"] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: normalizeURL(v)}
		handled[k] = true
	}
	if k, v, ok := findFold(row, "Firm Type"); ok {
		if ft := strings.TrimSpace(v); ft != "" {
			props["Firm Type"] = notionapi.SelectProperty{
				Type:   notionapi.PropertyTypeSelect,
				Select: notionapi.Option{Name: ft},
			}
		}
		handled[k] = true
	}

	var city, state string
	if k, v, ok := findFold(row, "City"); ok {
		city = strings.TrimSpace(v)
		handled[k] = true
	}
	if k, v, ok := findFold(row, "State"); ok {
		state = strings.TrimSpace(v)
		handled[k] = true
	}
	if loc := joinLocation(city, state); loc != "" {
		props["Location"] = richTextProp(loc)
	}

	props["Status"] = notionapi.StatusProperty{
		Status: notionapi.Status{Name: "Queued"},
	}

	for k, v := range row {
		if handled[k] || v == "" {
			continue
		}
		props[k] = richTextProp(v)
	}
	return props
}

func joinLocation(city, state string) string {
	switch {
	case city != "" && state != "":
		return city + ", " + state
	case city != "":
		return city
	default:
		return state
	}
}
