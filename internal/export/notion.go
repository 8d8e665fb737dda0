package export

import (
	"context"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/db"
	"github.com/sells-group/pe-intel/pkg/notion"
)

// DealPublisher appends recently collected deals to a Notion deal board.
// The board's "Source" URL column doubles as the dedupe key, so re-running a
// publish never creates duplicate cards.
type DealPublisher struct {
	pool db.Pool
	nc   notion.Client
	dbID string
	log  *zap.Logger
}

func NewDealPublisher(pool db.Pool, nc notion.Client, dbID string) *DealPublisher {
	return &DealPublisher{
		pool: pool,
		nc:   nc,
		dbID: dbID,
		log:  zap.L().With(zap.String("component", "export.notion")),
	}
}

// PublishStats summarizes one publish.
type PublishStats struct {
	Deals   int `json:"deals"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

type dealRow struct {
	Firm            string
	DealType        string
	Target          string
	Status          string
	Seller          string
	SourceURL       string
	EnterpriseValue int64
	Announced       *time.Time
}

// PublishSince pushes every deal recorded after since that is not already on
// the board.
func (d *DealPublisher) PublishSince(ctx context.Context, since time.Time) (*PublishStats, error) {
	deals, err := d.loadDeals(ctx, since)
	if err != nil {
		return nil, err
	}

	stats := &PublishStats{Deals: len(deals)}
	if len(deals) == 0 {
		return stats, nil
	}

	existing, err := d.existingSourceURLs(ctx)
	if err != nil {
		return nil, err
	}

	for _, deal := range deals {
		if err := ctx.Err(); err != nil {
			return stats, eris.Wrap(err, "export: publish cancelled")
		}
		if _, seen := existing[deal.SourceURL]; seen {
			stats.Skipped++
			continue
		}

		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(d.dbID),
			},
			Properties: dealProperties(deal),
		}
		if _, err := d.nc.CreatePage(ctx, req); err != nil {
			return stats, eris.Wrapf(err, "export: publish deal %s", deal.SourceURL)
		}
		stats.Created++
	}

	d.log.Info("notion publish complete",
		zap.Int("deals", stats.Deals),
		zap.Int("created", stats.Created),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

func (d *DealPublisher) loadDeals(ctx context.Context, since time.Time) ([]dealRow, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT COALESCE(f.name, ''), COALESCE(dl.deal_type, ''),
			COALESCE(dl.target_company, ''), COALESCE(dl.status, ''),
			COALESCE(dl.seller, ''), dl.source_url,
			COALESCE(dl.enterprise_value_usd, 0), dl.announced_date
		FROM pe_deals dl
		LEFT JOIN pe_firms f ON f.id = dl.firm_id
		WHERE dl.created_at >= $1
		ORDER BY dl.announced_date DESC NULLS LAST, dl.id`, since)
	if err != nil {
		return nil, eris.Wrap(err, "export: query deals for publish")
	}
	defer rows.Close()

	var deals []dealRow
	for rows.Next() {
		var dr dealRow
		if err := rows.Scan(&dr.Firm, &dr.DealType, &dr.Target, &dr.Status,
			&dr.Seller, &dr.SourceURL, &dr.EnterpriseValue, &dr.Announced); err != nil {
			return nil, eris.Wrap(err, "export: scan deal for publish")
		}
		deals = append(deals, dr)
	}
	return deals, eris.Wrap(rows.Err(), "export: read deals for publish")
}

// existingSourceURLs loads the board once and collects its Source URLs.
func (d *DealPublisher) existingSourceURLs(ctx context.Context) (map[string]struct{}, error) {
	pages, err := notion.QueryAll(ctx, d.nc, d.dbID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "export: query deal board")
	}

	urls := make(map[string]struct{}, len(pages))
	for _, p := range pages {
		prop, ok := p.Properties["Source"]
		if !ok {
			continue
		}
		if up, ok := prop.(*notionapi.URLProperty); ok && up.URL != "" {
			urls[up.URL] = struct{}{}
		}
	}
	return urls, nil
}

// dealProperties maps one deal onto board columns. The card title is the
// target company, falling back to the firm for deals with no named target.
func dealProperties(dl dealRow) notionapi.Properties {
	title := dl.Target
	if title == "" {
		title = dl.Firm
	}

	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Type: notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: title}},
			},
		},
		"Source": notionapi.URLProperty{
			Type: notionapi.PropertyTypeURL,
			URL:  dl.SourceURL,
		},
	}

	if dl.Firm != "" {
		props["Firm"] = notionapi.RichTextProperty{
			Type: notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: dl.Firm}},
			},
		}
	}
	if dl.DealType != "" {
		props["Deal Type"] = notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: dl.DealType},
		}
	}
	if dl.Status != "" {
		props["Status"] = notionapi.StatusProperty{
			Status: notionapi.Status{Name: dl.Status},
		}
	}
	if dl.Seller != "" {
		props["Seller"] = notionapi.RichTextProperty{
			Type: notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: dl.Seller}},
			},
		}
	}
	if dl.EnterpriseValue > 0 {
		props["Enterprise Value"] = notionapi.NumberProperty{
			Number: float64(dl.EnterpriseValue),
		}
	}
	if dl.Announced != nil && !dl.Announced.IsZero() {
		date := notionapi.Date(*dl.Announced)
		props["Announced"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		}
	}
	return props
}
