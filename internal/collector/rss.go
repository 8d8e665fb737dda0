package collector

import (
	"context"
	"strings"
	"time"

	"github.com/sells-group/pe-intel/internal/fetcher"
)

// rssItem is one RSS 2.0 entry. The news feeds stay close to the base
// schema; source carries the publisher name on Google and Bing feeds.
type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Source      string `xml:"source"`
}

// rssDateFormats covers the pubDate variants the feeds emit.
var rssDateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

// parseRSSDate parses a pubDate, returning the zero time on failure.
func parseRSSDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range rssDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// fetchFeed downloads and decodes one RSS feed. In incremental mode stored
// ETag/Last-Modified validators ride along and a 304 answer reports
// notModified with no items; fresh validators are written back after a full
// read.
func fetchFeed(ctx context.Context, deps Deps, m *fetcher.Meter, feedURL string) (items []rssItem, notModified bool, err error) {
	var cond fetcher.Conditional
	useCache := deps.Incremental && deps.Store != nil
	if useCache {
		if state, err := deps.Store.GetFeedState(ctx, feedURL); err == nil && state != nil {
			cond.ETag = state.ETag
			cond.LastModified = state.LastModified
		}
	}

	res, err := deps.Fetcher.FetchConditional(ctx, feedURL, cond, fetcher.WithMeter(m))
	if err != nil {
		return nil, false, err
	}
	if res.NotModified {
		return nil, true, nil
	}
	defer func() { _ = res.Body.Close() }()

	ch, errCh := fetcher.StreamXML[rssItem](ctx, res.Body, "item")
	for it := range ch {
		items = append(items, it)
	}
	if err := <-errCh; err != nil {
		return nil, false, err
	}

	if useCache && (res.ETag != "" || res.LastModified != "") {
		_ = deps.Store.SetFeedState(ctx, feedURL, res.ETag, res.LastModified)
	}
	return items, false, nil
}
