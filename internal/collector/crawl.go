package collector

import (
	"context"
	"strings"
	"time"

	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/scrape"
)

// siteCrawl fetches pages from one site through the scrape chain, reusing
// the store's crawl cache across collectors and runs. Newly fetched pages
// are written back on finish.
type siteCrawl struct {
	ctx   context.Context
	chain *scrape.Chain
	deps  Deps
	site  string

	pages    map[string]*model.CrawledPage
	fetched  int
	requests int64
	bytes    int64
}

// newSiteCrawl loads any cached crawl for the site.
func newSiteCrawl(ctx context.Context, chain *scrape.Chain, deps Deps, site string) *siteCrawl {
	sc := &siteCrawl{
		ctx:   ctx,
		chain: chain,
		deps:  deps,
		site:  site,
		pages: make(map[string]*model.CrawledPage),
	}
	if deps.Store != nil {
		if entry, err := deps.Store.GetCachedCrawl(ctx, site); err == nil && entry != nil {
			for i := range entry.Pages {
				p := entry.Pages[i]
				sc.pages[pageKey(p.URL)] = &p
			}
		}
	}
	return sc
}

// page returns the page at url, from cache or a live fetch. Returns nil
// when the page is unreachable.
func (sc *siteCrawl) page(ctx context.Context, url string) *model.CrawledPage {
	key := pageKey(url)
	if p, ok := sc.pages[key]; ok {
		return p
	}

	// Pace live fetches within the task.
	if sc.requests > 0 && sc.deps.RateLimitDelay > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sc.deps.RateLimitDelay):
		}
	}

	sc.requests++
	res, err := sc.chain.Scrape(ctx, url)
	if err != nil || res == nil {
		return nil
	}
	sc.bytes += int64(len(res.Page.HTML))

	page := res.Page
	page.FetchedVia = res.Source
	sc.pages[key] = &page
	sc.fetched++
	return &page
}

// cachedPages returns every page known for the site.
func (sc *siteCrawl) cachedPages() []model.CrawledPage {
	out := make([]model.CrawledPage, 0, len(sc.pages))
	for _, p := range sc.pages {
		out = append(out, *p)
	}
	return out
}

// finish stamps fetch telemetry into the result and persists the crawl
// when anything new was fetched.
func (sc *siteCrawl) finish(result *model.Result) {
	result.RequestsMade += sc.requests
	result.BytesDownloaded += sc.bytes

	if sc.deps.Store != nil && sc.fetched > 0 && sc.ctx.Err() == nil {
		_ = sc.deps.Store.SetCachedCrawl(sc.ctx, sc.site, sc.cachedPages(), crawlCacheTTL)
	}
}

// pageKey canonicalizes a URL for cache lookup.
func pageKey(url string) string {
	return strings.TrimRight(strings.ToLower(url), "/")
}
