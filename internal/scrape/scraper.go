package scrape

import (
	"context"

	"github.com/sells-group/pe-intel/internal/model"
)

// Result is one fetched page. Source names the scraper that produced it
// ("local_http" or "render") and is persisted with the page, so extraction
// quality issues can be traced back to the fetch path.
type Result struct {
	Page   model.CrawledPage
	Source string
}

// Scraper fetches a single URL. Scrape returns an error for anything the
// next scraper in a chain might do better with, including bot walls and
// empty bodies, not just transport failures. Supports is the cheap
// pre-check; a chain never calls Scrape on a URL the scraper rejects.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
