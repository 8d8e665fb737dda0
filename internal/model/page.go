package model

// CrawledPage is one fetched web page. Text is the plaintext reduction used
// for LLM extraction; HTML is kept when structural extraction may rerun
// against the cache. FetchedVia records which scraper produced the page, so
// extraction issues can be traced to the fetch path.
type CrawledPage struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	HTML       string `json:"html,omitempty"`
	StatusCode int    `json:"status_code"`
	FetchedVia string `json:"fetched_via,omitempty"`
}
