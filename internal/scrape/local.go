package scrape

import (
	"context"
	"html"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pe-intel/internal/model"
)

// maxPageBytes caps how much of a page is read. Team and portfolio pages
// fit comfortably; anything bigger is binary or a mistake.
const maxPageBytes = 512 * 1024

// LocalScraper fetches HTML over plain net/http and reduces it to
// plaintext. It costs nothing per request, so the chain always tries it
// first and leaves the render service for pages it reports as blocked.
type LocalScraper struct {
	client    *http.Client
	userAgent string
}

// NewLocalScraper builds a LocalScraper. An empty userAgent falls back to
// the crawler's own identity string.
func NewLocalScraper(userAgent string) *LocalScraper {
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; pe-intel/1.0)"
	}
	return &LocalScraper{
		userAgent: userAgent,
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

func (l *LocalScraper) Name() string           { return "local_http" }
func (l *LocalScraper) Supports(_ string) bool { return true }

// Scrape fetches one URL and returns the page as plaintext plus raw HTML.
// A detected block is an error so the chain falls through to rendering.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", blockType)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}
	if len(body) < 100 {
		return nil, eris.New("local_http: empty page")
	}

	return &Result{
		Page: model.CrawledPage{
			URL:        targetURL,
			Title:      extractTitle(body),
			Text:       stripHTML(string(body)),
			HTML:       string(body),
			StatusCode: resp.StatusCode,
		},
		Source: "local_http",
	}, nil
}

var (
	titleRe = regexp.MustCompile(`(?i)<title[^>]*>(.*?)</title>`)
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	spaceRe = regexp.MustCompile(`[ \t]+`)
	blankRe = regexp.MustCompile(`\n{3,}`)

	// Whole blocks that never hold bios or portfolio entries.
	dropBlockRes = compileDropTags("script", "style", "nav", "footer")
)

func compileDropTags(tags ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(tags))
	for i, tag := range tags {
		res[i] = regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
	}
	return res
}

func extractTitle(body []byte) string {
	m := titleRe.FindSubmatch(body)
	if len(m) > 1 {
		return strings.TrimSpace(string(m[1]))
	}
	return ""
}

// stripHTML drops chrome blocks, removes tags, decodes entities, and
// collapses whitespace into plaintext fit for the LLM extractors.
func stripHTML(doc string) string {
	for _, re := range dropBlockRes {
		doc = re.ReplaceAllString(doc, "")
	}
	doc = tagRe.ReplaceAllString(doc, " ")
	doc = html.UnescapeString(doc)
	// UnescapeString leaves &nbsp; as U+00A0, which the collapse below
	// would miss.
	doc = strings.ReplaceAll(doc, " ", " ")
	doc = spaceRe.ReplaceAllString(doc, " ")
	doc = blankRe.ReplaceAllString(doc, "\n\n")
	return strings.TrimSpace(doc)
}
