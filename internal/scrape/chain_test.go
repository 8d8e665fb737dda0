package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-intel/internal/model"
)

type fakeScraper struct {
	name     string
	supports bool
	result   *Result
	err      error
	calls    int
}

func (f *fakeScraper) Name() string           { return f.name }
func (f *fakeScraper) Supports(_ string) bool { return f.supports }
func (f *fakeScraper) Scrape(_ context.Context, _ string) (*Result, error) {
	f.calls++
	return f.result, f.err
}

func teamPageResult(source string) *Result {
	return &Result{
		Page: model.CrawledPage{
			URL:   "https://apexcap.com/team",
			Title: "Our Team",
			Text:  "Laura Chen, Managing Partner",
		},
		Source: source,
	}
}

func TestChain_Scrape_LocalWins(t *testing.T) {
	local := &fakeScraper{name: "local_http", supports: true, result: teamPageResult("local_http")}
	render := &fakeScraper{name: "render", supports: true}

	chain := NewChain(NewPathMatcher(nil), local, render)
	result, err := chain.Scrape(context.Background(), "https://apexcap.com/team")

	require.NoError(t, err)
	assert.Equal(t, "local_http", result.Source)
	assert.Equal(t, "https://apexcap.com/team", result.Page.URL)
	// The render service is never paid for when the plain fetch works.
	assert.Equal(t, 0, render.calls)
}

func TestChain_Scrape_FallsThroughToRender(t *testing.T) {
	local := &fakeScraper{name: "local_http", supports: true, err: errors.New("local_http: blocked (cloudflare)")}
	render := &fakeScraper{name: "render", supports: true, result: teamPageResult("render")}

	chain := NewChain(NewPathMatcher(nil), local, render)
	result, err := chain.Scrape(context.Background(), "https://apexcap.com/team")

	require.NoError(t, err)
	assert.Equal(t, "render", result.Source)
	assert.Equal(t, 1, local.calls)
}

func TestChain_Scrape_AllFail(t *testing.T) {
	local := &fakeScraper{name: "local_http", supports: true, err: errors.New("blocked (cloudflare)")}
	render := &fakeScraper{name: "render", supports: true, err: errors.New("render: circuit open")}

	chain := NewChain(NewPathMatcher(nil), local, render)
	result, err := chain.Scrape(context.Background(), "https://apexcap.com/team")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "all scrapers failed")
	assert.Contains(t, err.Error(), "circuit open")
}

func TestChain_Scrape_ExcludedPath(t *testing.T) {
	local := &fakeScraper{name: "local_http", supports: true, result: teamPageResult("local_http")}

	chain := NewChain(NewPathMatcher(nil), local)
	result, err := chain.Scrape(context.Background(), "https://apexcap.com/blog/2024/outlook")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "excluded")
	assert.Equal(t, 0, local.calls)
}

func TestChain_Scrape_SkipsUnsupported(t *testing.T) {
	pdfOnly := &fakeScraper{name: "pdf", supports: false}
	local := &fakeScraper{name: "local_http", supports: true, result: teamPageResult("local_http")}

	chain := NewChain(NewPathMatcher(nil), pdfOnly, local)
	result, err := chain.Scrape(context.Background(), "https://apexcap.com/team")

	require.NoError(t, err)
	assert.Equal(t, "local_http", result.Source)
	assert.Equal(t, 0, pdfOnly.calls)
}

func TestChain_Scrape_NoSuitableScraper(t *testing.T) {
	pdfOnly := &fakeScraper{name: "pdf", supports: false}

	chain := NewChain(NewPathMatcher(nil), pdfOnly)
	result, err := chain.Scrape(context.Background(), "https://apexcap.com/team")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "no suitable scraper")
}
