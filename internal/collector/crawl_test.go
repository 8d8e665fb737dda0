package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/scrape"
	"github.com/sells-group/pe-intel/internal/store"
)

func localChain() *scrape.Chain {
	return scrape.NewChain(scrape.NewPathMatcher(nil), scrape.NewLocalScraper(""))
}

func TestSiteCrawl_Page_FetchesOnce(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>About</title></head><body>` +
			`<p>Acme Capital has partnered with founder-led businesses since 2004.</p></body></html>`))
	}))
	defer srv.Close()

	sc := newSiteCrawl(context.Background(), localChain(), Deps{}, srv.URL)

	p1 := sc.page(context.Background(), srv.URL+"/about")
	require.NotNil(t, p1)
	assert.Equal(t, "About", p1.Title)
	assert.Contains(t, p1.Text, "founder-led businesses")
	assert.Equal(t, "local_http", p1.FetchedVia)

	p2 := sc.page(context.Background(), srv.URL+"/about")
	require.NotNil(t, p2)

	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
	assert.Equal(t, int64(1), sc.requests)
	assert.Equal(t, 1, sc.fetched)
}

func TestSiteCrawl_Page_SeedsFromStore(t *testing.T) {
	st := newFakeStore()
	st.crawls["https://acme.com"] = &store.CrawlEntry{
		SiteURL: "https://acme.com",
		Pages: []model.CrawledPage{
			{URL: "https://acme.com/About/", Text: "cached about page"},
		},
	}

	sc := newSiteCrawl(context.Background(), localChain(), Deps{Store: st}, "https://acme.com")

	// Lookup is case and trailing-slash insensitive.
	p := sc.page(context.Background(), "https://acme.com/about")
	require.NotNil(t, p)
	assert.Equal(t, "cached about page", p.Text)
	assert.Equal(t, int64(0), sc.requests)
	assert.Equal(t, 0, sc.fetched)
}

func TestSiteCrawl_Page_UnreachableReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer srv.Close()

	sc := newSiteCrawl(context.Background(), localChain(), Deps{}, srv.URL)

	assert.Nil(t, sc.page(context.Background(), srv.URL+"/missing"))
	// Failed attempts still count toward telemetry.
	assert.Equal(t, int64(1), sc.requests)
	assert.Equal(t, 0, sc.fetched)
}

func TestSiteCrawl_Finish_PersistsNewPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body>` +
			`<p>A very plain homepage with just enough body text to clear the scraper minimum.</p></body></html>`))
	}))
	defer srv.Close()

	st := newFakeStore()
	sc := newSiteCrawl(context.Background(), localChain(), Deps{Store: st}, srv.URL)
	require.NotNil(t, sc.page(context.Background(), srv.URL))

	result := model.NewResult(firmEntity("Acme Capital"), model.SourceFirmWebsite)
	sc.finish(result)

	assert.Equal(t, 1, st.crawlSets)
	require.NotNil(t, st.crawls[srv.URL])
	assert.Len(t, st.crawls[srv.URL].Pages, 1)
	assert.Equal(t, int64(1), result.RequestsMade)
	assert.Greater(t, result.BytesDownloaded, int64(0))
}

func TestSiteCrawl_Finish_SkipsWhenNothingFetched(t *testing.T) {
	st := newFakeStore()
	st.crawls["https://acme.com"] = &store.CrawlEntry{
		SiteURL: "https://acme.com",
		Pages:   []model.CrawledPage{{URL: "https://acme.com", Text: "cached"}},
	}

	sc := newSiteCrawl(context.Background(), localChain(), Deps{Store: st}, "https://acme.com")
	require.NotNil(t, sc.page(context.Background(), "https://acme.com"))

	result := model.NewResult(firmEntity("Acme Capital"), model.SourceFirmWebsite)
	sc.finish(result)

	assert.Equal(t, 0, st.crawlSets)
	assert.Equal(t, int64(0), result.RequestsMade)
}

func TestSiteCrawl_Finish_SkipsWhenCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body>` +
			`<p>Some body content long enough for the local scraper to accept the page.</p></body></html>`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	st := newFakeStore()
	sc := newSiteCrawl(ctx, localChain(), Deps{Store: st}, srv.URL)
	require.NotNil(t, sc.page(ctx, srv.URL))

	cancel()

	result := model.NewResult(firmEntity("Acme Capital"), model.SourceFirmWebsite)
	sc.finish(result)

	// Telemetry still lands, the cache write does not.
	assert.Equal(t, 0, st.crawlSets)
	assert.Equal(t, int64(1), result.RequestsMade)
}

func TestPageKey(t *testing.T) {
	assert.Equal(t, "https://acme.com/team", pageKey("https://acme.com/Team/"))
	assert.Equal(t, pageKey("https://acme.com/team"), pageKey("HTTPS://ACME.COM/TEAM/"))
}
