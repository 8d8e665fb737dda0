package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalScraper_TeamPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`<html><head><title>Apex Capital Partners | Team</title></head>
<body><nav>Home About Team</nav><h1>Our Team</h1>
<p>Laura Chen is a Managing Partner focused on healthcare services.</p>
<footer>© 2025 Apex Capital Partners</footer></body></html>`))
	}))
	defer srv.Close()

	s := NewLocalScraper("")
	result, err := s.Scrape(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "local_http", result.Source)
	assert.Equal(t, "Apex Capital Partners | Team", result.Page.Title)
	assert.Equal(t, 200, result.Page.StatusCode)
	assert.Equal(t, srv.URL, result.Page.URL)
	assert.Contains(t, result.Page.Text, "Laura Chen")
	assert.Contains(t, result.Page.Text, "Managing Partner")

	// Chrome is stripped from the text but survives in the raw HTML,
	// which the bio extractor uses for profile links.
	assert.NotContains(t, result.Page.Text, "Home About Team")
	assert.NotContains(t, result.Page.Text, "© 2025")
	assert.Contains(t, result.Page.HTML, "<nav>")
}

func TestLocalScraper_UserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`<html><body><p>Blue Harbor Advisors invests in founder-led industrial companies across the Midwest.</p></body></html>`))
	}))
	defer srv.Close()

	s := NewLocalScraper("pe-intel-crawler/2.1 (+https://sells-group.com/bot)")
	_, err := s.Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "pe-intel-crawler/2.1 (+https://sells-group.com/bot)", got)

	s = NewLocalScraper("")
	_, err = s.Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, got, "pe-intel/1.0")
}

func TestLocalScraper_CloudflareBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cf-Ray", "8f2a1b4c5d6e7f80-ORD")
		w.WriteHeader(403)
		_, _ = w.Write([]byte(`<html><body>Access denied</body></html>`))
	}))
	defer srv.Close()

	s := NewLocalScraper("")
	_, err := s.Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked (cloudflare)")
}

func TestLocalScraper_CaptchaBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`<html><body>Complete the reCAPTCHA to view our portfolio</body></html>`))
	}))
	defer srv.Close()

	s := NewLocalScraper("")
	_, err := s.Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked (captcha)")
}

func TestLocalScraper_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`<html></html>`))
	}))
	defer srv.Close()

	s := NewLocalScraper("")
	_, err := s.Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty page")
}

func TestLocalScraper_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		_, _ = w.Write([]byte(`<html><body>The page you requested could not be found on this server.</body></html>`))
	}))
	defer srv.Close()

	s := NewLocalScraper("")
	_, err := s.Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestLocalScraper_NameAndSupports(t *testing.T) {
	s := NewLocalScraper("")
	assert.Equal(t, "local_http", s.Name())
	assert.True(t, s.Supports("https://apexcap.com/team"))
	assert.True(t, s.Supports("http://localhost:8080"))
}

func TestStripHTML(t *testing.T) {
	input := `<html><head><style>body{color:#1a1a2e}</style></head>
<body><script>window.analytics.track('pageview')</script>
<nav><a href="/">Home</a></nav>
<h1>Portfolio</h1><p>Meridian Health &amp; Wellness</p>
<footer>All rights reserved</footer></body></html>`

	result := stripHTML(input)

	assert.Contains(t, result, "Portfolio")
	assert.Contains(t, result, "Meridian Health & Wellness")
	assert.NotContains(t, result, "analytics")
	assert.NotContains(t, result, "color:#1a1a2e")
	assert.NotContains(t, result, "Home")
	assert.NotContains(t, result, "All rights reserved")
	assert.NotContains(t, result, "<h1>")
}

func TestStripHTML_Entities(t *testing.T) {
	input := `Smith &amp; Chen &quot;Fund IV&quot; &#39;24 vintage &nbsp; &lt;$500M&gt; &hellip;`
	result := stripHTML(input)

	assert.Contains(t, result, `Smith & Chen "Fund IV"`)
	assert.Contains(t, result, `'24 vintage`)
	assert.Contains(t, result, `<$500M>`)
	// Named entities beyond the common few decode too, and &nbsp; does
	// not survive as U+00A0.
	assert.Contains(t, result, "…")
	assert.NotContains(t, result, " ")
}

func TestStripHTML_WhitespaceCollapse(t *testing.T) {
	input := "Fund IV closed at     $850M\n\n\n\n\nfounded 2012"
	result := stripHTML(input)

	assert.NotContains(t, result, "     ")
	assert.NotContains(t, result, "\n\n\n")
	assert.Contains(t, result, "Fund IV closed at $850M")
}

func TestExtractTitle(t *testing.T) {
	body := []byte(`<html><head><title>  Blue Harbor Advisors  </title></head><body></body></html>`)
	assert.Equal(t, "Blue Harbor Advisors", extractTitle(body))

	assert.Equal(t, "", extractTitle([]byte(`<html><body>no title here</body></html>`)))
}
