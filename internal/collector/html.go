package collector

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pe-intel/internal/model"
)

// nameLineRe matches a line that looks like a person's name: two or three
// capitalized words.
var nameLineRe = regexp.MustCompile(`^[A-Z][a-z]+ [A-Z][a-z]+( [A-Z][a-z]+)?$`)

// looksLikeName reports whether a trimmed line reads as a person's name.
func looksLikeName(s string) bool {
	return nameLineRe.MatchString(strings.TrimSpace(s))
}

// countNameLines counts name-like lines in a block of text.
func countNameLines(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if looksLikeName(line) {
			count++
		}
	}
	return count
}

// parseHTML wraps goquery document construction.
func parseHTML(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "parse HTML")
	}
	return doc, nil
}

// attrOr returns the named attribute or "" when absent.
func attrOr(sel *goquery.Selection, name string) string {
	v, _ := sel.Attr(name)
	return v
}

// sectionLink returns the first same-host anchor on the page whose path
// ends with one of the candidate section paths.
func sectionLink(page *model.CrawledPage, site string, paths []string) string {
	doc, err := parseHTML(page.HTML)
	if err != nil {
		return ""
	}
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		abs := absoluteURL(site, attrOr(sel, "href"))
		if abs == "" || !sameHost(abs, site) {
			return true
		}
		lower := strings.ToLower(strings.TrimRight(abs, "/"))
		for _, p := range paths {
			if strings.HasSuffix(lower, p) {
				found = abs
				return false
			}
		}
		return true
	})
	return found
}

// normalizeSite canonicalizes a website URL: adds https:// when the scheme
// is missing and strips any trailing slash.
func normalizeSite(site string) string {
	site = strings.TrimSpace(site)
	if site == "" {
		return ""
	}
	if !strings.Contains(site, "://") {
		site = "https://" + site
	}
	return strings.TrimRight(site, "/")
}

// absoluteURL resolves href against base. Returns "" for unusable hrefs
// (fragments, javascript:, mailto:).
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := b.ResolveReference(h)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

// sameHost reports whether two URLs share a host, treating www. as
// equivalent to the bare domain.
func sameHost(a, b string) bool {
	return hostOf(a) == hostOf(b)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// socialHosts are link destinations never treated as portfolio companies.
var socialHosts = map[string]bool{
	"linkedin.com":  true,
	"twitter.com":   true,
	"x.com":         true,
	"facebook.com":  true,
	"instagram.com": true,
	"youtube.com":   true,
	"vimeo.com":     true,
	"medium.com":    true,
}

// isSocialLink reports whether a URL points at a social platform.
func isSocialLink(rawURL string) bool {
	host := hostOf(rawURL)
	if socialHosts[host] {
		return true
	}
	for h := range socialHosts {
		if strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// cleanText collapses runs of whitespace to single spaces and trims.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateText cuts s at max bytes without splitting words when avoidable.
func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if i := strings.LastIndexByte(cut, ' '); i > max/2 {
		cut = cut[:i]
	}
	return cut
}
