package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns keeps the chain off pages that never carry team or
// portfolio content. Press and news paths are owned by their own collectors.
var defaultExcludePatterns = []string{
	"/blog/*",
	"/news/*",
	"/press/*",
	"/careers/*",
	"/privacy*",
	"/terms*",
}

// PathMatcher filters crawl targets with glob-style path patterns. A
// trailing "/*" matches the whole subtree, so "/blog/*" also excludes
// "/blog/2024/outlook".
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher builds a matcher from glob patterns, falling back to the
// defaults when none are configured.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	return &PathMatcher{patterns: patterns}
}

// IsExcluded reports whether a URL should be skipped. Unparseable URLs are
// excluded outright.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, pattern := range m.patterns {
		if matchSubtree(strings.ToLower(pattern), p) {
			return true
		}
	}
	return false
}

// matchSubtree is path.Match extended so a "/*" suffix covers nested paths:
// path.Match alone stops at segment boundaries.
func matchSubtree(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if !strings.HasSuffix(pattern, "/*") {
		return false
	}
	prefix := strings.TrimSuffix(pattern, "/*")
	return urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/")
}
