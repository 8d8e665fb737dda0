package scrape

import (
	"net/http"
	"strings"
)

// BlockType names what kept the plain fetch from getting real content.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// DetectBlock inspects a response for anti-bot walls and client-side-only
// shells. Firm sites behind Cloudflare and React team pages are the usual
// reasons the chain has to fall through to the render service.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	lower := strings.ToLower(string(body))

	if cloudflareWall(resp, lower) {
		return true, BlockCloudflare
	}
	if captchaWall(lower) {
		return true, BlockCaptcha
	}
	if jsShell(lower, len(body)) {
		return true, BlockJSShell
	}
	return false, BlockNone
}

// cloudflareWall matches both the header signature on 403/503 responses and
// the interstitial challenge page served with a 200.
func cloudflareWall(resp *http.Response, lower string) bool {
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" {
			return true
		}
		if resp.Header.Get("server") == "cloudflare" {
			return true
		}
	}
	if strings.Contains(lower, "checking your browser") {
		return true
	}
	if strings.Contains(lower, "cf-browser-verification") {
		return true
	}
	return strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge")
}

func captchaWall(lower string) bool {
	return strings.Contains(lower, "captcha") ||
		strings.Contains(lower, "recaptcha") ||
		strings.Contains(lower, "hcaptcha")
}

// jsShell flags tiny documents that only bootstrap a script. The cutoff is
// generous; a real team page with markup runs well past 2 KB.
func jsShell(lower string, size int) bool {
	if size >= 2000 {
		return false
	}
	if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
		return true
	}
	return strings.Contains(lower, `meta http-equiv="refresh"`)
}
