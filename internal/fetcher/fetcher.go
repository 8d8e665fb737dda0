// Package fetcher downloads remote data with per-host rate limits and
// decodes the formats sources publish in: JSON endpoints, XML documents and
// feeds, and tabular seed files (CSV, XLSX).
package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string, opts ...RequestOption) (io.ReadCloser, error)

	// GetBytes fetches the URL and returns the full response body.
	GetBytes(ctx context.Context, url string, opts ...RequestOption) ([]byte, error)

	// FetchConditional performs a GET carrying ETag/Last-Modified validators
	// from a previous fetch. A 304 reply sets NotModified with a nil Body.
	FetchConditional(ctx context.Context, url string, cond Conditional, opts ...RequestOption) (*ConditionalResult, error)
}

// HostLimiter lets callers register per-host rate limits on a Fetcher.
type HostLimiter interface {
	SetHostLimit(host string, limit rate.Limit, burst int)
}

// Conditional carries cache validators from a previous fetch.
type Conditional struct {
	ETag         string
	LastModified string
}

// ConditionalResult is the outcome of a conditional GET.
type ConditionalResult struct {
	Body         io.ReadCloser // nil when NotModified
	ETag         string
	LastModified string
	NotModified  bool
}

type requestOptions struct {
	headers http.Header
	meter   *Meter
	timeout time.Duration
}

// RequestOption customizes a single request.
type RequestOption func(*requestOptions)

// WithHeader adds a header to the request.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) { o.headers.Add(key, value) }
}

// WithMeter counts the request and its body bytes into m.
func WithMeter(m *Meter) RequestOption {
	return func(o *requestOptions) { o.meter = m }
}

// WithTimeout overrides the per-request timeout, e.g. for large document
// downloads.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) { o.timeout = d }
}
