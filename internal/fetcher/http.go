package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/sells-group/pe-intel/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent     string
	Timeout       time.Duration // default per-request timeout
	MaxRetries    int           // retries after the first attempt; 0 disables
	BackoffFactor float64       // seconds; the retry delay doubles each attempt

	// GlobalRate caps requests/sec across all hosts. Zero disables the cap.
	GlobalRate float64
	// MaxInflight caps concurrent outbound requests. Zero disables the cap.
	MaxInflight int64
	// DefaultHostRate applies to hosts with no registered limiter.
	DefaultHostRate rate.Limit

	RateLimiters map[string]*rate.Limiter
}

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		initialRate: initialRate,
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 1.2
	if newRate > a.maxRate {
		newRate = a.maxRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
}

// OnRateLimit halves the rate on 429 responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 0.5
	if newRate < a.minRate {
		newRate = a.minRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
	zap.L().Warn("adaptive rate limit: reducing rate after 429",
		zap.Float64("new_rate", float64(newRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher implements Fetcher using net/http with retry, per-host rate
// limiting, a global rate ceiling, and an inflight-request cap.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	retryCfg resilience.RetryConfig
	global   *rate.Limiter
	sem      *semaphore.Weighted

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	adaptive map[string]*AdaptiveLimiter
}

// DefaultRateLimiters returns the default per-host rate limiters.
// SEC hosts allow 10 req/s per their fair-access policy.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"efts.sec.gov": rate.NewLimiter(10, 10),
		"www.sec.gov":  rate.NewLimiter(10, 10),
		"data.sec.gov": rate.NewLimiter(10, 10),
	}
}

// DefaultAdaptiveLimiters returns adaptive limiters for the press
// distribution wires, which throttle scrapers without publishing a rate
// policy. SEC hosts stay on fixed limiters: their 10 req/s is a hard cap,
// never a starting point to adapt from.
func DefaultAdaptiveLimiters() map[string]*AdaptiveLimiter {
	return map[string]*AdaptiveLimiter{
		"www.prnewswire.com":    NewAdaptiveLimiter(1, 1),
		"www.businesswire.com":  NewAdaptiveLimiter(1, 1),
		"www.globenewswire.com": NewAdaptiveLimiter(1, 1),
	}
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "pe-intel/1.0"
	}
	if opts.DefaultHostRate == 0 {
		opts.DefaultHostRate = 2
	}

	limiters := make(map[string]*rate.Limiter)
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}

	var global *rate.Limiter
	if opts.GlobalRate > 0 {
		burst := int(opts.GlobalRate)
		if burst < 1 {
			burst = 1
		}
		global = rate.NewLimiter(rate.Limit(opts.GlobalRate), burst)
	}
	var sem *semaphore.Weighted
	if opts.MaxInflight > 0 {
		sem = semaphore.NewWeighted(opts.MaxInflight)
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		// Timeouts are applied per request via context so slow large
		// downloads can opt into a longer budget.
		client:   &http.Client{Transport: transport},
		opts:     opts,
		retryCfg: resilience.CollectRetryConfig(opts.MaxRetries, opts.BackoffFactor),
		global:   global,
		sem:      sem,
		limiters: limiters,
		adaptive: DefaultAdaptiveLimiters(),
	}
}

// SetHostLimit registers or replaces the rate limiter for a host.
func (f *HTTPFetcher) SetHostLimit(host string, limit rate.Limit, burst int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limiters[host] = rate.NewLimiter(limit, burst)
}

func (f *HTTPFetcher) adaptiveFor(host string) *AdaptiveLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.adaptive[host]
}

// limiterFor returns the limiter for a host, creating one at the default
// rate on first use so all requests to the host share a bucket.
func (f *HTTPFetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	burst := int(f.opts.DefaultHostRate)
	if burst < 1 {
		burst = 1
	}
	lim := rate.NewLimiter(f.opts.DefaultHostRate, burst)
	f.limiters[host] = lim
	return lim
}

func (f *HTTPFetcher) newRequestOptions(opts []RequestOption) *requestOptions {
	ro := &requestOptions{
		headers: make(http.Header),
		timeout: f.opts.Timeout,
	}
	for _, opt := range opts {
		opt(ro)
	}
	return ro
}

// do runs one rate-limited GET with retries. The returned response has a
// body that meters bytes and releases the attempt timeout on Close.
func (f *HTTPFetcher) do(ctx context.Context, rawURL string, ro *requestOptions) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}
	host := u.Host
	adaptive := f.adaptiveFor(host)

	cfg := f.retryCfg
	cfg.OnRetry = resilience.RetryLogger(host, "fetch")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*http.Response, error) {
		if f.sem != nil {
			if err := f.sem.Acquire(ctx, 1); err != nil {
				return nil, eris.Wrap(err, "fetcher: acquire request slot")
			}
			defer f.sem.Release(1)
		}
		if f.global != nil {
			if err := f.global.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "fetcher: global rate wait")
			}
		}
		if adaptive != nil {
			if err := adaptive.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "fetcher: rate wait")
			}
		} else if err := f.limiterFor(host).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate wait")
		}

		attemptCtx, cancel := context.WithTimeout(ctx, ro.timeout)
		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
		if err != nil {
			cancel()
			return nil, eris.Wrapf(err, "fetcher: create request for %s", rawURL)
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)
		for k, vs := range ro.headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		if ro.meter != nil {
			ro.meter.AddRequest()
		}
		resp, err := f.client.Do(req)
		if err != nil {
			cancel()
			return nil, eris.Wrapf(err, "fetcher: GET %s", rawURL)
		}

		if resp.StatusCode == http.StatusTooManyRequests && adaptive != nil {
			adaptive.OnRateLimit()
		}
		if resp.StatusCode >= 400 {
			_ = resp.Body.Close()
			cancel()
			return nil, resilience.ClassifyStatus(resp.StatusCode, rawURL, resp.Header.Get("Retry-After"))
		}
		if adaptive != nil {
			adaptive.OnSuccess()
		}

		resp.Body = &meterBody{rc: resp.Body, meter: ro.meter, cancel: cancel}
		return resp, nil
	})
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string, opts ...RequestOption) (io.ReadCloser, error) {
	resp, err := f.do(ctx, rawURL, f.newRequestOptions(opts))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetBytes fetches the URL and returns the full response body.
func (f *HTTPFetcher) GetBytes(ctx context.Context, rawURL string, opts ...RequestOption) ([]byte, error) {
	body, err := f.Download(ctx, rawURL, opts...)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read body from %s", rawURL)
	}
	return data, nil
}

// FetchConditional performs a GET with If-None-Match / If-Modified-Since
// validators. On 304 the body is nil and the previous validators carry over.
func (f *HTTPFetcher) FetchConditional(ctx context.Context, rawURL string, cond Conditional, opts ...RequestOption) (*ConditionalResult, error) {
	if cond.ETag != "" {
		opts = append(opts, WithHeader("If-None-Match", cond.ETag))
	}
	if cond.LastModified != "" {
		opts = append(opts, WithHeader("If-Modified-Since", cond.LastModified))
	}

	resp, err := f.do(ctx, rawURL, f.newRequestOptions(opts))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotModified {
		_ = resp.Body.Close()
		return &ConditionalResult{
			ETag:         cond.ETag,
			LastModified: cond.LastModified,
			NotModified:  true,
		}, nil
	}

	return &ConditionalResult{
		Body:         resp.Body,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}
