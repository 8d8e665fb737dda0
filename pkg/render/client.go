// Package render provides a client for a headless browser rendering service,
// used for JavaScript-heavy sites that return empty shells over plain HTTP.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the rendering service operations.
type Client interface {
	// Render loads a URL in a headless browser and returns the settled DOM
	// as HTML plus extracted plaintext.
	Render(ctx context.Context, targetURL string, opts ...RenderOption) (*RenderResponse, error)
}

// RenderResponse is the parsed rendering service response.
type RenderResponse struct {
	Code int        `json:"code"`
	Data RenderData `json:"data"`
}

// RenderData holds the rendered page content.
type RenderData struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	HTML  string `json:"html"`
	Text  string `json:"text"`
}

// RenderOption configures a single render request.
type RenderOption func(*renderOpts)

type renderOpts struct {
	navigationTimeout time.Duration
	settleDelay       time.Duration
}

// WithNavigationTimeout bounds how long the browser waits for the page load
// event. Default 45s.
func WithNavigationTimeout(d time.Duration) RenderOption {
	return func(o *renderOpts) {
		o.navigationTimeout = d
	}
}

// WithSettleDelay waits after load before capturing the DOM, giving client
// frameworks time to hydrate. Default 2s.
func WithSettleDelay(d time.Duration) RenderOption {
	return func(o *renderOpts) {
		o.settleDelay = d
	}
}

// Option configures the render client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new rendering service client.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http: &http.Client{
			// Covers the 45s navigation timeout plus settle and transfer.
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// renderRequest is the JSON body sent to the service.
type renderRequest struct {
	URL                 string `json:"url"`
	NavigationTimeoutMS int64  `json:"navigation_timeout_ms"`
	SettleDelayMS       int64  `json:"settle_delay_ms"`
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes the render request with exponential backoff retries on
// transient failures (429, 500, 502, 503). Returns the response body and
// status code on success, or the last error after exhausting retries.
func (c *httpClient) retryDo(ctx context.Context, url string, reqBody []byte) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
		if err != nil {
			return nil, 0, eris.Wrap(err, "render: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "render: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("render: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) Render(ctx context.Context, targetURL string, opts ...RenderOption) (*RenderResponse, error) {
	ro := &renderOpts{
		navigationTimeout: 45 * time.Second,
		settleDelay:       2 * time.Second,
	}
	for _, opt := range opts {
		opt(ro)
	}

	reqBody, err := json.Marshal(renderRequest{
		URL:                 targetURL,
		NavigationTimeoutMS: ro.navigationTimeout.Milliseconds(),
		SettleDelayMS:       ro.settleDelay.Milliseconds(),
	})
	if err != nil {
		return nil, eris.Wrap(err, "render: marshal request")
	}

	body, statusCode, err := c.retryDo(ctx, c.baseURL+"/render", reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "render: request failed")
	}

	if statusCode != http.StatusOK {
		return nil, eris.Errorf("render: unexpected status %d: %s", statusCode, string(body))
	}

	var result RenderResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "render: unmarshal response")
	}

	return &result, nil
}
