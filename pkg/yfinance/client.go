// Package yfinance provides a client for Yahoo Finance's public quote and
// search endpoints, used to pull comparable-company fundamentals for
// publicly traded portfolio companies.
package yfinance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultModules are the quote summary modules the pipeline consumes.
var DefaultModules = []string{
	"price",
	"summaryDetail",
	"financialData",
	"defaultKeyStatistics",
	"assetProfile",
}

// Client defines the Yahoo Finance operations.
type Client interface {
	// Search looks up ticker symbols matching a company name.
	Search(ctx context.Context, query string) (*SearchResponse, error)
	// QuoteSummary fetches fundamentals for a symbol. Pass nil modules for
	// DefaultModules.
	QuoteSummary(ctx context.Context, symbol string, modules []string) (*QuoteSummary, error)
}

// Num is Yahoo's formatted-number envelope. Only the raw value is kept.
type Num struct {
	Raw float64 `json:"raw"`
	Fmt string  `json:"fmt"`
}

// Int64 returns the raw value truncated to int64.
func (n Num) Int64() int64 { return int64(n.Raw) }

// SearchResponse is the parsed symbol search response.
type SearchResponse struct {
	Quotes []SearchQuote `json:"quotes"`
}

// SearchQuote is one symbol match.
type SearchQuote struct {
	Symbol    string `json:"symbol"`
	ShortName string `json:"shortname"`
	LongName  string `json:"longname"`
	Exchange  string `json:"exchange"`
	ExchDisp  string `json:"exchDisp"`
	QuoteType string `json:"quoteType"`
	Sector    string `json:"sector"`
	Industry  string `json:"industry"`
	Score     float64
}

// QuoteSummary holds the modules requested from the quote summary endpoint.
// Absent modules decode to zero values.
type QuoteSummary struct {
	Price                Price                `json:"price"`
	SummaryDetail        SummaryDetail        `json:"summaryDetail"`
	FinancialData        FinancialData        `json:"financialData"`
	DefaultKeyStatistics DefaultKeyStatistics `json:"defaultKeyStatistics"`
	AssetProfile         AssetProfile         `json:"assetProfile"`
}

// Price is the price module.
type Price struct {
	Symbol             string `json:"symbol"`
	ShortName          string `json:"shortName"`
	LongName           string `json:"longName"`
	Currency           string `json:"currency"`
	RegularMarketPrice Num    `json:"regularMarketPrice"`
	MarketCap          Num    `json:"marketCap"`
}

// SummaryDetail is the summaryDetail module.
type SummaryDetail struct {
	FiftyTwoWeekLow  Num `json:"fiftyTwoWeekLow"`
	FiftyTwoWeekHigh Num `json:"fiftyTwoWeekHigh"`
	TrailingPE       Num `json:"trailingPE"`
	ForwardPE        Num `json:"forwardPE"`
	DividendYield    Num `json:"dividendYield"`
}

// FinancialData is the financialData module.
type FinancialData struct {
	TotalRevenue  Num `json:"totalRevenue"`
	EBITDA        Num `json:"ebitda"`
	TotalCash     Num `json:"totalCash"`
	TotalDebt     Num `json:"totalDebt"`
	RevenueGrowth Num `json:"revenueGrowth"`
	GrossMargins  Num `json:"grossMargins"`
	EBITDAMargins Num `json:"ebitdaMargins"`
	ProfitMargins Num `json:"profitMargins"`
}

// DefaultKeyStatistics is the defaultKeyStatistics module.
type DefaultKeyStatistics struct {
	EnterpriseValue     Num `json:"enterpriseValue"`
	EnterpriseToRevenue Num `json:"enterpriseToRevenue"`
	EnterpriseToEbitda  Num `json:"enterpriseToEbitda"`
	TrailingEps         Num `json:"trailingEps"`
	SharesOutstanding   Num `json:"sharesOutstanding"`
}

// AssetProfile is the assetProfile module.
type AssetProfile struct {
	Industry            string `json:"industry"`
	Sector              string `json:"sector"`
	LongBusinessSummary string `json:"longBusinessSummary"`
	FullTimeEmployees   int    `json:"fullTimeEmployees"`
	City                string `json:"city"`
	State               string `json:"state"`
	Country             string `json:"country"`
	Website             string `json:"website"`
}

// quoteSummaryEnvelope is Yahoo's response wrapper.
type quoteSummaryEnvelope struct {
	QuoteSummary struct {
		Result []QuoteSummary `json:"result"`
		Error  *apiError      `json:"error"`
	} `json:"quoteSummary"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Option configures the Yahoo Finance client.
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

// WithUserAgent overrides the browser User-Agent sent to Yahoo.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient creates a new Yahoo Finance client. The endpoints are public
// but reject default Go User-Agents, so a browser UA is sent.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   "https://query1.finance.yahoo.com",
		userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		http: &http.Client{
			Timeout: 30 * time.Second,
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

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes a GET with exponential backoff retries on transient
// failures. Returns the response body and status code.
func (c *httpClient) retryDo(ctx context.Context, reqURL string) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, 0, eris.Wrap(err, "yfinance: create request")
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

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
			return nil, resp.StatusCode, eris.Wrap(readErr, "yfinance: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("yfinance: status %d: %s", resp.StatusCode, string(body))
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

func (c *httpClient) Search(ctx context.Context, query string) (*SearchResponse, error) {
	reqURL := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=10&newsCount=0",
		c.baseURL, url.QueryEscape(query))

	body, statusCode, err := c.retryDo(ctx, reqURL)
	if err != nil {
		return nil, eris.Wrap(err, "yfinance: search request failed")
	}

	if statusCode == http.StatusNotFound {
		return &SearchResponse{}, nil
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("yfinance: search unexpected status %d: %s", statusCode, string(body))
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "yfinance: unmarshal search response")
	}

	return &result, nil
}

func (c *httpClient) QuoteSummary(ctx context.Context, symbol string, modules []string) (*QuoteSummary, error) {
	if len(modules) == 0 {
		modules = DefaultModules
	}
	reqURL := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(strings.Join(modules, ",")))

	body, statusCode, err := c.retryDo(ctx, reqURL)
	if err != nil {
		return nil, eris.Wrap(err, "yfinance: quote summary request failed")
	}

	// Yahoo reports unknown symbols as 404 with an error envelope.
	if statusCode == http.StatusNotFound {
		return nil, eris.Errorf("yfinance: symbol %s not found", symbol)
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("yfinance: quote summary unexpected status %d: %s", statusCode, string(body))
	}

	var envelope quoteSummaryEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, eris.Wrap(err, "yfinance: unmarshal quote summary")
	}

	if envelope.QuoteSummary.Error != nil {
		return nil, eris.Errorf("yfinance: %s: %s",
			envelope.QuoteSummary.Error.Code, envelope.QuoteSummary.Error.Description)
	}
	if len(envelope.QuoteSummary.Result) == 0 {
		return nil, eris.Errorf("yfinance: empty result for symbol %s", symbol)
	}

	return &envelope.QuoteSummary.Result[0], nil
}
