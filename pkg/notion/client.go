// Package notion connects the pipeline to the deal team's Notion workspace.
// The export side appends collected deals to a shared board; the import side
// seeds the prospect board from curated CSV lists. All calls go through
// Client, which throttles to Notion's published rate limit and retries
// throttled or failing calls before giving up.
package notion

import (
	"context"
	"errors"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/pe-intel/internal/resilience"
)

// Client is the slice of the Notion API the exporters and importer use.
type Client interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

// ClientOption configures the Notion client.
type ClientOption func(*notionClient)

// WithRateLimit overrides the default limit of 3 req/s. Zero or negative
// disables throttling, which tests rely on.
func WithRateLimit(rps float64) ClientOption {
	return func(c *notionClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
			return
		}
		c.limiter = nil
	}
}

// WithRetryPolicy replaces the retry policy. MaxAttempts 1 disables
// retrying.
func WithRetryPolicy(cfg resilience.RetryConfig) ClientOption {
	return func(c *notionClient) {
		c.retry = cfg
	}
}

type notionClient struct {
	inner   *notionapi.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient returns a Client for the given integration token, throttled to
// Notion's documented 3 req/s. Calls that come back throttled or failed
// server-side are retried twice before the error surfaces.
func NewClient(token string, opts ...ClientOption) Client {
	c := &notionClient{
		inner:   notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(3, 1),
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			ShouldRetry:    transientNotion,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// transientNotion reports whether a Notion API error is worth retrying.
// Throttling and server-side failures are; validation and auth rejections
// are not. Transport errors fall through to the shared transient check.
func transientNotion(err error) bool {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}
	return resilience.IsTransient(err)
}

func (c *notionClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// apiCall runs one API operation under the client's throttle and retry
// policy. The limiter is re-acquired on every attempt, so a retry queues
// behind other calls like any fresh request.
func apiCall[T any](ctx context.Context, c *notionClient, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg := c.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("notion", op)
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (T, error) {
		if err := c.wait(ctx); err != nil {
			var zero T
			return zero, eris.Wrap(err, "notion: rate limit")
		}
		return fn(ctx)
	})
}

func (c *notionClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := apiCall(ctx, c, "query_database", func(ctx context.Context) (*notionapi.DatabaseQueryResponse, error) {
		return c.inner.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "notion: query database %s", dbID)
	}
	return resp, nil
}

func (c *notionClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	page, err := apiCall(ctx, c, "create_page", func(ctx context.Context) (*notionapi.Page, error) {
		return c.inner.Page.Create(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "notion: create page")
	}
	return page, nil
}

func (c *notionClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	page, err := apiCall(ctx, c, "update_page", func(ctx context.Context) (*notionapi.Page, error) {
		return c.inner.Page.Update(ctx, notionapi.PageID(pageID), req)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "notion: update page %s", pageID)
	}
	return page, nil
}
