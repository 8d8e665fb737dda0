package notion

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-intel/internal/resilience"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// newStubClient intercepts the API transport so client behavior is testable
// without the network. Throttling and retrying are off unless a test opts
// back in.
func newStubClient(rt roundTripFunc, opts ...ClientOption) Client {
	c := &notionClient{
		inner: notionapi.NewClient("test-token",
			notionapi.WithHTTPClient(&http.Client{Transport: rt})),
		retry: resilience.RetryConfig{MaxAttempts: 1},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func TestClient_QueryDatabase(t *testing.T) {
	var gotPath, gotMethod string
	c := newStubClient(func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		gotMethod = req.Method
		return jsonResponse(http.StatusOK, `{
			"object": "list",
			"results": [{"object": "page", "id": "deal-1"}],
			"has_more": false
		}`), nil
	})

	resp, err := c.QueryDatabase(context.Background(), "board-123", &notionapi.DatabaseQueryRequest{})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Contains(t, gotPath, "/databases/board-123/query")
	require.Len(t, resp.Results, 1)
	assert.Equal(t, notionapi.ObjectID("deal-1"), resp.Results[0].ID)
	assert.False(t, resp.HasMore)
}

func TestClient_QueryDatabase_APIError(t *testing.T) {
	c := newStubClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{
			"object": "error", "status": 400,
			"code": "validation_error", "message": "bad filter"
		}`), nil
	})

	_, err := c.QueryDatabase(context.Background(), "board-123", &notionapi.DatabaseQueryRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: query database board-123")
}

func TestClient_CreatePage(t *testing.T) {
	var gotPath string
	c := newStubClient(func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		return jsonResponse(http.StatusOK, `{"object": "page", "id": "card-9"}`), nil
	})

	page, err := c.CreatePage(context.Background(), &notionapi.PageCreateRequest{})
	require.NoError(t, err)
	assert.Contains(t, gotPath, "/pages")
	assert.Equal(t, notionapi.ObjectID("card-9"), page.ID)
}

func TestClient_CreatePage_APIError(t *testing.T) {
	c := newStubClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, `{
			"object": "error", "status": 429,
			"code": "rate_limited", "message": "slow down"
		}`), nil
	})

	_, err := c.CreatePage(context.Background(), &notionapi.PageCreateRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: create page")
}

func TestClient_UpdatePage(t *testing.T) {
	var gotPath, gotMethod string
	c := newStubClient(func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		gotMethod = req.Method
		return jsonResponse(http.StatusOK, `{"object": "page", "id": "card-9"}`), nil
	})

	page, err := c.UpdatePage(context.Background(), "card-9", &notionapi.PageUpdateRequest{})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Contains(t, gotPath, "/pages/card-9")
	assert.Equal(t, notionapi.ObjectID("card-9"), page.ID)
}

func TestClient_UpdatePage_APIError(t *testing.T) {
	c := newStubClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{
			"object": "error", "status": 404,
			"code": "object_not_found", "message": "no such page"
		}`), nil
	})

	_, err := c.UpdatePage(context.Background(), "gone", &notionapi.PageUpdateRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: update page gone")
}

func TestClient_RateLimitHonorsContext(t *testing.T) {
	c := newStubClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"object": "page", "id": "card-1"}`), nil
	}, WithRateLimit(0.001))

	// Burst of one covers the first call.
	_, err := c.CreatePage(context.Background(), &notionapi.PageCreateRequest{})
	require.NoError(t, err)

	// The second would wait ~17 minutes; the deadline cuts it short.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.CreatePage(ctx, &notionapi.PageCreateRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: rate limit")
}

func TestWithRateLimit_Disabled(t *testing.T) {
	c := newStubClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"object": "page", "id": "card-1"}`), nil
	}, WithRateLimit(0))

	// With throttling off even a dead context reaches the transport.
	for i := 0; i < 5; i++ {
		_, err := c.CreatePage(context.Background(), &notionapi.PageCreateRequest{})
		require.NoError(t, err)
	}
}

func TestClient_RetriesThrottledCalls(t *testing.T) {
	var hits int
	c := newStubClient(func(*http.Request) (*http.Response, error) {
		hits++
		if hits == 1 {
			return jsonResponse(http.StatusTooManyRequests, `{
				"object": "error", "status": 429,
				"code": "rate_limited", "message": "slow down"
			}`), nil
		}
		return jsonResponse(http.StatusOK, `{"object": "page", "id": "card-2"}`), nil
	}, WithRetryPolicy(resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		ShouldRetry:    transientNotion,
	}))

	page, err := c.CreatePage(context.Background(), &notionapi.PageCreateRequest{})
	require.NoError(t, err)
	assert.Equal(t, notionapi.ObjectID("card-2"), page.ID)
	assert.Equal(t, 2, hits)
}

func TestClient_ValidationErrorNotRetried(t *testing.T) {
	var hits int
	c := newStubClient(func(*http.Request) (*http.Response, error) {
		hits++
		return jsonResponse(http.StatusBadRequest, `{
			"object": "error", "status": 400,
			"code": "validation_error", "message": "bad filter"
		}`), nil
	}, WithRetryPolicy(resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		ShouldRetry:    transientNotion,
	}))

	_, err := c.QueryDatabase(context.Background(), "board-123", &notionapi.DatabaseQueryRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, hits)
}

func TestTransientNotion(t *testing.T) {
	assert.True(t, transientNotion(&notionapi.Error{Status: 429}))
	assert.True(t, transientNotion(&notionapi.Error{Status: 502}))
	assert.False(t, transientNotion(&notionapi.Error{Status: 400}))
	assert.False(t, transientNotion(&notionapi.Error{Status: 404}))

	// Non-API errors fall through to the shared transport heuristics.
	assert.True(t, transientNotion(errors.New("tls handshake timeout")))
	assert.False(t, transientNotion(errors.New("token revoked")))
}

func TestNewClient_DefaultThrottle(t *testing.T) {
	c := NewClient("secret-token")
	require.NotNil(t, c)
	nc, ok := c.(*notionClient)
	require.True(t, ok)
	assert.NotNil(t, nc.limiter)
	assert.InDelta(t, 3.0, float64(nc.limiter.Limit()), 0.01)
	assert.Equal(t, 3, nc.retry.MaxAttempts)
}
