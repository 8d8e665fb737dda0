package scrape

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-intel/internal/resilience"
	"github.com/sells-group/pe-intel/pkg/render"
)

// fakeRenderClient implements render.Client for testing.
type fakeRenderClient struct {
	resp  *render.RenderResponse
	err   error
	calls int
}

func (f *fakeRenderClient) Render(_ context.Context, _ string, _ ...render.RenderOption) (*render.RenderResponse, error) {
	f.calls++
	return f.resp, f.err
}

func TestRenderAdapter_Success(t *testing.T) {
	client := &fakeRenderClient{
		resp: &render.RenderResponse{
			Code: 200,
			Data: render.RenderData{
				URL:   "https://acmecapital.com/team",
				Title: "Team",
				Text:  strings.Repeat("Jane Doe Managing Partner ", 20),
			},
		},
	}

	a := NewRenderAdapter(client, resilience.CircuitBreakerConfig{})
	result, err := a.Scrape(context.Background(), "https://acmecapital.com/team")

	require.NoError(t, err)
	assert.Equal(t, "render", result.Source)
	assert.Equal(t, "Team", result.Page.Title)
	assert.Contains(t, result.Page.Text, "Jane Doe")
}

func TestRenderAdapter_ShortContentNeedsFallback(t *testing.T) {
	client := &fakeRenderClient{
		resp: &render.RenderResponse{
			Code: 200,
			Data: render.RenderData{Text: "tiny"},
		},
	}

	a := NewRenderAdapter(client, resilience.CircuitBreakerConfig{})
	_, err := a.Scrape(context.Background(), "https://example.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs fallback")
}

func TestRenderAdapter_ChallengePageNeedsFallback(t *testing.T) {
	client := &fakeRenderClient{
		resp: &render.RenderResponse{
			Code: 200,
			Data: render.RenderData{
				Text: "Just a moment... Checking your browser before accessing the site. " +
					strings.Repeat("please wait ", 10),
			},
		},
	}

	a := NewRenderAdapter(client, resilience.CircuitBreakerConfig{})
	_, err := a.Scrape(context.Background(), "https://example.com")

	require.Error(t, err)
}

func TestRenderAdapter_CircuitBreakerOpens(t *testing.T) {
	client := &fakeRenderClient{err: errors.New("upstream down")}

	a := NewRenderAdapter(client, resilience.CircuitBreakerConfig{})
	for i := 0; i < 3; i++ {
		_, err := a.Scrape(context.Background(), "https://example.com")
		require.Error(t, err)
	}

	// Circuit is now open: the adapter refuses without calling upstream.
	assert.False(t, a.Supports("https://example.com"))
	_, err := a.Scrape(context.Background(), "https://example.com")
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 3, client.calls)
}

func TestRenderAdapter_SuccessResetsBreaker(t *testing.T) {
	client := &fakeRenderClient{err: errors.New("flaky")}
	a := NewRenderAdapter(client, resilience.CircuitBreakerConfig{})

	// Two failures, then a success, then two more failures: breaker must
	// stay closed because the streak was broken.
	_, _ = a.Scrape(context.Background(), "https://example.com")
	_, _ = a.Scrape(context.Background(), "https://example.com")

	client.err = nil
	client.resp = &render.RenderResponse{
		Code: 200,
		Data: render.RenderData{Text: strings.Repeat("real content ", 20)},
	}
	_, err := a.Scrape(context.Background(), "https://example.com")
	require.NoError(t, err)

	client.err = errors.New("flaky")
	client.resp = nil
	_, _ = a.Scrape(context.Background(), "https://example.com")
	_, _ = a.Scrape(context.Background(), "https://example.com")

	assert.True(t, a.Supports("https://example.com"))
}

func TestNeedsFallback_NilResponse(t *testing.T) {
	assert.True(t, needsFallback(nil))
}

func TestNeedsFallback_GoodContent(t *testing.T) {
	resp := &render.RenderResponse{
		Code: 200,
		Data: render.RenderData{Text: strings.Repeat("substantial portfolio content ", 20)},
	}
	assert.False(t, needsFallback(resp))
}

func TestNeedsFallback_ErrorCode(t *testing.T) {
	resp := &render.RenderResponse{
		Code: 500,
		Data: render.RenderData{Text: strings.Repeat("content ", 50)},
	}
	assert.True(t, needsFallback(resp))
}
