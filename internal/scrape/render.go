package scrape

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/resilience"
	"github.com/sells-group/pe-intel/pkg/render"
)

// RenderAdapter wraps the headless rendering service as a Scraper. A circuit
// breaker sidelines the service after repeated failures so the chain falls
// through to the next scraper instead of waiting out render timeouts.
type RenderAdapter struct {
	client  render.Client
	breaker *resilience.CircuitBreaker
}

// NewRenderAdapter creates a RenderAdapter guarded by a circuit breaker.
// Zero fields in breakerCfg keep the defaults: three straight failures open
// the circuit for a minute. The trip check and transition logging belong to
// the adapter, so caller cancellations never count against the service.
func NewRenderAdapter(client render.Client, breakerCfg resilience.CircuitBreakerConfig) *RenderAdapter {
	breakerCfg.ShouldTrip = func(err error) bool {
		return !errors.Is(err, context.Canceled)
	}
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("scrape: render breaker state change",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	return &RenderAdapter{
		client:  client,
		breaker: resilience.NewCircuitBreaker(breakerCfg),
	}
}

func (a *RenderAdapter) Name() string { return "render" }

// Supports returns true unless the circuit breaker is open.
func (a *RenderAdapter) Supports(_ string) bool {
	return a.breaker.State() != resilience.CircuitOpen
}

// Scrape renders a URL in a headless browser and validates the response.
// Returns resilience.ErrCircuitOpen without calling upstream while the
// breaker is open.
func (a *RenderAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*render.RenderResponse, error) {
		resp, err := a.client.Render(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		if needsFallback(resp) {
			return nil, eris.New("render: response needs fallback")
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Page: model.CrawledPage{
			URL:        resp.Data.URL,
			Title:      resp.Data.Title,
			Text:       resp.Data.Text,
			HTML:       resp.Data.HTML,
			StatusCode: resp.Code,
		},
		Source: "render",
	}, nil
}

// needsFallback checks whether a render response contains usable content or
// indicates the page is blocked/empty. Returns true if the response should
// be retried with a different scraper.
func needsFallback(resp *render.RenderResponse) bool {
	if resp == nil {
		return true
	}

	if resp.Code != 0 && resp.Code != 200 {
		return true
	}

	content := strings.TrimSpace(resp.Data.Text)

	if len(content) < 100 {
		return true
	}

	lower := strings.ToLower(content)

	challengeSignatures := []string{
		"checking your browser",
		"enable javascript",
		"please enable cookies",
		"access denied",
		"403 forbidden",
		"just a moment",
		"cloudflare",
		"attention required",
	}

	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) && len(content) < 1000 {
			return true
		}
	}

	return false
}
