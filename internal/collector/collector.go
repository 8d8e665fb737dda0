// Package collector implements the source collectors of the pipeline. Each
// collector pulls one external source for one entity and emits typed items;
// the orchestrator fans collectors out and the persister writes the items.
// Collectors never write the database.
package collector

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pe-intel/internal/fetcher"
	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/resilience"
	"github.com/sells-group/pe-intel/internal/store"
	"github.com/sells-group/pe-intel/pkg/anthropic"
	"github.com/sells-group/pe-intel/pkg/render"
	"github.com/sells-group/pe-intel/pkg/yfinance"
)

// Collector pulls one data source for one entity. Implementations encode
// expected failures in the Result (Success=false plus ErrorMessage, or
// warnings on partial success) and never panic across the boundary.
type Collector interface {
	Source() model.Source
	EntityType() model.EntityType
	Collect(ctx context.Context, entity model.Entity) *model.Result
}

// FinanceReader consults the reference tables for a company's profile and
// latest reported financials. persist.Catalog implements it.
type FinanceReader interface {
	CompanyFinance(ctx context.Context, companyID int64) (*model.CompanyFinance, error)
}

// Deps carries the shared clients and per-run knobs collectors are built
// from. Optional clients degrade gracefully when nil: collectors that need
// them report the gap as a warning or failure instead of crashing.
type Deps struct {
	Fetcher  fetcher.Fetcher
	Store    store.Store      // crawl + feed caches; nil disables caching
	LLM      anthropic.Client // nil disables LLM-backed extraction
	Render   render.Client    // nil disables the headless-render fallback
	YFinance yfinance.Client
	Finance  FinanceReader // read-only company financials for valuation

	// RenderBreaker tunes the circuit guarding the render service. Zero
	// fields keep the defaults.
	RenderBreaker resilience.CircuitBreakerConfig

	ModelFast string // cheap model for classification and extraction
	ModelDeep string // larger model for valuation reasoning

	UserAgent      string
	RateLimitDelay time.Duration
	MaxRetries     int

	// Incremental enables the feed validator cache for RSS sources.
	Incremental bool
}

// Factory builds a fresh collector from shared dependencies. A new instance
// is created per task so per-run knobs apply cleanly.
type Factory func(deps Deps) Collector

// Registry maps sources to collector factories. Factories are registered
// explicitly at composition; there are no import side effects.
type Registry struct {
	factories map[model.Source]Factory
	order     []model.Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[model.Source]Factory),
	}
}

// Register adds a factory for a source. Re-registering a source replaces
// the factory without changing its position.
func (r *Registry) Register(src model.Source, f Factory) {
	if _, exists := r.factories[src]; !exists {
		r.order = append(r.order, src)
	}
	r.factories[src] = f
}

// New builds a collector for the source.
func (r *Registry) New(src model.Source, deps Deps) (Collector, error) {
	f, ok := r.factories[src]
	if !ok {
		return nil, eris.Errorf("collector: unknown source %q", src)
	}
	return f(deps), nil
}

// Sources returns the registered sources in registration order.
func (r *Registry) Sources() []model.Source {
	out := make([]model.Source, len(r.order))
	copy(out, r.order)
	return out
}

// DefaultRegistry returns a registry with every production collector.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(model.SourceSECADV, func(d Deps) Collector { return NewSECADV(d) })
	r.Register(model.SourceSECFormD, func(d Deps) Collector { return NewSECFormD(d) })
	r.Register(model.SourceSEC13D, func(d Deps) Collector { return NewSECHoldings(d) })
	r.Register(model.SourceFirmWebsite, func(d Deps) Collector { return NewFirmWebsite(d) })
	r.Register(model.SourceBioExtractor, func(d Deps) Collector { return NewBioExtractor(d) })
	r.Register(model.SourcePublicComps, func(d Deps) Collector { return NewPublicComps(d) })
	r.Register(model.SourcePressRelease, func(d Deps) Collector { return NewPressRelease(d) })
	r.Register(model.SourceNewsAPI, func(d Deps) Collector { return NewNewsAPI(d) })
	r.Register(model.SourceValuationEstimator, func(d Deps) Collector { return NewValuationEstimator(d) })
	return r
}

// finish stamps the fetch telemetry from a meter into the result and marks
// it complete.
func finish(r *model.Result, m *fetcher.Meter) *model.Result {
	r.RequestsMade = m.Requests()
	r.BytesDownloaded = m.Bytes()
	return r.Complete()
}

// fail stamps telemetry and marks the result failed.
func fail(r *model.Result, m *fetcher.Meter, msg string) *model.Result {
	r.RequestsMade = m.Requests()
	r.BytesDownloaded = m.Bytes()
	return r.Fail(msg)
}
