package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/collector"
	"github.com/sells-group/pe-intel/internal/cost"
	"github.com/sells-group/pe-intel/internal/db"
	"github.com/sells-group/pe-intel/internal/fetcher"
	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/orchestrator"
	"github.com/sells-group/pe-intel/internal/persist"
	"github.com/sells-group/pe-intel/internal/resilience"
	"github.com/sells-group/pe-intel/internal/schedule"
	"github.com/sells-group/pe-intel/internal/store"
	anthropicpkg "github.com/sells-group/pe-intel/pkg/anthropic"
	"github.com/sells-group/pe-intel/pkg/render"
	"github.com/sells-group/pe-intel/pkg/yfinance"
)

// collectEnv holds the pool, store, and pipeline components shared by the
// collect/serve/worker commands.
type collectEnv struct {
	Pool    *pgxpool.Pool
	Store   store.Store
	Catalog *persist.Catalog
	Orch    *orchestrator.Orchestrator
	Acts    *schedule.Activities
	Costs   *cost.Tracker
}

// Close releases resources held by the collection environment.
func (ce *collectEnv) Close() {
	if ce.Store != nil {
		_ = ce.Store.Close()
	}
	if ce.Pool != nil {
		ce.Pool.Close()
	}
}

// initCollectEnv validates config for the given command mode, connects the
// database, and wires the full collection pipeline. Callers should defer
// env.Close().
func initCollectEnv(ctx context.Context, mode string) (*collectEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg.Database.URL, &db.PoolConfig{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "connect database")
	}

	st, err := initStore(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		pool.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	tracker := cost.NewTracker(cost.DefaultRates())

	// LLM-backed collectors degrade to raw extraction without a key.
	var llm anthropicpkg.Client
	if cfg.Anthropic.APIKey != "" {
		llm = anthropicpkg.NewClient(cfg.Anthropic.APIKey, anthropicpkg.WithUsageObserver(tracker))
	} else {
		zap.L().Warn("anthropic api key not set, LLM extraction disabled")
	}

	var renderClient render.Client
	if cfg.Render.BaseURL != "" {
		renderClient = render.NewClient(cfg.Render.BaseURL, cfg.Render.APIKey)
		zap.L().Info("headless render fallback enabled")
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:     cfg.Collect.UserAgent,
		MaxRetries:    cfg.Collect.MaxRetries,
		BackoffFactor: cfg.Collect.RetryBackoffFactor,
		GlobalRate:    cfg.Collect.MaxRequestsPerSecond,
		MaxInflight:   int64(cfg.Collect.MaxConcurrency),
		RateLimiters:  fetcher.DefaultRateLimiters(),
		// Hosts with no registered limiter are firm websites being
		// scraped; crawl them politely.
		DefaultHostRate: 0.5,
	})

	catalog := persist.NewCatalog(pool)

	deps := collector.Deps{
		Fetcher:        f,
		Store:          st,
		LLM:            llm,
		Render:         renderClient,
		RenderBreaker:  resilience.FromCircuitConfig(cfg.Render.CircuitFailureThreshold, cfg.Render.CircuitResetSeconds),
		YFinance:       yfinance.NewClient(),
		Finance:        catalog,
		ModelFast:      cfg.Anthropic.ModelFast,
		ModelDeep:      cfg.Anthropic.ModelDeep,
		UserAgent:      cfg.Collect.UserAgent,
		RateLimitDelay: requestDefaults().RateLimitDelay,
		MaxRetries:     cfg.Collect.MaxRetries,
	}

	orch := orchestrator.New(collector.DefaultRegistry(), catalog, st, deps)
	acts := schedule.NewActivities(orch, persist.New(pool), catalog, st, requestDefaults())

	return &collectEnv{
		Pool:    pool,
		Store:   st,
		Catalog: catalog,
		Orch:    orch,
		Acts:    acts,
		Costs:   tracker,
	}, nil
}

// initStore builds the run tracking store. Postgres shares the entity pool;
// SQLite keeps run tracking in a local file for offline work.
func initStore(pool db.Pool) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(pool), nil
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// requestDefaults derives per-request fill-in values from config. The rate
// limit delay is the inverse of the configured requests-per-second cap.
func requestDefaults() model.RequestDefaults {
	delay := time.Second
	if cfg.Collect.MaxRequestsPerSecond > 0 {
		delay = time.Duration(float64(time.Second) / cfg.Collect.MaxRequestsPerSecond)
	}
	return model.RequestDefaults{
		MaxAgeDays:     cfg.Collect.MaxAgeDays,
		MaxConcurrent:  cfg.Collect.MaxConcurrency,
		RateLimitDelay: delay,
		MaxRetries:     cfg.Collect.MaxRetries,
	}
}

// logCostLines reports LLM spend accumulated during the run.
func logCostLines(tracker *cost.Tracker) {
	lines := tracker.Lines()
	if len(lines) == 0 {
		return
	}
	for _, l := range lines {
		zap.L().Info("llm cost",
			zap.String("model", l.Model),
			zap.String("label", l.Label),
			zap.Int("calls", l.Calls),
			zap.Int64("input_tokens", l.InputTokens),
			zap.Int64("output_tokens", l.OutputTokens),
			zap.Float64("cost_usd", l.CostUSD),
		)
	}
	in, out := tracker.TotalTokens()
	zap.L().Info("llm cost total",
		zap.Int64("input_tokens", in),
		zap.Int64("output_tokens", out),
		zap.Float64("cost_usd", tracker.TotalCost()),
	)
}
