// Package store tracks collection runs and their per-task outcomes, and
// hosts the operational caches (crawled sites, feed validators) the
// collectors consult between runs. Entity data lives elsewhere; this package
// only records what the pipeline did and what it already fetched.
package store

import (
	"context"
	"time"

	"github.com/sells-group/pe-intel/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status     model.RunStatus  `json:"status,omitempty"`
	EntityType model.EntityType `json:"entity_type,omitempty"`
	Limit      int              `json:"limit,omitempty"`
	Offset     int              `json:"offset,omitempty"`
}

// CrawlEntry is one cached site crawl: every page fetched from a firm's
// website during a previous run, kept until expires_at.
type CrawlEntry struct {
	ID        string              `json:"id"`
	SiteURL   string              `json:"site_url"`
	Pages     []model.CrawledPage `json:"pages"`
	CrawledAt time.Time           `json:"crawled_at"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// FeedState holds the conditional-request validators recorded for an RSS
// feed, so incremental runs can skip feeds that have not changed.
type FeedState struct {
	FeedURL      string    `json:"feed_url"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	CheckedAt    time.Time `json:"checked_at"`
}

// Store defines the run tracking and cache interface for the pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, entityType model.EntityType, sources []model.Source, mode model.Mode) (*model.Run, error)
	CompleteRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Tasks
	InsertTasks(ctx context.Context, tasks []model.Task) (int64, error)
	ListTasks(ctx context.Context, runID string) ([]model.Task, error)

	// Crawl cache
	GetCachedCrawl(ctx context.Context, siteURL string) (*CrawlEntry, error)
	SetCachedCrawl(ctx context.Context, siteURL string, pages []model.CrawledPage, ttl time.Duration) error
	DeleteExpiredCrawls(ctx context.Context) (int, error)

	// Feed cache
	GetFeedState(ctx context.Context, feedURL string) (*FeedState, error)
	SetFeedState(ctx context.Context, feedURL string, etag, lastModified string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
