package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pe-intel/internal/db"
	"github.com/sells-group/pe-intel/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres wraps an existing pool. The pool is shared with the persister,
// so the caller owns its lifecycle; Close here is a no-op.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS collection_runs (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	entity_type      TEXT NOT NULL,
	sources          JSONB NOT NULL,
	mode             TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'running',
	entities         INTEGER NOT NULL DEFAULT 0,
	tasks_total      INTEGER NOT NULL DEFAULT 0,
	tasks_ok         INTEGER NOT NULL DEFAULT 0,
	tasks_failed     INTEGER NOT NULL DEFAULT 0,
	tasks_skipped    INTEGER NOT NULL DEFAULT 0,
	items_persisted  INTEGER NOT NULL DEFAULT 0,
	items_updated    INTEGER NOT NULL DEFAULT 0,
	items_skipped    INTEGER NOT NULL DEFAULT 0,
	items_failed     INTEGER NOT NULL DEFAULT 0,
	requests_made    BIGINT NOT NULL DEFAULT 0,
	bytes_downloaded BIGINT NOT NULL DEFAULT 0,
	error            TEXT NOT NULL DEFAULT '',
	started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at     TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS collection_tasks (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id           TEXT NOT NULL REFERENCES collection_runs(id),
	entity_id        BIGINT NOT NULL,
	entity_name      TEXT NOT NULL,
	source           TEXT NOT NULL,
	success          BOOLEAN NOT NULL DEFAULT false,
	error_message    TEXT NOT NULL DEFAULT '',
	warnings         INTEGER NOT NULL DEFAULT 0,
	items            INTEGER NOT NULL DEFAULT 0,
	persisted        INTEGER NOT NULL DEFAULT 0,
	updated          INTEGER NOT NULL DEFAULT 0,
	skipped          INTEGER NOT NULL DEFAULT 0,
	failed           INTEGER NOT NULL DEFAULT 0,
	requests_made    BIGINT NOT NULL DEFAULT 0,
	bytes_downloaded BIGINT NOT NULL DEFAULT 0,
	started_at       TIMESTAMPTZ NOT NULL,
	completed_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_cache (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	site_url   TEXT NOT NULL UNIQUE,
	pages      JSONB NOT NULL,
	crawled_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS feed_cache (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	feed_url      TEXT NOT NULL UNIQUE,
	etag          TEXT NOT NULL DEFAULT '',
	last_modified TEXT NOT NULL DEFAULT '',
	checked_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_collection_runs_status ON collection_runs(status);
CREATE INDEX IF NOT EXISTS idx_collection_runs_started_at ON collection_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_collection_tasks_run_id ON collection_tasks(run_id);
CREATE INDEX IF NOT EXISTS idx_crawl_cache_expires_at ON crawl_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_crawl_cache_url_expires ON crawl_cache(site_url, expires_at DESC);
`

const selectRunColumns = `id, entity_type, sources, mode, status,
	entities, tasks_total, tasks_ok, tasks_failed, tasks_skipped,
	items_persisted, items_updated, items_skipped, items_failed,
	requests_made, bytes_downloaded, error, started_at, completed_at`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, entityType model.EntityType, sources []model.Source, mode model.Mode) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal sources")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO collection_runs (id, entity_type, sources, mode, status, started_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(entityType), sourcesJSON, string(mode), string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:         id,
		EntityType: entityType,
		Sources:    sources,
		Mode:       mode,
		Status:     model.RunStatusRunning,
		StartedAt:  now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, run *model.Run) error {
	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE collection_runs SET
			status = $1, entities = $2,
			tasks_total = $3, tasks_ok = $4, tasks_failed = $5, tasks_skipped = $6,
			items_persisted = $7, items_updated = $8, items_skipped = $9, items_failed = $10,
			requests_made = $11, bytes_downloaded = $12, error = $13, completed_at = $14
		 WHERE id = $15`,
		string(run.Status), run.Entities,
		run.TasksTotal, run.TasksOK, run.TasksFailed, run.TasksSkipped,
		run.ItemsPersisted, run.ItemsUpdated, run.ItemsSkipped, run.ItemsFailed,
		run.RequestsMade, run.BytesDownloaded, run.Error, *run.CompletedAt,
		run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectRunColumns+` FROM collection_runs WHERE id = $1`,
		runID,
	)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + selectRunColumns + ` FROM collection_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.EntityType != "" {
		query += fmt.Sprintf(` AND entity_type = $%d`, argIdx)
		args = append(args, string(filter.EntityType))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) InsertTasks(ctx context.Context, tasks []model.Task) (int64, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	columns := []string{
		"id", "run_id", "entity_id", "entity_name", "source",
		"success", "error_message", "warnings",
		"items", "persisted", "updated", "skipped", "failed",
		"requests_made", "bytes_downloaded", "started_at", "completed_at",
	}
	rows := make([][]any, 0, len(tasks))
	for _, t := range tasks {
		id := t.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows = append(rows, []any{
			id, t.RunID, t.EntityID, t.EntityName, string(t.Source),
			t.Success, t.ErrorMessage, t.Warnings,
			t.Items, t.Persisted, t.Updated, t.Skipped, t.Failed,
			t.RequestsMade, t.BytesDownloaded, t.StartedAt, t.CompletedAt,
		})
	}

	n, err := db.CopyFrom(ctx, s.pool, "collection_tasks", columns, rows)
	return n, eris.Wrap(err, "postgres: insert tasks")
}

func (s *PostgresStore) ListTasks(ctx context.Context, runID string) ([]model.Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, entity_id, entity_name, source,
			success, error_message, warnings,
			items, persisted, updated, skipped, failed,
			requests_made, bytes_downloaded, started_at, completed_at
		 FROM collection_tasks WHERE run_id = $1 ORDER BY started_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list tasks for run %s", runID)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan task")
		}
		tasks = append(tasks, *t)
	}
	return tasks, eris.Wrap(rows.Err(), "postgres: list tasks iterate")
}

func (s *PostgresStore) GetCachedCrawl(ctx context.Context, siteURL string) (*CrawlEntry, error) {
	var ce CrawlEntry
	var pagesJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, site_url, pages, crawled_at, expires_at FROM crawl_cache
		 WHERE site_url = $1 AND expires_at > now()
		 ORDER BY crawled_at DESC LIMIT 1`,
		siteURL,
	).Scan(&ce.ID, &ce.SiteURL, &pagesJSON, &ce.CrawledAt, &ce.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached crawl")
	}
	if err := json.Unmarshal(pagesJSON, &ce.Pages); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached pages")
	}
	return &ce, nil
}

func (s *PostgresStore) SetCachedCrawl(ctx context.Context, siteURL string, pages []model.CrawledPage, ttl time.Duration) error {
	id := uuid.New().String()
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	pagesJSON, err := json.Marshal(pages)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal pages")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO crawl_cache (id, site_url, pages, crawled_at, expires_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (site_url) DO UPDATE SET pages = $3, crawled_at = $4, expires_at = $5`,
		id, siteURL, pagesJSON, now, expiresAt,
	)
	return eris.Wrap(err, "postgres: set cached crawl")
}

func (s *PostgresStore) DeleteExpiredCrawls(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM crawl_cache WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired crawls")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetFeedState(ctx context.Context, feedURL string) (*FeedState, error) {
	var fs FeedState
	err := s.pool.QueryRow(ctx,
		`SELECT feed_url, etag, last_modified, checked_at FROM feed_cache WHERE feed_url = $1`,
		feedURL,
	).Scan(&fs.FeedURL, &fs.ETag, &fs.LastModified, &fs.CheckedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get feed state")
	}
	return &fs, nil
}

func (s *PostgresStore) SetFeedState(ctx context.Context, feedURL string, etag, lastModified string) error {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO feed_cache (id, feed_url, etag, last_modified, checked_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (feed_url) DO UPDATE SET etag = $3, last_modified = $4, checked_at = $5`,
		id, feedURL, etag, lastModified, now,
	)
	return eris.Wrap(err, "postgres: set feed state")
}

// scannable covers pgx.Row and pgx.Rows alike.
type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var sourcesJSON []byte

	err := row.Scan(
		&r.ID, &r.EntityType, &sourcesJSON, &r.Mode, &r.Status,
		&r.Entities, &r.TasksTotal, &r.TasksOK, &r.TasksFailed, &r.TasksSkipped,
		&r.ItemsPersisted, &r.ItemsUpdated, &r.ItemsSkipped, &r.ItemsFailed,
		&r.RequestsMade, &r.BytesDownloaded, &r.Error, &r.StartedAt, &r.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sourcesJSON, &r.Sources); err != nil {
		return nil, eris.Wrap(err, "unmarshal run sources")
	}
	return &r, nil
}

func scanTask(row scannable) (*model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID, &t.RunID, &t.EntityID, &t.EntityName, &t.Source,
		&t.Success, &t.ErrorMessage, &t.Warnings,
		&t.Items, &t.Persisted, &t.Updated, &t.Skipped, &t.Failed,
		&t.RequestsMade, &t.BytesDownloaded, &t.StartedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
