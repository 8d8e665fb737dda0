package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pe-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local runs
// where Postgres only hosts the entity tables.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS collection_runs (
	id               TEXT PRIMARY KEY,
	entity_type      TEXT NOT NULL,
	sources          TEXT NOT NULL,
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
	requests_made    INTEGER NOT NULL DEFAULT 0,
	bytes_downloaded INTEGER NOT NULL DEFAULT 0,
	error            TEXT NOT NULL DEFAULT '',
	started_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at     DATETIME
);

CREATE TABLE IF NOT EXISTS collection_tasks (
	id               TEXT PRIMARY KEY,
	run_id           TEXT NOT NULL REFERENCES collection_runs(id),
	entity_id        INTEGER NOT NULL,
	entity_name      TEXT NOT NULL,
	source           TEXT NOT NULL,
	success          INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT NOT NULL DEFAULT '',
	warnings         INTEGER NOT NULL DEFAULT 0,
	items            INTEGER NOT NULL DEFAULT 0,
	persisted        INTEGER NOT NULL DEFAULT 0,
	updated          INTEGER NOT NULL DEFAULT 0,
	skipped          INTEGER NOT NULL DEFAULT 0,
	failed           INTEGER NOT NULL DEFAULT 0,
	requests_made    INTEGER NOT NULL DEFAULT 0,
	bytes_downloaded INTEGER NOT NULL DEFAULT 0,
	started_at       DATETIME NOT NULL,
	completed_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_cache (
	id         TEXT PRIMARY KEY,
	site_url   TEXT NOT NULL UNIQUE,
	pages      TEXT NOT NULL,
	crawled_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS feed_cache (
	id            TEXT PRIMARY KEY,
	feed_url      TEXT NOT NULL UNIQUE,
	etag          TEXT NOT NULL DEFAULT '',
	last_modified TEXT NOT NULL DEFAULT '',
	checked_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_collection_runs_status ON collection_runs(status);
CREATE INDEX IF NOT EXISTS idx_collection_runs_started_at ON collection_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_collection_tasks_run_id ON collection_tasks(run_id);
CREATE INDEX IF NOT EXISTS idx_crawl_cache_expires_at ON crawl_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, entityType model.EntityType, sources []model.Source, mode model.Mode) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal sources")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO collection_runs (id, entity_type, sources, mode, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(entityType), string(sourcesJSON), string(mode), string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) CompleteRun(ctx context.Context, run *model.Run) error {
	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE collection_runs SET
			status = ?, entities = ?,
			tasks_total = ?, tasks_ok = ?, tasks_failed = ?, tasks_skipped = ?,
			items_persisted = ?, items_updated = ?, items_skipped = ?, items_failed = ?,
			requests_made = ?, bytes_downloaded = ?, error = ?, completed_at = ?
		 WHERE id = ?`,
		string(run.Status), run.Entities,
		run.TasksTotal, run.TasksOK, run.TasksFailed, run.TasksSkipped,
		run.ItemsPersisted, run.ItemsUpdated, run.ItemsSkipped, run.ItemsFailed,
		run.RequestsMade, run.BytesDownloaded, run.Error, *run.CompletedAt,
		run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectRunColumns+` FROM collection_runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + selectRunColumns + ` FROM collection_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.EntityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, string(filter.EntityType))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) InsertTasks(ctx context.Context, tasks []model.Task) (int64, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert tasks")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO collection_tasks
			(id, run_id, entity_id, entity_name, source,
			 success, error_message, warnings,
			 items, persisted, updated, skipped, failed,
			 requests_made, bytes_downloaded, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert tasks")
	}
	defer stmt.Close()

	for _, t := range tasks {
		id := t.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx,
			id, t.RunID, t.EntityID, t.EntityName, string(t.Source),
			t.Success, t.ErrorMessage, t.Warnings,
			t.Items, t.Persisted, t.Updated, t.Skipped, t.Failed,
			t.RequestsMade, t.BytesDownloaded, t.StartedAt, t.CompletedAt,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert task for %s", t.EntityName)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert tasks")
	}
	return int64(len(tasks)), nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context, runID string) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, entity_id, entity_name, source,
			success, error_message, warnings,
			items, persisted, updated, skipped, failed,
			requests_made, bytes_downloaded, started_at, completed_at
		 FROM collection_tasks WHERE run_id = ? ORDER BY started_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list tasks for run %s", runID)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan task")
		}
		tasks = append(tasks, *t)
	}
	return tasks, eris.Wrap(rows.Err(), "sqlite: list tasks iterate")
}

func (s *SQLiteStore) GetCachedCrawl(ctx context.Context, siteURL string) (*CrawlEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, site_url, pages, crawled_at, expires_at FROM crawl_cache
		 WHERE site_url = ? AND expires_at > datetime('now')
		 ORDER BY crawled_at DESC LIMIT 1`,
		siteURL,
	)

	var ce CrawlEntry
	var pagesJSON string
	err := row.Scan(&ce.ID, &ce.SiteURL, &pagesJSON, &ce.CrawledAt, &ce.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached crawl")
	}
	if err := json.Unmarshal([]byte(pagesJSON), &ce.Pages); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached pages")
	}
	return &ce, nil
}

func (s *SQLiteStore) SetCachedCrawl(ctx context.Context, siteURL string, pages []model.CrawledPage, ttl time.Duration) error {
	id := uuid.New().String()
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	pagesJSON, err := json.Marshal(pages)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal pages")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO crawl_cache (id, site_url, pages, crawled_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(site_url) DO UPDATE SET
			pages = excluded.pages, crawled_at = excluded.crawled_at, expires_at = excluded.expires_at`,
		id, siteURL, string(pagesJSON), now, expiresAt,
	)
	return eris.Wrap(err, "sqlite: set cached crawl")
}

func (s *SQLiteStore) DeleteExpiredCrawls(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM crawl_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired crawls")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) GetFeedState(ctx context.Context, feedURL string) (*FeedState, error) {
	var fs FeedState
	err := s.db.QueryRowContext(ctx,
		`SELECT feed_url, etag, last_modified, checked_at FROM feed_cache WHERE feed_url = ?`,
		feedURL,
	).Scan(&fs.FeedURL, &fs.ETag, &fs.LastModified, &fs.CheckedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get feed state")
	}
	return &fs, nil
}

func (s *SQLiteStore) SetFeedState(ctx context.Context, feedURL string, etag, lastModified string) error {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feed_cache (id, feed_url, etag, last_modified, checked_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(feed_url) DO UPDATE SET
			etag = excluded.etag, last_modified = excluded.last_modified, checked_at = excluded.checked_at`,
		id, feedURL, etag, lastModified, now,
	)
	return eris.Wrap(err, "sqlite: set feed state")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
