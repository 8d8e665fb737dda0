package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap/zapcore"
)

// Validate checks that the configuration is usable for the given command mode.
// All problems are reported at once rather than one per run.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "collect", "serve", "migrate", "worker", "runs", "status", "seed", "export":
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			problems = append(problems, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
		}
		if c.Store.Driver == "sqlite" && c.Store.SQLitePath == "" {
			problems = append(problems, "store.sqlite_path is required when store.driver is sqlite")
		}
	case "schedule":
		// Talks to Temporal only.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	// Entity tables live in Postgres even when run tracking uses SQLite, so
	// any mode that reads or writes them needs a connection string. Only run
	// inspection and store migration can work off the local file alone.
	switch mode {
	case "collect", "serve", "worker", "status", "seed", "export":
		if c.Database.URL == "" {
			problems = append(problems, "database.url is required (set DATABASE_URL)")
		}
	case "migrate", "runs":
		if c.Store.Driver != "sqlite" && c.Database.URL == "" {
			problems = append(problems, "database.url is required (set DATABASE_URL)")
		}
	}

	if c.Collect.MaxConcurrency < 1 || c.Collect.MaxConcurrency > 64 {
		problems = append(problems, "collect.max_concurrency must be between 1 and 64")
	}
	if c.Collect.MaxRequestsPerSecond <= 0 {
		problems = append(problems, "collect.max_requests_per_second must be > 0")
	}
	if c.Collect.MaxRetries < 0 || c.Collect.MaxRetries > 10 {
		problems = append(problems, "collect.max_retries must be between 0 and 10")
	}
	if c.Collect.RetryBackoffFactor < 1 {
		problems = append(problems, "collect.retry_backoff_factor must be >= 1")
	}
	if c.Collect.MaxAgeDays < 0 {
		problems = append(problems, "collect.max_age_days must be >= 0")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("log.level %q is not a valid zap level", c.Log.Level))
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "worker", "schedule":
		if c.Temporal.HostPort == "" {
			problems = append(problems, "temporal.host_port is required")
		}
		if c.Temporal.TaskQueue == "" {
			problems = append(problems, "temporal.task_queue is required")
		}
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}
