package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Collect    CollectConfig    `yaml:"collect" mapstructure:"collect"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	News       NewsConfig       `yaml:"news" mapstructure:"news"`
	Render     RenderConfig     `yaml:"render" mapstructure:"render"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Temporal   TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig configures the Postgres connection pool.
type DatabaseConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"`
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// CollectConfig holds the knobs shared by all collection runs.
type CollectConfig struct {
	MaxConcurrency       int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	MaxRequestsPerSecond float64 `yaml:"max_requests_per_second" mapstructure:"max_requests_per_second"`
	MaxRetries           int     `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffFactor   float64 `yaml:"retry_backoff_factor" mapstructure:"retry_backoff_factor"`
	UserAgent            string  `yaml:"user_agent" mapstructure:"user_agent"`
	MaxAgeDays           int     `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// AnthropicConfig holds Anthropic API settings for LLM extraction.
type AnthropicConfig struct {
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	ModelFast string `yaml:"model_fast" mapstructure:"model_fast"`
	ModelDeep string `yaml:"model_deep" mapstructure:"model_deep"`
}

// NewsConfig holds the news aggregator API key.
type NewsConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// RenderConfig holds the headless render service settings.
// Leave BaseURL empty to disable the JS rendering fallback. The circuit
// fields tune the breaker that sidelines the service after repeated
// failures; zero keeps the defaults.
type RenderConfig struct {
	BaseURL                 string `yaml:"base_url" mapstructure:"base_url"`
	APIKey                  string `yaml:"api_key" mapstructure:"api_key"`
	CircuitFailureThreshold int    `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSeconds     int    `yaml:"circuit_reset_seconds" mapstructure:"circuit_reset_seconds"`
}

// SalesforceConfig holds Salesforce client-credentials auth settings.
type SalesforceConfig struct {
	Domain         string `yaml:"domain" mapstructure:"domain"`
	ConsumerKey    string `yaml:"consumer_key" mapstructure:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret" mapstructure:"consumer_secret"`
}

// NotionConfig holds Notion API credentials and board database IDs.
type NotionConfig struct {
	Token       string `yaml:"token" mapstructure:"token"`
	DealsDB     string `yaml:"deals_db" mapstructure:"deals_db"`
	ProspectsDB string `yaml:"prospects_db" mapstructure:"prospects_db"`
}

// ExportConfig configures file exports.
type ExportConfig struct {
	XLSXDir string `yaml:"xlsx_dir" mapstructure:"xlsx_dir"`
}

// TemporalConfig configures the scheduled collection worker.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. A non-empty path names
// an explicit config file, which must exist; otherwise config.yaml is picked
// up from the working directory when present.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("PE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare aliases for the envs operators actually set
	v.BindEnv("database.url", "PE_DATABASE_URL", "DATABASE_URL")
	v.BindEnv("anthropic.api_key", "PE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("news.api_key", "PE_NEWS_API_KEY", "NEWS_API_KEY")
	v.BindEnv("collect.max_concurrency", "PE_COLLECT_MAX_CONCURRENCY", "MAX_CONCURRENCY")
	v.BindEnv("collect.max_requests_per_second", "PE_COLLECT_MAX_REQUESTS_PER_SECOND", "MAX_REQUESTS_PER_SECOND")
	v.BindEnv("collect.max_retries", "PE_COLLECT_MAX_RETRIES", "MAX_RETRIES")
	v.BindEnv("collect.retry_backoff_factor", "PE_COLLECT_RETRY_BACKOFF_FACTOR", "RETRY_BACKOFF_FACTOR")
	v.BindEnv("log.level", "PE_LOG_LEVEL", "LOG_LEVEL")

	// Defaults
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "pe-intel.db")
	v.SetDefault("collect.max_concurrency", 4)
	v.SetDefault("collect.max_requests_per_second", 5.0)
	v.SetDefault("collect.max_retries", 3)
	v.SetDefault("collect.retry_backoff_factor", 2.0)
	v.SetDefault("collect.user_agent", "Sells Advisors PE Research blake@sellsadvisors.com")
	v.SetDefault("collect.max_age_days", 7)
	v.SetDefault("anthropic.model_fast", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.model_deep", "claude-sonnet-4-5-20250929")
	v.SetDefault("export.xlsx_dir", ".")
	v.SetDefault("temporal.host_port", "127.0.0.1:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "pe-collect")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file. Only the implicit search may come up empty; an
	// explicitly named file that is missing is an operator error.
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
