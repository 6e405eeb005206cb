package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Wikidata WikidataConfig `yaml:"wikidata" mapstructure:"wikidata"`
	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// SourceConfig selects the database the peaks are read from.
type SourceConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Lang        string `yaml:"lang" mapstructure:"lang"`
}

// WikidataConfig holds endpoint and query settings.
type WikidataConfig struct {
	SparqlURL    string  `yaml:"sparql_url" mapstructure:"sparql_url"`
	SearchURL    string  `yaml:"search_url" mapstructure:"search_url"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	Lang         string  `yaml:"lang" mapstructure:"lang"`
	LabelLangs   string  `yaml:"label_langs" mapstructure:"label_langs"`
	LabelLimit   int     `yaml:"label_limit" mapstructure:"label_limit"`
	SearchLimit  int     `yaml:"search_limit" mapstructure:"search_limit"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// RetryConfig configures the HTTP retry policy.
type RetryConfig struct {
	MaxAttempts        int `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffMs          int `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	RateLimitBackoffMs int `yaml:"rate_limit_backoff_ms" mapstructure:"rate_limit_backoff_ms"`
}

// CacheConfig selects where resolved locations are persisted.
type CacheConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	Path          string `yaml:"path" mapstructure:"path"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	Table         string `yaml:"table" mapstructure:"table"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	RedisHash     string `yaml:"redis_hash" mapstructure:"redis_hash"`
}

// OutputConfig configures the generated SQL patch.
type OutputConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PipelineConfig configures the per-peak loop.
type PipelineConfig struct {
	DelayMs       int    `yaml:"delay_ms" mapstructure:"delay_ms"`
	MissingLimit  int    `yaml:"missing_limit" mapstructure:"missing_limit"`
	OverridesFile string `yaml:"overrides_file" mapstructure:"overrides_file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PEAKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("source.database_url", "PEAKS_SOURCE_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, eris.Wrap(err, "config: bind DATABASE_URL")
	}

	// Defaults
	v.SetDefault("source.driver", "postgres")
	v.SetDefault("source.lang", "pl")
	v.SetDefault("wikidata.sparql_url", "https://query.wikidata.org/sparql")
	v.SetDefault("wikidata.search_url", "https://www.wikidata.org/w/api.php")
	v.SetDefault("wikidata.user_agent", "PeakGuideCoordsBot/1.1 (local script; contact: none)")
	v.SetDefault("wikidata.lang", "pl")
	v.SetDefault("wikidata.label_langs", "pl,en")
	v.SetDefault("wikidata.label_limit", 8)
	v.SetDefault("wikidata.search_limit", 8)
	v.SetDefault("wikidata.timeout_secs", 45)
	v.SetDefault("wikidata.rate_limit_rps", 5)
	v.SetDefault("retry.max_attempts", 4)
	v.SetDefault("retry.backoff_ms", 1200)
	v.SetDefault("retry.rate_limit_backoff_ms", 2000)
	v.SetDefault("cache.driver", "file")
	v.SetDefault("cache.path", "scripts/.wikidata_cache.json")
	v.SetDefault("cache.database_url", "")
	v.SetDefault("cache.table", "wikidata_cache")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.redis_hash", "peak-enrich:wikidata")
	v.SetDefault("output.path", "coords_update.sql")
	v.SetDefault("pipeline.delay_ms", 150)
	v.SetDefault("pipeline.missing_limit", 60)
	v.SetDefault("pipeline.overrides_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command depends on. mode is "generate"
// (needs a data source) or "lookup" (network and cache only).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "generate":
		if c.Source.DatabaseURL == "" {
			errs = append(errs, "source.database_url is required (set DATABASE_URL)")
		}
		if c.Output.Path == "" {
			errs = append(errs, "output.path is required")
		}
	case "lookup":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Wikidata.SparqlURL == "" || c.Wikidata.SearchURL == "" {
		errs = append(errs, "wikidata.sparql_url and wikidata.search_url are required")
	}
	if c.Wikidata.LabelLimit < 1 || c.Wikidata.SearchLimit < 1 {
		errs = append(errs, "wikidata.label_limit and wikidata.search_limit must be >= 1")
	}
	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 20 {
		errs = append(errs, "retry.max_attempts must be between 1 and 20")
	}
	if c.Pipeline.DelayMs < 0 {
		errs = append(errs, "pipeline.delay_ms must be >= 0")
	}
	switch c.Cache.Driver {
	case "file", "sqlite":
		if c.Cache.Path == "" {
			errs = append(errs, fmt.Sprintf("cache.path is required for the %s driver", c.Cache.Driver))
		}
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, "cache.redis_addr is required for the redis driver")
		}
	case "postgres":
		if c.Cache.DatabaseURL == "" && c.Source.DatabaseURL == "" {
			errs = append(errs, "cache.database_url or source.database_url is required for the postgres driver")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("cache.driver %q is not supported", c.Cache.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
