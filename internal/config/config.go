// Package config loads application configuration from file and environment
// and owns global logger initialization.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. All values are loaded
// once per run and treated as immutable afterwards.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Sources      SourcesConfig      `yaml:"sources" mapstructure:"sources"`
	Validator    ValidatorConfig    `yaml:"validator" mapstructure:"validator"`
	Dedupe       DedupeConfig       `yaml:"dedupe" mapstructure:"dedupe"`
	Scoring      ScoringConfig      `yaml:"scoring" mapstructure:"scoring"`
	Intelligence IntelligenceConfig `yaml:"intelligence" mapstructure:"intelligence"`
	Taxonomy     TaxonomyConfig     `yaml:"taxonomy" mapstructure:"taxonomy"`
	Collect      CollectConfig      `yaml:"collect" mapstructure:"collect"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend. The pool settings only
// apply to the postgres driver.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourceConfig configures one external source.
type SourceConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// RateLimit allows at most RateLimit requests per rolling WindowSecs
	// seconds against this source.
	RateLimit   int `yaml:"rate_limit" mapstructure:"rate_limit"`
	WindowSecs  int `yaml:"window_secs" mapstructure:"window_secs"`
	MaxWaitSecs int `yaml:"max_wait_secs" mapstructure:"max_wait_secs"`

	// Quality is the expected result quality: high, medium, or low.
	Quality string `yaml:"quality" mapstructure:"quality"`

	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SourcesConfig holds per-source settings plus the declared reliability
// order used to break strategy priority ties.
type SourcesConfig struct {
	WebSearch SourceConfig `yaml:"websearch" mapstructure:"websearch"`
	Maps      SourceConfig `yaml:"maps" mapstructure:"maps"`
	Directory SourceConfig `yaml:"directory" mapstructure:"directory"`

	ReliabilityOrder []string `yaml:"reliability_order" mapstructure:"reliability_order"`

	// BackoffBaseSecs and BackoffCapSecs shape the exponential backoff
	// applied after throttling signals.
	BackoffBaseSecs int `yaml:"backoff_base_secs" mapstructure:"backoff_base_secs"`
	BackoffCapSecs  int `yaml:"backoff_cap_secs" mapstructure:"backoff_cap_secs"`
}

// ValidatorConfig configures the rule-based lead validator.
type ValidatorConfig struct {
	InvalidKeywords  []string `yaml:"invalid_keywords" mapstructure:"invalid_keywords"`
	InvalidDomains   []string `yaml:"invalid_domains" mapstructure:"invalid_domains"`
	ListiclePatterns []string `yaml:"listicle_patterns" mapstructure:"listicle_patterns"`
	MinNameLength    int      `yaml:"min_name_length" mapstructure:"min_name_length"`

	// Strictness controls the sector-relevance rule: "high" rejects leads
	// with no sector keyword match; anything else accepts them with a
	// quality flag.
	Strictness string `yaml:"strictness" mapstructure:"strictness"`
}

// DedupeConfig configures fingerprint normalization.
type DedupeConfig struct {
	// DefaultCountryCode is stripped from phone numbers during
	// normalization (e.g. "55" for Brazil).
	DefaultCountryCode string `yaml:"default_country_code" mapstructure:"default_country_code"`
}

// ScoringConfig holds the deterministic scoring weights.
type ScoringConfig struct {
	PhoneWeight       float64 `yaml:"phone_weight" mapstructure:"phone_weight"`
	WebsiteWeight     float64 `yaml:"website_weight" mapstructure:"website_weight"`
	NoWebsiteBonus    float64 `yaml:"no_website_bonus" mapstructure:"no_website_bonus"`
	KeywordWeight     float64 `yaml:"keyword_weight" mapstructure:"keyword_weight"`
	MaxKeywordPoints  float64 `yaml:"max_keyword_points" mapstructure:"max_keyword_points"`
	IntelligenceBlend float64 `yaml:"intelligence_blend" mapstructure:"intelligence_blend"`
}

// IntelligenceConfig configures the optional intelligence analyzer.
type IntelligenceConfig struct {
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	Key            string `yaml:"key" mapstructure:"key"`
	Model          string `yaml:"model" mapstructure:"model"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxConcurrency int    `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// Timeout returns the per-call analyzer timeout.
func (c IntelligenceConfig) Timeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// TaxonomyConfig points at the sector keyword taxonomy file.
type TaxonomyConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// CollectConfig holds collection-run defaults.
type CollectConfig struct {
	MaxLeads     int     `yaml:"max_leads" mapstructure:"max_leads"`
	QualityFloor float64 `yaml:"quality_floor" mapstructure:"quality_floor"`
}

// ServerConfig configures the trigger server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "prospector.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	v.SetDefault("sources.websearch.enabled", true)
	v.SetDefault("sources.websearch.rate_limit", 30)
	v.SetDefault("sources.websearch.window_secs", 60)
	v.SetDefault("sources.websearch.max_wait_secs", 30)
	v.SetDefault("sources.websearch.quality", "medium")
	v.SetDefault("sources.websearch.base_url", "https://s.jina.ai")
	v.SetDefault("sources.maps.enabled", true)
	v.SetDefault("sources.maps.rate_limit", 10)
	v.SetDefault("sources.maps.window_secs", 60)
	v.SetDefault("sources.maps.max_wait_secs", 30)
	v.SetDefault("sources.maps.quality", "high")
	v.SetDefault("sources.maps.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("sources.directory.enabled", true)
	v.SetDefault("sources.directory.rate_limit", 20)
	v.SetDefault("sources.directory.window_secs", 60)
	v.SetDefault("sources.directory.max_wait_secs", 15)
	v.SetDefault("sources.directory.quality", "low")
	v.SetDefault("sources.directory.base_url", "https://www.telelistas.net")
	v.SetDefault("sources.reliability_order", []string{"maps", "websearch", "directory"})
	v.SetDefault("sources.backoff_base_secs", 2)
	v.SetDefault("sources.backoff_cap_secs", 120)

	v.SetDefault("validator.min_name_length", 3)
	v.SetDefault("validator.strictness", "normal")
	v.SetDefault("validator.invalid_keywords", DefaultInvalidKeywords)
	v.SetDefault("validator.invalid_domains", DefaultInvalidDomains)
	v.SetDefault("validator.listicle_patterns", DefaultListiclePatterns)

	v.SetDefault("dedupe.default_country_code", "55")

	v.SetDefault("scoring.phone_weight", 20)
	v.SetDefault("scoring.website_weight", 10)
	v.SetDefault("scoring.no_website_bonus", 25)
	v.SetDefault("scoring.keyword_weight", 5)
	v.SetDefault("scoring.max_keyword_points", 25)
	v.SetDefault("scoring.intelligence_blend", 0.4)

	v.SetDefault("intelligence.enabled", false)
	v.SetDefault("intelligence.model", "claude-haiku-4-5-20251001")
	v.SetDefault("intelligence.timeout_secs", 10)
	v.SetDefault("intelligence.max_concurrency", 4)

	v.SetDefault("taxonomy.path", "sectors.yaml")

	v.SetDefault("collect.max_leads", 50)
	v.SetDefault("collect.quality_floor", 40)

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
