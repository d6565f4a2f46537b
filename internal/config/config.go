// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Listing    ListingConfig    `mapstructure:"listing"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	DB         DBConfig         `mapstructure:"db"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls the HTTP status API.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs the harvest worker pool.
type CrawlerConfig struct {
	Concurrency int     `mapstructure:"concurrency"`
	RateLimit   float64 `mapstructure:"rate_limit"`
	UserAgent   string  `mapstructure:"user_agent"`
	TestLimit   int     `mapstructure:"test_limit"`
}

// HTTPConfig configures outbound HTTP client behavior.
type HTTPConfig struct {
	TimeoutSeconds     int   `mapstructure:"timeout_seconds"`
	MaxRetries         int   `mapstructure:"max_retries"`
	BackoffInitialMs   int   `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs       int   `mapstructure:"backoff_max_ms"`
	MaxAttachmentBytes int64 `mapstructure:"max_attachment_bytes"`
}

// ListingConfig names the catalog listing sources tried in order.
type ListingConfig struct {
	APIURL     string `mapstructure:"api_url"`
	CatalogURL string `mapstructure:"catalog_url"`
	BaseURL    string `mapstructure:"base_url"`
}

// BrowserConfig configures the headless listing fallback.
type BrowserConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// ExtractionConfig governs the feature-extraction stage.
type ExtractionConfig struct {
	Model             string             `mapstructure:"model"`
	APIKey            string             `mapstructure:"api_key"`
	Concurrency       int                `mapstructure:"concurrency"`
	RateLimit         float64            `mapstructure:"rate_limit"`
	MaxRetries        int                `mapstructure:"max_retries"`
	RetryDelayMs      int                `mapstructure:"retry_delay_ms"`
	MaxPages          int                `mapstructure:"max_pages"`
	MaxTextChars      int                `mapstructure:"max_text_chars"`
	MinTextChars      int                `mapstructure:"min_text_chars"`
	ConfidenceWeights map[string]float64 `mapstructure:"confidence_weights"`
}

// RetryDelay returns the base backoff between model call attempts.
func (c ExtractionConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GUIDANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.concurrency", 5)
	v.SetDefault("crawler.rate_limit", 2.0)
	v.SetDefault("crawler.user_agent", "guidance-harvester/0.1")
	v.SetDefault("crawler.test_limit", 0)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.max_attachment_bytes", 64<<20)
	v.SetDefault("listing.api_url", "https://www.fda.gov/files/api/datatables/static/search-for-guidance.json")
	v.SetDefault("listing.catalog_url", "https://www.fda.gov/regulatory-information/search-fda-guidance-documents")
	v.SetDefault("listing.base_url", "https://www.fda.gov")
	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("db.max_open_conns", 8)
	v.SetDefault("extraction.model", "gemini-2.0-flash")
	v.SetDefault("extraction.concurrency", 2)
	v.SetDefault("extraction.rate_limit", 0.5)
	v.SetDefault("extraction.max_retries", 3)
	v.SetDefault("extraction.retry_delay_ms", 2000)
	v.SetDefault("extraction.max_pages", 100)
	v.SetDefault("extraction.max_text_chars", 50000)
	v.SetDefault("extraction.min_text_chars", 100)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.RateLimit <= 0 {
		return fmt.Errorf("crawler.rate_limit must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Extraction.Concurrency <= 0 {
		return fmt.Errorf("extraction.concurrency must be > 0")
	}
	if c.Extraction.RateLimit <= 0 {
		return fmt.Errorf("extraction.rate_limit must be > 0")
	}
	var sum float64
	for field, w := range c.Extraction.ConfidenceWeights {
		if w < 0 {
			return fmt.Errorf("extraction.confidence_weights.%s must be >= 0", field)
		}
		sum += w
	}
	if sum > 1.0+1e-9 {
		return fmt.Errorf("extraction.confidence_weights must sum to at most 1.0")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout config into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
