// Package config loads and validates crawl engine configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob the engine reads, loaded from file and
// SEOSCOPE_* environment variables.
type Config struct {
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Render   RenderConfig   `mapstructure:"render"`
	Server   ServerConfig   `mapstructure:"server"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// CrawlConfig governs scope, limits, and politeness overrides.
type CrawlConfig struct {
	SeedURL         string   `mapstructure:"seed_url"`
	MaxPages        int      `mapstructure:"max_pages"`
	MaxDepth        int      `mapstructure:"max_depth"`
	Concurrency     int      `mapstructure:"concurrency"`
	IncludePatterns []string `mapstructure:"include_patterns"`
	ExcludePatterns []string `mapstructure:"exclude_patterns"`
	PatternsAreRe   bool     `mapstructure:"patterns_are_regex"`
	OverrideRobots  bool     `mapstructure:"override_robots"`
	IgnoreNoindex   bool     `mapstructure:"ignore_noindex"`
	UseSitemap      bool     `mapstructure:"use_sitemap"`
	DelayMinMs      int      `mapstructure:"delay_min_ms"`
	DelayMaxMs      int      `mapstructure:"delay_max_ms"`
}

// HTTPConfig configures the fetch client.
type HTTPConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRedirects   int    `mapstructure:"max_redirects"`
}

// RenderConfig configures the headless rendering escalation path.
type RenderConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	MaxParallel    int     `mapstructure:"max_parallel"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	DomainQPS      float64 `mapstructure:"domain_qps"`
	MinHTMLBytes   int     `mapstructure:"min_html_bytes"`
}

// ServerConfig controls the observability HTTP server.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// ArchiveConfig selects the raw HTML archive backend.
type ArchiveConfig struct {
	Backend string `mapstructure:"backend"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
}

// DBConfig controls session persistence.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PubSubConfig holds the completion-event topic metadata.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	MinIntervalMs int `mapstructure:"min_interval_ms"`
}

// Load builds a Config from disk and environment. Overrides run after
// unmarshal and before validation, so CLI flags can supply required values.
func Load(path string, overrides ...func(*Config)) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SEOSCOPE")
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
	for _, override := range overrides {
		override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.seed_url", "")
	v.SetDefault("crawl.max_pages", 100)
	v.SetDefault("crawl.max_depth", 3)
	v.SetDefault("crawl.concurrency", 4)
	v.SetDefault("crawl.use_sitemap", false)
	v.SetDefault("crawl.delay_min_ms", 500)
	v.SetDefault("crawl.delay_max_ms", 2000)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_redirects", 10)
	v.SetDefault("render.enabled", false)
	v.SetDefault("render.max_parallel", 1)
	v.SetDefault("render.timeout_seconds", 30)
	v.SetDefault("render.domain_qps", 1.0)
	v.SetDefault("render.min_html_bytes", 1024)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("archive.backend", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("progress.min_interval_ms", 100)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawl.SeedURL == "" {
		return fmt.Errorf("crawl.seed_url is required")
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if c.Crawl.MaxDepth < 0 {
		return fmt.Errorf("crawl.max_depth must be >= 0")
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if c.Crawl.DelayMinMs < 0 || c.Crawl.DelayMaxMs < c.Crawl.DelayMinMs {
		return fmt.Errorf("crawl.delay_max_ms must be >= crawl.delay_min_ms >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Render.Enabled && c.Render.MaxParallel <= 0 {
		return fmt.Errorf("render.max_parallel must be > 0 when rendering is enabled")
	}
	if c.Server.Enabled && c.Server.Listen == "" {
		return fmt.Errorf("server.listen must be set when the server is enabled")
	}
	return nil
}

// HTTPTimeout returns the fetch timeout as a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// DelayBounds returns the politeness delay window.
func (c Config) DelayBounds() (time.Duration, time.Duration) {
	return time.Duration(c.Crawl.DelayMinMs) * time.Millisecond,
		time.Duration(c.Crawl.DelayMaxMs) * time.Millisecond
}

// RenderTimeout returns the per-page rendering budget.
func (c Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutSeconds) * time.Second
}

// ProgressInterval returns the minimum gap between progress flushes.
func (c Config) ProgressInterval() time.Duration {
	return time.Duration(c.Progress.MinIntervalMs) * time.Millisecond
}
