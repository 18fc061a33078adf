package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
crawl:
  seed_url: https://example.com/
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://example.com/", cfg.Crawl.SeedURL)
	require.Equal(t, 100, cfg.Crawl.MaxPages)
	require.Equal(t, 3, cfg.Crawl.MaxDepth)
	require.Equal(t, 4, cfg.Crawl.Concurrency)
	require.Equal(t, 15*time.Second, cfg.HTTPTimeout())
	require.True(t, cfg.Logging.Development)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
crawl:
  seed_url: https://example.com/
  max_pages: 25
  max_depth: 1
  include_patterns:
    - "*/blog/*"
  override_robots: true
http:
  timeout_seconds: 5
server:
  enabled: true
  listen: ":9090"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 25, cfg.Crawl.MaxPages)
	require.Equal(t, 1, cfg.Crawl.MaxDepth)
	require.Equal(t, []string{"*/blog/*"}, cfg.Crawl.IncludePatterns)
	require.True(t, cfg.Crawl.OverrideRobots)
	require.Equal(t, 5*time.Second, cfg.HTTPTimeout())
	require.Equal(t, ":9090", cfg.Server.Listen)
}

func TestLoadRequiresSeed(t *testing.T) {
	path := writeConfig(t, `
crawl:
  max_pages: 10
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "seed_url")
}

func TestLoadOverrideFuncsRunBeforeValidation(t *testing.T) {
	cfg, err := Load("", func(c *Config) {
		c.Crawl.SeedURL = "https://flag.example.com/"
		c.Server.Enabled = true
		c.Server.Listen = ":8088"
	})
	require.NoError(t, err)
	require.Equal(t, "https://flag.example.com/", cfg.Crawl.SeedURL)
	require.Equal(t, ":8088", cfg.Server.Listen)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SEOSCOPE_CRAWL_SEED_URL", "https://env.example.com/")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "https://env.example.com/", cfg.Crawl.SeedURL)
}

func TestValidateDelayBounds(t *testing.T) {
	cfg := Config{
		Crawl: CrawlConfig{
			SeedURL:     "https://example.com/",
			MaxPages:    10,
			Concurrency: 1,
			DelayMinMs:  2000,
			DelayMaxMs:  500,
		},
		HTTP: HTTPConfig{TimeoutSeconds: 10},
	}
	require.Error(t, cfg.Validate())
}

func TestDelayBounds(t *testing.T) {
	cfg := Config{Crawl: CrawlConfig{DelayMinMs: 500, DelayMaxMs: 2000}}
	minDelay, maxDelay := cfg.DelayBounds()
	require.Equal(t, 500*time.Millisecond, minDelay)
	require.Equal(t, 2*time.Second, maxDelay)
}
