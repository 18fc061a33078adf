package crawl

import (
	"fmt"
)

// Config holds the settings for one crawl session. It is decoupled from
// Viper so the engine can be constructed and tested independently.
type Config struct {
	SeedURL     string
	MaxPages    int
	MaxDepth    int
	Concurrency int
	// OverrideRobots crawls robots-disallowed URLs anyway; affected pages are
	// flagged non-indexable.
	OverrideRobots bool
	// IgnoreNoindex keeps crawling and linking noindex pages; they are still
	// marked non-indexable.
	IgnoreNoindex bool
	// UseSitemap injects sitemap-derived URLs into the frontier at depth 0.
	UseSitemap bool
}

// Validate rejects configurations that would misbehave before any fetch
// occurs.
func (c Config) Validate() error {
	if _, err := NormalizeURL(c.SeedURL); err != nil {
		return fmt.Errorf("seed url: %w", err)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be > 0")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth must be >= 0")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be > 0")
	}
	return nil
}
