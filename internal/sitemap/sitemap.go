// Package sitemap discovers seed URLs from a site's XML sitemaps.
package sitemap

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	maxSitemapBody  = 10 << 20
	maxIndexDepth   = 3
	maxDiscoverURLs = 50000
)

// wellKnownPaths are tried when robots.txt lists no sitemaps.
var wellKnownPaths = []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemaps.xml"}

// Config tunes sitemap discovery.
type Config struct {
	UserAgent    string
	FetchTimeout time.Duration
}

// Discoverer finds page URLs via robots.txt Sitemap directives and
// well-known sitemap locations. It implements crawl.SitemapSource.
type Discoverer struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger
}

// NewDiscoverer builds a Discoverer.
func NewDiscoverer(cfg Config, logger *zap.Logger) *Discoverer {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		client: &http.Client{Timeout: cfg.FetchTimeout},
		cfg:    cfg,
		logger: logger,
	}
}

type urlset struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapindex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Discover returns page URLs from the seed's sitemaps. Index files recurse,
// gzip payloads are transparently decoded, and URLs from other origins are
// dropped. Failures return whatever was found so far; a site without
// sitemaps simply yields nothing.
func (d *Discoverer) Discover(ctx context.Context, seedURL string) []string {
	seed, err := url.Parse(seedURL)
	if err != nil {
		return nil
	}

	sitemapURLs := d.fromRobots(ctx, seed)
	if len(sitemapURLs) == 0 {
		for _, p := range wellKnownPaths {
			sitemapURLs = append(sitemapURLs, (&url.URL{Scheme: seed.Scheme, Host: seed.Host, Path: p}).String())
		}
	}

	var pages []string
	seen := map[string]struct{}{}
	for _, sm := range sitemapURLs {
		pages = d.walk(ctx, seed, sm, pages, seen, 0)
		if len(pages) >= maxDiscoverURLs {
			break
		}
	}
	return pages
}

// fromRobots collects Sitemap: directives from the origin's robots.txt.
func (d *Discoverer) fromRobots(ctx context.Context, seed *url.URL) []string {
	robotsURL := (&url.URL{Scheme: seed.Scheme, Host: seed.Host, Path: "/robots.txt"}).String()
	body, err := d.get(ctx, robotsURL)
	if err != nil {
		return nil
	}
	defer body.Close()

	var out []string
	scanner := bufio.NewScanner(io.LimitReader(body, 1<<20))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(strings.ToLower(line), "sitemap:") {
			continue
		}
		loc := strings.TrimSpace(line[len("sitemap:"):])
		if loc != "" {
			out = append(out, loc)
		}
	}
	return out
}

func (d *Discoverer) walk(ctx context.Context, seed *url.URL, sitemapURL string, pages []string, seen map[string]struct{}, depth int) []string {
	if depth > maxIndexDepth || len(pages) >= maxDiscoverURLs {
		return pages
	}
	body, err := d.get(ctx, sitemapURL)
	if err != nil {
		d.logger.Debug("sitemap fetch failed", zap.String("url", sitemapURL), zap.Error(err))
		return pages
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxSitemapBody))
	if err != nil {
		return pages
	}
	data = maybeGunzip(data)

	var index sitemapindex
	if err := xml.Unmarshal(data, &index); err == nil && len(index.Sitemaps) > 0 {
		for _, child := range index.Sitemaps {
			pages = d.walk(ctx, seed, strings.TrimSpace(child.Loc), pages, seen, depth+1)
		}
		return pages
	}

	var set urlset
	if err := xml.Unmarshal(data, &set); err != nil {
		d.logger.Debug("sitemap parse failed", zap.String("url", sitemapURL), zap.Error(err))
		return pages
	}
	for _, entry := range set.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}
		parsed, err := url.Parse(loc)
		if err != nil || !strings.EqualFold(parsed.Host, seed.Host) {
			continue
		}
		if _, dup := seen[loc]; dup {
			continue
		}
		seen[loc] = struct{}{}
		pages = append(pages, loc)
		if len(pages) >= maxDiscoverURLs {
			return pages
		}
	}
	return pages
}

func (d *Discoverer) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &statusError{code: resp.StatusCode}
	}
	return resp.Body, nil
}

// maybeGunzip decodes gzip payloads, passing everything else through.
func maybeGunzip(data []byte) []byte {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data
	}
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return data
	}
	defer gz.Close()
	out, err := io.ReadAll(io.LimitReader(gz, maxSitemapBody))
	if err != nil {
		return data
	}
	return out
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}
