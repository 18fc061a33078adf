// Package robots enforces robots.txt directives and per-origin request
// pacing for the crawl engine.
package robots

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const maxRobotsBody = 1 << 20

// Config tunes robots fetching and request pacing.
type Config struct {
	UserAgent    string
	FetchTimeout time.Duration
	// DelayMin and DelayMax bound the random per-request delay used when
	// robots.txt carries no Crawl-delay for our agent.
	DelayMin time.Duration
	DelayMax time.Duration
}

func (c *Config) applyDefaults() {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.DelayMin <= 0 {
		c.DelayMin = 500 * time.Millisecond
	}
	if c.DelayMax < c.DelayMin {
		c.DelayMax = 4 * c.DelayMin
	}
}

// Controller answers robots.txt questions and paces requests per origin.
// It implements crawl.Politeness. Group rules and pacing state are cached
// per scheme://host, and a robots.txt that cannot be retrieved fails open.
type Controller struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger

	origins sync.Map // origin -> *originState
}

type originState struct {
	once  sync.Once
	group *robotstxt.Group

	mu     sync.Mutex
	nextAt time.Time
}

// NewController builds a Controller with the given pacing bounds.
func NewController(cfg Config, logger *zap.Logger) *Controller {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		client: &http.Client{Timeout: cfg.FetchTimeout},
		cfg:    cfg,
		logger: logger,
	}
}

// Allowed reports whether rawURL may be fetched under the origin's
// robots.txt rules.
func (c *Controller) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	state := c.state(ctx, parsed)
	if state.group == nil {
		return true
	}
	p := parsed.Path
	if p == "" {
		p = "/"
	}
	if parsed.RawQuery != "" {
		p += "?" + parsed.RawQuery
	}
	return state.group.Test(p)
}

// Wait blocks until the origin's next request slot. The slot interval is the
// robots Crawl-delay when present, otherwise a random delay between DelayMin
// and DelayMax, so bursts against one host are spread out even with many
// workers in flight.
func (c *Controller) Wait(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	state := c.state(ctx, parsed)

	delay := c.requestDelay(state)
	state.mu.Lock()
	now := time.Now()
	at := state.nextAt
	if at.Before(now) {
		at = now
	}
	state.nextAt = at.Add(delay)
	state.mu.Unlock()

	wait := time.Until(at)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Controller) requestDelay(state *originState) time.Duration {
	if state.group != nil && state.group.CrawlDelay > 0 {
		return state.group.CrawlDelay
	}
	span := c.cfg.DelayMax - c.cfg.DelayMin
	if span <= 0 {
		return c.cfg.DelayMin
	}
	return c.cfg.DelayMin + time.Duration(rand.Int63n(int64(span)))
}

func (c *Controller) state(ctx context.Context, parsed *url.URL) *originState {
	origin := strings.ToLower(parsed.Scheme + "://" + parsed.Host)
	val, _ := c.origins.LoadOrStore(origin, &originState{})
	state := val.(*originState)
	state.once.Do(func() {
		state.group = c.fetchGroup(ctx, parsed)
	})
	return state
}

// fetchGroup retrieves and parses the origin's robots.txt. A nil return
// means no enforceable rules, so the caller allows everything.
func (c *Controller) fetchGroup(ctx context.Context, parsed *url.URL) *robotstxt.Group {
	robotsURL := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("robots fetch failed, allowing access",
			zap.String("host", parsed.Host), zap.Error(err))
		return nil
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("failed to close robots response body", zap.Error(cerr))
		}
	}()

	// A server that cannot serve robots.txt should not stall the crawl.
	if resp.StatusCode >= 500 {
		c.logger.Warn("robots unavailable, allowing access",
			zap.String("host", parsed.Host), zap.Int("status", resp.StatusCode))
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		c.logger.Warn("robots read failed, allowing access",
			zap.String("host", parsed.Host), zap.Error(err))
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		c.logger.Warn(fmt.Sprintf("robots parse failed for %s, allowing access", parsed.Host), zap.Error(err))
		return nil
	}
	return data.FindGroup(c.cfg.UserAgent)
}
