package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/seoscope/crawler/internal/crawl"
	"github.com/seoscope/crawler/internal/metrics"
)

// DefaultUserAgent matches a mainstream desktop browser so sites serve the
// same markup real visitors see.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config tunes the HTTP client.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRedirects int
	Concurrency  int
}

func (c *Config) applyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = 10
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
}

// Client fetches pages through Colly with retry and a relaxed-TLS fallback.
// It implements crawl.Fetcher.
type Client struct {
	strict  *colly.Collector
	relaxed *colly.Collector
	jar     http.CookieJar
	retry   *RetryPolicy
	cfg     Config
	logger  *zap.Logger
}

// NewClient constructs a configured Colly-backed fetcher.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	strict, err := newBaseCollector(cfg, false)
	if err != nil {
		return nil, err
	}
	relaxed, err := newBaseCollector(cfg, true)
	if err != nil {
		return nil, err
	}

	return &Client{
		strict:  strict,
		relaxed: relaxed,
		jar:     jar,
		retry:   NewRetryPolicy(),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func newBaseCollector(cfg Config, insecureTLS bool) (*colly.Collector, error) {
	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
		colly.IgnoreRobotsTxt(),
	)
	base.AllowURLRevisit = true
	base.ParseHTTPErrorResponse = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		MaxConnsPerHost:       cfg.Concurrency * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: insecureTLS},
	})
	base.SetRequestTimeout(cfg.Timeout)

	if err := base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Concurrency,
	}); err != nil {
		return nil, err
	}
	return base, nil
}

// Fetch retrieves req.URL, retrying transient failures with backoff and
// falling back to relaxed certificate validation once if the strict handshake
// fails. The returned result is terminal; its Err field is nil on success.
func (c *Client) Fetch(ctx context.Context, req crawl.FetchRequest) crawl.FetchResult {
	start := time.Now()
	relaxed := false
	attempts := 0
	var last attemptOutcome

	for attempts < c.retry.MaxAttempts() {
		if err := ctx.Err(); err != nil {
			return c.result(req, last, attempts, relaxed, start, err)
		}
		attempts++

		pg, err := c.do(ctx, req, relaxed)
		out := classify(pg, err)

		switch out.kind {
		case outcomeSuccess:
			res := c.result(req, out, attempts, relaxed, start, nil)
			return res
		case outcomeRetryable:
			last = out
			if attempts < c.retry.MaxAttempts() {
				delay := c.retry.Backoff(attempts - 1)
				c.logger.Debug("retrying fetch",
					zap.String("url", req.URL),
					zap.Int("attempt", attempts),
					zap.Duration("backoff", delay),
					zap.Error(out.err))
				if err := sleep(ctx, delay); err != nil {
					return c.result(req, last, attempts, relaxed, start, last.err)
				}
			}
		case outcomeFatal:
			if errors.Is(out.err, crawl.ErrTLSFailure) && !relaxed {
				// One second chance with certificate checks off. Pages
				// fetched this way are flagged degraded downstream.
				relaxed = true
				last = out
				continue
			}
			return c.result(req, out, attempts, relaxed, start, out.err)
		}
	}

	return c.result(req, last, attempts, relaxed, start, last.err)
}

func (c *Client) result(req crawl.FetchRequest, out attemptOutcome, attempts int, relaxed bool, start time.Time, err error) crawl.FetchResult {
	finalURL := out.page.finalURL
	if finalURL == "" {
		finalURL = req.URL
	}
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	return crawl.FetchResult{
		FinalURL:    finalURL,
		StatusCode:  out.page.statusCode,
		Headers:     out.page.headers,
		Body:        out.page.body,
		ContentType: out.page.contentType,
		Duration:    time.Since(start),
		Attempts:    attempts,
		DegradedTLS: relaxed && err == nil,
		Err:         err,
	}
}

func (c *Client) do(ctx context.Context, req crawl.FetchRequest, relaxed bool) (responsePage, error) {
	base := c.strict
	if relaxed {
		base = c.relaxed
	}
	collector := base.Clone()
	collector.SetCookieJar(c.jar)
	collector.SetRedirectHandler(func(r *http.Request, via []*http.Request) error {
		if len(via) >= c.cfg.MaxRedirects {
			return crawl.ErrRedirectLimit
		}
		return nil
	})
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
		if req.Referrer != "" {
			r.Headers.Set("Referer", req.Referrer)
		}
	})

	resultCh := make(chan collyResult, 1)
	var once sync.Once
	send := func(res collyResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		send(collyResult{page: pageFromResponse(r)})
	})
	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		var pg responsePage
		if r != nil {
			pg = pageFromResponse(r)
		}
		send(collyResult{page: pg, err: err})
	})

	if err := collector.Visit(req.URL); err != nil {
		return responsePage{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return responsePage{}, err
		}
		return res.page, res.err
	default:
		return responsePage{}, errors.New("colly fetch produced no result")
	}
}

func pageFromResponse(r *colly.Response) responsePage {
	headers := http.Header{}
	if r.Headers != nil {
		for k, v := range *r.Headers {
			cp := make([]string, len(v))
			copy(cp, v)
			headers[k] = cp
		}
	}
	finalURL := ""
	if r.Request != nil && r.Request.URL != nil {
		finalURL = r.Request.URL.String()
	}
	return responsePage{
		finalURL:    finalURL,
		statusCode:  r.StatusCode,
		headers:     headers,
		body:        append([]byte{}, r.Body...),
		contentType: headers.Get("Content-Type"),
	}
}

type collyResult struct {
	page responsePage
	err  error
}
