package crawl

import (
	"context"
	"crypto/sha256"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seoscope/crawler/internal/progress"
)

// Deps bundles the collaborators a Scheduler drives. Fetcher and Extractor
// are required; everything else is optional and nil-safe.
type Deps struct {
	Fetcher    Fetcher
	Extractor  Extractor
	Politeness Politeness
	Filter     Filter
	Sitemaps   SitemapSource
	Renderer   Renderer
	Detector   RenderDetector
	Archive    Archive
	Progress   progress.Emitter
	Logger     *zap.Logger
}

// Scheduler owns the frontier and the session. All structural mutation
// happens on the goroutine running Run; worker pipelines fetch and extract in
// parallel and hand results back over a channel.
type Scheduler struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
}

// NewScheduler validates the config and builds a Scheduler.
func NewScheduler(cfg Config, deps Deps) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("crawl config: %w", err)
	}
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Scheduler{cfg: cfg, deps: deps, logger: deps.Logger}, nil
}

// taskResult is what a worker pipeline hands back to the scheduler loop.
type taskResult struct {
	entry         FrontierEntry
	skippedRobots bool
	canceled      bool
	robotsDenied  bool
	rendered      bool
	archiveURI    string
	fetch         FetchResult
	extraction    Extraction
	links         []Link
}

// Run crawls from the configured seed until the page or depth limits are
// reached or the frontier empties. Reaching a limit stops new dispatches; work
// already in flight drains and is recorded. The returned session is complete
// even when ctx was canceled, in which case the error reports the
// interruption.
func (s *Scheduler) Run(ctx context.Context) (*Session, error) {
	seed, err := NormalizeURL(s.cfg.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("seed url: %w", err)
	}
	session := NewSession(seed, s.cfg)
	fr := newFrontier()
	fr.Push(FrontierEntry{URL: seed, Depth: 0, Source: SourceSeed})
	s.seedFromSitemaps(ctx, session, fr, seed)

	s.logger.Info("crawl started",
		zap.String("seed", seed),
		zap.Int("max_pages", s.cfg.MaxPages),
		zap.Int("max_depth", s.cfg.MaxDepth),
		zap.Int("concurrency", s.cfg.Concurrency),
	)

	results := make(chan taskResult)
	inflight := 0
	for {
		for ctx.Err() == nil && inflight < s.cfg.Concurrency && session.Visited()+inflight < s.cfg.MaxPages {
			entry, ok := fr.Pop()
			if !ok {
				break
			}
			if entry.Depth > s.cfg.MaxDepth {
				continue
			}
			inflight++
			go s.process(ctx, session.ID.String(), entry, results)
		}
		if inflight == 0 {
			break
		}
		res := <-results
		inflight--
		s.collect(session, fr, res)
		s.emitProgress(session, fr, res.entry.URL, false)
	}

	session.finish()
	s.emitProgress(session, fr, "", true)
	s.logger.Info("crawl finished",
		zap.String("seed", seed),
		zap.Int("visited", session.Visited()),
		zap.Int("fetched", session.Counters.Fetched),
		zap.Int("failed", session.Counters.Failed),
		zap.Duration("elapsed", session.Finished.Sub(session.Started)),
	)
	if err := ctx.Err(); err != nil {
		return session, fmt.Errorf("crawl interrupted: %w", err)
	}
	return session, nil
}

func (s *Scheduler) seedFromSitemaps(ctx context.Context, session *Session, fr *frontier, seed string) {
	if !s.cfg.UseSitemap || s.deps.Sitemaps == nil {
		return
	}
	injected := 0
	for _, raw := range s.deps.Sitemaps.Discover(ctx, seed) {
		norm, err := NormalizeURL(raw)
		if err != nil {
			continue
		}
		if !SameOrigin(norm, seed) || !CrawlablePath(norm) {
			continue
		}
		if s.deps.Filter != nil && !s.deps.Filter.InScope(norm) {
			session.Counters.SkippedFilter++
			continue
		}
		if fr.Push(FrontierEntry{URL: norm, Depth: 0, Source: SourceSitemap}) {
			injected++
		}
	}
	if injected > 0 {
		s.logger.Info("sitemap urls injected", zap.Int("count", injected))
	}
}

// process runs one URL's pipeline: politeness, fetch (with retries), optional
// render escalation, extraction, optional archival. It never touches session
// or frontier state.
func (s *Scheduler) process(ctx context.Context, sessionID string, entry FrontierEntry, results chan<- taskResult) {
	res := taskResult{entry: entry}
	defer func() { results <- res }()

	if s.deps.Politeness != nil {
		if !s.deps.Politeness.Allowed(ctx, entry.URL) {
			if !s.cfg.OverrideRobots {
				res.skippedRobots = true
				return
			}
			res.robotsDenied = true
		}
		if err := s.deps.Politeness.Wait(ctx, entry.URL); err != nil {
			res.canceled = true
			return
		}
	}

	res.fetch = s.deps.Fetcher.Fetch(ctx, FetchRequest{URL: entry.URL, Referrer: entry.DiscoveredFrom})
	if res.fetch.StatusCode == 0 || len(res.fetch.Body) == 0 || !htmlContent(res.fetch.ContentType) {
		return
	}

	body := res.fetch.Body
	if s.deps.Renderer != nil && s.deps.Detector != nil && s.deps.Detector.NeedsRender(body) {
		rendered, err := s.deps.Renderer.Render(ctx, res.fetch.FinalURL)
		if err != nil {
			s.logger.Warn("render escalation failed", zap.String("url", entry.URL), zap.Error(err))
		} else if len(rendered.Body) > 0 {
			body = rendered.Body
			res.rendered = true
		}
	}

	res.extraction, res.links = s.deps.Extractor.Extract(
		res.fetch.FinalURL, res.fetch.StatusCode, res.fetch.ContentType, body)

	if s.deps.Archive != nil {
		key := archiveKey(sessionID, entry.URL)
		uri, err := s.deps.Archive.Put(ctx, key, res.fetch.ContentType, body)
		if err != nil {
			s.logger.Warn("archive put failed", zap.String("url", entry.URL), zap.Error(err))
		} else {
			res.archiveURI = uri
		}
	}
}

// collect folds one worker result into the session: builds the page record,
// adds link edges, and enqueues newly discovered in-scope URLs at depth+1.
func (s *Scheduler) collect(session *Session, fr *frontier, res taskResult) {
	if res.canceled {
		return
	}
	if res.skippedRobots {
		session.Counters.SkippedRobots++
		s.logger.Debug("skipped by robots.txt", zap.String("url", res.entry.URL))
		return
	}

	entry := res.entry
	f := res.fetch
	recordURL := entry.URL
	redirectedFrom := ""
	if f.FinalURL != "" {
		if norm, err := NormalizeURL(f.FinalURL); err == nil && norm != entry.URL {
			redirectedFrom = entry.URL
			recordURL = norm
			fr.MarkSeen(norm)
		}
	}

	rec := &PageRecord{
		URL:            recordURL,
		RedirectedFrom: redirectedFrom,
		Depth:          entry.Depth,
		DiscoveredFrom: entry.DiscoveredFrom,
		Source:         entry.Source,
		Status:         f.StatusCode,
		FetchError:     ErrorCode(f.Err),
		ContentType:    f.ContentType,
		Duration:       f.Duration,
		Size:           len(f.Body),
		Attempts:       f.Attempts,
		DegradedTLS:    f.DegradedTLS,
		UsedRender:     res.rendered,
		RobotsDenied:   res.robotsDenied,
		FetchedAt:      time.Now().UTC(),
		ArchiveURI:     res.archiveURI,
		Extraction:     res.extraction,
	}
	if headerHasDirective(f, "noindex") {
		rec.Noindex = true
	}
	if headerHasDirective(f, "nofollow") {
		rec.Nofollow = true
	}

	if !session.Record(rec) {
		// Redirect landed on an already-recorded URL; nothing more to do.
		return
	}
	if rec.Status >= 200 && rec.Status < 400 && rec.FetchError == "" {
		session.Counters.Fetched++
	} else {
		session.Counters.Failed++
		s.logger.Warn("page failed",
			zap.String("url", rec.URL),
			zap.Int("status", rec.Status),
			zap.String("fetch_error", rec.FetchError),
			zap.Int("attempts", rec.Attempts),
		)
	}

	if rec.Status < 200 || rec.Status >= 300 {
		return
	}
	for _, link := range res.links {
		target, err := NormalizeURL(link.TargetURL)
		if err != nil {
			continue
		}
		session.AddEdge(rec.URL, target, link.Anchor)
		if !SameOrigin(target, session.Seed) {
			continue
		}
		if entry.Depth+1 > s.cfg.MaxDepth {
			continue
		}
		if fr.Seen(target) || !CrawlablePath(target) {
			continue
		}
		if s.deps.Filter != nil && !s.deps.Filter.InScope(target) {
			session.Counters.SkippedFilter++
			fr.MarkSeen(target)
			continue
		}
		fr.Push(FrontierEntry{
			URL:            target,
			Depth:          entry.Depth + 1,
			DiscoveredFrom: rec.URL,
			Source:         SourceLink,
		})
	}
}

func (s *Scheduler) emitProgress(session *Session, fr *frontier, current string, done bool) {
	if s.deps.Progress == nil {
		return
	}
	remaining := fr.Len()
	if room := s.cfg.MaxPages - session.Visited(); remaining > room {
		remaining = room
	}
	if remaining < 0 {
		remaining = 0
	}
	s.deps.Progress.Emit(progress.Snapshot{
		SessionID:     session.ID,
		TS:            time.Now().UTC(),
		Visited:       session.Visited(),
		Remaining:     remaining,
		CurrentURL:    current,
		Fetched:       session.Counters.Fetched,
		Failed:        session.Counters.Failed,
		SkippedFilter: session.Counters.SkippedFilter,
		SkippedRobots: session.Counters.SkippedRobots,
		Done:          done,
	})
}

func htmlContent(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

func headerHasDirective(f FetchResult, directive string) bool {
	if f.Headers == nil {
		return false
	}
	for _, v := range f.Headers.Values("X-Robots-Tag") {
		for _, token := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(token), directive) {
				return true
			}
		}
	}
	return false
}

func archiveKey(sessionID, rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return path.Join("sessions", sessionID, fmt.Sprintf("%x.html", sum))
}
