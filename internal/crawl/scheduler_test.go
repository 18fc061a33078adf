package crawl

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubFetcher serves canned results keyed by request URL and counts fetches.
type stubFetcher struct {
	mu      sync.Mutex
	results map[string]FetchResult
	calls   map[string]int
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		results: make(map[string]FetchResult),
		calls:   make(map[string]int),
	}
}

func (f *stubFetcher) page(url string) {
	f.results[url] = FetchResult{
		FinalURL:    url,
		StatusCode:  http.StatusOK,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte("<html><body>page</body></html>"),
		Attempts:    1,
	}
}

func (f *stubFetcher) Fetch(_ context.Context, req FetchRequest) FetchResult {
	f.mu.Lock()
	f.calls[req.URL]++
	f.mu.Unlock()
	res, ok := f.results[req.URL]
	if !ok {
		return FetchResult{
			FinalURL:    req.URL,
			StatusCode:  http.StatusNotFound,
			ContentType: "text/html",
			Body:        []byte("<html><body>not found</body></html>"),
			Attempts:    1,
		}
	}
	return res
}

func (f *stubFetcher) fetchCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *stubFetcher) totalFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// stubExtractor returns canned links keyed by page URL.
type stubExtractor struct {
	mu    sync.Mutex
	links map[string][]Link
}

func (e *stubExtractor) Extract(pageURL string, _ int, _ string, _ []byte) (Extraction, []Link) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Extraction{Title: "stub"}, e.links[pageURL]
}

// stubPoliteness denies listed URL prefixes and never delays.
type stubPoliteness struct {
	denied []string
}

func (p *stubPoliteness) Allowed(_ context.Context, rawURL string) bool {
	for _, prefix := range p.denied {
		if strings.HasPrefix(rawURL, prefix) {
			return false
		}
	}
	return true
}

func (p *stubPoliteness) Wait(context.Context, string) error { return nil }

type rejectFilter struct {
	rejected string
}

func (f *rejectFilter) InScope(rawURL string) bool {
	return !strings.Contains(rawURL, f.rejected)
}

func links(targets ...string) []Link {
	out := make([]Link, 0, len(targets))
	for _, target := range targets {
		out = append(out, Link{TargetURL: target, Anchor: "link"})
	}
	return out
}

func newTestScheduler(t *testing.T, cfg Config, deps Deps) *Scheduler {
	t.Helper()
	s, err := NewScheduler(cfg, deps)
	require.NoError(t, err)
	return s
}

func TestSchedulerCrawlsInternalAndRecordsExternal(t *testing.T) {
	fetcher := newStubFetcher()
	for _, u := range []string{
		"https://example.com/",
		"https://example.com/about",
		"https://example.com/products",
		"https://example.com/contact",
	} {
		fetcher.page(u)
	}
	extractor := &stubExtractor{links: map[string][]Link{
		"https://example.com/": links(
			"https://example.com/about",
			"https://example.com/products",
			"https://example.com/contact",
			"https://external.org/partner",
		),
	}}

	s := newTestScheduler(t, testConfig(), Deps{Fetcher: fetcher, Extractor: extractor})
	session, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 4, session.Visited())
	_, external := session.Page("https://external.org/partner")
	require.False(t, external)
	require.Equal(t, 0, fetcher.fetchCount("https://external.org/partner"))

	// The external link still lands in the edge list.
	found := false
	for _, edge := range session.Edges() {
		if edge.Target == "https://external.org/partner" {
			found = true
		}
	}
	require.True(t, found)
	require.Equal(t, 4, session.Counters.Fetched)
}

func TestSchedulerFetchesEachURLOnce(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.page("https://example.com/")
	fetcher.page("https://example.com/a")
	fetcher.page("https://example.com/b")
	fetcher.page("https://example.com/shared")
	extractor := &stubExtractor{links: map[string][]Link{
		"https://example.com/":  links("https://example.com/a", "https://example.com/b"),
		"https://example.com/a": links("https://example.com/shared", "https://example.com/"),
		"https://example.com/b": links("https://example.com/shared"),
	}}

	s := newTestScheduler(t, testConfig(), Deps{Fetcher: fetcher, Extractor: extractor})
	session, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 4, session.Visited())
	require.Equal(t, 1, fetcher.fetchCount("https://example.com/shared"))
	require.Equal(t, 1, fetcher.fetchCount("https://example.com/"))
	require.Equal(t, 4, fetcher.totalFetches())
}

func TestSchedulerRecordsMinimumDepth(t *testing.T) {
	// /deep is linked both from a depth-1 page and from the seed; BFS
	// ordering must record it at depth 1 regardless of fetch timing.
	fetcher := newStubFetcher()
	fetcher.page("https://example.com/")
	fetcher.page("https://example.com/mid")
	fetcher.page("https://example.com/deep")
	extractor := &stubExtractor{links: map[string][]Link{
		"https://example.com/":    links("https://example.com/mid", "https://example.com/deep"),
		"https://example.com/mid": links("https://example.com/deep", "https://example.com/"),
	}}

	s := newTestScheduler(t, testConfig(), Deps{Fetcher: fetcher, Extractor: extractor})
	session, err := s.Run(context.Background())
	require.NoError(t, err)

	seed, _ := session.Page("https://example.com/")
	mid, _ := session.Page("https://example.com/mid")
	deep, _ := session.Page("https://example.com/deep")
	require.Equal(t, 0, seed.Depth)
	require.Equal(t, 1, mid.Depth)
	require.Equal(t, 1, deep.Depth)
}

func TestSchedulerStopsAtMaxPages(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.page("https://example.com/")
	targets := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		u := fmt.Sprintf("https://example.com/page-%d", i)
		fetcher.page(u)
		targets = append(targets, u)
	}
	extractor := &stubExtractor{links: map[string][]Link{
		"https://example.com/": links(targets...),
	}}

	cfg := testConfig()
	cfg.MaxPages = 5
	s := newTestScheduler(t, cfg, Deps{Fetcher: fetcher, Extractor: extractor})
	session, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 5, session.Visited())
	require.Equal(t, 5, fetcher.totalFetches())
}

func TestSchedulerHonorsMaxDepth(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.page("https://example.com/")
	fetcher.page("https://example.com/level1")
	fetcher.page("https://example.com/level2")
	extractor := &stubExtractor{links: map[string][]Link{
		"https://example.com/":       links("https://example.com/level1"),
		"https://example.com/level1": links("https://example.com/level2"),
	}}

	cfg := testConfig()
	cfg.MaxDepth = 1
	s := newTestScheduler(t, cfg, Deps{Fetcher: fetcher, Extractor: extractor})
	session, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, session.Visited())
	_, tooDeep := session.Page("https://example.com/level2")
	require.False(t, tooDeep)
}

func TestSchedulerSkipsRobotsDisallowed(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.page("https://example.com/")
	fetcher.page("https://example.com/public")
	extractor := &stubExtractor{links: map[string][]Link{
		"https://example.com/": links("https://example.com/public", "https://example.com/private"),
	}}

	s := newTestScheduler(t, testConfig(), Deps{
		Fetcher:    fetcher,
		Extractor:  extractor,
		Politeness: &stubPoliteness{denied: []string{"https://example.com/private"}},
	})
	session, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, session.Visited())
	require.Equal(t, 1, session.Counters.SkippedRobots)
	require.Equal(t, 0, fetcher.fetchCount("https://example.com/private"))
}

func TestSchedulerOverrideRobotsCrawlsAndFlags(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.page("https://example.com/")
	fetcher.page("https://example.com/private")
	extractor := &stubExtractor{links: map[string][]Link{
		"https://example.com/": links("https://example.com/private"),
	}}

	cfg := testConfig()
	cfg.OverrideRobots = true
	s := newTestScheduler(t, cfg, Deps{
		Fetcher:    fetcher,
		Extractor:  extractor,
		Politeness: &stubPoliteness{denied: []string{"https://example.com/private"}},
	})
	session, err := s.Run(context.Background())
	require.NoError(t, err)

	rec, ok := session.Page("https://example.com/private")
	require.True(t, ok)
	require.True(t, rec.RobotsDenied)
	require.False(t, rec.Indexable)
	require.Equal(t, "blocked by robots.txt", rec.IndexabilityStatus)
	require.Equal(t, 0, session.Counters.SkippedRobots)
}

func TestSchedulerRecordsRedirectUnderFinalURL(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.page("https://example.com/")
	fetcher.page("https://example.com/new")
	fetcher.results["https://example.com/old"] = FetchResult{
		FinalURL:    "https://example.com/new",
		StatusCode:  http.StatusOK,
		ContentType: "text/html",
		Body:        []byte("<html><body>moved</body></html>"),
		Attempts:    1,
	}
	extractor := &stubExtractor{links: map[string][]Link{
		"https://example.com/": links("https://example.com/old", "https://example.com/new"),
	}}

	s := newTestScheduler(t, testConfig(), Deps{Fetcher: fetcher, Extractor: extractor})
	session, err := s.Run(context.Background())
	require.NoError(t, err)

	rec, ok := session.Page("https://example.com/new")
	require.True(t, ok)
	// Whichever of /old and /new was dispatched first produced the record;
	// the other must not have created a second one.
	require.Equal(t, 2, session.Visited())
	if rec.RedirectedFrom != "" {
		require.Equal(t, "https://example.com/old", rec.RedirectedFrom)
	}
	_, oldRecorded := session.Page("https://example.com/old")
	require.False(t, oldRecorded)
}

func TestSchedulerFilterSkipsAndCounts(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.page("https://example.com/")
	fetcher.page("https://example.com/keep")
	extractor := &stubExtractor{links: map[string][]Link{
		"https://example.com/": links("https://example.com/keep", "https://example.com/admin/panel"),
	}}

	s := newTestScheduler(t, testConfig(), Deps{
		Fetcher:   fetcher,
		Extractor: extractor,
		Filter:    &rejectFilter{rejected: "/admin/"},
	})
	session, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, session.Visited())
	require.Equal(t, 1, session.Counters.SkippedFilter)
	require.Equal(t, 0, fetcher.fetchCount("https://example.com/admin/panel"))
}

func TestSchedulerErrorPagesDoNotSpreadLinks(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.page("https://example.com/")
	fetcher.results["https://example.com/broken"] = FetchResult{
		FinalURL:    "https://example.com/broken",
		StatusCode:  http.StatusInternalServerError,
		ContentType: "text/html",
		Body:        []byte("<html><body>error</body></html>"),
		Attempts:    3,
	}
	extractor := &stubExtractor{links: map[string][]Link{
		"https://example.com/":       links("https://example.com/broken"),
		"https://example.com/broken": links("https://example.com/never"),
	}}

	s := newTestScheduler(t, testConfig(), Deps{Fetcher: fetcher, Extractor: extractor})
	session, err := s.Run(context.Background())
	require.NoError(t, err)

	rec, ok := session.Page("https://example.com/broken")
	require.True(t, ok)
	require.Equal(t, http.StatusInternalServerError, rec.Status)
	require.Equal(t, "http 500", rec.IndexabilityStatus)
	require.Equal(t, 1, session.Counters.Failed)
	require.Equal(t, 0, fetcher.fetchCount("https://example.com/never"))
}

func TestSchedulerAppliesXRobotsTagHeader(t *testing.T) {
	fetcher := newStubFetcher()
	headers := http.Header{}
	headers.Set("X-Robots-Tag", "noindex, nofollow")
	fetcher.results["https://example.com/"] = FetchResult{
		FinalURL:    "https://example.com/",
		StatusCode:  http.StatusOK,
		ContentType: "text/html",
		Headers:     headers,
		Body:        []byte("<html><body>hidden</body></html>"),
		Attempts:    1,
	}

	s := newTestScheduler(t, testConfig(), Deps{Fetcher: fetcher, Extractor: &stubExtractor{}})
	session, err := s.Run(context.Background())
	require.NoError(t, err)

	rec, ok := session.Page("https://example.com/")
	require.True(t, ok)
	require.True(t, rec.Noindex)
	require.True(t, rec.Nofollow)
	require.Equal(t, "noindex", rec.IndexabilityStatus)
}

func TestSchedulerRequiresFetcherAndExtractor(t *testing.T) {
	_, err := NewScheduler(testConfig(), Deps{Extractor: &stubExtractor{}})
	require.Error(t, err)
	_, err = NewScheduler(testConfig(), Deps{Fetcher: newStubFetcher()})
	require.Error(t, err)
	_, err = NewScheduler(Config{}, Deps{Fetcher: newStubFetcher(), Extractor: &stubExtractor{}})
	require.Error(t, err)
}

func TestSchedulerCanceledContextReportsInterruption(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.page("https://example.com/")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestScheduler(t, testConfig(), Deps{Fetcher: fetcher, Extractor: &stubExtractor{}})
	session, err := s.Run(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, session)
	require.False(t, session.Finished.IsZero())
}
