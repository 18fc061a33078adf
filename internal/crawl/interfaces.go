package crawl

import (
	"context"
)

// Fetcher retrieves a single URL, applying its own retry budget. A FetchResult
// is returned even on terminal failure so the scheduler can record it.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) FetchResult
}

// Extractor turns a fetched document into SEO facts and discovered links.
// Implementations must degrade on malformed markup rather than fail.
type Extractor interface {
	Extract(pageURL string, statusCode int, contentType string, body []byte) (Extraction, []Link)
}

// Politeness gates fetches on robots.txt and paces requests per origin.
type Politeness interface {
	// Allowed reports whether robots.txt permits fetching rawURL. Unreachable
	// or unparseable robots.txt fails open.
	Allowed(ctx context.Context, rawURL string) bool
	// Wait blocks until the origin's next delay slot, honoring crawl-delay as
	// a minimum. It must not serialize fetches to other origins.
	Wait(ctx context.Context, rawURL string) error
}

// Filter decides whether a discovered URL is in crawl scope.
type Filter interface {
	InScope(rawURL string) bool
}

// SitemapSource yields same-origin URLs to seed the frontier at depth zero.
type SitemapSource interface {
	Discover(ctx context.Context, seedURL string) []string
}

// Renderer re-fetches a page with JavaScript execution and returns the
// rendered DOM.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (FetchResult, error)
	Close(ctx context.Context) error
}

// RenderDetector decides whether a static fetch looks client-side rendered
// and is worth escalating to the Renderer.
type RenderDetector interface {
	NeedsRender(body []byte) bool
}

// Archive persists raw page bodies and returns a URI, or an empty string when
// archiving is disabled.
type Archive interface {
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
}
