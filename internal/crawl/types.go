// Package crawl defines core types shared across subsystems.
package crawl

import (
	"net/http"
	"time"
)

// DiscoverySource records how a URL entered the frontier.
type DiscoverySource string

// Discovery sources recorded on frontier entries and page records.
const (
	SourceSeed    DiscoverySource = "seed"
	SourceLink    DiscoverySource = "link"
	SourceSitemap DiscoverySource = "sitemap"
)

// FrontierEntry is a discovered URL awaiting dispatch. It exists only between
// discovery and resolution into a PageRecord or a skip.
type FrontierEntry struct {
	URL            string
	Depth          int
	DiscoveredFrom string
	Source         DiscoverySource
}

// Image is one <img> occurrence with its alt-text presence.
type Image struct {
	Src    string `json:"src"`
	HasAlt bool   `json:"has_alt"`
}

// Link is an outbound link discovered on a page. TargetURL is absolute and
// normalized; Internal means same registrable domain as the page.
type Link struct {
	TargetURL string `json:"target_url"`
	Anchor    string `json:"anchor"`
	Internal  bool   `json:"internal"`
}

// LinkEdge is one source→target edge in the session link graph.
type LinkEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Anchor string `json:"anchor"`
}

// Extraction holds the SEO facts pulled out of one HTML document. Non-HTML
// responses leave it zero-valued.
type Extraction struct {
	Title                 string   `json:"title"`
	TitleLength           int      `json:"title_length"`
	MetaDescription       string   `json:"meta_description"`
	MetaDescriptionLength int      `json:"meta_description_length"`
	// Headings[i] lists the text of every H(i+1) element in document order.
	Headings       [6][]string `json:"headings"`
	HierarchyValid bool        `json:"hierarchy_valid"`
	MetaRobots     []string    `json:"meta_robots"`
	Noindex        bool        `json:"noindex"`
	Nofollow       bool        `json:"nofollow"`
	Canonical      string      `json:"canonical"`
	WordCount      int         `json:"word_count"`
	SentenceCount  int         `json:"sentence_count"`
	ParagraphCount int         `json:"paragraph_count"`
	FleschScore    float64     `json:"flesch_score"`
	Readability    string      `json:"readability"`
	SchemaTypes    []string    `json:"schema_types"`
	Images         []Image     `json:"images"`
	InternalLinks  int         `json:"internal_links"`
	ExternalLinks  int         `json:"external_links"`
	ParseDegraded  bool        `json:"parse_degraded"`
}

// PageRecord is the per-URL crawl outcome. Exactly one exists per normalized
// URL per session; Depth is fixed at first discovery.
type PageRecord struct {
	URL            string          `json:"url"`
	RedirectedFrom string          `json:"redirected_from,omitempty"`
	Depth          int             `json:"depth"`
	DiscoveredFrom string          `json:"discovered_from,omitempty"`
	Source         DiscoverySource `json:"source"`

	Status       int           `json:"status"`
	FetchError   string        `json:"fetch_error,omitempty"`
	ContentType  string        `json:"content_type"`
	Duration     time.Duration `json:"duration"`
	Size         int           `json:"size"`
	Attempts     int           `json:"attempts"`
	DegradedTLS  bool          `json:"degraded_tls"`
	UsedRender   bool          `json:"used_render"`
	RobotsDenied bool          `json:"robots_denied"`
	FetchedAt    time.Time     `json:"fetched_at"`
	ArchiveURI   string        `json:"archive_uri,omitempty"`

	Extraction

	Indexable          bool   `json:"indexable"`
	IndexabilityStatus string `json:"indexability_status,omitempty"`

	Inlinks       int `json:"inlinks"`
	UniqueInlinks int `json:"unique_inlinks"`
}

// FetchRequest captures everything needed to fetch a URL once.
type FetchRequest struct {
	URL      string
	Referrer string
}

// FetchResult is the outcome of a fetch after retries. StatusCode is zero when
// no HTTP response was obtained; Err carries the terminal classified error in
// that case (or the HTTPError matching a final 4xx/5xx status).
type FetchResult struct {
	FinalURL    string
	StatusCode  int
	Headers     http.Header
	Body        []byte
	ContentType string
	Duration    time.Duration
	Attempts    int
	DegradedTLS bool
	Err         error
}

// Counters tracks session-level tallies.
type Counters struct {
	Fetched       int `json:"fetched"`
	Failed        int `json:"failed"`
	SkippedFilter int `json:"skipped_filter"`
	SkippedRobots int `json:"skipped_robots"`
}
