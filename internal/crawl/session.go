package crawl

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is the process-scoped aggregate for one crawl: the visited set, the
// link graph, and the counters. It is mutated only by the scheduler goroutine
// and becomes read-only once the crawl finishes.
type Session struct {
	ID       uuid.UUID `json:"id"`
	Seed     string    `json:"seed"`
	Config   Config    `json:"config"`
	Started  time.Time `json:"started_at"`
	Finished time.Time `json:"finished_at"`
	Counters Counters  `json:"counters"`

	pages     map[string]*PageRecord
	order     []string
	edges     []LinkEdge
	inlinks   map[string]int
	referrers map[string]map[string]struct{}
}

// NewSession builds an empty session for a validated config. The seed must
// already be normalized.
func NewSession(seed string, cfg Config) *Session {
	return &Session{
		ID:        uuid.New(),
		Seed:      seed,
		Config:    cfg,
		Started:   time.Now().UTC(),
		pages:     make(map[string]*PageRecord),
		inlinks:   make(map[string]int),
		referrers: make(map[string]map[string]struct{}),
	}
}

// Record stores a page record under its normalized URL. The first record for
// a URL wins; a duplicate is dropped and false returned.
func (s *Session) Record(rec *PageRecord) bool {
	if rec == nil || rec.URL == "" {
		return false
	}
	if _, exists := s.pages[rec.URL]; exists {
		return false
	}
	s.deriveIndexability(rec)
	s.pages[rec.URL] = rec
	s.order = append(s.order, rec.URL)
	return true
}

// AddEdge appends one link-graph edge and updates the target's inlink tallies.
func (s *Session) AddEdge(source, target, anchor string) {
	if source == "" || target == "" {
		return
	}
	s.edges = append(s.edges, LinkEdge{Source: source, Target: target, Anchor: anchor})
	s.inlinks[target]++
	refs, ok := s.referrers[target]
	if !ok {
		refs = make(map[string]struct{})
		s.referrers[target] = refs
	}
	refs[source] = struct{}{}
}

// Page returns the record for a normalized URL, if visited.
func (s *Session) Page(url string) (*PageRecord, bool) {
	rec, ok := s.pages[url]
	return rec, ok
}

// Pages returns all records in visitation-record order with inlink counts
// applied.
func (s *Session) Pages() []*PageRecord {
	out := make([]*PageRecord, 0, len(s.order))
	for _, url := range s.order {
		rec := s.pages[url]
		rec.Inlinks = s.inlinks[url]
		rec.UniqueInlinks = len(s.referrers[url])
		out = append(out, rec)
	}
	return out
}

// Edges returns the link graph in discovery order.
func (s *Session) Edges() []LinkEdge {
	return s.edges
}

// Visited returns how many page records exist.
func (s *Session) Visited() int {
	return len(s.pages)
}

// finish stamps the session end time.
func (s *Session) finish() {
	s.Finished = time.Now().UTC()
}

// Export is the serializable session view consumed by the reporting layer,
// the API server, and the store.
type Export struct {
	ID       uuid.UUID     `json:"id"`
	Seed     string        `json:"seed"`
	Started  time.Time     `json:"started_at"`
	Finished time.Time     `json:"finished_at"`
	Counters Counters      `json:"counters"`
	Pages    []*PageRecord `json:"pages"`
	Edges    []LinkEdge    `json:"edges"`
}

// Export snapshots the session into a plain value.
func (s *Session) Export() Export {
	return Export{
		ID:       s.ID,
		Seed:     s.Seed,
		Started:  s.Started,
		Finished: s.Finished,
		Counters: s.Counters,
		Pages:    s.Pages(),
		Edges:    s.edges,
	}
}

// deriveIndexability applies the status, robots, noindex, and canonical rules
// to a record before it is stored. A canonical pointing at a different
// same-origin page marks the record canonicalised; an external canonical
// leaves it indexable absent other negative signals.
func (s *Session) deriveIndexability(rec *PageRecord) {
	rec.Indexable = false
	switch {
	case rec.RobotsDenied:
		rec.IndexabilityStatus = "blocked by robots.txt"
	case rec.Status == 0:
		rec.IndexabilityStatus = rec.FetchError
	case rec.Status < 200 || rec.Status >= 300:
		rec.IndexabilityStatus = fmt.Sprintf("http %d", rec.Status)
	case rec.Noindex:
		if s.Config.IgnoreNoindex {
			rec.IndexabilityStatus = "noindex (crawled anyway)"
		} else {
			rec.IndexabilityStatus = "noindex"
		}
	case rec.Canonical != "" && !canonicalIsSelf(rec) && SameOrigin(rec.Canonical, rec.URL):
		rec.IndexabilityStatus = "canonicalised"
	default:
		rec.Indexable = true
		rec.IndexabilityStatus = "indexable"
	}
}

func canonicalIsSelf(rec *PageRecord) bool {
	norm, err := NormalizeURL(rec.Canonical)
	if err != nil {
		return false
	}
	return norm == rec.URL
}
