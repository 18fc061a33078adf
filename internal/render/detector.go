package render

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultSPAKeywords are framework markers that usually mean the server sent
// an app shell rather than content.
var DefaultSPAKeywords = []string{
	"__NEXT_DATA__",
	"ng-version",
	"data-reactroot",
	`id="__nuxt"`,
	"window.__INITIAL_STATE__",
}

// Detector decides whether a fetched body needs headless rendering before
// extraction. It implements crawl.RenderDetector.
type Detector struct {
	minHTMLBytes int
	selectors    []string
	keywords     [][]byte
}

// NewDetector constructs a Detector. minBytes flags suspiciously small
// bodies, keywords flag SPA framework markers, and selectors flag pages
// missing expected content containers.
func NewDetector(minBytes int, selectors, keywords []string) *Detector {
	lowered := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lowered = append(lowered, bytes.ToLower([]byte(kw)))
	}
	return &Detector{
		minHTMLBytes: minBytes,
		selectors:    selectors,
		keywords:     lowered,
	}
}

// NeedsRender inspects body for signals that the static HTML is incomplete.
func (d *Detector) NeedsRender(body []byte) bool {
	if d == nil {
		return false
	}
	switch {
	case d.bodyBelowThreshold(body):
		return true
	case d.containsKeywords(body):
		return true
	default:
		return d.missingSelectors(body)
	}
}

func (d *Detector) bodyBelowThreshold(body []byte) bool {
	return d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes
}

func (d *Detector) containsKeywords(body []byte) bool {
	if len(body) == 0 || len(d.keywords) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}

func (d *Detector) missingSelectors(body []byte) bool {
	if len(d.selectors) == 0 || len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	for _, sel := range d.selectors {
		if sel == "" {
			continue
		}
		if doc.Find(sel).Length() == 0 {
			return true
		}
	}
	return false
}
