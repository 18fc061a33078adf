// Package extract parses fetched HTML into the on-page SEO fields the crawl
// engine records: metadata, headings, robots directives, structured data,
// link graphs and readability statistics.
package extract

import (
	"bytes"
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/seoscope/crawler/internal/crawl"
)

// Extractor derives page-level SEO fields from raw HTML. It implements
// crawl.Extractor.
type Extractor struct {
	logger *zap.Logger
}

// New returns a goquery-backed Extractor.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract parses body and returns the extraction plus every outbound link
// found on the page. Unparseable markup degrades to an empty extraction with
// ParseDegraded set rather than failing the page.
func (e *Extractor) Extract(pageURL string, statusCode int, contentType string, body []byte) (crawl.Extraction, []crawl.Link) {
	var ex crawl.Extraction

	base, err := url.Parse(pageURL)
	if err != nil {
		ex.ParseDegraded = true
		return ex, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("html parse failed", zap.String("url", pageURL), zap.Error(err))
		ex.ParseDegraded = true
		return ex, nil
	}

	ex.Title = strings.TrimSpace(doc.Find("title").First().Text())
	ex.TitleLength = len([]rune(ex.Title))

	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		ex.MetaDescription = strings.TrimSpace(desc)
	}
	ex.MetaDescriptionLength = len([]rune(ex.MetaDescription))

	e.extractHeadings(doc, &ex)
	e.extractRobotsDirectives(doc, &ex)
	e.extractCanonical(doc, base, &ex)
	e.extractSchemaTypes(doc, &ex)
	e.extractImages(doc, &ex)
	links := e.extractLinks(doc, base, &ex)

	text := visibleText(doc)
	stats := analyzeText(text)
	ex.WordCount = stats.words
	ex.SentenceCount = stats.sentences
	ex.ParagraphCount = paragraphCount(doc)
	ex.FleschScore = stats.fleschScore()
	ex.Readability = readabilityBand(ex.FleschScore)

	return ex, links
}

var headingTags = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

func (e *Extractor) extractHeadings(doc *goquery.Document, ex *crawl.Extraction) {
	for i, tag := range headingTags {
		doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
			ex.Headings[i] = append(ex.Headings[i], collapseSpace(s.Text()))
		})
	}
	ex.HierarchyValid = headingHierarchyValid(doc)
}

// headingHierarchyValid walks headings in document order and flags skipped
// levels, such as an h1 followed directly by an h3. A page with no headings
// has no violations and counts as valid.
func headingHierarchyValid(doc *goquery.Document) bool {
	valid := true
	prev := 0
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		level := int(s.Nodes[0].Data[1] - '0')
		if level > prev+1 {
			valid = false
		}
		prev = level
	})
	return valid
}

func (e *Extractor) extractRobotsDirectives(doc *goquery.Document, ex *crawl.Extraction) {
	content, ok := doc.Find(`meta[name="robots"]`).First().Attr("content")
	if !ok {
		return
	}
	for _, token := range strings.Split(content, ",") {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		ex.MetaRobots = append(ex.MetaRobots, token)
		switch token {
		case "noindex":
			ex.Noindex = true
		case "nofollow":
			ex.Nofollow = true
		case "none":
			ex.Noindex = true
			ex.Nofollow = true
		}
	}
}

func (e *Extractor) extractCanonical(doc *goquery.Document, base *url.URL, ex *crawl.Extraction) {
	href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href")
	if !ok {
		return
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return
	}
	if resolved, err := base.Parse(href); err == nil {
		ex.Canonical = resolved.String()
	}
}

// extractSchemaTypes collects structured-data type names from JSON-LD blocks
// and microdata itemtype attributes.
func (e *Extractor) extractSchemaTypes(doc *goquery.Document, ex *crawl.Extraction) {
	seen := map[string]struct{}{}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return
		}
		collectJSONLDTypes(payload, seen)
	})

	doc.Find("[itemscope][itemtype]").Each(func(_ int, s *goquery.Selection) {
		itemtype, _ := s.Attr("itemtype")
		for _, raw := range strings.Fields(itemtype) {
			if idx := strings.LastIndex(raw, "/"); idx >= 0 {
				raw = raw[idx+1:]
			}
			if raw != "" {
				seen[raw] = struct{}{}
			}
		}
	})

	if len(seen) == 0 {
		return
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	ex.SchemaTypes = types
}

func collectJSONLDTypes(node any, seen map[string]struct{}) {
	switch v := node.(type) {
	case map[string]any:
		switch typ := v["@type"].(type) {
		case string:
			seen[typ] = struct{}{}
		case []any:
			for _, item := range typ {
				if s, ok := item.(string); ok {
					seen[s] = struct{}{}
				}
			}
		}
		if graph, ok := v["@graph"]; ok {
			collectJSONLDTypes(graph, seen)
		}
	case []any:
		for _, item := range v {
			collectJSONLDTypes(item, seen)
		}
	}
}

func (e *Extractor) extractImages(doc *goquery.Document, ex *crawl.Extraction) {
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" {
			return
		}
		alt, _ := s.Attr("alt")
		ex.Images = append(ex.Images, crawl.Image{
			Src:    src,
			HasAlt: strings.TrimSpace(alt) != "",
		})
	})
}

func (e *Extractor) extractLinks(doc *goquery.Document, base *url.URL, ex *crawl.Extraction) []crawl.Link {
	baseDomain := crawl.RegistrableDomain(base.String())
	var links []crawl.Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") || strings.HasPrefix(lower, "data:") {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil || (resolved.Scheme != "http" && resolved.Scheme != "https") {
			return
		}
		internal := baseDomain != "" && crawl.RegistrableDomain(resolved.String()) == baseDomain
		if internal {
			ex.InternalLinks++
		} else {
			ex.ExternalLinks++
		}
		links = append(links, crawl.Link{
			TargetURL: resolved.String(),
			Anchor:    collapseSpace(s.Text()),
			Internal:  internal,
		})
	})
	return links
}

// visibleText returns the page's readable prose. It prefers a main or
// article container and strips boilerplate chrome either way.
func visibleText(doc *goquery.Document) string {
	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("article").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return ""
	}
	clone := root.Clone()
	clone.Find("script, style, noscript, template, nav, header, footer, aside").Remove()
	return collapseSpace(clone.Text())
}

func paragraphCount(doc *goquery.Document) int {
	count := 0
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) != "" {
			count++
		}
	})
	return count
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
